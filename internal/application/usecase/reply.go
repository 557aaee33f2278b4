package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chatcommerce/gateway/internal/domain/entity"
	"github.com/chatcommerce/gateway/internal/domain/repository"
	"github.com/chatcommerce/gateway/internal/domain/service"
	"github.com/chatcommerce/gateway/internal/domain/valueobject"
	"github.com/chatcommerce/gateway/pkg/errors"
)

// DefaultGenerationTimeout bounds one generation call.
const DefaultGenerationTimeout = 30 * time.Second

// InboundEvent is one normalized customer message.
type InboundEvent struct {
	SenderID       string    `json:"sender_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	ChannelID      string    `json:"channel_id"`
	Text           string    `json:"text"`
	ImageURL       string    `json:"image_url,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Validate 校验入站事件
func (e InboundEvent) Validate() error {
	if strings.TrimSpace(e.SenderID) == "" {
		return errors.NewInvalidInputError("sender_id is required")
	}
	if strings.TrimSpace(e.ChannelID) == "" {
		return errors.NewInvalidInputError("channel_id is required")
	}
	if strings.TrimSpace(e.Text) == "" && strings.TrimSpace(e.ImageURL) == "" {
		return errors.NewInvalidInputError("text or image_url is required")
	}
	return nil
}

// Result describes what happened to one inbound event.
type Result struct {
	Outcome        service.Outcome         `json:"-"`
	Status         string                  `json:"status"`
	ConversationID string                  `json:"conversation_id,omitempty"`
	Reply          string                  `json:"reply,omitempty"`
	Delivered      bool                    `json:"delivered"`
	Orders         []string                `json:"orders,omitempty"`
	Commands       []service.CommandResult `json:"-"`
}

// ReplyConfig holds generation parameters.
type ReplyConfig struct {
	Model             string
	Temperature       float64
	MaxOutputTokens   int
	GenerationTimeout time.Duration
}

// ReplyDeps are the collaborators of the reply pipeline.
type ReplyDeps struct {
	Gate          *service.Gate
	Conversations repository.ConversationRepository
	Messages      repository.MessageRepository
	Products      repository.ProductRepository
	Assembler     *service.ContextAssembler
	Intent        *service.IntentClassifier
	Prompts       *service.PromptBuilder
	LLM           service.LLMClient
	Post          *service.PostProcessor
	Dispatcher    *service.Dispatcher
	Events        service.EventSink
	Clock         service.Clock
}

// ReplyUseCase turns one inbound event into one delivered reply.
type ReplyUseCase struct {
	ReplyDeps
	cfg    ReplyConfig
	logger *zap.Logger
}

// NewReplyUseCase 创建回复用例
func NewReplyUseCase(deps ReplyDeps, cfg ReplyConfig, logger *zap.Logger) *ReplyUseCase {
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = DefaultGenerationTimeout
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 300
	}
	if deps.Events == nil {
		deps.Events = service.NopSink{}
	}
	if deps.Clock == nil {
		deps.Clock = service.SystemClock{}
	}
	if deps.Intent == nil {
		deps.Intent = service.NewIntentClassifier()
	}
	return &ReplyUseCase{
		ReplyDeps: deps,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "reply")),
	}
}

// Handle runs the pipeline for ev. It keeps going if the caller's context is
// cancelled: a reply that reached the provider is always finished. Events
// from the same sender are processed one at a time in arrival order and a
// repeat within the dedup window returns a "duplicate" result.
func (uc *ReplyUseCase) Handle(ctx context.Context, ev InboundEvent) (*Result, error) {
	run, err := uc.Reserve(ctx, ev)
	if err != nil {
		return nil, err
	}
	return run()
}

// Reserve validates ev and takes its place in the sender's queue without
// blocking. The returned function runs the pipeline and may be called from
// another goroutine; it must be called exactly once. Ingress loops call
// Reserve inline so events of one sender keep their arrival order.
func (uc *ReplyUseCase) Reserve(ctx context.Context, ev InboundEvent) (func() (*Result, error), error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	uc.Events.Emit(ctx, service.EventMessageReceived, service.ReplyPayload{
		ConversationID: ev.ConversationID,
		SenderID:       ev.SenderID,
		ChannelID:      ev.ChannelID,
	})

	ticket, outcome := uc.Gate.Enter(service.Submission{
		SenderID:       ev.SenderID,
		ConversationID: ev.ConversationID,
		Text:           ev.Text,
		ImageURL:       ev.ImageURL,
	})
	if ticket == nil {
		return func() (*Result, error) {
			return &Result{Outcome: outcome, Status: outcome.String()}, nil
		}, nil
	}

	return func() (*Result, error) {
		res := &Result{}
		outcome, err := ticket.Run(ctx, func(ctx context.Context) error {
			return uc.run(ctx, ev, res)
		})
		res.Outcome = outcome
		res.Status = outcome.String()
		return res, err
	}, nil
}

func (uc *ReplyUseCase) run(ctx context.Context, ev InboundEvent, res *Result) error {
	log := uc.logger.With(
		zap.String("sender_id", ev.SenderID),
		zap.String("channel_id", ev.ChannelID),
	)

	conv, err := uc.resolveConversation(ctx, ev)
	if err != nil {
		log.Error("Failed to resolve conversation", zap.String("stage", "conversation"), zap.Error(err))
		return errors.NewInternalErrorWithCause("resolve conversation", err)
	}
	convID := conv.ID()
	res.ConversationID = convID
	log = log.With(zap.String("conversation_id", convID))

	inbound, err := entity.NewMessage(uuid.NewString(), convID, valueobject.RoleCustomer, ev.Text, ev.ImageURL)
	if err == nil {
		err = uc.Messages.Save(ctx, inbound)
	}
	if err != nil {
		log.Error("Failed to persist customer message", zap.String("stage", "persist_message"), zap.Error(err))
		return errors.NewInternalErrorWithCause("persist customer message", err)
	}
	if err := uc.Conversations.Touch(ctx, convID, uc.Clock.Now()); err != nil {
		log.Warn("Failed to touch conversation", zap.String("stage", "touch"), zap.Error(err))
	}

	text := ev.Text
	if strings.TrimSpace(text) == "" {
		text = "[image] " + ev.ImageURL
	}

	history, err := uc.Assembler.LoadHistory(ctx, convID, text)
	if err != nil {
		log.Warn("Failed to load history, continuing as first contact", zap.String("stage", "history"), zap.Error(err))
		history = nil
	}

	input := service.PromptInput{
		Text:            text,
		History:         history,
		ProductRelated:  uc.Intent.IsProductRelated(text, history),
		OrderInProgress: service.OrderInProgress(history),
	}
	if input.OrderInProgress {
		names, err := uc.Products.ListNames(ctx)
		if err != nil {
			log.Warn("Failed to list product names", zap.String("stage", "draft"), zap.Error(err))
		}
		input.Draft = service.ReconstructDraft(history, text, names)
	}
	prompt := uc.Prompts.Build(ctx, input)

	generated, err := uc.generate(ctx, prompt)
	if err != nil {
		return uc.generationFailed(ctx, log, ev, convID, err)
	}

	reply, cmds := uc.Post.ProcessReply(ctx, generated, ev.Text, convID)
	res.Commands = cmds
	for _, c := range cmds {
		if c.Receipt != nil {
			res.Orders = append(res.Orders, c.Receipt.Number)
		}
	}
	if reply == "" {
		return uc.generationFailed(ctx, log, ev, convID,
			service.NewGenerationError(service.ErrKindEmpty, "", "nothing left after cleanup", nil))
	}
	res.Reply = reply

	res.Delivered = uc.Dispatcher.Deliver(ctx, service.Delivery{
		ConversationID: convID,
		ChannelID:      ev.ChannelID,
		SenderID:       ev.SenderID,
		Text:           reply,
	})
	if res.Delivered {
		uc.Events.Emit(ctx, service.EventReplyDelivered, service.ReplyPayload{
			ConversationID: convID,
			SenderID:       ev.SenderID,
			ChannelID:      ev.ChannelID,
		})
	}

	log.Info("Reply processed",
		zap.Bool("product_related", input.ProductRelated),
		zap.Bool("order_in_progress", input.OrderInProgress),
		zap.Int("commands", len(cmds)),
		zap.Bool("delivered", res.Delivered),
	)
	return nil
}

// resolveConversation uses the event's conversation id when it is known
// and otherwise finds or creates the (channel, sender) conversation.
func (uc *ReplyUseCase) resolveConversation(ctx context.Context, ev InboundEvent) (*entity.Conversation, error) {
	if ev.ConversationID != "" {
		conv, err := uc.Conversations.FindByID(ctx, ev.ConversationID)
		if err == nil && conv.SenderID() == ev.SenderID {
			return conv, nil
		}
		if err != nil && !errors.IsNotFound(err) {
			return nil, err
		}
	}
	return uc.Conversations.FindOrCreate(ctx, ev.ChannelID, ev.SenderID)
}

func (uc *ReplyUseCase) generate(ctx context.Context, prompt string) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, uc.cfg.GenerationTimeout)
	defer cancel()

	resp, err := uc.LLM.Generate(genCtx, &service.LLMRequest{
		Model:       uc.cfg.Model,
		Prompt:      prompt,
		MaxTokens:   uc.cfg.MaxOutputTokens,
		Temperature: uc.cfg.Temperature,
	})
	if err != nil {
		return "", service.ClassifyError(err, "", uc.cfg.Model)
	}
	if resp.Truncated {
		uc.logger.Debug("Generation truncated at token limit", zap.String("model", resp.ModelUsed))
	}
	return resp.Content, nil
}

// generationFailed records a failed generation. No assistant message is
// stored and nothing is sent.
func (uc *ReplyUseCase) generationFailed(ctx context.Context, log *zap.Logger, ev InboundEvent, convID string, cause error) error {
	kind := service.ClassifyError(cause, "", uc.cfg.Model).Kind
	log.Error("Generation failed",
		zap.String("stage", "generate"),
		zap.String("kind", kind.String()),
		zap.Error(cause),
	)
	uc.Events.Emit(ctx, service.EventReplyFailed, service.ReplyPayload{
		ConversationID: convID,
		SenderID:       ev.SenderID,
		ChannelID:      ev.ChannelID,
		Stage:          "generate",
		Error:          cause.Error(),
	})
	return errors.Wrap(errors.CodeGenerationFailed, "generation failed", cause)
}
