package usecase_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chatcommerce/gateway/internal/application/usecase"
	"github.com/chatcommerce/gateway/internal/domain/entity"
	"github.com/chatcommerce/gateway/internal/domain/repository"
	"github.com/chatcommerce/gateway/internal/domain/service"
	"github.com/chatcommerce/gateway/internal/domain/valueobject"
	"github.com/chatcommerce/gateway/internal/infrastructure/persistence"
	apperrors "github.com/chatcommerce/gateway/pkg/errors"
)

// MockLLM 模拟文本生成; reply maps the prompt to generated text.
type MockLLM struct {
	mu      sync.Mutex
	prompts []string
	delay   time.Duration
	started chan struct{}
	reply   func(prompt string) (string, error)
}

func (m *MockLLM) Generate(ctx context.Context, req *service.LLMRequest) (*service.LLMResponse, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, req.Prompt)
	m.mu.Unlock()
	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	text, err := m.reply(req.Prompt)
	if err != nil {
		return nil, err
	}
	return &service.LLMResponse{Content: text, ModelUsed: req.Model}, nil
}

func (m *MockLLM) prompt(i int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prompts[i]
}

// MockChannel 记录投递
type MockChannel struct {
	mu    sync.Mutex
	sends []string
}

func (m *MockChannel) Send(_ context.Context, _, recipientID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = append(m.sends, recipientID+": "+text)
	return nil
}

func (m *MockChannel) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sends)
}

// MockSink 记录事件
type MockSink struct {
	mu     sync.Mutex
	events []string
}

func (m *MockSink) Emit(_ context.Context, eventType string, _ any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, eventType)
}

func (m *MockSink) has(eventType string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e == eventType {
			return true
		}
	}
	return false
}

type harness struct {
	uc        *usecase.ReplyUseCase
	llm       *MockLLM
	channel   *MockChannel
	sink      *MockSink
	messages  repository.MessageRepository
	catalog   *persistence.MemoryCatalog
	productID string
}

func newHarness(t *testing.T, llm *MockLLM) *harness {
	t.Helper()
	logger := zap.NewNop()

	catalog := persistence.NewMemoryCatalog()
	product := &entity.Product{
		Name: "Product X", Description: "White leather sneaker", Category: "shoes",
		Price: 350, DiscountPercent: 30, Stock: 10, Featured: true,
		Sizes: []string{"40", "41"}, Colors: []string{"red", "black"},
	}
	require.NoError(t, catalog.Products().Upsert(context.Background(), product))

	messages := persistence.NewMemoryMessageRepository()
	ch := &MockChannel{}
	sink := &MockSink{}

	excerpt := service.NewCatalogExcerpt(catalog.Products(), "EGP", 0, nil)
	fulfillment := service.NewOrderFulfillment(catalog.Products(), catalog.Orders(), 50, "EGP", sink, nil, logger)

	uc := usecase.NewReplyUseCase(usecase.ReplyDeps{
		Gate:          service.NewGate(time.Minute, nil, logger),
		Conversations: persistence.NewMemoryConversationRepository(),
		Messages:      messages,
		Products:      catalog.Products(),
		Assembler:     service.NewContextAssembler(messages, 20, logger),
		Intent:        service.NewIntentClassifier(),
		Prompts:       service.NewPromptBuilder(nil, excerpt, service.PromptLimits{}, logger),
		LLM:           llm,
		Post:          service.NewPostProcessor(fulfillment, logger),
		Dispatcher:    service.NewDispatcher(messages, ch, time.Second, sink, logger),
		Events:        sink,
	}, usecase.ReplyConfig{Model: "test-model", Temperature: 0.7, MaxOutputTokens: 300}, logger)

	return &harness{uc: uc, llm: llm, channel: ch, sink: sink, messages: messages, catalog: catalog, productID: product.ID}
}

func (h *harness) assistantTexts(t *testing.T, convID string) []string {
	t.Helper()
	msgs, err := h.messages.FindByConversationID(context.Background(), convID, 0, 0)
	require.NoError(t, err)
	var out []string
	for _, m := range msgs {
		if m.Role() == valueobject.RoleAssistant {
			out = append(out, m.Text())
		}
	}
	return out
}

func event(sender, text string) usecase.InboundEvent {
	return usecase.InboundEvent{SenderID: sender, ChannelID: "console", Text: text, Timestamp: time.Now()}
}

func echoLLM() *MockLLM {
	return &MockLLM{reply: func(prompt string) (string, error) {
		lines := strings.Split(strings.TrimSpace(prompt), "\n")
		return "re: " + strings.TrimPrefix(lines[len(lines)-2], "customer: "), nil
	}}
}

func TestReply_HappyPath(t *testing.T) {
	h := newHarness(t, echoLLM())

	res, err := h.uc.Handle(context.Background(), event("cust-1", "hello"))
	require.NoError(t, err)
	require.Equal(t, "processed", res.Status)
	require.True(t, res.Delivered)
	require.Equal(t, "re: hello", res.Reply)
	require.Equal(t, []string{"re: hello"}, h.assistantTexts(t, res.ConversationID))
	require.True(t, h.sink.has(service.EventReplyDelivered))
}

func TestReply_DuplicateSuppressed(t *testing.T) {
	h := newHarness(t, echoLLM())
	ctx := context.Background()

	first, err := h.uc.Handle(ctx, event("cust-1", "price?"))
	require.NoError(t, err)

	second, err := h.uc.Handle(ctx, event("cust-1", "  price?  "))
	require.NoError(t, err)
	require.Equal(t, "duplicate", second.Status)

	require.Len(t, h.assistantTexts(t, first.ConversationID), 1)
	require.Equal(t, 1, h.channel.count())
}

func TestReply_SameSenderSerialized(t *testing.T) {
	llm := echoLLM()
	llm.delay = 50 * time.Millisecond
	llm.started = make(chan struct{}, 2)
	h := newHarness(t, llm)
	ctx := context.Background()

	var (
		wg         sync.WaitGroup
		first      *usecase.Result
		err1, err2 error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		first, err1 = h.uc.Handle(ctx, event("cust-1", "first message"))
	}()
	<-llm.started
	go func() {
		defer wg.Done()
		_, err2 = h.uc.Handle(ctx, event("cust-1", "second message"))
	}()
	<-llm.started
	wg.Wait()
	require.NoError(t, err1)
	require.NoError(t, err2)
	convID := first.ConversationID

	require.Equal(t, []string{"re: first message", "re: second message"}, h.assistantTexts(t, convID))

	second := llm.prompt(1)
	require.Contains(t, second, "customer: first message")
	require.Contains(t, second, "assistant: re: first message")
}

func TestReply_DistinctSendersRunInParallel(t *testing.T) {
	llm := echoLLM()
	llm.delay = 200 * time.Millisecond
	h := newHarness(t, llm)
	ctx := context.Background()

	start := time.Now()
	senders := []string{"a", "b", "c"}
	errs := make([]error, len(senders))
	var wg sync.WaitGroup
	for i, sender := range senders {
		wg.Add(1)
		go func(i int, sender string) {
			defer wg.Done()
			_, errs[i] = h.uc.Handle(ctx, event(sender, "hello"))
		}(i, sender)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	require.Less(t, time.Since(start), 450*time.Millisecond)
	require.Equal(t, 3, h.channel.count())
}

func TestReply_CreatesOrderFromCommand(t *testing.T) {
	llm := &MockLLM{reply: func(string) (string, error) {
		return "Great choice!\n[CREATE_ORDER: Product X - 2 - Jane - 01000000000 - Cairo - 40 - red]", nil
	}}
	h := newHarness(t, llm)

	res, err := h.uc.Handle(context.Background(), event("cust-1", "yes confirm the order"))
	require.NoError(t, err)
	require.Len(t, res.Orders, 1)
	require.Equal(t, 1, h.catalog.OrderCount())
	require.Equal(t, 8, h.catalog.Stock(h.productID))
	require.Contains(t, res.Reply, res.Orders[0])
	require.Contains(t, res.Reply, "540 EGP")
	require.NotContains(t, res.Reply, "[CREATE_ORDER:")
	require.True(t, h.sink.has(service.EventOrderCreated))
}

func TestReply_MissingCustomerData(t *testing.T) {
	llm := &MockLLM{reply: func(string) (string, error) {
		return "[CREATE_ORDER: Product X - 1 - - - - - ]", nil
	}}
	h := newHarness(t, llm)

	res, err := h.uc.Handle(context.Background(), event("cust-1", "order it"))
	require.NoError(t, err)
	require.Zero(t, h.catalog.OrderCount())
	require.Contains(t, res.Reply, "full name")
	require.NotContains(t, res.Reply, "CREATE_ORDER")
}

func TestReply_GenerationFailure(t *testing.T) {
	llm := &MockLLM{reply: func(string) (string, error) {
		return "", service.NewGenerationError(service.ErrKindQuota, "test", "quota exceeded", nil)
	}}
	h := newHarness(t, llm)

	res, err := h.uc.Handle(context.Background(), event("cust-1", "hello"))
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.CodeGenerationFailed))

	var genErr *service.GenerationError
	require.True(t, errors.As(err, &genErr))
	require.Equal(t, service.ErrKindQuota, genErr.Kind)

	require.Empty(t, h.assistantTexts(t, res.ConversationID))
	require.Zero(t, h.channel.count())
	require.True(t, h.sink.has(service.EventReplyFailed))
}

func TestReply_EmptyAfterCleanupIsFailure(t *testing.T) {
	llm := &MockLLM{reply: func(string) (string, error) { return "Assistant: [smiles]", nil }}
	h := newHarness(t, llm)

	_, err := h.uc.Handle(context.Background(), event("cust-1", "hello"))
	require.True(t, apperrors.Is(err, apperrors.CodeGenerationFailed))
	require.Zero(t, h.channel.count())
}

func TestReply_CallerCancellationDoesNotAbort(t *testing.T) {
	llm := echoLLM()
	llm.delay = 50 * time.Millisecond
	h := newHarness(t, llm)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := h.uc.Handle(ctx, event("cust-1", "hello"))
	require.NoError(t, err)
	require.True(t, res.Delivered)
}

func TestReply_ImageOnlyMessage(t *testing.T) {
	h := newHarness(t, echoLLM())
	ev := event("cust-1", "")
	ev.ImageURL = "https://cdn.example.com/shoe.jpg"

	res, err := h.uc.Handle(context.Background(), ev)
	require.NoError(t, err)
	require.True(t, res.Delivered)
	require.Contains(t, h.llm.prompt(0), "https://cdn.example.com/shoe.jpg")
}

func TestReply_InvalidEvent(t *testing.T) {
	h := newHarness(t, echoLLM())

	_, err := h.uc.Handle(context.Background(), usecase.InboundEvent{ChannelID: "console", Text: "hi"})
	require.True(t, apperrors.IsInvalidInput(err))

	_, err = h.uc.Handle(context.Background(), usecase.InboundEvent{SenderID: "s", ChannelID: "console"})
	require.True(t, apperrors.IsInvalidInput(err))
}

func TestReply_ReservedEventsRunInReserveOrder(t *testing.T) {
	h := newHarness(t, echoLLM())
	ctx := context.Background()

	texts := []string{"first message", "second message", "third message"}
	runs := make([]func() (*usecase.Result, error), len(texts))
	for i, text := range texts {
		run, err := h.uc.Reserve(ctx, event("cust-1", text))
		require.NoError(t, err)
		runs[i] = run
	}

	results := make([]*usecase.Result, len(runs))
	errs := make([]error, len(runs))
	var wg sync.WaitGroup
	for i := len(runs) - 1; i >= 0; i-- {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = runs[i]()
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t,
		[]string{"re: first message", "re: second message", "re: third message"},
		h.assistantTexts(t, results[0].ConversationID))

	_, err := h.uc.Reserve(ctx, usecase.InboundEvent{ChannelID: "console"})
	require.True(t, apperrors.IsInvalidInput(err))
}
