package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chatcommerce/gateway/internal/application/usecase"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorCyan   = "\033[36m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// ReplyHandler 回复流水线
type ReplyHandler interface {
	Handle(ctx context.Context, ev usecase.InboundEvent) (*usecase.Result, error)
}

// REPL is a local customer session on the console channel. Replies are
// written by the console channel sender; the REPL only reports outcomes.
type REPL struct {
	replies   ReplyHandler
	logger    *zap.Logger
	in        io.Reader
	out       io.Writer
	channelID string
	userName  string
	senderID  string
	convID    string
}

// Config REPL configuration
type Config struct {
	ChannelID string
	UserName  string
	In        io.Reader
	Out       io.Writer
}

// New creates a new REPL instance
func New(replies ReplyHandler, logger *zap.Logger, cfg Config) *REPL {
	channelID := cfg.ChannelID
	if channelID == "" {
		channelID = "console"
	}
	userName := cfg.UserName
	if userName == "" {
		userName = "customer"
	}

	return &REPL{
		replies:   replies,
		logger:    logger,
		in:        cfg.In,
		out:       cfg.Out,
		channelID: channelID,
		userName:  userName,
		senderID:  newSenderID(),
	}
}

func newSenderID() string {
	return fmt.Sprintf("repl_%d", time.Now().UnixNano())
}

// Run starts the REPL loop
func (r *REPL) Run(ctx context.Context) error {
	r.printBanner()

	scanner := bufio.NewScanner(r.in)
	// Allow long input lines
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprintf(r.out, "%s%s> %s", colorGreen, r.userName, colorReset)

		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if handled, shouldExit := r.handleCommand(ctx, input); handled {
			if shouldExit {
				return nil
			}
			continue
		}

		r.send(ctx, input, "")
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	fmt.Fprintln(r.out, "\nGoodbye!")
	return nil
}

// handleCommand processes built-in REPL commands
// Returns (handled, shouldExit)
func (r *REPL) handleCommand(ctx context.Context, input string) (bool, bool) {
	parts := strings.Fields(input)
	if len(parts) == 0 || !strings.HasPrefix(parts[0], "/") {
		return false, false
	}

	switch strings.ToLower(parts[0]) {
	case "/exit", "/quit", "/q":
		fmt.Fprintln(r.out, "Goodbye!")
		return true, true

	case "/new":
		r.senderID = newSenderID()
		r.convID = ""
		fmt.Fprintf(r.out, "%s✓ New customer session%s\n", colorCyan, colorReset)
		return true, false

	case "/image":
		if len(parts) < 2 {
			fmt.Fprintf(r.out, "%sUsage: /image <url> [text]%s\n", colorYellow, colorReset)
			return true, false
		}
		r.send(ctx, strings.Join(parts[2:], " "), parts[1])
		return true, false

	case "/status":
		fmt.Fprintf(r.out, "%s── Status ──%s\n", colorCyan, colorReset)
		fmt.Fprintf(r.out, "  Channel:      %s\n", r.channelID)
		fmt.Fprintf(r.out, "  Sender:       %s\n", r.senderID)
		fmt.Fprintf(r.out, "  Conversation: %s\n", r.convID)
		return true, false

	case "/help":
		r.printHelp()
		return true, false

	default:
		return false, false
	}
}

// send runs one customer message through the pipeline and waits for it.
func (r *REPL) send(ctx context.Context, text, imageURL string) {
	start := time.Now()
	res, err := r.replies.Handle(ctx, usecase.InboundEvent{
		SenderID:       r.senderID,
		ConversationID: r.convID,
		ChannelID:      r.channelID,
		Text:           text,
		ImageURL:       imageURL,
		Timestamp:      start,
	})
	elapsed := time.Since(start)

	if err != nil {
		fmt.Fprintf(r.out, "%sError: %v%s\n", colorYellow, err, colorReset)
		r.logger.Error("REPL message processing failed", zap.Error(err))
		return
	}
	if res.ConversationID != "" {
		r.convID = res.ConversationID
	}

	switch {
	case res.Status != "processed":
		fmt.Fprintf(r.out, "%s(%s)%s\n", colorGray, res.Status, colorReset)
	case !res.Delivered:
		fmt.Fprintf(r.out, "%s(reply not delivered)%s\n", colorYellow, colorReset)
	}
	for _, number := range res.Orders {
		fmt.Fprintf(r.out, "%s%s✓ Order %s%s\n", colorBold, colorCyan, number, colorReset)
	}
	fmt.Fprintf(r.out, "%s(%s)%s\n\n", colorGray, elapsed.Round(time.Millisecond), colorReset)
}

// printBanner displays the REPL welcome message
func (r *REPL) printBanner() {
	fmt.Fprintf(r.out, "\n%s%s── chatcommerce console ──%s\n", colorBold, colorCyan, colorReset)
	fmt.Fprintf(r.out, "%sYou are a customer on channel %q | Type /help for commands%s\n\n", colorGray, r.channelID, colorReset)
}

// printHelp displays available commands
func (r *REPL) printHelp() {
	fmt.Fprintf(r.out, "\n%s── Commands ──%s\n", colorCyan, colorReset)
	fmt.Fprintln(r.out, "  /new               Start as a new customer")
	fmt.Fprintln(r.out, "  /image <url> [txt] Send an image with optional text")
	fmt.Fprintln(r.out, "  /status            Show current session")
	fmt.Fprintln(r.out, "  /help              Show this help")
	fmt.Fprintln(r.out, "  /exit              Exit REPL")
	fmt.Fprintln(r.out)
}
