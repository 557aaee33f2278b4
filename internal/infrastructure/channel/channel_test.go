package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chatcommerce/gateway/internal/domain/entity"
	"github.com/chatcommerce/gateway/internal/domain/valueobject"
	"github.com/chatcommerce/gateway/internal/infrastructure/persistence"
	apperrors "github.com/chatcommerce/gateway/pkg/errors"
)

// ---- Messenger ----

func TestMessengerSender_PostsSendAPIRequest(t *testing.T) {
	var (
		mu     sync.Mutex
		paths  []string
		tokens []string
		bodies []messengerRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body messengerRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		tokens = append(tokens, r.URL.Query().Get("access_token"))
		bodies = append(bodies, body)
		mu.Unlock()
		w.Write([]byte(`{"recipient_id":"psid-1","message_id":"m1"}`))
	}))
	defer srv.Close()

	m := NewMessengerSender(srv.URL, "v19.0", zap.NewNop())
	ch := &entity.Channel{ID: "page-1", Type: valueobject.ChannelMessenger, AccessToken: "tok", Enabled: true}

	err := m.Send(context.Background(), ch, "psid-1", "**Product X** is in stock")
	require.NoError(t, err)

	require.Equal(t, []string{"/v19.0/me/messages"}, paths)
	require.Equal(t, []string{"tok"}, tokens)
	require.Equal(t, "psid-1", bodies[0].Recipient.ID)
	require.Equal(t, "RESPONSE", bodies[0].MessagingType)
	require.Equal(t, "Product X is in stock", bodies[0].Message.Text)
}

func TestMessengerSender_ChunksLongText(t *testing.T) {
	var (
		mu    sync.Mutex
		texts []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body messengerRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		texts = append(texts, body.Message.Text)
		mu.Unlock()
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	m := NewMessengerSender(srv.URL, "", zap.NewNop())
	ch := &entity.Channel{ID: "page-1", AccessToken: "tok"}

	long := strings.Repeat("word ", 1000)
	require.NoError(t, m.Send(context.Background(), ch, "psid-1", long))

	require.GreaterOrEqual(t, len(texts), 3)
	for _, txt := range texts {
		require.LessOrEqual(t, utf8.RuneCountInString(txt), MessengerTextLimit)
	}
}

func TestMessengerSender_GraphError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Invalid OAuth access token","type":"OAuthException","code":190}}`))
	}))
	defer srv.Close()

	m := NewMessengerSender(srv.URL, "", zap.NewNop())
	err := m.Send(context.Background(), &entity.Channel{ID: "p", AccessToken: "bad"}, "psid", "hi")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Invalid OAuth access token")
	require.Contains(t, err.Error(), "190")
}

func TestMessengerSender_RequiresToken(t *testing.T) {
	m := NewMessengerSender("http://127.0.0.1:1", "", zap.NewNop())
	err := m.Send(context.Background(), &entity.Channel{ID: "p"}, "psid", "hi")
	require.Error(t, err)
}

// ---- Telegram ----

type fakeBot struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
	errs []error
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg := c.(tgbotapi.MessageConfig)
	b.sent = append(b.sent, msg)
	if len(b.errs) > 0 {
		err := b.errs[0]
		b.errs = b.errs[1:]
		return tgbotapi.Message{}, err
	}
	return tgbotapi.Message{MessageID: len(b.sent)}, nil
}

func TestTelegramSender_SendsHTML(t *testing.T) {
	bot := &fakeBot{}
	created := 0
	s := NewTelegramSender(func(token string) (BotSender, error) {
		created++
		require.Equal(t, "bot-token", token)
		return bot, nil
	}, zap.NewNop())
	ch := &entity.Channel{ID: "telegram", Type: valueobject.ChannelTelegram, AccessToken: "bot-token", Enabled: true}

	require.NoError(t, s.Send(context.Background(), ch, "42", "**Total:** 540 EGP"))
	require.NoError(t, s.Send(context.Background(), ch, "42", "thanks"))

	require.Equal(t, 1, created, "bot client is cached per token")
	require.Len(t, bot.sent, 2)
	require.Equal(t, int64(42), bot.sent[0].ChatID)
	require.Equal(t, tgbotapi.ModeHTML, bot.sent[0].ParseMode)
	require.Equal(t, "<b>Total:</b> 540 EGP", bot.sent[0].Text)
}

func TestTelegramSender_FallsBackToPlainText(t *testing.T) {
	bot := &fakeBot{errs: []error{errors.New("Bad Request: can't parse entities: unexpected end tag")}}
	s := NewTelegramSender(nil, zap.NewNop())
	s.Use("tok", bot)

	err := s.Send(context.Background(), &entity.Channel{ID: "tg", AccessToken: "tok"}, "7", "**hi**")
	require.NoError(t, err)
	require.Len(t, bot.sent, 2)
	require.Equal(t, "", bot.sent[1].ParseMode)
	require.Equal(t, "hi", bot.sent[1].Text)
}

func TestTelegramSender_InvalidChatID(t *testing.T) {
	s := NewTelegramSender(nil, zap.NewNop())
	s.Use("tok", &fakeBot{})
	err := s.Send(context.Background(), &entity.Channel{ID: "tg", AccessToken: "tok"}, "not-a-number", "hi")
	require.Error(t, err)
}

func TestTelegramSender_FactoryError(t *testing.T) {
	s := NewTelegramSender(func(string) (BotSender, error) {
		return nil, errors.New("unauthorized")
	}, zap.NewNop())
	err := s.Send(context.Background(), &entity.Channel{ID: "tg", AccessToken: "tok"}, "1", "hi")
	require.ErrorContains(t, err, "unauthorized")
}

// ---- Router ----

func newTestRouter(t *testing.T) (*Router, *bytes.Buffer) {
	t.Helper()
	repo := persistence.NewMemoryChannelRepository()
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, &entity.Channel{ID: "console", Type: valueobject.ChannelConsole, Enabled: true}))
	require.NoError(t, repo.Save(ctx, &entity.Channel{ID: "off", Type: valueobject.ChannelConsole, Enabled: false}))
	require.NoError(t, repo.Save(ctx, &entity.Channel{ID: "tg", Type: valueobject.ChannelTelegram, Enabled: true}))

	var out bytes.Buffer
	r := NewRouter(repo, zap.NewNop())
	r.Register(valueobject.ChannelConsole, NewConsoleSender(&out, "bot> "))
	return r, &out
}

func TestRouter_DispatchesByChannelType(t *testing.T) {
	r, out := newTestRouter(t)
	require.NoError(t, r.Send(context.Background(), "console", "cust-1", "**Hello**"))
	require.Equal(t, "bot> Hello\n\n", out.String())
}

func TestRouter_Failures(t *testing.T) {
	r, out := newTestRouter(t)
	ctx := context.Background()

	err := r.Send(ctx, "off", "cust-1", "hi")
	require.True(t, apperrors.Is(err, apperrors.CodeDeliveryFailed))

	err = r.Send(ctx, "missing", "cust-1", "hi")
	require.True(t, apperrors.Is(err, apperrors.CodeDeliveryFailed))

	err = r.Send(ctx, "tg", "1", "hi")
	require.True(t, apperrors.Is(err, apperrors.CodeDeliveryFailed))

	require.Empty(t, out.String())
}
