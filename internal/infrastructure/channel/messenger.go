package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chatcommerce/gateway/internal/domain/entity"
)

const (
	DefaultGraphURL   = "https://graph.facebook.com"
	DefaultAPIVersion = "v19.0"
)

// MessengerSender posts replies through the Messenger Send API.
type MessengerSender struct {
	graphURL   string
	apiVersion string
	client     *http.Client
	logger     *zap.Logger
}

// NewMessengerSender 创建 Messenger 发送器
func NewMessengerSender(graphURL, apiVersion string, logger *zap.Logger) *MessengerSender {
	if graphURL == "" {
		graphURL = DefaultGraphURL
	}
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	return &MessengerSender{
		graphURL:   strings.TrimRight(graphURL, "/"),
		apiVersion: apiVersion,
		client:     &http.Client{Timeout: 20 * time.Second},
		logger:     logger.With(zap.String("component", "messenger")),
	}
}

type messengerRequest struct {
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	MessagingType string `json:"messaging_type"`
	Message       struct {
		Text string `json:"text"`
	} `json:"message"`
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Send implements Sender. Markdown is flattened and long text goes out as
// several messages in order; the first failed chunk aborts the rest.
func (m *MessengerSender) Send(ctx context.Context, ch *entity.Channel, recipientID, text string) error {
	if ch.AccessToken == "" {
		return fmt.Errorf("messenger channel %s has no access token", ch.ID)
	}
	endpoint := fmt.Sprintf("%s/%s/me/messages?access_token=%s",
		m.graphURL, m.apiVersion, url.QueryEscape(ch.AccessToken))

	for i, chunk := range Chunk(ToPlainText(text), MessengerTextLimit) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.post(ctx, endpoint, recipientID, chunk); err != nil {
			return fmt.Errorf("chunk %d: %w", i+1, err)
		}
	}
	return nil
}

func (m *MessengerSender) post(ctx context.Context, endpoint, recipientID, text string) error {
	var body messengerRequest
	body.Recipient.ID = recipientID
	body.MessagingType = "RESPONSE"
	body.Message.Text = text

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var gerr graphError
	if json.Unmarshal(raw, &gerr) == nil && gerr.Error.Message != "" {
		return fmt.Errorf("send api error %d (code %d): %s", resp.StatusCode, gerr.Error.Code, gerr.Error.Message)
	}
	return fmt.Errorf("send api error %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}
