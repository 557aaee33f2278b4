package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chatcommerce/gateway/internal/domain/valueobject"
)

// fakeChannel records sends; block makes Send wait for ctx.
type fakeChannel struct {
	sent  []string
	err   error
	block bool
}

func (c *fakeChannel) Send(ctx context.Context, _, _ string, text string) error {
	if c.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, text)
	return nil
}

func testDelivery() Delivery {
	return Delivery{ConversationID: "c1", ChannelID: "console", SenderID: "s1", Text: "Hello!"}
}

func TestDispatcher_PersistsThenSends(t *testing.T) {
	repo := &memMessages{}
	ch := &fakeChannel{}
	d := NewDispatcher(repo, ch, 0, nil, zap.NewNop())

	require.True(t, d.Deliver(context.Background(), testDelivery()))
	require.Equal(t, []string{"Hello!"}, ch.sent)
	require.Len(t, repo.msgs, 1)
	require.Equal(t, valueobject.RoleAssistant, repo.msgs[0].Role())
	require.Equal(t, "Hello!", repo.msgs[0].Text())
}

func TestDispatcher_StoreFailureStillSends(t *testing.T) {
	repo := &memMessages{err: errors.New("disk full")}
	ch := &fakeChannel{}
	d := NewDispatcher(repo, ch, 0, nil, zap.NewNop())

	require.True(t, d.Deliver(context.Background(), testDelivery()))
	require.Len(t, ch.sent, 1)
}

func TestDispatcher_SendFailureIsReported(t *testing.T) {
	repo := &memMessages{}
	sink := &recordingSink{}
	d := NewDispatcher(repo, &fakeChannel{err: errors.New("403")}, 0, sink, zap.NewNop())

	require.False(t, d.Deliver(context.Background(), testDelivery()))
	require.Len(t, repo.msgs, 1, "the stored reply is not rolled back")
	require.Equal(t, 1, sink.count(EventDeliveryFailed))
	payload := sink.last.(ReplyPayload)
	require.Equal(t, "deliver", payload.Stage)
	require.Equal(t, "s1", payload.SenderID)
}

func TestDispatcher_Timeout(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(&memMessages{}, &fakeChannel{block: true}, 20*time.Millisecond, sink, zap.NewNop())

	start := time.Now()
	require.False(t, d.Deliver(context.Background(), testDelivery()))
	require.Less(t, time.Since(start), 2*time.Second)
	require.Equal(t, 1, sink.count(EventDeliveryFailed))
}
