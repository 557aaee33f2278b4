package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultDedupTTL is how long an identical (sender, text) pair is suppressed.
const DefaultDedupTTL = 30 * time.Second

// Outcome is the result of a gate submission.
type Outcome int

const (
	// OutcomeProcessed means fn ran (its error is returned separately).
	OutcomeProcessed Outcome = iota
	// OutcomeDuplicate means an identical submission was seen within the TTL.
	OutcomeDuplicate
	// OutcomeAbandoned means ctx ended while waiting for the sender's previous turn.
	OutcomeAbandoned
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeAbandoned:
		return "abandoned"
	default:
		return "processed"
	}
}

// Submission identifies one inbound message.
type Submission struct {
	SenderID       string
	ConversationID string
	Text           string
	ImageURL       string
}

// Gate suppresses repeated inbound events and runs at most one pipeline per
// sender at a time, in arrival order. Distinct senders never wait on each
// other; the mutex only guards map access.
type Gate struct {
	mu     sync.Mutex
	clock  Clock
	ttl    time.Duration
	seen   map[string]time.Time     // dedup key → expiry
	tails  map[string]chan struct{} // sender → completion of the latest submission
	logger *zap.Logger
}

// NewGate 创建去重/串行门
func NewGate(ttl time.Duration, clock Clock, logger *zap.Logger) *Gate {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Gate{
		clock:  clock,
		ttl:    ttl,
		seen:   make(map[string]time.Time),
		tails:  make(map[string]chan struct{}),
		logger: logger.With(zap.String("component", "gate")),
	}
}

// Submit runs fn unless s duplicates a submission seen within the TTL.
// fn starts only after every earlier submission from the same sender has
// finished. The dedup entry outlives fn and expires on its own.
func (g *Gate) Submit(ctx context.Context, s Submission, fn func(ctx context.Context) error) (Outcome, error) {
	t, outcome := g.Enter(s)
	if t == nil {
		return outcome, nil
	}
	return t.Run(ctx, fn)
}

// Ticket is a reserved place in a sender's queue. Run must be called
// exactly once, otherwise later submissions from the sender never start.
type Ticket struct {
	gate   *Gate
	s      Submission
	key    string
	expiry time.Time
	prev   chan struct{}
	done   chan struct{}
}

// Enter checks s against the dedup window and, when it is new, reserves
// the next place in the sender's queue without blocking. Callers that
// hand work to goroutines call Enter first so arrival order is kept.
// A duplicate returns a nil ticket and OutcomeDuplicate.
func (g *Gate) Enter(s Submission) (*Ticket, Outcome) {
	key := dedupKey(s)

	g.mu.Lock()
	now := g.clock.Now()
	if expiry, ok := g.seen[key]; ok && now.Before(expiry) {
		g.mu.Unlock()
		g.logger.Debug("Duplicate suppressed",
			zap.String("sender_id", s.SenderID),
			zap.String("conversation_id", s.ConversationID),
		)
		return nil, OutcomeDuplicate
	}
	expiry := now.Add(g.ttl)
	g.seen[key] = expiry
	g.clock.AfterFunc(g.ttl, func() { g.evict(key, expiry) })

	t := &Ticket{
		gate:   g,
		s:      s,
		key:    key,
		expiry: expiry,
		prev:   g.tails[s.SenderID],
		done:   make(chan struct{}),
	}
	g.tails[s.SenderID] = t.done
	g.mu.Unlock()
	return t, OutcomeProcessed
}

// Run waits for the sender's previous submission, then runs fn.
func (t *Ticket) Run(ctx context.Context, fn func(ctx context.Context) error) (Outcome, error) {
	g := t.gate
	if t.prev != nil {
		select {
		case <-t.prev:
		case <-ctx.Done():
			// keep the chain intact: successors still wait for prev
			go func() {
				<-t.prev
				g.release(t.s.SenderID, t.done)
			}()
			g.evict(t.key, t.expiry)
			return OutcomeAbandoned, ctx.Err()
		}
	}

	defer g.release(t.s.SenderID, t.done)
	return OutcomeProcessed, fn(ctx)
}

// release signals completion and drops the sender slot if no one queued behind.
func (g *Gate) release(senderID string, done chan struct{}) {
	close(done)
	g.mu.Lock()
	if g.tails[senderID] == done {
		delete(g.tails, senderID)
	}
	g.mu.Unlock()
}

func (g *Gate) evict(key string, expiry time.Time) {
	g.mu.Lock()
	if current, ok := g.seen[key]; ok && current.Equal(expiry) {
		delete(g.seen, key)
	}
	g.mu.Unlock()
}

// sizes reports the number of live dedup entries and sender slots.
func (g *Gate) sizes() (dedup, slots int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen), len(g.tails)
}

func dedupKey(s Submission) string {
	text := strings.Join(strings.Fields(s.Text), " ")
	return s.SenderID + "\x00" + text + "\x00" + s.ImageURL
}
