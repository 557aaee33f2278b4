package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

type fakeTimer struct {
	at      time.Time
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// fakeClock fires timers synchronously from Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due, pending []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.at.After(c.now) {
			due = append(due, t)
		} else if !t.stopped {
			pending = append(pending, t)
		}
	}
	c.timers = pending
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

func TestGate_SuppressesDuplicateWithinTTL(t *testing.T) {
	defer goleak.VerifyNone(t)
	clock := newFakeClock()
	gate := NewGate(30*time.Second, clock, zap.NewNop())
	ctx := context.Background()

	calls := 0
	fn := func(context.Context) error { calls++; return nil }

	out, err := gate.Submit(ctx, Submission{SenderID: "u1", Text: "price?"}, fn)
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, out)

	// whitespace differences are the same message
	out, err = gate.Submit(ctx, Submission{SenderID: "u1", Text: "  price? "}, fn)
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, out)
	require.Equal(t, 1, calls)

	// another sender is not a duplicate
	out, _ = gate.Submit(ctx, Submission{SenderID: "u2", Text: "price?"}, fn)
	require.Equal(t, OutcomeProcessed, out)
	require.Equal(t, 2, calls)

	clock.Advance(29 * time.Second)
	out, _ = gate.Submit(ctx, Submission{SenderID: "u1", Text: "price?"}, fn)
	require.Equal(t, OutcomeDuplicate, out)

	clock.Advance(2 * time.Second)
	dedup, slots := gate.sizes()
	require.Zero(t, dedup, "entries are evicted by scheduled removal")
	require.Zero(t, slots)

	out, _ = gate.Submit(ctx, Submission{SenderID: "u1", Text: "price?"}, fn)
	require.Equal(t, OutcomeProcessed, out)
	require.Equal(t, 3, calls)
}

func TestGate_ImageDistinguishesSubmissions(t *testing.T) {
	gate := NewGate(time.Minute, newFakeClock(), zap.NewNop())
	fn := func(context.Context) error { return nil }

	out, _ := gate.Submit(context.Background(), Submission{SenderID: "u1", ImageURL: "a.jpg"}, fn)
	require.Equal(t, OutcomeProcessed, out)
	out, _ = gate.Submit(context.Background(), Submission{SenderID: "u1", ImageURL: "b.jpg"}, fn)
	require.Equal(t, OutcomeProcessed, out)
}

func TestGate_SerializesSameSender(t *testing.T) {
	defer goleak.VerifyNone(t)
	gate := NewGate(time.Minute, newFakeClock(), zap.NewNop())
	ctx := context.Background()

	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	release := make(chan struct{})
	firstStarted := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = gate.Submit(ctx, Submission{SenderID: "u1", Text: "one"}, func(context.Context) error {
			close(firstStarted)
			record("one:start")
			<-release
			record("one:end")
			return nil
		})
	}()
	<-firstStarted

	secondDone := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(secondDone)
		_, _ = gate.Submit(ctx, Submission{SenderID: "u1", Text: "two"}, func(context.Context) error {
			record("two:start")
			return nil
		})
	}()

	select {
	case <-secondDone:
		t.Fatal("second submission ran while the first was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	wg.Wait()
	require.Equal(t, []string{"one:start", "one:end", "two:start"}, order)

	_, slots := gate.sizes()
	require.Zero(t, slots)
}

func TestGate_DistinctSendersRunInParallel(t *testing.T) {
	defer goleak.VerifyNone(t)
	gate := NewGate(time.Minute, newFakeClock(), zap.NewNop())
	ctx := context.Background()

	const work = 100 * time.Millisecond
	start := time.Now()
	var wg sync.WaitGroup
	for _, sender := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(sender string) {
			defer wg.Done()
			_, _ = gate.Submit(ctx, Submission{SenderID: sender, Text: "hi"}, func(context.Context) error {
				time.Sleep(work)
				return nil
			})
		}(sender)
	}
	wg.Wait()
	require.Less(t, time.Since(start), 2*work)
}

func TestGate_PanicReleasesSlot(t *testing.T) {
	gate := NewGate(time.Minute, newFakeClock(), zap.NewNop())
	ctx := context.Background()

	require.Panics(t, func() {
		_, _ = gate.Submit(ctx, Submission{SenderID: "u1", Text: "boom"}, func(context.Context) error {
			panic("stage failure")
		})
	})

	ran := false
	out, err := gate.Submit(ctx, Submission{SenderID: "u1", Text: "next"}, func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, out)
	require.True(t, ran)
}

func TestGate_AbandonedWaitKeepsOrder(t *testing.T) {
	defer goleak.VerifyNone(t)
	gate := NewGate(time.Minute, newFakeClock(), zap.NewNop())

	release := make(chan struct{})
	started := make(chan struct{})
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, _ = gate.Submit(context.Background(), Submission{SenderID: "u1", Text: "one"}, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := gate.Submit(ctx, Submission{SenderID: "u1", Text: "two"}, func(context.Context) error {
		t.Error("abandoned submission must not run")
		return nil
	})
	require.Equal(t, OutcomeAbandoned, out)
	require.ErrorIs(t, err, context.Canceled)

	thirdRan := make(chan struct{})
	go func() {
		_, _ = gate.Submit(context.Background(), Submission{SenderID: "u1", Text: "three"}, func(context.Context) error {
			close(thirdRan)
			return nil
		})
	}()

	select {
	case <-thirdRan:
		t.Fatal("third submission overtook the in-flight first")
	case <-time.After(30 * time.Millisecond):
	}
	close(release)
	<-firstDone
	<-thirdRan

	// the abandoned text may be redelivered
	out, _ = gate.Submit(context.Background(), Submission{SenderID: "u1", Text: "two"}, func(context.Context) error { return nil })
	require.Equal(t, OutcomeProcessed, out)
}

func TestGate_EnterKeepsArrivalOrderAcrossGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)
	gate := NewGate(time.Minute, newFakeClock(), zap.NewNop())

	const n = 50
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	tickets := make([]*Ticket, n)
	for i := 0; i < n; i++ {
		tk, out := gate.Enter(Submission{SenderID: "u1", Text: fmt.Sprintf("msg %d", i)})
		require.Equal(t, OutcomeProcessed, out)
		tickets[i] = tk
	}

	// run in reverse so the scheduler cannot line them up by accident
	for i := n - 1; i >= 0; i-- {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = tickets[i].Run(context.Background(), func(context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}(i)
	}
	wg.Wait()

	for i, got := range order {
		require.Equal(t, i, got)
	}
	_, slots := gate.sizes()
	require.Zero(t, slots)

	tk, out := gate.Enter(Submission{SenderID: "u1", Text: "msg 3"})
	require.Nil(t, tk)
	require.Equal(t, OutcomeDuplicate, out)
}
