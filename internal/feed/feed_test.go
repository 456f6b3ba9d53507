package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stockcast/stockcast/internal/model"
)

// stepSource yields base+1, base+2, ... deterministically.
type stepSource struct {
	base float64
	n    int
}

func (s *stepSource) Next() float64 {
	s.n++
	return s.base + float64(s.n)
}

func newTestFeed(t *testing.T) *Feed {
	t.Helper()
	return New("GOOG", &stepSource{}, Config{TickInterval: time.Second, HistorySize: 10}, nil)
}

func TestFeed_PublishTrimsHistory(t *testing.T) {
	f := newTestFeed(t)

	for i := 1; i <= 15; i++ {
		f.Publish(float64(i))
	}

	h := f.History()
	if len(h) != 10 {
		t.Fatalf("len(history) = %d, want 10", len(h))
	}
	// Oldest five evicted: remaining ticks are 6..15 in order.
	for i, tick := range h {
		wantSeq := int64(i + 6)
		if tick.Seq != wantSeq {
			t.Errorf("history[%d].Seq = %d, want %d", i, tick.Seq, wantSeq)
		}
		if tick.Price != float64(i+6) {
			t.Errorf("history[%d].Price = %v, want %v", i, tick.Price, float64(i+6))
		}
		if tick.Symbol != "GOOG" {
			t.Errorf("history[%d].Symbol = %q, want GOOG", i, tick.Symbol)
		}
	}
}

func TestFeed_AttachReplaysHistory(t *testing.T) {
	f := newTestFeed(t)

	for i := 1; i <= 10; i++ {
		f.Publish(float64(i))
	}

	q := NewQueue[model.PriceTick](16)
	att := f.Attach(q)
	if att == nil {
		t.Fatal("Attach returned nil handle")
	}

	// Replay lands on the sink before Attach returns.
	for i := 1; i <= 10; i++ {
		tick, ok := q.TryPop()
		if !ok {
			t.Fatalf("missing replay tick %d", i)
		}
		if tick.Seq != int64(i) {
			t.Errorf("replay tick %d: Seq = %d, want %d", i, tick.Seq, i)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("unexpected extra replay ticks: %d", q.Len())
	}

	// A live tick follows the replay with no gap and no duplicate.
	f.Publish(11)
	tick, ok := q.TryPop()
	if !ok {
		t.Fatal("missing live tick after replay")
	}
	if tick.Seq != 11 {
		t.Errorf("live tick Seq = %d, want 11", tick.Seq)
	}
}

func TestFeed_AttachEmptyHistory(t *testing.T) {
	f := newTestFeed(t)

	q := NewQueue[model.PriceTick](4)
	f.Attach(q)

	if q.Len() != 0 {
		t.Errorf("replay on empty history delivered %d ticks, want 0", q.Len())
	}

	f.Publish(1)
	if q.Len() != 1 {
		t.Errorf("live delivery after empty replay = %d ticks, want 1", q.Len())
	}
}

func TestFeed_DetachStopsDelivery(t *testing.T) {
	f := newTestFeed(t)

	q := NewQueue[model.PriceTick](16)
	att := f.Attach(q)

	f.Publish(1)
	q.PopBatch(0)

	att.Detach()
	if f.AttachmentCount() != 0 {
		t.Fatalf("AttachmentCount() = %d, want 0 after detach", f.AttachmentCount())
	}

	for i := 2; i <= 6; i++ {
		f.Publish(float64(i))
	}
	if q.Len() != 0 {
		t.Errorf("sink received %d ticks after Detach returned, want 0", q.Len())
	}
}

func TestFeed_DetachIdempotent(t *testing.T) {
	f := newTestFeed(t)

	q1 := NewQueue[model.PriceTick](4)
	q2 := NewQueue[model.PriceTick](4)
	att1 := f.Attach(q1)
	att2 := f.Attach(q2)

	att1.Detach()
	att1.Detach()
	att1.Detach()

	if f.AttachmentCount() != 1 {
		t.Errorf("AttachmentCount() = %d, want 1", f.AttachmentCount())
	}

	// The surviving attachment still receives ticks.
	f.Publish(1)
	if q2.Len() != 1 {
		t.Errorf("surviving sink received %d ticks, want 1", q2.Len())
	}
	if q1.Len() != 0 {
		t.Errorf("detached sink received %d ticks, want 0", q1.Len())
	}
	_ = att2
}

func TestFeed_MulticastReachesAllSinks(t *testing.T) {
	f := newTestFeed(t)

	queues := make([]*Queue[model.PriceTick], 5)
	for i := range queues {
		queues[i] = NewQueue[model.PriceTick](64)
		f.Attach(queues[i])
	}

	for i := 1; i <= 50; i++ {
		f.Publish(float64(i))
	}

	for i, q := range queues {
		if q.Len() != 50 {
			t.Errorf("sink %d received %d ticks, want 50", i, q.Len())
		}
	}
}

func TestFeed_ReplayThenLiveUnderConcurrentPublish(t *testing.T) {
	f := newTestFeed(t)

	for i := 1; i <= 10; i++ {
		f.Publish(float64(i))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 11; i <= 60; i++ {
			f.Publish(float64(i))
		}
	}()

	q := NewQueue[model.PriceTick](32)
	f.Attach(q)
	<-done

	ticks := q.PopBatch(0)
	if len(ticks) == 0 {
		t.Fatal("no ticks delivered")
	}
	// Stream must be contiguous ascending: replay then live, no gap, no
	// duplicate, ending at the final published tick.
	for i := 1; i < len(ticks); i++ {
		if ticks[i].Seq != ticks[i-1].Seq+1 {
			t.Fatalf("gap or duplicate at index %d: Seq %d follows %d",
				i, ticks[i].Seq, ticks[i-1].Seq)
		}
	}
	if last := ticks[len(ticks)-1].Seq; last != 60 {
		t.Errorf("last Seq = %d, want 60", last)
	}
}

func TestFeed_ConcurrentAttachDetachPublish(t *testing.T) {
	f := newTestFeed(t)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 200; i++ {
			f.Publish(float64(i))
		}
	}()

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				q := NewQueue[model.PriceTick](8)
				att := f.Attach(q)
				att.Detach()
			}
		}()
	}

	wg.Wait()

	if f.AttachmentCount() != 0 {
		t.Errorf("AttachmentCount() = %d, want 0 after all detaches", f.AttachmentCount())
	}
}

func TestFeed_StartTwice(t *testing.T) {
	f := newTestFeed(t)

	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := f.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := f.Stop(ctx); err != nil {
		t.Errorf("Stop() error: %v", err)
	}
}

func TestFeed_Lifecycle(t *testing.T) {
	f := New("TSLA", &stepSource{base: 100}, Config{TickInterval: 5 * time.Millisecond, HistorySize: 10}, nil)

	q := NewQueue[model.PriceTick](64)
	f.Attach(q)

	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for q.Len() < 3 {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for generated ticks")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := f.Stop(ctx); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	// Generation halts after Stop returns.
	n := f.Stats().Ticks
	time.Sleep(30 * time.Millisecond)
	if got := f.Stats().Ticks; got != n {
		t.Errorf("Ticks advanced after Stop: %d -> %d", n, got)
	}

	// Stop is a no-op when not running.
	if err := f.Stop(ctx); err != nil {
		t.Errorf("second Stop() error: %v", err)
	}
}

func TestFeed_Stats(t *testing.T) {
	f := newTestFeed(t)

	stats := f.Stats()
	if stats.Symbol != "GOOG" || stats.Ticks != 0 || stats.Attachments != 0 || stats.HistoryLen != 0 {
		t.Errorf("initial stats incorrect: %+v", stats)
	}

	q := NewQueue[model.PriceTick](4)
	f.Attach(q)
	for i := 1; i <= 3; i++ {
		f.Publish(float64(i))
	}

	stats = f.Stats()
	if stats.Ticks != 3 {
		t.Errorf("Ticks = %d, want 3", stats.Ticks)
	}
	if stats.Attachments != 1 {
		t.Errorf("Attachments = %d, want 1", stats.Attachments)
	}
	if stats.HistoryLen != 3 {
		t.Errorf("HistoryLen = %d, want 3", stats.HistoryLen)
	}
}
