package writer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stockcast/stockcast/internal/feed"
	"github.com/stockcast/stockcast/internal/model"
)

// fakeBatcher records sent batches and replies with canned command tags.
type fakeBatcher struct {
	mu      sync.Mutex
	batches []*pgx.Batch
	tags    []pgconn.CommandTag
	err     error
}

func (f *fakeBatcher) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, b)
	return &fakeBatchResults{tags: f.tags, err: f.err}
}

func (f *fakeBatcher) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

type fakeBatchResults struct {
	i    int
	tags []pgconn.CommandTag
	err  error
}

func (r *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	tag := pgconn.NewCommandTag("INSERT 0 1")
	if r.i < len(r.tags) {
		tag = r.tags[r.i]
	}
	r.i++
	return tag, nil
}

func (r *fakeBatchResults) Query() (pgx.Rows, error) { return nil, nil }
func (r *fakeBatchResults) QueryRow() pgx.Row        { return nil }
func (r *fakeBatchResults) Close() error             { return nil }

// newTestRegistry builds the default universe without starting any feed.
// Tests inject ticks with Publish, so every assertion is deterministic.
func newTestRegistry(t *testing.T) *feed.Registry {
	t.Helper()
	return feed.NewRegistry(feed.RegistryConfig{Seed: 1}, slog.Default())
}

// waitFor polls cond until it holds or the timeout lapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func stopWriter(t *testing.T, s interface {
	Stop(context.Context) error
}) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestArchiveWriter_Transform(t *testing.T) {
	w := NewArchiveWriter(DefaultWriterConfig(), newTestRegistry(t), nil, nil)

	generatedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tick := model.PriceTick{
		Symbol: "GOOG",
		Price:  123.45,
		Seq:    7,
		Time:   generatedAt,
	}

	row := w.transform(tick)

	if row.Symbol != "GOOG" {
		t.Errorf("Symbol = %s, want GOOG", row.Symbol)
	}
	if row.Seq != 7 {
		t.Errorf("Seq = %d, want 7", row.Seq)
	}
	if row.Price != 123.45 {
		t.Errorf("Price = %v, want 123.45", row.Price)
	}
	if !row.GeneratedAt.Equal(generatedAt) {
		t.Errorf("GeneratedAt = %v, want %v", row.GeneratedAt, generatedAt)
	}
}

func TestArchiveWriter_HandleTick_AddsToBatch(t *testing.T) {
	cfg := WriterConfig{
		BatchSize:     100,
		FlushInterval: time.Hour,
	}
	w := NewArchiveWriter(cfg, newTestRegistry(t), nil, nil)

	due := w.handleTick(model.PriceTick{Symbol: "GOOG", Price: 101.5, Seq: 1, Time: time.Now()})

	if due {
		t.Error("handleTick reported flush due with batch below threshold")
	}
	w.batchMu.Lock()
	batchLen := len(w.batch)
	w.batchMu.Unlock()
	if batchLen != 1 {
		t.Errorf("batch length = %d, want 1", batchLen)
	}
}

func TestArchiveWriter_FlushInsertsBatch(t *testing.T) {
	db := &fakeBatcher{}
	reg := newTestRegistry(t)
	w := NewArchiveWriter(WriterConfig{
		BatchSize:     3,
		FlushInterval: time.Hour,
	}, reg, db, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer stopWriter(t, w)

	f, ok := reg.Lookup("GOOG")
	if !ok {
		t.Fatal("GOOG missing from registry")
	}
	f.Publish(101.5)
	f.Publish(102.5)
	f.Publish(103.5)

	waitFor(t, time.Second, func() bool { return db.batchCount() == 1 })

	batch := db.batches[0]
	if batch.Len() != 3 {
		t.Fatalf("batch.Len() = %d, want 3", batch.Len())
	}
	args := batch.QueuedQueries[0].Arguments
	if args[0] != "GOOG" {
		t.Errorf("first row symbol = %v, want GOOG", args[0])
	}
	if args[1] != int64(1) {
		t.Errorf("first row seq = %v, want 1", args[1])
	}
	if args[2] != 101.5 {
		t.Errorf("first row price = %v, want 101.5", args[2])
	}

	waitFor(t, time.Second, func() bool { return w.Stats().Flushes == 1 })
	stats := w.Stats()
	if stats.Inserts != 3 {
		t.Errorf("Inserts = %d, want 3", stats.Inserts)
	}
	if stats.Conflicts != 0 {
		t.Errorf("Conflicts = %d, want 0", stats.Conflicts)
	}
}

func TestArchiveWriter_ConflictsCounted(t *testing.T) {
	db := &fakeBatcher{tags: []pgconn.CommandTag{
		pgconn.NewCommandTag("INSERT 0 1"),
		pgconn.NewCommandTag("INSERT 0 0"),
		pgconn.NewCommandTag("INSERT 0 1"),
	}}
	reg := newTestRegistry(t)
	w := NewArchiveWriter(WriterConfig{
		BatchSize:     3,
		FlushInterval: time.Hour,
	}, reg, db, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer stopWriter(t, w)

	f, _ := reg.Lookup("TSLA")
	f.Publish(201.0)
	f.Publish(202.0)
	f.Publish(203.0)

	waitFor(t, time.Second, func() bool { return w.Stats().Flushes == 1 })

	stats := w.Stats()
	if stats.Inserts != 2 {
		t.Errorf("Inserts = %d, want 2", stats.Inserts)
	}
	if stats.Conflicts != 1 {
		t.Errorf("Conflicts = %d, want 1", stats.Conflicts)
	}
}

func TestArchiveWriter_StopFlushesRemainder(t *testing.T) {
	db := &fakeBatcher{}
	reg := newTestRegistry(t)
	w := NewArchiveWriter(WriterConfig{
		BatchSize:     100,
		FlushInterval: time.Hour,
	}, reg, db, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	f, _ := reg.Lookup("AMZN")
	f.Publish(150.25)
	f.Publish(151.75)

	waitFor(t, time.Second, func() bool {
		w.batchMu.Lock()
		defer w.batchMu.Unlock()
		return len(w.batch) == 2
	})

	stopWriter(t, w)

	if db.batchCount() != 1 {
		t.Fatalf("batches sent = %d, want 1", db.batchCount())
	}
	if db.batches[0].Len() != 2 {
		t.Errorf("final batch Len() = %d, want 2", db.batches[0].Len())
	}
	if got := w.Stats().Inserts; got != 2 {
		t.Errorf("Inserts = %d, want 2", got)
	}
}

func TestArchiveWriter_InsertErrorCounted(t *testing.T) {
	db := &fakeBatcher{err: errors.New("connection refused")}
	reg := newTestRegistry(t)
	w := NewArchiveWriter(WriterConfig{
		BatchSize:     1,
		FlushInterval: time.Hour,
	}, reg, db, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer stopWriter(t, w)

	f, _ := reg.Lookup("META")
	f.Publish(275.0)

	waitFor(t, time.Second, func() bool { return w.Stats().Errors == 1 })

	if got := w.Stats().Inserts; got != 0 {
		t.Errorf("Inserts = %d, want 0 after failed flush", got)
	}
}

func TestArchiveWriter_Lifecycle(t *testing.T) {
	db := &fakeBatcher{}
	reg := newTestRegistry(t)
	w := NewArchiveWriter(DefaultWriterConfig(), reg, db, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	for _, f := range reg.Feeds() {
		if f.AttachmentCount() != 1 {
			t.Errorf("%s attachments = %d, want 1 after Start", f.Symbol(), f.AttachmentCount())
		}
	}

	stopWriter(t, w)

	for _, f := range reg.Feeds() {
		if f.AttachmentCount() != 0 {
			t.Errorf("%s attachments = %d, want 0 after Stop", f.Symbol(), f.AttachmentCount())
		}
	}
	if db.batchCount() != 0 {
		t.Errorf("batches sent = %d, want 0 with no ticks", db.batchCount())
	}
}
