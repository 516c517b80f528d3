// Package persist schedules coalesced snapshot writes of the domain model.
//
// A Scheduler rearms one debounced task on every persistable change. When
// it fires (on the owner goroutine) it assembles a full snapshot with the
// latest rendered geometry and hands it to an AsyncWriter, which performs
// the I/O on its own goroutine. The writer holds at most one pending
// snapshot per diagram and always replaces it with the newest, so a delayed
// earlier snapshot can never overwrite a later one. Snapshots of different
// diagrams are written in submission order.
package persist

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/erdsync/internal/diagram"
)

// Saver is the write half of the backing store.
type Saver interface {
	SaveDiagram(ctx context.Context, d diagram.Diagram) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, d diagram.Diagram) error

// SaveDiagram implements Saver.
func (f SaverFunc) SaveDiagram(ctx context.Context, d diagram.Diagram) error { return f(ctx, d) }

// DefaultWriteTimeout bounds a single backing-store write.
const DefaultWriteTimeout = 30 * time.Second

// Stats summarizes writer activity.
type Stats struct {
	Submitted    int64  `json:"submitted"`
	Writes       int64  `json:"writes"`
	Failures     int64  `json:"failures"`
	LastChecksum string `json:"lastChecksum,omitempty"`
	LastError    string `json:"lastError,omitempty"`
}

// AsyncWriter serializes snapshot writes on a dedicated goroutine.
//
// Thread-safety: all methods are safe for concurrent use.
type AsyncWriter struct {
	saver   Saver
	timeout time.Duration

	mu       sync.Mutex
	pending  []diagram.Diagram
	inFlight bool
	closed   bool
	waiters  []chan struct{}
	stats    Stats
	lastErr  error

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// WriterOption configures an AsyncWriter.
type WriterOption func(*AsyncWriter)

// WithWriteTimeout bounds each write.
func WithWriteTimeout(d time.Duration) WriterOption {
	return func(w *AsyncWriter) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// NewAsyncWriter starts a writer goroutine. Close stops it.
func NewAsyncWriter(saver Saver, opts ...WriterOption) *AsyncWriter {
	w := &AsyncWriter{
		saver:   saver,
		timeout: DefaultWriteTimeout,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	go w.loop()
	return w
}

// Submit replaces the pending snapshot of d's diagram with d, or queues d
// behind snapshots of other diagrams. Returns false once closed.
func (w *AsyncWriter) Submit(d diagram.Diagram) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	replaced := false
	for i := range w.pending {
		if w.pending[i].ID == d.ID {
			slog.Debug("persist: superseding pending snapshot", "diagram", d.ID)
			w.pending[i] = d
			replaced = true
			break
		}
	}
	if !replaced {
		w.pending = append(w.pending, d)
	}
	w.stats.Submitted++
	select {
	case w.wake <- struct{}{}:
	default:
	}
	return true
}

func (w *AsyncWriter) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case <-w.wake:
		}
		for w.writeNext() {
		}
	}
}

// writeNext performs one write. Reports whether one was attempted.
func (w *AsyncWriter) writeNext() bool {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.notifyIdleLocked()
		w.mu.Unlock()
		return false
	}
	d := w.pending[0]
	w.pending = w.pending[1:]
	w.inFlight = true
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	err := w.saver.SaveDiagram(ctx, d)
	cancel()

	w.mu.Lock()
	w.inFlight = false
	w.lastErr = err
	if err != nil {
		w.stats.Failures++
		w.stats.LastError = err.Error()
		slog.Error("persist: write failed",
			"diagram", d.ID,
			"error", err,
		)
	} else {
		w.stats.Writes++
		w.stats.LastError = ""
		if sum, cerr := diagram.Checksum(d); cerr == nil {
			w.stats.LastChecksum = sum
		}
		slog.Debug("persist: wrote snapshot",
			"diagram", d.ID,
			"checksum", w.stats.LastChecksum,
		)
	}
	w.mu.Unlock()
	return true
}

func (w *AsyncWriter) notifyIdleLocked() {
	if w.inFlight || len(w.pending) > 0 {
		return
	}
	for _, ch := range w.waiters {
		close(ch)
	}
	w.waiters = nil
}

// Wait blocks until no snapshot is pending or in flight, then returns the
// result of the last write.
func (w *AsyncWriter) Wait(ctx context.Context) error {
	w.mu.Lock()
	if !w.inFlight && len(w.pending) == 0 {
		err := w.lastErr
		w.mu.Unlock()
		return err
	}
	ch := make(chan struct{})
	w.waiters = append(w.waiters, ch)
	w.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Stats returns a copy of the writer counters.
func (w *AsyncWriter) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Close drops any pending snapshots, waits for an in-flight write to finish,
// and stops the goroutine.
func (w *AsyncWriter) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.pending = nil
	w.mu.Unlock()

	close(w.stop)
	<-w.done

	w.mu.Lock()
	w.notifyIdleLocked()
	w.mu.Unlock()
}
