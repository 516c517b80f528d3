package persist

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/erdsync/internal/diagram"
	"github.com/roach88/erdsync/internal/schedule"
)

// DefaultDelay is the quiet period before a snapshot is written.
const DefaultDelay = 500 * time.Millisecond

// PositionSource reports the rendered geometry of tables, areas and notes,
// keyed by entity id. Rendered geometry may be ahead of the domain model
// while a gesture is in progress.
type PositionSource interface {
	RenderedBounds() map[string]diagram.Rect
}

// Scheduler owns the single debounced save task for one model.
//
// Scheduler must be driven from the model's owner goroutine; its timer
// callback is delivered there through the configured Poster.
type Scheduler struct {
	model     *diagram.Model
	positions PositionSource
	writer    *AsyncWriter
	debounce  *schedule.Debouncer
	now       func() time.Time
	stop      func()
}

// Option configures a Scheduler.
type Option func(*schedulerConfig)

type schedulerConfig struct {
	timer schedule.Timer
	post  schedule.Poster
	delay time.Duration
	now   func() time.Time
}

// WithTimer sets the timer implementation.
func WithTimer(t schedule.Timer) Option {
	return func(c *schedulerConfig) { c.timer = t }
}

// WithPoster delivers the timer callback onto the owner goroutine.
func WithPoster(p schedule.Poster) Option {
	return func(c *schedulerConfig) { c.post = p }
}

// WithDelay sets the debounce window.
func WithDelay(d time.Duration) Option {
	return func(c *schedulerConfig) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithNow overrides the clock used to stamp updatedAt.
func WithNow(now func() time.Time) Option {
	return func(c *schedulerConfig) { c.now = now }
}

// NewScheduler observes m and writes through w. positions may be nil, in
// which case domain geometry is written as is.
func NewScheduler(m *diagram.Model, positions PositionSource, w *AsyncWriter, opts ...Option) *Scheduler {
	cfg := schedulerConfig{delay: DefaultDelay, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Scheduler{
		model:     m,
		positions: positions,
		writer:    w,
		now:       cfg.now,
	}
	s.debounce = schedule.NewDebouncer(cfg.timer, cfg.delay, cfg.post, s.fire)
	s.stop = m.Observe(s.onChange)
	return s
}

func (s *Scheduler) onChange(c diagram.Change) {
	if c.Kind == diagram.ChangeLoad {
		// A save scheduled before the load would write the new diagram.
		if s.debounce.Cancel() {
			slog.Warn("persist: pending save dropped by load", "diagram", c.IDs)
		}
		return
	}
	if !c.Persistable() {
		return
	}
	s.debounce.Trigger()
}

func (s *Scheduler) fire() {
	d := s.Snapshot()
	if d.ID == "" {
		slog.Debug("persist: no diagram loaded, skipping write")
		return
	}
	s.writer.Submit(d)
}

// Snapshot assembles the payload a write would carry now.
func (s *Scheduler) Snapshot() diagram.Diagram {
	d := s.model.Snapshot()
	if s.positions != nil {
		Overlay(&d, s.positions.RenderedBounds())
	}
	d.UpdatedAt = s.now().UTC()
	return d
}

// Overlay copies rendered geometry into d. Table width is only written
// when it differs from the table's effective width, so default-width
// tables stay default-width.
func Overlay(d *diagram.Diagram, bounds map[string]diagram.Rect) {
	for i := range d.Tables {
		t := &d.Tables[i]
		b, ok := bounds[t.ID]
		if !ok {
			continue
		}
		t.X, t.Y = b.X, b.Y
		if b.Width > 0 && b.Width != t.EffectiveWidth() {
			t.Width = b.Width
		}
	}
	for i := range d.Areas {
		a := &d.Areas[i]
		if b, ok := bounds[a.ID]; ok {
			a.X, a.Y, a.Width, a.Height = b.X, b.Y, b.Width, b.Height
		}
	}
	for i := range d.Notes {
		n := &d.Notes[i]
		if b, ok := bounds[n.ID]; ok {
			n.X, n.Y, n.Width, n.Height = b.X, b.Y, b.Width, b.Height
		}
	}
}

// Pending reports whether a save is scheduled.
func (s *Scheduler) Pending() bool { return s.debounce.Pending() }

// Flush cancels the scheduled save and submits the current snapshot
// immediately. Use Wait to block until it is written.
func (s *Scheduler) Flush() {
	s.debounce.Cancel()
	s.fire()
}

// Wait blocks until the writer is idle.
func (s *Scheduler) Wait(ctx context.Context) error {
	return s.writer.Wait(ctx)
}

// Stats returns the writer counters.
func (s *Scheduler) Stats() Stats { return s.writer.Stats() }

// Close stops observing the model and cancels the scheduled save. It does
// not close the writer.
func (s *Scheduler) Close() {
	s.stop()
	s.debounce.Close()
}
