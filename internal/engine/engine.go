package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/erdsync/internal/bus"
	"github.com/roach88/erdsync/internal/diagram"
	"github.com/roach88/erdsync/internal/fieldtype"
	"github.com/roach88/erdsync/internal/filter"
	"github.com/roach88/erdsync/internal/overlap"
	"github.com/roach88/erdsync/internal/persist"
	"github.com/roach88/erdsync/internal/schedule"
	"github.com/roach88/erdsync/internal/view"
)

// Defaults for the engine's scheduled tasks.
const (
	DefaultFrameInterval = 16 * time.Millisecond
	DefaultPulseDuration = 600 * time.Millisecond
)

// Notifier receives user-facing warnings for rejected gestures.
type Notifier interface {
	Warn(err *RejectError)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(err *RejectError)

// Warn implements Notifier.
func (f NotifierFunc) Warn(err *RejectError) { f(err) }

type logNotifier struct{}

func (logNotifier) Warn(err *RejectError) {
	slog.Warn("gesture rejected", "code", err.Code, "message", err.Message)
}

// Engine is the single-writer synchronization engine for one diagram.
type Engine struct {
	model *diagram.Model
	bus   *bus.Bus
	subs  []*bus.Subscription
	queue *taskQueue

	ids        IDGenerator
	timer      schedule.Timer
	notifier   Notifier
	filterFunc filter.Func
	typeFunc   fieldtype.Func

	filter        *filter.Filter
	filterVersion int64
	filterLoading bool
	defaultSchema string
	showViews     bool
	force         *filter.ForceShowSet
	forceVersion  int64
	readOnly      bool

	projector *view.Projector
	nodes     []*view.Node
	edges     []*view.Edge
	graph     *overlap.Graph

	frameInterval time.Duration
	pulseDuration time.Duration
	pulse         *schedule.Pulse
	throttle      *schedule.Throttler
	connect       *connection

	saver     persist.Saver
	saveDelay time.Duration
	writer    *persist.AsyncWriter
	persist   *persist.Scheduler

	closed bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimer sets the timer used by every scheduled task. Tests pass a
// testutil.ManualScheduler.
func WithTimer(t schedule.Timer) Option {
	return func(e *Engine) { e.timer = t }
}

// WithIDGenerator sets the id source for created relationships and
// dependencies.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithNotifier routes rejection warnings.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithFilterFunc replaces the default filter predicate.
func WithFilterFunc(f filter.Func) Option {
	return func(e *Engine) { e.filterFunc = f }
}

// WithTypeFunc replaces the default type-compatibility predicate.
func WithTypeFunc(f fieldtype.Func) Option {
	return func(e *Engine) { e.typeFunc = f }
}

// WithReadOnly starts the engine in read-only mode.
func WithReadOnly(ro bool) Option {
	return func(e *Engine) { e.readOnly = ro }
}

// WithShowViews sets the initial show-views flag (default true).
func WithShowViews(show bool) Option {
	return func(e *Engine) { e.showViews = show }
}

// WithDefaultSchema sets the schema assumed for schema-less tables.
func WithDefaultSchema(s string) Option {
	return func(e *Engine) { e.defaultSchema = s }
}

// WithFrameInterval sets the pointer-tracking throttle interval.
func WithFrameInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.frameInterval = d
		}
	}
}

// WithPulseDuration sets how long the overlap highlight stays on.
func WithPulseDuration(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pulseDuration = d
		}
	}
}

// WithPersistence enables debounced snapshot writes through s. A zero
// delay uses persist.DefaultDelay.
func WithPersistence(s persist.Saver, delay time.Duration) Option {
	return func(e *Engine) {
		e.saver = s
		e.saveDelay = delay
	}
}

// New creates an engine over m. b must be the bus m publishes into; the
// engine subscribes to it for the lifetime of the engine.
func New(m *diagram.Model, b *bus.Bus, opts ...Option) *Engine {
	e := &Engine{
		model:         m,
		bus:           b,
		queue:         newTaskQueue(),
		ids:           UUIDv7Generator{},
		timer:         schedule.RealTimer{},
		notifier:      logNotifier{},
		filterFunc:    filter.Match,
		typeFunc:      fieldtype.Compatible,
		showViews:     true,
		projector:     view.NewProjector(),
		graph:         overlap.Empty(),
		frameInterval: DefaultFrameInterval,
		pulseDuration: DefaultPulseDuration,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.pulse = schedule.NewPulse(e.timer, e.pulseDuration, e.post, e.refresh)
	e.throttle = schedule.NewThrottler(e.timer, e.frameInterval, e.post)
	if e.saver != nil {
		e.writer = persist.NewAsyncWriter(e.saver)
		e.persist = persist.NewScheduler(m, e, e.writer,
			persist.WithTimer(e.timer),
			persist.WithPoster(e.post),
			persist.WithDelay(e.saveDelay),
		)
	}
	if b != nil {
		e.subscribe()
	}

	e.rebuildOverlap()
	e.refresh()
	return e
}

// post enqueues f onto the engine goroutine. It is the Poster for every
// scheduled task.
func (e *Engine) post(f func()) {
	e.queue.Enqueue(Task{Name: "timer", Fn: func() error {
		f()
		return nil
	}})
}

// Model returns the domain model. Mutate it only on the engine goroutine.
func (e *Engine) Model() *diagram.Model { return e.model }

// Enqueue submits a task for the Run loop.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the engine has been closed.
func (e *Engine) Enqueue(t Task) bool {
	return e.queue.Enqueue(t)
}

// QueueLen returns the number of queued tasks.
func (e *Engine) QueueLen() int { return e.queue.Len() }

// Call runs fn on the engine goroutine and returns its error. Run must be
// running (or ProcessPending called by someone else) for Call to return.
// Thread-safe, but must not be called from the engine goroutine itself.
func (e *Engine) Call(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	if !e.queue.Enqueue(Task{Name: "call", Fn: fn, done: done}) {
		return ErrClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Run starts the single-writer loop. It blocks until ctx is cancelled or
// Close is called.
//
// ERROR HANDLING: a task that fails is logged and the loop continues.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting", "diagram", e.model.ID())

	for {
		if t, ok := e.queue.TryDequeue(); ok {
			e.execute(t)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			if e.queue.Closed() && e.queue.Len() == 0 {
				slog.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// ProcessPending executes queued tasks on the calling goroutine until the
// queue is empty. Returns the number of tasks executed.
func (e *Engine) ProcessPending(ctx context.Context) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		t, ok := e.queue.TryDequeue()
		if !ok {
			return n, nil
		}
		e.execute(t)
		n++
	}
}

func (e *Engine) execute(t Task) {
	err := e.runTask(t)
	e.refresh()
	if t.done != nil {
		t.done <- err
		return
	}
	if err != nil {
		slog.Error("engine task failed",
			"task", t.Name,
			"error", err,
		)
	}
}

func (e *Engine) runTask(t Task) (err error) {
	if e.closed {
		return ErrClosed
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", t.Name, r)
		}
	}()
	return t.Fn()
}

// Close unsubscribes from the bus, cancels every scheduled task, drops the
// pending save, and stops the queue. No scheduled callback runs after
// Close. Call it on the engine goroutine or after Run has returned.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.closed = true
	for _, s := range e.subs {
		s.Unsubscribe()
	}
	e.subs = nil
	e.throttle.Close()
	e.pulse.Close()
	if e.persist != nil {
		e.persist.Close()
		e.writer.Close()
	}
	e.queue.Close()
}

// Load replaces the diagram being edited. A save still pending for the
// outgoing diagram is submitted first, with its rendered geometry, so
// edits made before the switch are not lost. Call it on the engine
// goroutine.
func (e *Engine) Load(d diagram.Diagram) {
	if e.persist != nil && e.persist.Pending() {
		slog.Debug("flushing pending save before load", "diagram", e.model.ID(), "next", d.ID)
		e.persist.Flush()
	}
	e.model.Load(d)
}

// Flush writes the current snapshot immediately and waits for the write.
// It must be called from outside the engine goroutine while Run is active.
func (e *Engine) Flush(ctx context.Context) error {
	if e.persist == nil {
		return nil
	}
	if err := e.Call(ctx, func() error {
		e.persist.Flush()
		return nil
	}); err != nil {
		return err
	}
	return e.persist.Wait(ctx)
}

// WaitSaved blocks until every submitted snapshot has been written. A
// debounced save that has not fired yet is not forced.
func (e *Engine) WaitSaved(ctx context.Context) error {
	if e.persist == nil {
		return nil
	}
	return e.persist.Wait(ctx)
}

// PersistStats reports writer counters. The zero value is returned when
// persistence is disabled.
func (e *Engine) PersistStats() persist.Stats {
	if e.persist == nil {
		return persist.Stats{}
	}
	return e.persist.Stats()
}

// SavePending reports whether a debounced save is scheduled.
func (e *Engine) SavePending() bool {
	return e.persist != nil && e.persist.Pending()
}

// Nodes returns the current visual node list.
func (e *Engine) Nodes() []*view.Node { return e.nodes }

// Edges returns the current visual edge list.
func (e *Engine) Edges() []*view.Edge { return e.edges }

// Overlap returns the current overlap graph.
func (e *Engine) Overlap() *overlap.Graph { return e.graph }

// HasOverlap reports whether any two visible tables overlap.
func (e *Engine) HasOverlap() bool { return e.graph.HasAny() }

// OverlapClusters returns groups of mutually stacked tables.
func (e *Engine) OverlapClusters() [][]string { return e.graph.Clusters() }

// PulseActive reports whether the overlap highlight pulse is on.
func (e *Engine) PulseActive() bool { return e.pulse.Active() }

// ReadOnly reports whether removals are currently filtered out.
func (e *Engine) ReadOnly() bool { return e.readOnly }

// RenderedBounds implements persist.PositionSource.
func (e *Engine) RenderedBounds() map[string]diagram.Rect {
	out := make(map[string]diagram.Rect, len(e.nodes))
	for _, n := range e.nodes {
		if n.Ephemeral() {
			continue
		}
		out[n.ID] = n.Bounds()
	}
	return out
}
