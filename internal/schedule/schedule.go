// Package schedule provides cancellable scheduled tasks with a
// single-instance invariant: arming a task always cancels the previous
// instance first.
//
// Timers fire on their own goroutine. Every task therefore takes a Poster
// that moves the callback onto the owner's goroutine (for the engine, its
// event queue). A fire that was superseded by a later Trigger or Cancel,
// or that lands after Close, is dropped on the owner's side, so no callback
// ever observes state that was torn down.
package schedule

import (
	"sync"
	"time"
)

// Handle cancels a scheduled callback.
type Handle interface {
	Stop() bool
}

// Timer schedules callbacks. RealTimer uses the wall clock;
// testutil.ManualScheduler advances virtual time.
type Timer interface {
	AfterFunc(d time.Duration, f func()) Handle
}

// RealTimer schedules with time.AfterFunc.
type RealTimer struct{}

// AfterFunc implements Timer.
func (RealTimer) AfterFunc(d time.Duration, f func()) Handle {
	return time.AfterFunc(d, f)
}

// Poster runs f on the owner's goroutine.
type Poster func(f func())

// Immediate runs f on the calling goroutine.
func Immediate(f func()) { f() }

// task is the shared cancel-before-reschedule core.
type task struct {
	mu     sync.Mutex
	timer  Timer
	post   Poster
	handle Handle
	gen    uint64
	closed bool
}

func (t *task) init(tm Timer, post Poster) {
	if tm == nil {
		tm = RealTimer{}
	}
	if post == nil {
		post = Immediate
	}
	t.timer = tm
	t.post = post
}

// arm cancels any pending instance and schedules run after d.
func (t *task) arm(d time.Duration, run func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	if t.handle != nil {
		t.handle.Stop()
	}
	t.gen++
	gen := t.gen
	t.handle = t.timer.AfterFunc(d, func() {
		t.post(func() {
			if !t.claim(gen) {
				return
			}
			run()
		})
	})
	return true
}

// claim reports whether the instance gen is still current and, if so,
// marks it consumed.
func (t *task) claim(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || gen != t.gen || t.handle == nil {
		return false
	}
	t.handle = nil
	return true
}

func (t *task) cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.handle == nil {
		return false
	}
	t.handle.Stop()
	t.handle = nil
	t.gen++
	return true
}

func (t *task) pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handle != nil
}

func (t *task) close() {
	t.cancel()
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

// Debouncer runs fn once after delay has passed since the last Trigger.
type Debouncer struct {
	task
	delay time.Duration
	fn    func()
}

// NewDebouncer creates a debouncer. A nil timer uses RealTimer; a nil
// poster runs callbacks on the timer goroutine.
func NewDebouncer(t Timer, delay time.Duration, post Poster, fn func()) *Debouncer {
	d := &Debouncer{delay: delay, fn: fn}
	d.init(t, post)
	return d
}

// Trigger cancels the pending run, if any, and schedules a new one.
// Returns false once the debouncer is closed.
func (d *Debouncer) Trigger() bool {
	return d.arm(d.delay, d.fn)
}

// Cancel drops the pending run. Reports whether one was pending.
func (d *Debouncer) Cancel() bool { return d.cancel() }

// Pending reports whether a run is scheduled.
func (d *Debouncer) Pending() bool { return d.pending() }

// Close cancels and disables the debouncer.
func (d *Debouncer) Close() { d.close() }

// Delay returns the configured quiet period.
func (d *Debouncer) Delay() time.Duration { return d.delay }

// Throttler runs the most recently scheduled function at most once per
// interval (one render frame for pointer tracking). Calls made while a run
// is pending replace the function without rescheduling.
type Throttler struct {
	task
	interval time.Duration

	fmu    sync.Mutex
	latest func()
}

// NewThrottler creates a throttler.
func NewThrottler(t Timer, interval time.Duration, post Poster) *Throttler {
	th := &Throttler{interval: interval}
	th.init(t, post)
	return th
}

// Schedule records fn as the next function to run.
func (th *Throttler) Schedule(fn func()) {
	th.fmu.Lock()
	th.latest = fn
	th.fmu.Unlock()

	if th.pending() {
		return
	}
	th.arm(th.interval, func() {
		th.fmu.Lock()
		f := th.latest
		th.latest = nil
		th.fmu.Unlock()
		if f != nil {
			f()
		}
	})
}

// Cancel drops the pending run and the recorded function.
func (th *Throttler) Cancel() bool {
	th.fmu.Lock()
	th.latest = nil
	th.fmu.Unlock()
	return th.cancel()
}

// Pending reports whether a run is scheduled.
func (th *Throttler) Pending() bool { return th.pending() }

// Close cancels and disables the throttler.
func (th *Throttler) Close() {
	th.fmu.Lock()
	th.latest = nil
	th.fmu.Unlock()
	th.close()
}

// Pulse is a time-bounded boolean. Start turns it on and (re)arms the
// timer that turns it off; onEnd runs on the owner goroutine when it does.
//
// Active is only meaningful on the owner goroutine.
type Pulse struct {
	task
	duration time.Duration
	active   bool
	onEnd    func()
}

// NewPulse creates a pulse.
func NewPulse(t Timer, duration time.Duration, post Poster, onEnd func()) *Pulse {
	p := &Pulse{duration: duration, onEnd: onEnd}
	p.init(t, post)
	return p
}

// Start activates the pulse for its duration, restarting the countdown if
// it is already active.
func (p *Pulse) Start() {
	if !p.arm(p.duration, p.end) {
		return
	}
	p.active = true
}

func (p *Pulse) end() {
	p.active = false
	if p.onEnd != nil {
		p.onEnd()
	}
}

// Active reports whether the pulse is on.
func (p *Pulse) Active() bool { return p.active }

// Stop ends the pulse early without calling onEnd.
func (p *Pulse) Stop() {
	p.cancel()
	p.active = false
}

// Close stops and disables the pulse.
func (p *Pulse) Close() {
	p.close()
	p.active = false
}
