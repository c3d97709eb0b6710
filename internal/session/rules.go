package session

import (
	"log/slog"
	"time"
)

// Debouncer holds at most one pending call; scheduling replaces it
type Debouncer struct {
	sched  Scheduler
	delay  time.Duration
	cancel Cancel
}

func NewDebouncer(sched Scheduler, delay time.Duration) *Debouncer {
	return &Debouncer{sched: sched, delay: delay}
}

// Schedule cancels any pending call and arranges for fn to run after the delay
func (d *Debouncer) Schedule(fn func()) {
	d.Stop()
	d.cancel = d.sched.After(d.delay, func() {
		d.cancel = nil
		fn()
	})
}

// Stop drops the pending call, if any
func (d *Debouncer) Stop() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

// Pending reports whether a call is waiting for its delay to pass
func (d *Debouncer) Pending() bool {
	return d.cancel != nil
}

// seqGate numbers the requests of one slot (frames, detection, ...). Only the
// response to the most recently issued request may touch state.
type seqGate struct {
	latest uint64
}

func (g *seqGate) next() uint64 {
	g.latest++
	return g.latest
}

func (g *seqGate) current(seq uint64) bool {
	return seq == g.latest
}

// invalidate makes every request in flight stale
func (g *seqGate) invalidate() {
	g.latest++
}

// rule re-runs its effect whenever the value of its inputs changes. The effect
// returns a hook that cancels the timers it owns; the hook runs before the
// next re-run and when the controller closes.
type rule struct {
	name   string
	inputs func() any
	run    func() Cancel

	last   any
	primed bool
	cancel Cancel
}

func (r *rule) sync(logger *slog.Logger) {
	key := r.inputs()
	if r.primed && key == r.last {
		return
	}
	r.stop()
	r.last = key
	r.primed = true
	logger.Debug("sync rule fired", "rule", r.name, "inputs", key)
	r.cancel = r.run()
}

func (r *rule) stop() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}
