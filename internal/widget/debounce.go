package widget

import (
	"time"

	"github.com/likecoin/likecoin-button/internal/clock"
)

// debouncer runs fn once the trigger calls stop for delay. It is guarded by the widget lock;
// fn receives the generation it was armed for so a late timer can tell it was superseded.
type debouncer struct {
	clock clock.Clock
	delay time.Duration
	fn    func(gen uint64)
	timer clock.Timer
	gen   uint64
}

func newDebouncer(c clock.Clock, delay time.Duration, fn func(gen uint64)) *debouncer {
	return &debouncer{clock: c, delay: delay, fn: fn}
}

func (d *debouncer) trigger() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fn(gen) })
}

// fired claims the pending run for gen. It reports false for superseded or stopped runs.
func (d *debouncer) fired(gen uint64) bool {
	if d.timer == nil || gen != d.gen {
		return false
	}
	d.timer = nil
	return true
}

func (d *debouncer) stop() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}
