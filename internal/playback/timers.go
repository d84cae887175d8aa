package playback

import (
	"time"

	"github.com/jonboulle/clockwork"
)

type timerKind int

const (
	timerTransition timerKind = iota + 1
	timerAdvance
)

func (k timerKind) String() string {
	switch k {
	case timerTransition:
		return "transition"
	case timerAdvance:
		return "advance"
	}
	return "unknown"
}

// arena holds the timers armed per generation. Arming for a new generation
// does not stop older ones; callers cancel explicitly before moving on.
type arena struct {
	clock  clockwork.Clock
	timers map[uint64][]clockwork.Timer
}

func newArena(clock clockwork.Clock) *arena {
	return &arena{clock: clock, timers: make(map[uint64][]clockwork.Timer)}
}

func (a *arena) arm(gen uint64, d time.Duration, fire func()) {
	t := a.clock.AfterFunc(d, fire)
	a.timers[gen] = append(a.timers[gen], t)
}

// cancelBefore stops every timer armed for a generation older than gen
func (a *arena) cancelBefore(gen uint64) int {
	stopped := 0
	for g, ts := range a.timers {
		if g >= gen {
			continue
		}
		for _, t := range ts {
			if t.Stop() {
				stopped++
			}
		}
		delete(a.timers, g)
	}
	return stopped
}

func (a *arena) cancelAll() int {
	stopped := 0
	for g, ts := range a.timers {
		for _, t := range ts {
			if t.Stop() {
				stopped++
			}
		}
		delete(a.timers, g)
	}
	return stopped
}

func (a *arena) size() int {
	n := 0
	for _, ts := range a.timers {
		n += len(ts)
	}
	return n
}
