// Package countdown turns a scheduled start time and the local clock into a
// remaining-time breakdown and an edge-triggered "live" signal.
//
// Every tick recomputes from the clock instead of arming a single deadline
// timer, so a client whose process was suspended notices on its first tick
// after resuming that the start has already passed.
package countdown

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// LiveText is shown in place of the breakdown once the party is live.
const LiveText = "Live"

// DefaultInterval is the countdown tick period.
const DefaultInterval = time.Second

// Breakdown is the time remaining until start, split for display.
type Breakdown struct {
	Days    int64 `json:"days"`
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
	Seconds int64 `json:"seconds"`
}

// Total returns the number of seconds the breakdown represents.
func (b Breakdown) Total() int64 {
	return b.Days*86400 + b.Hours*3600 + b.Minutes*60 + b.Seconds
}

func (b Breakdown) String() string {
	return fmt.Sprintf("%dd %dh %dm %ds", b.Days, b.Hours, b.Minutes, b.Seconds)
}

// SecondsUntil returns start - now in whole epoch seconds. Negative after start.
func SecondsUntil(now, start time.Time) int64 {
	return start.Unix() - now.Unix()
}

// Until splits the time remaining before start. It returns the zero
// Breakdown once start has been reached.
func Until(now, start time.Time) Breakdown {
	remaining := SecondsUntil(now, start)
	if remaining <= 0 {
		return Breakdown{}
	}
	return Breakdown{
		Days:    remaining / 86400,
		Hours:   (remaining % 86400) / 3600,
		Minutes: (remaining % 3600) / 60,
		Seconds: remaining % 60,
	}
}

// FormatPosition renders a playback position as m:ss.
func FormatPosition(d time.Duration) string {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// Reading is the result of one countdown observation.
type Reading struct {
	At        time.Time
	Remaining int64 // seconds until start, negative after start
	Breakdown Breakdown
	Live      bool
	Edge      bool // true only on the first observation that is live
}

// Text returns the display string for the reading.
func (r Reading) Text() string {
	if r.Live {
		return LiveText
	}
	return r.Breakdown.String()
}

// Detector performs edge detection on successive observations. It fires Edge
// exactly once, no matter how many ticks are skipped around the start.
// A Detector is not safe for concurrent use.
type Detector struct {
	start time.Time
	fired bool
}

// NewDetector creates a detector for the given start time.
func NewDetector(start time.Time) *Detector {
	return &Detector{start: start}
}

// Observe evaluates the countdown at now.
func (d *Detector) Observe(now time.Time) Reading {
	remaining := SecondsUntil(now, d.start)
	r := Reading{
		At:        now,
		Remaining: remaining,
		Breakdown: Until(now, d.start),
		Live:      remaining <= 0,
	}
	if r.Live && !d.fired {
		d.fired = true
		r.Edge = true
	}
	return r
}

// Fired reports whether the live edge has already been emitted.
func (d *Detector) Fired() bool {
	return d.fired
}

// Clock owns the countdown ticker for a single session. The owner selects on
// Ticks and calls Tick from its own event loop.
type Clock struct {
	clock    clockwork.Clock
	interval time.Duration
	detector *Detector
	ticker   clockwork.Ticker
}

// NewClock creates a stopped countdown clock.
func NewClock(clock clockwork.Clock, start time.Time, interval time.Duration) *Clock {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Clock{
		clock:    clock,
		interval: interval,
		detector: NewDetector(start),
	}
}

// Start acquires the ticker and returns an immediate first reading, so a
// client that is already past start goes live without waiting a tick.
func (c *Clock) Start() Reading {
	if c.ticker == nil {
		c.ticker = c.clock.NewTicker(c.interval)
	}
	return c.Tick()
}

// Ticks returns the tick channel, or nil when the clock is stopped. A nil
// channel never fires in a select.
func (c *Clock) Ticks() <-chan time.Time {
	if c.ticker == nil {
		return nil
	}
	return c.ticker.Chan()
}

// Tick observes the countdown against the current clock reading.
func (c *Clock) Tick() Reading {
	return c.detector.Observe(c.clock.Now())
}

// Running reports whether the ticker is held.
func (c *Clock) Running() bool {
	return c.ticker != nil
}

// Stop releases the ticker. It is safe to call more than once.
func (c *Clock) Stop() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
}
