package sim

import (
	"fmt"
	"time"
)

// Clock owns simulated time. It only moves forward, one whole step at a
// time; every candle lookup and trigger check resolves against its current
// timestamp.
type Clock struct {
	current time.Time
	step    time.Duration
}

// NewClock starts a clock at start. A non-positive step defaults to one
// minute, matching the base kline resolution.
func NewClock(start time.Time, step time.Duration) *Clock {
	if step <= 0 {
		step = time.Minute
	}
	return &Clock{current: start.UTC(), step: step}
}

// Current returns the simulated timestamp without mutation.
func (c *Clock) Current() time.Time { return c.current }

// Step returns the advance granularity.
func (c *Clock) Step() time.Duration { return c.step }

// advance moves time forward by one step and returns the new timestamp.
// Callers sweep triggers after each individual step, never only after the
// final one.
func (c *Clock) advance() time.Time {
	c.current = c.current.Add(c.step)
	return c.current
}

// setTime restores a persisted timestamp. Moving backward is a fatal
// consistency failure, not a recoverable condition.
func (c *Clock) setTime(t time.Time) error {
	t = t.UTC()
	if t.Before(c.current) {
		return fmt.Errorf("%w: clock moving backward from %s to %s",
			ErrInvariant, c.current.Format(time.RFC3339), t.Format(time.RFC3339))
	}
	c.current = t
	return nil
}
