package sim

import (
	"errors"
	"testing"
	"time"
)

func TestClockAdvancesOneStep(t *testing.T) {
	c := NewClock(t0, time.Minute)

	if !c.Current().Equal(t0) {
		t.Fatalf("current = %v, want %v", c.Current(), t0)
	}
	got := c.advance()
	if !got.Equal(t0.Add(time.Minute)) {
		t.Fatalf("after advance = %v, want %v", got, t0.Add(time.Minute))
	}
	if c.Step() != time.Minute {
		t.Fatalf("step = %v, want 1m", c.Step())
	}
}

func TestClockDefaultsStepToMinute(t *testing.T) {
	c := NewClock(t0, 0)
	if c.Step() != time.Minute {
		t.Fatalf("step = %v, want 1m", c.Step())
	}
}

func TestClockSetTimeForwardOnly(t *testing.T) {
	c := NewClock(t0, time.Minute)

	if err := c.setTime(t0.Add(time.Hour)); err != nil {
		t.Fatalf("forward setTime: %v", err)
	}
	if err := c.setTime(t0.Add(time.Hour)); err != nil {
		t.Fatalf("same-instant setTime must be allowed: %v", err)
	}
	if err := c.setTime(t0); !errors.Is(err, ErrInvariant) {
		t.Fatalf("backward setTime: err = %v, want ErrInvariant", err)
	}
	if !c.Current().Equal(t0.Add(time.Hour)) {
		t.Fatalf("failed setTime moved the clock")
	}
}

func TestClockNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	c := NewClock(t0.In(loc), time.Minute)
	if c.Current().Location() != time.UTC {
		t.Fatalf("clock location = %v, want UTC", c.Current().Location())
	}
	if !c.Current().Equal(t0) {
		t.Fatalf("UTC normalization changed the instant")
	}
}
