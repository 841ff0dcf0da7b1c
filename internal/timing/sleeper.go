// Package timing provides the precise wait primitive used by the click engine.
//
// Sleeping in the OS scheduler alone oversleeps by up to a scheduler quantum,
// which shows up directly as irregular click cadence. Sleeper therefore sleeps
// coarsely for most of the remaining time and spins for the final stretch.
package timing

import (
	"math/rand"
	"time"
)

// Defaults for NewSleeper.
const (
	DefaultSpinCap = 250 * time.Microsecond
	DefaultDrift   = 20 * time.Microsecond
)

// Sleeper waits until an absolute deadline with bounded jitter.
// A Sleeper is not safe for concurrent use; each engine owns its own.
type Sleeper struct {
	// SpinCap is the final interval that is busy-waited instead of slept.
	SpinCap time.Duration
	// Drift is the bound of the uniform offset added to every target so two
	// waits on the same nominal deadline never land on identical instants.
	Drift time.Duration

	now   func() time.Time
	sleep func(time.Duration)
	rng   *rand.Rand
}

// NewSleeper creates a Sleeper with the default spin cap and drift.
func NewSleeper(rng *rand.Rand) *Sleeper {
	return &Sleeper{
		SpinCap: DefaultSpinCap,
		Drift:   DefaultDrift,
		now:     time.Now,
		sleep:   time.Sleep,
		rng:     rng,
	}
}

// SleepUntil returns at or after target plus a random drift in [-Drift, +Drift].
// It cannot be cancelled; callers check for shutdown between calls.
func (s *Sleeper) SleepUntil(target time.Time) {
	target = target.Add(s.drift())
	for {
		rem := target.Sub(s.now())
		if rem <= 0 {
			return
		}
		if rem > s.SpinCap {
			s.sleep(rem - s.SpinCap)
		}
	}
}

func (s *Sleeper) drift() time.Duration {
	if s.Drift <= 0 || s.rng == nil {
		return 0
	}
	return time.Duration((s.rng.Float64()*2 - 1) * float64(s.Drift))
}

// Clock is the wall clock used by the engine in production: monotonic Now,
// plain coarse Sleep for idle waits, and Sleeper for deadline waits.
type Clock struct {
	sleeper *Sleeper
}

// NewClock creates a Clock backed by the given Sleeper.
func NewClock(sleeper *Sleeper) *Clock {
	return &Clock{sleeper: sleeper}
}

// Now returns the current time.
func (c *Clock) Now() time.Time { return time.Now() }

// Sleep blocks for d using the OS scheduler.
func (c *Clock) Sleep(d time.Duration) { time.Sleep(d) }

// SleepUntil blocks until target using the high-resolution Sleeper.
func (c *Clock) SleepUntil(target time.Time) { c.sleeper.SleepUntil(target) }
