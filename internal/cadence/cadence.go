// Package cadence generates human-like inter-click delays.
//
// This package has no I/O and never sleeps. Time is always passed in, and all
// randomness comes from a caller-owned Rand so tests can fix the sequence.
package cadence

import (
	"math"
	"time"
)

// Rand is the subset of *math/rand.Rand the generators draw from.
type Rand interface {
	Float64() float64
	NormFloat64() float64
}

// Mood is a transient cadence regime that shifts the effective rate.
type Mood string

const (
	Cruising Mood = "CRUISING"
	Bursting Mood = "BURSTING"
	Tired    Mood = "TIRED"
)

// Humanization selects how aggressive pointer jitter is.
type Humanization string

const (
	Legit   Humanization = "legit"
	Blatant Humanization = "blatant"
)

// Hard bounds on the effective click rate regardless of configured base rate.
const (
	MinCPS = 6.0
	MaxCPS = 22.0
)

// Rate noise applied on top of base rate and mood variance.
const roughnessSigma = 1.5

// moodSpec describes one mood: selection weight, duration range (seconds) and
// variance range (cps).
type moodSpec struct {
	mood           Mood
	weight         float64
	durMin, durMax float64
	varMin, varMax float64
}

var moods = []moodSpec{
	{Cruising, 0.70, 0.4, 1.2, -1.5, 1.5},
	{Bursting, 0.15, 0.2, 0.4, 4.0, 7.0},
	{Tired, 0.15, 0.3, 0.6, -6.0, -3.0},
}

// Channel is the cadence state of one logical click source.
// It is owned by a single goroutine and is not safe for concurrent use.
type Channel struct {
	// BaseRate is the configured target clicks per second.
	BaseRate float64

	mood        Mood
	moodEndTime time.Time
	variance    float64
	lastRate    float64
	rng         Rand
}

// NewChannel creates a channel at the given base rate, in the Cruising mood
// with an already-expired mood timer.
func NewChannel(baseRate float64, rng Rand) *Channel {
	return &Channel{
		BaseRate: baseRate,
		mood:     Cruising,
		rng:      rng,
	}
}

// Reset re-synchronizes the mood timer to now so the next delay request
// re-rolls the mood instead of using one chosen before the channel was idle.
func (c *Channel) Reset(now time.Time) {
	c.mood = Cruising
	c.moodEndTime = now
	c.variance = 0
}

// NextDelay returns the delay until the next click. Calling it rolls a new
// mood when the current one has expired, so call it once per emitted click.
func (c *Channel) NextDelay(now time.Time) time.Duration {
	if !now.Before(c.moodEndTime) {
		c.rollMood(now)
	}
	rate := c.BaseRate + c.variance + c.rng.NormFloat64()*roughnessSigma
	rate = clamp(rate, MinCPS, MaxCPS)
	c.lastRate = rate
	return RateToDelay(rate)
}

func (c *Channel) rollMood(now time.Time) {
	r := c.rng.Float64()
	pick := moods[len(moods)-1]
	acc := 0.0
	for _, m := range moods {
		acc += m.weight
		if r < acc {
			pick = m
			break
		}
	}
	c.mood = pick.mood
	dur := uniform(c.rng, pick.durMin, pick.durMax)
	c.moodEndTime = now.Add(seconds(dur))
	c.variance = uniform(c.rng, pick.varMin, pick.varMax)
}

// Mood returns the current mood.
func (c *Channel) Mood() Mood { return c.mood }

// MoodEndTime returns when the current mood expires.
func (c *Channel) MoodEndTime() time.Time { return c.moodEndTime }

// Variance returns the rate offset of the current mood.
func (c *Channel) Variance() float64 { return c.variance }

// LastRate returns the effective rate used by the most recent NextDelay.
func (c *Channel) LastRate() float64 { return c.lastRate }

// RateToDelay converts clicks per second to the interval between clicks.
func RateToDelay(cps float64) time.Duration {
	return seconds(1.0 / cps)
}

func uniform(rng Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
