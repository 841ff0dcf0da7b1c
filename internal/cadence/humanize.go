package cadence

import (
	"math"
	"time"
)

// Button hold time model: lognormal in seconds, clamped to a physical range.
const (
	holdMu    = -3.2
	holdSigma = 0.25

	MinHold = 22 * time.Millisecond
	MaxHold = 150 * time.Millisecond
)

// HoldDuration draws how long a button stays pressed. It is independent of
// cadence so rate variation and press length do not correlate.
func HoldDuration(rng Rand) time.Duration {
	s := math.Exp(holdMu + holdSigma*rng.NormFloat64())
	d := seconds(s)
	if d < MinHold {
		return MinHold
	}
	if d > MaxHold {
		return MaxHold
	}
	return d
}

// ReleaseDelay draws a uniform delay in [lo, hi), used for assist outputs
// released after the primary button.
func ReleaseDelay(rng Rand, lo, hi time.Duration) time.Duration {
	return lo + time.Duration(rng.Float64()*float64(hi-lo))
}

// Jitter produces small relative pointer movements applied before a press.
// Drift accumulates slowly across calls and is bounded to ±maxDrift.
type Jitter struct {
	driftX, driftY float64
	rng            Rand
}

const (
	jitterChance  = 0.5
	blatantFactor = 2.2
	driftStep     = 0.2
	maxDrift      = 2.5
)

// NewJitter creates a Jitter with zero drift.
func NewJitter(rng Rand) *Jitter {
	return &Jitter{rng: rng}
}

// Reset clears accumulated drift.
func (j *Jitter) Reset() {
	j.driftX, j.driftY = 0, 0
}

// Drift returns the accumulated drift on each axis.
func (j *Jitter) Drift() (float64, float64) {
	return j.driftX, j.driftY
}

// Next returns the motion to apply for one click. ok is false when no motion
// should be emitted: strength is not positive, the chance roll failed, or both
// axes truncate to zero.
func (j *Jitter) Next(strength float64, level Humanization) (dx, dy int32, ok bool) {
	if strength <= 0 {
		return 0, 0, false
	}
	if j.rng.Float64() >= jitterChance {
		return 0, 0, false
	}
	intensity := strength
	if level == Blatant {
		intensity *= blatantFactor
	}
	gx := j.rng.NormFloat64() * intensity
	gy := j.rng.NormFloat64() * intensity

	j.driftX = clamp(j.driftX+uniform(j.rng, -driftStep, driftStep), -maxDrift, maxDrift)
	j.driftY = clamp(j.driftY+uniform(j.rng, -driftStep, driftStep), -maxDrift, maxDrift)

	dx = int32(gx + j.driftX)
	dy = int32(gy + j.driftY)
	if dx == 0 && dy == 0 {
		return 0, 0, false
	}
	return dx, dy, true
}
