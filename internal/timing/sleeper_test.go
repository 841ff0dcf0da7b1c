package timing

import (
	"math/rand"
	"testing"
	"time"
)

// virtualTime is a manual clock: sleeping advances it, spinning advances it by
// a fixed polling cost so the busy loop terminates.
type virtualTime struct {
	now      time.Time
	pollCost time.Duration
	sleeps   []time.Duration
	polls    int
}

func (v *virtualTime) Now() time.Time {
	v.polls++
	t := v.now
	v.now = v.now.Add(v.pollCost)
	return t
}

func (v *virtualTime) Sleep(d time.Duration) {
	v.sleeps = append(v.sleeps, d)
	v.now = v.now.Add(d)
}

func newVirtualSleeper(v *virtualTime, drift time.Duration) *Sleeper {
	s := NewSleeper(rand.New(rand.NewSource(1)))
	s.Drift = drift
	s.now = v.Now
	s.sleep = v.Sleep
	return s
}

func TestSleepUntilNeverReturnsEarly(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v := &virtualTime{now: start, pollCost: time.Microsecond}
	s := newVirtualSleeper(v, 0)

	target := start.Add(10 * time.Millisecond)
	s.SleepUntil(target)

	if v.now.Before(target) {
		t.Errorf("returned at %v, before target %v", v.now.Sub(start), target.Sub(start))
	}
}

func TestSleepUntilSpinsFinalInterval(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v := &virtualTime{now: start, pollCost: time.Microsecond}
	s := newVirtualSleeper(v, 0)

	s.SleepUntil(start.Add(10 * time.Millisecond))

	if len(v.sleeps) != 1 {
		t.Fatalf("expected exactly 1 coarse sleep, got %d", len(v.sleeps))
	}
	// The first Now() consumed one poll cost before the sleep was computed.
	want := 10*time.Millisecond - DefaultSpinCap
	if v.sleeps[0] != want {
		t.Errorf("coarse sleep: got %v, want %v", v.sleeps[0], want)
	}
	// Remaining spin ~250us at 1us per poll.
	if v.polls < 200 {
		t.Errorf("expected spin polling for the final interval, got %d polls", v.polls)
	}
}

func TestSleepUntilPastTargetReturnsImmediately(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v := &virtualTime{now: start, pollCost: time.Microsecond}
	s := newVirtualSleeper(v, 0)

	s.SleepUntil(start.Add(-time.Second))

	if len(v.sleeps) != 0 {
		t.Errorf("expected no sleeps, got %v", v.sleeps)
	}
	if v.polls != 1 {
		t.Errorf("expected a single clock read, got %d", v.polls)
	}
}

func TestSleepUntilDriftBounded(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	drift := 20 * time.Microsecond
	target := start.Add(5 * time.Millisecond)

	distinct := make(map[time.Time]bool)
	for i := 0; i < 50; i++ {
		v := &virtualTime{now: start, pollCost: 100 * time.Nanosecond}
		s := newVirtualSleeper(v, drift)
		s.rng = rand.New(rand.NewSource(int64(i)))

		s.SleepUntil(target)

		if v.now.Before(target.Add(-drift)) {
			t.Fatalf("iteration %d: returned %v before drifted lower bound", i, target.Sub(v.now))
		}
		if v.now.After(target.Add(drift + time.Microsecond)) {
			t.Fatalf("iteration %d: overslept by %v", i, v.now.Sub(target))
		}
		distinct[v.now] = true
	}
	if len(distinct) < 2 {
		t.Error("expected drift to vary the wake-up instant across calls")
	}
}

func TestSleepUntilNilRandNoDrift(t *testing.T) {
	s := NewSleeper(nil)
	if d := s.drift(); d != 0 {
		t.Errorf("expected zero drift without a random source, got %v", d)
	}
}
