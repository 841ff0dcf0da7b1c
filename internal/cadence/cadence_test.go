package cadence

import (
	"math/rand"
	"testing"
	"time"
)

// scriptedRand returns scripted values in order, repeating the last one.
type scriptedRand struct {
	floats []float64
	norms  []float64
	fi, ni int
}

func (s *scriptedRand) Float64() float64 {
	v := s.floats[s.fi]
	if s.fi < len(s.floats)-1 {
		s.fi++
	}
	return v
}

func (s *scriptedRand) NormFloat64() float64 {
	v := s.norms[s.ni]
	if s.ni < len(s.norms)-1 {
		s.ni++
	}
	return v
}

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestNewChannelRollsOnFirstDelay(t *testing.T) {
	// mood roll 0.9 -> Tired, duration 0.5 -> 0.45s, variance 0.5 -> -4.5
	rng := &scriptedRand{floats: []float64{0.9, 0.5, 0.5}, norms: []float64{0}}
	c := NewChannel(12, rng)

	d := c.NextDelay(t0)

	if c.Mood() != Tired {
		t.Errorf("mood: got %s, want TIRED", c.Mood())
	}
	if got, want := c.MoodEndTime(), t0.Add(450*time.Millisecond); !got.Equal(want) {
		t.Errorf("mood end: got %v, want %v", got.Sub(t0), want.Sub(t0))
	}
	if c.Variance() != -4.5 {
		t.Errorf("variance: got %v, want -4.5", c.Variance())
	}
	if c.LastRate() != 7.5 {
		t.Errorf("rate: got %v, want 7.5", c.LastRate())
	}
	if want := RateToDelay(7.5); d != want {
		t.Errorf("delay: got %v, want %v", d, want)
	}
}

func TestMoodSelectionWeights(t *testing.T) {
	tests := []struct {
		roll   float64
		want   Mood
		varMin float64
		varMax float64
		durMin time.Duration
		durMax time.Duration
	}{
		{0.00, Cruising, -1.5, 1.5, 400 * time.Millisecond, 1200 * time.Millisecond},
		{0.69, Cruising, -1.5, 1.5, 400 * time.Millisecond, 1200 * time.Millisecond},
		{0.70, Bursting, 4.0, 7.0, 200 * time.Millisecond, 400 * time.Millisecond},
		{0.84, Bursting, 4.0, 7.0, 200 * time.Millisecond, 400 * time.Millisecond},
		{0.85, Tired, -6.0, -3.0, 300 * time.Millisecond, 600 * time.Millisecond},
		{0.99, Tired, -6.0, -3.0, 300 * time.Millisecond, 600 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			for _, u := range []float64{0, 0.5, 0.999} {
				rng := &scriptedRand{floats: []float64{tt.roll, u, u}, norms: []float64{0}}
				c := NewChannel(12, rng)
				c.NextDelay(t0)

				if c.Mood() != tt.want {
					t.Fatalf("roll %v: got %s, want %s", tt.roll, c.Mood(), tt.want)
				}
				if v := c.Variance(); v < tt.varMin || v > tt.varMax {
					t.Errorf("variance %v outside [%v, %v]", v, tt.varMin, tt.varMax)
				}
				dur := c.MoodEndTime().Sub(t0)
				if dur < tt.durMin || dur > tt.durMax {
					t.Errorf("duration %v outside [%v, %v]", dur, tt.durMin, tt.durMax)
				}
			}
		})
	}
}

func TestMoodHeldUntilExpiry(t *testing.T) {
	// Roll Bursting for 0.3s with variance 5.5, then a later roll would be Tired.
	rng := &scriptedRand{floats: []float64{0.75, 0.5, 0.5, 0.95, 0.5, 0.5}, norms: []float64{0}}
	c := NewChannel(10, rng)

	c.NextDelay(t0)
	if c.Mood() != Bursting {
		t.Fatalf("expected BURSTING, got %s", c.Mood())
	}

	c.NextDelay(t0.Add(299 * time.Millisecond))
	if c.Mood() != Bursting {
		t.Errorf("mood changed before expiry: %s", c.Mood())
	}
	if c.LastRate() != 15.5 {
		t.Errorf("rate: got %v, want 15.5", c.LastRate())
	}

	c.NextDelay(t0.Add(300 * time.Millisecond))
	if c.Mood() != Tired {
		t.Errorf("expected re-roll to TIRED at expiry, got %s", c.Mood())
	}
}

func TestEffectiveRateAlwaysClamped(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	minDelay := RateToDelay(MaxCPS)
	maxDelay := RateToDelay(MinCPS)

	for base := 1.0; base <= 20.0; base += 0.5 {
		c := NewChannel(base, rng)
		now := t0
		for i := 0; i < 2000; i++ {
			d := c.NextDelay(now)
			if r := c.LastRate(); r < MinCPS || r > MaxCPS {
				t.Fatalf("base %v step %d: rate %v outside [%v, %v]", base, i, r, MinCPS, MaxCPS)
			}
			if d < minDelay || d > maxDelay {
				t.Fatalf("base %v step %d: delay %v outside [%v, %v]", base, i, d, minDelay, maxDelay)
			}
			now = now.Add(d)
		}
	}
}

func TestExtremeNoiseClamped(t *testing.T) {
	tests := []struct {
		name string
		base float64
		norm float64
		want float64
	}{
		{"far below", 1, -10, MinCPS},
		{"far above", 20, 10, MaxCPS},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := &scriptedRand{floats: []float64{0.1, 0.5, 0.5}, norms: []float64{tt.norm}}
			c := NewChannel(tt.base, rng)
			c.NextDelay(t0)
			if c.LastRate() != tt.want {
				t.Errorf("rate: got %v, want %v", c.LastRate(), tt.want)
			}
		})
	}
}

func TestResetAllowsImmediateReroll(t *testing.T) {
	// First roll: Cruising for 1.2s. After reset the next request must roll
	// again (Bursting) even though the old mood had not expired.
	rng := &scriptedRand{floats: []float64{0.1, 0.999, 0.5, 0.8, 0.5, 0.5}, norms: []float64{0}}
	c := NewChannel(12, rng)
	c.NextDelay(t0)
	if c.Mood() != Cruising {
		t.Fatalf("expected CRUISING, got %s", c.Mood())
	}

	resetAt := t0.Add(100 * time.Millisecond)
	c.Reset(resetAt)
	if !c.MoodEndTime().Equal(resetAt) {
		t.Errorf("mood end after reset: got %v, want %v", c.MoodEndTime(), resetAt)
	}
	if c.Variance() != 0 {
		t.Errorf("variance after reset: got %v, want 0", c.Variance())
	}

	c.NextDelay(resetAt)
	if c.Mood() != Bursting {
		t.Errorf("expected fresh roll after reset, got %s", c.Mood())
	}
	if c.MoodEndTime().Before(resetAt) {
		t.Error("mood end time earlier than the time the mood was chosen")
	}
}

func TestMoodProportions(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	c := NewChannel(12, rng)
	counts := make(map[Mood]int)
	const n = 20000
	for i := 0; i < n; i++ {
		c.Reset(t0)
		c.NextDelay(t0)
		counts[c.Mood()]++
	}
	check := func(m Mood, want float64) {
		got := float64(counts[m]) / n
		if got < want-0.02 || got > want+0.02 {
			t.Errorf("%s proportion: got %.3f, want %.2f", m, got, want)
		}
	}
	check(Cruising, 0.70)
	check(Bursting, 0.15)
	check(Tired, 0.15)
}
