package lor

import "testing"

func TestCurveEndpoints(t *testing.T) {
	curves := []struct {
		name string
		fn   Curve
	}{
		{"linear", CurveLinear},
		{"squared", CurveSquared},
		{"xlights", CurveXLights},
	}

	for _, c := range curves {
		t.Run(c.name, func(t *testing.T) {
			if got := c.fn(0.0); got != BrightnessDim {
				t.Errorf("%s(0.0) = %#02X, want %#02X", c.name, got, BrightnessDim)
			}
			if got := c.fn(1.0); got != BrightnessFull {
				t.Errorf("%s(1.0) = %#02X, want %#02X", c.name, got, BrightnessFull)
			}
		})
	}
}

func TestCurveSquaredDiffersFromLinear(t *testing.T) {
	if CurveSquared(0.5) == CurveLinear(0.5) {
		t.Error("squared(0.5) equals linear(0.5)")
	}
}

func TestCurveCapability(t *testing.T) {
	// Any func(float64) Brightness works as a curve.
	steps := func(normal float64) Brightness {
		if normal < 0.5 {
			return BrightnessDim
		}
		return BrightnessFull
	}
	w := NewWriter(make([]byte, 1))
	if _, err := WriteBrightnessf(w, 0.9, steps); err != nil {
		t.Fatalf("WriteBrightnessf: %v", err)
	}
	if w.Bytes()[0] != byte(BrightnessFull) {
		t.Errorf("byte = %#02X, want %#02X", w.Bytes()[0], byte(BrightnessFull))
	}
}

func TestDurationOf(t *testing.T) {
	tests := []struct {
		seconds float64
		want    Duration
	}{
		{0, 0},
		{0.1, 1},
		{0.14, 1},  // rounds down
		{0.16, 2},  // rounds up
		{5.0, 50},
		{60.0, 600},
		{6553.5, 0xFFFF},
	}

	for _, tt := range tests {
		if got := DurationOf(tt.seconds); got != tt.want {
			t.Errorf("DurationOf(%v) = %d, want %d", tt.seconds, got, tt.want)
		}
	}
}

func TestDurationOfMonotonic(t *testing.T) {
	prev := DurationOf(0)
	for s := 0.0; s <= 120.0; s += 0.07 {
		cur := DurationOf(s)
		if cur < prev {
			t.Fatalf("DurationOf not monotonic at %v: %d < %d", s, cur, prev)
		}
		prev = cur
	}
}
