package stats

import (
	"math"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name string
		xs   []float64
		want float64
	}{
		{name: "odd count", xs: []float64{3, 1, 2}, want: 2},
		{name: "even count averages middle pair", xs: []float64{1, 2, 3, 4}, want: 2.5},
		{name: "single value", xs: []float64{7}, want: 7},
		{name: "empty", xs: nil, want: 0},
		{name: "unaffected by outlier", xs: []float64{1, 2, 3, 4, 100}, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Median(tt.xs); got != tt.want {
				t.Errorf("Median(%v) = %v, want %v", tt.xs, got, tt.want)
			}
		})
	}
}

func TestMedian_DoesNotMutateInput(t *testing.T) {
	xs := []float64{3, 1, 2}
	Median(xs)
	if xs[0] != 3 || xs[1] != 1 || xs[2] != 2 {
		t.Errorf("input reordered: %v", xs)
	}
}

func TestMAD(t *testing.T) {
	// median 6, absolute deviations {4,2,0,2,94}, median deviation 2.
	xs := []float64{2, 4, 6, 8, 100}
	if got := MAD(xs); got != 2 {
		t.Errorf("MAD(%v) = %v, want 2", xs, got)
	}
}

func TestMAD_CollapsesWhenHalfAgree(t *testing.T) {
	xs := []float64{5, 5, 5, 9}
	if got := MAD(xs); got != 0 {
		t.Errorf("MAD(%v) = %v, want 0", xs, got)
	}
}

func TestStdDev(t *testing.T) {
	// Population standard deviation, not sample.
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	if got := StdDev(xs); got != 2 {
		t.Errorf("StdDev(%v) = %v, want 2", xs, got)
	}
	if got := StdDev(nil); got != 0 {
		t.Errorf("StdDev(nil) = %v, want 0", got)
	}
}

func TestCaseFor(t *testing.T) {
	tests := []struct {
		n    int
		want Case
	}{
		{0, NoPolls},
		{-1, NoPolls},
		{1, OnePoll},
		{2, TwoPolls},
		{3, ManyPolls},
		{40, ManyPolls},
	}
	for _, tt := range tests {
		if got := CaseFor(tt.n); got != tt.want {
			t.Errorf("CaseFor(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestFromMargins_NoPolls(t *testing.T) {
	est := FromMargins(nil)
	if est.Margin != 0 || est.Spread != SpreadNoPolls {
		t.Errorf("FromMargins(nil) = %+v, want {0 %v}", est, SpreadNoPolls)
	}
}

func TestFromMargins_OnePoll(t *testing.T) {
	est := FromMargins([]float64{4})
	if est.Margin != 4 || est.Spread != SpreadOnePoll {
		t.Errorf("FromMargins one poll = %+v, want {4 %v}", est, SpreadOnePoll)
	}
}

func TestFromMargins_TwoPollsFloored(t *testing.T) {
	// StdDev({1,5}) = 2, sem = 2/sqrt(2) ~ 1.41, below the floor.
	est := FromMargins([]float64{1, 5})
	if est.Margin != 3 {
		t.Errorf("Margin = %v, want 3 (mean)", est.Margin)
	}
	if est.Spread != SpreadFloorTwoPolls {
		t.Errorf("Spread = %v, want floored to %v", est.Spread, SpreadFloorTwoPolls)
	}
}

func TestFromMargins_TwoPollsWide(t *testing.T) {
	// StdDev({0,10}) = 5, sem = 5/sqrt(2) ~ 3.54, above the floor.
	est := FromMargins([]float64{0, 10})
	if est.Margin != 5 {
		t.Errorf("Margin = %v, want 5", est.Margin)
	}
	want := 5 / math.Sqrt2
	if !approx(est.Spread, want) {
		t.Errorf("Spread = %v, want %v", est.Spread, want)
	}
}

func TestFromMargins_Many(t *testing.T) {
	// median 3, MAD 1, sem = 1/0.6745/sqrt(5).
	est := FromMargins([]float64{1, 2, 3, 4, 100})
	if est.Margin != 3 {
		t.Errorf("Margin = %v, want 3 (median shrugs off the outlier)", est.Margin)
	}
	want := 1 / 0.6745 / math.Sqrt(5)
	if !approx(est.Spread, want) {
		t.Errorf("Spread = %v, want %v", est.Spread, want)
	}
}

func TestFromMargins_ManyZeroMAD(t *testing.T) {
	// Half the polls agree exactly, so the MAD collapses and the spread
	// falls back to stddev/sqrt(n).
	xs := []float64{5, 5, 5, 9}
	est := FromMargins(xs)
	if est.Margin != 5 {
		t.Errorf("Margin = %v, want 5", est.Margin)
	}
	want := StdDev(xs) / 2
	if !approx(est.Spread, want) {
		t.Errorf("Spread = %v, want stddev fallback %v", est.Spread, want)
	}
}

func TestPrior(t *testing.T) {
	est := Prior(-6.5)
	if est.Margin != -6.5 || est.Spread != SpreadNoPolls {
		t.Errorf("Prior(-6.5) = %+v, want {-6.5 %v}", est, SpreadNoPolls)
	}
}

func TestTCDF2(t *testing.T) {
	if got := TCDF2(0); got != 0.5 {
		t.Errorf("TCDF2(0) = %v, want 0.5", got)
	}
	// F(sqrt(2)) has the closed form 1/2 + sqrt(2)/4.
	if got, want := TCDF2(math.Sqrt2), 0.5+math.Sqrt2/4; !approx(got, want) {
		t.Errorf("TCDF2(sqrt2) = %v, want %v", got, want)
	}
	for _, x := range []float64{0.1, 1, 2.5, 10} {
		if got := TCDF2(x) + TCDF2(-x); !approx(got, 1) {
			t.Errorf("TCDF2(%v) + TCDF2(-%v) = %v, want 1 (symmetry)", x, x, got)
		}
	}
	if lo, hi := TCDF2(1), TCDF2(2); lo >= hi {
		t.Errorf("TCDF2 not increasing: F(1)=%v F(2)=%v", lo, hi)
	}
	if got := TCDF2(100); got < 0.999 {
		t.Errorf("TCDF2(100) = %v, want near 1", got)
	}
}

func TestWinProbability(t *testing.T) {
	if got := WinProbability(0, 3, 0); got != 0.5 {
		t.Errorf("tied race = %v, want 0.5", got)
	}
	// A bias that exactly cancels the margin recovers a coin flip.
	if got := WinProbability(-2, 3, 2); got != 0.5 {
		t.Errorf("bias-cancelled race = %v, want 0.5", got)
	}
	// A tight spread is floored, so these are the same race.
	if a, b := WinProbability(3, 0.05, 0), WinProbability(3, SpreadFloorTwoPolls, 0); a != b {
		t.Errorf("floored spread: %v != %v", a, b)
	}
	if got := WinProbability(6, 3, 0); got <= WinProbability(3, 3, 0) {
		t.Errorf("bigger lead should mean higher probability, got %v", got)
	}
}

func TestNovemberProbability(t *testing.T) {
	// Drift between now and the election pulls the projection toward 0.5.
	today := WinProbability(5, 3, 0)
	nov := NovemberProbability(5, 3, 0)
	if nov >= today {
		t.Errorf("november %v should be less confident than today %v", nov, today)
	}
	if nov <= 0.5 {
		t.Errorf("november %v should still favor the leader", nov)
	}
	if got := NovemberProbability(0, 3, 0); got != 0.5 {
		t.Errorf("tied race in november = %v, want 0.5", got)
	}
}
