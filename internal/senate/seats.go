// Package senate turns per-state win probabilities into a full probability
// distribution over Democratic-aligned seat counts, and derives control
// probabilities and the meta-margin from it.
package senate

import (
	"fmt"

	"github.com/lox/pollmedian/internal/stats"
)

// majoritySeats is the threshold for Democratic control, counting the
// vice-presidential tiebreak.
const majoritySeats = 50

// Race is one contested seat's current estimate.
type Race struct {
	Code   string
	Margin float64
	Spread float64
}

// Outcome summarizes the seat-count distribution for one analysis day.
type Outcome struct {
	// Distribution[i] is the probability the Democratic-aligned side wins
	// exactly i of the contested seats; length is len(races)+1.
	Distribution []float64
	MedianSeats  int     // total Dem seats at the distribution median
	MeanSeats    float64 // probability-weighted total Dem seats
	DemControl   float64
	RepControl   float64
}

// Convolve computes the distribution of the number of wins across
// independent seats with the given win probabilities, by repeated discrete
// convolution of the two-element {lose, win} vectors. Correlated polling
// error across states is not captured; each seat is treated as independent.
func Convolve(winProbs []float64) []float64 {
	dist := []float64{1}
	for _, p := range winProbs {
		next := make([]float64, len(dist)+1)
		for i, d := range dist {
			next[i] += d * (1 - p)
			next[i+1] += d * p
		}
		dist = next
	}
	return dist
}

// Estimate computes the seat-count outcome for the given contested races,
// applying a uniform bias (in points) to every race's margin. demSafe is
// the number of seats already considered safe for the Democratic side.
func Estimate(races []Race, demSafe int, biasPct float64) Outcome {
	winProbs := make([]float64, len(races))
	for i, r := range races {
		winProbs[i] = stats.WinProbability(r.Margin, r.Spread, biasPct)
	}

	dist := Convolve(winProbs)

	cumulative := 0.0
	median := demSafe
	mean := 0.0
	demControl := 0.0
	needed := majoritySeats - demSafe
	medianSet := false
	for wins, p := range dist {
		mean += p * float64(demSafe+wins)
		cumulative += p
		if !medianSet && cumulative >= 0.5 {
			median = demSafe + wins
			medianSet = true
		}
		if wins >= needed {
			demControl += p
		}
	}

	return Outcome{
		Distribution: dist,
		MedianSeats:  median,
		MeanSeats:    mean,
		DemControl:   demControl,
		RepControl:   1 - demControl,
	}
}

// MetaMargin is the uniform national swing, in points, that would bring the
// Democratic-aligned side to exactly the edge of chamber control. It is
// found by stepping a bias offset upward from -7 until the median outcome
// reaches the majority threshold.
func MetaMargin(races []Race, demSafe int) (float64, error) {
	const (
		start = -7.0
		limit = 7.0
		step  = 0.02
	)
	for bias := start; bias <= limit; bias += step {
		if Estimate(races, demSafe, bias).MedianSeats >= majoritySeats {
			return -bias, nil
		}
	}
	return 0, fmt.Errorf("no control crossover within ±%.0f points", limit)
}

// ValidateSeatTotals checks that safe and contested seats account for the
// whole chamber. A mismatch is reported, not corrected: the computation
// proceeds with the configuration as given.
func ValidateSeatTotals(demSafe, repSafe, contested int) error {
	if total := demSafe + repSafe + contested; total != 100 {
		return fmt.Errorf("senate seats sum to %d, want 100 (dem_safe=%d rep_safe=%d contested=%d)",
			total, demSafe, repSafe, contested)
	}
	return nil
}
