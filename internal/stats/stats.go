package stats

import (
	"math"
	"sort"
)

// madToSD rescales the median absolute deviation to a consistent estimator
// of standard deviation under normality (1/invcdf(0.75)).
const madToSD = 0.6745

const (
	// SpreadOnePoll is the spread assigned when a single poll is available.
	SpreadOnePoll = 0.05
	// SpreadFloorTwoPolls is the minimum spread with two polls.
	SpreadFloorTwoPolls = 3.0
	// SpreadNoPolls is the placeholder written when a contest-day has no
	// polls at all and the prior margin is substituted.
	SpreadNoPolls = -999
)

// Case says which estimator branch applies for a given poll count.
type Case int

const (
	NoPolls Case = iota
	OnePoll
	TwoPolls
	ManyPolls
)

// CaseFor maps a poll count to its estimator branch.
func CaseFor(n int) Case {
	switch {
	case n <= 0:
		return NoPolls
	case n == 1:
		return OnePoll
	case n == 2:
		return TwoPolls
	default:
		return ManyPolls
	}
}

// Median returns the middle value of xs (mean of the middle two for even n).
// Returns 0 for an empty slice.
func Median(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// MAD is the median absolute deviation from the median.
func MAD(xs []float64) float64 {
	m := Median(xs)
	devs := make([]float64, len(xs))
	for i, x := range xs {
		devs[i] = math.Abs(x - m)
	}
	return Median(devs)
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev is the population standard deviation.
func StdDev(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	m := Mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n))
}

// Estimate is a (location, spread) pair for one contest-day.
type Estimate struct {
	Margin float64
	Spread float64
}

// FromMargins computes the day estimate from the selected polls' margins.
//
// One poll gets a flat high-uncertainty spread. Two polls get the mean and
// a floored standard error. Three or more get the median, with the spread
// estimated robustly from the MAD:
//
//	spread = MAD / 0.6745 / sqrt(n)
//
// When at least half the polls agree exactly the MAD collapses to zero; in
// that case the spread falls back to stddev/sqrt(n). The caller handles the
// zero-poll case with the contest prior.
func FromMargins(margins []float64) Estimate {
	switch CaseFor(len(margins)) {
	case NoPolls:
		return Estimate{Margin: 0, Spread: SpreadNoPolls}
	case OnePoll:
		return Estimate{Margin: margins[0], Spread: SpreadOnePoll}
	case TwoPolls:
		sem := StdDev(margins) / math.Sqrt2
		if sem < SpreadFloorTwoPolls {
			sem = SpreadFloorTwoPolls
		}
		return Estimate{Margin: Mean(margins), Spread: sem}
	default:
		n := float64(len(margins))
		med := Median(margins)
		sem := MAD(margins) / madToSD / math.Sqrt(n)
		if sem == 0 {
			sem = StdDev(margins) / math.Sqrt(n)
		}
		return Estimate{Margin: med, Spread: sem}
	}
}

// Prior builds the substitute estimate for a contest-day with no polls.
func Prior(margin float64) Estimate {
	return Estimate{Margin: margin, Spread: SpreadNoPolls}
}
