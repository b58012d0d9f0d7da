package stats

import "math"

// TCDF2 is the cumulative distribution function of Student's t with 2
// degrees of freedom, which has the closed form
//
//	F(x) = 1/2 + x / (2 * sqrt(2 + x^2))
//
// Two degrees of freedom is a deliberately fat-tailed choice: converting
// poll margins to win probabilities with a normal CDF overstates certainty
// when the true polling error distribution has heavy tails.
func TCDF2(x float64) float64 {
	return 0.5 + x/(2*math.Sqrt(2+x*x))
}

// WinProbability converts a margin estimate and spread into the probability
// that the Democratic-aligned candidate leads, shifted by a uniform bias in
// points. The spread is floored to avoid overconfident races with tightly
// clustered polls.
func WinProbability(margin, spread, biasPct float64) float64 {
	if spread < SpreadFloorTwoPolls {
		spread = SpreadFloorTwoPolls
	}
	return TCDF2((margin + biasPct) / spread)
}

// NovemberProbability is the election-day variant: it widens the spread
// with a fixed 5-point drift term to account for movement between the
// estimate date and the election.
func NovemberProbability(margin, spread, biasPct float64) float64 {
	if spread < SpreadFloorTwoPolls {
		spread = SpreadFloorTwoPolls
	}
	return TCDF2((margin + biasPct) / math.Sqrt(spread*spread+25))
}
