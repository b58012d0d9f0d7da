package models

import (
	"time"
)

// Subpopulation identifies the sample a poll surveyed. Only used for
// deduplication tiebreaks and display, never in the estimator math.
type Subpopulation string

const (
	LikelyVoters     Subpopulation = "lv"
	RegisteredVoters Subpopulation = "rv"
	Adults           Subpopulation = "a"
	Voters           Subpopulation = "v"
)

// Rank orders subpopulations for the one-poll-per-pollster tiebreak:
// likely voters beat registered voters beat adults.
func (s Subpopulation) Rank() int {
	switch s {
	case LikelyVoters:
		return 0
	case RegisteredVoters:
		return 1
	case Adults:
		return 2
	default:
		return 3
	}
}

// SampleSizeUnknown is the sentinel for feeds that don't report sample size.
const SampleSizeUnknown = -1

// Poll is one polling organization's fielded survey for one contest.
// Constructed only by the ingest layer; immutable downstream.
type Poll struct {
	Pollster      string
	Source        string // "FiveThirtyEight", "Real Clear Politics", ...
	StartDate     time.Time
	EndDate       time.Time
	SampleSize    int
	Subpopulation Subpopulation
	DSupport      float64
	RSupport      float64
	ContestKey    string // state code for Senate/President, "generic" for House
	DemCand       string
	RepCand       string
	URL           string
}

// Margin is the D-minus-R margin in percentage points.
func (p Poll) Margin() float64 {
	return p.DSupport - p.RSupport
}

// MidDate is the midpoint of the fielding interval.
func (p Poll) MidDate() time.Time {
	return p.StartDate.Add(p.EndDate.Sub(p.StartDate) / 2)
}

// DayEstimate is the aggregate estimate for one contest on one calendar day.
type DayEstimate struct {
	AsOfDay            time.Time
	JulianDate         int
	NumPolls           int
	DateMostRecentPoll int // julian day of year, Jan 1 when no polls contribute
	MedianMargin       float64
	EstStdDev          float64
	ContestNum         int
}

// Contest is one tracked race plus its per-cycle configuration.
type Contest struct {
	Name      string // "Arizona", "Georgia-Special"
	Code      string // "AZ"
	SeatName  string // Senate seat class for double-barreled states, usually empty
	Num       int    // ordinal for row alignment in downstream numeric tooling
	Prior     float64
	DemCand   string
	RepCand   string
	LegacyWin bool // use the eased-window selector instead of the default
}

// TimeseriesRow is one step of the rolling national House timeseries.
type TimeseriesRow struct {
	StartDate time.Time
	EndDate   time.Time
	Median    float64
	MAD       float64
	NumPolls  int
}

// JulianDay returns the 1-based day of year, matching %j formatting.
func JulianDay(t time.Time) int {
	return t.YearDay()
}

// Date truncates to a UTC calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
