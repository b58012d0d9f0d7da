// Package dedup removes poll records that are exact or near duplicates
// across sources. Different feeds routinely republish the same underlying
// survey with minor formatting drift, so the merge rules match on fuzzy
// signals rather than exact identity.
package dedup

import (
	"fmt"
	"math"
	"time"

	"github.com/lox/pollmedian/internal/models"
)

const (
	marginTolerance  = 2.0
	dateToleranceDay = 2
)

// RemoveExact drops later occurrences of records whose full field values
// are identical. Applied within a single source's feed.
func RemoveExact(polls []models.Poll) []models.Poll {
	seen := make(map[string]bool)
	var out []models.Poll
	for _, p := range polls {
		key := fmt.Sprintf("%s|%s|%s|%s|%d|%s|%g|%g|%s|%s|%s",
			p.Pollster, p.Source, p.StartDate.Format("2006-01-02"),
			p.EndDate.Format("2006-01-02"), p.SampleSize, p.Subpopulation,
			p.DSupport, p.RSupport, p.ContestKey, p.DemCand, p.RepCand)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

// RemoveExactByMargin drops records that repeat an earlier (margin, start,
// end) tuple within the same contest. Used for by-contest feeds, where
// candidate and pollster spellings vary across sources but the underlying
// numbers do not.
func RemoveExactByMargin(polls []models.Poll) []models.Poll {
	seen := make(map[string]bool)
	var out []models.Poll
	for _, p := range polls {
		key := fmt.Sprintf("%s|%g|%s|%s", p.ContestKey, p.Margin(),
			p.StartDate.Format("2006-01-02"), p.EndDate.Format("2006-01-02"))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

// MergeGeneric merges two generic-ballot feeds. A record in t1 matching a
// t2 record exactly on sample size, start date, and end date is presumed
// to be the same survey and dropped; t2's copy always survives.
func MergeGeneric(t1, t2 []models.Poll) []models.Poll {
	var out []models.Poll
	for _, p1 := range t1 {
		dup := false
		for _, p2 := range t2 {
			if p1.SampleSize == p2.SampleSize &&
				p1.StartDate.Equal(p2.StartDate) && p1.EndDate.Equal(p2.EndDate) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, p1)
		}
	}
	return append(out, t2...)
}

// MergeContest merges two by-contest feeds (Senate, Presidential). Two
// records in the same contest are the same underlying poll when at least
// two of four signals agree: margins within 2 points, identical pollster,
// start and end dates each within 2 days, equal sample size. The merge is
// asymmetric: t2's record always survives a matched pair.
func MergeContest(t1, t2 []models.Poll) []models.Poll {
	var out []models.Poll
	for _, p1 := range t1 {
		dup := false
		for _, p2 := range t2 {
			if p1.ContestKey == p2.ContestKey && matchSignals(p1, p2) >= 2 {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, p1)
		}
	}
	return append(out, t2...)
}

func matchSignals(a, b models.Poll) int {
	n := 0
	if math.Abs(a.Margin()-b.Margin()) <= marginTolerance {
		n++
	}
	if a.Pollster == b.Pollster {
		n++
	}
	if daysApart(a.StartDate, b.StartDate) < dateToleranceDay &&
		daysApart(a.EndDate, b.EndDate) < dateToleranceDay {
		n++
	}
	if a.SampleSize == b.SampleSize {
		n++
	}
	return n
}

func daysApart(a, b time.Time) int {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d / (24 * time.Hour))
}

// RemoveOverlapping drops any poll whose fielding interval overlaps an
// already-kept poll from the same pollster. Rolling-average trackers report
// the same underlying survey day after day; keeping each report would let
// one tracker dominate the rolling timeseries.
func RemoveOverlapping(polls []models.Poll) []models.Poll {
	var out []models.Poll
	for _, p := range polls {
		overlap := false
		for _, kept := range out {
			if p.Pollster == kept.Pollster &&
				!p.StartDate.After(kept.EndDate) && !kept.StartDate.After(p.EndDate) {
				overlap = true
				break
			}
		}
		if !overlap {
			out = append(out, p)
		}
	}
	return out
}
