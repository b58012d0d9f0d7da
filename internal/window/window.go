// Package window selects the polls eligible to contribute to one
// contest-day estimate: a trailing recency window with a one-poll-per-
// pollster rule, plus a legacy eased-window policy kept for older cycles.
package window

import (
	"sort"
	"time"

	"github.com/lox/pollmedian/internal/models"
)

const minPollsBeforeFallback = 3

// Span returns the trailing window length for a target day. In dynamic mode
// the window tightens as the election approaches: four weeks before
// September, three weeks in September, two weeks from October on. Fixed
// mode (House generic-ballot aggregation) always uses two weeks.
func Span(day time.Time, dynamic bool) time.Duration {
	if !dynamic {
		return 2 * 7 * 24 * time.Hour
	}
	switch {
	case day.Month() < time.September:
		return 4 * 7 * 24 * time.Hour
	case day.Month() < time.October:
		return 3 * 7 * 24 * time.Hour
	default:
		return 2 * 7 * 24 * time.Hour
	}
}

// Select returns the polls feeding the estimator for the given day.
//
// Polls ending after the day never contribute. Within the trailing window
// the most recent poll per pollster is kept. If fewer than three polls
// survive, the window is ignored and the three most recent distinct-pollster
// polls across the contest's full history are used instead.
func Select(polls []models.Poll, day time.Time, dynamic bool) []models.Poll {
	eligible := endingOnOrBefore(polls, day)

	cutoff := day.Add(-Span(day, dynamic))
	var windowed []models.Poll
	for _, p := range eligible {
		if !p.EndDate.Before(cutoff) {
			windowed = append(windowed, p)
		}
	}

	selected := dropDuplicatePollsters(windowed)
	if len(selected) >= minPollsBeforeFallback {
		return selected
	}

	// Thin data: fall back to the three most recent polls regardless of age.
	all := dropDuplicatePollsters(eligible)
	if len(all) > minPollsBeforeFallback {
		all = all[:minPollsBeforeFallback]
	}
	return all
}

// SelectLegacy implements the eased-window rules used for older Senate
// cycles. The most recent poll per pollster is kept regardless of window;
// when at least three distinct-pollster polls exist, the set is restricted
// to polls whose mid-date is at or after the third-most-recent mid-date or
// whose end date falls within a window that eases from six weeks before
// August to a flat two weeks from October on.
func SelectLegacy(polls []models.Poll, day time.Time, cycleYear int) []models.Poll {
	var eligible []models.Poll
	for _, p := range polls {
		if p.EndDate.Before(day) {
			eligible = append(eligible, p)
		}
	}

	selected := dropDuplicatePollsters(eligible)
	if len(selected) < minPollsBeforeFallback {
		return selected
	}

	byMid := append([]models.Poll(nil), selected...)
	sort.SliceStable(byMid, func(i, j int) bool {
		return byMid[i].MidDate().After(byMid[j].MidDate())
	})
	thirdMidDate := byMid[minPollsBeforeFallback-1].MidDate()
	windowStart := day.Add(-legacySpan(day, cycleYear))

	var kept []models.Poll
	for _, p := range byMid {
		if !p.MidDate().Before(thirdMidDate) || !p.EndDate.Before(windowStart) {
			kept = append(kept, p)
		}
	}
	return kept
}

// legacySpan eases the window over the campaign: six weeks before August,
// four weeks in August, a linear 28-to-14-day taper through September, two
// weeks from October on.
func legacySpan(day time.Time, cycleYear int) time.Duration {
	switch {
	case day.Before(models.Date(cycleYear, time.August, 1)):
		return 6 * 7 * 24 * time.Hour
	case day.Before(models.Date(cycleYear, time.September, 1)):
		return 4 * 7 * 24 * time.Hour
	case day.Before(models.Date(cycleYear, time.October, 1)):
		days := 28 - float64(day.Day()-1)/2
		return time.Duration(days * 24 * float64(time.Hour))
	default:
		return 2 * 7 * 24 * time.Hour
	}
}

func endingOnOrBefore(polls []models.Poll, day time.Time) []models.Poll {
	var out []models.Poll
	for _, p := range polls {
		if !p.EndDate.After(day) {
			out = append(out, p)
		}
	}
	return out
}

// dropDuplicatePollsters returns at most one poll per pollster, sorted by
// end date descending. A pollster reporting multiple subpopulations with
// the same end date keeps its likely-voter number.
func dropDuplicatePollsters(polls []models.Poll) []models.Poll {
	sorted := append([]models.Poll(nil), polls...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].EndDate.Equal(sorted[j].EndDate) {
			return sorted[i].EndDate.After(sorted[j].EndDate)
		}
		return sorted[i].Subpopulation.Rank() < sorted[j].Subpopulation.Rank()
	})

	seen := make(map[string]bool)
	var out []models.Poll
	for _, p := range sorted {
		if seen[p.Pollster] {
			continue
		}
		seen[p.Pollster] = true
		out = append(out, p)
	}
	return out
}
