// Package timeseries iterates the window selector and robust estimator
// across every campaign day for every tracked contest, producing one
// DayEstimate row per (contest, day) pair.
package timeseries

import (
	"fmt"
	"log"
	"time"

	"github.com/lox/pollmedian/internal/models"
	"github.com/lox/pollmedian/internal/stats"
	"github.com/lox/pollmedian/internal/window"
)

// Options steer the selector policy for one contest set.
type Options struct {
	// DynamicWindow tightens the recency window as the election nears.
	// Statewide contests use it; the House generic ballot runs fixed.
	DynamicWindow bool
	// CycleYear anchors the legacy eased-window schedule.
	CycleYear int
}

// BuildContestSeries produces one row per day from start to today inclusive,
// oldest first, for a single contest. Days with no eligible polls substitute
// the contest prior and still emit a well-formed row.
func BuildContestSeries(polls []models.Poll, contest models.Contest, start, today time.Time, opts Options) []models.DayEstimate {
	var rows []models.DayEstimate

	priorDate := models.Date(start.Year(), time.January, 1)
	for day := start; !day.After(today); day = day.AddDate(0, 0, 1) {
		var selected []models.Poll
		if contest.LegacyWin {
			selected = window.SelectLegacy(polls, day, opts.CycleYear)
		} else {
			selected = window.Select(polls, day, opts.DynamicWindow)
		}

		row := models.DayEstimate{
			AsOfDay:    day,
			JulianDate: models.JulianDay(day),
			NumPolls:   len(selected),
			ContestNum: contest.Num,
		}

		if len(selected) == 0 {
			est := stats.Prior(contest.Prior)
			row.DateMostRecentPoll = models.JulianDay(priorDate)
			row.MedianMargin = est.Margin
			row.EstStdDev = est.Spread
		} else {
			margins := make([]float64, len(selected))
			for i, p := range selected {
				margins[i] = p.Margin()
			}
			est := stats.FromMargins(margins)
			row.DateMostRecentPoll = models.JulianDay(selected[0].EndDate)
			row.MedianMargin = est.Margin
			row.EstStdDev = est.Spread
		}

		rows = append(rows, row)
	}
	return rows
}

// BuildSeries runs every contest in ordinal order over the same date range.
// A contest whose polls cannot be found is not an error: estimation simply
// runs on the empty set and emits prior rows. Rows are grouped by day, then
// by contest ordinal, so downstream tooling can align by position.
func BuildSeries(pollsByContest map[string][]models.Poll, contests []models.Contest, start, today time.Time, opts Options) []models.DayEstimate {
	var rows []models.DayEstimate
	for day := start; !day.After(today); day = day.AddDate(0, 0, 1) {
		for _, contest := range contests {
			series := BuildContestSeries(pollsByContest[contest.Code], contest, day, day, opts)
			rows = append(rows, series...)
		}
	}
	return rows
}

// CheckContests verifies each contest has usable configuration before a run.
// Missing priors abort only that contest; the remainder proceed.
func CheckContests(contests []models.Contest) ([]models.Contest, error) {
	var ok []models.Contest
	for _, c := range contests {
		if c.Code == "" || c.Num == 0 {
			log.Printf("timeseries: skipping misconfigured contest %q (code=%q num=%d)", c.Name, c.Code, c.Num)
			continue
		}
		ok = append(ok, c)
	}
	if len(ok) == 0 {
		return nil, fmt.Errorf("no usable contests configured")
	}
	return ok, nil
}
