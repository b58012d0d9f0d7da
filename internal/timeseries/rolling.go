package timeseries

import (
	"time"

	"github.com/lox/pollmedian/internal/dedup"
	"github.com/lox/pollmedian/internal/models"
	"github.com/lox/pollmedian/internal/stats"
)

// RollingWindowDays is the trailing span for the rolling national series.
const RollingWindowDays = 14

// BuildRolling computes a trailing-window series over a single national
// poll list. For each day, polls whose end date falls within the prior
// RollingWindowDays are kept, same-pollster overlapping field periods are
// collapsed to the most recent, and the median and raw MAD of what remains
// are recorded. Unlike the statewide driver there is no prior substitution:
// a day with no polls in range emits zeros with NumPolls 0.
func BuildRolling(polls []models.Poll, start, today time.Time) []models.TimeseriesRow {
	var rows []models.TimeseriesRow
	for day := start; !day.After(today); day = day.AddDate(0, 0, 1) {
		cutoff := day.AddDate(0, 0, -RollingWindowDays)

		var in []models.Poll
		for _, p := range polls {
			if p.EndDate.After(cutoff) && !p.EndDate.After(day) {
				in = append(in, p)
			}
		}
		in = dedup.RemoveOverlapping(in)

		row := models.TimeseriesRow{
			StartDate: cutoff.AddDate(0, 0, 1),
			EndDate:   day,
			NumPolls:  len(in),
		}
		if len(in) > 0 {
			margins := make([]float64, len(in))
			for i, p := range in {
				margins[i] = p.Margin()
			}
			row.Median = stats.Median(margins)
			row.MAD = stats.MAD(margins)
		}
		rows = append(rows, row)
	}
	return rows
}
