package timeseries

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/lox/pollmedian/internal/models"
)

// WriteMedians emits the fixed-width statewide medians file, one line per
// row. Column order: poll count, julian of most recent poll, median margin,
// estimated SD of the median, julian of the estimate day, contest ordinal.
// Julian dates are zero padded to three digits so columns stay aligned
// through single-digit days of the year.
func WriteMedians(w io.Writer, rows []models.DayEstimate) error {
	for _, r := range rows {
		_, err := fmt.Fprintf(w, "%-3d %-4s %-7.2f %-7.2f %-4s %-3d\n",
			r.NumPolls,
			fmt.Sprintf("%03d", r.DateMostRecentPoll),
			r.MedianMargin,
			r.EstStdDev,
			fmt.Sprintf("%03d", r.JulianDate),
			r.ContestNum,
		)
		if err != nil {
			return fmt.Errorf("writing medians row: %w", err)
		}
	}
	return nil
}

// WriteHouseMedians emits the generic-ballot medians file. Same layout as
// WriteMedians minus the trailing contest ordinal, which is meaningless for
// a single national series.
func WriteHouseMedians(w io.Writer, rows []models.DayEstimate) error {
	for _, r := range rows {
		_, err := fmt.Fprintf(w, "%-3d %-4s %-7.2f %-7.2f %-4s\n",
			r.NumPolls,
			fmt.Sprintf("%03d", r.DateMostRecentPoll),
			r.MedianMargin,
			r.EstStdDev,
			fmt.Sprintf("%03d", r.JulianDate),
		)
		if err != nil {
			return fmt.Errorf("writing house medians row: %w", err)
		}
	}
	return nil
}

// WriteMediansCSV writes the same rows as a headed CSV for spreadsheet use.
func WriteMediansCSV(w io.Writer, rows []models.DayEstimate) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"num_polls", "julian_date", "date_most_recent_poll", "median_margin", "est_std_dev", "state_num"}); err != nil {
		return fmt.Errorf("writing medians header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(r.NumPolls),
			strconv.Itoa(r.JulianDate),
			strconv.Itoa(r.DateMostRecentPoll),
			strconv.FormatFloat(r.MedianMargin, 'f', 2, 64),
			strconv.FormatFloat(r.EstStdDev, 'f', 2, 64),
			strconv.Itoa(r.ContestNum),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing medians record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRollingCSV writes the rolling national series as a headed CSV.
func WriteRollingCSV(w io.Writer, rows []models.TimeseriesRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"window_start", "window_end", "num_polls", "median_margin", "mad"}); err != nil {
		return fmt.Errorf("writing rolling header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			r.StartDate.Format("2006-01-02"),
			r.EndDate.Format("2006-01-02"),
			strconv.Itoa(r.NumPolls),
			strconv.FormatFloat(r.Median, 'f', 2, 64),
			strconv.FormatFloat(r.MAD, 'f', 2, 64),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing rolling record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePollsCSV dumps cleaned polls for a contest, most recent first,
// matching the order they arrive from the selector.
func WritePollsCSV(w io.Writer, polls []models.Poll) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"pollster", "source", "start_date", "end_date", "sample_size", "subpopulation", "dem_support", "rep_support", "margin"}); err != nil {
		return fmt.Errorf("writing polls header: %w", err)
	}
	for _, p := range polls {
		rec := []string{
			p.Pollster,
			p.Source,
			p.StartDate.Format("2006-01-02"),
			p.EndDate.Format("2006-01-02"),
			strconv.Itoa(p.SampleSize),
			string(p.Subpopulation),
			strconv.FormatFloat(p.DSupport, 'f', 1, 64),
			strconv.FormatFloat(p.RSupport, 'f', 1, 64),
			strconv.FormatFloat(p.Margin(), 'f', 1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing polls record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
