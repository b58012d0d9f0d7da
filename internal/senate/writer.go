package senate

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/lox/pollmedian/internal/stats"
)

// WriteHistogramCSV writes the seat-count distribution as a headed CSV, one
// row per total Democratic-aligned seat count including the safe seats.
func WriteHistogramCSV(w io.Writer, o Outcome, demSafe int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"dem_seats", "probability"}); err != nil {
		return fmt.Errorf("writing histogram header: %w", err)
	}
	for wins, p := range o.Distribution {
		rec := []string{
			strconv.Itoa(demSafe + wins),
			strconv.FormatFloat(p, 'f', 6, 64),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing histogram record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteStateProbsCSV writes each contested race's current win probability
// and the wider-spread November projection.
func WriteStateProbsCSV(w io.Writer, races []Race) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"state", "median_margin", "est_std_dev", "prob_today", "prob_november"}); err != nil {
		return fmt.Errorf("writing state probs header: %w", err)
	}
	for _, r := range races {
		rec := []string{
			r.Code,
			strconv.FormatFloat(r.Margin, 'f', 2, 64),
			strconv.FormatFloat(r.Spread, 'f', 2, 64),
			strconv.FormatFloat(stats.WinProbability(r.Margin, r.Spread, 0), 'f', 4, 64),
			strconv.FormatFloat(stats.NovemberProbability(r.Margin, r.Spread, 0), 'f', 4, 64),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing state probs record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
