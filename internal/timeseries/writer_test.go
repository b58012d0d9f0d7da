package timeseries

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/lox/pollmedian/internal/models"
)

func TestWriteMedians(t *testing.T) {
	rows := []models.DayEstimate{
		{NumPolls: 5, DateMostRecentPoll: 8, MedianMargin: 3, EstStdDev: 1.25, JulianDate: 289, ContestNum: 38},
		{NumPolls: 0, DateMostRecentPoll: 1, MedianMargin: -7, EstStdDev: -999, JulianDate: 290, ContestNum: 3},
	}

	var buf bytes.Buffer
	if err := WriteMedians(&buf, rows); err != nil {
		t.Fatalf("WriteMedians: %v", err)
	}

	want := "5   008  3.00    1.25    289  38 \n" +
		"0   001  -7.00   -999.00 290  3  \n"
	if buf.String() != want {
		t.Errorf("WriteMedians =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestWriteHouseMedians(t *testing.T) {
	rows := []models.DayEstimate{
		{NumPolls: 12, DateMostRecentPoll: 250, MedianMargin: 1.5, EstStdDev: 0.85, JulianDate: 251},
	}

	var buf bytes.Buffer
	if err := WriteHouseMedians(&buf, rows); err != nil {
		t.Fatalf("WriteHouseMedians: %v", err)
	}

	want := "12  250  1.50    0.85    251 \n"
	if buf.String() != want {
		t.Errorf("WriteHouseMedians = %q, want %q", buf.String(), want)
	}
}

func TestWriteMediansCSV(t *testing.T) {
	rows := []models.DayEstimate{
		{NumPolls: 5, JulianDate: 289, DateMostRecentPoll: 287, MedianMargin: 3.456, EstStdDev: 1.2, ContestNum: 38},
	}

	var buf bytes.Buffer
	if err := WriteMediansCSV(&buf, rows); err != nil {
		t.Fatalf("WriteMediansCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header + 1 row", len(lines))
	}
	if lines[0] != "num_polls,julian_date,date_most_recent_poll,median_margin,est_std_dev,state_num" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "5,289,287,3.46,1.20,38" {
		t.Errorf("row = %q, want margins rounded to two places", lines[1])
	}
}

func TestWriteRollingCSV(t *testing.T) {
	rows := []models.TimeseriesRow{
		{
			StartDate: models.Date(2024, time.September, 7),
			EndDate:   models.Date(2024, time.September, 20),
			NumPolls:  6,
			Median:    2.5,
			MAD:       1,
		},
	}

	var buf bytes.Buffer
	if err := WriteRollingCSV(&buf, rows); err != nil {
		t.Fatalf("WriteRollingCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[1] != "2024-09-07,2024-09-20,6,2.50,1.00" {
		t.Errorf("row = %q", lines[1])
	}
}

func TestWritePollsCSV(t *testing.T) {
	polls := []models.Poll{
		{
			Pollster:      "Quinnipiac",
			Source:        "FiveThirtyEight",
			StartDate:     models.Date(2024, time.September, 10),
			EndDate:       models.Date(2024, time.September, 14),
			SampleSize:    1200,
			Subpopulation: models.LikelyVoters,
			DSupport:      48,
			RSupport:      45,
		},
	}

	var buf bytes.Buffer
	if err := WritePollsCSV(&buf, polls); err != nil {
		t.Fatalf("WritePollsCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[1] != "Quinnipiac,FiveThirtyEight,2024-09-10,2024-09-14,1200,lv,48.0,45.0,3.0" {
		t.Errorf("row = %q", lines[1])
	}
}
