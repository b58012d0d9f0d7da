package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lox/pollmedian/internal/models"
)

// GenericBallot fetches the standalone generic-ballot CSV export, the
// older sibling of the polls.json feed. Dates arrive as M/D/YYYY.
type GenericBallot struct {
	baseURL string
	client  *http.Client
}

func NewGenericBallot(client *http.Client) *GenericBallot {
	return &GenericBallot{
		baseURL: "https://projects.fivethirtyeight.com",
		client:  client,
	}
}

func NewGenericBallotWithBaseURL(client *http.Client, baseURL string) *GenericBallot {
	return &GenericBallot{baseURL: baseURL, client: client}
}

// Fetch downloads and parses the generic ballot poll list. Returns the
// parsed polls, the raw body for archival, and a parse error count.
func (g *GenericBallot) Fetch() ([]models.Poll, []byte, int, error) {
	url := g.baseURL + "/generic-ballot-data/generic_polllist.csv"

	var body []byte
	operation := func() error {
		resp, err := g.client.Get(url)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("fetch generic ballot: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
			return fmt.Errorf("rate limited: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("fetch generic ballot: status %d: %s", resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, nil, 0, err
	}

	polls, parseErrors, err := parseGenericBallotCSV(body)
	if err != nil {
		return nil, body, parseErrors, err
	}
	return polls, body, parseErrors, nil
}

func parseGenericBallotCSV(body []byte) ([]models.Poll, int, error) {
	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"pollster", "startdate", "enddate", "samplesize", "population", "dem", "rep"} {
		if _, ok := col[required]; !ok {
			return nil, 0, fmt.Errorf("generic ballot CSV missing column %q", required)
		}
	}

	var polls []models.Poll
	parseErrors := 0
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			parseErrors++
			continue
		}

		start, err := parseSlashDate(rec[col["startdate"]])
		if err != nil {
			parseErrors++
			continue
		}
		end, err := parseSlashDate(rec[col["enddate"]])
		if err != nil {
			parseErrors++
			continue
		}
		dem, err := strconv.ParseFloat(rec[col["dem"]], 64)
		if err != nil {
			parseErrors++
			continue
		}
		rep, err := strconv.ParseFloat(rec[col["rep"]], 64)
		if err != nil {
			parseErrors++
			continue
		}

		sampleSize := models.SampleSizeUnknown
		if n, err := strconv.ParseFloat(rec[col["samplesize"]], 64); err == nil {
			sampleSize = int(n)
		}

		polls = append(polls, models.Poll{
			Pollster:      rec[col["pollster"]],
			Source:        SourceFTE,
			StartDate:     start,
			EndDate:       end,
			SampleSize:    sampleSize,
			Subpopulation: models.Subpopulation(rec[col["population"]]),
			DSupport:      dem,
			RSupport:      rep,
			ContestKey:    "generic",
		})
	}
	return polls, parseErrors, nil
}

// parseSlashDate handles the feed's M/D/YYYY format.
func parseSlashDate(s string) (time.Time, error) {
	t, err := time.Parse("1/2/2006", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}
