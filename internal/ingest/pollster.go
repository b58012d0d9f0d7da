package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lox/pollmedian/internal/models"
)

const SourcePollster = "HuffPost Pollster"

// Pollster fetches cleaned generic-ballot responses from the Pollster
// API. The feed is tab separated with one row per poll response set.
type Pollster struct {
	url    string
	client *http.Client
}

func NewPollster(client *http.Client, cycleYear int) *Pollster {
	return &Pollster{
		url:    fmt.Sprintf("https://elections.huffingtonpost.com/pollster/api/v2/questions/%02d-US-House/poll-responses-clean.tsv", cycleYear%100),
		client: client,
	}
}

func NewPollsterWithURL(client *http.Client, url string) *Pollster {
	return &Pollster{url: url, client: client}
}

// Fetch downloads and parses the TSV feed.
func (p *Pollster) Fetch() ([]models.Poll, []byte, int, error) {
	var body []byte
	operation := func() error {
		resp, err := p.client.Get(p.url)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("fetch pollster: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
			return fmt.Errorf("rate limited: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("fetch pollster: status %d: %s", resp.StatusCode, string(b)))
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

	polls, parseErrors, err := parsePollsterTSV(body)
	if err != nil {
		return nil, body, parseErrors, err
	}
	return polls, body, parseErrors, nil
}

func parsePollsterTSV(body []byte) ([]models.Poll, int, error) {
	reader := csv.NewReader(bytes.NewReader(body))
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"survey_house", "start_date", "end_date", "sample_subpopulation", "observations", "Democrat", "Republican"} {
		if _, ok := col[required]; !ok {
			return nil, 0, fmt.Errorf("pollster TSV missing column %q", required)
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

		start, err := time.Parse("2006-01-02", rec[col["start_date"]])
		if err != nil {
			parseErrors++
			continue
		}
		end, err := time.Parse("2006-01-02", rec[col["end_date"]])
		if err != nil {
			parseErrors++
			continue
		}
		dem, err := strconv.ParseFloat(rec[col["Democrat"]], 64)
		if err != nil {
			parseErrors++
			continue
		}
		rep, err := strconv.ParseFloat(rec[col["Republican"]], 64)
		if err != nil {
			parseErrors++
			continue
		}

		sampleSize := models.SampleSizeUnknown
		if n, err := strconv.ParseFloat(rec[col["observations"]], 64); err == nil {
			sampleSize = int(n)
		}

		polls = append(polls, models.Poll{
			Pollster:      rec[col["survey_house"]],
			Source:        SourcePollster,
			StartDate:     start,
			EndDate:       end,
			SampleSize:    sampleSize,
			Subpopulation: subpopFromName(rec[col["sample_subpopulation"]]),
			DSupport:      dem,
			RSupport:      rep,
			ContestKey:    "generic",
		})
	}
	return polls, parseErrors, nil
}

// subpopFromName maps the feed's long-form labels ("Likely Voters") to
// the short codes the rest of the pipeline uses.
func subpopFromName(name string) models.Subpopulation {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "likely voters":
		return models.LikelyVoters
	case "registered voters":
		return models.RegisteredVoters
	case "adults":
		return models.Adults
	case "voters":
		return models.Voters
	default:
		return ""
	}
}
