// Package ingest fetches polls from the public aggregation feeds and
// normalizes them into the internal poll model. Each source tolerates
// partial failure: a feed that cannot be fetched or parsed reports an
// error without blocking the others.
package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lox/pollmedian/internal/models"
)

const SourceFTE = "FiveThirtyEight"

type FTE struct {
	baseURL string
	client  *http.Client
}

func NewFTE(client *http.Client) *FTE {
	return &FTE{
		baseURL: "https://projects.fivethirtyeight.com",
		client:  client,
	}
}

// NewFTEWithBaseURL is used by tests to point at a local server.
func NewFTEWithBaseURL(client *http.Client, baseURL string) *FTE {
	return &FTE{baseURL: baseURL, client: client}
}

// FTEAnswer is one candidate line within a feed poll.
type FTEAnswer struct {
	Choice string `json:"choice"`
	Pct    string `json:"pct"`
	Party  string `json:"party"`
}

// FTEPoll is the raw feed record. District is non-zero only for the
// congressional-district presidential polls in Maine and Nebraska.
type FTEPoll struct {
	Type       string      `json:"type"`
	State      string      `json:"state"`
	District   int         `json:"district"`
	Pollster   string      `json:"pollster"`
	Population string      `json:"population"`
	SampleSize *int        `json:"sampleSize"`
	StartDate  string      `json:"startDate"`
	EndDate    string      `json:"endDate"`
	URL        string      `json:"url"`
	Answers    []FTEAnswer `json:"answers"`
}

// FetchAll downloads the full poll feed, keeping only polls whose field
// period ended after Jan 1 of the given cycle year. The raw body is
// returned for payload archival.
func (f *FTE) FetchAll(year int) ([]FTEPoll, []byte, error) {
	url := f.baseURL + "/polls/polls.json"

	var body []byte
	operation := func() error {
		resp, err := f.client.Get(url)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("fetch polls: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
			return fmt.Errorf("rate limited: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("fetch polls: status %d: %s", resp.StatusCode, string(b)))
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
		return nil, nil, err
	}

	var all []FTEPoll
	if err := json.Unmarshal(body, &all); err != nil {
		return nil, nil, fmt.Errorf("unmarshal polls: %w", err)
	}

	cutoff := models.Date(year, time.January, 1)
	var kept []FTEPoll
	for _, p := range all {
		end, err := time.Parse("2006-01-02", p.EndDate)
		if err != nil {
			continue
		}
		if end.After(cutoff) {
			kept = append(kept, p)
		}
	}
	return kept, body, nil
}

// partySupport sums the reported percentages per side. Senate and
// presidential answers carry party labels; generic-ballot answers key
// the side directly in the choice field.
func partySupport(p FTEPoll, generic bool) (dem, rep float64, err error) {
	for _, a := range p.Answers {
		key := a.Party
		if generic {
			key = a.Choice
		}
		pct, perr := strconv.ParseFloat(a.Pct, 64)
		if perr != nil {
			return 0, 0, fmt.Errorf("parse pct %q: %w", a.Pct, perr)
		}
		switch key {
		case "Dem":
			dem += pct
		case "Rep":
			rep += pct
		}
	}
	return dem, rep, nil
}

// partyCandidate returns the leading named candidate for a party, or an
// error when no answer in the group carries that party label.
func partyCandidate(p FTEPoll, party string) (string, error) {
	for _, a := range p.Answers {
		if a.Party == party {
			return a.Choice, nil
		}
	}
	return "", fmt.Errorf("no %s candidate in answer group for %s/%s", party, p.State, p.Pollster)
}

func (p FTEPoll) toPoll(contestKey string) (models.Poll, error) {
	start, err := time.Parse("2006-01-02", p.StartDate)
	if err != nil {
		return models.Poll{}, fmt.Errorf("parse start date %q: %w", p.StartDate, err)
	}
	end, err := time.Parse("2006-01-02", p.EndDate)
	if err != nil {
		return models.Poll{}, fmt.Errorf("parse end date %q: %w", p.EndDate, err)
	}

	sampleSize := models.SampleSizeUnknown
	if p.SampleSize != nil {
		sampleSize = *p.SampleSize
	}

	return models.Poll{
		Pollster:      p.Pollster,
		Source:        SourceFTE,
		StartDate:     start,
		EndDate:       end,
		SampleSize:    sampleSize,
		Subpopulation: models.Subpopulation(p.Population),
		ContestKey:    contestKey,
		URL:           p.URL,
	}, nil
}

// SenateFromFeed converts raw senate polls for states listed in codeByState.
// Polls whose answer group lacks a named candidate for either party are
// rejected and counted as parse errors.
func SenateFromFeed(raw []FTEPoll, codeByState map[string]string) ([]models.Poll, int) {
	var polls []models.Poll
	parseErrors := 0
	for _, r := range raw {
		if r.Type != "senate" {
			continue
		}
		code, ok := codeByState[r.State]
		if !ok {
			continue
		}

		p, err := r.toPoll(code)
		if err != nil {
			parseErrors++
			continue
		}
		demCand, err := partyCandidate(r, "Dem")
		if err != nil {
			parseErrors++
			continue
		}
		repCand, err := partyCandidate(r, "Rep")
		if err != nil {
			parseErrors++
			continue
		}
		dem, rep, err := partySupport(r, false)
		if err != nil {
			parseErrors++
			continue
		}
		p.DemCand = demCand
		p.RepCand = repCand
		p.DSupport = dem
		p.RSupport = rep
		polls = append(polls, p)
	}
	return polls, parseErrors
}

// PresidentFromFeed converts raw president-general polls, after district
// cleaning has shifted or dropped the ME/NE congressional-district rows.
func PresidentFromFeed(raw []FTEPoll, codeByState map[string]string) ([]models.Poll, int) {
	var polls []models.Poll
	parseErrors := 0
	for _, r := range raw {
		if r.Type != "president-general" {
			continue
		}
		code, ok := codeByState[r.State]
		if !ok {
			continue
		}

		p, err := r.toPoll(code)
		if err != nil {
			parseErrors++
			continue
		}
		dem, rep, err := partySupport(r, false)
		if err != nil {
			parseErrors++
			continue
		}
		p.DSupport = dem
		p.RSupport = rep
		polls = append(polls, p)
	}
	return polls, parseErrors
}

// HouseFromFeed converts raw generic-ballot polls into a single national
// contest keyed "generic".
func HouseFromFeed(raw []FTEPoll) ([]models.Poll, int) {
	var polls []models.Poll
	parseErrors := 0
	for _, r := range raw {
		if r.Type != "generic-ballot" {
			continue
		}
		p, err := r.toPoll("generic")
		if err != nil {
			parseErrors++
			continue
		}
		dem, rep, err := partySupport(r, true)
		if err != nil {
			parseErrors++
			continue
		}
		p.DSupport = dem
		p.RSupport = rep
		polls = append(polls, p)
	}
	return polls, parseErrors
}
