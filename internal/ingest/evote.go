package ingest

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lox/pollmedian/internal/models"
)

const SourceEvote = "electoral-vote"

// Evote fetches the plain-text senate poll dump. Each line is a
// whitespace-delimited record:
//
//	az 47 45 . Sep 10 Sep 14 Some Pollster Name
//
// with no year on the dates and no sample size anywhere.
type Evote struct {
	url    string
	client *http.Client
	// Blocked filters pollsters whose entries in this feed double-count
	// polls already carried by the structured feeds.
	Blocked func(pollster string) bool
}

func NewEvote(client *http.Client, cycleYear int) *Evote {
	return &Evote{
		url:    fmt.Sprintf("https://electoral-vote.com/evp%d/Senate/senate_polls.txt", cycleYear),
		client: client,
	}
}

func NewEvoteWithURL(client *http.Client, url string) *Evote {
	return &Evote{url: url, client: client}
}

// Fetch downloads and parses the feed. Only lines for contests present in
// candidatesByCode are kept, and polls ending before cycleStart are
// skipped. cycleYear supplies the year the dates omit.
func (e *Evote) Fetch(cycleYear int, cycleStart time.Time, candidatesByCode map[string][2]string) ([]models.Poll, []byte, int, error) {
	var body []byte
	operation := func() error {
		resp, err := e.client.Get(e.url)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("fetch evote: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
			return fmt.Errorf("rate limited: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("fetch evote: status %d: %s", resp.StatusCode, string(b)))
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

	polls, parseErrors := e.parse(body, cycleYear, cycleStart, candidatesByCode)
	return polls, body, parseErrors, nil
}

func (e *Evote) parse(body []byte, cycleYear int, cycleStart time.Time, candidatesByCode map[string][2]string) ([]models.Poll, int) {
	var polls []models.Poll
	parseErrors := 0

	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 9 {
			parseErrors++
			continue
		}

		code := strings.ToUpper(fields[0])
		cands, ok := candidatesByCode[code]
		if !ok {
			continue
		}

		dem, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			parseErrors++
			continue
		}
		rep, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			parseErrors++
			continue
		}

		start, err := parseMonthDay(cycleYear, fields[4], fields[5])
		if err != nil {
			parseErrors++
			continue
		}
		end, err := parseMonthDay(cycleYear, fields[6], fields[7])
		if err != nil {
			parseErrors++
			continue
		}
		if end.Before(cycleStart) {
			continue
		}

		pollster := strings.Join(fields[8:], " ")
		if e.Blocked != nil && e.Blocked(pollster) {
			continue
		}

		polls = append(polls, models.Poll{
			Pollster:   pollster,
			Source:     SourceEvote,
			StartDate:  start,
			EndDate:    end,
			SampleSize: models.SampleSizeUnknown,
			DSupport:   dem,
			RSupport:   rep,
			ContestKey: code,
			DemCand:    cands[0],
			RepCand:    cands[1],
			URL:        fmt.Sprintf("https://electoral-vote.com/evp%d/Info/datagalore.html", cycleYear),
		})
	}
	return polls, parseErrors
}

func parseMonthDay(year int, month, day string) (time.Time, error) {
	t, err := time.Parse("2006-Jan-2", fmt.Sprintf("%d-%s-%s", year, month, day))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %s %s: %w", month, day, err)
	}
	return t, nil
}
