package ingest

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
	"github.com/lox/pollmedian/internal/htmlutil"
	"github.com/lox/pollmedian/internal/models"
)

const SourceRCP = "Real Clear Politics"

// recentRaceRows caps race-page scraping to the polls shown above the
// fold; older rows duplicate what the JSON feed already carries.
const recentRaceRows = 7

// RCP scrapes the per-race polling tables. Each race page has a
// polling-data-full table with one row per poll; the candidate column
// order varies page to page and has to be detected from the header.
type RCP struct {
	client *http.Client
	now    func() time.Time
}

func NewRCP(client *http.Client) *RCP {
	return &RCP{client: client, now: time.Now}
}

// RaceURL identifies one scrapeable race page.
type RaceURL struct {
	URL        string
	ContestKey string
}

// FetchRace scrapes one senate race page. The raw body is returned for
// payload archival.
func (r *RCP) FetchRace(race RaceURL) ([]models.Poll, []byte, int, error) {
	body, err := r.get(race.URL)
	if err != nil {
		return nil, nil, 0, err
	}
	polls, parseErrors, err := r.parseRacePage(body, race)
	return polls, body, parseErrors, err
}

// FetchGeneric scrapes the generic congressional ballot page. Unlike the
// race pages the candidate columns are fixed: Democrats then Republicans.
func (r *RCP) FetchGeneric(url string) ([]models.Poll, []byte, int, error) {
	body, err := r.get(url)
	if err != nil {
		return nil, nil, 0, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, body, 0, fmt.Errorf("parse generic page: %w", err)
	}

	var polls []models.Poll
	parseErrors := 0
	doc.Find("tr[data-id]").Each(func(_ int, row *goquery.Selection) {
		cells := row.Children()
		if cells.Length() < 5 {
			parseErrors++
			return
		}
		p, err := r.parseRow(cells, 3, 4)
		if err != nil {
			parseErrors++
			return
		}
		p.ContestKey = "generic"
		polls = append(polls, p)
	})
	return polls, body, parseErrors, nil
}

func (r *RCP) parseRacePage(body []byte, race RaceURL) ([]models.Poll, int, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("parse race page: %w", err)
	}

	table := doc.Find("#polling-data-full")
	if table.Length() == 0 {
		return nil, 0, fmt.Errorf("no polling-data-full table at %s", race.URL)
	}

	// Column 4 usually holds the Democrat, but some pages swap the
	// candidates. The header cell carries "Name (R)" or "Name (D)".
	demCol, repCol := 4, 5
	header := table.Find("tr").First().Children()
	demName := cellText(header.Eq(demCol))
	repName := cellText(header.Eq(repCol))
	if strings.Contains(demName, "(R)") {
		demName, repName = repName, demName
		demCol, repCol = repCol, demCol
	}

	var polls []models.Poll
	parseErrors := 0
	rows := table.Find("tr[data-id]")
	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		if i >= recentRaceRows {
			return false
		}
		cells := row.Children()
		if cells.Length() <= repCol {
			parseErrors++
			return true
		}
		p, err := r.parseRow(cells, demCol, repCol)
		if err != nil {
			parseErrors++
			return true
		}
		p.ContestKey = race.ContestKey
		p.DemCand = firstWord(demName)
		p.RepCand = firstWord(repName)
		polls = append(polls, p)
		return true
	})
	return polls, parseErrors, nil
}

func (r *RCP) parseRow(cells *goquery.Selection, demCol, repCol int) (models.Poll, error) {
	var p models.Poll
	p.Source = SourceRCP

	link := cells.Eq(0).Find("a").First()
	p.Pollster = strings.TrimSpace(link.Text())
	if p.Pollster == "" {
		p.Pollster = cellText(cells.Eq(0))
	}
	if p.Pollster == "" {
		return p, fmt.Errorf("row has no pollster")
	}
	p.URL, _ = link.Attr("href")

	start, end, err := r.parseDateRange(cellText(cells.Eq(1)))
	if err != nil {
		return p, err
	}
	p.StartDate = start
	p.EndDate = end

	p.SampleSize, p.Subpopulation = parseSampleCell(cellText(cells.Eq(2)))

	dem, err := strconv.ParseFloat(cellText(cells.Eq(demCol)), 64)
	if err != nil {
		return p, fmt.Errorf("parse dem support: %w", err)
	}
	rep, err := strconv.ParseFloat(cellText(cells.Eq(repCol)), 64)
	if err != nil {
		return p, fmt.Errorf("parse rep support: %w", err)
	}
	p.DSupport = dem
	p.RSupport = rep
	return p, nil
}

// parseDateRange handles the page's "7/1 - 7/5" format, which carries no
// year. Dates in the future are assumed to belong to last year.
func (r *RCP) parseDateRange(s string) (start, end time.Time, err error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return start, end, fmt.Errorf("unexpected date range %q", s)
	}
	today := r.now().UTC()

	parse := func(part string) (time.Time, error) {
		md := strings.Split(strings.TrimSpace(part), "/")
		if len(md) != 2 {
			return time.Time{}, fmt.Errorf("unexpected date %q", part)
		}
		month, err := strconv.Atoi(md[0])
		if err != nil {
			return time.Time{}, err
		}
		day, err := strconv.Atoi(md[1])
		if err != nil {
			return time.Time{}, err
		}
		d := models.Date(today.Year(), time.Month(month), day)
		if d.After(today) {
			d = d.AddDate(-1, 0, 0)
		}
		return d, nil
	}

	if start, err = parse(parts[0]); err != nil {
		return start, end, err
	}
	if end, err = parse(parts[1]); err != nil {
		return start, end, err
	}
	return start, end, nil
}

// parseSampleCell handles "1200 LV", "LV" (size withheld), and empty cells.
func parseSampleCell(s string) (int, models.Subpopulation) {
	fields := strings.Fields(s)
	switch len(fields) {
	case 2:
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			return models.SampleSizeUnknown, subpopFromLabel(fields[1])
		}
		return n, subpopFromLabel(fields[1])
	case 1:
		return models.SampleSizeUnknown, subpopFromLabel(fields[0])
	default:
		return models.SampleSizeUnknown, ""
	}
}

func subpopFromLabel(label string) models.Subpopulation {
	switch strings.ToUpper(label) {
	case "LV":
		return models.LikelyVoters
	case "RV":
		return models.RegisteredVoters
	case "A":
		return models.Adults
	case "V":
		return models.Voters
	default:
		return ""
	}
}

// cellText extracts the visible text of one table cell, stripping any
// markup and entities the page nests inside it.
func cellText(sel *goquery.Selection) string {
	html, err := goquery.OuterHtml(sel)
	if err != nil {
		return strings.TrimSpace(sel.Text())
	}
	return htmlutil.ToText(html)
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func (r *RCP) get(url string) ([]byte, error) {
	var body []byte
	operation := func() error {
		resp, err := r.client.Get(url)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("fetch %s: %w", url, err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
			return fmt.Errorf("rate limited: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("fetch %s: status %d: %s", url, resp.StatusCode, string(b)))
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
		return nil, err
	}
	return body, nil
}
