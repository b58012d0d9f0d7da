package ingest

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/lox/pollmedian/internal/config"
	"github.com/lox/pollmedian/internal/dedup"
	"github.com/lox/pollmedian/internal/metrics"
	"github.com/lox/pollmedian/internal/models"
	"github.com/lox/pollmedian/internal/store"
)

// Runner orchestrates one scrape pass across every configured source.
// Sources run sequentially; a failing source is logged and recorded
// against its ingest run, and the remaining sources still execute.
type Runner struct {
	store *store.Store
	cycle *config.Cycle

	fte      *FTE
	generic  *GenericBallot
	rcp      *RCP
	pollster *Pollster
	evote    *Evote

	rcpSenateRaces []RaceURL
	rcpGenericURL  string
}

func NewRunner(st *store.Store, cycle *config.Cycle, client *http.Client) *Runner {
	evote := NewEvote(client, cycle.Year)
	evote.Blocked = func(pollster string) bool {
		return cycle.Blocked(SourceEvote, pollster)
	}
	return &Runner{
		store:    st,
		cycle:    cycle,
		fte:      NewFTE(client),
		generic:  NewGenericBallot(client),
		rcp:      NewRCP(client),
		pollster: NewPollster(client, cycle.Year),
		evote:    evote,
	}
}

// SetRCPSenateRaces configures the hand-curated per-race pages to scrape.
func (r *Runner) SetRCPSenateRaces(races []RaceURL) {
	r.rcpSenateRaces = races
}

// SetRCPGenericURL configures the generic congressional ballot page.
func (r *Runner) SetRCPGenericURL(url string) {
	r.rcpGenericURL = url
}

// RunAll runs every configured source and stores the merged results.
func (r *Runner) RunAll() error {
	raw := r.fetchFeed()

	r.ingestSenate(raw)
	r.ingestPresident(raw)
	r.ingestHouse(raw)
	return nil
}

// fetchFeed pulls the main JSON feed once; senate, president, and house
// all slice it. District-level presidential rows are folded into their
// statewide series before anything reads them.
func (r *Runner) fetchFeed() []FTEPoll {
	run, _ := r.store.StartIngestRun("fte", "polls.json", nil, nil)

	raw, body, err := r.fte.FetchAll(r.cycle.Year)
	if run != nil {
		run.Success = err == nil
		if len(body) > 0 {
			run.ResponseSizeBytes = sql.NullInt64{Int64: int64(len(body)), Valid: true}
		}
		run.RecordsParsed = sql.NullInt64{Int64: int64(len(raw)), Valid: true}
		if err != nil {
			run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
		}
	}
	if len(body) > 0 && run != nil {
		if _, perr := r.store.StoreRawPayload(&run.ID, "fte", "polls.json", nil, nil, body); perr != nil {
			log.Printf("runner: store feed raw payload: %v", perr)
		}
	}
	if run != nil {
		metrics.FeedFetchLatency.WithLabelValues("fte").Observe(time.Since(run.StartedAt).Seconds())
		r.store.CompleteIngestRun(run)
	}

	if err != nil {
		metrics.FeedFetchesTotal.WithLabelValues("fte", "error").Inc()
		log.Printf("runner: fetch poll feed: %v", err)
		return nil
	}
	metrics.FeedFetchesTotal.WithLabelValues("fte", "ok").Inc()

	return CleanDistricts(raw)
}

func (r *Runner) ingestSenate(raw []FTEPoll) {
	codeByState := make(map[string]string, len(r.cycle.Senate))
	candidatesByCode := make(map[string][2]string, len(r.cycle.Senate))
	for _, c := range r.cycle.Senate {
		codeByState[c.Name] = c.Code
		candidatesByCode[c.Code] = [2]string{c.DemCand, c.RepCand}
	}

	ftePolls, parseErrors := SenateFromFeed(raw, codeByState)
	if parseErrors > 0 {
		metrics.ParseErrors.WithLabelValues("fte").Add(float64(parseErrors))
		log.Printf("runner: senate feed: %d answer groups rejected", parseErrors)
	}
	ftePolls = dedup.RemoveExactByMargin(ftePolls)

	evotePolls := r.fetchEvote(candidatesByCode)
	rcpPolls := r.fetchRCPSenate()

	// RCP rows win over the text dump, and both win over the feed:
	// the later source in each merge survives conflicts.
	merged := dedup.MergeContest(ftePolls, dedup.MergeContest(evotePolls, rcpPolls))
	r.storePolls("senate", merged)
}

func (r *Runner) ingestPresident(raw []FTEPoll) {
	codeByState := make(map[string]string, len(r.cycle.President))
	for _, c := range r.cycle.President {
		codeByState[c.Name] = c.Code
	}

	polls, parseErrors := PresidentFromFeed(raw, codeByState)
	if parseErrors > 0 {
		metrics.ParseErrors.WithLabelValues("fte").Add(float64(parseErrors))
	}
	polls = dedup.RemoveExactByMargin(polls)
	r.storePolls("president", polls)
}

func (r *Runner) ingestHouse(raw []FTEPoll) {
	fedPolls, parseErrors := HouseFromFeed(raw)
	if parseErrors > 0 {
		metrics.ParseErrors.WithLabelValues("fte").Add(float64(parseErrors))
	}

	csvPolls := r.fetchGenericBallot()
	rcpPolls := r.fetchRCPGeneric()
	pollsterPolls := r.fetchPollster()

	fedPolls = dedup.RemoveExact(append(fedPolls, csvPolls...))

	merged := dedup.MergeGeneric(dedup.MergeGeneric(fedPolls, rcpPolls), pollsterPolls)
	r.storePolls("house", merged)
}

func (r *Runner) fetchGenericBallot() []models.Poll {
	run, _ := r.store.StartIngestRun("fte", "generic_polllist.csv", nil, nil)
	polls, body, parseErrors, err := r.generic.Fetch()
	r.finishRun(run, "fte", "generic_polllist.csv", body, len(polls), parseErrors, err)
	if err != nil {
		log.Printf("runner: fetch generic ballot: %v", err)
		return nil
	}
	return polls
}

func (r *Runner) fetchRCPSenate() []models.Poll {
	var all []models.Poll
	for _, race := range r.rcpSenateRaces {
		contestKey := race.ContestKey
		run, _ := r.store.StartIngestRun("rcp", race.URL, nil, &contestKey)
		polls, body, parseErrors, err := r.rcp.FetchRace(race)
		r.finishRun(run, "rcp", race.URL, body, len(polls), parseErrors, err)
		if err != nil {
			log.Printf("runner: fetch rcp race %s: %v", race.ContestKey, err)
			continue
		}
		all = append(all, polls...)
	}
	return all
}

func (r *Runner) fetchRCPGeneric() []models.Poll {
	if r.rcpGenericURL == "" {
		return nil
	}
	run, _ := r.store.StartIngestRun("rcp", r.rcpGenericURL, nil, nil)
	polls, body, parseErrors, err := r.rcp.FetchGeneric(r.rcpGenericURL)
	r.finishRun(run, "rcp", r.rcpGenericURL, body, len(polls), parseErrors, err)
	if err != nil {
		log.Printf("runner: fetch rcp generic: %v", err)
		return nil
	}
	return dedup.RemoveExact(polls)
}

func (r *Runner) fetchPollster() []models.Poll {
	run, _ := r.store.StartIngestRun("pollster", "poll-responses-clean.tsv", nil, nil)
	polls, body, parseErrors, err := r.pollster.Fetch()
	r.finishRun(run, "pollster", "poll-responses-clean.tsv", body, len(polls), parseErrors, err)
	if err != nil {
		log.Printf("runner: fetch pollster: %v", err)
		return nil
	}
	return dedup.RemoveExact(polls)
}

func (r *Runner) fetchEvote(candidatesByCode map[string][2]string) []models.Poll {
	run, _ := r.store.StartIngestRun("evote", "senate_polls.txt", nil, nil)
	polls, body, parseErrors, err := r.evote.Fetch(r.cycle.Year, r.cycle.StartDate, candidatesByCode)
	r.finishRun(run, "evote", "senate_polls.txt", body, len(polls), parseErrors, err)
	if err != nil {
		log.Printf("runner: fetch evote: %v", err)
		return nil
	}
	return dedup.RemoveExactByMargin(polls)
}

func (r *Runner) finishRun(run *store.IngestRun, source, endpoint string, body []byte, parsed, parseErrors int, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.FeedFetchesTotal.WithLabelValues(source, status).Inc()
	if parseErrors > 0 {
		metrics.ParseErrors.WithLabelValues(source).Add(float64(parseErrors))
	}

	if run == nil {
		return
	}
	metrics.FeedFetchLatency.WithLabelValues(source).Observe(time.Since(run.StartedAt).Seconds())
	run.Success = err == nil
	if len(body) > 0 {
		run.ResponseSizeBytes = sql.NullInt64{Int64: int64(len(body)), Valid: true}
	}
	run.RecordsParsed = sql.NullInt64{Int64: int64(parsed), Valid: true}
	if parseErrors > 0 {
		run.ParseErrors = sql.NullInt64{Int64: int64(parseErrors), Valid: true}
	}
	if err != nil {
		run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
	}
	if len(body) > 0 {
		if _, perr := r.store.StoreRawPayload(&run.ID, source, endpoint, nil, nil, body); perr != nil {
			log.Printf("runner: store %s raw payload: %v", source, perr)
		}
	}
	r.store.CompleteIngestRun(run)
}

func (r *Runner) storePolls(raceType string, polls []models.Poll) {
	stored := 0
	for _, p := range polls {
		if err := r.store.UpsertPoll(raceType, p); err != nil {
			log.Printf("runner: upsert %s poll %s/%s: %v", raceType, p.ContestKey, p.Pollster, err)
			continue
		}
		stored++
		metrics.PollsIngested.WithLabelValues(p.Source, raceType).Inc()
	}
	log.Printf("runner: stored %d %s polls", stored, raceType)
}

// Summary reports counts by source after a scrape, for the CLI.
func (r *Runner) Summary(raceType string) (string, error) {
	counts, err := r.store.CountPolls(raceType)
	if err != nil {
		return "", err
	}
	s := fmt.Sprintf("%s:", raceType)
	for source, n := range counts {
		s += fmt.Sprintf(" %s=%d", source, n)
	}
	return s, nil
}
