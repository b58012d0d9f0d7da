package ingest

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lox/pollmedian/internal/models"
)

func TestFTEFetchAll(t *testing.T) {
	feed := `[
		{"type": "senate", "state": "Pennsylvania", "pollster": "Quinnipiac",
		 "population": "lv", "startDate": "2024-09-10", "endDate": "2024-09-14",
		 "answers": [{"choice": "Casey", "pct": "48.0", "party": "Dem"},
		             {"choice": "McCormick", "pct": "45.0", "party": "Rep"}]},
		{"type": "senate", "state": "Ohio", "pollster": "Stale",
		 "population": "lv", "startDate": "2023-05-01", "endDate": "2023-05-05",
		 "answers": []}
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/polls/polls.json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(feed))
	}))
	defer srv.Close()

	fte := NewFTEWithBaseURL(srv.Client(), srv.URL)
	polls, body, err := fte.FetchAll(2024)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(polls) != 1 {
		t.Fatalf("len(polls) = %d, want 1 (prior-cycle poll dropped)", len(polls))
	}
	if polls[0].Pollster != "Quinnipiac" {
		t.Errorf("Pollster = %q, want Quinnipiac", polls[0].Pollster)
	}
	if len(body) == 0 {
		t.Error("raw body not returned for archival")
	}
}

func TestFTEFetchAll_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	fte := NewFTEWithBaseURL(srv.Client(), srv.URL)
	if _, _, err := fte.FetchAll(2024); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestEvoteFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pa 48 45 . Sep 10 Sep 14 Quinnipiac\n"))
	}))
	defer srv.Close()

	e := NewEvoteWithURL(srv.Client(), srv.URL)
	candidates := map[string][2]string{"PA": {"Casey", "McCormick"}}
	polls, body, parseErrors, err := e.Fetch(2024, models.Date(2024, 3, 1), candidates)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if parseErrors != 0 {
		t.Errorf("parseErrors = %d, want 0", parseErrors)
	}
	if len(polls) != 1 || polls[0].ContestKey != "PA" {
		t.Fatalf("polls = %v, want one PA poll", polls)
	}
	if len(body) == 0 {
		t.Error("raw body not returned for archival")
	}
}

func TestGenericBallotFetch(t *testing.T) {
	csv := "subgroup,pollster,startdate,enddate,samplesize,population,dem,rep\n" +
		"All polls,YouGov,8/1/2024,8/5/2024,1500,rv,47.0,44.0\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(csv))
	}))
	defer srv.Close()

	g := NewGenericBallotWithBaseURL(srv.Client(), srv.URL)
	polls, _, parseErrors, err := g.Fetch()
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if parseErrors != 0 || len(polls) != 1 {
		t.Fatalf("polls = %d, parseErrors = %d, want 1 and 0", len(polls), parseErrors)
	}
	if polls[0].ContestKey != "generic" {
		t.Errorf("ContestKey = %q, want generic", polls[0].ContestKey)
	}
}

func TestPollsterFetch(t *testing.T) {
	tsv := "survey_house\tstart_date\tend_date\tsample_subpopulation\tobservations\tDemocrat\tRepublican\n" +
		"Marist\t2024-08-01\t2024-08-04\tRegistered Voters\t1100\t46.0\t44.0\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(tsv))
	}))
	defer srv.Close()

	p := NewPollsterWithURL(srv.Client(), srv.URL)
	polls, _, parseErrors, err := p.Fetch()
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if parseErrors != 0 || len(polls) != 1 {
		t.Fatalf("polls = %d, parseErrors = %d, want 1 and 0", len(polls), parseErrors)
	}
	if polls[0].Source != SourcePollster {
		t.Errorf("Source = %q, want %q", polls[0].Source, SourcePollster)
	}
}
