package main

import (
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/lox/pollmedian/internal/config"
	"github.com/lox/pollmedian/internal/httputil"
	"github.com/lox/pollmedian/internal/ingest"
	"github.com/lox/pollmedian/internal/metrics"
	"github.com/lox/pollmedian/internal/models"
	"github.com/lox/pollmedian/internal/senate"
	"github.com/lox/pollmedian/internal/stats"
	"github.com/lox/pollmedian/internal/store"
	"github.com/lox/pollmedian/internal/timeseries"
)

var cli struct {
	DB          string `help:"Path to the SQLite database." default:"data/pollmedian.db" env:"POLLMEDIAN_DB"`
	MetricsAddr string `help:"Serve Prometheus metrics on this address while the command runs." env:"POLLMEDIAN_METRICS_ADDR"`

	SenatePriors    string `help:"CSV overriding the embedded Senate priors." type:"existingfile"`
	PresidentPriors string `help:"CSV overriding the embedded presidential priors." type:"existingfile"`

	Scrape  scrapeCmd  `cmd:"" help:"Fetch every polling source and store new polls."`
	Medians mediansCmd `cmd:"" help:"Recompute the daily median timeseries and write output files."`
	Senate  senateCmd  `cmd:"" help:"Compute the Senate seat distribution and meta-margin."`
	Health  healthCmd  `cmd:"" help:"Show recent ingest run health."`
}

type appCtx struct {
	store *store.Store
	cycle *config.Cycle
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("pollmedian"),
		kong.Description("Poll aggregation and robust median estimation for US federal elections."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	db, err := sql.Open("sqlite", cli.DB)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	cycle, err := config.Default2024()
	if err != nil {
		log.Fatalf("load cycle: %v", err)
	}
	if cli.SenatePriors != "" {
		if cycle.Senate, err = config.LoadContests(cli.SenatePriors); err != nil {
			log.Fatalf("load senate priors: %v", err)
		}
	}
	if cli.PresidentPriors != "" {
		if cycle.President, err = config.LoadContests(cli.PresidentPriors); err != nil {
			log.Fatalf("load president priors: %v", err)
		}
	}
	if err := senate.ValidateSeatTotals(cycle.DemSafe, cycle.RepSafe, len(cycle.Senate)); err != nil {
		log.Printf("config: WARNING: %v", err)
	}

	if cli.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			log.Printf("serving metrics on %s", cli.MetricsAddr)
			if err := http.ListenAndServe(cli.MetricsAddr, mux); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	kctx.FatalIfErrorf(kctx.Run(&appCtx{store: st, cycle: cycle}))
}

type scrapeCmd struct {
	RCPRace    map[string]string `help:"RCP race page per state code, e.g. --rcp-race AZ=https://..." mapsep:","`
	RCPGeneric string            `help:"RCP generic-ballot page URL."`
	RetainDays int               `default:"90" help:"Delete stored raw payloads older than this many days (0 disables cleanup)."`
}

func (c *scrapeCmd) Run(app *appCtx) error {
	runner := ingest.NewRunner(app.store, app.cycle, httputil.NewClient())

	if len(c.RCPRace) > 0 {
		var races []ingest.RaceURL
		for key, url := range c.RCPRace {
			contest := config.ResolveContest(app.cycle.Senate, key)
			if contest == nil {
				return fmt.Errorf("unknown senate contest %q", key)
			}
			races = append(races, ingest.RaceURL{URL: url, ContestKey: contest.Code})
		}
		sort.Slice(races, func(i, j int) bool { return races[i].ContestKey < races[j].ContestKey })
		runner.SetRCPSenateRaces(races)
	}
	if c.RCPGeneric != "" {
		runner.SetRCPGenericURL(c.RCPGeneric)
	}

	if err := runner.RunAll(); err != nil {
		return err
	}

	for _, race := range []string{"senate", "president", "house"} {
		summary, err := runner.Summary(race)
		if err != nil {
			return fmt.Errorf("summary: %w", err)
		}
		fmt.Println(summary)
	}

	if c.RetainDays > 0 {
		deleted, err := app.store.CleanupOldRawPayloads(c.RetainDays)
		if err != nil {
			return fmt.Errorf("cleanup raw payloads: %w", err)
		}
		if deleted > 0 {
			log.Printf("scrape: deleted %d raw payloads older than %d days", deleted, c.RetainDays)
		}
	}
	return nil
}

type mediansCmd struct {
	Out string `help:"Directory for output files." default:"output" type:"path"`
}

func (c *mediansCmd) Run(app *appCtx) error {
	if err := os.MkdirAll(c.Out, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	today := todayUTC()

	if err := c.statewide(app, "senate", app.cycle.Senate, today); err != nil {
		return err
	}
	if err := c.statewide(app, "president", app.cycle.President, today); err != nil {
		return err
	}
	return c.house(app, today)
}

func (c *mediansCmd) statewide(app *appCtx, race string, contests []models.Contest, today time.Time) error {
	contests, err := timeseries.CheckContests(contests)
	if err != nil {
		return fmt.Errorf("%s contests: %w", race, err)
	}
	pollsByContest, err := app.store.GetPollsByRace(race)
	if err != nil {
		return fmt.Errorf("load %s polls: %w", race, err)
	}

	opts := timeseries.Options{DynamicWindow: true, CycleYear: app.cycle.Year}
	rows := timeseries.BuildSeries(pollsByContest, contests, app.cycle.StartDate, today, opts)

	codeByNum := make(map[int]string, len(contests))
	for _, contest := range contests {
		codeByNum[contest.Num] = contest.Code
	}
	for _, row := range rows {
		if err := app.store.UpsertDayEstimate(race, codeByNum[row.ContestNum], row); err != nil {
			return fmt.Errorf("store %s estimate: %w", race, err)
		}
	}
	metrics.EstimateRowsWritten.WithLabelValues(race).Add(float64(len(rows)))

	if err := writeFile(filepath.Join(c.Out, race+".medians.txt"), func(w io.Writer) error {
		return timeseries.WriteMedians(w, rows)
	}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(c.Out, race+".medians.csv"), func(w io.Writer) error {
		return timeseries.WriteMediansCSV(w, rows)
	}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(c.Out, race+".polls.csv"), func(w io.Writer) error {
		return timeseries.WritePollsCSV(w, flattenPolls(pollsByContest))
	}); err != nil {
		return err
	}

	log.Printf("medians: %s: wrote %d rows for %d contests", race, len(rows), len(contests))
	return nil
}

func (c *mediansCmd) house(app *appCtx, today time.Time) error {
	polls, err := app.store.GetPollsByContest("house", app.cycle.House.Code)
	if err != nil {
		return fmt.Errorf("load house polls: %w", err)
	}

	opts := timeseries.Options{DynamicWindow: false, CycleYear: app.cycle.Year}
	rows := timeseries.BuildContestSeries(polls, app.cycle.House, app.cycle.StartDate, today, opts)
	for _, row := range rows {
		if err := app.store.UpsertDayEstimate("house", app.cycle.House.Code, row); err != nil {
			return fmt.Errorf("store house estimate: %w", err)
		}
	}
	metrics.EstimateRowsWritten.WithLabelValues("house").Add(float64(len(rows)))

	if err := writeFile(filepath.Join(c.Out, "house.medians.txt"), func(w io.Writer) error {
		return timeseries.WriteHouseMedians(w, rows)
	}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(c.Out, "house.rolling.csv"), func(w io.Writer) error {
		return timeseries.WriteRollingCSV(w, timeseries.BuildRolling(polls, app.cycle.StartDate, today))
	}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(c.Out, "house.polls.csv"), func(w io.Writer) error {
		return timeseries.WritePollsCSV(w, polls)
	}); err != nil {
		return err
	}

	log.Printf("medians: house: wrote %d rows from %d polls", len(rows), len(polls))
	return nil
}

type senateCmd struct {
	Out string `help:"Directory for output files." default:"output" type:"path"`
}

func (c *senateCmd) Run(app *appCtx) error {
	if err := os.MkdirAll(c.Out, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	latest, err := app.store.GetLatestDayEstimates("senate")
	if err != nil {
		return fmt.Errorf("load latest estimates: %w", err)
	}

	races := make([]senate.Race, 0, len(app.cycle.Senate))
	for _, contest := range app.cycle.Senate {
		est, ok := latest[contest.Code]
		if !ok {
			log.Printf("senate: no estimate for %s, run medians first; using prior", contest.Code)
			est = models.DayEstimate{MedianMargin: contest.Prior, EstStdDev: stats.SpreadNoPolls}
		}
		races = append(races, senate.Race{
			Code:   contest.Code,
			Margin: est.MedianMargin,
			Spread: est.EstStdDev,
		})
	}

	outcome := senate.Estimate(races, app.cycle.DemSafe, 0)
	fmt.Printf("median seats: %d D / %d R\n", outcome.MedianSeats, 100-outcome.MedianSeats)
	fmt.Printf("mean seats:   %.2f D\n", outcome.MeanSeats)
	fmt.Printf("Dem control:  %.1f%%\n", outcome.DemControl*100)

	if mm, err := senate.MetaMargin(races, app.cycle.DemSafe); err != nil {
		log.Printf("senate: meta-margin: %v", err)
	} else {
		fmt.Printf("meta-margin:  %+.2f\n", mm)
	}

	if err := writeFile(filepath.Join(c.Out, "senate.histogram.csv"), func(w io.Writer) error {
		return senate.WriteHistogramCSV(w, outcome, app.cycle.DemSafe)
	}); err != nil {
		return err
	}
	return writeFile(filepath.Join(c.Out, "senate.stateprobs.csv"), func(w io.Writer) error {
		return senate.WriteStateProbsCSV(w, races)
	})
}

type healthCmd struct {
	Days   int `help:"Days of history to summarize." default:"7"`
	Errors int `help:"Recent failed runs to show." default:"10"`
}

func (c *healthCmd) Run(app *appCtx) error {
	summaries, err := app.store.GetIngestHealth(c.Days)
	if err != nil {
		return fmt.Errorf("load ingest health: %w", err)
	}
	if len(summaries) == 0 {
		fmt.Println("no ingest runs recorded")
		return nil
	}

	fmt.Printf("%-12s %-10s %-28s %5s %4s %4s %8s %6s\n",
		"date", "source", "endpoint", "runs", "ok", "fail", "records", "perr")
	for _, h := range summaries {
		fmt.Printf("%-12s %-10s %-28s %5d %4d %4d %8d %6d\n",
			h.Date, h.Source, h.Endpoint, h.TotalRuns, h.SuccessRuns, h.FailedRuns,
			h.TotalRecords, h.TotalParseErrors)
	}

	failures, err := app.store.GetRecentIngestErrors(c.Errors)
	if err != nil {
		return fmt.Errorf("load ingest errors: %w", err)
	}
	if len(failures) > 0 {
		fmt.Println("\nrecent failures:")
		for _, run := range failures {
			fmt.Printf("  %s %s/%s: %s\n",
				run.StartedAt.Format("2006-01-02 15:04"), run.Source, run.Endpoint,
				run.ErrorMessage.String)
		}
	}
	return nil
}

func todayUTC() time.Time {
	now := time.Now().UTC()
	return models.Date(now.Year(), now.Month(), now.Day())
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// flattenPolls orders a race's polls by contest code then recency, for the
// combined CSV dump.
func flattenPolls(byContest map[string][]models.Poll) []models.Poll {
	codes := make([]string, 0, len(byContest))
	for code := range byContest {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var out []models.Poll
	for _, code := range codes {
		out = append(out, byContest[code]...)
	}
	return out
}
