package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lox/pollmedian/internal/models"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const dateFormat = "2006-01-02"

// UpsertPoll inserts a poll, replacing support numbers when the same
// (race, contest, pollster, source, field period, subpopulation) row
// arrives again with corrected values.
func (s *Store) UpsertPoll(raceType string, p models.Poll) error {
	sampleSize := sql.NullInt64{}
	if p.SampleSize != models.SampleSizeUnknown {
		sampleSize = sql.NullInt64{Int64: int64(p.SampleSize), Valid: true}
	}
	_, err := s.db.Exec(`
		INSERT INTO polls (race_type, contest_key, pollster, source, start_date, end_date, sample_size, subpopulation, dem_support, rep_support, dem_candidate, rep_candidate, url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(race_type, contest_key, pollster, source, start_date, end_date, subpopulation) DO UPDATE SET
			sample_size = excluded.sample_size,
			dem_support = excluded.dem_support,
			rep_support = excluded.rep_support,
			dem_candidate = excluded.dem_candidate,
			rep_candidate = excluded.rep_candidate,
			url = excluded.url
	`, raceType, p.ContestKey, p.Pollster, p.Source,
		p.StartDate.Format(dateFormat), p.EndDate.Format(dateFormat),
		sampleSize, string(p.Subpopulation), p.DSupport, p.RSupport,
		p.DemCand, p.RepCand, p.URL)
	return err
}

// GetPollsByContest returns all stored polls for one contest, most
// recent field period first.
func (s *Store) GetPollsByContest(raceType, contestKey string) ([]models.Poll, error) {
	rows, err := s.db.Query(`
		SELECT contest_key, pollster, source, start_date, end_date, sample_size, subpopulation, dem_support, rep_support, dem_candidate, rep_candidate, url
		FROM polls
		WHERE race_type = ? AND contest_key = ?
		ORDER BY end_date DESC, start_date DESC
	`, raceType, contestKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPolls(rows)
}

// GetPollsByRace returns every stored poll of one race type keyed by contest.
func (s *Store) GetPollsByRace(raceType string) (map[string][]models.Poll, error) {
	rows, err := s.db.Query(`
		SELECT contest_key, pollster, source, start_date, end_date, sample_size, subpopulation, dem_support, rep_support, dem_candidate, rep_candidate, url
		FROM polls
		WHERE race_type = ?
		ORDER BY contest_key, end_date DESC, start_date DESC
	`, raceType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	polls, err := scanPolls(rows)
	if err != nil {
		return nil, err
	}
	byContest := make(map[string][]models.Poll)
	for _, p := range polls {
		byContest[p.ContestKey] = append(byContest[p.ContestKey], p)
	}
	return byContest, nil
}

func scanPolls(rows *sql.Rows) ([]models.Poll, error) {
	var polls []models.Poll
	for rows.Next() {
		var p models.Poll
		var startStr, endStr, subpop string
		var sampleSize sql.NullInt64
		var demCand, repCand, url sql.NullString
		if err := rows.Scan(&p.ContestKey, &p.Pollster, &p.Source, &startStr, &endStr, &sampleSize, &subpop, &p.DSupport, &p.RSupport, &demCand, &repCand, &url); err != nil {
			return nil, err
		}
		start, err := time.Parse(dateFormat, startStr)
		if err != nil {
			return nil, fmt.Errorf("parse poll start date %q: %w", startStr, err)
		}
		end, err := time.Parse(dateFormat, endStr)
		if err != nil {
			return nil, fmt.Errorf("parse poll end date %q: %w", endStr, err)
		}
		p.StartDate = start
		p.EndDate = end
		p.Subpopulation = models.Subpopulation(subpop)
		p.SampleSize = models.SampleSizeUnknown
		if sampleSize.Valid {
			p.SampleSize = int(sampleSize.Int64)
		}
		p.DemCand = demCand.String
		p.RepCand = repCand.String
		p.URL = url.String
		polls = append(polls, p)
	}
	return polls, rows.Err()
}

// UpsertDayEstimate records the aggregate estimate for one contest day,
// replacing any earlier computation for the same day.
func (s *Store) UpsertDayEstimate(raceType, contestKey string, e models.DayEstimate) error {
	_, err := s.db.Exec(`
		INSERT INTO day_estimates (race_type, contest_key, as_of_day, julian_date, num_polls, date_most_recent_poll, median_margin, est_std_dev, contest_num)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(race_type, contest_key, as_of_day) DO UPDATE SET
			julian_date = excluded.julian_date,
			num_polls = excluded.num_polls,
			date_most_recent_poll = excluded.date_most_recent_poll,
			median_margin = excluded.median_margin,
			est_std_dev = excluded.est_std_dev,
			contest_num = excluded.contest_num
	`, raceType, contestKey, e.AsOfDay.Format(dateFormat), e.JulianDate, e.NumPolls,
		e.DateMostRecentPoll, e.MedianMargin, e.EstStdDev, e.ContestNum)
	return err
}

// GetDayEstimates returns the stored series for one contest, oldest day first.
func (s *Store) GetDayEstimates(raceType, contestKey string) ([]models.DayEstimate, error) {
	rows, err := s.db.Query(`
		SELECT as_of_day, julian_date, num_polls, date_most_recent_poll, median_margin, est_std_dev, contest_num
		FROM day_estimates
		WHERE race_type = ? AND contest_key = ?
		ORDER BY as_of_day ASC
	`, raceType, contestKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var estimates []models.DayEstimate
	for rows.Next() {
		var e models.DayEstimate
		var dayStr string
		if err := rows.Scan(&dayStr, &e.JulianDate, &e.NumPolls, &e.DateMostRecentPoll, &e.MedianMargin, &e.EstStdDev, &e.ContestNum); err != nil {
			return nil, err
		}
		day, err := time.Parse(dateFormat, dayStr)
		if err != nil {
			return nil, fmt.Errorf("parse estimate day %q: %w", dayStr, err)
		}
		e.AsOfDay = day
		estimates = append(estimates, e)
	}
	return estimates, rows.Err()
}

// GetLatestDayEstimates returns the most recent estimate for every contest
// of one race type, keyed by contest.
func (s *Store) GetLatestDayEstimates(raceType string) (map[string]models.DayEstimate, error) {
	rows, err := s.db.Query(`
		SELECT e.contest_key, e.as_of_day, e.julian_date, e.num_polls, e.date_most_recent_poll, e.median_margin, e.est_std_dev, e.contest_num
		FROM day_estimates e
		INNER JOIN (
			SELECT contest_key, MAX(as_of_day) AS latest
			FROM day_estimates
			WHERE race_type = ?
			GROUP BY contest_key
		) sel ON e.contest_key = sel.contest_key AND e.as_of_day = sel.latest
		WHERE e.race_type = ?
	`, raceType, raceType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]models.DayEstimate)
	for rows.Next() {
		var key, dayStr string
		var e models.DayEstimate
		if err := rows.Scan(&key, &dayStr, &e.JulianDate, &e.NumPolls, &e.DateMostRecentPoll, &e.MedianMargin, &e.EstStdDev, &e.ContestNum); err != nil {
			return nil, err
		}
		day, err := time.Parse(dateFormat, dayStr)
		if err != nil {
			return nil, fmt.Errorf("parse estimate day %q: %w", dayStr, err)
		}
		e.AsOfDay = day
		result[key] = e
	}
	return result, rows.Err()
}

// CountPolls returns poll counts grouped by source for a race type.
func (s *Store) CountPolls(raceType string) (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT source, COUNT(*)
		FROM polls
		WHERE race_type = ?
		GROUP BY source
	`, raceType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			return nil, err
		}
		counts[source] = n
	}
	return counts, rows.Err()
}
