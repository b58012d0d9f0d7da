// Package config carries the per-election-cycle configuration: tracked
// contests, prior margins, candidate names, and Senate seat arithmetic.
// One Cycle value is built at startup and passed explicitly to the ingest
// and timeseries layers; nothing here is mutable global state.
package config

import (
	"embed"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/lox/pollmedian/internal/models"
)

//go:embed priors/*.csv
var priorsFS embed.FS

// Cycle is one election cycle's full configuration.
type Cycle struct {
	Year      int
	StartDate time.Time

	// Senate seat arithmetic: seats not up or already safe for each party.
	// Safe + contested must sum to 100; a mismatch is a startup warning.
	DemSafe int
	RepSafe int

	Senate    []models.Contest
	President []models.Contest
	House     models.Contest

	// Pollsters excluded at ingest time, by source. Some feeds republish
	// partisan or already-covered trackers under slightly different names.
	BlockedPollsters map[string][]string
}

// Default2024 is the 2024 general-election cycle.
func Default2024() (*Cycle, error) {
	senate, err := loadEmbeddedContests("priors/2024.senate.csv")
	if err != nil {
		return nil, fmt.Errorf("senate priors: %w", err)
	}
	president, err := loadEmbeddedContests("priors/2024.president.csv")
	if err != nil {
		return nil, fmt.Errorf("president priors: %w", err)
	}

	return &Cycle{
		Year:      2024,
		StartDate: models.Date(2024, time.March, 1),
		DemSafe:   42,
		RepSafe:   47,
		Senate:    senate,
		President: president,
		House: models.Contest{
			Name: "Generic Ballot",
			Code: "generic",
			Num:  1,
		},
		BlockedPollsters: map[string][]string{
			"electoral-vote": {"Marist", "Suffolk", "Siena"},
		},
	}, nil
}

// LoadContests reads a priors CSV from disk, overriding the embedded
// defaults. Columns: name,code,num,prior,dem,rep with a header row.
func LoadContests(path string) ([]models.Contest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseContests(f)
}

func loadEmbeddedContests(name string) ([]models.Contest, error) {
	f, err := priorsFS.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseContests(f)
}

func parseContests(r io.Reader) ([]models.Contest, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read priors csv: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("priors csv has no data rows")
	}

	var contests []models.Contest
	for i, rec := range records[1:] {
		if len(rec) < 6 {
			return nil, fmt.Errorf("priors row %d: want 6 columns, got %d", i+2, len(rec))
		}
		num, err := strconv.Atoi(rec[2])
		if err != nil {
			return nil, fmt.Errorf("priors row %d: contest num: %w", i+2, err)
		}
		prior, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return nil, fmt.Errorf("priors row %d: prior margin: %w", i+2, err)
		}
		contests = append(contests, models.Contest{
			Name:    rec[0],
			Code:    rec[1],
			Num:     num,
			Prior:   prior,
			DemCand: rec[4],
			RepCand: rec[5],
		})
	}
	return contests, nil
}

// Blocked reports whether a pollster is excluded for the given source.
func (c *Cycle) Blocked(source, pollster string) bool {
	for _, name := range c.BlockedPollsters[source] {
		if name == pollster {
			return true
		}
	}
	return false
}

// ContestByCode finds a contest in the given set, nil when untracked.
func ContestByCode(contests []models.Contest, code string) *models.Contest {
	for i := range contests {
		if contests[i].Code == code {
			return &contests[i]
		}
	}
	return nil
}

// ContestByName finds a contest by full state/race name, nil when untracked.
func ContestByName(contests []models.Contest, name string) *models.Contest {
	for i := range contests {
		if contests[i].Name == name {
			return &contests[i]
		}
	}
	return nil
}

// ResolveContest accepts either a state code or a full contest name, as
// CLI flags and scraped pages use both. Nil when neither matches.
func ResolveContest(contests []models.Contest, key string) *models.Contest {
	if c := ContestByCode(contests, key); c != nil {
		return c
	}
	return ContestByName(contests, key)
}
