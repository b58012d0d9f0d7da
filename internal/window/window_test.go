package window

import (
	"testing"
	"time"

	"github.com/lox/pollmedian/internal/models"
)

func poll(pollster string, end time.Time) models.Poll {
	return models.Poll{
		Pollster:      pollster,
		StartDate:     end.AddDate(0, 0, -2),
		EndDate:       end,
		Subpopulation: models.LikelyVoters,
	}
}

func TestSpan(t *testing.T) {
	tests := []struct {
		name    string
		day     time.Time
		dynamic bool
		want    time.Duration
	}{
		{name: "summer", day: models.Date(2024, time.July, 15), dynamic: true, want: 4 * 7 * 24 * time.Hour},
		{name: "august", day: models.Date(2024, time.August, 31), dynamic: true, want: 4 * 7 * 24 * time.Hour},
		{name: "september", day: models.Date(2024, time.September, 1), dynamic: true, want: 3 * 7 * 24 * time.Hour},
		{name: "october", day: models.Date(2024, time.October, 1), dynamic: true, want: 2 * 7 * 24 * time.Hour},
		{name: "november", day: models.Date(2024, time.November, 4), dynamic: true, want: 2 * 7 * 24 * time.Hour},
		{name: "fixed ignores month", day: models.Date(2024, time.July, 15), dynamic: false, want: 2 * 7 * 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Span(tt.day, tt.dynamic); got != tt.want {
				t.Errorf("Span = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelect_NoLookAhead(t *testing.T) {
	day := models.Date(2024, time.October, 15)
	polls := []models.Poll{
		poll("Future", day.AddDate(0, 0, 1)),
		poll("Today", day),
	}
	got := Select(polls, day, true)
	if len(got) != 1 || got[0].Pollster != "Today" {
		t.Fatalf("Select = %v, want only the poll ending on the day", names(got))
	}
}

func TestSelect_OnePollPerPollster(t *testing.T) {
	day := models.Date(2024, time.October, 15)
	polls := []models.Poll{
		poll("A", models.Date(2024, time.October, 5)),
		poll("A", models.Date(2024, time.October, 12)),
		poll("B", models.Date(2024, time.October, 10)),
		poll("C", models.Date(2024, time.October, 8)),
		poll("D", models.Date(2024, time.October, 6)),
	}
	got := Select(polls, day, true)
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4: %v", len(got), names(got))
	}
	if got[0].Pollster != "A" || !got[0].EndDate.Equal(models.Date(2024, time.October, 12)) {
		t.Errorf("got[0] = %s ending %v, want A's most recent poll first", got[0].Pollster, got[0].EndDate)
	}
}

func TestSelect_SubpopulationTiebreak(t *testing.T) {
	day := models.Date(2024, time.October, 15)
	end := models.Date(2024, time.October, 10)
	rv := poll("A", end)
	rv.Subpopulation = models.RegisteredVoters
	lv := poll("A", end)

	got := Select([]models.Poll{rv, lv}, day, true)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Subpopulation != models.LikelyVoters {
		t.Errorf("Subpopulation = %q, want lv to win the same-day tiebreak", got[0].Subpopulation)
	}
}

func TestSelect_WindowBoundaryInclusive(t *testing.T) {
	// October: two week window, so Oct 1 is the oldest eligible end date
	// for an Oct 15 estimate.
	day := models.Date(2024, time.October, 15)
	polls := []models.Poll{
		poll("A", models.Date(2024, time.October, 10)),
		poll("B", models.Date(2024, time.October, 5)),
		poll("C", models.Date(2024, time.October, 1)),
		poll("D", models.Date(2024, time.September, 30)),
	}
	got := Select(polls, day, true)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3: %v", len(got), names(got))
	}
	for _, p := range got {
		if p.Pollster == "D" {
			t.Error("poll ending the day before the window should not contribute")
		}
	}
}

func TestSelect_FallbackToThreeMostRecent(t *testing.T) {
	// Nothing in the window: the three most recent distinct pollsters
	// contribute no matter how stale.
	day := models.Date(2024, time.October, 15)
	polls := []models.Poll{
		poll("A", models.Date(2024, time.June, 1)),
		poll("B", models.Date(2024, time.May, 20)),
		poll("C", models.Date(2024, time.May, 10)),
		poll("D", models.Date(2024, time.April, 1)),
	}
	got := Select(polls, day, true)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3: %v", len(got), names(got))
	}
	want := []string{"A", "B", "C"}
	for i, name := range want {
		if got[i].Pollster != name {
			t.Errorf("got[%d] = %s, want %s", i, got[i].Pollster, name)
		}
	}
}

func TestSelect_FallbackKeepsFewerWhenThatIsAll(t *testing.T) {
	day := models.Date(2024, time.October, 15)
	polls := []models.Poll{
		poll("A", models.Date(2024, time.June, 1)),
	}
	got := Select(polls, day, true)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
}

func TestSelectLegacy_ExcludesSameDayPolls(t *testing.T) {
	day := models.Date(2024, time.October, 15)
	polls := []models.Poll{
		poll("A", day),
		poll("B", models.Date(2024, time.October, 10)),
	}
	got := SelectLegacy(polls, day, 2024)
	if len(got) != 1 || got[0].Pollster != "B" {
		t.Fatalf("SelectLegacy = %v, want only the strictly earlier poll", names(got))
	}
}

func TestSelectLegacy_ThirdMidDateRule(t *testing.T) {
	day := models.Date(2024, time.October, 15) // two week window, start Oct 1
	polls := []models.Poll{
		poll("A", models.Date(2024, time.October, 10)),
		poll("B", models.Date(2024, time.October, 5)),
		// Outside the window, but its mid-date is the third most recent,
		// so the eased rule keeps it.
		poll("C", models.Date(2024, time.September, 20)),
		// Both stale by mid-date and outside the window.
		poll("D", models.Date(2024, time.August, 1)),
	}
	got := SelectLegacy(polls, day, 2024)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3: %v", len(got), names(got))
	}
	want := []string{"A", "B", "C"}
	for i, name := range want {
		if got[i].Pollster != name {
			t.Errorf("got[%d] = %s, want %s", i, got[i].Pollster, name)
		}
	}
}

func TestLegacySpan(t *testing.T) {
	tests := []struct {
		name string
		day  time.Time
		want time.Duration
	}{
		{name: "july", day: models.Date(2024, time.July, 15), want: 6 * 7 * 24 * time.Hour},
		{name: "august", day: models.Date(2024, time.August, 15), want: 4 * 7 * 24 * time.Hour},
		{name: "september 1", day: models.Date(2024, time.September, 1), want: 28 * 24 * time.Hour},
		{name: "september 29", day: models.Date(2024, time.September, 29), want: 14 * 24 * time.Hour},
		{name: "october", day: models.Date(2024, time.October, 15), want: 2 * 7 * 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := legacySpan(tt.day, 2024); got != tt.want {
				t.Errorf("legacySpan = %v, want %v", got, tt.want)
			}
		})
	}
}

func names(polls []models.Poll) []string {
	out := make([]string, len(polls))
	for i, p := range polls {
		out[i] = p.Pollster
	}
	return out
}
