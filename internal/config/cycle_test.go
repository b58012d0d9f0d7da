package config

import (
	"strings"
	"testing"
	"time"

	"github.com/lox/pollmedian/internal/models"
)

func TestDefault2024(t *testing.T) {
	cycle, err := Default2024()
	if err != nil {
		t.Fatalf("Default2024: %v", err)
	}

	if cycle.Year != 2024 {
		t.Errorf("Year = %d, want 2024", cycle.Year)
	}
	if !cycle.StartDate.Equal(models.Date(2024, time.March, 1)) {
		t.Errorf("StartDate = %v, want 2024-03-01", cycle.StartDate)
	}
	if len(cycle.Senate) != 11 {
		t.Errorf("len(Senate) = %d, want 11", len(cycle.Senate))
	}
	if len(cycle.President) != 51 {
		t.Errorf("len(President) = %d, want 51", len(cycle.President))
	}
	if total := cycle.DemSafe + cycle.RepSafe + len(cycle.Senate); total != 100 {
		t.Errorf("seat totals sum to %d, want 100", total)
	}
	if cycle.House.Code != "generic" {
		t.Errorf("House.Code = %q, want generic", cycle.House.Code)
	}

	pa := ContestByCode(cycle.Senate, "PA")
	if pa == nil {
		t.Fatal("ContestByCode(PA) = nil")
	}
	if pa.Name != "Pennsylvania" || pa.DemCand != "Casey" || pa.RepCand != "McCormick" {
		t.Errorf("PA contest = %+v", pa)
	}
}

func TestCycle_Blocked(t *testing.T) {
	cycle, err := Default2024()
	if err != nil {
		t.Fatalf("Default2024: %v", err)
	}

	tests := []struct {
		source   string
		pollster string
		want     bool
	}{
		{"electoral-vote", "Marist", true},
		{"electoral-vote", "Quinnipiac", false},
		{"FiveThirtyEight", "Marist", false},
	}
	for _, tt := range tests {
		if got := cycle.Blocked(tt.source, tt.pollster); got != tt.want {
			t.Errorf("Blocked(%q, %q) = %v, want %v", tt.source, tt.pollster, got, tt.want)
		}
	}
}

func TestParseContests(t *testing.T) {
	csv := `name,code,num,prior,dem,rep
Arizona,AZ,1,2.0,Gallego,Lake
Montana,MT,5,-4.0,Tester,Sheehy
`
	contests, err := parseContests(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("parseContests: %v", err)
	}
	if len(contests) != 2 {
		t.Fatalf("len = %d, want 2", len(contests))
	}

	mt := contests[1]
	if mt.Code != "MT" || mt.Num != 5 || mt.Prior != -4.0 || mt.RepCand != "Sheehy" {
		t.Errorf("contest = %+v", mt)
	}
}

func TestParseContests_Errors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{name: "header only", csv: "name,code,num,prior,dem,rep\n"},
		{name: "bad ordinal", csv: "name,code,num,prior,dem,rep\nArizona,AZ,one,2.0,Gallego,Lake\n"},
		{name: "bad prior", csv: "name,code,num,prior,dem,rep\nArizona,AZ,1,even,Gallego,Lake\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseContests(strings.NewReader(tt.csv)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestContestByName(t *testing.T) {
	contests := []models.Contest{
		{Name: "Arizona", Code: "AZ"},
		{Name: "Georgia-Special", Code: "GA2"},
	}
	if got := ContestByName(contests, "Georgia-Special"); got == nil || got.Code != "GA2" {
		t.Errorf("ContestByName = %v, want GA2", got)
	}
	if got := ContestByName(contests, "Vermont"); got != nil {
		t.Errorf("ContestByName(Vermont) = %v, want nil", got)
	}
}

func TestResolveContest(t *testing.T) {
	contests := []models.Contest{
		{Name: "Arizona", Code: "AZ"},
		{Name: "Georgia-Special", Code: "GA2"},
	}
	if got := ResolveContest(contests, "AZ"); got == nil || got.Name != "Arizona" {
		t.Errorf("ResolveContest(AZ) = %v, want Arizona", got)
	}
	if got := ResolveContest(contests, "Georgia-Special"); got == nil || got.Code != "GA2" {
		t.Errorf("ResolveContest(Georgia-Special) = %v, want GA2", got)
	}
	if got := ResolveContest(contests, "Narnia"); got != nil {
		t.Errorf("ResolveContest(Narnia) = %v, want nil", got)
	}
}
