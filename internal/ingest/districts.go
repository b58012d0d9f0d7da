package ingest

import (
	"log"
	"strconv"
)

// Maine and Nebraska award electoral votes by congressional district.
// District-level presidential polls are folded into the statewide series
// by shifting the top-line support toward the statewide baseline. Offsets
// are the historical gap between each district and its state.
var districtOffsets = map[string]map[int]float64{
	"Maine": {
		1: -10,
		2: +10,
	},
	"Nebraska": {
		1: -6,
		2: -20,
		3: +26,
	},
}

// CleanDistricts adjusts or drops district-level polls. Presidential polls
// for a known ME/NE district have their leading answer shifted by the
// district offset; every other district-level poll is dropped. Statewide
// polls pass through untouched.
func CleanDistricts(polls []FTEPoll) []FTEPoll {
	dropped := 0
	adjusted := 0

	var out []FTEPoll
	for _, p := range polls {
		if p.District <= 0 {
			out = append(out, p)
			continue
		}
		if p.Type != "president-general" {
			dropped++
			continue
		}
		offsets, ok := districtOffsets[p.State]
		if !ok {
			dropped++
			continue
		}
		offset, ok := offsets[p.District]
		if !ok {
			dropped++
			continue
		}
		if len(p.Answers) == 0 {
			dropped++
			continue
		}

		pct, err := strconv.ParseFloat(p.Answers[0].Pct, 64)
		if err != nil {
			dropped++
			continue
		}
		answers := make([]FTEAnswer, len(p.Answers))
		copy(answers, p.Answers)
		answers[0].Pct = strconv.FormatFloat(pct+offset, 'f', 1, 64)
		p.Answers = answers
		adjusted++
		out = append(out, p)
	}

	log.Printf("ingest: cleaning districts: dropped %d, adjusted %d", dropped, adjusted)
	return out
}
