package tally

import (
	"sort"

	"github.com/planora/planora/internal/models"
)

// maybeWeight is how much a "maybe" counts relative to a "yes".
const maybeWeight = 0.5

// DateScore is the aggregated availability for one date option.
type DateScore struct {
	OptionID string
	Yes      int
	Maybe    int
	No       int

	// Score is Yes + maybeWeight*Maybe. A "no" subtracts nothing: an
	// unavailable member simply does not add to the date's fit.
	Score float64
}

// ScoreDates aggregates responses per date option, ordered best-first.
// Ties break on more firm yeses, then on option ID for determinism.
func ScoreDates(responses []models.DateResponse) []DateScore {
	byID := make(map[string]*DateScore)
	for _, r := range responses {
		s, ok := byID[r.OptionID]
		if !ok {
			s = &DateScore{OptionID: r.OptionID}
			byID[r.OptionID] = s
		}
		switch r.Answer {
		case models.AnswerYes:
			s.Yes++
		case models.AnswerMaybe:
			s.Maybe++
		case models.AnswerNo:
			s.No++
		}
	}

	scores := make([]DateScore, 0, len(byID))
	for _, s := range byID {
		s.Score = float64(s.Yes) + maybeWeight*float64(s.Maybe)
		scores = append(scores, *s)
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		if scores[i].Yes != scores[j].Yes {
			return scores[i].Yes > scores[j].Yes
		}
		return scores[i].OptionID < scores[j].OptionID
	})
	return scores
}

// BestDate returns the best-scoring option ID. ok is false when no one
// has responded to any option.
func BestDate(responses []models.DateResponse) (string, bool) {
	scores := ScoreDates(responses)
	if len(scores) == 0 {
		return "", false
	}
	return scores[0].OptionID, true
}
