// Package tally computes pure aggregations over event votes and date
// responses: which suggestion is winning and which date fits best.
package tally

import (
	"sort"

	"github.com/planora/planora/internal/models"
)

// SuggestionTally is the aggregated vote result for one suggestion.
type SuggestionTally struct {
	SuggestionID string
	For          int
	Against      int
	Abstain      int

	// Score is For minus Against; abstentions count participation only.
	Score int
}

// CountVotes aggregates votes per suggestion, ordered best-first. Ties
// break on more For votes, then on suggestion ID for determinism.
func CountVotes(votes []models.Vote) []SuggestionTally {
	byID := make(map[string]*SuggestionTally)
	for _, v := range votes {
		t, ok := byID[v.SuggestionID]
		if !ok {
			t = &SuggestionTally{SuggestionID: v.SuggestionID}
			byID[v.SuggestionID] = t
		}
		switch v.Choice {
		case models.VoteFor:
			t.For++
		case models.VoteAgainst:
			t.Against++
		case models.VoteAbstain:
			t.Abstain++
		}
	}

	tallies := make([]SuggestionTally, 0, len(byID))
	for _, t := range byID {
		t.Score = t.For - t.Against
		tallies = append(tallies, *t)
	}

	sort.Slice(tallies, func(i, j int) bool {
		if tallies[i].Score != tallies[j].Score {
			return tallies[i].Score > tallies[j].Score
		}
		if tallies[i].For != tallies[j].For {
			return tallies[i].For > tallies[j].For
		}
		return tallies[i].SuggestionID < tallies[j].SuggestionID
	})
	return tallies
}

// Winner returns the best-scoring suggestion ID. ok is false when there
// are no votes at all.
func Winner(votes []models.Vote) (string, bool) {
	tallies := CountVotes(votes)
	if len(tallies) == 0 {
		return "", false
	}
	return tallies[0].SuggestionID, true
}
