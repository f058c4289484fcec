package match

import (
	"context"
	"sort"
	"sync"

	"github.com/david/sbir-scout/internal/models"
)

// BatchSummary tallies batch results by recommendation tier. Degraded error
// results score 0 and land in NotRecommended.
type BatchSummary struct {
	Total             int `json:"total"`
	HighlyRecommended int `json:"highlyRecommended"`
	Recommended       int `json:"recommended"`
	Conditional       int `json:"conditional"`
	NotRecommended    int `json:"notRecommended"`
}

type BatchResult struct {
	Matches []Result     `json:"matches"`
	Summary BatchSummary `json:"summary"`
}

// ScoreOpportunities scores every opportunity against the profile and returns
// the results ordered by overall score, highest first. Ties keep the input
// order, so repeated calls over the same slice rank identically.
func (s *Scorer) ScoreOpportunities(ctx context.Context, opps []models.EnrichedOpportunity, profile models.BusinessProfile) BatchResult {
	results := make([]Result, len(opps))
	var wg sync.WaitGroup
	for i, opp := range opps {
		wg.Add(1)
		go func(i int, opp models.EnrichedOpportunity) {
			defer wg.Done()
			results[i] = s.CalculateMatchScore(opp, profile)
		}(i, opp)
	}
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].OverallScore > results[j].OverallScore
	})

	summary := BatchSummary{Total: len(results)}
	for _, r := range results {
		switch {
		case r.OverallScore >= 0.8:
			summary.HighlyRecommended++
		case r.OverallScore >= 0.6:
			summary.Recommended++
		case r.OverallScore >= 0.4:
			summary.Conditional++
		default:
			summary.NotRecommended++
		}
	}

	return BatchResult{Matches: results, Summary: summary}
}
