package match

import (
	"context"
	"testing"

	"github.com/david/sbir-scout/internal/models"
)

func TestScoreOpportunities_RanksAndTallies(t *testing.T) {
	profile := models.BusinessProfile{
		CompanyInfo: models.CompanyInfo{Size: "small"},
		Capabilities: models.Capabilities{
			TechnicalAreas: []string{"cybersecurity"},
		},
		Preferences: models.Preferences{RiskTolerance: "medium"},
	}

	strong := enriched(
		models.Opportunity{TopicID: "1", TopicCode: "STRONG"},
		models.Signals{
			TechnicalRequirements: []string{"cybersecurity"},
			DifficultyScore:       5,
			CompetitionLevel:      "medium",
		},
	)
	weakSignals := models.Signals{
		TechnicalRequirements: []string{"hardware"},
		DifficultyScore:       5,
		CompetitionLevel:      "medium",
	}
	weakA := enriched(models.Opportunity{TopicID: "2", TopicCode: "WEAK-A"}, weakSignals)
	weakB := enriched(models.Opportunity{TopicID: "3", TopicCode: "WEAK-B"}, weakSignals)
	broken := models.EnrichedOpportunity{
		Opportunity: models.Opportunity{TopicID: "4", TopicCode: "BROKEN"},
	}

	result := NewScorer().ScoreOpportunities(
		context.Background(),
		[]models.EnrichedOpportunity{weakA, broken, strong, weakB},
		profile,
	)

	if len(result.Matches) != 4 {
		t.Fatalf("expected 4 results, got %d", len(result.Matches))
	}

	gotOrder := []string{
		result.Matches[0].TopicCode,
		result.Matches[1].TopicCode,
		result.Matches[2].TopicCode,
		result.Matches[3].TopicCode,
	}
	// Highest first; the equal-scoring weak pair keeps its input order and the
	// degraded zero-score result sinks to the bottom.
	wantOrder := []string{"STRONG", "WEAK-A", "WEAK-B", "BROKEN"}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Fatalf("expected order %v, got %v", wantOrder, gotOrder)
		}
	}

	if result.Matches[1].OverallScore != result.Matches[2].OverallScore {
		t.Fatalf("expected the weak pair to tie, got %v and %v",
			result.Matches[1].OverallScore, result.Matches[2].OverallScore)
	}
	if result.Matches[3].Error == "" {
		t.Fatal("expected the analysis-less item to carry a scoring error")
	}

	want := BatchSummary{Total: 4, Recommended: 1, NotRecommended: 3}
	if result.Summary != want {
		t.Fatalf("expected summary %+v, got %+v", want, result.Summary)
	}
}

func TestScoreOpportunities_Empty(t *testing.T) {
	result := NewScorer().ScoreOpportunities(context.Background(), nil, models.BusinessProfile{})

	if len(result.Matches) != 0 {
		t.Fatalf("expected no matches, got %d", len(result.Matches))
	}
	if result.Summary.Total != 0 {
		t.Fatalf("expected an empty summary, got %+v", result.Summary)
	}
}
