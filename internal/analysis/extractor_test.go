package analysis

import (
	"context"
	"reflect"
	"testing"

	"github.com/david/sbir-scout/internal/models"
)

func extract(t *testing.T, text string, opp models.Opportunity) models.Signals {
	t.Helper()
	signals, err := NewRuleBasedExtractor().Extract(context.Background(), text, opp)
	if err != nil {
		t.Fatalf("unexpected extraction error: %v", err)
	}
	return signals
}

func TestRuleBasedExtractor_TechnicalRequirements(t *testing.T) {
	text := "We need machine learning and deep learning for cyber defense."
	signals := extract(t, text, models.Opportunity{})

	wantReqs := []string{"artificial intelligence", "cybersecurity"}
	if !reflect.DeepEqual(signals.TechnicalRequirements, wantReqs) {
		t.Fatalf("expected requirements %v, got %v", wantReqs, signals.TechnicalRequirements)
	}

	wantCaps := []string{"machine learning", "deep learning", "cyber"}
	if !reflect.DeepEqual(signals.KeyCapabilities, wantCaps) {
		t.Fatalf("expected capabilities %v, got %v", wantCaps, signals.KeyCapabilities)
	}

	// Both matched categories are innovation-relevant.
	if !reflect.DeepEqual(signals.InnovationAreas, wantReqs) {
		t.Fatalf("expected innovation areas %v, got %v", wantReqs, signals.InnovationAreas)
	}
}

func TestRuleBasedExtractor_KeyCapabilitiesKeepVocabularyCase(t *testing.T) {
	signals := extract(t, "ai-enabled targeting", models.Opportunity{})

	if len(signals.KeyCapabilities) == 0 || signals.KeyCapabilities[0] != "AI" {
		t.Fatalf("expected canonical keyword AI, got %v", signals.KeyCapabilities)
	}
}

func TestRuleBasedExtractor_Difficulty(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"no indicators floors at 3", "basic integration effort", 3},
		{"each indicator adds one", "novel prototype research effort", 6},
		{"clamped at 10", "prototype research novel innovative breakthrough advanced cutting-edge state-of-the-art experimental", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signals := extract(t, tt.text, models.Opportunity{})
			if signals.DifficultyScore != tt.want {
				t.Fatalf("expected difficulty %d, got %d", tt.want, signals.DifficultyScore)
			}
		})
	}
}

func TestRuleBasedExtractor_CompetitionLevel(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		component string
		want      string
	}{
		{"default medium", "unremarkable topic text", "ARMY", "medium"},
		{"darpa raises", "unremarkable topic text", "DARPA", "high"},
		{"cots marker raises", "integrate a cots solution", "ARMY", "high"},
		{"niche marker lowers", "highly specialized sensing", "ARMY", "low"},
		// The low-marker rule is evaluated last and wins when both marker
		// kinds are present. This mirrors the original resolution order.
		{"low marker wins over commercial", "commercial but specialized", "ARMY", "low"},
		{"low marker wins over darpa", "a niche payload", "DARPA", "low"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signals := extract(t, tt.text, models.Opportunity{Component: tt.component})
			if signals.CompetitionLevel != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, signals.CompetitionLevel)
			}
		})
	}
}

func TestRuleBasedExtractor_IndicatorLists(t *testing.T) {
	text := "delivery within 18 months; itar export control applies; security clearance required; funding up to $2 million at fixed cost"
	signals := extract(t, text, models.Opportunity{})

	if want := []string{"million", "funding", "cost"}; !reflect.DeepEqual(signals.BudgetIndicators.Indicators, want) {
		t.Fatalf("expected budget indicators %v, got %v", want, signals.BudgetIndicators.Indicators)
	}
	if want := []string{"months", "delivery"}; !reflect.DeepEqual(signals.TimelineFactors, want) {
		t.Fatalf("expected timeline factors %v, got %v", want, signals.TimelineFactors)
	}
	if want := []string{"security clearance", "itar", "export control"}; !reflect.DeepEqual(signals.RiskFactors, want) {
		t.Fatalf("expected risk factors %v, got %v", want, signals.RiskFactors)
	}
	if want := []string{"security clearance", "itar", "export control"}; !reflect.DeepEqual(signals.ComplianceRequirements, want) {
		t.Fatalf("expected compliance requirements %v, got %v", want, signals.ComplianceRequirements)
	}
	if signals.BudgetIndicators.Phase1 != "Not specified" || signals.BudgetIndicators.Phase2 != "Not specified" {
		t.Fatalf("expected placeholder phase ranges, got %+v", signals.BudgetIndicators)
	}
}

func TestRuleBasedExtractor_Deterministic(t *testing.T) {
	opp := models.Opportunity{Component: "NAVY"}
	text := "novel machine learning prototype for radio network security under itar, delivery in 24 months"

	first := extract(t, text, opp)
	for i := 0; i < 5; i++ {
		if next := extract(t, text, opp); !reflect.DeepEqual(first, next) {
			t.Fatalf("extraction not deterministic: run %d produced %+v, want %+v", i, next, first)
		}
	}
}

func TestFallbackSignals(t *testing.T) {
	fb := FallbackSignals()

	if fb.DifficultyScore != 5 {
		t.Fatalf("expected fallback difficulty 5, got %d", fb.DifficultyScore)
	}
	if fb.CompetitionLevel != "medium" {
		t.Fatalf("expected fallback competition medium, got %s", fb.CompetitionLevel)
	}
	for name, list := range map[string][]string{
		"technicalRequirements":  fb.TechnicalRequirements,
		"keyCapabilities":        fb.KeyCapabilities,
		"timelineFactors":        fb.TimelineFactors,
		"riskFactors":            fb.RiskFactors,
		"innovationAreas":        fb.InnovationAreas,
		"complianceRequirements": fb.ComplianceRequirements,
		"budgetIndicators":       fb.BudgetIndicators.Indicators,
	} {
		if len(list) != 0 {
			t.Fatalf("expected empty %s in fallback, got %v", name, list)
		}
	}
}
