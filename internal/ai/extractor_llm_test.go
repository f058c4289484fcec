package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/david/sbir-scout/internal/models"
)

type stubCompleter struct {
	jsonResp string
	jsonErr  error
	textResp string
	textErr  error
	calls    int
}

func (s *stubCompleter) GenerateCompletion(_ context.Context, _ string, jsonMode bool) (string, error) {
	s.calls++
	if jsonMode {
		return s.jsonResp, s.jsonErr
	}
	return s.textResp, s.textErr
}

func TestSignalExtractor_ParsesJSONMode(t *testing.T) {
	stub := &stubCompleter{
		jsonResp: `{
			"technicalRequirements": ["artificial intelligence"],
			"keyCapabilities": ["machine learning"],
			"difficultyScore": 7,
			"competitionLevel": "high",
			"budgetIndicators": {"phase1": "$150K", "phase2": "$1M", "indicators": ["funding"]},
			"timelineFactors": ["18 month period"],
			"riskFactors": ["itar"],
			"innovationAreas": ["artificial intelligence"],
			"complianceRequirements": ["itar"]
		}`,
	}

	signals, err := NewSignalExtractor(stub).Extract(context.Background(), "text", models.Opportunity{TopicCode: "A254-001"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.calls != 1 {
		t.Fatalf("expected a single completion, got %d", stub.calls)
	}
	if signals.DifficultyScore != 7 || signals.CompetitionLevel != "high" {
		t.Fatalf("unexpected signals: %+v", signals)
	}
	if len(signals.TechnicalRequirements) != 1 || signals.TechnicalRequirements[0] != "artificial intelligence" {
		t.Fatalf("unexpected requirements: %v", signals.TechnicalRequirements)
	}
	if signals.BudgetIndicators.Phase1 != "$150K" {
		t.Fatalf("unexpected budget indicators: %+v", signals.BudgetIndicators)
	}
}

func TestSignalExtractor_TextModeFallbackStripsFences(t *testing.T) {
	stub := &stubCompleter{
		jsonErr:  errors.New("format not supported"),
		textResp: "```json\n{\"difficultyScore\": 4, \"competitionLevel\": \"low\"}\n```",
	}

	signals, err := NewSignalExtractor(stub).Extract(context.Background(), "text", models.Opportunity{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.calls != 2 {
		t.Fatalf("expected a retry in text mode, got %d calls", stub.calls)
	}
	if signals.DifficultyScore != 4 || signals.CompetitionLevel != "low" {
		t.Fatalf("unexpected signals: %+v", signals)
	}
}

func TestSignalExtractor_BothModesFail(t *testing.T) {
	stub := &stubCompleter{
		jsonErr: errors.New("down"),
		textErr: errors.New("still down"),
	}

	if _, err := NewSignalExtractor(stub).Extract(context.Background(), "text", models.Opportunity{}); err == nil {
		t.Fatal("expected an error when both modes fail")
	}
}

func TestNormalizeSignals_CoercesInvalidValues(t *testing.T) {
	raw := llmSignals{DifficultyScore: 42, CompetitionLevel: "EXTREME"}

	signals := normalizeSignals(raw)

	if signals.DifficultyScore != 10 {
		t.Fatalf("expected difficulty clamped to 10, got %d", signals.DifficultyScore)
	}
	if signals.CompetitionLevel != "medium" {
		t.Fatalf("expected unknown competition to default to medium, got %s", signals.CompetitionLevel)
	}
	if signals.TechnicalRequirements == nil || signals.RiskFactors == nil {
		t.Fatal("expected non-nil lists")
	}
	if signals.BudgetIndicators.Phase1 != "Not specified" || signals.BudgetIndicators.Phase2 != "Not specified" {
		t.Fatalf("expected placeholder phase ranges, got %+v", signals.BudgetIndicators)
	}

	if low := normalizeSignals(llmSignals{DifficultyScore: 0}); low.DifficultyScore != 1 {
		t.Fatalf("expected difficulty floored at 1, got %d", low.DifficultyScore)
	}
}

func TestExtractFirstJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain object", `{"a": 1}`, `{"a": 1}`, true},
		{"leading prose", `Here you go: {"a": {"b": 2}} trailing`, `{"a": {"b": 2}}`, true},
		{"brace inside string", `{"a": "}"}`, `{"a": "}"}`, true},
		{"no object", "nothing here", "", false},
		{"unbalanced", `{"a": 1`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractFirstJSONObject(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("expected (%q, %v), got (%q, %v)", tt.want, tt.ok, got, ok)
			}
		})
	}
}
