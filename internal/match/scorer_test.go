package match

import (
	"math"
	"strings"
	"testing"

	"github.com/david/sbir-scout/internal/models"
)

func enriched(opp models.Opportunity, signals models.Signals) models.EnrichedOpportunity {
	return models.EnrichedOpportunity{
		Opportunity: opp,
		Analysis:    &models.Analysis{Signals: signals},
	}
}

func TestWeightsSumToOne(t *testing.T) {
	if sum := NewScorer().Weights().Sum(); math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("expected weights to sum to 1.0, got %v", sum)
	}
}

func TestCalculateMatchScore_ArmyAIScenario(t *testing.T) {
	opp := enriched(
		models.Opportunity{
			TopicID:   "1001",
			TopicCode: "A254-001",
			Component: "ARMY",
			Program:   "SBIR",
		},
		models.Signals{
			TechnicalRequirements: []string{"artificial intelligence", "software development"},
			DifficultyScore:       5,
			CompetitionLevel:      "medium",
			InnovationAreas:       []string{"artificial intelligence"},
		},
	)
	profile := models.BusinessProfile{
		CompanyInfo: models.CompanyInfo{Name: "Acme Autonomy", Size: "small"},
		Capabilities: models.Capabilities{
			TechnicalAreas: []string{"artificial intelligence", "software development"},
			PastPerformance: []models.PastPerformance{
				{
					Agency:          "ARMY",
					ContractType:    "SBIR Phase II",
					TechnologyAreas: []string{"artificial intelligence"},
				},
			},
		},
		Preferences: models.Preferences{
			RiskTolerance:     "medium",
			BudgetRange:       &models.BudgetRange{Min: 100000, Max: 300000},
			AgencyPreferences: []string{"ARMY"},
			StrategicFocus:    []string{"artificial intelligence"},
		},
	}

	result := NewScorer().CalculateMatchScore(opp, profile)

	if result.Error != "" {
		t.Fatalf("unexpected scoring error: %s", result.Error)
	}
	want := ScoreBreakdown{
		TechnicalAlignment:   1.0,
		ExperienceMatch:      0.55,
		RiskTolerance:        1.0,
		BudgetFit:            1.0,
		StrategicValue:       1.0,
		CompetitiveAdvantage: 0.7,
	}
	assertBreakdown(t, result.ScoreBreakdown, want)

	if result.OverallScore != 0.87 {
		t.Fatalf("expected overall score 0.87, got %v", result.OverallScore)
	}
	if result.Recommendation.Level != "highly_recommended" || result.Recommendation.Priority != "high" {
		t.Fatalf("unexpected recommendation: %+v", result.Recommendation)
	}
	if result.OpportunityID != "1001" || result.TopicCode != "A254-001" {
		t.Fatalf("result lost opportunity identity: %+v", result)
	}
	if len(result.RiskFactors) != 0 {
		t.Fatalf("expected no risk factors, got %v", result.RiskFactors)
	}
	wantUpside := []string{
		"Innovation potential in: artificial intelligence",
		"Leverage existing ARMY relationship",
	}
	if len(result.Opportunities) != len(wantUpside) {
		t.Fatalf("expected upside %v, got %v", wantUpside, result.Opportunities)
	}
	for i := range wantUpside {
		if result.Opportunities[i] != wantUpside[i] {
			t.Fatalf("expected upside %v, got %v", wantUpside, result.Opportunities)
		}
	}
}

func assertBreakdown(t *testing.T, got, want ScoreBreakdown) {
	t.Helper()
	approx := func(name string, g, w float64) {
		if math.Abs(g-w) > 1e-9 {
			t.Fatalf("%s: expected %v, got %v", name, w, g)
		}
	}
	approx("technicalAlignment", got.TechnicalAlignment, want.TechnicalAlignment)
	approx("experienceMatch", got.ExperienceMatch, want.ExperienceMatch)
	approx("riskTolerance", got.RiskTolerance, want.RiskTolerance)
	approx("budgetFit", got.BudgetFit, want.BudgetFit)
	approx("strategicValue", got.StrategicValue, want.StrategicValue)
	approx("competitiveAdvantage", got.CompetitiveAdvantage, want.CompetitiveAdvantage)
}

func TestCalculateMatchScore_MissingAnalysisDegrades(t *testing.T) {
	opp := models.EnrichedOpportunity{
		Opportunity: models.Opportunity{TopicID: "42", TopicCode: "N254-099"},
	}

	result := NewScorer().CalculateMatchScore(opp, models.BusinessProfile{})

	if result.Error == "" {
		t.Fatal("expected a degraded error result")
	}
	if result.OverallScore != 0 {
		t.Fatalf("expected score 0, got %v", result.OverallScore)
	}
	if result.Recommendation.Level != "error" || result.Recommendation.Priority != "unknown" {
		t.Fatalf("unexpected recommendation: %+v", result.Recommendation)
	}
	if result.OpportunityID != "42" || result.TopicCode != "N254-099" {
		t.Fatalf("degraded result lost identity: %+v", result)
	}
}

func TestScoreTechnicalAlignment(t *testing.T) {
	scorer := NewScorer()

	t.Run("no requirements is neutral", func(t *testing.T) {
		got := scorer.scoreTechnicalAlignment(models.Signals{}, models.BusinessProfile{})
		if got != 0.5 {
			t.Fatalf("expected 0.5, got %v", got)
		}
	})

	t.Run("partial overlap without key bonus", func(t *testing.T) {
		signals := models.Signals{TechnicalRequirements: []string{"hardware", "communications"}}
		profile := models.BusinessProfile{
			Capabilities: models.Capabilities{TechnicalAreas: []string{"hardware"}},
		}
		if got := scorer.scoreTechnicalAlignment(signals, profile); math.Abs(got-0.5) > 1e-9 {
			t.Fatalf("expected 0.5, got %v", got)
		}
	})

	t.Run("key area bonus", func(t *testing.T) {
		signals := models.Signals{TechnicalRequirements: []string{"cybersecurity", "hardware"}}
		profile := models.BusinessProfile{
			Capabilities: models.Capabilities{TechnicalAreas: []string{"cybersecurity"}},
		}
		// 1/2 matched plus the 0.1 key-area bonus.
		if got := scorer.scoreTechnicalAlignment(signals, profile); math.Abs(got-0.6) > 1e-9 {
			t.Fatalf("expected 0.6, got %v", got)
		}
	})

	t.Run("substring match in either direction", func(t *testing.T) {
		signals := models.Signals{TechnicalRequirements: []string{"data analytics"}}
		profile := models.BusinessProfile{
			Capabilities: models.Capabilities{TechnicalAreas: []string{"Data Analytics Platforms"}},
		}
		if got := scorer.scoreTechnicalAlignment(signals, profile); got != 1.0 {
			t.Fatalf("expected 1.0, got %v", got)
		}
	})
}

func TestScoreRiskTolerance(t *testing.T) {
	scorer := NewScorer()

	tests := []struct {
		name       string
		tolerance  string
		difficulty int
		risks      []string
		clearance  []string
		certs      []string
		want       float64
	}{
		{"medium tolerance high difficulty", "medium", 8, nil, nil, nil, 0.7},
		{"medium tolerance low difficulty", "medium", 2, nil, nil, nil, 0.9},
		{"low tolerance high difficulty", "low", 9, nil, nil, nil, 0.6},
		{"high tolerance low difficulty", "high", 1, nil, nil, nil, 0.6},
		{"unknown tolerance defaults to medium", "aggressive", 5, nil, nil, nil, 1.0},
		{"clearance gap penalty", "medium", 5, []string{"security clearance"}, nil, nil, 0.8},
		{"clearance held avoids penalty", "medium", 5, []string{"security clearance"}, []string{"Secret"}, nil, 1.0},
		{"itar gap penalty", "medium", 5, []string{"itar"}, nil, nil, 0.8},
		{"itar certified avoids penalty", "medium", 5, []string{"itar"}, nil, []string{"ITAR"}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signals := models.Signals{DifficultyScore: tt.difficulty, RiskFactors: tt.risks}
			profile := models.BusinessProfile{
				CompanyInfo:  models.CompanyInfo{SecurityClearance: tt.clearance},
				Capabilities: models.Capabilities{Certifications: tt.certs},
				Preferences:  models.Preferences{RiskTolerance: tt.tolerance},
			}
			if got := scorer.scoreRiskTolerance(signals, profile); math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestScoreBudgetFit(t *testing.T) {
	scorer := NewScorer()

	tests := []struct {
		name      string
		component string
		program   string
		budget    *models.BudgetRange
		want      float64
	}{
		{"no range is neutral", "ARMY", "SBIR", nil, 0.7},
		{"default estimate in range", "ARMY", "SBIR", &models.BudgetRange{Min: 100000, Max: 200000}, 1.0},
		{"darpa estimate raises", "DARPA", "SBIR", &models.BudgetRange{Min: 190000, Max: 250000}, 1.0},
		{"sttr estimate wins over darpa", "DARPA", "STTR", &models.BudgetRange{Min: 170000, Max: 180000}, 1.0},
		{"distance decay below range", "ARMY", "SBIR", &models.BudgetRange{Min: 200000, Max: 300000}, 1.0 - 50000.0/150000.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp := models.Opportunity{Component: tt.component, Program: tt.program}
			profile := models.BusinessProfile{Preferences: models.Preferences{BudgetRange: tt.budget}}
			if got := scorer.scoreBudgetFit(opp, profile); math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestGenerateReasoning_FallbackLine(t *testing.T) {
	breakdown := ScoreBreakdown{
		TechnicalAlignment:   0.5,
		ExperienceMatch:      0.5,
		RiskTolerance:        0.5,
		CompetitiveAdvantage: 0.5,
	}

	got := generateReasoning(breakdown)
	if len(got) != 1 || got[0] != "Standard match based on available data" {
		t.Fatalf("expected the fallback reasoning line, got %v", got)
	}
}

func TestIdentifyRiskFactors_CapabilityGaps(t *testing.T) {
	signals := models.Signals{
		TechnicalRequirements: []string{"hardware", "cybersecurity"},
		CompetitionLevel:      "high",
		RiskFactors:           []string{"security clearance"},
	}
	profile := models.BusinessProfile{
		Capabilities: models.Capabilities{TechnicalAreas: []string{"cybersecurity consulting"}},
	}

	risks := identifyRiskFactors(signals, profile)

	if len(risks) != 3 {
		t.Fatalf("expected 3 risks, got %v", risks)
	}
	if risks[0] != "Requires security clearance - company may need to obtain" {
		t.Fatalf("unexpected first risk: %s", risks[0])
	}
	if risks[1] != "High competition expected for this opportunity" {
		t.Fatalf("unexpected second risk: %s", risks[1])
	}
	if !strings.Contains(risks[2], "hardware") || strings.Contains(risks[2], "cybersecurity,") {
		t.Fatalf("expected only the hardware gap, got %s", risks[2])
	}
}

func TestIdentifyOpportunities_ExpansionPrecision(t *testing.T) {
	profile := models.BusinessProfile{
		Capabilities: models.Capabilities{TechnicalAreas: []string{"software development"}},
	}

	t.Run("one or two new areas suggest expansion", func(t *testing.T) {
		signals := models.Signals{TechnicalRequirements: []string{"software development", "hardware"}}
		got := identifyOpportunities(models.Opportunity{}, signals, profile)
		if len(got) != 1 || got[0] != "Opportunity to expand into: hardware" {
			t.Fatalf("expected an expansion suggestion, got %v", got)
		}
	})

	t.Run("three new areas read as a mismatch", func(t *testing.T) {
		signals := models.Signals{
			TechnicalRequirements: []string{"hardware", "communications", "simulation"},
		}
		if got := identifyOpportunities(models.Opportunity{}, signals, profile); len(got) != 0 {
			t.Fatalf("expected no expansion suggestion, got %v", got)
		}
	})
}

func TestRecommendationTiers(t *testing.T) {
	tests := []struct {
		score    float64
		level    string
		priority string
	}{
		{0.85, "highly_recommended", "high"},
		{0.8, "highly_recommended", "high"},
		{0.6, "recommended", "medium"},
		{0.4, "conditional", "low"},
		{0.39, "not_recommended", "very_low"},
	}

	for _, tt := range tests {
		rec := recommendationFor(tt.score)
		if rec.Level != tt.level || rec.Priority != tt.priority {
			t.Fatalf("score %v: expected %s/%s, got %s/%s",
				tt.score, tt.level, tt.priority, rec.Level, rec.Priority)
		}
	}
}
