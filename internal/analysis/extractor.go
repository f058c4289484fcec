package analysis

import (
	"context"
	"strings"

	"github.com/david/sbir-scout/internal/models"
)

// Extractor turns a topic's normalized text and structured fields into a
// signal set. The rule-based implementation is the default; a model-backed
// implementation can be substituted without touching the analyzer or scorer.
type Extractor interface {
	Extract(ctx context.Context, fullText string, opp models.Opportunity) (models.Signals, error)
}

// RuleBasedExtractor derives signals from fixed keyword vocabularies. It is
// pure and deterministic: the same text always yields the same signals.
type RuleBasedExtractor struct{}

func NewRuleBasedExtractor() *RuleBasedExtractor {
	return &RuleBasedExtractor{}
}

func (e *RuleBasedExtractor) Extract(_ context.Context, fullText string, opp models.Opportunity) (models.Signals, error) {
	text := strings.ToLower(fullText)

	var requirements []string
	var capabilities []string
	for _, cat := range technicalTaxonomy {
		matched := false
		for _, kw := range cat.Keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				matched = true
				capabilities = append(capabilities, kw)
			}
		}
		if matched {
			requirements = append(requirements, cat.Name)
		}
	}

	return models.Signals{
		TechnicalRequirements: requirements,
		KeyCapabilities:       dedupe(capabilities),
		DifficultyScore:       scoreDifficulty(text),
		CompetitionLevel:      assessCompetition(text, opp.Component),
		BudgetIndicators: models.BudgetIndicators{
			Phase1:     "Not specified",
			Phase2:     "Not specified",
			Indicators: matchKeywords(text, budgetKeywords),
		},
		TimelineFactors:        matchKeywords(text, timelineKeywords),
		RiskFactors:            matchKeywords(text, riskKeywords),
		InnovationAreas:        filterInnovationAreas(requirements),
		ComplianceRequirements: matchKeywords(text, complianceKeywords),
	}, nil
}

// scoreDifficulty counts complexity indicators on top of a floor of 3,
// hard-clamped to 10.
func scoreDifficulty(text string) int {
	score := 3 + len(matchKeywords(text, complexityIndicators))
	if score > 10 {
		return 10
	}
	return score
}

// assessCompetition applies the override rules in a fixed order: the DARPA and
// commercial/COTS checks raise the level, the niche/specialized check lowers
// it, and the last matching rule wins. The order is deliberate and must not be
// rearranged; a text matching both a high and a low marker resolves to low.
func assessCompetition(text, component string) string {
	level := "medium"
	if component == highCompetitionComponent {
		level = "high"
	}
	if containsAny(text, highCompetitionMarkers) {
		level = "high"
	}
	if containsAny(text, lowCompetitionMarkers) {
		level = "low"
	}
	return level
}

func filterInnovationAreas(requirements []string) []string {
	var areas []string
	for _, req := range requirements {
		if innovationCategories[req] {
			areas = append(areas, req)
		}
	}
	return areas
}

// matchKeywords returns the vocabulary entries present in text, in vocabulary
// order.
func matchKeywords(text string, vocabulary []string) []string {
	var found []string
	for _, kw := range vocabulary {
		if strings.Contains(text, kw) {
			found = append(found, kw)
		}
	}
	return found
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// dedupe removes duplicates preserving first-seen order.
func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// FallbackSignals is the fixed all-safe-default signal set attached to an
// opportunity when extraction fails.
func FallbackSignals() models.Signals {
	return models.Signals{
		TechnicalRequirements: []string{},
		KeyCapabilities:       []string{},
		DifficultyScore:       5,
		CompetitionLevel:      "medium",
		BudgetIndicators: models.BudgetIndicators{
			Phase1:     "Unknown",
			Phase2:     "Unknown",
			Indicators: []string{},
		},
		TimelineFactors:        []string{},
		RiskFactors:            []string{},
		InnovationAreas:        []string{},
		ComplianceRequirements: []string{},
	}
}
