package match

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/david/sbir-scout/internal/models"
)

// Weights combine the six sub-scores into the overall match score. They sum
// to exactly 1.0.
type Weights struct {
	TechnicalAlignment   float64
	ExperienceMatch      float64
	RiskTolerance        float64
	BudgetFit            float64
	StrategicValue       float64
	CompetitiveAdvantage float64
}

func (w Weights) Sum() float64 {
	return w.TechnicalAlignment + w.ExperienceMatch + w.RiskTolerance +
		w.BudgetFit + w.StrategicValue + w.CompetitiveAdvantage
}

var defaultWeights = Weights{
	TechnicalAlignment:   0.35,
	ExperienceMatch:      0.25,
	RiskTolerance:        0.15,
	BudgetFit:            0.10,
	StrategicValue:       0.10,
	CompetitiveAdvantage: 0.05,
}

// keyTechnicalAreas earn a 0.1 bonus per matched requirement in the technical
// alignment sub-score.
var keyTechnicalAreas = map[string]bool{
	"artificial intelligence": true,
	"cybersecurity":           true,
	"software development":    true,
}

// riskMatrix maps (company risk tolerance, opportunity risk band) to a base
// risk-fit score.
var riskMatrix = map[string]map[string]float64{
	"low":    {"low": 1.0, "medium": 0.8, "high": 0.6},
	"medium": {"low": 0.9, "medium": 1.0, "high": 0.7},
	"high":   {"low": 0.6, "medium": 0.8, "high": 1.0},
}

// Budget estimate heuristic. The overrides are independent checks evaluated
// in this order; when both apply the STTR override wins because it is checked
// last. Real award amounts on the record, when present, are deliberately not
// consulted here.
const (
	defaultBudgetEstimate = 150000
	darpaBudgetEstimate   = 200000
	sttrBudgetEstimate    = 175000
)

// ScoreBreakdown carries the six sub-scores, each in [0,1].
type ScoreBreakdown struct {
	TechnicalAlignment   float64 `json:"technicalAlignment"`
	ExperienceMatch      float64 `json:"experienceMatch"`
	RiskTolerance        float64 `json:"riskTolerance"`
	BudgetFit            float64 `json:"budgetFit"`
	StrategicValue       float64 `json:"strategicValue"`
	CompetitiveAdvantage float64 `json:"competitiveAdvantage"`
}

type Recommendation struct {
	Level    string `json:"level"`
	Action   string `json:"action"`
	Priority string `json:"priority"`
}

// Result is the outcome of scoring one opportunity against one profile. A
// degraded result (scoring failure) carries OverallScore 0, an Error message
// and recommendation level "error".
type Result struct {
	OpportunityID  string         `json:"opportunityId"`
	TopicCode      string         `json:"topicCode"`
	OverallScore   float64        `json:"overallScore"`
	ScoreBreakdown ScoreBreakdown `json:"scoreBreakdown"`
	Reasoning      []string       `json:"reasoning"`
	Recommendation Recommendation `json:"recommendation"`
	RiskFactors    []string       `json:"riskFactors"`
	Opportunities  []string       `json:"opportunities"`
	Error          string         `json:"error,omitempty"`
	CalculatedAt   time.Time      `json:"calculatedAt"`
}

// Scorer computes weighted compatibility scores between enriched
// opportunities and a business profile. It holds no mutable state and is safe
// for concurrent use.
type Scorer struct {
	weights Weights
	now     func() time.Time
}

func NewScorer() *Scorer {
	return &Scorer{weights: defaultWeights, now: time.Now}
}

func (s *Scorer) Weights() Weights {
	return s.weights
}

// CalculateMatchScore scores one enriched opportunity against a profile. Any
// failure — a missing analysis block or a panic in a sub-scorer — yields a
// degraded error result rather than propagating, so one malformed record
// cannot abort a batch.
func (s *Scorer) CalculateMatchScore(opp models.EnrichedOpportunity, profile models.BusinessProfile) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = s.errorResult(opp, fmt.Sprintf("match scoring panic: %v", r))
		}
	}()

	if opp.Analysis == nil {
		return s.errorResult(opp, "opportunity has no analysis block")
	}
	signals := opp.Analysis.Effective()

	breakdown := ScoreBreakdown{
		TechnicalAlignment:   s.scoreTechnicalAlignment(signals, profile),
		ExperienceMatch:      s.scoreExperienceMatch(opp.Opportunity, signals, profile),
		RiskTolerance:        s.scoreRiskTolerance(signals, profile),
		BudgetFit:            s.scoreBudgetFit(opp.Opportunity, profile),
		StrategicValue:       s.scoreStrategicValue(opp.Opportunity, signals, profile),
		CompetitiveAdvantage: s.scoreCompetitiveAdvantage(opp.Opportunity, signals, profile),
	}

	total := breakdown.TechnicalAlignment*s.weights.TechnicalAlignment +
		breakdown.ExperienceMatch*s.weights.ExperienceMatch +
		breakdown.RiskTolerance*s.weights.RiskTolerance +
		breakdown.BudgetFit*s.weights.BudgetFit +
		breakdown.StrategicValue*s.weights.StrategicValue +
		breakdown.CompetitiveAdvantage*s.weights.CompetitiveAdvantage

	return Result{
		OpportunityID:  opp.TopicID,
		TopicCode:      opp.TopicCode,
		OverallScore:   math.Round(total*100) / 100,
		ScoreBreakdown: breakdown,
		Reasoning:      generateReasoning(breakdown),
		Recommendation: recommendationFor(total),
		RiskFactors:    identifyRiskFactors(signals, profile),
		Opportunities:  identifyOpportunities(opp.Opportunity, signals, profile),
		CalculatedAt:   s.now().UTC(),
	}
}

func (s *Scorer) errorResult(opp models.EnrichedOpportunity, msg string) Result {
	return Result{
		OpportunityID: opp.TopicID,
		TopicCode:     opp.TopicCode,
		OverallScore:  0,
		Error:         msg,
		Recommendation: Recommendation{
			Level:    "error",
			Action:   "Manual review required - matching failed",
			Priority: "unknown",
		},
		CalculatedAt: s.now().UTC(),
	}
}

// scoreTechnicalAlignment measures requirement/capability overlap. An empty
// requirement list scores a neutral 0.5: no signal is not no match.
func (s *Scorer) scoreTechnicalAlignment(signals models.Signals, profile models.BusinessProfile) float64 {
	requirements := signals.TechnicalRequirements
	capabilities := profile.Capabilities.TechnicalAreas
	if len(requirements) == 0 {
		return 0.5
	}

	var matched []string
	for _, req := range requirements {
		if anyContainsEitherWay(capabilities, req) {
			matched = append(matched, req)
		}
	}

	score := float64(len(matched)) / float64(len(requirements))
	for _, m := range matched {
		if keyTechnicalAreas[strings.ToLower(m)] {
			score += 0.1
		}
	}
	return math.Min(1.0, score)
}

func (s *Scorer) scoreExperienceMatch(opp models.Opportunity, signals models.Signals, profile models.BusinessProfile) float64 {
	contracts := profile.Capabilities.PastPerformance
	score := 0.3 // base for any company

	agencyCount := 0
	programCount := 0
	techCount := 0
	for _, c := range contracts {
		if c.Agency == opp.Component {
			agencyCount++
		}
		if strings.Contains(c.ContractType, "SBIR") || strings.Contains(c.ContractType, "STTR") {
			programCount++
		}
		if intersects(c.TechnologyAreas, signals.TechnicalRequirements) {
			techCount++
		}
	}

	score += math.Min(0.3, float64(agencyCount)*0.1)
	score += math.Min(0.2, float64(programCount)*0.05)
	score += math.Min(0.2, float64(techCount)*0.1)
	return math.Min(1.0, score)
}

func (s *Scorer) scoreRiskTolerance(signals models.Signals, profile models.BusinessProfile) float64 {
	tolerance := profile.Preferences.RiskTolerance
	if _, ok := riskMatrix[tolerance]; !ok {
		tolerance = "medium"
	}

	band := riskBand(signals.DifficultyScore)
	score := riskMatrix[tolerance][band]

	for _, risk := range signals.RiskFactors {
		if strings.Contains(risk, "security clearance") && len(profile.CompanyInfo.SecurityClearance) == 0 {
			score -= 0.2
		} else if strings.Contains(risk, "itar") && !containsExact(profile.Capabilities.Certifications, "ITAR") {
			score -= 0.2
		}
	}

	return clamp01(score)
}

// riskBand maps the difficulty score onto a coarse risk level.
func riskBand(difficulty int) string {
	switch {
	case difficulty <= 3:
		return "low"
	case difficulty >= 7:
		return "high"
	default:
		return "medium"
	}
}

func (s *Scorer) scoreBudgetFit(opp models.Opportunity, profile models.BusinessProfile) float64 {
	budgetRange := profile.Preferences.BudgetRange
	if budgetRange == nil {
		return 0.7 // neutral when the profile states no preference
	}

	estimate := float64(defaultBudgetEstimate)
	if opp.Component == "DARPA" {
		estimate = darpaBudgetEstimate
	}
	if strings.Contains(opp.Program, "STTR") {
		estimate = sttrBudgetEstimate
	}

	if estimate >= budgetRange.Min && estimate <= budgetRange.Max {
		return 1.0
	}

	distance := math.Min(
		math.Abs(estimate-budgetRange.Min),
		math.Abs(estimate-budgetRange.Max),
	)
	return math.Max(0, 1.0-distance/estimate)
}

func (s *Scorer) scoreStrategicValue(opp models.Opportunity, signals models.Signals, profile models.BusinessProfile) float64 {
	score := 0.5

	for _, area := range signals.InnovationAreas {
		for _, focus := range profile.Preferences.StrategicFocus {
			if strings.Contains(strings.ToLower(focus), strings.ToLower(area)) {
				score += 0.2
				break
			}
		}
	}

	if containsExact(profile.Preferences.AgencyPreferences, opp.Component) {
		score += 0.3
	}

	return math.Min(1.0, score)
}

func (s *Scorer) scoreCompetitiveAdvantage(opp models.Opportunity, signals models.Signals, profile models.BusinessProfile) float64 {
	score := 0.4

	// SBIR/STTR set-asides favor small businesses.
	if profile.CompanyInfo.Size == "small" {
		score += 0.3
	}

	description := strings.ToLower(opp.Description)
	for _, cert := range profile.Capabilities.Certifications {
		if cert != "" && strings.Contains(description, strings.ToLower(cert)) {
			score += 0.1
		}
	}

	for _, capability := range profile.Capabilities.UniqueCapabilities {
		for _, req := range signals.TechnicalRequirements {
			if strings.Contains(strings.ToLower(req), strings.ToLower(capability)) {
				score += 0.15
				break
			}
		}
	}

	return math.Min(1.0, score)
}

// anyContainsEitherWay reports whether any candidate matches value by
// case-insensitive substring in either direction.
func anyContainsEitherWay(candidates []string, value string) bool {
	valueLower := strings.ToLower(value)
	for _, c := range candidates {
		cLower := strings.ToLower(c)
		if strings.Contains(cLower, valueLower) || strings.Contains(valueLower, cLower) {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func containsExact(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1.0, v))
}
