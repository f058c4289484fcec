package match

import (
	"fmt"
	"strings"

	"github.com/david/sbir-scout/internal/models"
)

// generateReasoning renders the score breakdown as short human-readable
// statements for the match report.
func generateReasoning(breakdown ScoreBreakdown) []string {
	var reasons []string

	if breakdown.TechnicalAlignment > 0.7 {
		reasons = append(reasons, "Strong technical capability alignment with opportunity requirements")
	} else if breakdown.TechnicalAlignment < 0.3 {
		reasons = append(reasons, "Limited technical alignment - may require capability development")
	}

	if breakdown.ExperienceMatch > 0.6 {
		reasons = append(reasons, "Good past performance history with similar opportunities")
	}

	if breakdown.RiskTolerance < 0.4 {
		reasons = append(reasons, "Risk level may be outside company comfort zone")
	}

	if breakdown.CompetitiveAdvantage > 0.6 {
		reasons = append(reasons, "Company has competitive advantages for this opportunity")
	}

	if len(reasons) == 0 {
		return []string{"Standard match based on available data"}
	}
	return reasons
}

// recommendationFor maps the unrounded overall score onto an action tier.
func recommendationFor(totalScore float64) Recommendation {
	switch {
	case totalScore >= 0.8:
		return Recommendation{
			Level:    "highly_recommended",
			Action:   "Strongly consider pursuing this opportunity",
			Priority: "high",
		}
	case totalScore >= 0.6:
		return Recommendation{
			Level:    "recommended",
			Action:   "Good fit - worth detailed evaluation",
			Priority: "medium",
		}
	case totalScore >= 0.4:
		return Recommendation{
			Level:    "conditional",
			Action:   "Consider if strategic or with teaming partners",
			Priority: "low",
		}
	default:
		return Recommendation{
			Level:    "not_recommended",
			Action:   "Low match - focus on better aligned opportunities",
			Priority: "very_low",
		}
	}
}

// identifyRiskFactors lists concrete concerns the company should weigh before
// pursuing the opportunity.
func identifyRiskFactors(signals models.Signals, profile models.BusinessProfile) []string {
	var risks []string

	for _, risk := range signals.RiskFactors {
		if strings.Contains(risk, "security clearance") && len(profile.CompanyInfo.SecurityClearance) == 0 {
			risks = append(risks, "Requires security clearance - company may need to obtain")
			break
		}
	}

	if signals.CompetitionLevel == "high" {
		risks = append(risks, "High competition expected for this opportunity")
	}

	var gaps []string
	for _, req := range signals.TechnicalRequirements {
		covered := false
		for _, cap := range profile.Capabilities.TechnicalAreas {
			if strings.Contains(strings.ToLower(cap), strings.ToLower(req)) {
				covered = true
				break
			}
		}
		if !covered {
			gaps = append(gaps, req)
		}
	}
	if len(gaps) > 0 {
		risks = append(risks, fmt.Sprintf("Technical capability gaps: %s", strings.Join(gaps, ", ")))
	}

	return risks
}

// identifyOpportunities lists upside angles: innovation areas, an existing
// agency relationship, and modest expansion potential. Expansion is only
// suggested when one or two new technical areas are involved, more than that
// reads as a capability mismatch rather than growth.
func identifyOpportunities(opp models.Opportunity, signals models.Signals, profile models.BusinessProfile) []string {
	var upside []string

	if len(signals.InnovationAreas) > 0 {
		upside = append(upside, fmt.Sprintf("Innovation potential in: %s", strings.Join(signals.InnovationAreas, ", ")))
	}

	for _, contract := range profile.Capabilities.PastPerformance {
		if contract.Agency == opp.Component {
			upside = append(upside, fmt.Sprintf("Leverage existing %s relationship", opp.Component))
			break
		}
	}

	var newAreas []string
	for _, req := range signals.TechnicalRequirements {
		if !containsExact(profile.Capabilities.TechnicalAreas, req) {
			newAreas = append(newAreas, req)
		}
	}
	if len(newAreas) > 0 && len(newAreas) <= 2 {
		upside = append(upside, fmt.Sprintf("Opportunity to expand into: %s", strings.Join(newAreas, ", ")))
	}

	return upside
}
