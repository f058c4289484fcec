package analysis

import (
	"strings"

	"github.com/david/sbir-scout/internal/models"
)

// ExtractAnalysisText builds a single text blob from a topic's free-text
// fields for keyword analysis. Field order is fixed: title, objective,
// description, solicitation title, then each question followed by its answers
// in submission order, then any attachment text. Empty or whitespace-only
// fields are skipped without placeholders. The result is never nil; the worst
// case is an empty string.
func ExtractAnalysisText(opp models.Opportunity) string {
	parts := []string{
		opp.TopicTitle,
		opp.Objective,
		opp.Description,
		opp.SolicitationTitle,
	}

	for _, qa := range opp.Questions {
		parts = append(parts, qa.Question)
		for _, ans := range qa.Answers {
			parts = append(parts, ans.Answer)
		}
	}

	parts = append(parts, opp.AttachmentText)

	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}

	return strings.Join(kept, "\n\n")
}
