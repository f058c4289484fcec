package analysis

import (
	"testing"

	"github.com/david/sbir-scout/internal/models"
)

func TestExtractAnalysisText_FieldOrder(t *testing.T) {
	opp := models.Opportunity{
		TopicTitle:        "Autonomous Convoy Logistics",
		Objective:         "Reduce manned resupply missions.",
		Description:       "Develop route planning software.",
		SolicitationTitle: "Army 25.4 SBIR Annual",
		Questions: []models.QuestionAnswer{
			{
				Question: "Is teaming allowed?",
				Answers:  []models.Answer{{Answer: "Yes."}, {Answer: "See BAA section 4."}},
			},
			{Question: "Can Phase I include field trials?"},
		},
	}

	got := ExtractAnalysisText(opp)
	want := "Autonomous Convoy Logistics\n\n" +
		"Reduce manned resupply missions.\n\n" +
		"Develop route planning software.\n\n" +
		"Army 25.4 SBIR Annual\n\n" +
		"Is teaming allowed?\n\n" +
		"Yes.\n\n" +
		"See BAA section 4.\n\n" +
		"Can Phase I include field trials?"
	if got != want {
		t.Fatalf("unexpected text blob:\n got: %q\nwant: %q", got, want)
	}
}

func TestExtractAnalysisText_SkipsBlankFields(t *testing.T) {
	opp := models.Opportunity{
		TopicTitle:  "Compact Power Systems",
		Objective:   "   ",
		Description: "",
		Questions: []models.QuestionAnswer{
			{Question: "", Answers: []models.Answer{{Answer: "\t\n"}}},
		},
	}

	if got := ExtractAnalysisText(opp); got != "Compact Power Systems" {
		t.Fatalf("expected blank fields to be dropped, got %q", got)
	}
}

func TestExtractAnalysisText_EmptyOpportunity(t *testing.T) {
	if got := ExtractAnalysisText(models.Opportunity{}); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestExtractAnalysisText_IncludesAttachmentTextLast(t *testing.T) {
	opp := models.Opportunity{
		TopicTitle:     "Hypersonic Test Instrumentation",
		AttachmentText: "Refer to the instruction document for submission format.",
	}

	want := "Hypersonic Test Instrumentation\n\nRefer to the instruction document for submission format."
	if got := ExtractAnalysisText(opp); got != want {
		t.Fatalf("attachment text misplaced:\n got: %q\nwant: %q", got, want)
	}
}
