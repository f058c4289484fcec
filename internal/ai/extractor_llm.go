package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/david/sbir-scout/internal/models"
)

// Completer is the generation surface of OllamaClient that signal extraction
// needs.
type Completer interface {
	GenerateCompletion(ctx context.Context, prompt string, jsonMode bool) (string, error)
}

// SignalExtractor derives opportunity signals with an LLM. It satisfies the
// analysis package's Extractor interface and can be swapped in for the
// rule-based default when a model is available.
type SignalExtractor struct {
	llm Completer
}

func NewSignalExtractor(llm Completer) *SignalExtractor {
	return &SignalExtractor{llm: llm}
}

// llmSignals mirrors models.Signals with looser types so a sloppy model
// response still decodes.
type llmSignals struct {
	TechnicalRequirements []string `json:"technicalRequirements"`
	KeyCapabilities       []string `json:"keyCapabilities"`
	DifficultyScore       float64  `json:"difficultyScore"`
	CompetitionLevel      string   `json:"competitionLevel"`
	BudgetIndicators      struct {
		Phase1     string   `json:"phase1"`
		Phase2     string   `json:"phase2"`
		Indicators []string `json:"indicators"`
	} `json:"budgetIndicators"`
	TimelineFactors        []string `json:"timelineFactors"`
	RiskFactors            []string `json:"riskFactors"`
	InnovationAreas        []string `json:"innovationAreas"`
	ComplianceRequirements []string `json:"complianceRequirements"`
}

func (e *SignalExtractor) Extract(ctx context.Context, fullText string, opp models.Opportunity) (models.Signals, error) {
	prompt := buildSignalPrompt(fullText, opp)

	// JSON mode first; fall back to text mode with balanced-brace extraction
	// for models that ignore the format hint.
	resp, err := e.llm.GenerateCompletion(ctx, prompt, true)
	if err == nil {
		if signals, parseErr := parseSignalResponse(resp); parseErr == nil {
			return signals, nil
		} else {
			log.Printf("[ai] json mode parse failed for %s: %v, retrying in text mode", opp.TopicCode, parseErr)
		}
	} else {
		log.Printf("[ai] json mode generation failed for %s: %v, retrying in text mode", opp.TopicCode, err)
	}

	resp, err = e.llm.GenerateCompletion(ctx, prompt, false)
	if err != nil {
		return models.Signals{}, fmt.Errorf("signal generation failed: %w", err)
	}

	signals, err := parseSignalResponse(resp)
	if err != nil {
		return models.Signals{}, fmt.Errorf("failed to parse signal response: %w", err)
	}
	return signals, nil
}

func buildSignalPrompt(fullText string, opp models.Opportunity) string {
	return fmt.Sprintf(`Analyze this DoD SBIR/STTR opportunity and extract structured signals.

OPPORTUNITY DETAILS:
Topic Code: %s
Agency: %s
Program: %s
Status: %s

FULL TEXT:
%s

Respond ONLY with a JSON object matching this schema:

{
  "technicalRequirements": ["specific technical requirements/capabilities needed"],
  "keyCapabilities": ["core technical capabilities required"],
  "difficultyScore": 1-10,
  "competitionLevel": "low|medium|high",
  "budgetIndicators": {
    "phase1": "estimated Phase I budget range",
    "phase2": "estimated Phase II budget range",
    "indicators": ["budget-related keywords found"]
  },
  "timelineFactors": ["timeline constraints and milestones"],
  "riskFactors": ["potential risks and challenges"],
  "innovationAreas": ["areas requiring innovation/research"],
  "complianceRequirements": ["security, regulatory, or compliance needs"]
}

Focus on signals that help a contractor judge whether the opportunity matches their capabilities.`,
		opp.TopicCode, opp.Component, opp.Program, opp.TopicStatus, fullText)
}

func parseSignalResponse(resp string) (models.Signals, error) {
	cleaned := strings.TrimSpace(resp)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	if jsonStr, ok := extractFirstJSONObject(cleaned); ok {
		cleaned = jsonStr
	}

	var raw llmSignals
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return models.Signals{}, err
	}
	return normalizeSignals(raw), nil
}

// normalizeSignals coerces a decoded model response into the invariants the
// rest of the system assumes: difficulty in [1,10], a known competition
// level, and non-nil lists.
func normalizeSignals(raw llmSignals) models.Signals {
	difficulty := int(raw.DifficultyScore)
	if difficulty < 1 {
		difficulty = 1
	}
	if difficulty > 10 {
		difficulty = 10
	}

	competition := strings.ToLower(strings.TrimSpace(raw.CompetitionLevel))
	switch competition {
	case "low", "medium", "high":
	default:
		competition = "medium"
	}

	phase1 := raw.BudgetIndicators.Phase1
	if phase1 == "" {
		phase1 = "Not specified"
	}
	phase2 := raw.BudgetIndicators.Phase2
	if phase2 == "" {
		phase2 = "Not specified"
	}

	return models.Signals{
		TechnicalRequirements: orEmpty(raw.TechnicalRequirements),
		KeyCapabilities:       orEmpty(raw.KeyCapabilities),
		DifficultyScore:       difficulty,
		CompetitionLevel:      competition,
		BudgetIndicators: models.BudgetIndicators{
			Phase1:     phase1,
			Phase2:     phase2,
			Indicators: orEmpty(raw.BudgetIndicators.Indicators),
		},
		TimelineFactors:        orEmpty(raw.TimelineFactors),
		RiskFactors:            orEmpty(raw.RiskFactors),
		InnovationAreas:        orEmpty(raw.InnovationAreas),
		ComplianceRequirements: orEmpty(raw.ComplianceRequirements),
	}
}

func orEmpty(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

// extractFirstJSONObject finds the first outermost balanced {...}.
func extractFirstJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		char := s[i]

		if escaped {
			escaped = false
			continue
		}

		if char == '\\' {
			escaped = true
			continue
		}

		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			if char == '{' {
				depth++
			} else if char == '}' {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}

	return "", false
}
