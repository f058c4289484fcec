package models

import (
	"strings"
	"time"
)

// Opportunity is a single DoD SBIR/STTR topic record as received from the
// topics API. It is read-only to the analysis core; enrichment produces a
// derived EnrichedOpportunity and never mutates the original.
type Opportunity struct {
	TopicID           string `json:"topicId"`
	TopicCode         string `json:"topicCode"`
	TopicTitle        string `json:"topicTitle"`
	Objective         string `json:"objective"`
	Description       string `json:"description"`
	SolicitationTitle string `json:"solicitationTitle"`
	Component         string `json:"component"` // Sponsoring org code: ARMY, NAVY, DARPA, ...
	Program           string `json:"program"`   // SBIR, STTR
	TopicStatus       string `json:"topicStatus"`

	TechnologyAreas []string `json:"technologyAreas,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`

	Questions []QuestionAnswer `json:"questions,omitempty"`

	// ReferenceDocuments and AttachmentText are populated by ingestion when
	// solicitation attachments are available. AttachmentText is plain text
	// extracted from PDFs and feeds the analysis blob after the Q&A content.
	ReferenceDocuments []ReferenceDocument `json:"referenceDocuments,omitempty"`
	AttachmentText     string              `json:"attachmentText,omitempty"`
}

type QuestionAnswer struct {
	QuestionID int      `json:"questionNo,omitempty"`
	Question   string   `json:"question"`
	Answers    []Answer `json:"answers,omitempty"`
}

type Answer struct {
	AnswerID int    `json:"answerNo,omitempty"`
	Answer   string `json:"answer"`
}

type ReferenceDocument struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// CacheKey identifies an opportunity for analysis caching.
func (o Opportunity) CacheKey() string {
	return o.TopicID + "-" + o.TopicCode
}

// HasIdentity reports whether the record carries enough identity to be
// analyzed and cached.
func (o Opportunity) HasIdentity() bool {
	return strings.TrimSpace(o.TopicID) != "" || strings.TrimSpace(o.TopicCode) != ""
}

// Signals is the structured output of rule-based text analysis. All keyword
// lists are derived from fixed vocabularies scanned case-insensitively against
// the normalized text and are append-order stable for a given input.
type Signals struct {
	TechnicalRequirements  []string         `json:"technicalRequirements"`
	KeyCapabilities        []string         `json:"keyCapabilities"`
	DifficultyScore        int              `json:"difficultyScore"`  // [1,10]
	CompetitionLevel       string           `json:"competitionLevel"` // low, medium, high
	BudgetIndicators       BudgetIndicators `json:"budgetIndicators"`
	TimelineFactors        []string         `json:"timelineFactors"`
	RiskFactors            []string         `json:"riskFactors"`
	InnovationAreas        []string         `json:"innovationAreas"`
	ComplianceRequirements []string         `json:"complianceRequirements"`
}

type BudgetIndicators struct {
	Phase1     string   `json:"phase1"`
	Phase2     string   `json:"phase2"`
	Indicators []string `json:"indicators"`
}

// Analysis is the enrichment block attached to an opportunity. On extraction
// failure Error is set and FallbackData carries a safe default signal set; the
// embedded Signals are only meaningful when Error is empty.
type Analysis struct {
	Signals
	Error        string   `json:"error,omitempty"`
	FallbackData *Signals `json:"fallbackData,omitempty"`
}

// Effective returns the signal set a scorer should consume: the extracted
// signals normally, or the fallback set when extraction failed.
func (a *Analysis) Effective() Signals {
	if a.Error != "" && a.FallbackData != nil {
		return *a.FallbackData
	}
	return a.Signals
}

type EnrichmentMetadata struct {
	AnalyzedAt      time.Time `json:"analyzedAt"`
	AnalysisVersion string    `json:"analysisVersion"`
}

// EnrichedOpportunity is an Opportunity plus its analysis block. Every record
// handed to the match scorer must carry a non-nil Analysis.
type EnrichedOpportunity struct {
	Opportunity
	Analysis *Analysis           `json:"analysis,omitempty"`
	Metadata *EnrichmentMetadata `json:"metadata,omitempty"`
}
