package ingest

import (
	"context"
	"io"
	"time"
)

// RawTopic is an untrusted topic record as returned by the DoD SBIR/STTR
// topics API. Text fields may contain HTML; normalization strips and
// sanitizes them before anything downstream sees the record.
type RawTopic struct {
	TopicID           string
	TopicCode         string
	TopicTitle        string
	Objective         string
	Description       string
	SolicitationTitle string
	Component         string
	Program           string
	TopicStatus       string
	TechnologyAreas   []string
	Keywords          []string
	Questions         []RawQuestion
	ReferenceDocs     []RawReferenceDoc
}

type RawQuestion struct {
	QuestionNo int
	Question   string
	Answers    []RawAnswer
}

type RawAnswer struct {
	AnswerNo int
	Answer   string
}

type RawReferenceDoc struct {
	Title string
	URL   string
}

// FetchedDocument is the raw result of a fetch operation.
type FetchedDocument struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        io.ReadCloser
	FetchedAt   time.Time
	Headers     map[string][]string
}

// Fetcher retrieves raw content from a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedDocument, error)
}

// IngestionStats summarizes one pipeline run.
type IngestionStats struct {
	TotalFound    int `json:"total_found"`
	TotalSaved    int `json:"total_saved"`
	Analyzed      int `json:"analyzed"`
	AttachmentsOK int `json:"attachments_ok"`
	Errors        int `json:"errors"`
}
