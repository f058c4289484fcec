package ingest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/david/sbir-scout/internal/models"
)

type stubFetcher struct {
	responses map[string]*FetchedDocument
	errs      map[string]error
}

func (s *stubFetcher) Fetch(_ context.Context, url string) (*FetchedDocument, error) {
	if err, ok := s.errs[url]; ok {
		return nil, err
	}
	if doc, ok := s.responses[url]; ok {
		return doc, nil
	}
	return nil, fmt.Errorf("unexpected URL %s", url)
}

func textDoc(url, contentType, body string) *FetchedDocument {
	return &FetchedDocument{
		URL:         url,
		StatusCode:  200,
		ContentType: contentType,
		Body:        io.NopCloser(strings.NewReader(body)),
	}
}

func TestIsPDF(t *testing.T) {
	if !isPDF("application/pdf", nil) {
		t.Fatal("content type should identify a PDF")
	}
	if !isPDF("application/octet-stream", []byte("%PDF-1.7 rest")) {
		t.Fatal("magic bytes should identify a PDF")
	}
	if isPDF("text/html", []byte("<html>")) {
		t.Fatal("HTML is not a PDF")
	}
}

func TestExtractPDFText_InvalidInput(t *testing.T) {
	if _, err := extractPDFText([]byte("not a pdf at all")); err == nil {
		t.Fatal("expected an error for malformed input")
	}
}

func TestAttachReferenceText(t *testing.T) {
	fetcher := &stubFetcher{
		responses: map[string]*FetchedDocument{
			"https://example.mil/page.html": textDoc("https://example.mil/page.html",
				"text/html; charset=utf-8", "<html><body>Phase I details</body></html>"),
			"https://example.mil/notes.txt": textDoc("https://example.mil/notes.txt",
				"text/plain", "Plain notes"),
			"https://example.mil/image.png": textDoc("https://example.mil/image.png",
				"image/png", "binary"),
		},
		errs: map[string]error{
			"https://example.mil/broken.pdf": fmt.Errorf("connection refused"),
		},
	}

	opp := models.Opportunity{
		TopicCode: "A254-001",
		ReferenceDocuments: []models.ReferenceDocument{
			{Title: "Page", URL: "https://example.mil/page.html"},
			{Title: "Broken", URL: "https://example.mil/broken.pdf"},
			{Title: "Notes", URL: "https://example.mil/notes.txt"},
			{Title: "Image", URL: "https://example.mil/image.png"},
		},
	}

	ok := AttachReferenceText(context.Background(), fetcher, &opp)
	if ok != 2 {
		t.Fatalf("expected 2 documents with text, got %d", ok)
	}
	if !strings.Contains(opp.AttachmentText, "Phase I details") {
		t.Fatalf("HTML text missing from attachment blob: %q", opp.AttachmentText)
	}
	if !strings.Contains(opp.AttachmentText, "Plain notes") {
		t.Fatalf("plain text missing from attachment blob: %q", opp.AttachmentText)
	}
}

func TestAttachReferenceText_NoDocs(t *testing.T) {
	opp := models.Opportunity{TopicCode: "X"}
	if got := AttachReferenceText(context.Background(), &stubFetcher{}, &opp); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if opp.AttachmentText != "" {
		t.Fatal("attachment text must stay empty")
	}
}
