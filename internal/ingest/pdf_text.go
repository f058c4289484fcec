package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	rpdf "rsc.io/pdf"

	"github.com/david/sbir-scout/internal/models"
)

const (
	// maxAttachmentBytes bounds how much of a reference document is read.
	maxAttachmentBytes = 15 << 20
	// maxAttachmentsPerTopic bounds per-topic fetch fan-out.
	maxAttachmentsPerTopic = 4
	// maxAttachmentTextLen bounds how much extracted text is attached.
	maxAttachmentTextLen = 20000
)

func extractPDFText(content []byte) (text string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("pdf parser panic: %v", recovered)
			text = ""
		}
	}()

	reader, err := rpdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for pageIndex := 1; pageIndex <= reader.NumPage(); pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		for _, fragment := range page.Content().Text {
			builder.WriteString(fragment.S)
			builder.WriteString(" ")
		}
		builder.WriteString("\n")
	}

	return builder.String(), nil
}

// AttachReferenceText downloads a topic's reference documents, extracts plain
// text from the PDFs among them and appends it to AttachmentText. Failures are
// logged and skipped; the topic record is never dropped over an attachment.
// Returns the number of documents that yielded text.
func AttachReferenceText(ctx context.Context, fetcher Fetcher, opp *models.Opportunity) int {
	if fetcher == nil || len(opp.ReferenceDocuments) == 0 {
		return 0
	}

	docs := opp.ReferenceDocuments
	if len(docs) > maxAttachmentsPerTopic {
		docs = docs[:maxAttachmentsPerTopic]
	}

	var parts []string
	ok := 0
	for _, doc := range docs {
		text, err := fetchDocumentText(ctx, fetcher, doc.URL)
		if err != nil {
			log.Printf("[ingest] attachment %s for %s: %v", doc.URL, opp.TopicCode, err)
			continue
		}
		if text == "" {
			continue
		}
		parts = append(parts, text)
		ok++
	}

	if len(parts) > 0 {
		combined := sanitizeUTF8(cleanText(strings.Join(parts, "\n")))
		opp.AttachmentText = TruncateText(combined, maxAttachmentTextLen)
	}
	return ok
}

func fetchDocumentText(ctx context.Context, fetcher Fetcher, url string) (string, error) {
	doc, err := fetcher.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	defer doc.Body.Close()

	if doc.StatusCode != 200 {
		return "", fmt.Errorf("status %d", doc.StatusCode)
	}

	content, err := io.ReadAll(io.LimitReader(doc.Body, maxAttachmentBytes))
	if err != nil {
		return "", err
	}

	if isPDF(doc.ContentType, content) {
		return extractPDFText(content)
	}
	if strings.Contains(doc.ContentType, "text/html") {
		return HTMLToText(string(content)), nil
	}
	if strings.Contains(doc.ContentType, "text/plain") {
		return string(content), nil
	}
	return "", nil
}

func isPDF(contentType string, content []byte) bool {
	if strings.Contains(contentType, "application/pdf") {
		return true
	}
	return bytes.HasPrefix(content, []byte("%PDF-"))
}
