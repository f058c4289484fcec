package ingest

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/david/sbir-scout/internal/models"
)

// TruncateText cuts a string to max length, appending ellipsis if truncated.
func TruncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	if maxLen > 3 {
		return text[:maxLen-3] + "..."
	}
	return text[:maxLen]
}

// HTMLToText converts HTML to plain text, collapsing whitespace.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html // Fallback to original if parsing fails
	}
	return cleanText(doc.Text())
}

// normalizeSpace collapses multiple spaces into one and trims the string.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cleanText normalizes whitespace (alias for normalizeSpace)
func cleanText(s string) string {
	return normalizeSpace(s)
}

// sanitizeUTF8 removes invalid UTF-8 byte sequences that cause PostgreSQL errors.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}

// sanitizeHTML uses bluemonday to strip unsafe tags and attributes from HTML.
func sanitizeHTML(s string) string {
	// UGCPolicy allows links, tables, lists etc. but removes scripts/iframes
	p := bluemonday.UGCPolicy()
	return p.Sanitize(s)
}

func mergeUniqueFold(dst []string, items []string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, v := range dst {
		k := strings.ToLower(strings.TrimSpace(v))
		if k != "" {
			seen[k] = struct{}{}
		}
	}

	for _, v := range items {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		k := strings.ToLower(v)
		if _, ok := seen[k]; ok {
			continue
		}
		dst = append(dst, v)
		seen[k] = struct{}{}
	}

	return dst
}

// maxDescriptionLen keeps pathological topic bodies from blowing up the
// embedding and analysis stages.
const maxDescriptionLen = 60000

// FromRaw converts a RawTopic into a canonical Opportunity. Title, objective
// and keyword fields are flattened to plain text; the description keeps
// sanitized markup since the frontend renders it.
func FromRaw(raw RawTopic) models.Opportunity {
	opp := models.Opportunity{
		TopicID:           strings.TrimSpace(raw.TopicID),
		TopicCode:         strings.TrimSpace(raw.TopicCode),
		TopicTitle:        sanitizeUTF8(HTMLToText(raw.TopicTitle)),
		Objective:         sanitizeUTF8(HTMLToText(raw.Objective)),
		SolicitationTitle: sanitizeUTF8(HTMLToText(raw.SolicitationTitle)),
		Component:         cleanText(strings.ToUpper(raw.Component)),
		Program:           cleanText(strings.ToUpper(raw.Program)),
		TopicStatus:       cleanText(raw.TopicStatus),
	}

	opp.Description = sanitizeHTML(sanitizeUTF8(raw.Description))
	opp.Description = TruncateText(opp.Description, maxDescriptionLen)

	opp.TechnologyAreas = mergeUniqueFold(nil, cleanAll(raw.TechnologyAreas))
	opp.Keywords = mergeUniqueFold(nil, cleanAll(raw.Keywords))

	for _, q := range raw.Questions {
		question := models.QuestionAnswer{
			QuestionID: q.QuestionNo,
			Question:   sanitizeUTF8(HTMLToText(q.Question)),
		}
		if question.Question == "" {
			continue
		}
		for _, a := range q.Answers {
			text := sanitizeUTF8(HTMLToText(a.Answer))
			if text == "" {
				continue
			}
			question.Answers = append(question.Answers, models.Answer{
				AnswerID: a.AnswerNo,
				Answer:   text,
			})
		}
		opp.Questions = append(opp.Questions, question)
	}

	for _, doc := range raw.ReferenceDocs {
		url := strings.TrimSpace(doc.URL)
		if url == "" {
			continue
		}
		opp.ReferenceDocuments = append(opp.ReferenceDocuments, models.ReferenceDocument{
			Title: cleanText(doc.Title),
			URL:   url,
		})
	}

	return opp
}

func cleanAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, v := range items {
		if s := cleanText(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// EmbeddingText builds the text blob fed to the embedding model: title and
// objective carry the signal, the description fills in context up to a cap.
func EmbeddingText(opp models.Opportunity) string {
	parts := []string{opp.TopicTitle, opp.Objective}
	if desc := HTMLToText(opp.Description); desc != "" {
		parts = append(parts, TruncateText(desc, 4000))
	}
	if len(opp.Keywords) > 0 {
		parts = append(parts, strings.Join(opp.Keywords, ", "))
	}
	return cleanText(strings.Join(parts, " "))
}
