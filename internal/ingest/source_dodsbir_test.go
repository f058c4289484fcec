package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchTopics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/topics/search":
			param := r.URL.Query().Get("searchParam")
			var decoded map[string]any
			if err := json.Unmarshal([]byte(param), &decoded); err != nil {
				t.Errorf("searchParam is not JSON: %v", err)
			}
			if r.URL.Query().Get("size") != "2" || r.URL.Query().Get("page") != "0" {
				t.Errorf("unexpected paging query: %s", r.URL.RawQuery)
			}
			json.NewEncoder(w).Encode(map[string]any{
				"total": 3,
				"data": []map[string]any{
					{
						"topicId":    "abc",
						"topicCode":  "A254-001",
						"topicTitle": "Topic One",
						"component":  "ARMY",
						"program":    "SBIR",
						"referenceDocuments": []map[string]any{
							{"title": "Doc", "fileUrl": "https://example.mil/d.pdf"},
						},
					},
					{
						// No identity: must be skipped.
						"topicTitle": "ghost",
					},
				},
			})
		case "/topics/abc/questions":
			json.NewEncoder(w).Encode([]map[string]any{
				{
					"questionNo": 1,
					"question":   "Q?",
					"answers":    []map[string]any{{"answerNo": 1, "answer": "A."}},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewDoDTopicsFetcher()
	f.BaseURL = srv.URL

	topics, total, err := f.FetchTopics(context.Background(), []string{"ARMY"}, []string{"SBIR"}, 2, 0)
	if err != nil {
		t.Fatalf("FetchTopics: %v", err)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3", total)
	}
	if len(topics) != 1 {
		t.Fatalf("expected the identity-less record to be dropped, got %d topics", len(topics))
	}

	got := topics[0]
	if got.TopicCode != "A254-001" || got.TopicTitle != "Topic One" {
		t.Fatalf("unexpected topic: %+v", got)
	}
	if len(got.ReferenceDocs) != 1 || got.ReferenceDocs[0].URL != "https://example.mil/d.pdf" {
		t.Fatalf("reference docs = %+v", got.ReferenceDocs)
	}
	if len(got.Questions) != 1 || got.Questions[0].Question != "Q?" {
		t.Fatalf("questions = %+v", got.Questions)
	}
	if len(got.Questions[0].Answers) != 1 || got.Questions[0].Answers[0].Answer != "A." {
		t.Fatalf("answers = %+v", got.Questions[0].Answers)
	}
}

func TestFetchTopics_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewDoDTopicsFetcher()
	f.BaseURL = srv.URL

	if _, _, err := f.FetchTopics(context.Background(), nil, nil, 10, 0); err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}

func TestFetchTopicQuestions_NotFoundIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer srv.Close()

	f := NewDoDTopicsFetcher()
	f.BaseURL = srv.URL

	questions, err := f.FetchTopicQuestions(context.Background(), "missing")
	if err != nil {
		t.Fatalf("404 must not be an error: %v", err)
	}
	if questions != nil {
		t.Fatalf("expected no questions, got %v", questions)
	}
}
