package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// DoDTopicsFetcher pulls topics from the DSIP public topics API.
type DoDTopicsFetcher struct {
	Client  *http.Client
	BaseURL string
}

func NewDoDTopicsFetcher() *DoDTopicsFetcher {
	return &DoDTopicsFetcher{
		Client: &http.Client{
			Timeout: 60 * time.Second,
		},
		BaseURL: "https://www.dodsbirsttr.mil/topics/api/public",
	}
}

// topicSearchParam matches the DSIP search API's searchParam query payload.
type topicSearchParam struct {
	SearchText     *string  `json:"searchText"`
	Components     []string `json:"component"`
	ProgramYear    string   `json:"programYear,omitempty"`
	Program        []string `json:"program"`
	TopicReleaseID []int    `json:"topicReleaseStatus"`
}

type topicSearchResponse struct {
	Total int              `json:"total"`
	Data  []dodTopicRecord `json:"data"`
}

type dodTopicRecord struct {
	TopicID           string   `json:"topicId"`
	TopicCode         string   `json:"topicCode"`
	TopicTitle        string   `json:"topicTitle"`
	Objective         string   `json:"objective"`
	Description       string   `json:"description"`
	SolicitationTitle string   `json:"solicitationTitle"`
	Component         string   `json:"component"`
	Program           string   `json:"program"`
	TopicStatus       string   `json:"topicStatus"`
	TechnologyAreas   []string `json:"technologyAreaNames"`
	Keywords          []string `json:"keywords"`

	ReferenceDocuments []struct {
		Title string `json:"title"`
		URL   string `json:"fileUrl"`
	} `json:"referenceDocuments"`
}

type dodTopicQuestion struct {
	QuestionNo int    `json:"questionNo"`
	Question   string `json:"question"`
	Answers    []struct {
		AnswerNo int    `json:"answerNo"`
		Answer   string `json:"answer"`
	} `json:"answers"`
}

// FetchTopics fetches one page of topics matching the given components and
// programs. It returns the page plus the total hit count for pagination.
func (f *DoDTopicsFetcher) FetchTopics(ctx context.Context, components, programs []string, size, page int) ([]RawTopic, int, error) {
	param := topicSearchParam{
		Components: components,
		Program:    programs,
	}
	paramJSON, err := json.Marshal(param)
	if err != nil {
		return nil, 0, fmt.Errorf("marshaling search param: %w", err)
	}

	searchURL := fmt.Sprintf("%s/topics/search?searchParam=%s&size=%d&page=%d",
		f.BaseURL, url.QueryEscape(string(paramJSON)), size, page)

	req, err := http.NewRequestWithContext(ctx, "GET", searchURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	log.Printf("[dodsbir] fetching page=%d size=%d components=%v", page, size, components)

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, 0, fmt.Errorf("API returned %d: %s", resp.StatusCode, string(body))
	}

	var apiResp topicSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, 0, fmt.Errorf("decoding response: %w", err)
	}

	log.Printf("[dodsbir] got %d topics (total: %d)", len(apiResp.Data), apiResp.Total)

	topics := make([]RawTopic, 0, len(apiResp.Data))
	for _, rec := range apiResp.Data {
		if rec.TopicID == "" && rec.TopicCode == "" {
			continue
		}
		raw := RawTopic{
			TopicID:           rec.TopicID,
			TopicCode:         rec.TopicCode,
			TopicTitle:        rec.TopicTitle,
			Objective:         rec.Objective,
			Description:       rec.Description,
			SolicitationTitle: rec.SolicitationTitle,
			Component:         rec.Component,
			Program:           rec.Program,
			TopicStatus:       rec.TopicStatus,
			TechnologyAreas:   rec.TechnologyAreas,
			Keywords:          rec.Keywords,
		}
		for _, doc := range rec.ReferenceDocuments {
			raw.ReferenceDocs = append(raw.ReferenceDocs, RawReferenceDoc{Title: doc.Title, URL: doc.URL})
		}

		// Q&A enrichment is best effort; a failure never drops the topic.
		if questions, err := f.FetchTopicQuestions(ctx, rec.TopicID); err == nil {
			raw.Questions = questions
		} else {
			log.Printf("[dodsbir] failed to fetch questions for %s: %v", rec.TopicCode, err)
		}

		topics = append(topics, raw)
	}

	return topics, apiResp.Total, nil
}

// FetchTopicQuestions fetches the public Q&A thread for a topic.
func (f *DoDTopicsFetcher) FetchTopicQuestions(ctx context.Context, topicID string) ([]RawQuestion, error) {
	if topicID == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/topics/%s/questions", f.BaseURL, url.PathEscape(topicID)), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("questions API returned %d", resp.StatusCode)
	}

	var records []dodTopicQuestion
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, err
	}

	questions := make([]RawQuestion, 0, len(records))
	for _, rec := range records {
		q := RawQuestion{QuestionNo: rec.QuestionNo, Question: rec.Question}
		for _, a := range rec.Answers {
			q.Answers = append(q.Answers, RawAnswer{AnswerNo: a.AnswerNo, Answer: a.Answer})
		}
		questions = append(questions, q)
	}
	return questions, nil
}
