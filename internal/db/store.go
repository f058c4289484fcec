package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/david/sbir-scout/internal/models"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// TopicListParams filters and orders stored topics. Query drives full-text
// matching; QueryEmbedding, when present, switches ordering to vector
// similarity.
type TopicListParams struct {
	Query          string
	QueryEmbedding []float32
	Component      string
	Program        string
	Status         string // "open" (default), "closed", "all"
	AnalyzedOnly   bool
	Limit          int
	Offset         int
}

type TopicListResult struct {
	Topics []models.EnrichedOpportunity `json:"topics"`
	Total  int                          `json:"total"`
	Limit  int                          `json:"limit"`
	Offset int                          `json:"offset"`
}

const topicCols = `topic_id, topic_code, topic_title, objective, description,
	solicitation_title, component, program, topic_status,
	technology_areas, keywords, questions, reference_documents, attachment_text,
	analysis, analyzed_at, analysis_version`

// UpsertTopic inserts or refreshes a topic record keyed by (topic_id,
// topic_code). The analysis block, when present, is stored alongside the raw
// record; embedding may be nil when no embedder is configured.
func (s *Store) UpsertTopic(ctx context.Context, topic models.EnrichedOpportunity, embedding []float32) error {
	if !topic.HasIdentity() {
		return fmt.Errorf("topic %q has no identity", topic.TopicTitle)
	}

	questions, err := json.Marshal(topic.Questions)
	if err != nil {
		return fmt.Errorf("failed to encode questions: %w", err)
	}
	refDocs, err := json.Marshal(topic.ReferenceDocuments)
	if err != nil {
		return fmt.Errorf("failed to encode reference documents: %w", err)
	}

	var analysisJSON []byte
	var analyzedAt any
	var analysisVersion *string
	if topic.Analysis != nil {
		analysisJSON, err = json.Marshal(topic.Analysis)
		if err != nil {
			return fmt.Errorf("failed to encode analysis: %w", err)
		}
	}
	if topic.Metadata != nil {
		analyzedAt = topic.Metadata.AnalyzedAt
		analysisVersion = &topic.Metadata.AnalysisVersion
	}

	var vec any
	if len(embedding) > 0 {
		vec = pgvector.NewVector(embedding)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO topics (
			topic_id, topic_code, topic_title, objective, description,
			solicitation_title, component, program, topic_status,
			technology_areas, keywords, questions, reference_documents, attachment_text,
			analysis, analyzed_at, analysis_version, embedding
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (topic_id, topic_code) DO UPDATE SET
			topic_title = EXCLUDED.topic_title,
			objective = EXCLUDED.objective,
			description = EXCLUDED.description,
			solicitation_title = EXCLUDED.solicitation_title,
			component = EXCLUDED.component,
			program = EXCLUDED.program,
			topic_status = EXCLUDED.topic_status,
			technology_areas = EXCLUDED.technology_areas,
			keywords = EXCLUDED.keywords,
			questions = EXCLUDED.questions,
			reference_documents = EXCLUDED.reference_documents,
			attachment_text = EXCLUDED.attachment_text,
			analysis = COALESCE(EXCLUDED.analysis, topics.analysis),
			analyzed_at = COALESCE(EXCLUDED.analyzed_at, topics.analyzed_at),
			analysis_version = COALESCE(EXCLUDED.analysis_version, topics.analysis_version),
			embedding = COALESCE(EXCLUDED.embedding, topics.embedding),
			updated_at = NOW()
	`,
		topic.TopicID, topic.TopicCode, topic.TopicTitle, topic.Objective, topic.Description,
		nullable(topic.SolicitationTitle), nullable(topic.Component), nullable(topic.Program), nullable(topic.TopicStatus),
		topic.TechnologyAreas, topic.Keywords, questions, refDocs, nullable(topic.AttachmentText),
		analysisJSON, analyzedAt, analysisVersion, vec,
	)
	if err != nil {
		return fmt.Errorf("topic upsert failed: %w", err)
	}
	return nil
}

func (s *Store) ListTopics(ctx context.Context, params TopicListParams) (*TopicListResult, error) {
	where, args := buildTopicWhere(params)
	argIdx := len(args) + 1

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM topics "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	selectSQL := fmt.Sprintf("SELECT %s FROM topics %s", topicCols, where)

	if len(params.QueryEmbedding) > 0 {
		selectSQL += fmt.Sprintf(`
			ORDER BY
				CASE WHEN embedding IS NULL THEN 1 ELSE 0 END ASC,
				COALESCE(1 - (embedding <=> $%d), -1) DESC,
				updated_at DESC
		`, argIdx)
		args = append(args, pgvector.NewVector(params.QueryEmbedding))
		argIdx++
	} else if params.Query != "" {
		selectSQL += fmt.Sprintf(" ORDER BY ts_rank(search_vector, plainto_tsquery('english', $%d::text)) DESC, updated_at DESC", argIdx)
		args = append(args, params.Query)
		argIdx++
	} else {
		selectSQL += " ORDER BY updated_at DESC, topic_code ASC"
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}
	selectSQL += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, params.Offset)

	rows, err := s.pool.Query(ctx, selectSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	topics := []models.EnrichedOpportunity{}
	for rows.Next() {
		topic, err := scanTopic(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		topics = append(topics, topic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return &TopicListResult{
		Topics: topics,
		Total:  total,
		Limit:  limit,
		Offset: params.Offset,
	}, nil
}

func (s *Store) GetTopicByCode(ctx context.Context, topicCode string) (*models.EnrichedOpportunity, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM topics WHERE topic_code = $1", topicCols), topicCode)

	topic, err := scanTopic(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("topic lookup failed: %w", err)
	}
	return &topic, nil
}

// buildTopicWhere assembles the WHERE clause shared by the count and select
// queries.
func buildTopicWhere(params TopicListParams) (string, []any) {
	where := "WHERE 1=1"
	var args []any
	argIdx := 1

	if params.Query != "" {
		where += fmt.Sprintf(" AND (search_vector @@ plainto_tsquery('english', $%d) OR topic_title ILIKE '%%' || $%d || '%%')", argIdx, argIdx)
		args = append(args, params.Query)
		argIdx++
	}
	if params.Component != "" {
		where += fmt.Sprintf(" AND component = $%d", argIdx)
		args = append(args, params.Component)
		argIdx++
	}
	if params.Program != "" {
		where += fmt.Sprintf(" AND program = $%d", argIdx)
		args = append(args, params.Program)
		argIdx++
	}

	status := params.Status
	if status == "" {
		status = "open"
	}
	switch status {
	case "all":
		// No filter.
	case "open":
		where += " AND LOWER(topic_status) IN ('open', 'prerelease', 'pre-release')"
	case "closed":
		where += " AND LOWER(topic_status) NOT IN ('open', 'prerelease', 'pre-release')"
	default:
		where += fmt.Sprintf(" AND LOWER(topic_status) = LOWER($%d)", argIdx)
		args = append(args, status)
		argIdx++
	}

	if params.AnalyzedOnly {
		where += " AND analysis IS NOT NULL"
	}

	return where, args
}

func scanTopic(scan func(dest ...any) error) (models.EnrichedOpportunity, error) {
	var topic models.EnrichedOpportunity
	var solicitationTitle, component, program, topicStatus, attachmentText *string
	var questionsRaw, refDocsRaw, analysisRaw []byte
	var analyzedAt *time.Time
	var analysisVersion *string

	err := scan(
		&topic.TopicID, &topic.TopicCode, &topic.TopicTitle, &topic.Objective, &topic.Description,
		&solicitationTitle, &component, &program, &topicStatus,
		&topic.TechnologyAreas, &topic.Keywords, &questionsRaw, &refDocsRaw, &attachmentText,
		&analysisRaw, &analyzedAt, &analysisVersion,
	)
	if err != nil {
		return topic, err
	}

	if solicitationTitle != nil {
		topic.SolicitationTitle = *solicitationTitle
	}
	if component != nil {
		topic.Component = *component
	}
	if program != nil {
		topic.Program = *program
	}
	if topicStatus != nil {
		topic.TopicStatus = *topicStatus
	}
	if attachmentText != nil {
		topic.AttachmentText = *attachmentText
	}
	if len(questionsRaw) > 0 {
		_ = json.Unmarshal(questionsRaw, &topic.Questions)
	}
	if len(refDocsRaw) > 0 {
		_ = json.Unmarshal(refDocsRaw, &topic.ReferenceDocuments)
	}
	if len(analysisRaw) > 0 {
		var analysis models.Analysis
		if err := json.Unmarshal(analysisRaw, &analysis); err == nil {
			topic.Analysis = &analysis
		}
	}
	if analyzedAt != nil && analysisVersion != nil {
		topic.Metadata = &models.EnrichmentMetadata{
			AnalyzedAt:      *analyzedAt,
			AnalysisVersion: *analysisVersion,
		}
	}

	return topic, nil
}

// Business profiles

func (s *Store) SaveProfile(ctx context.Context, userID *uuid.UUID, profile models.BusinessProfile) (string, error) {
	profile.ApplyDefaults()
	payload, err := json.Marshal(profile)
	if err != nil {
		return "", fmt.Errorf("failed to encode profile: %w", err)
	}

	id := profile.CompanyInfo.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO business_profiles (id, user_id, company_name, profile)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			company_name = EXCLUDED.company_name,
			profile = EXCLUDED.profile,
			updated_at = NOW()
	`, id, userID, profile.CompanyInfo.Name, payload)
	if err != nil {
		return "", fmt.Errorf("profile upsert failed: %w", err)
	}
	return id, nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (*models.BusinessProfile, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, "SELECT profile FROM business_profiles WHERE id = $1", id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile lookup failed: %w", err)
	}

	var profile models.BusinessProfile
	if err := json.Unmarshal(payload, &profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	profile.CompanyInfo.ID = id
	profile.ApplyDefaults()
	return &profile, nil
}

// GetProfileForUser returns the most recently updated profile owned by a
// user, or ErrNotFound.
func (s *Store) GetProfileForUser(ctx context.Context, userID uuid.UUID) (*models.BusinessProfile, error) {
	var id string
	var payload []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, profile FROM business_profiles
		WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT 1
	`, userID).Scan(&id, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile lookup failed: %w", err)
	}

	var profile models.BusinessProfile
	if err := json.Unmarshal(payload, &profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	profile.CompanyInfo.ID = id
	profile.ApplyDefaults()
	return &profile, nil
}

// Stats

func (s *Store) GetStats(ctx context.Context) (map[string]any, error) {
	stats := make(map[string]any)

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM topics").Scan(&total); err != nil {
		return nil, fmt.Errorf("stats query failed: %w", err)
	}
	stats["topics"] = total

	var analyzed int
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM topics WHERE analysis IS NOT NULL").Scan(&analyzed)
	stats["analyzed"] = analyzed

	componentCounts := map[string]int{}
	rows, err := s.pool.Query(ctx, "SELECT COALESCE(component, 'UNKNOWN'), COUNT(*) FROM topics GROUP BY component")
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var component string
			var count int
			if scanErr := rows.Scan(&component, &count); scanErr == nil {
				componentCounts[component] = count
			}
		}
	}
	stats["component_counts"] = componentCounts

	var profiles int
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM business_profiles").Scan(&profiles)
	stats["profiles"] = profiles

	return stats, nil
}

func nullable(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
