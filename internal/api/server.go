package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/david/sbir-scout/internal/ai"
	"github.com/david/sbir-scout/internal/analysis"
	"github.com/david/sbir-scout/internal/auth"
	"github.com/david/sbir-scout/internal/db"
	"github.com/david/sbir-scout/internal/ingest"
	"github.com/david/sbir-scout/internal/match"
	"github.com/david/sbir-scout/internal/models"
)

type Server struct {
	Store       *db.Store
	AuthService *auth.Service
	Echo        *echo.Echo
	DB          *pgxpool.Pool
	AI          *ai.OllamaClient
	Analyzer    *analysis.Analyzer
	Scorer      *match.Scorer
	Registry    *ingest.Registry
}

var (
	adminSecretOnce    sync.Once
	adminSecretRuntime string
	adminSecretErr     error
)

func NewServer(pool *pgxpool.Pool) *Server {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// CORS: allow frontend origins from env or default to localhost
	allowedOrigins := []string{"http://localhost:4200"}
	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	ollamaHost := os.Getenv("OLLAMA_HOST")
	if ollamaHost == "" {
		ollamaHost = "http://localhost:11434"
	}
	aiClient := ai.NewOllamaClient(ollamaHost, os.Getenv("OLLAMA_EMBED_MODEL"), os.Getenv("OLLAMA_MODEL"))

	// Rule-based extraction is the default; the LLM extractor is opt-in
	// because it needs a running Ollama instance.
	var extractor analysis.Extractor = analysis.NewRuleBasedExtractor()
	if strings.EqualFold(os.Getenv("ANALYSIS_EXTRACTOR"), "llm") {
		extractor = ai.NewSignalExtractor(aiClient)
	}

	s := &Server{
		DB:          pool,
		Store:       db.NewStore(pool),
		AuthService: auth.NewService(pool),
		Echo:        e,
		AI:          aiClient,
		Analyzer:    analysis.NewAnalyzer(extractor, analysis.NewCache()),
		Scorer:      match.NewScorer(),
	}

	if reg, err := ingest.LoadRegistry(os.Getenv("SOURCES_CONFIG")); err != nil {
		log.Printf("[api] failed to load source registry: %v", err)
	} else {
		s.Registry = reg
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)

	api := s.Echo.Group("/api/v1")

	// Analysis & matching
	api.POST("/analyze", s.handleAnalyzeBatch)
	api.POST("/analyze-single", s.handleAnalyzeSingle)
	api.POST("/match", s.handleMatch)
	api.POST("/market-insights", s.handleMarketInsights)
	api.GET("/analysis-status", s.handleAnalysisStatus)
	api.GET("/recommendations/:profileId", s.handleRecommendations)

	// Stored topics
	api.GET("/topics", s.handleListTopics)
	api.GET("/topics/:code", s.handleGetTopic)
	api.GET("/stats", s.handleGetStats)
	api.GET("/sources", s.handleGetSources)

	// Admin
	admin := api.Group("")
	admin.Use(s.adminMiddleware)
	admin.POST("/ingest/topics", s.handleIngestTopics)
	admin.POST("/ingest/source/:id", s.handleIngestSource)
	admin.POST("/ingest/all", s.handleIngestAll)
	admin.DELETE("/admin/cache", s.handleClearCache)

	// Auth
	api.POST("/auth/signup", s.handleSignup)
	api.POST("/auth/login", s.handleLogin)

	// Protected
	protected := api.Group("")
	protected.Use(auth.Middleware)
	protected.PUT("/profile", s.handleSaveProfile)
	protected.GET("/profile", s.handleGetProfile)
	protected.POST("/saved/:code", s.handleSaveTopic)
	protected.DELETE("/saved/:code", s.handleUnsaveTopic)
	protected.GET("/saved", s.handleGetSavedTopics)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// Analysis handlers

type analyzeBatchRequest struct {
	Opportunities []models.Opportunity `json:"opportunities"`
}

func (s *Server) handleAnalyzeBatch(c echo.Context) error {
	var req analyzeBatchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if len(req.Opportunities) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "opportunities array is required"})
	}

	result := s.Analyzer.AnalyzeOpportunities(c.Request().Context(), req.Opportunities)
	return c.JSON(http.StatusOK, result)
}

type analyzeSingleRequest struct {
	Opportunity models.Opportunity `json:"opportunity"`
}

func (s *Server) handleAnalyzeSingle(c echo.Context) error {
	var req analyzeSingleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	enriched, err := s.Analyzer.AnalyzeOpportunity(c.Request().Context(), req.Opportunity)
	if err != nil {
		if errors.Is(err, analysis.ErrMissingIdentity) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, enriched)
}

type matchRequest struct {
	Opportunities   []models.EnrichedOpportunity `json:"opportunities"`
	BusinessProfile models.BusinessProfile       `json:"businessProfile"`
}

func (s *Server) handleMatch(c echo.Context) error {
	var req matchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if len(req.Opportunities) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "opportunities array is required"})
	}

	req.BusinessProfile.ApplyDefaults()
	result := s.Scorer.ScoreOpportunities(c.Request().Context(), req.Opportunities, req.BusinessProfile)
	return c.JSON(http.StatusOK, result)
}

type insightsRequest struct {
	Opportunities []models.EnrichedOpportunity `json:"opportunities"`
	Timeframe     string                       `json:"timeframe"`
}

func (s *Server) handleMarketInsights(c echo.Context) error {
	var req insightsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if len(req.Opportunities) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "opportunities array is required"})
	}

	insights := match.GenerateMarketInsights(req.Opportunities, req.Timeframe)
	return c.JSON(http.StatusOK, insights)
}

func (s *Server) handleAnalysisStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "operational",
		"services": map[string]string{
			"opportunityAnalyzer": "operational",
			"matchingEngine":      "operational",
		},
		"cacheSize": s.Analyzer.CacheSize(),
		"version":   analysis.AnalysisVersion,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleRecommendations(c echo.Context) error {
	ctx := c.Request().Context()

	profile, err := s.Store.GetProfile(ctx, c.Param("profileId"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Profile not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	limit := 10
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 50 {
		limit = l
	}
	minScore := 0.4
	if v, err := strconv.ParseFloat(c.QueryParam("min_score"), 64); err == nil && v >= 0 && v <= 1 {
		minScore = v
	}

	topics, err := s.Store.ListTopics(ctx, db.TopicListParams{
		Status:       "open",
		AnalyzedOnly: true,
		Limit:        200,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	batch := s.Scorer.ScoreOpportunities(ctx, topics.Topics, *profile)
	matches := make([]match.Result, 0, limit)
	for _, result := range batch.Matches {
		if result.OverallScore < minScore {
			continue
		}
		matches = append(matches, result)
		if len(matches) >= limit {
			break
		}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"profileId":       profile.CompanyInfo.ID,
		"minScore":        minScore,
		"totalEvaluated":  batch.Summary.Total,
		"recommendations": matches,
	})
}

// Topic handlers

func (s *Server) handleListTopics(c echo.Context) error {
	params := db.TopicListParams{
		Query:     c.QueryParam("q"),
		Component: c.QueryParam("component"),
		Program:   c.QueryParam("program"),
		Status:    c.QueryParam("status"),
	}
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		params.Limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o >= 0 {
		params.Offset = o
	}
	if strings.EqualFold(c.QueryParam("analyzed"), "true") {
		params.AnalyzedOnly = true
	}

	if params.Query != "" {
		aiCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		vec, err := s.AI.GenerateEmbedding(aiCtx, params.Query)
		if err != nil {
			// Keyword search still works without the embedding.
			c.Logger().Errorf("query embedding failed: %v", err)
		} else {
			params.QueryEmbedding = vec
		}
	}

	result, err := s.Store.ListTopics(c.Request().Context(), params)
	if err != nil {
		c.Logger().Errorf("failed to list topics: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetTopic(c echo.Context) error {
	topic, err := s.Store.GetTopicByCode(c.Request().Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, topic)
}

func (s *Server) handleGetStats(c echo.Context) error {
	stats, err := s.Store.GetStats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleGetSources(c echo.Context) error {
	if s.Registry == nil {
		return c.JSON(http.StatusOK, []any{})
	}

	type sourceInfo struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		Schedule    string `json:"schedule,omitempty"`
	}
	sources := make([]sourceInfo, 0, len(s.Registry.Sources))
	for _, src := range s.Registry.Sources {
		sources = append(sources, sourceInfo{
			ID:          src.ID,
			Name:        src.Name,
			Description: src.Description,
			Schedule:    src.Schedule,
		})
	}
	return c.JSON(http.StatusOK, sources)
}

// Admin handlers

type ingestTopicsRequest struct {
	Topics []ingest.RawTopic `json:"topics"`
}

func (s *Server) handleIngestTopics(c echo.Context) error {
	var req ingestTopicsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if len(req.Topics) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "topics array is required"})
	}

	pipeline := ingest.NewPipeline(s.Store, s.Analyzer, s.AI)
	stats := pipeline.IngestPayload(c.Request().Context(), req.Topics)

	return c.JSON(http.StatusOK, map[string]any{
		"message": "Ingestion complete",
		"stats":   stats,
	})
}

func (s *Server) handleIngestSource(c echo.Context) error {
	if s.Registry == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Source registry unavailable"})
	}
	src := s.Registry.Source(c.Param("id"))
	if src == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Unknown source"})
	}

	pipeline := ingest.NewPipeline(s.Store, s.Analyzer, s.AI)
	stats, err := pipeline.RunSource(c.Request().Context(), *src)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message": fmt.Sprintf("%s ingestion complete", src.ID),
		"stats":   stats,
	})
}

func (s *Server) handleIngestAll(c echo.Context) error {
	if s.Registry == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Source registry unavailable"})
	}

	pipeline := ingest.NewPipeline(s.Store, s.Analyzer, s.AI)
	stats := pipeline.RunAll(c.Request().Context(), s.Registry)

	return c.JSON(http.StatusOK, map[string]any{
		"message": "All registry sources ingestion complete",
		"stats":   stats,
	})
}

func (s *Server) handleClearCache(c echo.Context) error {
	cleared := s.Analyzer.CacheSize()
	s.Analyzer.ClearCache()
	return c.JSON(http.StatusOK, map[string]any{
		"message": "Analysis cache cleared",
		"cleared": cleared,
	})
}

// Auth handlers

func (s *Server) handleSignup(c echo.Context) error {
	var req auth.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.AuthService.Signup(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.AuthService.Login(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCreds) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, resp)
}

// Protected handlers

func (s *Server) handleSaveProfile(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	var profile models.BusinessProfile
	if err := c.Bind(&profile); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if strings.TrimSpace(profile.CompanyInfo.Name) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "companyInfo.name is required"})
	}

	id, err := s.Store.SaveProfile(c.Request().Context(), &userID, profile)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleGetProfile(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	profile, err := s.Store.GetProfileForUser(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "No profile yet"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, profile)
}

func (s *Server) handleSaveTopic(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Topic code is required"})
	}

	if err := s.AuthService.SaveTopic(c.Request().Context(), userID, code); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save topic"})
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleUnsaveTopic(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	code := strings.TrimSpace(c.Param("code"))
	if err := s.AuthService.UnsaveTopic(c.Request().Context(), userID, code); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to unsave topic"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "unsaved"})
}

func (s *Server) handleGetSavedTopics(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	saved, err := s.AuthService.GetSavedTopics(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch saved topics"})
	}
	if saved == nil {
		saved = []auth.SavedTopic{}
	}
	return c.JSON(http.StatusOK, saved)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret, err := adminSecret()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server admin configuration error"})
		}

		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader == secret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if authHeader[7:] == secret {
				return next(c)
			}
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

func adminSecret() (string, error) {
	adminSecretOnce.Do(func() {
		secret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
		if secret != "" {
			adminSecretRuntime = secret
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			adminSecretErr = fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
			return
		}

		adminSecretRuntime = base64.RawURLEncoding.EncodeToString(buf)
		log.Print("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if adminSecretErr != nil {
		return "", adminSecretErr
	}
	if adminSecretRuntime == "" {
		return "", fmt.Errorf("admin secret unavailable")
	}
	return adminSecretRuntime, nil
}
