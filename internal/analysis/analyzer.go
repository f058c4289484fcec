package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/david/sbir-scout/internal/models"
)

// AnalysisVersion tags enrichment metadata so stored analyses can be
// recomputed when the schema changes.
const AnalysisVersion = "1.0.0"

var ErrMissingIdentity = errors.New("opportunity is missing topicId and topicCode")

// Analyzer orchestrates single and batch enrichment. Results are cached by
// opportunity identity; extraction failures degrade to a fallback signal set
// and are never cached, so a later retry can succeed.
type Analyzer struct {
	extractor Extractor
	cache     *Cache
	now       func() time.Time
}

// NewAnalyzer builds an analyzer around the given extraction strategy and
// cache. Nil arguments fall back to the rule-based extractor and a fresh
// cache.
func NewAnalyzer(extractor Extractor, cache *Cache) *Analyzer {
	if extractor == nil {
		extractor = NewRuleBasedExtractor()
	}
	if cache == nil {
		cache = NewCache()
	}
	return &Analyzer{extractor: extractor, cache: cache, now: time.Now}
}

// AnalyzeOpportunity enriches a single opportunity, serving the cached value
// when one exists for its identity. An extractor failure returns the original
// opportunity carrying Analysis.Error plus fallback signals rather than an
// error; only invalid input (no identity) fails outright.
func (a *Analyzer) AnalyzeOpportunity(ctx context.Context, opp models.Opportunity) (models.EnrichedOpportunity, error) {
	if !opp.HasIdentity() {
		return models.EnrichedOpportunity{}, ErrMissingIdentity
	}

	key := opp.CacheKey()
	if cached, ok := a.cache.Get(key); ok {
		return cached, nil
	}

	fullText := ExtractAnalysisText(opp)
	signals, err := a.extractor.Extract(ctx, fullText, opp)
	if err != nil {
		log.Printf("[analysis] extraction failed for %s: %v", opp.TopicCode, err)
		fallback := FallbackSignals()
		return models.EnrichedOpportunity{
			Opportunity: opp,
			Analysis: &models.Analysis{
				Error:        err.Error(),
				FallbackData: &fallback,
			},
		}, nil
	}

	enriched := models.EnrichedOpportunity{
		Opportunity: opp,
		Analysis:    &models.Analysis{Signals: signals},
		Metadata: &models.EnrichmentMetadata{
			AnalyzedAt:      a.now().UTC(),
			AnalysisVersion: AnalysisVersion,
		},
	}
	a.cache.Set(key, enriched)
	return enriched, nil
}

// BatchAnalysisResult reports the outcome of a batch run. Successful includes
// degraded results that carry Analysis.Error; Failed holds per-item failure
// messages for items that could not produce a result at all.
type BatchAnalysisResult struct {
	Successful []models.EnrichedOpportunity `json:"successful"`
	Failed     []string                     `json:"failed"`
	Summary    BatchAnalysisSummary         `json:"summary"`
}

type BatchAnalysisSummary struct {
	Total    int `json:"total"`
	Analyzed int `json:"analyzed"`
	Errors   int `json:"errors"`
}

// AnalyzeOpportunities runs AnalyzeOpportunity over every item concurrently.
// One item's failure never aborts its siblings; a panic in a single item is
// recovered and recorded in Failed.
func (a *Analyzer) AnalyzeOpportunities(ctx context.Context, opps []models.Opportunity) BatchAnalysisResult {
	type outcome struct {
		enriched models.EnrichedOpportunity
		err      error
	}

	outcomes := make([]outcome, len(opps))
	var wg sync.WaitGroup
	for i, opp := range opps {
		wg.Add(1)
		go func(i int, opp models.Opportunity) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = outcome{err: fmt.Errorf("analysis panic for %s: %v", opp.CacheKey(), r)}
				}
			}()
			enriched, err := a.AnalyzeOpportunity(ctx, opp)
			outcomes[i] = outcome{enriched: enriched, err: err}
		}(i, opp)
	}
	wg.Wait()

	result := BatchAnalysisResult{
		Successful: make([]models.EnrichedOpportunity, 0, len(opps)),
		Failed:     []string{},
	}
	for _, out := range outcomes {
		if out.err != nil {
			result.Failed = append(result.Failed, out.err.Error())
			continue
		}
		result.Successful = append(result.Successful, out.enriched)
	}
	result.Summary = BatchAnalysisSummary{
		Total:    len(opps),
		Analyzed: len(result.Successful),
		Errors:   len(result.Failed),
	}
	return result
}

// CacheSize exposes the number of cached enrichments for status surfaces.
func (a *Analyzer) CacheSize() int {
	return a.cache.Len()
}

// ClearCache drops every cached enrichment; subsequent analyses recompute
// from scratch.
func (a *Analyzer) ClearCache() {
	a.cache.Clear()
}
