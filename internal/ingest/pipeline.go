package ingest

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/david/sbir-scout/internal/ai"
	"github.com/david/sbir-scout/internal/analysis"
	"github.com/david/sbir-scout/internal/db"
	"github.com/david/sbir-scout/internal/models"
)

// Pipeline wires fetching, normalization, enrichment and persistence into one
// run. Embedding and analysis are best effort: a topic that fails either step
// is still saved, minus the enrichment.
type Pipeline struct {
	Store    *db.Store
	Topics   *DoDTopicsFetcher
	Analyzer *analysis.Analyzer
	Embedder ai.Embedder
}

func NewPipeline(store *db.Store, analyzer *analysis.Analyzer, embedder ai.Embedder) *Pipeline {
	return &Pipeline{
		Store:    store,
		Topics:   NewDoDTopicsFetcher(),
		Analyzer: analyzer,
		Embedder: embedder,
	}
}

// RunSource ingests every topic the source's search matches, page by page.
func (p *Pipeline) RunSource(ctx context.Context, src SourceConfig) (IngestionStats, error) {
	var stats IngestionStats

	if src.Strategy != "api_dodsbir" {
		return stats, fmt.Errorf("unknown strategy %q for source %s", src.Strategy, src.ID)
	}

	topics := p.Topics
	if topics == nil {
		topics = NewDoDTopicsFetcher()
	}
	if src.BaseURL != "" {
		topics.BaseURL = src.BaseURL
	}
	if src.Fetch.TimeoutSeconds > 0 {
		topics.Client.Timeout = time.Duration(src.Fetch.TimeoutSeconds) * time.Second
	}

	pageSize := src.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	var attachments Fetcher
	if src.Attachments {
		if src.Fetch.UseColly {
			attachments = CollyFetcherWithConfig(src.Fetch)
		} else {
			attachments = NewRateLimitedFetcher(src.Fetch)
		}
	}

	started := time.Now()
	log.Printf("[ingest] source %s: starting run", src.ID)

	for page := 0; ; page++ {
		if src.MaxPages > 0 && page >= src.MaxPages {
			break
		}

		raws, total, err := topics.FetchTopics(ctx, src.Components, src.Programs, pageSize, page)
		if err != nil {
			if page == 0 {
				return stats, fmt.Errorf("source %s: %w", src.ID, err)
			}
			log.Printf("[ingest] source %s: page %d failed, stopping: %v", src.ID, page, err)
			stats.Errors++
			break
		}
		if page == 0 {
			stats.TotalFound = total
		}
		if len(raws) == 0 {
			break
		}

		for _, raw := range raws {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			if err := p.ingestOne(ctx, raw, attachments, &stats); err != nil {
				log.Printf("[ingest] source %s: topic %s: %v", src.ID, raw.TopicCode, err)
				stats.Errors++
			}
		}

		if (page+1)*pageSize >= total {
			break
		}
	}

	log.Printf("[ingest] source %s: saved %d/%d topics (%d analyzed, %d attachment docs, %d errors) in %s",
		src.ID, stats.TotalSaved, stats.TotalFound, stats.Analyzed, stats.AttachmentsOK, stats.Errors,
		time.Since(started).Round(time.Millisecond))

	return stats, nil
}

func (p *Pipeline) ingestOne(ctx context.Context, raw RawTopic, attachments Fetcher, stats *IngestionStats) error {
	opp := FromRaw(raw)
	if !opp.HasIdentity() {
		return fmt.Errorf("record has no topic identity")
	}

	if attachments != nil {
		stats.AttachmentsOK += AttachReferenceText(ctx, attachments, &opp)
	}

	enriched := models.EnrichedOpportunity{Opportunity: opp}
	if p.Analyzer != nil {
		result, err := p.Analyzer.AnalyzeOpportunity(ctx, opp)
		if err != nil {
			log.Printf("[ingest] analysis skipped for %s: %v", opp.TopicCode, err)
		} else {
			enriched = result
			if enriched.Analysis != nil && enriched.Analysis.Error == "" {
				stats.Analyzed++
			}
		}
	}

	var embedding []float32
	if p.Embedder != nil {
		vec, err := p.Embedder.GenerateEmbedding(ctx, EmbeddingText(opp))
		if err != nil {
			log.Printf("[ingest] embedding skipped for %s: %v", opp.TopicCode, err)
		} else {
			embedding = vec
		}
	}

	if err := p.Store.UpsertTopic(ctx, enriched, embedding); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	stats.TotalSaved++
	return nil
}

// RunAll executes every source in the registry sequentially and merges stats.
// Individual source failures are logged and folded into the error count.
func (p *Pipeline) RunAll(ctx context.Context, reg *Registry) IngestionStats {
	var merged IngestionStats
	for _, src := range reg.Sources {
		stats, err := p.RunSource(ctx, src)
		if err != nil {
			log.Printf("[ingest] source %s failed: %v", src.ID, err)
			merged.Errors++
		}
		merged.TotalFound += stats.TotalFound
		merged.TotalSaved += stats.TotalSaved
		merged.Analyzed += stats.Analyzed
		merged.AttachmentsOK += stats.AttachmentsOK
		merged.Errors += stats.Errors
	}
	return merged
}

// IngestPayload ingests topics posted directly to the admin API, bypassing
// the remote fetch but running the same normalization and enrichment.
func (p *Pipeline) IngestPayload(ctx context.Context, raws []RawTopic) IngestionStats {
	stats := IngestionStats{TotalFound: len(raws)}
	for _, raw := range raws {
		if err := p.ingestOne(ctx, raw, nil, &stats); err != nil {
			log.Printf("[ingest] payload topic %s: %v", strings.TrimSpace(raw.TopicCode), err)
			stats.Errors++
		}
	}
	return stats
}
