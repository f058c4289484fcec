package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/david/sbir-scout/internal/ai"
	"github.com/david/sbir-scout/internal/analysis"
	"github.com/david/sbir-scout/internal/db"
)

// Re-runs signal extraction over stored topics. Useful after an extraction
// vocabulary change or to backfill topics saved with -no-analyze.
func main() {
	batchSize := flag.Int("batch-size", 200, "Topics per pass")
	all := flag.Bool("all", false, "Reanalyze every topic, not just those missing analysis")
	flag.Parse()

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	store := db.NewStore(pool)

	var extractor analysis.Extractor = analysis.NewRuleBasedExtractor()
	if strings.EqualFold(os.Getenv("ANALYSIS_EXTRACTOR"), "llm") {
		extractor = ai.NewSignalExtractor(ai.NewOllamaClient(os.Getenv("OLLAMA_HOST"), "", os.Getenv("OLLAMA_MODEL")))
	}
	analyzer := analysis.NewAnalyzer(extractor, analysis.NewCache())

	updated := 0
	skipped := 0
	for offset := 0; ; offset += *batchSize {
		page, err := store.ListTopics(ctx, db.TopicListParams{
			Status: "all",
			Limit:  *batchSize,
			Offset: offset,
		})
		if err != nil {
			log.Fatalf("Failed to list topics: %v", err)
		}
		if len(page.Topics) == 0 {
			break
		}

		for _, topic := range page.Topics {
			if !*all && topic.Analysis != nil {
				skipped++
				continue
			}

			enriched, err := analyzer.AnalyzeOpportunity(ctx, topic.Opportunity)
			if err != nil {
				log.Printf("Skipping %s: %v", topic.TopicCode, err)
				continue
			}
			if err := store.UpsertTopic(ctx, enriched, nil); err != nil {
				log.Printf("Upsert failed for %s: %v", topic.TopicCode, err)
				continue
			}
			updated++
		}

		if offset+*batchSize >= page.Total {
			break
		}
	}

	log.Printf("Reanalysis complete. Updated: %d, Skipped: %d", updated, skipped)
}
