package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/sbir-scout/internal/db"
	"github.com/david/sbir-scout/internal/match"
)

func main() {
	profileID := flag.String("profile", "", "Business profile ID to score against")
	limit := flag.Int("limit", 20, "Max rows to print")
	minScore := flag.Float64("min-score", 0.0, "Hide matches below this score")
	flag.Parse()

	if *profileID == "" {
		log.Fatal("Please provide a profile ID using -profile flag")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	store := db.NewStore(pool)
	profile, err := store.GetProfile(ctx, *profileID)
	if err != nil {
		log.Fatalf("Failed to load profile: %v", err)
	}

	topics, err := store.ListTopics(ctx, db.TopicListParams{
		Status:       "open",
		AnalyzedOnly: true,
		Limit:        500,
	})
	if err != nil {
		log.Fatalf("Failed to list topics: %v", err)
	}

	scorer := match.NewScorer()
	batch := scorer.ScoreOpportunities(ctx, topics.Topics, *profile)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Code", "Title", "Component", "Score", "Tier", "Top Reason"})

	printed := 0
	for _, m := range batch.Matches {
		if m.OverallScore < *minScore {
			continue
		}
		if printed >= *limit {
			break
		}

		title := findTitle(topics, m.TopicCode)
		if len(title) > 48 {
			title = title[:45] + "..."
		}
		reason := ""
		if len(m.Reasoning) > 0 {
			reason = m.Reasoning[0]
		}
		t.AppendRow(table.Row{
			m.TopicCode, title, findComponent(topics, m.TopicCode),
			fmt.Sprintf("%.2f", m.OverallScore), m.Recommendation.Level, reason,
		})
		printed++
	}
	t.Render()

	fmt.Printf("\n%s: evaluated %d, strong %d, recommended %d, conditional %d, weak %d\n",
		strings.TrimSpace(profile.CompanyInfo.Name), batch.Summary.Total,
		batch.Summary.HighlyRecommended, batch.Summary.Recommended,
		batch.Summary.Conditional, batch.Summary.NotRecommended)
}

func findTitle(result *db.TopicListResult, code string) string {
	for _, topic := range result.Topics {
		if topic.TopicCode == code {
			return topic.TopicTitle
		}
	}
	return ""
}

func findComponent(result *db.TopicListResult, code string) string {
	for _, topic := range result.Topics {
		if topic.TopicCode == code {
			return topic.Component
		}
	}
	return ""
}
