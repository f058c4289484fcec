package match

import (
	"fmt"
	"sort"
	"time"

	"github.com/david/sbir-scout/internal/models"
)

// TechnologyTrend counts how many opportunities require a given technology.
type TechnologyTrend struct {
	Technology    string `json:"technology"`
	Opportunities int    `json:"opportunities"`
}

type TechnologyTrends struct {
	TopRequirements []TechnologyTrend `json:"topRequirements"`
	Emerging        []TechnologyTrend `json:"emerging"`
}

type AgencyActivity struct {
	Agency        string `json:"agency"`
	Opportunities int    `json:"opportunities"`
	Percentage    string `json:"percentage"`
}

type CompetitionDistribution struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

type CompetitionAnalysis struct {
	Distribution CompetitionDistribution `json:"distribution"`
}

type DifficultyAnalysis struct {
	Distribution      map[string]int `json:"distribution"`
	AverageDifficulty string         `json:"averageDifficulty"`
}

type InsightsSummary struct {
	TotalOpportunities int       `json:"totalOpportunities"`
	Timeframe          string    `json:"timeframe"`
	AnalysisDate       time.Time `json:"analysisDate"`
}

// MarketInsights is an aggregate view over a set of analyzed opportunities:
// which technologies recur, which agencies are active, and how competition
// and difficulty are distributed.
type MarketInsights struct {
	Summary             InsightsSummary     `json:"summary"`
	TechnologyTrends    TechnologyTrends    `json:"technologyTrends"`
	AgencyActivity      []AgencyActivity    `json:"agencyActivity"`
	CompetitionAnalysis CompetitionAnalysis `json:"competitionAnalysis"`
	DifficultyAnalysis  DifficultyAnalysis  `json:"difficultyAnalysis"`
	Recommendations     []string            `json:"recommendations"`
}

const (
	topTrendLimit       = 10
	emergingMinMentions = 2
	emergingMaxMentions = 5
	fallbackDifficulty  = 5
)

var insightRecommendations = []string{
	"Focus on opportunities with medium competition for best win probability",
	"Consider emerging technology areas for strategic positioning",
	"Target agencies with higher activity levels for more opportunities",
}

// GenerateMarketInsights aggregates enrichment signals across opportunities.
// Output ordering is deterministic: counts descending, names ascending on
// ties. Opportunities without an analysis block contribute agency counts and
// the fallback difficulty but no technology or competition signal.
func GenerateMarketInsights(opps []models.EnrichedOpportunity, timeframe string) MarketInsights {
	if timeframe == "" {
		timeframe = "12months"
	}

	techCounts := map[string]int{}
	agencyCounts := map[string]int{}
	competition := CompetitionDistribution{}
	difficultyBuckets := map[string]int{}
	difficultySum := 0

	for _, opp := range opps {
		agencyCounts[opp.Component]++

		difficulty := fallbackDifficulty
		if opp.Analysis != nil {
			signals := opp.Analysis.Effective()
			for _, tech := range signals.TechnicalRequirements {
				techCounts[tech]++
			}
			switch signals.CompetitionLevel {
			case "low":
				competition.Low++
			case "medium":
				competition.Medium++
			case "high":
				competition.High++
			}
			if signals.DifficultyScore > 0 {
				difficulty = signals.DifficultyScore
			}
		}
		difficultySum += difficulty
		bucket := difficulty / 2 * 2
		difficultyBuckets[fmt.Sprintf("%d-%d", bucket, bucket+2)]++
	}

	trends := sortedTrends(techCounts)
	top := trends
	if len(top) > topTrendLimit {
		top = top[:topTrendLimit]
	}
	var emerging []TechnologyTrend
	for _, tr := range trends {
		if tr.Opportunities >= emergingMinMentions && tr.Opportunities <= emergingMaxMentions {
			emerging = append(emerging, tr)
		}
	}

	activity := make([]AgencyActivity, 0, len(agencyCounts))
	for agency, count := range agencyCounts {
		pct := 0.0
		if len(opps) > 0 {
			pct = float64(count) / float64(len(opps)) * 100
		}
		activity = append(activity, AgencyActivity{
			Agency:        agency,
			Opportunities: count,
			Percentage:    fmt.Sprintf("%.1f", pct),
		})
	}
	sort.Slice(activity, func(i, j int) bool {
		if activity[i].Opportunities != activity[j].Opportunities {
			return activity[i].Opportunities > activity[j].Opportunities
		}
		return activity[i].Agency < activity[j].Agency
	})

	avgDifficulty := "0.0"
	if len(opps) > 0 {
		avgDifficulty = fmt.Sprintf("%.1f", float64(difficultySum)/float64(len(opps)))
	}

	return MarketInsights{
		Summary: InsightsSummary{
			TotalOpportunities: len(opps),
			Timeframe:          timeframe,
			AnalysisDate:       time.Now().UTC(),
		},
		TechnologyTrends: TechnologyTrends{
			TopRequirements: top,
			Emerging:        emerging,
		},
		AgencyActivity: activity,
		CompetitionAnalysis: CompetitionAnalysis{
			Distribution: competition,
		},
		DifficultyAnalysis: DifficultyAnalysis{
			Distribution:      difficultyBuckets,
			AverageDifficulty: avgDifficulty,
		},
		Recommendations: insightRecommendations,
	}
}

func sortedTrends(counts map[string]int) []TechnologyTrend {
	trends := make([]TechnologyTrend, 0, len(counts))
	for tech, count := range counts {
		trends = append(trends, TechnologyTrend{Technology: tech, Opportunities: count})
	}
	sort.Slice(trends, func(i, j int) bool {
		if trends[i].Opportunities != trends[j].Opportunities {
			return trends[i].Opportunities > trends[j].Opportunities
		}
		return trends[i].Technology < trends[j].Technology
	})
	return trends
}
