package analysis

// The vocabularies below are fixed: signal extraction must be deterministic
// and reproducible for a given text, so entries are ordered slices rather than
// maps and are scanned in declaration order.

// technicalCategory maps a requirement category to the trigger keywords that
// mark it present when found (case-insensitive substring) in the topic text.
type technicalCategory struct {
	Name     string
	Keywords []string
}

var technicalTaxonomy = []technicalCategory{
	{"artificial intelligence", []string{"AI", "machine learning", "deep learning", "neural networks"}},
	{"cybersecurity", []string{"cyber", "security", "encryption", "authentication", "firewall"}},
	{"software development", []string{"software", "application", "programming", "development"}},
	{"data analytics", []string{"data", "analytics", "big data", "visualization", "database"}},
	{"cloud computing", []string{"cloud", "aws", "azure", "distributed computing"}},
	{"hardware", []string{"hardware", "electronics", "sensors", "microprocessor"}},
	{"communications", []string{"communication", "radio", "network", "protocol"}},
	{"simulation", []string{"simulation", "modeling", "virtual", "digital twin"}},
}

// complexityIndicators drive the difficulty score: 3 + one point per matched
// indicator, clamped to 10.
var complexityIndicators = []string{
	"prototype", "research", "novel", "innovative", "breakthrough",
	"advanced", "cutting-edge", "state-of-the-art", "experimental",
}

var budgetKeywords = []string{"million", "budget", "funding", "cost", "price"}

var timelineKeywords = []string{
	"months", "years", "deadline", "milestone", "schedule",
	"delivery", "completion", "duration", "timeline",
}

var riskKeywords = []string{
	"classified", "security clearance", "itar", "export control",
	"proprietary", "intellectual property", "patent", "regulatory",
}

var complianceKeywords = []string{
	"security clearance", "secret", "top secret", "itar",
	"export control", "cmmi", "iso", "certification",
	"compliance", "regulation", "standard",
}

// innovationCategories is the subset of technical categories that count as
// innovation areas. Not every matched category qualifies.
var innovationCategories = map[string]bool{
	"artificial intelligence": true,
	"cybersecurity":           true,
}

// highCompetitionComponent is the agency whose topics are assumed to draw
// heavy competition regardless of text markers.
const highCompetitionComponent = "DARPA"

var highCompetitionMarkers = []string{"commercial", "cots"}
var lowCompetitionMarkers = []string{"niche", "specialized"}
