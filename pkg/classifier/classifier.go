// Package classifier assigns a category and an urgency score to incoming
// tickets. The primary model runs behind a circuit breaker with a keyword
// classifier as deterministic fallback, so classification always succeeds.
package classifier

import (
	"regexp"
	"strings"

	"github.com/nabusboi/smart-support-routing/pkg/models"
)

// Model identifiers reported in classification results.
const (
	ModelPrimary         = "primary"
	ModelKeyword         = "keyword"
	ModelKeywordFallback = "keyword_fallback"
)

// Classification is the outcome of classifying one ticket.
type Classification struct {
	Category string  `json:"category"`
	Urgency  float64 `json:"urgency"`
	Model    string  `json:"model"`
}

// Classifier assigns a category and urgency to ticket text.
type Classifier interface {
	Classify(subject, description string) (Classification, error)
}

// categoryKeywords maps each category to its trigger words.
var categoryKeywords = map[string][]string{
	models.CategoryBilling:   {"invoice", "payment", "bill", "charge", "refund", "subscription"},
	models.CategoryTechnical: {"error", "bug", "crash", "broken", "api", "server", "down", "login"},
	models.CategoryLegal:     {"legal", "compliance", "gdpr", "privacy", "contract", "lawsuit"},
}

// urgencyTiers are checked in order; the first match wins.
var urgencyTiers = []struct {
	re    *regexp.Regexp
	score float64
}{
	{regexp.MustCompile(`\b(urgent|asap|emergency|critical)\b`), 1.0},
	{regexp.MustCompile(`\b(broken|down|crash|not working)\b`), 0.9},
	{regexp.MustCompile(`\b(soon|quick|priority|high)\b`), 0.7},
	{regexp.MustCompile(`\b(whenever|low priority)\b`), 0.3},
	{regexp.MustCompile(`\bfyi\b`), 0.1},
}

const defaultUrgency = 0.5

// scoreUrgency returns the urgency tier matched by text, defaulting to 0.5.
func scoreUrgency(text string) float64 {
	for _, tier := range urgencyTiers {
		if tier.re.MatchString(text) {
			return tier.score
		}
	}
	return defaultUrgency
}

// Keyword is the deterministic rule-based classifier. Category is decided by
// keyword hit counts with ties broken in the stable category order; urgency
// comes from the tier table.
type Keyword struct{}

// NewKeyword creates the keyword classifier.
func NewKeyword() *Keyword {
	return &Keyword{}
}

// Classify never fails; the keyword classifier is the fallback of last resort.
func (k *Keyword) Classify(subject, description string) (Classification, error) {
	text := strings.ToLower(subject + " " + description)

	counts := make(map[string]int)
	for category, keywords := range categoryKeywords {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				counts[category]++
			}
		}
	}

	best := models.CategoryGeneral
	bestCount := 0
	for _, category := range models.Categories() {
		if counts[category] > bestCount {
			best = category
			bestCount = counts[category]
		}
	}

	return Classification{
		Category: best,
		Urgency:  scoreUrgency(text),
		Model:    ModelKeyword,
	}, nil
}
