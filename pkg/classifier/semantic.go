package classifier

import (
	"strings"

	"github.com/nabusboi/smart-support-routing/pkg/embeddings"
	"github.com/nabusboi/smart-support-routing/pkg/models"
)

// Semantic is the primary classifier. It embeds the ticket text and compares
// it against a prototype vector per category; the closest prototype above the
// floor wins. Urgency still comes from the tier table, which outperforms
// embedding distance on short urgency markers like "asap".
type Semantic struct {
	embedder   embeddings.Embedder
	prototypes map[string][]float64

	// floor is the minimum similarity for a category match; below it the
	// ticket is General. It sits above the noise a single hash-bucket
	// collision can produce between short texts.
	floor float64
}

// NewSemantic builds the semantic classifier, deriving category prototypes
// from the keyword vocabulary.
func NewSemantic(embedder embeddings.Embedder) *Semantic {
	prototypes := make(map[string][]float64, len(categoryKeywords))
	for category, keywords := range categoryKeywords {
		prototypes[category] = embedder.Embed(strings.Join(keywords, " "))
	}
	return &Semantic{
		embedder:   embedder,
		prototypes: prototypes,
		floor:      0.2,
	}
}

// Classify picks the category whose prototype is nearest to the ticket text.
func (s *Semantic) Classify(subject, description string) (Classification, error) {
	text := strings.ToLower(subject + " " + description)
	vec := s.embedder.Embed(text)

	best := models.CategoryGeneral
	bestSim := s.floor
	for _, category := range models.Categories() {
		proto, ok := s.prototypes[category]
		if !ok {
			continue
		}
		if sim := embeddings.Cosine(vec, proto); sim > bestSim {
			best = category
			bestSim = sim
		}
	}

	return Classification{
		Category: best,
		Urgency:  scoreUrgency(text),
		Model:    ModelPrimary,
	}, nil
}
