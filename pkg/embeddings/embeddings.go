// Package embeddings provides the text-embedding capability consumed by the
// deduplicator. The engine only assumes fixed-length unit vectors compared by
// cosine similarity, so any model can implement Embedder; the shipped
// implementation is a deterministic hashing-trick bag-of-words encoder.
package embeddings

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Dim is the embedding dimensionality produced by the hashing embedder.
const Dim = 256

// Embedder turns text into a fixed-length unit vector.
type Embedder interface {
	Embed(text string) []float64
}

// Hashing is a hashing-trick bag-of-words embedder. Identical texts map to
// identical vectors and near-identical texts to nearby ones, which is the
// only property the dedup window needs.
type Hashing struct{}

// NewHashing creates a hashing embedder.
func NewHashing() *Hashing {
	return &Hashing{}
}

// Embed tokenizes text into lowercase word tokens, hashes each into one of
// Dim buckets with a signed contribution, and L2-normalizes the result.
// The signed hashing keeps unrelated token collisions from accumulating into
// spurious similarity.
func (h *Hashing) Embed(text string) []float64 {
	vec := make([]float64, Dim)

	for _, tok := range tokenize(text) {
		hash := fnv.New64a()
		hash.Write([]byte(tok))
		sum := hash.Sum64()

		bucket := sum % Dim
		sign := 1.0
		if (sum>>32)&1 == 1 {
			sign = -1.0
		}
		vec[bucket] += sign
	}

	return normalize(vec)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(vec []float64) []float64 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// Cosine returns the cosine similarity of two vectors, 0.0 when either has
// zero norm or the lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
