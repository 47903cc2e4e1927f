package embeddings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedIsDeterministicAndUnit(t *testing.T) {
	e := NewHashing()

	a := e.Embed("Login page down error 500")
	b := e.Embed("Login page down error 500")

	require.Len(t, a, Dim)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, Cosine(a, b), 1e-9)
}

func TestSimilarTextsScoreHigherThanUnrelated(t *testing.T) {
	e := NewHashing()

	base := e.Embed("login page down error 500")
	similar := e.Embed("login page down error 500 again")
	unrelated := e.Embed("invoice refund subscription billing charge")

	assert.Greater(t, Cosine(base, similar), Cosine(base, unrelated))
	assert.Greater(t, Cosine(base, similar), 0.8)
}

func TestCosineZeroNormGuard(t *testing.T) {
	e := NewHashing()

	empty := e.Embed("")
	some := e.Embed("hello world")

	assert.Equal(t, 0.0, Cosine(empty, some))
	assert.Equal(t, 0.0, Cosine(empty, empty))
}

func TestCosineLengthMismatch(t *testing.T) {
	assert.Equal(t, 0.0, Cosine([]float64{1, 0}, []float64{1, 0, 0}))
}

func TestTokenizationIgnoresCaseAndPunctuation(t *testing.T) {
	e := NewHashing()

	a := e.Embed("Payment FAILED!")
	b := e.Embed("payment failed")
	assert.InDelta(t, 1.0, Cosine(a, b), 1e-9)
}
