package service

import (
	"context"
	"math"
	"strings"

	"github.com/Harshitk-cp/reframe/internal/domain"
)

// DefaultMatchThreshold is the token-overlap score at which two belief
// statements count as the same belief.
const DefaultMatchThreshold = 0.6

// SimilarityFunc scores two texts in [0,1]; higher means more alike. The
// engine only relies on monotonicity, not on any particular metric.
type SimilarityFunc func(a, b string) float64

// TokenSimilarity is Jaccard overlap over normalized tokens.
func TokenSimilarity(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	intersection := 0
	for tok := range ta {
		if tb[tok] {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range strings.Fields(normalizeText(s)) {
		out[tok] = true
	}
	return out
}

func normalizeText(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return b.String()
}

// TokenMatcher matches beliefs by normalized equality or token overlap.
// The zero-cost default; needs no external calls.
type TokenMatcher struct {
	Threshold float64
}

func NewTokenMatcher() *TokenMatcher {
	return &TokenMatcher{Threshold: DefaultMatchThreshold}
}

func (m *TokenMatcher) Match(_ context.Context, a, b string) (bool, error) {
	na, nb := normalizeText(a), normalizeText(b)
	if strings.Join(strings.Fields(na), " ") == strings.Join(strings.Fields(nb), " ") {
		return true, nil
	}
	return TokenSimilarity(a, b) >= m.Threshold, nil
}

// EmbeddingMatcher matches beliefs by cosine similarity of embeddings.
// Installed when an embedding provider is configured.
type EmbeddingMatcher struct {
	client    domain.EmbeddingClient
	threshold float64
}

func NewEmbeddingMatcher(client domain.EmbeddingClient, threshold float64) *EmbeddingMatcher {
	return &EmbeddingMatcher{client: client, threshold: threshold}
}

func (m *EmbeddingMatcher) Match(ctx context.Context, a, b string) (bool, error) {
	va, err := m.client.Embed(ctx, a)
	if err != nil {
		return false, err
	}
	vb, err := m.client.Embed(ctx, b)
	if err != nil {
		return false, err
	}
	return Cosine(va, vb) >= m.threshold, nil
}

// Cosine computes cosine similarity between two vectors.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
