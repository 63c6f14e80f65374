package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

const mockDimensions = 1536

// MockClient produces deterministic pseudo-embeddings from a hash of the
// input text. Identical texts embed identically, so similarity paths stay
// testable offline.
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (c *MockClient) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, mockDimensions)
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float32(int64(seed>>11)) / float32(1<<52)
		vec[i] = v
		norm += float64(v) * float64(v)
	}

	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec, nil
}
