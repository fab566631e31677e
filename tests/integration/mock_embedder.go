package integration

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sync"
)

// MockEmbedder is a deterministic stand-in for the OpenAI client. Texts with
// a canned vector return it verbatim; everything else gets a unit vector
// derived from the text's hash, so repeated runs see identical distances.
type MockEmbedder struct {
	dimension int
	canned    map[string][]float32

	mu    sync.Mutex
	calls int
}

// NewMockEmbedder creates a mock embedder producing vectors of the given
// dimension.
func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{
		dimension: dimension,
		canned:    make(map[string][]float32),
	}
}

// SetVector pins the vector returned for an exact text, letting tests place
// documents at known distances from a query.
func (m *MockEmbedder) SetVector(text string, vector []float32) {
	m.canned[text] = vector
}

// EmbedTexts returns deterministic vectors in input order.
func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := m.canned[text]; ok {
			out[i] = v
			continue
		}
		out[i] = hashVector(text, m.dimension)
	}
	return out, nil
}

// Model returns the mock model identifier.
func (m *MockEmbedder) Model() string { return "mock-v1" }

// Close is a no-op.
func (m *MockEmbedder) Close() error { return nil }

// Calls reports how many embedding requests were made.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// hashVector derives a unit vector from the text's sha256 hash.
func hashVector(text string, dimension int) []float32 {
	hash := sha256.Sum256([]byte(text))
	vector := make([]float32, dimension)
	for i := 0; i < dimension; i++ {
		idx := (i * 4) % 32
		val := binary.BigEndian.Uint32(hash[idx : idx+4])
		vector[i] = (float32(val)/float32(1<<32))*2 - 1
	}

	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	if sum > 0 {
		inv := float32(1.0 / math.Sqrt(sum))
		for i := range vector {
			vector[i] *= inv
		}
	}
	return vector
}
