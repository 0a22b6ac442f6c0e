package facescan

import (
	"bytes"
	"context"
	"crypto/sha256"

	"github.com/facegate/facegate/internal/gateerrors"
	"github.com/facegate/facegate/pkg/embeddings"
)

// noFaceMarker makes the mock report a detection failure; tests prefix an
// image payload with it to exercise the DetectionFailed path.
var noFaceMarker = []byte("noface:")

// MockExtractor implements Extractor for tests. It derives a deterministic
// unit-length embedding from the image hash, so identical images always
// produce identical embeddings and distinct images land far apart.
type MockExtractor struct {
	dimension int
}

// NewMockExtractor creates a mock extractor with the default 1536 dimensions.
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{dimension: 1536}
}

// NewMockExtractorWithDimension creates a mock extractor with custom dimensions.
func NewMockExtractorWithDimension(dimension int) *MockExtractor {
	return &MockExtractor{dimension: dimension}
}

// Extract returns a deterministic embedding derived from the image bytes.
// Empty images and images carrying the no-face marker fail detection.
func (m *MockExtractor) Extract(_ context.Context, image []byte) ([]float32, error) {
	if len(image) == 0 || bytes.HasPrefix(image, noFaceMarker) {
		return nil, gateerrors.ErrDetectionFailed
	}

	hash := sha256.Sum256(image)
	embedding := make([]float32, m.dimension)

	for i := 0; i < m.dimension; i++ {
		byteIdx := i % len(hash)
		// Map hash bytes to [-1, 1].
		embedding[i] = (float32(hash[byteIdx]) / 127.5) - 1.0
	}

	embeddings.NormalizeL2(embedding)

	return embedding, nil
}

// Dimension returns the configured embedding dimension.
func (m *MockExtractor) Dimension() int {
	return m.dimension
}

// Ensure MockExtractor implements Extractor.
var _ Extractor = (*MockExtractor)(nil)
