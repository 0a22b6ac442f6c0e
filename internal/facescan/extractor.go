// Package facescan provides the face detection + embedding extraction
// collaborator. Detection itself runs in an external microservice; this
// package holds the client, a deterministic mock for tests, and a caching
// wrapper. The engine only ever sees the Extractor interface.
package facescan

import "context"

// Extractor turns a raw face image into a fixed-dimension embedding vector.
// Implementations return gateerrors.ErrDetectionFailed (via errors.Is) when
// no usable face is present in the image.
type Extractor interface {
	// Extract returns the embedding of the most prominent face in the image.
	Extract(ctx context.Context, image []byte) ([]float32, error)

	// Dimension returns the embedding dimension this extractor produces.
	Dimension() int
}
