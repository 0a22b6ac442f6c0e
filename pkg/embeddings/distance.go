package embeddings

import "math"

// MaxDistance is the cosine distance between opposite vectors, and the value
// returned for inputs that cannot be compared (mismatched dimensions, zero
// vectors).
const MaxDistance = 2.0

// Distance computes the cosine distance between two vectors.
// Returns a value between 0 (identical direction) and 2 (opposite):
// distance = 1 - cosine similarity. Pure, deterministic and symmetric.
// Zero-norm inputs produce MaxDistance rather than a division error.
func Distance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return MaxDistance
	}

	var dotProduct, normA, normB float64

	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return MaxDistance
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))

	// Clamp to [-1, 1] to absorb floating point drift.
	if similarity > 1 {
		similarity = 1
	}

	if similarity < -1 {
		similarity = -1
	}

	return 1 - similarity
}
