package facescan

import (
	"context"
	"errors"
	"time"

	"github.com/facegate/facegate/internal/gateerrors"
)

// ExtractionRecorder receives the outcome and duration of each extraction.
type ExtractionRecorder interface {
	RecordExtraction(ctx context.Context, outcome string, duration time.Duration)
}

// InstrumentedExtractor wraps an Extractor and records every call.
type InstrumentedExtractor struct {
	inner    Extractor
	recorder ExtractionRecorder
}

// NewInstrumentedExtractor wraps inner. recorder may be nil.
func NewInstrumentedExtractor(inner Extractor, recorder ExtractionRecorder) *InstrumentedExtractor {
	return &InstrumentedExtractor{inner: inner, recorder: recorder}
}

func (e *InstrumentedExtractor) Extract(ctx context.Context, image []byte) ([]float32, error) {
	start := time.Now()

	embedding, err := e.inner.Extract(ctx, image)

	if e.recorder != nil {
		e.recorder.RecordExtraction(ctx, extractionOutcome(err), time.Since(start))
	}

	return embedding, err
}

func (e *InstrumentedExtractor) Dimension() int {
	return e.inner.Dimension()
}

func extractionOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, gateerrors.ErrDetectionFailed):
		return "no_face"
	default:
		return "error"
	}
}
