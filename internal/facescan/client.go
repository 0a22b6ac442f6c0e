package facescan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/facegate/facegate/internal/gateerrors"
	"github.com/facegate/facegate/pkg/embeddings"
)

const defaultTimeout = 30 * time.Second

// HTTPExtractor is an HTTP client for the face-scan microservice, which runs
// the detector and embedding model out of process. The service accepts a raw
// image and responds with the embedding of the most prominent detected face,
// or 422 when no face is found.
type HTTPExtractor struct {
	baseURL    string
	dimension  int
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures the HTTPExtractor.
type Option func(*HTTPExtractor)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *HTTPExtractor) {
		e.httpClient.Timeout = d
	}
}

// WithRateLimit caps extraction calls at n per second (burst 1). Zero or
// negative n leaves the client unlimited.
func WithRateLimit(n float64) Option {
	return func(e *HTTPExtractor) {
		if n > 0 {
			e.limiter = rate.NewLimiter(rate.Limit(n), 1)
		}
	}
}

// NewHTTPExtractor creates a client for the face-scan service at baseURL
// producing embeddings of the given dimension.
func NewHTTPExtractor(baseURL string, dimension int, opts ...Option) *HTTPExtractor {
	e := &HTTPExtractor{
		baseURL:   baseURL,
		dimension: dimension,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// extractResponse is the face-scan service response body.
type extractResponse struct {
	Embedding []float32 `json:"embedding"`
	FaceCount int       `json:"face_count"`
}

// extractError is the face-scan service error body.
type extractError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Extract posts the image to the face-scan service and returns the embedding.
// A 422 response maps to gateerrors.ErrDetectionFailed.
func (e *HTTPExtractor) Extract(ctx context.Context, image []byte) ([]float32, error) {
	if len(image) == 0 {
		return nil, gateerrors.NewValidationError("image", "image is empty")
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	url := e.baseURL + "/v1/extract"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("face-scan request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnprocessableEntity {
		var svcErr extractError
		if err := json.NewDecoder(resp.Body).Decode(&svcErr); err == nil && svcErr.Message != "" {
			return nil, gateerrors.NewDetectionFailedError(svcErr.Message)
		}

		return nil, gateerrors.ErrDetectionFailed
	}

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)

		return nil, fmt.Errorf("face-scan service returned %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode face-scan response: %w", err)
	}

	if err := embeddings.Validate(result.Embedding, e.dimension); err != nil {
		return nil, fmt.Errorf("face-scan returned invalid embedding: %w", err)
	}

	return result.Embedding, nil
}

// Dimension returns the configured embedding dimension.
func (e *HTTPExtractor) Dimension() int {
	return e.dimension
}

// Ensure HTTPExtractor implements Extractor.
var _ Extractor = (*HTTPExtractor)(nil)
