package middleware

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/facegate/facegate/internal/api/response"
)

// errRequestBodyTooLarge is the message http.MaxBytesReader produces when the
// limit is exceeded.
const errRequestBodyTooLarge = "http: request body too large"

// mayHaveBody reports whether the method carries an upload. Only those
// responses are buffered so an oversized capture can be turned into a 413.
func mayHaveBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}

// RequestBodyTooLargeRecorder counts rejected oversized uploads. Nil disables
// recording.
type RequestBodyTooLargeRecorder interface {
	RecordRequestBodyTooLarge(ctx context.Context)
}

// MaxBody caps the request body at maxBytes. Image captures are the only
// large payloads this service accepts, so the cap comes from MAX_IMAGE_BYTES.
// An exceeded limit yields 413 regardless of what the handler wrote.
// Zero or negative disables the cap.
func MaxBody(maxBytes int64, recorder RequestBodyTooLargeRecorder) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// The multipart reader inside the handler hits the limit mid-read;
			// track that so the buffered response can be replaced with a 413.
			limited := http.MaxBytesReader(w, r.Body, maxBytes)

			var limitExceeded bool

			r.Body = &limitTrackingReader{
				ReadCloser: limited,
				onReadError: func(err error) {
					if err != nil && strings.Contains(err.Error(), errRequestBodyTooLarge) {
						limitExceeded = true
					}
				},
			}

			// GET and DELETE stream directly; buffering them buys nothing.
			if mayHaveBody(r.Method) {
				buf := &responseBuffer{ResponseWriter: w}
				next.ServeHTTP(buf, r)

				if limitExceeded {
					if recorder != nil {
						recorder.RecordRequestBodyTooLarge(r.Context())
					}

					response.RespondError(buf.ResponseWriter, http.StatusRequestEntityTooLarge,
						"Request Entity Too Large", "image upload exceeds the configured size limit")

					return
				}

				buf.flush()

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type limitTrackingReader struct {
	io.ReadCloser

	onReadError func(error)
}

// Read passes errors through unchanged. io.EOF in particular must reach the
// caller unwrapped or body consumers stop recognizing the end of stream.
func (r *limitTrackingReader) Read(p []byte) (n int, err error) {
	n, err = r.ReadCloser.Read(p)
	if err != nil && r.onReadError != nil {
		r.onReadError(err)
	}

	return n, err
}

// responseBuffer holds back status and body until the request body has been
// fully consumed, so a late limit violation can still become a 413.
type responseBuffer struct {
	http.ResponseWriter

	status int
	buf    bytes.Buffer
}

func (b *responseBuffer) WriteHeader(code int) {
	b.status = code
}

func (b *responseBuffer) Write(p []byte) (n int, err error) {
	n, err = b.buf.Write(p)
	if err != nil {
		return n, fmt.Errorf("buffer write: %w", err)
	}

	return n, nil
}

func (b *responseBuffer) flush() {
	if b.status != 0 {
		b.ResponseWriter.WriteHeader(b.status)
	}

	_, _ = b.buf.WriteTo(b.ResponseWriter)
}
