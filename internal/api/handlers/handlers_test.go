package handlers

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/facegate/facegate/internal/api/middleware"
	"github.com/facegate/facegate/internal/models"
)

var handlerTestThresholds = models.Thresholds{Confidence: 0.18, Fallback: 0.25}

// multipartRequest builds a POST request with the given form fields and an
// optional "image" file part.
func multipartRequest(t *testing.T, url string, fields map[string]string, image []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}

	if image != nil {
		part, err := writer.CreateFormFile("image", "capture.jpg")
		require.NoError(t, err)

		_, err = io.Copy(part, bytes.NewReader(image))
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, url, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return req
}

// serveSystemScoped runs the handler under the system-scope middleware so
// ScopeFrom resolves inside it.
func serveSystemScoped(handler http.HandlerFunc, rec *httptest.ResponseRecorder, req *http.Request) {
	middleware.SystemScope(handlerTestThresholds)(handler).ServeHTTP(rec, req)
}
