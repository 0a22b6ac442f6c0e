package handlers

import (
	"fmt"
	"io"
	"net"
	"net/http"
)

// multipartMemoryLimit bounds how much of a multipart body is held in memory;
// larger parts spill to temp files. The overall body size is enforced upstream.
const multipartMemoryLimit = 10 << 20

// readImageFile reads the named multipart file part in full. Returns (nil, nil)
// when the part is absent so callers can decide whether it is required.
func readImageFile(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, nil
		}

		return nil, fmt.Errorf("read %s part: %w", field, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read %s part: %w", field, err)
	}

	return data, nil
}

// optionalFormValue returns a pointer to the form value, or nil when empty.
func optionalFormValue(r *http.Request, field string) *string {
	if v := r.FormValue(field); v != "" {
		return &v
	}

	return nil
}

// clientIP strips the port from RemoteAddr. Returns nil when unparseable.
func clientIP(r *http.Request) *string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if r.RemoteAddr == "" {
			return nil
		}

		return &r.RemoteAddr
	}

	return &host
}

// userAgent returns the User-Agent header, or nil when absent.
func userAgent(r *http.Request) *string {
	if ua := r.Header.Get("User-Agent"); ua != "" {
		return &ua
	}

	return nil
}
