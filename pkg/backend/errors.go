package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// HTTPError is a non-2xx answer from the backend.
type HTTPError struct {
	StatusCode int
	URL        string
	Message    string
}

// Error returns the error message
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}

// Message extracts the backend's own error text from err, falling back to
// err.Error().
func Message(err error) string {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.Message != "" {
		return httpErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func newHTTPError(status int, url string, body []byte) error {
	msg := http.StatusText(status)
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		switch {
		case payload.Error != "":
			msg = payload.Error
		case payload.Message != "":
			msg = payload.Message
		}
	} else if text := strings.TrimSpace(string(body)); text != "" && len(text) < 200 {
		msg = text
	}
	return &HTTPError{StatusCode: status, URL: url, Message: msg}
}
