package presta

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// maxErrorBody bounds the response text kept inside an HTTPStatusError.
const maxErrorBody = 500

// NetworkError is a transport failure: DNS, connect, TLS, timeout.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("store unreachable (%s): %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPStatusError is a non-2xx answer. Body is already sanitised.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("store responded with HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("store responded with HTTP %d: %s", e.StatusCode, e.Body)
}

// MalformedResponseError is a 2xx answer that is not the expected JSON.
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed store response: %s: %v", e.Reason, e.Err)
	}
	return "malformed store response: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// APIError is a well-formed refusal from the module ({"success": false, ...}).
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return "store refused the request: " + e.Message
}

// IsNotFound reports whether err is an HTTP 404 from the store.
func IsNotFound(err error) bool {
	var statusErr *HTTPStatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

// IsCleanFailure reports whether the store answered and said no, as opposed
// to being unreachable or answering garbage.
func IsCleanFailure(err error) bool {
	var statusErr *HTTPStatusError
	var apiErr *APIError
	return errors.As(err, &statusErr) || errors.As(err, &apiErr)
}

func newHTTPStatusError(status int, contentType string, body []byte) *HTTPStatusError {
	return &HTTPStatusError{
		StatusCode: status,
		Body:       sanitizeBody(status, contentType, body),
	}
}

// sanitizeBody keeps error pages out of logs and the UI.
func sanitizeBody(status int, contentType string, body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return ""
	}
	if looksLikeHTML(contentType, text) {
		return fmt.Sprintf("the store returned an HTML error page (HTTP %d)", status)
	}
	if utf8.RuneCountInString(text) > maxErrorBody {
		runes := []rune(text)
		text = string(runes[:maxErrorBody]) + "…"
	}
	return text
}

func looksLikeHTML(contentType, text string) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	head := strings.ToLower(text)
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.HasPrefix(head, "<!doctype") ||
		strings.HasPrefix(head, "<html") ||
		strings.Contains(head, "<body") ||
		strings.Contains(head, "<head")
}
