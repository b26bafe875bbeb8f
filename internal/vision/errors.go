package vision

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification.
var (
	// ErrNoAPIKey is returned when no API key is configured.
	ErrNoAPIKey = errors.New("vision: API key not configured")

	// ErrEmptyImage is returned when Classify is given no image bytes.
	ErrEmptyImage = errors.New("vision: empty image")

	// ErrEmptyResponse is returned when the completion has no content.
	ErrEmptyResponse = errors.New("vision: no response content")

	// ErrBadResponse is returned when the completion is not the expected JSON.
	ErrBadResponse = errors.New("vision: malformed response")
)

// APIError is a non-200 reply from the completions endpoint.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("vision: API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("vision: API error %d: %s", e.StatusCode, e.Message)
}

// IsRateLimited reports whether the endpoint answered 429.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}
