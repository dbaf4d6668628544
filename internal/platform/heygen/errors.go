package heygen

import (
	"errors"
	"fmt"
)

// ErrMissingImageKey is returned when the upload endpoint responds with 2xx
// but the response body carries no image key. The upload cannot be
// considered successful without it.
var ErrMissingImageKey = errors.New("heygen: upload response missing image key")

// APIError represents a non-2xx response from the provider. StatusCode
// carries the HTTP status so callers can map specific codes (invalid image,
// rate limiting) to user-facing messages.
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("heygen: %s returned status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// AsAPIError extracts an *APIError from err, if present.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
