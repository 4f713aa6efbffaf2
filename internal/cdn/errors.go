package cdn

import (
	"errors"
	"strconv"
)

// ErrNotConfigured is returned, without any request being sent, when the
// zone id or the API token is missing.
var ErrNotConfigured = errors.New("cdn: zone id or api token not configured")

// APIError is a failure reported by the purge API, either as a non-200
// status or as a success=false payload.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	msg := "cdn: api error"
	if e.Status != 0 {
		msg += " (status " + strconv.Itoa(e.Status) + ")"
	}
	if e.Code != 0 {
		msg += " code " + strconv.Itoa(e.Code)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}
