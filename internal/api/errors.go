package api

import (
	"errors"
)

// Error kinds returned by the client. Callers branch on them with errors.Is.
var (
	ErrRateLimited       = errors.New("API rate limit exceeded")
	ErrUnauthorized      = errors.New("API request unauthorized (check API key)")
	ErrPageUnavailable   = errors.New("API page unavailable")
	ErrMalformedResponse = errors.New("malformed API response")
	ErrValidation        = errors.New("invalid search filters")
	ErrNotFound          = errors.New("API resource not found")
	ErrHTTPStatus        = errors.New("unexpected API status")
)

// IsPermanent reports whether retrying err cannot help.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrValidation)
}
