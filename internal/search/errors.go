package search

import (
	"errors"

	"go-wallhaven-browser/internal/api"
)

// ErrCancelled is returned for a fetch that was superseded by a newer one or
// whose context was cancelled. It is never shown to the user.
var ErrCancelled = errors.New("search cancelled")

// UserMessage maps an error to the banner text shown for the search action.
// Cancellation maps to the empty string.
func UserMessage(err error) string {
	switch {
	case err == nil, errors.Is(err, ErrCancelled):
		return ""
	case errors.Is(err, api.ErrRateLimited):
		return "Rate limit exceeded. Please wait a moment before searching again."
	case errors.Is(err, api.ErrUnauthorized):
		return "Invalid API key. Check your API key configuration."
	case errors.Is(err, api.ErrPageUnavailable):
		return "This page is temporarily unavailable. Try navigating page by page or narrowing your filters."
	case errors.Is(err, api.ErrMalformedResponse):
		return "The server returned an unexpected response. Please try again."
	case errors.Is(err, api.ErrValidation):
		return err.Error()
	default:
		return "Failed to fetch wallpapers: " + err.Error()
	}
}
