// Package imageload drives one image fetch through staged retries, a stall
// watchdog and a single switch to a fallback origin.
package imageload

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config bounds the retry behaviour of one image.
type Config struct {
	MaxRetries      int
	RetryDelayBase  time.Duration
	WatchdogTimeout time.Duration
	// AttemptTimeout bounds one attempt even while bytes keep arriving.
	// Zero disables it.
	AttemptTimeout time.Duration
}

// DefaultConfig returns the settings used for grid images.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      9,
		RetryDelayBase:  250 * time.Millisecond,
		WatchdogTimeout: time.Second,
		AttemptTimeout:  10 * time.Second,
	}
}

// Resolver maps the original URL to an alternate origin, or "" if none.
type Resolver func(originalURL string) string

// EventKind enumerates the inputs of the state machine.
type EventKind int

const (
	EventMount EventKind = iota
	EventLoaded
	EventError
	EventRetryDue
	EventWatchdog
	EventReset
)

func (k EventKind) String() string {
	switch k {
	case EventMount:
		return "mount"
	case EventLoaded:
		return "loaded"
	case EventError:
		return "error"
	case EventRetryDue:
		return "retry-due"
	case EventWatchdog:
		return "watchdog"
	case EventReset:
		return "reset"
	}
	return "unknown"
}

// Event is one input to Transition. URL is only used by EventMount.
type Event struct {
	Kind EventKind
	URL  string
}

// State is the per-image load state.
type State struct {
	OriginalURL  string
	BaseURL      string
	CurrentURL   string
	Attempt      int
	Loaded       bool
	Errored      bool
	UsedFallback bool
	// WaitingRetry is set between an error and the scheduled retry.
	WaitingRetry bool
}

// Terminal reports whether no further event can change the state except
// Mount or Reset.
func (s State) Terminal() bool {
	return s.Loaded || s.Errored
}

// Loading reports whether a fetch of CurrentURL should be in flight.
func (s State) Loading() bool {
	return !s.Terminal() && !s.WaitingRetry && s.CurrentURL != ""
}

// RetryDelay is the wait before the retry following the current attempt.
func (s State) RetryDelay(cfg Config) time.Duration {
	return cfg.RetryDelayBase * time.Duration(s.Attempt+1)
}

func initial(u string) State {
	if u == "" {
		return State{Errored: true}
	}
	return State{OriginalURL: u, BaseURL: u, CurrentURL: u}
}

// Transition is the pure state function of the controller.
func Transition(cfg Config, fallback Resolver, st State, ev Event) State {
	switch ev.Kind {
	case EventMount:
		return initial(ev.URL)
	case EventReset:
		return initial(st.OriginalURL)
	}
	if st.Terminal() {
		return st
	}

	switch ev.Kind {
	case EventLoaded:
		if st.WaitingRetry {
			return st
		}
		st.Loaded = true
		return st

	case EventError, EventWatchdog:
		if st.WaitingRetry {
			return st
		}
		if st.Attempt < cfg.MaxRetries {
			st.WaitingRetry = true
			return st
		}
		if fallback != nil && !st.UsedFallback {
			if alt := fallback(st.OriginalURL); alt != "" && alt != st.BaseURL && alt != st.CurrentURL {
				st.UsedFallback = true
				st.Attempt = 0
				st.BaseURL = alt
				st.CurrentURL = alt
				return st
			}
		}
		st.Errored = true
		return st

	case EventRetryDue:
		if !st.WaitingRetry {
			return st
		}
		st.WaitingRetry = false
		st.Attempt++
		st.CurrentURL = RetryURL(st.BaseURL, st.Attempt)
		return st
	}
	return st
}

var retryParamRegex = regexp.MustCompile(`([?&])retry=\d+(&?)`)

// RetryURL returns base with a retry=n cache-busting marker. Any existing
// marker is replaced, not stacked.
func RetryURL(base string, n int) string {
	clean := retryParamRegex.ReplaceAllStringFunc(base, func(m string) string {
		// A following parameter inherits the separator of the removed one.
		if strings.HasSuffix(m, "&") {
			return m[:1]
		}
		return ""
	})
	marker := "retry=" + strconv.Itoa(n)
	switch {
	case !strings.Contains(clean, "?"):
		return clean + "?" + marker
	case strings.HasSuffix(clean, "?"), strings.HasSuffix(clean, "&"):
		return clean + marker
	default:
		return clean + "&" + marker
	}
}
