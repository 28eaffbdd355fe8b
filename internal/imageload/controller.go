package imageload

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrImageLoad is returned when an image exhausts its retries on every origin.
var ErrImageLoad = errors.New("image failed to load")

var errStalled = errors.New("load stalled")

// Loader fetches one URL. progress is called whenever bytes arrive so the
// controller can re-arm its watchdog.
type Loader interface {
	Load(ctx context.Context, url string, progress func(n int)) ([]byte, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, url string, progress func(n int)) ([]byte, error)

func (f LoaderFunc) Load(ctx context.Context, url string, progress func(n int)) ([]byte, error) {
	return f(ctx, url, progress)
}

// Result is the outcome of Controller.Run.
type Result struct {
	State State
	Data  []byte
}

// Controller turns elapsed time and loader outcomes into events for
// Transition. It never retries on its own beyond what the state allows.
type Controller struct {
	cfg      Config
	loader   Loader
	fallback Resolver
	after    func(time.Duration) <-chan time.Time

	// OnTransition, if set, sees every state change.
	OnTransition func(ev Event, st State)
}

// Option configures a Controller.
type Option func(*Controller)

// WithAfter replaces time.After, mostly for tests.
func WithAfter(after func(time.Duration) <-chan time.Time) Option {
	return func(c *Controller) { c.after = after }
}

// WithFallback sets the alternate origin resolver.
func WithFallback(r Resolver) Option {
	return func(c *Controller) { c.fallback = r }
}

// NewController builds a controller around loader.
func NewController(cfg Config, loader Loader, opts ...Option) *Controller {
	c := &Controller{cfg: cfg, loader: loader, after: time.After}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) apply(st State, ev Event) State {
	next := Transition(c.cfg, c.fallback, st, ev)
	if c.OnTransition != nil {
		c.OnTransition(ev, next)
	}
	if next.UsedFallback && !st.UsedFallback {
		log.Debugf("[ImageLoad] Switching %s to fallback origin %s", st.OriginalURL, next.BaseURL)
	}
	return next
}

type loadOutcome struct {
	data []byte
	err  error
}

// Run loads url until it succeeds or every attempt on every origin failed.
// Cancelling ctx aborts immediately and returns ctx.Err().
func (c *Controller) Run(ctx context.Context, url string) (Result, error) {
	st := c.apply(State{}, Event{Kind: EventMount, URL: url})
	var (
		data    []byte
		lastErr error
	)

	for !st.Terminal() {
		if st.WaitingRetry {
			delay := st.RetryDelay(c.cfg)
			log.Debugf("[ImageLoad] Attempt %d for %s failed (%v), retrying in %v", st.Attempt+1, st.CurrentURL, lastErr, delay)
			select {
			case <-ctx.Done():
				return Result{State: st}, ctx.Err()
			case <-c.after(delay):
			}
			st = c.apply(st, Event{Kind: EventRetryDue})
			continue
		}

		outcome, kind, err := c.attempt(ctx, st.CurrentURL)
		if err != nil {
			return Result{State: st}, err
		}
		if kind == EventLoaded {
			data = outcome.data
		} else {
			lastErr = outcome.err
		}
		st = c.apply(st, Event{Kind: kind})
	}

	if st.Errored {
		return Result{State: st}, fmt.Errorf("%w: %s: %v", ErrImageLoad, url, lastErr)
	}
	return Result{State: st, Data: data}, nil
}

// attempt runs one load guarded by the stall watchdog.
func (c *Controller) attempt(ctx context.Context, url string) (loadOutcome, EventKind, error) {
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan loadOutcome, 1)
	progress := make(chan struct{}, 1)
	go func() {
		data, err := c.loader.Load(attemptCtx, url, func(int) {
			select {
			case progress <- struct{}{}:
			default:
			}
		})
		done <- loadOutcome{data: data, err: err}
	}()

	var watchdog, limit <-chan time.Time
	if c.cfg.WatchdogTimeout > 0 {
		watchdog = c.after(c.cfg.WatchdogTimeout)
	}
	if c.cfg.AttemptTimeout > 0 {
		limit = c.after(c.cfg.AttemptTimeout)
	}
	for {
		select {
		case <-ctx.Done():
			return loadOutcome{}, 0, ctx.Err()
		case out := <-done:
			if out.err != nil {
				return out, EventError, nil
			}
			return out, EventLoaded, nil
		case <-progress:
			if c.cfg.WatchdogTimeout > 0 {
				watchdog = c.after(c.cfg.WatchdogTimeout)
			}
		case <-watchdog:
			return loadOutcome{err: errStalled}, EventWatchdog, nil
		case <-limit:
			log.Debugf("[ImageLoad] %s still loading after %s, giving up on this attempt", url, c.cfg.AttemptTimeout)
			return loadOutcome{err: errStalled}, EventWatchdog, nil
		}
	}
}
