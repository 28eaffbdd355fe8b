// Package search fetches result pages through the cache and retry layers and
// keeps the committed browse state for one session.
package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"go-wallhaven-browser/internal/api"
	"go-wallhaven-browser/internal/cache"
	"go-wallhaven-browser/internal/models"
	"go-wallhaven-browser/internal/retry"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Fetcher performs single-attempt API calls. *api.Client satisfies it.
type Fetcher interface {
	Search(ctx context.Context, filters models.SearchFilters, page int, seed string) (models.PageResult, error)
	Details(ctx context.Context, id string) (*models.Wallpaper, error)
}

// ImageWarmer preloads image URLs after a successful prefetch.
type ImageWarmer interface {
	Warm(ctx context.Context, urls []string)
}

// State is the committed view of the session: the last result that won.
type State struct {
	Filters    models.SearchFilters
	Page       int
	Result     *models.PageResult
	TotalPages int
	Seed       string
	Error      string
	Generation uint64
}

// Service is safe for concurrent use. Foreground fetches are single-flight:
// starting one cancels the previous and only the latest may commit state.
type Service struct {
	fetcher   Fetcher
	cache     *cache.Cache
	maxAge    time.Duration
	attempts  int
	baseDelay time.Duration
	warmer    ImageWarmer

	mu         sync.Mutex
	generation uint64
	cancelPrev context.CancelFunc
	seed       string
	state      State

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithCache supplies the response cache.
func WithCache(c *cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithMaxAge sets the cache freshness window.
func WithMaxAge(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.maxAge = d
		}
	}
}

// WithRetry sets the retry budget for every network call.
func WithRetry(attempts int, baseDelay time.Duration) Option {
	return func(s *Service) {
		if attempts > 0 {
			s.attempts = attempts
		}
		if baseDelay >= 0 {
			s.baseDelay = baseDelay
		}
	}
}

// WithImageWarmer enables image warming after prefetches.
func WithImageWarmer(w ImageWarmer) Option {
	return func(s *Service) { s.warmer = w }
}

// NewService creates a Service around fetcher.
func NewService(fetcher Fetcher, opts ...Option) *Service {
	bgCtx, bgCancel := context.WithCancel(context.Background())
	s := &Service{
		fetcher:   fetcher,
		maxAge:    cache.DefaultMaxAge,
		attempts:  retry.DefaultMaxAttempts,
		baseDelay: retry.DefaultBaseDelay,
		bgCtx:     bgCtx,
		bgCancel:  bgCancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = cache.New()
	}
	return s
}

// FetchPage fetches one page, committing it to State if no newer fetch was
// started meanwhile. A superseded call returns ErrCancelled.
func (s *Service) FetchPage(ctx context.Context, filters models.SearchFilters, page int) (models.PageResult, error) {
	ctx, gen := s.begin(ctx)
	defer s.finish(gen)

	if err := api.ValidateFilters(filters); err != nil {
		s.commitError(gen, err)
		return models.PageResult{}, err
	}
	if page < 1 {
		page = 1
	}

	random := filters.IsRandom()
	key := cache.Key(filters, page)
	if !random {
		if hit, ok := s.cache.Get(key, s.maxAge); ok {
			log.Debugf("[Search] Cache hit for page %d", page)
			if !s.commit(gen, filters, page, hit) {
				return models.PageResult{}, ErrCancelled
			}
			return hit, nil
		}
	}

	seed := ""
	if random && page > 1 {
		seed = s.CurrentSeed()
	}

	result, err := s.fetchWithRetry(ctx, filters, page, seed)
	if err != nil {
		if s.superseded(gen) || ctx.Err() != nil {
			log.Debugf("[Search] Fetch for page %d cancelled", page)
			return models.PageResult{}, ErrCancelled
		}
		s.commitError(gen, err)
		return models.PageResult{}, err
	}

	if !random {
		s.cache.Set(key, result)
	}
	if !s.commit(gen, filters, page, result) {
		log.Debugf("[Search] Discarding stale result for page %d", page)
		return models.PageResult{}, ErrCancelled
	}
	return result, nil
}

func (s *Service) fetchWithRetry(ctx context.Context, filters models.SearchFilters, page int, seed string) (models.PageResult, error) {
	return retry.Do(ctx, s.attempts, s.baseDelay, func(ctx context.Context) (models.PageResult, error) {
		r, err := s.fetcher.Search(ctx, filters, page, seed)
		if err != nil && api.IsPermanent(err) {
			return r, retry.Permanent(err)
		}
		return r, err
	})
}

// begin registers a new foreground fetch and cancels the previous one.
func (s *Service) begin(parent context.Context) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelPrev != nil {
		s.cancelPrev()
	}
	s.generation++
	s.cancelPrev = cancel
	return ctx, s.generation
}

func (s *Service) finish(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.generation && s.cancelPrev != nil {
		s.cancelPrev()
		s.cancelPrev = nil
	}
}

func (s *Service) superseded(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen != s.generation
}

// commit applies a result if gen is still the latest. The remembered seed is
// refreshed by random searches and cleared by any other search.
func (s *Service) commit(gen uint64, filters models.SearchFilters, page int, result models.PageResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return false
	}
	if filters.IsRandom() {
		if result.Seed != "" {
			s.seed = result.Seed
		}
	} else {
		s.seed = ""
	}
	r := result
	s.state = State{
		Filters:    filters,
		Page:       page,
		Result:     &r,
		TotalPages: result.TotalPages(),
		Seed:       s.seed,
		Generation: gen,
	}
	return true
}

func (s *Service) commitError(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return
	}
	s.state.Error = UserMessage(err)
	s.state.Generation = gen
}

// State returns a snapshot of the committed session state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentSeed returns the remembered random seed, if any.
func (s *Service) CurrentSeed() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seed
}

// ClearCache drops every cached page. Called before a fresh top-level search.
func (s *Service) ClearCache() {
	s.cache.Clear()
}

// IsCached reports whether (filters, page) has a fresh cache entry.
func (s *Service) IsCached(filters models.SearchFilters, page int) bool {
	return s.cache.Has(cache.Key(filters, page), s.maxAge)
}

// PrefetchPages fetches the pages adjacent to currentPage in the background.
// It returns immediately, is not cancelled by foreground fetches, and never
// reports errors.
func (s *Service) PrefetchPages(filters models.SearchFilters, currentPage, totalPages int) {
	if api.ValidateFilters(filters) != nil {
		return
	}
	random := filters.IsRandom()
	seed := s.CurrentSeed()
	if random && seed == "" {
		return
	}

	var pages []int
	if currentPage > 1 {
		pages = append(pages, currentPage-1)
	}
	if currentPage < totalPages {
		pages = append(pages, currentPage+1)
	}

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		g, ctx := errgroup.WithContext(s.bgCtx)
		g.SetLimit(2)
		for _, p := range pages {
			if !random && s.IsCached(filters, p) {
				continue
			}
			pageSeed := ""
			if random {
				if p == 1 {
					// A first random page would mint a new seed.
					continue
				}
				pageSeed = seed
			}
			g.Go(func() error {
				result, err := s.fetchWithRetry(ctx, filters, p, pageSeed)
				if err != nil {
					log.WithError(err).Debugf("[Prefetch] Page %d failed", p)
					return nil
				}
				if !random {
					s.cache.Set(cache.Key(filters, p), result)
				}
				log.Debugf("[Prefetch] Page %d ready (%d wallpapers)", p, len(result.Wallpapers))
				s.warm(ctx, result)
				return nil
			})
		}
		_ = g.Wait()
	}()
}

func (s *Service) warm(ctx context.Context, result models.PageResult) {
	if s.warmer == nil || len(result.Wallpapers) == 0 {
		return
	}
	urls := make([]string, 0, len(result.Wallpapers)*2)
	for _, w := range result.Wallpapers {
		if w.ThumbnailURL != "" {
			urls = append(urls, w.ThumbnailURL)
		}
		if w.FullImageURL != "" {
			urls = append(urls, w.FullImageURL)
		}
	}
	s.warmer.Warm(ctx, urls)
}

// FetchEntityDetails fetches the extended record of one wallpaper. Failure is
// reported as (nil, false) since details only enrich the display.
func (s *Service) FetchEntityDetails(ctx context.Context, id string) (*models.Wallpaper, bool) {
	w, err := retry.Do(ctx, s.attempts, s.baseDelay, func(ctx context.Context) (*models.Wallpaper, error) {
		d, err := s.fetcher.Details(ctx, id)
		if err != nil && api.IsPermanent(err) {
			return nil, retry.Permanent(err)
		}
		return d, err
	})
	if err != nil {
		log.WithError(err).Debugf("[Details] Could not load details for %s", id)
		return nil, false
	}
	return w, true
}

// TotalWallpaperCount asks the API how many wallpapers exist across every
// category and purity.
func (s *Service) TotalWallpaperCount(ctx context.Context) (int, error) {
	filters := models.SearchFilters{
		Categories:  models.DefaultCategories(),
		IncludeNsfw: true,
	}
	result, err := s.fetchWithRetry(ctx, filters, 1, "")
	if err != nil {
		return 0, err
	}
	if result.Total == nil {
		return 0, errors.New("total not reported by API")
	}
	return *result.Total, nil
}

// Wait blocks until background prefetches have finished.
func (s *Service) Wait() {
	s.bgWG.Wait()
}

// Close cancels background work and waits for it to stop.
func (s *Service) Close() {
	s.bgCancel()
	s.mu.Lock()
	if s.cancelPrev != nil {
		s.cancelPrev()
	}
	s.mu.Unlock()
	s.bgWG.Wait()
}
