// Package cache holds search results for a short time so repeated queries
// within a session do not hit the network.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"go-wallhaven-browser/internal/models"

	log "github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"
)

// DefaultMaxAge matches the browser's five minute freshness window.
const DefaultMaxAge = 5 * time.Minute

type entry struct {
	value    models.PageResult
	storedAt time.Time
}

// Cache is a TTL-checked map of serialized query keys to page results.
// Entries are only removed when read after expiry or on Clear.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, used by tests to move time forward.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the stored value if it is younger than maxAge. Expired entries
// are evicted.
func (c *Cache) Get(key string, maxAge time.Duration) (models.PageResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return models.PageResult{}, false
	}
	if c.now().Sub(e.storedAt) >= maxAge {
		delete(c.entries, key)
		log.Debugf("[Cache] Evicted expired entry %s", shortKey(key))
		return models.PageResult{}, false
	}
	return e.value, true
}

// Has reports whether a fresh entry exists without evicting anything.
func (c *Cache) Has(key string, maxAge time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && c.now().Sub(e.storedAt) < maxAge
}

// Set stores value under key, stamped with the current clock.
func (c *Cache) Set(key string, value models.PageResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, storedAt: c.now()}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]entry)
	if n > 0 {
		log.Debugf("[Cache] Cleared %d entries", n)
	}
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// canonicalQuery fixes field order and normalizes values so logically equal
// filter sets serialize identically.
type canonicalQuery struct {
	Categories      string   `json:"c"`
	Color           string   `json:"co"`
	ExactResolution bool     `json:"ex"`
	FileType        string   `json:"ft"`
	IncludeNsfw     bool     `json:"n"`
	Page            int      `json:"p"`
	Query           string   `json:"q"`
	Ratios          []string `json:"r"`
	Resolution      string   `json:"res"`
	Sorting         string   `json:"s"`
	TopRange        string   `json:"t"`
}

// Key returns the deterministic cache key for a (filters, page) pair.
func Key(f models.SearchFilters, page int) string {
	q := canonicalQuery{
		Categories:      f.Categories.Bits(),
		Color:           strings.ToLower(strings.TrimPrefix(strings.TrimSpace(f.Color), "#")),
		ExactResolution: f.ExactResolution && f.Resolution != "",
		FileType:        strings.ToLower(strings.TrimSpace(f.FileType)),
		IncludeNsfw:     f.IncludeNsfw,
		Page:            page,
		Query:           strings.TrimSpace(f.Query),
		Resolution:      strings.TrimSpace(f.Resolution),
		Sorting:         f.Sorting,
	}
	if f.Sorting == models.SortToplist {
		q.TopRange = f.TopRange
	}
	for _, r := range strings.Split(f.Ratio, ",") {
		if r = strings.TrimSpace(r); r != "" {
			q.Ratios = append(q.Ratios, r)
		}
	}
	sort.Strings(q.Ratios)

	// Marshal of a flat struct of strings/bools/ints cannot fail.
	raw, _ := json.Marshal(q)
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:16])
}

func shortKey(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}
