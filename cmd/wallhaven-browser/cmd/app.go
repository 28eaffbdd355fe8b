package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go-wallhaven-browser/internal/api"
	"go-wallhaven-browser/internal/cache"
	"go-wallhaven-browser/internal/config"
	"go-wallhaven-browser/internal/database"
	"go-wallhaven-browser/internal/downloader"
	"go-wallhaven-browser/internal/imageload"
	"go-wallhaven-browser/internal/models"
	"go-wallhaven-browser/internal/origin"
	"go-wallhaven-browser/internal/search"

	log "github.com/sirupsen/logrus"
)

// app bundles what most commands need: the state store and HTTP plumbing.
type app struct {
	cfg      models.Config
	db       *database.DB
	rewriter origin.Rewriter
}

// openApp opens the state database at the configured path.
func openApp(cfg models.Config) (*app, error) {
	if cfg.DatabasePath == "" {
		return nil, fmt.Errorf("DatabasePath is empty after configuration initialization")
	}
	log.Debugf("Opening database at: %s", cfg.DatabasePath)
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &app{
		cfg: cfg,
		db:  db,
		rewriter: origin.Rewriter{
			ImageProxyBase:    cfg.Proxy.ImageProxyBase,
			ThumbProxyBase:    cfg.Proxy.ThumbProxyBase,
			FallbackImageHost: cfg.Proxy.FallbackImageHost,
		},
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		log.WithError(err).Warn("Error closing database")
	}
}

// apiKey resolves the effective key: flag, then env/config, then the stored key.
func (a *app) apiKey() string {
	if a.cfg.APIKey != "" {
		return a.cfg.APIKey
	}
	stored, err := a.db.APIKey()
	if err != nil {
		log.WithError(err).Debug("No stored API key")
		return ""
	}
	return stored
}

func (a *app) transport() http.RoundTripper {
	if globalHttpTransport == nil {
		log.Debug("Global HTTP transport not initialized, using default transport.")
		return http.DefaultTransport
	}
	return globalHttpTransport
}

// apiClient creates the rate-limited API client.
func (a *app) apiClient() *api.Client {
	timeout := time.Duration(a.cfg.APIClientTimeoutSec) * time.Second
	httpClient := &http.Client{Timeout: timeout, Transport: a.transport()}
	return api.NewClient(a.apiKey(), httpClient, a.cfg)
}

// fileDownloader returns the downloader for full-size images.
func (a *app) fileDownloader() *downloader.Downloader {
	return downloader.NewDownloader(&http.Client{Timeout: 15 * time.Minute, Transport: a.transport()})
}

// imageLoader returns the loader used by the image controller.
func (a *app) imageLoader() *imageload.HTTPLoader {
	return imageload.NewHTTPLoader(&http.Client{Transport: a.transport()})
}

// searchService wires client, cache, retries and optional image warming.
func (a *app) searchService(warm bool) *search.Service {
	opts := []search.Option{
		search.WithCache(cache.New()),
		search.WithRetry(a.cfg.MaxRetries, time.Duration(a.cfg.InitialRetryDelayMs)*time.Millisecond),
	}
	if a.cfg.CacheTTLSec > 0 {
		opts = append(opts, search.WithMaxAge(time.Duration(a.cfg.CacheTTLSec)*time.Second))
	}
	if warm {
		opts = append(opts, search.WithImageWarmer(&imageload.Warmer{
			Config:      config.ImageLoadConfig(a.cfg),
			Loader:      a.imageLoader(),
			Fallback:    a.rewriter.FallbackResolver(),
			Concurrency: a.cfg.Images.WarmConcurrency,
		}))
	}
	return search.NewService(a.apiClient(), opts...)
}

// lookupWallpapers resolves ids to full records, preferring stored favorites.
func (a *app) lookupWallpapers(ctx context.Context, svc *search.Service, ids []string) ([]models.Wallpaper, error) {
	out := make([]models.Wallpaper, 0, len(ids))
	for _, id := range ids {
		if fav, err := a.db.GetFavorite(id); err == nil && fav.FullImageURL != "" {
			out = append(out, fav.Wallpaper)
			continue
		}
		w, ok := svc.FetchEntityDetails(ctx, id)
		if !ok {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("wallpaper %s could not be loaded", id)
		}
		out = append(out, *w)
	}
	return out, nil
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// parseSelection turns "1,3-5" or "all" into sorted 0-based indices below max.
func parseSelection(input string, max int) []int {
	if input == "all" {
		indices := make([]int, max)
		for i := range indices {
			indices[i] = i
		}
		return indices
	}

	indexSet := make(map[int]struct{})
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "-") {
			rangeParts := strings.Split(part, "-")
			if len(rangeParts) == 2 {
				start, err1 := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
				end, err2 := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
				if err1 == nil && err2 == nil && start >= 1 && end <= max && start <= end {
					for i := start; i <= end; i++ {
						indexSet[i-1] = struct{}{}
					}
				}
			}
			continue
		}
		num, err := strconv.Atoi(part)
		if err == nil && num >= 1 && num <= max {
			indexSet[num-1] = struct{}{}
		}
	}

	indices := make([]int, 0, len(indexSet))
	for idx := range indexSet {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	return indices
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
