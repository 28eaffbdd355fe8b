package imageload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go-wallhaven-browser/internal/api"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// HTTPLoader fetches images over HTTP.
type HTTPLoader struct {
	HttpClient *http.Client
}

// NewHTTPLoader returns a loader using httpClient, or http.DefaultClient.
func NewHTTPLoader(httpClient *http.Client) *HTTPLoader {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPLoader{HttpClient: httpClient}
}

// Load implements Loader.
func (l *HTTPLoader) Load(ctx context.Context, url string, progress func(n int)) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", api.UserAgent)

	resp, err := l.HttpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") && !strings.HasPrefix(ct, "application/octet-stream") {
		return nil, fmt.Errorf("unexpected content type %q for %s", ct, url)
	}

	var buf bytes.Buffer
	if resp.ContentLength > 0 {
		buf.Grow(int(resp.ContentLength))
	}
	chunk := make([]byte, 32*1024)
	for {
		n, rerr := resp.Body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			if progress != nil {
				progress(n)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, fmt.Errorf("reading %s: %w", url, rerr)
		}
	}
	return buf.Bytes(), nil
}

// Warmer preloads images through a Controller each, a few at a time.
type Warmer struct {
	Config      Config
	Loader      Loader
	Fallback    Resolver
	Concurrency int
}

// Warm loads every URL and throws the bytes away. Failures are only logged.
func (w *Warmer) Warm(ctx context.Context, urls []string) {
	limit := w.Concurrency
	if limit <= 0 {
		limit = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, u := range urls {
		if u == "" {
			continue
		}
		g.Go(func() error {
			c := NewController(w.Config, w.Loader, WithFallback(w.Fallback))
			if _, err := c.Run(gctx, u); err != nil {
				log.Debugf("[Warmer] %v", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
