package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go-wallhaven-browser/internal/models"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// maxErrorBodyLog caps how much of an error body ends up in messages.
const maxErrorBodyLog = 200

// Client struct for interacting with the Wallhaven API. Every call is a
// single attempt; retrying is the caller's decision.
type Client struct {
	ApiKey     string
	BaseURL    string
	HttpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new API client. cfg.APIDelayMs spaces out requests.
func NewClient(apiKey string, httpClient *http.Client, cfg models.Config) *Client {
	if httpClient == nil {
		timeout := 30 * time.Second
		if cfg.APIClientTimeoutSec > 0 {
			timeout = time.Duration(cfg.APIClientTimeoutSec) * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := cfg.APIBaseURL
	if baseURL == "" {
		baseURL = WallhavenApiBaseUrl
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.APIDelayMs > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Duration(cfg.APIDelayMs)*time.Millisecond), 1)
	}
	log.Debugf("NewClient: base=%s delay=%dms key=%t", baseURL, cfg.APIDelayMs, apiKey != "")

	return &Client{
		ApiKey:     apiKey,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HttpClient: httpClient,
		limiter:    limiter,
	}
}

// Search fetches one page of results.
func (c *Client) Search(ctx context.Context, filters models.SearchFilters, page int, seed string) (models.PageResult, error) {
	desc, err := BuildSearchRequest(c.BaseURL, filters, page, seed, c.ApiKey)
	if err != nil {
		return models.PageResult{}, err
	}
	body, err := c.do(ctx, desc)
	if err != nil {
		return models.PageResult{}, err
	}
	return DecodeSearchResponse(body, page)
}

// Details fetches the extended record (tags, uploader) of one wallpaper.
func (c *Client) Details(ctx context.Context, id string) (*models.Wallpaper, error) {
	desc, err := BuildDetailsRequest(c.BaseURL, id, c.ApiKey)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, desc)
	if err != nil {
		return nil, err
	}
	return DecodeDetailsResponse(body)
}

// do executes desc and maps the status code onto the package's error kinds.
func (c *Client) do(ctx context.Context, desc models.RequestDescriptor) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, desc.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	for k, vs := range desc.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	log.Debugf("[API] GET %s", desc.URL)
	resp, err := c.HttpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("reading response body: %w", readErr)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusInternalServerError:
		return nil, ErrPageUnavailable
	default:
		return nil, fmt.Errorf("%w: status %d: %s", ErrHTTPStatus, resp.StatusCode, truncate(string(body)))
	}

	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		log.Warnf("[API] Non-JSON response (%s) from %s: %s", ct, desc.URL, truncate(string(body)))
		return nil, fmt.Errorf("%w: expected JSON, got %q", ErrMalformedResponse, ct)
	}
	return body, nil
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorBodyLog {
		return s[:maxErrorBodyLog] + "..."
	}
	return s
}
