package api

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"go-wallhaven-browser/internal/helpers"
	"go-wallhaven-browser/internal/models"
)

const (
	WallhavenApiBaseUrl = "https://wallhaven.cc/api/v1"
	UserAgent           = "wallbrowser/0.0.1"
	apiKeyHeader        = "X-API-Key"
)

var (
	dimensionRegex = regexp.MustCompile(`^\d{2,5}x\d{2,5}$`)
	ratioRegex     = regexp.MustCompile(`^\d{1,2}x\d{1,2}$`)
	colorRegex     = regexp.MustCompile(`^[0-9a-f]{6}$`)
)

// ValidateFilters checks a filter set before any request is built.
func ValidateFilters(f models.SearchFilters) error {
	if !f.Categories.Any() {
		return fmt.Errorf("%w: at least one category must be selected", ErrValidation)
	}
	if f.Sorting != "" && !models.Contains(models.SortOptions, f.Sorting) {
		return fmt.Errorf("%w: unknown sorting %q", ErrValidation, f.Sorting)
	}
	if f.Sorting == models.SortToplist && f.TopRange != "" && !models.Contains(models.TopRanges, f.TopRange) {
		return fmt.Errorf("%w: unknown toplist range %q", ErrValidation, f.TopRange)
	}
	if f.Resolution != "" && !dimensionRegex.MatchString(strings.TrimSpace(f.Resolution)) {
		return fmt.Errorf("%w: resolution %q is not WIDTHxHEIGHT", ErrValidation, f.Resolution)
	}
	for _, r := range splitList(f.Ratio) {
		if r != "landscape" && r != "portrait" && !ratioRegex.MatchString(r) {
			return fmt.Errorf("%w: ratio %q is not a known ratio", ErrValidation, r)
		}
	}
	if c := normalizeColor(f.Color); c != "" && !colorRegex.MatchString(c) {
		return fmt.Errorf("%w: color %q is not a 6 digit hex value", ErrValidation, f.Color)
	}
	if ft := strings.TrimSpace(f.FileType); ft != "" && !helpers.StringSliceContains(models.FileTypes, ft) {
		return fmt.Errorf("%w: file type %q is not supported", ErrValidation, f.FileType)
	}
	return nil
}

// BuildSearchValues maps a filter set to query parameters. The seed is only
// emitted when continuing a random sequence past the first page.
func BuildSearchValues(f models.SearchFilters, page int, seed string) url.Values {
	values := url.Values{}

	if f.Sorting != "" {
		values.Set("sorting", f.Sorting)
	}
	values.Set("categories", f.Categories.Bits())
	if f.IncludeNsfw {
		values.Set("purity", models.PurityAll)
	} else {
		values.Set("purity", models.PuritySFWOnly)
	}
	values.Set("page", strconv.Itoa(page))

	q := strings.TrimSpace(f.Query)
	if ft := strings.ToLower(strings.TrimSpace(f.FileType)); ft != "" {
		if q != "" {
			q = "type:" + ft + " " + q
		} else {
			q = "type:" + ft
		}
	}
	if q != "" {
		values.Set("q", q)
	}

	if res := strings.TrimSpace(f.Resolution); res != "" {
		if f.ExactResolution {
			values.Set("resolutions", res)
		} else {
			values.Set("atleast", res)
		}
	}
	if ratios := splitList(f.Ratio); len(ratios) > 0 {
		values.Set("ratios", strings.Join(ratios, ","))
	}
	if c := normalizeColor(f.Color); c != "" {
		values.Set("colors", c)
	}
	if f.Sorting == models.SortToplist && f.TopRange != "" {
		values.Set("topRange", f.TopRange)
	}
	if f.Sorting == models.SortRandom && page > 1 && seed != "" {
		values.Set("seed", seed)
	}
	return values
}

// BuildSearchRequest returns the request descriptor for one search page.
// It performs no I/O.
func BuildSearchRequest(baseURL string, f models.SearchFilters, page int, seed, apiKey string) (models.RequestDescriptor, error) {
	if err := ValidateFilters(f); err != nil {
		return models.RequestDescriptor{}, err
	}
	if page < 1 {
		return models.RequestDescriptor{}, fmt.Errorf("%w: page must be >= 1, got %d", ErrValidation, page)
	}
	if baseURL == "" {
		baseURL = WallhavenApiBaseUrl
	}
	values := BuildSearchValues(f, page, seed)
	return models.RequestDescriptor{
		URL:     fmt.Sprintf("%s/search?%s", strings.TrimRight(baseURL, "/"), values.Encode()),
		Headers: buildHeaders(apiKey),
	}, nil
}

// BuildDetailsRequest returns the request descriptor for one wallpaper record.
func BuildDetailsRequest(baseURL, id, apiKey string) (models.RequestDescriptor, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, "/?#") {
		return models.RequestDescriptor{}, fmt.Errorf("%w: invalid wallpaper id %q", ErrValidation, id)
	}
	if baseURL == "" {
		baseURL = WallhavenApiBaseUrl
	}
	return models.RequestDescriptor{
		URL:     fmt.Sprintf("%s/w/%s", strings.TrimRight(baseURL, "/"), url.PathEscape(id)),
		Headers: buildHeaders(apiKey),
	}, nil
}

// buildHeaders attaches the credential only when one is configured. Without
// it the API serves SFW results at the public rate limit.
func buildHeaders(apiKey string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", UserAgent)
	h.Set("Accept", "application/json")
	if key := strings.TrimSpace(apiKey); key != "" {
		h.Set(apiKeyHeader, key)
	}
	return h
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func normalizeColor(c string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c), "#"))
}
