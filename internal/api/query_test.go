package api

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"go-wallhaven-browser/internal/models"
)

func parseQuery(t *testing.T, raw string) url.Values {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("Failed to parse URL %s: %v", raw, err)
	}
	return u.Query()
}

func TestBuildSearchRequest_Defaults(t *testing.T) {
	desc, err := BuildSearchRequest("", models.DefaultFilters(), 1, "", "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.HasPrefix(desc.URL, WallhavenApiBaseUrl+"/search?") {
		t.Errorf("Unexpected URL: %s", desc.URL)
	}
	q := parseQuery(t, desc.URL)
	expected := map[string]string{
		"categories": "111",
		"purity":     "100",
		"sorting":    "date_added",
		"page":       "1",
	}
	for k, v := range expected {
		if got := q.Get(k); got != v {
			t.Errorf("Param %s = %q, want %q", k, got, v)
		}
	}
	for _, absent := range []string{"q", "seed", "topRange", "atleast", "resolutions", "colors", "ratios"} {
		if q.Has(absent) {
			t.Errorf("Param %s should not be present, got %q", absent, q.Get(absent))
		}
	}
	if desc.Headers.Get("X-API-Key") != "" {
		t.Error("X-API-Key header must be absent without a key")
	}
	if desc.Headers.Get("User-Agent") != UserAgent {
		t.Errorf("User-Agent = %q, want %q", desc.Headers.Get("User-Agent"), UserAgent)
	}
}

func TestBuildSearchRequest_Deterministic(t *testing.T) {
	f := models.SearchFilters{
		Query:      "forest",
		Categories: models.CategoryFlags{General: true, People: true},
		Sorting:    models.SortToplist,
		TopRange:   models.TopRange1w,
		Resolution: "2560x1440",
		Ratio:      "16x9,21x9",
		Color:      "#336600",
		FileType:   "png",
	}
	a, err := BuildSearchRequest("https://example.test/api/v1", f, 4, "", "key")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	b, _ := BuildSearchRequest("https://example.test/api/v1", f, 4, "", "key")
	if a.URL != b.URL {
		t.Errorf("Build not deterministic:\n%s\n%s", a.URL, b.URL)
	}
	if a.Headers.Get("X-API-Key") != "key" {
		t.Error("Expected X-API-Key header")
	}
}

func TestBuildSearchValues_Mapping(t *testing.T) {
	tests := []struct {
		name    string
		filters models.SearchFilters
		page    int
		seed    string
		want    map[string]string
		absent  []string
	}{
		{
			name:    "nsfw uses all purity",
			filters: models.SearchFilters{Categories: models.CategoryFlags{Anime: true}, IncludeNsfw: true},
			page:    1,
			want:    map[string]string{"purity": "111", "categories": "010"},
			absent:  []string{"sorting"},
		},
		{
			name:    "file type merged into query",
			filters: models.SearchFilters{Categories: models.DefaultCategories(), Query: "landscape", FileType: "png"},
			page:    1,
			want:    map[string]string{"q": "type:png landscape"},
		},
		{
			name:    "file type alone",
			filters: models.SearchFilters{Categories: models.DefaultCategories(), FileType: "jpg"},
			page:    1,
			want:    map[string]string{"q": "type:jpg"},
		},
		{
			name:    "minimum resolution by default",
			filters: models.SearchFilters{Categories: models.DefaultCategories(), Resolution: "1920x1080"},
			page:    1,
			want:    map[string]string{"atleast": "1920x1080"},
			absent:  []string{"resolutions"},
		},
		{
			name:    "exact resolution",
			filters: models.SearchFilters{Categories: models.DefaultCategories(), Resolution: "1920x1080", ExactResolution: true},
			page:    1,
			want:    map[string]string{"resolutions": "1920x1080"},
			absent:  []string{"atleast"},
		},
		{
			name:    "top range only with toplist",
			filters: models.SearchFilters{Categories: models.DefaultCategories(), Sorting: models.SortViews, TopRange: models.TopRange1y},
			page:    1,
			absent:  []string{"topRange"},
		},
		{
			name:    "top range with toplist",
			filters: models.SearchFilters{Categories: models.DefaultCategories(), Sorting: models.SortToplist, TopRange: models.TopRange1y},
			page:    1,
			want:    map[string]string{"topRange": "1y"},
		},
		{
			name:    "color without hash",
			filters: models.SearchFilters{Categories: models.DefaultCategories(), Color: "#CC0000"},
			page:    1,
			want:    map[string]string{"colors": "cc0000"},
		},
		{
			name:    "seed on random continuation",
			filters: models.SearchFilters{Categories: models.DefaultCategories(), Sorting: models.SortRandom},
			page:    2,
			seed:    "abc123",
			want:    map[string]string{"seed": "abc123", "page": "2"},
		},
		{
			name:    "no seed on first random page",
			filters: models.SearchFilters{Categories: models.DefaultCategories(), Sorting: models.SortRandom},
			page:    1,
			seed:    "abc123",
			absent:  []string{"seed"},
		},
		{
			name:    "no seed for non-random sort",
			filters: models.SearchFilters{Categories: models.DefaultCategories(), Sorting: models.SortViews},
			page:    3,
			seed:    "abc123",
			absent:  []string{"seed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := BuildSearchValues(tt.filters, tt.page, tt.seed)
			for k, v := range tt.want {
				if got := values.Get(k); got != v {
					t.Errorf("Param %s = %q, want %q", k, got, v)
				}
			}
			for _, k := range tt.absent {
				if values.Has(k) {
					t.Errorf("Param %s should be absent, got %q", k, values.Get(k))
				}
			}
		})
	}
}

func TestValidateFilters(t *testing.T) {
	good := models.DefaultFilters()
	if err := ValidateFilters(good); err != nil {
		t.Fatalf("Default filters should validate: %v", err)
	}

	bad := []struct {
		name   string
		mutate func(f *models.SearchFilters)
	}{
		{"no categories", func(f *models.SearchFilters) { f.Categories = models.CategoryFlags{} }},
		{"unknown sort", func(f *models.SearchFilters) { f.Sorting = "newest" }},
		{"bad top range", func(f *models.SearchFilters) { f.Sorting = models.SortToplist; f.TopRange = "2w" }},
		{"bad resolution", func(f *models.SearchFilters) { f.Resolution = "huge" }},
		{"bad ratio", func(f *models.SearchFilters) { f.Ratio = "wide" }},
		{"bad color", func(f *models.SearchFilters) { f.Color = "red" }},
		{"bad file type", func(f *models.SearchFilters) { f.FileType = "gif" }},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			f := models.DefaultFilters()
			tt.mutate(&f)
			err := ValidateFilters(f)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Expected ErrValidation, got %v", err)
			}
		})
	}

	if _, err := BuildSearchRequest("", good, 0, "", ""); !errors.Is(err, ErrValidation) {
		t.Errorf("Page 0 should fail validation, got %v", err)
	}
}

func TestBuildDetailsRequest(t *testing.T) {
	desc, err := BuildDetailsRequest("https://example.test/api/v1/", "94x38z", "k")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if desc.URL != "https://example.test/api/v1/w/94x38z" {
		t.Errorf("Unexpected URL %s", desc.URL)
	}
	if _, err := BuildDetailsRequest("", "../etc", ""); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for path-like id, got %v", err)
	}
}

func TestValidateFilters_FileTypeIgnoresCase(t *testing.T) {
	f := models.DefaultFilters()
	f.FileType = " PNG "
	if err := ValidateFilters(f); err != nil {
		t.Errorf("Expected upper case file type to validate, got %v", err)
	}
}
