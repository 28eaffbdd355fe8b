package paths

import (
	"errors"
	"strings"
	"testing"

	"go-wallhaven-browser/internal/models"
)

func TestGeneratePath_BasicSubstitution(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		data     map[string]string
		expected string
		wantErr  bool
	}{
		{
			name:     "single placeholder",
			pattern:  "wallpaper-{id}",
			data:     map[string]string{"id": "94x38z"},
			expected: "wallpaper-94x38z",
		},
		{
			name:     "multiple placeholders",
			pattern:  "{category}/{purity}/wallhaven-{id}",
			data:     map[string]string{"category": "Anime", "purity": "sfw", "id": "l8rz2y"},
			expected: "anime/sfw/wallhaven-l8rz2y",
		},
		{
			name:     "author with spaces",
			pattern:  "{author}/{id}",
			data:     map[string]string{"author": "Night Owl", "id": "e7jj6r"},
			expected: "night_owl/e7jj6r",
		},
		{
			name:     "index and resolution",
			pattern:  "{index}_{resolution}",
			data:     map[string]string{"index": "3", "resolution": "3840x2160"},
			expected: "3_3840x2160",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GeneratePath(tt.pattern, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("GeneratePath() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.expected {
				t.Errorf("GeneratePath() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGeneratePath_EmptyValues(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		data     map[string]string
		expected string
	}{
		{"missing value uses fallback", "{category}/{id}", map[string]string{"id": "abc"}, "empty_category/abc"},
		{"empty string value uses fallback", "{author}-{id}", map[string]string{"author": "", "id": "abc"}, "empty_author-abc"},
		{"nil data", "{id}", nil, "empty_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GeneratePath(tt.pattern, tt.data)
			if err != nil {
				t.Fatalf("GeneratePath() unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("GeneratePath() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGeneratePath_UnknownTags(t *testing.T) {
	for _, pattern := range []string{"{modelName}", "{id}/{colour}", "{Id}"} {
		t.Run(pattern, func(t *testing.T) {
			_, err := GeneratePath(pattern, map[string]string{"id": "abc"})
			if err == nil {
				t.Fatal("GeneratePath() expected error for unknown tag, got nil")
			}
			if !strings.Contains(err.Error(), "unknown tag") {
				t.Errorf("GeneratePath() error should mention 'unknown tag', got: %v", err)
			}
		})
	}
}

func TestGeneratePath_PathTraversal(t *testing.T) {
	got, err := GeneratePath("{author}", map[string]string{"author": "../../../etc/passwd"})
	if err != nil {
		// erroring is acceptable too
		return
	}
	if strings.Contains(got, "..") {
		t.Errorf("GeneratePath() result contains path traversal: %v", got)
	}
}

func TestGeneratePath_NoPlaceholders(t *testing.T) {
	got, err := GeneratePath("static/path/here", map[string]string{})
	if err != nil {
		t.Errorf("GeneratePath() unexpected error: %v", err)
	}
	if got != "static/path/here" {
		t.Errorf("GeneratePath() = %v, want static/path/here", got)
	}
}

func TestValidatePattern(t *testing.T) {
	tests := []struct {
		pattern  string
		wantErr  bool
		notUniqe bool
	}{
		{"wallpaper-{id}", false, false},
		{"{index}", false, false},
		{"{category}/wallhaven-{id}", false, false},
		{"wallpaper", true, true},
		{"{category}", true, true},
		{"{id}-{bogus}", true, false},
	}
	for _, tt := range tests {
		err := ValidatePattern(tt.pattern)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePattern(%q) error = %v, wantErr %v", tt.pattern, err, tt.wantErr)
		}
		if tt.notUniqe && !errors.Is(err, ErrPatternNotUnique) {
			t.Errorf("ValidatePattern(%q) expected ErrPatternNotUnique, got %v", tt.pattern, err)
		}
	}
}

func TestFileName(t *testing.T) {
	w := models.Wallpaper{
		ID:           "94x38z",
		Category:     "general",
		FullImageURL: "https://w.wallhaven.cc/full/94/wallhaven-94x38z.png",
	}
	got, err := FileName("wallpaper-{id}", w, 1)
	if err != nil {
		t.Fatalf("FileName() unexpected error: %v", err)
	}
	if got != "wallpaper-94x38z.png" {
		t.Errorf("FileName() = %q, want wallpaper-94x38z.png", got)
	}

	got, _ = FileName("{index}-{category}", w, 12)
	if got != "12-general.png" {
		t.Errorf("FileName() = %q, want 12-general.png", got)
	}
}
