package paths

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go-wallhaven-browser/internal/helpers"
	"go-wallhaven-browser/internal/models"
)

// ErrPatternNotUnique is returned for patterns that would give every
// wallpaper the same name.
var ErrPatternNotUnique = errors.New("pattern must contain {id} or {index}")

// Define allowed tags using a map for easy lookup
var allowedTags = map[string]struct{}{
	"id":         {},
	"index":      {}, // 1-based position in the selection
	"category":   {},
	"purity":     {},
	"resolution": {},
	"author":     {},
}

// Regex to find tags like {tagName}
var tagRegex = regexp.MustCompile(`\{([^}]+)\}`)

// GeneratePath substitutes placeholders in a pattern string with sanitized values from the data map.
// It returns the generated relative path string or an error if substitution fails.
func GeneratePath(pattern string, data map[string]string) (string, error) {
	generatedPath := pattern

	for _, match := range tagRegex.FindAllStringSubmatch(pattern, -1) {
		tagName := match[1]
		tagWithBraces := match[0]

		if _, allowed := allowedTags[tagName]; !allowed {
			return "", fmt.Errorf("unknown tag found in path pattern: %s", tagWithBraces)
		}

		sanitizedValue := helpers.ConvertToSlug(data[tagName])
		if sanitizedValue == "" {
			// Missing and empty values both end up here.
			sanitizedValue = "empty_" + tagName
		}
		generatedPath = strings.ReplaceAll(generatedPath, tagWithBraces, sanitizedValue)
	}

	cleanedPath := filepath.Clean(generatedPath)
	if cleanedPath == "." || cleanedPath == "" {
		return "", fmt.Errorf("generated path pattern resulted in an empty or invalid path: '%s'", pattern)
	}
	cleanedPath = strings.TrimPrefix(cleanedPath, string(filepath.Separator))

	if strings.Contains(cleanedPath, "..") {
		return "", fmt.Errorf("generated path contains invalid sequence '..': %s", cleanedPath)
	}

	return cleanedPath, nil
}

// ValidatePattern checks that pattern only uses known tags and names each
// wallpaper distinctly.
func ValidatePattern(pattern string) error {
	if !strings.Contains(pattern, "{id}") && !strings.Contains(pattern, "{index}") {
		return fmt.Errorf("%w: %q", ErrPatternNotUnique, pattern)
	}
	_, err := GeneratePath(pattern, nil)
	return err
}

// WallpaperData returns the tag values for w. index is 1-based.
func WallpaperData(w models.Wallpaper, index int) map[string]string {
	return map[string]string{
		"id":         w.ID,
		"index":      strconv.Itoa(index),
		"category":   w.Category,
		"purity":     w.Purity,
		"resolution": w.Resolution,
		"author":     w.Author,
	}
}

// FileName renders pattern for w and appends the image extension.
func FileName(pattern string, w models.Wallpaper, index int) (string, error) {
	base, err := GeneratePath(pattern, WallpaperData(w, index))
	if err != nil {
		return "", err
	}
	return base + "." + w.Ext(), nil
}
