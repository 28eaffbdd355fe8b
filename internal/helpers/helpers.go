package helpers

import (
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"
)

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9_.\-]+`)
	slugUnderscores  = regexp.MustCompile(`_+`)
	slugMixedSeps    = regexp.MustCompile(`(_-|-_)+`)
)

// ConvertToSlug lowercases s and reduces it to a filesystem friendly token.
// Spaces become underscores, colons become dashes and anything outside
// [a-z0-9_.-] is dropped.
func ConvertToSlug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ":", "-")
	s = strings.Join(strings.Fields(s), "_")
	s = slugInvalidChars.ReplaceAllString(s, "")
	s = slugUnderscores.ReplaceAllString(s, "_")
	s = slugMixedSeps.ReplaceAllString(s, "-")
	return strings.Trim(s, "_-")
}

// BytesToSize renders a byte count with a binary unit suffix.
func BytesToSize(bytes uint64) string {
	if bytes == 0 {
		return "0B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB", "PB"}
	value := float64(bytes)
	i := 0
	for value >= 1024 && i < len(units)-1 {
		value /= 1024
		i++
	}
	return fmt.Sprintf("%.2f%s", value, units[i])
}

// SanitizePath cleans p and strips any leading separators or parent
// directory references so the result is always relative.
func SanitizePath(p string) string {
	cleaned := filepath.Clean(p)
	for {
		switch {
		case strings.HasPrefix(cleaned, string(filepath.Separator)):
			cleaned = strings.TrimPrefix(cleaned, string(filepath.Separator))
		case strings.HasPrefix(cleaned, ".."+string(filepath.Separator)):
			cleaned = strings.TrimPrefix(cleaned, ".."+string(filepath.Separator))
		case cleaned == "..":
			return "."
		default:
			return cleaned
		}
	}
}

// StringSliceContains reports whether item is in slice, ignoring case.
func StringSliceContains(slice []string, item string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, item) {
			return true
		}
	}
	return false
}

var mimeExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
	"video/mp4":  ".mp4",
	"video/webm": ".webm",
}

// GetExtensionFromMimeType maps a Content-Type value to a file extension.
func GetExtensionFromMimeType(mimeType string) (string, bool) {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(mimeType, ";")[0])
	}
	ext, ok := mimeExtensions[strings.ToLower(mediaType)]
	return ext, ok
}

// CheckAndMakeDir ensures dir exists, creating it (and parents) if needed.
func CheckAndMakeDir(dir string) bool {
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		log.WithError(err).Errorf("Failed to create directory %s", dir)
		return false
	}
	return true
}

// CounterWriter counts the bytes passing through to Writer.
type CounterWriter struct {
	Writer io.Writer
	Total  uint64
}

// Write implements io.Writer.
func (cw *CounterWriter) Write(p []byte) (int, error) {
	n, err := cw.Writer.Write(p)
	cw.Total += uint64(n)
	return n, err
}

// Blake3Hex returns the hex encoded BLAKE3-256 digest of data.
func Blake3Hex(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// MaskSecret keeps the first and last four characters of a credential.
func MaskSecret(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
