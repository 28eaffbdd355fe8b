package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go-wallhaven-browser/internal/api"
	"go-wallhaven-browser/internal/helpers"

	log "github.com/sirupsen/logrus"
)

// Custom Downloader Errors
var (
	ErrHttpStatus  = errors.New("unexpected HTTP status code")
	ErrFileSystem  = errors.New("filesystem error") // Covers create, remove, rename
	ErrHttpRequest = errors.New("HTTP request creation/execution error")
)

// StatusError carries the status code behind ErrHttpStatus.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: received status %d from %s", ErrHttpStatus, e.Code, e.URL)
}

func (e *StatusError) Unwrap() error { return ErrHttpStatus }

// Downloader fetches wallpaper files.
type Downloader struct {
	client *http.Client
}

// NewDownloader creates a new Downloader instance.
func NewDownloader(client *http.Client) *Downloader {
	if client == nil {
		client = &http.Client{
			Timeout: 15 * time.Minute,
		}
	}
	return &Downloader{client: client}
}

// findExistingFile looks for a file in dirPath whose name without extension
// matches baseNameWithoutExt. The extension may differ because it is
// corrected from the content after download. A non-positive expectedSize
// skips the size check.
func findExistingFile(dirPath, baseNameWithoutExt string, expectedSize int64) (string, bool, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading directory %s: %w", dirPath, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		entryName := entry.Name()
		if !strings.EqualFold(strings.TrimSuffix(entryName, filepath.Ext(entryName)), baseNameWithoutExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		if expectedSize > 0 && info.Size() != expectedSize {
			log.Debugf("Existing file %s has size %d, expected %d", entryName, info.Size(), expectedSize)
			continue
		}
		return filepath.Join(dirPath, entryName), true, nil
	}
	return "", false, nil
}

// ExistingFile reports a previously saved copy of targetFilepath.
func ExistingFile(targetFilepath string, expectedSize int64) (string, bool, error) {
	base := filepath.Base(targetFilepath)
	foundPath, exists, err := findExistingFile(filepath.Dir(targetFilepath), strings.TrimSuffix(base, filepath.Ext(base)), expectedSize)
	if err != nil {
		return "", false, fmt.Errorf("%w: check for existing file: %v", ErrFileSystem, err)
	}
	return foundPath, exists, nil
}

func (d *Downloader) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating download request for %s: %w", ErrHttpRequest, url, err)
	}
	req.Header.Set("User-Agent", api.UserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: performing request for %s: %v", ErrHttpRequest, url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, URL: url}
	}
	return resp, nil
}

// Fetch downloads url into memory. One attempt, no retries.
func (d *Downloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := d.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("reading body of %s: %w", url, err)
	}
	return data, nil
}

// writeToTemp copies r into tempFile and closes it.
func writeToTemp(r io.Reader, tempFile *os.File, targetPath string, size uint64) (uint64, error) {
	counter := &helpers.CounterWriter{Writer: tempFile}

	log.Debugf("Writing %s (Target: %s, Size: %s)...", tempFile.Name(), targetPath, helpers.BytesToSize(size))

	if _, err := io.Copy(counter, r); err != nil {
		_ = tempFile.Close()
		return counter.Total, fmt.Errorf("writing to temporary file %s: %w", tempFile.Name(), err)
	}
	if err := tempFile.Close(); err != nil {
		return counter.Total, fmt.Errorf("%w: closing temporary file %s: %w", ErrFileSystem, tempFile.Name(), err)
	}
	return counter.Total, nil
}

// detectMimeAndRename detects MIME type and renames temp file with correct extension
func detectMimeAndRename(tempFilePath, finalPath string) (string, error) {
	fileForDetect, err := os.Open(tempFilePath)
	if err != nil {
		return "", fmt.Errorf("%w: opening temp file for mime detection: %w", ErrFileSystem, err)
	}
	buffer := make([]byte, 512)
	n, err := fileForDetect.Read(buffer)
	fileForDetect.Close()
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("%w: reading temp file for mime detection: %w", ErrFileSystem, err)
	}

	mimeType := http.DetectContentType(buffer[:n])
	log.Debugf("Detected MIME type for %s: %s", tempFilePath, mimeType)

	finalExt := filepath.Ext(finalPath)
	correctExt, ok := helpers.GetExtensionFromMimeType(mimeType)
	if !ok {
		log.Debugf("No standard extension for MIME type '%s', keeping '%s'", mimeType, finalExt)
		correctExt = finalExt
	}

	finalPathWithCorrectExt := strings.TrimSuffix(finalPath, finalExt) + correctExt
	if err := os.Rename(tempFilePath, finalPathWithCorrectExt); err != nil {
		return "", fmt.Errorf("%w: renaming temporary file %s to %s: %w", ErrFileSystem, tempFilePath, finalPathWithCorrectExt, err)
	}
	return finalPathWithCorrectExt, nil
}

// save streams r to targetFilepath through a temp file in the same directory.
func save(r io.Reader, targetFilepath string, size uint64) (string, uint64, error) {
	targetDir := filepath.Dir(targetFilepath)
	if !helpers.CheckAndMakeDir(targetDir) {
		return "", 0, fmt.Errorf("%w: failed to create target directory %s", ErrFileSystem, targetDir)
	}

	tempFile, err := os.CreateTemp(targetDir, filepath.Base(targetFilepath)+".*.tmp")
	if err != nil {
		return "", 0, fmt.Errorf("%w: creating temporary file %s: %w", ErrFileSystem, targetFilepath, err)
	}

	shouldCleanupTemp := true
	defer func() {
		if shouldCleanupTemp {
			if removeErr := os.Remove(tempFile.Name()); removeErr != nil && !os.IsNotExist(removeErr) {
				log.WithError(removeErr).Warnf("Failed to remove temporary file %s", tempFile.Name())
			}
		}
	}()

	written, err := writeToTemp(r, tempFile, targetFilepath, size)
	if err != nil {
		return "", written, err
	}
	finalPath, err := detectMimeAndRename(tempFile.Name(), targetFilepath)
	if err != nil {
		return "", written, err
	}
	shouldCleanupTemp = false
	return finalPath, written, nil
}

// SaveBytes writes data to targetFilepath, fixing the extension from the
// content. Returns the path actually written.
func SaveBytes(targetFilepath string, data []byte) (string, error) {
	finalPath, _, err := save(bytes.NewReader(data), targetFilepath, uint64(len(data)))
	return finalPath, err
}
