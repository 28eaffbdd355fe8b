package downloader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var pngData = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

// TestNewDownloader_NilClient tests that a default client is created when nil is passed
func TestNewDownloader_NilClient(t *testing.T) {
	downloader := NewDownloader(nil)

	if downloader.client == nil {
		t.Fatal("Expected default HTTP client to be created")
	}
	if downloader.client.Timeout != 15*time.Minute {
		t.Errorf("Expected default timeout to be 15 minutes, got %v", downloader.client.Timeout)
	}
}

func TestFetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("Expected User-Agent header")
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngData)
	}))
	defer server.Close()

	data, err := NewDownloader(server.Client()).Fetch(context.Background(), server.URL+"/full/94/wallhaven-94x38z.png")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(data) != len(pngData) {
		t.Errorf("Expected %d bytes, got %d", len(pngData), len(data))
	}
}

func TestFetch_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := NewDownloader(server.Client()).Fetch(context.Background(), server.URL)
	if !errors.Is(err, ErrHttpStatus) {
		t.Fatalf("Expected ErrHttpStatus, got %v", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusNotFound {
		t.Errorf("Expected StatusError with 404, got %v", err)
	}
}

func TestFetch_Cancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewDownloader(server.Client()).Fetch(ctx, server.URL)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
}

func TestExistingFile_MatchesAnyExtension(t *testing.T) {
	tempDir := t.TempDir()
	existing := filepath.Join(tempDir, "wallhaven-abc123.png")
	if err := os.WriteFile(existing, pngData, 0644); err != nil {
		t.Fatal(err)
	}

	got, found, err := ExistingFile(filepath.Join(tempDir, "wallhaven-abc123.jpg"), int64(len(pngData)))
	if err != nil {
		t.Fatalf("ExistingFile failed: %v", err)
	}
	if !found || got != existing {
		t.Errorf("Expected existing path %s, got %s (found=%v)", existing, got, found)
	}
}

func TestExistingFile_SizeMismatch(t *testing.T) {
	tempDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tempDir, "w.png"), pngData, 0644); err != nil {
		t.Fatal(err)
	}

	_, found, err := ExistingFile(filepath.Join(tempDir, "w.png"), 1)
	if err != nil {
		t.Fatalf("ExistingFile failed: %v", err)
	}
	if found {
		t.Error("Expected a file of the wrong size to be ignored")
	}
}

func TestExistingFile_IgnoresTempAndEmpty(t *testing.T) {
	tempDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tempDir, "w.png.123.tmp"), pngData, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, "w.jpg"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	_, found, err := ExistingFile(filepath.Join(tempDir, "w.png"), 0)
	if err != nil {
		t.Fatalf("ExistingFile failed: %v", err)
	}
	if found {
		t.Error("Expected temp and empty files to be ignored")
	}
}

func TestExistingFile_MissingDirectory(t *testing.T) {
	_, found, err := ExistingFile(filepath.Join(t.TempDir(), "missing", "w.png"), 0)
	if err != nil || found {
		t.Errorf("Expected (false, nil) for a missing directory, got (%v, %v)", found, err)
	}
}

func TestSaveBytes(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "wallpaper-1.jpg")
	got, err := SaveBytes(target, pngData)
	if err != nil {
		t.Fatalf("SaveBytes failed: %v", err)
	}
	if filepath.Base(got) != "wallpaper-1.png" {
		t.Errorf("Expected wallpaper-1.png, got %s", got)
	}
	content, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if string(content) != string(pngData) {
		t.Error("Saved content doesn't match")
	}
	entries, _ := os.ReadDir(filepath.Dir(got))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("Temporary file left behind: %s", e.Name())
		}
	}
}
