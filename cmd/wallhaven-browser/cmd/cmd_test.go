package cmd

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"go-wallhaven-browser/internal/config"
	"go-wallhaven-browser/internal/database"
	"go-wallhaven-browser/internal/models"

	"github.com/spf13/cobra"
)

func TestParseSelection(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []int
		max      int
	}{
		{"single number", "1", []int{0}, 5},
		{"multiple numbers comma separated", "1,3,5", []int{0, 2, 4}, 5},
		{"range", "1-3", []int{0, 1, 2}, 5},
		{"mixed range and numbers", "1,3-5", []int{0, 2, 3, 4}, 5},
		{"all", "all", []int{0, 1, 2}, 3},
		{"out of range ignored", "1,10,100", []int{0}, 5},
		{"zero ignored", "0,1,2", []int{0, 1}, 5},
		{"empty input", "", []int{}, 5},
		{"duplicate numbers deduplicated", "1,1,1,2", []int{0, 1}, 5},
		{"range with spaces", "1 - 3", []int{0, 1, 2}, 5},
		{"invalid range ignored", "5-2", []int{}, 5},
		{"partial overlap range", "3-7", []int{}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseSelection(tt.input, tt.max)
			if !intSlicesEqual(got, tt.expected) {
				t.Errorf("parseSelection(%q, %d) = %v, want %v", tt.input, tt.max, got, tt.expected)
			}
		})
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 8, "hello..."},
		{"hello", 3, "hel"},
		{"", 10, ""},
	}
	for _, tt := range tests {
		if got := truncateString(tt.input, tt.maxLen); got != tt.expected {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.expected)
		}
	}
}

func TestSkipDownloaded(t *testing.T) {
	in := []models.Wallpaper{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	got := skipDownloaded(in, func(id string) bool { return id == "b" })
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("Unexpected result: %+v", got)
	}
	if len(in) != 3 || in[1].ID != "b" {
		t.Error("Input slice must not be modified")
	}
}

func TestCollectCliFlags(t *testing.T) {
	c := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	f := c.Flags()
	f.String("save-path", "", "")
	f.Int("api-delay", -1, "")
	f.String("sorting", "", "")
	f.String("query", "", "")
	f.StringSlice("categories", nil, "")
	f.Bool("nsfw", false, "")
	f.String("output", "", "")
	f.Int("workers", 0, "")

	if err := f.Parse([]string{"--save-path", "/tmp/x", "--sorting", "views", "--categories", "anime,people", "--workers", "3"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	flags := collectCliFlags(c)

	if flags.SavePath == nil || *flags.SavePath != "/tmp/x" {
		t.Errorf("Expected save path flag, got %v", flags.SavePath)
	}
	if flags.APIDelayMs != nil {
		t.Error("Unchanged api-delay must stay nil")
	}
	if flags.Search == nil || flags.Search.Sorting == nil || *flags.Search.Sorting != "views" {
		t.Fatalf("Expected search sorting flag, got %+v", flags.Search)
	}
	if flags.Search.Query != nil || flags.Search.Nsfw != nil {
		t.Error("Unset search flags must stay nil")
	}
	if flags.Search.Categories == nil || len(*flags.Search.Categories) != 2 {
		t.Errorf("Expected two categories, got %v", flags.Search.Categories)
	}
	if flags.Download == nil || flags.Download.Phase1Concurrency == nil || *flags.Download.Phase1Concurrency != 3 {
		t.Errorf("Expected workers flag, got %+v", flags.Download)
	}
	if flags.Proxy != nil {
		t.Error("Command without proxy flags must not produce proxy flags")
	}
}

func TestPrintPage(t *testing.T) {
	last, total := 3, 70
	var buf bytes.Buffer
	printPage(&buf, models.PageResult{
		Page:     2,
		LastPage: &last,
		Total:    &total,
		Wallpapers: []models.Wallpaper{
			{ID: "abc123", Resolution: "1920x1080", Category: "general", Purity: "sfw"},
		},
	}, 3, nil)

	out := buf.String()
	if !strings.Contains(out, "Page 2 of 3 (70 wallpapers)") {
		t.Errorf("Missing header in:\n%s", out)
	}
	if !strings.Contains(out, "abc123") || !strings.Contains(out, "1920x1080") {
		t.Errorf("Missing row in:\n%s", out)
	}
}

// runRoot executes the root command with an isolated save path and no
// config or env file.
func runRoot(t *testing.T, savePath string, args ...string) error {
	t.Helper()
	dir := t.TempDir()
	base := []string{
		"--save-path", savePath,
		"--config", filepath.Join(dir, "none.toml"),
		"--env-file", filepath.Join(dir, "none.env"),
		"--log-level", "error",
	}
	rootCmd.SetArgs(append(base, args...))
	return rootCmd.Execute()
}

func openState(t *testing.T, savePath string) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(savePath, config.DefaultDatabaseDir))
	if err != nil {
		t.Fatalf("Failed to open state: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAPIKeyCommands(t *testing.T) {
	savePath := t.TempDir()

	if err := runRoot(t, savePath, "apikey", "set", "  secretkey123456  "); err != nil {
		t.Fatalf("apikey set failed: %v", err)
	}
	if err := runRoot(t, savePath, "apikey", "show"); err != nil {
		t.Fatalf("apikey show failed: %v", err)
	}

	db := openState(t, savePath)
	key, err := db.APIKey()
	if err != nil || key != "secretkey123456" {
		t.Errorf("Expected trimmed stored key, got %q (%v)", key, err)
	}
}

const searchBody = `{
  "data": [
    {"id": "abc123", "url": "https://wallhaven.cc/w/abc123", "purity": "sfw", "category": "general",
     "dimension_x": 1920, "dimension_y": 1080, "resolution": "1920x1080", "ratio": "1.78",
     "file_size": 1000, "file_type": "image/jpeg", "created_at": "2024-01-02 03:04:05",
     "colors": ["#000000"], "path": "https://w.wallhaven.cc/full/ab/wallhaven-abc123.jpg",
     "thumbs": {"large": "https://th.wallhaven.cc/lg/ab/abc123.jpg"}}
  ],
  "meta": {"current_page": 1, "last_page": 1, "per_page": 24, "total": 1}
}`

func TestSearchCommand_RecordsHistory(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/search" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("q"); got != "forest" {
			t.Errorf("Expected q=forest, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(searchBody))
	}))
	defer srv.Close()
	t.Setenv("WALLHAVEN_APIBASEURL", srv.URL)

	savePath := t.TempDir()
	if err := runRoot(t, savePath, "search", "--query", "forest", "--prefetch=false"); err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("Expected one API call, got %d", hits.Load())
	}

	db := openState(t, savePath)
	history, err := db.History()
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 || !strings.Contains(history[0].Summary, "forest") {
		t.Errorf("Expected one history entry for the search, got %+v", history)
	}
}

func TestSearchCommand_ClampsPagePastEnd(t *testing.T) {
	var mu sync.Mutex
	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		pages = append(pages, r.URL.Query().Get("page"))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(searchBody))
	}))
	defer srv.Close()
	t.Setenv("WALLHAVEN_APIBASEURL", srv.URL)

	if err := runRoot(t, t.TempDir(), "search", "--query", "forest", "--page", "5", "--max-pages", "3", "--prefetch=false"); err != nil {
		t.Fatalf("search failed: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(pages) != 2 || pages[0] != "5" || pages[1] != "1" {
		t.Errorf("Expected page 5 then the last page, got %q", pages)
	}
}

func TestPreviewCommand_SkipsFileOnDisk(t *testing.T) {
	savePath := t.TempDir()
	content := []byte("already here")

	db := openState(t, savePath)
	if _, err := db.AddFavorite(models.Wallpaper{
		ID:           "abc123",
		FullImageURL: "https://w.wallhaven.cc/full/ab/wallhaven-abc123.jpg",
		FileSize:     int64(len(content)),
	}); err != nil {
		t.Fatalf("AddFavorite failed: %v", err)
	}
	db.Close()

	target := filepath.Join(t.TempDir(), "wallhaven-abc123.jpg")
	if err := os.WriteFile(target, content, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := runRoot(t, savePath, "preview", "abc123", "--to", target); err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	got, err := os.ReadFile(target)
	if err != nil || string(got) != string(content) {
		t.Errorf("Expected the existing file to be left alone, got %q (%v)", got, err)
	}
}

// intSlicesEqual compares two int slices for equality
func intSlicesEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
