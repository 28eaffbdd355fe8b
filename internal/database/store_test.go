package database

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"go-wallhaven-browser/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "state"))
	require.NoError(t, err, "Failed to open database")
	t.Cleanup(func() { db.Close() })
	return db
}

// fixedClock makes now() advance one second per call.
func fixedClock(t *testing.T) {
	t.Helper()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}
	t.Cleanup(func() { now = time.Now })
}

func TestDB_BasicOperations(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Put([]byte("k1"), []byte("v1")))
	assert.True(t, db.Has([]byte("k1")))

	got, err := db.Get([]byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	_, err = db.Get([]byte("missing"))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.Delete([]byte("k1")))
	assert.False(t, db.Has([]byte("k1")))
}

func TestDB_ClosedIsSafe(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "state"))
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	assert.False(t, db.Has([]byte("x")))
	assert.Error(t, db.Put([]byte("x"), []byte("y")))
}

func TestDB_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")
	db, err := Open(path)
	require.NoError(t, err)
	_, err = db.AddFavorite(models.Wallpaper{ID: "94x38z"})
	require.NoError(t, err)
	require.NoError(t, db.SetAPIKey("secret-key"))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	assert.True(t, db.IsFavorite("94x38z"))
	key, err := db.APIKey()
	require.NoError(t, err)
	assert.Equal(t, "secret-key", key)
}

func TestFavorites(t *testing.T) {
	fixedClock(t)
	db := openTestDB(t)

	w1 := models.Wallpaper{ID: "aaa111", Resolution: "1920x1080", Tags: []models.Tag{{ID: 1, Name: "forest"}}}
	w2 := models.Wallpaper{ID: "bbb222"}

	added, err := db.AddFavorite(w1)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = db.AddFavorite(w1)
	require.NoError(t, err)
	assert.False(t, added, "duplicate add must be a no-op")

	on, err := db.ToggleFavorite(w2)
	require.NoError(t, err)
	assert.True(t, on)

	favs, err := db.ListFavorites()
	require.NoError(t, err)
	require.Len(t, favs, 2)
	assert.Equal(t, "aaa111", favs[0].ID)
	assert.Equal(t, "forest", favs[0].Tags[0].Name)
	assert.True(t, favs[0].FavoritedAt.Before(favs[1].FavoritedAt))

	on, err = db.ToggleFavorite(w2)
	require.NoError(t, err)
	assert.False(t, on)
	assert.False(t, db.IsFavorite("bbb222"))

	fav, err := db.GetFavorite("aaa111")
	require.NoError(t, err)
	assert.Equal(t, "1920x1080", fav.Resolution)

	n, err := db.ClearFavorites()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	favs, err = db.ListFavorites()
	require.NoError(t, err)
	assert.Empty(t, favs)

	_, err = db.AddFavorite(models.Wallpaper{})
	assert.Error(t, err)
}

func TestDownloadedLedger(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.MarkDownloaded("b2", "", "a1", "b2"))
	assert.True(t, db.IsDownloaded("a1"))
	assert.False(t, db.IsDownloaded(""))

	ids, err := db.ListDownloaded()
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "b2"}, ids)

	require.NoError(t, db.RemoveDownloaded("a1"))
	assert.False(t, db.IsDownloaded("a1"))

	n, err := db.ClearDownloaded()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHistory_DedupeAndOrder(t *testing.T) {
	fixedClock(t)
	db := openTestDB(t)

	f1 := models.DefaultFilters()
	f1.Query = "mountains"
	f2 := models.DefaultFilters()
	f2.Sorting = models.SortToplist
	f2.TopRange = models.TopRange1w

	_, err := db.AddHistory(f1)
	require.NoError(t, err)
	_, err = db.AddHistory(f2)
	require.NoError(t, err)
	again, err := db.AddHistory(f1)
	require.NoError(t, err)

	entries, err := db.History()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, again.ID, entries[0].ID)
	assert.Equal(t, `"mountains"`, entries[0].Summary)
	assert.Equal(t, "Toplist 1w", entries[1].Summary)

	require.NoError(t, db.RemoveHistory(entries[1].ID))
	entries, err = db.History()
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, db.ClearHistory())
	entries, err = db.History()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHistory_Capped(t *testing.T) {
	db := openTestDB(t)
	for i := 0; i < MaxHistoryEntries+5; i++ {
		f := models.DefaultFilters()
		f.Query = fmt.Sprintf("query %d", i)
		_, err := db.AddHistory(f)
		require.NoError(t, err)
	}
	entries, err := db.History()
	require.NoError(t, err)
	require.Len(t, entries, MaxHistoryEntries)
	assert.Equal(t, `"query 24"`, entries[0].Summary)
}

func TestHistory_EmptySummarySkipped(t *testing.T) {
	db := openTestDB(t)
	entry, err := db.AddHistory(models.SearchFilters{})
	require.NoError(t, err)
	assert.Nil(t, entry)
	entries, _ := db.History()
	assert.Empty(t, entries)
}

func TestHistorySummary(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*models.SearchFilters)
		expected string
	}{
		{"defaults", func(f *models.SearchFilters) {}, "All wallpapers"},
		{"query and categories", func(f *models.SearchFilters) {
			f.Query = "  city  "
			f.Categories = models.CategoryFlags{Anime: true, People: true}
		}, `"city" · Anime, People`},
		{"resolution wins over ratio", func(f *models.SearchFilters) {
			f.Resolution = "2560x1440"
			f.Ratio = "16x9"
		}, "2560x1440"},
		{"ratio", func(f *models.SearchFilters) { f.Ratio = "16x9" }, "16:9"},
		{"random sort with color", func(f *models.SearchFilters) {
			f.Sorting = models.SortRandom
			f.Color = "663399"
		}, "Random · Color: 663399"},
		{"nsfw and file type", func(f *models.SearchFilters) {
			f.IncludeNsfw = true
			f.FileType = "png"
		}, "NSFW · PNG"},
		{"nothing selected", func(f *models.SearchFilters) { f.Categories = models.CategoryFlags{} }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := models.DefaultFilters()
			tt.mutate(&f)
			assert.Equal(t, tt.expected, HistorySummary(f))
		})
	}
}

func TestAPIKey(t *testing.T) {
	db := openTestDB(t)

	key, err := db.APIKey()
	require.NoError(t, err)
	assert.Empty(t, key)

	require.NoError(t, db.SetAPIKey("  abcdef123456  "))
	key, _ = db.APIKey()
	assert.Equal(t, "abcdef123456", key)

	require.NoError(t, db.SetAPIKey(""))
	key, _ = db.APIKey()
	assert.Empty(t, key)
}
