package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go-wallhaven-browser/internal/models"

	"github.com/google/uuid"
)

// MaxHistoryEntries caps the stored search history.
const MaxHistoryEntries = 20

const (
	favoritePrefix   = "fav_"
	downloadedPrefix = "dl_"
	historyKey       = "history"
	apiKeyKey        = "meta_apikey"
)

// now is replaced in tests.
var now = time.Now

// --- Favorites ---

// AddFavorite stores w. Adding an existing favorite keeps the original
// timestamp and reports false.
func (d *DB) AddFavorite(w models.Wallpaper) (bool, error) {
	if w.ID == "" {
		return false, errors.New("wallpaper has no id")
	}
	key := []byte(favoritePrefix + w.ID)
	if d.Has(key) {
		return false, nil
	}
	data, err := json.Marshal(models.Favorite{Wallpaper: w, FavoritedAt: now().UTC()})
	if err != nil {
		return false, fmt.Errorf("encoding favorite %s: %w", w.ID, err)
	}
	return true, d.Put(key, data)
}

// RemoveFavorite deletes the favorite with id.
func (d *DB) RemoveFavorite(id string) error {
	return d.Delete([]byte(favoritePrefix + id))
}

// ToggleFavorite adds w if missing, removes it otherwise. It returns the new state.
func (d *DB) ToggleFavorite(w models.Wallpaper) (bool, error) {
	if d.IsFavorite(w.ID) {
		return false, d.RemoveFavorite(w.ID)
	}
	_, err := d.AddFavorite(w)
	return err == nil, err
}

// IsFavorite reports whether id is saved.
func (d *DB) IsFavorite(id string) bool {
	return id != "" && d.Has([]byte(favoritePrefix+id))
}

// GetFavorite returns a single favorite.
func (d *DB) GetFavorite(id string) (models.Favorite, error) {
	var fav models.Favorite
	data, err := d.Get([]byte(favoritePrefix + id))
	if err != nil {
		return fav, err
	}
	if err := json.Unmarshal(data, &fav); err != nil {
		return fav, fmt.Errorf("decoding favorite %s: %w", id, err)
	}
	return fav, nil
}

// ListFavorites returns all favorites, oldest first.
func (d *DB) ListFavorites() ([]models.Favorite, error) {
	var favs []models.Favorite
	err := d.Fold([]byte(favoritePrefix), func(key, value []byte) error {
		var fav models.Favorite
		if err := json.Unmarshal(value, &fav); err != nil {
			return fmt.Errorf("decoding %s: %w", key, err)
		}
		favs = append(favs, fav)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(favs, func(i, j int) bool {
		return favs[i].FavoritedAt.Before(favs[j].FavoritedAt)
	})
	return favs, nil
}

// ClearFavorites removes every favorite and returns how many there were.
func (d *DB) ClearFavorites() (int, error) {
	return d.DeletePrefix([]byte(favoritePrefix))
}

// --- Downloaded ledger ---

// MarkDownloaded records ids as downloaded. Empty ids are ignored.
func (d *DB) MarkDownloaded(ids ...string) error {
	stamp := []byte(now().UTC().Format(time.RFC3339))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if err := d.Put([]byte(downloadedPrefix+id), stamp); err != nil {
			return err
		}
	}
	return nil
}

// IsDownloaded reports whether id is in the ledger.
func (d *DB) IsDownloaded(id string) bool {
	return id != "" && d.Has([]byte(downloadedPrefix+id))
}

// RemoveDownloaded drops ids from the ledger.
func (d *DB) RemoveDownloaded(ids ...string) error {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if err := d.Delete([]byte(downloadedPrefix + id)); err != nil {
			return err
		}
	}
	return nil
}

// ListDownloaded returns the ledger ids, sorted.
func (d *DB) ListDownloaded() ([]string, error) {
	keys, err := d.Keys([]byte(downloadedPrefix))
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = strings.TrimPrefix(k, downloadedPrefix)
	}
	sort.Strings(ids)
	return ids, nil
}

// ClearDownloaded empties the ledger.
func (d *DB) ClearDownloaded() (int, error) {
	return d.DeletePrefix([]byte(downloadedPrefix))
}

// --- Search history ---

// History returns the stored searches, newest first.
func (d *DB) History() ([]models.HistoryEntry, error) {
	data, err := d.Get([]byte(historyKey))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []models.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding history: %w", err)
	}
	return entries, nil
}

func (d *DB) putHistory(entries []models.HistoryEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	return d.Put([]byte(historyKey), data)
}

// AddHistory records a search. Searches without a summary are skipped and
// an earlier entry with the same summary is replaced by the new one.
func (d *DB) AddHistory(f models.SearchFilters) (*models.HistoryEntry, error) {
	summary := HistorySummary(f)
	if summary == "" {
		return nil, nil
	}
	entries, err := d.History()
	if err != nil {
		return nil, err
	}

	entry := models.HistoryEntry{
		ID:        uuid.NewString(),
		Filters:   f,
		Summary:   summary,
		Timestamp: now().UTC(),
	}
	next := []models.HistoryEntry{entry}
	for _, e := range entries {
		if e.Summary != summary {
			next = append(next, e)
		}
	}
	if len(next) > MaxHistoryEntries {
		next = next[:MaxHistoryEntries]
	}
	return &entry, d.putHistory(next)
}

// RemoveHistory drops the entry with id.
func (d *DB) RemoveHistory(id string) error {
	entries, err := d.History()
	if err != nil {
		return err
	}
	next := entries[:0]
	for _, e := range entries {
		if e.ID != id {
			next = append(next, e)
		}
	}
	return d.putHistory(next)
}

// ClearHistory forgets every search.
func (d *DB) ClearHistory() error {
	return d.Delete([]byte(historyKey))
}

var sortLabels = map[string]string{
	models.SortRelevance: "Relevance",
	models.SortRandom:    "Random",
	models.SortViews:     "Views",
	models.SortFavorites: "Favorites",
	models.SortToplist:   "Toplist",
	models.SortHot:       "Hot",
}

// HistorySummary renders filters as a short human readable line. It returns
// "" for a filter set that says nothing.
func HistorySummary(f models.SearchFilters) string {
	var parts []string

	if q := strings.TrimSpace(f.Query); q != "" {
		parts = append(parts, `"`+q+`"`)
	}

	var cats []string
	if f.Categories.General {
		cats = append(cats, "General")
	}
	if f.Categories.Anime {
		cats = append(cats, "Anime")
	}
	if f.Categories.People {
		cats = append(cats, "People")
	}
	if len(cats) > 0 && len(cats) < 3 {
		parts = append(parts, strings.Join(cats, ", "))
	}

	if f.IncludeNsfw {
		parts = append(parts, "NSFW")
	}

	if f.Resolution != "" {
		res := f.Resolution
		if f.ExactResolution {
			res += " exact"
		}
		parts = append(parts, res)
	} else if f.Ratio != "" {
		parts = append(parts, strings.ReplaceAll(f.Ratio, "x", ":"))
	}

	if label, ok := sortLabels[f.Sorting]; ok {
		if f.Sorting == models.SortToplist && f.TopRange != "" {
			label += " " + f.TopRange
		}
		parts = append(parts, label)
	}

	if f.Color != "" {
		parts = append(parts, "Color: "+f.Color)
	}
	if f.FileType != "" {
		parts = append(parts, strings.ToUpper(f.FileType))
	}

	if len(parts) == 0 {
		if f.Categories.General && f.Categories.Anime && f.Categories.People {
			return "All wallpapers"
		}
		return ""
	}
	return strings.Join(parts, " · ")
}

// --- Stored API key ---

// APIKey returns the stored key or "".
func (d *DB) APIKey() (string, error) {
	data, err := d.Get([]byte(apiKeyKey))
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return string(data), err
}

// SetAPIKey stores key. An empty key clears it.
func (d *DB) SetAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return d.ClearAPIKey()
	}
	return d.Put([]byte(apiKeyKey), []byte(key))
}

// ClearAPIKey removes the stored key.
func (d *DB) ClearAPIKey() error {
	return d.Delete([]byte(apiKeyKey))
}
