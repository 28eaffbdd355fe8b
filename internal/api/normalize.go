package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go-wallhaven-browser/internal/models"

	log "github.com/sirupsen/logrus"
)

const createdAtLayout = "2006-01-02 15:04:05"

// NormalizeWallpaper maps one raw record to the internal entity. The second
// return is false when the record has neither a full image nor a thumbnail.
func NormalizeWallpaper(raw models.RawWallpaper) (models.Wallpaper, bool) {
	thumb := raw.Thumbs.Large
	if thumb == "" {
		thumb = raw.Thumbs.Original
	}
	if thumb == "" {
		thumb = raw.Path
	}
	if raw.Path == "" && thumb == "" {
		return models.Wallpaper{}, false
	}

	w := models.Wallpaper{
		ID:           raw.ID,
		Author:       "Anonymous",
		Favorites:    nonNegative(raw.Favorites),
		URL:          raw.URL,
		ShortURL:     raw.ShortURL,
		Width:        raw.DimensionX,
		Height:       raw.DimensionY,
		Resolution:   raw.Resolution,
		Ratio:        raw.Ratio,
		FullImageURL: raw.Path,
		ThumbnailURL: thumb,
		FileSize:     raw.FileSize,
		FileType:     raw.FileType,
		Source:       raw.Source,
		Colors:       append([]string{}, raw.Colors...),
		Tags:         make([]models.Tag, 0, len(raw.Tags)),
		Category:     raw.Category,
		Purity:       raw.Purity,
		Views:        nonNegative(raw.Views),
	}
	if w.FileSize < 0 {
		w.FileSize = 0
	}
	if w.Category == "" {
		w.Category = models.CategoryGeneral
	}
	if w.Purity == "" {
		w.Purity = models.PuritySFW
	}
	if w.Resolution == "" && w.Width > 0 && w.Height > 0 {
		w.Resolution = fmt.Sprintf("%dx%d", w.Width, w.Height)
	}

	names := make([]string, 0, len(raw.Tags))
	for _, t := range raw.Tags {
		w.Tags = append(w.Tags, models.Tag{ID: t.ID, Name: t.Name})
		if t.Name != "" {
			names = append(names, t.Name)
		}
	}
	if len(names) > 0 {
		w.Title = strings.Join(names, ", ")
	} else {
		w.Title = raw.ID
	}

	if raw.Uploader != nil {
		if raw.Uploader.Username != "" {
			w.Author = raw.Uploader.Username
		}
		w.AuthorGroup = raw.Uploader.Group
		w.AuthorAvatarURL = raw.Uploader.Avatar["128px"]
	}

	if raw.CreatedAt != "" {
		if ts, err := time.ParseInLocation(createdAtLayout, raw.CreatedAt, time.UTC); err == nil {
			w.CreatedAt = &ts
		} else {
			log.Debugf("Unparseable created_at %q for wallpaper %s", raw.CreatedAt, raw.ID)
		}
	}
	return w, true
}

// NormalizeSearchResponse converts the /search envelope into a PageResult.
func NormalizeSearchResponse(raw models.RawSearchResponse, page int) models.PageResult {
	result := models.PageResult{
		Wallpapers: make([]models.Wallpaper, 0, len(raw.Data)),
		Page:       page,
	}
	dropped := 0
	for _, r := range raw.Data {
		w, ok := NormalizeWallpaper(r)
		if !ok {
			dropped++
			continue
		}
		result.Wallpapers = append(result.Wallpapers, w)
	}
	if dropped > 0 {
		log.Debugf("Dropped %d wallpapers without usable image URLs from page %d", dropped, page)
	}

	if raw.Meta != nil {
		switch {
		case raw.Meta.LastPage.Valid:
			lp := raw.Meta.LastPage.Value
			result.LastPage = &lp
		case raw.Meta.LastPageAlt.Valid:
			lp := raw.Meta.LastPageAlt.Value
			result.LastPage = &lp
		}
		if raw.Meta.Total.Valid {
			total := nonNegative(raw.Meta.Total.Value)
			result.Total = &total
		}
		result.Seed = string(raw.Meta.Seed)
	}
	return result
}

// DecodeSearchResponse parses and normalizes a /search body.
func DecodeSearchResponse(body []byte, page int) (models.PageResult, error) {
	var raw models.RawSearchResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.PageResult{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return NormalizeSearchResponse(raw, page), nil
}

// DecodeDetailsResponse parses and normalizes a /w/{id} body.
func DecodeDetailsResponse(body []byte) (*models.Wallpaper, error) {
	var raw models.RawDetailsResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if raw.Data == nil {
		return nil, fmt.Errorf("%w: missing data block", ErrMalformedResponse)
	}
	w, ok := NormalizeWallpaper(*raw.Data)
	if !ok {
		return nil, fmt.Errorf("%w: wallpaper %s has no image URLs", ErrMalformedResponse, raw.Data.ID)
	}
	return &w, nil
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
