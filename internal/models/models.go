package models

import (
	"encoding/json"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"
)

// FlexString unmarshals from either a JSON string or a JSON number.
// The search endpoint echoes the random seed in both shapes.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler for FlexString
func (s *FlexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = FlexString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = FlexString(num.String())
	return nil
}

// FlexInt unmarshals from either a JSON number or a numeric JSON string
// (per_page and last_page are served as strings on some deployments).
type FlexInt struct {
	Value int
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler for FlexInt
func (i *FlexInt) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*i = FlexInt{}
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*i = FlexInt{Value: n, Valid: true}
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	n, err := strconv.Atoi(strings.TrimSpace(str))
	if err != nil {
		*i = FlexInt{}
		return nil
	}
	*i = FlexInt{Value: n, Valid: true}
	return nil
}

// MarshalJSON implements json.Marshaler for FlexInt
func (i FlexInt) MarshalJSON() ([]byte, error) {
	if !i.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(i.Value)), nil
}

type (
	// Config holds the application's configuration settings.
	Config struct {
		SavePath            string         `toml:"SavePath" json:"SavePath"`
		DatabasePath        string         `toml:"DatabasePath" json:"DatabasePath"`
		BleveIndexPath      string         `toml:"BleveIndexPath" json:"BleveIndexPath"`
		LogLevel            string         `toml:"LogLevel" json:"LogLevel"`
		LogFormat           string         `toml:"LogFormat" json:"LogFormat"`
		LogFile             string         `toml:"LogFile" json:"LogFile"`
		APIKey              string         `toml:"ApiKey" json:"ApiKey"`
		APIBaseURL          string         `toml:"ApiBaseUrl" json:"ApiBaseUrl"`
		Search              SearchConfig   `toml:"Search" json:"Search"`
		Images              ImagesConfig   `toml:"Images" json:"Images"`
		Download            DownloadConfig `toml:"Download" json:"Download"`
		Proxy               ProxyConfig    `toml:"Proxy" json:"Proxy"`
		APIDelayMs          int            `toml:"ApiDelayMs" json:"ApiDelayMs"`
		APIClientTimeoutSec int            `toml:"ApiClientTimeoutSec" json:"ApiClientTimeoutSec"`
		MaxRetries          int            `toml:"MaxRetries" json:"MaxRetries"`
		InitialRetryDelayMs int            `toml:"InitialRetryDelayMs" json:"InitialRetryDelayMs"`
		CacheTTLSec         int            `toml:"CacheTtlSec" json:"CacheTtlSec"`
		LogApiRequests      bool           `toml:"LogApiRequests" json:"LogApiRequests"`
	}

	// SearchConfig holds the default filter set used by the 'search' command.
	SearchConfig struct {
		Query      string   `toml:"Query"`
		Sorting    string   `toml:"Sorting"`
		TopRange   string   `toml:"TopRange"`
		Resolution string   `toml:"Resolution"`
		Ratio      string   `toml:"Ratio"`
		Color      string   `toml:"Color"`
		FileType   string   `toml:"FileType"`
		Categories []string `toml:"Categories"`
		// Integers
		Page     int `toml:"Page"`
		MaxPages int `toml:"MaxPages"`
		// Bools
		Nsfw            bool `toml:"Nsfw"`
		ExactResolution bool `toml:"ExactResolution"`
		Prefetch        bool `toml:"Prefetch"`
	}

	// ImagesConfig holds the image load controller settings.
	ImagesConfig struct {
		MaxRetries        int `toml:"MaxRetries"`
		RetryDelayBaseMs  int `toml:"RetryDelayBaseMs"`
		WatchdogTimeoutMs int `toml:"WatchdogTimeoutMs"`
		AttemptTimeoutMs  int `toml:"AttemptTimeoutMs"`
		WarmConcurrency   int `toml:"WarmConcurrency"`
	}

	// DownloadConfig holds settings for the 'download' command and the archive builder.
	DownloadConfig struct {
		OutputDir     string `toml:"OutputDir"`
		EntryPattern  string `toml:"EntryPattern"`
		SinglePattern string `toml:"SinglePattern"`
		ArchiveFolder string `toml:"ArchiveFolder"`
		// Integers
		Phase1Concurrency int `toml:"Phase1Concurrency"`
		Phase1Attempts    int `toml:"Phase1Attempts"`
		Phase2Concurrency int `toml:"Phase2Concurrency"`
		Phase2Attempts    int `toml:"Phase2Attempts"`
		RetryDelayMs      int `toml:"RetryDelayMs"`
		StatusResetMs     int `toml:"StatusResetMs"`
		// Bools
		SkipDownloaded bool `toml:"SkipDownloaded"`
		WriteManifest  bool `toml:"WriteManifest"`
	}

	// ProxyConfig holds the origin rewrite rules and the 'serve' listener settings.
	ProxyConfig struct {
		ListenAddr        string   `toml:"ListenAddr"`
		ImageProxyBase    string   `toml:"ImageProxyBase"`
		ThumbProxyBase    string   `toml:"ThumbProxyBase"`
		FallbackImageHost string   `toml:"FallbackImageHost"`
		AllowedOrigins    []string `toml:"AllowedOrigins"`
	}
)

// CategoryFlags selects which of the three content categories to include.
type CategoryFlags struct {
	General bool `json:"general"`
	Anime   bool `json:"anime"`
	People  bool `json:"people"`
}

// Bits renders the flags as the fixed-width "general anime people" digit string.
func (c CategoryFlags) Bits() string {
	b := []byte("000")
	if c.General {
		b[0] = '1'
	}
	if c.Anime {
		b[1] = '1'
	}
	if c.People {
		b[2] = '1'
	}
	return string(b)
}

// Any reports whether at least one category is selected.
func (c CategoryFlags) Any() bool {
	return c.General || c.Anime || c.People
}

// DefaultCategories matches the browser's initial state: all three enabled.
func DefaultCategories() CategoryFlags {
	return CategoryFlags{General: true, Anime: true, People: true}
}

// SearchFilters is the user-controlled query configuration.
type SearchFilters struct {
	Query           string        `json:"query"`
	Categories      CategoryFlags `json:"categories"`
	IncludeNsfw     bool          `json:"includeNsfw"`
	Sorting         string        `json:"sorting"`
	TopRange        string        `json:"topRange"`
	Resolution      string        `json:"resolution"`
	ExactResolution bool          `json:"exactResolution"`
	Ratio           string        `json:"ratio"`
	Color           string        `json:"color"`
	FileType        string        `json:"fileType"`
}

// DefaultFilters returns the filter set a fresh session starts from.
func DefaultFilters() SearchFilters {
	return SearchFilters{
		Categories: DefaultCategories(),
		Sorting:    SortDateAdded,
		TopRange:   TopRange1M,
	}
}

// IsRandom reports whether the filter set uses the seeded random sort.
func (f SearchFilters) IsRandom() bool {
	return f.Sorting == SortRandom
}

// Tag is one tag attached to a wallpaper.
type Tag struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Wallpaper is the normalized representation of one remote image record.
type Wallpaper struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Author          string     `json:"author"`
	AuthorGroup     string     `json:"authorGroup,omitempty"`
	AuthorAvatarURL string     `json:"authorAvatarUrl,omitempty"`
	Favorites       int        `json:"favorites"`
	URL             string     `json:"url"`
	ShortURL        string     `json:"shortUrl,omitempty"`
	Width           int        `json:"width"`
	Height          int        `json:"height"`
	Resolution      string     `json:"resolution,omitempty"`
	Ratio           string     `json:"ratio,omitempty"`
	FullImageURL    string     `json:"fullImageUrl"`
	ThumbnailURL    string     `json:"thumbnailUrl"`
	FileSize        int64      `json:"fileSize"`
	FileType        string     `json:"fileType,omitempty"`
	Source          string     `json:"source,omitempty"`
	Colors          []string   `json:"colors"`
	Tags            []Tag      `json:"tags"`
	Category        string     `json:"category"`
	Purity          string     `json:"purity"`
	Views           int        `json:"views"`
	CreatedAt       *time.Time `json:"createdAt,omitempty"`
}

// Ext returns the file extension (without dot) of the full-resolution image,
// falling back to the MIME type and finally to "jpg".
func (w Wallpaper) Ext() string {
	if w.FullImageURL != "" {
		p := w.FullImageURL
		if i := strings.IndexAny(p, "?#"); i >= 0 {
			p = p[:i]
		}
		if ext := strings.TrimPrefix(path.Ext(p), "."); ext != "" {
			return strings.ToLower(ext)
		}
	}
	switch w.FileType {
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	}
	return "jpg"
}

// PageResult is one fetch outcome.
type PageResult struct {
	Wallpapers []Wallpaper `json:"wallpapers"`
	Page       int         `json:"page"`
	LastPage   *int        `json:"lastPage,omitempty"`
	Total      *int        `json:"total,omitempty"`
	Seed       string      `json:"seed,omitempty"`
}

// TotalPages returns LastPage or 1 when the remote did not report it.
func (p PageResult) TotalPages() int {
	if p.LastPage != nil && *p.LastPage > 0 {
		return *p.LastPage
	}
	return 1
}

// RequestDescriptor is a fully formed request against the remote API.
type RequestDescriptor struct {
	URL     string
	Headers http.Header
}

// HistoryEntry is one remembered search.
type HistoryEntry struct {
	ID        string        `json:"id"`
	Filters   SearchFilters `json:"filters"`
	Summary   string        `json:"summary"`
	Timestamp time.Time     `json:"timestamp"`
}

// Favorite is a saved wallpaper.
type Favorite struct {
	Wallpaper
	FavoritedAt time.Time `json:"favoritedAt"`
}

// --- Raw API payloads ---

// RawThumbs holds the thumbnail variants of a wallpaper.
type RawThumbs struct {
	Large    string `json:"large"`
	Original string `json:"original"`
	Small    string `json:"small"`
}

// RawUploader is the uploader block of the details endpoint.
type RawUploader struct {
	Username string            `json:"username"`
	Group    string            `json:"group"`
	Avatar   map[string]string `json:"avatar"`
}

// RawTag is a tag as served by the details endpoint.
type RawTag struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Alias      string `json:"alias"`
	CategoryID int    `json:"category_id"`
	Category   string `json:"category"`
	Purity     string `json:"purity"`
}

// RawWallpaper is a single wallpaper record as served by the API.
type RawWallpaper struct {
	ID         string       `json:"id"`
	URL        string       `json:"url"`
	ShortURL   string       `json:"short_url"`
	Views      int          `json:"views"`
	Favorites  int          `json:"favorites"`
	Source     string       `json:"source"`
	Purity     string       `json:"purity"`
	Category   string       `json:"category"`
	DimensionX int          `json:"dimension_x"`
	DimensionY int          `json:"dimension_y"`
	Resolution string       `json:"resolution"`
	Ratio      string       `json:"ratio"`
	FileSize   int64        `json:"file_size"`
	FileType   string       `json:"file_type"`
	CreatedAt  string       `json:"created_at"`
	Colors     []string     `json:"colors"`
	Path       string       `json:"path"`
	Thumbs     RawThumbs    `json:"thumbs"`
	Tags       []RawTag     `json:"tags"`
	Uploader   *RawUploader `json:"uploader"`
}

// RawMeta is the pagination block of the search endpoint.
type RawMeta struct {
	CurrentPage  FlexInt    `json:"current_page"`
	LastPage     FlexInt    `json:"last_page"`
	LastPageAlt  FlexInt    `json:"lastPage"`
	PerPage      FlexInt    `json:"per_page"`
	Total        FlexInt    `json:"total"`
	Seed         FlexString `json:"seed"`
	QueryEchoRaw any        `json:"query"`
}

// RawSearchResponse is the envelope returned by /search.
type RawSearchResponse struct {
	Data []RawWallpaper `json:"data"`
	Meta *RawMeta       `json:"meta"`
}

// RawDetailsResponse is the envelope returned by /w/{id}.
type RawDetailsResponse struct {
	Data *RawWallpaper `json:"data"`
}
