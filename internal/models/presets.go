package models

// Sort orders understood by the search endpoint.
const (
	SortDateAdded = "date_added"
	SortRelevance = "relevance"
	SortRandom    = "random"
	SortViews     = "views"
	SortFavorites = "favorites"
	SortToplist   = "toplist"
	SortHot       = "hot"
)

// Toplist ranges, only meaningful with SortToplist.
const (
	TopRange1d = "1d"
	TopRange3d = "3d"
	TopRange1w = "1w"
	TopRange1M = "1M"
	TopRange3M = "3M"
	TopRange6M = "6M"
	TopRange1y = "1y"
)

// Category and purity names as they appear on normalized wallpapers.
const (
	CategoryGeneral = "general"
	CategoryAnime   = "anime"
	CategoryPeople  = "people"

	PuritySFW     = "sfw"
	PuritySketchy = "sketchy"
	PurityNSFW    = "nsfw"
)

// Purity strings. Only these two values are ever sent.
const (
	PuritySFWOnly = "100"
	PurityAll     = "111"
)

// SortOptions lists the accepted sort keys in display order.
var SortOptions = []string{
	SortDateAdded, SortRelevance, SortRandom, SortViews, SortFavorites, SortToplist, SortHot,
}

// TopRanges lists the accepted toplist ranges.
var TopRanges = []string{
	TopRange1d, TopRange3d, TopRange1w, TopRange1M, TopRange3M, TopRange6M, TopRange1y,
}

// FileTypes lists the file-type constraints the query builder can merge into q.
var FileTypes = []string{"png", "jpg"}

// ColorPalette is the set of colors the remote color filter accepts.
var ColorPalette = []string{
	"660000", "990000", "cc0000", "cc3333", "ea4c88", "993399", "663399", "333399",
	"0066cc", "0099cc", "66cccc", "77cc33", "669900", "336600", "666600", "999900",
	"cccc33", "ffff00", "ffcc33", "ff9900", "ff6600", "cc6633", "996633", "663300",
	"000000", "999999", "cccccc", "ffffff", "424153",
}

// RatioPresets lists the aspect ratio tokens offered by the browser.
var RatioPresets = []string{
	"landscape", "portrait",
	"16x9", "16x10", "21x9", "32x9", "48x9",
	"9x16", "10x16", "9x18",
	"1x1", "3x2", "4x3", "5x4",
}

// ResolutionPresets lists the common minimum resolutions.
var ResolutionPresets = []string{
	"1280x720", "1600x900", "1920x1080", "2560x1440", "3840x2160",
	"1280x800", "1600x1000", "1920x1200", "2560x1600", "3840x2400",
	"2560x1080", "3440x1440", "3840x1600",
	"1280x960", "1600x1200", "1920x1440", "2560x1920", "3840x2880",
}

// Contains reports whether v is in list.
func Contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
