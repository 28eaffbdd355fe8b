package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"go-wallhaven-browser/internal/config"
	"go-wallhaven-browser/internal/database"
	"go-wallhaven-browser/internal/models"
	"go-wallhaven-browser/internal/search"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	searchWarmFlag bool
	searchJSONFlag bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search wallpapers",
	Long: `Searches Wallhaven with the configured filters, overridden by flags.
Each search is remembered in the history. Following pages are prefetched in
the background so --max-pages walks them from the cache.`,
	RunE: runSearch,
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Show how many wallpapers the site currently lists",
	RunE:  runCount,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(countCmd)

	f := searchCmd.Flags()
	f.StringP("query", "q", "", "Search terms, tags (#tag), uploader (@name) or like:ID")
	f.StringP("sorting", "s", "", "Sort order ("+strings.Join(models.SortOptions, ", ")+")")
	f.String("top-range", "", "Toplist range ("+strings.Join(models.TopRanges, ", ")+")")
	f.StringP("resolution", "r", "", "Minimum resolution, e.g. 1920x1080")
	f.Bool("exact", false, "Match the resolution exactly instead of as a minimum")
	f.String("ratio", "", "Aspect ratios, comma separated (e.g. 16x9,21x9 or landscape)")
	f.String("color", "", "Dominant color as hex, e.g. 660000")
	f.String("type", "", "File type constraint (png, jpg)")
	f.StringSliceP("categories", "c", nil, "Categories to include (general, anime, people)")
	f.Bool("nsfw", false, "Include sketchy and NSFW results (requires an API key)")
	f.IntP("page", "p", 0, "Page to start from")
	f.Int("max-pages", 0, "Number of pages to walk")
	f.Bool("prefetch", true, "Prefetch neighbouring pages into the cache")
	f.BoolVar(&searchWarmFlag, "warm-images", false, "Also preload thumbnails of prefetched pages and wait for them")
	f.BoolVar(&searchJSONFlag, "json", false, "Print results as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	filters, err := config.SearchFilters(globalConfig.Search)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(globalConfig)
	if err != nil {
		return err
	}
	defer a.Close()

	svc := a.searchService(searchWarmFlag)
	defer svc.Close()

	if entry, err := a.db.AddHistory(filters); err != nil {
		log.WithError(err).Warn("Failed to record search history")
	} else if entry != nil {
		log.Debugf("Recorded history entry %s: %s", entry.ID, entry.Summary)
	}

	page := max(globalConfig.Search.Page, 1)
	maxPages := max(globalConfig.Search.MaxPages, 1)

	for walked := 0; walked < maxPages; walked++ {
		result, err := svc.FetchPage(ctx, filters, page)
		if err != nil {
			return searchError(err)
		}
		pos := search.Pagination{Current: page, Total: svc.State().TotalPages}

		if walked == 0 && pos.GoTo(page) != page {
			log.Infof("Page %d is past the last page %d, showing that instead", page, pos.Total)
			pos.Current = pos.GoTo(page)
			page = pos.Current
			if result, err = svc.FetchPage(ctx, filters, page); err != nil {
				return searchError(err)
			}
		}

		if searchJSONFlag {
			if err := writeJSON(os.Stdout, result); err != nil {
				return err
			}
		} else {
			printPage(os.Stdout, result, pos.Total, a.db)
		}

		if globalConfig.Search.Prefetch {
			svc.PrefetchPages(filters, page, pos.Total)
		}
		if !pos.HasNext() {
			break
		}
		page = pos.Next()
	}

	if searchWarmFlag {
		log.Info("Waiting for background prefetch to finish...")
		svc.Wait()
	}
	return nil
}

func searchError(err error) error {
	if msg := search.UserMessage(err); msg != "" {
		return errors.New(msg)
	}
	return err
}

func runCount(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(globalConfig)
	if err != nil {
		return err
	}
	defer a.Close()

	svc := a.searchService(false)
	defer svc.Close()

	total, err := svc.TotalWallpaperCount(ctx)
	if err != nil {
		return fmt.Errorf("fetching wallpaper count: %w", err)
	}
	fmt.Printf("%d wallpapers\n", total)
	return nil
}

// printPage renders one page as a table. Favorites are starred and
// downloaded wallpapers ticked.
func printPage(w io.Writer, result models.PageResult, totalPages int, db *database.DB) {
	header := fmt.Sprintf("Page %d of %d", result.Page, totalPages)
	if result.Total != nil {
		header += fmt.Sprintf(" (%d wallpapers)", *result.Total)
	}
	if result.Seed != "" {
		header += " seed " + result.Seed
	}
	fmt.Fprintln(w, header)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tResolution\tCategory\tPurity\tFavs\tViews\t\tURL")
	fmt.Fprintln(tw, "-\t--\t----------\t--------\t------\t----\t-----\t\t---")
	for i, wp := range result.Wallpapers {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			i+1, wp.ID, wp.Resolution, wp.Category, wp.Purity, wp.Favorites, wp.Views,
			markers(db, wp.ID), wp.URL)
	}
	tw.Flush()
}

func markers(db *database.DB, id string) string {
	if db == nil {
		return ""
	}
	var m string
	if db.IsFavorite(id) {
		m += "*"
	}
	if db.IsDownloaded(id) {
		m += "D"
	}
	return m
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
