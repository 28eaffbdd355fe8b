package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go-wallhaven-browser/internal/archive"
	"go-wallhaven-browser/internal/config"
	"go-wallhaven-browser/internal/helpers"
	"go-wallhaven-browser/internal/models"
	"go-wallhaven-browser/internal/search"

	"github.com/gosuri/uilive"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	downloadFavoritesFlag  bool
	downloadSearchPageFlag int
	downloadSelectFlag     string
)

var downloadCmd = &cobra.Command{
	Use:   "download [WALLPAPER_ID...]",
	Short: "Download wallpapers, several at once as a ZIP",
	Long: `Downloads the given wallpapers. A single wallpaper is saved as a file,
several are fetched in two passes (primary origin, then the fallback origin
for whatever failed) and packed into one ZIP archive.

Wallpapers can also be taken from your favorites (--favorites) or from a page
of the configured search (--search-page with --select).`,
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	f := downloadCmd.Flags()
	f.StringP("output", "o", "", "Output directory (default is the save path)")
	f.Int("workers", 0, "Concurrent downloads in the first pass (0 uses config default)")
	f.Int("fallback-workers", 0, "Concurrent downloads in the fallback pass (0 uses config default)")
	f.Bool("skip-downloaded", false, "Skip wallpapers already recorded as downloaded")
	f.Bool("manifest", false, "Add manifest.json with checksums to archives")
	f.BoolVar(&downloadFavoritesFlag, "favorites", false, "Download all favorites")
	f.IntVar(&downloadSearchPageFlag, "search-page", 0, "Download from this page of the configured search")
	f.StringVar(&downloadSelectFlag, "select", "all", "Selection on the search page, e.g. 1,3-5 or all")
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(globalConfig)
	if err != nil {
		return err
	}
	defer a.Close()

	svc := a.searchService(false)
	defer svc.Close()

	var entities []models.Wallpaper
	switch {
	case downloadFavoritesFlag:
		favs, err := a.db.ListFavorites()
		if err != nil {
			return fmt.Errorf("listing favorites: %w", err)
		}
		for _, f := range favs {
			entities = append(entities, f.Wallpaper)
		}
	case downloadSearchPageFlag > 0:
		filters, err := config.SearchFilters(globalConfig.Search)
		if err != nil {
			return err
		}
		result, err := svc.FetchPage(ctx, filters, downloadSearchPageFlag)
		if err != nil {
			if msg := search.UserMessage(err); msg != "" {
				return errors.New(msg)
			}
			return err
		}
		for _, idx := range parseSelection(downloadSelectFlag, len(result.Wallpapers)) {
			entities = append(entities, result.Wallpapers[idx])
		}
	default:
		if len(args) == 0 {
			return fmt.Errorf("no wallpapers given: pass IDs, --favorites or --search-page")
		}
		entities, err = a.lookupWallpapers(ctx, svc, args)
		if err != nil {
			return err
		}
	}

	if globalConfig.Download.SkipDownloaded {
		entities = skipDownloaded(entities, a.db.IsDownloaded)
	}
	if len(entities) == 0 {
		log.Info("Nothing to download.")
		return nil
	}

	writer := uilive.New()

	tracker := archive.NewStatusTracker(time.Duration(globalConfig.Download.StatusResetMs) * time.Millisecond)
	tracker.OnChange = func(s archive.Status) { log.Debugf("[Download] Status: %s", s) }

	opts := config.ArchiveOptions(globalConfig)
	opts.Status = tracker
	opts.Progress = func(p archive.Progress) {
		line := fmt.Sprintf("Pass %d: %d/%d done, %d ok, %d failed", p.Phase, p.Done, p.Total, p.Succeeded, p.Failed)
		if p.LastID != "" {
			line += " (last " + p.LastID + ")"
		}
		fmt.Fprintln(writer, line)
	}

	builder, err := archive.NewBuilder(a.fileDownloader(), a.rewriter, opts)
	if err != nil {
		return err
	}

	log.Infof("Downloading %d wallpaper(s) to %s", len(entities), globalConfig.Download.OutputDir)
	writer.Start()
	report, dlErr := builder.Download(ctx, entities, globalConfig.Download.OutputDir)
	writer.Stop()

	if report != nil {
		if len(report.SucceededIDs) > 0 {
			if err := a.db.MarkDownloaded(report.SucceededIDs...); err != nil {
				log.WithError(err).Warn("Failed to update download ledger")
			}
		}
		printReport(report)
	}
	if dlErr != nil {
		return dlErr
	}
	if report != nil && report.Path == "" {
		return fmt.Errorf("none of the %d wallpapers could be downloaded", len(entities))
	}
	return nil
}

// skipDownloaded drops entities the ledger already knows.
func skipDownloaded(entities []models.Wallpaper, isDownloaded func(string) bool) []models.Wallpaper {
	out := entities[:0:0]
	for _, e := range entities {
		if isDownloaded(e.ID) {
			log.Debugf("Skipping %s, already downloaded", e.ID)
			continue
		}
		out = append(out, e)
	}
	return out
}

func printReport(r *archive.Report) {
	fmt.Printf("Batch %s: %d downloaded, %d failed, %s\n",
		r.BatchID, len(r.SucceededIDs), len(r.Failed), helpers.BytesToSize(uint64(r.Bytes)))
	if r.Path != "" {
		fmt.Printf("Saved to %s\n", r.Path)
	}
	if len(r.Failed) > 0 {
		msgs := make([]string, 0, len(r.Failed))
		for _, f := range r.Failed {
			msgs = append(msgs, f.Error())
		}
		fmt.Fprintf(os.Stderr, "Failed:\n  %s\n", strings.Join(msgs, "\n  "))
	}
}
