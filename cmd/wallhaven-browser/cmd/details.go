package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go-wallhaven-browser/internal/helpers"
	"go-wallhaven-browser/internal/models"

	"github.com/spf13/cobra"
)

var detailsJSONFlag bool

var detailsCmd = &cobra.Command{
	Use:   "details [WALLPAPER_ID]",
	Short: "Show the full record of one wallpaper",
	Args:  cobra.ExactArgs(1),
	RunE:  runDetails,
}

func init() {
	rootCmd.AddCommand(detailsCmd)
	detailsCmd.Flags().BoolVar(&detailsJSONFlag, "json", false, "Print the record as JSON")
}

func runDetails(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(globalConfig)
	if err != nil {
		return err
	}
	defer a.Close()

	svc := a.searchService(false)
	defer svc.Close()

	w, ok := svc.FetchEntityDetails(ctx, args[0])
	if !ok {
		return fmt.Errorf("wallpaper %s could not be loaded", args[0])
	}
	if detailsJSONFlag {
		return writeJSON(os.Stdout, w)
	}
	printDetails(os.Stdout, *w, markers(a.db, w.ID))
	return nil
}

func printDetails(out io.Writer, w models.Wallpaper, marks string) {
	tags := make([]string, 0, len(w.Tags))
	for _, t := range w.Tags {
		tags = append(tags, t.Name)
	}
	row := func(k, v string) {
		if v != "" {
			fmt.Fprintf(out, "%-12s %s\n", k+":", v)
		}
	}
	row("ID", w.ID)
	row("Title", w.Title)
	row("Author", w.Author)
	row("Resolution", w.Resolution)
	row("Ratio", w.Ratio)
	row("Category", w.Category)
	row("Purity", w.Purity)
	row("Size", helpers.BytesToSize(uint64(w.FileSize)))
	row("Type", w.FileType)
	row("Views", fmt.Sprint(w.Views))
	row("Favorites", fmt.Sprint(w.Favorites))
	if w.CreatedAt != nil {
		row("Uploaded", w.CreatedAt.Format("2006-01-02 15:04"))
	}
	row("Colors", strings.Join(w.Colors, ", "))
	row("Tags", strings.Join(tags, ", "))
	row("Source", w.Source)
	row("Page", w.URL)
	row("Image", w.FullImageURL)
	row("Local", marks)
}
