package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"go-wallhaven-browser/internal/index"
	"go-wallhaven-browser/internal/models"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var favoritesSearchLimitFlag int

var favoritesCmd = &cobra.Command{
	Use:     "favorites",
	Aliases: []string{"fav"},
	Short:   "Manage locally stored favorites",
	Long: `Favorites are stored with their full record so they can be listed,
searched and downloaded without hitting the API again.`,
}

var favoritesAddCmd = &cobra.Command{
	Use:   "add [WALLPAPER_ID...]",
	Short: "Add wallpapers to favorites",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFavoritesAdd,
}

var favoritesRemoveCmd = &cobra.Command{
	Use:   "remove [WALLPAPER_ID...]",
	Short: "Remove wallpapers from favorites",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFavoritesRemove,
}

var favoritesToggleCmd = &cobra.Command{
	Use:   "toggle [WALLPAPER_ID]",
	Short: "Add a wallpaper to favorites or remove it if present",
	Args:  cobra.ExactArgs(1),
	RunE:  runFavoritesToggle,
}

var favoritesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List favorites, oldest first",
	RunE:  runFavoritesList,
}

var favoritesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all favorites",
	RunE:  runFavoritesClear,
}

var favoritesSearchCmd = &cobra.Command{
	Use:   "search [QUERY]",
	Short: "Full-text search over favorites (tags, title, author, colors)",
	Long: `Searches the local favorites index. The query uses the bleve query string
syntax, e.g. "tags:space", "+category:anime -purity:sketchy" or just words.`,
	Args: cobra.ExactArgs(1),
	RunE: runFavoritesSearch,
}

var favoritesReindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the favorites search index from the database",
	RunE:  runFavoritesReindex,
}

func init() {
	rootCmd.AddCommand(favoritesCmd)
	favoritesCmd.AddCommand(favoritesAddCmd, favoritesRemoveCmd, favoritesToggleCmd,
		favoritesListCmd, favoritesClearCmd, favoritesSearchCmd, favoritesReindexCmd)
	favoritesSearchCmd.Flags().IntVarP(&favoritesSearchLimitFlag, "limit", "l", 50, "Maximum number of results")
}

// openFavoritesIndex opens the bleve index, rebuilding it from the
// database when it did not exist yet.
func openFavoritesIndex(a *app) (*index.Index, error) {
	fresh := !index.Exists(a.cfg.BleveIndexPath)
	idx, err := index.Open(a.cfg.BleveIndexPath)
	if err != nil {
		return nil, err
	}
	if fresh {
		favs, err := a.db.ListFavorites()
		if err == nil && len(favs) > 0 {
			log.Infof("Indexing %d existing favorites", len(favs))
			err = idx.Rebuild(favs)
		}
		if err != nil {
			idx.Close()
			return nil, err
		}
	}
	return idx, nil
}

func withFavorites(fn func(a *app, idx *index.Index) error) error {
	a, err := openApp(globalConfig)
	if err != nil {
		return err
	}
	defer a.Close()

	idx, err := openFavoritesIndex(a)
	if err != nil {
		return err
	}
	defer idx.Close()
	return fn(a, idx)
}

func runFavoritesAdd(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	return withFavorites(func(a *app, idx *index.Index) error {
		svc := a.searchService(false)
		defer svc.Close()

		entities, err := a.lookupWallpapers(ctx, svc, args)
		if err != nil {
			return err
		}
		for _, w := range entities {
			added, err := a.db.AddFavorite(w)
			if err != nil {
				return err
			}
			if !added {
				fmt.Printf("%s is already a favorite\n", w.ID)
				continue
			}
			if err := idx.IndexWallpaper(w); err != nil {
				log.WithError(err).Warnf("Failed to index %s", w.ID)
			}
			fmt.Printf("Added %s\n", w.ID)
		}
		return nil
	})
}

func runFavoritesRemove(cmd *cobra.Command, args []string) error {
	return withFavorites(func(a *app, idx *index.Index) error {
		for _, id := range args {
			if err := a.db.RemoveFavorite(id); err != nil {
				return err
			}
			if err := idx.Delete(id); err != nil {
				log.WithError(err).Warnf("Failed to remove %s from index", id)
			}
			fmt.Printf("Removed %s\n", id)
		}
		return nil
	})
}

func runFavoritesToggle(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	return withFavorites(func(a *app, idx *index.Index) error {
		id := args[0]
		if a.db.IsFavorite(id) {
			if err := a.db.RemoveFavorite(id); err != nil {
				return err
			}
			fmt.Printf("Removed %s\n", id)
			return idx.Delete(id)
		}

		svc := a.searchService(false)
		defer svc.Close()
		entities, err := a.lookupWallpapers(ctx, svc, args)
		if err != nil {
			return err
		}
		if _, err := a.db.ToggleFavorite(entities[0]); err != nil {
			return err
		}
		fmt.Printf("Added %s\n", id)
		return idx.IndexWallpaper(entities[0])
	})
}

func runFavoritesList(cmd *cobra.Command, args []string) error {
	a, err := openApp(globalConfig)
	if err != nil {
		return err
	}
	defer a.Close()

	favs, err := a.db.ListFavorites()
	if err != nil {
		return err
	}
	if len(favs) == 0 {
		fmt.Println("No favorites yet.")
		return nil
	}
	printFavorites(os.Stdout, favs)
	return nil
}

func runFavoritesClear(cmd *cobra.Command, args []string) error {
	return withFavorites(func(a *app, idx *index.Index) error {
		n, err := a.db.ClearFavorites()
		if err != nil {
			return err
		}
		if err := idx.Rebuild(nil); err != nil {
			return err
		}
		fmt.Printf("Removed %d favorites\n", n)
		return nil
	})
}

func runFavoritesSearch(cmd *cobra.Command, args []string) error {
	return withFavorites(func(a *app, idx *index.Index) error {
		ids, err := idx.Search(args[0], favoritesSearchLimitFlag)
		if err != nil {
			return err
		}
		var favs []models.Favorite
		for _, id := range ids {
			f, err := a.db.GetFavorite(id)
			if err != nil {
				log.Debugf("Index hit %s is not a favorite anymore", id)
				continue
			}
			favs = append(favs, f)
		}
		if len(favs) == 0 {
			fmt.Println("No matching favorites.")
			return nil
		}
		printFavorites(os.Stdout, favs)
		return nil
	})
}

func runFavoritesReindex(cmd *cobra.Command, args []string) error {
	return withFavorites(func(a *app, idx *index.Index) error {
		favs, err := a.db.ListFavorites()
		if err != nil {
			return err
		}
		if err := idx.Rebuild(favs); err != nil {
			return err
		}
		fmt.Printf("Indexed %d favorites\n", len(favs))
		return nil
	})
}

func printFavorites(w io.Writer, favs []models.Favorite) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tResolution\tCategory\tPurity\tAuthor\tAdded")
	fmt.Fprintln(tw, "--\t----------\t--------\t------\t------\t-----")
	for _, f := range favs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			f.ID, f.Resolution, f.Category, f.Purity, truncateString(f.Author, 20),
			f.FavoritedAt.Local().Format("2006-01-02 15:04"))
	}
	tw.Flush()
}
