package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var downloadedCmd = &cobra.Command{
	Use:   "downloaded",
	Short: "Inspect the ledger of downloaded wallpapers",
}

var downloadedListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ids recorded as downloaded",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(globalConfig)
		if err != nil {
			return err
		}
		defer a.Close()

		ids, err := a.db.ListDownloaded()
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var downloadedRemoveCmd = &cobra.Command{
	Use:   "remove [WALLPAPER_ID...]",
	Short: "Forget that wallpapers were downloaded",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(globalConfig)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.db.RemoveDownloaded(args...)
	},
}

var downloadedClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the download ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(globalConfig)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.db.ClearDownloaded()
		if err != nil {
			return err
		}
		fmt.Printf("Forgot %d downloads\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(downloadedCmd)
	downloadedCmd.AddCommand(downloadedListCmd, downloadedRemoveCmd, downloadedClearCmd)
}
