package cmd

import (
	"fmt"

	"go-wallhaven-browser/internal/helpers"

	"github.com/spf13/cobra"
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Store, show or clear the Wallhaven API key",
	Long: `The key is needed for NSFW results. A key from --api-key, WALLHAVEN_APIKEY
or the config file takes precedence over the stored one.`,
}

var apikeySetCmd = &cobra.Command{
	Use:   "set [KEY]",
	Short: "Store the API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(globalConfig)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.db.SetAPIKey(args[0]); err != nil {
			return err
		}
		fmt.Println("API key stored.")
		return nil
	},
}

var apikeyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(globalConfig)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.db.ClearAPIKey(); err != nil {
			return err
		}
		fmt.Println("Stored API key removed.")
		return nil
	},
}

var apikeyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective API key, masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(globalConfig)
		if err != nil {
			return err
		}
		defer a.Close()

		key := a.apiKey()
		if key == "" {
			fmt.Println("No API key configured.")
			return nil
		}
		source := "stored"
		if a.cfg.APIKey != "" {
			source = "flag/environment/config"
		}
		fmt.Printf("%s (%s)\n", helpers.MaskSecret(key), source)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(apikeyCmd)
	apikeyCmd.AddCommand(apikeySetCmd, apikeyClearCmd, apikeyShowCmd)
}
