package cmd

import (
	"fmt"
	"os"

	"go-wallhaven-browser/internal/config"

	"github.com/spf13/cobra"
)

var (
	configRevealFlag bool
	configForceFlag  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as TOML",
	RunE: func(cmd *cobra.Command, args []string) error {
		return config.WriteTOML(os.Stdout, globalConfig, configRevealFlag)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [PATH]",
	Short: "Write a config file with the default values",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFilePath
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteDefaultFile(path, configForceFlag); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd)
	configShowCmd.Flags().BoolVar(&configRevealFlag, "reveal", false, "Print the API key unmasked")
	configInitCmd.Flags().BoolVarP(&configForceFlag, "force", "f", false, "Overwrite an existing file")
}
