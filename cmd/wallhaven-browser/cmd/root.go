package cmd

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go-wallhaven-browser/internal/api"
	"go-wallhaven-browser/internal/config"
	"go-wallhaven-browser/internal/models"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	cfgFile        string
	envFile        string
	logLevel       string
	logFormat      string
	logFile        string
	logApiFlag     bool
	savePathFlag   string
	apiDelayFlag   int
	apiTimeoutFlag int
	apiKeyFlag     string
)

// globalConfig holds the loaded configuration
var globalConfig models.Config

// globalHttpTransport holds the configured HTTP transport (base or logging-wrapped)
var globalHttpTransport http.RoundTripper

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wallhaven-browser",
	Short: "Browse, favorite and download wallpapers from Wallhaven",
	Long: `Wallhaven Browser searches wallhaven.cc with the full filter set,
keeps favorites, search history and a download ledger locally, downloads
selections as a ZIP and can run the local API and image proxy.`,
	PersistentPreRunE: loadGlobalConfig,
	SilenceUsage:      true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	api.CloseAllLoggingTransports()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", config.DefaultConfigFilePath, "Configuration file path")
	pf.StringVar(&envFile, "env-file", config.DefaultEnvFile, "Env file with WALLHAVEN_* variables")
	pf.StringVar(&logLevel, "log-level", config.DefaultLogLevel, "Logging level (trace, debug, info, warn, error, fatal, panic)")
	pf.StringVar(&logFormat, "log-format", config.DefaultLogFormat, "Logging format (text, json)")
	pf.StringVar(&logFile, "log-file", "", "Also write logs to this file, rotated at 10MB")
	pf.BoolVar(&logApiFlag, "log-api", false, "Log API requests/responses to api.log (overrides config)")
	pf.StringVar(&savePathFlag, "save-path", "", "Directory for state, favorites index and downloads (overrides config)")
	pf.IntVar(&apiDelayFlag, "api-delay", -1, "Delay between API calls in ms (overrides config, -1 uses config default)")
	pf.IntVar(&apiTimeoutFlag, "api-timeout", -1, "Timeout for API HTTP client in seconds (overrides config, -1 uses config default)")
	pf.StringVar(&apiKeyFlag, "api-key", "", "Wallhaven API key (overrides config and the stored key)")
}

// initLogging applies level, format and output to the global logger.
func initLogging(level, format, file string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("Invalid log level '%s', using info", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	if file == "" {
		log.SetOutput(os.Stderr)
		return
	}
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		log.WithError(err).Warnf("Cannot create log directory for %s, logging to stderr only", file)
		return
	}
	log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
		Filename:   file,
		MaxSize:    10, // MB
		MaxBackups: 2,
		MaxAge:     28, // days
		Compress:   true,
	}))
}

// loadGlobalConfig collects the flags the user actually set and hands them
// to config.Initialize.
func loadGlobalConfig(cmd *cobra.Command, args []string) error {
	// Early logging so Initialize can be debugged; re-applied below from the final config.
	initLogging(logLevel, logFormat, "")

	cfg, transport, err := config.Initialize(collectCliFlags(cmd))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	globalConfig = cfg
	globalHttpTransport = transport

	initLogging(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	log.Debugf("Effective save path: %s", cfg.SavePath)
	return nil
}

// collectCliFlags builds config.CliFlags from the flags changed on cmd.
// Unknown flag names are simply never set, so one builder serves every command.
func collectCliFlags(cmd *cobra.Command) config.CliFlags {
	fs := cmd.Flags()
	flags := config.CliFlags{
		ConfigFilePath:      stringFlag(cmd, "config"),
		EnvFilePath:         stringFlag(cmd, "env-file"),
		LogLevel:            stringFlag(cmd, "log-level"),
		LogFormat:           stringFlag(cmd, "log-format"),
		LogFile:             stringFlag(cmd, "log-file"),
		LogApiRequests:      boolFlag(cmd, "log-api"),
		SavePath:            stringFlag(cmd, "save-path"),
		APIDelayMs:          nonNegativeIntFlag(cmd, "api-delay"),
		APIClientTimeoutSec: nonNegativeIntFlag(cmd, "api-timeout"),
		APIKey:              stringFlag(cmd, "api-key"),
	}

	if fs.Lookup("sorting") != nil {
		flags.Search = &config.CliSearchFlags{
			Query:           stringFlag(cmd, "query"),
			Sorting:         stringFlag(cmd, "sorting"),
			TopRange:        stringFlag(cmd, "top-range"),
			Resolution:      stringFlag(cmd, "resolution"),
			ExactResolution: boolFlag(cmd, "exact"),
			Ratio:           stringFlag(cmd, "ratio"),
			Color:           stringFlag(cmd, "color"),
			FileType:        stringFlag(cmd, "type"),
			Categories:      stringSliceFlag(cmd, "categories"),
			Nsfw:            boolFlag(cmd, "nsfw"),
			Page:            intFlag(cmd, "page"),
			MaxPages:        intFlag(cmd, "max-pages"),
			Prefetch:        boolFlag(cmd, "prefetch"),
		}
	}
	if fs.Lookup("output") != nil {
		flags.Download = &config.CliDownloadFlags{
			OutputDir:         stringFlag(cmd, "output"),
			Phase1Concurrency: intFlag(cmd, "workers"),
			Phase2Concurrency: intFlag(cmd, "fallback-workers"),
			SkipDownloaded:    boolFlag(cmd, "skip-downloaded"),
			WriteManifest:     boolFlag(cmd, "manifest"),
		}
	}
	if fs.Lookup("listen") != nil {
		flags.Proxy = &config.CliProxyFlags{
			ListenAddr:        stringFlag(cmd, "listen"),
			AllowedOrigins:    stringSliceFlag(cmd, "allow-origin"),
			FallbackImageHost: stringFlag(cmd, "fallback-host"),
		}
	}
	return flags
}

func stringFlag(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return nil
	}
	return &v
}

func boolFlag(cmd *cobra.Command, name string) *bool {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		return nil
	}
	return &v
}

func intFlag(cmd *cobra.Command, name string) *int {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetInt(name)
	if err != nil {
		return nil
	}
	return &v
}

// nonNegativeIntFlag treats negative values as "use config default".
func nonNegativeIntFlag(cmd *cobra.Command, name string) *int {
	v := intFlag(cmd, name)
	if v == nil || *v < 0 {
		return nil
	}
	return v
}

func stringSliceFlag(cmd *cobra.Command, name string) *[]string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetStringSlice(name)
	if err != nil {
		return nil
	}
	return &v
}
