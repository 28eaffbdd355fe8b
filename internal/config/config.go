package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go-wallhaven-browser/internal/api"
	"go-wallhaven-browser/internal/archive"
	"go-wallhaven-browser/internal/helpers"
	"go-wallhaven-browser/internal/imageload"
	"go-wallhaven-browser/internal/models"
	"go-wallhaven-browser/internal/paths"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Default values for configuration
const (
	DefaultSavePath            = "wallhaven"
	DefaultDatabaseDir         = "state.db"        // Relative to SavePath if not absolute
	DefaultBleveIndexDir       = "favorites.bleve" // Relative to SavePath if not absolute
	DefaultLogApiRequests      = false
	DefaultAPIDelayMs          = 250 // milliseconds
	DefaultAPIClientTimeoutSec = 30  // seconds
	DefaultMaxRetries          = 3
	DefaultInitialRetryDelayMs = 1000 // milliseconds
	DefaultCacheTTLSec         = 300
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "text"
	DefaultConfigFilePath      = "config.toml"
	DefaultEnvFile             = ".env"
	EnvPrefix                  = "WALLHAVEN"

	// Search specific defaults
	DefaultConfigSearchSorting  = models.SortDateAdded
	DefaultConfigSearchTopRange = models.TopRange1M
	DefaultConfigSearchPage     = 1
	DefaultConfigSearchMaxPages = 1
	DefaultConfigSearchPrefetch = true

	// Images specific defaults
	DefaultConfigImagesMaxRetries        = 9
	DefaultConfigImagesRetryDelayBaseMs  = 250
	DefaultConfigImagesWatchdogTimeoutMs = 1000
	DefaultConfigImagesAttemptTimeoutMs  = 10000
	DefaultConfigImagesWarmConcurrency   = 4

	// Download specific defaults
	DefaultConfigDownloadEntryPattern      = "wallpaper-{id}"
	DefaultConfigDownloadSinglePattern     = "wallhaven-{id}"
	DefaultConfigDownloadArchiveFolder     = "wallpapers"
	DefaultConfigDownloadPhase1Concurrency = 4
	DefaultConfigDownloadPhase1Attempts    = 2
	DefaultConfigDownloadPhase2Concurrency = 2
	DefaultConfigDownloadPhase2Attempts    = 1
	DefaultConfigDownloadRetryDelayMs      = 500
	DefaultConfigDownloadStatusResetMs     = 2000
	DefaultConfigDownloadSkipDownloaded    = false
	DefaultConfigDownloadWriteManifest     = false

	// Proxy specific defaults
	DefaultConfigProxyListenAddr = "127.0.0.1:5174"
)

// DefaultConfigProxyAllowedOrigins lists the dev front-end origins.
var DefaultConfigProxyAllowedOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}

// setViperDefaults configures Viper with the application's default values.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("apikey", "")
	v.SetDefault("apibaseurl", api.WallhavenApiBaseUrl)
	v.SetDefault("savepath", DefaultSavePath)
	v.SetDefault("databasepath", "") // Derived from SavePath later
	v.SetDefault("bleveindexpath", "")
	v.SetDefault("logapirequests", DefaultLogApiRequests)
	v.SetDefault("apidelayms", DefaultAPIDelayMs)
	v.SetDefault("apiclienttimeoutsec", DefaultAPIClientTimeoutSec)
	v.SetDefault("maxretries", DefaultMaxRetries)
	v.SetDefault("initialretrydelayms", DefaultInitialRetryDelayMs)
	v.SetDefault("cachettlsec", DefaultCacheTTLSec)
	v.SetDefault("loglevel", DefaultLogLevel)
	v.SetDefault("logformat", DefaultLogFormat)
	v.SetDefault("logfile", "")

	// Search defaults
	v.SetDefault("search.query", "")
	v.SetDefault("search.sorting", DefaultConfigSearchSorting)
	v.SetDefault("search.toprange", DefaultConfigSearchTopRange)
	v.SetDefault("search.resolution", "")
	v.SetDefault("search.ratio", "")
	v.SetDefault("search.color", "")
	v.SetDefault("search.filetype", "")
	v.SetDefault("search.categories", []string{models.CategoryGeneral, models.CategoryAnime, models.CategoryPeople})
	v.SetDefault("search.page", DefaultConfigSearchPage)
	v.SetDefault("search.maxpages", DefaultConfigSearchMaxPages)
	v.SetDefault("search.nsfw", false)
	v.SetDefault("search.exactresolution", false)
	v.SetDefault("search.prefetch", DefaultConfigSearchPrefetch)

	// Images defaults
	v.SetDefault("images.maxretries", DefaultConfigImagesMaxRetries)
	v.SetDefault("images.retrydelaybasems", DefaultConfigImagesRetryDelayBaseMs)
	v.SetDefault("images.watchdogtimeoutms", DefaultConfigImagesWatchdogTimeoutMs)
	v.SetDefault("images.attempttimeoutms", DefaultConfigImagesAttemptTimeoutMs)
	v.SetDefault("images.warmconcurrency", DefaultConfigImagesWarmConcurrency)

	// Download defaults
	v.SetDefault("download.outputdir", "") // Empty means SavePath
	v.SetDefault("download.entrypattern", DefaultConfigDownloadEntryPattern)
	v.SetDefault("download.singlepattern", DefaultConfigDownloadSinglePattern)
	v.SetDefault("download.archivefolder", DefaultConfigDownloadArchiveFolder)
	v.SetDefault("download.phase1concurrency", DefaultConfigDownloadPhase1Concurrency)
	v.SetDefault("download.phase1attempts", DefaultConfigDownloadPhase1Attempts)
	v.SetDefault("download.phase2concurrency", DefaultConfigDownloadPhase2Concurrency)
	v.SetDefault("download.phase2attempts", DefaultConfigDownloadPhase2Attempts)
	v.SetDefault("download.retrydelayms", DefaultConfigDownloadRetryDelayMs)
	v.SetDefault("download.statusresetms", DefaultConfigDownloadStatusResetMs)
	v.SetDefault("download.skipdownloaded", DefaultConfigDownloadSkipDownloaded)
	v.SetDefault("download.writemanifest", DefaultConfigDownloadWriteManifest)

	// Proxy defaults
	v.SetDefault("proxy.listenaddr", DefaultConfigProxyListenAddr)
	v.SetDefault("proxy.imageproxybase", "")
	v.SetDefault("proxy.thumbproxybase", "")
	v.SetDefault("proxy.fallbackimagehost", "")
	v.SetDefault("proxy.allowedorigins", DefaultConfigProxyAllowedOrigins)
}

// CliFlags holds pointers to values received from command-line flags.
// Nil fields indicate the flag was not provided by the user.
type CliFlags struct {
	// Global/Persistent Flags
	ConfigFilePath      *string
	EnvFilePath         *string // --env-file
	LogLevel            *string // --log-level
	LogFormat           *string // --log-format
	LogFile             *string // --log-file
	LogApiRequests      *bool   // --log-api
	SavePath            *string // --save-path
	APIDelayMs          *int    // --api-delay
	APIClientTimeoutSec *int    // --api-timeout
	APIKey              *string // --api-key
	MaxRetries          *int    // --max-retries
	InitialRetryDelayMs *int    // --retry-delay

	// Command-specific flags nested
	Search   *CliSearchFlags
	Download *CliDownloadFlags
	Proxy    *CliProxyFlags
}

type CliSearchFlags struct {
	Query           *string   // -q
	Sorting         *string   // -s
	TopRange        *string   // --top-range
	Resolution      *string   // -r
	ExactResolution *bool     // --exact
	Ratio           *string   // --ratio
	Color           *string   // --color
	FileType        *string   // --type
	Categories      *[]string // -c
	Nsfw            *bool     // --nsfw
	Page            *int      // -p
	MaxPages        *int      // --max-pages
	Prefetch        *bool     // --prefetch
}

type CliDownloadFlags struct {
	OutputDir         *string // -o
	Phase1Concurrency *int    // --workers
	Phase2Concurrency *int    // --fallback-workers
	SkipDownloaded    *bool   // --skip-downloaded
	WriteManifest     *bool   // --manifest
}

type CliProxyFlags struct {
	ListenAddr        *string   // --listen
	AllowedOrigins    *[]string // --allow-origin
	FallbackImageHost *string   // --fallback-host
}

// loadEnvFile reads KEY=VALUE pairs into the process environment without
// overriding variables that are already set.
func loadEnvFile(path string) {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debugf("[Initialize] No env file at %s", path)
			return
		}
		log.WithError(err).Warnf("[Initialize] Failed to read env file %s", path)
		return
	}
	log.Debugf("[Initialize] Loaded env file %s", path)
}

// Initialize loads configuration based on defaults, config file, environment and flags.
// Precedence: Flags > Environment > Config File > Defaults.
func Initialize(flags CliFlags) (models.Config, http.RoundTripper, error) {
	envFile := DefaultEnvFile
	if flags.EnvFilePath != nil {
		envFile = *flags.EnvFilePath
	}
	loadEnvFile(envFile)

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setViperDefaults(v)

	actualConfigFilePath := DefaultConfigFilePath
	if flags.ConfigFilePath != nil {
		actualConfigFilePath = *flags.ConfigFilePath
		log.Debugf("[Initialize] Using config file path from CLI flag: %s", actualConfigFilePath)
	}
	v.SetConfigFile(actualConfigFilePath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			log.Debugf("[Initialize] Config file '%s' not found. Using defaults, environment and CLI flags only.", actualConfigFilePath)
		} else {
			log.Warnf("[Initialize] Error reading config file '%s': %v. Using defaults, environment and CLI flags only.", actualConfigFilePath, err)
		}
	} else {
		log.Infof("[Initialize] Read config file: %s", v.ConfigFileUsed())
	}

	var finalCfg models.Config
	if err := v.Unmarshal(&finalCfg); err != nil {
		return models.Config{}, nil, fmt.Errorf("failed to unmarshal config from viper: %w", err)
	}

	applyFlags(&finalCfg, flags)
	derivePaths(&finalCfg)

	if err := Validate(finalCfg); err != nil {
		return models.Config{}, nil, err
	}

	transport := buildTransport(finalCfg)
	log.Debug("Configuration initialized successfully.")
	return finalCfg, transport, nil
}

func applyFlags(cfg *models.Config, flags CliFlags) {
	if flags.APIKey != nil {
		log.Debugf("[Initialize] Overriding APIKey from flag.")
		cfg.APIKey = *flags.APIKey
	}
	if flags.SavePath != nil {
		cfg.SavePath = *flags.SavePath
	}
	if flags.LogApiRequests != nil {
		cfg.LogApiRequests = *flags.LogApiRequests
	}
	if flags.APIDelayMs != nil {
		cfg.APIDelayMs = *flags.APIDelayMs
	}
	if flags.APIClientTimeoutSec != nil {
		cfg.APIClientTimeoutSec = *flags.APIClientTimeoutSec
	}
	if flags.MaxRetries != nil {
		cfg.MaxRetries = *flags.MaxRetries
	}
	if flags.InitialRetryDelayMs != nil {
		cfg.InitialRetryDelayMs = *flags.InitialRetryDelayMs
	}
	if flags.LogLevel != nil {
		cfg.LogLevel = *flags.LogLevel
	}
	if flags.LogFormat != nil {
		cfg.LogFormat = *flags.LogFormat
	}
	if flags.LogFile != nil {
		cfg.LogFile = *flags.LogFile
	}

	if s := flags.Search; s != nil {
		log.Debugf("[Initialize] Processing Search CLI flags: %+v", *s)
		if s.Query != nil {
			cfg.Search.Query = *s.Query
		}
		if s.Sorting != nil {
			cfg.Search.Sorting = *s.Sorting
		}
		if s.TopRange != nil {
			cfg.Search.TopRange = *s.TopRange
		}
		if s.Resolution != nil {
			cfg.Search.Resolution = *s.Resolution
		}
		if s.ExactResolution != nil {
			cfg.Search.ExactResolution = *s.ExactResolution
		}
		if s.Ratio != nil {
			cfg.Search.Ratio = *s.Ratio
		}
		if s.Color != nil {
			cfg.Search.Color = *s.Color
		}
		if s.FileType != nil {
			cfg.Search.FileType = *s.FileType
		}
		if s.Categories != nil && len(*s.Categories) > 0 {
			cfg.Search.Categories = *s.Categories
		}
		if s.Nsfw != nil {
			cfg.Search.Nsfw = *s.Nsfw
		}
		if s.Page != nil {
			cfg.Search.Page = *s.Page
		}
		if s.MaxPages != nil {
			cfg.Search.MaxPages = *s.MaxPages
		}
		if s.Prefetch != nil {
			cfg.Search.Prefetch = *s.Prefetch
		}
	}

	if d := flags.Download; d != nil {
		log.Debugf("[Initialize] Processing Download CLI flags: %+v", *d)
		if d.OutputDir != nil {
			cfg.Download.OutputDir = *d.OutputDir
		}
		if d.Phase1Concurrency != nil {
			cfg.Download.Phase1Concurrency = *d.Phase1Concurrency
		}
		if d.Phase2Concurrency != nil {
			cfg.Download.Phase2Concurrency = *d.Phase2Concurrency
		}
		if d.SkipDownloaded != nil {
			cfg.Download.SkipDownloaded = *d.SkipDownloaded
		}
		if d.WriteManifest != nil {
			cfg.Download.WriteManifest = *d.WriteManifest
		}
	}

	if p := flags.Proxy; p != nil {
		if p.ListenAddr != nil {
			cfg.Proxy.ListenAddr = *p.ListenAddr
		}
		if p.AllowedOrigins != nil && len(*p.AllowedOrigins) > 0 {
			cfg.Proxy.AllowedOrigins = *p.AllowedOrigins
		}
		if p.FallbackImageHost != nil {
			cfg.Proxy.FallbackImageHost = *p.FallbackImageHost
		}
	}
}

// derivePaths fills storage locations that were left empty.
func derivePaths(cfg *models.Config) {
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.SavePath, DefaultDatabaseDir)
	} else if !filepath.IsAbs(cfg.DatabasePath) {
		cfg.DatabasePath = filepath.Join(cfg.SavePath, cfg.DatabasePath)
	}
	if cfg.BleveIndexPath == "" {
		cfg.BleveIndexPath = filepath.Join(cfg.SavePath, DefaultBleveIndexDir)
	} else if !filepath.IsAbs(cfg.BleveIndexPath) {
		cfg.BleveIndexPath = filepath.Join(cfg.SavePath, cfg.BleveIndexPath)
	}
	if cfg.Download.OutputDir == "" {
		cfg.Download.OutputDir = cfg.SavePath
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = api.WallhavenApiBaseUrl
	}
}

// Validate rejects settings the rest of the program cannot work with.
func Validate(cfg models.Config) error {
	if cfg.SavePath == "" {
		return fmt.Errorf("SavePath cannot be empty (set via --save-path flag or SavePath in config)")
	}
	if cfg.APIDelayMs < 0 {
		return fmt.Errorf("ApiDelayMs cannot be negative: %d", cfg.APIDelayMs)
	}
	if cfg.MaxRetries < 1 {
		return fmt.Errorf("MaxRetries must be at least 1: %d", cfg.MaxRetries)
	}
	if err := paths.ValidatePattern(cfg.Download.EntryPattern); err != nil {
		return fmt.Errorf("Download.EntryPattern: %w", err)
	}
	if err := paths.ValidatePattern(cfg.Download.SinglePattern); err != nil {
		return fmt.Errorf("Download.SinglePattern: %w", err)
	}
	if cfg.Download.Phase1Concurrency < 1 || cfg.Download.Phase2Concurrency < 1 {
		return fmt.Errorf("download concurrency must be at least 1 (phase 1: %d, phase 2: %d)", cfg.Download.Phase1Concurrency, cfg.Download.Phase2Concurrency)
	}
	if _, err := SearchFilters(cfg.Search); err != nil {
		return err
	}
	return nil
}

// buildTransport returns the HTTP transport, wrapped for API logging when enabled.
func buildTransport(cfg models.Config) http.RoundTripper {
	baseTransport := http.DefaultTransport
	if !cfg.LogApiRequests {
		return baseTransport
	}

	logFilePath := "api.log"
	if _, statErr := os.Stat(cfg.SavePath); statErr == nil {
		logFilePath = filepath.Join(cfg.SavePath, logFilePath)
	} else {
		log.Warnf("SavePath '%s' not found, saving api.log to current directory.", cfg.SavePath)
	}
	log.Infof("API logging to file: %s", logFilePath)

	loggingTransport, err := api.NewLoggingTransport(baseTransport, logFilePath)
	if err != nil {
		log.WithError(err).Error("Failed to initialize API logging transport, logging disabled.")
		return baseTransport
	}
	return loggingTransport
}

// SearchFilters converts the configured search defaults into a filter set.
func SearchFilters(s models.SearchConfig) (models.SearchFilters, error) {
	f := models.DefaultFilters()
	f.Query = s.Query
	if s.Sorting != "" {
		f.Sorting = s.Sorting
	}
	if s.TopRange != "" {
		f.TopRange = s.TopRange
	}
	f.Resolution = s.Resolution
	f.ExactResolution = s.ExactResolution
	f.Ratio = s.Ratio
	f.Color = s.Color
	f.FileType = s.FileType
	f.IncludeNsfw = s.Nsfw

	if len(s.Categories) > 0 {
		f.Categories = models.CategoryFlags{}
		for _, c := range s.Categories {
			switch strings.ToLower(strings.TrimSpace(c)) {
			case models.CategoryGeneral:
				f.Categories.General = true
			case models.CategoryAnime:
				f.Categories.Anime = true
			case models.CategoryPeople:
				f.Categories.People = true
			default:
				return f, fmt.Errorf("%w: unknown category %q", api.ErrValidation, c)
			}
		}
	}

	if err := api.ValidateFilters(f); err != nil {
		return f, err
	}
	return f, nil
}

// ImageLoadConfig returns the image controller settings.
func ImageLoadConfig(cfg models.Config) imageload.Config {
	return imageload.Config{
		MaxRetries:      cfg.Images.MaxRetries,
		RetryDelayBase:  time.Duration(cfg.Images.RetryDelayBaseMs) * time.Millisecond,
		WatchdogTimeout: time.Duration(cfg.Images.WatchdogTimeoutMs) * time.Millisecond,
		AttemptTimeout:  time.Duration(cfg.Images.AttemptTimeoutMs) * time.Millisecond,
	}
}

// ArchiveOptions returns the archive builder settings.
func ArchiveOptions(cfg models.Config) archive.Options {
	return archive.Options{
		Phase1Workers:  cfg.Download.Phase1Concurrency,
		Phase1Attempts: cfg.Download.Phase1Attempts,
		Phase2Workers:  cfg.Download.Phase2Concurrency,
		Phase2Attempts: cfg.Download.Phase2Attempts,
		RetryDelay:     time.Duration(cfg.Download.RetryDelayMs) * time.Millisecond,
		EntryPattern:   cfg.Download.EntryPattern,
		SinglePattern:  cfg.Download.SinglePattern,
		Folder:         cfg.Download.ArchiveFolder,
		WriteManifest:  cfg.Download.WriteManifest,
	}
}

// Defaults returns the configuration used when no file, env or flag says otherwise.
func Defaults() models.Config {
	v := viper.New()
	setViperDefaults(v)
	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.WithError(err).Error("Failed to build default config")
	}
	return cfg
}

// WriteTOML encodes cfg as TOML. The API key is masked unless revealKey is set.
func WriteTOML(w io.Writer, cfg models.Config, revealKey bool) error {
	if !revealKey && cfg.APIKey != "" {
		cfg.APIKey = helpers.MaskSecret(cfg.APIKey)
	}
	enc := toml.NewEncoder(w)
	enc.Indent = "  "
	return enc.Encode(cfg)
}

// WriteDefaultFile writes the default configuration to path, refusing to
// overwrite an existing file unless force is set.
func WriteDefaultFile(path string, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0600)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := WriteTOML(f, Defaults(), true); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
