package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Constants for fixed session behavior
const (
	AutoDetectDebounce   = 100 * time.Millisecond
	ProgressPollInterval = time.Second
	MinBoxPixels         = 10  // Drawn rectangles smaller than this are accidental clicks
	CropPageSize         = 100 // Show many items before paginating
	AnnotationPageSize   = 12  // 3 cols x 4 rows
	ProbeWorkers         = 4
	PrefetchAhead        = 3
	JournalBatchSize     = 10
	ExportFilename       = "annotations_export.zip"
)

// Config holds the process configuration of the interactive tool
type Config struct {
	APIBase     string `validate:"required,url"`
	DownloadDir string `validate:"required"`
	JournalPath string // JSON journal file; empty disables it unless DatabaseURL is set
	DatabaseURL string // Postgres journal; takes precedence over JournalPath
	LogPath     string // empty logs to stderr
	LogLevel    slog.Level
	Timeout     time.Duration `validate:"gte=0s"`
	Mouse       bool
}

// Default returns the configuration used when nothing is overridden
func Default() Config {
	return Config{
		APIBase:     "http://localhost:8000",
		DownloadDir: ".",
		LogLevel:    slog.LevelInfo,
		Mouse:       true,
	}
}

// Load applies environment overrides and then command line flags on top of Default
func Load(args []string) (Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.applyArgs(args); err != nil {
		return cfg, err
	}
	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("CROPCURATOR_API"); ok {
		c.APIBase = v
	}
	if v, ok := lookup("CROPCURATOR_DOWNLOAD_DIR"); ok {
		c.DownloadDir = v
	}
	if v, ok := lookup("CROPCURATOR_JOURNAL"); ok {
		c.JournalPath = v
	}
	if v, ok := lookup("CROPCURATOR_DATABASE_URL"); ok {
		c.DatabaseURL = v
	}
	if v, ok := lookup("CROPCURATOR_LOG"); ok {
		c.LogPath = v
	}
	if v, ok := lookup("CROPCURATOR_LOG_LEVEL"); ok {
		if err := c.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("CROPCURATOR_LOG_LEVEL: %w", err)
		}
	}
	if v, ok := lookup("CROPCURATOR_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CROPCURATOR_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	return nil
}

func (c *Config) applyArgs(args []string) error {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		value := func() (string, error) {
			if i+1 >= len(args) {
				return "", fmt.Errorf("missing value for %s", arg)
			}
			i++
			return args[i], nil
		}

		var err error
		switch arg {
		case "--api":
			c.APIBase, err = value()
		case "--downloads":
			c.DownloadDir, err = value()
		case "--journal":
			c.JournalPath, err = value()
		case "--database":
			c.DatabaseURL, err = value()
		case "--log":
			c.LogPath, err = value()
		case "--log-level":
			var v string
			if v, err = value(); err == nil {
				err = c.LogLevel.UnmarshalText([]byte(v))
			}
		case "--timeout":
			var v string
			if v, err = value(); err == nil {
				c.Timeout, err = time.ParseDuration(v)
			}
		case "--no-mouse":
			c.Mouse = false
		default:
			if strings.HasPrefix(arg, "-") {
				return fmt.Errorf("unknown flag %s", arg)
			}
			return fmt.Errorf("unexpected argument %q", arg)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Usage is printed when the command line cannot be parsed
const Usage = `Usage: cropcurator [--api URL] [--downloads DIR] [--journal FILE | --database URL]
                   [--log FILE] [--log-level LEVEL] [--timeout DURATION] [--no-mouse]`
