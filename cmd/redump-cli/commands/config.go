package commands

import (
	"errors"
	"fmt"
	"os"

	"redumparchive/internal/components/telemetry"
	"redumparchive/internal/scrapers/redump"
	"redumparchive/lib/configutil"

	"github.com/spf13/cobra"
)

const configName = "redump.json5"

type Config struct {
	Username          string           `json:"username"`
	Password          string           `json:"password"`
	OutputDir         string           `json:"output_dir"`
	Retries           int              `json:"retries"`
	Workers           int              `json:"workers"`
	RequestsPerSecond float64          `json:"requests_per_second"`
	SiteUrl           string           `json:"site_url"`
	ForumUrl          string           `json:"forum_url"`
	CloudflareBypass  bool             `json:"cloudflare_bypass"`
	DumpHttp          string           `json:"dump_http"`
	Telemetry         telemetry.Config `json:"telemetry"`
}

var defaultConfig = Config{
	OutputDir:         ".",
	Retries:           redump.DefaultRetryLimit,
	Workers:           1,
	RequestsPerSecond: 4,
	SiteUrl:           redump.DefaultSiteURL,
	ForumUrl:          redump.DefaultForumURL,
}

// loadConfig reads the config file (if any), fills in defaults, then
// applies the flags that were explicitly set.
func loadConfig(cmd *cobra.Command) (Config, error) {
	var cfg Config
	var err error
	if *configPath != "" {
		cfg, err = configutil.ReadConfig[Config](*configPath)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", *configPath, err)
		}
	} else {
		cfg, err = configutil.ReadRecursively[Config](configName)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err = configutil.WithDefaults(cfg, defaultConfig)
	if err != nil {
		return Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("out") {
		cfg.OutputDir = *outputDir
	}
	if flags.Changed("retries") {
		cfg.Retries = *retries
	}
	if flags.Changed("workers") {
		cfg.Workers = *workers
	}
	if cfg.Workers < 1 {
		return Config{}, fmt.Errorf("workers must be at least 1, got %d", cfg.Workers)
	}
	return cfg, nil
}
