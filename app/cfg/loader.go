package cfg

import (
	"cmp"
	"fmt"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Feed configuration
	FeedURL string `long:"feed-url" env:"FEED_URL" default:"https://feeds.transistor.fm/acquired" description:"Podcast syndication feed URL"`

	// State and output paths
	DataDir     string `long:"data-dir" env:"DATA_DIR" default:"./data" description:"Directory for pipeline state (retry queue, last-check time, fetch history)"`
	CatalogFile string `long:"catalog-file" env:"CATALOG_FILE" default:"./data/books.json" description:"Path of the book catalog JSON file"`

	// URL guard
	GuardPolicyFile string `long:"guard-policy" env:"GUARD_POLICY" description:"Optional YAML file overriding the built-in URL guard policy"`

	// Pipeline tuning
	EpisodeConcurrency int  `long:"episode-concurrency" env:"EPISODE_CONCURRENCY" default:"3" description:"Number of episodes processed in parallel"`
	RunTimeoutMinutes  int  `long:"run-timeout" env:"RUN_TIMEOUT" default:"15" description:"Hard cap on total run duration in minutes"`
	LookbackHours      int  `long:"lookback-hours" env:"LOOKBACK_HOURS" default:"72" description:"Feed lookback window when no last-check time exists"`
	DryRun             bool `long:"dry-run" env:"DRY_RUN" description:"Run the full pipeline without writing state or sending notifications"`

	// Notifications
	NtfyTopic string `long:"ntfy-topic" env:"NTFY_TOPIC" description:"ntfy topic URL for run summaries (disabled when empty)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Bookscout/1.0" description:"User agent string for HTTP requests"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		FeedURL:            raw.FeedURL,
		DataDir:            raw.DataDir,
		CatalogFile:        raw.CatalogFile,
		GuardPolicyFile:    raw.GuardPolicyFile,
		EpisodeConcurrency: raw.EpisodeConcurrency,
		RunTimeoutMinutes:  raw.RunTimeoutMinutes,
		LookbackHours:      raw.LookbackHours,
		DryRun:             raw.DryRun,
		NtfyTopic:          raw.NtfyTopic,
		UserAgent:          raw.UserAgent,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}

	if cfg.EpisodeConcurrency < 1 {
		cfg.EpisodeConcurrency = 1
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}
