package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBDriver string `long:"db-driver" env:"DB_DRIVER" default:"sqlite" choice:"sqlite" choice:"postgres" description:"Database driver"`
	DBDSN    string `long:"db-dsn" env:"DB_DSN" default:"file:content-comb.db?_pragma=busy_timeout(5000)" description:"Database connection string"`

	// Application configuration
	SourcesDir   string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount  int    `long:"worker-count" env:"WORKER_COUNT" default:"4" description:"Number of sources processed concurrently"`
	Schedule     string `long:"schedule" env:"SCHEDULE" default:"*/15 * * * *" description:"Cron expression for incremental runs (empty disables)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	RedisAddr    string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for the shared run lock (optional)"`

	// Ingestion
	UserAgent       string `long:"user-agent" env:"USER_AGENT" default:"Content Comb/1.0" description:"User agent string for HTTP requests"`
	FetchTimeout    int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Default fetch timeout in seconds"`
	BatchSize       int    `long:"batch-size" env:"BATCH_SIZE" default:"20" description:"Items per upsert batch (10-20)"`
	ExcerptLength   int    `long:"excerpt-length" env:"EXCERPT_LENGTH" default:"180" description:"Excerpt length in characters"`
	IncrementalDays int    `long:"incremental-days" env:"INCREMENTAL_DAYS" default:"1" description:"Days covered by incremental runs (1 = today)"`
	BackfillDays    int    `long:"backfill-days" env:"BACKFILL_DAYS" default:"7" description:"Default days covered by backfill runs"`
	PagedAPIURL     string `long:"paged-api-url" env:"PAGED_API_URL" default:"https://www.googleapis.com/youtube/v3" description:"Base URL of the paged video API"`
	PagedAPIKey     string `long:"paged-api-key" env:"PAGED_API_KEY" description:"Credential for the paged video API"`

	// Application metadata
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for day windows (e.g., UTC, America/New_York)"`
	LogFormat string `long:"log-format" env:"LOG_FORMAT" default:"text" choice:"text" choice:"json" description:"Log output format"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return load(nil)
}

// load parses args, or the process arguments when args is nil.
func load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBDriver:        raw.DBDriver,
		DBDSN:           raw.DBDSN,
		SourcesDir:      raw.SourcesDir,
		Port:            raw.Port,
		WorkerCount:     raw.WorkerCount,
		Schedule:        raw.Schedule,
		APIAccessKey:    raw.APIAccessKey,
		RedisAddr:       raw.RedisAddr,
		UserAgent:       raw.UserAgent,
		FetchTimeout:    raw.FetchTimeout,
		BatchSize:       raw.BatchSize,
		ExcerptLength:   raw.ExcerptLength,
		IncrementalDays: raw.IncrementalDays,
		BackfillDays:    raw.BackfillDays,
		PagedAPIURL:     raw.PagedAPIURL,
		PagedAPIKey:     raw.PagedAPIKey,
		Timezone:        raw.Timezone,
		LogFormat:       raw.LogFormat,
		Debug:           raw.Debug,
		Version:         GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
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

func validate(cfg *Cfg) error {
	positiveFields := map[string]int{
		"worker count":     cfg.WorkerCount,
		"fetch timeout":    cfg.FetchTimeout,
		"excerpt length":   cfg.ExcerptLength,
		"incremental days": cfg.IncrementalDays,
		"backfill days":    cfg.BackfillDays,
	}

	for fieldName, fieldValue := range positiveFields {
		if fieldValue <= 0 {
			return fmt.Errorf("%s must be positive", fieldName)
		}
	}

	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
