package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "SCRAPER"

// Config holds scraper, import and output configuration.
type Config struct {
	BaseURL       string `envconfig:"BASE_URL"`
	CataloguePath string `envconfig:"CATALOGUE_PATH"`
	ProductPath   string `envconfig:"PRODUCT_PATH"`
	CategoryID    string `envconfig:"CATEGORY_ID"`
	CategoryName  string `envconfig:"CATEGORY_NAME"`
	Mode          string `envconfig:"MODE"`      // html or json
	Extractor     string `envconfig:"EXTRACTOR"` // regex or dom

	MaxPages           int           `envconfig:"PAGES"`
	Delay              time.Duration `envconfig:"DELAY"`
	EmptyPageThreshold int           `envconfig:"EMPTY_PAGES"`
	Timeout            time.Duration `envconfig:"TIMEOUT"`
	MaxRetries         int           `envconfig:"MAX_RETRIES"`
	RetryBackoff       time.Duration `envconfig:"RETRY_BACKOFF"`
	RetryBackoffMax    time.Duration `envconfig:"RETRY_BACKOFF_MAX"`

	SessionCookie    string `envconfig:"SESSION_COOKIE"`
	UserAgent        string `envconfig:"USER_AGENT"`
	AcceptLanguage   string `envconfig:"ACCEPT_LANGUAGE"`
	RespectRobotsTxt bool   `envconfig:"RESPECT_ROBOTS"`

	OutputFile         string `envconfig:"OUTPUT"`
	OutputFormat       string `envconfig:"FORMAT"` // csv, json, or dual
	SummaryFile        string `envconfig:"SUMMARY"`
	BatchSize          int    `envconfig:"BATCH_SIZE"`
	PipelineBufferSize int    `envconfig:"BUFFER_SIZE"`
	DedupeMaxSize      int    `envconfig:"DEDUPE_MAX_SIZE"`

	DatabaseURL     string            `envconfig:"DATABASE_URL"`
	DryRun          bool              `envconfig:"DRY_RUN"`
	Workers         int               `envconfig:"WORKERS"`
	TVARate         float64           `envconfig:"TVA_RATE"`
	RefreshImages   bool              `envconfig:"REFRESH_IMAGES"`
	CategoryRules   map[string]string `envconfig:"CATEGORY_RULES"`
	DefaultCategory string            `envconfig:"DEFAULT_CATEGORY"`
	ExportCategory  string            `envconfig:"EXPORT_CATEGORY"`
	ReportFile      string            `envconfig:"REPORT"`

	MetricsAddr string `envconfig:"METRICS_ADDR"`
	Verbose     bool   `envconfig:"VERBOSE"`
}

// DefaultConfig returns conservative defaults for the upstream catalogue.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:            "https://coi.re",
		CataloguePath:      "/catalogue/produits",
		ProductPath:        "/produits/",
		CategoryID:         "10",
		CategoryName:       "lubrifiants",
		Mode:               "html",
		Extractor:          "regex",
		MaxPages:           10,
		Delay:              time.Second,
		EmptyPageThreshold: 2,
		Timeout:            30 * time.Second,
		MaxRetries:         0,
		RetryBackoff:       500 * time.Millisecond,
		RetryBackoffMax:    5 * time.Second,
		UserAgent:          "Mozilla/5.0 (X11; Linux x86_64; rv:145.0) Gecko/20100101 Firefox/145.0",
		AcceptLanguage:     "fr,fr-FR;q=0.8,en-US;q=0.5,en;q=0.3",
		RespectRobotsTxt:   false,
		OutputFile:         "output/products.json",
		OutputFormat:       "json",
		SummaryFile:        "output/products-summary.json",
		BatchSize:          64,
		PipelineBufferSize: 512,
		DedupeMaxSize:      100000,
		Workers:            4,
		TVARate:            20,
		RefreshImages:      true,
		CategoryRules:      map[string]string{"bat": "batteries"},
		DefaultCategory:    "pneus",
		ExportCategory:     "lubrifiants",
		ReportFile:         "output/import-report.json",
	}
}

// Load returns DefaultConfig overlaid with SCRAPER_* environment variables.
// A .env file in the working directory is read first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if _, statErr := os.Stat(".env"); statErr == nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, &ConfigurationError{Field: "environment", Reason: err.Error()}
	}
	return cfg, nil
}

// SiteRoot returns the scheme and host of BaseURL with a trailing slash.
func (c *Config) SiteRoot() string {
	parsed, err := url.Parse(c.BaseURL)
	if err != nil || parsed.Host == "" {
		return strings.TrimSuffix(c.BaseURL, "/") + "/"
	}
	return parsed.Scheme + "://" + parsed.Host + "/"
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return invalid("base_url", "base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return invalid("base_url", fmt.Sprintf("invalid base URL: %v", err))
	}
	if parsedURL.Host == "" {
		return invalid("base_url", "base URL must include a host")
	}
	if !strings.HasPrefix(c.CataloguePath, "/") {
		return invalid("catalogue_path", "catalogue path must start with /")
	}
	if c.ProductPath == "" {
		return invalid("product_path", "product path cannot be empty")
	}

	if c.MaxPages <= 0 {
		return invalid("pages", "max pages must be positive")
	}
	if c.Delay < 0 {
		return invalid("delay", "delay cannot be negative")
	}
	if c.EmptyPageThreshold <= 0 {
		return invalid("empty_pages", "empty page threshold must be positive")
	}
	if c.Timeout <= 0 {
		return invalid("timeout", "timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return invalid("max_retries", "max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return invalid("retry_backoff", "retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return invalid("retry_backoff_max", "retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return invalid("retry_backoff", fmt.Sprintf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax))
	}
	if c.Mode != "html" && c.Mode != "json" {
		return invalid("mode", "mode must be html or json")
	}
	if c.Extractor != "regex" && c.Extractor != "dom" {
		return invalid("extractor", "extractor must be regex or dom")
	}
	if c.UserAgent == "" {
		return invalid("user_agent", "user agent cannot be empty")
	}

	if c.OutputFile == "" {
		return invalid("output", "output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return invalid("format", "output format must be csv, json, or dual")
	}
	if c.BatchSize <= 0 {
		return invalid("batch_size", "batch size must be positive")
	}
	if c.PipelineBufferSize <= 0 {
		return invalid("buffer_size", "pipeline buffer size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return invalid("dedupe_max_size", "dedupe cache size must be positive")
	}

	if c.Workers <= 0 {
		return invalid("workers", "workers must be positive")
	}
	if c.TVARate < 0 || c.TVARate > 100 {
		return invalid("tva_rate", "TVA rate must be between 0 and 100")
	}
	if c.DefaultCategory == "" {
		return invalid("default_category", "default category cannot be empty")
	}

	return nil
}

// ValidateScrape checks everything a scrape run needs before any request is sent.
func (c *Config) ValidateScrape() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.SessionCookie) == "" {
		return invalid("session_cookie", "session cookie is required to fetch the catalogue")
	}
	if strings.TrimSpace(c.CategoryID) == "" {
		return invalid("category_id", "category id cannot be empty")
	}
	return nil
}

// ValidateImport checks everything an import run needs before touching the store.
func (c *Config) ValidateImport() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if !c.DryRun && strings.TrimSpace(c.DatabaseURL) == "" {
		return invalid("database_url", "database URL is required unless dry-run is enabled")
	}
	return nil
}

// ConfigurationError reports a missing or incoherent setting. It is fatal at startup.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// IsConfigurationError reports whether err is, or wraps, a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

func invalid(field, reason string) error {
	return &ConfigurationError{Field: field, Reason: reason}
}
