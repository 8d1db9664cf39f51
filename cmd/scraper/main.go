package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-catalogue-sync/config"
	"github.com/aluiziolira/go-catalogue-sync/models"
	"github.com/aluiziolira/go-catalogue-sync/ops"
	"github.com/aluiziolira/go-catalogue-sync/parser"
	"github.com/aluiziolira/go-catalogue-sync/pipeline"
	"github.com/aluiziolira/go-catalogue-sync/scraper"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		return 1
	}
	registerFlags(flag.CommandLine, cfg)
	flag.Parse()
	cfg.Mode = strings.ToLower(cfg.Mode)
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.ValidateScrape(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		return 1
	}

	registry := prometheus.NewRegistry()
	metrics := scraper.NewMetrics(registry)

	fetcher, err := scraper.NewFetcher(cfg, metrics)
	if err != nil {
		logStartupError("initialising fetcher", err)
		return 1
	}
	pageParser, err := newPageParser(cfg)
	if err != nil {
		logStartupError("initialising parser", err)
		return 1
	}

	writer, err := pipeline.NewWriter(cfg)
	if err != nil {
		logStartupError("creating writer", err)
		return 1
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opsServer *ops.Server
	if cfg.MetricsAddr != "" {
		opsServer = ops.Start(cfg.MetricsAddr, ops.NewRouter(registry, nil))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := opsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("ops server shutdown failed", slog.Any("error", err))
			}
		}()
	}

	p, err := pipeline.NewPipeline(writer, cfg)
	if err != nil {
		slog.Error("creating pipeline", slog.Any("error", err))
		return 1
	}
	// One worker keeps records in catalogue order.
	p.Start(1)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	driver := scraper.NewDriver(cfg, fetcher, pageParser,
		scraper.WithSink(p),
		scraper.WithMetrics(metrics),
	)

	slog.Info("starting scrape",
		slog.String("base_url", cfg.BaseURL),
		slog.String("category_id", cfg.CategoryID),
		slog.String("mode", cfg.Mode),
		slog.Int("pages", cfg.MaxPages),
	)

	exitCode := 0
	result, scrapeErr := driver.ScrapeCategory(ctx, cfg.CategoryID, cfg.MaxPages)
	switch {
	case scrapeErr == nil:
	case errors.Is(scrapeErr, context.Canceled):
		slog.Warn("scrape interrupted, keeping partial results", slog.Int("products", len(result.Products)))
	case scraper.IsFetchError(scrapeErr):
		slog.Error("catalogue fetch failed, keeping partial results",
			slog.Int("page", result.PageCount+1),
			slog.Int("products", len(result.Products)),
			slog.Any("error", scrapeErr),
		)
		exitCode = 1
	default:
		slog.Error("scrape stopped early", slog.Any("error", scrapeErr))
		exitCode = 1
	}

	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		return 1
	}
	if err := writer.Validate(); err != nil {
		slog.Warn("output has no records", slog.Any("error", err))
	}

	summary := pipeline.BuildSummary(result, p.Processed(), cfg.BaseURL+cfg.CataloguePath, cfg.CategoryName)
	if cfg.SummaryFile != "" {
		if err := pipeline.WriteSummary(cfg.SummaryFile, summary); err != nil {
			slog.Error("writing summary", slog.Any("error", err))
			return 1
		}
	}

	printSummary(result, summary, cfg.OutputFile, p.GetMetrics())
	return exitCode
}

func registerFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Catalogue site base URL")
	fs.StringVar(&cfg.CategoryID, "category", cfg.CategoryID, "Catalogue category id to scrape")
	fs.StringVar(&cfg.CategoryName, "category-name", cfg.CategoryName, "Category name recorded in the summary")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "Catalogue response mode: html or json")
	fs.StringVar(&cfg.Extractor, "extractor", cfg.Extractor, "Card extractor for html mode: regex or dom")
	fs.IntVar(&cfg.MaxPages, "pages", cfg.MaxPages, "Maximum catalogue pages to fetch")
	fs.IntVar(&cfg.EmptyPageThreshold, "empty-pages", cfg.EmptyPageThreshold, "Consecutive empty pages that end the catalogue")
	fs.DurationVar(&cfg.Delay, "delay", cfg.Delay, "Minimum delay between two page fetches")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Request timeout")
	fs.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "Retries for timeouts, connection errors, 429 and 5xx")
	fs.DurationVar(&cfg.RetryBackoff, "retry-backoff", cfg.RetryBackoff, "Initial retry backoff")
	fs.DurationVar(&cfg.RetryBackoffMax, "retry-backoff-max", cfg.RetryBackoffMax, "Maximum retry backoff")
	fs.BoolVar(&cfg.RespectRobotsTxt, "respect-robots", cfg.RespectRobotsTxt, "Respect robots.txt directives")
	fs.StringVar(&cfg.OutputFile, "output", cfg.OutputFile, "Output file path")
	fs.StringVar(&cfg.OutputFormat, "format", cfg.OutputFormat, "Output format: csv, json, or dual")
	fs.StringVar(&cfg.SummaryFile, "summary", cfg.SummaryFile, "Summary file path (empty to skip)")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Ops listen address for /metrics and /healthz (e.g. :9090)")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Enable verbose logging")
}

func logStartupError(msg string, err error) {
	if config.IsConfigurationError(err) {
		slog.Error("invalid configuration", slog.String("step", msg), slog.Any("error", err))
		return
	}
	slog.Error(msg, slog.Any("error", err))
}

func newPageParser(cfg *config.Config) (scraper.PageParser, error) {
	if cfg.Mode == "json" {
		return parser.NewEnvelopeParser(cfg.ProductPath), nil
	}
	source, err := parser.NewCardSource(cfg.Extractor)
	if err != nil {
		return nil, err
	}
	return parser.NewExtractor(source, cfg.ProductPath), nil
}

func printSummary(result *models.ScrapeResult, summary models.Summary, outputFile string, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")

	fmt.Printf("  Run:           %s\n", summary.RunID)
	fmt.Printf("  Category:      %s (%s)\n", summary.CategoryID, summary.CategoryName)
	fmt.Printf("  Products:      %d\n", summary.TotalProducts)
	fmt.Printf("  Pages:         %d (%d empty)\n", result.PageCount, result.EmptyPages)
	fmt.Printf("  Cards:         %d (%d dropped)\n", result.CardCount, result.DroppedCards)
	fmt.Printf("  Retries:       %d\n", result.RetryCount)
	fmt.Printf("  Stop reason:   %s\n", result.StopReason)
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Printf("  Validation:    %v\n", valErrors)
	}
	fmt.Printf("  Duration:      %v\n", result.EndTime.Sub(result.StartTime).Round(time.Millisecond))
	fmt.Printf("  Output file:   %s\n", outputFile)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
