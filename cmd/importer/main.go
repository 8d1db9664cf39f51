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
	"github.com/aluiziolira/go-catalogue-sync/reconcile"
	"github.com/aluiziolira/go-catalogue-sync/sources"
	"github.com/aluiziolira/go-catalogue-sync/store"
	"github.com/prometheus/client_golang/prometheus"
)

type inputs struct {
	priceList       string
	export          string
	scraped         string
	scrapedCategory string
	images          string
	migrate         bool
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		return 1
	}
	in := registerFlags(flag.CommandLine, cfg)
	flag.Parse()

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.ValidateImport(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		return 1
	}

	items, rejected, err := loadItems(cfg, in)
	if err != nil {
		slog.Error("loading input", slog.Any("error", err))
		return 1
	}
	images, err := sources.LoadImageMap(in.images)
	if err != nil {
		slog.Error("loading image map", slog.Any("error", err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		productStore reconcile.Store
		pinger       ops.Pinger
		memory       *store.Memory
	)
	if cfg.DryRun {
		memory = store.NewMemory()
		productStore = memory
		slog.Info("dry run, writing to an in-memory store")
	} else {
		pg, err := store.NewPostgres(ctx, store.PostgresConfig{
			URL:      cfg.DatabaseURL,
			MaxConns: int32(cfg.Workers) + 1,
		})
		if err != nil {
			slog.Error("connecting to product store", slog.Any("error", err))
			return 1
		}
		defer pg.Close()
		if in.migrate {
			if err := pg.Migrate(ctx); err != nil {
				slog.Error("migrating product store", slog.Any("error", err))
				return 1
			}
		}
		productStore = pg
		pinger = pg
	}

	registry := prometheus.NewRegistry()
	if cfg.MetricsAddr != "" {
		opsServer := ops.Start(cfg.MetricsAddr, ops.NewRouter(registry, pinger))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := opsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("ops server shutdown failed", slog.Any("error", err))
			}
		}()
	}

	reconciler := reconcile.New(productStore, reconcile.Options{
		Workers:         cfg.Workers,
		TVARate:         cfg.TVARate,
		RefreshImages:   cfg.RefreshImages,
		DefaultCategory: cfg.DefaultCategory,
		Metrics:         reconcile.NewMetrics(registry),
	})

	slog.Info("starting import",
		slog.Int("items", len(items)),
		slog.Int("images", len(images)),
		slog.Int("workers", cfg.Workers),
		slog.Bool("dry_run", cfg.DryRun),
	)

	start := time.Now()
	report := reconciler.Reconcile(ctx, items, images)
	for _, rejection := range rejected {
		reconciler.Reject(report, rejection.Item, rejection.Err)
	}
	duration := time.Since(start)

	if cfg.ReportFile != "" {
		if err := report.WriteFile(cfg.ReportFile); err != nil {
			slog.Error("writing report", slog.Any("error", err))
			return 1
		}
	}
	if memory != nil {
		slog.Debug("dry run store contents", slog.Int("products", len(memory.Products())))
	}

	printReport(report, duration, cfg.ReportFile)
	if ctx.Err() != nil {
		slog.Warn("import interrupted", slog.Int("errors", report.Errors))
		return 1
	}
	return 0
}

func registerFlags(fs *flag.FlagSet, cfg *config.Config) *inputs {
	in := &inputs{scrapedCategory: cfg.CategoryName}

	fs.StringVar(&in.priceList, "pricelist", "", "Tab-delimited supplier price list")
	fs.StringVar(&in.export, "export", "", "JSON product export")
	fs.StringVar(&in.scraped, "scraped", "", "Scraper JSON output to import")
	fs.StringVar(&in.scrapedCategory, "scraped-category", in.scrapedCategory, "Category assigned to scraped records")
	fs.StringVar(&in.images, "images", "", "JSON map of reference to image URL")
	fs.BoolVar(&in.migrate, "migrate", false, "Create the product tables before importing")

	fs.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "Product store connection string")
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Reconcile against an in-memory store")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Items reconciled in parallel")
	fs.Float64Var(&cfg.TVARate, "tva", cfg.TVARate, "TVA rate for created products")
	fs.BoolVar(&cfg.RefreshImages, "refresh-images", cfg.RefreshImages, "Replace images on updated products when one is known")
	fs.StringVar(&cfg.ExportCategory, "export-category", cfg.ExportCategory, "Category assigned to JSON export records")
	fs.StringVar(&cfg.DefaultCategory, "default-category", cfg.DefaultCategory, "Category for price-list rows no rule matches")
	fs.StringVar(&cfg.ReportFile, "report", cfg.ReportFile, "Import report path (empty to skip)")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Ops listen address for /metrics and /healthz (e.g. :9090)")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Enable verbose logging")
	return in
}

// loadItems reads every configured input. Scraped records that cannot be
// imported come back separately so they land in the report.
func loadItems(cfg *config.Config, in *inputs) ([]models.TarifItem, []sources.Rejection, error) {
	if in.priceList == "" && in.export == "" && in.scraped == "" {
		return nil, nil, errors.New("nothing to import: set -pricelist, -export or -scraped")
	}

	var (
		items    []models.TarifItem
		rejected []sources.Rejection
	)
	if in.priceList != "" {
		classifier := sources.NewRuleClassifier(cfg.CategoryRules, cfg.DefaultCategory)
		parsed, err := sources.ParsePriceListFile(in.priceList, classifier)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("price list loaded", slog.String("path", in.priceList), slog.Int("items", len(parsed)))
		items = append(items, parsed...)
	}
	if in.export != "" {
		parsed, err := sources.ParseExportFile(in.export, cfg.ExportCategory)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("export loaded", slog.String("path", in.export), slog.Int("items", len(parsed)))
		items = append(items, parsed...)
	}
	if in.scraped != "" {
		products, err := sources.LoadScrapedFile(in.scraped)
		if err != nil {
			return nil, nil, err
		}
		parsed, refused := sources.ScrapedToTarif(products, strings.TrimSpace(in.scrapedCategory))
		slog.Info("scraped output loaded",
			slog.String("path", in.scraped),
			slog.Int("items", len(parsed)),
			slog.Int("rejected", len(refused)),
		)
		items = append(items, parsed...)
		rejected = append(rejected, refused...)
	}
	return items, rejected, nil
}

func printReport(report *reconcile.Report, duration time.Duration, reportFile string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Import complete")
	fmt.Printf("  Run:           %s\n", report.RunID)
	fmt.Printf("  Items:         %d\n", report.Total)
	fmt.Printf("  Created:       %d\n", report.Created)
	fmt.Printf("  Updated:       %d\n", report.Updated)
	fmt.Printf("  Skipped:       %d\n", report.Skipped)
	fmt.Printf("  Errors:        %d\n", report.Errors)
	fmt.Printf("  Duration:      %v\n", duration.Round(time.Millisecond))
	if reportFile != "" {
		fmt.Printf("  Report:        %s\n", reportFile)
	}
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
