package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-catalogue-sync/config"
	"github.com/aluiziolira/go-catalogue-sync/models"
	"github.com/aluiziolira/go-catalogue-sync/parser"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// PageFetcher retrieves one raw catalogue page.
type PageFetcher interface {
	FetchPage(ctx context.Context, categoryID string, page int) (string, error)
}

// PageParser turns one raw page into normalized records.
type PageParser interface {
	Parse(raw string, categoryID string) *parser.PageResult
}

// Sink receives records as soon as their page has been parsed.
type Sink interface {
	Process(product *models.ScrapedProduct) error
}

// Driver walks the pages of a category until the page cap or the end of the
// catalogue. Pagination is sequential; the limiter spaces every two fetches,
// including fetches of consecutive runs.
type Driver struct {
	fetcher        PageFetcher
	parser         PageParser
	limiter        *rate.Limiter
	emptyThreshold int
	maxRetries     int
	backoffBase    time.Duration
	backoffMax     time.Duration
	metrics        *Metrics
	sink           Sink
}

// DriverOption customizes a Driver.
type DriverOption func(*Driver)

// WithSink streams every accepted record to sink.
func WithSink(sink Sink) DriverOption {
	return func(d *Driver) {
		d.sink = sink
	}
}

// WithMetrics records page and retry counters on m.
func WithMetrics(m *Metrics) DriverOption {
	return func(d *Driver) {
		d.metrics = m
	}
}

// NewDriver builds a pagination driver from cfg.
func NewDriver(cfg *config.Config, fetcher PageFetcher, pageParser PageParser, opts ...DriverOption) *Driver {
	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}

	threshold := cfg.EmptyPageThreshold
	if threshold <= 0 {
		threshold = 2
	}

	d := &Driver{
		fetcher:        fetcher,
		parser:         pageParser,
		limiter:        rate.NewLimiter(limit, 1),
		emptyThreshold: threshold,
		maxRetries:     cfg.MaxRetries,
		backoffBase:    cfg.RetryBackoff,
		backoffMax:     cfg.RetryBackoffMax,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ScrapeCategory fetches pages 1..maxPages of categoryID. It stops early once
// the configured number of consecutive pages yields no record. On a fetch
// failure or cancellation the records gathered so far are returned together
// with the error.
func (d *Driver) ScrapeCategory(ctx context.Context, categoryID string, maxPages int) (*models.ScrapeResult, error) {
	result := &models.ScrapeResult{
		RunID:      uuid.NewString(),
		CategoryID: categoryID,
		StartTime:  time.Now(),
		StopReason: models.StopMaxPages,
	}

	consecutiveEmpty := 0
	for page := 1; page <= maxPages; page++ {
		raw, err := d.fetch(ctx, categoryID, page, result)
		if err != nil {
			result.EndTime = time.Now()
			result.Err = err
			if ctxErr := ctx.Err(); ctxErr != nil {
				result.StopReason = models.StopCancelled
				slog.Warn("scrape cancelled",
					slog.String("category_id", categoryID),
					slog.Int("page", page),
					slog.Int("products", len(result.Products)),
				)
				return result, ctxErr
			}
			result.StopReason = models.StopFetchError
			d.metrics.IncPage("error")
			slog.Error("stopping category after fetch failure",
				slog.String("category_id", categoryID),
				slog.Int("page", page),
				slog.Int("products", len(result.Products)),
				slog.Any("error", err),
			)
			return result, err
		}
		result.PageCount++

		parsed := d.parser.Parse(raw, categoryID)
		d.logPageErrors(categoryID, page, parsed)
		result.CardCount += parsed.Cards
		result.DroppedCards += len(parsed.Dropped)
		d.metrics.AddCards(len(parsed.Products), len(parsed.Dropped))

		if len(parsed.Products) == 0 {
			consecutiveEmpty++
			result.EmptyPages++
			d.metrics.IncPage("empty")
			slog.Info("empty page",
				slog.String("category_id", categoryID),
				slog.Int("page", page),
				slog.Int("consecutive", consecutiveEmpty),
			)
			if consecutiveEmpty >= d.emptyThreshold {
				result.StopReason = models.StopEndOfCatalogue
				break
			}
			continue
		}

		consecutiveEmpty = 0
		d.metrics.IncPage("products")
		result.Products = append(result.Products, parsed.Products...)
		d.emit(parsed.Products)

		slog.Info("page scraped",
			slog.String("category_id", categoryID),
			slog.Int("page", page),
			slog.Int("products", len(parsed.Products)),
			slog.Int("total", len(result.Products)),
		)
	}

	result.EndTime = time.Now()
	return result, nil
}

func (d *Driver) fetch(ctx context.Context, categoryID string, page int, result *models.ScrapeResult) (string, error) {
	for attempt := 0; ; attempt++ {
		if err := d.limiter.Wait(ctx); err != nil {
			return "", err
		}

		raw, err := d.fetcher.FetchPage(ctx, categoryID, page)
		if err == nil {
			return raw, nil
		}

		var fetchErr *FetchError
		if attempt >= d.maxRetries || !errors.As(err, &fetchErr) || !fetchErr.Retryable() || ctx.Err() != nil {
			return "", err
		}

		delay := d.backoff(attempt + 1)
		result.RetryCount++
		d.metrics.IncRetries()
		slog.Warn("retrying page",
			slog.Int("page", page),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", delay),
			slog.String("category", errorKindLabel(fetchErr.Kind)),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}

func (d *Driver) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := d.backoffBase
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := d.backoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func (d *Driver) emit(products []*models.ScrapedProduct) {
	if d.sink == nil {
		return
	}
	for _, product := range products {
		if err := d.sink.Process(product); err != nil {
			slog.Error("sink process error", slog.String("slug", product.Slug), slog.Any("error", err))
		}
	}
}

func (d *Driver) logPageErrors(categoryID string, page int, parsed *parser.PageResult) {
	if parsed.Err != nil {
		slog.Warn("page could not be parsed",
			slog.String("category_id", categoryID),
			slog.Int("page", page),
			slog.Any("error", parsed.Err),
		)
	}
	for _, err := range parsed.Dropped {
		slog.Debug("card dropped", slog.Int("page", page), slog.Any("error", err))
	}
	for _, err := range parsed.FieldErrors {
		slog.Debug("field not extracted", slog.Int("page", page), slog.Any("error", err))
	}
}
