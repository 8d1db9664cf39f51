// Package pipeline validates, de-duplicates and writes scraped products in
// batches, and produces the run summary.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/go-catalogue-sync/config"
	"github.com/aluiziolira/go-catalogue-sync/models"
	"github.com/aluiziolira/go-catalogue-sync/parser"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrPipelineClosed is returned when Process is called after Close.
var ErrPipelineClosed = errors.New("pipeline: closed")

// OutputWriter receives accepted products in batches.
type OutputWriter interface {
	Write(products []*models.ScrapedProduct) error
	Close() error
	Validate() error
}

// Pipeline is the scraper's record sink. Records go through validation and a
// slug de-dup cache, then reach the writer in batches. With a single worker
// they keep submission order.
type Pipeline struct {
	writer    OutputWriter
	batchSize int
	seen      *lru.Cache[string, struct{}]
	stats     stats

	in      chan *models.ScrapedProduct
	workers sync.WaitGroup

	// sendMu lets Close wait for in-flight sends before closing in.
	sendMu sync.RWMutex
	closed bool

	failed   chan struct{}
	failOnce sync.Once
	err      error

	stopReports chan struct{}
	closeOnce   sync.Once
}

// NewPipeline builds a pipeline sized from cfg.
func NewPipeline(writer OutputWriter, cfg *config.Config) (*Pipeline, error) {
	seen, err := lru.New[string, struct{}](cfg.DedupeMaxSize)
	if err != nil {
		return nil, fmt.Errorf("create dedupe cache: %w", err)
	}

	return &Pipeline{
		writer:      writer,
		batchSize:   max(cfg.BatchSize, 1),
		seen:        seen,
		stats:       stats{rejected: make(map[string]int)},
		in:          make(chan *models.ScrapedProduct, cfg.PipelineBufferSize),
		failed:      make(chan struct{}),
		stopReports: make(chan struct{}),
	}, nil
}

// Start launches workers goroutines draining the pipeline.
func (p *Pipeline) Start(workers int) {
	for i := 0; i < max(workers, 1); i++ {
		p.workers.Add(1)
		go p.drain()
	}
}

// Process hands one product to the workers. It blocks while the buffer is
// full and fails once the pipeline is closed or a write has failed.
func (p *Pipeline) Process(product *models.ScrapedProduct) error {
	if product == nil {
		return nil
	}

	p.sendMu.RLock()
	defer p.sendMu.RUnlock()
	if p.closed {
		return ErrPipelineClosed
	}
	if err := p.Err(); err != nil {
		return err
	}

	select {
	case <-p.failed:
		return p.err
	case p.in <- product:
		return nil
	}
}

// Close flushes pending records, stops the workers and returns the first
// write error, if any.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		p.sendMu.Lock()
		p.closed = true
		close(p.in)
		p.sendMu.Unlock()
		close(p.stopReports)
	})
	p.workers.Wait()
	return p.Err()
}

// Err returns the first write error.
func (p *Pipeline) Err() error {
	select {
	case <-p.failed:
		return p.err
	default:
		return nil
	}
}

// Processed returns the number of records handed to the writer.
func (p *Pipeline) Processed() int {
	return int(p.stats.processedCount())
}

// GetMetrics returns the processed count under "processed_products" and the
// rejection counts by reason under "validation_errors".
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.stats.snapshot()
}

// StartMetricsReporting logs progress every interval until Close.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				processed, rejected := p.stats.read()
				slog.Info("pipeline progress",
					slog.Int64("processed", processed),
					slog.Int("duplicates", rejected["duplicate_slug"]),
					slog.Int("invalid", rejected["invalid_record"]),
				)
			case <-p.stopReports:
				return
			}
		}
	}()
}

func (p *Pipeline) drain() {
	defer p.workers.Done()

	batch := make([]*models.ScrapedProduct, 0, p.batchSize)
	for product := range p.in {
		if !p.accept(product) {
			continue
		}
		batch = append(batch, product)
		if len(batch) < p.batchSize {
			continue
		}
		if err := p.writer.Write(batch); err != nil {
			p.fail(err)
			return
		}
		batch = batch[:0]
	}

	if len(batch) > 0 {
		if err := p.writer.Write(batch); err != nil {
			p.fail(err)
		}
	}
}

// accept validates product, drops slugs already written and normalizes the name.
func (p *Pipeline) accept(product *models.ScrapedProduct) bool {
	if err := parser.ValidateProduct(product); err != nil {
		p.stats.reject("invalid_record")
		return false
	}
	if found, _ := p.seen.ContainsOrAdd(product.Slug, struct{}{}); found {
		p.stats.reject("duplicate_slug")
		return false
	}

	product.Name = parser.CollapseWhitespace(product.Name)
	p.stats.accept()
	return true
}

func (p *Pipeline) fail(err error) {
	p.failOnce.Do(func() {
		p.err = fmt.Errorf("write batch: %w", err)
		close(p.failed)
	})
}

type stats struct {
	mu        sync.Mutex
	processed int64
	rejected  map[string]int
}

func (s *stats) accept() {
	s.mu.Lock()
	s.processed++
	s.mu.Unlock()
}

func (s *stats) reject(reason string) {
	s.mu.Lock()
	s.rejected[reason]++
	s.mu.Unlock()
}

func (s *stats) processedCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed
}

func (s *stats) read() (int64, map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rejected := make(map[string]int, len(s.rejected))
	for reason, n := range s.rejected {
		rejected[reason] = n
	}
	return s.processed, rejected
}

func (s *stats) snapshot() map[string]interface{} {
	processed, rejected := s.read()
	return map[string]interface{}{
		"processed_products": processed,
		"validation_errors":  rejected,
	}
}
