// Package reconcile upserts normalized price-list items into the product
// store, keyed by supplier reference.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/aluiziolira/go-catalogue-sync/models"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const maxMetaDescription = 255

// Store is the product store the reconciler writes to.
type Store interface {
	// EnsureCategory returns the id of the category with the given slug,
	// creating it when absent.
	EnsureCategory(ctx context.Context, category models.Category) (string, error)
	// FindByReference returns ErrProductNotFound when no product matches.
	FindByReference(ctx context.Context, reference string) (*models.StoredProduct, error)
	Create(ctx context.Context, product *models.StoredProduct) (string, error)
	Update(ctx context.Context, reference string, update models.ProductUpdate) error
}

// Status is the per-item result of a reconcile.
type Status string

const (
	StatusCreated Status = "created"
	StatusUpdated Status = "updated"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// Outcome is what happened to one item.
type Outcome struct {
	Reference string
	Status    Status
	Err       error
}

// Failure is a failed item as written to the import report.
type Failure struct {
	Reference string `json:"reference"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// Report aggregates the outcomes of a reconcile run.
type Report struct {
	RunID    string    `json:"run_id"`
	Total    int       `json:"total"`
	Created  int       `json:"created"`
	Updated  int       `json:"updated"`
	Skipped  int       `json:"skipped"`
	Errors   int       `json:"errors"`
	Failures []Failure `json:"failures"`
	Outcomes []Outcome `json:"-"`
}

// Add records one more outcome for item.
func (r *Report) Add(item models.TarifItem, outcome Outcome) {
	r.Total++
	r.Outcomes = append(r.Outcomes, outcome)
	switch outcome.Status {
	case StatusCreated:
		r.Created++
	case StatusUpdated:
		r.Updated++
	case StatusSkipped:
		r.Skipped++
	default:
		r.Errors++
		failure := Failure{
			Reference: item.Reference,
			Name:      item.Name,
			Category:  item.Category,
			Retryable: IsRetryable(outcome.Err),
		}
		if outcome.Err != nil {
			failure.Error = outcome.Err.Error()
		}
		r.Failures = append(r.Failures, failure)
	}
}

// WriteFile writes the report as indented JSON, creating parent directories.
func (r *Report) WriteFile(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Options tune a Reconciler.
type Options struct {
	Workers         int
	TVARate         float64
	RefreshImages   bool
	Categories      map[string]models.Category
	DefaultCategory string
	Metrics         *Metrics
}

// DefaultCategories is the category table products are filed under.
func DefaultCategories() map[string]models.Category {
	return map[string]models.Category{
		"pneus":       {Slug: "pneus", Name: "Pneus", Description: "Pneus moto, cross, route"},
		"batteries":   {Slug: "batteries", Name: "Batteries", Description: "Batteries moto Landport"},
		"lubrifiants": {Slug: "lubrifiants", Name: "Lubrifiants", Description: "Huiles et lubrifiants Motorex"},
	}
}

// Reconciler creates or updates store products from price-list items. Items
// are processed in parallel; the lookup-then-write sequence of a reference is
// serialized.
type Reconciler struct {
	store Store
	opts  Options
	locks *keyedMutex

	categoryMu  sync.Mutex
	categoryIDs map[string]string
}

// New returns a reconciler writing to store.
func New(store Store, opts Options) *Reconciler {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Categories == nil {
		opts.Categories = DefaultCategories()
	}
	if opts.DefaultCategory == "" {
		opts.DefaultCategory = "pneus"
	}
	return &Reconciler{
		store:       store,
		opts:        opts,
		locks:       newKeyedMutex(),
		categoryIDs: make(map[string]string),
	}
}

// Reconcile processes every item and returns the run report. Item failures
// are reported, never returned. Items sharing a reference run in input order,
// so the last one wins; distinct references run in parallel.
func (r *Reconciler) Reconcile(ctx context.Context, items []models.TarifItem, images models.ImageReferenceMap) *Report {
	outcomes := make([]Outcome, len(items))

	var g errgroup.Group
	g.SetLimit(r.opts.Workers)
	for _, group := range groupByReference(items) {
		group := group
		g.Go(func() error {
			for _, i := range group {
				outcomes[i] = r.ReconcileItem(ctx, items[i], images)
			}
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{RunID: uuid.NewString(), Failures: []Failure{}}
	for i, item := range items {
		report.Add(item, outcomes[i])
	}
	return report
}

// Reject records item as failed in report without touching the store. It is
// used for records refused before reconciliation, such as scraped products
// without a price.
func (r *Reconciler) Reject(report *Report, item models.TarifItem, err error) {
	outcome := Outcome{Reference: item.Reference, Status: StatusError, Err: err}
	r.opts.Metrics.observeRejected()
	slog.Warn("item rejected", slog.String("reference", item.Reference), slog.Any("error", err))
	report.Add(item, outcome)
}

// groupByReference returns item indexes grouped by reference, groups ordered
// by first appearance.
func groupByReference(items []models.TarifItem) [][]int {
	position := make(map[string]int, len(items))
	var groups [][]int
	for i, item := range items {
		key := strings.TrimSpace(item.Reference)
		idx, ok := position[key]
		if !ok {
			idx = len(groups)
			position[key] = idx
			groups = append(groups, nil)
		}
		groups[idx] = append(groups[idx], i)
	}
	return groups
}

// ReconcileItem upserts one item.
func (r *Reconciler) ReconcileItem(ctx context.Context, item models.TarifItem, images models.ImageReferenceMap) Outcome {
	outcome := r.reconcile(ctx, item, images)
	r.opts.Metrics.observe(outcome)

	switch {
	case outcome.Status == StatusCreated:
		slog.Info("product created", slog.String("reference", item.Reference), slog.String("category", item.Category))
	case outcome.Status == StatusUpdated:
		slog.Info("product updated", slog.String("reference", item.Reference))
	case outcome.Status == StatusSkipped:
		slog.Debug("product unchanged", slog.String("reference", item.Reference))
	case IsConflict(outcome.Err):
		slog.Warn("duplicate product", slog.String("reference", item.Reference), slog.Any("error", outcome.Err))
	default:
		slog.Error("reconcile failed", slog.String("reference", item.Reference), slog.Any("error", outcome.Err))
	}
	return outcome
}

func (r *Reconciler) reconcile(ctx context.Context, item models.TarifItem, images models.ImageReferenceMap) Outcome {
	outcome := Outcome{Reference: item.Reference, Status: StatusError}
	if err := ctx.Err(); err != nil {
		outcome.Err = err
		return outcome
	}
	if strings.TrimSpace(item.Reference) == "" || strings.TrimSpace(item.Name) == "" {
		outcome.Err = errors.New("item needs a reference and a name")
		return outcome
	}

	unlock := r.locks.Lock(item.Reference)
	defer unlock()

	image := item.Image
	if url, ok := images.Lookup(item.Reference); ok {
		image = url
	}

	existing, err := r.store.FindByReference(ctx, item.Reference)
	switch {
	case errors.Is(err, ErrProductNotFound):
		categoryID, err := r.categoryID(ctx, item.Category)
		if err != nil {
			outcome.Err = err
			return outcome
		}
		if _, err := r.store.Create(ctx, r.newProduct(item, categoryID, image)); err != nil {
			outcome.Err = err
			return outcome
		}
		outcome.Status = StatusCreated
		return outcome
	case err != nil:
		outcome.Err = err
		return outcome
	}

	update := models.ProductUpdate{}
	if cents(existing.Price) != cents(item.Price) {
		price := item.Price
		update.Price = &price
	}
	if existing.StockQuantity != item.Stock {
		stock := item.Stock
		update.Stock = &stock
	}
	if update.Empty() {
		outcome.Status = StatusSkipped
		return outcome
	}
	if image != "" && r.opts.RefreshImages {
		update.Images = []string{image}
	}

	if err := r.store.Update(ctx, item.Reference, update); err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.Status = StatusUpdated
	return outcome
}

func (r *Reconciler) newProduct(item models.TarifItem, categoryID, image string) *models.StoredProduct {
	images := []string{}
	if image != "" {
		images = append(images, image)
	}
	return &models.StoredProduct{
		CategoryID:      categoryID,
		Reference:       item.Reference,
		Name:            item.Name,
		Slug:            ProductSlug(item.Name, item.Reference),
		Description:     item.Name,
		Price:           item.Price,
		TVARate:         r.opts.TVARate,
		StockQuantity:   item.Stock,
		Images:          images,
		MetaDescription: truncateRunes(item.Name, maxMetaDescription),
		Status:          models.StatusPublished,
	}
}

// categoryID resolves a category slug to its store id, creating the category
// on first use.
func (r *Reconciler) categoryID(ctx context.Context, slug string) (string, error) {
	if slug == "" {
		slug = r.opts.DefaultCategory
	}

	r.categoryMu.Lock()
	defer r.categoryMu.Unlock()

	if id, ok := r.categoryIDs[slug]; ok {
		return id, nil
	}

	category, ok := r.opts.Categories[slug]
	if !ok {
		category = models.Category{Slug: slug, Name: titleCase(slug)}
	}
	id, err := r.store.EnsureCategory(ctx, category)
	if err != nil {
		return "", fmt.Errorf("ensure category %s: %w", slug, err)
	}
	r.categoryIDs[slug] = id
	return id, nil
}

func cents(price float64) int64 {
	return int64(math.Round(price * 100))
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

func titleCase(slug string) string {
	if slug == "" {
		return slug
	}
	r, size := utf8.DecodeRuneInString(slug)
	return strings.ToUpper(string(r)) + slug[size:]
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	holders int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

// Lock acquires the lock of key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &refLock{}
		k.locks[key] = lock
	}
	lock.holders++
	k.mu.Unlock()

	lock.Lock()
	return func() {
		lock.Unlock()
		k.mu.Lock()
		lock.holders--
		if lock.holders == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
