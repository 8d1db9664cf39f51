package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aluiziolira/go-catalogue-sync/models"
	"github.com/aluiziolira/go-catalogue-sync/reconcile"
)

// Memory is an in-process reconcile.Store. It enforces the same uniqueness
// rules as the database schema and backs dry runs and tests.
type Memory struct {
	mu         sync.Mutex
	nextID     int
	categories map[string]models.Category
	categoryID map[string]string
	products   map[string]*models.StoredProduct
	slugs      map[string]string
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		categories: make(map[string]models.Category),
		categoryID: make(map[string]string),
		products:   make(map[string]*models.StoredProduct),
		slugs:      make(map[string]string),
	}
}

func (m *Memory) newID(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

// EnsureCategory returns the id of category.Slug, creating it when absent.
func (m *Memory) EnsureCategory(ctx context.Context, category models.Category) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &reconcile.UnavailableError{Op: "ensure category", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.categoryID[category.Slug]; ok {
		return id, nil
	}
	id := m.newID("cat")
	m.categoryID[category.Slug] = id
	m.categories[category.Slug] = category
	return id, nil
}

// FindByReference returns a copy of the stored product.
func (m *Memory) FindByReference(ctx context.Context, reference string) (*models.StoredProduct, error) {
	if err := ctx.Err(); err != nil {
		return nil, &reconcile.UnavailableError{Op: "find product", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	product, ok := m.products[reference]
	if !ok {
		return nil, reconcile.ErrProductNotFound
	}
	return cloneProduct(product), nil
}

// Create stores product. A reused reference or slug is a ConflictError.
func (m *Memory) Create(ctx context.Context, product *models.StoredProduct) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &reconcile.UnavailableError{Op: "create product", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[product.Reference]; ok {
		return "", &reconcile.ConflictError{Reference: product.Reference, Constraint: "products_reference_key", Err: errors.New("duplicate reference")}
	}
	if owner, ok := m.slugs[product.Slug]; ok {
		return "", &reconcile.ConflictError{Reference: product.Reference, Constraint: "products_slug_key", Err: fmt.Errorf("slug %s already used by %s", product.Slug, owner)}
	}

	stored := cloneProduct(product)
	stored.ID = m.newID("prod")
	m.products[stored.Reference] = stored
	m.slugs[stored.Slug] = stored.Reference
	product.ID = stored.ID
	return stored.ID, nil
}

// Update applies the non-nil fields of update.
func (m *Memory) Update(ctx context.Context, reference string, update models.ProductUpdate) error {
	if err := ctx.Err(); err != nil {
		return &reconcile.UnavailableError{Op: "update product", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	product, ok := m.products[reference]
	if !ok {
		return reconcile.ErrProductNotFound
	}
	if update.Price != nil {
		product.Price = *update.Price
	}
	if update.Stock != nil {
		product.StockQuantity = *update.Stock
	}
	if update.Images != nil {
		product.Images = append([]string(nil), update.Images...)
	}
	return nil
}

// Products returns copies of every stored product ordered by reference.
func (m *Memory) Products() []*models.StoredProduct {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.StoredProduct, 0, len(m.products))
	for _, product := range m.products {
		out = append(out, cloneProduct(product))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Reference < out[j].Reference })
	return out
}

// Categories returns the stored categories keyed by slug.
func (m *Memory) Categories() map[string]models.Category {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]models.Category, len(m.categories))
	for slug, category := range m.categories {
		out[slug] = category
	}
	return out
}

func cloneProduct(p *models.StoredProduct) *models.StoredProduct {
	clone := *p
	clone.Images = append([]string(nil), p.Images...)
	return &clone
}
