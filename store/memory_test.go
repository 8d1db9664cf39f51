package store

import (
	"context"
	"errors"
	"testing"

	"github.com/aluiziolira/go-catalogue-sync/models"
	"github.com/aluiziolira/go-catalogue-sync/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleProduct(reference, slug string) *models.StoredProduct {
	return &models.StoredProduct{
		CategoryID:    "cat-1",
		Reference:     reference,
		Name:          "Huile " + reference,
		Slug:          slug,
		Price:         12.5,
		StockQuantity: 3,
		Images:        []string{"https://cdn/a.jpg"},
		Status:        models.StatusPublished,
	}
}

func TestMemoryEnsureCategoryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	first, err := m.EnsureCategory(ctx, models.Category{Slug: "pneus", Name: "Pneus"})
	require.NoError(t, err)
	second, err := m.EnsureCategory(ctx, models.Category{Slug: "pneus", Name: "Pneus"})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := m.EnsureCategory(ctx, models.Category{Slug: "batteries", Name: "Batteries"})
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
	assert.Len(t, m.Categories(), 2)
}

func TestMemoryCreateAndFind(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.FindByReference(ctx, "ACC-1")
	assert.ErrorIs(t, err, reconcile.ErrProductNotFound)

	product := sampleProduct("ACC-1", "huile-acc-1")
	id, err := m.Create(ctx, product)
	require.NoError(t, err)
	assert.Equal(t, id, product.ID)

	found, err := m.FindByReference(ctx, "ACC-1")
	require.NoError(t, err)
	assert.Equal(t, 12.5, found.Price)

	found.Images[0] = "mutated"
	again, err := m.FindByReference(ctx, "ACC-1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/a.jpg", again.Images[0], "callers must get copies")
}

func TestMemoryCreateConflicts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Create(ctx, sampleProduct("ACC-1", "huile-acc-1"))
	require.NoError(t, err)

	_, err = m.Create(ctx, sampleProduct("ACC-1", "another-slug"))
	var conflict *reconcile.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "products_reference_key", conflict.Constraint)

	_, err = m.Create(ctx, sampleProduct("ACC-2", "huile-acc-1"))
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "products_slug_key", conflict.Constraint)
}

func TestMemoryUpdate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Create(ctx, sampleProduct("ACC-1", "huile-acc-1"))
	require.NoError(t, err)

	price := 15.0
	require.NoError(t, m.Update(ctx, "ACC-1", models.ProductUpdate{Price: &price}))

	products := m.Products()
	require.Len(t, products, 1)
	assert.Equal(t, 15.0, products[0].Price)
	assert.Equal(t, 3, products[0].StockQuantity, "stock is untouched")

	err = m.Update(ctx, "UNKNOWN", models.ProductUpdate{Price: &price})
	assert.ErrorIs(t, err, reconcile.ErrProductNotFound)
}

func TestMemoryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemory().FindByReference(ctx, "ACC-1")
	assert.True(t, reconcile.IsRetryable(err))
	assert.True(t, errors.Is(err, context.Canceled))
}
