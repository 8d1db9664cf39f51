package sources

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aluiziolira/go-catalogue-sync/models"
	"github.com/aluiziolira/go-catalogue-sync/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExport(t *testing.T) {
	input := `[
		{"reference": "ACC-HUI-001", "name": "Huile Motul 7100 10W40 4L", "price": 45.9, "stock": 6},
		{"reference": "ACC-HUI-002", "name": "Huile Motorex Cross Power", "price": 39.5},
		{"reference": "ACC-HUI-003", "name": "Graisse chaine", "stock": null},
		{"reference": "", "name": "Sans reference", "price": 1}
	]`

	items, err := ParseExport(strings.NewReader(input), "lubrifiants")
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, models.TarifItem{Reference: "ACC-HUI-001", Name: "Huile Motul 7100 10W40 4L", Price: 45.9, Stock: 6, Category: "lubrifiants"}, items[0])
	assert.Zero(t, items[1].Stock)
	assert.Zero(t, items[2].Price)
	assert.Zero(t, items[2].Stock)
	for _, item := range items {
		assert.Equal(t, "lubrifiants", item.Category)
	}
}

func TestParseExportInvalid(t *testing.T) {
	_, err := ParseExport(strings.NewReader(`{"not": "an array"}`), "lubrifiants")
	assert.Error(t, err)
}

func TestParseExportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huiles.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"reference":"H-1","name":"Huile","price":9.5,"stock":2}]`), 0o644))

	items, err := ParseExportFile(path, "lubrifiants")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Stock)
}

func ptr[T any](v T) *T {
	return &v
}

func TestScrapedToTarif(t *testing.T) {
	products := []*models.ScrapedProduct{
		{Slug: "huile-a", Name: "Huile A", Reference: ptr("ACC-A"), Price: ptr(12.5), Stock: ptr(3), Image: ptr("https://cdn/a.jpg")},
		{Slug: "huile-b", Name: "Huile B", Price: ptr(0.0)},
		{Slug: "huile-c", Name: "Huile C"},
		{Slug: "", Name: "Sans slug", Price: ptr(1.0)},
	}

	items, rejected := ScrapedToTarif(products, "lubrifiants")
	require.Len(t, items, 2)
	require.Len(t, rejected, 2)

	assert.Equal(t, models.TarifItem{Reference: "ACC-A", Name: "Huile A", Price: 12.5, Stock: 3, Category: "lubrifiants", Image: "https://cdn/a.jpg"}, items[0])
	assert.Equal(t, "REF-huile-b", items[1].Reference)
	assert.Zero(t, items[1].Stock)

	var validationErr *parser.ValidationError
	require.ErrorAs(t, rejected[0].Err, &validationErr)
	assert.Equal(t, "price", validationErr.Field)
	assert.Equal(t, "REF-huile-c", rejected[0].Item.Reference)
	assert.Equal(t, "Huile C", rejected[0].Item.Name)
	assert.Equal(t, "lubrifiants", rejected[0].Item.Category)

	require.ErrorAs(t, rejected[1].Err, &validationErr)
	assert.Equal(t, "slug", validationErr.Field)
	assert.Equal(t, "Sans slug", rejected[1].Item.Name)
}

func TestLoadScraped(t *testing.T) {
	input := `[{"slug":"huile-a","name":"Huile A","reference":"ACC-A","supplier_reference":null,"price":12.5,"stock":null,"image":null,"source_url":"https://coi.re/produits/huile-a","category_id":"10"}]`

	products, err := LoadScraped(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "huile-a", products[0].Slug)
	assert.Nil(t, products[0].Stock)
	require.NotNil(t, products[0].Price)
	assert.Equal(t, 12.5, *products[0].Price)

	_, err = LoadScrapedFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadImageMap(t *testing.T) {
	dir := t.TempDir()

	images, err := LoadImageMap(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Empty(t, images)

	path := filepath.Join(dir, "reference-mapping.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ACC-A":"https://cdn/a.jpg","ACC-B":""}`), 0o644))

	images, err = LoadImageMap(path)
	require.NoError(t, err)
	url, ok := images.Lookup("ACC-A")
	assert.True(t, ok)
	assert.Equal(t, "https://cdn/a.jpg", url)
	_, ok = images.Lookup("ACC-B")
	assert.False(t, ok, "empty urls are not usable")

	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))
	_, err = LoadImageMap(path)
	assert.Error(t, err)
}
