package sources

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aluiziolira/go-catalogue-sync/models"
	"github.com/aluiziolira/go-catalogue-sync/parser"
)

// LoadScraped reads a scraper JSON output file back into records.
func LoadScraped(r io.Reader) ([]*models.ScrapedProduct, error) {
	var products []*models.ScrapedProduct
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, fmt.Errorf("decode scraped products: %w", err)
	}
	return products, nil
}

// LoadScrapedFile opens path and reads it with LoadScraped.
func LoadScrapedFile(path string) ([]*models.ScrapedProduct, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scraped products: %w", err)
	}
	defer file.Close()
	return LoadScraped(file)
}

// Rejection is a scraped record that could not be turned into an item. Item
// carries whatever identity the record had so it can be reported.
type Rejection struct {
	Item models.TarifItem
	Err  error
}

// ScrapedToTarif converts scraped records into reconcilable items tagged with
// category. Records without a reference fall back to "REF-<slug>"; records
// without a price are not converted and come back as ValidationErrors.
func ScrapedToTarif(products []*models.ScrapedProduct, category string) ([]models.TarifItem, []Rejection) {
	items := make([]models.TarifItem, 0, len(products))
	var rejected []Rejection

	for _, product := range products {
		if product == nil {
			continue
		}
		item := models.TarifItem{
			Name:     product.Name,
			Category: category,
		}
		switch {
		case product.Reference != nil && *product.Reference != "":
			item.Reference = *product.Reference
		case product.Slug != "":
			item.Reference = "REF-" + product.Slug
		}

		if err := parser.ValidateProduct(product); err != nil {
			rejected = append(rejected, Rejection{Item: item, Err: err})
			continue
		}
		if product.Price == nil {
			rejected = append(rejected, Rejection{Item: item, Err: &parser.ValidationError{Field: "price", Record: product.Slug}})
			continue
		}

		item.Price = *product.Price
		if product.Stock != nil {
			item.Stock = *product.Stock
		}
		if product.Image != nil {
			item.Image = *product.Image
		}
		items = append(items, item)
	}
	return items, rejected
}
