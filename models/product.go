// Package models defines the records exchanged between the scraper, the
// alternate sources, and the reconciler.
package models

import "time"

// ScrapedProduct is one product card normalized from a catalogue page.
// Optional fields are nil when the card did not carry a parseable value.
type ScrapedProduct struct {
	Slug              string   `json:"slug"`
	Name              string   `json:"name"`
	Reference         *string  `json:"reference"`
	SupplierReference *string  `json:"supplier_reference"`
	Price             *float64 `json:"price"`
	Stock             *int     `json:"stock"`
	Image             *string  `json:"image"`
	SourceURL         *string  `json:"source_url"`
	CategoryID        *string  `json:"category_id"`
}

// TarifItem is a price-list record ready for reconciliation.
type TarifItem struct {
	Reference string  `json:"reference"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Stock     int     `json:"stock"`
	Category  string  `json:"category"`
	Image     string  `json:"image,omitempty"`
}

// ImageReferenceMap maps a product reference to its public image URL.
type ImageReferenceMap map[string]string

// Lookup returns the image URL for reference, if any.
func (m ImageReferenceMap) Lookup(reference string) (string, bool) {
	if m == nil {
		return "", false
	}
	url, ok := m[reference]
	return url, ok && url != ""
}

// Category is a catalogue category as known to the product store.
type Category struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ProductStatus is the publication state of a stored product.
type ProductStatus string

const (
	StatusDraft     ProductStatus = "draft"
	StatusPublished ProductStatus = "published"
)

// StoredProduct is the product shape written to and read from the store.
type StoredProduct struct {
	ID              string
	CategoryID      string
	Reference       string
	Name            string
	Slug            string
	Description     string
	Price           float64
	TVARate         float64
	StockQuantity   int
	Images          []string
	MetaDescription string
	Status          ProductStatus
}

// ProductUpdate lists the fields of a partial update. Nil fields are untouched.
type ProductUpdate struct {
	Price  *float64
	Stock  *int
	Images []string
}

// Empty reports whether the update would change nothing.
func (u ProductUpdate) Empty() bool {
	return u.Price == nil && u.Stock == nil && u.Images == nil
}

// StopReason explains why a pagination run ended.
type StopReason string

const (
	StopMaxPages       StopReason = "max_pages"
	StopEndOfCatalogue StopReason = "end_of_catalogue"
	StopFetchError     StopReason = "fetch_error"
	StopCancelled      StopReason = "cancelled"
)

// ScrapeResult holds the overall result of one category scrape.
type ScrapeResult struct {
	RunID        string
	CategoryID   string
	Products     []*ScrapedProduct
	StartTime    time.Time
	EndTime      time.Time
	PageCount    int
	EmptyPages   int
	CardCount    int
	DroppedCards int
	RetryCount   int
	StopReason   StopReason
	Err          error
}

// Summary is the JSON summary written next to a scrape output file.
type Summary struct {
	RunID         string          `json:"run_id"`
	TotalProducts int             `json:"total_products"`
	ScrapedAt     time.Time       `json:"scraped_at"`
	Source        string          `json:"source"`
	CategoryID    string          `json:"category_id"`
	CategoryName  string          `json:"category_name"`
	PagesFetched  int             `json:"pages_fetched"`
	StopReason    StopReason      `json:"stop_reason"`
	SampleProduct *ScrapedProduct `json:"sample_product"`
}
