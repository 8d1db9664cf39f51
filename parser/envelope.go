package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-catalogue-sync/models"
)

// EnvelopeParser reads the JSON access mode of the catalogue, which answers
// with {"data": [...]} and an empty data array past the last page.
type EnvelopeParser struct {
	productPath string
}

// NewEnvelopeParser returns a parser for JSON catalogue pages.
func NewEnvelopeParser(productPath string) *EnvelopeParser {
	return &EnvelopeParser{productPath: productPath}
}

type envelope struct {
	Data []envelopeEntry `json:"data"`
}

type envelopeEntry struct {
	Slug              string          `json:"slug"`
	Name              string          `json:"name"`
	Reference         string          `json:"reference"`
	SupplierReference string          `json:"supplier_reference"`
	Price             json.RawMessage `json:"price"`
	Stock             json.RawMessage `json:"stock"`
	Image             string          `json:"image"`
	URL               string          `json:"url"`
}

// Parse decodes rawJSON and normalizes each entry with the same rules as the
// HTML extractor.
func (p *EnvelopeParser) Parse(rawJSON string, categoryID string) *PageResult {
	result := &PageResult{}

	var env envelope
	if err := json.Unmarshal([]byte(rawJSON), &env); err != nil {
		result.Err = &ParseError{Field: "envelope", Err: err}
		return result
	}
	result.Cards = len(env.Data)

	for _, entry := range env.Data {
		product := &models.ScrapedProduct{
			Slug: strings.TrimSpace(entry.Slug),
			Name: CollapseWhitespace(entry.Name),
		}
		if entry.URL != "" {
			product.SourceURL = stringPtr(entry.URL)
			if product.Slug == "" {
				product.Slug = SlugFromURL(entry.URL, p.productPath)
			}
		}
		if ref := strings.TrimSpace(entry.Reference); ref != "" {
			product.Reference = stringPtr(ref)
		}
		if ref := strings.TrimSpace(entry.SupplierReference); ref != "" {
			product.SupplierReference = stringPtr(ref)
		}
		if entry.Image != "" {
			product.Image = stringPtr(entry.Image)
		}

		if raw, ok := scalar(entry.Price); ok {
			if price, err := ParsePrice(raw); err != nil {
				result.FieldErrors = append(result.FieldErrors, &ParseError{Field: "price", Raw: raw, Err: err})
			} else {
				product.Price = price
			}
		}
		if raw, ok := scalar(entry.Stock); ok {
			if stock, err := ParseStock(raw); err != nil {
				result.FieldErrors = append(result.FieldErrors, &ParseError{Field: "stock", Raw: raw, Err: err})
			} else {
				product.Stock = stock
			}
		}

		if err := ValidateProduct(product); err != nil {
			result.Dropped = append(result.Dropped, err)
			continue
		}
		if categoryID != "" {
			product.CategoryID = stringPtr(categoryID)
		}
		result.Products = append(result.Products, product)
	}
	return result
}

// scalar renders a JSON number or string as text. Null and absent values
// report false.
func scalar(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", false
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return "", false
	}
	return fmt.Sprint(n), true
}
