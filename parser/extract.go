package parser

import (
	"html"
	"regexp"
	"strings"

	"github.com/aluiziolira/go-catalogue-sync/models"
)

// PageResult is the outcome of parsing one catalogue page.
type PageResult struct {
	Products    []*models.ScrapedProduct
	Cards       int
	Dropped     []error
	FieldErrors []*ParseError
	// Err is set when the page as a whole could not be parsed.
	Err error
}

var (
	refSpan       = regexp.MustCompile(`(?i)<span class="product-ref">\s*([^<]+)`)
	supplierLabel = regexp.MustCompile(`(?is)^R(?:é|&eacute;|e)f\.\s*fourn\.\s*:\s*(.+)$`)
	refLabel      = regexp.MustCompile(`(?is)^R(?:é|&eacute;|e)f\.\s*:\s*(.+)$`)
	priceSpan     = regexp.MustCompile(`(?i)<span class="effective-price">\s*([^<€]*?)\s*(?:€|&euro;)`)
	stockSpan     = regexp.MustCompile(`(?i)<span class="product-stock">\s*(\d+)\s*unit(?:é|&eacute;|e)s en stock`)
	imageSrc      = regexp.MustCompile(`(?i)<img[^>]*?\ssrc="([^"]+)"`)
)

// Extractor turns catalogue HTML into normalized product records. The card
// source decides how blocks are found; field rules never change with it.
type Extractor struct {
	source      CardSource
	productPath string
	productLink *regexp.Regexp
}

// NewExtractor builds an extractor whose product links live under productPath.
func NewExtractor(source CardSource, productPath string) *Extractor {
	if source == nil {
		source = NewRegexCardSource()
	}
	return &Extractor{
		source:      source,
		productPath: productPath,
		productLink: regexp.MustCompile(`(?is)<a href="([^"]*` + regexp.QuoteMeta(productPath) + `[^"]+)" class="product-name[^"]*">\s*(.*?)\s*</a>`),
	}
}

// Parse extracts every valid card of rawHTML. Cards without slug or name are
// dropped and reported in Dropped.
func (e *Extractor) Parse(rawHTML string, categoryID string) *PageResult {
	result := &PageResult{}

	blocks, err := e.source.Cards(rawHTML)
	if err != nil {
		result.Err = &ParseError{Field: "page", Err: err}
		return result
	}
	result.Cards = len(blocks)

	for _, block := range blocks {
		product, fieldErrs := e.ExtractCard(block)
		result.FieldErrors = append(result.FieldErrors, fieldErrs...)
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

// ExtractCard applies every field rule to one card block. A failing field is
// left nil and reported; it never prevents the other fields from being read.
func (e *Extractor) ExtractCard(block string) (*models.ScrapedProduct, []*ParseError) {
	product := &models.ScrapedProduct{}
	var fieldErrs []*ParseError

	if m := e.productLink.FindStringSubmatch(block); m != nil {
		link := strings.TrimSpace(m[1])
		product.SourceURL = stringPtr(link)
		product.Slug = SlugFromURL(link, e.productPath)
		product.Name = CollapseWhitespace(html.UnescapeString(stripTags(m[2])))
	} else {
		fieldErrs = append(fieldErrs, &ParseError{Field: "product_link", Err: errNotFound})
	}

	for _, m := range refSpan.FindAllStringSubmatch(block, -1) {
		label := strings.TrimSpace(m[1])
		if sm := supplierLabel.FindStringSubmatch(label); sm != nil {
			if product.SupplierReference == nil {
				product.SupplierReference = stringPtr(strings.TrimSpace(html.UnescapeString(sm[1])))
			}
			continue
		}
		if rm := refLabel.FindStringSubmatch(label); rm != nil && product.Reference == nil {
			product.Reference = stringPtr(strings.TrimSpace(html.UnescapeString(rm[1])))
		}
	}

	if m := priceSpan.FindStringSubmatch(block); m != nil {
		price, err := ParsePrice(m[1])
		if err != nil {
			fieldErrs = append(fieldErrs, &ParseError{Field: "price", Raw: m[1], Err: err})
		} else {
			product.Price = price
		}
	}

	if m := stockSpan.FindStringSubmatch(block); m != nil {
		stock, err := ParseStock(m[1])
		if err != nil {
			fieldErrs = append(fieldErrs, &ParseError{Field: "stock", Raw: m[1], Err: err})
		} else {
			product.Stock = stock
		}
	}

	if m := imageSrc.FindStringSubmatch(block); m != nil {
		product.Image = stringPtr(m[1])
	}

	return product, fieldErrs
}

var tag = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string {
	return tag.ReplaceAllString(s, " ")
}
