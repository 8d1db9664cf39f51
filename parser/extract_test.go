package parser

import (
	"errors"
	"os"
	"testing"
)

func loadCataloguePage(t *testing.T) string {
	t.Helper()
	raw, err := os.ReadFile("testdata/catalogue_page.html")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return string(raw)
}

func TestExtractorParsesCataloguePage(t *testing.T) {
	sources := map[string]CardSource{
		"regex": NewRegexCardSource(),
		"dom":   NewDOMCardSource(),
	}

	for name, source := range sources {
		t.Run(name, func(t *testing.T) {
			result := NewExtractor(source, "/produits/").Parse(loadCataloguePage(t), "10")
			if result.Err != nil {
				t.Fatalf("unexpected page error: %v", result.Err)
			}
			if result.Cards != 3 {
				t.Fatalf("cards = %d, want 3", result.Cards)
			}
			if len(result.Products) != 2 {
				t.Fatalf("products = %d, want 2", len(result.Products))
			}
			if len(result.Dropped) != 1 {
				t.Fatalf("dropped = %d, want 1", len(result.Dropped))
			}
			var validationErr *ValidationError
			if !errors.As(result.Dropped[0], &validationErr) || validationErr.Field != "slug" {
				t.Fatalf("dropped card should fail on slug, got %v", result.Dropped[0])
			}

			first := result.Products[0]
			if first.Slug != "huile-motul-7100-10w40-4l" {
				t.Fatalf("slug = %q", first.Slug)
			}
			if first.Name != "Huile Motul 7100 10W40 4L" {
				t.Fatalf("name = %q", first.Name)
			}
			if first.Reference == nil || *first.Reference != "ACC-HUI-001" {
				t.Fatalf("reference = %v", first.Reference)
			}
			if first.SupplierReference == nil || *first.SupplierReference != "MOT-104092" {
				t.Fatalf("supplier reference = %v", first.SupplierReference)
			}
			if first.Price == nil || *first.Price != 1234.50 {
				t.Fatalf("price = %v, want 1234.50", first.Price)
			}
			if first.Stock == nil || *first.Stock != 12 {
				t.Fatalf("stock = %v, want 12", first.Stock)
			}
			if first.Image == nil || *first.Image != "https://cdn.coi.re/img/huile-motul.jpg" {
				t.Fatalf("image = %v", first.Image)
			}
			if first.CategoryID == nil || *first.CategoryID != "10" {
				t.Fatalf("category id = %v", first.CategoryID)
			}

			second := result.Products[1]
			if second.Name != "Batterie Yuasa & Acide YTX9" {
				t.Fatalf("name = %q", second.Name)
			}
			if second.Reference != nil {
				t.Fatalf("supplier label must not fill reference, got %q", *second.Reference)
			}
			if second.SupplierReference == nil || *second.SupplierReference != "YUA-YTX9" {
				t.Fatalf("supplier reference = %v", second.SupplierReference)
			}
			if second.Price != nil {
				t.Fatalf("missing price should stay nil, got %v", *second.Price)
			}
			if second.Image != nil {
				t.Fatalf("missing image should stay nil, got %q", *second.Image)
			}
		})
	}
}

func TestExtractorEmptyPage(t *testing.T) {
	result := NewExtractor(nil, "/produits/").Parse("<html><body><p>Aucun produit</p></body></html>", "10")
	if result.Err != nil || result.Cards != 0 || len(result.Products) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestExtractCardReportsInvalidPrice(t *testing.T) {
	block := `<div class="card product-card"><div><div>
		<a href="/produits/pneu-michelin" class="product-name">Pneu Michelin</a>
		<span class="effective-price">N/C €</span>
	</div></div></div>`

	product, fieldErrs := NewExtractor(nil, "/produits/").ExtractCard(block)
	if product.Price != nil {
		t.Fatalf("invalid price must be nil, got %v", *product.Price)
	}
	if product.Slug != "pneu-michelin" || product.Name != "Pneu Michelin" {
		t.Fatalf("other fields should survive a bad price, got %+v", product)
	}
	if len(fieldErrs) != 1 || fieldErrs[0].Field != "price" {
		t.Fatalf("expected one price parse error, got %v", fieldErrs)
	}
}

func TestDOMCardSourceHandlesDeeperNesting(t *testing.T) {
	page := `<div class="card product-card"><div><div><div>
		<a href="/produits/kit-chaine" class="product-name">Kit chaîne</a>
	</div></div></div><span class="effective-price">89,00 €</span></div>`

	regexResult := NewExtractor(NewRegexCardSource(), "/produits/").Parse(page, "")
	domResult := NewExtractor(NewDOMCardSource(), "/produits/").Parse(page, "")

	if len(regexResult.Products) != 1 || len(domResult.Products) != 1 {
		t.Fatalf("both sources should find the card: regex=%d dom=%d", len(regexResult.Products), len(domResult.Products))
	}
	if regexResult.Products[0].Price != nil {
		t.Fatalf("fixed depth pattern should stop before the price")
	}
	if price := domResult.Products[0].Price; price == nil || *price != 89 {
		t.Fatalf("dom source price = %v, want 89", price)
	}
}

func TestNewCardSource(t *testing.T) {
	for _, name := range []string{"", "regex", "dom"} {
		if _, err := NewCardSource(name); err != nil {
			t.Fatalf("NewCardSource(%q): %v", name, err)
		}
	}
	if _, err := NewCardSource("xpath"); err == nil {
		t.Fatalf("expected error for unknown card source")
	}
}
