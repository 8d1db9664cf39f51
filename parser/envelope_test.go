package parser

import "testing"

func TestEnvelopeParserParse(t *testing.T) {
	raw := `{"data":[
		{"slug":"huile-motul-7100","name":"Huile  Motul 7100","reference":"ACC-HUI-001","price":"12,90","stock":4,"image":"https://cdn.coi.re/a.jpg"},
		{"name":"Pneu Michelin Road 6","url":"https://coi.re/produits/pneu-michelin-road-6","price":159.9,"stock":null},
		{"slug":"sans-nom","name":"","price":"1,00"},
		{"slug":"prix-invalide","name":"Prix invalide","price":"sur devis"}
	]}`

	result := NewEnvelopeParser("/produits/").Parse(raw, "10")
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Cards != 4 {
		t.Fatalf("cards = %d, want 4", result.Cards)
	}
	if len(result.Products) != 3 || len(result.Dropped) != 1 {
		t.Fatalf("products = %d dropped = %d, want 3 and 1", len(result.Products), len(result.Dropped))
	}

	first := result.Products[0]
	if first.Name != "Huile Motul 7100" {
		t.Fatalf("name = %q", first.Name)
	}
	if first.Price == nil || *first.Price != 12.90 {
		t.Fatalf("price = %v", first.Price)
	}
	if first.Stock == nil || *first.Stock != 4 {
		t.Fatalf("stock = %v", first.Stock)
	}

	second := result.Products[1]
	if second.Slug != "pneu-michelin-road-6" {
		t.Fatalf("slug should come from url, got %q", second.Slug)
	}
	if second.Price == nil || *second.Price != 159.9 {
		t.Fatalf("numeric price = %v", second.Price)
	}
	if second.Stock != nil {
		t.Fatalf("null stock should stay nil")
	}

	if result.Products[2].Price != nil {
		t.Fatalf("unparseable price should be nil")
	}
	if len(result.FieldErrors) != 1 || result.FieldErrors[0].Field != "price" {
		t.Fatalf("field errors = %v", result.FieldErrors)
	}
}

func TestEnvelopeParserEmptyAndInvalid(t *testing.T) {
	p := NewEnvelopeParser("/produits/")

	empty := p.Parse(`{"data":[]}`, "10")
	if empty.Err != nil || empty.Cards != 0 || len(empty.Products) != 0 {
		t.Fatalf("empty data should be an empty page, got %+v", empty)
	}

	invalid := p.Parse(`<html>login</html>`, "10")
	if invalid.Err == nil {
		t.Fatalf("expected envelope error for non JSON body")
	}
	if len(invalid.Products) != 0 {
		t.Fatalf("invalid body must not produce products")
	}
}
