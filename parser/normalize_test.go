package parser

import (
	"testing"

	"github.com/aluiziolira/go-catalogue-sync/models"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantNil bool
	}{
		{name: "thousands space and comma decimal", input: "1 234,50", want: 1234.50},
		{name: "with euro sign", input: "12,90 €", want: 12.90},
		{name: "non breaking space", input: "2\u00a0499,00", want: 2499},
		{name: "narrow non breaking space", input: "2\u202f499,99", want: 2499.99},
		{name: "html entity space", input: "1&nbsp;050,10", want: 1050.10},
		{name: "dot thousands with comma decimal", input: "1.234,50", want: 1234.50},
		{name: "point decimal", input: "25.99", want: 25.99},
		{name: "zero is a price", input: "0,00", want: 0},
		{name: "integer", input: "45", want: 45},
		{name: "empty", input: "", wantNil: true},
		{name: "only spaces", input: "   ", wantNil: true},
		{name: "garbage", input: "sur devis", wantNil: true},
		{name: "infinity", input: "Inf", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePrice(tt.input)
			if tt.wantNil {
				if got != nil || err == nil {
					t.Fatalf("ParsePrice(%q) = %v, %v; want nil with error", tt.input, got, err)
				}
				return
			}
			if err != nil || got == nil {
				t.Fatalf("ParsePrice(%q) unexpected error: %v", tt.input, err)
			}
			if diff := *got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("ParsePrice(%q) = %v, want %v", tt.input, *got, tt.want)
			}
		})
	}
}

func TestParseStock(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantNil bool
	}{
		{input: "12", want: 12},
		{input: " 7 ", want: 7},
		{input: "0", want: 0},
		{input: "", wantNil: true},
		{input: "douze", wantNil: true},
		{input: "-3", wantNil: true},
	}

	for _, tt := range tests {
		got, err := ParseStock(tt.input)
		if tt.wantNil {
			if got != nil {
				t.Errorf("ParseStock(%q) = %d, want nil", tt.input, *got)
			}
			continue
		}
		if err != nil || got == nil || *got != tt.want {
			t.Errorf("ParseStock(%q) = %v, %v; want %d", tt.input, got, err, tt.want)
		}
	}
}

func TestLeadingInt(t *testing.T) {
	if got, ok := LeadingInt("12 pcs"); !ok || got != 12 {
		t.Fatalf("LeadingInt = %d, %v", got, ok)
	}
	if _, ok := LeadingInt("n/a"); ok {
		t.Fatalf("LeadingInt should fail on non numeric input")
	}
}

func TestCollapseWhitespace(t *testing.T) {
	input := "  Huile   Motul\n\t 7100\r\n 10W40  "
	if got := CollapseWhitespace(input); got != "Huile Motul 7100 10W40" {
		t.Fatalf("CollapseWhitespace = %q", got)
	}
}

func TestSlugFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{url: "https://coi.re/produits/huile-motul-7100", want: "huile-motul-7100"},
		{url: "https://coi.re/produits/pneu-michelin/avis", want: "pneu-michelin"},
		{url: "https://coi.re/produits/batterie-yuasa?ref=1", want: "batterie-yuasa"},
		{url: "https://coi.re/categories/huiles", want: ""},
		{url: "", want: ""},
	}

	for _, tt := range tests {
		if got := SlugFromURL(tt.url, "/produits/"); got != tt.want {
			t.Errorf("SlugFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestValidateProduct(t *testing.T) {
	tests := []struct {
		name    string
		product *models.ScrapedProduct
		wantErr bool
	}{
		{name: "valid", product: &models.ScrapedProduct{Slug: "huile", Name: "Huile"}},
		{name: "nil", product: nil, wantErr: true},
		{name: "missing slug", product: &models.ScrapedProduct{Name: "Huile"}, wantErr: true},
		{name: "missing name", product: &models.ScrapedProduct{Slug: "huile", Name: "  "}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProduct(tt.product)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateProduct() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
