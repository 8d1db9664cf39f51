package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aluiziolira/go-catalogue-sync/config"
	"github.com/aluiziolira/go-catalogue-sync/models"
)

func fullProduct() *models.ScrapedProduct {
	ref := "ACC-HUI-001"
	supplier := "MOT-104092"
	price := 1234.5
	stock := 12
	image := "https://cdn.example/motul.jpg"
	source := "https://shop.example/produits/huile-motul-7100"
	category := "10"
	return &models.ScrapedProduct{
		Slug:              "huile-motul-7100",
		Name:              "Huile Motul 7100",
		Reference:         &ref,
		SupplierReference: &supplier,
		Price:             &price,
		Stock:             &stock,
		Image:             &image,
		SourceURL:         &source,
		CategoryID:        &category,
	}
}

func TestCSVWriterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "products.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	if err := writer.Validate(); err == nil {
		t.Fatalf("expected validation error before any record")
	}

	sparse := &models.ScrapedProduct{Slug: "batterie-yuasa", Name: "Batterie Yuasa"}
	if err := writer.Write([]*models.ScrapedProduct{fullProduct(), sparse}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records=%d, want 3", len(records))
	}
	if records[0][0] != "slug" || records[0][4] != "price" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	if records[1][4] != "1234.50" || records[1][5] != "12" || records[1][2] != "ACC-HUI-001" {
		t.Fatalf("unexpected full row: %v", records[1])
	}
	if records[2][2] != "" || records[2][4] != "" || records[2][5] != "" {
		t.Fatalf("missing fields should be empty cells: %v", records[2])
	}
}

func TestJSONWriterWritesArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}

	sparse := &models.ScrapedProduct{Slug: "batterie-yuasa", Name: "Batterie Yuasa"}
	if err := writer.Write([]*models.ScrapedProduct{fullProduct()}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Write([]*models.ScrapedProduct{sparse}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read json: %v", err)
	}

	var decoded []map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not a JSON array: %v\n%s", err, data)
	}
	if len(decoded) != 2 {
		t.Fatalf("records=%d, want 2", len(decoded))
	}
	if decoded[0]["price"] != 1234.5 || decoded[0]["supplier_reference"] != "MOT-104092" {
		t.Fatalf("unexpected first record: %v", decoded[0])
	}
	for _, key := range []string{"reference", "price", "stock", "image", "source_url", "category_id"} {
		value, ok := decoded[1][key]
		if !ok || value != nil {
			t.Fatalf("%s should serialize as null, got %v (present=%v)", key, value, ok)
		}
	}
}

func TestJSONWriterEmptyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	if err := writer.Validate(); err == nil {
		t.Fatalf("expected validation error for empty output")
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var decoded []any
	if err := json.Unmarshal(data, &decoded); err != nil || len(decoded) != 0 {
		t.Fatalf("expected empty array, got %q (%v)", data, err)
	}
}

func TestNewWriterDual(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.OutputFormat = "dual"
	cfg.OutputFile = filepath.Join(dir, "products.json")

	writer, err := NewWriter(cfg)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if multi, ok := writer.(MultiWriter); !ok || len(multi) != 2 {
		t.Fatalf("writer = %T, want a MultiWriter over csv and json", writer)
	}
	if err := writer.Write([]*models.ScrapedProduct{fullProduct()}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	for _, name := range []string{"products.csv", "products.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
}

func TestNewWriterUnknownFormat(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputFormat = "xml"

	if _, err := NewWriter(cfg); !config.IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestWriteSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.json")
	summary := BuildSummary(&models.ScrapeResult{
		RunID:      "run-7",
		CategoryID: "10",
		Products:   []*models.ScrapedProduct{fullProduct()},
		PageCount:  2,
		StopReason: models.StopMaxPages,
	}, 1, "https://shop.example/catalogue/produits", "lubrifiants")

	if err := WriteSummary(path, summary); err != nil {
		t.Fatalf("write summary: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	for _, key := range []string{"run_id", "total_products", "scraped_at", "source", "category_id", "category_name", "pages_fetched", "stop_reason", "sample_product"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("summary missing %q: %s", key, data)
		}
	}
	if decoded["stop_reason"] != "max_pages" || decoded["total_products"] != float64(1) {
		t.Fatalf("unexpected summary: %s", data)
	}
}

type failingWriter struct {
	writeErr    error
	validateErr error
	writes      int
	closed      bool
}

func (f *failingWriter) Write([]*models.ScrapedProduct) error {
	f.writes++
	return f.writeErr
}

func (f *failingWriter) Close() error {
	f.closed = true
	return nil
}

func (f *failingWriter) Validate() error { return f.validateErr }

func TestMultiWriter(t *testing.T) {
	first := &failingWriter{writeErr: errors.New("disk full")}
	second := &failingWriter{validateErr: errors.New("empty")}
	multi := MultiWriter{first, second}

	if err := multi.Write([]*models.ScrapedProduct{fullProduct()}); err == nil || err.Error() != "disk full" {
		t.Fatalf("expected first writer error, got %v", err)
	}
	if second.writes != 0 {
		t.Fatalf("write should stop at the failing writer")
	}
	if err := multi.Validate(); err == nil || !errors.Is(err, second.validateErr) {
		t.Fatalf("expected validation error from second writer, got %v", err)
	}
	if err := multi.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !first.closed || !second.closed {
		t.Fatalf("every writer should be closed")
	}
}
