package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/aluiziolira/go-catalogue-sync/config"
	"github.com/aluiziolira/go-catalogue-sync/models"
)

var csvHeader = []string{"slug", "name", "reference", "supplier_reference", "price", "stock", "image", "source_url", "category_id"}

// NewWriter returns the writer selected by cfg.OutputFormat. Dual output
// derives the CSV path from OutputFile by swapping its extension.
func NewWriter(cfg *config.Config) (OutputWriter, error) {
	switch cfg.OutputFormat {
	case "csv":
		return NewCSVWriter(cfg.OutputFile)
	case "json":
		return NewJSONWriter(cfg.OutputFile)
	case "dual":
		base := strings.TrimSuffix(cfg.OutputFile, filepath.Ext(cfg.OutputFile))
		csvWriter, err := NewCSVWriter(base + ".csv")
		if err != nil {
			return nil, err
		}
		jsonWriter, err := NewJSONWriter(base + ".json")
		if err != nil {
			csvWriter.Close()
			return nil, err
		}
		return MultiWriter{csvWriter, jsonWriter}, nil
	default:
		return nil, &config.ConfigurationError{Field: "format", Reason: fmt.Sprintf("unsupported output format %q", cfg.OutputFormat)}
	}
}

// MultiWriter fans every batch out to each writer in turn. A write stops at
// the first failing writer; Close and Validate visit all of them.
type MultiWriter []OutputWriter

func (m MultiWriter) Write(products []*models.ScrapedProduct) error {
	for _, w := range m {
		if err := w.Write(products); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiWriter) Close() error {
	var errs []error
	for _, w := range m {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

func (m MultiWriter) Validate() error {
	var errs []error
	for _, w := range m {
		errs = append(errs, w.Validate())
	}
	return errors.Join(errs...)
}

// CSVWriter writes products as CSV rows. Missing optional fields are empty cells.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	rows   int
	mu     sync.Mutex
}

// NewCSVWriter creates filename and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		file:   f,
		writer: writer,
	}, nil
}

// Write appends products to the CSV output.
func (cw *CSVWriter) Write(products []*models.ScrapedProduct) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, product := range products {
		record := []string{
			product.Slug,
			product.Name,
			stringValue(product.Reference),
			stringValue(product.SupplierReference),
			priceValue(product.Price),
			stockValue(product.Stock),
			stringValue(product.Image),
			stringValue(product.SourceURL),
			stringValue(product.CategoryID),
		}
		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
		cw.rows++
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures at least one row was written after the header.
func (cw *CSVWriter) Validate() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.rows == 0 {
		return fmt.Errorf("csv file has no records")
	}
	return nil
}

// JSONWriter writes products as a single JSON array. The closing bracket
// is written by Close, so the file is only complete after Close returns.
type JSONWriter struct {
	file    *os.File
	writer  *bufio.Writer
	records int
	mu      sync.Mutex
}

// NewJSONWriter creates filename and opens the array.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	if _, err := buffer.WriteString("["); err != nil {
		f.Close()
		return nil, fmt.Errorf("open json array: %w", err)
	}

	return &JSONWriter{
		file:   f,
		writer: buffer,
	}, nil
}

// Write appends products to the array.
func (jw *JSONWriter) Write(products []*models.ScrapedProduct) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, product := range products {
		data, err := json.MarshalIndent(product, "  ", "  ")
		if err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}

		sep := ",\n  "
		if jw.records == 0 {
			sep = "\n  "
		}
		if _, err := jw.writer.WriteString(sep); err != nil {
			return fmt.Errorf("write json record: %w", err)
		}
		if _, err := jw.writer.Write(data); err != nil {
			return fmt.Errorf("write json record: %w", err)
		}
		jw.records++
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// Close terminates the array, flushes buffers and closes the file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if _, err := jw.writer.WriteString("\n]\n"); err != nil {
		return fmt.Errorf("close json array: %w", err)
	}
	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate ensures at least one record was written.
func (jw *JSONWriter) Validate() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.records == 0 {
		return fmt.Errorf("json file has no records")
	}
	return nil
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func priceValue(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', 2, 64)
}

func stockValue(s *int) string {
	if s == nil {
		return ""
	}
	return strconv.Itoa(*s)
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
