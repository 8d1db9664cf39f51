package sources

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aluiziolira/go-catalogue-sync/models"
)

type exportEntry struct {
	Reference string   `json:"reference"`
	Name      string   `json:"name"`
	Price     *float64 `json:"price"`
	Stock     *float64 `json:"stock"`
}

// ParseExport reads a JSON array of {reference, name, price, stock} and tags
// every item with category. Missing price or stock becomes 0.
func ParseExport(r io.Reader, category string) ([]models.TarifItem, error) {
	var entries []exportEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}

	items := make([]models.TarifItem, 0, len(entries))
	for i, entry := range entries {
		reference := strings.TrimSpace(entry.Reference)
		name := strings.TrimSpace(entry.Name)
		if reference == "" || name == "" {
			slog.Warn("export entry without reference or name", slog.Int("index", i))
			continue
		}

		item := models.TarifItem{
			Reference: reference,
			Name:      name,
			Category:  category,
		}
		if entry.Price != nil {
			item.Price = *entry.Price
		}
		if entry.Stock != nil {
			item.Stock = int(*entry.Stock)
		}
		items = append(items, item)
	}
	return items, nil
}

// ParseExportFile opens path and parses it with ParseExport.
func ParseExportFile(path, category string) ([]models.TarifItem, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer file.Close()
	return ParseExport(file, category)
}
