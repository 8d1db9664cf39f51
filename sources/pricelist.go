// Package sources reads the non-catalogue product feeds: the supplier's
// tab-delimited price list, the JSON price export, scraper output files and
// the reference to image mapping.
package sources

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-catalogue-sync/models"
	"github.com/aluiziolira/go-catalogue-sync/parser"
)

const outOfStock = "rupture"

var leadingDecimal = regexp.MustCompile(`^\s*(\d+(?:[.,]\d+)?)`)

// ParsePriceList reads a tab-delimited price list: a header line, then
// reference, name, stock and price columns. Short rows are skipped. A
// "rupture" marker in the stock or price column zeroes both.
func ParsePriceList(r io.Reader, classifier Classifier) ([]models.TarifItem, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var items []models.TarifItem
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo == 1 {
			continue
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 4 {
			slog.Warn("price list row skipped",
				slog.Int("line", lineNo),
				slog.Int("fields", len(fields)),
			)
			continue
		}

		reference := strings.TrimSpace(fields[0])
		name := parser.CollapseWhitespace(fields[1])
		stockRaw := strings.TrimSpace(fields[2])
		priceRaw := strings.TrimSpace(fields[3])
		if reference == "" || name == "" {
			slog.Warn("price list row without reference or name", slog.Int("line", lineNo))
			continue
		}

		item := models.TarifItem{
			Reference: reference,
			Name:      name,
			Category:  classifier.Classify(name),
		}
		if !isOutOfStock(stockRaw) && !isOutOfStock(priceRaw) {
			item.Stock, _ = parser.LeadingInt(stockRaw)
			item.Price = priceListAmount(priceRaw)
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return items, fmt.Errorf("read price list: %w", err)
	}
	return items, nil
}

// ParsePriceListFile opens path and parses it with ParsePriceList.
func ParsePriceListFile(path string, classifier Classifier) ([]models.TarifItem, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open price list: %w", err)
	}
	defer file.Close()
	return ParsePriceList(file, classifier)
}

func isOutOfStock(raw string) bool {
	return strings.Contains(strings.ToLower(raw), outOfStock)
}

// priceListAmount reads a comma-decimal amount, falling back to its leading
// number and then to 0.
func priceListAmount(raw string) float64 {
	if price, err := parser.ParsePrice(raw); err == nil {
		return *price
	}
	if m := leadingDecimal.FindStringSubmatch(raw); m != nil {
		if value, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64); err == nil {
			return value
		}
	}
	return 0
}
