// Package parser extracts product records from catalogue pages and normalizes
// their locale-specific fields.
package parser

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/aluiziolira/go-catalogue-sync/models"
)

var (
	errEmpty    = errors.New("empty value")
	errNotFound = errors.New("pattern not found")

	whitespaceRun = regexp.MustCompile(`\s+`)
	leadingDigits = regexp.MustCompile(`^\s*(\d+)`)
)

// CollapseWhitespace trims s and folds every whitespace run, newlines included,
// into a single space.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// ParsePrice converts a locale-formatted price such as "1 234,50 €" to 1234.5.
// It returns nil for absent or invalid input; zero is a valid price.
func ParsePrice(raw string) (*float64, error) {
	cleaned := strings.ReplaceAll(raw, "&nbsp;", "")
	cleaned = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		switch r {
		case '€', '$', '£':
			return -1
		}
		return r
	}, cleaned)
	cleaned = strings.TrimSuffix(strings.TrimSuffix(cleaned, "EUR"), "eur")
	if cleaned == "" {
		return nil, errEmpty
	}

	if strings.Contains(cleaned, ",") {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return nil, errors.New("price out of range")
	}
	return &value, nil
}

// ParseStock parses a units-in-stock count. It returns nil for absent or
// unparseable input.
func ParseStock(raw string) (*int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errEmpty
	}
	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return nil, err
	}
	if value < 0 {
		return nil, errors.New("negative stock")
	}
	return &value, nil
}

// LeadingInt parses the digit run at the start of raw, like "12 pcs" -> 12.
func LeadingInt(raw string) (int, bool) {
	match := leadingDigits.FindStringSubmatch(raw)
	if match == nil {
		return 0, false
	}
	value, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return value, true
}

// SlugFromURL returns the path segment that follows productPath in rawURL.
func SlugFromURL(rawURL, productPath string) string {
	idx := strings.Index(rawURL, productPath)
	if idx < 0 {
		return ""
	}
	rest := rawURL[idx+len(productPath):]
	if cut := strings.IndexAny(rest, "/?#\""); cut >= 0 {
		rest = rest[:cut]
	}
	return strings.TrimSpace(rest)
}

// ValidateProduct ensures the card produced the fields every record needs.
func ValidateProduct(p *models.ScrapedProduct) error {
	if p == nil {
		return &ValidationError{Field: "record"}
	}
	if strings.TrimSpace(p.Slug) == "" {
		return &ValidationError{Field: "slug", Record: p.Name}
	}
	if strings.TrimSpace(p.Name) == "" {
		return &ValidationError{Field: "name", Record: p.Slug}
	}
	return nil
}

func stringPtr(s string) *string {
	return &s
}
