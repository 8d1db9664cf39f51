package pipeline

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aluiziolira/go-catalogue-sync/models"
)

// BuildSummary describes a finished scrape. total is the number of records
// that reached the output, which can be lower than len(result.Products)
// once duplicates are dropped.
func BuildSummary(result *models.ScrapeResult, total int, source, categoryName string) models.Summary {
	summary := models.Summary{
		TotalProducts: total,
		Source:        source,
		CategoryName:  categoryName,
	}
	if result == nil {
		return summary
	}

	summary.RunID = result.RunID
	summary.ScrapedAt = result.EndTime.UTC()
	summary.CategoryID = result.CategoryID
	summary.PagesFetched = result.PageCount
	summary.StopReason = result.StopReason
	if len(result.Products) > 0 {
		summary.SampleProduct = result.Products[0]
	}
	return summary
}

// WriteSummary writes summary as indented JSON to path.
func WriteSummary(path string, summary models.Summary) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
