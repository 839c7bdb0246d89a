package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"collectibles-market/models"
)

// CSVComps appends the comparables behind each pricing lookup to a CSV file.
// It is safe for concurrent use.
type CSVComps struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

var compsHeader = []string{
	"lookup_key", "item_ref", "purpose", "mode", "tier", "variant",
	"title", "price", "currency", "date", "url", "reason", "computed_at",
}

// NewCSVComps opens the CSV file at the given path for appending, writing the
// header row if the file is new. Intermediate directories are created
// automatically.
func NewCSVComps(path string) (*CSVComps, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("csv: open file %q: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: stat %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		// UTF-8 BOM so spreadsheet tools detect the encoding
		if _, err := f.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("csv: write bom: %w", err)
		}
		if err := w.Write(compsHeader); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("csv: write header: %w", err)
		}
		w.Flush()
	}

	return &CSVComps{file: f, writer: w}, nil
}

// WriteComps writes one row per match of result.
func (c *CSVComps) WriteComps(_ context.Context, result *models.PricingResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	computed := result.ComputedAt.Format(time.RFC3339)
	for _, m := range result.Matches {
		date := ""
		if m.EndOrStartDate != nil {
			date = m.EndOrStartDate.Format("2006-01-02")
		}
		row := []string{
			result.Key,
			result.Item.Ref,
			string(result.Purpose),
			string(result.Mode),
			string(m.Tier),
			m.VariantLabel,
			m.Title,
			strconv.FormatFloat(m.Price, 'f', 2, 64),
			m.Currency,
			date,
			m.URL,
			m.Reason,
			computed,
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVComps) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
