// Package xlsx writes one worksheet per segment with excelize.
package xlsx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/examharvest/internal/domain/record"
	"github.com/kailas-cloud/examharvest/internal/domain/segment"
	"github.com/kailas-cloud/examharvest/internal/export"
	"github.com/kailas-cloud/examharvest/internal/logger"
)

const defaultSheet = "Sheet1"

// Exporter writes a workbook to a path.
type Exporter struct {
	path string
}

var _ export.Exporter = (*Exporter)(nil)

// New creates an Exporter writing to path.
func New(path string) *Exporter {
	return &Exporter{path: path}
}

// Export writes the workbook to a temporary file next to the target and
// renames it into place, so a failed run never leaves a truncated file.
func (e *Exporter) Export(ctx context.Context, results []segment.Result) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("xlsx export: %w", err)
	}

	f, err := build(results)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	dir := filepath.Dir(e.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("xlsx create dir %s: %w", dir, err)
	}
	tmp := tempPath(e.path)
	if err := f.SaveAs(tmp); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("xlsx save %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, e.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("xlsx rename to %s: %w", e.path, err)
	}

	total := 0
	for i := range results {
		total += results[i].Len()
	}
	logger.FromContext(ctx).Info("workbook written",
		zap.String("path", e.path),
		zap.Int("sheets", max(1, len(results))),
		zap.Int("records", total),
	)
	return nil
}

func build(results []segment.Result) (*excelize.File, error) {
	f := excelize.NewFile()

	labels := make([]string, len(results))
	for i := range results {
		labels[i] = results[i].Segment.Label()
	}
	names := export.SheetNames(labels)

	for i := range results {
		name := names[i]
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				_ = f.Close()
				return nil, fmt.Errorf("xlsx rename sheet %q: %w", name, err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("xlsx new sheet %q: %w", name, err)
		}
		if err := writeSheet(f, name, results[i].Records); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	if len(results) == 0 {
		if err := writeSheet(f, defaultSheet, nil); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return f, nil
}

func writeSheet(f *excelize.File, name string, recs []record.Record) error {
	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return fmt.Errorf("xlsx stream %q: %w", name, err)
	}

	cols := export.Columns()
	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("xlsx header %q: %w", name, err)
	}

	for i := range recs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("xlsx cell: %w", err)
		}
		if err := sw.SetRow(cell, cells(&recs[i])); err != nil {
			return fmt.Errorf("xlsx row %d of %q: %w", i+2, name, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("xlsx flush %q: %w", name, err)
	}
	return nil
}

// cells renders a record with numeric points as numbers and the sentinel as text.
func cells(r *record.Record) []any {
	row := make([]any, 0, 2+len(record.Subjects))
	row = append(row, r.ID(), strings.TrimSpace(r.DisplayName()))
	for _, k := range record.Subjects {
		if p, ok := r.Field(k).Value(); ok {
			row = append(row, p)
		} else {
			row = append(row, record.Sentinel)
		}
	}
	return row
}

// tempPath names the staging file next to path. excelize picks the workbook
// format from the extension, so the staging name keeps it.
func tempPath(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return filepath.Join(filepath.Dir(path), "."+strings.TrimSuffix(base, ext)+".tmp"+ext)
}
