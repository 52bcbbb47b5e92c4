// Package export renders harvested segments into tabular outputs.
package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kailas-cloud/examharvest/internal/domain/record"
	"github.com/kailas-cloud/examharvest/internal/domain/segment"
)

// MaxSheetName is the longest sheet name spreadsheet tools accept, in runes.
const MaxSheetName = 31

// DefaultSheetName replaces a label that sanitizes to nothing.
const DefaultSheetName = "Sheet"

// Column headers preceding the subject columns.
const (
	ColumnID   = "candidateNumber"
	ColumnName = "fullName"
)

// Exporter writes a run's results. Results arrive in prefix order.
type Exporter interface {
	Export(ctx context.Context, results []segment.Result) error
}

// Columns returns the fixed column order: id, name, then every subject.
func Columns() []string {
	cols := make([]string, 0, 2+len(record.Subjects))
	cols = append(cols, ColumnID, ColumnName)
	return append(cols, record.Subjects...)
}

// Row renders a record in Columns order. Missing subjects become the sentinel.
func Row(r *record.Record) []string {
	row := make([]string, 0, 2+len(record.Subjects))
	row = append(row, r.ID(), r.DisplayName())
	for _, k := range record.Subjects {
		row = append(row, r.Field(k).String())
	}
	return row
}

var sheetNameReplacer = strings.NewReplacer(
	"[", "", "]", "", ":", "", "*", "", "?", "", "/", "", `\`, "",
)

// SheetName strips the characters spreadsheet tools reserve, trims spaces and
// edge apostrophes and truncates to MaxSheetName runes. An empty result
// becomes DefaultSheetName.
func SheetName(label string) string {
	name := trimEdges(sheetNameReplacer.Replace(label))
	name = trimEdges(truncateRunes(name, MaxSheetName))
	if name == "" {
		return DefaultSheetName
	}
	return name
}

// trimEdges removes spaces and apostrophes at both ends; a sheet name may not
// start or end with an apostrophe.
func trimEdges(s string) string {
	return strings.TrimFunc(s, func(r rune) bool { return r == '\'' || unicode.IsSpace(r) })
}

// SheetNames sanitizes every label with SheetName and disambiguates duplicates
// (compared case-insensitively) with a " (n)" suffix that still fits.
func SheetNames(labels []string) []string {
	out := make([]string, len(labels))
	used := make(map[string]bool, len(labels))
	for i, l := range labels {
		base := SheetName(l)
		name := base
		for n := 2; used[strings.ToLower(name)]; n++ {
			suffix := fmt.Sprintf(" (%d)", n)
			name = trimEdges(truncateRunes(base, MaxSheetName-len(suffix))) + suffix
		}
		used[strings.ToLower(name)] = true
		out[i] = name
	}
	return out
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Multi fans one result set out to several exporters. Every exporter runs;
// failures are joined.
type Multi []Exporter

// Export implements Exporter.
func (m Multi) Export(ctx context.Context, results []segment.Result) error {
	var errs []error
	for _, e := range m {
		if err := e.Export(ctx, results); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
