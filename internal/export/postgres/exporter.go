// Package postgres loads harvested records into a Postgres table with COPY.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kailas-cloud/examharvest/internal/domain/record"
	"github.com/kailas-cloud/examharvest/internal/domain/segment"
	"github.com/kailas-cloud/examharvest/internal/export"
	"github.com/kailas-cloud/examharvest/internal/logger"
)

// beginner is the consumer interface for the export transaction (ISP).
type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Config scopes an export to one table and one exam year/type.
type Config struct {
	Table    string
	Year     string
	ExamType string
}

// Exporter replaces the rows of one year/type in a single transaction.
// Sentinel scores are stored as NULL.
type Exporter struct {
	db  beginner
	cfg Config
}

var _ export.Exporter = (*Exporter)(nil)

// New creates an Exporter. The table name must already be validated as a
// plain identifier.
func New(db beginner, cfg Config) *Exporter {
	return &Exporter{db: db, cfg: cfg}
}

// Open connects a small pool for the exporter.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres dsn: %w", err)
	}
	cfg.MaxConns = 2
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// Columns returns the table columns in COPY order.
func Columns() []string {
	cols := []string{"year", "exam_type", "prefix", "segment", "suffix", "candidate_number", "full_name"}
	for _, s := range record.Subjects {
		cols = append(cols, columnName(s))
	}
	return cols
}

// Export implements export.Exporter.
func (e *Exporter) Export(ctx context.Context, results []segment.Result) (err error) {
	tx, err := e.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, e.createTableSQL()); err != nil {
		return fmt.Errorf("postgres create table %s: %w", e.cfg.Table, err)
	}
	if _, err = tx.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE year = $1 AND exam_type = $2", e.quotedTable()),
		e.cfg.Year, e.cfg.ExamType,
	); err != nil {
		return fmt.Errorf("postgres clear %s: %w", e.cfg.Table, err)
	}

	rows := e.rows(results)
	n, err := tx.CopyFrom(ctx, pgx.Identifier{e.cfg.Table}, Columns(), pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("postgres copy into %s: %w", e.cfg.Table, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres commit: %w", err)
	}

	logger.FromContext(ctx).Info("postgres export done",
		zap.String("table", e.cfg.Table),
		zap.Int64("rows", n),
	)
	return nil
}

func (e *Exporter) rows(results []segment.Result) [][]any {
	total := 0
	for i := range results {
		total += results[i].Len()
	}
	out := make([][]any, 0, total)
	for i := range results {
		seg := results[i].Segment
		for j := range results[i].Records {
			r := &results[i].Records[j]
			row := []any{
				e.cfg.Year, e.cfg.ExamType, seg.PrefixID(), seg.Label(),
				r.Suffix(), r.ID(), r.DisplayName(),
			}
			for _, k := range record.Subjects {
				if p, ok := r.Field(k).Value(); ok {
					row = append(row, p)
				} else {
					row = append(row, nil)
				}
			}
			out = append(out, row)
		}
	}
	return out
}

func (e *Exporter) quotedTable() string {
	return pgx.Identifier{e.cfg.Table}.Sanitize()
}

func (e *Exporter) createTableSQL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", e.quotedTable())
	b.WriteString("  year text NOT NULL,\n")
	b.WriteString("  exam_type text NOT NULL,\n")
	b.WriteString("  prefix integer NOT NULL,\n")
	b.WriteString("  segment text NOT NULL,\n")
	b.WriteString("  suffix integer NOT NULL,\n")
	b.WriteString("  candidate_number text NOT NULL,\n")
	b.WriteString("  full_name text NOT NULL,\n")
	for _, s := range record.Subjects {
		fmt.Fprintf(&b, "  %s double precision,\n", columnName(s))
	}
	b.WriteString("  PRIMARY KEY (year, exam_type, prefix, suffix)\n)")
	return b.String()
}

// columnName maps a subject key to snake case: NgoaiNgu -> ngoai_ngu, GDCD -> gdcd.
func columnName(subject string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range subject {
		if unicode.IsUpper(r) && prevLower {
			b.WriteByte('_')
		}
		prevLower = unicode.IsLower(r)
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
