// Package database implements the pipeline's data source on PostgreSQL.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/dataporter/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DefaultBatchSize is the fetch progress interval used when none is configured.
const DefaultBatchSize = 50_000

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Postgres runs procedures and reads tables through a pgx connection.
type Postgres struct {
	db        DBTX
	batchSize int
	types     *pgtype.Map
}

// New creates a Postgres source. batchSize controls how often a table read
// logs progress and checks for cancellation.
func New(db DBTX, batchSize int) *Postgres {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Postgres{
		db:        db,
		batchSize: batchSize,
		types:     pgtype.NewMap(),
	}
}

var _ core.Source = (*Postgres)(nil)

// ExecuteProcedure runs CALL name($1, ..., $n) and returns the rows affected
// reported by the server.
func (p *Postgres) ExecuteProcedure(ctx context.Context, name string, args []any) (int64, error) {
	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("CALL %s(%s)", quoteQualified(name), strings.Join(placeholders, ", "))

	tag, err := p.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("call %s: %w", name, err)
	}
	return tag.RowsAffected(), nil
}

// QueryTable reads every row of a table into memory.
func (p *Postgres) QueryTable(ctx context.Context, name string) (*core.TabularResult, error) {
	start := time.Now()
	logger := slog.Default().With(
		"table", name,
		"correlation_id", core.CorrelationIDFromContext(ctx),
	)

	rows, err := p.db.Query(ctx, "SELECT * FROM "+quoteQualified(name))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	defer rows.Close()

	result := &core.TabularResult{
		Columns: p.columns(rows.FieldDescriptions()),
		Rows:    make([][]any, 0, p.batchSize),
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan %s row %d: %w", name, len(result.Rows)+1, err)
		}
		result.Rows = append(result.Rows, values)

		if len(result.Rows)%p.batchSize == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("query %s: %w", name, err)
			}
			logger.Debug("fetching rows", "fetched", len(result.Rows))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	logger.Info("table fetched",
		"rows", len(result.Rows),
		"columns", len(result.Columns),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// RowCount returns SELECT COUNT(*) for a table.
func (p *Postgres) RowCount(ctx context.Context, name string) (int64, error) {
	var n int64
	if err := p.db.QueryRow(ctx, "SELECT COUNT(*) FROM "+quoteQualified(name)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", name, err)
	}
	return n, nil
}

func (p *Postgres) columns(fields []pgconn.FieldDescription) []core.Column {
	cols := make([]core.Column, len(fields))
	for i, fd := range fields {
		cols[i] = core.Column{Name: fd.Name}
		if t, ok := p.types.TypeForOID(fd.DataTypeOID); ok {
			cols[i].TypeName = t.Name
		}
	}
	return cols
}

// quoteIdentifier safely quotes a PostgreSQL identifier.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteQualified quotes each part of a dotted name such as schema.table.
func quoteQualified(name string) string {
	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = quoteIdentifier(part)
	}
	return strings.Join(parts, ".")
}
