package database

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var errNoQuery = errors.New("query not served")

// captureDB records query arguments and fails every query.
type captureDB struct {
	args [][]any
}

func (d *captureDB) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (d *captureDB) Query(_ context.Context, _ string, args ...interface{}) (pgx.Rows, error) {
	d.args = append(d.args, args)
	return nil, errNoQuery
}

func (d *captureDB) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	return nil
}

func TestHistoryRecentClampsLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "default when zero", limit: 0, want: DefaultHistoryLimit},
		{name: "default when negative", limit: -5, want: DefaultHistoryLimit},
		{name: "within range", limit: 25, want: 25},
		{name: "at max", limit: MaxHistoryLimit, want: MaxHistoryLimit},
		{name: "huge limit capped", limit: 1 << 40, want: MaxHistoryLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &captureDB{}
			_, err := NewHistory(db).Recent(context.Background(), tt.limit)
			if !errors.Is(err, errNoQuery) {
				t.Fatalf("Recent() error = %v, want %v", err, errNoQuery)
			}
			if len(db.args) != 1 || len(db.args[0]) != 1 {
				t.Fatalf("query args = %v, want one limit argument", db.args)
			}
			if got := db.args[0][0]; got != tt.want {
				t.Errorf("limit argument = %v, want %d", got, tt.want)
			}
		})
	}
}
