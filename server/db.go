package server

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

func (d dialect) String() string {
	if d == dialectSQLite {
		return "sqlite"
	}
	return "postgres"
}

// timeLayout is how timestamps are stored. Fixed width UTC so that string
// comparison orders the same way as time.
const timeLayout = "2006-01-02T15:04:05.000000Z"

var placeholderRe = regexp.MustCompile(`\$\d+`)

// openDB opens Postgres for postgres:// URLs and SQLite otherwise
func openDB(url string) (*sql.DB, dialect, error) {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		db, err := sql.Open("postgres", url)
		if err != nil {
			return nil, dialectPostgres, err
		}
		return db, dialectPostgres, nil
	}

	db, err := sql.Open("sqlite", strings.TrimPrefix(url, "sqlite://"))
	if err != nil {
		return nil, dialectSQLite, err
	}
	// One connection: an in-memory database exists per connection, and
	// SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, dialectSQLite, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, dialectSQLite, nil
}

// rebind rewrites $N placeholders for drivers that expect ?.
// Queries use each $N once, in order.
func (s *Server) rebind(query string) string {
	if s.dialect == dialectSQLite {
		return placeholderRe.ReplaceAllString(query, "?")
	}
	return query
}

func (s *Server) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Server) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Server) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}
