// Package postgres implements the repositories on Postgres through pgx's
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed schema.sql
var schema string

// Schema returns the DDL applied by Migrate.
func Schema() string { return schema }

// Migrate creates missing tables and indexes. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// where accumulates "col = $n" clauses for optional filters.
type where struct {
	clauses []string
	args    []any
}

func (w *where) eq(col string, val any) {
	w.args = append(w.args, val)
	w.clauses = append(w.clauses, col+" = $"+strconv.Itoa(len(w.args)))
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}
