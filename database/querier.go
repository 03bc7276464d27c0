package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DefaultSchema is used when a schema argument is empty.
const DefaultSchema = "public"

// ErrInvalidArgument is wrapped by every input validation error.
var ErrInvalidArgument = errors.New("invalid argument")

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Querier abstracts the pgx query methods used by the inspection functions.
// *pgxpool.Pool, pgx.Tx and pgxmock pools satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// column describes one table column as reported by information_schema.
type column struct {
	Name       string
	DataType   string
	MaxLength  int
	PrimaryKey bool
}

func (c column) numeric() bool {
	switch c.DataType {
	case "smallint", "integer", "bigint", "numeric", "decimal", "real", "double precision":
		return true
	}
	return false
}

func (c column) textual() bool {
	switch c.DataType {
	case "character varying", "character", "text":
		return true
	}
	return false
}

// typeName renders the column type the way a DDL statement would.
func (c column) typeName() string {
	switch {
	case c.DataType == "character varying" && c.MaxLength > 0:
		return fmt.Sprintf("VARCHAR(%d)", c.MaxLength)
	case c.DataType == "character varying":
		return "VARCHAR"
	case c.DataType == "character" && c.MaxLength > 0:
		return fmt.Sprintf("CHAR(%d)", c.MaxLength)
	default:
		return strings.ToUpper(c.DataType)
	}
}

const listTablesSQL = `SELECT table_name::text FROM information_schema.tables
WHERE table_schema = $1 AND table_type = 'BASE TABLE'
ORDER BY table_name`

func listTables(ctx context.Context, q Querier, schema string) ([]string, error) {
	rows, err := q.Query(ctx, listTablesSQL, schemaOrDefault(schema))
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

const listColumnsSQL = `SELECT c.column_name::text, c.data_type::text,
	COALESCE(c.character_maximum_length, 0)::int,
	EXISTS (
		SELECT 1 FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage k
			ON k.constraint_name = tc.constraint_name
			AND k.table_schema = tc.table_schema
			AND k.table_name = tc.table_name
		WHERE tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = c.table_schema
			AND tc.table_name = c.table_name
			AND k.column_name = c.column_name
	)
FROM information_schema.columns c
WHERE c.table_schema = $1 AND c.table_name = $2
ORDER BY c.ordinal_position`

func listColumns(ctx context.Context, q Querier, schema, table string) ([]column, error) {
	rows, err := q.Query(ctx, listColumnsSQL, schemaOrDefault(schema), table)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}
	defer rows.Close()

	var columns []column
	for rows.Next() {
		var c column
		if err := rows.Scan(&c.Name, &c.DataType, &c.MaxLength, &c.PrimaryKey); err != nil {
			return nil, fmt.Errorf("list columns of %s: %w", table, err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}
	return columns, nil
}

// selectTables returns the tables of schema, restricted to wanted when it is
// not empty. Wanted tables that do not exist are skipped.
func selectTables(ctx context.Context, q Querier, schema string, wanted []string) ([]string, error) {
	all, err := listTables(ctx, q, schema)
	if err != nil {
		return nil, err
	}
	if len(wanted) == 0 {
		return all, nil
	}
	exists := make(map[string]bool, len(all))
	for _, t := range all {
		exists[t] = true
	}
	var tables []string
	for _, t := range wanted {
		if exists[t] {
			tables = append(tables, t)
		}
	}
	return tables, nil
}

func countRows(ctx context.Context, q Querier, relation string) (int64, error) {
	var n int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*) FROM "+relation).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func qualified(schema, table string) string {
	return pgx.Identifier{schemaOrDefault(schema), table}.Sanitize()
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func schemaOrDefault(schema string) string {
	if schema == "" {
		return DefaultSchema
	}
	return schema
}

func loggerOrDiscard(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
