package database

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
)

// CompareOptions configures CompareTableData.
type CompareOptions struct {
	Logger       *slog.Logger
	SourceTable  string
	TargetTable  string
	SourceSchema string
	TargetSchema string
	// Columns restricts the comparison. They must exist in both tables.
	Columns []string
	// SampleDifferences bounds how many source keys are looked up for rows
	// missing from the target. Defaults to DefaultSampleDifferences.
	SampleDifferences int
	// SkipSampling turns the missing-row lookup off.
	SkipSampling bool
}

// DefaultSampleDifferences is the number of source keys looked up when tables
// differ.
const DefaultSampleDifferences = 10

// ColumnChecksum compares the MD5 of one column's ordered values.
type ColumnChecksum struct {
	SourceChecksum string
	TargetChecksum string
	Error          string
	Match          bool
}

// RowDifference is a sampled row that differs between the tables.
type RowDifference struct {
	Type       string
	PrimaryKey string
}

// TableComparison is the result of CompareTableData.
type TableComparison struct {
	ColumnChecksums   map[string]ColumnChecksum
	CommonColumns     []string
	SampleDifferences []RowDifference
	SourceCount       int64
	TargetCount       int64
	CountMatch        bool
}

// Match reports whether counts and every column checksum agree.
func (c *TableComparison) Match() bool {
	if !c.CountMatch {
		return false
	}
	for _, cs := range c.ColumnChecksums {
		if !cs.Match {
			return false
		}
	}
	return true
}

const checksumSQL = `SELECT COALESCE(MD5(STRING_AGG(CAST(%[1]s AS TEXT), ',' ORDER BY %[1]s)), '') FROM %[2]s`

// CompareTableData compares a table in src with a table in dst: row counts,
// a per-column checksum, and, when they differ and both tables have a
// primary key, a sample of source keys missing from the target.
func CompareTableData(ctx context.Context, src, dst Querier, opts CompareOptions) (*TableComparison, error) {
	if strings.TrimSpace(opts.SourceTable) == "" {
		return nil, invalidArgument("source_table cannot be empty")
	}
	if opts.SampleDifferences < 0 {
		return nil, invalidArgument("sample_differences must be non-negative")
	}
	if opts.SampleDifferences == 0 {
		opts.SampleDifferences = DefaultSampleDifferences
	}
	if opts.TargetTable == "" {
		opts.TargetTable = opts.SourceTable
	}
	logger := loggerOrDiscard(opts.Logger)

	srcCols, err := tableColumns(ctx, src, opts.SourceSchema, opts.SourceTable, "Source")
	if err != nil {
		return nil, err
	}
	dstCols, err := tableColumns(ctx, dst, opts.TargetSchema, opts.TargetTable, "Target")
	if err != nil {
		return nil, err
	}

	common := commonColumns(srcCols, dstCols)
	if len(opts.Columns) > 0 {
		for _, c := range opts.Columns {
			if !slices.Contains(common, c) {
				return nil, invalidArgument("Column %s not found in both tables", c)
			}
		}
		common = opts.Columns
	}
	if len(common) == 0 {
		return nil, invalidArgument("No common columns found between tables")
	}

	srcRel := qualified(opts.SourceSchema, opts.SourceTable)
	dstRel := qualified(opts.TargetSchema, opts.TargetTable)
	result := &TableComparison{
		CommonColumns:   common,
		ColumnChecksums: make(map[string]ColumnChecksum, len(common)),
	}

	if result.SourceCount, err = countRows(ctx, src, srcRel); err != nil {
		return nil, fmt.Errorf("count source rows: %w", err)
	}
	if result.TargetCount, err = countRows(ctx, dst, dstRel); err != nil {
		return nil, fmt.Errorf("count target rows: %w", err)
	}
	result.CountMatch = result.SourceCount == result.TargetCount

	for _, name := range common {
		var cs ColumnChecksum
		srcErr := src.QueryRow(ctx, fmt.Sprintf(checksumSQL, ident(name), srcRel)).Scan(&cs.SourceChecksum)
		dstErr := dst.QueryRow(ctx, fmt.Sprintf(checksumSQL, ident(name), dstRel)).Scan(&cs.TargetChecksum)
		switch {
		case srcErr != nil:
			cs.Error = srcErr.Error()
		case dstErr != nil:
			cs.Error = dstErr.Error()
		default:
			cs.Match = cs.SourceChecksum == cs.TargetChecksum
		}
		result.ColumnChecksums[name] = cs
	}

	if result.Match() {
		logger.InfoContext(ctx, "Tables match exactly")
		return result, nil
	}

	if opts.SkipSampling {
		return result, nil
	}
	if err := sampleMissing(ctx, src, dst, srcCols, dstCols, srcRel, dstRel, opts.SampleDifferences, result); err != nil {
		logger.DebugContext(ctx, fmt.Sprintf("Error sampling differences: %v", err))
	}
	return result, nil
}

func tableColumns(ctx context.Context, q Querier, schema, table, side string) ([]column, error) {
	tables, err := listTables(ctx, q, schema)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(tables, table) {
		return nil, invalidArgument("%s table %s not found", side, table)
	}
	return listColumns(ctx, q, schema, table)
}

func commonColumns(a, b []column) []string {
	inB := make(map[string]bool, len(b))
	for _, c := range b {
		inB[c.Name] = true
	}
	var common []string
	for _, c := range a {
		if inB[c.Name] {
			common = append(common, c.Name)
		}
	}
	sort.Strings(common)
	return common
}

func primaryKeys(cols []column) []string {
	var keys []string
	for _, c := range cols {
		if c.PrimaryKey {
			keys = append(keys, c.Name)
		}
	}
	return keys
}

func sampleMissing(ctx context.Context, src, dst Querier, srcCols, dstCols []column, srcRel, dstRel string, limit int, result *TableComparison) error {
	srcPK, dstPK := primaryKeys(srcCols), primaryKeys(dstCols)
	if len(srcPK) == 0 || len(srcPK) != len(dstPK) {
		return nil
	}

	rows, err := src.Query(ctx, fmt.Sprintf("SELECT %s::text FROM %s LIMIT %d", ident(srcPK[0]), srcRel, limit))
	if err != nil {
		return err
	}
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return err
		}
		keys = append(keys, key)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	lookup := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s::text = $1", dstRel, ident(dstPK[0]))
	for _, key := range keys {
		var n int64
		if err := dst.QueryRow(ctx, lookup, key).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			result.SampleDifferences = append(result.SampleDifferences, RowDifference{Type: "missing_in_target", PrimaryKey: key})
		}
	}
	return nil
}
