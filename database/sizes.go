package database

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// TableSizeOptions configures TableSizes.
type TableSizeOptions struct {
	Logger *slog.Logger
	Schema string
	// Tables restricts the report. Unknown names are skipped.
	Tables []string
	// IncludeIndexes fills in the index size fields.
	IncludeIndexes bool
}

// TableSize is the storage used by one table.
type TableSize struct {
	TableName      string
	DataSize       string
	IndexSize      string
	TotalSize      string
	RowCount       int64
	DataSizeBytes  int64
	IndexSizeBytes int64
	TotalSizeBytes int64
	DataSizeMB     float64
	IndexSizeMB    float64
	TotalSizeMB    float64
}

const tableSizeSQL = `SELECT pg_table_size($1::regclass), pg_indexes_size($1::regclass), pg_total_relation_size($1::regclass)`

// TableSizes reports row counts and on-disk sizes, largest table first.
// A table whose figures cannot be read is logged and reported with zeros.
func TableSizes(ctx context.Context, q Querier, opts TableSizeOptions) ([]TableSize, error) {
	tables, err := selectTables(ctx, q, opts.Schema, opts.Tables)
	if err != nil {
		return nil, err
	}
	logger := loggerOrDiscard(opts.Logger)

	results := make([]TableSize, 0, len(tables))
	for _, table := range tables {
		info := TableSize{TableName: table}
		if err := readTableSize(ctx, q, qualified(opts.Schema, table), &info); err != nil {
			logger.ErrorContext(ctx, fmt.Sprintf("Error getting size for table %s: %v", table, err))
		}
		if !opts.IncludeIndexes {
			info.IndexSizeBytes = 0
		}
		info.DataSizeMB = megabytes(info.DataSizeBytes)
		info.IndexSizeMB = megabytes(info.IndexSizeBytes)
		info.TotalSizeMB = megabytes(info.TotalSizeBytes)
		info.DataSize = FormatBytes(info.DataSizeBytes)
		info.IndexSize = FormatBytes(info.IndexSizeBytes)
		info.TotalSize = FormatBytes(info.TotalSizeBytes)
		results = append(results, info)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].TotalSizeBytes > results[j].TotalSizeBytes
	})
	return results, nil
}

func readTableSize(ctx context.Context, q Querier, relation string, info *TableSize) error {
	rows, err := countRows(ctx, q, relation)
	if err != nil {
		return err
	}
	info.RowCount = rows
	return q.QueryRow(ctx, tableSizeSQL, relation).Scan(&info.DataSizeBytes, &info.IndexSizeBytes, &info.TotalSizeBytes)
}

func megabytes(n int64) float64 {
	return float64(n) / (1024 * 1024)
}

// FormatBytes renders n with a binary unit, for example "1.5 MB".
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit && exp < 4; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTP"[exp])
}
