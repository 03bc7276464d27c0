package database

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"
)

// DefaultOptimizationSample is the number of rows examined per column when
// OptimizationOptions.SampleSize is zero.
const DefaultOptimizationSample = 1000

// OptimizationOptions configures SuggestDataTypeOptimizations.
type OptimizationOptions struct {
	Logger     *slog.Logger
	Schema     string
	Tables     []string
	SampleSize int
}

// TypeSuggestion proposes a narrower type for one column.
type TypeSuggestion struct {
	TableName          string
	ColumnName         string
	CurrentType        string
	Issue              string
	SuggestedType      string
	Reasoning          string
	Severity           string
	PotentialSavingsMB float64
}

var booleanWords = map[string]bool{
	"TRUE": true, "FALSE": true, "T": true, "F": true, "YES": true,
	"NO": true, "Y": true, "N": true, "1": true, "0": true,
}

// SuggestDataTypeOptimizations samples string and integer columns and
// suggests cheaper types: shorter varchars, numbers or booleans stored as
// strings, and integers that fit in a smallint. Results are sorted by
// severity, then by estimated savings.
func SuggestDataTypeOptimizations(ctx context.Context, q Querier, opts OptimizationOptions) ([]TypeSuggestion, error) {
	if opts.SampleSize < 0 {
		return nil, invalidArgument("sample_size must be positive, got %d", opts.SampleSize)
	}
	if opts.SampleSize == 0 {
		opts.SampleSize = DefaultOptimizationSample
	}
	logger := loggerOrDiscard(opts.Logger)

	tables, err := selectTables(ctx, q, opts.Schema, opts.Tables)
	if err != nil {
		return nil, err
	}

	var suggestions []TypeSuggestion
	for _, table := range tables {
		relation := qualified(opts.Schema, table)
		total, err := countRows(ctx, q, relation)
		if err != nil {
			return nil, fmt.Errorf("count rows of %s: %w", table, err)
		}
		if total == 0 {
			logger.DebugContext(ctx, fmt.Sprintf("Table %s is empty, skipping", table))
			continue
		}
		columns, err := listColumns(ctx, q, opts.Schema, table)
		if err != nil {
			return nil, err
		}
		for _, col := range columns {
			var found []TypeSuggestion
			switch {
			case col.textual():
				found, err = suggestForText(ctx, q, relation, table, col, total, opts.SampleSize)
			case col.DataType == "integer":
				found, err = suggestForInteger(ctx, q, relation, table, col, total)
			default:
				continue
			}
			if err != nil {
				logger.DebugContext(ctx, fmt.Sprintf("Could not analyze %s.%s: %v", table, col.Name, err))
				continue
			}
			suggestions = append(suggestions, found...)
		}
	}

	order := map[string]int{SeverityHigh: 0, SeverityMedium: 1, SeverityLow: 2}
	sort.SliceStable(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		if order[a.Severity] != order[b.Severity] {
			return order[a.Severity] < order[b.Severity]
		}
		return a.PotentialSavingsMB > b.PotentialSavingsMB
	})
	return suggestions, nil
}

func suggestForText(ctx context.Context, q Querier, relation, table string, col column, total int64, sampleSize int) ([]TypeSuggestion, error) {
	name := ident(col.Name)
	source := sampled(relation, sampleSize)
	var maxLen int64
	query := fmt.Sprintf("SELECT COALESCE(MAX(LENGTH(%s)), 0) FROM %s WHERE %s IS NOT NULL", name, source, name)
	if err := q.QueryRow(ctx, query).Scan(&maxLen); err != nil {
		return nil, err
	}

	var out []TypeSuggestion
	if col.DataType == "character varying" && col.MaxLength > 0 && float64(maxLen) < float64(col.MaxLength)*0.25 {
		suggested := max(maxLen*2, 10)
		savings := float64(int64(col.MaxLength)-suggested) * 0.8 * float64(total) / (1024 * 1024)
		severity := SeverityLow
		if savings > 10 {
			severity = SeverityMedium
		}
		out = append(out, TypeSuggestion{
			TableName:          table,
			ColumnName:         col.Name,
			CurrentType:        col.typeName(),
			Issue:              fmt.Sprintf("Declared length %d but actual max is only %d", col.MaxLength, maxLen),
			SuggestedType:      fmt.Sprintf("VARCHAR(%d)", suggested),
			Reasoning:          fmt.Sprintf("Reduce size while keeping 2x headroom. Max actual: %d", maxLen),
			PotentialSavingsMB: round(savings, 2),
			Severity:           severity,
		})
	}
	if maxLen == 0 {
		return out, nil
	}

	values, err := sampleValues(ctx, q, relation, name, min(100, sampleSize))
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return out, nil
	}

	if allNumeric(values) {
		suggested := "INTEGER"
		for _, v := range values {
			if strings.Contains(v, ".") {
				suggested = "NUMERIC"
				break
			}
		}
		out = append(out, TypeSuggestion{
			TableName:          table,
			ColumnName:         col.Name,
			CurrentType:        col.typeName(),
			Issue:              "Numeric data stored as string",
			SuggestedType:      suggested,
			Reasoning:          "Storing numbers as strings wastes space and prevents numeric operations",
			PotentialSavingsMB: round(float64(maxLen)*float64(total)*0.5/(1024*1024), 2),
			Severity:           SeverityHigh,
		})
	}

	if distinct, ok := booleanValues(values); ok {
		out = append(out, TypeSuggestion{
			TableName:          table,
			ColumnName:         col.Name,
			CurrentType:        col.typeName(),
			Issue:              "Boolean data stored as string",
			SuggestedType:      "BOOLEAN",
			Reasoning:          fmt.Sprintf("Only contains boolean values: %s", strings.Join(distinct, ", ")),
			PotentialSavingsMB: round(float64(maxLen)*float64(total)*0.9/(1024*1024), 2),
			Severity:           SeverityMedium,
		})
	}
	return out, nil
}

func suggestForInteger(ctx context.Context, q Querier, relation, table string, col column, total int64) ([]TypeSuggestion, error) {
	name := ident(col.Name)
	var lo, hi *int64
	query := fmt.Sprintf("SELECT MIN(%s)::int8, MAX(%s)::int8 FROM %s WHERE %s IS NOT NULL", name, name, relation, name)
	if err := q.QueryRow(ctx, query).Scan(&lo, &hi); err != nil {
		return nil, err
	}
	if lo == nil || hi == nil || *lo < -32768 || *hi > 32767 {
		return nil, nil
	}
	savings := round(float64(total)*2/(1024*1024), 2)
	if savings <= 1 {
		return nil, nil
	}
	severity := SeverityMedium
	if savings < 10 {
		severity = SeverityLow
	}
	return []TypeSuggestion{{
		TableName:          table,
		ColumnName:         col.Name,
		CurrentType:        "INTEGER",
		Issue:              fmt.Sprintf("Value range %d to %d fits in SMALLINT", *lo, *hi),
		SuggestedType:      "SMALLINT",
		Reasoning:          "Values fit in 2 bytes instead of 4 bytes",
		PotentialSavingsMB: savings,
		Severity:           severity,
	}}, nil
}

func sampleValues(ctx context.Context, q Querier, relation, name string, limit int) ([]string, error) {
	query := fmt.Sprintf("SELECT %s::text FROM %s WHERE %s IS NOT NULL LIMIT %d", name, relation, name, limit)
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if v != "" {
			values = append(values, v)
		}
	}
	return values, rows.Err()
}

// allNumeric reports whether every value is digits once "-", "." and ","
// are removed.
func allNumeric(values []string) bool {
	for _, v := range values {
		stripped := strings.NewReplacer("-", "", ".", "", ",", "").Replace(v)
		if stripped == "" {
			return false
		}
		for _, r := range stripped {
			if !unicode.IsDigit(r) {
				return false
			}
		}
	}
	return true
}

func booleanValues(values []string) ([]string, bool) {
	seen := make(map[string]bool)
	for _, v := range values {
		upper := strings.ToUpper(v)
		if !booleanWords[upper] {
			return nil, false
		}
		seen[upper] = true
	}
	distinct := make([]string, 0, len(seen))
	for v := range seen {
		distinct = append(distinct, v)
	}
	sort.Strings(distinct)
	return distinct, true
}
