package database

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
)

// Cardinality thresholds used when CardinalityOptions leaves them zero.
const (
	DefaultLowCardinality  = 0.01
	DefaultHighCardinality = 0.95
)

// Cardinality categories.
const (
	CardinalityLow    = "low"
	CardinalityMedium = "medium"
	CardinalityHigh   = "high"
)

// CardinalityOptions configures AnalyzeColumnCardinality.
type CardinalityOptions struct {
	Logger *slog.Logger
	Schema string
	Tables []string
	// SampleSize limits the analysis to the first N rows of each table.
	// Zero analyses every row.
	SampleSize int
	// LowThreshold and HighThreshold bound the medium category.
	LowThreshold  float64
	HighThreshold float64
}

// ValueCount is a value and how often it occurs.
type ValueCount struct {
	Value string
	Count int64
}

// ColumnCardinality describes how many distinct values a column holds.
type ColumnCardinality struct {
	TableName        string
	ColumnName       string
	Category         string
	TopValues        []ValueCount
	Recommendations  []string
	TotalRows        int64
	DistinctValues   int64
	NullCount        int64
	CardinalityRatio float64
	NullPercentage   float64
}

func (o CardinalityOptions) withDefaults() (CardinalityOptions, error) {
	if o.SampleSize < 0 {
		return o, invalidArgument("sample_size must be positive, got %d", o.SampleSize)
	}
	if o.LowThreshold == 0 {
		o.LowThreshold = DefaultLowCardinality
	}
	if o.HighThreshold == 0 {
		o.HighThreshold = DefaultHighCardinality
	}
	if o.LowThreshold <= 0 || o.LowThreshold >= 1 {
		return o, invalidArgument("low_cardinality_threshold must be between 0 and 1, got %v", o.LowThreshold)
	}
	if o.HighThreshold <= 0 || o.HighThreshold > 1 {
		return o, invalidArgument("high_cardinality_threshold must be between 0 and 1, got %v", o.HighThreshold)
	}
	if o.LowThreshold >= o.HighThreshold {
		return o, invalidArgument("low_cardinality_threshold must be less than high_cardinality_threshold")
	}
	return o, nil
}

// AnalyzeColumnCardinality classifies every non-key column as low, medium or
// high cardinality by its ratio of distinct to non-null values. Low
// cardinality columns also report their five most frequent values. Results
// are sorted by category, then ratio.
func AnalyzeColumnCardinality(ctx context.Context, q Querier, opts CardinalityOptions) ([]ColumnCardinality, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	logger := loggerOrDiscard(opts.Logger)

	tables, err := selectTables(ctx, q, opts.Schema, opts.Tables)
	if err != nil {
		return nil, err
	}

	var results []ColumnCardinality
	for _, table := range tables {
		source := sampled(qualified(opts.Schema, table), opts.SampleSize)
		total, err := countRows(ctx, q, source)
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
			if col.PrimaryKey {
				continue
			}
			result, ok, err := columnCardinality(ctx, q, source, table, col, total, opts)
			if err != nil {
				logger.WarnContext(ctx, fmt.Sprintf("Could not analyze cardinality for %s.%s: %v", table, col.Name, err))
				continue
			}
			if ok {
				results = append(results, result)
			}
		}
	}

	order := map[string]int{CardinalityLow: 0, CardinalityMedium: 1, CardinalityHigh: 2}
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if order[a.Category] != order[b.Category] {
			return order[a.Category] < order[b.Category]
		}
		return a.CardinalityRatio < b.CardinalityRatio
	})
	return results, nil
}

func columnCardinality(ctx context.Context, q Querier, source, table string, col column, total int64, opts CardinalityOptions) (ColumnCardinality, bool, error) {
	name := ident(col.Name)
	var nulls, distinct int64
	query := fmt.Sprintf("SELECT COUNT(*) FILTER (WHERE %s IS NULL), COUNT(DISTINCT %s) FROM %s", name, name, source)
	if err := q.QueryRow(ctx, query).Scan(&nulls, &distinct); err != nil {
		return ColumnCardinality{}, false, err
	}
	nonNull := total - nulls
	if nonNull == 0 {
		return ColumnCardinality{}, false, nil
	}

	ratio := float64(distinct) / float64(nonNull)
	result := ColumnCardinality{
		TableName:        table,
		ColumnName:       col.Name,
		TotalRows:        total,
		DistinctValues:   distinct,
		NullCount:        nulls,
		CardinalityRatio: round(ratio, 4),
		NullPercentage:   round(float64(nulls)/float64(total)*100, 2),
	}
	switch {
	case ratio <= opts.LowThreshold:
		result.Category = CardinalityLow
		result.Recommendations = []string{
			"Consider creating an index on this column",
			"Good candidate for ENUM type or lookup table",
			"Suitable for partitioning key",
		}
		top, err := topValues(ctx, q, source, name)
		if err != nil {
			loggerOrDiscard(opts.Logger).DebugContext(ctx, fmt.Sprintf("Could not get top values for %s.%s: %v", table, col.Name, err))
		}
		result.TopValues = top
	case ratio >= opts.HighThreshold:
		result.Category = CardinalityHigh
		result.Recommendations = []string{
			"Consider unique constraint if values should be unique",
			"Potential candidate for primary key or alternate key",
			"Not suitable for indexing unless required for joins",
		}
	default:
		result.Category = CardinalityMedium
		result.Recommendations = []string{"Standard cardinality - evaluate indexing based on query patterns"}
	}
	return result, true, nil
}

func topValues(ctx context.Context, q Querier, source, name string) ([]ValueCount, error) {
	query := fmt.Sprintf("SELECT COALESCE(%s::text, 'NULL'), COUNT(*) FROM %s GROUP BY %s ORDER BY COUNT(*) DESC LIMIT 5",
		name, source, name)
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []ValueCount
	for rows.Next() {
		var v ValueCount
		if err := rows.Scan(&v.Value, &v.Count); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// sampled limits relation to its first n rows when n is positive.
func sampled(relation string, n int) string {
	if n <= 0 {
		return relation
	}
	return fmt.Sprintf("(SELECT * FROM %s LIMIT %d) AS sample", relation, n)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
