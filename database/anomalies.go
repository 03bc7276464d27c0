package database

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
)

// Anomaly types.
const (
	AnomalyAllNull             = "all_null"
	AnomalyAllSameValue        = "all_same_value"
	AnomalyStatisticalOutliers = "statistical_outliers"
)

// Severities, from most to least severe.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// DefaultOutlierThreshold is the number of standard deviations from the
// mean beyond which a value counts as an outlier.
const DefaultOutlierThreshold = 3.0

// AnomalyOptions configures CheckDataAnomalies. The zero value runs every
// check with a DefaultOutlierThreshold sigma threshold.
type AnomalyOptions struct {
	Logger *slog.Logger
	Schema string
	Tables []string
	// OutlierThreshold defaults to DefaultOutlierThreshold.
	OutlierThreshold float64
	SkipAllSame      bool
	SkipOutliers     bool
}

// Anomaly is a suspicious pattern in one column.
type Anomaly struct {
	Details    map[string]any
	TableName  string
	ColumnName string
	Type       string
	Severity   string
}

// CheckDataAnomalies looks for columns that are entirely NULL, columns whose
// non-NULL values are all identical, and numeric columns with more than 1%
// of values beyond OutlierThreshold standard deviations. Results are sorted
// by severity.
func CheckDataAnomalies(ctx context.Context, q Querier, opts AnomalyOptions) ([]Anomaly, error) {
	if opts.OutlierThreshold == 0 {
		opts.OutlierThreshold = DefaultOutlierThreshold
	}
	if opts.OutlierThreshold < 0 || math.IsNaN(opts.OutlierThreshold) {
		return nil, invalidArgument("outlier_std_threshold must be positive")
	}
	logger := loggerOrDiscard(opts.Logger)

	tables, err := selectTables(ctx, q, opts.Schema, opts.Tables)
	if err != nil {
		return nil, err
	}

	var anomalies []Anomaly
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
			if col.PrimaryKey {
				continue
			}
			found, err := columnAnomaly(ctx, q, relation, table, col, total, opts)
			if err != nil {
				logger.ErrorContext(ctx, fmt.Sprintf("Error checking anomalies for %s.%s: %v", table, col.Name, err))
				continue
			}
			if found != nil {
				anomalies = append(anomalies, *found)
			}
		}
	}

	sort.SliceStable(anomalies, func(i, j int) bool {
		return severityRank(anomalies[i].Severity) < severityRank(anomalies[j].Severity)
	})
	return anomalies, nil
}

func columnAnomaly(ctx context.Context, q Querier, relation, table string, col column, total int64, opts AnomalyOptions) (*Anomaly, error) {
	name := ident(col.Name)
	var nulls int64
	if err := q.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NULL", relation, name)).Scan(&nulls); err != nil {
		return nil, err
	}
	if nulls == total {
		return &Anomaly{
			TableName:  table,
			ColumnName: col.Name,
			Type:       AnomalyAllNull,
			Severity:   SeverityHigh,
			Details:    map[string]any{"total_rows": total, "description": "Column is entirely NULL"},
		}, nil
	}

	if !opts.SkipAllSame {
		var distinct int64
		query := fmt.Sprintf("SELECT COUNT(DISTINCT %s) FROM %s WHERE %s IS NOT NULL", name, relation, name)
		if err := q.QueryRow(ctx, query).Scan(&distinct); err != nil {
			return nil, err
		}
		if distinct == 1 {
			var value string
			query := fmt.Sprintf("SELECT %s::text FROM %s WHERE %s IS NOT NULL LIMIT 1", name, relation, name)
			if err := q.QueryRow(ctx, query).Scan(&value); err != nil {
				return nil, err
			}
			return &Anomaly{
				TableName:  table,
				ColumnName: col.Name,
				Type:       AnomalyAllSameValue,
				Severity:   SeverityMedium,
				Details: map[string]any{
					"value":         value,
					"non_null_rows": total - nulls,
					"description":   "All non-NULL values are identical",
				},
			}, nil
		}
	}

	if !opts.SkipOutliers && col.numeric() {
		found, err := outliers(ctx, q, relation, table, col, total-nulls, opts.OutlierThreshold)
		if err != nil {
			loggerOrDiscard(opts.Logger).DebugContext(ctx, fmt.Sprintf("Error checking outliers for %s.%s: %v", table, col.Name, err))
			return nil, nil
		}
		return found, nil
	}
	return nil, nil
}

func outliers(ctx context.Context, q Querier, relation, table string, col column, nonNull int64, threshold float64) (*Anomaly, error) {
	name := ident(col.Name)
	var mean, stddev, lo, hi float64
	query := fmt.Sprintf(
		"SELECT AVG(%[1]s)::float8, COALESCE(STDDEV(%[1]s), 0)::float8, MIN(%[1]s)::float8, MAX(%[1]s)::float8 FROM %[2]s WHERE %[1]s IS NOT NULL",
		name, relation)
	if err := q.QueryRow(ctx, query).Scan(&mean, &stddev, &lo, &hi); err != nil {
		return nil, err
	}
	if stddev == 0 {
		return nil, nil
	}

	lower := mean - threshold*stddev
	upper := mean + threshold*stddev
	var count int64
	query = fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s < $1 OR %s > $2", relation, name, name)
	if err := q.QueryRow(ctx, query, lower, upper).Scan(&count); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	share := float64(count) / float64(nonNull)
	if share <= 0.01 {
		return nil, nil
	}
	severity := SeverityMedium
	if share > 0.1 {
		severity = SeverityHigh
	}
	return &Anomaly{
		TableName:  table,
		ColumnName: col.Name,
		Type:       AnomalyStatisticalOutliers,
		Severity:   severity,
		Details: map[string]any{
			"outlier_count":      count,
			"outlier_percentage": share,
			"mean":               mean,
			"stddev":             stddev,
			"min":                lo,
			"max":                hi,
			"lower_bound":        lower,
			"upper_bound":        upper,
			"description":        fmt.Sprintf("%d values beyond %v standard deviations", count, threshold),
		},
	}, nil
}

func severityRank(severity string) int {
	switch severity {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}
