package database

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Index is one index of a table.
type Index struct {
	Table   string
	Name    string
	Columns []string
	Unique  bool
}

// DuplicateIndexGroup is a set of indexes on the same table with the same
// columns and uniqueness.
type DuplicateIndexGroup struct {
	Recommendation string
	Indexes        []Index
}

// RedundantIndex is an index whose columns are a leading prefix of another
// index on the same table.
type RedundantIndex struct {
	RedundantIndex   string
	CoveredBy        string
	Table            string
	Reason           string
	RedundantColumns []string
	CoveringColumns  []string
}

// IndexSummary counts what FindDuplicateIndexes found.
type IndexSummary struct {
	TotalIndexes    int
	DuplicateGroups int
	RedundantCount  int
}

// IndexReport is the result of FindDuplicateIndexes.
type IndexReport struct {
	ExactDuplicates []DuplicateIndexGroup
	Redundant       []RedundantIndex
	Summary         IndexSummary
}

const indexesSQL = `SELECT t.relname::text, i.relname::text, ix.indisunique,
	ARRAY(
		SELECT a.attname::text
		FROM unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord)
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		ORDER BY k.ord
	)
FROM pg_index ix
JOIN pg_class t ON t.oid = ix.indrelid
JOIN pg_class i ON i.oid = ix.indexrelid
JOIN pg_namespace n ON n.oid = t.relnamespace
WHERE n.nspname = $1 AND t.relkind = 'r'
ORDER BY t.relname, i.relname`

// FindDuplicateIndexes reports exact duplicate indexes and indexes made
// redundant by a longer index sharing their leading columns.
func FindDuplicateIndexes(ctx context.Context, q Querier, schema string) (*IndexReport, error) {
	indexes, err := listIndexes(ctx, q, schema)
	if err != nil {
		return nil, err
	}

	report := &IndexReport{}
	groups := make(map[string]int)
	seen := make(map[string]Index)
	for _, idx := range indexes {
		key := fmt.Sprintf("%s\x00%s\x00%t", idx.Table, strings.Join(idx.Columns, "\x00"), idx.Unique)
		first, dup := seen[key]
		if !dup {
			seen[key] = idx
			continue
		}
		if g, ok := groups[key]; ok {
			report.ExactDuplicates[g].Indexes = append(report.ExactDuplicates[g].Indexes, idx)
			continue
		}
		groups[key] = len(report.ExactDuplicates)
		report.ExactDuplicates = append(report.ExactDuplicates, DuplicateIndexGroup{Indexes: []Index{first, idx}})
	}
	for i := range report.ExactDuplicates {
		g := &report.ExactDuplicates[i]
		drop := make([]string, 0, len(g.Indexes)-1)
		for _, idx := range g.Indexes[1:] {
			drop = append(drop, idx.Name)
		}
		g.Recommendation = fmt.Sprintf("Keep %s and drop %s", g.Indexes[0].Name, strings.Join(drop, ", "))
	}

	for i, a := range indexes {
		for _, b := range indexes[i+1:] {
			if a.Table != b.Table || slices.Equal(a.Columns, b.Columns) {
				continue
			}
			switch {
			case hasPrefix(b.Columns, a.Columns):
				report.Redundant = append(report.Redundant, redundant(a, b))
			case hasPrefix(a.Columns, b.Columns):
				report.Redundant = append(report.Redundant, redundant(b, a))
			}
		}
	}

	report.Summary = IndexSummary{
		TotalIndexes:    len(indexes),
		DuplicateGroups: len(report.ExactDuplicates),
		RedundantCount:  len(report.Redundant),
	}
	return report, nil
}

func redundant(idx, covering Index) RedundantIndex {
	return RedundantIndex{
		RedundantIndex:   idx.Name,
		CoveredBy:        covering.Name,
		Table:            idx.Table,
		RedundantColumns: idx.Columns,
		CoveringColumns:  covering.Columns,
		Reason:           fmt.Sprintf("Index %s is redundant - %s starts with same columns", idx.Name, covering.Name),
	}
}

func hasPrefix(cols, prefix []string) bool {
	return len(prefix) <= len(cols) && slices.Equal(cols[:len(prefix)], prefix)
}

func listIndexes(ctx context.Context, q Querier, schema string) ([]Index, error) {
	rows, err := q.Query(ctx, indexesSQL, schemaOrDefault(schema))
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}
	defer rows.Close()

	var indexes []Index
	for rows.Next() {
		var idx Index
		if err := rows.Scan(&idx.Table, &idx.Name, &idx.Unique, &idx.Columns); err != nil {
			return nil, fmt.Errorf("list indexes: %w", err)
		}
		indexes = append(indexes, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}
	return indexes, nil
}
