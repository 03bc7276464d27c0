package database

import (
	"context"
	"fmt"
	"sort"
)

// Dependencies describes the foreign key graph of a schema.
type Dependencies struct {
	// Dependencies maps each table to the tables it references.
	Dependencies map[string][]string
	// Dependents maps each table to the tables that reference it.
	Dependents map[string][]string
	// OrderedTables lists tables so that every table comes after the
	// tables it references, where cycles allow.
	OrderedTables []string
	// CircularDependencies lists tables found on a reference cycle,
	// including self-references.
	CircularDependencies []string
}

const foreignKeysSQL = `SELECT DISTINCT tc.table_name::text, ccu.table_name::text
FROM information_schema.table_constraints tc
JOIN information_schema.constraint_column_usage ccu
	ON ccu.constraint_name = tc.constraint_name
	AND ccu.constraint_schema = tc.constraint_schema
WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1
ORDER BY 1, 2`

// ForeignKeyDependencies reads the foreign keys of schema and orders its
// tables for creation. Cycles are reported, not treated as errors.
func ForeignKeyDependencies(ctx context.Context, q Querier, schema string) (*Dependencies, error) {
	tables, err := listTables(ctx, q, schema)
	if err != nil {
		return nil, err
	}

	deps := &Dependencies{
		Dependencies: make(map[string][]string, len(tables)),
		Dependents:   make(map[string][]string, len(tables)),
	}
	known := make(map[string]bool, len(tables))
	for _, t := range tables {
		known[t] = true
		deps.Dependencies[t] = []string{}
		deps.Dependents[t] = []string{}
	}

	rows, err := q.Query(ctx, foreignKeysSQL, schemaOrDefault(schema))
	if err != nil {
		return nil, fmt.Errorf("read foreign keys: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var table, referred string
		if err := rows.Scan(&table, &referred); err != nil {
			return nil, fmt.Errorf("read foreign keys: %w", err)
		}
		if !known[table] || !known[referred] {
			continue
		}
		deps.Dependencies[table] = appendUnique(deps.Dependencies[table], referred)
		deps.Dependents[referred] = appendUnique(deps.Dependents[referred], table)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read foreign keys: %w", err)
	}

	deps.OrderedTables, deps.CircularDependencies = topoSort(tables, deps.Dependencies)
	return deps, nil
}

// topoSort orders tables depth first so referenced tables come first. A
// table reached again while still on the stack is recorded as circular.
func topoSort(tables []string, edges map[string][]string) ([]string, []string) {
	ordered := make([]string, 0, len(tables))
	visited := make(map[string]bool, len(tables))
	onStack := make(map[string]bool)
	circular := make(map[string]bool)

	var visit func(string)
	visit = func(table string) {
		if onStack[table] {
			circular[table] = true
			return
		}
		if visited[table] {
			return
		}
		onStack[table] = true
		for _, dep := range edges[table] {
			visit(dep)
		}
		delete(onStack, table)
		visited[table] = true
		ordered = append(ordered, table)
	}
	for _, t := range tables {
		if !visited[t] {
			visit(t)
		}
	}

	cycles := make([]string, 0, len(circular))
	for t := range circular {
		cycles = append(cycles, t)
	}
	sort.Strings(cycles)
	return ordered, cycles
}

func appendUnique(list []string, s string) []string {
	for _, item := range list {
		if item == s {
			return list
		}
	}
	return append(list, s)
}
