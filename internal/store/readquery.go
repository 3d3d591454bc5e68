package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
)

// namedParamPattern matches a `:name` placeholder token in a SQL string.
var namedParamPattern = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`)

// RunReadQuery executes query against the read pool, binding each `:name`
// placeholder found in query to the matching key in args. A placeholder
// with no corresponding key in args is left unbound, so the underlying
// driver rejects the query — the agent context executor (§4.9) treats that
// as an expected failure mode, not a bug to work around here.
func (s *Store) RunReadQuery(ctx context.Context, query string, args map[string]any) ([]map[string]any, error) {
	var params []any
	seen := make(map[string]bool)
	for _, m := range namedParamPattern.FindAllStringSubmatch(query, -1) {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		if v, ok := args[name]; ok {
			params = append(params, sql.Named(name, v))
		}
	}

	rows, err := s.reader.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("run read query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		dest := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = dest[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
