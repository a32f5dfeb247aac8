package db

import (
	"fmt"
	"strings"

	"github.com/funko-store/funko-api/internal/shared"
)

// Columns maps public listing names to SQL expressions.
type Columns map[string]string

// ListClauses holds the SQL fragments rendered from a ListQuery.
type ListClauses struct {
	Where   string
	OrderBy string
	Args    []any
}

// Paging appends LIMIT/OFFSET placeholders and returns the suffix plus extended args.
func (c ListClauses) Paging(q shared.ListQuery) (string, []any) {
	args := append(append([]any{}, c.Args...), q.Limit, q.Offset())
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args
}

// BuildListClauses renders filters, search and sort. base holds predicates always applied.
// Columns missing from cols are rejected so callers cannot leak arbitrary identifiers.
func BuildListClauses(q shared.ListQuery, cols Columns, searchExpr string, base ...string) (ListClauses, error) {
	var (
		where  = append([]string{}, base...)
		args   []any
		argPos = 1
	)
	for _, f := range q.Filters {
		expr, ok := cols[f.Column]
		if !ok {
			return ListClauses{}, fmt.Errorf("db: unknown filter column %q", f.Column)
		}
		op := "="
		if f.Op == shared.OpNot {
			op = "<>"
		}
		if s, isText := f.Arg.(string); isText {
			where = append(where, fmt.Sprintf("LOWER(%s) %s LOWER($%d)", expr, op, argPos))
			args = append(args, s)
		} else {
			where = append(where, fmt.Sprintf("%s %s $%d", expr, op, argPos))
			args = append(args, f.Arg)
		}
		argPos++
	}
	if q.Search != "" && searchExpr != "" {
		where = append(where, fmt.Sprintf("%s ILIKE $%d", searchExpr, argPos))
		args = append(args, "%"+q.Search+"%")
	}

	sortExpr, ok := cols[q.SortBy]
	if !ok {
		return ListClauses{}, fmt.Errorf("db: unknown sort column %q", q.SortBy)
	}
	dir := "ASC"
	if q.Desc() {
		dir = "DESC"
	}

	out := ListClauses{Args: args, OrderBy: fmt.Sprintf(" ORDER BY %s %s", sortExpr, dir)}
	if len(where) > 0 {
		out.Where = " WHERE " + strings.Join(where, " AND ")
	}
	return out, nil
}
