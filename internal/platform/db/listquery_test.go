package db

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funko-store/funko-api/internal/platform/httpx"
	"github.com/funko-store/funko-api/internal/shared"
)

var testColumns = Columns{
	"id":         "f.id",
	"name":       "f.name",
	"is_deleted": "f.is_deleted",
}

func TestBuildListClauses(t *testing.T) {
	q := shared.ListQuery{
		Page: 2, Limit: 10, SortBy: "name", Order: "DESC", Search: "spi",
		Filters: []shared.Filter{
			{Column: "is_deleted", Op: shared.OpEq, Value: "false", Arg: false},
			{Column: "name", Op: shared.OpNot, Value: "batman", Arg: "batman"},
		},
	}
	c, err := BuildListClauses(q, testColumns, "f.name", "f.price >= 0")
	require.NoError(t, err)
	assert.Equal(t, " WHERE f.price >= 0 AND f.is_deleted = $1 AND LOWER(f.name) <> LOWER($2) AND f.name ILIKE $3", c.Where)
	assert.Equal(t, " ORDER BY f.name DESC", c.OrderBy)
	assert.Equal(t, []any{false, "batman", "%spi%"}, c.Args)

	suffix, args := c.Paging(q)
	assert.Equal(t, " LIMIT $4 OFFSET $5", suffix)
	assert.Equal(t, []any{false, "batman", "%spi%", 10, 10}, args)
	assert.Len(t, c.Args, 3)
}

func TestBuildListClausesRejectsUnknown(t *testing.T) {
	_, err := BuildListClauses(shared.ListQuery{SortBy: "password"}, testColumns, "")
	assert.Error(t, err)
	_, err = BuildListClauses(shared.ListQuery{SortBy: "id", Filters: []shared.Filter{{Column: "x"}}}, testColumns, "")
	assert.Error(t, err)
}

func TestMapError(t *testing.T) {
	assert.ErrorIs(t, MapError(pgx.ErrNoRows, "funko 1"), httpx.ErrNotFound)
	assert.ErrorIs(t, MapError(&pgconn.PgError{Code: "23505", ConstraintName: "uq"}, "category"), httpx.ErrDuplicate)
	assert.ErrorIs(t, MapError(&pgconn.PgError{Code: "23503"}, "category"), httpx.ErrValidation)
	other := errors.New("conn reset")
	assert.ErrorIs(t, MapError(other, "x"), other)
	assert.NoError(t, MapError(nil, "x"))
}
