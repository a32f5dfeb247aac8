package categories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/funko-store/funko-api/internal/platform/db"
	"github.com/funko-store/funko-api/internal/shared"
)

// Repository persists categories.
type Repository interface {
	List(ctx context.Context, q shared.ListQuery) ([]Category, int, error)
	Get(ctx context.Context, id uuid.UUID) (Category, error)
	FindByName(ctx context.Context, name string) (Category, error)
	Create(ctx context.Context, c Category) (Category, error)
	Update(ctx context.Context, c Category) (Category, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

var listColumns = db.Columns{
	"id":         "id",
	"name":       "name",
	"is_deleted": "is_deleted",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// Whitelist declares the listing parameters accepted for categories.
var Whitelist = shared.Whitelist{
	Sortable:    []string{"name", "created_at", "updated_at"},
	Filterable:  map[string]shared.ValueKind{"name": shared.KindText, "is_deleted": shared.KindBool},
	DefaultSort: "name",
}

const categoryColumns = `id, name, is_deleted, created_at, updated_at`

type repository struct {
	db db.Querier
}

// NewRepository returns a PostgreSQL backed Repository.
func NewRepository(q db.Querier) Repository {
	return &repository{db: q}
}

func scanCategory(row pgx.Row) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.IsDeleted, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// List uses a dynamic query built from the whitelisted columns.
func (r *repository) List(ctx context.Context, q shared.ListQuery) ([]Category, int, error) {
	clauses, err := db.BuildListClauses(q, listColumns, "name")
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM categories`+clauses.Where, clauses.Args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("categories: count: %w", err)
	}

	paging, args := clauses.Paging(q)
	rows, err := r.db.Query(ctx, `SELECT `+categoryColumns+` FROM categories`+clauses.Where+clauses.OrderBy+paging, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("categories: list: %w", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Category, error) {
	c, err := scanCategory(r.db.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id))
	if err != nil {
		return Category{}, db.MapError(err, "category "+id.String())
	}
	return c, nil
}

func (r *repository) FindByName(ctx context.Context, name string) (Category, error) {
	c, err := scanCategory(r.db.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE LOWER(name) = LOWER($1)`, name))
	if err != nil {
		return Category{}, db.MapError(err, "category "+name)
	}
	return c, nil
}

func (r *repository) Create(ctx context.Context, c Category) (Category, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	row := r.db.QueryRow(ctx, `INSERT INTO categories (id, name, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4) RETURNING `+categoryColumns, c.ID, c.Name, c.IsDeleted, now)
	created, err := scanCategory(row)
	if err != nil {
		return Category{}, db.MapError(err, "category "+c.Name)
	}
	return created, nil
}

func (r *repository) Update(ctx context.Context, c Category) (Category, error) {
	row := r.db.QueryRow(ctx, `UPDATE categories SET name = $2, is_deleted = $3, updated_at = $4
		WHERE id = $1 RETURNING `+categoryColumns, c.ID, c.Name, c.IsDeleted, time.Now().UTC())
	updated, err := scanCategory(row)
	if err != nil {
		return Category{}, db.MapError(err, "category "+c.ID.String())
	}
	return updated, nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err, "category "+id.String())
	}
	if tag.RowsAffected() == 0 {
		return db.MapError(pgx.ErrNoRows, "category "+id.String())
	}
	return nil
}
