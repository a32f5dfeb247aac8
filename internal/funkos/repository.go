package funkos

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/funko-store/funko-api/internal/platform/db"
	"github.com/funko-store/funko-api/internal/shared"
)

// Repository persists funkos.
type Repository interface {
	List(ctx context.Context, q shared.ListQuery) ([]Funko, int, error)
	Get(ctx context.Context, id int64) (Funko, error)
	Create(ctx context.Context, f Funko) (Funko, error)
	Delete(ctx context.Context, id int64) error
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the row-locking operations used for every write to an existing funko.
type TxRepository interface {
	// LockForUpdate locks the rows of ids in ascending id order. Missing ids are absent from the result.
	LockForUpdate(ctx context.Context, ids []int64) (map[int64]Funko, error)
	AdjustQuantity(ctx context.Context, id int64, delta int) error
	// Save writes every column of a row previously returned by LockForUpdate.
	Save(ctx context.Context, f Funko) error
}

var listColumns = db.Columns{
	"id":         "f.id",
	"name":       "f.name",
	"price":      "f.price",
	"quantity":   "f.quantity",
	"category":   "c.name",
	"is_deleted": "f.is_deleted",
	"created_at": "f.created_at",
}

// Whitelist declares the listing parameters accepted for funkos.
var Whitelist = shared.Whitelist{
	Sortable: []string{"id", "name", "price", "quantity", "created_at"},
	Filterable: map[string]shared.ValueKind{
		"name":       shared.KindText,
		"category":   shared.KindText,
		"is_deleted": shared.KindBool,
		"price":      shared.KindFloat,
		"quantity":   shared.KindInt,
	},
	DefaultSort: "id",
}

const selectFunko = `SELECT f.id, f.name, f.price::float8, f.quantity, f.image, c.name, f.category_id,
	f.is_deleted, f.created_at, f.updated_at
	FROM funkos f JOIN categories c ON c.id = f.category_id`

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
	db   db.Querier
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool, db: pool}
}

func scanFunko(row pgx.Row) (Funko, error) {
	var f Funko
	err := row.Scan(&f.ID, &f.Name, &f.Price, &f.Quantity, &f.Image, &f.Category, &f.CategoryID,
		&f.IsDeleted, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

// List uses a dynamic query built from the whitelisted columns.
func (r *PGRepository) List(ctx context.Context, q shared.ListQuery) ([]Funko, int, error) {
	clauses, err := db.BuildListClauses(q, listColumns, "f.name")
	if err != nil {
		return nil, 0, err
	}

	var total int
	countSQL := `SELECT COUNT(*) FROM funkos f JOIN categories c ON c.id = f.category_id` + clauses.Where
	if err := r.db.QueryRow(ctx, countSQL, clauses.Args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("funkos: count: %w", err)
	}

	paging, args := clauses.Paging(q)
	rows, err := r.db.Query(ctx, selectFunko+clauses.Where+clauses.OrderBy+", f.id"+paging, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("funkos: list: %w", err)
	}
	defer rows.Close()

	var out []Funko
	for rows.Next() {
		f, err := scanFunko(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, f)
	}
	return out, total, rows.Err()
}

func (r *PGRepository) Get(ctx context.Context, id int64) (Funko, error) {
	f, err := scanFunko(r.db.QueryRow(ctx, selectFunko+` WHERE f.id = $1`, id))
	if err != nil {
		return Funko{}, db.MapError(err, "funko "+strconv.FormatInt(id, 10))
	}
	return f, nil
}

func (r *PGRepository) Create(ctx context.Context, f Funko) (Funko, error) {
	now := time.Now().UTC()
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO funkos (name, price, quantity, image, category_id, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $6) RETURNING id`,
		f.Name, f.Price, f.Quantity, f.Image, f.CategoryID, now).Scan(&id)
	if err != nil {
		return Funko{}, db.MapError(err, "funko "+f.Name)
	}
	return r.Get(ctx, id)
}

func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM funkos WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err, "funko "+strconv.FormatInt(id, 10))
	}
	if tag.RowsAffected() == 0 {
		return db.MapError(pgx.ErrNoRows, "funko "+strconv.FormatInt(id, 10))
	}
	return nil
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a read-committed transaction; rows are serialized by explicit locks.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithLockingTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (t *txRepo) LockForUpdate(ctx context.Context, ids []int64) (map[int64]Funko, error) {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	rows, err := t.tx.Query(ctx, `SELECT f.id, f.name, f.price::float8, f.quantity, f.image, '' AS category,
		f.category_id, f.is_deleted, f.created_at, f.updated_at
		FROM funkos f WHERE f.id = ANY($1) ORDER BY f.id FOR UPDATE`, sorted)
	if err != nil {
		return nil, fmt.Errorf("funkos: lock rows: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]Funko, len(sorted))
	for rows.Next() {
		f, err := scanFunko(rows)
		if err != nil {
			return nil, err
		}
		out[f.ID] = f
	}
	return out, rows.Err()
}

func (t *txRepo) AdjustQuantity(ctx context.Context, id int64, delta int) error {
	_, err := t.tx.Exec(ctx, `UPDATE funkos SET quantity = quantity + $2, updated_at = $3 WHERE id = $1`,
		id, delta, time.Now().UTC())
	if err != nil {
		return db.MapError(err, "funko "+strconv.FormatInt(id, 10))
	}
	return nil
}

func (t *txRepo) Save(ctx context.Context, f Funko) error {
	tag, err := t.tx.Exec(ctx, `UPDATE funkos SET name = $2, price = $3, quantity = $4, image = $5,
		category_id = $6, is_deleted = $7, updated_at = $8 WHERE id = $1`,
		f.ID, f.Name, f.Price, f.Quantity, f.Image, f.CategoryID, f.IsDeleted, time.Now().UTC())
	if err != nil {
		return db.MapError(err, "funko "+strconv.FormatInt(f.ID, 10))
	}
	if tag.RowsAffected() == 0 {
		return db.MapError(pgx.ErrNoRows, "funko "+strconv.FormatInt(f.ID, 10))
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
