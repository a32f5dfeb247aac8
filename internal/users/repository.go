package users

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/funko-store/funko-api/internal/platform/db"
	"github.com/funko-store/funko-api/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context, q shared.ListQuery) ([]User, int, error)
	Get(ctx context.Context, id int64) (User, error)
	FindByUsername(ctx context.Context, username string) (User, error)
	Exists(ctx context.Context, username, email string) (bool, error)
	Create(ctx context.Context, u User) (User, error)
	SoftDelete(ctx context.Context, id int64) error
}

var listColumns = db.Columns{
	"id":         "u.id",
	"username":   "u.username",
	"email":      "u.email",
	"is_deleted": "u.is_deleted",
	"created_at": "u.created_at",
}

// Whitelist declares the listing parameters accepted for users.
var Whitelist = shared.Whitelist{
	Sortable: []string{"id", "username", "email", "created_at"},
	Filterable: map[string]shared.ValueKind{
		"username":   shared.KindText,
		"email":      shared.KindText,
		"is_deleted": shared.KindBool,
	},
	DefaultSort: "id",
}

const selectUser = `SELECT u.id, u.name, u.last_name, u.email, u.username, u.password_hash,
	COALESCE(ARRAY(SELECT r.role FROM user_roles r WHERE r.user_id = u.id ORDER BY r.role), '{}'),
	u.is_deleted, u.created_at, u.updated_at
	FROM users u`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
	db   db.Querier
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, db: pool}
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.LastName, &u.Email, &u.Username, &u.PasswordHash,
		&u.Roles, &u.IsDeleted, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// List returns one page of users.
func (r *Repository) List(ctx context.Context, q shared.ListQuery) ([]User, int, error) {
	clauses, err := db.BuildListClauses(q, listColumns, "u.username")
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users u`+clauses.Where, clauses.Args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("users: count: %w", err)
	}

	paging, args := clauses.Paging(q)
	rows, err := r.db.Query(ctx, selectUser+clauses.Where+clauses.OrderBy+paging, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func (r *Repository) Get(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, selectUser+` WHERE u.id = $1`, id))
	if err != nil {
		return User{}, db.MapError(err, fmt.Sprintf("user %d", id))
	}
	return u, nil
}

func (r *Repository) FindByUsername(ctx context.Context, username string) (User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, selectUser+` WHERE LOWER(u.username) = LOWER($1)`, username))
	if err != nil {
		return User{}, db.MapError(err, "user "+username)
	}
	return u, nil
}

func (r *Repository) Exists(ctx context.Context, username, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users
		WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($2))`, username, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("users: exists: %w", err)
	}
	return exists, nil
}

// Create inserts the user and its roles in one transaction.
func (r *Repository) Create(ctx context.Context, u User) (User, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		err := tx.QueryRow(ctx, `INSERT INTO users (name, last_name, email, username, password_hash, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING id, created_at, updated_at`,
			u.Name, u.LastName, u.Email, u.Username, u.PasswordHash, now).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
		if err != nil {
			return db.MapError(err, "user "+u.Username)
		}
		for _, role := range u.Roles {
			if _, err := tx.Exec(ctx, `INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`, u.ID, role); err != nil {
				return db.MapError(err, "role "+role)
			}
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET is_deleted = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err, fmt.Sprintf("user %d", id))
	}
	if tag.RowsAffected() == 0 {
		return db.MapError(pgx.ErrNoRows, fmt.Sprintf("user %d", id))
	}
	return nil
}
