package categories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/funko-store/funko-api/internal/platform/cache"
	"github.com/funko-store/funko-api/internal/platform/httpx"
	"github.com/funko-store/funko-api/internal/shared"
)

// Cache keys owned by the category service.
const (
	ListPrefix     = "all_categories"
	EntityPrefix   = "category"
	funkoListKey   = "all_funkos"
	funkoEntityKey = "funko"
)

// Cache is the cache-aside store used by the service.
type Cache interface {
	FetchJSON(ctx context.Context, collection, key string, dest any, loader cache.Loader) error
	Invalidate(ctx context.Context, prefixes ...string) error
}

// Service implements category business rules.
type Service struct {
	repo   Repository
	cache  Cache
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, c Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: c, logger: logger}
}

// List returns a cached page of categories.
func (s *Service) List(ctx context.Context, q shared.ListQuery) (shared.Page[Category], error) {
	var page shared.Page[Category]
	err := s.cache.FetchJSON(ctx, ListPrefix, cache.KeyFor(ListPrefix, q), &page, func(ctx context.Context) (any, error) {
		items, total, err := s.repo.List(ctx, q)
		if err != nil {
			return nil, err
		}
		return shared.NewPage(items, total, q), nil
	})
	return page, err
}

// Get returns one category by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Category, error) {
	var c Category
	err := s.cache.FetchJSON(ctx, EntityPrefix, cache.EntityKey(EntityPrefix, id.String()), &c, func(ctx context.Context) (any, error) {
		return s.repo.Get(ctx, id)
	})
	return c, err
}

// FindByName resolves a live category case-insensitively. Unknown or deleted names are a validation error.
func (s *Service) FindByName(ctx context.Context, name string) (Category, error) {
	c, err := s.repo.FindByName(ctx, NormalizeName(name))
	if errors.Is(err, httpx.ErrNotFound) || (err == nil && c.IsDeleted) {
		return Category{}, fmt.Errorf("%w: category %s does not exist", httpx.ErrValidation, name)
	}
	return c, err
}

// Create inserts a category after a case-insensitive uniqueness check.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Category, error) {
	name := NormalizeName(req.Name)
	if err := validateName(name); err != nil {
		return Category{}, err
	}
	if err := s.ensureUnique(ctx, name, uuid.Nil); err != nil {
		return Category{}, err
	}
	created, err := s.repo.Create(ctx, Category{Name: name})
	if err != nil {
		return Category{}, err
	}
	s.invalidate(ctx, created.ID)
	return created, nil
}

// Update renames or restores a category. Renaming to its own name is allowed.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (Category, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Category{}, err
	}
	if req.Name != nil {
		name := NormalizeName(*req.Name)
		if err := validateName(name); err != nil {
			return Category{}, err
		}
		if err := s.ensureUnique(ctx, name, id); err != nil {
			return Category{}, err
		}
		current.Name = name
	}
	if req.IsDeleted != nil {
		current.IsDeleted = *req.IsDeleted
	}
	updated, err := s.repo.Update(ctx, current)
	if err != nil {
		return Category{}, err
	}
	s.invalidate(ctx, id)
	return updated, nil
}

// SoftDelete flags the category as deleted and keeps the row.
func (s *Service) SoftDelete(ctx context.Context, id uuid.UUID) (Category, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Category{}, err
	}
	current.IsDeleted = true
	updated, err := s.repo.Update(ctx, current)
	if err != nil {
		return Category{}, err
	}
	s.invalidate(ctx, id)
	return updated, nil
}

// HardDelete removes the row. Categories still referenced by funkos cannot be removed.
func (s *Service) HardDelete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *Service) ensureUnique(ctx context.Context, name string, self uuid.UUID) error {
	existing, err := s.repo.FindByName(ctx, name)
	switch {
	case errors.Is(err, httpx.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID == self:
		return nil
	default:
		return fmt.Errorf("%w: category %s already exists", httpx.ErrDuplicate, existing.Name)
	}
}

// invalidate drops the entity key and every listing that embeds category names.
// Failures are logged: the entries expire with their TTL.
func (s *Service) invalidate(ctx context.Context, id uuid.UUID) {
	keys := []string{cache.EntityKey(EntityPrefix, id.String()), ListPrefix, funkoListKey, funkoEntityKey}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.logger.Warn("invalidate category cache", slog.String("id", id.String()), slog.Any("error", err))
	}
}
