package funkos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/funko-store/funko-api/internal/categories"
	"github.com/funko-store/funko-api/internal/notifications"
	"github.com/funko-store/funko-api/internal/platform/cache"
	"github.com/funko-store/funko-api/internal/platform/httpx"
	"github.com/funko-store/funko-api/internal/shared"
)

// Cache keys owned by the funko service.
const (
	ListPrefix   = "all_funkos"
	EntityPrefix = "funko"
)

// Cache is the cache-aside store used by the service.
type Cache interface {
	FetchJSON(ctx context.Context, collection, key string, dest any, loader cache.Loader) error
	Invalidate(ctx context.Context, prefixes ...string) error
}

// CategoryLookup resolves a category by name.
type CategoryLookup interface {
	FindByName(ctx context.Context, name string) (categories.Category, error)
}

// Notifier delivers catalog change events after a write commits.
type Notifier interface {
	Notify(ctx context.Context, n notifications.Notification) error
}

// FileRemover deletes stored images that are no longer referenced.
type FileRemover interface {
	RemoveFile(ctx context.Context, name string) error
}

// Service implements catalog business rules and the stock port used by orders.
type Service struct {
	repo       Repository
	cache      Cache
	categories CategoryLookup
	notifier   Notifier
	files      FileRemover
	logger     *slog.Logger
	now        func() time.Time
}

// NewService constructs a Service. notifier and files may be nil.
func NewService(repo Repository, c Cache, cats CategoryLookup, notifier Notifier, files FileRemover, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		cache:      c,
		categories: cats,
		notifier:   notifier,
		files:      files,
		logger:     logger,
		now:        time.Now,
	}
}

// List returns a cached page of funkos.
func (s *Service) List(ctx context.Context, q shared.ListQuery) (shared.Page[Funko], error) {
	var page shared.Page[Funko]
	err := s.cache.FetchJSON(ctx, ListPrefix, cache.KeyFor(ListPrefix, q), &page, func(ctx context.Context) (any, error) {
		items, total, err := s.repo.List(ctx, q)
		if err != nil {
			return nil, err
		}
		return shared.NewPage(items, total, q), nil
	})
	return page, err
}

// Get returns one funko by id.
func (s *Service) Get(ctx context.Context, id int64) (Funko, error) {
	var f Funko
	err := s.cache.FetchJSON(ctx, EntityPrefix, cache.EntityKey(EntityPrefix, id), &f, func(ctx context.Context) (any, error) {
		return s.repo.Get(ctx, id)
	})
	return f, err
}

// Create inserts a funko in an existing category.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Funko, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Funko{}, fmt.Errorf("%w: name is required", httpx.ErrValidation)
	}
	if req.Price < 0 || req.Quantity < 0 {
		return Funko{}, fmt.Errorf("%w: price and quantity must not be negative", httpx.ErrValidation)
	}
	category, err := s.categories.FindByName(ctx, req.Category)
	if err != nil {
		return Funko{}, err
	}
	image := strings.TrimSpace(req.Image)
	if image == "" {
		image = DefaultImage
	}
	created, err := s.repo.Create(ctx, Funko{
		Name:       name,
		Price:      roundPrice(req.Price),
		Quantity:   req.Quantity,
		Image:      image,
		Category:   category.Name,
		CategoryID: category.ID,
	})
	if err != nil {
		return Funko{}, err
	}
	s.afterWrite(ctx, notifications.TypeCreate, created)
	return created, nil
}

// Update applies a partial update. The row is read and written under its lock so a concurrent
// reservation is never overwritten.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (Funko, error) {
	var name string
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
		if name == "" {
			return Funko{}, fmt.Errorf("%w: name must not be blank", httpx.ErrValidation)
		}
	}
	if req.Price != nil && *req.Price < 0 {
		return Funko{}, fmt.Errorf("%w: price must not be negative", httpx.ErrValidation)
	}
	if req.Quantity != nil && *req.Quantity < 0 {
		return Funko{}, fmt.Errorf("%w: quantity must not be negative", httpx.ErrValidation)
	}
	var category categories.Category
	if req.Category != nil {
		var err error
		if category, err = s.categories.FindByName(ctx, *req.Category); err != nil {
			return Funko{}, err
		}
	}

	_, updated, err := s.mutate(ctx, id, func(current *Funko) {
		if req.Name != nil {
			current.Name = name
		}
		if req.Price != nil {
			current.Price = roundPrice(*req.Price)
		}
		if req.Quantity != nil {
			current.Quantity = *req.Quantity
		}
		if req.Image != nil {
			current.Image = *req.Image
		}
		if req.Category != nil {
			current.Category, current.CategoryID = category.Name, category.ID
		}
		if req.IsDeleted != nil {
			current.IsDeleted = *req.IsDeleted
		}
	})
	if err != nil {
		return Funko{}, err
	}
	s.afterWrite(ctx, notifications.TypeUpdate, updated)
	return updated, nil
}

// SoftDelete flags the funko as deleted and keeps the row.
func (s *Service) SoftDelete(ctx context.Context, id int64) (Funko, error) {
	_, updated, err := s.mutate(ctx, id, func(current *Funko) {
		current.IsDeleted = true
	})
	if err != nil {
		return Funko{}, err
	}
	s.afterWrite(ctx, notifications.TypeDelete, updated)
	return updated, nil
}

// HardDelete removes the row and schedules removal of its stored image.
func (s *Service) HardDelete(ctx context.Context, id int64) error {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.removeImage(ctx, current.Image)
	s.afterWrite(ctx, notifications.TypeDelete, current)
	return nil
}

// UpdateImage points the funko at a newly stored file, dropping the previous one.
func (s *Service) UpdateImage(ctx context.Context, id int64, imageURL string) (Funko, error) {
	if strings.TrimSpace(imageURL) == "" {
		return Funko{}, fmt.Errorf("%w: image file is required", httpx.ErrValidation)
	}
	before, updated, err := s.mutate(ctx, id, func(current *Funko) {
		current.Image = imageURL
	})
	if err != nil {
		return Funko{}, err
	}
	if before.Image != imageURL {
		s.removeImage(ctx, before.Image)
	}
	s.afterWrite(ctx, notifications.TypeUpdate, updated)
	return updated, nil
}

// mutate locks the row, applies fn and saves it in the same transaction. It returns the row as
// locked and as stored.
func (s *Service) mutate(ctx context.Context, id int64, fn func(*Funko)) (Funko, Funko, error) {
	var before Funko
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rows, err := tx.LockForUpdate(ctx, []int64{id})
		if err != nil {
			return err
		}
		current, ok := rows[id]
		if !ok {
			return fmt.Errorf("%w: funko %d", httpx.ErrNotFound, id)
		}
		before = current
		fn(&current)
		return tx.Save(ctx, current)
	})
	if err != nil {
		return Funko{}, Funko{}, err
	}
	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return Funko{}, Funko{}, err
	}
	return before, updated, nil
}

// Reserve decrements stock for every line in one transaction. Either all lines reserve or none do.
// Lines for the same product are merged before checking.
func (s *Service) Reserve(ctx context.Context, lines []StockLine) error {
	return s.adjust(ctx, nil, lines, true)
}

// Release returns stock for every line in one transaction. Products removed since the
// reservation are skipped.
func (s *Service) Release(ctx context.Context, lines []StockLine) error {
	return s.adjust(ctx, lines, nil, true)
}

// Swap returns the release lines and reserves the reserve lines in one transaction. The reserve
// lines are checked against the stock after the release, and a failed check leaves both untouched.
func (s *Service) Swap(ctx context.Context, release, reserve []StockLine) error {
	return s.adjust(ctx, release, reserve, true)
}

// Restore undoes a committed Reserve or Swap: the release lines go back to stock and the retake
// lines are taken again. Units being taken back already belonged to the caller, so price and
// deleted state are not checked; only the available quantity is.
func (s *Service) Restore(ctx context.Context, release, retake []StockLine) error {
	return s.adjust(ctx, release, retake, false)
}

// adjust locks every referenced row in ascending id order, adds the release lines back, checks
// and subtracts the reserve lines, then writes the net change per product.
func (s *Service) adjust(ctx context.Context, release, reserve []StockLine, checkOffer bool) error {
	if len(release) == 0 && len(reserve) == 0 {
		return errors.New("funkos: no stock lines")
	}
	back, err := mergeLines(release)
	if err != nil {
		return err
	}
	take, err := mergeLines(reserve)
	if err != nil {
		return err
	}
	ids := slices.Concat(idsOf(back), idsOf(take))
	slices.Sort(ids)
	ids = slices.Compact(ids)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rows, err := tx.LockForUpdate(ctx, ids)
		if err != nil {
			return err
		}
		delta := make(map[int64]int, len(ids))
		for _, line := range back {
			f, ok := rows[line.ProductID]
			if !ok {
				s.logger.Warn("release stock for missing funko", slog.Int64("id", line.ProductID))
				continue
			}
			f.Quantity += line.Quantity
			rows[line.ProductID] = f
			delta[line.ProductID] += line.Quantity
		}
		for _, line := range take {
			f, ok := rows[line.ProductID]
			if !ok || (checkOffer && f.IsDeleted) {
				return fmt.Errorf("%w: funko %d does not exist", httpx.ErrValidation, line.ProductID)
			}
			if line.Quantity > f.Quantity {
				return fmt.Errorf("%w: %w: funko %d has %d units, %d requested",
					httpx.ErrValidation, shared.ErrInsufficientStock, f.ID, f.Quantity, line.Quantity)
			}
			if checkOffer && !samePrice(line.Price, f.Price) {
				return fmt.Errorf("%w: %w: funko %d costs %.2f, order says %.2f",
					httpx.ErrValidation, shared.ErrPriceMismatch, f.ID, f.Price, line.Price)
			}
			f.Quantity -= line.Quantity
			rows[line.ProductID] = f
			delta[line.ProductID] -= line.Quantity
		}
		for _, id := range ids {
			if delta[id] == 0 {
				continue
			}
			if err := tx.AdjustQuantity(ctx, id, delta[id]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, ids...)
	return nil
}

func (s *Service) afterWrite(ctx context.Context, typ notifications.Type, f Funko) {
	s.invalidate(ctx, f.ID)
	if s.notifier == nil {
		return
	}
	n, err := notifications.New(notifications.EntityFunkos, typ, f, s.now())
	if err == nil {
		err = s.notifier.Notify(ctx, n)
	}
	if err != nil {
		s.logger.Warn("notify funko change", slog.Int64("id", f.ID), slog.String("type", string(typ)), slog.Any("error", err))
	}
}

func (s *Service) invalidate(ctx context.Context, ids ...int64) {
	keys := make([]string, 0, len(ids)+1)
	keys = append(keys, ListPrefix)
	for _, id := range ids {
		keys = append(keys, cache.EntityKey(EntityPrefix, id))
	}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.logger.Warn("invalidate funko cache", slog.Any("error", err))
	}
}

func (s *Service) removeImage(ctx context.Context, image string) {
	if s.files == nil || image == "" || image == DefaultImage {
		return
	}
	if err := s.files.RemoveFile(ctx, image); err != nil {
		s.logger.Warn("schedule image removal", slog.String("image", image), slog.Any("error", err))
	}
}

func mergeLines(lines []StockLine) ([]StockLine, error) {
	index := make(map[int64]int, len(lines))
	out := make([]StockLine, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for funko %d must be positive", httpx.ErrValidation, line.ProductID)
		}
		if i, ok := index[line.ProductID]; ok {
			if !samePrice(out[i].Price, line.Price) {
				return nil, fmt.Errorf("%w: %w: funko %d appears with different prices",
					httpx.ErrValidation, shared.ErrPriceMismatch, line.ProductID)
			}
			out[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(out)
		out = append(out, line)
	}
	return out, nil
}

func idsOf(lines []StockLine) []int64 {
	ids := make([]int64, len(lines))
	for i, line := range lines {
		ids[i] = line.ProductID
	}
	return ids
}

func samePrice(a, b float64) bool {
	return decimal.NewFromFloat(a).Round(2).Equal(decimal.NewFromFloat(b).Round(2))
}

func roundPrice(p float64) float64 {
	return decimal.NewFromFloat(p).Round(2).InexactFloat64()
}
