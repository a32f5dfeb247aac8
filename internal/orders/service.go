package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/funko-store/funko-api/internal/funkos"
	"github.com/funko-store/funko-api/internal/platform/cache"
	"github.com/funko-store/funko-api/internal/platform/httpx"
	"github.com/funko-store/funko-api/internal/shared"
)

// Cache keys owned by the order service.
const (
	ListPrefix   = "all_orders"
	EntityPrefix = "order"
)

// Cache is the cache-aside store used by the service.
type Cache interface {
	FetchJSON(ctx context.Context, collection, key string, dest any, loader cache.Loader) error
	Invalidate(ctx context.Context, prefixes ...string) error
}

// Stock reserves and releases product quantities. Every call is all-or-nothing.
type Stock interface {
	Reserve(ctx context.Context, lines []funkos.StockLine) error
	Release(ctx context.Context, lines []funkos.StockLine) error
	// Swap releases one set of lines and reserves another in the same transaction.
	Swap(ctx context.Context, release, reserve []funkos.StockLine) error
	// Restore undoes a committed reservation without checking price or deleted state.
	Restore(ctx context.Context, release, retake []funkos.StockLine) error
}

// Service implements order placement on top of the stock port.
type Service struct {
	repo   Repository
	cache  Cache
	stock  Stock
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, c Cache, stock Stock, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: c, stock: stock, logger: logger, now: time.Now}
}

// List returns a cached page of orders.
func (s *Service) List(ctx context.Context, q shared.ListQuery) (shared.Page[Order], error) {
	var page shared.Page[Order]
	err := s.cache.FetchJSON(ctx, ListPrefix, cache.KeyFor(ListPrefix, q), &page, func(ctx context.Context) (any, error) {
		items, total, err := s.repo.List(ctx, q)
		if err != nil {
			return nil, err
		}
		return shared.NewPage(items, total, q), nil
	})
	return page, err
}

// ListByUser returns every order placed by userID, newest first.
func (s *Service) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	var items []Order
	key := cache.KeyFor(ListPrefix, map[string]int64{"userId": userID})
	err := s.cache.FetchJSON(ctx, ListPrefix, key, &items, func(ctx context.Context) (any, error) {
		return s.repo.ListByUser(ctx, userID)
	})
	if items == nil {
		items = []Order{}
	}
	return items, err
}

// Get returns one order by its hex id.
func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	if _, err := ObjectID(id); err != nil {
		return Order{}, err
	}
	var o Order
	err := s.cache.FetchJSON(ctx, EntityPrefix, cache.EntityKey(EntityPrefix, id), &o, func(ctx context.Context) (any, error) {
		return s.repo.Get(ctx, id)
	})
	return o, err
}

// Create reserves stock for every line and persists the order. Stock is released again when
// the order cannot be stored.
func (s *Service) Create(ctx context.Context, req Request) (Order, error) {
	o, err := buildOrder(req)
	if err != nil {
		return Order{}, err
	}
	if err := s.stock.Reserve(ctx, stockLines(o.Lines)); err != nil {
		return Order{}, err
	}
	now := s.now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now

	created, err := s.repo.Create(ctx, o)
	if err != nil {
		s.restore(ctx, "release stock after failed insert", o.Lines, nil)
		return Order{}, err
	}
	s.invalidate(ctx, created.ID.Hex())
	return created, nil
}

// Update replaces the lines of an order. The previous reservation is swapped for the new one in a
// single stock transaction, so a rejected request leaves stock as it was.
func (s *Service) Update(ctx context.Context, id string, req Request) (Order, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	next, err := buildOrder(req)
	if err != nil {
		return Order{}, err
	}
	if err := s.stock.Swap(ctx, stockLines(current.Lines), stockLines(next.Lines)); err != nil {
		return Order{}, err
	}

	next.ID = current.ID
	next.IsDeleted = current.IsDeleted
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = s.now().UTC()
	updated, err := s.repo.Update(ctx, next)
	if err != nil {
		s.restore(ctx, "restore stock after failed update", next.Lines, current.Lines)
		return Order{}, err
	}
	s.invalidate(ctx, id)
	return updated, nil
}

// Delete returns the reserved stock and removes the order.
func (s *Service) Delete(ctx context.Context, id string) error {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.stock.Release(ctx, stockLines(current.Lines)); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		s.restore(ctx, "re-reserve after failed delete", nil, current.Lines)
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// restore undoes a stock change that was not followed by a successful write. Failures are
// logged because the caller already returns the original error.
func (s *Service) restore(ctx context.Context, msg string, release, retake []Line) {
	if err := s.stock.Restore(ctx, stockLines(release), stockLines(retake)); err != nil {
		s.logger.Error(msg, slog.Int("released", len(release)), slog.Int("retaken", len(retake)), slog.Any("error", err))
	}
}

func (s *Service) invalidate(ctx context.Context, id string) {
	if err := s.cache.Invalidate(ctx, ListPrefix, cache.EntityKey(EntityPrefix, id)); err != nil {
		s.logger.Warn("invalidate order cache", slog.String("id", id), slog.Any("error", err))
	}
}

// buildOrder checks the request shape and computes line and order totals to the cent.
func buildOrder(req Request) (Order, error) {
	if len(req.Lines) == 0 {
		return Order{}, fmt.Errorf("%w: order must contain at least one line", httpx.ErrValidation)
	}
	o := Order{
		UserID:   req.UserID,
		Customer: req.Customer,
		Lines:    make([]Line, 0, len(req.Lines)),
	}
	total := decimal.Zero
	for _, l := range req.Lines {
		if l.Quantity <= 0 {
			return Order{}, fmt.Errorf("%w: quantity for funko %d must be positive", httpx.ErrValidation, l.ProductID)
		}
		if l.Price < 0 {
			return Order{}, fmt.Errorf("%w: price for funko %d must not be negative", httpx.ErrValidation, l.ProductID)
		}
		price := decimal.NewFromFloat(l.Price).Round(2)
		lineTotal := price.Mul(decimal.NewFromInt(int64(l.Quantity))).Round(2)
		total = total.Add(lineTotal)
		o.TotalItems += l.Quantity
		o.Lines = append(o.Lines, Line{
			ProductID: l.ProductID,
			Price:     price.InexactFloat64(),
			Quantity:  l.Quantity,
			Total:     lineTotal.InexactFloat64(),
		})
	}
	o.Total = total.Round(2).InexactFloat64()
	return o, nil
}

func stockLines(lines []Line) []funkos.StockLine {
	out := make([]funkos.StockLine, len(lines))
	for i, l := range lines {
		out[i] = funkos.StockLine{ProductID: l.ProductID, Quantity: l.Quantity, Price: l.Price}
	}
	return out
}
