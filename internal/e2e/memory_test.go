package e2e

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/funko-store/funko-api/internal/categories"
	"github.com/funko-store/funko-api/internal/funkos"
	"github.com/funko-store/funko-api/internal/orders"
	"github.com/funko-store/funko-api/internal/platform/httpx"
	"github.com/funko-store/funko-api/internal/shared"
)

type memCategories struct {
	mu   sync.Mutex
	rows map[uuid.UUID]categories.Category
}

func (m *memCategories) List(_ context.Context, _ shared.ListQuery) ([]categories.Category, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Collect(maps.Values(m.rows))
	return out, len(out), nil
}

func (m *memCategories) Get(_ context.Context, id uuid.UUID) (categories.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return categories.Category{}, fmt.Errorf("%w: category %s", httpx.ErrNotFound, id)
	}
	return c, nil
}

func (m *memCategories) FindByName(_ context.Context, name string) (categories.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if c.Name == name {
			return c, nil
		}
	}
	return categories.Category{}, fmt.Errorf("%w: category %s", httpx.ErrNotFound, name)
}

func (m *memCategories) Create(_ context.Context, c categories.Category) (categories.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m.rows[c.ID] = c
	return c, nil
}

func (m *memCategories) Update(_ context.Context, c categories.Category) (categories.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[c.ID] = c
	return c, nil
}

func (m *memCategories) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

type memFunkos struct {
	mu     sync.Mutex
	rows   map[int64]funkos.Funko
	nextID int64
}

func (m *memFunkos) List(_ context.Context, _ shared.ListQuery) ([]funkos.Funko, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.SortedFunc(maps.Values(m.rows), func(a, b funkos.Funko) int { return int(a.ID - b.ID) })
	return out, len(out), nil
}

func (m *memFunkos) Get(_ context.Context, id int64) (funkos.Funko, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.rows[id]
	if !ok {
		return funkos.Funko{}, fmt.Errorf("%w: funko %d", httpx.ErrNotFound, id)
	}
	return f, nil
}

func (m *memFunkos) Create(_ context.Context, f funkos.Funko) (funkos.Funko, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	f.ID = m.nextID
	m.rows[f.ID] = f
	return f, nil
}

func (m *memFunkos) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

// WithTx runs fn against a copy of the rows and keeps it only when fn succeeds.
func (m *memFunkos) WithTx(ctx context.Context, fn func(context.Context, funkos.TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memFunkoTx{rows: maps.Clone(m.rows)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.rows = tx.rows
	return nil
}

type memFunkoTx struct {
	rows map[int64]funkos.Funko
}

func (t *memFunkoTx) LockForUpdate(_ context.Context, ids []int64) (map[int64]funkos.Funko, error) {
	out := make(map[int64]funkos.Funko, len(ids))
	for _, id := range ids {
		if f, ok := t.rows[id]; ok {
			out[id] = f
		}
	}
	return out, nil
}

func (t *memFunkoTx) AdjustQuantity(_ context.Context, id int64, delta int) error {
	f, ok := t.rows[id]
	if !ok {
		return fmt.Errorf("%w: funko %d", httpx.ErrNotFound, id)
	}
	f.Quantity += delta
	t.rows[id] = f
	return nil
}

func (t *memFunkoTx) Save(_ context.Context, f funkos.Funko) error {
	if _, ok := t.rows[f.ID]; !ok {
		return fmt.Errorf("%w: funko %d", httpx.ErrNotFound, f.ID)
	}
	t.rows[f.ID] = f
	return nil
}

type memOrders struct {
	mu   sync.Mutex
	rows map[string]orders.Order
}

func (m *memOrders) List(_ context.Context, _ shared.ListQuery) ([]orders.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Collect(maps.Values(m.rows))
	return out, len(out), nil
}

func (m *memOrders) ListByUser(_ context.Context, userID int64) ([]orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []orders.Order
	for _, o := range m.rows {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOrders) Get(_ context.Context, id string) (orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.rows[id]
	if !ok {
		return orders.Order{}, fmt.Errorf("%w: order %s", httpx.ErrNotFound, id)
	}
	return o, nil
}

func (m *memOrders) Create(_ context.Context, o orders.Order) (orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.ID = primitive.NewObjectID()
	m.rows[o.ID.Hex()] = o
	return o, nil
}

func (m *memOrders) Update(_ context.Context, o orders.Order) (orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[o.ID.Hex()]; !ok {
		return orders.Order{}, fmt.Errorf("%w: order %s", httpx.ErrNotFound, o.ID.Hex())
	}
	m.rows[o.ID.Hex()] = o
	return o, nil
}

func (m *memOrders) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return fmt.Errorf("%w: order %s", httpx.ErrNotFound, id)
	}
	delete(m.rows, id)
	return nil
}
