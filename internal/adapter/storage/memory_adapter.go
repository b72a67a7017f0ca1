package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/fidzella89/online-inventory/internal/core/domain"
	"github.com/fidzella89/online-inventory/internal/port"
)

// MemoryAdapter is an in-process implementation of port.Store and
// port.TxManager with the same rollback semantics as the MySQL adapter:
// a transaction snapshots the state up front and restores it when fn fails.
// Writers are serialized behind one lock, which is stricter than the
// per-product exclusivity the database gives but trivially safe.
type MemoryAdapter struct {
	mu sync.RWMutex

	nextProductID  int64
	nextCategoryID int64
	nextOrderID    int64
	nextLineID     int64
	nextEntryID    int64

	products   map[int64]domain.Product
	categories map[int64]domain.Category
	orders     map[int64]domain.Order
	ledger     []domain.LedgerEntry
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		nextProductID:  1,
		nextCategoryID: 1,
		nextOrderID:    1,
		nextLineID:     1,
		nextEntryID:    1,
		products:       make(map[int64]domain.Product),
		categories:     make(map[int64]domain.Category),
		orders:         make(map[int64]domain.Order),
	}
}

type memTxKey struct{}

func inMemTx(ctx context.Context) bool {
	v, ok := ctx.Value(memTxKey{}).(bool)
	return ok && v
}

func (m *MemoryAdapter) rlock(ctx context.Context) {
	if !inMemTx(ctx) {
		m.mu.RLock()
	}
}

func (m *MemoryAdapter) runlock(ctx context.Context) {
	if !inMemTx(ctx) {
		m.mu.RUnlock()
	}
}

func (m *MemoryAdapter) wlock(ctx context.Context) {
	if !inMemTx(ctx) {
		m.mu.Lock()
	}
}

func (m *MemoryAdapter) wunlock(ctx context.Context) {
	if !inMemTx(ctx) {
		m.mu.Unlock()
	}
}

type memSnapshot struct {
	nextProductID  int64
	nextCategoryID int64
	nextOrderID    int64
	nextLineID     int64
	nextEntryID    int64
	products       map[int64]domain.Product
	categories     map[int64]domain.Category
	orders         map[int64]domain.Order
	ledger         []domain.LedgerEntry
}

func (m *MemoryAdapter) snapshot() memSnapshot {
	s := memSnapshot{
		nextProductID:  m.nextProductID,
		nextCategoryID: m.nextCategoryID,
		nextOrderID:    m.nextOrderID,
		nextLineID:     m.nextLineID,
		nextEntryID:    m.nextEntryID,
		products:       make(map[int64]domain.Product, len(m.products)),
		categories:     make(map[int64]domain.Category, len(m.categories)),
		orders:         make(map[int64]domain.Order, len(m.orders)),
		ledger:         append([]domain.LedgerEntry(nil), m.ledger...),
	}
	for id, p := range m.products {
		s.products[id] = p
	}
	for id, c := range m.categories {
		s.categories[id] = c
	}
	for id, o := range m.orders {
		o.Lines = append([]domain.OrderLine(nil), o.Lines...)
		s.orders[id] = o
	}
	return s
}

func (m *MemoryAdapter) restore(s memSnapshot) {
	m.nextProductID = s.nextProductID
	m.nextCategoryID = s.nextCategoryID
	m.nextOrderID = s.nextOrderID
	m.nextLineID = s.nextLineID
	m.nextEntryID = s.nextEntryID
	m.products = s.products
	m.categories = s.categories
	m.orders = s.orders
	m.ledger = s.ledger
}

// WithinTx serializes the unit of work behind the write lock; fn failing
// restores the pre-transaction snapshot so no partial write survives.
func (m *MemoryAdapter) WithinTx(ctx context.Context, fn func(ctx context.Context, s port.Store) error) error {
	if inMemTx(ctx) {
		return &domain.TransactionError{Err: errors.New("nested transaction")}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true), m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *MemoryAdapter) Products() port.ProductRepository    { return (*memProducts)(m) }
func (m *MemoryAdapter) Ledger() port.LedgerRepository       { return (*memLedger)(m) }
func (m *MemoryAdapter) Orders() port.OrderRepository        { return (*memOrders)(m) }
func (m *MemoryAdapter) Categories() port.CategoryRepository { return (*memCategories)(m) }

// memProducts

type memProducts MemoryAdapter

func (r *memProducts) base() *MemoryAdapter { return (*MemoryAdapter)(r) }

func (r *memProducts) Create(ctx context.Context, p *domain.Product) error {
	m := r.base()
	m.wlock(ctx)
	defer m.wunlock(ctx)
	for _, existing := range m.products {
		if existing.SKU == p.SKU {
			return domain.ErrSKUExists
		}
	}
	p.ID = m.nextProductID
	m.nextProductID++
	m.products[p.ID] = *p
	return nil
}

func (r *memProducts) get(id int64) (*domain.Product, error) {
	m := r.base()
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	if c, ok := m.categories[p.CategoryID]; ok {
		p.CategoryName = c.Name
	}
	return &p, nil
}

func (r *memProducts) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	m := r.base()
	m.rlock(ctx)
	defer m.runlock(ctx)
	return r.get(id)
}

func (r *memProducts) GetBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	m := r.base()
	m.rlock(ctx)
	defer m.runlock(ctx)
	for id, p := range m.products {
		if p.SKU == sku {
			return r.get(id)
		}
	}
	return nil, domain.ErrProductNotFound
}

// GetForUpdate is plain GetByID here: the transaction already holds the
// store-wide write lock.
func (r *memProducts) GetForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	return r.GetByID(ctx, id)
}

func (r *memProducts) Update(ctx context.Context, p *domain.Product) error {
	m := r.base()
	m.wlock(ctx)
	defer m.wunlock(ctx)
	existing, ok := m.products[p.ID]
	if !ok {
		return domain.ErrProductNotFound
	}
	existing.Name = p.Name
	existing.Description = p.Description
	existing.Price = p.Price
	existing.CategoryID = p.CategoryID
	m.products[p.ID] = existing
	return nil
}

func (r *memProducts) UpdateStock(ctx context.Context, id int64, stock int) error {
	m := r.base()
	m.wlock(ctx)
	defer m.wunlock(ctx)
	p, ok := m.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.Stock = stock
	m.products[id] = p
	return nil
}

func (r *memProducts) Delete(ctx context.Context, id int64) error {
	m := r.base()
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (r *memProducts) List(ctx context.Context, categoryID *int64, page, pageSize int) (domain.PagedResult[domain.Product], error) {
	m := r.base()
	m.rlock(ctx)
	defer m.runlock(ctx)

	var all []domain.Product
	for _, p := range m.products {
		if categoryID != nil && p.CategoryID != *categoryID {
			continue
		}
		if c, ok := m.categories[p.CategoryID]; ok {
			p.CategoryName = c.Name
		}
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return pageOf(all, page, pageSize), nil
}

func (r *memProducts) HasHistory(ctx context.Context, id int64) (bool, error) {
	m := r.base()
	m.rlock(ctx)
	defer m.runlock(ctx)
	for _, e := range m.ledger {
		if e.ProductID == id {
			return true, nil
		}
	}
	for _, o := range m.orders {
		for _, l := range o.Lines {
			if l.ProductID == id {
				return true, nil
			}
		}
	}
	return false, nil
}

// memLedger

type memLedger MemoryAdapter

func (r *memLedger) base() *MemoryAdapter { return (*MemoryAdapter)(r) }

func (r *memLedger) Append(ctx context.Context, e *domain.LedgerEntry) error {
	m := r.base()
	m.wlock(ctx)
	defer m.wunlock(ctx)
	e.ID = m.nextEntryID
	m.nextEntryID++
	m.ledger = append(m.ledger, *e)
	return nil
}

func (r *memLedger) List(ctx context.Context, productID *int64, page, pageSize int) (domain.PagedResult[domain.LedgerEntry], error) {
	m := r.base()
	m.rlock(ctx)
	defer m.runlock(ctx)

	var all []domain.LedgerEntry
	for _, e := range m.ledger {
		if productID != nil && e.ProductID != *productID {
			continue
		}
		if p, ok := m.products[e.ProductID]; ok {
			e.ProductName = p.Name
			e.ProductSKU = p.SKU
		}
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Timestamp.Equal(all[j].Timestamp) {
			return all[i].Timestamp.After(all[j].Timestamp)
		}
		return all[i].ID > all[j].ID
	})
	return pageOf(all, page, pageSize), nil
}

// memOrders

type memOrders MemoryAdapter

func (r *memOrders) base() *MemoryAdapter { return (*MemoryAdapter)(r) }

func (r *memOrders) Create(ctx context.Context, o *domain.Order) error {
	m := r.base()
	m.wlock(ctx)
	defer m.wunlock(ctx)
	o.ID = m.nextOrderID
	m.nextOrderID++
	stored := *o
	stored.Lines = nil
	m.orders[o.ID] = stored
	return nil
}

func (r *memOrders) AddLine(ctx context.Context, orderID int64, line *domain.OrderLine) error {
	m := r.base()
	m.wlock(ctx)
	defer m.wunlock(ctx)
	o, ok := m.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	line.ID = m.nextLineID
	m.nextLineID++
	o.Lines = append(o.Lines, *line)
	m.orders[orderID] = o
	return nil
}

func (r *memOrders) SetTotal(ctx context.Context, orderID int64, total decimal.Decimal) error {
	m := r.base()
	m.wlock(ctx)
	defer m.wunlock(ctx)
	o, ok := m.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.Total = total
	m.orders[orderID] = o
	return nil
}

func (r *memOrders) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	m := r.base()
	m.rlock(ctx)
	defer m.runlock(ctx)
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	o.Lines = append([]domain.OrderLine(nil), o.Lines...)
	for i := range o.Lines {
		if p, ok := m.products[o.Lines[i].ProductID]; ok {
			o.Lines[i].ProductName = p.Name
			o.Lines[i].ProductSKU = p.SKU
		}
	}
	return &o, nil
}

func (r *memOrders) List(ctx context.Context, page, pageSize int) (domain.PagedResult[domain.OrderSummary], error) {
	m := r.base()
	m.rlock(ctx)
	defer m.runlock(ctx)

	var all []domain.OrderSummary
	for _, o := range m.orders {
		all = append(all, domain.OrderSummary{
			ID:        o.ID,
			CreatedAt: o.CreatedAt,
			Total:     o.Total,
			LineCount: len(o.Lines),
		})
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	return pageOf(all, page, pageSize), nil
}

// memCategories

type memCategories MemoryAdapter

func (r *memCategories) base() *MemoryAdapter { return (*MemoryAdapter)(r) }

func (r *memCategories) Create(ctx context.Context, c *domain.Category) error {
	m := r.base()
	m.wlock(ctx)
	defer m.wunlock(ctx)
	c.ID = m.nextCategoryID
	m.nextCategoryID++
	m.categories[c.ID] = *c
	return nil
}

func (r *memCategories) Exists(ctx context.Context, id int64) (bool, error) {
	m := r.base()
	m.rlock(ctx)
	defer m.runlock(ctx)
	_, ok := m.categories[id]
	return ok, nil
}

func (r *memCategories) List(ctx context.Context) ([]domain.Category, error) {
	m := r.base()
	m.rlock(ctx)
	defer m.runlock(ctx)
	var out []domain.Category
	for _, c := range m.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func pageOf[T any](all []T, page, pageSize int) domain.PagedResult[T] {
	result := domain.PagedResult[T]{TotalCount: len(all), Page: page, PageSize: pageSize}
	start := (page - 1) * pageSize
	if start >= len(all) {
		return result
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	result.Items = all[start:end]
	return result
}
