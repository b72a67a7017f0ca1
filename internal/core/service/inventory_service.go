package service

import (
	"context"
	"log"
	"time"

	"github.com/fidzella89/online-inventory/internal/core/domain"
	"github.com/fidzella89/online-inventory/internal/port"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// InventoryService applies manual stock adjustments (restock, correction,
// shrinkage) and serves the movement journal. Every adjustment is one
// transaction: the stock write and the ledger append are never observed
// independently.
type InventoryService struct {
	store port.Store
	tx    port.TxManager
	cache port.CacheRepository // optional, may be nil
}

func NewInventoryService(store port.Store, tx port.TxManager, cache port.CacheRepository) *InventoryService {
	return &InventoryService{store: store, tx: tx, cache: cache}
}

// Adjust changes the stock of one product by delta and records the movement.
// It fails with domain.ErrProductNotFound when the product does not exist
// and with *domain.InvalidAdjustmentError when the result would be negative;
// in both cases nothing is written.
func (s *InventoryService) Adjust(ctx context.Context, productID int64, delta int, reason string) (*domain.LedgerEntry, error) {
	if reason == "" {
		return nil, domain.ErrInvalidInput
	}

	var (
		entry    *domain.LedgerEntry
		newStock int
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st port.Store) error {
		p, err := st.Products().GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}

		newStock = p.Stock + delta
		if newStock < 0 {
			return &domain.InvalidAdjustmentError{ProductID: productID, Current: p.Stock, Delta: delta}
		}

		if err := st.Products().UpdateStock(ctx, p.ID, newStock); err != nil {
			return err
		}

		e := &domain.LedgerEntry{
			ProductID:   p.ID,
			Delta:       delta,
			Timestamp:   time.Now().UTC(),
			Reason:      reason,
			ProductName: p.Name,
			ProductSKU:  p.SKU,
		}
		if err := st.Ledger().Append(ctx, e); err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetStock(ctx, productID, newStock); err != nil {
			log.Printf("cache stock sync failed for product %d: %v", productID, err)
		}
	}
	return entry, nil
}

// ListLedger returns one page of movements, newest first, optionally
// filtered to a single product. It never mutates state.
func (s *InventoryService) ListLedger(ctx context.Context, productID *int64, page, pageSize int) (domain.PagedResult[domain.LedgerEntry], error) {
	page, pageSize = normalizePage(page, pageSize)
	return s.store.Ledger().List(ctx, productID, page, pageSize)
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
