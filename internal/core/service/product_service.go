package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fidzella89/online-inventory/internal/core/domain"
	"github.com/fidzella89/online-inventory/internal/port"
)

// ProductService manages the catalog. It never mutates stock after creation;
// stock changes go through InventoryService and OrderService so every
// movement lands in the ledger.
type ProductService struct {
	store port.Store
	tx    port.TxManager
	cache port.CacheRepository // optional, may be nil
}

func NewProductService(store port.Store, tx port.TxManager, cache port.CacheRepository) *ProductService {
	return &ProductService{store: store, tx: tx, cache: cache}
}

type CreateProductInput struct {
	SKU          string
	Name         string
	Description  string
	Price        decimal.Decimal
	InitialStock int
	CategoryID   int64
}

type UpdateProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	CategoryID  int64
}

// Create adds a product. When InitialStock is positive the opening balance
// is journaled as an "Initial Stock" entry in the same transaction, keeping
// the ledger-sum invariant true from the first moment.
func (s *ProductService) Create(ctx context.Context, in CreateProductInput) (*domain.Product, error) {
	if in.SKU == "" || in.Name == "" {
		return nil, fmt.Errorf("%w: sku and name are required", domain.ErrInvalidInput)
	}
	if in.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", domain.ErrInvalidInput)
	}
	if in.InitialStock < 0 {
		return nil, fmt.Errorf("%w: initial stock must not be negative", domain.ErrInvalidInput)
	}

	var created *domain.Product
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st port.Store) error {
		if _, err := st.Products().GetBySKU(ctx, in.SKU); err == nil {
			return domain.ErrSKUExists
		} else if !errors.Is(err, domain.ErrProductNotFound) {
			return err
		}

		ok, err := st.Categories().Exists(ctx, in.CategoryID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrCategoryNotFound
		}

		p := &domain.Product{
			SKU:         in.SKU,
			Name:        in.Name,
			Description: in.Description,
			Price:       in.Price,
			Stock:       in.InitialStock,
			CategoryID:  in.CategoryID,
		}
		if err := st.Products().Create(ctx, p); err != nil {
			return err
		}

		if in.InitialStock > 0 {
			entry := &domain.LedgerEntry{
				ProductID: p.ID,
				Delta:     in.InitialStock,
				Timestamp: time.Now().UTC(),
				Reason:    domain.ReasonInitialStock,
			}
			if err := st.Ledger().Append(ctx, entry); err != nil {
				return err
			}
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetStock(ctx, created.ID, created.Stock); err != nil {
			log.Printf("cache stock sync failed for product %d: %v", created.ID, err)
		}
	}
	return created, nil
}

func (s *ProductService) Get(ctx context.Context, id int64) (*domain.Product, error) {
	return s.store.Products().GetByID(ctx, id)
}

func (s *ProductService) List(ctx context.Context, categoryID *int64, page, pageSize int) (domain.PagedResult[domain.Product], error) {
	page, pageSize = normalizePage(page, pageSize)
	return s.store.Products().List(ctx, categoryID, page, pageSize)
}

// Update rewrites the non-stock fields. SKU is immutable and stock is out of
// reach here entirely.
func (s *ProductService) Update(ctx context.Context, id int64, in UpdateProductInput) (*domain.Product, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if in.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", domain.ErrInvalidInput)
	}

	var updated *domain.Product
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st port.Store) error {
		p, err := st.Products().GetByID(ctx, id)
		if err != nil {
			return err
		}

		ok, err := st.Categories().Exists(ctx, in.CategoryID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrCategoryNotFound
		}

		p.Name = in.Name
		p.Description = in.Description
		p.Price = in.Price
		p.CategoryID = in.CategoryID
		if err := st.Products().Update(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a product with no history. A product referenced by any
// ledger entry or order line is kept, otherwise the journal would no longer
// reconcile.
func (s *ProductService) Delete(ctx context.Context, id int64) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context, st port.Store) error {
		if _, err := st.Products().GetByID(ctx, id); err != nil {
			return err
		}
		used, err := st.Products().HasHistory(ctx, id)
		if err != nil {
			return err
		}
		if used {
			return domain.ErrProductInUse
		}
		return st.Products().Delete(ctx, id)
	})
}
