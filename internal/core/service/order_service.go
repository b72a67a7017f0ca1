package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fidzella89/online-inventory/internal/core/domain"
	"github.com/fidzella89/online-inventory/internal/port"
)

// OrderService settles multi-line orders against live stock: every line is
// checked for sufficiency, priced at the current unit price, decremented
// from stock and journaled, all inside one transaction. A failure on any
// line leaves no trace of the order.
type OrderService struct {
	store port.Store
	tx    port.TxManager
	cache port.CacheRepository // optional, may be nil
}

func NewOrderService(store port.Store, tx port.TxManager, cache port.CacheRepository) *OrderService {
	return &OrderService{store: store, tx: tx, cache: cache}
}

// Settle validates and commits an order. requestID, when non-empty and a
// cache is configured, suppresses duplicate submissions of the same request.
func (s *OrderService) Settle(ctx context.Context, requestID string, lines []domain.OrderLineInput) (*domain.Order, error) {
	if len(lines) == 0 {
		return nil, domain.ErrEmptyOrder
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidInput)
		}
	}

	if s.cache != nil && requestID != "" {
		ok, err := s.cache.SetIdempotency(ctx, "settle:"+requestID)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return nil, domain.ErrDuplicateRequest
		}
	}

	gated, err := s.gateStock(ctx, lines)
	if err != nil {
		return nil, err
	}

	order, touched, err := s.settleTx(ctx, lines)
	if err != nil {
		s.releaseGate(ctx, gated)
		return nil, err
	}

	// The cache already reflects the gate's decrements when the gate ran;
	// SetStock recovers it from any drift either way.
	if s.cache != nil {
		for id, stock := range touched {
			if err := s.cache.SetStock(ctx, id, stock); err != nil {
				log.Printf("cache stock sync failed for product %d: %v", id, err)
			}
		}
	}
	return order, nil
}

// gateStock sheds settlements the cached counts already rule out, before
// any row lock is taken. Returns the decrements it applied so a later
// failure can compensate. A cache rejection is re-checked against the
// database so the caller still gets exact numbers.
func (s *OrderService) gateStock(ctx context.Context, lines []domain.OrderLineInput) ([]domain.OrderLineInput, error) {
	if s.cache == nil {
		return nil, nil
	}
	applied := make([]domain.OrderLineInput, 0, len(lines))
	for _, l := range lines {
		ok, err := s.cache.DecrementStock(ctx, l.ProductID, l.Quantity)
		if err != nil {
			s.releaseGate(ctx, applied)
			return nil, fmt.Errorf("stock gate failed: %w", err)
		}
		if !ok {
			s.releaseGate(ctx, applied)
			p, gerr := s.store.Products().GetByID(ctx, l.ProductID)
			if gerr != nil {
				return nil, gerr
			}
			return nil, &domain.InsufficientStockError{ProductID: l.ProductID, Available: p.Stock, Requested: l.Quantity}
		}
		applied = append(applied, l)
	}
	return applied, nil
}

func (s *OrderService) releaseGate(ctx context.Context, applied []domain.OrderLineInput) {
	for _, l := range applied {
		if err := s.cache.IncrementStock(ctx, l.ProductID, l.Quantity); err != nil {
			log.Printf("CRITICAL: stock gate rollback failed for product %d: %v", l.ProductID, err)
		}
	}
}

// settleTx runs the authoritative settlement. Product rows are locked in
// ascending id order so orders over overlapping product sets cannot
// deadlock; sufficiency is then checked per line in the caller's order,
// against the running remainder so repeated products accumulate.
func (s *OrderService) settleTx(ctx context.Context, lines []domain.OrderLineInput) (*domain.Order, map[int64]int, error) {
	var (
		order   *domain.Order
		touched map[int64]int
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st port.Store) error {
		shell := &domain.Order{CreatedAt: time.Now().UTC(), Total: decimal.Zero}
		if err := st.Orders().Create(ctx, shell); err != nil {
			return err
		}

		ids := make([]int64, 0, len(lines))
		seen := make(map[int64]bool, len(lines))
		for _, l := range lines {
			if !seen[l.ProductID] {
				seen[l.ProductID] = true
				ids = append(ids, l.ProductID)
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		products := make(map[int64]*domain.Product, len(ids))
		for _, id := range ids {
			p, err := st.Products().GetForUpdate(ctx, id)
			if err != nil {
				return fmt.Errorf("product %d: %w", id, err)
			}
			products[id] = p
		}

		total := decimal.Zero
		for _, l := range lines {
			p := products[l.ProductID]
			if p.Stock < l.Quantity {
				return &domain.InsufficientStockError{ProductID: p.ID, Available: p.Stock, Requested: l.Quantity}
			}

			line := domain.OrderLine{
				ProductID:   p.ID,
				ProductName: p.Name,
				ProductSKU:  p.SKU,
				Quantity:    l.Quantity,
				UnitPrice:   p.Price,
			}
			if err := st.Orders().AddLine(ctx, shell.ID, &line); err != nil {
				return err
			}

			p.Stock -= l.Quantity

			entry := &domain.LedgerEntry{
				ProductID: p.ID,
				Delta:     -l.Quantity,
				Timestamp: time.Now().UTC(),
				Reason:    domain.SaleReason(shell.ID),
			}
			if err := st.Ledger().Append(ctx, entry); err != nil {
				return err
			}

			total = total.Add(line.Subtotal())
			shell.Lines = append(shell.Lines, line)
		}

		for _, id := range ids {
			if err := st.Products().UpdateStock(ctx, id, products[id].Stock); err != nil {
				return err
			}
		}
		if err := st.Orders().SetTotal(ctx, shell.ID, total); err != nil {
			return err
		}
		shell.Total = total

		order = shell
		touched = make(map[int64]int, len(ids))
		for _, id := range ids {
			touched[id] = products[id].Stock
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return order, touched, nil
}

// GetOrder returns the fully materialized order with its lines.
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return s.store.Orders().GetByID(ctx, id)
}

// ListOrders returns one page of order summaries, newest first.
func (s *OrderService) ListOrders(ctx context.Context, page, pageSize int) (domain.PagedResult[domain.OrderSummary], error) {
	page, pageSize = normalizePage(page, pageSize)
	return s.store.Orders().List(ctx, page, pageSize)
}
