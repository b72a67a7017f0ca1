package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fidzella89/online-inventory/internal/adapter/storage"
	"github.com/fidzella89/online-inventory/internal/core/domain"
)

func newTestStore(t *testing.T) (*storage.MemoryAdapter, *domain.Category) {
	t.Helper()
	store := storage.NewMemoryAdapter()
	cat := &domain.Category{Name: "Test"}
	if err := store.Categories().Create(context.Background(), cat); err != nil {
		t.Fatalf("create category: %v", err)
	}
	return store, cat
}

func createTestProduct(t *testing.T, store *storage.MemoryAdapter, sku string, price string, stock int, categoryID int64) *domain.Product {
	t.Helper()
	p := &domain.Product{
		SKU:        sku,
		Name:       "Product " + sku,
		Price:      decimal.RequireFromString(price),
		Stock:      stock,
		CategoryID: categoryID,
	}
	if err := store.Products().Create(context.Background(), p); err != nil {
		t.Fatalf("create product %s: %v", sku, err)
	}
	if stock > 0 {
		entry := &domain.LedgerEntry{ProductID: p.ID, Delta: stock, Reason: domain.ReasonInitialStock}
		if err := store.Ledger().Append(context.Background(), entry); err != nil {
			t.Fatalf("append initial entry: %v", err)
		}
	}
	return p
}

// ledgerSum adds up every delta recorded for the product.
func ledgerSum(t *testing.T, svc *InventoryService, productID int64) int {
	t.Helper()
	result, err := svc.ListLedger(context.Background(), &productID, 1, 100)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	sum := 0
	for _, e := range result.Items {
		sum += e.Delta
	}
	return sum
}

func TestAdjust_Success(t *testing.T) {
	store, cat := newTestStore(t)
	p := createTestProduct(t, store, "SKU-1", "10.00", 10, cat.ID)
	svc := NewInventoryService(store, store, nil)

	entry, err := svc.Adjust(context.Background(), p.ID, -3, "Shrinkage")
	if err != nil {
		t.Fatalf("adjust failed: %v", err)
	}

	if entry.Delta != -3 {
		t.Errorf("expected delta -3, got %d", entry.Delta)
	}
	if entry.Reason != "Shrinkage" {
		t.Errorf("expected reason Shrinkage, got %q", entry.Reason)
	}
	if entry.ProductName == "" || entry.ProductSKU != "SKU-1" {
		t.Errorf("expected entry enriched with product name and sku, got %q %q", entry.ProductName, entry.ProductSKU)
	}
	if entry.ID == 0 {
		t.Error("expected entry id to be assigned")
	}

	after, err := store.Products().GetByID(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.Stock != 7 {
		t.Errorf("expected stock 7, got %d", after.Stock)
	}
	if got := ledgerSum(t, svc, p.ID); got != 7 {
		t.Errorf("ledger sum %d does not reconcile with stock 7", got)
	}
}

func TestAdjust_NegativeResultRejected(t *testing.T) {
	store, cat := newTestStore(t)
	p := createTestProduct(t, store, "SKU-1", "10.00", 10, cat.ID)
	svc := NewInventoryService(store, store, nil)

	_, err := svc.Adjust(context.Background(), p.ID, -20, "x")
	var adjErr *domain.InvalidAdjustmentError
	if !errors.As(err, &adjErr) {
		t.Fatalf("expected InvalidAdjustmentError, got %v", err)
	}
	if adjErr.Current != 10 || adjErr.Delta != -20 {
		t.Errorf("expected current 10 delta -20, got %d %d", adjErr.Current, adjErr.Delta)
	}

	after, _ := store.Products().GetByID(context.Background(), p.ID)
	if after.Stock != 10 {
		t.Errorf("expected stock unchanged at 10, got %d", after.Stock)
	}
	result, _ := svc.ListLedger(context.Background(), &p.ID, 1, 100)
	if result.TotalCount != 1 {
		t.Errorf("expected only the initial ledger entry, got %d", result.TotalCount)
	}
}

func TestAdjust_ProductNotFound(t *testing.T) {
	store, _ := newTestStore(t)
	svc := NewInventoryService(store, store, nil)

	_, err := svc.Adjust(context.Background(), 999, 5, "Restock")
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestAdjust_EmptyReasonRejected(t *testing.T) {
	store, cat := newTestStore(t)
	p := createTestProduct(t, store, "SKU-1", "10.00", 10, cat.ID)
	svc := NewInventoryService(store, store, nil)

	_, err := svc.Adjust(context.Background(), p.ID, 1, "")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAdjust_LedgerReconcilesAfterMixedOps(t *testing.T) {
	store, cat := newTestStore(t)
	p := createTestProduct(t, store, "SKU-1", "10.00", 10, cat.ID)
	svc := NewInventoryService(store, store, nil)

	ctx := context.Background()
	steps := []struct {
		delta  int
		reason string
		wantOK bool
	}{
		{5, "Restock", true},
		{-3, "Shrinkage", true},
		{-100, "Bad correction", false},
		{-12, "Sale adjustment", true},
	}
	for _, s := range steps {
		_, err := svc.Adjust(ctx, p.ID, s.delta, s.reason)
		if s.wantOK && err != nil {
			t.Fatalf("adjust %+v failed: %v", s, err)
		}
		if !s.wantOK && err == nil {
			t.Fatalf("adjust %+v should have failed", s)
		}
	}

	after, _ := store.Products().GetByID(ctx, p.ID)
	if after.Stock != 0 {
		t.Errorf("expected stock 0, got %d", after.Stock)
	}
	if got := ledgerSum(t, svc, p.ID); got != after.Stock {
		t.Errorf("ledger sum %d does not reconcile with stock %d", got, after.Stock)
	}
}

func TestListLedger_OrderAndPaging(t *testing.T) {
	store, cat := newTestStore(t)
	p := createTestProduct(t, store, "SKU-1", "10.00", 0, cat.ID)
	other := createTestProduct(t, store, "SKU-2", "5.00", 0, cat.ID)
	svc := NewInventoryService(store, store, nil)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := svc.Adjust(ctx, p.ID, 1, "Restock"); err != nil {
			t.Fatalf("adjust: %v", err)
		}
	}
	if _, err := svc.Adjust(ctx, other.ID, 2, "Restock"); err != nil {
		t.Fatalf("adjust other: %v", err)
	}

	result, err := svc.ListLedger(ctx, &p.ID, 1, 3)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	if result.TotalCount != 5 {
		t.Errorf("expected 5 entries for product, got %d", result.TotalCount)
	}
	if len(result.Items) != 3 {
		t.Errorf("expected page of 3, got %d", len(result.Items))
	}
	for i := 1; i < len(result.Items); i++ {
		prev, cur := result.Items[i-1], result.Items[i]
		if cur.Timestamp.After(prev.Timestamp) {
			t.Error("expected entries ordered newest first")
		}
	}

	// unfiltered listing sees both products
	all, err := svc.ListLedger(ctx, nil, 1, 100)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if all.TotalCount != 6 {
		t.Errorf("expected 6 entries total, got %d", all.TotalCount)
	}

	// listing twice mutates nothing
	again, _ := svc.ListLedger(ctx, nil, 1, 100)
	if again.TotalCount != all.TotalCount {
		t.Error("expected ListLedger to be read-only")
	}
}
