package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fidzella89/online-inventory/internal/core/domain"
)

func TestCreateProduct_WithInitialStock(t *testing.T) {
	store, cat := newTestStore(t)
	svc := NewProductService(store, store, nil)

	ctx := context.Background()
	p, err := svc.Create(ctx, CreateProductInput{
		SKU:          "WIDGET-1",
		Name:         "Widget",
		Description:  "A widget",
		Price:        decimal.RequireFromString("9.99"),
		InitialStock: 25,
		CategoryID:   cat.ID,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if p.ID == 0 || p.Stock != 25 {
		t.Errorf("unexpected product: id %d stock %d", p.ID, p.Stock)
	}

	entries, err := store.Ledger().List(ctx, &p.ID, 1, 10)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	if entries.TotalCount != 1 {
		t.Fatalf("expected one opening ledger entry, got %d", entries.TotalCount)
	}
	e := entries.Items[0]
	if e.Delta != 25 || e.Reason != domain.ReasonInitialStock {
		t.Errorf("unexpected opening entry: delta %d reason %q", e.Delta, e.Reason)
	}
}

func TestCreateProduct_ZeroStockHasNoLedgerEntry(t *testing.T) {
	store, cat := newTestStore(t)
	svc := NewProductService(store, store, nil)

	p, err := svc.Create(context.Background(), CreateProductInput{
		SKU:        "WIDGET-1",
		Name:       "Widget",
		Price:      decimal.RequireFromString("9.99"),
		CategoryID: cat.ID,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	entries, _ := store.Ledger().List(context.Background(), &p.ID, 1, 10)
	if entries.TotalCount != 0 {
		t.Errorf("expected no ledger entry for zero opening stock, got %d", entries.TotalCount)
	}
}

func TestCreateProduct_DuplicateSKU(t *testing.T) {
	store, cat := newTestStore(t)
	svc := NewProductService(store, store, nil)

	in := CreateProductInput{
		SKU:        "WIDGET-1",
		Name:       "Widget",
		Price:      decimal.RequireFromString("9.99"),
		CategoryID: cat.ID,
	}
	if _, err := svc.Create(context.Background(), in); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	_, err := svc.Create(context.Background(), in)
	if !errors.Is(err, domain.ErrSKUExists) {
		t.Fatalf("expected ErrSKUExists, got %v", err)
	}
}

func TestCreateProduct_UnknownCategory(t *testing.T) {
	store, _ := newTestStore(t)
	svc := NewProductService(store, store, nil)

	_, err := svc.Create(context.Background(), CreateProductInput{
		SKU:        "WIDGET-1",
		Name:       "Widget",
		Price:      decimal.RequireFromString("9.99"),
		CategoryID: 999,
	})
	if !errors.Is(err, domain.ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}

	// the failed create left nothing behind
	products, _ := svc.List(context.Background(), nil, 1, 10)
	if products.TotalCount != 0 {
		t.Errorf("expected no product persisted, got %d", products.TotalCount)
	}
}

func TestCreateProduct_NegativePrice(t *testing.T) {
	store, cat := newTestStore(t)
	svc := NewProductService(store, store, nil)

	_, err := svc.Create(context.Background(), CreateProductInput{
		SKU:        "WIDGET-1",
		Name:       "Widget",
		Price:      decimal.RequireFromString("-1"),
		CategoryID: cat.ID,
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUpdateProduct_NeverTouchesStockOrSKU(t *testing.T) {
	store, cat := newTestStore(t)
	p := createTestProduct(t, store, "SKU-1", "10.00", 30, cat.ID)
	svc := NewProductService(store, store, nil)

	updated, err := svc.Update(context.Background(), p.ID, UpdateProductInput{
		Name:        "Renamed",
		Description: "new description",
		Price:       decimal.RequireFromString("12.00"),
		CategoryID:  cat.ID,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Name != "Renamed" || !updated.Price.Equal(decimal.RequireFromString("12.00")) {
		t.Errorf("update not applied: %+v", updated)
	}
	if updated.SKU != "SKU-1" {
		t.Errorf("sku must be immutable, got %q", updated.SKU)
	}
	if updated.Stock != 30 {
		t.Errorf("stock must not change on update, got %d", updated.Stock)
	}
}

func TestDeleteProduct_RestrictedWithHistory(t *testing.T) {
	store, cat := newTestStore(t)
	withHistory := createTestProduct(t, store, "SKU-1", "10.00", 10, cat.ID)
	clean := createTestProduct(t, store, "SKU-2", "10.00", 0, cat.ID)
	svc := NewProductService(store, store, nil)

	ctx := context.Background()
	if err := svc.Delete(ctx, withHistory.ID); !errors.Is(err, domain.ErrProductInUse) {
		t.Fatalf("expected ErrProductInUse, got %v", err)
	}
	if _, err := svc.Get(ctx, withHistory.ID); err != nil {
		t.Errorf("product with history must survive delete: %v", err)
	}

	if err := svc.Delete(ctx, clean.ID); err != nil {
		t.Fatalf("delete of clean product failed: %v", err)
	}
	if _, err := svc.Get(ctx, clean.ID); !errors.Is(err, domain.ErrProductNotFound) {
		t.Errorf("expected clean product gone, got %v", err)
	}

	if err := svc.Delete(ctx, 999); !errors.Is(err, domain.ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound, got %v", err)
	}
}

func TestListProducts_FilterByCategory(t *testing.T) {
	store, cat := newTestStore(t)
	other := &domain.Category{Name: "Other"}
	if err := store.Categories().Create(context.Background(), other); err != nil {
		t.Fatalf("create category: %v", err)
	}
	createTestProduct(t, store, "SKU-1", "10.00", 1, cat.ID)
	createTestProduct(t, store, "SKU-2", "10.00", 1, other.ID)
	svc := NewProductService(store, store, nil)

	result, err := svc.List(context.Background(), &other.ID, 1, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if result.TotalCount != 1 || result.Items[0].SKU != "SKU-2" {
		t.Errorf("unexpected filter result: %+v", result)
	}
	if result.Items[0].CategoryName != "Other" {
		t.Errorf("expected category name enrichment, got %q", result.Items[0].CategoryName)
	}
}
