package domain

import (
	"errors"
	"fmt"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrSKUExists        = errors.New("sku already exists")
	ErrEmptyOrder       = errors.New("order must contain at least one line")
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrProductInUse     = errors.New("product has ledger or order history")

	// ErrConcurrencyConflict means the operation lost a race with a
	// concurrent writer. The whole operation may be retried by the caller.
	ErrConcurrencyConflict = errors.New("concurrent modification conflict")
)

// InvalidAdjustmentError rejects a manual adjustment that would drive stock
// below zero. Nothing is written when it is returned.
type InvalidAdjustmentError struct {
	ProductID int64
	Current   int
	Delta     int
}

func (e *InvalidAdjustmentError) Error() string {
	return fmt.Sprintf("adjustment would result in negative stock for product %d: current %d, change %d",
		e.ProductID, e.Current, e.Delta)
}

// InsufficientStockError aborts a settlement whose line exceeds available
// stock. The whole order is rolled back when it is returned.
type InsufficientStockError struct {
	ProductID int64
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

// TransactionError wraps a storage-level failure to begin or commit a unit
// of work. All pending writes are rolled back before it surfaces.
type TransactionError struct {
	Err error
}

func (e *TransactionError) Error() string {
	return "transaction failed: " + e.Err.Error()
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}
