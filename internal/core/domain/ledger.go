package domain

import (
	"fmt"
	"time"
)

// ReasonInitialStock is recorded when a product is created with stock on hand.
const ReasonInitialStock = "Initial Stock"

// SaleReason is the ledger reason recorded for every line of a settled order.
func SaleReason(orderID int64) string {
	return fmt.Sprintf("Sale - Order #%d", orderID)
}

// LedgerEntry is one immutable stock movement. Entries are only ever
// appended; the current stock of a product is the sum of its deltas.
type LedgerEntry struct {
	ID        int64
	ProductID int64
	Delta     int
	Timestamp time.Time
	Reason    string

	// ProductName and ProductSKU are denormalized for callers; they are
	// filled on reads and on the entry returned from a mutation.
	ProductName string
	ProductSKU  string
}

// PagedResult is a single page of a larger result set.
type PagedResult[T any] struct {
	Items      []T
	TotalCount int
	Page       int
	PageSize   int
}
