package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderLineInput is a requested line before settlement.
type OrderLineInput struct {
	ProductID int64
	Quantity  int
}

// OrderLine is a committed line. UnitPrice is captured at settlement time so
// later price changes never affect historical orders.
type OrderLine struct {
	ID          int64
	ProductID   int64
	ProductName string
	ProductSKU  string
	Quantity    int
	UnitPrice   decimal.Decimal
}

func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Order struct {
	ID        int64
	CreatedAt time.Time
	Total     decimal.Decimal
	Lines     []OrderLine
}

type OrderSummary struct {
	ID        int64
	CreatedAt time.Time
	Total     decimal.Decimal
	LineCount int
}
