package domain

import "github.com/shopspring/decimal"

type Product struct {
	ID          int64
	SKU         string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	CategoryID  int64
	// CategoryName is filled on reads that join the category, empty otherwise.
	CategoryName string
}

type Category struct {
	ID   int64
	Name string
}
