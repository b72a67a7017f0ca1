package port

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fidzella89/online-inventory/internal/core/domain"
)

// ProductRepository reads and writes the product catalog and its
// materialized stock count. Stock is only written through UpdateStock, and
// only inside a coordinated transaction.
type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	GetBySKU(ctx context.Context, sku string) (*domain.Product, error)

	// GetForUpdate loads a product holding a write lock on its row for the
	// rest of the enclosing transaction. Callers locking several products
	// must acquire them in ascending id order.
	GetForUpdate(ctx context.Context, id int64) (*domain.Product, error)

	// Update writes the non-stock fields (name, description, price,
	// category). SKU and stock are never touched by it.
	Update(ctx context.Context, p *domain.Product) error

	UpdateStock(ctx context.Context, id int64, stock int) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, categoryID *int64, page, pageSize int) (domain.PagedResult[domain.Product], error)

	// HasHistory reports whether any ledger entry or order line references
	// the product. Products with history cannot be deleted.
	HasHistory(ctx context.Context, id int64) (bool, error)
}

// LedgerRepository is the append-only stock movement journal. Entries are
// never updated or deleted.
type LedgerRepository interface {
	// Append persists one new entry and fills in its id.
	Append(ctx context.Context, e *domain.LedgerEntry) error

	// List returns entries ordered by timestamp descending, optionally
	// filtered to one product.
	List(ctx context.Context, productID *int64, page, pageSize int) (domain.PagedResult[domain.LedgerEntry], error)
}

type OrderRepository interface {
	// Create persists the order shell and fills in its id.
	Create(ctx context.Context, o *domain.Order) error
	AddLine(ctx context.Context, orderID int64, line *domain.OrderLine) error
	SetTotal(ctx context.Context, orderID int64, total decimal.Decimal) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	List(ctx context.Context, page, pageSize int) (domain.PagedResult[domain.OrderSummary], error)
}

type CategoryRepository interface {
	Create(ctx context.Context, c *domain.Category) error
	Exists(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context) ([]domain.Category, error)
}

// Store is one consistent view over all repositories, either autocommit or
// scoped to a transaction handed out by TxManager.
type Store interface {
	Products() ProductRepository
	Ledger() LedgerRepository
	Orders() OrderRepository
	Categories() CategoryRepository
}

// TxManager demarcates a unit of work. fn runs against a transaction-scoped
// Store; returning nil commits, returning an error rolls everything back.
// A commit failure rolls back and surfaces as *domain.TransactionError.
// Scopes do not nest.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}
