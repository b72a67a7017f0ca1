package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/fidzella89/online-inventory/internal/core/domain"
	"github.com/fidzella89/online-inventory/internal/port"
)

// queryer is satisfied by both *sql.DB and *sql.Tx so the repositories can
// run autocommit or inside a coordinated transaction.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MySQLAdapter is the authoritative store. It implements port.Store for
// autocommit reads and port.TxManager for coordinated units of work; inside
// a transaction, per-product write exclusivity comes from SELECT ... FOR
// UPDATE row locks.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) Products() port.ProductRepository   { return &productRepo{q: m.db} }
func (m *MySQLAdapter) Ledger() port.LedgerRepository      { return &ledgerRepo{q: m.db} }
func (m *MySQLAdapter) Orders() port.OrderRepository       { return &orderRepo{q: m.db} }
func (m *MySQLAdapter) Categories() port.CategoryRepository { return &categoryRepo{q: m.db} }

// WithinTx runs fn against a transaction-scoped store. fn returning nil
// commits; any error, including a failed commit, rolls everything back
// before surfacing.
func (m *MySQLAdapter) WithinTx(ctx context.Context, fn func(ctx context.Context, s port.Store) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.TransactionError{Err: err}
	}
	defer tx.Rollback()

	if err := fn(ctx, &txStore{q: tx}); err != nil {
		return translateMySQLError(err)
	}
	if err := tx.Commit(); err != nil {
		return &domain.TransactionError{Err: err}
	}
	return nil
}

type txStore struct {
	q queryer
}

func (s *txStore) Products() port.ProductRepository    { return &productRepo{q: s.q} }
func (s *txStore) Ledger() port.LedgerRepository       { return &ledgerRepo{q: s.q} }
func (s *txStore) Orders() port.OrderRepository        { return &orderRepo{q: s.q} }
func (s *txStore) Categories() port.CategoryRepository { return &categoryRepo{q: s.q} }

// translateMySQLError maps engine-level races to the domain taxonomy.
// 1213 is a deadlock victim, 1205 a lock wait timeout; both mean the
// operation lost to a concurrent writer and may be retried whole.
func translateMySQLError(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1213, 1205:
			return fmt.Errorf("%w: %v", domain.ErrConcurrencyConflict, err)
		}
	}
	return err
}

// productRepo

type productRepo struct {
	q queryer
}

const productColumns = "p.id, p.sku, p.name, p.description, p.price, p.stock, p.category_id"

func (r *productRepo) Create(ctx context.Context, p *domain.Product) error {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO products (sku, name, description, price, stock, category_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.SKU, p.Name, p.Description, p.Price, p.Stock, p.CategoryID,
	)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == 1062 {
			return domain.ErrSKUExists
		}
		return fmt.Errorf("insert product: %w", err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert product id: %w", err)
	}
	return nil
}

func (r *productRepo) scanOne(row *sql.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CategoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return &p, nil
}

func (r *productRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	return r.scanOne(r.q.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM products p WHERE p.id = ?`, id))
}

func (r *productRepo) GetBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	return r.scanOne(r.q.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM products p WHERE p.sku = ?`, sku))
}

func (r *productRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	return r.scanOne(r.q.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM products p WHERE p.id = ? FOR UPDATE`, id))
}

func (r *productRepo) Update(ctx context.Context, p *domain.Product) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE products SET name = ?, description = ?, price = ?, category_id = ?
		WHERE id = ?`,
		p.Name, p.Description, p.Price, p.CategoryID, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return requireRow(res, domain.ErrProductNotFound)
}

func (r *productRepo) UpdateStock(ctx context.Context, id int64, stock int) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE products SET stock = ? WHERE id = ?`, stock, id)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	return requireRow(res, domain.ErrProductNotFound)
}

func (r *productRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == 1451 {
			return domain.ErrProductInUse
		}
		return fmt.Errorf("delete product: %w", err)
	}
	return requireRow(res, domain.ErrProductNotFound)
}

func (r *productRepo) List(ctx context.Context, categoryID *int64, page, pageSize int) (domain.PagedResult[domain.Product], error) {
	result := domain.PagedResult[domain.Product]{Page: page, PageSize: pageSize}

	where := ""
	args := []any{}
	if categoryID != nil {
		where = " WHERE p.category_id = ?"
		args = append(args, *categoryID)
	}

	if err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products p`+where, args...,
	).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count products: %w", err)
	}

	args = append(args, pageSize, (page-1)*pageSize)
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+productColumns+`, c.name
		FROM products p
		JOIN categories c ON c.id = p.category_id`+where+`
		ORDER BY p.id
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return result, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CategoryID, &p.CategoryName); err != nil {
			return result, fmt.Errorf("scan product: %w", err)
		}
		result.Items = append(result.Items, p)
	}
	return result, rows.Err()
}

func (r *productRepo) HasHistory(ctx context.Context, id int64) (bool, error) {
	var used bool
	err := r.q.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM ledger_entries WHERE product_id = ?)
		    OR EXISTS(SELECT 1 FROM order_lines WHERE product_id = ?)`,
		id, id,
	).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("check product history: %w", err)
	}
	return used, nil
}

func requireRow(res sql.Result, missing error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return missing
	}
	return nil
}

// ledgerRepo

type ledgerRepo struct {
	q queryer
}

func (r *ledgerRepo) Append(ctx context.Context, e *domain.LedgerEntry) error {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO ledger_entries (product_id, delta, ts, reason)
		VALUES (?, ?, ?, ?)`,
		e.ProductID, e.Delta, e.Timestamp, e.Reason,
	)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	e.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("append ledger entry id: %w", err)
	}
	return nil
}

func (r *ledgerRepo) List(ctx context.Context, productID *int64, page, pageSize int) (domain.PagedResult[domain.LedgerEntry], error) {
	result := domain.PagedResult[domain.LedgerEntry]{Page: page, PageSize: pageSize}

	where := ""
	args := []any{}
	if productID != nil {
		where = " WHERE e.product_id = ?"
		args = append(args, *productID)
	}

	if err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger_entries e`+where, args...,
	).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count ledger entries: %w", err)
	}

	args = append(args, pageSize, (page-1)*pageSize)
	rows, err := r.q.QueryContext(ctx, `
		SELECT e.id, e.product_id, e.delta, e.ts, e.reason, p.name, p.sku
		FROM ledger_entries e
		JOIN products p ON p.id = e.product_id`+where+`
		ORDER BY e.ts DESC, e.id DESC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return result, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.Delta, &e.Timestamp, &e.Reason, &e.ProductName, &e.ProductSKU); err != nil {
			return result, fmt.Errorf("scan ledger entry: %w", err)
		}
		result.Items = append(result.Items, e)
	}
	return result, rows.Err()
}

// orderRepo

type orderRepo struct {
	q queryer
}

func (r *orderRepo) Create(ctx context.Context, o *domain.Order) error {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO orders (created_at, total) VALUES (?, ?)`,
		o.CreatedAt, o.Total,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	o.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert order id: %w", err)
	}
	return nil
}

func (r *orderRepo) AddLine(ctx context.Context, orderID int64, line *domain.OrderLine) error {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO order_lines (order_id, product_id, quantity, unit_price)
		VALUES (?, ?, ?, ?)`,
		orderID, line.ProductID, line.Quantity, line.UnitPrice,
	)
	if err != nil {
		return fmt.Errorf("insert order line: %w", err)
	}
	line.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert order line id: %w", err)
	}
	return nil
}

func (r *orderRepo) SetTotal(ctx context.Context, orderID int64, total decimal.Decimal) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE orders SET total = ? WHERE id = ?`, total, orderID)
	if err != nil {
		return fmt.Errorf("update order total: %w", err)
	}
	return requireRow(res, domain.ErrOrderNotFound)
}

func (r *orderRepo) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	var o domain.Order
	err := r.q.QueryRowContext(ctx,
		`SELECT id, created_at, total FROM orders WHERE id = ?`, id,
	).Scan(&o.ID, &o.CreatedAt, &o.Total)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT l.id, l.product_id, l.quantity, l.unit_price, p.name, p.sku
		FROM order_lines l
		JOIN products p ON p.id = l.product_id
		WHERE l.order_id = ?
		ORDER BY l.id`, id)
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ID, &l.ProductID, &l.Quantity, &l.UnitPrice, &l.ProductName, &l.ProductSKU); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		o.Lines = append(o.Lines, l)
	}
	return &o, rows.Err()
}

func (r *orderRepo) List(ctx context.Context, page, pageSize int) (domain.PagedResult[domain.OrderSummary], error) {
	result := domain.PagedResult[domain.OrderSummary]{Page: page, PageSize: pageSize}

	if err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders`,
	).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count orders: %w", err)
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT o.id, o.created_at, o.total,
		       (SELECT COUNT(*) FROM order_lines l WHERE l.order_id = o.id)
		FROM orders o
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT ? OFFSET ?`, pageSize, (page-1)*pageSize)
	if err != nil {
		return result, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s domain.OrderSummary
		if err := rows.Scan(&s.ID, &s.CreatedAt, &s.Total, &s.LineCount); err != nil {
			return result, fmt.Errorf("scan order summary: %w", err)
		}
		result.Items = append(result.Items, s)
	}
	return result, rows.Err()
}

// categoryRepo

type categoryRepo struct {
	q queryer
}

func (r *categoryRepo) Create(ctx context.Context, c *domain.Category) error {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO categories (name) VALUES (?)`, c.Name)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert category id: %w", err)
	}
	return nil
}

func (r *categoryRepo) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM categories WHERE id = ?)`, id,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check category: %w", err)
	}
	return ok, nil
}

func (r *categoryRepo) List(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
