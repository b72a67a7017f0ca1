package storage

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id   BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(100) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id          BIGINT AUTO_INCREMENT PRIMARY KEY,
		sku         VARCHAR(50) NOT NULL,
		name        VARCHAR(200) NOT NULL,
		description VARCHAR(1000) NOT NULL DEFAULT '',
		price       DECIMAL(12,2) NOT NULL,
		stock       INT NOT NULL DEFAULT 0,
		category_id BIGINT NOT NULL,
		UNIQUE KEY uq_products_sku (sku),
		KEY idx_products_category (category_id),
		CONSTRAINT fk_products_category FOREIGN KEY (category_id) REFERENCES categories (id)
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id         BIGINT AUTO_INCREMENT PRIMARY KEY,
		product_id BIGINT NOT NULL,
		delta      INT NOT NULL,
		ts         DATETIME(6) NOT NULL,
		reason     VARCHAR(100) NOT NULL,
		KEY idx_ledger_product_ts (product_id, ts),
		CONSTRAINT fk_ledger_product FOREIGN KEY (product_id) REFERENCES products (id)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id         BIGINT AUTO_INCREMENT PRIMARY KEY,
		created_at DATETIME(6) NOT NULL,
		total      DECIMAL(12,2) NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS order_lines (
		id         BIGINT AUTO_INCREMENT PRIMARY KEY,
		order_id   BIGINT NOT NULL,
		product_id BIGINT NOT NULL,
		quantity   INT NOT NULL,
		unit_price DECIMAL(12,2) NOT NULL,
		KEY idx_order_lines_order (order_id),
		KEY idx_order_lines_product (product_id),
		CONSTRAINT fk_lines_order FOREIGN KEY (order_id) REFERENCES orders (id),
		CONSTRAINT fk_lines_product FOREIGN KEY (product_id) REFERENCES products (id)
	)`,
}

// Migrate creates the schema when it does not exist yet. The foreign keys on
// ledger_entries and order_lines enforce restrict-delete for products with
// history at the engine level too.
func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
