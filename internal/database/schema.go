package database

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		image_url TEXT,
		created_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		code TEXT,
		description TEXT,
		price NUMERIC(12,2) NOT NULL,
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		category_id TEXT REFERENCES categories(id),
		thumbnail_url TEXT,
		created_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS warehouse_stock (
		product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		warehouse_id TEXT NOT NULL,
		warehouse_name TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (product_id, warehouse_id)
	)`,
	`CREATE TABLE IF NOT EXISTS carts (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		created_by TEXT,
		created_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_carts_user ON carts(user_id)`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		cart_id TEXT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
		product_id TEXT NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_price NUMERIC(12,2),
		PRIMARY KEY (cart_id, product_id)
	)`,
	`CREATE SEQUENCE IF NOT EXISTS invoice_number_seq`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL UNIQUE,
		customer_id TEXT,
		customer_username TEXT,
		customer_email TEXT,
		customer_first_name TEXT,
		customer_last_name TEXT,
		customer_registered_at TIMESTAMPTZ,
		total NUMERIC(12,2) NOT NULL,
		created_by TEXT,
		status TEXT NOT NULL DEFAULT 'PENDING',
		created_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_customer ON invoices(customer_id)`,
	`CREATE TABLE IF NOT EXISTS invoice_items (
		invoice_id TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		line_no INTEGER NOT NULL,
		product_id TEXT NOT NULL,
		product_name TEXT,
		product_code TEXT,
		quantity INTEGER NOT NULL,
		unit_price NUMERIC(12,2) NOT NULL,
		discount NUMERIC(12,2) NOT NULL DEFAULT 0,
		taxable_base NUMERIC(12,2),
		tax_rate NUMERIC(5,2),
		tax_amount NUMERIC(12,2),
		subtotal NUMERIC(12,2),
		line_total NUMERIC(12,2),
		PRIMARY KEY (invoice_id, line_no)
	)`,
}

// EnsureSchema crea las tablas si no existen
func (db *DB) EnsureSchema(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("error applying schema: %w", err)
		}
	}
	return nil
}
