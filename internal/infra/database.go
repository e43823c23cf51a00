package infra

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, bootstraps the
// schema with idempotent DDL, then applies the SQL patches that plain CREATE
// TABLE cannot express (partial indexes, check constraints).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	// ⚠️ GORM AutoMigrate DISABLED: Schema is managed exclusively via the SQL
	// bootstrap below to maintain precise control over decimal precision,
	// constraints, and other DDL operations. See applySchema / applySchemaPatches.
	// if err := db.AutoMigrate(
	// 	&model.Product{},
	// 	&model.ProductVariant{},
	// 	&model.StockMovement{},
	// 	&model.Account{},
	// 	&model.AccountTransaction{},
	// 	&model.Invoice{},
	// 	&model.InvoiceItem{},
	// 	&model.InvoiceEvent{},
	// 	&model.User{},
	// ); err != nil {
	// 	return nil, fmt.Errorf("AutoMigrate: %w", err)
	// }

	if err := applySchema(db); err != nil {
		return nil, fmt.Errorf("schema bootstrap: %w", err)
	}

	if err := applySchemaPatches(db); err != nil {
		return nil, fmt.Errorf("schema patches: %w", err)
	}

	return db, nil
}

// applySchema creates all tables and plain indexes. Every statement is
// IF NOT EXISTS so re-running on an existing schema is a no-op; column
// changes on a live schema go through applySchemaPatches instead.
func applySchema(db *gorm.DB) error {
	stmts := []struct{ descr, sql string }{
		{"pgcrypto extension",
			`CREATE EXTENSION IF NOT EXISTS pgcrypto`},

		{"products table", `
CREATE TABLE IF NOT EXISTS products (
    id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    code        text NOT NULL,
    name        text NOT NULL,
    description text,
    category    text NOT NULL DEFAULT '',
    brand       text,
    active      boolean NOT NULL DEFAULT true,
    created_at  timestamptz NOT NULL DEFAULT now(),
    updated_at  timestamptz NOT NULL DEFAULT now(),
    CONSTRAINT uni_products_code UNIQUE (code)
)`},

		{"product_variants table", `
CREATE TABLE IF NOT EXISTS product_variants (
    id         uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    product_id uuid NOT NULL REFERENCES products (id),
    size       text NOT NULL DEFAULT '',
    color      text NOT NULL DEFAULT '',
    sku        text NOT NULL,
    stock      integer NOT NULL DEFAULT 0,
    price      numeric(12,2) NOT NULL DEFAULT 0,
    CONSTRAINT uni_product_variants_sku UNIQUE (sku)
)`},
		{"product_variants product index",
			`CREATE INDEX IF NOT EXISTS idx_product_variants_product_id ON product_variants (product_id)`},

		{"stock_movements table", `
CREATE TABLE IF NOT EXISTS stock_movements (
    id           uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    variant_id   uuid NOT NULL REFERENCES product_variants (id),
    direction    varchar(3) NOT NULL,
    quantity     integer NOT NULL,
    stock_before integer NOT NULL,
    stock_after  integer NOT NULL,
    description  text NOT NULL DEFAULT '',
    document_ref text,
    created_at   timestamptz NOT NULL DEFAULT now()
)`},
		{"stock_movements variant index",
			`CREATE INDEX IF NOT EXISTS idx_stock_movements_variant_id ON stock_movements (variant_id)`},

		{"accounts table", `
CREATE TABLE IF NOT EXISTS accounts (
    id                  uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    name                text NOT NULL,
    document_type       varchar(10) NOT NULL,
    document_number     varchar(20) NOT NULL,
    email               text,
    phone               text,
    address             text,
    notes               text,
    kind                varchar(10) NOT NULL,
    credit_limit        numeric(12,2) NOT NULL DEFAULT 0,
    current_balance     numeric(12,2) NOT NULL DEFAULT 0,
    status              varchar(10) NOT NULL DEFAULT 'active',
    last_transaction_at timestamptz,
    created_at          timestamptz NOT NULL DEFAULT now(),
    updated_at          timestamptz NOT NULL DEFAULT now()
)`},

		{"account_transactions table", `
CREATE TABLE IF NOT EXISTS account_transactions (
    id            uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    account_id    uuid NOT NULL REFERENCES accounts (id),
    direction     varchar(6) NOT NULL,
    amount        numeric(12,2) NOT NULL,
    description   text NOT NULL DEFAULT '',
    invoice_id    uuid,
    balance_after numeric(12,2) NOT NULL,
    created_by    uuid NOT NULL,
    created_at    timestamptz NOT NULL DEFAULT now()
)`},

		{"invoices table", `
CREATE TABLE IF NOT EXISTS invoices (
    id               uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    voucher_type     varchar(2) NOT NULL,
    point_of_sale    integer NOT NULL,
    voucher_number   bigint,
    cae              varchar(20),
    cae_expires_at   timestamptz,
    account_id       uuid NOT NULL REFERENCES accounts (id),
    buyer_name       text NOT NULL,
    buyer_doc_type   varchar(10) NOT NULL,
    buyer_doc_number varchar(20) NOT NULL,
    buyer_address    text,
    subtotal         numeric(12,2) NOT NULL,
    tax              numeric(12,2) NOT NULL DEFAULT 0,
    total            numeric(12,2) NOT NULL,
    status           varchar(20) NOT NULL DEFAULT 'pending',
    error_message    text,
    pdf_path         text,
    created_at       timestamptz NOT NULL DEFAULT now(),
    updated_at       timestamptz NOT NULL DEFAULT now()
)`},
		{"invoices account index",
			`CREATE INDEX IF NOT EXISTS idx_invoices_account_id ON invoices (account_id)`},
		{"invoices status index",
			`CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices (status)`},

		{"invoice_items table", `
CREATE TABLE IF NOT EXISTS invoice_items (
    id         uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    invoice_id uuid NOT NULL REFERENCES invoices (id) ON DELETE CASCADE,
    variant_id uuid NOT NULL,
    description text NOT NULL,
    quantity   integer NOT NULL,
    unit_price numeric(12,2) NOT NULL,
    subtotal   numeric(12,2) NOT NULL,
    tax        numeric(12,2) NOT NULL,
    total      numeric(12,2) NOT NULL
)`},
		{"invoice_items invoice index",
			`CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice_id ON invoice_items (invoice_id)`},

		{"invoice_events table", `
CREATE TABLE IF NOT EXISTS invoice_events (
    id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    invoice_id  uuid NOT NULL REFERENCES invoices (id) ON DELETE CASCADE,
    type        varchar(40) NOT NULL,
    description text NOT NULL DEFAULT '',
    metadata    jsonb NOT NULL DEFAULT '{}',
    created_at  timestamptz NOT NULL DEFAULT now()
)`},
		{"invoice_events invoice index",
			`CREATE INDEX IF NOT EXISTS idx_invoice_events_invoice_id ON invoice_events (invoice_id)`},

		{"users table", `
CREATE TABLE IF NOT EXISTS users (
    id            uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    username      text NOT NULL,
    name          text NOT NULL,
    email         text,
    password_hash text NOT NULL,
    role          varchar(20) NOT NULL,
    active        boolean NOT NULL DEFAULT true,
    created_at    timestamptz NOT NULL DEFAULT now(),
    updated_at    timestamptz NOT NULL DEFAULT now(),
    CONSTRAINT uni_users_username UNIQUE (username)
)`},
	}

	for _, s := range stmts {
		if err := db.Exec(s.sql).Error; err != nil {
			return fmt.Errorf("bootstrap %q: %w", s.descr, err)
		}
	}
	return nil
}

// applySchemaPatches runs idempotent DDL that plain CREATE TABLE cannot
// express. Safe to re-run on an already-patched schema.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// One account per holder document.
		{"unique account document", `
CREATE UNIQUE INDEX IF NOT EXISTS uni_accounts_document
    ON accounts (document_type, document_number)`},
		// An authorized voucher number is unique within its
		// (point of sale, voucher type) sequence.
		{"unique authorized voucher", `
CREATE UNIQUE INDEX IF NOT EXISTS uni_invoices_voucher
    ON invoices (point_of_sale, voucher_type, voucher_number)
    WHERE voucher_number IS NOT NULL`},
		// Statement queries read a (account, created_at) range.
		{"account transactions range index", `
CREATE INDEX IF NOT EXISTS idx_account_transactions_range
    ON account_transactions (account_id, created_at)`},
		// Guard rails the ledgers rely on.
		{"non-negative stock", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_variants_stock_non_negative') THEN
    ALTER TABLE product_variants
      ADD CONSTRAINT chk_variants_stock_non_negative CHECK (stock >= 0);
  END IF;
END $$`},
		{"positive movement quantity", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_movements_quantity_positive') THEN
    ALTER TABLE stock_movements
      ADD CONSTRAINT chk_movements_quantity_positive CHECK (quantity > 0);
  END IF;
END $$`},
		{"positive transaction amount", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_transactions_amount_positive') THEN
    ALTER TABLE account_transactions
      ADD CONSTRAINT chk_transactions_amount_positive CHECK (amount > 0);
  END IF;
END $$`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
