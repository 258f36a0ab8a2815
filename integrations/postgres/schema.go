package postgres

import (
	"context"
	"fmt"
)

const ddl = `
-- Accounts carry the bank code OFX imports are verified against
CREATE TABLE IF NOT EXISTS accounts (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name VARCHAR(255) NOT NULL,
    bank_code VARCHAR(3) DEFAULT NULL,
    created_at TIMESTAMPTZ DEFAULT NOW(),
    updated_at TIMESTAMPTZ DEFAULT NOW()
);

-- Credit cards belong to an account and carry their billing days
CREATE TABLE IF NOT EXISTS cards (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    name VARCHAR(255) NOT NULL,
    close_day SMALLINT NOT NULL CHECK (close_day BETWEEN 1 AND 31),
    due_day SMALLINT NOT NULL CHECK (due_day BETWEEN 1 AND 31),
    created_at TIMESTAMPTZ DEFAULT NOW()
);

-- One statement per card and billing month
CREATE TABLE IF NOT EXISTS statements (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    card_id UUID NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
    statement_year SMALLINT NOT NULL,
    statement_month SMALLINT NOT NULL,
    cycle_start DATE NOT NULL,
    cycle_end DATE NOT NULL,
    due_date DATE NOT NULL,
    created_at TIMESTAMPTZ DEFAULT NOW(),

    UNIQUE(card_id, statement_year, statement_month)
);

-- Transactions are owned by either an account or a card
CREATE TABLE IF NOT EXISTS transactions (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    import_id UUID NOT NULL,
    owner_id UUID NOT NULL,
    owner_kind VARCHAR(10) NOT NULL,
    statement_id UUID REFERENCES statements(id) ON DELETE SET NULL,
    date DATE NOT NULL,
    amount NUMERIC(18,2) NOT NULL,
    description TEXT NOT NULL,
    category VARCHAR(50) DEFAULT '',
    fitid VARCHAR(255) DEFAULT '',
    created_at TIMESTAMPTZ DEFAULT NOW()
);

-- Checksums of files already imported per owner
CREATE TABLE IF NOT EXISTS imports (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    owner_id UUID NOT NULL,
    checksum VARCHAR(64) NOT NULL,
    filename VARCHAR(255) NOT NULL,
    created_at TIMESTAMPTZ DEFAULT NOW(),

    UNIQUE(owner_id, checksum)
);

CREATE INDEX IF NOT EXISTS idx_transactions_owner_date ON transactions(owner_id, date);
CREATE INDEX IF NOT EXISTS idx_transactions_statement_id ON transactions(statement_id);
`

const migrateDDL = `
-- Add fitid column if not exists
DO $$ BEGIN
    IF NOT EXISTS (SELECT 1 FROM information_schema.columns
                   WHERE table_name = 'transactions' AND column_name = 'fitid') THEN
        ALTER TABLE transactions ADD COLUMN fitid VARCHAR(255) DEFAULT '';
    END IF;
END $$;

CREATE INDEX IF NOT EXISTS idx_transactions_fitid
ON transactions(owner_id, fitid) WHERE fitid != '';
`

// EnsureSchema creates tables if they don't exist and runs migrations
func (db *DB) EnsureSchema(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, ddl)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	// Run migrations for existing tables
	_, err = db.Pool.Exec(ctx, migrateDDL)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
