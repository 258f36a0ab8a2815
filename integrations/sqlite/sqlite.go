// Package sqlite stores accounts, cards, statements and imported
// transactions in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aqlanhadi/fatura/billing"
	"github.com/aqlanhadi/fatura/extractor/common"
	"github.com/aqlanhadi/fatura/importer"
	"github.com/aqlanhadi/fatura/reference"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

var (
	_ importer.Store = (*DB)(nil)
	_ importer.Sink  = (*DB)(nil)
)

const ddl = `
CREATE TABLE IF NOT EXISTS accounts (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    bank_code TEXT,
    created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    close_day INTEGER NOT NULL CHECK (close_day BETWEEN 1 AND 31),
    due_day INTEGER NOT NULL CHECK (due_day BETWEEN 1 AND 31),
    created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS statements (
    id TEXT PRIMARY KEY,
    card_id TEXT NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
    statement_year INTEGER NOT NULL,
    statement_month INTEGER NOT NULL,
    cycle_start TEXT NOT NULL,
    cycle_end TEXT NOT NULL,
    due_date TEXT NOT NULL,
    created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(card_id, statement_year, statement_month)
);

CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    import_id TEXT NOT NULL,
    owner_id TEXT NOT NULL,
    owner_kind TEXT NOT NULL,
    statement_id TEXT REFERENCES statements(id) ON DELETE SET NULL,
    date TEXT NOT NULL,
    amount TEXT NOT NULL,
    description TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    fitid TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS imports (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id TEXT NOT NULL,
    checksum TEXT NOT NULL,
    filename TEXT NOT NULL,
    created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(owner_id, checksum)
);

CREATE INDEX IF NOT EXISTS idx_transactions_owner_date ON transactions(owner_id, date);
`

// DB wraps the SQLite handle.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema
// exists. Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.EnsureSchema(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the tables if they don't exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// CreateAccount inserts an account. bankCode may be empty.
func (db *DB) CreateAccount(ctx context.Context, name, bankCode string) (string, error) {
	var code sql.NullString
	if bankCode != "" {
		code = sql.NullString{String: reference.NormalizeCode(bankCode), Valid: true}
	}

	id := uuid.NewString()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO accounts (id, name, bank_code) VALUES (?, ?, ?)`,
		id, name, code)
	if err != nil {
		return "", fmt.Errorf("create account: %w", err)
	}
	return id, nil
}

// CreateCard inserts a credit card under an account.
func (db *DB) CreateCard(ctx context.Context, accountID, name string, cfg billing.CycleConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO cards (id, account_id, name, close_day, due_day) VALUES (?, ?, ?, ?, ?)`,
		id, accountID, name, cfg.CloseDay, cfg.DueDay)
	if err != nil {
		return "", fmt.Errorf("create card: %w", err)
	}
	return id, nil
}

func (db *DB) FetchCardConfig(ctx context.Context, cardID string) (billing.CycleConfig, error) {
	var cfg billing.CycleConfig
	err := db.conn.QueryRowContext(ctx,
		`SELECT close_day, due_day FROM cards WHERE id = ?`, cardID).
		Scan(&cfg.CloseDay, &cfg.DueDay)
	if errors.Is(err, sql.ErrNoRows) {
		return cfg, fmt.Errorf("%w: card %s not found", importer.ErrInvalidTarget, cardID)
	}
	if err != nil {
		return cfg, fmt.Errorf("fetch card: %w", err)
	}
	return cfg, nil
}

// FetchBankByAccount resolves the bank of an account, or of the account a
// card belongs to. It returns nil when no bank is linked.
func (db *DB) FetchBankByAccount(ctx context.Context, ownerID string) (*reference.Bank, error) {
	var code sql.NullString
	err := db.conn.QueryRowContext(ctx, `
		SELECT a.bank_code FROM accounts a WHERE a.id = ?1
		UNION ALL
		SELECT a.bank_code FROM cards c JOIN accounts a ON a.id = c.account_id WHERE c.id = ?1
		LIMIT 1
	`, ownerID).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s not found", importer.ErrInvalidTarget, ownerID)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch account bank: %w", err)
	}

	if !code.Valid || code.String == "" {
		return nil, nil
	}
	return &reference.Bank{Code: code.String}, nil
}

// FetchRowsInRange returns the stored transactions of an owner dated within
// [start, end]. Dates are ISO strings, so text comparison orders them.
func (db *DB) FetchRowsInRange(ctx context.Context, ownerID string, start, end time.Time) ([]common.ExistingRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT date, amount, description, fitid
		FROM transactions
		WHERE owner_id = ? AND date BETWEEN ? AND ?
		ORDER BY date, created_at
	`, ownerID, start.Format(time.DateOnly), end.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []common.ExistingRow
	for rows.Next() {
		var (
			row    common.ExistingRow
			amount string
		)
		if err := rows.Scan(&row.Date, &amount, &row.Description, &row.FITID); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if row.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// EnsureStatementExists returns the statement of a card for cycle, creating
// it on first use.
func (db *DB) EnsureStatementExists(ctx context.Context, cardID string, cycle billing.Cycle) (string, error) {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO statements (id, card_id, statement_year, statement_month, cycle_start, cycle_end, due_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (card_id, statement_year, statement_month) DO NOTHING
	`,
		uuid.NewString(), cardID, cycle.StatementYear, int(cycle.StatementMonth),
		cycle.Start.Format(time.DateOnly), cycle.End.Format(time.DateOnly), cycle.Due.Format(time.DateOnly),
	)
	if err != nil {
		return "", fmt.Errorf("ensure statement %s: %w", cycle.Key(), err)
	}

	var id string
	err = db.conn.QueryRowContext(ctx, `
		SELECT id FROM statements WHERE card_id = ? AND statement_year = ? AND statement_month = ?
	`, cardID, cycle.StatementYear, int(cycle.StatementMonth)).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("load statement %s: %w", cycle.Key(), err)
	}
	return id, nil
}

// InsertTransactions inserts rows in a single transaction.
func (db *DB) InsertTransactions(ctx context.Context, rows []importer.Row) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (
			id, import_id, owner_id, owner_kind, statement_id, date, amount, description, category, fitid
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		statementID := sql.NullString{String: row.StatementID, Valid: row.StatementID != ""}
		_, err := stmt.ExecContext(ctx,
			row.ID, row.ImportID, row.Owner.ID, string(row.Owner.Kind), statementID,
			row.Date, row.Amount.StringFixed(2), row.Description, row.Category, row.FITID,
		)
		if err != nil {
			return fmt.Errorf("insert transaction %s: %w", row.ID, err)
		}
	}
	return tx.Commit()
}

func (db *DB) ImportChecksumExists(ctx context.Context, ownerID, checksum string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM imports WHERE owner_id = ? AND checksum = ?)`,
		ownerID, checksum).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check import: %w", err)
	}
	return exists, nil
}

// RecordImport stores the checksum of an imported file. Recording the same
// file twice is a no-op.
func (db *DB) RecordImport(ctx context.Context, ownerID, checksum, filename string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO imports (owner_id, checksum, filename) VALUES (?, ?, ?)
		ON CONFLICT (owner_id, checksum) DO NOTHING
	`, ownerID, checksum, filename)
	if err != nil {
		return fmt.Errorf("record import: %w", err)
	}
	return nil
}
