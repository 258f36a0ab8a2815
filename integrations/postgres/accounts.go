package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/aqlanhadi/fatura/billing"
	"github.com/aqlanhadi/fatura/importer"
	"github.com/aqlanhadi/fatura/reference"
	"github.com/jackc/pgx/v5"
)

// CreateAccount inserts an account. bankCode may be empty when the
// institution is not known yet.
func (db *DB) CreateAccount(ctx context.Context, name, bankCode string) (string, error) {
	var code *string
	if bankCode != "" {
		normalized := reference.NormalizeCode(bankCode)
		code = &normalized
	}

	var id string
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO accounts (name, bank_code)
		VALUES ($1, $2)
		RETURNING id::text
	`, name, code).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to create account: %w", err)
	}
	return id, nil
}

// CreateCard inserts a credit card under an account.
func (db *DB) CreateCard(ctx context.Context, accountID, name string, cfg billing.CycleConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	var id string
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO cards (account_id, name, close_day, due_day)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text
	`, accountID, name, cfg.CloseDay, cfg.DueDay).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to create card: %w", err)
	}
	return id, nil
}

// FetchCardConfig returns the billing days of a card.
func (db *DB) FetchCardConfig(ctx context.Context, cardID string) (billing.CycleConfig, error) {
	var cfg billing.CycleConfig
	err := db.Pool.QueryRow(ctx, `
		SELECT close_day, due_day FROM cards WHERE id = $1
	`, cardID).Scan(&cfg.CloseDay, &cfg.DueDay)
	if errors.Is(err, pgx.ErrNoRows) {
		return cfg, fmt.Errorf("%w: card %s not found", importer.ErrInvalidTarget, cardID)
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to fetch card: %w", err)
	}
	return cfg, nil
}

// FetchBankByAccount resolves the bank of an account, or of the account a
// card belongs to. It returns nil when no bank is linked.
func (db *DB) FetchBankByAccount(ctx context.Context, ownerID string) (*reference.Bank, error) {
	var code *string
	err := db.Pool.QueryRow(ctx, `
		SELECT a.bank_code FROM accounts a WHERE a.id = $1
		UNION ALL
		SELECT a.bank_code FROM cards c JOIN accounts a ON a.id = c.account_id WHERE c.id = $1
		LIMIT 1
	`, ownerID).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s not found", importer.ErrInvalidTarget, ownerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account bank: %w", err)
	}

	if code == nil || *code == "" {
		return nil, nil
	}
	return &reference.Bank{Code: *code}, nil
}
