package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/aqlanhadi/fatura/extractor/common"
	"github.com/aqlanhadi/fatura/importer"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// FetchRowsInRange returns the stored transactions of an owner dated within
// [start, end].
func (db *DB) FetchRowsInRange(ctx context.Context, ownerID string, start, end time.Time) ([]common.ExistingRow, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT to_char(date, 'YYYY-MM-DD'), amount::text, description, fitid
		FROM transactions
		WHERE owner_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date, created_at
	`, ownerID, start.Format(time.DateOnly), end.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var existing []common.ExistingRow
	for rows.Next() {
		var (
			row    common.ExistingRow
			amount string
			fitid  *string
		)
		if err := rows.Scan(&row.Date, &amount, &row.Description, &fitid); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		row.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
		}
		if fitid != nil {
			row.FITID = *fitid
		}
		existing = append(existing, row)
	}
	return existing, rows.Err()
}

// InsertTransactions bulk inserts rows in a single database transaction.
func (db *DB) InsertTransactions(ctx context.Context, rows []importer.Row) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, row := range rows {
		var statementID *string
		if row.StatementID != "" {
			statementID = &row.StatementID
		}

		batch.Queue(`
			INSERT INTO transactions (
				id, import_id, owner_id, owner_kind, statement_id, date, amount, description, category, fitid
			) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10)
		`,
			row.ID, row.ImportID, row.Owner.ID, string(row.Owner.Kind), statementID,
			row.Date, row.Amount.StringFixed(2), row.Description, row.Category, row.FITID,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range rows {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	return tx.Commit(ctx)
}
