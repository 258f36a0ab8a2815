package postgres

import (
	"context"
	"fmt"

	"github.com/aqlanhadi/fatura/billing"
)

// EnsureStatementExists returns the statement of a card for cycle, creating
// it on first use. The (card, year, month) key makes it idempotent.
func (db *DB) EnsureStatementExists(ctx context.Context, cardID string, cycle billing.Cycle) (string, error) {
	var id string
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO statements (
			card_id, statement_year, statement_month, cycle_start, cycle_end, due_date
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (card_id, statement_year, statement_month)
		DO UPDATE SET card_id = EXCLUDED.card_id
		RETURNING id::text
	`,
		cardID, cycle.StatementYear, int(cycle.StatementMonth),
		cycle.Start, cycle.End, cycle.Due,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to ensure statement %s: %w", cycle.Key(), err)
	}
	return id, nil
}
