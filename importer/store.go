package importer

import (
	"context"
	"time"

	"github.com/aqlanhadi/fatura/billing"
	"github.com/aqlanhadi/fatura/extractor/common"
	"github.com/aqlanhadi/fatura/reference"
	"github.com/shopspring/decimal"
)

// Store is the read side the pipeline needs from persistence.
type Store interface {
	// FetchCardConfig returns the close and due days of a card.
	FetchCardConfig(ctx context.Context, cardID string) (billing.CycleConfig, error)
	// FetchRowsInRange returns stored transactions of an account or card whose
	// date falls in [start, end].
	FetchRowsInRange(ctx context.Context, ownerID string, start, end time.Time) ([]common.ExistingRow, error)
	// FetchBankByAccount returns the bank linked to an account (or to the
	// account a card belongs to). A nil bank means none is linked.
	FetchBankByAccount(ctx context.Context, ownerID string) (*reference.Bank, error)
	// ImportChecksumExists reports whether a file with this checksum was
	// already imported for the owner.
	ImportChecksumExists(ctx context.Context, ownerID, checksum string) (bool, error)
}

// Sink is the write side, called only from Commit.
type Sink interface {
	// EnsureStatementExists returns the id of the card statement for cycle,
	// creating it when needed.
	EnsureStatementExists(ctx context.Context, cardID string, cycle billing.Cycle) (string, error)
	InsertTransactions(ctx context.Context, rows []Row) error
	RecordImport(ctx context.Context, ownerID, checksum, filename string) error
}

// Row is a confirmed transaction ready to be persisted.
type Row struct {
	ID          string          `json:"id"`
	ImportID    string          `json:"import_id"`
	Owner       Target          `json:"owner"`
	StatementID string          `json:"statement_id,omitempty"`
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category,omitempty"`
	FITID       string          `json:"fitid,omitempty"`
}
