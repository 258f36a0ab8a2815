package common

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// DefaultDescription is used when a source row carries no usable description.
const DefaultDescription = "Sem descrição"

// Candidate is a parsed transaction that has not been persisted yet.
type Candidate struct {
	Date        string          `json:"date" yaml:"date"`
	Amount      decimal.Decimal `json:"amount" yaml:"amount"`
	Description string          `json:"description" yaml:"description"`
	Category    string          `json:"category,omitempty" yaml:"category,omitempty"`
	FITID       string          `json:"fitid,omitempty" yaml:"fitid,omitempty"`
	City        string          `json:"city,omitempty" yaml:"city,omitempty"`
	Line        int             `json:"line,omitempty" yaml:"line,omitempty"`
}

// Warning describes a source row that was skipped.
type Warning struct {
	Line    int    `json:"line" yaml:"line"`
	Message string `json:"message" yaml:"message"`
}

func (w Warning) String() string {
	if w.Line <= 0 {
		return w.Message
	}
	return "line " + strconv.Itoa(w.Line) + ": " + w.Message
}

// ExistingRow is a transaction already stored for an account or card.
type ExistingRow struct {
	Date        string
	Amount      decimal.Decimal
	Description string
	FITID       string
}
