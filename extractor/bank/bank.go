// Package bank identifies the financial institution behind a statement.
package bank

import (
	"strings"

	"github.com/aqlanhadi/fatura/extractor/common"
	"github.com/aqlanhadi/fatura/reference"
)

// Detector scans text against the alias list of a reference table.
type Detector struct {
	table *reference.Table
}

// NewDetector returns a detector over table, or over the embedded table when
// table is nil.
func NewDetector(table *reference.Table) *Detector {
	if table == nil {
		table = reference.Default()
	}
	return &Detector{table: table}
}

// Detect uses the embedded reference table.
func Detect(text, filename string) reference.Bank {
	return NewDetector(nil).Detect(text, filename)
}

// Detect returns the first bank whose alias appears in the text or filename.
// The zero Bank means the institution is unknown.
func (d *Detector) Detect(text, filename string) reference.Bank {
	haystack := common.FoldText(text) + "\n" + foldFilename(filename)
	for _, b := range d.table.Banks {
		for _, alias := range b.Aliases {
			if alias != "" && strings.Contains(haystack, alias) {
				return b
			}
		}
	}
	return reference.Bank{}
}

// FromOFX resolves the literal BANKID of an OFX document.
func FromOFX(bankID string) reference.Bank {
	return NewDetector(nil).FromOFX(bankID)
}

// FromOFX resolves a BANKID through the table. Codes missing from the table
// still yield a Bank carrying the normalized code.
func (d *Detector) FromOFX(bankID string) reference.Bank {
	code := reference.NormalizeCode(bankID)
	if code == "" {
		return reference.Bank{}
	}
	if b, ok := d.table.BankByCode(code); ok {
		return b
	}
	return reference.Bank{Code: code}
}

// SameInstitution reports whether a and b carry the same clearing code. An
// unknown bank never matches.
func SameInstitution(a, b reference.Bank) bool {
	ca, cb := reference.NormalizeCode(a.Code), reference.NormalizeCode(b.Code)
	return ca != "" && ca == cb
}

func foldFilename(name string) string {
	if name == "" {
		return ""
	}
	return common.FoldText(strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(name))
}
