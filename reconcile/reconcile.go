// Package reconcile flags parsed candidates that already exist in storage.
//
// Flags are advisory: callers pre-deselect flagged rows but may import them
// anyway.
package reconcile

import (
	"time"

	"github.com/aqlanhadi/fatura/extractor/common"
	"github.com/shopspring/decimal"
)

// NaturalKey identifies a transaction by date, amount to the cent and
// normalized description.
func NaturalKey(date string, amount decimal.Decimal, description string) string {
	return date + "|" + amount.StringFixed(2) + "|" + common.NormalizeDescription(description)
}

// MarkDuplicates returns one flag per candidate. A candidate is a duplicate
// when its natural key matches an existing row, or when it carries a FITID
// that an existing row also carries.
func MarkDuplicates(candidates []common.Candidate, existing []common.ExistingRow) []bool {
	keys := make(map[string]struct{}, len(existing))
	fitids := make(map[string]struct{})
	for _, row := range existing {
		keys[NaturalKey(row.Date, row.Amount, row.Description)] = struct{}{}
		if row.FITID != "" {
			fitids[row.FITID] = struct{}{}
		}
	}

	flags := make([]bool, len(candidates))
	for i, c := range candidates {
		if c.FITID != "" {
			if _, ok := fitids[c.FITID]; ok {
				flags[i] = true
				continue
			}
		}
		_, flags[i] = keys[NaturalKey(c.Date, c.Amount, c.Description)]
	}
	return flags
}

// Count returns how many flags are set.
func Count(flags []bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

// Span returns the first and last candidate dates, which bound the stored
// rows worth fetching. ok is false when no candidate has a valid date.
func Span(candidates []common.Candidate) (start, end time.Time, ok bool) {
	for _, c := range candidates {
		d, err := common.ParseISODate(c.Date)
		if err != nil {
			continue
		}
		if !ok || d.Before(start) {
			start = d
		}
		if !ok || d.After(end) {
			end = d
		}
		ok = true
	}
	return start, end, ok
}
