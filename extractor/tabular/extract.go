// Package tabular parses spreadsheet and CSV exports that carry a header row.
package tabular

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aqlanhadi/fatura/extractor/bank"
	"github.com/aqlanhadi/fatura/extractor/common"
	"github.com/aqlanhadi/fatura/reference"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// maxHeaderSearch is how many leading rows may precede the header.
const maxHeaderSearch = 15

// Result is the outcome of parsing one sheet.
type Result struct {
	Bank       reference.Bank     `json:"bank"`
	Candidates []common.Candidate `json:"candidates"`
	Warnings   []common.Warning   `json:"warnings,omitempty"`
	// HeaderRow is the zero-based index of the header, or -1 when no row
	// resolved both a date and an amount column.
	HeaderRow int `json:"header_row"`
}

// Extract parses rows whose header sits within the first rows of the sheet.
// Rows with an unusable date or amount are skipped with a warning. A nil
// table means the embedded reference table.
func Extract(rows [][]any, filename string, table *reference.Table) Result {
	if table == nil {
		table = reference.Default()
	}

	result := Result{
		Bank:       bank.NewDetector(table).Detect("", filename),
		Candidates: []common.Candidate{},
		HeaderRow:  -1,
	}

	var cols columns
	for i := 0; i < len(rows) && i < maxHeaderSearch; i++ {
		if c := resolveColumns(rows[i]); c.complete() {
			cols, result.HeaderRow = c, i
			break
		}
	}
	if result.HeaderRow < 0 {
		result.Warnings = append(result.Warnings, common.Warning{
			Message: "no header row with date and amount columns",
		})
		return result
	}

	yearHint, monthHint, _ := common.FilenameHint(filename)

	for i := result.HeaderRow + 1; i < len(rows); i++ {
		row := rows[i]
		if blank(row) {
			continue
		}
		line := i + 1

		date, ok := common.ToISODateHinted(cell(row, cols.Date), yearHint, monthHint)
		if !ok {
			result.Warnings = append(result.Warnings, common.Warning{
				Line:    line,
				Message: fmt.Sprintf("invalid date %q", cellText(cell(row, cols.Date))),
			})
			continue
		}

		amount, ok := cellAmount(cell(row, cols.Amount))
		if !ok {
			result.Warnings = append(result.Warnings, common.Warning{
				Line:    line,
				Message: fmt.Sprintf("invalid amount %q", cellText(cell(row, cols.Amount))),
			})
			continue
		}

		description := common.CollapseSpaces(cellText(cell(row, cols.Description)))
		if description == "" {
			description = common.DefaultDescription
		}

		category := strings.TrimSpace(cellText(cell(row, cols.Category)))
		if category == "" {
			category = table.Categorize(description)
		}

		result.Candidates = append(result.Candidates, common.Candidate{
			Date:        date,
			Amount:      common.RoundAmount(amount),
			Description: description,
			Category:    category,
			Line:        line,
		})
	}

	logrus.WithFields(logrus.Fields{
		"file":       filename,
		"header_row": result.HeaderRow,
		"candidates": len(result.Candidates),
		"warnings":   len(result.Warnings),
	}).Debug("parsed tabular rows")

	return result
}

func cell(row []any, idx int) any {
	if idx < 0 || idx >= len(row) {
		return nil
	}
	return row[idx]
}

func blank(row []any) bool {
	for _, v := range row {
		if strings.TrimSpace(cellText(v)) != "" {
			return false
		}
	}
	return true
}

func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.Format(time.DateOnly)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func cellAmount(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, false
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(x), true
	case float32:
		return decimal.NewFromFloat32(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case decimal.Decimal:
		return x, true
	case string:
		return common.ParseMoney(x)
	}
	return decimal.Zero, false
}
