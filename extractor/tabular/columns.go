package tabular

import (
	"strings"

	"github.com/aqlanhadi/fatura/extractor/common"
	"github.com/schollz/closestmatch"
)

var (
	dateKeys     = []string{"data", "date"}
	amountKeys   = []string{"valor", "amount", "value"}
	categoryKeys = []string{"categoria", "category"}

	// Spellings and common typos of the description header.
	descriptionKeys = []string{
		"descricao", "descrisao", "discricao", "decricao", "lancamento", "historico", "estabelecimento", "description", "memo",
	}
)

// columns holds the resolved column indexes; -1 means absent.
type columns struct {
	Date        int
	Amount      int
	Description int
	Category    int
}

func (c columns) complete() bool {
	return c.Date >= 0 && c.Amount >= 0
}

// resolveColumns maps logical fields to header positions. Each field takes the
// first header containing one of its keys; description falls back to the
// closest spelling when nothing contains a key.
func resolveColumns(header []any) columns {
	names := make([]string, len(header))
	for i, cell := range header {
		names[i] = common.FoldText(cellText(cell))
	}

	cols := columns{
		Date:        firstContaining(names, dateKeys, nil),
		Amount:      -1,
		Description: -1,
		Category:    -1,
	}
	used := map[int]bool{cols.Date: true}

	cols.Amount = firstContaining(names, amountKeys, used)
	used[cols.Amount] = true
	cols.Category = firstContaining(names, categoryKeys, used)
	used[cols.Category] = true
	cols.Description = firstContaining(names, descriptionKeys, used)
	if cols.Description < 0 {
		cols.Description = closestDescription(names, used)
	}
	return cols
}

func firstContaining(names, keys []string, used map[int]bool) int {
	for i, name := range names {
		if name == "" || used[i] {
			continue
		}
		for _, key := range keys {
			if strings.Contains(name, common.FoldText(key)) {
				return i
			}
		}
	}
	return -1
}

// closestDescription accepts a header whose closest known spelling shares its
// first letter, which keeps unrelated headers such as "saldo" out.
func closestDescription(names []string, used map[int]bool) int {
	cm := closestmatch.New(descriptionKeys, []int{2, 3})
	for i, name := range names {
		if used[i] || len([]rune(name)) < 5 {
			continue
		}
		match := cm.Closest(name)
		if match != "" && match[0] == name[0] {
			return i
		}
	}
	return -1
}
