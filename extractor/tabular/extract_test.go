package tabular

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_SerialAndTextDates(t *testing.T) {
	rows := [][]any{
		{"Extrato Conta Corrente"},
		{"Gerado em 05/12/2025"},
		{},
		{"Data", "Descrição", "Valor (R$)"},
		{"45989", "Uber *Trip", "-23.45"},
		{"29/11/2025", "Padaria Pão Quente", "-12,90"},
		{45990.0, "Salário", 5000.0},
		{time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC), "", "-1.234,56"},
	}

	result := Extract(rows, "extrato_2025-11.csv", nil)

	assert.Equal(t, 3, result.HeaderRow)
	require.Len(t, result.Candidates, 4)
	assert.Empty(t, result.Warnings)

	assert.Equal(t, "2025-11-28", result.Candidates[0].Date)
	assert.Equal(t, "-23.45", result.Candidates[0].Amount.StringFixed(2))
	assert.Equal(t, "transporte", result.Candidates[0].Category)
	assert.Equal(t, 5, result.Candidates[0].Line)

	assert.Equal(t, "2025-11-29", result.Candidates[1].Date)
	assert.Equal(t, "-12.90", result.Candidates[1].Amount.StringFixed(2))
	assert.Equal(t, "Padaria Pão Quente", result.Candidates[1].Description)

	assert.Equal(t, "2025-11-29", result.Candidates[2].Date)
	assert.Equal(t, "5000.00", result.Candidates[2].Amount.StringFixed(2))

	assert.Equal(t, "2025-12-01", result.Candidates[3].Date)
	assert.Equal(t, "Sem descrição", result.Candidates[3].Description)
	assert.Equal(t, "-1234.56", result.Candidates[3].Amount.StringFixed(2))
}

func TestExtract_InvalidRowsBecomeWarnings(t *testing.T) {
	rows := [][]any{
		{"data", "historico", "valor"},
		{"31/02/2025", "Data impossível", "10,00"},
		{"01/03/2025", "Sem valor", "abc"},
		{"02/03/2025", "Farmácia", "15,00"},
	}

	result := Extract(rows, "", nil)

	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "Farmácia", result.Candidates[0].Description)
	assert.Equal(t, "saude", result.Candidates[0].Category)

	require.Len(t, result.Warnings, 2)
	assert.Equal(t, 2, result.Warnings[0].Line)
	assert.Contains(t, result.Warnings[0].Message, "invalid date")
	assert.Equal(t, 3, result.Warnings[1].Line)
	assert.Contains(t, result.Warnings[1].Message, "invalid amount")
}

func TestExtract_CategoryColumnWins(t *testing.T) {
	rows := [][]any{
		{"Date", "Description", "Amount", "Categoria"},
		{"2025-01-10", "Uber", "-10.00", "Viagem a trabalho"},
		{"2025-01-11", "Uber", "-11.00", ""},
	}

	result := Extract(rows, "", nil)

	require.Len(t, result.Candidates, 2)
	assert.Equal(t, "Viagem a trabalho", result.Candidates[0].Category)
	assert.Equal(t, "transporte", result.Candidates[1].Category)
}

func TestExtract_NoHeader(t *testing.T) {
	rows := [][]any{
		{"foo", "bar"},
		{"1", "2"},
	}

	result := Extract(rows, "", nil)

	assert.Equal(t, -1, result.HeaderRow)
	assert.Empty(t, result.Candidates)
	require.Len(t, result.Warnings, 1)
}

func TestExtract_HeaderBeyondSearchWindow(t *testing.T) {
	rows := make([][]any, 0, 20)
	for i := 0; i < maxHeaderSearch; i++ {
		rows = append(rows, []any{"preamble"})
	}
	rows = append(rows, []any{"Data", "Valor"}, []any{"01/01/2025", "1,00"})

	result := Extract(rows, "", nil)
	assert.Equal(t, -1, result.HeaderRow)
}

func TestExtract_BlankRowsSkipped(t *testing.T) {
	rows := [][]any{
		{"Data", "Lançamento", "Valor"},
		{"", "", ""},
		{nil, nil},
		{"10/01/2025", "Netflix", "39,90"},
	}

	result := Extract(rows, "", nil)
	require.Len(t, result.Candidates, 1)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, "assinaturas", result.Candidates[0].Category)
}

func TestExtract_ShortDateUsesFilenameYear(t *testing.T) {
	rows := [][]any{
		{"Data", "Descricao", "Valor"},
		{"15/03", "Cinema", "40,00"},
	}

	result := Extract(rows, "fatura_2024_03.xlsx", nil)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "2024-03-15", result.Candidates[0].Date)
}

func TestExtract_ShortDateAcrossYearBoundary(t *testing.T) {
	rows := [][]any{
		{"Data", "Descricao", "Valor"},
		{"01/12", "Livraria Cultura", "10,00"},
	}

	result := Extract(rows, "extrato_2025-11.csv", nil)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "2025-12-01", result.Candidates[0].Date)

	rows[1][0] = "15/12"
	result = Extract(rows, "extrato_2026-01.csv", nil)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "2025-12-15", result.Candidates[0].Date)
}

func TestResolveColumns(t *testing.T) {
	tests := []struct {
		name   string
		header []any
		want   columns
	}{
		{
			"portuguese",
			[]any{"Data", "Descrição", "Valor"},
			columns{Date: 0, Amount: 2, Description: 1, Category: -1},
		},
		{
			"english",
			[]any{"Amount", "Date", "Description", "Category"},
			columns{Date: 1, Amount: 0, Description: 2, Category: 3},
		},
		{
			"establishment",
			[]any{"Data da compra", "Estabelecimento", "Valor em R$"},
			columns{Date: 0, Amount: 2, Description: 1, Category: -1},
		},
		{
			"typo falls back to closest spelling",
			[]any{"Data", "Descriçoa", "Valor"},
			columns{Date: 0, Amount: 2, Description: 1, Category: -1},
		},
		{
			"missing amount",
			[]any{"Data", "Descrição"},
			columns{Date: 0, Amount: -1, Description: 1, Category: -1},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, resolveColumns(tc.header))
		})
	}
}
