package statement_text

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Synthetic statement mimicking the line layout of a card PDF.
func getTestLines() []string {
	return []string{
		"NUBANK - FATURA DE NOVEMBRO",
		"Vencimento: 10/12/2025 R$ 1.523,45",
		"TRANSAÇÕES DE 02/11 A 01/12",
		"03/11 Uber *Trip R$ 23,45",
		"SAO PAULO",
		"05/11 Padaria Pao Quente",
		"R$ 12,90",
		"10/11 Pagamento recebido -R$ 500,00",
		"12/11 AB 9,99",
		"15/11 iFood *Restaurante Sabor 45,00-",
		"20/11",
		"Netflix.com 39,90",
		"25/11 Sem valor aqui",
		"26/11 Mercado Livre 1.234,56",
	}
}

func TestExtract_Candidates(t *testing.T) {
	viper.Reset()
	result := Extract(getTestLines(), "nubank_2025-11.pdf", nil)

	require.Len(t, result.Candidates, 5)

	expected := []struct {
		date        string
		amount      string
		description string
		category    string
		line        int
	}{
		{"2025-11-03", "23.45", "Uber *Trip", "transporte", 4},
		{"2025-11-05", "12.90", "Padaria Pao Quente", "alimentacao", 6},
		{"2025-11-15", "45.00", "iFood *Restaurante Sabor", "alimentacao", 10},
		{"2025-11-20", "39.90", "Netflix.com", "assinaturas", 11},
		{"2025-11-26", "1234.56", "Mercado Livre", "compras", 14},
	}

	for i, want := range expected {
		got := result.Candidates[i]
		assert.Equal(t, want.date, got.Date, "candidate %d", i)
		assert.Equal(t, want.amount, got.Amount.StringFixed(2), "candidate %d", i)
		assert.Equal(t, want.description, got.Description, "candidate %d", i)
		assert.Equal(t, want.category, got.Category, "candidate %d", i)
		assert.Equal(t, want.line, got.Line, "candidate %d", i)
	}
}

func TestExtract_CityFromFollowingLine(t *testing.T) {
	viper.Reset()
	result := Extract(getTestLines(), "nubank_2025-11.pdf", nil)

	require.NotEmpty(t, result.Candidates)
	assert.Equal(t, "PAULO", result.Candidates[0].City)
	assert.Empty(t, result.Candidates[1].City)
}

func TestExtract_WarningsAndRejections(t *testing.T) {
	viper.Reset()
	result := Extract(getTestLines(), "nubank_2025-11.pdf", nil)

	require.Len(t, result.Warnings, 2)
	assert.Equal(t, 3, result.Warnings[0].Line)
	assert.Equal(t, 13, result.Warnings[1].Line)
	assert.Equal(t, 3, result.Rejected)
}

func TestExtract_DenylistedRowsNeverAppearOrMerge(t *testing.T) {
	viper.Reset()
	result := Extract(getTestLines(), "nubank_2025-11.pdf", nil)

	for _, c := range result.Candidates {
		assert.NotContains(t, c.Description, "Pagamento")
		assert.NotContains(t, c.Description, "Vencimento")
		assert.NotEqual(t, "500.00", c.Amount.StringFixed(2))
		assert.NotEqual(t, "1523.45", c.Amount.StringFixed(2))
	}
}

func TestExtract_DetectsBank(t *testing.T) {
	viper.Reset()
	result := Extract(getTestLines(), "fatura.pdf", nil)
	assert.Equal(t, "260", result.Bank.Code)
}

func TestExtract_FullDateIgnoresFilename(t *testing.T) {
	viper.Reset()
	result := Extract([]string{"28/11/2024 Livraria Cultura 89,90"}, "itau102025.pdf", nil)

	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "2024-11-28", result.Candidates[0].Date)
	assert.Equal(t, "Livraria Cultura", result.Candidates[0].Description)
	assert.Equal(t, "341", result.Bank.Code)
}

func TestExtract_DecemberRowInJanuaryStatement(t *testing.T) {
	viper.Reset()
	result := Extract([]string{"28/12 Hotel Fasano 800,00"}, "itau012026.pdf", nil)

	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "2025-12-28", result.Candidates[0].Date)
	assert.Equal(t, "viagem", result.Candidates[0].Category)
}

func TestExtract_DecemberRowInNovemberStatement(t *testing.T) {
	viper.Reset()
	result := Extract([]string{
		"28/11 Padaria Real 8,90",
		"01/12 Livraria Cultura 10,00",
	}, "nubank_2025-11.pdf", nil)

	require.Len(t, result.Candidates, 2)
	assert.Equal(t, "2025-11-28", result.Candidates[0].Date)
	assert.Equal(t, "2025-12-01", result.Candidates[1].Date)
}

func TestExtract_CityStopsAtNextDatedRow(t *testing.T) {
	viper.Reset()
	result := Extract([]string{
		"03/11 IFOOD SABOR 12,50",
		"04/11 NETFLIX COM 39,90",
	}, "itau_2025-11.pdf", nil)

	require.Len(t, result.Candidates, 2)
	assert.Equal(t, "IFOOD SABOR", result.Candidates[0].Description)
	assert.Empty(t, result.Candidates[0].City)
	assert.Empty(t, result.Candidates[1].City)
}

func TestExtract_LookaheadIsConfigurable(t *testing.T) {
	viper.Reset()
	viper.Set("statement_text.lookahead", 0)
	defer viper.Reset()

	result := Extract([]string{"05/11 Padaria Pao Quente", "R$ 12,90"}, "nubank_2025-11.pdf", nil)

	assert.Empty(t, result.Candidates)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, 1, result.Warnings[0].Line)
}

func TestExtract_MinDescriptionLengthIsConfigurable(t *testing.T) {
	viper.Reset()
	viper.Set("statement_text.min_description_length", 2)
	defer viper.Reset()

	result := Extract([]string{"12/11 AB 9,99"}, "nubank_2025-11.pdf", nil)

	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "AB", result.Candidates[0].Description)
}

func TestExtract_Empty(t *testing.T) {
	viper.Reset()
	result := Extract(nil, "", nil)

	assert.NotNil(t, result.Candidates)
	assert.Empty(t, result.Candidates)
	assert.Empty(t, result.Warnings)
	assert.True(t, result.Bank.IsZero())
}
