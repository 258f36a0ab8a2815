package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var statementRows = []string{
	"FATURA NUBANK",
	"03/11 UBER TRIP 23,45",
	"05/11 PADARIA REAL 8,90",
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestExtractRowsFromPDFBytes_Plain(t *testing.T) {
	rows, err := ExtractRowsFromPDFBytes(readFixture(t, "statement.pdf"), "")
	require.NoError(t, err)
	assert.Equal(t, statementRows, rows)
}

func TestExtractRowsFromPDFBytes_PlainIgnoresPassword(t *testing.T) {
	rows, err := ExtractRowsFromPDFBytes(readFixture(t, "statement.pdf"), "12345")
	require.NoError(t, err)
	assert.Equal(t, statementRows, rows)
}

func TestExtractRowsFromPDFBytes_EncryptedWithPassword(t *testing.T) {
	rows, err := ExtractRowsFromPDFBytes(readFixture(t, "statement_encrypted.pdf"), "12345")
	require.NoError(t, err)
	assert.Equal(t, statementRows, rows)
}

func TestExtractRowsFromPDFBytes_EncryptedWithoutPassword(t *testing.T) {
	rows, err := ExtractRowsFromPDFBytes(readFixture(t, "statement_encrypted.pdf"), "")
	assert.ErrorIs(t, err, ErrPDFPasswordRequired)
	assert.Nil(t, rows)
}

func TestExtractRowsFromPDFBytes_EncryptedWrongPassword(t *testing.T) {
	rows, err := ExtractRowsFromPDFBytes(readFixture(t, "statement_encrypted.pdf"), "nope")
	assert.ErrorIs(t, err, ErrPDFWrongPassword)
	assert.Nil(t, rows)
}

func TestExtractRowsFromPDFBytes_Corrupt(t *testing.T) {
	_, err := ExtractRowsFromPDFBytes([]byte("%PDF-1.4\ntruncated"), "")
	assert.Error(t, err)
}

func TestPasswordOnce(t *testing.T) {
	next := passwordOnce("12345")
	assert.Equal(t, "12345", next())
	assert.Equal(t, "", next())
	assert.Equal(t, "", next())
}
