package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// ErrPasswordRequired is returned when a workbook is encrypted and the
// password is missing or wrong.
var ErrPasswordRequired = errors.New("workbook is password protected")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadXLSX returns the first sheet of a workbook. Cells keep their raw values,
// so dates arrive as spreadsheet serial numbers.
func ReadXLSX(r io.Reader, password string) ([][]any, error) {
	opts := excelize.Options{}
	if password != "" {
		opts.Password = password
	}

	f, err := excelize.OpenReader(r, opts)
	if err != nil {
		if errors.Is(err, excelize.ErrWorkbookPassword) {
			return nil, fmt.Errorf("%w: %v", ErrPasswordRequired, err)
		}
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheets[0], err)
	}
	return toAny(rows), nil
}

// ReadCSV reads a delimited export. The delimiter (";", "," or tab) is sniffed
// from the first non-empty line, and input that is not valid UTF-8 is decoded
// as ISO-8859-1.
func ReadCSV(r io.Reader) ([][]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		if data, err = charmap.ISO8859_1.NewDecoder().Bytes(data); err != nil {
			return nil, fmt.Errorf("decoding csv: %w", err)
		}
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing csv: %w", err)
	}
	return toAny(records), nil
}

func sniffDelimiter(data []byte) rune {
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		semicolons := strings.Count(line, ";")
		commas := strings.Count(line, ",")
		tabs := strings.Count(line, "\t")
		switch {
		case tabs > semicolons && tabs > commas:
			return '\t'
		case semicolons >= commas && semicolons > 0:
			return ';'
		}
		return ','
	}
	return ','
}

func toAny(records [][]string) [][]any {
	rows := make([][]any, len(records))
	for i, record := range records {
		row := make([]any, len(record))
		for j, v := range record {
			row[j] = v
		}
		rows[i] = row
	}
	return rows
}
