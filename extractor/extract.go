// Package extractor routes an uploaded statement to the parser for its format.
package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aqlanhadi/fatura/extractor/common"
	"github.com/aqlanhadi/fatura/extractor/ofx"
	"github.com/aqlanhadi/fatura/extractor/statement_text"
	"github.com/aqlanhadi/fatura/extractor/tabular"
	"github.com/aqlanhadi/fatura/reference"
	"github.com/sirupsen/logrus"
)

// Format names a supported input format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatText Format = "text"
	FormatOFX  Format = "ofx"
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

var (
	pdfMagic = []byte("%PDF")
	zipMagic = []byte("PK\x03\x04")
	// encrypted OOXML workbooks are wrapped in an OLE compound file
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Options tune a single extraction.
type Options struct {
	Password string
	// Table overrides the embedded reference table.
	Table *reference.Table
}

// Result is the normalized outcome of any parser.
type Result struct {
	Filename string         `json:"filename" yaml:"filename"`
	Format   Format         `json:"format" yaml:"format"`
	Bank     reference.Bank `json:"bank" yaml:"bank"`
	// BankID is the literal institution code of an OFX document.
	BankID     string             `json:"bank_id,omitempty" yaml:"bank_id,omitempty"`
	AccountID  string             `json:"account_id,omitempty" yaml:"account_id,omitempty"`
	Candidates []common.Candidate `json:"candidates" yaml:"candidates"`
	Warnings   []common.Warning   `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// DetectFormat sniffs the content first and falls back to the extension.
func DetectFormat(filename string, data []byte) (Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	upper := strings.ToUpper(string(head))

	switch {
	case bytes.HasPrefix(data, pdfMagic):
		return FormatPDF, nil
	case bytes.HasPrefix(data, zipMagic):
		return FormatXLSX, nil
	case bytes.HasPrefix(data, oleMagic):
		if ext == ".xls" {
			return "", &FormatError{Kind: KindUnsupported, Filename: filename, Err: errors.New("legacy .xls workbooks are not supported, save as .xlsx")}
		}
		return FormatXLSX, nil
	case strings.Contains(upper, "OFXHEADER") || strings.Contains(upper, "<OFX>"):
		return FormatOFX, nil
	}

	switch ext {
	case ".pdf":
		return FormatPDF, nil
	case ".ofx", ".qfx":
		return FormatOFX, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv", ".tsv":
		return FormatCSV, nil
	case ".txt", "":
		return FormatText, nil
	}
	return "", &FormatError{Kind: KindUnsupported, Filename: filename, Err: fmt.Errorf("unknown extension %q", ext)}
}

// ProcessFile reads and extracts the statement at path.
func ProcessFile(path string, opts Options) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	return ProcessBytes(data, filepath.Base(path), opts)
}

// ProcessReader reads r fully and extracts it.
func ProcessReader(r io.Reader, filename string, opts Options) (Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("reading %s: %w", filename, err)
	}
	return ProcessBytes(data, filename, opts)
}

// ProcessBytes extracts candidates from an in-memory document. Whole-file
// failures are returned as *FormatError; per-row problems land in
// Result.Warnings.
func ProcessBytes(data []byte, filename string, opts Options) (Result, error) {
	format, err := DetectFormat(filename, data)
	if err != nil {
		return Result{}, err
	}

	log := logrus.WithFields(logrus.Fields{"file": filename, "format": format})
	log.Debug("extracting")

	result := Result{Filename: filename, Format: format}

	switch format {
	case FormatPDF:
		rows, err := common.ExtractRowsFromPDFBytes(data, opts.Password)
		if err != nil {
			return Result{}, pdfError(filename, err)
		}
		if len(rows) == 0 {
			return Result{}, &FormatError{Kind: KindCorrupt, Format: format, Filename: filename, Err: errors.New("no text found, the PDF may be scanned")}
		}
		result.fromStatementText(statement_text.Extract(rows, filename, opts.Table))

	case FormatText:
		lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
		result.fromStatementText(statement_text.Extract(lines, filename, opts.Table))

	case FormatOFX:
		parsed, err := ofx.NewParser(opts.Table).Extract(data)
		if err != nil {
			return Result{}, &FormatError{Kind: KindCorrupt, Format: format, Filename: filename, Err: err}
		}
		result.Bank = parsed.Bank
		result.BankID = ofx.BankIdentifier(parsed.Header)
		result.AccountID = parsed.Header.AccountID
		result.Candidates = parsed.Candidates

	case FormatXLSX:
		rows, err := tabular.ReadXLSX(bytes.NewReader(data), opts.Password)
		if err != nil {
			kind := KindCorrupt
			if errors.Is(err, tabular.ErrPasswordRequired) {
				kind = KindNeedsPassword
			}
			return Result{}, &FormatError{Kind: kind, Format: format, Filename: filename, Err: err}
		}
		if err := result.fromTabular(tabular.Extract(rows, filename, opts.Table)); err != nil {
			return Result{}, err
		}

	case FormatCSV:
		rows, err := tabular.ReadCSV(bytes.NewReader(data))
		if err != nil {
			return Result{}, &FormatError{Kind: KindCorrupt, Format: format, Filename: filename, Err: err}
		}
		if err := result.fromTabular(tabular.Extract(rows, filename, opts.Table)); err != nil {
			return Result{}, err
		}
	}

	log.WithFields(logrus.Fields{
		"candidates": len(result.Candidates),
		"warnings":   len(result.Warnings),
		"bank":       result.Bank.Code,
	}).Debug("extracted")

	return result, nil
}

func (r *Result) fromStatementText(parsed statement_text.Result) {
	r.Bank = parsed.Bank
	r.Candidates = parsed.Candidates
	r.Warnings = parsed.Warnings
}

func (r *Result) fromTabular(parsed tabular.Result) error {
	if parsed.HeaderRow < 0 {
		return &FormatError{Kind: KindUnsupported, Format: r.Format, Filename: r.Filename, Err: errors.New("no header row with date and amount columns")}
	}
	r.Bank = parsed.Bank
	r.Candidates = parsed.Candidates
	r.Warnings = parsed.Warnings
	return nil
}

func pdfError(filename string, err error) error {
	kind := KindCorrupt
	if errors.Is(err, common.ErrPDFPasswordRequired) || errors.Is(err, common.ErrPDFWrongPassword) {
		kind = KindNeedsPassword
	}
	return &FormatError{Kind: kind, Format: FormatPDF, Filename: filename, Err: err}
}
