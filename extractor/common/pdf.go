package common

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/dslipak/pdf"
	"github.com/sirupsen/logrus"
	"github.com/unidoc/unipdf/v3/model"
)

var (
	// ErrPDFPasswordRequired is returned for encrypted PDFs opened without a
	// password (or with an empty one that does not unlock them).
	ErrPDFPasswordRequired = errors.New("pdf is encrypted and needs a password")
	// ErrPDFWrongPassword is returned when the given password does not unlock the PDF.
	ErrPDFWrongPassword = errors.New("pdf password is incorrect")
)

// ExtractRowsFromPDFBytes reads the whole document and returns one string
// per visual row. Encrypted documents are unlocked with password.
func ExtractRowsFromPDFBytes(data []byte, password string) ([]string, error) {
	if err := checkPassword(data, password); err != nil {
		return nil, err
	}

	r, err := pdf.NewReaderEncrypted(bytes.NewReader(data), int64(len(data)), passwordOnce(password))
	if errors.Is(err, pdf.ErrInvalidPassword) {
		return nil, passwordError(password)
	}
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return readRows(r)
}

// checkPassword tells a missing password from a wrong one before any text is
// read. Documents unipdf cannot parse are left to the row reader.
func checkPassword(data []byte, password string) error {
	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		logrus.WithError(err).Debug("unipdf could not open document, skipping encryption check")
		return nil
	}
	encrypted, err := reader.IsEncrypted()
	if err != nil || !encrypted {
		return nil
	}
	ok, err := reader.Decrypt([]byte(password))
	if err != nil {
		return fmt.Errorf("decrypt pdf: %w", err)
	}
	if !ok {
		return passwordError(password)
	}
	return nil
}

func passwordError(password string) error {
	if password == "" {
		return ErrPDFPasswordRequired
	}
	return ErrPDFWrongPassword
}

// passwordOnce offers password a single time; the reader keeps asking until
// it gets an empty string.
func passwordOnce(password string) func() string {
	offered := false
	return func() string {
		if offered {
			return ""
		}
		offered = true
		return password
	}
}

// readRows joins the text items of every visual row. Pages that fail are
// skipped, but a document with no readable page is an error.
func readRows(r *pdf.Reader) ([]string, error) {
	var (
		rows    []string
		read    int
		lastErr error
	)
	for no := 1; no <= r.NumPage(); no++ {
		pageRows, err := r.Page(no).GetTextByRow()
		if err != nil {
			logrus.WithError(err).WithField("page", no).Warn("could not read pdf page")
			lastErr = err
			continue
		}
		read++
		for _, row := range pageRows {
			words := make([]string, 0, len(row.Content))
			for _, item := range row.Content {
				// Td moves emit empty items
				if item.S != "" {
					words = append(words, item.S)
				}
			}
			if line := strings.Join(words, " "); strings.TrimSpace(line) != "" {
				rows = append(rows, line)
			}
		}
	}
	if read == 0 && lastErr != nil {
		return nil, fmt.Errorf("no readable page: %w", lastErr)
	}
	return rows, nil
}
