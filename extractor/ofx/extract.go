// Package ofx parses OFX 1.x (SGML) and 2.x (XML) bank and card statements.
//
// Transactions are read with a lenient tag lookup because many Brazilian banks
// emit SGML that strict parsers reject. Account metadata is read with ofxgo
// when the document is well formed.
package ofx

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/aclindsa/ofxgo"
	"github.com/aqlanhadi/fatura/extractor/bank"
	"github.com/aqlanhadi/fatura/extractor/common"
	"github.com/aqlanhadi/fatura/reference"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/charmap"
)

// ErrNotOFX is returned when the document has no <OFX> element at all.
var ErrNotOFX = errors.New("document has no <OFX> element")

var (
	blockSplitRegex = regexp.MustCompile(`(?i)<STMTTRN>`)
	charsetRegex    = regexp.MustCompile(`(?i)CHARSET:\s*(1252|WINDOWS-1252|ISO-8859-1)`)
	postedRegex     = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})`)

	tagMu    sync.Mutex
	tagCache = map[string]*regexp.Regexp{}
)

// Header is the account metadata of a statement.
type Header struct {
	Org         string `json:"org,omitempty"`
	FID         string `json:"fid,omitempty"`
	BankID      string `json:"bank_id,omitempty"`
	AccountID   string `json:"account_id,omitempty"`
	AccountType string `json:"account_type,omitempty"`
	// Strict is set when ofxgo accepted the document.
	Strict bool `json:"strict"`
}

// Result is the outcome of parsing one OFX document.
type Result struct {
	Header     Header             `json:"header"`
	Bank       reference.Bank     `json:"bank"`
	Candidates []common.Candidate `json:"candidates"`
	// Dropped counts transaction blocks without a usable date or amount.
	Dropped int `json:"dropped"`
}

// Parser holds the reference table used for bank and category lookups.
type Parser struct {
	table    *reference.Table
	detector *bank.Detector
}

// NewParser returns a parser over table, or over the embedded table when nil.
func NewParser(table *reference.Table) *Parser {
	if table == nil {
		table = reference.Default()
	}
	return &Parser{table: table, detector: bank.NewDetector(table)}
}

// Extract parses raw with the embedded reference table.
func Extract(raw []byte) (Result, error) {
	return NewParser(nil).Extract(raw)
}

// Extract returns every transaction block that has both a posted date and an
// amount. Amounts keep their sign.
func (p *Parser) Extract(raw []byte) (Result, error) {
	text := normalizeNewlines(Decode(raw))
	if !strings.Contains(strings.ToUpper(text), "<OFX>") {
		return Result{}, ErrNotOFX
	}

	parts := blockSplitRegex.Split(text, -1)
	header := ReadHeader(raw, parts[0])

	result := Result{
		Header:     header,
		Bank:       p.resolveBank(header),
		Candidates: []common.Candidate{},
	}

	for _, block := range parts[1:] {
		candidate, ok := p.parseBlock(block)
		if !ok {
			result.Dropped++
			continue
		}
		result.Candidates = append(result.Candidates, candidate)
	}

	logrus.WithFields(logrus.Fields{
		"bank_id":    header.BankID,
		"strict":     header.Strict,
		"candidates": len(result.Candidates),
		"dropped":    result.Dropped,
	}).Debug("parsed ofx")

	return result, nil
}

func (p *Parser) parseBlock(block string) (common.Candidate, bool) {
	date, ok := postedDate(tag(block, "DTPOSTED"))
	if !ok {
		return common.Candidate{}, false
	}
	amount, ok := common.ParseMoney(tag(block, "TRNAMT"))
	if !ok {
		return common.Candidate{}, false
	}

	description := joinDescription(tag(block, "NAME"), tag(block, "MEMO"))
	return common.Candidate{
		Date:        date,
		Amount:      common.RoundAmount(amount),
		Description: description,
		Category:    p.table.Categorize(description),
		FITID:       tag(block, "FITID"),
	}, true
}

// resolveBank maps BANKID to a known bank, falling back to a numeric FID and
// then to the ORG name.
func (p *Parser) resolveBank(h Header) reference.Bank {
	if b := p.detector.FromOFX(BankIdentifier(h)); !b.IsZero() {
		return b
	}
	if h.Org != "" {
		return p.detector.Detect(h.Org, "")
	}
	return reference.Bank{}
}

// BankIdentifier is the institution code a header carries: BANKID, or FID when
// it is numeric (card statements have no BANKACCTFROM).
func BankIdentifier(h Header) string {
	if h.BankID != "" {
		return h.BankID
	}
	if h.FID != "" && strings.Trim(h.FID, "0123456789") == "" {
		return h.FID
	}
	return ""
}

// ReadHeader extracts account metadata. ofxgo is tried first; the tag lookup
// over headerRegion covers documents it rejects.
func ReadHeader(raw []byte, headerRegion string) Header {
	h, err := strictHeader(raw)
	if err == nil {
		return h
	}
	logrus.WithError(err).Debug("ofxgo rejected document, using tag lookup")

	return Header{
		Org:         tag(headerRegion, "ORG"),
		FID:         tag(headerRegion, "FID"),
		BankID:      tag(headerRegion, "BANKID"),
		AccountID:   tag(headerRegion, "ACCTID"),
		AccountType: tag(headerRegion, "ACCTTYPE"),
	}
}

func strictHeader(raw []byte) (Header, error) {
	resp, err := ofxgo.ParseResponse(bytes.NewReader(raw))
	if err != nil {
		return Header{}, err
	}

	h := Header{
		Org:    resp.Signon.Org.String(),
		FID:    resp.Signon.Fid.String(),
		Strict: true,
	}

	switch {
	case len(resp.Bank) > 0:
		stmt, ok := resp.Bank[0].(*ofxgo.StatementResponse)
		if !ok {
			return Header{}, fmt.Errorf("unexpected bank message %T", resp.Bank[0])
		}
		h.BankID = stmt.BankAcctFrom.BankID.String()
		h.AccountID = stmt.BankAcctFrom.AcctID.String()
		h.AccountType = stmt.BankAcctFrom.AcctType.String()
	case len(resp.CreditCard) > 0:
		stmt, ok := resp.CreditCard[0].(*ofxgo.CCStatementResponse)
		if !ok {
			return Header{}, fmt.Errorf("unexpected credit card message %T", resp.CreditCard[0])
		}
		h.AccountID = stmt.CCAcctFrom.AcctID.String()
		h.AccountType = "CREDITCARD"
	default:
		return Header{}, errors.New("no bank or credit card statement")
	}
	return h, nil
}

// Decode returns the document as UTF-8. Windows-1252 is assumed when the
// header declares it or the bytes are not valid UTF-8.
func Decode(raw []byte) string {
	head := raw
	if len(head) > 512 {
		head = head[:512]
	}
	if charsetRegex.Match(head) || !utf8.Valid(raw) {
		if decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw); err == nil {
			return string(decoded)
		}
	}
	return string(raw)
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// tag returns the first value of <name> in s, up to the line end or the next tag.
func tag(s, name string) string {
	tagMu.Lock()
	re, ok := tagCache[name]
	if !ok {
		re = regexp.MustCompile(`(?i)<` + regexp.QuoteMeta(name) + `>([^<\n]*)`)
		tagCache[name] = re
	}
	tagMu.Unlock()

	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func postedDate(value string) (string, bool) {
	m := postedRegex.FindStringSubmatch(value)
	if m == nil {
		return "", false
	}
	return common.ToISODate(m[1]+"-"+m[2]+"-"+m[3], 0)
}

func joinDescription(name, memo string) string {
	switch {
	case name != "" && memo != "":
		return name + " - " + memo
	case name != "":
		return name
	case memo != "":
		return memo
	}
	return common.DefaultDescription
}
