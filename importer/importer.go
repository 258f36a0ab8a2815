// Package importer runs a statement import in two steps: Preview parses the
// file and flags duplicates without writing anything, and Commit persists the
// rows the user kept.
package importer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"

	"github.com/aqlanhadi/fatura/billing"
	"github.com/aqlanhadi/fatura/extractor"
	"github.com/aqlanhadi/fatura/extractor/bank"
	"github.com/aqlanhadi/fatura/extractor/common"
	"github.com/aqlanhadi/fatura/reconcile"
	"github.com/aqlanhadi/fatura/reference"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TargetKind says whether rows go to a bank account or a credit card.
type TargetKind string

const (
	TargetAccount TargetKind = "account"
	TargetCard    TargetKind = "card"
)

// Target is the account or card an import writes to.
type Target struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id"`
}

func (t Target) validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidTarget)
	}
	if t.Kind != TargetAccount && t.Kind != TargetCard {
		return fmt.Errorf("%w: kind %q", ErrInvalidTarget, t.Kind)
	}
	return nil
}

// Item is a candidate annotated for review.
type Item struct {
	common.Candidate
	Duplicate bool           `json:"duplicate"`
	Selected  bool           `json:"selected"`
	Cycle     *billing.Cycle `json:"cycle,omitempty"`
}

// Preview is the reviewable result of parsing one file.
type Preview struct {
	ID         string           `json:"id"`
	Target     Target           `json:"target"`
	Filename   string           `json:"filename"`
	Format     extractor.Format `json:"format"`
	Checksum   string           `json:"checksum"`
	Bank       reference.Bank   `json:"bank"`
	Items      []Item           `json:"items"`
	Warnings   []common.Warning `json:"warnings,omitempty"`
	Duplicates int              `json:"duplicates"`
}

// SetSelected overrides the pre-selection of one item.
func (p *Preview) SetSelected(index int, selected bool) error {
	if index < 0 || index >= len(p.Items) {
		return fmt.Errorf("item %d out of range", index)
	}
	p.Items[index].Selected = selected
	return nil
}

// SelectAll selects every item, duplicates included.
func (p *Preview) SelectAll() {
	for i := range p.Items {
		p.Items[i].Selected = true
	}
}

// Summary reports what Commit wrote.
type Summary struct {
	ImportID   string   `json:"import_id"`
	Inserted   int      `json:"inserted"`
	Skipped    int      `json:"skipped"`
	Statements []string `json:"statements,omitempty"`
}

// Service wires the parsers to a Store and a Sink.
type Service struct {
	store Store
	sink  Sink
	table *reference.Table
	log   logrus.FieldLogger
}

// Option configures a Service.
type Option func(*Service)

// WithTable overrides the embedded reference table.
func WithTable(table *reference.Table) Option {
	return func(s *Service) { s.table = table }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Service) { s.log = log }
}

// New returns a Service.
func New(store Store, sink Sink, opts ...Option) *Service {
	s := &Service{
		store: store,
		sink:  sink,
		table: reference.Default(),
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checksum is the hex SHA-256 of a file's bytes.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Preview parses data and prepares it for review. Nothing is written.
//
// OFX files are checked against earlier imports and against the bank linked
// to the target before any row is considered. Card imports store amounts as
// positive magnitudes and assign each row to its statement cycle.
func (s *Service) Preview(ctx context.Context, target Target, filename string, data []byte, password string) (*Preview, error) {
	if err := target.validate(); err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{"file": filename, "target": target.ID, "kind": target.Kind})

	format, err := extractor.DetectFormat(filename, data)
	if err != nil {
		return nil, err
	}

	checksum := Checksum(data)
	if format == extractor.FormatOFX {
		seen, err := s.store.ImportChecksumExists(ctx, target.ID, checksum)
		if err != nil {
			return nil, fmt.Errorf("checking previous imports: %w", err)
		}
		if seen {
			return nil, ErrAlreadyImported
		}
	}

	result, err := extractor.ProcessBytes(data, filename, extractor.Options{Password: password, Table: s.table})
	if err != nil {
		return nil, err
	}

	if format == extractor.FormatOFX {
		if err := s.verifyInstitution(ctx, target, result); err != nil {
			return nil, err
		}
	} else if !result.Bank.IsZero() {
		log.WithField("bank", result.Bank.String()).Info("detected institution")
	}

	preview := &Preview{
		ID:       uuid.NewString(),
		Target:   target,
		Filename: filename,
		Format:   result.Format,
		Checksum: checksum,
		Bank:     result.Bank,
		Items:    make([]Item, len(result.Candidates)),
		Warnings: result.Warnings,
	}
	for i, c := range result.Candidates {
		if target.Kind == TargetCard {
			c.Amount = common.RoundAmount(c.Amount.Abs())
		}
		preview.Items[i] = Item{Candidate: c}
	}

	if target.Kind == TargetCard {
		if err := s.assignCycles(ctx, target.ID, preview.Items); err != nil {
			return nil, err
		}
	}

	if err := s.flagDuplicates(ctx, target.ID, preview); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"candidates": len(preview.Items),
		"duplicates": preview.Duplicates,
		"warnings":   len(preview.Warnings),
	}).Info("import preview ready")

	return preview, nil
}

func (s *Service) verifyInstitution(ctx context.Context, target Target, result extractor.Result) error {
	if result.Bank.IsZero() {
		return ErrUnknownInstitution
	}

	linked, err := s.store.FetchBankByAccount(ctx, target.ID)
	if err != nil {
		return fmt.Errorf("fetching linked bank: %w", err)
	}
	if linked == nil || linked.Code == "" {
		return ErrNoBankLinked
	}

	if !bank.SameInstitution(result.Bank, *linked) {
		account := *linked
		if known, ok := s.table.BankByCode(account.Code); ok && account.Name == "" {
			account = known
		}
		return &InstitutionMismatchError{Document: result.Bank, Account: account}
	}
	return nil
}

func (s *Service) assignCycles(ctx context.Context, cardID string, items []Item) error {
	cfg, err := s.store.FetchCardConfig(ctx, cardID)
	if err != nil {
		return fmt.Errorf("fetching card configuration: %w", err)
	}

	candidates := make([]common.Candidate, len(items))
	for i, item := range items {
		candidates[i] = item.Candidate
	}
	cycles, err := Cycles(cfg, candidates)
	if err != nil {
		return fmt.Errorf("card %s: %w", cardID, err)
	}
	for i := range items {
		items[i].Cycle = &cycles[i]
	}
	return nil
}

// Cycles returns the statement cycle of each candidate under cfg, aligned
// with candidates.
func Cycles(cfg billing.CycleConfig, candidates []common.Candidate) ([]billing.Cycle, error) {
	cycles := make([]billing.Cycle, len(candidates))
	for i, c := range candidates {
		date, err := common.ParseISODate(c.Date)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		cycles[i], err = billing.Compute(cfg, date)
		if err != nil {
			return nil, err
		}
	}
	return cycles, nil
}

func (s *Service) flagDuplicates(ctx context.Context, ownerID string, p *Preview) error {
	candidates := make([]common.Candidate, len(p.Items))
	for i, item := range p.Items {
		candidates[i] = item.Candidate
	}

	var existing []common.ExistingRow
	if start, end, ok := reconcile.Span(candidates); ok {
		rows, err := s.store.FetchRowsInRange(ctx, ownerID, start, end)
		if err != nil {
			return fmt.Errorf("fetching existing rows: %w", err)
		}
		existing = rows
	}

	flags := reconcile.MarkDuplicates(candidates, existing)
	for i := range p.Items {
		p.Items[i].Duplicate = flags[i]
		p.Items[i].Selected = !flags[i]
	}
	p.Duplicates = reconcile.Count(flags)
	return nil
}

// Commit persists the selected items of a preview and records the import.
func (s *Service) Commit(ctx context.Context, p *Preview) (Summary, error) {
	if p == nil {
		return Summary{}, errors.New("nil preview")
	}
	if err := p.Target.validate(); err != nil {
		return Summary{}, err
	}

	summary := Summary{ImportID: p.ID}
	statements := make(map[string]string)
	rows := make([]Row, 0, len(p.Items))

	for _, item := range p.Items {
		if !item.Selected {
			summary.Skipped++
			continue
		}

		row := Row{
			ID:          uuid.NewString(),
			ImportID:    p.ID,
			Owner:       p.Target,
			Date:        item.Date,
			Amount:      item.Amount,
			Description: item.Description,
			Category:    item.Category,
			FITID:       item.FITID,
		}

		if p.Target.Kind == TargetCard {
			if item.Cycle == nil {
				return Summary{}, fmt.Errorf("item dated %s has no statement cycle", item.Date)
			}
			key := item.Cycle.Key()
			id, ok := statements[key]
			if !ok {
				var err error
				id, err = s.sink.EnsureStatementExists(ctx, p.Target.ID, *item.Cycle)
				if err != nil {
					return Summary{}, fmt.Errorf("ensuring statement %s: %w", key, err)
				}
				statements[key] = id
			}
			row.StatementID = id
		}

		rows = append(rows, row)
	}

	if len(rows) > 0 {
		if err := s.sink.InsertTransactions(ctx, rows); err != nil {
			return Summary{}, fmt.Errorf("inserting transactions: %w", err)
		}
	}
	if err := s.sink.RecordImport(ctx, p.Target.ID, p.Checksum, p.Filename); err != nil {
		return Summary{}, fmt.Errorf("recording import: %w", err)
	}

	summary.Inserted = len(rows)
	for key := range statements {
		summary.Statements = append(summary.Statements, key)
	}
	sort.Strings(summary.Statements)

	s.log.WithFields(logrus.Fields{
		"import_id":  p.ID,
		"target":     p.Target.ID,
		"inserted":   summary.Inserted,
		"skipped":    summary.Skipped,
		"statements": len(summary.Statements),
	}).Info("import committed")

	return summary, nil
}
