package importer

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aqlanhadi/fatura/billing"
	"github.com/aqlanhadi/fatura/extractor"
	"github.com/aqlanhadi/fatura/extractor/common"
	"github.com/aqlanhadi/fatura/reference"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	cards     map[string]billing.CycleConfig
	banks     map[string]*reference.Bank
	rows      map[string][]common.ExistingRow
	checksums map[string]bool

	rangeCalls int
	lastStart  time.Time
	lastEnd    time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		cards:     map[string]billing.CycleConfig{},
		banks:     map[string]*reference.Bank{},
		rows:      map[string][]common.ExistingRow{},
		checksums: map[string]bool{},
	}
}

func (f *fakeStore) FetchCardConfig(_ context.Context, cardID string) (billing.CycleConfig, error) {
	cfg, ok := f.cards[cardID]
	if !ok {
		return billing.CycleConfig{}, errors.New("card not found")
	}
	return cfg, nil
}

func (f *fakeStore) FetchRowsInRange(_ context.Context, ownerID string, start, end time.Time) ([]common.ExistingRow, error) {
	f.rangeCalls++
	f.lastStart, f.lastEnd = start, end
	return f.rows[ownerID], nil
}

func (f *fakeStore) FetchBankByAccount(_ context.Context, ownerID string) (*reference.Bank, error) {
	return f.banks[ownerID], nil
}

func (f *fakeStore) ImportChecksumExists(_ context.Context, ownerID, checksum string) (bool, error) {
	return f.checksums[ownerID+"|"+checksum], nil
}

type fakeSink struct {
	statements map[string]billing.Cycle
	rows       []Row
	imports    []string
	insertErr  error
}

func newFakeSink() *fakeSink {
	return &fakeSink{statements: map[string]billing.Cycle{}}
}

func (f *fakeSink) EnsureStatementExists(_ context.Context, cardID string, cycle billing.Cycle) (string, error) {
	id := cardID + ":" + cycle.Key()
	f.statements[id] = cycle
	return id, nil
}

func (f *fakeSink) InsertTransactions(_ context.Context, rows []Row) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.rows = append(f.rows, rows...)
	return nil
}

func (f *fakeSink) RecordImport(_ context.Context, ownerID, checksum, filename string) error {
	f.imports = append(f.imports, ownerID+"|"+checksum+"|"+filename)
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

const ofxDoc = `OFXHEADER:100
<OFX>
<BANKACCTFROM>
<BANKID>0260
<ACCTID>123
</BANKACCTFROM>
<STMTTRN>
<DTPOSTED>20251203
<TRNAMT>-123.45
<FITID>f-1
<MEMO>Padaria Central
</STMTTRN>
<STMTTRN>
<DTPOSTED>20251204
<TRNAMT>100.00
<FITID>f-2
<NAME>Transferencia
</STMTTRN>
</OFX>`

func TestPreview_OFXMatchingInstitution(t *testing.T) {
	store := newFakeStore()
	store.banks["acc-1"] = &reference.Bank{Code: "260"}
	store.rows["acc-1"] = []common.ExistingRow{{Date: "2025-12-03", Amount: decimal.RequireFromString("-1"), Description: "x", FITID: "f-1"}}

	svc := New(store, newFakeSink(), WithLogger(quietLogger()))
	preview, err := svc.Preview(context.Background(), Target{Kind: TargetAccount, ID: "acc-1"}, "extrato.ofx", []byte(ofxDoc), "")
	require.NoError(t, err)

	require.Len(t, preview.Items, 2)
	assert.Equal(t, extractor.FormatOFX, preview.Format)
	assert.Equal(t, "260", preview.Bank.Code)

	assert.True(t, preview.Items[0].Duplicate)
	assert.False(t, preview.Items[0].Selected)
	assert.False(t, preview.Items[1].Duplicate)
	assert.True(t, preview.Items[1].Selected)
	assert.Equal(t, 1, preview.Duplicates)

	// account imports keep the sign
	assert.Equal(t, "-123.45", preview.Items[0].Amount.StringFixed(2))
	assert.Nil(t, preview.Items[0].Cycle)

	assert.Equal(t, 1, store.rangeCalls)
	assert.Equal(t, time.Date(2025, time.December, 3, 0, 0, 0, 0, time.UTC), store.lastStart)
	assert.Equal(t, time.Date(2025, time.December, 4, 0, 0, 0, 0, time.UTC), store.lastEnd)
}

func TestPreview_OFXInstitutionMismatch(t *testing.T) {
	store := newFakeStore()
	store.banks["acc-1"] = &reference.Bank{Code: "341"}

	svc := New(store, newFakeSink(), WithLogger(quietLogger()))
	_, err := svc.Preview(context.Background(), Target{Kind: TargetAccount, ID: "acc-1"}, "extrato.ofx", []byte(ofxDoc), "")

	var mismatch *InstitutionMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "260", mismatch.Document.Code)
	assert.Equal(t, "Itaú Unibanco", mismatch.Account.Name)
	assert.Contains(t, err.Error(), "Nubank")
	assert.Contains(t, err.Error(), "Itaú")
	assert.Zero(t, store.rangeCalls)
}

func TestPreview_OFXWithoutLinkedBank(t *testing.T) {
	svc := New(newFakeStore(), newFakeSink(), WithLogger(quietLogger()))
	_, err := svc.Preview(context.Background(), Target{Kind: TargetAccount, ID: "acc-1"}, "extrato.ofx", []byte(ofxDoc), "")

	assert.True(t, errors.Is(err, ErrNoBankLinked))
}

func TestPreview_OFXUnknownInstitution(t *testing.T) {
	store := newFakeStore()
	store.banks["acc-1"] = &reference.Bank{Code: "260"}
	doc := "<OFX>\n<STMTTRN>\n<DTPOSTED>20251203\n<TRNAMT>-1.00\n</STMTTRN>\n</OFX>"

	svc := New(store, newFakeSink(), WithLogger(quietLogger()))
	_, err := svc.Preview(context.Background(), Target{Kind: TargetAccount, ID: "acc-1"}, "extrato.ofx", []byte(doc), "")

	assert.True(t, errors.Is(err, ErrUnknownInstitution))
}

func TestPreview_OFXAlreadyImported(t *testing.T) {
	store := newFakeStore()
	store.banks["acc-1"] = &reference.Bank{Code: "260"}
	store.checksums["acc-1|"+Checksum([]byte(ofxDoc))] = true

	svc := New(store, newFakeSink(), WithLogger(quietLogger()))
	_, err := svc.Preview(context.Background(), Target{Kind: TargetAccount, ID: "acc-1"}, "extrato.ofx", []byte(ofxDoc), "")

	assert.True(t, errors.Is(err, ErrAlreadyImported))
}

const cardStatement = `NUBANK
28/11 Uber *Trip R$ 23,45
02/12 Padaria Pao Quente 12,90
10/12 Pagamento recebido -R$ 500,00
`

func TestPreview_CardAssignsCyclesAndAbsoluteAmounts(t *testing.T) {
	store := newFakeStore()
	store.cards["card-1"] = billing.CycleConfig{CloseDay: 1, DueDay: 5}

	svc := New(store, newFakeSink(), WithLogger(quietLogger()))
	preview, err := svc.Preview(context.Background(), Target{Kind: TargetCard, ID: "card-1"}, "nubank_2025-12.txt", []byte(cardStatement), "")
	require.NoError(t, err)

	require.Len(t, preview.Items, 2)
	require.NotNil(t, preview.Items[0].Cycle)
	assert.Equal(t, "2025-12", preview.Items[0].Cycle.Key())
	assert.Equal(t, "2026-01", preview.Items[1].Cycle.Key())
	for _, item := range preview.Items {
		assert.False(t, item.Amount.IsNegative())
		assert.True(t, item.Selected)
	}
}

func TestPreview_CardWithoutConfig(t *testing.T) {
	svc := New(newFakeStore(), newFakeSink(), WithLogger(quietLogger()))
	_, err := svc.Preview(context.Background(), Target{Kind: TargetCard, ID: "missing"}, "nubank_2025-12.txt", []byte(cardStatement), "")
	assert.Error(t, err)
}

func TestPreview_FormatErrorPropagates(t *testing.T) {
	svc := New(newFakeStore(), newFakeSink(), WithLogger(quietLogger()))
	_, err := svc.Preview(context.Background(), Target{Kind: TargetAccount, ID: "acc-1"}, "conta.csv", []byte("a;b\n1;2\n"), "")

	var fe *extractor.FormatError
	assert.True(t, errors.As(err, &fe))
}

func TestPreview_InvalidTarget(t *testing.T) {
	svc := New(newFakeStore(), newFakeSink(), WithLogger(quietLogger()))

	_, err := svc.Preview(context.Background(), Target{Kind: TargetCard}, "x.txt", nil, "")
	assert.True(t, errors.Is(err, ErrInvalidTarget))

	_, err = svc.Preview(context.Background(), Target{Kind: "wallet", ID: "w"}, "x.txt", nil, "")
	assert.True(t, errors.Is(err, ErrInvalidTarget))
}

func TestCommit_CardGroupsByStatement(t *testing.T) {
	store := newFakeStore()
	store.cards["card-1"] = billing.CycleConfig{CloseDay: 1, DueDay: 5}
	sink := newFakeSink()

	svc := New(store, sink, WithLogger(quietLogger()))
	preview, err := svc.Preview(context.Background(), Target{Kind: TargetCard, ID: "card-1"}, "nubank_2025-12.txt", []byte(cardStatement), "")
	require.NoError(t, err)

	summary, err := svc.Commit(context.Background(), preview)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Inserted)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, []string{"2025-12", "2026-01"}, summary.Statements)
	assert.Len(t, sink.statements, 2)

	require.Len(t, sink.rows, 2)
	assert.Equal(t, "card-1:2025-12", sink.rows[0].StatementID)
	assert.Equal(t, "card-1:2026-01", sink.rows[1].StatementID)
	assert.Equal(t, preview.ID, sink.rows[0].ImportID)
	assert.NotEqual(t, sink.rows[0].ID, sink.rows[1].ID)

	require.Len(t, sink.imports, 1)
	assert.Equal(t, "card-1|"+preview.Checksum+"|nubank_2025-12.txt", sink.imports[0])
}

func TestCommit_HonorsSelection(t *testing.T) {
	store := newFakeStore()
	store.banks["acc-1"] = &reference.Bank{Code: "260"}
	store.rows["acc-1"] = []common.ExistingRow{{FITID: "f-1"}}
	sink := newFakeSink()

	svc := New(store, sink, WithLogger(quietLogger()))
	preview, err := svc.Preview(context.Background(), Target{Kind: TargetAccount, ID: "acc-1"}, "extrato.ofx", []byte(ofxDoc), "")
	require.NoError(t, err)

	summary, err := svc.Commit(context.Background(), preview)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 1, summary.Skipped)
	assert.Empty(t, summary.Statements)

	// the user overrides the duplicate flag
	sink.rows = nil
	require.NoError(t, preview.SetSelected(0, true))
	summary, err = svc.Commit(context.Background(), preview)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Inserted)
	assert.Empty(t, sink.rows[0].StatementID)

	assert.Error(t, preview.SetSelected(5, true))
}

func TestCommit_InsertFailureDoesNotRecordImport(t *testing.T) {
	store := newFakeStore()
	store.cards["card-1"] = billing.CycleConfig{CloseDay: 10, DueDay: 20}
	sink := newFakeSink()
	sink.insertErr = errors.New("db down")

	svc := New(store, sink, WithLogger(quietLogger()))
	preview, err := svc.Preview(context.Background(), Target{Kind: TargetCard, ID: "card-1"}, "nubank_2025-12.txt", []byte(cardStatement), "")
	require.NoError(t, err)

	_, err = svc.Commit(context.Background(), preview)
	require.Error(t, err)
	assert.Empty(t, sink.imports)
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Checksum(nil))
}

func TestCycles(t *testing.T) {
	cfg := billing.CycleConfig{CloseDay: 1, DueDay: 5}
	candidates := []common.Candidate{{Date: "2025-11-30"}, {Date: "2025-12-01"}}

	cycles, err := Cycles(cfg, candidates)
	require.NoError(t, err)
	require.Len(t, cycles, 2)
	assert.Equal(t, "2025-12", cycles[0].Key())
	assert.Equal(t, "2025-12", cycles[1].Key())

	_, err = Cycles(cfg, []common.Candidate{{Date: "30/11/2025"}})
	assert.Error(t, err)
}
