package importer

import (
	"errors"
	"fmt"

	"github.com/aqlanhadi/fatura/reference"
)

var (
	// ErrNoBankLinked blocks OFX imports into accounts whose institution is
	// unknown, since the document cannot be verified against it.
	ErrNoBankLinked = errors.New("account has no bank linked")
	// ErrUnknownInstitution is returned when an OFX document carries no
	// recognizable bank identifier.
	ErrUnknownInstitution = errors.New("statement does not identify its institution")
	// ErrAlreadyImported is returned when the same file was already imported
	// for the same account.
	ErrAlreadyImported = errors.New("file was already imported for this account")
	// ErrInvalidTarget is returned for an empty or unknown import target.
	ErrInvalidTarget = errors.New("invalid import target")
)

// InstitutionMismatchError rejects a whole OFX import whose bank differs from
// the bank linked to the target account.
type InstitutionMismatchError struct {
	Document reference.Bank
	Account  reference.Bank
}

func (e *InstitutionMismatchError) Error() string {
	return fmt.Sprintf("statement is from %s but the account belongs to %s", e.Document, e.Account)
}
