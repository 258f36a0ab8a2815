package extractor

import (
	"errors"
	"fmt"
)

// Kind classifies a whole-file failure.
type Kind int

const (
	KindCorrupt Kind = iota + 1
	KindNeedsPassword
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindCorrupt:
		return "corrupt"
	case KindNeedsPassword:
		return "needs_password"
	case KindUnsupported:
		return "unsupported"
	}
	return "unknown"
}

// FormatError means the document could not be opened or decoded at all, so
// no candidates were produced.
type FormatError struct {
	Kind     Kind
	Format   Format
	Filename string
	Err      error
}

func (e *FormatError) Error() string {
	switch e.Kind {
	case KindNeedsPassword:
		return fmt.Sprintf("%s needs a password: %v", e.Filename, e.Err)
	case KindUnsupported:
		return fmt.Sprintf("%s is not a supported statement: %v", e.Filename, e.Err)
	}
	return fmt.Sprintf("could not read %s: %v", e.Filename, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// NeedsPassword reports whether err is a FormatError asking for a password.
func NeedsPassword(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe) && fe.Kind == KindNeedsPassword
}
