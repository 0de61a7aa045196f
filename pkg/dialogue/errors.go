package dialogue

import (
	"errors"
	"fmt"
)

// Recoverable failures. Loading and analysis report these and keep going;
// only ErrEmptyCorpus is fatal to a load.
var (
	ErrMalformedRecord          = errors.New("malformed record")
	ErrFieldCoercion            = errors.New("field coercion failure")
	ErrInvalidChoiceSelection   = errors.New("invalid choice selection")
	ErrMissingCollection        = errors.New("collection not found")
	ErrUnsatisfiableRequirement = errors.New("unsatisfiable requirement")
	ErrEmptyCorpus              = errors.New("corpus is empty")
)

// RecordError ties a parse failure to the row it came from.
type RecordError struct {
	Collection string
	Line       int
	Err        error
}

func (e *RecordError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("%s line %d: %v", e.Collection, e.Line, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
