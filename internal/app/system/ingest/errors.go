// internal/app/system/ingest/errors.go
package ingest

import (
	"errors"
	"fmt"
)

// ErrDuplicateTitle is wrapped by the ValidationError returned when the
// owner already has a dataset with the requested title.
var ErrDuplicateTitle = errors.New("a file with this title already exists")

// ValidationError reports a request the caller must fix. Nothing is persisted.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error returns the user-facing message.
func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Err }

// ProcessingError reports an unexpected failure after a successful parse.
type ProcessingError struct {
	Stage string // summarize, store_blob, save_record, lookup
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }
