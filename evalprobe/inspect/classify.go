package inspect

import (
	"errors"
	"io/fs"

	"github.com/ZanzyTHEbar/evalprobe/evalprobe/chatformat"
	"github.com/ZanzyTHEbar/evalprobe/evalprobe/dataset"
	"github.com/ZanzyTHEbar/evalprobe/evalprobe/loader"
)

// Severity is the tier a run failure is reported under.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityNotFound
	SeverityInvalid
	SeverityUnexpected
)

func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityNotFound:
		return "not_found"
	case SeverityInvalid:
		return "invalid"
	default:
		return "unexpected"
	}
}

// Hint is the console headline for the tier.
func (s Severity) Hint() string {
	switch s {
	case SeverityNotFound:
		return "ERROR: File not found. Did you place alpaca_eval.json correctly?"
	case SeverityInvalid:
		return "ERROR: Problem processing data. Check JSON format, field names, or chat format."
	default:
		return "An unexpected error occurred:"
	}
}

// Classify maps an error to its tier. Missing files win over value errors.
func Classify(err error) Severity {
	switch {
	case err == nil:
		return SeverityNone
	case errors.Is(err, fs.ErrNotExist):
		return SeverityNotFound
	case errors.Is(err, dataset.ErrInvalidData),
		errors.Is(err, chatformat.ErrUnknownFormat),
		errors.Is(err, loader.ErrInvalidBatchSize):
		return SeverityInvalid
	default:
		return SeverityUnexpected
	}
}

// ReportedError is returned in strict mode for a failure already shown to the user.
type ReportedError struct {
	Severity Severity
	Err      error
}

func (e *ReportedError) Error() string { return e.Severity.String() + ": " + e.Err.Error() }

func (e *ReportedError) Unwrap() error { return e.Err }
