package stamperr

import (
	"errors"
	"fmt"
	"time"
)

// StampError represents a placement or rendering error with context and recovery information
type StampError struct {
	Kind        Kind      `json:"kind"`
	Message     string    `json:"message"`
	Context     string    `json:"context,omitempty"`
	FieldID     string    `json:"field_id,omitempty"`
	FieldType   string    `json:"field_type,omitempty"`
	Recoverable bool      `json:"recoverable"`
	Timestamp   time.Time `json:"timestamp"`
	cause       error
}

// Kind represents the category of a StampError
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation is a malformed field payload or geometry, rejected before mutation.
	KindValidation
	// KindDecode is a bitmap that no supported codec can read.
	KindDecode
	// KindGeometryPrecondition is a zero or negative dimension reaching a pure geometry function.
	KindGeometryPrecondition
	// KindInvalidRequest is a structurally invalid render request.
	KindInvalidRequest
	KindNotFound
	KindInvalidState
	KindOutput
)

// Sentinel values usable with errors.Is to match on kind alone.
var (
	ErrValidation           = &StampError{Kind: KindValidation}
	ErrDecode               = &StampError{Kind: KindDecode}
	ErrGeometryPrecondition = &StampError{Kind: KindGeometryPrecondition}
	ErrInvalidRequest       = &StampError{Kind: KindInvalidRequest}
	ErrNotFound             = &StampError{Kind: KindNotFound}
	ErrInvalidState         = &StampError{Kind: KindInvalidState}
	ErrOutput               = &StampError{Kind: KindOutput}
)

// Error implements the error interface
func (e *StampError) Error() string {
	msg := e.Message
	if e.FieldID != "" {
		msg = fmt.Sprintf("field %s: %s", e.FieldID, msg)
	}
	if e.Context != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind.String(), msg, e.Context)
	}
	return fmt.Sprintf("[%s] %s", e.Kind.String(), msg)
}

// Unwrap returns the underlying cause, if any
func (e *StampError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a StampError of the same kind
func (e *StampError) Is(target error) bool {
	t, ok := target.(*StampError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// String returns a string representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindDecode:
		return "DECODE"
	case KindGeometryPrecondition:
		return "GEOMETRY_PRECONDITION"
	case KindInvalidRequest:
		return "INVALID_REQUEST"
	case KindNotFound:
		return "NOT_FOUND"
	case KindInvalidState:
		return "INVALID_STATE"
	case KindOutput:
		return "OUTPUT"
	default:
		return "UNKNOWN"
	}
}

// IsRecoverable determines if processing can continue past an error of this kind
func (k Kind) IsRecoverable() bool {
	switch k {
	case KindDecode:
		return true // the field is skipped, the document continues
	case KindValidation, KindNotFound, KindInvalidState:
		return true // rejected back to the caller, state untouched
	case KindGeometryPrecondition, KindInvalidRequest, KindOutput:
		return false
	default:
		return false
	}
}

// New creates a new StampError
func New(kind Kind, message string) *StampError {
	return &StampError{
		Kind:        kind,
		Message:     message,
		Recoverable: kind.IsRecoverable(),
		Timestamp:   time.Now(),
	}
}

// Newf creates a new StampError with a formatted message
func Newf(kind Kind, format string, args ...any) *StampError {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap wraps a standard error as a StampError, keeping it as the cause
func Wrap(kind Kind, err error, message string) *StampError {
	e := New(kind, message)
	if err != nil {
		e.Context = err.Error()
		e.cause = err
	}
	return e
}

// Validation is shorthand for a KindValidation error
func Validation(format string, args ...any) *StampError {
	return Newf(KindValidation, format, args...)
}

// WithContext adds context to an existing StampError
func (e *StampError) WithContext(context string) *StampError {
	e.Context = context
	return e
}

// WithField adds field identification to an existing StampError
func (e *StampError) WithField(id, fieldType string) *StampError {
	e.FieldID = id
	e.FieldType = fieldType
	return e
}

// KindOf returns the kind of err if it is (or wraps) a StampError
func KindOf(err error) Kind {
	var se *StampError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// Issue is a non-fatal, per-field problem reported by the renderer
type Issue struct {
	FieldID   string `json:"field_id"`
	FieldType string `json:"field_type"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
}

// Collection manages the per-field errors raised while rendering one document
type Collection struct {
	errs []*StampError
}

// NewCollection creates an empty collection
func NewCollection() *Collection {
	return &Collection{errs: make([]*StampError, 0)}
}

// Add records err, wrapping it if it is not already a StampError
func (c *Collection) Add(err error, fieldID, fieldType string) {
	var se *StampError
	if !errors.As(err, &se) {
		se = Wrap(KindUnknown, err, "render failed")
	}
	if se.FieldID == "" {
		se.FieldID = fieldID
		se.FieldType = fieldType
	}
	c.errs = append(c.errs, se)
}

// Len returns the number of recorded errors
func (c *Collection) Len() int {
	return len(c.errs)
}

// Issues flattens the collection for reporting
func (c *Collection) Issues() []Issue {
	issues := make([]Issue, 0, len(c.errs))
	for _, e := range c.errs {
		msg := e.Message
		if e.Context != "" {
			msg += ": " + e.Context
		}
		issues = append(issues, Issue{
			FieldID:   e.FieldID,
			FieldType: e.FieldType,
			Kind:      e.Kind.String(),
			Message:   msg,
		})
	}
	return issues
}

// Summary returns a text summary of the recorded errors
func (c *Collection) Summary() string {
	if len(c.errs) == 0 {
		return "No field errors"
	}
	return fmt.Sprintf("Skipped %d field(s) with errors", len(c.errs))
}
