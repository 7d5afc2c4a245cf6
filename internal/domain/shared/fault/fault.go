package fault

import "errors"

// Kind sentinels. Domain errors wrap exactly one of them so transports can map
// failures with errors.Is without knowing every domain package.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrTransient    = errors.New("transient failure")
)

var kinds = []error{ErrNotFound, ErrForbidden, ErrInvalidState, ErrConflict, ErrValidation, ErrTransient}

var names = map[error]string{
	ErrNotFound:     "not_found",
	ErrForbidden:    "forbidden",
	ErrInvalidState: "invalid_state",
	ErrConflict:     "conflict",
	ErrValidation:   "validation",
	ErrTransient:    "transient",
}

type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// New returns a sentinel-style error carrying msg that matches kind under errors.Is.
func New(kind error, msg string) error {
	return &kindError{msg: msg, kind: kind}
}

type wrapped struct {
	kind  error
	cause error
}

func (e *wrapped) Error() string   { return e.cause.Error() }
func (e *wrapped) Unwrap() []error { return []error{e.kind, e.cause} }

// Wrap tags cause with kind while keeping cause reachable for errors.Is/As.
func Wrap(kind, cause error) error {
	if cause == nil {
		return nil
	}
	if errors.Is(cause, kind) {
		return cause
	}
	return &wrapped{kind: kind, cause: cause}
}

// Transient marks a storage failure that is safe to retry as a whole transaction.
func Transient(cause error) error {
	return Wrap(ErrTransient, cause)
}

// KindOf returns the kind sentinel err wraps, or nil for unclassified errors.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Name returns the stable code of err's kind, or "" when unclassified.
func Name(err error) string {
	return names[KindOf(err)]
}

// Restore rebuilds an error of the named kind, used when replaying stored failures.
func Restore(name, msg string) error {
	for kind, n := range names {
		if n == name {
			return New(kind, msg)
		}
	}
	return errors.New(msg)
}
