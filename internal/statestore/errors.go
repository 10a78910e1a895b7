package statestore

import (
	"errors"
	"fmt"
)

var (
	// ErrStorage classifies engine failures: I/O, corruption, failed commits.
	ErrStorage = errors.New("storage failure")

	// ErrEncoding classifies values that could not be encoded or decoded.
	ErrEncoding = errors.New("encoding failure")

	// ErrClosed is returned by every operation on a closed handle. It is
	// always wrapped as a storage failure.
	ErrClosed = errors.New("store is closed")
)

// Error is the typed failure returned by every store operation. Absence of
// a record is never an Error.
type Error struct {
	// Kind is ErrStorage or ErrEncoding.
	Kind error
	// Op is the store operation that failed, e.g. "save_changes".
	Op string
	// Key is the raw key involved, when there is one.
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("statestore %s: %v at %q: %v", e.Op, e.Kind, e.Key, e.Err)
	}
	return fmt.Sprintf("statestore %s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap lets errors.Is match both the kind and the cause.
func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func storageError(op string, key []byte, err error) error {
	return &Error{Kind: ErrStorage, Op: op, Key: string(key), Err: err}
}

func encodingError(op string, key []byte, err error) error {
	return &Error{Kind: ErrEncoding, Op: op, Key: string(key), Err: err}
}
