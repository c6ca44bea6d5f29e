package repositories

import (
	"errors"
	"fmt"
)

// ErrorKind categorises a persistence failure.
type ErrorKind int

const (
	// KindUnknown covers uncategorised failures.
	KindUnknown ErrorKind = iota
	// KindNotFound means the requested row does not exist.
	KindNotFound
	// KindConflict means a uniqueness or concurrency constraint fired.
	KindConflict
	// KindUnavailable means the store could not be reached or timed out.
	KindUnavailable
)

// StoreError is the concrete RepositoryError implementation shared by all
// store backends.
type StoreError struct {
	Store  string
	Entity string
	Kind   ErrorKind
	Err    error
}

// NewStoreError wraps err with store and entity context plus a kind.
func NewStoreError(store, entity string, kind ErrorKind, err error) *StoreError {
	return &StoreError{Store: store, Entity: entity, Kind: kind, Err: err}
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Store, e.Entity, e.Err)
	}
	return fmt.Sprintf("%s %s: storage error", e.Store, e.Entity)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsNotFound implements RepositoryError.
func (e *StoreError) IsNotFound() bool { return e.Kind == KindNotFound }

// IsConflict implements RepositoryError.
func (e *StoreError) IsConflict() bool { return e.Kind == KindConflict }

// IsUnavailable implements RepositoryError.
func (e *StoreError) IsUnavailable() bool { return e.Kind == KindUnavailable }

// IsNotFound reports whether err categorises as a missing row.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}

// IsConflict reports whether err categorises as a constraint conflict.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsConflict()
	}
	return false
}

// IsUnavailable reports whether err categorises as an infrastructure
// failure eligible for fallback or outbox capture.
func IsUnavailable(err error) bool {
	var repoErr RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsUnavailable()
	}
	return false
}
