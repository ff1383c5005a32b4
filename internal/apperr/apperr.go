// Package apperr holds the error taxonomy shared by the order, inventory,
// reconcile and fulfillment modules.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyShipped = errors.New("already shipped")
	ErrStockExhausted = errors.New("card stock exhausted")
	ErrNoMatch        = errors.New("no matching card")
	ErrIneligible     = errors.New("order no longer eligible")
	ErrAccountOff     = errors.New("account disabled")
)

// ValidationError rejects a whole request before any per-item work starts.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func Validation(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// NotFoundError names the missing entity. It matches ErrNotFound.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// AdapterKind classifies marketplace failures. All kinds are retryable by a
// later reconcile or dispatch call.
type AdapterKind string

const (
	AdapterTimeout     AdapterKind = "timeout"
	AdapterRateLimited AdapterKind = "rate_limited"
	AdapterAuthExpired AdapterKind = "auth_expired"
	AdapterTransient   AdapterKind = "transient"
	AdapterRejected    AdapterKind = "rejected"
)

type AdapterError struct {
	Kind AdapterKind
	Op   string
	Err  error
}

func (e *AdapterError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("marketplace %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("marketplace %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// StorageError wraps a driver failure. It is never defaulted away.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsAdapter(err error) bool {
	var a *AdapterError
	return errors.As(err, &a)
}

func IsStorage(err error) bool {
	var s *StorageError
	return errors.As(err, &s)
}
