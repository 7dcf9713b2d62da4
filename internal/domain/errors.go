package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrInsufficientInventory  = errors.New("insufficient inventory")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrAllocationTimeout      = errors.New("allocation timeout")
	// ErrCredentialMismatch never says which half of the credential failed.
	ErrCredentialMismatch = errors.New("no rental matches the tracking credential")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrRateLimited        = errors.New("too many lookups")
)

// InsufficientInventoryError reports the arithmetic behind a refused
// allocation. Available may be negative when a size is overcommitted.
type InsufficientInventoryError struct {
	Size      BoxSize
	Requested int32
	Available int32
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory: %d %s boxes requested, %d available", e.Requested, e.Size, e.Available)
}

func (e *InsufficientInventoryError) Is(target error) bool {
	return target == ErrInsufficientInventory
}

// InvalidTransitionError describes a refused lifecycle move.
type InvalidTransitionError struct {
	From RentalStatus
	To   RentalStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}

func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

type ErrorKind string

const (
	KindInvalidInput           ErrorKind = "invalid_input"
	KindInsufficientInventory  ErrorKind = "insufficient_inventory"
	KindInvalidStateTransition ErrorKind = "invalid_state_transition"
	KindConcurrentModification ErrorKind = "concurrent_modification"
	KindAllocationTimeout      ErrorKind = "allocation_timeout"
	KindCredentialMismatch     ErrorKind = "credential_mismatch"
	KindNotFound               ErrorKind = "not_found"
	KindForbidden              ErrorKind = "forbidden"
	KindRateLimited            ErrorKind = "rate_limited"
	KindInternal               ErrorKind = "internal"
)

// KindOf classifies err for transports.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrInsufficientInventory):
		return KindInsufficientInventory
	case errors.Is(err, ErrInvalidStateTransition):
		return KindInvalidStateTransition
	case errors.Is(err, ErrConcurrentModification):
		return KindConcurrentModification
	case errors.Is(err, ErrAllocationTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindAllocationTimeout
	case errors.Is(err, ErrCredentialMismatch):
		return KindCredentialMismatch
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	}
	return KindInternal
}

// Retriable reports whether the caller may retry the same request unchanged.
func Retriable(err error) bool {
	switch KindOf(err) {
	case KindConcurrentModification, KindAllocationTimeout, KindInsufficientInventory:
		return true
	}
	return false
}
