package services

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a service either wraps one of these or
// is an internal storage failure.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidArgument = errors.New("invalid argument")
)

var (
	ErrUserNotFound        = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrBookNotFound        = fmt.Errorf("%w: book not found", ErrNotFound)
	ErrBookCopyNotFound    = fmt.Errorf("%w: book copy not found", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("%w: transaction not found", ErrNotFound)

	ErrCopyNotAvailable    = fmt.Errorf("%w: book copy is not available", ErrConflict)
	ErrAlreadyReturned     = fmt.Errorf("%w: book already returned", ErrConflict)
	ErrNotRenewable        = fmt.Errorf("%w: only issued books can be renewed", ErrConflict)
	ErrRenewalLimitReached = fmt.Errorf("%w: maximum renewal limit reached", ErrConflict)
	ErrCopyIssued          = fmt.Errorf("%w: book copy is currently issued", ErrConflict)
	ErrCopyHasHistory      = fmt.Errorf("%w: book copy has lending history", ErrConflict)

	ErrInvalidCopyCount  = fmt.Errorf("%w: count must be between %d and %d", ErrInvalidArgument, MinBulkCopies, MaxBulkCopies)
	ErrInvalidCopyStatus = fmt.Errorf("%w: invalid book copy status", ErrInvalidArgument)
	ErrStatusReserved    = fmt.Errorf("%w: status ISSUED is set by circulation only", ErrInvalidArgument)
)

// Kind returns the name of the error kind err belongs to, or "internal".
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	default:
		return "internal"
	}
}
