package service

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors callers branch on with errors.Is. The first four are
// expected business outcomes; ErrConcurrencyConflict means the whole
// operation should be retried from scratch.
var (
	ErrValidation          = errors.New("validation failed")
	ErrInsufficientStock   = errors.New("insufficient eligible stock")
	ErrReturnNotEligible   = errors.New("sale is not eligible for return")
	ErrQuantityExceedsSold = errors.New("return quantity exceeds quantity sold")
	ErrConcurrencyConflict = errors.New("concurrent stock operation conflict")
)

// IsBusinessError reports whether err is an expected business outcome rather
// than an infrastructure failure, so handlers can pick the right status code
// and callers know retrying without changing the request is pointless.
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrReturnNotEligible) ||
		errors.Is(err, ErrQuantityExceedsSold)
}

// Postgres error codes that mean "you lost a race, retry the transaction"
const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// classifyTxError maps lock-timeout, serialization, and deadlock failures to
// ErrConcurrencyConflict and passes everything else through unchanged.
func classifyTxError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgSerializationFailure, pgDeadlockDetected:
			return errors.Join(ErrConcurrencyConflict, err)
		}
	}
	return err
}
