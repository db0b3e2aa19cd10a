package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsBusinessError(t *testing.T) {
	t.Run("business sentinels and their wraps qualify", func(t *testing.T) {
		assert.True(t, IsBusinessError(ErrValidation))
		assert.True(t, IsBusinessError(ErrInsufficientStock))
		assert.True(t, IsBusinessError(ErrReturnNotEligible))
		assert.True(t, IsBusinessError(ErrQuantityExceedsSold))
		assert.True(t, IsBusinessError(fmt.Errorf("%w: product SKU-1", ErrInsufficientStock)))
	})

	t.Run("infrastructure errors do not qualify", func(t *testing.T) {
		assert.False(t, IsBusinessError(errors.New("connection reset")))
		assert.False(t, IsBusinessError(ErrConcurrencyConflict))
		assert.False(t, IsBusinessError(nil))
	})
}

func TestClassifyTxError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, classifyTxError(nil))
	})

	t.Run("lock timeout becomes a concurrency conflict", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: pgLockNotAvailable, Message: "canceling statement due to lock timeout"}
		err := classifyTxError(fmt.Errorf("failed to lock product: %w", pgErr))

		assert.ErrorIs(t, err, ErrConcurrencyConflict)
		// The original cause stays reachable for logging
		var got *pgconn.PgError
		assert.True(t, errors.As(err, &got))
	})

	t.Run("serialization failure and deadlock are retryable too", func(t *testing.T) {
		for _, code := range []string{pgSerializationFailure, pgDeadlockDetected} {
			err := classifyTxError(&pgconn.PgError{Code: code})
			assert.ErrorIs(t, err, ErrConcurrencyConflict, code)
		}
	})

	t.Run("other postgres errors pass through unchanged", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: "23505", Message: "duplicate key"}
		err := classifyTxError(pgErr)
		assert.NotErrorIs(t, err, ErrConcurrencyConflict)
		assert.Equal(t, error(pgErr), err)
	})

	t.Run("plain errors pass through unchanged", func(t *testing.T) {
		plain := errors.New("boom")
		assert.Equal(t, plain, classifyTxError(plain))
	})
}
