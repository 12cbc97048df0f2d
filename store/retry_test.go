package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelfeed/apperr"
)

func TestWithRetryRecoversFromTransientFailures(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return apperr.Transient("write", errors.New("connection reset"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryGivesUpAfterAttempts(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func(context.Context) error {
		attempts++
		return apperr.Transient("write", errors.New("still down"))
	})
	require.Error(t, err)
	assert.True(t, apperr.IsTransient(err))
	assert.Equal(t, retryAttempts, attempts)
}

func TestWithRetryDoesNotRetryPermanentErrors(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func(context.Context) error {
		attempts++
		return apperr.ErrForbidden
	})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.Equal(t, 1, attempts)

	attempts = 0
	err = WithRetry(context.Background(), func(context.Context) error {
		attempts++
		return apperr.Validation("bad input")
	})
	assert.True(t, apperr.IsValidation(err))
	assert.Equal(t, 1, attempts)
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := WithRetry(ctx, func(context.Context) error {
		attempts++
		cancel()
		return apperr.Transient("write", errors.New("down"))
	})
	require.Error(t, err)
	assert.True(t, apperr.IsTransient(err))
	assert.Equal(t, 1, attempts)
}
