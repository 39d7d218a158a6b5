package util

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsStoreConflict(t *testing.T) {
	t.Parallel()

	assert.True(t, IsStoreConflict(errors.New("database is locked")))
	assert.True(t, IsStoreConflict(errors.New("database table is locked")))
	assert.True(t, IsStoreConflict(fmt.Errorf("exec: %w", errors.New("SQLITE_BUSY: busy"))))
	assert.False(t, IsStoreConflict(errors.New("UNIQUE constraint failed")))
	assert.False(t, IsStoreConflict(nil))
}

func TestRetry_ConflictRetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	}, ConflictRetryOptions(context.Background(), 5)...)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_NonConflictFailsImmediately(t *testing.T) {
	t.Parallel()

	calls := 0
	boom := errors.New("constraint violation")
	err := Retry(context.Background(), func() error {
		calls++
		return boom
	}, ConflictRetryOptions(context.Background(), 5)...)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls, "non-conflict errors must not be retried")
}

func TestRetry_ExhaustedReturnsLastError(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		return errors.New("database is locked")
	}, ConflictRetryOptions(context.Background(), 3)...)

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "database is locked")
}

func TestRetryWithResult(t *testing.T) {
	t.Parallel()

	calls := 0
	got, err := RetryWithResult(context.Background(), func() (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("database is locked")
		}
		return 42, nil
	}, ConflictRetryOptions(context.Background(), 3)...)

	require.NoError(t, err)
	assert.Equal(t, 42, got)
}
