package repository

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestRetryOnDuplicateSucceedsAfterCollisions(t *testing.T) {
	attempts := 0
	regens := 0

	err := retryOnDuplicate(
		func() error {
			attempts++
			if attempts < 3 {
				return fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)
			}
			return nil
		},
		func() { regens++ },
	)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 2, regens)
}

func TestRetryOnDuplicateStopsOnOtherErrors(t *testing.T) {
	attempts := 0
	regens := 0
	dbDown := fmt.Errorf("driver: bad connection")

	err := retryOnDuplicate(
		func() error {
			attempts++
			return dbDown
		},
		func() { regens++ },
	)

	// A non-collision failure must not be retried or masked
	assert.Equal(t, dbDown, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 0, regens)
}

func TestRetryOnDuplicateGivesUpEventually(t *testing.T) {
	attempts := 0

	err := retryOnDuplicate(
		func() error {
			attempts++
			return gorm.ErrDuplicatedKey
		},
		func() {},
	)

	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	assert.Equal(t, 5, attempts)
}
