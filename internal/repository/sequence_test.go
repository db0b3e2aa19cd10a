package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextSequenceNumber(t *testing.T) {
	t.Run("empty day starts at 001", func(t *testing.T) {
		number, err := nextSequenceNumber("REC-20250601-", "")
		require.NoError(t, err)
		assert.Equal(t, "REC-20250601-001", number)
	})

	t.Run("increments the highest existing number", func(t *testing.T) {
		number, err := nextSequenceNumber("REC-20250601-", "REC-20250601-001")
		require.NoError(t, err)
		assert.Equal(t, "REC-20250601-002", number)
	})

	t.Run("next day starts its own sequence", func(t *testing.T) {
		number, err := nextSequenceNumber("REC-20250602-", "")
		require.NoError(t, err)
		assert.Equal(t, "REC-20250602-001", number)
	})

	t.Run("keeps zero padding up to 999", func(t *testing.T) {
		number, err := nextSequenceNumber("SAL-20250601-", "SAL-20250601-098")
		require.NoError(t, err)
		assert.Equal(t, "SAL-20250601-099", number)
	})

	t.Run("counts past the padding", func(t *testing.T) {
		number, err := nextSequenceNumber("SAL-20250601-", "SAL-20250601-999")
		require.NoError(t, err)
		assert.Equal(t, "SAL-20250601-1000", number)

		number, err = nextSequenceNumber("SAL-20250601-", "SAL-20250601-1000")
		require.NoError(t, err)
		assert.Equal(t, "SAL-20250601-1001", number)
	})

	t.Run("rejects a malformed suffix", func(t *testing.T) {
		_, err := nextSequenceNumber("REC-20250601-", "REC-20250601-oops")
		assert.Error(t, err)
	})
}
