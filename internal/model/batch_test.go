package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func timePtr(t time.Time) *time.Time {
	return &t
}

var testNow = time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)

func TestInventoryStatus(t *testing.T) {
	t.Run("IsValid returns true for known statuses", func(t *testing.T) {
		for _, s := range []InventoryStatus{StatusActive, StatusLowStock, StatusOutOfStock, StatusExpired, StatusExpiringSoon, StatusDamaged} {
			assert.True(t, s.IsValid(), s.String())
		}
	})

	t.Run("IsValid returns false for unknown status", func(t *testing.T) {
		assert.False(t, InventoryStatus("FROZEN").IsValid())
	})

	t.Run("only active, low stock and expiring soon are sellable", func(t *testing.T) {
		assert.True(t, StatusActive.Sellable())
		assert.True(t, StatusLowStock.Sellable())
		assert.True(t, StatusExpiringSoon.Sellable())
		assert.False(t, StatusOutOfStock.Sellable())
		assert.False(t, StatusExpired.Sellable())
		assert.False(t, StatusDamaged.Sellable())
	})
}

func TestDeriveInventoryStatus(t *testing.T) {
	t.Run("zero quantity is out of stock", func(t *testing.T) {
		item := &BatchItem{CurrentQuantity: 0}
		assert.Equal(t, StatusOutOfStock, DeriveInventoryStatus(item, 5, testNow, 30))
	})

	t.Run("negative quantity is out of stock", func(t *testing.T) {
		item := &BatchItem{CurrentQuantity: -1}
		assert.Equal(t, StatusOutOfStock, DeriveInventoryStatus(item, 5, testNow, 30))
	})

	t.Run("past expiry date is expired", func(t *testing.T) {
		item := &BatchItem{
			CurrentQuantity: 50,
			ExpiryDate:      timePtr(testNow.AddDate(0, 0, -1)),
		}
		assert.Equal(t, StatusExpired, DeriveInventoryStatus(item, 5, testNow, 30))
	})

	t.Run("expiring today is not expired yet", func(t *testing.T) {
		item := &BatchItem{
			CurrentQuantity: 50,
			ExpiryDate:      timePtr(DayOf(testNow)),
		}
		assert.Equal(t, StatusExpiringSoon, DeriveInventoryStatus(item, 5, testNow, 30))
	})

	t.Run("inside warning horizon is expiring soon", func(t *testing.T) {
		item := &BatchItem{
			CurrentQuantity: 50,
			ExpiryDate:      timePtr(testNow.AddDate(0, 0, 10)),
		}
		assert.Equal(t, StatusExpiringSoon, DeriveInventoryStatus(item, 5, testNow, 30))
	})

	t.Run("expiry checks win over low stock", func(t *testing.T) {
		// Quantity below the minimum AND expiring soon: the expiry signal is
		// the one the floor needs to see.
		item := &BatchItem{
			CurrentQuantity: 3,
			ExpiryDate:      timePtr(testNow.AddDate(0, 0, 5)),
		}
		assert.Equal(t, StatusExpiringSoon, DeriveInventoryStatus(item, 5, testNow, 30))
	})

	t.Run("at or below minimum level is low stock", func(t *testing.T) {
		item := &BatchItem{CurrentQuantity: 5}
		assert.Equal(t, StatusLowStock, DeriveInventoryStatus(item, 5, testNow, 30))

		item.CurrentQuantity = 3
		assert.Equal(t, StatusLowStock, DeriveInventoryStatus(item, 5, testNow, 30))
	})

	t.Run("healthy quantity without expiry is active", func(t *testing.T) {
		item := &BatchItem{CurrentQuantity: 100}
		assert.Equal(t, StatusActive, DeriveInventoryStatus(item, 5, testNow, 30))
	})

	t.Run("far future expiry is active", func(t *testing.T) {
		item := &BatchItem{
			CurrentQuantity: 100,
			ExpiryDate:      timePtr(testNow.AddDate(1, 0, 0)),
		}
		assert.Equal(t, StatusActive, DeriveInventoryStatus(item, 5, testNow, 30))
	})

	t.Run("damaged is sticky", func(t *testing.T) {
		item := &BatchItem{
			CurrentQuantity: 100,
			InventoryStatus: StatusDamaged,
		}
		assert.Equal(t, StatusDamaged, DeriveInventoryStatus(item, 5, testNow, 30))

		item.CurrentQuantity = 0
		assert.Equal(t, StatusDamaged, DeriveInventoryStatus(item, 5, testNow, 30))
	})
}

func TestBatchItemExpiry(t *testing.T) {
	t.Run("nil expiry never expires", func(t *testing.T) {
		item := &BatchItem{}
		assert.False(t, item.IsExpired(testNow))
		assert.False(t, item.ExpiresWithin(testNow, 365))
	})

	t.Run("expiry is a calendar day boundary", func(t *testing.T) {
		// Expires today at midnight: still good for the whole day.
		item := &BatchItem{ExpiryDate: timePtr(DayOf(testNow))}
		assert.False(t, item.IsExpired(testNow))

		item.ExpiryDate = timePtr(DayOf(testNow).AddDate(0, 0, -1))
		assert.True(t, item.IsExpired(testNow))
	})

	t.Run("ExpiresWithin includes the horizon boundary", func(t *testing.T) {
		item := &BatchItem{ExpiryDate: timePtr(DayOf(testNow).AddDate(0, 0, 30))}
		assert.True(t, item.ExpiresWithin(testNow, 30))
		assert.False(t, item.ExpiresWithin(testNow, 29))
	})
}

func TestDayOf(t *testing.T) {
	day := DayOf(testNow)
	assert.Equal(t, 2026, day.Year())
	assert.Equal(t, time.March, day.Month())
	assert.Equal(t, 15, day.Day())
	assert.Equal(t, 0, day.Hour())
	assert.Equal(t, 0, day.Minute())
	assert.Equal(t, testNow.Location(), day.Location())
}
