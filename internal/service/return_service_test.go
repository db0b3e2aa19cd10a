package service

import (
	"testing"
	"time"

	"retailpos/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saleWithItems(items ...model.SaleItem) *model.Sale {
	return &model.Sale{ID: uuid.New(), Items: items}
}

func saleItem(quantity, returned int) model.SaleItem {
	return model.SaleItem{ID: uuid.New(), ProductID: uuid.New(), Quantity: quantity, ReturnedQuantity: returned}
}

func TestResolveReturnQuantities(t *testing.T) {
	t.Run("no lines means full return of everything unreturned", func(t *testing.T) {
		a := saleItem(3, 0)
		b := saleItem(5, 2)
		sale := saleWithItems(a, b)

		qty, err := resolveReturnQuantities(sale, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, qty[a.ID])
		assert.Equal(t, 3, qty[b.ID])
	})

	t.Run("explicit partial lines", func(t *testing.T) {
		a := saleItem(10, 0)
		sale := saleWithItems(a)

		qty, err := resolveReturnQuantities(sale, []ReturnLineRequest{
			{SaleItemID: a.ID.String(), Quantity: 4},
		})
		require.NoError(t, err)
		assert.Equal(t, 4, qty[a.ID])
	})

	t.Run("duplicate lines for the same item accumulate", func(t *testing.T) {
		a := saleItem(10, 0)
		sale := saleWithItems(a)

		qty, err := resolveReturnQuantities(sale, []ReturnLineRequest{
			{SaleItemID: a.ID.String(), Quantity: 4},
			{SaleItemID: a.ID.String(), Quantity: 3},
		})
		require.NoError(t, err)
		assert.Equal(t, 7, qty[a.ID])
	})

	t.Run("rejects more than was sold", func(t *testing.T) {
		a := saleItem(3, 0)
		sale := saleWithItems(a)

		_, err := resolveReturnQuantities(sale, []ReturnLineRequest{
			{SaleItemID: a.ID.String(), Quantity: 4},
		})
		assert.ErrorIs(t, err, ErrQuantityExceedsSold)
	})

	t.Run("accumulated duplicates over the sold quantity are rejected", func(t *testing.T) {
		a := saleItem(5, 0)
		sale := saleWithItems(a)

		_, err := resolveReturnQuantities(sale, []ReturnLineRequest{
			{SaleItemID: a.ID.String(), Quantity: 3},
			{SaleItemID: a.ID.String(), Quantity: 3},
		})
		assert.ErrorIs(t, err, ErrQuantityExceedsSold)
	})

	t.Run("already returned quantity shrinks what is left", func(t *testing.T) {
		a := saleItem(5, 4)
		sale := saleWithItems(a)

		_, err := resolveReturnQuantities(sale, []ReturnLineRequest{
			{SaleItemID: a.ID.String(), Quantity: 2},
		})
		assert.ErrorIs(t, err, ErrQuantityExceedsSold)
	})

	t.Run("rejects a line for a foreign sale item", func(t *testing.T) {
		sale := saleWithItems(saleItem(5, 0))

		_, err := resolveReturnQuantities(sale, []ReturnLineRequest{
			{SaleItemID: uuid.NewString(), Quantity: 1},
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("rejects malformed sale item id", func(t *testing.T) {
		sale := saleWithItems(saleItem(5, 0))

		_, err := resolveReturnQuantities(sale, []ReturnLineRequest{
			{SaleItemID: "not-a-uuid", Quantity: 1},
		})
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestWithinReturnWindow(t *testing.T) {
	soldAt := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)

	t.Run("one hour before the edge is eligible", func(t *testing.T) {
		assert.True(t, withinReturnWindow(soldAt, soldAt.Add(23*time.Hour), 24))
	})

	t.Run("exactly at the edge is still eligible", func(t *testing.T) {
		assert.True(t, withinReturnWindow(soldAt, soldAt.Add(24*time.Hour), 24))
	})

	t.Run("one second past the edge is not", func(t *testing.T) {
		assert.False(t, withinReturnWindow(soldAt, soldAt.Add(24*time.Hour+time.Second), 24))
	})

	t.Run("one hour past the edge is not", func(t *testing.T) {
		assert.False(t, withinReturnWindow(soldAt, soldAt.Add(25*time.Hour), 24))
	})

	t.Run("window length follows configuration", func(t *testing.T) {
		assert.True(t, withinReturnWindow(soldAt, soldAt.Add(47*time.Hour), 48))
		assert.False(t, withinReturnWindow(soldAt, soldAt.Add(2*time.Hour), 1))
	})
}
