package service

import (
	"testing"
	"time"

	"retailpos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lot(quantity int, unitCost float64, age time.Duration) model.BatchItem {
	return model.BatchItem{
		ID:              uuid.New(),
		BatchID:         uuid.New(),
		CurrentQuantity: quantity,
		PurchasePrice:   decimal.NewFromFloat(unitCost),
		CreatedAt:       time.Now().Add(-age),
	}
}

func TestPlanAllocation(t *testing.T) {
	t.Run("rejects non-positive quantity", func(t *testing.T) {
		items := []model.BatchItem{lot(10, 1, time.Hour)}

		_, err := planAllocation(items, 0)
		assert.ErrorIs(t, err, ErrValidation)

		_, err = planAllocation(items, -3)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("fails when the pool cannot cover the request", func(t *testing.T) {
		items := []model.BatchItem{lot(4, 1, 2*time.Hour), lot(5, 1, time.Hour)}

		_, err := planAllocation(items, 10)
		assert.ErrorIs(t, err, ErrInsufficientStock)
	})

	t.Run("fails on empty pool", func(t *testing.T) {
		_, err := planAllocation(nil, 1)
		assert.ErrorIs(t, err, ErrInsufficientStock)
	})

	t.Run("single lot covers the whole request", func(t *testing.T) {
		items := []model.BatchItem{lot(10, 2.5, time.Hour)}

		plan, err := planAllocation(items, 7)
		require.NoError(t, err)
		require.Len(t, plan, 1)
		assert.Equal(t, items[0].ID, plan[0].BatchItemID)
		assert.Equal(t, 7, plan[0].Quantity)
		assert.True(t, plan[0].UnitCost.Equal(decimal.NewFromFloat(2.5)))
	})

	t.Run("spans lots in the order given, oldest first", func(t *testing.T) {
		oldest := lot(3, 1, 72*time.Hour)
		middle := lot(5, 2, 48*time.Hour)
		newest := lot(10, 3, 24*time.Hour)
		items := []model.BatchItem{oldest, middle, newest}

		plan, err := planAllocation(items, 9)
		require.NoError(t, err)
		require.Len(t, plan, 3)

		assert.Equal(t, oldest.ID, plan[0].BatchItemID)
		assert.Equal(t, 3, plan[0].Quantity)
		assert.Equal(t, middle.ID, plan[1].BatchItemID)
		assert.Equal(t, 5, plan[1].Quantity)
		assert.Equal(t, newest.ID, plan[2].BatchItemID)
		assert.Equal(t, 1, plan[2].Quantity)
	})

	t.Run("exact fit drains every lot", func(t *testing.T) {
		items := []model.BatchItem{lot(4, 1, 2*time.Hour), lot(6, 1, time.Hour)}

		plan, err := planAllocation(items, 10)
		require.NoError(t, err)
		require.Len(t, plan, 2)
		assert.Equal(t, 4, plan[0].Quantity)
		assert.Equal(t, 6, plan[1].Quantity)
	})

	t.Run("skips lots with nothing left", func(t *testing.T) {
		empty := lot(0, 1, 72*time.Hour)
		full := lot(10, 1, time.Hour)
		items := []model.BatchItem{empty, full}

		plan, err := planAllocation(items, 5)
		require.NoError(t, err)
		require.Len(t, plan, 1)
		assert.Equal(t, full.ID, plan[0].BatchItemID)
	})

	t.Run("all or nothing, no partial plan on shortfall", func(t *testing.T) {
		items := []model.BatchItem{lot(4, 1, time.Hour)}

		plan, err := planAllocation(items, 5)
		assert.ErrorIs(t, err, ErrInsufficientStock)
		assert.Nil(t, plan)
	})
}

func binding(quantity int) model.SaleItemBatch {
	return model.SaleItemBatch{
		ID:          uuid.New(),
		BatchItemID: uuid.New(),
		Quantity:    quantity,
		UnitCost:    decimal.NewFromInt(1),
	}
}

func TestDistributeReturn(t *testing.T) {
	t.Run("zero or negative quantity distributes nothing", func(t *testing.T) {
		bindings := []model.SaleItemBatch{binding(5), binding(5)}
		assert.Equal(t, []int{0, 0}, distributeReturn(bindings, 0))
		assert.Equal(t, []int{0, 0}, distributeReturn(bindings, -1))
	})

	t.Run("no bindings yields empty shares", func(t *testing.T) {
		assert.Empty(t, distributeReturn(nil, 5))
	})

	t.Run("full return restores every binding completely", func(t *testing.T) {
		bindings := []model.SaleItemBatch{binding(3), binding(7)}
		assert.Equal(t, []int{3, 7}, distributeReturn(bindings, 10))
	})

	t.Run("even split over equal bindings", func(t *testing.T) {
		bindings := []model.SaleItemBatch{binding(5), binding(5)}
		assert.Equal(t, []int{2, 2}, distributeReturn(bindings, 4))
	})

	t.Run("proportional split with remainder to the larger lot", func(t *testing.T) {
		bindings := []model.SaleItemBatch{binding(2), binding(8)}
		// exact shares 1.0 and 4.0 for 5 returned
		assert.Equal(t, []int{1, 4}, distributeReturn(bindings, 5))
		// 3 returned: exact 0.6 and 2.4, leftover unit goes to the larger remainder
		assert.Equal(t, []int{1, 2}, distributeReturn(bindings, 3))
	})

	t.Run("never exceeds a binding's own quantity", func(t *testing.T) {
		bindings := []model.SaleItemBatch{binding(1), binding(9)}
		shares := distributeReturn(bindings, 9)
		assert.LessOrEqual(t, shares[0], 1)
		assert.LessOrEqual(t, shares[1], 9)
		assert.Equal(t, 9, shares[0]+shares[1])
	})

	t.Run("quantity above total is capped", func(t *testing.T) {
		bindings := []model.SaleItemBatch{binding(2), binding(3)}
		assert.Equal(t, []int{2, 3}, distributeReturn(bindings, 100))
	})

	t.Run("shares always sum to the returned quantity", func(t *testing.T) {
		bindings := []model.SaleItemBatch{binding(3), binding(4), binding(5)}
		for qty := 1; qty <= 12; qty++ {
			shares := distributeReturn(bindings, qty)
			sum := 0
			for _, s := range shares {
				sum += s
			}
			assert.Equal(t, qty, sum, "qty=%d", qty)
		}
	})

	t.Run("deterministic for identical input", func(t *testing.T) {
		bindings := []model.SaleItemBatch{binding(3), binding(3), binding(3)}
		first := distributeReturn(bindings, 5)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, distributeReturn(bindings, 5))
		}
	})
}
