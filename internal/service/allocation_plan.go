package service

import (
	"retailpos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Allocation records how much of a deduction came from which lot. The caller
// holds on to these: they are the input for a compensating reversal if a
// downstream step fails after the allocation committed.
type Allocation struct {
	BatchItemID uuid.UUID       `json:"batch_item_id"`
	BatchID     uuid.UUID       `json:"batch_id"`
	Quantity    int             `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
}

// planAllocation walks eligible batch items (already ordered oldest first)
// and plans deductions: take min(still needed, item quantity) from each until
// the request is covered. All-or-nothing: if the pool cannot cover the
// request, no plan is produced.
func planAllocation(items []model.BatchItem, quantity int) ([]Allocation, error) {
	if quantity <= 0 {
		return nil, ErrValidation
	}

	available := 0
	for i := range items {
		available += items[i].CurrentQuantity
	}
	if available < quantity {
		return nil, ErrInsufficientStock
	}

	plan := make([]Allocation, 0, 2)
	remaining := quantity
	for i := range items {
		if remaining == 0 {
			break
		}
		take := items[i].CurrentQuantity
		if take > remaining {
			take = remaining
		}
		if take == 0 {
			continue
		}
		plan = append(plan, Allocation{
			BatchItemID: items[i].ID,
			BatchID:     items[i].BatchID,
			Quantity:    take,
			UnitCost:    items[i].PurchasePrice,
		})
		remaining -= take
	}

	return plan, nil
}

// distributeReturn splits a returned quantity over the batch bindings of the
// original sale line, proportionally to how much each lot contributed.
// Largest-remainder rounding, ties broken by binding order, so the split is
// deterministic and always sums to quantity.
func distributeReturn(bindings []model.SaleItemBatch, quantity int) []int {
	shares := make([]int, len(bindings))
	if quantity <= 0 || len(bindings) == 0 {
		return shares
	}

	total := 0
	for i := range bindings {
		total += bindings[i].Quantity
	}
	if total == 0 {
		return shares
	}
	if quantity > total {
		quantity = total
	}

	assigned := 0
	remainders := make([]int, len(bindings)) // scaled by total to stay in integers
	for i := range bindings {
		exact := quantity * bindings[i].Quantity
		shares[i] = exact / total
		remainders[i] = exact % total
		assigned += shares[i]
	}

	for leftover := quantity - assigned; leftover > 0; leftover-- {
		best := -1
		for i := range bindings {
			if shares[i] >= bindings[i].Quantity {
				continue
			}
			if best == -1 || remainders[i] > remainders[best] {
				best = i
			}
		}
		if best == -1 {
			break
		}
		shares[best]++
		remainders[best] = -1 // each binding takes at most one leftover unit
	}

	return shares
}
