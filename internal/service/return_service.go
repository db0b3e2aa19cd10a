package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"retailpos/internal/model"
	"retailpos/internal/repository"
	"retailpos/pkg/clock"
	"retailpos/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReturnLineRequest asks to return part of one sale line.
type ReturnLineRequest struct {
	SaleItemID string `json:"sale_item_id" binding:"required"`
	Quantity   int    `json:"quantity" binding:"required,gt=0"`
}

// ReverseSaleRequest reverses a sale, fully or partially. An empty Lines slice
// means a full return of every line.
type ReverseSaleRequest struct {
	Lines []ReturnLineRequest `json:"lines" binding:"dive"`
	Note  string              `json:"note"`
}

// ReversalResult summarizes what a reversal restored and refunded.
type ReversalResult struct {
	SaleID       uuid.UUID       `json:"sale_id"`
	SaleNumber   string          `json:"sale_number"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	Restored     []Allocation    `json:"restored"`
}

type ReturnService interface {
	// ReverseSale undoes a sale inside the return window: stock flows back to
	// the exact lots it was drawn from, RETURN ledger entries record the
	// restock, and wallet payments are refunded. A sale can be reversed once.
	ReverseSale(ctx context.Context, actorID *uuid.UUID, saleID uuid.UUID, req ReverseSaleRequest) (*ReversalResult, error)
}

type returnService struct {
	txManager   repository.TransactionManager
	saleRepo    repository.SaleRepository
	batchRepo   repository.BatchRepository
	productRepo repository.ProductRepository
	walletRepo  repository.WalletRepository
	invTxRepo   repository.InventoryTxRepository
	auditRepo   repository.AuditRepository
	reconciler  ReconcileService
	hub         StockEventBroadcaster
	log         *logger.Logger
	clk         clock.Clock
	cfg         Config
}

func NewReturnService(
	txManager repository.TransactionManager,
	saleRepo repository.SaleRepository,
	batchRepo repository.BatchRepository,
	productRepo repository.ProductRepository,
	walletRepo repository.WalletRepository,
	invTxRepo repository.InventoryTxRepository,
	auditRepo repository.AuditRepository,
	reconciler ReconcileService,
	hub StockEventBroadcaster,
	log *logger.Logger,
	clk clock.Clock,
	cfg Config,
) ReturnService {
	return &returnService{
		txManager:   txManager,
		saleRepo:    saleRepo,
		batchRepo:   batchRepo,
		productRepo: productRepo,
		walletRepo:  walletRepo,
		invTxRepo:   invTxRepo,
		auditRepo:   auditRepo,
		reconciler:  reconciler,
		hub:         hub,
		log:         log,
		clk:         clk,
		cfg:         cfg,
	}
}

func (s *returnService) ReverseSale(ctx context.Context, actorID *uuid.UUID, saleID uuid.UUID, req ReverseSaleRequest) (*ReversalResult, error) {
	now := s.clk.Now()
	var result *ReversalResult

	err := s.txManager.RunInLockingTx(ctx, s.cfg.LockTimeoutMS, func(txCtx context.Context) error {
		sale, err := s.saleRepo.FindByIDForUpdate(txCtx, saleID)
		if err != nil {
			return fmt.Errorf("%w: sale not found", ErrValidation)
		}
		if sale.Status == model.SaleStatusReturned {
			return fmt.Errorf("%w: sale %s was already returned", ErrReturnNotEligible, sale.SaleNumber)
		}
		if !withinReturnWindow(sale.CreatedAt, now, s.cfg.ReturnWindowHours) {
			return fmt.Errorf("%w: sale %s is outside the %dh return window", ErrReturnNotEligible, sale.SaleNumber, s.cfg.ReturnWindowHours)
		}

		returnQty, err := resolveReturnQuantities(sale, req.Lines)
		if err != nil {
			return err
		}

		// The per-product check is the authoritative one: a product sold on
		// several lines must not be over-returned in aggregate either.
		soldByProduct := make(map[uuid.UUID]int)
		returnByProduct := make(map[uuid.UUID]int)
		for i := range sale.Items {
			item := &sale.Items[i]
			soldByProduct[item.ProductID] += item.Quantity
			returnByProduct[item.ProductID] += returnQty[item.ID]
		}
		for pid, qty := range returnByProduct {
			if qty > soldByProduct[pid] {
				return fmt.Errorf("%w: product %s", ErrQuantityExceedsSold, pid)
			}
		}

		// Lock order mirrors allocation: products first, then lots.
		productIDs := make([]uuid.UUID, 0, len(returnByProduct))
		for pid, qty := range returnByProduct {
			if qty > 0 {
				productIDs = append(productIDs, pid)
			}
		}
		sort.Slice(productIDs, func(i, j int) bool { return productIDs[i].String() < productIDs[j].String() })

		products := make(map[uuid.UUID]*model.Product, len(productIDs))
		for _, pid := range productIDs {
			product, err := s.productRepo.FindByIDForUpdate(txCtx, pid)
			if err != nil {
				return fmt.Errorf("failed to lock product: %w", err)
			}
			products[pid] = product
		}

		lotIDs := make([]uuid.UUID, 0)
		for i := range sale.Items {
			if returnQty[sale.Items[i].ID] == 0 {
				continue
			}
			for _, binding := range sale.Items[i].Batches {
				lotIDs = append(lotIDs, binding.BatchItemID)
			}
		}
		locked, err := s.batchRepo.FindItemsByIDsForUpdate(txCtx, lotIDs)
		if err != nil {
			return fmt.Errorf("failed to lock batch items: %w", err)
		}
		lots := make(map[uuid.UUID]*model.BatchItem, len(locked))
		for i := range locked {
			lots[locked[i].ID] = &locked[i]
		}

		restored := make([]Allocation, 0)
		refund := decimal.Zero
		for i := range sale.Items {
			item := &sale.Items[i]
			qty := returnQty[item.ID]
			if qty == 0 {
				continue
			}
			product := products[item.ProductID]

			shares := distributeReturn(item.Batches, qty)
			for j, share := range shares {
				if share == 0 {
					continue
				}
				binding := &item.Batches[j]
				lot, ok := lots[binding.BatchItemID]
				if !ok {
					return fmt.Errorf("%w: batch item %s no longer exists", ErrReturnNotEligible, binding.BatchItemID)
				}
				if !s.cfg.AllowRestockExpired {
					if lot.InventoryStatus == model.StatusExpired || lot.InventoryStatus == model.StatusDamaged || lot.IsExpired(now) {
						return fmt.Errorf("%w: lot %s cannot be restocked", ErrReturnNotEligible, lot.ID)
					}
				}

				lot.CurrentQuantity += share
				if _, err := s.reconciler.ApplyItemStatus(txCtx, lot, product.MinStockLevel); err != nil {
					return err
				}
				if err := s.batchRepo.UpdateItem(txCtx, lot); err != nil {
					return fmt.Errorf("failed to restore lot quantity: %w", err)
				}

				restored = append(restored, Allocation{
					BatchItemID: lot.ID,
					BatchID:     lot.BatchID,
					Quantity:    share,
					UnitCost:    binding.UnitCost,
				})
			}

			if err := s.saleRepo.UpdateItemReturnedQuantity(txCtx, item.ID, item.ReturnedQuantity+qty); err != nil {
				return fmt.Errorf("failed to record returned quantity: %w", err)
			}
			if !item.IsFree {
				refund = refund.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(qty))))
			}
		}

		// RETURN ledger entries, stock_after advancing lot by lot per product.
		running := make(map[uuid.UUID]int, len(productIDs))
		for _, pid := range productIDs {
			sum, err := s.batchRepo.SumEligibleQuantity(txCtx, pid, model.DayOf(now))
			if err != nil {
				return fmt.Errorf("failed to read stock aggregate: %w", err)
			}
			// Roll the aggregate back to its pre-restore value; only lots that
			// came back sellable moved it.
			totalBack := 0
			for _, r := range restored {
				lot := lots[r.BatchItemID]
				if lot.ProductID == pid && lot.InventoryStatus.Sellable() {
					totalBack += r.Quantity
				}
			}
			running[pid] = sum - totalBack
		}
		for i := range sale.Items {
			item := &sale.Items[i]
			qty := returnQty[item.ID]
			if qty == 0 {
				continue
			}
			shares := distributeReturn(item.Batches, qty)
			for j, share := range shares {
				if share == 0 {
					continue
				}
				binding := &item.Batches[j]
				lot := lots[binding.BatchItemID]
				if lot.InventoryStatus.Sellable() {
					running[item.ProductID] += share
				}
				batchItemID := binding.BatchItemID
				batchID := lot.BatchID
				entry := model.InventoryTransaction{
					TransactionType: model.TxTypeReturn,
					ProductID:       item.ProductID,
					QuantityChange:  share,
					StockAfter:      running[item.ProductID],
					UnitPrice:       item.UnitPrice,
					TotalValue:      item.UnitPrice.Mul(decimal.NewFromInt(int64(share))),
					BatchItemID:     &batchItemID,
					BatchID:         &batchID,
					SaleID:          &sale.ID,
					ActorID:         actorID,
					Note:            "return of sale " + sale.SaleNumber,
				}
				if err := s.invTxRepo.Create(txCtx, &entry); err != nil {
					return fmt.Errorf("failed to write ledger entry: %w", err)
				}
			}
		}

		for _, pid := range productIDs {
			if _, err := s.reconciler.SyncProductStock(txCtx, products[pid]); err != nil {
				return err
			}
		}

		if sale.PaymentMethod == model.PaymentMethodWallet && sale.CustomerID != nil && refund.IsPositive() {
			wallet, err := s.walletRepo.FindOrCreateForUpdate(txCtx, *sale.CustomerID)
			if err != nil {
				return fmt.Errorf("failed to lock wallet: %w", err)
			}
			balance := wallet.Balance.Add(refund)
			if err := s.walletRepo.UpdateBalance(txCtx, wallet.ID, balance); err != nil {
				return fmt.Errorf("failed to credit wallet: %w", err)
			}
			walletTx := model.WalletTransaction{
				WalletID:     wallet.ID,
				Type:         model.WalletTxCredit,
				Amount:       refund,
				BalanceAfter: balance,
				SaleID:       &sale.ID,
				Note:         "refund for sale " + sale.SaleNumber,
			}
			if err := s.walletRepo.CreateTransaction(txCtx, &walletTx); err != nil {
				return fmt.Errorf("failed to record wallet credit: %w", err)
			}
		}

		// One reversal per sale, partial or not. The status flip is what
		// blocks a second attempt.
		if err := s.saleRepo.MarkReturned(txCtx, sale.ID, now); err != nil {
			return fmt.Errorf("failed to mark sale returned: %w", err)
		}

		details, _ := json.Marshal(map[string]interface{}{
			"sale_number":   sale.SaleNumber,
			"refund_amount": refund,
			"restored_lots": len(restored),
			"note":          req.Note,
		})
		audit := model.AuditLog{
			UserID:     actorID,
			Action:     model.ActionReturnSale,
			EntityID:   sale.ID.String(),
			EntityName: sale.SaleNumber,
			Details:    string(details),
		}
		if err := s.auditRepo.Log(txCtx, &audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}

		result = &ReversalResult{
			SaleID:       sale.ID,
			SaleNumber:   sale.SaleNumber,
			RefundAmount: refund,
			Restored:     restored,
		}
		return nil
	})
	if err != nil {
		return nil, classifyTxError(err)
	}

	s.log.Info().
		Str("sale_number", result.SaleNumber).
		Str("refund", result.RefundAmount.String()).
		Msg("sale reversed")
	if s.hub != nil {
		s.hub.BroadcastEvent("sale_returned", map[string]interface{}{
			"sale_id":     result.SaleID,
			"sale_number": result.SaleNumber,
		})
	}

	return result, nil
}

// withinReturnWindow reports whether a sale created at createdAt may still be
// reversed at now. The boundary is inclusive: a return at exactly the window
// edge goes through.
func withinReturnWindow(createdAt, now time.Time, hours int) bool {
	return now.Sub(createdAt) <= time.Duration(hours)*time.Hour
}

// resolveReturnQuantities maps sale item id to the quantity being returned.
// No lines means everything still unreturned goes back.
func resolveReturnQuantities(sale *model.Sale, lines []ReturnLineRequest) (map[uuid.UUID]int, error) {
	returnQty := make(map[uuid.UUID]int, len(sale.Items))

	if len(lines) == 0 {
		for i := range sale.Items {
			returnQty[sale.Items[i].ID] = sale.Items[i].Quantity - sale.Items[i].ReturnedQuantity
		}
		return returnQty, nil
	}

	byID := make(map[uuid.UUID]*model.SaleItem, len(sale.Items))
	for i := range sale.Items {
		byID[sale.Items[i].ID] = &sale.Items[i]
	}

	for i := range lines {
		itemID, err := uuid.Parse(lines[i].SaleItemID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid sale item id", ErrValidation)
		}
		item, ok := byID[itemID]
		if !ok {
			return nil, fmt.Errorf("%w: sale item %s does not belong to this sale", ErrValidation, itemID)
		}
		returnQty[itemID] += lines[i].Quantity
		if returnQty[itemID] > item.Quantity-item.ReturnedQuantity {
			return nil, fmt.Errorf("%w: sale item %s", ErrQuantityExceedsSold, itemID)
		}
	}
	return returnQty, nil
}
