package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"retailpos/internal/model"
	"retailpos/internal/repository"
	"retailpos/pkg/clock"
	"retailpos/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockEventBroadcaster pushes stock change events to connected POS terminals.
type StockEventBroadcaster interface {
	BroadcastEvent(event string, payload interface{})
}

// ReceiveBatchItemRequest is one product lot in an incoming shipment.
// RejectedQuantity may be omitted; it then defaults to the shortfall between
// ordered and received.
type ReceiveBatchItemRequest struct {
	ProductID           string     `json:"product_id" binding:"required"`
	PurchaseOrderItemID string     `json:"purchase_order_item_id"`
	OrderedQuantity     int        `json:"ordered_quantity" binding:"gte=0"`
	ReceivedQuantity    int        `json:"received_quantity" binding:"gte=0"`
	RejectedQuantity    *int       `json:"rejected_quantity"`
	PurchasePrice       float64    `json:"purchase_price" binding:"gte=0"`
	ManufacturingDate   *time.Time `json:"manufacturing_date"`
	ExpiryDate          *time.Time `json:"expiry_date"`
}

// ReceiveBatchRequest registers a supplier shipment as a new batch.
type ReceiveBatchRequest struct {
	SupplierID      string                    `json:"supplier_id" binding:"required"`
	PurchaseOrderID string                    `json:"purchase_order_id"`
	PaidAmount      float64                   `json:"paid_amount" binding:"gte=0"`
	Note            string                    `json:"note"`
	Items           []ReceiveBatchItemRequest `json:"items" binding:"required,min=1,dive"`
}

// AdjustLotStatusRequest manually overrides one lot's inventory status.
type AdjustLotStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

type BatchService interface {
	// ReceiveBatch records an incoming shipment: assigns the batch number,
	// creates the lots, writes one IMPORT ledger entry per lot, and brings the
	// product aggregates up to date. Single transaction.
	ReceiveBatch(ctx context.Context, actorID *uuid.UUID, req ReceiveBatchRequest) (*model.Batch, error)
	GetBatch(ctx context.Context, id uuid.UUID) (*model.Batch, error)
	ListBatches(ctx context.Context, page, limit int) ([]model.Batch, int64, error)
	// EligibleBatchItems returns the lots the allocator would draw from for a
	// product, in consumption order.
	EligibleBatchItems(ctx context.Context, productID uuid.UUID) ([]model.BatchItem, error)
	// AdjustLotStatus flags a lot DAMAGED or clears the flag. DAMAGED removes
	// the lot from sellable stock; clearing re-derives the status. The ledger
	// gets an ADJUST entry whenever the product aggregate moves.
	AdjustLotStatus(ctx context.Context, actorID *uuid.UUID, batchItemID uuid.UUID, req AdjustLotStatusRequest) (*model.BatchItem, error)
}

type batchService struct {
	txManager    repository.TransactionManager
	batchRepo    repository.BatchRepository
	productRepo  repository.ProductRepository
	supplierRepo repository.SupplierRepository
	poRepo       repository.PurchaseOrderRepository
	invTxRepo    repository.InventoryTxRepository
	auditRepo    repository.AuditRepository
	reconciler   ReconcileService
	hub          StockEventBroadcaster
	log          *logger.Logger
	clk          clock.Clock
	cfg          Config
}

func NewBatchService(
	txManager repository.TransactionManager,
	batchRepo repository.BatchRepository,
	productRepo repository.ProductRepository,
	supplierRepo repository.SupplierRepository,
	poRepo repository.PurchaseOrderRepository,
	invTxRepo repository.InventoryTxRepository,
	auditRepo repository.AuditRepository,
	reconciler ReconcileService,
	hub StockEventBroadcaster,
	log *logger.Logger,
	clk clock.Clock,
	cfg Config,
) BatchService {
	return &batchService{
		txManager:    txManager,
		batchRepo:    batchRepo,
		productRepo:  productRepo,
		supplierRepo: supplierRepo,
		poRepo:       poRepo,
		invTxRepo:    invTxRepo,
		auditRepo:    auditRepo,
		reconciler:   reconciler,
		hub:          hub,
		log:          log,
		clk:          clk,
		cfg:          cfg,
	}
}

func (s *batchService) ReceiveBatch(ctx context.Context, actorID *uuid.UUID, req ReceiveBatchRequest) (*model.Batch, error) {
	supplierID, err := uuid.Parse(req.SupplierID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid supplier id", ErrValidation)
	}

	var poID *uuid.UUID
	if req.PurchaseOrderID != "" {
		parsed, err := uuid.Parse(req.PurchaseOrderID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid purchase order id", ErrValidation)
		}
		poID = &parsed
	}

	for i := range req.Items {
		if req.Items[i].ReceivedQuantity <= 0 && req.Items[i].OrderedQuantity <= 0 {
			return nil, fmt.Errorf("%w: item %d has no quantity", ErrValidation, i)
		}
		if req.Items[i].RejectedQuantity != nil && *req.Items[i].RejectedQuantity < 0 {
			return nil, fmt.Errorf("%w: item %d rejected quantity is negative", ErrValidation, i)
		}
	}

	now := s.clk.Now()
	var batch *model.Batch

	err = s.txManager.RunInLockingTx(ctx, s.cfg.LockTimeoutMS, func(txCtx context.Context) error {
		supplier, err := s.supplierRepo.FindByID(txCtx, supplierID)
		if err != nil {
			return fmt.Errorf("%w: supplier not found", ErrValidation)
		}
		if poID != nil {
			if _, err := s.poRepo.FindByIDWithItems(txCtx, *poID); err != nil {
				return fmt.Errorf("%w: purchase order not found", ErrValidation)
			}
		}

		// Lock every involved product up front, in request order, before any
		// write. The ledger needs stock_after per lot, so we track a running
		// aggregate per product starting from the pre-receipt value.
		products := make(map[uuid.UUID]*model.Product)
		running := make(map[uuid.UUID]int)
		order := make([]uuid.UUID, 0, len(req.Items))
		for i := range req.Items {
			pid, err := uuid.Parse(req.Items[i].ProductID)
			if err != nil {
				return fmt.Errorf("%w: item %d has invalid product id", ErrValidation, i)
			}
			if _, seen := products[pid]; seen {
				continue
			}
			product, err := s.productRepo.FindByIDForUpdate(txCtx, pid)
			if err != nil {
				return fmt.Errorf("%w: product %s not found", ErrValidation, pid)
			}
			if !product.IsActive {
				return fmt.Errorf("%w: product %s is inactive", ErrValidation, product.SKU)
			}
			sum, err := s.batchRepo.SumEligibleQuantity(txCtx, pid, model.DayOf(now))
			if err != nil {
				return fmt.Errorf("failed to read stock aggregate: %w", err)
			}
			products[pid] = product
			running[pid] = sum
			order = append(order, pid)
		}

		items := make([]model.BatchItem, 0, len(req.Items))
		totalAmount := decimal.Zero
		totalOrdered, totalReceived, totalRejected := 0, 0, 0
		for i := range req.Items {
			line := &req.Items[i]
			pid, _ := uuid.Parse(line.ProductID)
			product := products[pid]

			var poItemID *uuid.UUID
			if line.PurchaseOrderItemID != "" {
				parsed, err := uuid.Parse(line.PurchaseOrderItemID)
				if err != nil {
					return fmt.Errorf("%w: item %d has invalid purchase order item id", ErrValidation, i)
				}
				poItem, err := s.poRepo.FindItemByID(txCtx, parsed)
				if err != nil {
					return fmt.Errorf("%w: purchase order item not found", ErrValidation)
				}
				if poID == nil || poItem.PurchaseOrderID != *poID {
					return fmt.Errorf("%w: purchase order item does not belong to the given order", ErrValidation)
				}
				if poItem.ProductID != pid {
					return fmt.Errorf("%w: purchase order item is for a different product", ErrValidation)
				}
				poItemID = &parsed
			}

			shortfall := line.OrderedQuantity - line.ReceivedQuantity
			if shortfall < 0 {
				shortfall = 0
			}
			rejected := shortfall
			if line.RejectedQuantity != nil {
				rejected = *line.RejectedQuantity
			}

			price := decimal.NewFromFloat(line.PurchasePrice)
			item := model.BatchItem{
				ProductID:           pid,
				PurchaseOrderItemID: poItemID,
				OrderedQuantity:     line.OrderedQuantity,
				ReceivedQuantity:    line.ReceivedQuantity,
				RejectedQuantity:    rejected,
				RemainingQuantity:   shortfall,
				CurrentQuantity:     line.ReceivedQuantity,
				PurchasePrice:       price,
				ManufacturingDate:   line.ManufacturingDate,
				ExpiryDate:          line.ExpiryDate,
			}
			item.InventoryStatus = model.DeriveInventoryStatus(&item, product.MinStockLevel, now, s.cfg.ExpiryWarningDays)
			items = append(items, item)

			totalAmount = totalAmount.Add(price.Mul(decimal.NewFromInt(int64(line.ReceivedQuantity))))
			totalOrdered += line.OrderedQuantity
			totalReceived += line.ReceivedQuantity
			totalRejected += rejected
		}

		receiptStatus := model.ReceiptStatusCompleted
		if totalRejected > 0 || totalReceived < totalOrdered {
			receiptStatus = model.ReceiptStatusPartiallyReceived
		}

		paid := decimal.NewFromFloat(req.PaidAmount)
		remaining := totalAmount.Sub(paid)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		paymentStatus := model.PaymentStatusUnpaid
		switch {
		case paid.GreaterThanOrEqual(totalAmount) && totalAmount.IsPositive():
			paymentStatus = model.PaymentStatusPaid
		case paid.IsPositive():
			paymentStatus = model.PaymentStatusPartiallyPaid
		}

		number, err := s.batchRepo.NextBatchNumber(txCtx, model.DayOf(now))
		if err != nil {
			return fmt.Errorf("failed to generate batch number: %w", err)
		}

		batch = &model.Batch{
			BatchNumber:     number,
			SupplierID:      supplierID,
			PurchaseOrderID: poID,
			ReceivedDate:    now,
			PaidAmount:      paid,
			TotalAmount:     totalAmount,
			RemainingAmount: remaining,
			PaymentStatus:   paymentStatus,
			ReceiptStatus:   receiptStatus,
			Note:            req.Note,
			Items:           items,
		}
		if err := s.batchRepo.Create(txCtx, batch); err != nil {
			return fmt.Errorf("failed to create batch: %w", err)
		}

		// One IMPORT entry per lot, stock_after advancing with each. Lots that
		// arrive unsellable (expired on the dock) do not move the aggregate.
		for i := range batch.Items {
			item := &batch.Items[i]
			if item.ReceivedQuantity == 0 {
				continue // fully back-ordered line, nothing entered stock
			}
			if item.InventoryStatus.Sellable() && item.CurrentQuantity > 0 {
				running[item.ProductID] += item.CurrentQuantity
			}
			entry := model.InventoryTransaction{
				TransactionType: model.TxTypeImport,
				ProductID:       item.ProductID,
				QuantityChange:  item.ReceivedQuantity,
				StockAfter:      running[item.ProductID],
				UnitPrice:       item.PurchasePrice,
				TotalValue:      item.PurchasePrice.Mul(decimal.NewFromInt(int64(item.ReceivedQuantity))),
				BatchItemID:     &item.ID,
				BatchID:         &batch.ID,
				ActorID:         actorID,
				Note:            "batch " + batch.BatchNumber,
			}
			if err := s.invTxRepo.Create(txCtx, &entry); err != nil {
				return fmt.Errorf("failed to write ledger entry: %w", err)
			}
		}

		for _, pid := range order {
			if _, err := s.reconciler.SyncProductStock(txCtx, products[pid]); err != nil {
				return err
			}
		}

		details, _ := json.Marshal(map[string]interface{}{
			"batch_number": batch.BatchNumber,
			"supplier":     supplier.Name,
			"items":        len(batch.Items),
			"total_amount": totalAmount,
		})
		audit := model.AuditLog{
			UserID:     actorID,
			Action:     model.ActionReceiveBatch,
			EntityID:   batch.ID.String(),
			EntityName: batch.BatchNumber,
			Details:    string(details),
		}
		if err := s.auditRepo.Log(txCtx, &audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, classifyTxError(err)
	}

	s.log.Info().
		Str("batch_number", batch.BatchNumber).
		Int("items", len(batch.Items)).
		Msg("batch received")
	if s.hub != nil {
		s.hub.BroadcastEvent("batch_received", map[string]interface{}{
			"batch_id":     batch.ID,
			"batch_number": batch.BatchNumber,
		})
	}

	return batch, nil
}

func (s *batchService) GetBatch(ctx context.Context, id uuid.UUID) (*model.Batch, error) {
	return s.batchRepo.FindByIDWithItems(ctx, id)
}

func (s *batchService) ListBatches(ctx context.Context, page, limit int) ([]model.Batch, int64, error) {
	return s.batchRepo.List(ctx, page, limit)
}

func (s *batchService) EligibleBatchItems(ctx context.Context, productID uuid.UUID) ([]model.BatchItem, error) {
	return s.batchRepo.EligibleItems(ctx, productID, model.DayOf(s.clk.Now()))
}

func (s *batchService) AdjustLotStatus(ctx context.Context, actorID *uuid.UUID, batchItemID uuid.UUID, req AdjustLotStatusRequest) (*model.BatchItem, error) {
	target := model.InventoryStatus(strings.ToUpper(req.Status))
	if target != model.StatusDamaged && target != model.StatusActive {
		return nil, fmt.Errorf("%w: status must be DAMAGED or ACTIVE", ErrValidation)
	}

	now := s.clk.Now()
	var item *model.BatchItem
	var product *model.Product

	err := s.txManager.RunInLockingTx(ctx, s.cfg.LockTimeoutMS, func(txCtx context.Context) error {
		probe, err := s.batchRepo.FindItemByID(txCtx, batchItemID)
		if err != nil {
			return err
		}

		// Product row first, then the lot, the same order allocation locks in.
		product, err = s.productRepo.FindByIDForUpdate(txCtx, probe.ProductID)
		if err != nil {
			return fmt.Errorf("product not found: %w", err)
		}

		locked, err := s.batchRepo.FindItemsByIDsForUpdate(txCtx, []uuid.UUID{batchItemID})
		if err != nil {
			return fmt.Errorf("failed to lock batch item: %w", err)
		}
		if len(locked) == 0 {
			return fmt.Errorf("%w: batch item not found", ErrValidation)
		}
		item = &locked[0]

		before, err := s.batchRepo.SumEligibleQuantity(txCtx, product.ID, model.DayOf(now))
		if err != nil {
			return fmt.Errorf("failed to read stock aggregate: %w", err)
		}

		previous := item.InventoryStatus
		if target == model.StatusDamaged {
			item.InventoryStatus = model.StatusDamaged
		} else {
			// Clear the sticky flag before deriving so derivation sees through it.
			item.InventoryStatus = model.StatusActive
			item.InventoryStatus = model.DeriveInventoryStatus(item, product.MinStockLevel, now, s.cfg.ExpiryWarningDays)
		}
		if err := s.batchRepo.UpdateItem(txCtx, item); err != nil {
			return fmt.Errorf("failed to update batch item: %w", err)
		}

		after, err := s.reconciler.SyncProductStock(txCtx, product)
		if err != nil {
			return err
		}

		if after != before {
			batchID := item.BatchID
			entry := model.InventoryTransaction{
				TransactionType: model.TxTypeAdjust,
				ProductID:       product.ID,
				QuantityChange:  after - before,
				StockAfter:      after,
				UnitPrice:       item.PurchasePrice,
				TotalValue:      item.PurchasePrice.Mul(decimal.NewFromInt(int64(after - before))),
				BatchItemID:     &item.ID,
				BatchID:         &batchID,
				ActorID:         actorID,
				Note:            req.Note,
			}
			if err := s.invTxRepo.Create(txCtx, &entry); err != nil {
				return fmt.Errorf("failed to write ledger entry: %w", err)
			}
		}

		details, _ := json.Marshal(map[string]interface{}{
			"batch_item_id": item.ID,
			"from":          previous,
			"to":            item.InventoryStatus,
			"quantity":      item.CurrentQuantity,
			"note":          req.Note,
		})
		audit := model.AuditLog{
			UserID:     actorID,
			Action:     model.ActionAdjustStock,
			EntityID:   item.ID.String(),
			EntityName: product.SKU,
			Details:    string(details),
		}
		if err := s.auditRepo.Log(txCtx, &audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, classifyTxError(err)
	}

	s.log.Info().
		Str("batch_item_id", item.ID.String()).
		Str("status", item.InventoryStatus.String()).
		Msg("lot status adjusted")
	if s.hub != nil {
		s.hub.BroadcastEvent("lot_adjusted", map[string]interface{}{
			"batch_item_id": item.ID,
			"product_id":    product.ID,
			"status":        item.InventoryStatus,
		})
	}

	return item, nil
}
