package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"retailpos/internal/model"
	"retailpos/internal/repository"
	"retailpos/pkg/clock"
	"retailpos/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocateRequest deducts stock for a product outside of a sale, e.g. internal
// consumption or a manual write-off.
type AllocateRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
	Note      string `json:"note"`
}

// SaleLineRequest is one line of a checkout. UnitPrice defaults to the
// product's list price when omitted; a free line always sells at zero.
type SaleLineRequest struct {
	ProductID string   `json:"product_id" binding:"required"`
	Quantity  int      `json:"quantity" binding:"required,gt=0"`
	UnitPrice *float64 `json:"unit_price" binding:"omitempty,gte=0"`
	IsFree    bool     `json:"is_free"`
}

// CreateSaleRequest commits a checkout atomically: every line allocated or the
// whole sale fails.
type CreateSaleRequest struct {
	CustomerID    string            `json:"customer_id"`
	PaymentMethod string            `json:"payment_method" binding:"required,oneof=CASH WALLET"`
	Note          string            `json:"note"`
	Items         []SaleLineRequest `json:"items" binding:"required,min=1,dive"`
}

type AllocationService interface {
	// Allocate deducts quantity from the oldest eligible lots of a product and
	// returns the per-lot breakdown, which doubles as the input for a later
	// compensating release.
	Allocate(ctx context.Context, actorID *uuid.UUID, req AllocateRequest) ([]Allocation, error)
	// ReleaseAllocation restores a previous allocation lot by lot. Used when a
	// step after the allocation failed and the deduction must be undone.
	ReleaseAllocation(ctx context.Context, actorID *uuid.UUID, allocations []Allocation, note string) error
	// CreateSale performs the checkout: allocates every line, persists the sale
	// with its lot bindings, writes the EXPORT ledger entries, and settles
	// wallet payment if requested.
	CreateSale(ctx context.Context, actorID *uuid.UUID, req CreateSaleRequest) (*model.Sale, error)
	GetSale(ctx context.Context, id uuid.UUID) (*model.Sale, error)
	ListSales(ctx context.Context, page, limit int) ([]model.Sale, int64, error)
}

type allocationService struct {
	txManager   repository.TransactionManager
	batchRepo   repository.BatchRepository
	productRepo repository.ProductRepository
	saleRepo    repository.SaleRepository
	walletRepo  repository.WalletRepository
	invTxRepo   repository.InventoryTxRepository
	auditRepo   repository.AuditRepository
	reconciler  ReconcileService
	hub         StockEventBroadcaster
	log         *logger.Logger
	clk         clock.Clock
	cfg         Config
}

func NewAllocationService(
	txManager repository.TransactionManager,
	batchRepo repository.BatchRepository,
	productRepo repository.ProductRepository,
	saleRepo repository.SaleRepository,
	walletRepo repository.WalletRepository,
	invTxRepo repository.InventoryTxRepository,
	auditRepo repository.AuditRepository,
	reconciler ReconcileService,
	hub StockEventBroadcaster,
	log *logger.Logger,
	clk clock.Clock,
	cfg Config,
) AllocationService {
	return &allocationService{
		txManager:   txManager,
		batchRepo:   batchRepo,
		productRepo: productRepo,
		saleRepo:    saleRepo,
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

// allocateLine deducts quantity from the product's eligible lots inside the
// caller's transaction. The product row must already be locked. running is the
// product aggregate before this deduction; the returned int is the aggregate
// after, which the caller feeds into the next line for the same product.
func (s *allocationService) allocateLine(
	txCtx context.Context,
	actorID *uuid.UUID,
	product *model.Product,
	quantity int,
	unitPrice decimal.Decimal,
	txType string,
	saleID *uuid.UUID,
	note string,
	running int,
) ([]Allocation, int, error) {
	items, err := s.batchRepo.EligibleItemsForUpdate(txCtx, product.ID, model.DayOf(s.clk.Now()))
	if err != nil {
		return nil, running, fmt.Errorf("failed to load eligible lots: %w", err)
	}

	plan, err := planAllocation(items, quantity)
	if err != nil {
		return nil, running, fmt.Errorf("%w: product %s", err, product.SKU)
	}

	byID := make(map[uuid.UUID]*model.BatchItem, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}

	for _, alloc := range plan {
		item := byID[alloc.BatchItemID]
		item.CurrentQuantity -= alloc.Quantity
		if _, err := s.reconciler.ApplyItemStatus(txCtx, item, product.MinStockLevel); err != nil {
			return nil, running, err
		}
		if err := s.batchRepo.UpdateItem(txCtx, item); err != nil {
			return nil, running, fmt.Errorf("failed to deduct lot quantity: %w", err)
		}

		running -= alloc.Quantity
		batchItemID := alloc.BatchItemID
		batchID := alloc.BatchID
		entry := model.InventoryTransaction{
			TransactionType: txType,
			ProductID:       product.ID,
			QuantityChange:  -alloc.Quantity,
			StockAfter:      running,
			UnitPrice:       unitPrice,
			TotalValue:      unitPrice.Mul(decimal.NewFromInt(int64(alloc.Quantity))),
			BatchItemID:     &batchItemID,
			BatchID:         &batchID,
			SaleID:          saleID,
			ActorID:         actorID,
			Note:            note,
		}
		if err := s.invTxRepo.Create(txCtx, &entry); err != nil {
			return nil, running, fmt.Errorf("failed to write ledger entry: %w", err)
		}
	}

	return plan, running, nil
}

func (s *allocationService) Allocate(ctx context.Context, actorID *uuid.UUID, req AllocateRequest) ([]Allocation, error) {
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid product id", ErrValidation)
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}

	var plan []Allocation
	err = s.txManager.RunInLockingTx(ctx, s.cfg.LockTimeoutMS, func(txCtx context.Context) error {
		product, err := s.productRepo.FindByIDForUpdate(txCtx, productID)
		if err != nil {
			return fmt.Errorf("%w: product not found", ErrValidation)
		}
		if !product.IsActive || !product.IsTrackable {
			return fmt.Errorf("%w: product %s is not allocatable", ErrValidation, product.SKU)
		}

		running, err := s.batchRepo.SumEligibleQuantity(txCtx, productID, model.DayOf(s.clk.Now()))
		if err != nil {
			return fmt.Errorf("failed to read stock aggregate: %w", err)
		}

		plan, _, err = s.allocateLine(txCtx, actorID, product, req.Quantity, product.SalePrice, model.TxTypeExport, nil, req.Note, running)
		if err != nil {
			return err
		}

		_, err = s.reconciler.SyncProductStock(txCtx, product)
		return err
	})
	if err != nil {
		return nil, classifyTxError(err)
	}

	s.log.Info().
		Str("product_id", productID.String()).
		Int("quantity", req.Quantity).
		Int("lots", len(plan)).
		Msg("stock allocated")
	if s.hub != nil {
		s.hub.BroadcastEvent("stock_allocated", map[string]interface{}{
			"product_id": productID,
			"quantity":   req.Quantity,
		})
	}

	return plan, nil
}

func (s *allocationService) ReleaseAllocation(ctx context.Context, actorID *uuid.UUID, allocations []Allocation, note string) error {
	if len(allocations) == 0 {
		return fmt.Errorf("%w: nothing to release", ErrValidation)
	}
	for i := range allocations {
		if allocations[i].Quantity <= 0 {
			return fmt.Errorf("%w: allocation quantity must be positive", ErrValidation)
		}
	}

	err := s.txManager.RunInLockingTx(ctx, s.cfg.LockTimeoutMS, func(txCtx context.Context) error {
		// Read the lots unlocked first, only to learn which products are
		// involved. Locks follow the same order as allocation: products first,
		// then their lots.
		ids := make([]uuid.UUID, 0, len(allocations))
		for i := range allocations {
			ids = append(ids, allocations[i].BatchItemID)
		}
		productIDs := make(map[uuid.UUID]bool)
		for _, id := range ids {
			item, err := s.batchRepo.FindItemByID(txCtx, id)
			if err != nil {
				return fmt.Errorf("%w: batch item %s not found", ErrValidation, id)
			}
			productIDs[item.ProductID] = true
		}

		sorted := make([]uuid.UUID, 0, len(productIDs))
		for pid := range productIDs {
			sorted = append(sorted, pid)
		}
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })

		products := make(map[uuid.UUID]*model.Product, len(sorted))
		for _, pid := range sorted {
			product, err := s.productRepo.FindByIDForUpdate(txCtx, pid)
			if err != nil {
				return fmt.Errorf("failed to lock product: %w", err)
			}
			products[pid] = product
		}

		locked, err := s.batchRepo.FindItemsByIDsForUpdate(txCtx, ids)
		if err != nil {
			return fmt.Errorf("failed to lock batch items: %w", err)
		}
		byID := make(map[uuid.UUID]*model.BatchItem, len(locked))
		for i := range locked {
			byID[locked[i].ID] = &locked[i]
		}

		for _, alloc := range allocations {
			item, ok := byID[alloc.BatchItemID]
			if !ok {
				return fmt.Errorf("%w: batch item %s not found", ErrValidation, alloc.BatchItemID)
			}
			product := products[item.ProductID]

			item.CurrentQuantity += alloc.Quantity
			if _, err := s.reconciler.ApplyItemStatus(txCtx, item, product.MinStockLevel); err != nil {
				return err
			}
			if err := s.batchRepo.UpdateItem(txCtx, item); err != nil {
				return fmt.Errorf("failed to restore lot quantity: %w", err)
			}
		}

		for _, pid := range sorted {
			stockAfter, err := s.reconciler.SyncProductStock(txCtx, products[pid])
			if err != nil {
				return err
			}
			for _, alloc := range allocations {
				item := byID[alloc.BatchItemID]
				if item.ProductID != pid {
					continue
				}
				batchItemID := alloc.BatchItemID
				batchID := alloc.BatchID
				entry := model.InventoryTransaction{
					TransactionType: model.TxTypeAdjust,
					ProductID:       pid,
					QuantityChange:  alloc.Quantity,
					StockAfter:      stockAfter,
					UnitPrice:       alloc.UnitCost,
					TotalValue:      alloc.UnitCost.Mul(decimal.NewFromInt(int64(alloc.Quantity))),
					BatchItemID:     &batchItemID,
					BatchID:         &batchID,
					ActorID:         actorID,
					Note:            note,
				}
				if err := s.invTxRepo.Create(txCtx, &entry); err != nil {
					return fmt.Errorf("failed to write ledger entry: %w", err)
				}
			}
		}

		details, _ := json.Marshal(map[string]interface{}{"released_lots": len(allocations), "note": note})
		audit := model.AuditLog{
			UserID:  actorID,
			Action:  model.ActionAdjustStock,
			Details: string(details),
		}
		return s.auditRepo.Log(txCtx, &audit)
	})
	if err != nil {
		return classifyTxError(err)
	}

	s.log.Info().Int("lots", len(allocations)).Msg("allocation released")
	return nil
}

func (s *allocationService) CreateSale(ctx context.Context, actorID *uuid.UUID, req CreateSaleRequest) (*model.Sale, error) {
	var customerID *uuid.UUID
	if req.CustomerID != "" {
		parsed, err := uuid.Parse(req.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid customer id", ErrValidation)
		}
		customerID = &parsed
	}
	if req.PaymentMethod == model.PaymentMethodWallet && customerID == nil {
		return nil, fmt.Errorf("%w: wallet payment requires a customer", ErrValidation)
	}

	now := s.clk.Now()
	var sale *model.Sale

	err := s.txManager.RunInLockingTx(ctx, s.cfg.LockTimeoutMS, func(txCtx context.Context) error {
		// Lock products in a fixed order so two overlapping checkouts cannot
		// deadlock each other.
		productIDs := make(map[uuid.UUID]bool)
		for i := range req.Items {
			pid, err := uuid.Parse(req.Items[i].ProductID)
			if err != nil {
				return fmt.Errorf("%w: item %d has invalid product id", ErrValidation, i)
			}
			productIDs[pid] = true
		}
		sorted := make([]uuid.UUID, 0, len(productIDs))
		for pid := range productIDs {
			sorted = append(sorted, pid)
		}
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })

		products := make(map[uuid.UUID]*model.Product, len(sorted))
		running := make(map[uuid.UUID]int, len(sorted))
		for _, pid := range sorted {
			product, err := s.productRepo.FindByIDForUpdate(txCtx, pid)
			if err != nil {
				return fmt.Errorf("%w: product %s not found", ErrValidation, pid)
			}
			if !product.IsActive || !product.IsTrackable {
				return fmt.Errorf("%w: product %s is not sellable", ErrValidation, product.SKU)
			}
			sum, err := s.batchRepo.SumEligibleQuantity(txCtx, pid, model.DayOf(now))
			if err != nil {
				return fmt.Errorf("failed to read stock aggregate: %w", err)
			}
			products[pid] = product
			running[pid] = sum
		}

		number, err := s.saleRepo.NextSaleNumber(txCtx, model.DayOf(now))
		if err != nil {
			return fmt.Errorf("failed to generate sale number: %w", err)
		}
		// The id is assigned up front so ledger entries written during
		// allocation can reference the sale inserted afterwards.
		sale = &model.Sale{
			ID:            uuid.New(),
			SaleNumber:    number,
			CustomerID:    customerID,
			PaymentMethod: req.PaymentMethod,
			Status:        model.SaleStatusCompleted,
			TotalAmount:   decimal.Zero,
			Note:          req.Note,
			SoldBy:        actorID,
		}

		total := decimal.Zero
		saleItems := make([]model.SaleItem, 0, len(req.Items))
		for i := range req.Items {
			line := &req.Items[i]
			pid, _ := uuid.Parse(line.ProductID)
			product := products[pid]

			unitPrice := product.SalePrice
			if line.UnitPrice != nil {
				unitPrice = decimal.NewFromFloat(*line.UnitPrice)
			}
			if line.IsFree {
				unitPrice = decimal.Zero
			}

			plan, after, err := s.allocateLine(txCtx, actorID, product, line.Quantity, unitPrice, model.TxTypeExport, &sale.ID, "sale "+sale.SaleNumber, running[pid])
			if err != nil {
				return err
			}
			running[pid] = after

			bindings := make([]model.SaleItemBatch, 0, len(plan))
			for _, alloc := range plan {
				bindings = append(bindings, model.SaleItemBatch{
					BatchItemID: alloc.BatchItemID,
					Quantity:    alloc.Quantity,
					UnitCost:    alloc.UnitCost,
				})
			}
			saleItems = append(saleItems, model.SaleItem{
				SaleID:    sale.ID,
				ProductID: pid,
				Quantity:  line.Quantity,
				UnitPrice: unitPrice,
				IsFree:    line.IsFree,
				Batches:   bindings,
			})
			if !line.IsFree {
				total = total.Add(unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
			}
		}

		sale.Items = saleItems
		sale.TotalAmount = total
		if err := s.saleRepo.Create(txCtx, sale); err != nil {
			return fmt.Errorf("failed to create sale: %w", err)
		}

		if req.PaymentMethod == model.PaymentMethodWallet {
			wallet, err := s.walletRepo.FindOrCreateForUpdate(txCtx, *customerID)
			if err != nil {
				return fmt.Errorf("failed to lock wallet: %w", err)
			}
			if wallet.Balance.LessThan(total) {
				return fmt.Errorf("%w: insufficient wallet balance", ErrValidation)
			}
			balance := wallet.Balance.Sub(total)
			if err := s.walletRepo.UpdateBalance(txCtx, wallet.ID, balance); err != nil {
				return fmt.Errorf("failed to debit wallet: %w", err)
			}
			walletTx := model.WalletTransaction{
				WalletID:     wallet.ID,
				Type:         model.WalletTxDebit,
				Amount:       total,
				BalanceAfter: balance,
				SaleID:       &sale.ID,
				Note:         "sale " + sale.SaleNumber,
			}
			if err := s.walletRepo.CreateTransaction(txCtx, &walletTx); err != nil {
				return fmt.Errorf("failed to record wallet debit: %w", err)
			}
		}

		for _, pid := range sorted {
			if _, err := s.reconciler.SyncProductStock(txCtx, products[pid]); err != nil {
				return err
			}
		}

		details, _ := json.Marshal(map[string]interface{}{
			"sale_number":    sale.SaleNumber,
			"total_amount":   total,
			"payment_method": req.PaymentMethod,
			"items":          len(saleItems),
		})
		audit := model.AuditLog{
			UserID:     actorID,
			Action:     model.ActionCreateSale,
			EntityID:   sale.ID.String(),
			EntityName: sale.SaleNumber,
			Details:    string(details),
		}
		return s.auditRepo.Log(txCtx, &audit)
	})
	if err != nil {
		return nil, classifyTxError(err)
	}

	s.log.Info().
		Str("sale_number", sale.SaleNumber).
		Str("total", sale.TotalAmount.String()).
		Msg("sale completed")
	if s.hub != nil {
		s.hub.BroadcastEvent("sale_completed", map[string]interface{}{
			"sale_id":     sale.ID,
			"sale_number": sale.SaleNumber,
		})
	}

	return sale, nil
}

func (s *allocationService) GetSale(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	return s.saleRepo.FindByIDWithItems(ctx, id)
}

func (s *allocationService) ListSales(ctx context.Context, page, limit int) ([]model.Sale, int64, error) {
	return s.saleRepo.List(ctx, page, limit)
}
