package service

import (
	"context"
	"encoding/json"
	"fmt"

	"retailpos/internal/model"
	"retailpos/internal/repository"
	"retailpos/pkg/clock"
	"retailpos/pkg/logger"

	"github.com/google/uuid"
)

// ReconcileService keeps derived state honest: batch item statuses and the
// product's cached stock_quantity are pure functions of the underlying lots,
// recomputed here and nowhere else.
type ReconcileService interface {
	// ApplyItemStatus re-derives one item's status. Intended to run inside the
	// caller's transaction (the tx travels in ctx) right after every mutation,
	// so the status is never stale even mid-allocation.
	ApplyItemStatus(ctx context.Context, item *model.BatchItem, minStockLevel int) (bool, error)
	// SyncProductStock recomputes the aggregate from eligible batch items and
	// overwrites the cache on mismatch. The caller must hold the product row
	// lock. Returns the fresh aggregate.
	SyncProductStock(ctx context.Context, product *model.Product) (int, error)
	// ReconcileProduct runs the full resync for one product in its own
	// transaction. Idempotent, safe to call anytime.
	ReconcileProduct(ctx context.Context, productID uuid.UUID) error
	// ReconcileAll resyncs every trackable product. Maintenance entry point.
	ReconcileAll(ctx context.Context) error
	// PruneEmptyBatches hard-deletes batches whose lots are all exhausted.
	// Destructive; maintenance only.
	PruneEmptyBatches(ctx context.Context, actorID *uuid.UUID) (int, error)
}

type reconcileService struct {
	txManager   repository.TransactionManager
	productRepo repository.ProductRepository
	batchRepo   repository.BatchRepository
	auditRepo   repository.AuditRepository
	log         *logger.Logger
	clk         clock.Clock
	cfg         Config
}

func NewReconcileService(
	txManager repository.TransactionManager,
	productRepo repository.ProductRepository,
	batchRepo repository.BatchRepository,
	auditRepo repository.AuditRepository,
	log *logger.Logger,
	clk clock.Clock,
	cfg Config,
) ReconcileService {
	return &reconcileService{
		txManager:   txManager,
		productRepo: productRepo,
		batchRepo:   batchRepo,
		auditRepo:   auditRepo,
		log:         log,
		clk:         clk,
		cfg:         cfg,
	}
}

func (s *reconcileService) ApplyItemStatus(ctx context.Context, item *model.BatchItem, minStockLevel int) (bool, error) {
	derived := model.DeriveInventoryStatus(item, minStockLevel, s.clk.Now(), s.cfg.ExpiryWarningDays)
	if derived == item.InventoryStatus {
		return false, nil
	}
	item.InventoryStatus = derived
	if err := s.batchRepo.UpdateItem(ctx, item); err != nil {
		return false, fmt.Errorf("failed to update batch item status: %w", err)
	}
	return true, nil
}

func (s *reconcileService) SyncProductStock(ctx context.Context, product *model.Product) (int, error) {
	sum, err := s.batchRepo.SumEligibleQuantity(ctx, product.ID, model.DayOf(s.clk.Now()))
	if err != nil {
		return 0, fmt.Errorf("failed to sum eligible quantity: %w", err)
	}

	if sum != product.StockQuantity {
		// Drift between the cache and the lots means some writer bypassed the
		// engine; corrected silently, surfaced as a warning.
		s.log.Warn().
			Str("product_id", product.ID.String()).
			Str("sku", product.SKU).
			Int("cached", product.StockQuantity).
			Int("actual", sum).
			Msg("stock aggregate mismatch, correcting")

		if err := s.productRepo.UpdateStockQuantity(ctx, product.ID, sum); err != nil {
			return 0, fmt.Errorf("failed to correct stock aggregate: %w", err)
		}
		product.StockQuantity = sum
	}

	return sum, nil
}

func (s *reconcileService) ReconcileProduct(ctx context.Context, productID uuid.UUID) error {
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		product, err := s.productRepo.FindByIDForUpdate(txCtx, productID)
		if err != nil {
			return fmt.Errorf("product not found: %w", err)
		}
		if !product.IsTrackable {
			return nil
		}

		items, err := s.batchRepo.ItemsByProduct(txCtx, productID)
		if err != nil {
			return fmt.Errorf("failed to load batch items: %w", err)
		}
		for i := range items {
			if _, err := s.ApplyItemStatus(txCtx, &items[i], product.MinStockLevel); err != nil {
				return err
			}
		}

		_, err = s.SyncProductStock(txCtx, product)
		return err
	})
}

func (s *reconcileService) ReconcileAll(ctx context.Context) error {
	ids, err := s.productRepo.ListTrackableIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list products: %w", err)
	}

	var failed int
	for _, id := range ids {
		if err := s.ReconcileProduct(ctx, id); err != nil {
			failed++
			s.log.Error().Err(err).Str("product_id", id.String()).Msg("reconcile failed")
		}
	}
	if failed > 0 {
		return fmt.Errorf("reconcile failed for %d of %d products", failed, len(ids))
	}
	return nil
}

func (s *reconcileService) PruneEmptyBatches(ctx context.Context, actorID *uuid.UUID) (int, error) {
	pruned := 0
	err := s.txManager.RunInLockingTx(ctx, s.cfg.LockTimeoutMS, func(txCtx context.Context) error {
		ids, err := s.batchRepo.ListPrunableBatchIDs(txCtx)
		if err != nil {
			return fmt.Errorf("failed to list prunable batches: %w", err)
		}

		for _, batchID := range ids {
			items, err := s.batchRepo.LockItemsByBatch(txCtx, batchID)
			if err != nil {
				return fmt.Errorf("failed to lock batch items: %w", err)
			}

			// Re-check under lock: a concurrent return may have restored stock
			// between the candidate scan and now.
			empty := true
			for i := range items {
				if items[i].CurrentQuantity > 0 {
					empty = false
					break
				}
			}
			if !empty {
				continue
			}

			if err := s.batchRepo.HardDeleteBatch(txCtx, batchID); err != nil {
				return fmt.Errorf("failed to prune batch: %w", err)
			}
			pruned++
		}

		if pruned > 0 {
			details, _ := json.Marshal(map[string]interface{}{"pruned": pruned})
			audit := model.AuditLog{
				UserID:  actorID,
				Action:  model.ActionPruneBatches,
				Details: string(details),
			}
			if err := s.auditRepo.Log(txCtx, &audit); err != nil {
				return fmt.Errorf("failed to write audit log: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, classifyTxError(err)
	}

	s.log.Info().Int("pruned", pruned).Msg("batch prune completed")
	return pruned, nil
}
