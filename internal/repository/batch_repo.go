package repository

import (
	"context"
	"time"

	"retailpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sellableStatuses are the inventory statuses the allocator may draw from.
var sellableStatuses = []model.InventoryStatus{
	model.StatusActive,
	model.StatusLowStock,
	model.StatusExpiringSoon,
}

// receivedStatuses are the batch receipt states whose items count as stock.
var receivedStatuses = []string{
	model.ReceiptStatusCompleted,
	model.ReceiptStatusPartiallyReceived,
}

type BatchRepository interface {
	Create(ctx context.Context, batch *model.Batch) error
	FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Batch, error)
	List(ctx context.Context, page, limit int) ([]model.Batch, int64, error)
	NextBatchNumber(ctx context.Context, day time.Time) (string, error)

	EligibleItems(ctx context.Context, productID uuid.UUID, today time.Time) ([]model.BatchItem, error)
	EligibleItemsForUpdate(ctx context.Context, productID uuid.UUID, today time.Time) ([]model.BatchItem, error)
	FindItemByID(ctx context.Context, id uuid.UUID) (*model.BatchItem, error)
	FindItemsByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]model.BatchItem, error)
	ItemsByProduct(ctx context.Context, productID uuid.UUID) ([]model.BatchItem, error)
	UpdateItem(ctx context.Context, item *model.BatchItem) error
	SumEligibleQuantity(ctx context.Context, productID uuid.UUID, today time.Time) (int, error)

	ListPrunableBatchIDs(ctx context.Context) ([]uuid.UUID, error)
	LockItemsByBatch(ctx context.Context, batchID uuid.UUID) ([]model.BatchItem, error)
	HardDeleteBatch(ctx context.Context, batchID uuid.UUID) error
}

type batchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) BatchRepository {
	return &batchRepository{db: db}
}

func (r *batchRepository) Create(ctx context.Context, batch *model.Batch) error {
	return GetDB(ctx, r.db).Create(batch).Error
}

func (r *batchRepository) FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Batch, error) {
	var batch model.Batch
	if err := GetDB(ctx, r.db).
		Preload("Items").
		Preload("Supplier").
		First(&batch, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *batchRepository) List(ctx context.Context, page, limit int) ([]model.Batch, int64, error) {
	var batches []model.Batch
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Batch{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.
		Preload("Items").
		Preload("Supplier").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&batches).Error; err != nil {
		return nil, 0, err
	}

	return batches, total, nil
}

// NextBatchNumber generates the next sequential number for the given day,
// format REC-YYYYMMDD-NNN. An advisory xact lock over the day prefix
// serializes concurrent receivers so the sequence never duplicates; the
// unique index on batch_number is the backstop. Soft-deleted batches still
// occupy their number, hence the Unscoped lookup.
func (r *batchRepository) NextBatchNumber(ctx context.Context, day time.Time) (string, error) {
	prefix := "REC-" + day.Format("20060102") + "-"

	db := GetDB(ctx, r.db)
	if err := db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", prefix).Error; err != nil {
		return "", err
	}

	// Length before value: a plain string sort would rank 999 above 1000 once
	// the suffix outgrows its padding.
	var numbers []string
	if err := db.Unscoped().Model(&model.Batch{}).
		Where("batch_number LIKE ?", prefix+"%").
		Order("LENGTH(batch_number) DESC, batch_number DESC").
		Limit(1).
		Pluck("batch_number", &numbers).Error; err != nil {
		return "", err
	}

	last := ""
	if len(numbers) > 0 {
		last = numbers[0]
	}
	return nextSequenceNumber(prefix, last)
}

// eligibleQuery filters batch items down to sellable stock: sellable status,
// quantity on hand, parent batch alive and received, and not past expiry.
// Oldest lot first is the FIFO policy that minimizes expiry loss.
func (r *batchRepository) eligibleQuery(ctx context.Context, productID uuid.UUID, today time.Time) *gorm.DB {
	return GetDB(ctx, r.db).Model(&model.BatchItem{}).
		Joins("JOIN batches ON batches.id = batch_items.batch_id").
		Where("batch_items.product_id = ?", productID).
		Where("batch_items.current_quantity > 0").
		Where("batch_items.inventory_status IN ?", sellableStatuses).
		Where("batches.deleted_at IS NULL").
		Where("batches.receipt_status IN ?", receivedStatuses).
		Where("batch_items.expiry_date IS NULL OR batch_items.expiry_date >= ?", today)
}

func (r *batchRepository) EligibleItems(ctx context.Context, productID uuid.UUID, today time.Time) ([]model.BatchItem, error) {
	var items []model.BatchItem
	if err := r.eligibleQuery(ctx, productID, today).
		Order("batch_items.created_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// EligibleItemsForUpdate locks the returned rows for the duration of the
// transaction. Only the batch_items rows are locked; the joined batches
// table is read-only here.
func (r *batchRepository) EligibleItemsForUpdate(ctx context.Context, productID uuid.UUID, today time.Time) ([]model.BatchItem, error) {
	var items []model.BatchItem
	if err := r.eligibleQuery(ctx, productID, today).
		Order("batch_items.created_at ASC").
		Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "batch_items"}}).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *batchRepository) FindItemByID(ctx context.Context, id uuid.UUID) (*model.BatchItem, error) {
	var item model.BatchItem
	if err := GetDB(ctx, r.db).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindItemsByIDsForUpdate locks the given batch items, oldest first so that
// every transaction acquires row locks in the same order.
func (r *batchRepository) FindItemsByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]model.BatchItem, error) {
	var items []model.BatchItem
	if err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("created_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *batchRepository) ItemsByProduct(ctx context.Context, productID uuid.UUID) ([]model.BatchItem, error) {
	var items []model.BatchItem
	if err := GetDB(ctx, r.db).
		Joins("JOIN batches ON batches.id = batch_items.batch_id").
		Where("batch_items.product_id = ?", productID).
		Where("batches.deleted_at IS NULL").
		Order("batch_items.created_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *batchRepository) UpdateItem(ctx context.Context, item *model.BatchItem) error {
	return GetDB(ctx, r.db).Save(item).Error
}

func (r *batchRepository) SumEligibleQuantity(ctx context.Context, productID uuid.UUID, today time.Time) (int, error) {
	var sum *int
	if err := r.eligibleQuery(ctx, productID, today).
		Select("COALESCE(SUM(batch_items.current_quantity), 0)").
		Scan(&sum).Error; err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}

// ListPrunableBatchIDs returns batches whose items are all at zero quantity.
// Soft-deleted batches are included; pruning is their final disposal.
func (r *batchRepository) ListPrunableBatchIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := GetDB(ctx, r.db).Unscoped().Model(&model.Batch{}).
		Where("NOT EXISTS (SELECT 1 FROM batch_items WHERE batch_items.batch_id = batches.id AND batch_items.current_quantity > 0)").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// LockItemsByBatch takes the same row locks allocation takes, so pruning
// cannot race a concurrent sale drawing from the batch.
func (r *batchRepository) LockItemsByBatch(ctx context.Context, batchID uuid.UUID) ([]model.BatchItem, error) {
	var items []model.BatchItem
	if err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("batch_id = ?", batchID).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *batchRepository) HardDeleteBatch(ctx context.Context, batchID uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Unscoped().Where("batch_id = ?", batchID).Delete(&model.BatchItem{}).Error; err != nil {
		return err
	}
	return db.Unscoped().Where("id = ?", batchID).Delete(&model.Batch{}).Error
}
