package repository

import (
	"context"

	"retailpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InventoryTxRepository is the append-only stock ledger. There is no update
// and no hard delete on purpose.
type InventoryTxRepository interface {
	Create(ctx context.Context, tx *model.InventoryTransaction) error
	List(ctx context.Context, page, limit int, productID *uuid.UUID, txType string) ([]model.InventoryTransaction, int64, error)
}

type inventoryTxRepository struct {
	db *gorm.DB
}

func NewInventoryTxRepository(db *gorm.DB) InventoryTxRepository {
	return &inventoryTxRepository{db: db}
}

func (r *inventoryTxRepository) Create(ctx context.Context, tx *model.InventoryTransaction) error {
	return GetDB(ctx, r.db).Create(tx).Error
}

func (r *inventoryTxRepository) List(ctx context.Context, page, limit int, productID *uuid.UUID, txType string) ([]model.InventoryTransaction, int64, error) {
	var entries []model.InventoryTransaction
	var total int64

	db := GetDB(ctx, r.db).Model(&model.InventoryTransaction{})
	if productID != nil {
		db = db.Where("product_id = ?", *productID)
	}
	if txType != "" {
		db = db.Where("transaction_type = ?", txType)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("Actor").Order("transaction_date desc").Offset(offset).Limit(limit).Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
