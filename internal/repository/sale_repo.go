package repository

import (
	"context"
	"time"

	"retailpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SaleRepository interface {
	Create(ctx context.Context, sale *model.Sale) error
	FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Sale, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Sale, error)
	List(ctx context.Context, page, limit int) ([]model.Sale, int64, error)
	MarkReturned(ctx context.Context, id uuid.UUID, returnedAt time.Time) error
	UpdateItemReturnedQuantity(ctx context.Context, itemID uuid.UUID, returnedQuantity int) error
	NextSaleNumber(ctx context.Context, day time.Time) (string, error)
}

type saleRepository struct {
	db *gorm.DB
}

func NewSaleRepository(db *gorm.DB) SaleRepository {
	return &saleRepository{db: db}
}

func (r *saleRepository) Create(ctx context.Context, sale *model.Sale) error {
	return GetDB(ctx, r.db).Create(sale).Error
}

func (r *saleRepository) FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	var sale model.Sale
	if err := GetDB(ctx, r.db).
		Preload("Items").
		Preload("Items.Batches").
		First(&sale, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

// FindByIDForUpdate locks the sale row so two concurrent return requests for
// the same sale serialize; the loser observes status RETURNED and bails.
func (r *saleRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	var sale model.Sale
	if err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "sales"}}).
		First(&sale, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := GetDB(ctx, r.db).
		Preload("Batches").
		Where("sale_id = ?", id).
		Find(&sale.Items).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *saleRepository) List(ctx context.Context, page, limit int) ([]model.Sale, int64, error) {
	var sales []model.Sale
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Sale{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.
		Preload("Items").
		Preload("Items.Batches").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&sales).Error; err != nil {
		return nil, 0, err
	}

	return sales, total, nil
}

func (r *saleRepository) MarkReturned(ctx context.Context, id uuid.UUID, returnedAt time.Time) error {
	return GetDB(ctx, r.db).Model(&model.Sale{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      model.SaleStatusReturned,
			"returned_at": returnedAt,
		}).Error
}

func (r *saleRepository) UpdateItemReturnedQuantity(ctx context.Context, itemID uuid.UUID, returnedQuantity int) error {
	return GetDB(ctx, r.db).Model(&model.SaleItem{}).Where("id = ?", itemID).
		Update("returned_quantity", returnedQuantity).Error
}

// NextSaleNumber generates SAL-YYYYMMDD-NNN the same way batch numbers are
// generated: advisory xact lock over the day prefix, highest existing + 1.
func (r *saleRepository) NextSaleNumber(ctx context.Context, day time.Time) (string, error) {
	prefix := "SAL-" + day.Format("20060102") + "-"

	db := GetDB(ctx, r.db)
	if err := db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", prefix).Error; err != nil {
		return "", err
	}

	// Length before value: a plain string sort would rank 999 above 1000 once
	// the suffix outgrows its padding.
	var numbers []string
	if err := db.Model(&model.Sale{}).
		Where("sale_number LIKE ?", prefix+"%").
		Order("LENGTH(sale_number) DESC, sale_number DESC").
		Limit(1).
		Pluck("sale_number", &numbers).Error; err != nil {
		return "", err
	}

	last := ""
	if len(numbers) > 0 {
		last = numbers[0]
	}
	return nextSequenceNumber(prefix, last)
}
