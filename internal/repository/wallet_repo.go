package repository

import (
	"context"
	"errors"

	"retailpos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WalletRepository interface {
	FindByCustomer(ctx context.Context, customerID uuid.UUID) (*model.Wallet, error)
	// FindOrCreateForUpdate returns the customer's wallet with its row locked,
	// creating a zero-balance wallet on first use.
	FindOrCreateForUpdate(ctx context.Context, customerID uuid.UUID) (*model.Wallet, error)
	UpdateBalance(ctx context.Context, walletID uuid.UUID, balance decimal.Decimal) error
	CreateTransaction(ctx context.Context, tx *model.WalletTransaction) error
}

type walletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID) (*model.Wallet, error) {
	var wallet model.Wallet
	if err := GetDB(ctx, r.db).Where("customer_id = ?", customerID).First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *walletRepository) FindOrCreateForUpdate(ctx context.Context, customerID uuid.UUID) (*model.Wallet, error) {
	db := GetDB(ctx, r.db)

	var wallet model.Wallet
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("customer_id = ?", customerID).First(&wallet).Error
	if err == nil {
		return &wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	wallet = model.Wallet{CustomerID: customerID, Balance: decimal.Zero}
	if err := db.Create(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *walletRepository) UpdateBalance(ctx context.Context, walletID uuid.UUID, balance decimal.Decimal) error {
	return GetDB(ctx, r.db).Model(&model.Wallet{}).Where("id = ?", walletID).Update("balance", balance).Error
}

func (r *walletRepository) CreateTransaction(ctx context.Context, tx *model.WalletTransaction) error {
	return GetDB(ctx, r.db).Create(tx).Error
}
