package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletTxType enum constants
const (
	WalletTxDebit  = "DEBIT"
	WalletTxCredit = "CREDIT"
)

// Wallet is a customer's stored-value account. Sales paid by wallet debit it;
// returning such a sale credits the refund back.
type Wallet struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CustomerID uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null" json:"customer_id"`
	Balance    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"balance"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// WalletTransaction records a single debit or credit against a wallet
type WalletTransaction struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	WalletID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"wallet_id"`
	Type         string          `gorm:"type:varchar(10);not null" json:"type"` // DEBIT, CREDIT
	Amount       decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	BalanceAfter decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"balance_after"`
	SaleID       *uuid.UUID      `gorm:"type:uuid;index" json:"sale_id"`
	Note         string          `gorm:"type:text" json:"note"`
	CreatedAt    time.Time       `json:"created_at"`
}
