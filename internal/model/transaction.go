package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionType enum constants
const (
	TxTypeImport = "IMPORT"
	TxTypeExport = "EXPORT"
	TxTypeAdjust = "ADJUST"
	TxTypeReturn = "RETURN"
)

// InventoryTransaction records every stock mutation strictly. Append-only:
// rows are never updated, and removal is soft-delete only. StockAfter is the
// product aggregate captured inside the mutating transaction, not recomputed
// later, so the history stays accurate even after reconciliation corrections.
type InventoryTransaction struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TransactionType string          `gorm:"type:varchar(10);not null;index" json:"transaction_type"`
	ProductID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	Product         *Product        `gorm:"foreignKey:ProductID" json:"-"`
	QuantityChange  int             `gorm:"type:int;not null" json:"quantity_change"` // Signed; negative = stock leaving
	StockAfter      int             `gorm:"type:int;not null" json:"stock_after"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"unit_price"`
	TotalValue      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"total_value"`
	BatchItemID     *uuid.UUID      `gorm:"type:uuid;index" json:"batch_item_id"`
	SaleID          *uuid.UUID      `gorm:"type:uuid;index" json:"sale_id"`
	BatchID         *uuid.UUID      `gorm:"type:uuid;index" json:"batch_id"`
	ActorID         *uuid.UUID      `gorm:"type:uuid;index" json:"actor_id"`
	Actor           *User           `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
	Note            string          `gorm:"type:text" json:"note"`
	TransactionDate time.Time       `gorm:"autoCreateTime;index" json:"transaction_date"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
}
