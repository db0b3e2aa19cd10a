package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleStatus enum constants
const (
	SaleStatusCompleted = "COMPLETED"
	SaleStatusReturned  = "RETURNED"
)

// PaymentMethod enum constants
const (
	PaymentMethodCash   = "CASH"
	PaymentMethodWallet = "WALLET"
)

// Sale represents a committed checkout. A sale can be returned at most once,
// within the configured return window.
type Sale struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SaleNumber    string          `gorm:"type:varchar(30);uniqueIndex;not null" json:"sale_number"` // SAL-YYYYMMDD-NNN
	CustomerID    *uuid.UUID      `gorm:"type:uuid;index" json:"customer_id"`
	PaymentMethod string          `gorm:"type:varchar(20);not null;default:'CASH'" json:"payment_method"`
	Status        string          `gorm:"type:varchar(20);not null;default:'COMPLETED';index" json:"status"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"total_amount"`
	Note          string          `gorm:"type:text" json:"note"`
	SoldBy        *uuid.UUID      `gorm:"type:uuid" json:"sold_by"`
	ReturnedAt    *time.Time      `json:"returned_at"`
	Items         []SaleItem      `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"` // Return window is measured from this
	UpdatedAt     time.Time       `json:"updated_at"`
}

// SaleItem is one product line of a sale. A free line is a promotion item:
// it still deducts stock but contributes nothing to the total.
type SaleItem struct {
	ID               uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SaleID           uuid.UUID       `gorm:"type:uuid;not null;index" json:"sale_id"`
	ProductID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	Product          *Product        `gorm:"foreignKey:ProductID" json:"-"`
	Quantity         int             `gorm:"type:int;not null" json:"quantity"`
	UnitPrice        decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"unit_price"`
	IsFree           bool            `gorm:"default:false" json:"is_free"`
	ReturnedQuantity int             `gorm:"type:int;not null;default:0" json:"returned_quantity"`
	Batches          []SaleItemBatch `gorm:"foreignKey:SaleItemID;constraint:OnDelete:CASCADE" json:"batches"`
}

// SaleItemBatch binds a sale line to the batch item it drew stock from, so a
// return restores exactly the lots the sale consumed.
type SaleItemBatch struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SaleItemID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"sale_item_id"`
	BatchItemID uuid.UUID       `gorm:"type:uuid;not null;index" json:"batch_item_id"`
	BatchItem   *BatchItem      `gorm:"foreignKey:BatchItemID" json:"batch_item,omitempty"`
	Quantity    int             `gorm:"type:int;not null" json:"quantity"`
	UnitCost    decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"unit_cost"`
}
