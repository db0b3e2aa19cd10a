package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReceiptStatus enum constants
const (
	ReceiptStatusPartiallyReceived = "PARTIALLY_RECEIVED"
	ReceiptStatusCompleted         = "COMPLETED"
)

// PaymentStatus enum constants
const (
	PaymentStatusUnpaid        = "UNPAID"
	PaymentStatusPartiallyPaid = "PARTIALLY_PAID"
	PaymentStatusPaid          = "PAID"
)

// InventoryStatus is the closed set of states a batch item can be in.
// It is derived from quantity and expiry, except DAMAGED which is applied
// manually through an adjustment and never overwritten by derivation.
type InventoryStatus string

const (
	StatusActive       InventoryStatus = "ACTIVE"
	StatusLowStock     InventoryStatus = "LOW_STOCK"
	StatusOutOfStock   InventoryStatus = "OUT_OF_STOCK"
	StatusExpired      InventoryStatus = "EXPIRED"
	StatusExpiringSoon InventoryStatus = "EXPIRING_SOON"
	StatusDamaged      InventoryStatus = "DAMAGED"
)

// IsValid reports whether s is one of the known inventory statuses.
func (s InventoryStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusLowStock, StatusOutOfStock, StatusExpired, StatusExpiringSoon, StatusDamaged:
		return true
	}
	return false
}

func (s InventoryStatus) String() string {
	return string(s)
}

// Sellable reports whether items in this status may be drawn from by the
// allocator. EXPIRING_SOON lots remain sellable so they move before expiry.
func (s InventoryStatus) Sellable() bool {
	return s == StatusActive || s == StatusLowStock || s == StatusExpiringSoon
}

// Batch represents one received lot shipment from a supplier. A batch with
// zero remaining quantity across all its items may be pruned by maintenance.
type Batch struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	BatchNumber     string          `gorm:"type:varchar(30);uniqueIndex;not null" json:"batch_number"` // REC-YYYYMMDD-NNN
	SupplierID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"supplier_id"`
	Supplier        *Supplier       `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	PurchaseOrderID *uuid.UUID      `gorm:"type:uuid;index" json:"purchase_order_id"`
	ReceivedDate    time.Time       `gorm:"not null" json:"received_date"`
	PaidAmount      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"paid_amount"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"total_amount"`
	RemainingAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"remaining_amount"`
	PaymentStatus   string          `gorm:"type:varchar(20);not null;default:'UNPAID'" json:"payment_status"`
	ReceiptStatus   string          `gorm:"type:varchar(20);not null;index" json:"receipt_status"`
	Note            string          `gorm:"type:text" json:"note"`
	Items           []BatchItem     `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
}

// BatchItem is one product lot inside a batch. CurrentQuantity is the live
// stock remaining from this lot; it only moves inside locked transactions.
type BatchItem struct {
	ID                  uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	BatchID             uuid.UUID       `gorm:"type:uuid;not null;index" json:"batch_id"`
	Batch               *Batch          `gorm:"foreignKey:BatchID" json:"-"`
	ProductID           uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	Product             *Product        `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	PurchaseOrderItemID *uuid.UUID      `gorm:"type:uuid;index" json:"purchase_order_item_id"`
	OrderedQuantity     int             `gorm:"type:int;not null;default:0" json:"ordered_quantity"`
	ReceivedQuantity    int             `gorm:"type:int;not null;default:0" json:"received_quantity"`
	RejectedQuantity    int             `gorm:"type:int;not null;default:0" json:"rejected_quantity"`
	RemainingQuantity   int             `gorm:"type:int;not null;default:0" json:"remaining_quantity"` // Still owed by the supplier
	CurrentQuantity     int             `gorm:"type:int;not null;default:0" json:"current_quantity"`
	PurchasePrice       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"purchase_price"`
	ManufacturingDate   *time.Time      `json:"manufacturing_date"`
	ExpiryDate          *time.Time      `json:"expiry_date"` // Nullable = never expires
	InventoryStatus     InventoryStatus `gorm:"type:varchar(20);not null;index" json:"inventory_status"`
	CreatedAt           time.Time       `gorm:"index" json:"created_at"` // FIFO ordering key
	UpdatedAt           time.Time       `json:"updated_at"`
}

// IsExpired reports whether the item's expiry date has passed relative to now.
func (bi *BatchItem) IsExpired(now time.Time) bool {
	if bi.ExpiryDate == nil {
		return false
	}
	return bi.ExpiryDate.Before(DayOf(now))
}

// ExpiresWithin reports whether the item expires inside the given horizon.
func (bi *BatchItem) ExpiresWithin(now time.Time, days int) bool {
	if bi.ExpiryDate == nil {
		return false
	}
	return !bi.ExpiryDate.After(DayOf(now).AddDate(0, 0, days))
}

// DeriveInventoryStatus computes the status of a batch item from its quantity,
// expiry date, and the parent product's minimum stock level. Expiry checks take
// priority over the low-stock check. A DAMAGED item keeps its flag.
func DeriveInventoryStatus(item *BatchItem, minStockLevel int, now time.Time, expiryWarningDays int) InventoryStatus {
	if item.InventoryStatus == StatusDamaged {
		return StatusDamaged
	}
	switch {
	case item.CurrentQuantity <= 0:
		return StatusOutOfStock
	case item.IsExpired(now):
		return StatusExpired
	case item.ExpiresWithin(now, expiryWarningDays):
		return StatusExpiringSoon
	case item.CurrentQuantity <= minStockLevel:
		return StatusLowStock
	default:
		return StatusActive
	}
}

// DayOf truncates t to midnight in its own location. Expiry and numbering
// rules operate on calendar days, not instants.
func DayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
