package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Supplier represents a vendor that batches are received from
type Supplier struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name          string         `gorm:"type:varchar(255);not null" json:"name"`
	TaxCode       string         `gorm:"type:varchar(50)" json:"tax_code"`
	ContactPerson string         `gorm:"type:varchar(255)" json:"contact_person"`
	Phone         string         `gorm:"type:varchar(50)" json:"phone"`
	Email         string         `gorm:"type:varchar(255)" json:"email"`
	Address       string         `gorm:"type:text" json:"address"`
	IsActive      bool           `gorm:"default:true" json:"is_active"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// PurchaseOrderStatus enum constants
const (
	PurchaseOrderStatusOpen     = "OPEN"
	PurchaseOrderStatusReceived = "RECEIVED"
	PurchaseOrderStatusClosed   = "CLOSED"
)

// PurchaseOrder is what was ordered from a supplier. Batch receipt validates
// received quantities against its lines; the order itself is read-only here.
type PurchaseOrder struct {
	ID         uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderCode  string              `gorm:"type:varchar(100);uniqueIndex;not null" json:"order_code"`
	SupplierID uuid.UUID           `gorm:"type:uuid;not null;index" json:"supplier_id"`
	Supplier   *Supplier           `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	Status     string              `gorm:"type:varchar(20);not null;default:'OPEN'" json:"status"`
	Note       string              `gorm:"type:text" json:"note"`
	Items      []PurchaseOrderItem `gorm:"foreignKey:PurchaseOrderID" json:"items"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// PurchaseOrderItem is a single ordered line
type PurchaseOrderItem struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PurchaseOrderID uuid.UUID       `gorm:"type:uuid;not null;index" json:"purchase_order_id"`
	ProductID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	Product         *Product        `gorm:"foreignKey:ProductID" json:"-"`
	OrderedQuantity int             `gorm:"type:int;not null" json:"ordered_quantity"`
	UnitCost        decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"unit_cost"`
}
