package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product represents a sellable item. StockQuantity is a denormalized cache
// of the sum of current_quantity over eligible batch items; the reconciler
// owns it, allocation decisions never trust it.
type Product struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SKU           string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"sku"`
	Name          string          `gorm:"type:varchar(255);not null" json:"name"`
	Unit          string          `gorm:"type:varchar(20)" json:"unit"`
	SalePrice     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"sale_price"`
	MinStockLevel int             `gorm:"type:int;not null;default:0" json:"min_stock_level"`
	MaxStockLevel *int            `gorm:"type:int" json:"max_stock_level"` // Nullable; must be >= min when set
	StockQuantity int             `gorm:"type:int;not null;default:0" json:"stock_quantity"`
	IsActive      bool            `gorm:"default:true" json:"is_active"`
	IsTrackable   bool            `gorm:"default:true" json:"is_trackable"` // false => excluded from stock accounting
	BatchItems    []BatchItem     `gorm:"foreignKey:ProductID" json:"batch_items,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`
}
