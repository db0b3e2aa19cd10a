package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the actor referenced by ledger and audit entries. Authentication
// lives in a separate identity service that issues the JWTs this backend
// verifies; only the reference data needed for audit joins is kept here.
type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Username  string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Email     string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Role      string         `gorm:"type:varchar(50);not null" json:"role"` // admin, manager, cashier
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
