package models

import (
	"time"

	"github.com/google/uuid"
)

// ResellerStock is the per-reseller owned quantity of a product. Rows are
// created lazily on the first delivery credit.
type ResellerStock struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ResellerID uuid.UUID `gorm:"column:reseller_id;type:uuid;not null;uniqueIndex:idx_reseller_product"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_reseller_product"`
	Quantity   int       `gorm:"column:quantity;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
