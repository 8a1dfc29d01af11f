package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/hpratama/resellhub-backend/pkg/enums"
)

// ReturnRequest records a reseller asking to send delivered goods back to the
// warehouse. Immutable once it leaves pending.
type ReturnRequest struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ResellerID    uuid.UUID          `gorm:"column:reseller_id;type:uuid;not null"`
	OrderID       uuid.UUID          `gorm:"column:order_id;type:uuid;not null"`
	ProductID     uuid.UUID          `gorm:"column:product_id;type:uuid;not null"`
	Quantity      int                `gorm:"column:quantity;not null"`
	Reason        string             `gorm:"column:reason;not null"`
	Status        enums.ReturnStatus `gorm:"column:status;type:return_status;not null;default:'pending'"`
	RequestDate   time.Time          `gorm:"column:request_date;not null"`
	ProcessedDate *time.Time         `gorm:"column:processed_date"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
