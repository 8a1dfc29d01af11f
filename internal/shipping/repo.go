package shipping

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hpratama/resellhub-backend/pkg/db/models"
	"github.com/hpratama/resellhub-backend/pkg/enums"
)

// Repository manages persistence for shipments and the order rows a shipment
// transition touches. Status transitions are guarded single statements so the
// state check and the write cannot be split by a concurrent transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, shipment *models.Shipment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Shipment, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error)
	ListByReseller(ctx context.Context, resellerID uuid.UUID) ([]models.Shipment, error)
	ListByStatus(ctx context.Context, status *enums.ShippingStatus) ([]models.Shipment, error)
	Save(ctx context.Context, shipment *models.Shipment) error
	MarkStatus(ctx context.Context, id uuid.UUID, from, to enums.ShippingStatus, shippingDate *time.Time) (int64, error)
	MarkDelivered(ctx context.Context, id uuid.UUID, deliveredAt time.Time) (int64, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error
	UpdateOrderStatusFrom(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a shipment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, shipment *models.Shipment) error {
	return r.db.WithContext(ctx).Create(shipment).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Shipment, error) {
	var row models.Shipment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error) {
	var row models.Shipment
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListByReseller(ctx context.Context, resellerID uuid.UUID) ([]models.Shipment, error) {
	var rows []models.Shipment
	err := r.db.WithContext(ctx).
		Where("reseller_id = ?", resellerID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListByStatus(ctx context.Context, status *enums.ShippingStatus) ([]models.Shipment, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var rows []models.Shipment
	err := query.Find(&rows).Error
	return rows, err
}

func (r *repository) Save(ctx context.Context, shipment *models.Shipment) error {
	return r.db.WithContext(ctx).Save(shipment).Error
}

// MarkStatus moves a shipment from one non-terminal status to another in a
// single guarded statement. Zero rows affected means the shipment no longer
// holds the expected status.
func (r *repository) MarkStatus(ctx context.Context, id uuid.UUID, from, to enums.ShippingStatus, shippingDate *time.Time) (int64, error) {
	updates := map[string]any{"status": to}
	if shippingDate != nil {
		updates["shipping_date"] = *shippingDate
	}
	res := r.db.WithContext(ctx).Model(&models.Shipment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// MarkDelivered flips a shipment into the delivered state only if it has not
// been delivered yet. Exactly one caller can win this transition.
func (r *repository) MarkDelivered(ctx context.Context, id uuid.UUID, deliveredAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Shipment{}).
		Where("id = ? AND status <> ?", id, enums.ShippingStatusDelivered).
		Updates(map[string]any{
			"status":          enums.ShippingStatusDelivered,
			"actual_delivery": deliveredAt,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var row models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("id = ?", orderID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repository) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{"status": status}).Error
}

// UpdateOrderStatusFrom advances an order only from the expected status.
func (r *repository) UpdateOrderStatusFrom(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(map[string]any{"status": to})
	return res.RowsAffected, res.Error
}
