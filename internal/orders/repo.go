package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hpratama/resellhub-backend/pkg/db/models"
	"github.com/hpratama/resellhub-backend/pkg/enums"
)

// Repository manages persistence for orders and the reference rows order
// creation reads.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByReseller(ctx context.Context, resellerID uuid.UUID) ([]models.Order, error)
	ListByStatus(ctx context.Context, status *enums.OrderStatus) ([]models.Order, error)
	UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (int64, error)
	GetProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	GetReseller(ctx context.Context, id uuid.UUID) (*models.Reseller, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var row models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListByReseller(ctx context.Context, resellerID uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("reseller_id = ?", resellerID).
		Order("order_date DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListByStatus(ctx context.Context, status *enums.OrderStatus) ([]models.Order, error) {
	query := r.db.WithContext(ctx).Preload("Lines").Order("order_date DESC")
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var rows []models.Order
	err := query.Find(&rows).Error
	return rows, err
}

// UpdateStatusFrom advances an order only from the expected status. The
// guarded statement lets exactly one concurrent decision win; callers check
// the affected row count.
func (r *repository) UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to})
	return res.RowsAffected, res.Error
}

func (r *repository) GetProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&rows).Error
	return rows, err
}

func (r *repository) GetReseller(ctx context.Context, id uuid.UUID) (*models.Reseller, error) {
	var row models.Reseller
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}
