package returns

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hpratama/resellhub-backend/pkg/db/models"
	"github.com/hpratama/resellhub-backend/pkg/enums"
)

// Repository manages persistence for return requests and the order rows
// return validation reads.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.ReturnRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error)
	ListByReseller(ctx context.Context, resellerID uuid.UUID) ([]models.ReturnRequest, error)
	ListByStatus(ctx context.Context, status *enums.ReturnStatus) ([]models.ReturnRequest, error)
	UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to enums.ReturnStatus, processedAt time.Time) (int64, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a return request repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.ReturnRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	var row models.ReturnRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListByReseller(ctx context.Context, resellerID uuid.UUID) ([]models.ReturnRequest, error) {
	var rows []models.ReturnRequest
	err := r.db.WithContext(ctx).
		Where("reseller_id = ?", resellerID).
		Order("request_date DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListByStatus(ctx context.Context, status *enums.ReturnStatus) ([]models.ReturnRequest, error) {
	query := r.db.WithContext(ctx).Order("request_date DESC")
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var rows []models.ReturnRequest
	err := query.Find(&rows).Error
	return rows, err
}

// UpdateStatusFrom decides a return only from the expected status, stamping
// the processing time in the same guarded statement. Zero affected rows means
// a concurrent decision won.
func (r *repository) UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to enums.ReturnStatus, processedAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.ReturnRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "processed_date": processedAt})
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
