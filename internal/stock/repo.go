package stock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hpratama/resellhub-backend/pkg/db/models"
)

// Repository manages persistence for warehouse stock rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, productID uuid.UUID) (*models.WarehouseStock, error)
	DecrementIfAvailable(ctx context.Context, productID uuid.UUID, qty int) (int64, error)
	Increment(ctx context.Context, productID uuid.UUID, qty int) (int64, error)
	IncrementRestocked(ctx context.Context, productID uuid.UUID, qty int, at time.Time) (int64, error)
	Create(ctx context.Context, row *models.WarehouseStock) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a warehouse stock repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Get(ctx context.Context, productID uuid.UUID) (*models.WarehouseStock, error) {
	var row models.WarehouseStock
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// DecrementIfAvailable applies the decrement only when the row holds enough
// quantity. The guard and the write are one statement, so concurrent callers
// cannot both pass on the last units.
func (r *repository) DecrementIfAvailable(ctx context.Context, productID uuid.UUID, qty int) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.WarehouseStock{}).
		Where("product_id = ? AND quantity >= ?", productID, qty).
		Updates(map[string]any{"quantity": gorm.Expr("quantity - ?", qty)})
	return res.RowsAffected, res.Error
}

func (r *repository) Increment(ctx context.Context, productID uuid.UUID, qty int) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.WarehouseStock{}).
		Where("product_id = ?", productID).
		Updates(map[string]any{"quantity": gorm.Expr("quantity + ?", qty)})
	return res.RowsAffected, res.Error
}

func (r *repository) IncrementRestocked(ctx context.Context, productID uuid.UUID, qty int, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.WarehouseStock{}).
		Where("product_id = ?", productID).
		Updates(map[string]any{
			"quantity":       gorm.Expr("quantity + ?", qty),
			"last_restocked": at,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) Create(ctx context.Context, row *models.WarehouseStock) error {
	return r.db.WithContext(ctx).Create(row).Error
}
