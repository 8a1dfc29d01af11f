package resellerstock

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hpratama/resellhub-backend/pkg/db/models"
)

// Repository manages persistence for per-reseller stock balances.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, resellerID, productID uuid.UUID) (*models.ResellerStock, error)
	ListByReseller(ctx context.Context, resellerID uuid.UUID) ([]models.ResellerStock, error)
	UpsertCredit(ctx context.Context, resellerID, productID uuid.UUID, qty int) error
	DecrementIfAvailable(ctx context.Context, resellerID, productID uuid.UUID, qty int) (int64, error)
	SetZero(ctx context.Context, resellerID, productID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reseller stock repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Get(ctx context.Context, resellerID, productID uuid.UUID) (*models.ResellerStock, error) {
	var row models.ResellerStock
	err := r.db.WithContext(ctx).
		Where("reseller_id = ? AND product_id = ?", resellerID, productID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListByReseller(ctx context.Context, resellerID uuid.UUID) ([]models.ResellerStock, error) {
	var rows []models.ResellerStock
	err := r.db.WithContext(ctx).
		Where("reseller_id = ?", resellerID).
		Order("product_id ASC").
		Find(&rows).Error
	return rows, err
}

// UpsertCredit increments the balance, creating the row lazily on the first
// delivery for a reseller/product pair.
func (r *repository) UpsertCredit(ctx context.Context, resellerID, productID uuid.UUID, qty int) error {
	row := models.ResellerStock{
		ID:         uuid.New(),
		ResellerID: resellerID,
		ProductID:  productID,
		Quantity:   qty,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "reseller_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"quantity": gorm.Expr("reseller_stocks.quantity + ?", qty),
		}),
	}).Create(&row).Error
}

func (r *repository) DecrementIfAvailable(ctx context.Context, resellerID, productID uuid.UUID, qty int) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.ResellerStock{}).
		Where("reseller_id = ? AND product_id = ? AND quantity >= ?", resellerID, productID, qty).
		Updates(map[string]any{"quantity": gorm.Expr("quantity - ?", qty)})
	return res.RowsAffected, res.Error
}

func (r *repository) SetZero(ctx context.Context, resellerID, productID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.ResellerStock{}).
		Where("reseller_id = ? AND product_id = ?", resellerID, productID).
		Updates(map[string]any{"quantity": 0}).Error
}
