package stock

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hpratama/resellhub-backend/pkg/db/models"
	"github.com/hpratama/resellhub-backend/pkg/enums"
	pkgerrors "github.com/hpratama/resellhub-backend/pkg/errors"
	"github.com/hpratama/resellhub-backend/pkg/types"
)

func setupStockTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:stock_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS warehouse_stocks (
  product_id TEXT PRIMARY KEY,
  quantity INTEGER NOT NULL DEFAULT 0,
  last_restocked DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (g gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.Transaction(fn)
}

func seedStock(t *testing.T, db *gorm.DB, productID uuid.UUID, qty int) {
	t.Helper()
	require.NoError(t, db.Create(&models.WarehouseStock{ProductID: productID, Quantity: qty}).Error)
}

func stockQty(t *testing.T, db *gorm.DB, productID uuid.UUID) int {
	t.Helper()
	var row models.WarehouseStock
	require.NoError(t, db.Where("product_id = ?", productID).First(&row).Error)
	return row.Quantity
}

func newStockService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(gormTxRunner{db: db}, NewRepository(db), nil)
	require.NoError(t, err)
	return svc
}

func TestReserve_DecrementsEachLine(t *testing.T) {
	db := setupStockTestDB(t)
	svc := newStockService(t, db)

	productA := uuid.New()
	productB := uuid.New()
	seedStock(t, db, productA, 10)
	seedStock(t, db, productB, 5)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(context.Background(), tx, []ReservationRequest{
			{ProductID: productA, Quantity: 4},
			{ProductID: productB, Quantity: 5},
		})
	})
	require.NoError(t, err)

	assert.Equal(t, 6, stockQty(t, db, productA))
	assert.Equal(t, 0, stockQty(t, db, productB))
}

func TestReserve_InsufficientStockAbortsWholeBatch(t *testing.T) {
	db := setupStockTestDB(t)
	svc := newStockService(t, db)

	productA := uuid.New()
	productB := uuid.New()
	seedStock(t, db, productA, 10)
	seedStock(t, db, productB, 1)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(context.Background(), tx, []ReservationRequest{
			{ProductID: productA, Quantity: 4},
			{ProductID: productB, Quantity: 2},
		})
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())

	// rollback leaves both rows untouched
	assert.Equal(t, 10, stockQty(t, db, productA))
	assert.Equal(t, 1, stockQty(t, db, productB))
}

func TestReserve_UnknownProductIsNotFound(t *testing.T) {
	db := setupStockTestDB(t)
	svc := newStockService(t, db)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(context.Background(), tx, []ReservationRequest{
			{ProductID: uuid.New(), Quantity: 1},
		})
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestReserve_RejectsNonPositiveQuantity(t *testing.T) {
	db := setupStockTestDB(t)
	svc := newStockService(t, db)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(context.Background(), tx, []ReservationRequest{
			{ProductID: uuid.New(), Quantity: 0},
		})
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestRelease_RestoresQuantity(t *testing.T) {
	db := setupStockTestDB(t)
	svc := newStockService(t, db)

	product := uuid.New()
	seedStock(t, db, product, 3)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Release(context.Background(), tx, product, 4)
	})
	require.NoError(t, err)
	assert.Equal(t, 7, stockQty(t, db, product))
}

func TestRelease_UnknownProductIsNotFound(t *testing.T) {
	db := setupStockTestDB(t)
	svc := newStockService(t, db)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Release(context.Background(), tx, uuid.New(), 1)
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestRestock_RequiresAdmin(t *testing.T) {
	db := setupStockTestDB(t)
	svc := newStockService(t, db)

	_, err := svc.Restock(context.Background(), RestockInput{
		Actor:     types.Actor{ID: uuid.New(), Role: enums.ActorRoleReseller},
		ProductID: uuid.New(),
		Quantity:  5,
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())
}

func TestRestock_IncrementsAndStampsTimestamp(t *testing.T) {
	db := setupStockTestDB(t)
	svc := newStockService(t, db)

	product := uuid.New()
	seedStock(t, db, product, 2)

	row, err := svc.Restock(context.Background(), RestockInput{
		Actor:     types.Actor{ID: uuid.New(), Role: enums.ActorRoleAdmin},
		ProductID: product,
		Quantity:  8,
	})
	require.NoError(t, err)
	assert.Equal(t, 10, row.Quantity)
	assert.NotNil(t, row.LastRestocked)
}

func TestRestock_CreatesMissingRow(t *testing.T) {
	db := setupStockTestDB(t)
	svc := newStockService(t, db)

	product := uuid.New()
	row, err := svc.Restock(context.Background(), RestockInput{
		Actor:     types.Actor{ID: uuid.New(), Role: enums.ActorRoleAdmin},
		ProductID: product,
		Quantity:  6,
	})
	require.NoError(t, err)
	assert.Equal(t, 6, row.Quantity)
	assert.Equal(t, 6, stockQty(t, db, product))
}
