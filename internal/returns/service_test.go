package returns

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hpratama/resellhub-backend/internal/resellerstock"
	"github.com/hpratama/resellhub-backend/internal/stock"
	"github.com/hpratama/resellhub-backend/pkg/db/models"
	"github.com/hpratama/resellhub-backend/pkg/enums"
	pkgerrors "github.com/hpratama/resellhub-backend/pkg/errors"
	"github.com/hpratama/resellhub-backend/pkg/logger"
	"github.com/hpratama/resellhub-backend/pkg/outbox"
	"github.com/hpratama/resellhub-backend/pkg/types"
)

func setupReturnsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:returns_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  reseller_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  total_amount NUMERIC NOT NULL DEFAULT 0,
  order_date DATETIME NOT NULL,
  notes TEXT,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS order_lines (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  subtotal NUMERIC NOT NULL,
  created_at DATETIME
);
CREATE TABLE IF NOT EXISTS warehouse_stocks (
  product_id TEXT PRIMARY KEY,
  quantity INTEGER NOT NULL DEFAULT 0,
  last_restocked DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS reseller_stocks (
  id TEXT PRIMARY KEY,
  reseller_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (reseller_id, product_id)
);
CREATE TABLE IF NOT EXISTS return_requests (
  id TEXT PRIMARY KEY,
  reseller_id TEXT NOT NULL,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  reason TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  request_date DATETIME NOT NULL,
  processed_date DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  audience TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
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

func newReturnService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	return newReturnServiceWithRepo(t, db, NewRepository(db))
}

func newReturnServiceWithRepo(t *testing.T, db *gorm.DB, repo Repository) Service {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	runner := gormTxRunner{db: db}
	events := outbox.NewService(outbox.NewRepository(db), logg)

	stockSvc, err := stock.NewService(runner, stock.NewRepository(db), nil)
	require.NoError(t, err)
	resellerStockSvc, err := resellerstock.NewService(resellerstock.NewRepository(db), logg, nil)
	require.NoError(t, err)

	svc, err := NewService(runner, repo, resellerStockSvc, stockSvc, events)
	require.NoError(t, err)
	return svc
}

// staleReturnRepo hands back an outdated request row on its first read, the
// way a second decision sees the world before the first one commits. Later
// reads go to the database.
type staleReturnRepo struct {
	Repository
	stale models.ReturnRequest
	used  *bool
}

func (r staleReturnRepo) WithTx(tx *gorm.DB) Repository {
	return staleReturnRepo{Repository: r.Repository.WithTx(tx), stale: r.stale, used: r.used}
}

func (r staleReturnRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	if !*r.used {
		*r.used = true
		row := r.stale
		return &row, nil
	}
	return r.Repository.GetByID(ctx, id)
}

type returnFixture struct {
	resellerID uuid.UUID
	productID  uuid.UUID
	orderID    uuid.UUID
}

// seedDeliveredOrder builds a delivered order with one line plus the ledger
// rows delivery would have produced.
func seedDeliveredOrder(t *testing.T, db *gorm.DB, orderQty, onHand, warehouseQty int) returnFixture {
	t.Helper()

	f := returnFixture{
		resellerID: uuid.New(),
		productID:  uuid.New(),
		orderID:    uuid.New(),
	}
	price := decimal.RequireFromString("25.00")
	order := models.Order{
		ID:          f.orderID,
		ResellerID:  f.resellerID,
		Status:      enums.OrderStatusDelivered,
		TotalAmount: price.Mul(decimal.NewFromInt(int64(orderQty))),
		OrderDate:   time.Now().UTC(),
		Lines: []models.OrderLine{{
			ID:        uuid.New(),
			OrderID:   f.orderID,
			ProductID: f.productID,
			Quantity:  orderQty,
			UnitPrice: price,
			Subtotal:  price.Mul(decimal.NewFromInt(int64(orderQty))),
		}},
	}
	require.NoError(t, db.Create(&order).Error)
	require.NoError(t, db.Create(&models.WarehouseStock{ProductID: f.productID, Quantity: warehouseQty}).Error)
	if onHand > 0 {
		require.NoError(t, db.Create(&models.ResellerStock{
			ID:         uuid.New(),
			ResellerID: f.resellerID,
			ProductID:  f.productID,
			Quantity:   onHand,
		}).Error)
	}
	return f
}

func resellerBalance(t *testing.T, db *gorm.DB, resellerID, productID uuid.UUID) int {
	t.Helper()
	var row models.ResellerStock
	require.NoError(t, db.Where("reseller_id = ? AND product_id = ?", resellerID, productID).First(&row).Error)
	return row.Quantity
}

func warehouseBalance(t *testing.T, db *gorm.DB, productID uuid.UUID) int {
	t.Helper()
	var row models.WarehouseStock
	require.NoError(t, db.Where("product_id = ?", productID).First(&row).Error)
	return row.Quantity
}

func resellerActor(id uuid.UUID) types.Actor {
	return types.Actor{ID: id, Role: enums.ActorRoleReseller}
}

func adminActor() types.Actor {
	return types.Actor{ID: uuid.New(), Role: enums.ActorRoleAdmin}
}

func TestCreate_FilesPendingReturn(t *testing.T) {
	db := setupReturnsTestDB(t)
	svc := newReturnService(t, db)
	f := seedDeliveredOrder(t, db, 5, 5, 0)

	request, err := svc.Create(context.Background(), CreateInput{
		Actor:     resellerActor(f.resellerID),
		OrderID:   f.orderID,
		ProductID: f.productID,
		Quantity:  2,
		Reason:    "damaged in transit",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.ReturnStatusPending, request.Status)
	assert.Nil(t, request.ProcessedDate)

	// no stock moves until the decision
	assert.Equal(t, 5, resellerBalance(t, db, f.resellerID, f.productID))
	assert.Equal(t, 0, warehouseBalance(t, db, f.productID))
}

func TestCreate_RejectsUndeliveredOrder(t *testing.T) {
	db := setupReturnsTestDB(t)
	svc := newReturnService(t, db)
	f := seedDeliveredOrder(t, db, 5, 5, 0)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", f.orderID).
		Update("status", enums.OrderStatusApproved).Error)

	_, err := svc.Create(context.Background(), CreateInput{
		Actor:     resellerActor(f.resellerID),
		OrderID:   f.orderID,
		ProductID: f.productID,
		Quantity:  1,
		Reason:    "wrong item",
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestCreate_RejectsForeignOrder(t *testing.T) {
	db := setupReturnsTestDB(t)
	svc := newReturnService(t, db)
	f := seedDeliveredOrder(t, db, 5, 5, 0)

	_, err := svc.Create(context.Background(), CreateInput{
		Actor:     resellerActor(uuid.New()),
		OrderID:   f.orderID,
		ProductID: f.productID,
		Quantity:  1,
		Reason:    "wrong item",
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())
}

func TestCreate_RejectsProductNotOnOrder(t *testing.T) {
	db := setupReturnsTestDB(t)
	svc := newReturnService(t, db)
	f := seedDeliveredOrder(t, db, 5, 5, 0)

	_, err := svc.Create(context.Background(), CreateInput{
		Actor:     resellerActor(f.resellerID),
		OrderID:   f.orderID,
		ProductID: uuid.New(),
		Quantity:  1,
		Reason:    "wrong item",
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestCreate_RejectsWhenBalanceTooLow(t *testing.T) {
	db := setupReturnsTestDB(t)
	svc := newReturnService(t, db)
	f := seedDeliveredOrder(t, db, 5, 1, 0)

	_, err := svc.Create(context.Background(), CreateInput{
		Actor:     resellerActor(f.resellerID),
		OrderID:   f.orderID,
		ProductID: f.productID,
		Quantity:  3,
		Reason:    "overstocked",
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())
}

func TestCreate_RequiresReason(t *testing.T) {
	db := setupReturnsTestDB(t)
	svc := newReturnService(t, db)

	_, err := svc.Create(context.Background(), CreateInput{
		Actor:     resellerActor(uuid.New()),
		OrderID:   uuid.New(),
		ProductID: uuid.New(),
		Quantity:  1,
		Reason:    "   ",
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func createPendingReturn(t *testing.T, db *gorm.DB, svc Service, f returnFixture, qty int) *models.ReturnRequest {
	t.Helper()
	request, err := svc.Create(context.Background(), CreateInput{
		Actor:     resellerActor(f.resellerID),
		OrderID:   f.orderID,
		ProductID: f.productID,
		Quantity:  qty,
		Reason:    "damaged in transit",
	})
	require.NoError(t, err)
	return request
}

func TestDecide_ApproveMovesBothLedgers(t *testing.T) {
	db := setupReturnsTestDB(t)
	svc := newReturnService(t, db)
	f := seedDeliveredOrder(t, db, 5, 5, 10)
	request := createPendingReturn(t, db, svc, f, 3)

	decided, err := svc.Decide(context.Background(), DecideInput{
		Actor:    adminActor(),
		ReturnID: request.ID,
		Decision: enums.DecisionApprove,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.ReturnStatusApproved, decided.Status)
	require.NotNil(t, decided.ProcessedDate)

	assert.Equal(t, 2, resellerBalance(t, db, f.resellerID, f.productID))
	assert.Equal(t, 13, warehouseBalance(t, db, f.productID))

	var events []models.OutboxEvent
	require.NoError(t, db.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventReturnStatus, events[0].EventType)
	assert.Equal(t, enums.AudienceReseller, events[0].Audience)
}

func TestDecide_RejectLeavesLedgersAlone(t *testing.T) {
	db := setupReturnsTestDB(t)
	svc := newReturnService(t, db)
	f := seedDeliveredOrder(t, db, 5, 5, 10)
	request := createPendingReturn(t, db, svc, f, 3)

	decided, err := svc.Decide(context.Background(), DecideInput{
		Actor:    adminActor(),
		ReturnID: request.ID,
		Decision: enums.DecisionReject,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.ReturnStatusRejected, decided.Status)
	require.NotNil(t, decided.ProcessedDate)

	assert.Equal(t, 5, resellerBalance(t, db, f.resellerID, f.productID))
	assert.Equal(t, 10, warehouseBalance(t, db, f.productID))
}

func TestDecide_SameDecisionIsNoOp(t *testing.T) {
	db := setupReturnsTestDB(t)
	svc := newReturnService(t, db)
	f := seedDeliveredOrder(t, db, 5, 5, 10)
	request := createPendingReturn(t, db, svc, f, 3)
	admin := adminActor()

	_, err := svc.Decide(context.Background(), DecideInput{
		Actor: admin, ReturnID: request.ID, Decision: enums.DecisionApprove,
	})
	require.NoError(t, err)

	decided, err := svc.Decide(context.Background(), DecideInput{
		Actor: admin, ReturnID: request.ID, Decision: enums.DecisionApprove,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.ReturnStatusApproved, decided.Status)

	// the second call must not debit or release again
	assert.Equal(t, 2, resellerBalance(t, db, f.resellerID, f.productID))
	assert.Equal(t, 13, warehouseBalance(t, db, f.productID))
}

func TestDecide_ConcurrentApproveDebitsOnce(t *testing.T) {
	db := setupReturnsTestDB(t)
	svc := newReturnService(t, db)
	f := seedDeliveredOrder(t, db, 5, 5, 10)
	request := createPendingReturn(t, db, svc, f, 3)
	admin := adminActor()

	_, err := svc.Decide(context.Background(), DecideInput{
		Actor: admin, ReturnID: request.ID, Decision: enums.DecisionApprove,
	})
	require.NoError(t, err)

	var eventsBefore int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&eventsBefore).Error)

	// A second approval that read the request as pending before the first one
	// committed. The guarded update loses and must not debit or release again.
	stale := *request
	stale.Status = enums.ReturnStatusPending
	stale.ProcessedDate = nil
	used := false
	staleSvc := newReturnServiceWithRepo(t, db, staleReturnRepo{
		Repository: NewRepository(db),
		stale:      stale,
		used:       &used,
	})

	decided, err := staleSvc.Decide(context.Background(), DecideInput{
		Actor: admin, ReturnID: request.ID, Decision: enums.DecisionApprove,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.ReturnStatusApproved, decided.Status)

	assert.Equal(t, 2, resellerBalance(t, db, f.resellerID, f.productID))
	assert.Equal(t, 13, warehouseBalance(t, db, f.productID))

	var eventsAfter int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&eventsAfter).Error)
	assert.Equal(t, eventsBefore, eventsAfter)
}

func TestDecide_ConflictingDecisionFails(t *testing.T) {
	db := setupReturnsTestDB(t)
	svc := newReturnService(t, db)
	f := seedDeliveredOrder(t, db, 5, 5, 10)
	request := createPendingReturn(t, db, svc, f, 3)
	admin := adminActor()

	_, err := svc.Decide(context.Background(), DecideInput{
		Actor: admin, ReturnID: request.ID, Decision: enums.DecisionReject,
	})
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), DecideInput{
		Actor: admin, ReturnID: request.ID, Decision: enums.DecisionApprove,
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestDecide_RequiresAdmin(t *testing.T) {
	db := setupReturnsTestDB(t)
	svc := newReturnService(t, db)

	_, err := svc.Decide(context.Background(), DecideInput{
		Actor:    resellerActor(uuid.New()),
		ReturnID: uuid.New(),
		Decision: enums.DecisionApprove,
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())
}

func TestGetByID_EnforcesOwnership(t *testing.T) {
	db := setupReturnsTestDB(t)
	svc := newReturnService(t, db)
	f := seedDeliveredOrder(t, db, 5, 5, 0)
	request := createPendingReturn(t, db, svc, f, 1)

	got, err := svc.GetByID(context.Background(), resellerActor(f.resellerID), request.ID)
	require.NoError(t, err)
	assert.Equal(t, request.ID, got.ID)

	_, err = svc.GetByID(context.Background(), resellerActor(uuid.New()), request.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())
}
