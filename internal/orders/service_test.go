package orders

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hpratama/resellhub-backend/internal/resellerstock"
	"github.com/hpratama/resellhub-backend/internal/shipping"
	"github.com/hpratama/resellhub-backend/internal/stock"
	"github.com/hpratama/resellhub-backend/pkg/db/models"
	"github.com/hpratama/resellhub-backend/pkg/enums"
	pkgerrors "github.com/hpratama/resellhub-backend/pkg/errors"
	"github.com/hpratama/resellhub-backend/pkg/logger"
	"github.com/hpratama/resellhub-backend/pkg/outbox"
	"github.com/hpratama/resellhub-backend/pkg/types"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:orders_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  category TEXT NOT NULL DEFAULT '',
  brand TEXT NOT NULL DEFAULT '',
  model TEXT,
  price NUMERIC NOT NULL,
  image_url TEXT,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS resellers (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  phone TEXT,
  address TEXT,
  created_at DATETIME,
  updated_at DATETIME
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
CREATE TABLE IF NOT EXISTS shipments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  reseller_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'preparing',
  shipping_method TEXT NOT NULL DEFAULT 'standard',
  tracking_number TEXT,
  carrier TEXT,
  shipping_date DATETIME,
  estimated_delivery DATETIME,
  actual_delivery DATETIME,
  notes TEXT,
  created_at DATETIME,
  updated_at DATETIME
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

func newOrderService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	return newOrderServiceWithRepo(t, db, NewRepository(db))
}

func newOrderServiceWithRepo(t *testing.T, db *gorm.DB, repo Repository) Service {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	runner := gormTxRunner{db: db}
	events := outbox.NewService(outbox.NewRepository(db), logg)

	stockSvc, err := stock.NewService(runner, stock.NewRepository(db), nil)
	require.NoError(t, err)
	resellerStockSvc, err := resellerstock.NewService(resellerstock.NewRepository(db), logg, nil)
	require.NoError(t, err)
	shippingSvc, err := shipping.NewService(runner, shipping.NewRepository(db), resellerStockSvc, events)
	require.NoError(t, err)

	svc, err := NewService(runner, repo, stockSvc, shippingSvc, events)
	require.NoError(t, err)
	return svc
}

// staleOrderRepo hands back an outdated order row on its first read, the way
// a second decision sees the world before the first one commits. Later reads
// go to the database.
type staleOrderRepo struct {
	Repository
	stale models.Order
	used  *bool
}

func (r staleOrderRepo) WithTx(tx *gorm.DB) Repository {
	return staleOrderRepo{Repository: r.Repository.WithTx(tx), stale: r.stale, used: r.used}
}

func (r staleOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if !*r.used {
		*r.used = true
		row := r.stale
		return &row, nil
	}
	return r.Repository.GetByID(ctx, id)
}

func seedProduct(t *testing.T, db *gorm.DB, price string) uuid.UUID {
	t.Helper()
	p := models.Product{
		ID:    uuid.New(),
		Name:  "test product",
		Price: decimal.RequireFromString(price),
	}
	require.NoError(t, db.Create(&p).Error)
	return p.ID
}

func seedReseller(t *testing.T, db *gorm.DB) uuid.UUID {
	t.Helper()
	r := models.Reseller{
		ID:    uuid.New(),
		Name:  "Toko Maju",
		Email: fmt.Sprintf("%s@example.com", uuid.NewString()),
	}
	require.NoError(t, db.Create(&r).Error)
	return r.ID
}

func seedWarehouse(t *testing.T, db *gorm.DB, productID uuid.UUID, qty int) {
	t.Helper()
	require.NoError(t, db.Create(&models.WarehouseStock{ProductID: productID, Quantity: qty}).Error)
}

func warehouseQty(t *testing.T, db *gorm.DB, productID uuid.UUID) int {
	t.Helper()
	var row models.WarehouseStock
	require.NoError(t, db.Where("product_id = ?", productID).First(&row).Error)
	return row.Quantity
}

func outboxRows(t *testing.T, db *gorm.DB) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, db.Order("created_at ASC").Find(&rows).Error)
	return rows
}

func resellerActor(id uuid.UUID) types.Actor {
	return types.Actor{ID: id, Role: enums.ActorRoleReseller}
}

func adminActor() types.Actor {
	return types.Actor{ID: uuid.New(), Role: enums.ActorRoleAdmin}
}

func TestCreate_ReservesStockAndSnapshotsPrices(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrderService(t, db)

	reseller := seedReseller(t, db)
	productA := seedProduct(t, db, "100.50")
	productB := seedProduct(t, db, "20.00")
	seedWarehouse(t, db, productA, 10)
	seedWarehouse(t, db, productB, 5)

	order, err := svc.Create(context.Background(), CreateInput{
		Actor: resellerActor(reseller),
		Lines: []LineInput{
			{ProductID: productA, Quantity: 2},
			{ProductID: productB, Quantity: 3},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, order)

	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("261.00")),
		"got total %s", order.TotalAmount)
	require.Len(t, order.Lines, 2)

	assert.Equal(t, 8, warehouseQty(t, db, productA))
	assert.Equal(t, 2, warehouseQty(t, db, productB))

	events := outboxRows(t, db)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventNewOrder, events[0].EventType)
	assert.Equal(t, enums.AudienceAdmin, events[0].Audience)
	assert.Equal(t, order.ID, events[0].AggregateID)
}

func TestCreate_InsufficientStockLeavesNoTrace(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrderService(t, db)

	reseller := seedReseller(t, db)
	productA := seedProduct(t, db, "10.00")
	productB := seedProduct(t, db, "10.00")
	seedWarehouse(t, db, productA, 10)
	seedWarehouse(t, db, productB, 1)

	_, err := svc.Create(context.Background(), CreateInput{
		Actor: resellerActor(reseller),
		Lines: []LineInput{
			{ProductID: productA, Quantity: 4},
			{ProductID: productB, Quantity: 2},
		},
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())

	assert.Equal(t, 10, warehouseQty(t, db, productA))
	assert.Equal(t, 1, warehouseQty(t, db, productB))

	var orderCount int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orderCount).Error)
	assert.Zero(t, orderCount)
	assert.Empty(t, outboxRows(t, db))
}

func TestCreate_UnknownProductIsNotFound(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrderService(t, db)

	_, err := svc.Create(context.Background(), CreateInput{
		Actor: resellerActor(seedReseller(t, db)),
		Lines: []LineInput{{ProductID: uuid.New(), Quantity: 1}},
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestCreate_RequiresResellerRole(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrderService(t, db)

	_, err := svc.Create(context.Background(), CreateInput{
		Actor: adminActor(),
		Lines: []LineInput{{ProductID: uuid.New(), Quantity: 1}},
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())
}

func TestCreate_RejectsDuplicateProductLines(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrderService(t, db)

	product := uuid.New()
	_, err := svc.Create(context.Background(), CreateInput{
		Actor: resellerActor(uuid.New()),
		Lines: []LineInput{
			{ProductID: product, Quantity: 1},
			{ProductID: product, Quantity: 2},
		},
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func createPendingOrder(t *testing.T, db *gorm.DB, svc Service, qty int) (*models.Order, uuid.UUID) {
	t.Helper()
	reseller := seedReseller(t, db)
	product := seedProduct(t, db, "15.00")
	seedWarehouse(t, db, product, qty+5)
	order, err := svc.Create(context.Background(), CreateInput{
		Actor: resellerActor(reseller),
		Lines: []LineInput{{ProductID: product, Quantity: qty}},
	})
	require.NoError(t, err)
	return order, product
}

func TestDecide_ApproveOpensShipment(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrderService(t, db)

	order, _ := createPendingOrder(t, db, svc, 3)

	decided, err := svc.Decide(context.Background(), DecideInput{
		Actor:    adminActor(),
		OrderID:  order.ID,
		Decision: enums.DecisionApprove,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusApproved, decided.Status)

	var shipment models.Shipment
	require.NoError(t, db.Where("order_id = ?", order.ID).First(&shipment).Error)
	assert.Equal(t, enums.ShippingStatusPreparing, shipment.Status)
	assert.Equal(t, order.ResellerID, shipment.ResellerID)

	events := outboxRows(t, db)
	require.Len(t, events, 2)
	assert.Equal(t, enums.EventOrderUpdated, events[1].EventType)
	assert.Equal(t, enums.AudienceReseller, events[1].Audience)
}

func TestDecide_RejectReleasesStock(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrderService(t, db)

	order, product := createPendingOrder(t, db, svc, 3)
	before := warehouseQty(t, db, product)

	decided, err := svc.Decide(context.Background(), DecideInput{
		Actor:    adminActor(),
		OrderID:  order.ID,
		Decision: enums.DecisionReject,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusRejected, decided.Status)
	assert.Equal(t, before+3, warehouseQty(t, db, product))

	var shipmentCount int64
	require.NoError(t, db.Model(&models.Shipment{}).Count(&shipmentCount).Error)
	assert.Zero(t, shipmentCount)
}

func TestDecide_ConcurrentRejectReleasesOnce(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrderService(t, db)

	order, product := createPendingOrder(t, db, svc, 3)
	admin := adminActor()

	_, err := svc.Decide(context.Background(), DecideInput{
		Actor: admin, OrderID: order.ID, Decision: enums.DecisionReject,
	})
	require.NoError(t, err)
	released := warehouseQty(t, db, product)
	eventsBefore := len(outboxRows(t, db))

	// A second rejection that read the order as pending before the first one
	// committed. The guarded update loses and must not release again.
	stale := *order
	stale.Status = enums.OrderStatusPending
	used := false
	staleSvc := newOrderServiceWithRepo(t, db, staleOrderRepo{
		Repository: NewRepository(db),
		stale:      stale,
		used:       &used,
	})

	decided, err := staleSvc.Decide(context.Background(), DecideInput{
		Actor: admin, OrderID: order.ID, Decision: enums.DecisionReject,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusRejected, decided.Status)

	assert.Equal(t, released, warehouseQty(t, db, product))
	assert.Len(t, outboxRows(t, db), eventsBefore)
}

func TestDecide_SameDecisionIsNoOp(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrderService(t, db)

	order, _ := createPendingOrder(t, db, svc, 2)
	admin := adminActor()

	_, err := svc.Decide(context.Background(), DecideInput{
		Actor: admin, OrderID: order.ID, Decision: enums.DecisionApprove,
	})
	require.NoError(t, err)
	eventsBefore := len(outboxRows(t, db))

	decided, err := svc.Decide(context.Background(), DecideInput{
		Actor: admin, OrderID: order.ID, Decision: enums.DecisionApprove,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusApproved, decided.Status)
	assert.Len(t, outboxRows(t, db), eventsBefore)

	var shipmentCount int64
	require.NoError(t, db.Model(&models.Shipment{}).Where("order_id = ?", order.ID).Count(&shipmentCount).Error)
	assert.Equal(t, int64(1), shipmentCount)
}

func TestDecide_ConflictingDecisionFails(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrderService(t, db)

	order, product := createPendingOrder(t, db, svc, 2)
	admin := adminActor()

	_, err := svc.Decide(context.Background(), DecideInput{
		Actor: admin, OrderID: order.ID, Decision: enums.DecisionApprove,
	})
	require.NoError(t, err)

	stockBefore := warehouseQty(t, db, product)
	_, err = svc.Decide(context.Background(), DecideInput{
		Actor: admin, OrderID: order.ID, Decision: enums.DecisionReject,
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	assert.Equal(t, stockBefore, warehouseQty(t, db, product))
}

func TestDecide_RequiresAdmin(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrderService(t, db)

	_, err := svc.Decide(context.Background(), DecideInput{
		Actor:    resellerActor(uuid.New()),
		OrderID:  uuid.New(),
		Decision: enums.DecisionApprove,
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())
}

func TestDecide_UnknownOrderIsNotFound(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrderService(t, db)

	_, err := svc.Decide(context.Background(), DecideInput{
		Actor:    adminActor(),
		OrderID:  uuid.New(),
		Decision: enums.DecisionApprove,
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestGetByID_EnforcesOwnership(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrderService(t, db)

	order, _ := createPendingOrder(t, db, svc, 1)

	got, err := svc.GetByID(context.Background(), resellerActor(order.ResellerID), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	got, err = svc.GetByID(context.Background(), adminActor(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = svc.GetByID(context.Background(), resellerActor(uuid.New()), order.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())
}

func TestListForReseller_ReturnsOwnOrdersOnly(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrderService(t, db)

	first, _ := createPendingOrder(t, db, svc, 1)
	createPendingOrder(t, db, svc, 1)

	rows, err := svc.ListForReseller(context.Background(), resellerActor(first.ResellerID))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, first.ID, rows[0].ID)
}

func TestListAll_FiltersByStatus(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrderService(t, db)

	first, _ := createPendingOrder(t, db, svc, 1)
	second, _ := createPendingOrder(t, db, svc, 1)
	_, err := svc.Decide(context.Background(), DecideInput{
		Actor: adminActor(), OrderID: second.ID, Decision: enums.DecisionApprove,
	})
	require.NoError(t, err)

	pending := enums.OrderStatusPending
	rows, err := svc.ListAll(context.Background(), adminActor(), &pending)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, first.ID, rows[0].ID)

	rows, err = svc.ListAll(context.Background(), adminActor(), nil)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
