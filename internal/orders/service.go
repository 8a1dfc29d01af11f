package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hpratama/resellhub-backend/internal/shipping"
	"github.com/hpratama/resellhub-backend/internal/stock"
	"github.com/hpratama/resellhub-backend/pkg/db/models"
	"github.com/hpratama/resellhub-backend/pkg/enums"
	pkgerrors "github.com/hpratama/resellhub-backend/pkg/errors"
	"github.com/hpratama/resellhub-backend/pkg/outbox"
	"github.com/hpratama/resellhub-backend/pkg/outbox/payloads"
	"github.com/hpratama/resellhub-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service creates orders against warehouse stock and decides pending ones.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Order, error)
	Decide(ctx context.Context, input DecideInput) (*models.Order, error)
	GetByID(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.Order, error)
	ListForReseller(ctx context.Context, actor types.Actor) ([]models.Order, error)
	ListAll(ctx context.Context, actor types.Actor, status *enums.OrderStatus) ([]models.Order, error)
}

// LineInput is one requested product on a new order.
type LineInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// CreateInput places a reseller order. Every line reserves warehouse stock or
// the whole order fails.
type CreateInput struct {
	Actor types.Actor
	Lines []LineInput
	Notes *string
}

// DecideInput applies the administrator verdict on a pending order.
type DecideInput struct {
	Actor    types.Actor
	OrderID  uuid.UUID
	Decision enums.Decision
}

type service struct {
	runner    txRunner
	repo      Repository
	stock     stock.Service
	shipments shipping.Service
	events    eventEmitter
}

// NewService wires the order service.
func NewService(runner txRunner, repo Repository, stockSvc stock.Service, shipments shipping.Service, events eventEmitter) (Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if stockSvc == nil {
		return nil, fmt.Errorf("stock service required")
	}
	if shipments == nil {
		return nil, fmt.Errorf("shipping service required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	return &service{runner: runner, repo: repo, stock: stockSvc, shipments: shipments, events: events}, nil
}

// Create reserves every line, snapshots prices and persists the order in one
// transaction. A shortfall on any line leaves no trace of the order.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.Order, error) {
	if !input.Actor.IsReseller() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "reseller role required")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order needs at least one line")
	}
	productIDs := make([]uuid.UUID, 0, len(input.Lines))
	seen := make(map[uuid.UUID]struct{}, len(input.Lines))
	for _, line := range input.Lines {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
		}
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
		if _, dup := seen[line.ProductID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate product line").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
		seen[line.ProductID] = struct{}{}
		productIDs = append(productIDs, line.ProductID)
	}

	var created *models.Order
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		products, err := repo.GetProducts(ctx, productIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolving products")
		}
		priceByID := make(map[uuid.UUID]decimal.Decimal, len(products))
		for _, p := range products {
			priceByID[p.ID] = p.Price
		}
		for _, id := range productIDs {
			if _, ok := priceByID[id]; !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
					WithDetails(map[string]any{"product_id": id})
			}
		}

		requests := make([]stock.ReservationRequest, 0, len(input.Lines))
		for _, line := range input.Lines {
			requests = append(requests, stock.ReservationRequest{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
			})
		}
		if err := s.stock.Reserve(ctx, tx, requests); err != nil {
			return err
		}

		now := time.Now().UTC()
		order := &models.Order{
			ID:         uuid.New(),
			ResellerID: input.Actor.ID,
			Status:     enums.OrderStatusPending,
			OrderDate:  now,
			Notes:      input.Notes,
		}
		total := decimal.Zero
		for _, line := range input.Lines {
			unitPrice := priceByID[line.ProductID]
			subtotal := unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
			total = total.Add(subtotal)
			order.Lines = append(order.Lines, models.OrderLine{
				ID:        uuid.New(),
				OrderID:   order.ID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				UnitPrice: unitPrice,
				Subtotal:  subtotal,
			})
		}
		order.TotalAmount = total

		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating order")
		}

		reseller, err := repo.GetReseller(ctx, input.Actor.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolving reseller")
		}
		resellerName := ""
		if reseller != nil {
			resellerName = reseller.Name
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventNewOrder,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Audience:      enums.AudienceAdmin,
			Actor:         &outbox.ActorRef{ActorID: input.Actor.ID, Role: input.Actor.Role},
			Version:       1,
			Data: payloads.NewOrderEvent{
				OrderID:      order.ID,
				ResellerID:   order.ResellerID,
				ResellerName: resellerName,
				TotalAmount:  order.TotalAmount,
				OrderDate:    order.OrderDate,
			},
		}
		if err := s.events.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queueing order event")
		}
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Decide moves a pending order to approved or rejected. Rejection releases
// every reserved line back to the warehouse; approval opens the shipment.
// Re-applying the decision already on the order is a no-op.
func (s *service) Decide(ctx context.Context, input DecideInput) (*models.Order, error) {
	if !input.Actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "administrator role required")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !input.Decision.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid decision").
			WithDetails(map[string]any{"decision": input.Decision})
	}

	target := enums.OrderStatusApproved
	if input.Decision == enums.DecisionReject {
		target = enums.OrderStatusRejected
	}

	var decided *models.Order
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.GetByID(ctx, input.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading order")
		}
		if order == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if order.Status == target {
			decided = order
			return nil
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already decided").
				WithDetails(map[string]any{"status": order.Status})
		}

		// Win the transition first so the release and shipment side effects
		// run at most once, no matter how many decisions race.
		rows, err := repo.UpdateStatusFrom(ctx, order.ID, enums.OrderStatusPending, target)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating order status")
		}
		if rows == 0 {
			current, err := repo.GetByID(ctx, order.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "re-reading order")
			}
			if current == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			if current.Status == target {
				decided = current
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already decided").
				WithDetails(map[string]any{"status": current.Status})
		}
		order.Status = target

		if input.Decision == enums.DecisionReject {
			for _, line := range order.Lines {
				if err := s.stock.Release(ctx, tx, line.ProductID, line.Quantity); err != nil {
					return err
				}
			}
		}

		if input.Decision == enums.DecisionApprove {
			if _, err := s.shipments.CreateForOrder(ctx, tx, order); err != nil {
				return err
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderUpdated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Audience:      enums.AudienceReseller,
			Actor:         &outbox.ActorRef{ActorID: input.Actor.ID, Role: input.Actor.Role},
			Version:       1,
			Data: payloads.OrderUpdatedEvent{
				OrderID:    order.ID,
				Status:     order.Status,
				ResellerID: order.ResellerID,
			},
		}
		if err := s.events.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queueing order event")
		}
		decided = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decided, nil
}

func (s *service) GetByID(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if !actor.IsAdmin() && order.ResellerID != actor.ID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another reseller")
	}
	return order, nil
}

func (s *service) ListForReseller(ctx context.Context, actor types.Actor) ([]models.Order, error) {
	if !actor.IsReseller() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "reseller role required")
	}
	rows, err := s.repo.ListByReseller(ctx, actor.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing orders")
	}
	return rows, nil
}

func (s *service) ListAll(ctx context.Context, actor types.Actor, status *enums.OrderStatus) ([]models.Order, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "administrator role required")
	}
	rows, err := s.repo.ListByStatus(ctx, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing orders")
	}
	return rows, nil
}
