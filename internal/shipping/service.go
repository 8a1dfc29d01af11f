package shipping

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hpratama/resellhub-backend/internal/resellerstock"
	"github.com/hpratama/resellhub-backend/pkg/db/models"
	"github.com/hpratama/resellhub-backend/pkg/enums"
	pkgerrors "github.com/hpratama/resellhub-backend/pkg/errors"
	"github.com/hpratama/resellhub-backend/pkg/outbox"
	"github.com/hpratama/resellhub-backend/pkg/outbox/payloads"
	"github.com/hpratama/resellhub-backend/pkg/types"
)

// DefaultShippingMethod is applied when an approval does not name one.
const DefaultShippingMethod = "standard"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service tracks shipment lifecycles. Marking a shipment delivered is the
// only path that moves stock from the warehouse side to the reseller side.
type Service interface {
	CreateForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.Shipment, error)
	Update(ctx context.Context, input UpdateInput) (*models.Shipment, error)
	SetStatus(ctx context.Context, input SetStatusInput) (*models.Shipment, error)
	ConfirmReceipt(ctx context.Context, input ConfirmReceiptInput) (*models.Shipment, error)
	GetByID(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.Shipment, error)
	ListForReseller(ctx context.Context, actor types.Actor) ([]models.Shipment, error)
	ListAll(ctx context.Context, actor types.Actor, status *enums.ShippingStatus) ([]models.Shipment, error)
}

// UpdateInput carries free-form shipment fields. Status never changes here.
type UpdateInput struct {
	Actor             types.Actor
	ShipmentID        uuid.UUID
	TrackingNumber    *string
	Carrier           *string
	ShippingMethod    *string
	EstimatedDelivery *time.Time
	Notes             *string
}

// SetStatusInput moves a shipment along its lifecycle.
type SetStatusInput struct {
	Actor      types.Actor
	ShipmentID uuid.UUID
	Status     enums.ShippingStatus
}

// ConfirmReceiptInput is the reseller acknowledging a delivered shipment.
type ConfirmReceiptInput struct {
	Actor      types.Actor
	ShipmentID uuid.UUID
}

type service struct {
	runner        txRunner
	repo          Repository
	resellerStock resellerstock.Service
	events        eventEmitter
}

// NewService wires the shipment tracker.
func NewService(runner txRunner, repo Repository, resellerStock resellerstock.Service, events eventEmitter) (Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("shipping repository required")
	}
	if resellerStock == nil {
		return nil, fmt.Errorf("reseller stock service required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	return &service{runner: runner, repo: repo, resellerStock: resellerStock, events: events}, nil
}

// CreateForOrder binds a fresh shipment to an approved order inside the
// caller's transaction. The unique order_id index backs the 1:1 guarantee.
func (s *service) CreateForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.Shipment, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order required")
	}
	shipment := &models.Shipment{
		ID:             uuid.New(),
		OrderID:        order.ID,
		ResellerID:     order.ResellerID,
		Status:         enums.ShippingStatusPreparing,
		ShippingMethod: DefaultShippingMethod,
	}
	if err := s.repo.WithTx(tx).Create(ctx, shipment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating shipment")
	}
	return shipment, nil
}

func (s *service) Update(ctx context.Context, input UpdateInput) (*models.Shipment, error) {
	if !input.Actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "administrator role required")
	}
	if input.ShipmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipment id is required")
	}

	var updated *models.Shipment
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		shipment, err := repo.GetByID(ctx, input.ShipmentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading shipment")
		}
		if shipment == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
		}
		if input.TrackingNumber != nil {
			shipment.TrackingNumber = input.TrackingNumber
		}
		if input.Carrier != nil {
			shipment.Carrier = input.Carrier
		}
		if input.ShippingMethod != nil {
			shipment.ShippingMethod = *input.ShippingMethod
		}
		if input.EstimatedDelivery != nil {
			shipment.EstimatedDelivery = input.EstimatedDelivery
		}
		if input.Notes != nil {
			shipment.Notes = input.Notes
		}
		if err := repo.Save(ctx, shipment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving shipment")
		}
		updated = shipment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) SetStatus(ctx context.Context, input SetStatusInput) (*models.Shipment, error) {
	if !input.Actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "administrator role required")
	}
	if input.ShipmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipment id is required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid shipping status").
			WithDetails(map[string]any{"status": input.Status})
	}

	var result *models.Shipment
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		shipment, err := repo.GetByID(ctx, input.ShipmentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading shipment")
		}
		if shipment == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
		}

		if shipment.Status == enums.ShippingStatusDelivered {
			if input.Status == enums.ShippingStatusDelivered {
				// Replayed delivery confirmation. The credit already happened.
				result = shipment
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "shipment already delivered").
				WithDetails(map[string]any{"status": shipment.Status})
		}

		if input.Status == enums.ShippingStatusDelivered {
			won, err := s.deliver(ctx, tx, repo, shipment)
			if err != nil {
				return err
			}
			if !won {
				// Another transaction delivered this shipment between our
				// read and the guarded update. The credit already happened.
				current, err := repo.GetByID(ctx, shipment.ID)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "re-reading shipment")
				}
				result = current
				return nil
			}
		} else {
			var shippingDate *time.Time
			if input.Status == enums.ShippingStatusShipped && shipment.ShippingDate == nil {
				now := time.Now().UTC()
				shippingDate = &now
			}
			rows, err := repo.MarkStatus(ctx, shipment.ID, shipment.Status, input.Status, shippingDate)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving shipment")
			}
			if rows == 0 {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "shipment status changed concurrently").
					WithDetails(map[string]any{"status": shipment.Status})
			}
			shipment.Status = input.Status
			if shippingDate != nil {
				shipment.ShippingDate = shippingDate
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventShippingUpdate,
			AggregateType: enums.AggregateShipment,
			AggregateID:   shipment.ID,
			Audience:      enums.AudienceReseller,
			Actor:         &outbox.ActorRef{ActorID: input.Actor.ID, Role: input.Actor.Role},
			Version:       1,
			Data: payloads.ShippingUpdateEvent{
				ShippingID: shipment.ID,
				OrderID:    shipment.OrderID,
				Status:     shipment.Status,
				ResellerID: shipment.ResellerID,
				UpdatedAt:  time.Now().UTC(),
			},
		}
		if err := s.events.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queueing shipping event")
		}
		result = shipment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// deliver stamps the delivery exactly once, forces the order to delivered and
// credits every line to the reseller ledger. All inside the caller's tx. The
// guarded update decides a single winner; losers report won=false and must
// not credit.
func (s *service) deliver(ctx context.Context, tx *gorm.DB, repo Repository, shipment *models.Shipment) (bool, error) {
	now := time.Now().UTC()
	rows, err := repo.MarkDelivered(ctx, shipment.ID, now)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving shipment")
	}
	if rows == 0 {
		return false, nil
	}
	shipment.Status = enums.ShippingStatusDelivered
	shipment.ActualDelivery = &now

	order, err := repo.GetOrder(ctx, shipment.OrderID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading order")
	}
	if order == nil {
		return false, pkgerrors.New(pkgerrors.CodeNotFound, "order not found for shipment")
	}
	if err := repo.UpdateOrderStatus(ctx, order.ID, enums.OrderStatusDelivered); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating order status")
	}

	for _, line := range order.Lines {
		if err := s.resellerStock.Credit(ctx, tx, order.ResellerID, line.ProductID, line.Quantity); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (s *service) ConfirmReceipt(ctx context.Context, input ConfirmReceiptInput) (*models.Shipment, error) {
	if !input.Actor.IsReseller() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "reseller role required")
	}
	if input.ShipmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipment id is required")
	}

	var result *models.Shipment
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		shipment, err := repo.GetByID(ctx, input.ShipmentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading shipment")
		}
		if shipment == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
		}
		if shipment.ResellerID != input.Actor.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "shipment belongs to another reseller")
		}
		if shipment.Status != enums.ShippingStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "shipment is not delivered yet").
				WithDetails(map[string]any{"status": shipment.Status})
		}

		order, err := repo.GetOrder(ctx, shipment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading order")
		}
		if order == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found for shipment")
		}
		if order.Status == enums.OrderStatusCompleted {
			result = shipment
			return nil
		}
		if order.Status != enums.OrderStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not delivered").
				WithDetails(map[string]any{"status": order.Status})
		}
		rows, err := repo.UpdateOrderStatusFrom(ctx, order.ID, enums.OrderStatusDelivered, enums.OrderStatusCompleted)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "completing order")
		}
		if rows == 0 {
			// Concurrent confirmation already completed the order.
			result = shipment
			return nil
		}

		// Reseller-initiated change, so the admin channel gets the event.
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderUpdated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Audience:      enums.AudienceAdmin,
			Actor:         &outbox.ActorRef{ActorID: input.Actor.ID, Role: input.Actor.Role},
			Version:       1,
			Data: payloads.OrderUpdatedEvent{
				OrderID:    order.ID,
				Status:     enums.OrderStatusCompleted,
				ResellerID: order.ResellerID,
			},
		}
		if err := s.events.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queueing order event")
		}
		result = shipment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) GetByID(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.Shipment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipment id is required")
	}
	shipment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading shipment")
	}
	if shipment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
	}
	if !actor.IsAdmin() && shipment.ResellerID != actor.ID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "shipment belongs to another reseller")
	}
	return shipment, nil
}

func (s *service) ListForReseller(ctx context.Context, actor types.Actor) ([]models.Shipment, error) {
	if !actor.IsReseller() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "reseller role required")
	}
	rows, err := s.repo.ListByReseller(ctx, actor.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing shipments")
	}
	return rows, nil
}

func (s *service) ListAll(ctx context.Context, actor types.Actor, status *enums.ShippingStatus) ([]models.Shipment, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "administrator role required")
	}
	rows, err := s.repo.ListByStatus(ctx, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing shipments")
	}
	return rows, nil
}
