package returns

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hpratama/resellhub-backend/internal/resellerstock"
	"github.com/hpratama/resellhub-backend/internal/stock"
	"github.com/hpratama/resellhub-backend/pkg/db/models"
	"github.com/hpratama/resellhub-backend/pkg/enums"
	pkgerrors "github.com/hpratama/resellhub-backend/pkg/errors"
	"github.com/hpratama/resellhub-backend/pkg/outbox"
	"github.com/hpratama/resellhub-backend/pkg/outbox/payloads"
	"github.com/hpratama/resellhub-backend/pkg/types"
)

// debitOperation labels return debits in clamp telemetry.
const debitOperation = "return_approve"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service handles return requests. Approval is the only path that moves
// stock from the reseller side back to the warehouse.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.ReturnRequest, error)
	Decide(ctx context.Context, input DecideInput) (*models.ReturnRequest, error)
	GetByID(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.ReturnRequest, error)
	ListForReseller(ctx context.Context, actor types.Actor) ([]models.ReturnRequest, error)
	ListAll(ctx context.Context, actor types.Actor, status *enums.ReturnStatus) ([]models.ReturnRequest, error)
}

// CreateInput files a return against a delivered order line.
type CreateInput struct {
	Actor     types.Actor
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Quantity  int
	Reason    string
}

// DecideInput applies the administrator verdict on a pending return.
type DecideInput struct {
	Actor    types.Actor
	ReturnID uuid.UUID
	Decision enums.Decision
}

type service struct {
	runner        txRunner
	repo          Repository
	resellerStock resellerstock.Service
	stock         stock.Service
	events        eventEmitter
}

// NewService wires the return processor.
func NewService(runner txRunner, repo Repository, resellerStock resellerstock.Service, stockSvc stock.Service, events eventEmitter) (Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("returns repository required")
	}
	if resellerStock == nil {
		return nil, fmt.Errorf("reseller stock service required")
	}
	if stockSvc == nil {
		return nil, fmt.Errorf("stock service required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	return &service{runner: runner, repo: repo, resellerStock: resellerStock, stock: stockSvc, events: events}, nil
}

// Create validates the return against the order it references and the
// reseller's on-hand balance, then files it as pending. Stock does not move
// until an administrator approves.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.ReturnRequest, error) {
	if !input.Actor.IsReseller() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "reseller role required")
	}
	if input.OrderID == uuid.Nil || input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and product id are required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}

	var created *models.ReturnRequest
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.GetOrder(ctx, input.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading order")
		}
		if order == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if order.ResellerID != input.Actor.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another reseller")
		}
		if order.Status != enums.OrderStatusDelivered && order.Status != enums.OrderStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order has not been delivered").
				WithDetails(map[string]any{"status": order.Status})
		}

		onOrder := false
		for _, line := range order.Lines {
			if line.ProductID == input.ProductID {
				onOrder = true
				break
			}
		}
		if !onOrder {
			return pkgerrors.New(pkgerrors.CodeValidation, "product is not on the order").
				WithDetails(map[string]any{"product_id": input.ProductID})
		}

		balance, err := s.resellerStock.Balance(ctx, tx, input.Actor.ID, input.ProductID)
		if err != nil {
			return err
		}
		if balance < input.Quantity {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough reseller stock to return").
				WithDetails(map[string]any{
					"product_id": input.ProductID,
					"requested":  input.Quantity,
					"available":  balance,
				})
		}

		request := &models.ReturnRequest{
			ID:          uuid.New(),
			ResellerID:  input.Actor.ID,
			OrderID:     order.ID,
			ProductID:   input.ProductID,
			Quantity:    input.Quantity,
			Reason:      reason,
			Status:      enums.ReturnStatusPending,
			RequestDate: time.Now().UTC(),
		}
		if err := repo.Create(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating return request")
		}
		created = request
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Decide moves a pending return to approved or rejected. Approval debits the
// reseller ledger and releases the quantity back to the warehouse in the same
// transaction, so the two ledgers never disagree on a processed return.
func (s *service) Decide(ctx context.Context, input DecideInput) (*models.ReturnRequest, error) {
	if !input.Actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "administrator role required")
	}
	if input.ReturnID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return id is required")
	}
	if !input.Decision.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid decision").
			WithDetails(map[string]any{"decision": input.Decision})
	}

	target := enums.ReturnStatusApproved
	if input.Decision == enums.DecisionReject {
		target = enums.ReturnStatusRejected
	}

	var decided *models.ReturnRequest
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request, err := repo.GetByID(ctx, input.ReturnID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading return request")
		}
		if request == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
		}
		if request.Status == target {
			decided = request
			return nil
		}
		if request.Status != enums.ReturnStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "return request already decided").
				WithDetails(map[string]any{"status": request.Status})
		}

		// Win the transition first so the debit and release run at most once,
		// no matter how many decisions race.
		now := time.Now().UTC()
		rows, err := repo.UpdateStatusFrom(ctx, request.ID, enums.ReturnStatusPending, target, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving return request")
		}
		if rows == 0 {
			current, err := repo.GetByID(ctx, request.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "re-reading return request")
			}
			if current == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
			}
			if current.Status == target {
				decided = current
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "return request already decided").
				WithDetails(map[string]any{"status": current.Status})
		}
		request.Status = target
		request.ProcessedDate = &now

		if input.Decision == enums.DecisionApprove {
			if err := s.resellerStock.Debit(ctx, tx, resellerstock.DebitInput{
				ResellerID: request.ResellerID,
				ProductID:  request.ProductID,
				Quantity:   request.Quantity,
				Operation:  debitOperation,
			}); err != nil {
				return err
			}
			if err := s.stock.Release(ctx, tx, request.ProductID, request.Quantity); err != nil {
				return err
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventReturnStatus,
			AggregateType: enums.AggregateReturnRequest,
			AggregateID:   request.ID,
			Audience:      enums.AudienceReseller,
			Actor:         &outbox.ActorRef{ActorID: input.Actor.ID, Role: input.Actor.Role},
			Version:       1,
			Data: payloads.ReturnStatusEvent{
				ReturnID:   request.ID,
				Status:     request.Status,
				ResellerID: request.ResellerID,
			},
		}
		if err := s.events.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queueing return event")
		}
		decided = request
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decided, nil
}

func (s *service) GetByID(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.ReturnRequest, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return id is required")
	}
	request, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading return request")
	}
	if request == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
	}
	if !actor.IsAdmin() && request.ResellerID != actor.ID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "return request belongs to another reseller")
	}
	return request, nil
}

func (s *service) ListForReseller(ctx context.Context, actor types.Actor) ([]models.ReturnRequest, error) {
	if !actor.IsReseller() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "reseller role required")
	}
	rows, err := s.repo.ListByReseller(ctx, actor.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing return requests")
	}
	return rows, nil
}

func (s *service) ListAll(ctx context.Context, actor types.Actor, status *enums.ReturnStatus) ([]models.ReturnRequest, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "administrator role required")
	}
	rows, err := s.repo.ListByStatus(ctx, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing return requests")
	}
	return rows, nil
}
