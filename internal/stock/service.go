package stock

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hpratama/resellhub-backend/pkg/db/models"
	pkgerrors "github.com/hpratama/resellhub-backend/pkg/errors"
	"github.com/hpratama/resellhub-backend/pkg/metrics"
	"github.com/hpratama/resellhub-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the warehouse stock ledger. Reserve and Release run inside a
// caller-owned transaction so multi-line orders stay all-or-nothing.
type Service interface {
	Reserve(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) error
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Restock(ctx context.Context, input RestockInput) (*models.WarehouseStock, error)
	Get(ctx context.Context, productID uuid.UUID) (*models.WarehouseStock, error)
}

// ReservationRequest asks for qty units of one product.
type ReservationRequest struct {
	ProductID uuid.UUID
	Quantity  int
}

// RestockInput is an administrative stock increase.
type RestockInput struct {
	Actor     types.Actor
	ProductID uuid.UUID
	Quantity  int
}

type service struct {
	runner    txRunner
	repo      Repository
	integrity *metrics.IntegrityMetrics
}

// NewService wires the warehouse stock service.
func NewService(runner txRunner, repo Repository, integrity *metrics.IntegrityMetrics) (Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	return &service{runner: runner, repo: repo, integrity: integrity}, nil
}

// Reserve decrements every requested product inside tx. Requests are applied
// in ascending product id order so concurrent multi-line orders touch rows in
// the same sequence. The first shortfall aborts the whole batch.
func (s *service) Reserve(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if len(requests) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one reservation is required")
	}
	for _, req := range requests {
		if req.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
		}
		if req.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"product_id": req.ProductID})
		}
	}

	ordered := make([]ReservationRequest, len(requests))
	copy(ordered, requests)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ProductID.String() < ordered[j].ProductID.String()
	})

	repo := s.repo.WithTx(tx)
	for _, req := range ordered {
		rows, err := repo.DecrementIfAvailable(ctx, req.ProductID, req.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserving stock")
		}
		if rows > 0 {
			continue
		}

		existing, err := repo.Get(ctx, req.ProductID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking stock row")
		}
		if existing == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product has no warehouse stock").
				WithDetails(map[string]any{"product_id": req.ProductID})
		}
		s.integrity.IncReservationDenial("order_create")
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough warehouse stock").
			WithDetails(map[string]any{
				"product_id": req.ProductID,
				"requested":  req.Quantity,
				"available":  existing.Quantity,
			})
	}
	return nil
}

// Release returns qty units to the warehouse inside tx.
func (s *service) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	rows, err := s.repo.WithTx(tx).Increment(ctx, productID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "releasing stock")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product has no warehouse stock").
			WithDetails(map[string]any{"product_id": productID})
	}
	return nil
}

// Restock is the admin-only inbound receipt. It creates the stock row when
// the product has never been stocked.
func (s *service) Restock(ctx context.Context, input RestockInput) (*models.WarehouseStock, error) {
	if !input.Actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "administrator role required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	now := time.Now().UTC()
	var updated *models.WarehouseStock
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rows, err := repo.IncrementRestocked(ctx, input.ProductID, input.Quantity, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restocking")
		}
		if rows == 0 {
			row := &models.WarehouseStock{
				ProductID:     input.ProductID,
				Quantity:      input.Quantity,
				LastRestocked: &now,
			}
			if err := repo.Create(ctx, row); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating stock row")
			}
		}
		current, err := repo.Get(ctx, input.ProductID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading stock row")
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Get(ctx context.Context, productID uuid.UUID) (*models.WarehouseStock, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	row, err := s.repo.Get(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading stock row")
	}
	if row == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product has no warehouse stock")
	}
	return row, nil
}
