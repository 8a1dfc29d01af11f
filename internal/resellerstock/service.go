package resellerstock

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hpratama/resellhub-backend/pkg/db/models"
	pkgerrors "github.com/hpratama/resellhub-backend/pkg/errors"
	"github.com/hpratama/resellhub-backend/pkg/logger"
	"github.com/hpratama/resellhub-backend/pkg/metrics"
)

// Service is the reseller-side stock ledger. Balances only grow through
// delivery credits and shrink through approved return debits.
type Service interface {
	Credit(ctx context.Context, tx *gorm.DB, resellerID, productID uuid.UUID, qty int) error
	Debit(ctx context.Context, tx *gorm.DB, input DebitInput) error
	Balance(ctx context.Context, tx *gorm.DB, resellerID, productID uuid.UUID) (int, error)
	ListForReseller(ctx context.Context, resellerID uuid.UUID) ([]models.ResellerStock, error)
}

// DebitInput names the operation so clamp telemetry can attribute it.
type DebitInput struct {
	ResellerID uuid.UUID
	ProductID  uuid.UUID
	Quantity   int
	Operation  string
}

type service struct {
	repo      Repository
	logg      *logger.Logger
	integrity *metrics.IntegrityMetrics
}

// NewService wires the reseller stock ledger.
func NewService(repo Repository, logg *logger.Logger, integrity *metrics.IntegrityMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reseller stock repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg, integrity: integrity}, nil
}

func (s *service) Credit(ctx context.Context, tx *gorm.DB, resellerID, productID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if resellerID == uuid.Nil || productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reseller id and product id are required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if err := s.repo.WithTx(tx).UpsertCredit(ctx, resellerID, productID, qty); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "crediting reseller stock")
	}
	return nil
}

// Debit decrements the balance. A balance that would go negative is clamped
// to zero and reported as a data integrity warning instead of failing the
// caller; upstream validation should have prevented the shortfall.
func (s *service) Debit(ctx context.Context, tx *gorm.DB, input DebitInput) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if input.ResellerID == uuid.Nil || input.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reseller id and product id are required")
	}
	if input.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	repo := s.repo.WithTx(tx)
	rows, err := repo.DecrementIfAvailable(ctx, input.ResellerID, input.ProductID, input.Quantity)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debiting reseller stock")
	}
	if rows > 0 {
		return nil
	}

	existing, err := repo.Get(ctx, input.ResellerID, input.ProductID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading reseller stock")
	}

	balance := 0
	if existing != nil {
		balance = existing.Quantity
		if err := repo.SetZero(ctx, input.ResellerID, input.ProductID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clamping reseller stock")
		}
	}

	fields := map[string]any{
		"reseller_id": input.ResellerID.String(),
		"product_id":  input.ProductID.String(),
		"requested":   input.Quantity,
		"balance":     balance,
		"operation":   input.Operation,
	}
	s.logg.Warn(s.logg.WithFields(ctx, fields), "reseller stock debit exceeded balance, clamped to zero")
	s.integrity.IncDebitClamp(input.Operation)
	return nil
}

// Balance reads through the caller's transaction when one is given, so
// in-transaction checks see writes made earlier in the same transaction.
func (s *service) Balance(ctx context.Context, tx *gorm.DB, resellerID, productID uuid.UUID) (int, error) {
	if resellerID == uuid.Nil || productID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "reseller id and product id are required")
	}
	row, err := s.repo.WithTx(tx).Get(ctx, resellerID, productID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading reseller stock")
	}
	if row == nil {
		return 0, nil
	}
	return row.Quantity, nil
}

func (s *service) ListForReseller(ctx context.Context, resellerID uuid.UUID) ([]models.ResellerStock, error) {
	if resellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reseller id is required")
	}
	rows, err := s.repo.ListByReseller(ctx, resellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing reseller stock")
	}
	return rows, nil
}
