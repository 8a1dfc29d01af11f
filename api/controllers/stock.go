package controllers

import (
	"net/http"

	"github.com/hpratama/resellhub-backend/api/middleware"
	"github.com/hpratama/resellhub-backend/api/responses"
	"github.com/hpratama/resellhub-backend/api/validators"
	"github.com/hpratama/resellhub-backend/internal/resellerstock"
	"github.com/hpratama/resellhub-backend/internal/stock"
	pkgerrors "github.com/hpratama/resellhub-backend/pkg/errors"
	"github.com/hpratama/resellhub-backend/pkg/logger"
)

// ResellerStockList returns the calling reseller's on-hand balances.
func ResellerStockList(svc resellerstock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reseller stock service unavailable"))
			return
		}

		actor := middleware.ActorFromContext(r.Context())
		rows, err := svc.ListForReseller(r.Context(), actor.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]resellerStockResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, resellerStockResponse{
				ProductID: row.ProductID,
				Quantity:  row.Quantity,
			})
		}
		responses.WriteSuccess(w, out)
	}
}

// WarehouseStockDetail returns the warehouse balance for one product.
func WarehouseStockDetail(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock service unavailable"))
			return
		}

		productID, err := parseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Get(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, warehouseStockResponse{
			ProductID:     row.ProductID,
			Quantity:      row.Quantity,
			LastRestocked: row.LastRestocked,
		})
	}
}

type restockRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

// Restock is the administrative inbound receipt for one product.
func Restock(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock service unavailable"))
			return
		}

		productID, err := parseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload restockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Restock(r.Context(), stock.RestockInput{
			Actor:     middleware.ActorFromContext(r.Context()),
			ProductID: productID,
			Quantity:  payload.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, warehouseStockResponse{
			ProductID:     row.ProductID,
			Quantity:      row.Quantity,
			LastRestocked: row.LastRestocked,
		})
	}
}
