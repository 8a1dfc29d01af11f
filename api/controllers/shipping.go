package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/hpratama/resellhub-backend/api/middleware"
	"github.com/hpratama/resellhub-backend/api/responses"
	"github.com/hpratama/resellhub-backend/api/validators"
	"github.com/hpratama/resellhub-backend/internal/shipping"
	"github.com/hpratama/resellhub-backend/pkg/enums"
	pkgerrors "github.com/hpratama/resellhub-backend/pkg/errors"
	"github.com/hpratama/resellhub-backend/pkg/logger"
)

// ListResellerShipments returns the calling reseller's shipments.
func ListResellerShipments(svc shipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}

		rows, err := svc.ListForReseller(r.Context(), middleware.ActorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toShipmentResponses(rows))
	}
}

// ShipmentDetail returns one shipment for its owner or an administrator.
func ShipmentDetail(svc shipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}

		shipmentID, err := parseUUIDParam(r, "shipmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		shipment, err := svc.GetByID(r.Context(), middleware.ActorFromContext(r.Context()), shipmentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toShipmentResponse(shipment))
	}
}

// ConfirmReceipt is the reseller acknowledging a delivered shipment, which
// completes the order.
func ConfirmReceipt(svc shipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}

		shipmentID, err := parseUUIDParam(r, "shipmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		shipment, err := svc.ConfirmReceipt(r.Context(), shipping.ConfirmReceiptInput{
			Actor:      middleware.ActorFromContext(r.Context()),
			ShipmentID: shipmentID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toShipmentResponse(shipment))
	}
}

// AdminListShipments returns every shipment, optionally filtered by status.
func AdminListShipments(svc shipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}

		var status *enums.ShippingStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseShippingStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			status = &parsed
		}

		rows, err := svc.ListAll(r.Context(), middleware.ActorFromContext(r.Context()), status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toShipmentResponses(rows))
	}
}

type updateShipmentRequest struct {
	TrackingNumber    *string    `json:"tracking_number,omitempty"`
	Carrier           *string    `json:"carrier,omitempty"`
	ShippingMethod    *string    `json:"shipping_method,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	Notes             *string    `json:"notes,omitempty"`
}

// UpdateShipment changes logistics fields without touching status.
func UpdateShipment(svc shipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}

		shipmentID, err := parseUUIDParam(r, "shipmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateShipmentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		shipment, err := svc.Update(r.Context(), shipping.UpdateInput{
			Actor:             middleware.ActorFromContext(r.Context()),
			ShipmentID:        shipmentID,
			TrackingNumber:    payload.TrackingNumber,
			Carrier:           payload.Carrier,
			ShippingMethod:    payload.ShippingMethod,
			EstimatedDelivery: payload.EstimatedDelivery,
			Notes:             payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toShipmentResponse(shipment))
	}
}

type setShipmentStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// SetShipmentStatus moves a shipment along its lifecycle. Delivery credits the
// reseller ledger and marks the order delivered.
func SetShipmentStatus(svc shipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}

		shipmentID, err := parseUUIDParam(r, "shipmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload setShipmentStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseShippingStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping status"))
			return
		}

		shipment, err := svc.SetStatus(r.Context(), shipping.SetStatusInput{
			Actor:      middleware.ActorFromContext(r.Context()),
			ShipmentID: shipmentID,
			Status:     status,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toShipmentResponse(shipment))
	}
}
