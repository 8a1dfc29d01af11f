package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hpratama/resellhub-backend/pkg/db/models"
	"github.com/hpratama/resellhub-backend/pkg/enums"
	pkgerrors "github.com/hpratama/resellhub-backend/pkg/errors"
)

type orderLineResponse struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type orderResponse struct {
	ID          uuid.UUID           `json:"id"`
	ResellerID  uuid.UUID           `json:"reseller_id"`
	Status      enums.OrderStatus   `json:"status"`
	TotalAmount decimal.Decimal     `json:"total_amount"`
	OrderDate   time.Time           `json:"order_date"`
	Notes       *string             `json:"notes,omitempty"`
	Lines       []orderLineResponse `json:"lines"`
}

func toOrderResponse(order *models.Order) orderResponse {
	resp := orderResponse{
		ID:          order.ID,
		ResellerID:  order.ResellerID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		OrderDate:   order.OrderDate,
		Notes:       order.Notes,
		Lines:       make([]orderLineResponse, 0, len(order.Lines)),
	}
	for _, line := range order.Lines {
		resp.Lines = append(resp.Lines, orderLineResponse{
			ID:        line.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal,
		})
	}
	return resp
}

func toOrderResponses(orders []models.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderResponse(&orders[i]))
	}
	return out
}

type shipmentResponse struct {
	ID                uuid.UUID            `json:"id"`
	OrderID           uuid.UUID            `json:"order_id"`
	ResellerID        uuid.UUID            `json:"reseller_id"`
	Status            enums.ShippingStatus `json:"status"`
	ShippingMethod    string               `json:"shipping_method"`
	TrackingNumber    *string              `json:"tracking_number,omitempty"`
	Carrier           *string              `json:"carrier,omitempty"`
	ShippingDate      *time.Time           `json:"shipping_date,omitempty"`
	EstimatedDelivery *time.Time           `json:"estimated_delivery,omitempty"`
	ActualDelivery    *time.Time           `json:"actual_delivery,omitempty"`
	Notes             *string              `json:"notes,omitempty"`
}

func toShipmentResponse(shipment *models.Shipment) shipmentResponse {
	return shipmentResponse{
		ID:                shipment.ID,
		OrderID:           shipment.OrderID,
		ResellerID:        shipment.ResellerID,
		Status:            shipment.Status,
		ShippingMethod:    shipment.ShippingMethod,
		TrackingNumber:    shipment.TrackingNumber,
		Carrier:           shipment.Carrier,
		ShippingDate:      shipment.ShippingDate,
		EstimatedDelivery: shipment.EstimatedDelivery,
		ActualDelivery:    shipment.ActualDelivery,
		Notes:             shipment.Notes,
	}
}

func toShipmentResponses(shipments []models.Shipment) []shipmentResponse {
	out := make([]shipmentResponse, 0, len(shipments))
	for i := range shipments {
		out = append(out, toShipmentResponse(&shipments[i]))
	}
	return out
}

type returnResponse struct {
	ID            uuid.UUID          `json:"id"`
	ResellerID    uuid.UUID          `json:"reseller_id"`
	OrderID       uuid.UUID          `json:"order_id"`
	ProductID     uuid.UUID          `json:"product_id"`
	Quantity      int                `json:"quantity"`
	Reason        string             `json:"reason"`
	Status        enums.ReturnStatus `json:"status"`
	RequestDate   time.Time          `json:"request_date"`
	ProcessedDate *time.Time         `json:"processed_date,omitempty"`
}

func toReturnResponse(request *models.ReturnRequest) returnResponse {
	return returnResponse{
		ID:            request.ID,
		ResellerID:    request.ResellerID,
		OrderID:       request.OrderID,
		ProductID:     request.ProductID,
		Quantity:      request.Quantity,
		Reason:        request.Reason,
		Status:        request.Status,
		RequestDate:   request.RequestDate,
		ProcessedDate: request.ProcessedDate,
	}
}

func toReturnResponses(requests []models.ReturnRequest) []returnResponse {
	out := make([]returnResponse, 0, len(requests))
	for i := range requests {
		out = append(out, toReturnResponse(&requests[i]))
	}
	return out
}

type warehouseStockResponse struct {
	ProductID     uuid.UUID  `json:"product_id"`
	Quantity      int        `json:"quantity"`
	LastRestocked *time.Time `json:"last_restocked,omitempty"`
}

type resellerStockResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return parsed, nil
}

func contextWithTimeout(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}
