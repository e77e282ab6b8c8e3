package dto

import (
	"time"

	"github.com/Additional-Code/hatch/internal/entity"
)

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID              int64             `json:"id"`
	Number          string            `json:"number"`
	CustomerName    string            `json:"customerName"`
	CustomerEmail   string            `json:"customerEmail,omitempty"`
	CustomerPhone   string            `json:"customerPhone,omitempty"`
	DeliveryAddress string            `json:"deliveryAddress,omitempty"`
	Type            string            `json:"type"`
	Status          string            `json:"status"`
	PaymentStatus   string            `json:"paymentStatus"`
	Subtotal        string            `json:"subtotal"`
	Tax             string            `json:"tax"`
	DeliveryFee     string            `json:"deliveryFee"`
	Total           string            `json:"total"`
	Notes           string            `json:"notes,omitempty"`
	DriverID        *int64            `json:"driverId,omitempty"`
	Driver          *DriverResponse   `json:"driver,omitempty"`
	Items           []ItemResponse    `json:"items"`
	Payments        []PaymentResponse `json:"payments,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// ItemResponse is one line of an order.
type ItemResponse struct {
	ID          int64  `json:"id"`
	MenuItemID  *int64 `json:"menuItemId,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	UnitPrice   string `json:"unitPrice"`
	Quantity    int    `json:"quantity"`
	LineTotal   string `json:"lineTotal"`
}

// StatusLogResponse is one entry of an order's status history.
type StatusLogResponse struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	DriverID  *int64    `json:"driverId,omitempty"`
	StaffID   string    `json:"staffId,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewOrderResponse maps an order entity with whatever relations were loaded.
func NewOrderResponse(o *entity.Order) OrderResponse {
	resp := OrderResponse{
		ID:              o.ID,
		Number:          o.Number,
		CustomerName:    o.CustomerName,
		CustomerEmail:   o.CustomerEmail,
		CustomerPhone:   o.CustomerPhone,
		DeliveryAddress: o.DeliveryAddress,
		Type:            o.Type.String(),
		Status:          o.Status.String(),
		PaymentStatus:   o.PaymentStatus.String(),
		Subtotal:        o.Subtotal.StringFixed(2),
		Tax:             o.Tax.StringFixed(2),
		DeliveryFee:     o.DeliveryFee.StringFixed(2),
		Total:           o.Total.StringFixed(2),
		Notes:           o.Notes,
		DriverID:        o.DriverID,
		Items:           make([]ItemResponse, 0, len(o.Items)),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if o.Driver != nil {
		d := NewDriverResponse(o.Driver)
		resp.Driver = &d
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, ItemResponse{
			ID:          it.ID,
			MenuItemID:  it.MenuItemID,
			Name:        it.Name,
			Description: it.Description,
			UnitPrice:   it.UnitPrice.StringFixed(2),
			Quantity:    it.Quantity,
			LineTotal:   it.LineTotal.StringFixed(2),
		})
	}
	for _, p := range o.Payments {
		resp.Payments = append(resp.Payments, NewPaymentResponse(p))
	}
	return resp
}

// NewOrderList maps a slice of orders.
func NewOrderList(orders []*entity.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, NewOrderResponse(o))
	}
	return out
}

// NewStatusLog maps status history entries.
func NewStatusLog(entries []entity.OrderStatusLog) []StatusLogResponse {
	out := make([]StatusLogResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, StatusLogResponse{
			From:      e.FromStatus.String(),
			To:        e.ToStatus.String(),
			DriverID:  e.DriverID,
			StaffID:   e.StaffID,
			Notes:     e.Notes,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}
