package dto

import (
	"time"

	"github.com/Additional-Code/hatch/internal/entity"
)

// PaymentResponse represents one charge attempt.
type PaymentResponse struct {
	ID            int64     `json:"id"`
	Provider      string    `json:"provider"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	TransactionID string    `json:"transactionId,omitempty"`
	Message       string    `json:"message,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NewPaymentResponse maps a payment entity.
func NewPaymentResponse(p *entity.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		Provider:      p.Provider,
		Amount:        p.Amount.StringFixed(2),
		Currency:      p.Currency,
		Status:        p.Status.String(),
		TransactionID: p.TransactionID,
		Message:       p.Message,
		CreatedAt:     p.CreatedAt,
	}
}
