package dto

import (
	"time"

	"github.com/Additional-Code/hatch/internal/entity"
)

// DriverResponse represents a driver.
type DriverResponse struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Phone         string     `json:"phone,omitempty"`
	IsAvailable   bool       `json:"isAvailable"`
	Latitude      *float64   `json:"latitude,omitempty"`
	Longitude     *float64   `json:"longitude,omitempty"`
	Accuracy      *float64   `json:"accuracy,omitempty"`
	LocatedAt     *time.Time `json:"locatedAt,omitempty"`
	Rating        float64    `json:"rating"`
	RatingCount   int        `json:"ratingCount"`
	DeliveryCount int        `json:"deliveryCount"`
	Earnings      string     `json:"earnings"`
}

// NewDriverResponse maps a driver entity.
func NewDriverResponse(d *entity.Driver) DriverResponse {
	return DriverResponse{
		ID:            d.ID,
		Name:          d.Name,
		Phone:         d.Phone,
		IsAvailable:   d.IsAvailable,
		Latitude:      d.Latitude,
		Longitude:     d.Longitude,
		Accuracy:      d.Accuracy,
		LocatedAt:     d.LocatedAt,
		Rating:        d.Rating,
		RatingCount:   d.RatingCount,
		DeliveryCount: d.DeliveryCount,
		Earnings:      d.Earnings.StringFixed(2),
	}
}

// NewDriverList maps a slice of drivers.
func NewDriverList(drivers []*entity.Driver) []DriverResponse {
	out := make([]DriverResponse, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, NewDriverResponse(d))
	}
	return out
}
