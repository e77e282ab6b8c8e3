package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/Additional-Code/hatch/internal/domain/status"
)

const (
	fastInterval     = 5 * time.Second
	trackingInterval = 30 * time.Second
	defaultLateAfter = 15 * time.Minute
	defaultLimit     = 100
)

// Profile describes what a consumer view shows and how often it refreshes.
type Profile struct {
	Name        string
	Interval    time.Duration
	Statuses    []status.Order
	LateAfter   time.Duration
	Limit       int
	DriverID    *int64
	OrderNumber string
}

// Kitchen shows orders waiting to be cooked.
func Kitchen() Profile {
	return Profile{
		Name:      "kitchen",
		Interval:  fastInterval,
		Statuses:  []status.Order{status.Pending, status.Confirmed, status.Preparing},
		LateAfter: defaultLateAfter,
		Limit:     defaultLimit,
	}
}

// Till shows every order still in progress.
func Till() Profile {
	return Profile{
		Name:      "till",
		Interval:  fastInterval,
		Statuses:  status.Active(),
		LateAfter: defaultLateAfter,
		Limit:     defaultLimit,
	}
}

// Driver shows orders ready to collect or on the road, optionally only
// those assigned to driverID.
func Driver(driverID *int64) Profile {
	return Profile{
		Name:      "driver",
		Interval:  fastInterval,
		Statuses:  []status.Order{status.ReadyForPickup, status.OutForDelivery},
		LateAfter: defaultLateAfter,
		Limit:     defaultLimit,
		DriverID:  driverID,
	}
}

// Tracking follows a single order by its number.
func Tracking(number string) Profile {
	return Profile{
		Name:        "tracking",
		Interval:    trackingInterval,
		LateAfter:   defaultLateAfter,
		Limit:       1,
		OrderNumber: strings.TrimSpace(number),
	}
}

// Options tunes a built-in profile.
type Options struct {
	DriverID    *int64
	OrderNumber string
	LateAfter   time.Duration
	Interval    time.Duration
}

// Lookup returns the built-in profile called name.
func Lookup(name string, opts Options) (Profile, error) {
	var p Profile
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "kitchen":
		p = Kitchen()
	case "till":
		p = Till()
	case "driver":
		p = Driver(opts.DriverID)
	case "tracking":
		if strings.TrimSpace(opts.OrderNumber) == "" {
			return Profile{}, fmt.Errorf("tracking view needs an order number")
		}
		p = Tracking(opts.OrderNumber)
	default:
		return Profile{}, fmt.Errorf("unknown view %q (accepted: kitchen, till, driver, tracking)", name)
	}
	if opts.LateAfter > 0 {
		p.LateAfter = opts.LateAfter
	}
	if opts.Interval > 0 {
		p.Interval = opts.Interval
	}
	return p, nil
}

// Query is what the profile asks its Source for.
func (p Profile) Query() Query {
	q := Query{OrderNumber: p.OrderNumber, DriverID: p.DriverID, Limit: p.Limit}
	for _, s := range p.Statuses {
		q.Statuses = append(q.Statuses, s.String())
	}
	return q
}
