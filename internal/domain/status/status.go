// Package status defines the closed enums that drive the order lifecycle:
// order status, payment status and order type, plus the mapping from the
// free-form strings accepted by the API onto them.
package status

import (
	"fmt"
	"sort"
	"strings"
)

// Order is the kitchen/delivery progress of an order.
type Order string

const (
	Pending        Order = "PENDING"
	Confirmed      Order = "CONFIRMED"
	Preparing      Order = "PREPARING"
	ReadyForPickup Order = "READY_FOR_PICKUP"
	OutForDelivery Order = "OUT_FOR_DELIVERY"
	Delivered      Order = "DELIVERED"
	Cancelled      Order = "CANCELLED"
	Refunded       Order = "REFUNDED"
)

// All lists every order status in lifecycle order.
var All = []Order{Pending, Confirmed, Preparing, ReadyForPickup, OutForDelivery, Delivered, Cancelled, Refunded}

var orderAliases = map[string]Order{
	"pending":          Pending,
	"confirmed":        Confirmed,
	"preparing":        Preparing,
	"ready":            ReadyForPickup,
	"ready_for_pickup": ReadyForPickup,
	"out_for_delivery": OutForDelivery,
	"delivered":        Delivered,
	"completed":        Delivered,
	"cancelled":        Cancelled,
	"refunded":         Refunded,
}

// simpleAliases is the reduced vocabulary of the PATCH status endpoint.
var simpleAliases = map[string]Order{
	"pending":   Pending,
	"preparing": Preparing,
	"ready":     ReadyForPickup,
	"completed": Delivered,
	"cancelled": Cancelled,
}

// UnknownError reports input that does not map onto any accepted status.
type UnknownError struct {
	Input    string
	Accepted []string
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("unknown status %q (accepted: %s)", e.Input, strings.Join(e.Accepted, ", "))
}

// ParseOrder maps a case-insensitive status string onto Order.
func ParseOrder(s string) (Order, error) {
	return lookup(orderAliases, s)
}

// ParseSimple maps the reduced PATCH vocabulary onto Order.
func ParseSimple(s string) (Order, error) {
	return lookup(simpleAliases, s)
}

// Accepted returns the sorted input strings ParseOrder understands.
func Accepted() []string {
	return keys(orderAliases)
}

// AcceptedSimple returns the sorted input strings ParseSimple understands.
func AcceptedSimple() []string {
	return keys(simpleAliases)
}

func lookup(table map[string]Order, s string) (Order, error) {
	key := normalize(s)
	if o, ok := table[key]; ok {
		return o, nil
	}
	return "", &UnknownError{Input: s, Accepted: keys(table)}
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

func keys(table map[string]Order) []string {
	out := make([]string, 0, len(table))
	for k := range table {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Valid reports whether o is one of the defined statuses.
func (o Order) Valid() bool {
	for _, s := range All {
		if s == o {
			return true
		}
	}
	return false
}

// Terminal reports whether no further progress is expected from o.
func (o Order) Terminal() bool {
	switch o {
	case Delivered, Cancelled, Refunded:
		return true
	default:
		return false
	}
}

// Active lists the non-terminal statuses.
func Active() []Order {
	out := make([]Order, 0, len(All))
	for _, s := range All {
		if !s.Terminal() {
			out = append(out, s)
		}
	}
	return out
}

func (o Order) String() string { return string(o) }

var forward = map[Order]Order{
	Pending:        Confirmed,
	Confirmed:      Preparing,
	Preparing:      ReadyForPickup,
	ReadyForPickup: OutForDelivery,
	OutForDelivery: Delivered,
}

// CanTransition reports whether moving from one status to another follows
// the intended lifecycle graph. Re-applying the current status is allowed.
func CanTransition(from, to Order) bool {
	if from == to {
		return true
	}
	switch to {
	case Cancelled:
		return !from.Terminal()
	case Refunded:
		return from == ReadyForPickup || from == Delivered
	}
	return forward[from] == to
}

// Payment is the outcome of the payment gateway for an order.
type Payment string

const (
	PaymentPending  Payment = "PENDING"
	PaymentPaid     Payment = "PAID"
	PaymentFailed   Payment = "FAILED"
	PaymentRefunded Payment = "REFUNDED"
)

func (p Payment) String() string { return string(p) }

// OrderType is how the customer receives the order.
type OrderType string

const (
	Delivery   OrderType = "DELIVERY"
	Collection OrderType = "COLLECTION"
	Takeaway   OrderType = "TAKEAWAY"
)

// ParseOrderType maps a case-insensitive order type onto OrderType.
func ParseOrderType(s string) (OrderType, error) {
	switch t := OrderType(strings.ToUpper(strings.TrimSpace(s))); t {
	case Delivery, Collection, Takeaway:
		return t, nil
	default:
		return "", fmt.Errorf("unknown order type %q", s)
	}
}

func (t OrderType) String() string { return string(t) }
