// Package view implements the polling displays used by the kitchen, the
// till, drivers and customers. Each view re-reads orders on a fixed interval
// and keeps showing the last good result when a refresh fails.
package view

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Additional-Code/hatch/internal/domain/status"
	"github.com/Additional-Code/hatch/internal/dto"
	"github.com/Additional-Code/hatch/internal/notify"
)

// Query selects the orders a view displays.
type Query struct {
	Statuses    []string
	OrderNumber string
	DriverID    *int64
	Limit       int
}

// Source fetches orders for a view.
type Source interface {
	Fetch(ctx context.Context, q Query) ([]dto.OrderResponse, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, q Query) ([]dto.OrderResponse, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context, q Query) ([]dto.OrderResponse, error) { return f(ctx, q) }

// Row is one displayed order.
type Row struct {
	Order dto.OrderResponse
	Age   time.Duration
	Late  bool
}

// Banner is the dismissible notice shown after a failed refresh.
type Banner struct {
	Message string
	At      time.Time
}

// Snapshot is what a view currently displays.
type Snapshot struct {
	View        string
	Rows        []Row
	Banner      *Banner
	LastSuccess time.Time
	LastAttempt time.Time
}

// View is a single polling display.
type View struct {
	profile Profile
	source  Source
	logger  *zap.Logger
	now     func() time.Time

	nudge    chan struct{}
	onChange func(Snapshot)

	mu          sync.Mutex
	orders      []dto.OrderResponse
	banner      *Banner
	lastSuccess time.Time
	lastAttempt time.Time
}

// Option configures a View.
type Option func(*View)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(v *View) { v.now = now }
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(v *View) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// OnChange registers a callback invoked after every poll.
func OnChange(fn func(Snapshot)) Option {
	return func(v *View) { v.onChange = fn }
}

// New builds a view for profile reading from source.
func New(profile Profile, source Source, opts ...Option) *View {
	if profile.Interval <= 0 {
		profile.Interval = fastInterval
	}
	v := &View{
		profile: profile,
		source:  source,
		logger:  zap.NewNop(),
		now:     time.Now,
		nudge:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Profile returns the view's profile.
func (v *View) Profile() Profile { return v.profile }

// Poll refreshes the view once. On failure the previous rows stay in place
// and a banner is raised; the error is returned for logging.
func (v *View) Poll(ctx context.Context) error {
	orders, err := v.source.Fetch(ctx, v.profile.Query())
	now := v.now()

	v.mu.Lock()
	v.lastAttempt = now
	if err != nil {
		v.banner = &Banner{Message: "Could not refresh orders: " + err.Error(), At: now}
		v.mu.Unlock()
		v.logger.Warn("view refresh failed", zap.String("view", v.profile.Name), zap.Error(err))
		v.changed()
		return err
	}
	v.orders = orders
	v.banner = nil
	v.lastSuccess = now
	v.mu.Unlock()

	v.changed()
	return nil
}

// Retry is a manual refresh.
func (v *View) Retry(ctx context.Context) error {
	return v.Poll(ctx)
}

// Dismiss hides the current banner without refreshing.
func (v *View) Dismiss() {
	v.mu.Lock()
	v.banner = nil
	v.mu.Unlock()
}

// Snapshot returns the current display state, oldest order first.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	snap := Snapshot{
		View:        v.profile.Name,
		Rows:        make([]Row, 0, len(v.orders)),
		LastSuccess: v.lastSuccess,
		LastAttempt: v.lastAttempt,
	}
	if v.banner != nil {
		b := *v.banner
		snap.Banner = &b
	}
	for _, o := range v.orders {
		age := now.Sub(o.CreatedAt)
		if age < 0 {
			age = 0
		}
		snap.Rows = append(snap.Rows, Row{
			Order: o,
			Age:   age,
			Late:  v.late(o, age),
		})
	}
	sort.SliceStable(snap.Rows, func(i, j int) bool {
		return snap.Rows[i].Order.CreatedAt.Before(snap.Rows[j].Order.CreatedAt)
	})
	return snap
}

func (v *View) late(o dto.OrderResponse, age time.Duration) bool {
	if v.profile.LateAfter <= 0 {
		return false
	}
	if st, err := status.ParseOrder(o.Status); err == nil && st.Terminal() {
		return false
	}
	return age > v.profile.LateAfter
}

// Notify asks the view to refresh early. Events for orders a tracking view
// is not following are ignored.
func (v *View) Notify(_ context.Context, evt notify.Event) {
	if evt.Type != notify.TypeOrderUpdate {
		return
	}
	if v.profile.OrderNumber != "" {
		v.mu.Lock()
		following := len(v.orders) == 0 || v.orders[0].ID == evt.OrderID
		v.mu.Unlock()
		if !following {
			return
		}
	}
	select {
	case v.nudge <- struct{}{}:
	default:
	}
}

// Run polls immediately and then on every interval or nudge until ctx ends.
func (v *View) Run(ctx context.Context) error {
	_ = v.Poll(ctx)

	ticker := time.NewTicker(v.profile.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-v.nudge:
			ticker.Reset(v.profile.Interval)
		}
		if err := v.Poll(ctx); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (v *View) changed() {
	if v.onChange != nil {
		v.onChange(v.Snapshot())
	}
}

var _ notify.Subscriber = (*View)(nil)
