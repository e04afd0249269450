package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/lakehouse-dev/scheduler/internal/events"
	"github.com/lakehouse-dev/scheduler/internal/metrics"
	"github.com/lakehouse-dev/scheduler/internal/models"
	"gorm.io/gorm"
)

// DefaultOverdueAfterDays is how long an assignment may stay ASSIGNED before
// it is reported overdue.
const DefaultOverdueAfterDays = 7

// Option configures a service.
type Option func(*base)

// WithClock replaces time.Now, used to derive "today".
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// WithPublisher sends committed changes to p.
func WithPublisher(p events.Publisher) Option {
	return func(b *base) { b.events = p }
}

// WithMetrics records operation metrics into r.
func WithMetrics(r metrics.Recorder) Option {
	return func(b *base) { b.metrics = r }
}

// WithOverdueAfterDays overrides DefaultOverdueAfterDays.
func WithOverdueAfterDays(days int) Option {
	return func(b *base) {
		if days > 0 {
			b.overdueAfterDays = days
		}
	}
}

// base holds the collaborators shared by every service.
type base struct {
	db               *gorm.DB
	now              func() time.Time
	events           events.Publisher
	metrics          metrics.Recorder
	overdueAfterDays int
}

func newBase(db *gorm.DB, opts []Option) base {
	b := base{
		db:               db,
		now:              time.Now,
		events:           events.Nop{},
		metrics:          metrics.Nop{},
		overdueAfterDays: DefaultOverdueAfterDays,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// today is the current calendar date in UTC, the zone stored timestamps use.
func (b *base) today() models.Date {
	return models.DateOf(b.now().UTC())
}

// publish delivers an event after commit. Delivery failures are logged and
// never fail the operation.
func (b *base) publish(ctx context.Context, ev events.Event) {
	if err := b.events.Publish(ctx, ev); err != nil {
		slog.Warn("Failed to publish event", "type", ev.Type, "resource", ev.Resource, "error", err)
	}
}

// read runs fn in a transaction so multi-statement queries (preloads, counts)
// observe one committed state.
func (b *base) read(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return b.db.WithContext(ctx).Transaction(fn)
}
