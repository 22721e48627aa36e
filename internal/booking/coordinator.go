// Package booking changes orders and variant lifecycles atomically. Every
// write that can consume stock holds the variant locks, row-locks the
// variants and re-checks availability inside one transaction.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentals-backend/internal/availability"
	"github.com/angelmondragon/rentals-backend/internal/catalog"
	"github.com/angelmondragon/rentals-backend/internal/clients"
	"github.com/angelmondragon/rentals-backend/internal/payments"
	"github.com/angelmondragon/rentals-backend/internal/reservations"
	"github.com/angelmondragon/rentals-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentals-backend/pkg/errors"
	"github.com/angelmondragon/rentals-backend/pkg/locks"
	"github.com/angelmondragon/rentals-backend/pkg/logger"
	"github.com/angelmondragon/rentals-backend/pkg/metrics"
	"github.com/angelmondragon/rentals-backend/pkg/outbox"
	"github.com/angelmondragon/rentals-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

const (
	opCreateOrder      = "create_order"
	opUpdateOrder      = "update_order"
	opTransitionOrder  = "transition_order"
	opArchiveOrder     = "archive_order"
	opStartMaintenance = "start_maintenance"
	opRestoreVariant   = "restore_variant"
	opSetVariantStatus = "set_variant_status"
	opRecordPayment    = "record_payment"
)

// Params wires a Coordinator.
type Params struct {
	Tx           txRunner
	Locker       locks.Locker
	Catalog      *catalog.Repository
	Reservations reservations.Repository
	Clients      clients.Repository
	Payments     payments.Repository
	Outbox       outbox.Emitter
	Metrics      *metrics.BookingMetrics
	Logger       *logger.Logger
	Now          func() time.Time
}

// Service is the booking surface exposed to the HTTP layer.
type Service interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*OrderDTO, error)
	ListOrders(ctx context.Context, filter reservations.OrderFilter, page pagination.Params) (pagination.Page[OrderDTO], error)
	CreateOrder(ctx context.Context, actor *uuid.UUID, input CreateOrderInput) (*OrderDTO, error)
	UpdateOrder(ctx context.Context, actor *uuid.UUID, id uuid.UUID, input UpdateOrderInput) (*OrderDTO, error)
	TransitionOrder(ctx context.Context, actor *uuid.UUID, id uuid.UUID, to enums.OrderStatus) (*OrderDTO, error)
	ArchiveOrder(ctx context.Context, id uuid.UUID) error
	RecordPayment(ctx context.Context, actor *uuid.UUID, orderID uuid.UUID, input payments.RecordPaymentInput) (*PaymentResult, error)

	StartMaintenance(ctx context.Context, actor *uuid.UUID, variantID uuid.UUID, input MaintenanceInput) (*VariantStatusResult, error)
	RestoreVariant(ctx context.Context, actor *uuid.UUID, variantID uuid.UUID) (*VariantStatusResult, error)
	SetVariantStatus(ctx context.Context, actor *uuid.UUID, variantID uuid.UUID, to enums.VariantStatus) (*VariantStatusResult, error)
}

var _ Service = (*Coordinator)(nil)

// Coordinator is the only writer of orders, holds and variant statuses.
type Coordinator struct {
	tx       txRunner
	locker   locks.Locker
	catalog  *catalog.Repository
	ledger   reservations.Repository
	clients  clients.Repository
	payments payments.Repository
	calc     *availability.Calculator
	outbox   outbox.Emitter
	metrics  *metrics.BookingMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func NewCoordinator(p Params) (*Coordinator, error) {
	switch {
	case p.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case p.Locker == nil:
		return nil, fmt.Errorf("locker required")
	case p.Catalog == nil:
		return nil, fmt.Errorf("catalog repository required")
	case p.Reservations == nil:
		return nil, fmt.Errorf("reservations repository required")
	case p.Clients == nil:
		return nil, fmt.Errorf("clients repository required")
	case p.Payments == nil:
		return nil, fmt.Errorf("payments repository required")
	case p.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	}
	now := p.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Coordinator{
		tx:       p.Tx,
		locker:   p.Locker,
		catalog:  p.Catalog,
		ledger:   p.Reservations,
		clients:  p.Clients,
		payments: p.Payments,
		calc:     availability.NewCalculator(p.Catalog, p.Reservations),
		outbox:   p.Outbox,
		metrics:  p.Metrics,
		logg:     logg,
		now:      now,
	}, nil
}

// lockVariants takes the booking locks of every id. A lock that cannot be
// taken within the configured wait is reported as a conflict; callers are
// expected to retry after re-reading availability.
func (c *Coordinator) lockVariants(ctx context.Context, ids []uuid.UUID) (locks.Release, error) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, id.String())
	}
	started := time.Now()
	release, err := c.locker.Acquire(ctx, keys...)
	c.metrics.ObserveLockWait(time.Since(started))
	if err == nil {
		return release, nil
	}
	if errors.Is(err, locks.ErrNotAcquired) {
		details := map[string]any{"variant_ids": keys}
		if len(keys) > 0 {
			details["variant_id"] = keys[0]
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "variant is being booked by another request").
			WithDetails(details)
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire variant locks")
}

// observe records the outcome of an operation started at started.
func (c *Coordinator) observe(ctx context.Context, op string, started time.Time, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		switch pkgerrors.CodeOf(err) {
		case pkgerrors.CodeConflict, pkgerrors.CodeInsufficientStock:
			outcome = metrics.OutcomeConflict
		case pkgerrors.CodeInternal, pkgerrors.CodeDependency:
			outcome = metrics.OutcomeError
		default:
			outcome = metrics.OutcomeRejected
		}
	}
	c.metrics.ObserveOperation(op, outcome, time.Since(started))

	if outcome == metrics.OutcomeError {
		c.logg.Error(c.logg.WithField(ctx, "operation", op), "booking operation failed", err)
	}
}

// storeError maps a storage failure to a typed error unless it already is one.
func storeError(err error, entity, action string) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, entity+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func emit(ctx context.Context, emitter outbox.Emitter, tx *gorm.DB, event outbox.DomainEvent, actor *uuid.UUID) error {
	if actor != nil {
		event.Actor = &outbox.ActorRef{UserID: *actor}
	}
	if err := emitter.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record booking event")
	}
	return nil
}
