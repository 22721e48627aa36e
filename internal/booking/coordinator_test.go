package booking

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentals-backend/internal/catalog"
	"github.com/angelmondragon/rentals-backend/internal/clients"
	"github.com/angelmondragon/rentals-backend/internal/payments"
	"github.com/angelmondragon/rentals-backend/internal/reservations"
	"github.com/angelmondragon/rentals-backend/pkg/db"
	"github.com/angelmondragon/rentals-backend/pkg/db/dbtest"
	"github.com/angelmondragon/rentals-backend/pkg/db/models"
	"github.com/angelmondragon/rentals-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentals-backend/pkg/errors"
	"github.com/angelmondragon/rentals-backend/pkg/locks"
	"github.com/angelmondragon/rentals-backend/pkg/logger"
	"github.com/angelmondragon/rentals-backend/pkg/metrics"
	"github.com/angelmondragon/rentals-backend/pkg/outbox"
	"github.com/angelmondragon/rentals-backend/pkg/pagination"
	"github.com/angelmondragon/rentals-backend/pkg/types"
)

var (
	may1  = types.NewDate(2026, time.May, 1)
	may3  = types.NewDate(2026, time.May, 3)
	may5  = types.NewDate(2026, time.May, 5)
	may10 = types.NewDate(2026, time.May, 10)
)

type harness struct {
	coord *Coordinator
	conn  *gorm.DB
	now   time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessOn(t, dbtest.Open(t))
}

func newHarnessOn(t *testing.T, conn *gorm.DB) *harness {
	t.Helper()
	h := &harness{conn: conn, now: time.Date(2026, time.April, 20, 10, 0, 0, 0, time.UTC)}
	coord, err := NewCoordinator(Params{
		Tx:           db.Wrap(conn),
		Locker:       locks.NewLocal(5 * time.Second),
		Catalog:      catalog.NewRepository(conn),
		Reservations: reservations.NewRepository(conn),
		Clients:      clients.NewRepository(conn),
		Payments:     payments.NewRepository(conn),
		Outbox:       outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
		Metrics:      metrics.NewBookingMetrics(prometheus.NewRegistry()),
		Logger:       logger.Nop(),
		Now:          func() time.Time { return h.now },
	})
	require.NoError(t, err)
	h.coord = coord
	return h
}

func (h *harness) book(t *testing.T, clientID, variantID uuid.UUID, qty int, start, end types.Date) (*OrderDTO, error) {
	t.Helper()
	return h.coord.CreateOrder(context.Background(), nil, CreateOrderInput{
		ClientID:  clientID,
		StartDate: start,
		EndDate:   end,
		Lines:     []LineInput{{VariantID: variantID, Quantity: qty}},
	})
}

func (h *harness) eventCount(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, pkgerrors.CodeOf(err), "unexpected error: %v", err)
}

func intPtr(v int) *int { return &v }

func TestNewCoordinatorRequiresDependencies(t *testing.T) {
	_, err := NewCoordinator(Params{})
	require.Error(t, err)
}

func TestCreateOrderComputesTotalsAndEmits(t *testing.T) {
	h := newHarness(t)
	client := dbtest.SeedClient(t, h.conn, 10)
	_, variant := dbtest.SeedVariant(t, h.conn, dbtest.VariantSpec{Stock: 3, Price: "1000"})
	actor := uuid.New()

	order, err := h.coord.CreateOrder(context.Background(), &actor, CreateOrderInput{
		ClientID:  client.ID,
		StartDate: may1,
		EndDate:   may5,
		Lines:     []LineInput{{VariantID: variant.ID, Quantity: 2}},
		DeliveryInfo: &types.DeliveryInfo{
			PickupType: enums.DeliveryTypeTaxi,
			Cost:       decimal.NewFromInt(300),
		},
		Tags: []string{" vip ", "vip", ""},
	})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusBooked, order.Status)
	assert.Equal(t, 10, order.Discount)
	assert.Equal(t, []string{"vip"}, order.Tags)
	require.Len(t, order.Lines, 1)
	assert.True(t, order.Lines[0].Price.Equal(decimal.NewFromInt(1000)))
	assert.True(t, order.PaymentDetails.ItemsCost.Equal(decimal.NewFromInt(2000)))
	assert.True(t, order.PaymentDetails.DiscountValue.Equal(decimal.NewFromInt(200)))
	assert.True(t, order.PaymentDetails.Total.Equal(decimal.NewFromInt(2100)))
	assert.True(t, order.PaymentDetails.RequiredDeposit.Equal(decimal.NewFromInt(100)))
	assert.True(t, order.PaymentDetails.AmountDue.Equal(decimal.NewFromInt(1800)))
	assert.Equal(t, &actor, order.CreatedByUserID)
	assert.EqualValues(t, 1, h.eventCount(t, enums.EventOrderCreated))
}

func TestCreateOrderExplicitDiscountOverridesClient(t *testing.T) {
	h := newHarness(t)
	client := dbtest.SeedClient(t, h.conn, 15)
	_, variant := dbtest.SeedVariant(t, h.conn, dbtest.VariantSpec{Stock: 1})

	order, err := h.coord.CreateOrder(context.Background(), nil, CreateOrderInput{
		ClientID:  client.ID,
		StartDate: may1,
		EndDate:   may3,
		Lines:     []LineInput{{VariantID: variant.ID, Quantity: 1}},
		Discount:  intPtr(0),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, order.Discount)
}

func TestCreateOrderRejectsOverbooking(t *testing.T) {
	h := newHarness(t)
	client := dbtest.SeedClient(t, h.conn, 0)
	_, variant := dbtest.SeedVariant(t, h.conn, dbtest.VariantSpec{Stock: 2})

	_, err := h.book(t, client.ID, variant.ID, 2, may1, may5)
	require.NoError(t, err)

	_, err = h.book(t, client.ID, variant.ID, 1, may3, may10)
	assertCode(t, err, pkgerrors.CodeConflict)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, variant.ID.String(), details["variant_id"])
	assert.Equal(t, 0, details["remaining"])

	var orders int64
	require.NoError(t, h.conn.Model(&models.Order{}).Count(&orders).Error)
	assert.EqualValues(t, 1, orders)
}

func TestCreateOrderAggregatesLinesOfTheSameVariant(t *testing.T) {
	h := newHarness(t)
	client := dbtest.SeedClient(t, h.conn, 0)
	_, variant := dbtest.SeedVariant(t, h.conn, dbtest.VariantSpec{Stock: 2})

	_, err := h.coord.CreateOrder(context.Background(), nil, CreateOrderInput{
		ClientID:  client.ID,
		StartDate: may1,
		EndDate:   may3,
		Lines: []LineInput{
			{VariantID: variant.ID, Quantity: 2},
			{VariantID: variant.ID, Quantity: 1},
		},
	})
	assertCode(t, err, pkgerrors.CodeConflict)
}

func TestCreateOrderAllowsAdjacentWindows(t *testing.T) {
	h := newHarness(t)
	client := dbtest.SeedClient(t, h.conn, 0)
	_, variant := dbtest.SeedVariant(t, h.conn, dbtest.VariantSpec{Stock: 1})

	_, err := h.book(t, client.ID, variant.ID, 1, may1, may5)
	require.NoError(t, err)
	_, err = h.book(t, client.ID, variant.ID, 1, may5, may10)
	require.NoError(t, err)
}

func TestCreateOrderIsAllOrNothing(t *testing.T) {
	h := newHarness(t)
	client := dbtest.SeedClient(t, h.conn, 0)
	_, free := dbtest.SeedVariant(t, h.conn, dbtest.VariantSpec{Stock: 5})
	_, busy := dbtest.SeedVariant(t, h.conn, dbtest.VariantSpec{Stock: 1})
	_, err := h.book(t, client.ID, busy.ID, 1, may1, may5)
	require.NoError(t, err)

	_, err = h.coord.CreateOrder(context.Background(), nil, CreateOrderInput{
		ClientID:  client.ID,
		StartDate: may1,
		EndDate:   may5,
		Lines: []LineInput{
			{VariantID: free.ID, Quantity: 1},
			{VariantID: busy.ID, Quantity: 1},
		},
	})
	assertCode(t, err, pkgerrors.CodeConflict)

	var lines int64
	require.NoError(t, h.conn.Model(&models.OrderLine{}).Where("variant_id = ?", free.ID).Count(&lines).Error)
	assert.Zero(t, lines)
	assert.EqualValues(t, 1, h.eventCount(t, enums.EventOrderCreated))
}

func TestCreateOrderValidation(t *testing.T) {
	h := newHarness(t)
	client := dbtest.SeedClient(t, h.conn, 0)
	_, variant := dbtest.SeedVariant(t, h.conn, dbtest.VariantSpec{Stock: 1})
	_, repair := dbtest.SeedVariant(t, h.conn, dbtest.VariantSpec{Stock: 1, Status: enums.VariantStatusRepair})
	ctx := context.Background()

	_, err := h.book(t, client.ID, variant.ID, 1, may5, may1)
	assertCode(t, err, pkgerrors.CodeInvalidRange)

	_, err = h.book(t, client.ID, variant.ID, 0, may1, may5)
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = h.coord.CreateOrder(ctx, nil, CreateOrderInput{ClientID: client.ID, StartDate: may1, EndDate: may5})
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = h.book(t, uuid.New(), variant.ID, 1, may1, may5)
	assertCode(t, err, pkgerrors.CodeNotFound)

	_, err = h.book(t, client.ID, uuid.New(), 1, may1, may5)
	assertCode(t, err, pkgerrors.CodeNotFound)

	_, err = h.book(t, client.ID, repair.ID, 1, may1, may5)
	assertCode(t, err, pkgerrors.CodeConflict)

	foreign := uuid.New()
	_, err = h.coord.CreateOrder(ctx, nil, CreateOrderInput{
		ClientID:  client.ID,
		StartDate: may1,
		EndDate:   may5,
		Lines:     []LineInput{{VariantID: variant.ID, PriceID: &foreign, Quantity: 1}},
	})
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = h.coord.CreateOrder(ctx, nil, CreateOrderInput{
		ClientID:     client.ID,
		StartDate:    may1,
		EndDate:      may5,
		Lines:        []LineInput{{VariantID: variant.ID, Quantity: 1}},
		DeliveryInfo: &types.DeliveryInfo{PickupType: enums.DeliveryTypeShowroom, Cost: decimal.RequireFromString("-1")},
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestCreateOrderRejectsArchivedClient(t *testing.T) {
	h := newHarness(t)
	client := dbtest.SeedClient(t, h.conn, 0)
	require.NoError(t, h.conn.Model(client).Update("is_archived", true).Error)
	_, variant := dbtest.SeedVariant(t, h.conn, dbtest.VariantSpec{Stock: 1})

	_, err := h.book(t, client.ID, variant.ID, 1, may1, may5)
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestCancelReleasesStock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	client := dbtest.SeedClient(t, h.conn, 0)
	_, variant := dbtest.SeedVariant(t, h.conn, dbtest.VariantSpec{Stock: 1})

	first, err := h.book(t, client.ID, variant.ID, 1, may1, may5)
	require.NoError(t, err)
	_, err = h.book(t, client.ID, variant.ID, 1, may1, may5)
	assertCode(t, err, pkgerrors.CodeConflict)

	canceled, err := h.coord.TransitionOrder(ctx, nil, first.ID, enums.OrderStatusCanceled)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCanceled, canceled.Status)
	assert.Empty(t, canceled.NextStatuses)

	_, err = h.book(t, client.ID, variant.ID, 1, may1, may5)
	require.NoError(t, err)
	assert.EqualValues(t, 1, h.eventCount(t, enums.EventOrderStatusChanged))
}

func TestTransitionOrderLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	client := dbtest.SeedClient(t, h.conn, 0)
	_, variant := dbtest.SeedVariant(t, h.conn, dbtest.VariantSpec{Stock: 1})
	order, err := h.book(t, client.ID, variant.ID, 1, may1, may5)
	require.NoError(t, err)

	_, err = h.coord.TransitionOrder(ctx, nil, order.ID, enums.OrderStatusDone)
	assertCode(t, err, pkgerrors.CodeInvalidTransition)

	for _, to := range []enums.OrderStatus{enums.OrderStatusIssued, enums.OrderStatusReturned, enums.OrderStatusDone} {
		order, err = h.coord.TransitionOrder(ctx, nil, order.ID, to)
		require.NoError(t, err)
		assert.Equal(t, to, order.Status)
	}

	_, err = h.coord.TransitionOrder(ctx, nil, order.ID, enums.OrderStatusBooked)
	assertCode(t, err, pkgerrors.CodeInvalidTransition)

	_, err = h.coord.TransitionOrder(ctx, nil, uuid.New(), enums.OrderStatusIssued)
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestReturnedOrderFreesUnits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	client := dbtest.SeedClient(t, h.conn, 0)
	_, variant := dbtest.SeedVariant(t, h.conn, dbtest.VariantSpec{Stock: 1})
	order, err := h.book(t, client.ID, variant.ID, 1, may1, may5)
	require.NoError(t, err)

	_, err = h.coord.TransitionOrder(ctx, nil, order.ID, enums.OrderStatusIssued)
	require.NoError(t, err)
	_, err = h.book(t, client.ID, variant.ID, 1, may3, may10)
	assertCode(t, err, pkgerrors.CodeConflict)

	_, err = h.coord.TransitionOrder(ctx, nil, order.ID, enums.OrderStatusReturned)
	require.NoError(t, err)
	_, err = h.book(t, client.ID, variant.ID, 1, may3, may10)
	require.NoError(t, err)
}

func TestUpdateOrderExcludesItsOwnLines(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	client := dbtest.SeedClient(t, h.conn, 0)
	_, variant := dbtest.SeedVariant(t, h.conn, dbtest.VariantSpec{Stock: 1, Price: "500"})
	order, err := h.book(t, client.ID, variant.ID, 1, may1, may5)
	require.NoError(t, err)

	end := may10
	updated, err := h.coord.UpdateOrder(ctx, nil, order.ID, UpdateOrderInput{EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, may10, updated.EndDate)

	lines := []LineInput{{VariantID: variant.ID, Quantity: 2}}
	_, err = h.coord.UpdateOrder(ctx, nil, order.ID, UpdateOrderInput{Lines: &lines})
	assertCode(t, err, pkgerrors.CodeConflict)

	discount := 50
	updated, err = h.coord.UpdateOrder(ctx, nil, order.ID, UpdateOrderInput{Discount: &discount})
	require.NoError(t, err)
	assert.True(t, updated.PaymentDetails.Total.Equal(decimal.NewFromInt(250)))
	assert.EqualValues(t, 2, h.eventCount(t, enums.EventOrderUpdated))
}

func TestUpdateOrderKeepsCapturedPrice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	client := dbtest.SeedClient(t, h.conn, 0)
	_, variant := dbtest.SeedVariant(t, h.conn, dbtest.VariantSpec{Stock: 3, Price: "500"})
	order, err := h.book(t, client.ID, variant.ID, 1, may1, may5)
	require.NoError(t, err)

	require.NoError(t, h.conn.Model(&models.VariantPrice{}).Where("variant_id = ?", variant.ID).Update("amount", decimal.NewFromInt(900)).Error)

	lines := []LineInput{{VariantID: variant.ID, Quantity: 2}}
	updated, err := h.coord.UpdateOrder(ctx, nil, order.ID, UpdateOrderInput{Lines: &lines})
	require.NoError(t, err)
	require.Len(t, updated.Lines, 1)
	assert.True(t, updated.Lines[0].Price.Equal(decimal.NewFromInt(500)))
	assert.True(t, updated.PaymentDetails.ItemsCost.Equal(decimal.NewFromInt(1000)))
}

func TestUpdateOrderAfterIssueOnlyTouchesNotes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	client := dbtest.SeedClient(t, h.conn, 0)
	_, variant := dbtest.SeedVariant(t, h.conn, dbtest.VariantSpec{Stock: 1})
	order, err := h.book(t, client.ID, variant.ID, 1, may1, may5)
	require.NoError(t, err)
	_, err = h.coord.TransitionOrder(ctx, nil, order.ID, enums.OrderStatusIssued)
	require.NoError(t, err)

	end := may10
	_, err = h.coord.UpdateOrder(ctx, nil, order.ID, UpdateOrderInput{EndDate: &end})
	assertCode(t, err, pkgerrors.CodeStateConflict)

	notes := "returned with a stain"
	tracking := "TRK-1"
	updated, err := h.coord.UpdateOrder(ctx, nil, order.ID, UpdateOrderInput{Notes: &notes, TrackingNumber: &tracking})
	require.NoError(t, err)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, notes, *updated.Notes)
	require.NotNil(t, updated.DeliveryInfo.TrackingNumber)
	assert.Equal(t, tracking, *updated.DeliveryInfo.TrackingNumber)
}

func TestRecordPaymentRecomputesAmountDue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	client := dbtest.SeedClient(t, h.conn, 0)
	_, variant := dbtest.SeedVariant(t, h.conn, dbtest.VariantSpec{Stock: 1, Price: "1000"})
	order, err := h.book(t, client.ID, variant.ID, 1, may1, may5)
	require.NoError(t, err)

	res, err := h.coord.RecordPayment(ctx, nil, order.ID, payments.RecordPaymentInput{
		Amount: decimal.NewFromInt(400),
		Method: enums.PaymentMethodCash,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentEntryTypePayment, res.Payment.EntryType)
	assert.True(t, res.Order.PaymentDetails.Paid.Equal(decimal.NewFromInt(400)))
	assert.True(t, res.Order.PaymentDetails.AmountDue.Equal(decimal.NewFromInt(600)))

	res, err = h.coord.RecordPayment(ctx, nil, order.ID, payments.RecordPaymentInput{
		Amount:    decimal.NewFromInt(50),
		Method:    enums.PaymentMethodCard,
		EntryType: enums.PaymentEntryTypeDeposit,
	})
	require.NoError(t, err)
	assert.True(t, res.Order.PaymentDetails.Deposit.Equal(decimal.NewFromInt(50)))
	assert.True(t, res.Order.PaymentDetails.AmountDue.Equal(decimal.NewFromInt(600)))

	res, err = h.coord.RecordPayment(ctx, nil, order.ID, payments.RecordPaymentInput{
		Amount: decimal.NewFromInt(700),
		Method: enums.PaymentMethodTerminal,
	})
	require.NoError(t, err)
	assert.True(t, res.Order.PaymentDetails.AmountDue.Equal(decimal.NewFromInt(-100)), res.Order.PaymentDetails.AmountDue.String())
	assert.True(t, res.Order.PaymentDetails.AmountDueDisplay.IsZero())

	_, err = h.coord.RecordPayment(ctx, nil, order.ID, payments.RecordPaymentInput{Amount: decimal.Zero, Method: enums.PaymentMethodCash})
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = h.coord.RecordPayment(ctx, nil, uuid.New(), payments.RecordPaymentInput{Amount: decimal.NewFromInt(1), Method: enums.PaymentMethodCash})
	assertCode(t, err, pkgerrors.CodeNotFound)
	assert.EqualValues(t, 3, h.eventCount(t, enums.EventPaymentRecorded))
}

func TestArchiveOrderRequiresReleasedStock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	client := dbtest.SeedClient(t, h.conn, 0)
	_, variant := dbtest.SeedVariant(t, h.conn, dbtest.VariantSpec{Stock: 1})
	order, err := h.book(t, client.ID, variant.ID, 1, may1, may5)
	require.NoError(t, err)

	assertCode(t, h.coord.ArchiveOrder(ctx, order.ID), pkgerrors.CodeStateConflict)

	_, err = h.coord.TransitionOrder(ctx, nil, order.ID, enums.OrderStatusCanceled)
	require.NoError(t, err)
	require.NoError(t, h.coord.ArchiveOrder(ctx, order.ID))
	require.NoError(t, h.coord.ArchiveOrder(ctx, order.ID))

	page, err := h.coord.ListOrders(ctx, reservations.OrderFilter{}, pagination.Params{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	page, err = h.coord.ListOrders(ctx, reservations.OrderFilter{IncludeArchived: true}, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.True(t, page.Items[0].IsArchived)
}

func TestListOrdersValidatesFilter(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.coord.ListOrders(ctx, reservations.OrderFilter{Status: "lost"}, pagination.Params{})
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = h.coord.ListOrders(ctx, reservations.OrderFilter{}, pagination.Params{Cursor: "%%%"})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestMaintenanceBlocksAndRestoreReleases(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	client := dbtest.SeedClient(t, h.conn, 0)
	_, variant := dbtest.SeedVariant(t, h.conn, dbtest.VariantSpec{Stock: 2})

	res, err := h.coord.StartMaintenance(ctx, nil, variant.ID, MaintenanceInput{
		Kind:      enums.MaintenanceKindCleaning,
		StartDate: may1,
		EndDate:   may3,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.VariantStatusCleaning, res.Variant.Status)
	require.NotNil(t, res.Hold)
	assert.Equal(t, 2, res.Hold.Quantity)

	_, err = h.book(t, client.ID, variant.ID, 1, may5, may10)
	assertCode(t, err, pkgerrors.CodeConflict)

	_, err = h.coord.SetVariantStatus(ctx, nil, variant.ID, enums.VariantStatusUnavailable)
	assertCode(t, err, pkgerrors.CodeInvalidTransition)

	res, err = h.coord.RestoreVariant(ctx, nil, variant.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.VariantStatusAvailable, res.Variant.Status)
	assert.EqualValues(t, 1, res.ReleasedHolds)

	var hold models.MaintenanceHold
	require.NoError(t, h.conn.Where("variant_id = ?", variant.ID).First(&hold).Error)
	require.NotNil(t, hold.ReleasedAt)
	assert.True(t, hold.ReleasedAt.Equal(h.now))

	_, err = h.book(t, client.ID, variant.ID, 2, may1, may3)
	require.NoError(t, err)
	assert.EqualValues(t, 2, h.eventCount(t, enums.EventVariantStatusChanged))
}

func TestStartMaintenanceNeedsFreeUnits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	client := dbtest.SeedClient(t, h.conn, 0)
	_, variant := dbtest.SeedVariant(t, h.conn, dbtest.VariantSpec{Stock: 2})
	_, err := h.book(t, client.ID, variant.ID, 1, may1, may5)
	require.NoError(t, err)

	_, err = h.coord.StartMaintenance(ctx, nil, variant.ID, MaintenanceInput{
		Kind:      enums.MaintenanceKindRepair,
		StartDate: may3,
		EndDate:   may10,
	})
	assertCode(t, err, pkgerrors.CodeConflict)

	_, err = h.coord.StartMaintenance(ctx, nil, variant.ID, MaintenanceInput{
		Kind:      enums.MaintenanceKindRepair,
		StartDate: may3,
		EndDate:   may10,
		Quantity:  intPtr(3),
	})
	assertCode(t, err, pkgerrors.CodeValidation)

	res, err := h.coord.StartMaintenance(ctx, nil, variant.ID, MaintenanceInput{
		Kind:      enums.MaintenanceKindRepair,
		StartDate: may3,
		EndDate:   may10,
		Quantity:  intPtr(1),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.VariantStatusRepair, res.Variant.Status)

	_, err = h.coord.StartMaintenance(ctx, nil, variant.ID, MaintenanceInput{
		Kind:      enums.MaintenanceKindCleaning,
		StartDate: may3,
		EndDate:   may10,
	})
	assertCode(t, err, pkgerrors.CodeInvalidTransition)
}

func TestSetVariantStatusManual(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	client := dbtest.SeedClient(t, h.conn, 0)
	_, variant := dbtest.SeedVariant(t, h.conn, dbtest.VariantSpec{Stock: 1})

	res, err := h.coord.SetVariantStatus(ctx, nil, variant.ID, enums.VariantStatusUnavailable)
	require.NoError(t, err)
	assert.Equal(t, enums.VariantStatusUnavailable, res.Variant.Status)

	_, err = h.book(t, client.ID, variant.ID, 1, may1, may5)
	assertCode(t, err, pkgerrors.CodeConflict)

	_, err = h.coord.SetVariantStatus(ctx, nil, variant.ID, enums.VariantStatusRepair)
	assertCode(t, err, pkgerrors.CodeInvalidTransition)

	res, err = h.coord.SetVariantStatus(ctx, nil, variant.ID, enums.VariantStatusAvailable)
	require.NoError(t, err)
	assert.Equal(t, enums.VariantStatusAvailable, res.Variant.Status)

	_, err = h.coord.SetVariantStatus(ctx, nil, uuid.New(), enums.VariantStatusUnavailable)
	assertCode(t, err, pkgerrors.CodeNotFound)
}

// TestConcurrentBookingsNeverOversell runs rounds of callers racing for a
// variant with fewer units than callers, each asking for a different window
// that overlaps others. The database serves several connections, so only the
// variant lock keeps check-then-insert from interleaving.
func TestConcurrentBookingsNeverOversell(t *testing.T) {
	if testing.Short() {
		t.Skip("booking stress test")
	}
	h := newHarnessOn(t, dbtest.OpenConcurrent(t, 8))
	seed := time.Now().UnixNano()
	t.Logf("seed %d", seed)
	rng := rand.New(rand.NewSource(seed))

	const rounds = 15
	for round := 0; round < rounds; round++ {
		// Every third round is a last-unit round: one unit and windows that
		// differ but all contain May 5, so exactly one caller can win.
		lastUnit := round%3 == 0
		stock := 1 + rng.Intn(3)
		if lastUnit {
			stock = 1
		}
		callers := stock + 2 + rng.Intn(4)
		client := dbtest.SeedClient(t, h.conn, 0)
		_, variant := dbtest.SeedVariant(t, h.conn, dbtest.VariantSpec{Stock: stock})

		windows := make([]types.DateRange, callers)
		jitter := make([]time.Duration, callers)
		for i := range windows {
			if lastUnit {
				windows[i] = types.DateRange{Start: may1.AddDays(rng.Intn(4)), End: may5.AddDays(1 + rng.Intn(4))}
			} else {
				start := may1.AddDays(rng.Intn(6))
				windows[i] = types.DateRange{Start: start, End: start.AddDays(2 + rng.Intn(4))}
			}
			jitter[i] = time.Duration(rng.Intn(1500)) * time.Microsecond
		}

		results := make([]error, callers)
		var wg sync.WaitGroup
		for i := range windows {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				time.Sleep(jitter[i])
				_, results[i] = h.book(t, client.ID, variant.ID, 1, windows[i].Start, windows[i].End)
			}(i)
		}
		wg.Wait()

		wins := 0
		for i, err := range results {
			switch {
			case err == nil:
				wins++
			case pkgerrors.IsCode(err, pkgerrors.CodeConflict):
			default:
				t.Fatalf("round %d caller %d %s: unexpected error: %v", round, i, windows[i], err)
			}
		}
		require.Positive(t, wins, "round %d", round)
		if lastUnit {
			assert.Equal(t, 1, wins, "round %d: last unit", round)
		}

		var orders []models.Order
		require.NoError(t, h.conn.
			Where("id IN (?)", h.conn.Model(&models.OrderLine{}).Select("order_id").Where("variant_id = ?", variant.ID)).
			Find(&orders).Error)
		require.Len(t, orders, wins, "round %d", round)

		booked := map[string]int{}
		for _, o := range orders {
			for d := o.StartDate; d.Before(o.EndDate); d = d.AddDays(1) {
				booked[d.String()]++
			}
		}
		for day, n := range booked {
			assert.LessOrEqual(t, n, stock, "round %d: %s holds %d units of %d", round, day, n, stock)
		}

		// Rejections only happen when a day of the window was already full,
		// and bookings only add units, so that day is still full at the end.
		for i, err := range results {
			if err == nil {
				continue
			}
			full := false
			for d := windows[i].Start; d.Before(windows[i].End); d = d.AddDays(1) {
				if booked[d.String()] >= stock {
					full = true
					break
				}
			}
			assert.True(t, full, "round %d: caller %d rejected for %s with room left", round, i, windows[i])
		}
	}
}

func TestLockTimeoutIsConflict(t *testing.T) {
	conn := dbtest.Open(t)
	locker := locks.NewLocal(20 * time.Millisecond)
	coord, err := NewCoordinator(Params{
		Tx:           db.Wrap(conn),
		Locker:       locker,
		Catalog:      catalog.NewRepository(conn),
		Reservations: reservations.NewRepository(conn),
		Clients:      clients.NewRepository(conn),
		Payments:     payments.NewRepository(conn),
		Outbox:       outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
	})
	require.NoError(t, err)
	client := dbtest.SeedClient(t, conn, 0)
	_, variant := dbtest.SeedVariant(t, conn, dbtest.VariantSpec{Stock: 1})

	release, err := locker.Acquire(context.Background(), variant.ID.String())
	require.NoError(t, err)
	defer release()

	_, err = coord.CreateOrder(context.Background(), nil, CreateOrderInput{
		ClientID:  client.ID,
		StartDate: may1,
		EndDate:   may5,
		Lines:     []LineInput{{VariantID: variant.ID, Quantity: 1}},
	})
	assertCode(t, err, pkgerrors.CodeConflict)
}
