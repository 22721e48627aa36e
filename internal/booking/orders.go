package booking

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentals-backend/internal/availability"
	"github.com/angelmondragon/rentals-backend/internal/payments"
	"github.com/angelmondragon/rentals-backend/internal/pricing"
	"github.com/angelmondragon/rentals-backend/internal/reservations"
	"github.com/angelmondragon/rentals-backend/internal/status"
	"github.com/angelmondragon/rentals-backend/pkg/db/models"
	"github.com/angelmondragon/rentals-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentals-backend/pkg/errors"
	"github.com/angelmondragon/rentals-backend/pkg/outbox"
	"github.com/angelmondragon/rentals-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/rentals-backend/pkg/pagination"
	"github.com/angelmondragon/rentals-backend/pkg/types"
)

// GetOrder returns an order with its lines.
func (c *Coordinator) GetOrder(ctx context.Context, id uuid.UUID) (*OrderDTO, error) {
	order, err := c.ledger.FindOrder(ctx, id)
	if err != nil {
		return nil, storeError(err, "order", "load order")
	}
	dto := NewOrderDTO(*order)
	return &dto, nil
}

// ListOrders returns one keyset page of orders.
func (c *Coordinator) ListOrders(ctx context.Context, filter reservations.OrderFilter, page pagination.Params) (pagination.Page[OrderDTO], error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return pagination.Page[OrderDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", filter.Status))
	}
	if filter.PickupType != "" && !filter.PickupType.IsValid() {
		return pagination.Page[OrderDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown pickup type %q", filter.PickupType))
	}
	if filter.Window != nil {
		if _, err := availability.ValidateWindow(filter.Window.Start, filter.Window.End); err != nil {
			return pagination.Page[OrderDTO]{}, err
		}
	}
	if filter.CreatedFrom != nil && filter.CreatedTo != nil && !filter.CreatedFrom.Before(*filter.CreatedTo) {
		return pagination.Page[OrderDTO]{}, pkgerrors.New(pkgerrors.CodeInvalidRange, "created_from must be before created_to")
	}
	switch page.SortBy {
	case "", pagination.CreatedAt, "start_date", "end_date":
	default:
		return pagination.Page[OrderDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported sort column %q", page.SortBy))
	}
	if _, err := pagination.ParseCursor(page.Cursor); err != nil {
		return pagination.Page[OrderDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := c.ledger.ListOrders(ctx, filter, page)
	if err != nil {
		return pagination.Page[OrderDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	trimmed := pagination.Trim(rows, page.Limit, func(o models.Order) pagination.Cursor {
		c := pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
		switch page.SortBy {
		case "start_date":
			c.Value = o.StartDate.String()
		case "end_date":
			c.Value = o.EndDate.String()
		}
		return c
	})
	return pagination.Map(trimmed, NewOrderDTO), nil
}

// CreateOrder books every line or nothing. A line whose variant cannot cover
// the aggregated quantity for the window aborts the whole order with a
// Conflict naming that variant.
func (c *Coordinator) CreateOrder(ctx context.Context, actor *uuid.UUID, input CreateOrderInput) (_ *OrderDTO, err error) {
	started := time.Now()
	defer func() { c.observe(ctx, opCreateOrder, started, err) }()

	window, err := availability.ValidateWindow(input.StartDate, input.EndDate)
	if err != nil {
		return nil, err
	}
	if input.ClientID == uuid.Nil {
		return nil, fieldError("client_id", "client is required")
	}
	demand, ids, err := aggregateLines(input.Lines)
	if err != nil {
		return nil, err
	}
	if input.Discount != nil {
		if err := validateDiscount(*input.Discount); err != nil {
			return nil, err
		}
	}
	delivery, err := normalizeDelivery(input.DeliveryInfo)
	if err != nil {
		return nil, err
	}
	if input.PaymentType != nil && !input.PaymentType.IsValid() {
		return nil, fieldError("payment_type", fmt.Sprintf("unknown payment type %q", *input.PaymentType))
	}

	release, err := c.lockVariants(ctx, ids)
	if err != nil {
		return nil, err
	}
	defer release()

	var orderID uuid.UUID
	err = c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		client, err := c.clients.WithTx(tx).Find(ctx, input.ClientID)
		if err != nil {
			return storeError(err, "client", "load client")
		}
		if client.IsArchived {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "client is archived").
				WithDetails(map[string]any{"client_id": client.ID.String()})
		}

		variants, err := c.reserve(ctx, tx, window, demand, ids, ids, nil)
		if err != nil {
			return err
		}
		lines, err := buildLines(input.Lines, variants, nil)
		if err != nil {
			return err
		}

		discount := client.Discount
		if input.Discount != nil {
			discount = *input.Discount
		}
		order := &models.Order{
			ClientID:        client.ID,
			Status:          enums.OrderStatusBooked,
			StartDate:       window.Start,
			EndDate:         window.End,
			Discount:        discount,
			DeliveryInfo:    delivery,
			PaymentType:     input.PaymentType,
			TransactionID:   input.TransactionID,
			Tags:            cleanTags(input.Tags),
			Notes:           input.Notes,
			CreatedByUserID: actor,
			Lines:           lines,
		}
		pricing.Apply(order, []models.Payment{})

		if err := c.ledger.WithTx(tx).CreateOrder(ctx, order); err != nil {
			return storeError(err, "order", "create order")
		}
		orderID = order.ID

		return emit(ctx, c.outbox, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderCreatedEvent{
				OrderID:   order.ID,
				ClientID:  order.ClientID,
				StartDate: order.StartDate,
				EndDate:   order.EndDate,
				Lines:     snapshot(order.Lines),
				Total:     order.Total,
			},
		}, actor)
	})
	if err != nil {
		return nil, err
	}
	return c.GetOrder(ctx, orderID)
}

// UpdateOrder edits an order. Dates, lines, discount and delivery change only
// while the order is booked. Availability is re-checked, without the order's
// own lines, for variants that are new, whose quantity grew, or for every
// variant when the window moved.
func (c *Coordinator) UpdateOrder(ctx context.Context, actor *uuid.UUID, id uuid.UUID, input UpdateOrderInput) (_ *OrderDTO, err error) {
	started := time.Now()
	defer func() { c.observe(ctx, opUpdateOrder, started, err) }()

	if input.Lines != nil {
		if _, _, err := aggregateLines(*input.Lines); err != nil {
			return nil, err
		}
	}
	if input.Discount != nil {
		if err := validateDiscount(*input.Discount); err != nil {
			return nil, err
		}
	}
	if input.PaymentType != nil && !input.PaymentType.IsValid() {
		return nil, fieldError("payment_type", fmt.Sprintf("unknown payment type %q", *input.PaymentType))
	}

	current, err := c.ledger.FindOrder(ctx, id)
	if err != nil {
		return nil, storeError(err, "order", "load order")
	}
	lockIDs := variantIDsOf(current.Lines)
	if input.Lines != nil {
		_, newIDs, _ := aggregateLines(*input.Lines)
		lockIDs = unionIDs(lockIDs, newIDs)
	}
	if !input.touchesBooking() {
		lockIDs = nil
	}

	release, err := c.lockVariants(ctx, lockIDs)
	if err != nil {
		return nil, err
	}
	defer release()

	err = c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledger := c.ledger.WithTx(tx)
		order, err := ledger.LockOrder(ctx, id)
		if err != nil {
			return storeError(err, "order", "lock order")
		}

		if input.touchesBooking() {
			if err := c.applyBookingChanges(ctx, tx, order, input, lockIDs); err != nil {
				return err
			}
		}

		if input.PaymentType != nil {
			order.PaymentType = input.PaymentType
		}
		if input.TransactionID != nil {
			order.TransactionID = input.TransactionID
		}
		if input.TrackingNumber != nil {
			order.DeliveryInfo.TrackingNumber = input.TrackingNumber
		}
		if input.Tags != nil {
			order.Tags = cleanTags(*input.Tags)
		}
		if input.Notes != nil {
			order.Notes = input.Notes
		}

		entries, err := c.payments.WithTx(tx).ListByOrderID(ctx, order.ID)
		if err != nil {
			return storeError(err, "payment", "list payments")
		}
		pricing.Apply(order, entries)
		if err := ledger.UpdateOrder(ctx, order); err != nil {
			return storeError(err, "order", "update order")
		}

		return emit(ctx, c.outbox, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderUpdated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderUpdatedEvent{
				OrderID:   order.ID,
				StartDate: order.StartDate,
				EndDate:   order.EndDate,
				Lines:     snapshot(order.Lines),
				Total:     order.Total,
			},
		}, actor)
	})
	if err != nil {
		return nil, err
	}
	return c.GetOrder(ctx, id)
}

func (c *Coordinator) applyBookingChanges(ctx context.Context, tx *gorm.DB, order *models.Order, input UpdateOrderInput, locked []uuid.UUID) error {
	if !status.OrderEditable(order.Status) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is %s; only notes, tags and tracking number can change", order.Status)).
			WithDetails(map[string]any{"status": order.Status})
	}

	start, end := order.StartDate, order.EndDate
	if input.StartDate != nil {
		start = *input.StartDate
	}
	if input.EndDate != nil {
		end = *input.EndDate
	}
	window, err := availability.ValidateWindow(start, end)
	if err != nil {
		return err
	}
	windowChanged := !window.Equal(order.Window())

	oldDemand := demandOf(order.Lines)
	newDemand := oldDemand
	newIDs := variantIDsOf(order.Lines)
	if input.Lines != nil {
		newDemand, newIDs, _ = aggregateLines(*input.Lines)
	}
	if missing := subtractIDs(newIDs, locked); len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "order lines changed concurrently; reload and retry").
			WithDetails(map[string]any{"variant_id": missing[0].String()})
	}

	var check []uuid.UUID
	for _, id := range newIDs {
		if windowChanged || newDemand[id] > oldDemand[id] {
			check = append(check, id)
		}
	}
	variants, err := c.reserve(ctx, tx, window, newDemand, newIDs, check, &order.ID)
	if err != nil {
		return err
	}

	if input.Lines != nil {
		lines, err := buildLines(*input.Lines, variants, order.Lines)
		if err != nil {
			return err
		}
		if err := c.ledger.WithTx(tx).ReplaceLines(ctx, order.ID, lines); err != nil {
			return storeError(err, "order", "replace order lines")
		}
		order.Lines = lines
	}

	order.StartDate, order.EndDate = window.Start, window.End
	if input.Discount != nil {
		order.Discount = *input.Discount
	}
	if input.DeliveryInfo != nil {
		delivery, err := normalizeDelivery(input.DeliveryInfo)
		if err != nil {
			return err
		}
		if delivery.TrackingNumber == nil {
			delivery.TrackingNumber = order.DeliveryInfo.TrackingNumber
		}
		order.DeliveryInfo = delivery
	}
	return nil
}

// TransitionOrder moves an order along its lifecycle. Leaving the
// stock-holding statuses frees the units in the same transaction.
func (c *Coordinator) TransitionOrder(ctx context.Context, actor *uuid.UUID, id uuid.UUID, to enums.OrderStatus) (_ *OrderDTO, err error) {
	started := time.Now()
	defer func() { c.observe(ctx, opTransitionOrder, started, err) }()

	err = c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledger := c.ledger.WithTx(tx)
		order, err := ledger.LockOrder(ctx, id)
		if err != nil {
			return storeError(err, "order", "lock order")
		}
		from := order.Status
		if err := status.TransitionOrder(from, to); err != nil {
			return err
		}
		if err := ledger.SetOrderStatus(ctx, id, to); err != nil {
			return storeError(err, "order", "update order status")
		}
		return emit(ctx, c.outbox, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   id,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:       id,
				From:          from,
				To:            to,
				ReleasedStock: from.HoldsStock() && status.ReleasesStock(to),
			},
		}, actor)
	})
	if err != nil {
		return nil, err
	}
	return c.GetOrder(ctx, id)
}

// ArchiveOrder hides an order from listings. Orders still holding stock must
// be canceled or completed first.
func (c *Coordinator) ArchiveOrder(ctx context.Context, id uuid.UUID) (err error) {
	started := time.Now()
	defer func() { c.observe(ctx, opArchiveOrder, started, err) }()

	return c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledger := c.ledger.WithTx(tx)
		order, err := ledger.LockOrder(ctx, id)
		if err != nil {
			return storeError(err, "order", "lock order")
		}
		if order.Status.HoldsStock() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is %s; cancel or complete it before archiving", order.Status)).
				WithDetails(map[string]any{"status": order.Status})
		}
		if order.IsArchived {
			return nil
		}
		if err := ledger.ArchiveOrder(ctx, id); err != nil {
			return storeError(err, "order", "archive order")
		}
		return nil
	})
}

// RecordPayment appends a payment entry and recomputes the order's paid,
// deposit and amount due figures. Overpayment is recorded as is.
func (c *Coordinator) RecordPayment(ctx context.Context, actor *uuid.UUID, orderID uuid.UUID, input payments.RecordPaymentInput) (_ *PaymentResult, err error) {
	started := time.Now()
	defer func() { c.observe(ctx, opRecordPayment, started, err) }()

	entry, err := payments.NewEntry(orderID, actor, input)
	if err != nil {
		return nil, err
	}

	err = c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledger := c.ledger.WithTx(tx)
		paymentsRepo := c.payments.WithTx(tx)
		order, err := ledger.LockOrder(ctx, orderID)
		if err != nil {
			return storeError(err, "order", "lock order")
		}
		if err := paymentsRepo.Create(ctx, entry); err != nil {
			return storeError(err, "payment", "record payment")
		}
		entries, err := paymentsRepo.ListByOrderID(ctx, orderID)
		if err != nil {
			return storeError(err, "payment", "list payments")
		}
		pricing.Apply(order, entries)
		if err := ledger.UpdateOrder(ctx, order); err != nil {
			return storeError(err, "order", "update order totals")
		}
		return emit(ctx, c.outbox, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentRecorded,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: payloads.PaymentRecordedEvent{
				OrderID:   orderID,
				PaymentID: entry.ID,
				Amount:    entry.Amount,
				EntryType: entry.EntryType,
				Method:    entry.Method,
				AmountDue: order.AmountDue,
			},
		}, actor)
	})
	if err != nil {
		return nil, err
	}

	order, err := c.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &PaymentResult{Payment: payments.NewPaymentDTO(*entry), Order: *order}, nil
}

// reserve row-locks the variants in load and verifies that every id in check
// can cover its demand over window. exclude leaves one order's lines out of
// the committed count.
func (c *Coordinator) reserve(ctx context.Context, tx *gorm.DB, window types.DateRange, demand map[uuid.UUID]int, load, check []uuid.UUID, exclude *uuid.UUID) (map[uuid.UUID]*models.Variant, error) {
	variants, err := c.catalog.WithTx(tx).LockVariants(ctx, load)
	if err != nil {
		return nil, storeError(err, "variant", "lock variants")
	}
	for _, id := range load {
		if _, ok := variants[id]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found").
				WithDetails(map[string]any{"variant_id": id.String()})
		}
	}
	if len(check) == 0 {
		return variants, nil
	}

	toCheck := make([]*models.Variant, 0, len(check))
	for _, id := range check {
		toCheck = append(toCheck, variants[id])
	}
	results, err := c.calc.WithTx(tx).EvaluateVariants(ctx, toCheck, window, exclude)
	if err != nil {
		return nil, err
	}
	for _, id := range check {
		res := results[id]
		c.metrics.IncAvailability(res.Available)
		if res.Remaining < demand[id] {
			return nil, availability.ConflictError(id, demand[id], res.Remaining)
		}
	}
	return variants, nil
}

// aggregateLines validates lines and sums quantities per variant. ids are
// sorted so locks and row locks are always taken in the same order.
func aggregateLines(lines []LineInput) (map[uuid.UUID]int, []uuid.UUID, error) {
	if len(lines) == 0 {
		return nil, nil, fieldError("lines", "at least one line is required")
	}
	demand := make(map[uuid.UUID]int, len(lines))
	for i, line := range lines {
		if line.VariantID == uuid.Nil {
			return nil, nil, fieldError(fmt.Sprintf("lines[%d].variant_id", i), "variant is required")
		}
		if line.Quantity < 1 {
			return nil, nil, fieldError(fmt.Sprintf("lines[%d].quantity", i), "quantity must be at least 1")
		}
		demand[line.VariantID] += line.Quantity
	}
	ids := make([]uuid.UUID, 0, len(demand))
	for id := range demand {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return demand, ids, nil
}

// buildLines captures the price tier of every line. A line keeping the
// variant and tier of a previous line keeps its captured amounts.
func buildLines(inputs []LineInput, variants map[uuid.UUID]*models.Variant, previous []models.OrderLine) ([]models.OrderLine, error) {
	lines := make([]models.OrderLine, 0, len(inputs))
	for i, in := range inputs {
		variant := variants[in.VariantID]
		if variant == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found").
				WithDetails(map[string]any{"variant_id": in.VariantID.String()})
		}
		price, err := selectPrice(variant, in.PriceID, i)
		if err != nil {
			return nil, err
		}
		line := models.OrderLine{
			ItemID:    variant.ItemID,
			VariantID: variant.ID,
			PriceID:   &price.ID,
			Price:     price.Amount,
			Deposit:   price.Deposit,
			Quantity:  in.Quantity,
		}
		for _, prev := range previous {
			if prev.VariantID == line.VariantID && prev.PriceID != nil && *prev.PriceID == price.ID {
				line.Price, line.Deposit = prev.Price, prev.Deposit
				break
			}
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func selectPrice(variant *models.Variant, priceID *uuid.UUID, index int) (*models.VariantPrice, error) {
	if priceID == nil {
		if len(variant.Prices) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant has no price tier").
				WithDetails(map[string]any{"variant_id": variant.ID.String()})
		}
		return &variant.Prices[0], nil
	}
	for i := range variant.Prices {
		if variant.Prices[i].ID == *priceID {
			return &variant.Prices[i], nil
		}
	}
	return nil, fieldError(fmt.Sprintf("lines[%d].price_id", index), "price tier does not belong to the variant")
}

func normalizeDelivery(info *types.DeliveryInfo) (types.DeliveryInfo, error) {
	if info == nil {
		return types.DefaultDeliveryInfo(), nil
	}
	out := *info
	if out.PickupType == "" {
		out.PickupType = enums.DeliveryTypeShowroom
	}
	if !out.PickupType.IsValid() {
		return out, fieldError("delivery_info.pickup_type", fmt.Sprintf("unknown delivery type %q", out.PickupType))
	}
	if out.ReturnType != nil && !out.ReturnType.IsValid() {
		return out, fieldError("delivery_info.return_type", fmt.Sprintf("unknown delivery type %q", *out.ReturnType))
	}
	if out.Cost.IsNegative() {
		return out, fieldError("delivery_info.cost", "delivery cost cannot be negative")
	}
	if out.Cost.Exponent() < -2 {
		return out, fieldError("delivery_info.cost", "delivery cost has more than two decimal places")
	}
	return out, nil
}

func validateDiscount(discount int) error {
	if discount < 0 || discount > 100 {
		return fieldError("discount", "discount must be between 0 and 100")
	}
	return nil
}

func fieldError(field, msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(map[string]any{"field": field})
}

func demandOf(lines []models.OrderLine) map[uuid.UUID]int {
	out := make(map[uuid.UUID]int, len(lines))
	for _, l := range lines {
		out[l.VariantID] += l.Quantity
	}
	return out
}

func variantIDsOf(lines []models.OrderLine) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(lines))
	for id := range demandOf(lines) {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

func unionIDs(a, b []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(a)+len(b))
	out := make([]uuid.UUID, 0, len(a)+len(b))
	for _, id := range append(append([]uuid.UUID{}, a...), b...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sortIDs(out)
	return out
}

// subtractIDs returns the ids of a missing from b.
func subtractIDs(a, b []uuid.UUID) []uuid.UUID {
	in := make(map[uuid.UUID]struct{}, len(b))
	for _, id := range b {
		in[id] = struct{}{}
	}
	var out []uuid.UUID
	for _, id := range a {
		if _, ok := in[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}

func snapshot(lines []models.OrderLine) []payloads.LineSnapshot {
	out := make([]payloads.LineSnapshot, 0, len(lines))
	for _, l := range lines {
		out = append(out, payloads.LineSnapshot{VariantID: l.VariantID, Quantity: l.Quantity})
	}
	return out
}

func cleanTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
