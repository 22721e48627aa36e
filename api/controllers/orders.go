package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/rentals-backend/api/middleware"
	"github.com/angelmondragon/rentals-backend/api/responses"
	"github.com/angelmondragon/rentals-backend/api/validators"
	"github.com/angelmondragon/rentals-backend/internal/booking"
	"github.com/angelmondragon/rentals-backend/internal/payments"
	"github.com/angelmondragon/rentals-backend/internal/reservations"
	"github.com/angelmondragon/rentals-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentals-backend/pkg/errors"
	"github.com/angelmondragon/rentals-backend/pkg/logger"
	"github.com/angelmondragon/rentals-backend/pkg/types"
)

type orderStatusRequest struct {
	Status enums.OrderStatus `json:"status" validate:"required"`
}

func parseOrderFilter(r *http.Request) (reservations.OrderFilter, error) {
	var filter reservations.OrderFilter

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
				WithDetails(map[string]any{"field": "status"})
		}
		filter.Status = status
	}

	clientID, err := validators.ParseQueryUUID(r, "client_id")
	if err != nil {
		return filter, err
	}
	filter.ClientID = clientID

	start, err := validators.ParseQueryDate(r, "start_time")
	if err != nil {
		return filter, err
	}
	end, err := validators.ParseQueryDate(r, "end_time")
	if err != nil {
		return filter, err
	}
	switch {
	case start == nil && end == nil:
	case start == nil || end == nil:
		return filter, pkgerrors.New(pkgerrors.CodeMissingParameter, "start_time and end_time must be given together").
			WithDetails(map[string]any{"fields": []string{"start_time", "end_time"}})
	case !start.Before(*end):
		return filter, pkgerrors.New(pkgerrors.CodeInvalidRange, "start_time must be before end_time")
	default:
		filter.Window = &types.DateRange{Start: *start, End: *end}
	}

	q := r.URL.Query()
	filter.Phone = validators.SanitizeString(q.Get("phone"), maxSearchLen)
	filter.Tag = validators.SanitizeString(q.Get("tag"), maxSearchLen)
	if raw := strings.TrimSpace(q.Get("pickup_type")); raw != "" {
		pickup, err := enums.ParseDeliveryType(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pickup_type").
				WithDetails(map[string]any{"field": "pickup_type"})
		}
		filter.PickupType = pickup
	}
	for _, raw := range q["item_id"] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				return filter, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be a uuid").
					WithDetails(map[string]any{"field": "item_id"})
			}
			filter.ItemIDs = append(filter.ItemIDs, id)
		}
	}

	createdFrom, err := validators.ParseQueryDate(r, "created_from")
	if err != nil {
		return filter, err
	}
	if createdFrom != nil {
		from := createdFrom.Time()
		filter.CreatedFrom = &from
	}
	createdTo, err := validators.ParseQueryDate(r, "created_to")
	if err != nil {
		return filter, err
	}
	if createdTo != nil {
		// created_to names the last included day.
		to := createdTo.AddDays(1).Time()
		filter.CreatedTo = &to
	}

	filter.IncludeArchived, err = validators.ParseQueryBool(r, "include_archived", false)
	if err != nil {
		return filter, err
	}
	return filter, nil
}

// OrdersList filters orders by status, client and overlapping window.
func OrdersList(svc booking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter, err := parseOrderFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if page.SortBy, err = validators.ParseSortField(r, reservations.OrderSortFields); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ListOrders(r.Context(), filter, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// OrderCreate books a new order for a client.
func OrderCreate(svc booking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body booking.CreateOrderInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.CreateOrder(r.Context(), middleware.ActorFromContext(r.Context()), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

func OrderGet(svc booking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithOrderID(r.Context(), id.String())
		order, err := svc.GetOrder(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func OrderUpdate(svc booking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithOrderID(r.Context(), id.String())
		var body booking.UpdateOrderInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		order, err := svc.UpdateOrder(ctx, middleware.ActorFromContext(ctx), id, body)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// OrderArchive hides an order that no longer holds stock.
func OrderArchive(svc booking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithOrderID(r.Context(), id.String())
		if err := svc.ArchiveOrder(ctx, id); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, deleteResult{ID: id.String(), Archived: true})
	}
}

// OrderStatus moves an order through its lifecycle.
func OrderStatus(svc booking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithOrderID(r.Context(), id.String())
		var body orderStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if !body.Status.IsValid() {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid status").
				WithDetails(map[string]any{"field": "status"}))
			return
		}
		order, err := svc.TransitionOrder(ctx, middleware.ActorFromContext(ctx), id, body.Status)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// OrderPaymentsList returns the payment ledger of an order.
func OrderPaymentsList(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entries, err := svc.List(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}

// OrderPaymentCreate records a payment or deposit and returns the refreshed order.
func OrderPaymentCreate(svc booking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithOrderID(r.Context(), id.String())
		var body payments.RecordPaymentInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		result, err := svc.RecordPayment(ctx, middleware.ActorFromContext(ctx), id, body)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
