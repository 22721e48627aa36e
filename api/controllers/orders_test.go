package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/rentals-backend/api/middleware"
	"github.com/angelmondragon/rentals-backend/internal/booking"
	"github.com/angelmondragon/rentals-backend/internal/payments"
	"github.com/angelmondragon/rentals-backend/internal/reservations"
	"github.com/angelmondragon/rentals-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentals-backend/pkg/errors"
	"github.com/angelmondragon/rentals-backend/pkg/pagination"
	"github.com/angelmondragon/rentals-backend/pkg/types"
)

type stubBooking struct {
	booking.Service

	listFn       func(filter reservations.OrderFilter, page pagination.Params) (pagination.Page[booking.OrderDTO], error)
	createFn     func(actor *uuid.UUID, input booking.CreateOrderInput) (*booking.OrderDTO, error)
	transitionFn func(id uuid.UUID, to enums.OrderStatus) (*booking.OrderDTO, error)
	paymentFn    func(orderID uuid.UUID, input payments.RecordPaymentInput) (*booking.PaymentResult, error)
}

func (s stubBooking) ListOrders(_ context.Context, filter reservations.OrderFilter, page pagination.Params) (pagination.Page[booking.OrderDTO], error) {
	return s.listFn(filter, page)
}

func (s stubBooking) CreateOrder(_ context.Context, actor *uuid.UUID, input booking.CreateOrderInput) (*booking.OrderDTO, error) {
	return s.createFn(actor, input)
}

func (s stubBooking) TransitionOrder(_ context.Context, _ *uuid.UUID, id uuid.UUID, to enums.OrderStatus) (*booking.OrderDTO, error) {
	return s.transitionFn(id, to)
}

func (s stubBooking) RecordPayment(_ context.Context, _ *uuid.UUID, orderID uuid.UUID, input payments.RecordPaymentInput) (*booking.PaymentResult, error) {
	return s.paymentFn(orderID, input)
}

func TestOrdersListParsesFilter(t *testing.T) {
	clientID := uuid.New()
	svc := stubBooking{
		listFn: func(filter reservations.OrderFilter, page pagination.Params) (pagination.Page[booking.OrderDTO], error) {
			assert.Equal(t, enums.OrderStatusIssued, filter.Status)
			require.NotNil(t, filter.ClientID)
			assert.Equal(t, clientID, *filter.ClientID)
			require.NotNil(t, filter.Window)
			assert.Equal(t, "2024-05-01", filter.Window.Start.String())
			assert.Equal(t, "2024-05-05", filter.Window.End.String())
			assert.Equal(t, 10, page.Limit)
			return pagination.Page[booking.OrderDTO]{Items: []booking.OrderDTO{{ID: uuid.New()}}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet,
		"/?status=issued&client_id="+clientID.String()+"&start_time=2024-05-01&end_time=2024-05-05&limit=10", nil)
	resp := httptest.NewRecorder()
	OrdersList(svc, testLog).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	page := decodeData[pagination.Page[booking.OrderDTO]](t, resp)
	assert.Len(t, page.Items, 1)
}

func TestOrdersListParsesLookupFiltersAndSort(t *testing.T) {
	first, second := uuid.New(), uuid.New()
	svc := stubBooking{
		listFn: func(filter reservations.OrderFilter, page pagination.Params) (pagination.Page[booking.OrderDTO], error) {
			assert.Equal(t, "555", filter.Phone)
			assert.Equal(t, "wedding", filter.Tag)
			assert.Equal(t, enums.DeliveryTypeTaxi, filter.PickupType)
			assert.Equal(t, []uuid.UUID{first, second}, filter.ItemIDs)
			require.NotNil(t, filter.CreatedFrom)
			require.NotNil(t, filter.CreatedTo)
			assert.Equal(t, "2024-05-01", types.DateOf(*filter.CreatedFrom).String())
			assert.Equal(t, "2024-05-04", types.DateOf(*filter.CreatedTo).String())
			assert.Equal(t, "start_date", page.SortBy)
			assert.Equal(t, pagination.Asc, page.Direction)
			return pagination.Page[booking.OrderDTO]{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/?phone=555&tag=wedding&pickup_type=taxi"+
		"&item_id="+first.String()+"&item_id="+second.String()+
		"&created_from=2024-05-01&created_to=2024-05-03&sort_field=start_time&order=asc", nil)
	resp := httptest.NewRecorder()
	OrdersList(svc, testLog).ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestOrdersListRejectsBadFilters(t *testing.T) {
	svc := stubBooking{
		listFn: func(reservations.OrderFilter, pagination.Params) (pagination.Page[booking.OrderDTO], error) {
			t.Fatalf("service must not be called")
			return pagination.Page[booking.OrderDTO]{}, nil
		},
	}

	cases := []struct {
		name   string
		query  string
		status int
		code   pkgerrors.Code
	}{
		{"unknown status", "status=lost", http.StatusBadRequest, pkgerrors.CodeValidation},
		{"half window", "start_time=2024-05-01", http.StatusBadRequest, pkgerrors.CodeMissingParameter},
		{"inverted window", "start_time=2024-05-05&end_time=2024-05-01", http.StatusUnprocessableEntity, pkgerrors.CodeInvalidRange},
		{"bad client id", "client_id=nope", http.StatusBadRequest, pkgerrors.CodeValidation},
		{"unknown pickup", "pickup_type=drone", http.StatusBadRequest, pkgerrors.CodeValidation},
		{"bad item id", "item_id=nope", http.StatusBadRequest, pkgerrors.CodeValidation},
		{"unknown sort field", "sort_field=total", http.StatusBadRequest, pkgerrors.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/?"+tc.query, nil)
			resp := httptest.NewRecorder()
			OrdersList(svc, testLog).ServeHTTP(resp, req)
			assert.Equal(t, tc.status, resp.Code)
			assert.Equal(t, string(tc.code), decodeErrorCode(t, resp))
		})
	}
}

func TestOrderCreatePassesActor(t *testing.T) {
	actor := uuid.New()
	clientID := uuid.New()
	variantID := uuid.New()
	svc := stubBooking{
		createFn: func(got *uuid.UUID, input booking.CreateOrderInput) (*booking.OrderDTO, error) {
			require.NotNil(t, got)
			assert.Equal(t, actor, *got)
			assert.Equal(t, clientID, input.ClientID)
			require.Len(t, input.Lines, 1)
			assert.Equal(t, types.NewDate(2024, 5, 1), input.StartDate)
			return &booking.OrderDTO{ID: uuid.New(), ClientID: clientID, Status: enums.OrderStatusBooked}, nil
		},
	}

	body := `{"client_id":"` + clientID.String() + `","start_time":"2024-05-01","end_time":"2024-05-03",` +
		`"lines":[{"variant_id":"` + variantID.String() + `","quantity":2}]}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), actor.String()))
	resp := httptest.NewRecorder()
	OrderCreate(svc, testLog).ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	order := decodeData[booking.OrderDTO](t, resp)
	assert.Equal(t, enums.OrderStatusBooked, order.Status)
}

func TestOrderCreateSurfacesConflict(t *testing.T) {
	svc := stubBooking{
		createFn: func(*uuid.UUID, booking.CreateOrderInput) (*booking.OrderDTO, error) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "variant unavailable for the requested dates")
		},
	}
	body := `{"client_id":"` + uuid.NewString() + `","start_time":"2024-05-01","end_time":"2024-05-03",` +
		`"lines":[{"variant_id":"` + uuid.NewString() + `","quantity":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	resp := httptest.NewRecorder()
	OrderCreate(svc, testLog).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeConflict), decodeErrorCode(t, resp))
}

func TestOrderStatusRejectsUnknownStatus(t *testing.T) {
	orderID := uuid.New()
	svc := stubBooking{
		transitionFn: func(uuid.UUID, enums.OrderStatus) (*booking.OrderDTO, error) {
			t.Fatalf("service must not be called")
			return nil, nil
		},
	}
	req := withURLParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"lost"}`)), "orderID", orderID.String())
	resp := httptest.NewRecorder()
	OrderStatus(svc, testLog).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestOrderStatusTransitions(t *testing.T) {
	orderID := uuid.New()
	svc := stubBooking{
		transitionFn: func(id uuid.UUID, to enums.OrderStatus) (*booking.OrderDTO, error) {
			assert.Equal(t, orderID, id)
			return &booking.OrderDTO{ID: id, Status: to}, nil
		},
	}
	req := withURLParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"issued"}`)), "orderID", orderID.String())
	resp := httptest.NewRecorder()
	OrderStatus(svc, testLog).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, enums.OrderStatusIssued, decodeData[booking.OrderDTO](t, resp).Status)
}

func TestOrderPaymentCreate(t *testing.T) {
	orderID := uuid.New()
	svc := stubBooking{
		paymentFn: func(id uuid.UUID, input payments.RecordPaymentInput) (*booking.PaymentResult, error) {
			assert.Equal(t, orderID, id)
			assert.True(t, input.Amount.Equal(decimal.RequireFromString("150.50")))
			assert.Equal(t, enums.PaymentMethod("cash"), input.Method)
			return &booking.PaymentResult{Order: booking.OrderDTO{ID: id}}, nil
		},
	}
	req := withURLParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"150.50","method":"cash"}`)), "orderID", orderID.String())
	resp := httptest.NewRecorder()
	OrderPaymentCreate(svc, testLog).ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, orderID, decodeData[booking.PaymentResult](t, resp).Order.ID)
}

func TestOrderGetRejectsMalformedID(t *testing.T) {
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "orderID", "not-a-uuid")
	resp := httptest.NewRecorder()
	OrderGet(stubBooking{}, testLog).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
