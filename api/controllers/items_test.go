package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/rentals-backend/internal/availability"
	"github.com/angelmondragon/rentals-backend/internal/catalog"
	"github.com/angelmondragon/rentals-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentals-backend/pkg/errors"
	"github.com/angelmondragon/rentals-backend/pkg/pagination"
	"github.com/angelmondragon/rentals-backend/pkg/types"
)

type stubCatalog struct {
	catalog.Service

	listFn   func(filter catalog.ItemFilter, page pagination.Params) (pagination.Page[catalog.ItemDTO], error)
	deleteFn func(id uuid.UUID) (bool, error)
}

func (s stubCatalog) ListItems(_ context.Context, filter catalog.ItemFilter, page pagination.Params) (pagination.Page[catalog.ItemDTO], error) {
	return s.listFn(filter, page)
}

func (s stubCatalog) DeleteItem(_ context.Context, id uuid.UUID) (bool, error) {
	return s.deleteFn(id)
}

type stubChecker struct {
	checkFn func(variantID uuid.UUID, start, end types.Date) (availability.Result, error)
}

func (s stubChecker) Check(_ context.Context, variantID uuid.UUID, start, end types.Date) (availability.Result, error) {
	return s.checkFn(variantID, start, end)
}

func (s stubChecker) ItemAvailability(context.Context, uuid.UUID, types.Date, types.Date) (*availability.ItemAvailability, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
}

func TestItemsListAppliesFilter(t *testing.T) {
	svc := stubCatalog{
		listFn: func(filter catalog.ItemFilter, page pagination.Params) (pagination.Page[catalog.ItemDTO], error) {
			assert.Equal(t, "dress", filter.Query)
			assert.Equal(t, enums.ItemStatusInStock, filter.Status)
			assert.True(t, filter.IncludeArchived)
			assert.Equal(t, pagination.DefaultLimit, page.Limit)
			return pagination.Page[catalog.ItemDTO]{}, nil
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/?q=dress&status=in_stock&include_archived=true", nil)
	resp := httptest.NewRecorder()
	ItemsList(svc, testLog).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestItemsListRejectsUnknownStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?status=gone", nil)
	resp := httptest.NewRecorder()
	ItemsList(stubCatalog{}, testLog).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestItemDeleteReportsArchive(t *testing.T) {
	itemID := uuid.New()
	svc := stubCatalog{
		deleteFn: func(id uuid.UUID) (bool, error) {
			assert.Equal(t, itemID, id)
			return true, nil
		},
	}
	req := withURLParam(httptest.NewRequest(http.MethodDelete, "/", nil), "itemID", itemID.String())
	resp := httptest.NewRecorder()
	ItemDelete(svc, testLog).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	out := decodeData[deleteResult](t, resp)
	assert.True(t, out.Archived)
	assert.Equal(t, itemID.String(), out.ID)
}

func TestVariantAvailabilityReadsWindow(t *testing.T) {
	variantID := uuid.New()
	checker := stubChecker{
		checkFn: func(id uuid.UUID, start, end types.Date) (availability.Result, error) {
			assert.Equal(t, variantID, id)
			assert.Equal(t, types.NewDate(2024, 6, 1), start)
			assert.Equal(t, types.NewDate(2024, 6, 4), end)
			return availability.Result{VariantID: id, Available: true, Remaining: 2}, nil
		},
	}
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/?start_time=2024-06-01&end_time=2024-06-04", nil), "variantID", variantID.String())
	resp := httptest.NewRecorder()
	VariantAvailability(checker, testLog).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	out := decodeData[availability.Result](t, resp)
	assert.True(t, out.Available)
	assert.Equal(t, 2, out.Remaining)
}

func TestVariantAvailabilityRequiresWindow(t *testing.T) {
	checker := stubChecker{
		checkFn: func(uuid.UUID, types.Date, types.Date) (availability.Result, error) {
			t.Fatalf("checker must not be called")
			return availability.Result{}, nil
		},
	}
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/?start_time=2024-06-01", nil), "variantID", uuid.NewString())
	resp := httptest.NewRecorder()
	VariantAvailability(checker, testLog).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeMissingParameter), decodeErrorCode(t, resp))
}

func TestItemAvailabilityPropagatesNotFound(t *testing.T) {
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/?start_time=2024-06-01&end_time=2024-06-02", nil), "itemID", uuid.NewString())
	resp := httptest.NewRecorder()
	ItemAvailability(stubChecker{}, testLog).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
