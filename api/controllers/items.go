package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/rentals-backend/api/responses"
	"github.com/angelmondragon/rentals-backend/api/validators"
	"github.com/angelmondragon/rentals-backend/internal/availability"
	"github.com/angelmondragon/rentals-backend/internal/catalog"
	"github.com/angelmondragon/rentals-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentals-backend/pkg/errors"
	"github.com/angelmondragon/rentals-backend/pkg/logger"
	"github.com/angelmondragon/rentals-backend/pkg/types"
)

const maxSearchLen = 200

// ItemsList lists items with their variants.
func ItemsList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		includeArchived, err := validators.ParseQueryBool(r, "include_archived", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		q := r.URL.Query()
		filter := catalog.ItemFilter{
			Query:           validators.SanitizeString(q.Get("q"), maxSearchLen),
			Category:        validators.SanitizeString(q.Get("category"), maxSearchLen),
			Tag:             validators.SanitizeString(q.Get("tag"), maxSearchLen),
			Color:           validators.SanitizeString(q.Get("color"), maxSearchLen),
			Size:            validators.SanitizeString(q.Get("size"), maxSearchLen),
			IncludeArchived: includeArchived,
		}
		if page.SortBy, err = validators.ParseSortField(r, catalog.ItemSortFields); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if raw := strings.TrimSpace(q.Get("variant_status")); raw != "" {
			status, err := enums.ParseVariantStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid variant_status").
					WithDetails(map[string]any{"field": "variant_status"}))
				return
			}
			filter.VariantStatus = status
		}
		if raw := strings.TrimSpace(q.Get("status")); raw != "" {
			status, err := enums.ParseItemStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
					WithDetails(map[string]any{"field": "status"}))
				return
			}
			filter.Status = status
		}

		result, err := svc.ListItems(r.Context(), filter, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func ItemCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body catalog.CreateItemInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.CreateItem(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

func ItemGet(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.GetItem(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func ItemUpdate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body catalog.UpdateItemInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.UpdateItem(r.Context(), id, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// ItemDelete removes an item, or archives it when orders reference it.
func ItemDelete(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		archived, err := svc.DeleteItem(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, deleteResult{ID: id.String(), Archived: archived})
	}
}

// ItemAvailability annotates every variant of the item for a window.
func ItemAvailability(checker availability.Checker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		start, end, err := parseWindowQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := checker.ItemAvailability(r.Context(), id, start, end)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ItemFacet lists the distinct values of the catalog field named in the path.
func ItemFacet(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		facet, ok := catalog.ParseFacet(chi.URLParam(r, "facet"))
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "unknown facet"))
			return
		}
		writeFacet(w, r, svc, facet, logg)
	}
}

// ItemFacetValues serves one fixed facet, e.g. GET /items/colors.
func ItemFacetValues(svc catalog.Service, facet catalog.Facet, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeFacet(w, r, svc, facet, logg)
	}
}

func writeFacet(w http.ResponseWriter, r *http.Request, svc catalog.Service, facet catalog.Facet, logg *logger.Logger) {
	values, err := svc.ListDistinct(r.Context(), facet)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, values)
}

// parseWindowQuery reads the mandatory start_time/end_time pair. Ordering is
// validated by the availability layer.
func parseWindowQuery(r *http.Request) (types.Date, types.Date, error) {
	start, err := validators.RequireQueryDate(r, "start_time")
	if err != nil {
		return types.Date{}, types.Date{}, err
	}
	end, err := validators.RequireQueryDate(r, "end_time")
	if err != nil {
		return types.Date{}, types.Date{}, err
	}
	return start, end, nil
}

type deleteResult struct {
	ID       string `json:"id"`
	Archived bool   `json:"archived"`
}
