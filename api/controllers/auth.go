package controllers

import (
	"mime"
	"net/http"

	"github.com/angelmondragon/rentals-backend/api/middleware"
	"github.com/angelmondragon/rentals-backend/api/responses"
	"github.com/angelmondragon/rentals-backend/api/validators"
	"github.com/angelmondragon/rentals-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/rentals-backend/pkg/errors"
	"github.com/angelmondragon/rentals-backend/pkg/logger"
)

const maxLoginFormBytes = 1 << 16

// AuthLogin accepts the OAuth2 password grant as a form or as JSON.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		body, err := decodeLogin(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), body)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
				w.Header().Set("WWW-Authenticate", "Bearer")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// AuthLogout revokes the session behind the presented access token.
func AuthLogout(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}
		if err := svc.Logout(r.Context(), middleware.SessionIDFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func decodeLogin(r *http.Request) (auth.LoginRequest, error) {
	var body auth.LoginRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(nil, r.Body, maxLoginFormBytes)
		if err := r.ParseMultipartForm(maxLoginFormBytes); err != nil && err != http.ErrNotMultipart {
			return body, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid form body")
		}
		body.Username = r.PostFormValue("username")
		body.Password = r.PostFormValue("password")
		return body, validators.ValidateStruct(&body)
	}
	if err := validators.DecodeJSONBody(r, &body); err != nil {
		return body, err
	}
	return body, nil
}
