package middleware

import (
	"net/http"

	"github.com/angelmondragon/rentals-backend/api/responses"
	pkgerrors "github.com/angelmondragon/rentals-backend/pkg/errors"
	"github.com/angelmondragon/rentals-backend/pkg/logger"
)

// RequireSuperuser rejects requests whose token does not carry the
// superuser flag.
func RequireSuperuser(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsSuperuserFromContext(r.Context()) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "the user doesn't have enough privileges"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
