package controllers

import (
	"errors"
	"net/http"

	"github.com/angelmondragon/rentals-backend/api/responses"
	"github.com/angelmondragon/rentals-backend/internal/uploads"
	pkgerrors "github.com/angelmondragon/rentals-backend/pkg/errors"
	"github.com/angelmondragon/rentals-backend/pkg/logger"
)

const multipartMemory = 8 << 20

// UploadImage stores a catalog image sent as the multipart "file" field.
// An optional ?filename= names the stored object.
func UploadImage(svc uploads.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if maxBytes > 0 {
			// Leave room for multipart framing; the service enforces the real limit.
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartMemory)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			switch {
			case errors.As(err, &tooLarge):
				err = pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file too large")
			case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
				err = pkgerrors.Wrap(pkgerrors.CodeMissingParameter, err, "file is required").
					WithDetails(map[string]any{"field": "file"})
			default:
				err = pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart body")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer file.Close()

		result, err := svc.UploadImage(r.Context(), uploads.ImageInput{
			Body:     file,
			FileName: r.URL.Query().Get("filename"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
