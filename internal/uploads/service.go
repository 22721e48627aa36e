package uploads

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/angelmondragon/rentals-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/rentals-backend/pkg/errors"
	"github.com/angelmondragon/rentals-backend/pkg/logger"
)

const defaultMaxUploadMB = 10

// ImageInput is an uploaded image. FileName optionally names the stored
// object; the extension always follows the detected content type.
type ImageInput struct {
	Body     io.Reader
	FileName string
}

// ImageDTO is returned after a successful upload.
type ImageDTO struct {
	ImageURL    string `json:"image_url"`
	ContentType string `json:"content_type"`
	SizeBytes   int    `json:"size_bytes"`
}

// Service stores catalog images.
type Service interface {
	UploadImage(ctx context.Context, input ImageInput) (*ImageDTO, error)
}

type service struct {
	store    Store
	baseURL  string
	maxBytes int64
	logg     *logger.Logger
	newName  func() string
}

// NewService builds an upload service writing into store and publishing
// objects under cfg.PublicBaseURL.
func NewService(store Store, cfg config.MediaConfig, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("upload store required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	maxMB := cfg.MaxUploadMB
	if maxMB <= 0 {
		maxMB = defaultMaxUploadMB
	}
	return &service{
		store:    store,
		baseURL:  strings.TrimRight(cfg.PublicBaseURL, "/"),
		maxBytes: int64(maxMB) * 1024 * 1024,
		logg:     logg,
		newName:  func() string { return uuid.NewString() },
	}, nil
}

func (s *service) UploadImage(ctx context.Context, input ImageInput) (*ImageDTO, error) {
	if input.Body == nil {
		return nil, pkgerrors.New(pkgerrors.CodeMissingParameter, "file is required").
			WithDetails(map[string]any{"field": "file"})
	}

	data, err := io.ReadAll(io.LimitReader(input.Body, s.maxBytes+1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
	}
	if len(data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file is empty").
			WithDetails(map[string]any{"field": "file"})
	}
	if int64(len(data)) > s.maxBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file too large").
			WithDetails(map[string]any{"field": "file", "max_bytes": s.maxBytes})
	}

	mimeType, ext, ok := sniffImage(data)
	if !ok {
		s.logg.Warn(s.logg.WithField(ctx, "mime_type", mimeType), "uploads.image.rejected")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported image format").
			WithDetails(map[string]any{"field": "file", "allowed": allowedImageTypes})
	}

	base := s.newName()
	if requested := strings.TrimSpace(input.FileName); requested != "" {
		base = sanitizeFileName(strings.TrimSuffix(requested, path.Ext(requested)))
		if base == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid filename").
				WithDetails(map[string]any{"field": "filename"})
		}
	}
	name := base + ext

	if err := s.store.Put(ctx, name, data); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store image")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"file": name, "mime_type": mimeType}), "uploads.image.stored")

	return &ImageDTO{
		ImageURL:    s.baseURL + "/" + name,
		ContentType: mimeType,
		SizeBytes:   len(data),
	}, nil
}

func sanitizeFileName(name string) string {
	clean := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if clean == "." || clean == "/" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(clean))
	for _, r := range clean {
		switch {
		case unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune('-')
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_', r == '.':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-_.")
}
