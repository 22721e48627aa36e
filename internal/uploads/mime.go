package uploads

import (
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// imageExtensions maps each accepted image mime type to the extension
// the stored file receives.
var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

var allowedImageTypes = buildAllowedTypes()

func buildAllowedTypes() []string {
	list := make([]string, 0, len(imageExtensions))
	for value := range imageExtensions {
		list = append(list, value)
	}
	sort.Strings(list)
	return list
}

// sniffImage detects the content type from the payload bytes and reports the
// extension to store it under. ok is false for anything but a supported image.
func sniffImage(data []byte) (mimeType, ext string, ok bool) {
	detected := mimetype.Detect(data)
	mimeType = strings.ToLower(detected.String())
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	ext, ok = imageExtensions[mimeType]
	return mimeType, ext, ok
}
