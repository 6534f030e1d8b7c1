// Package imageproc checks uploaded item images and renders thumbnails.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/disintegration/imaging"
)

var (
	ErrEmpty           = errors.New("image is empty")
	ErrTooLarge        = errors.New("image exceeds the size limit")
	ErrUnsupportedType = errors.New("image type is not allowed")
)

// Policy bounds accepted uploads.
type Policy struct {
	MaxBytes     int64
	AllowedMIMEs []string
}

// Inspect sniffs the content type of data and checks it against the policy.
func (p Policy) Inspect(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if p.MaxBytes > 0 && int64(len(data)) > p.MaxBytes {
		return "", fmt.Errorf("%w (%d bytes)", ErrTooLarge, p.MaxBytes)
	}
	mime := http.DetectContentType(data)
	if idx := strings.IndexByte(mime, ';'); idx >= 0 {
		mime = mime[:idx]
	}
	if len(p.AllowedMIMEs) == 0 {
		return mime, nil
	}
	for _, allowed := range p.AllowedMIMEs {
		if strings.EqualFold(strings.TrimSpace(allowed), mime) {
			return mime, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mime)
}

// Extension maps an accepted content type to a file extension.
func Extension(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

// Thumbnail scales data to width keeping the aspect ratio and encodes it as
// JPEG.
func Thumbnail(data []byte, width int) ([]byte, error) {
	if width <= 0 {
		width = 200
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	thumb := imaging.Resize(img, width, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// ContentType is the inverse of Extension for stored keys.
func ContentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
