package listing

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
)

// MaxImageSize is the largest accepted capture (10MB).
const MaxImageSize = 10 * 1024 * 1024

var (
	ErrUnsupportedImage = errors.New("unsupported image format, use JPEG or PNG")
	ErrImageTooLarge    = errors.New("image too large")
)

var supportedFormats = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
}

// Capture validates raw file bytes from an upload and turns them into a
// payload. The format is detected from the content, not from any
// client-supplied file name or header.
func Capture(data []byte) (Payload, error) {
	if len(data) == 0 {
		return Payload{}, fmt.Errorf("%w: empty file", ErrUnsupportedImage)
	}
	if len(data) > MaxImageSize {
		return Payload{}, fmt.Errorf("%w: %d bytes exceeds limit of %d bytes", ErrImageTooLarge, len(data), MaxImageSize)
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %s", ErrUnsupportedImage, http.DetectContentType(data))
	}
	mimeType, ok := supportedFormats[format]
	if !ok {
		return Payload{}, fmt.Errorf("%w: %s", ErrUnsupportedImage, format)
	}

	return NewPayload(data, mimeType), nil
}

// CaptureReader reads at most MaxImageSize+1 bytes from r and captures them.
func CaptureReader(r io.Reader) (Payload, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return Payload{}, fmt.Errorf("failed to read image: %w", err)
	}
	return Capture(data)
}
