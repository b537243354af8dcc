package listing

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// DefaultMIMEType is assumed for bare base64 data without a data URI header.
const DefaultMIMEType = "image/jpeg"

// ErrInvalidEncoding is returned when an encoded image cannot be decoded.
var ErrInvalidEncoding = errors.New("invalid image encoding")

// Payload is an encoded image together with its format. A payload is
// replaced wholesale, never modified in place.
type Payload struct {
	Data     []byte
	MIMEType string
}

// NewPayload copies data into a new payload.
func NewPayload(data []byte, mimeType string) Payload {
	if mimeType == "" {
		mimeType = DefaultMIMEType
	}
	return Payload{Data: append([]byte(nil), data...), MIMEType: mimeType}
}

// IsEmpty reports whether the payload holds no image data.
func (p Payload) IsEmpty() bool {
	return len(p.Data) == 0
}

// Base64 returns the standard base64 encoding of the image bytes.
func (p Payload) Base64() string {
	return base64.StdEncoding.EncodeToString(p.Data)
}

// DataURI renders the payload as a data URI suitable for display.
func (p Payload) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", p.MIMEType, p.Base64())
}

// Extension returns the file extension for the payload's format.
func (p Payload) Extension() string {
	switch p.MIMEType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	}
	return ".jpg"
}

// Clone returns a payload that shares no memory with p.
func (p Payload) Clone() Payload {
	return Payload{Data: append([]byte(nil), p.Data...), MIMEType: p.MIMEType}
}

// Equal reports whether both payloads hold the same bytes and format.
func (p Payload) Equal(other Payload) bool {
	return p.MIMEType == other.MIMEType && bytes.Equal(p.Data, other.Data)
}

// ParseEncoded decodes either a data URI ("data:image/png;base64,...") or
// bare base64, which is taken to be a JPEG.
func ParseEncoded(s string) (Payload, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Payload{}, fmt.Errorf("%w: empty input", ErrInvalidEncoding)
	}

	mimeType := DefaultMIMEType
	encoded := s
	if strings.HasPrefix(s, "data:") {
		header, rest, ok := strings.Cut(s, ",")
		if !ok {
			return Payload{}, fmt.Errorf("%w: data URI has no payload", ErrInvalidEncoding)
		}
		meta := strings.TrimPrefix(header, "data:")
		if !strings.HasSuffix(meta, ";base64") {
			return Payload{}, fmt.Errorf("%w: data URI is not base64", ErrInvalidEncoding)
		}
		mimeType = strings.TrimSuffix(meta, ";base64")
		if !strings.HasPrefix(mimeType, "image/") {
			return Payload{}, fmt.Errorf("%w: %q is not an image type", ErrInvalidEncoding, mimeType)
		}
		encoded = rest
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if len(data) == 0 {
		return Payload{}, fmt.Errorf("%w: empty image", ErrInvalidEncoding)
	}
	return Payload{Data: data, MIMEType: mimeType}, nil
}

// EnsureDataURI returns s unchanged when it already is an image data URI and
// wraps bare base64 into a JPEG data URI otherwise.
func EnsureDataURI(s string) string {
	if strings.HasPrefix(s, "data:image") {
		return s
	}
	return fmt.Sprintf("data:%s;base64,%s", DefaultMIMEType, s)
}
