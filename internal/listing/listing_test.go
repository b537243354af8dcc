package listing

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{in: "OBJECT", want: CategoryObject},
		{in: "clothing", want: CategoryClothing},
		{in: " Unknown ", want: CategoryUnknown},
		{in: "FURNITURE", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCategory(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDraft_NormalizeMarshalsEmptyArrays(t *testing.T) {
	d := Draft{Category: CategoryObject, Title: "Lamp"}
	assert.Error(t, d.Validate())

	d.Normalize()
	require.NoError(t, d.Validate())

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"hashtags":[]`)
	assert.Contains(t, string(out), `"suggestedMarketplaces":[]`)
}

func TestDraft_CloneIsIndependent(t *testing.T) {
	d := &Draft{Category: CategoryClothing, Hashtags: []string{"vintage"}, SuggestedMarketplaces: []string{"Vinted"}}
	c := d.Clone()
	c.Hashtags[0] = "changed"
	assert.Equal(t, "vintage", d.Hashtags[0])
}

func TestDraft_DisplayHashtags(t *testing.T) {
	d := &Draft{Hashtags: []string{"vintage", "#retro", " ", "lamp"}}
	assert.Equal(t, []string{"#vintage", "#retro", "#lamp"}, d.DisplayHashtags())
}

func TestDraft_PriceDigits(t *testing.T) {
	d := &Draft{PriceRange: "15€ - 25€"}
	assert.Equal(t, "15-25", d.PriceDigits())
}

func TestParseEncoded_DataURIRoundTrip(t *testing.T) {
	p := NewPayload([]byte("hello"), "image/png")
	uri := p.DataURI()

	parsed, err := ParseEncoded(uri)
	require.NoError(t, err)
	assert.True(t, p.Equal(parsed))
	assert.Equal(t, uri, parsed.DataURI())
}

func TestParseEncoded_BareBase64IsJPEG(t *testing.T) {
	parsed, err := ParseEncoded("aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", parsed.MIMEType)
	assert.Equal(t, []byte("hello"), parsed.Data)
}

func TestParseEncoded_Invalid(t *testing.T) {
	for _, in := range []string{"", "data:image/png,abc", "data:text/plain;base64,aGVsbG8=", "!!!", "data:image/png;base64"} {
		_, err := ParseEncoded(in)
		assert.ErrorIs(t, err, ErrInvalidEncoding, in)
	}
}

func TestEnsureDataURI(t *testing.T) {
	assert.Equal(t, "data:image/png;base64,aGk=", EnsureDataURI("data:image/png;base64,aGk="))
	assert.Equal(t, "data:image/jpeg;base64,aGk=", EnsureDataURI("aGk="))
}

func TestCapture_PNG(t *testing.T) {
	data := testPNG(t)
	p, err := Capture(data)
	require.NoError(t, err)
	assert.Equal(t, "image/png", p.MIMEType)
	assert.Equal(t, data, p.Data)

	// Capture copies the input.
	data[0] = 0
	assert.NotEqual(t, data[0], p.Data[0])
}

func TestCapture_RejectsNonImage(t *testing.T) {
	_, err := Capture([]byte("<html>not an image</html>"))
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	_, err = Capture(nil)
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestCaptureReader_TooLarge(t *testing.T) {
	big := bytes.Repeat([]byte{0}, MaxImageSize+10)
	_, err := CaptureReader(bytes.NewReader(big))
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestParseResolution(t *testing.T) {
	r, err := ParseResolution("2k")
	require.NoError(t, err)
	assert.Equal(t, Resolution2K, r)

	_, err = ParseResolution("8K")
	assert.Error(t, err)
}

func TestPayload_Extension(t *testing.T) {
	assert.Equal(t, ".png", NewPayload([]byte{1}, "image/png").Extension())
	assert.Equal(t, ".jpg", NewPayload([]byte{1}, "image/jpeg").Extension())
	assert.Equal(t, ".jpg", NewPayload([]byte{1}, "").Extension())
}
