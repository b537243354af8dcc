package bot

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/raine/sellsmart-bot/internal/listing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jpegHeader = []byte{0xff, 0xd8, 0xff, 0xe0, 0, 0x10}

// servePhoto answers every request with body under the given content type.
func servePhoto(t *testing.T, contentType string, status int, body []byte) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		w.Write(body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestImageDownloader_DownloadFromURL(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		status      int
		body        []byte
		maxSize     int64
		want        []byte
		wantErr     error
		errContains string
	}{
		{name: "jpeg photo", contentType: "image/jpeg", status: http.StatusOK, body: jpegHeader, want: jpegHeader},
		{name: "telegram octet stream", contentType: "application/octet-stream", status: http.StatusOK, body: jpegHeader, want: jpegHeader},
		{name: "missing file", contentType: "text/plain", status: http.StatusNotFound, errContains: "status 404"},
		{name: "html error page", contentType: "text/html", status: http.StatusOK, body: []byte("<html></html>"), errContains: "invalid content type"},
		{name: "body over limit", contentType: "image/png", status: http.StatusOK, body: bytes.Repeat([]byte{1}, 64), maxSize: 32, wantErr: listing.ErrImageTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := servePhoto(t, tt.contentType, tt.status, tt.body)
			d := NewImageDownloader()
			if tt.maxSize > 0 {
				d.WithMaxSize(tt.maxSize)
			}

			data, err := d.DownloadFromURL(context.Background(), ts.URL+"/photos/file_1.jpg")
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errContains != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, data)
			}
		})
	}
}

func TestImageDownloader_DeclaredLengthOverLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", "20000000")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	_, err := NewImageDownloader().DownloadFromURL(context.Background(), ts.URL)
	assert.ErrorIs(t, err, listing.ErrImageTooLarge)
}

func TestImageDownloader_CanceledContext(t *testing.T) {
	hit := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewImageDownloader().WithTimeout(time.Second).DownloadFromURL(ctx, ts.URL)
	assert.Error(t, err)
	assert.False(t, hit)
}

func TestImageDownloader_TelegramFileID(t *testing.T) {
	ts := servePhoto(t, "application/octet-stream", http.StatusOK, jpegHeader)

	var resolved string
	resolve := func(fileID string) (string, error) {
		resolved = fileID
		return ts.URL + "/file/bot123/photos/" + fileID + ".jpg", nil
	}

	data, err := NewImageDownloader().DownloadFromTelegramFileID(context.Background(), resolve, "AgACAgQ")
	require.NoError(t, err)
	assert.Equal(t, "AgACAgQ", resolved)
	assert.Equal(t, jpegHeader, data)

	failing := func(string) (string, error) { return "", errors.New("file is too big") }
	_, err = NewImageDownloader().DownloadFromTelegramFileID(context.Background(), failing, "AgACAgQ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get file URL")
}
