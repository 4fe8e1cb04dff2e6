package capability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pixelift/backend/internal/config"
	"github.com/pixelift/backend/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRembgClient_Segment(t *testing.T) {
	cutout := encodePNG(t, testImage(2, 2))
	received := make(chan []byte, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- body
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(cutout)
	}))
	defer srv.Close()

	client := NewRembgClient(config.SegmentationConfig{Endpoint: srv.URL, Timeout: 5 * time.Second})
	out, err := client.Segment(context.Background(), []byte("input-bytes"))
	require.NoError(t, err)
	assert.Equal(t, cutout, out)
	assert.Equal(t, []byte("input-bytes"), <-received)
}

func TestRembgClient_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not loaded", http.StatusInternalServerError)
			},
		},
		{
			name: "non png body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>oops</html>"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := NewRembgClient(config.SegmentationConfig{Endpoint: srv.URL, Timeout: 5 * time.Second})
			_, err := client.Segment(context.Background(), []byte("x"))
			assert.ErrorIs(t, err, services.ErrModel)
		})
	}
}

func TestRembgClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewRembgClient(config.SegmentationConfig{Endpoint: url, Timeout: time.Second})
	_, err := client.Segment(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, services.ErrModel)
}
