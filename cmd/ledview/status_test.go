package main

import (
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkcurrie/ledmatrix-viewer/internal/stream"
	"github.com/fkcurrie/ledmatrix-viewer/internal/types"
)

type fakeState struct {
	state types.ConnectionState
	stats stream.Stats
}

func (f fakeState) State() types.ConnectionState { return f.state }
func (f fakeState) Stats() stream.Stats          { return f.stats }

type fakeCanvas struct{ img *image.RGBA }

func (f fakeCanvas) Snapshot() *image.RGBA { return f.img }

func TestHealth(t *testing.T) {
	tests := []struct {
		state types.ConnectionState
		code  int
	}{
		{types.StateConnected, http.StatusOK},
		{types.StateConnecting, http.StatusServiceUnavailable},
		{types.StateDisconnected, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			h := newStatusHandler(fakeState{state: tt.state, stats: stream.Stats{Frames: 7}}, nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.code, rec.Code)
			assert.True(t, strings.HasPrefix(rec.Body.String(), tt.state.String()+" "))
			assert.Contains(t, rec.Body.String(), "frames=7")
		})
	}
}

func TestSnapshot(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(1, 0, color.RGBA{R: 255, A: 255})

	h := newStatusHandler(fakeState{}, fakeCanvas{img: img})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/snapshot.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	decoded, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 255, A: 255}, color.RGBAModel.Convert(decoded.At(1, 0)))
}

func TestSnapshotWithoutCanvas(t *testing.T) {
	h := newStatusHandler(fakeState{}, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/snapshot.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
