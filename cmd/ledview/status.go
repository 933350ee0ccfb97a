package main

import (
	"fmt"
	"image"
	"image/png"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/fkcurrie/ledmatrix-viewer/internal/stream"
	"github.com/fkcurrie/ledmatrix-viewer/internal/types"
)

type stateSource interface {
	State() types.ConnectionState
	Stats() stream.Stats
}

type snapshotSource interface {
	Snapshot() *image.RGBA
}

// newStatusHandler serves /health for the client and, when a canvas is in
// use, /snapshot.png for the last rendered frame
func newStatusHandler(client stateSource, canvas snapshotSource) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		state := client.State()
		stats := client.Stats()
		if state != types.StateConnected {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprintf(w, "%s frames=%d decode_errors=%d reconnects=%d\n",
			state, stats.Frames, stats.DecodeErrors, stats.Reconnects)
	})

	mux.HandleFunc("/snapshot.png", func(w http.ResponseWriter, r *http.Request) {
		if canvas == nil {
			http.Error(w, "no canvas in cells mode", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		if err := png.Encode(w, canvas.Snapshot()); err != nil {
			log.WithField("error", err).Warn("Failed to write snapshot.")
		}
	})

	return mux
}
