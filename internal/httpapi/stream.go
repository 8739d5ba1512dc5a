package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/service"
	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/types"
)

// handlePresenceStream serves Server-Sent Events: a "snapshot" event with
// the current roster, then a "presence" event for every change.
func (s *Server) handlePresenceStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "stream_unsupported", "streaming not supported")
		return
	}

	sub, err := s.notifier.Subscribe(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrNotReady) || errors.Is(err, service.ErrNotifierClosed) {
			writeError(w, http.StatusServiceUnavailable, "not_ready", "presence registry is unavailable")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	defer sub.Close()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "snapshot", sub.Initial); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(s.streamKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-sub.Updates:
			if !ok {
				return
			}
			if err := writeEvent(w, "presence", snap); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, snap types.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\nid: %d\ndata: %s\n\n", event, snap.Version, data)
	return err
}
