package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// streamEvents relays page events as server-sent events until the client
// disconnects or the stream stops.
func (h *handler) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	stream := h.events.Subscribe(r.Context())
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for evt := range stream {
		data, err := json.Marshal(evt.Event)
		if err != nil {
			h.logger.Warn("failed to encode event", "event", evt.Name, "error", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Name, data); err != nil {
			return
		}
		flusher.Flush()
	}
}
