package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/kbukum/vaultflow/logger"
)

// ServeSSE streams events matching filter to w until the request ends or
// the hub stops. It blocks for the lifetime of the connection.
func ServeSSE(hub *Hub, w http.ResponseWriter, r *http.Request, clientID, filter string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	if _, err := path.Match(filter, ""); err != nil {
		http.Error(w, "invalid filter pattern", http.StatusBadRequest)
		return
	}

	// Streams outlive the server's WriteTimeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		hub.log.Debug("write deadline not cleared", logger.Fields("client_id", clientID, "error", err.Error()))
	}

	client := NewClient(clientID, filter)
	if !hub.Register(r.Context(), client) {
		http.Error(w, "event stream closed", http.StatusServiceUnavailable)
		return
	}
	defer hub.Unregister(client)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	hello, _ := json.Marshal(ConnectedEvent{ClientID: clientID, Filter: client.Filter()})
	writeEvent(w, Event{Type: EventTypeConnected, Data: hello})
	flusher.Flush()

	keepAlive := time.NewTicker(hub.keepAlive)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-client.Events():
			if !ok {
				return
			}
			writeEvent(w, ev)
			flusher.Flush()
		case <-keepAlive.C:
			_, _ = fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, ev Event) {
	if ev.Type != "" {
		_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", ev.Data)
}
