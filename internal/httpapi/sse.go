package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// handleEvents bridges the event bus onto a server-sent-events stream. The
// subscription lives exactly as long as the connection: subscribe on connect,
// unsubscribe when the client goes away or the server shuts down.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	id, ch := s.Bus.Subscribe()
	defer s.Bus.Unsubscribe(id)
	s.Logger.Debug("sse_connected", zap.Int("subscriber", id))

	for {
		select {
		case <-r.Context().Done():
			s.Logger.Debug("sse_disconnected", zap.Int("subscriber", id))
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.Logger.Warn("sse_marshal_error", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.EventName(), data)
			flusher.Flush()
		}
	}
}
