package api

import (
	"net/http"
	"time"
)

// handleLogs streams every daemon log entry as Server-Sent Events.
func (s *Server) handleLogs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setSSEHeaders(w)

		logChan := s.logBroker.Subscribe()
		defer s.logBroker.Unsubscribe(logChan)

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
			return
		}
		flusher.Flush()

		ctx := r.Context()
		keepaliveTicker := time.NewTicker(30 * time.Second)
		defer keepaliveTicker.Stop()
		for {
			select {
			case <-ctx.Done():
				return

			case <-keepaliveTicker.C:
				if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
					return
				}
				flusher.Flush()

			case logEntry, ok := <-logChan:
				if !ok {
					return
				}
				if err := writeSSEMessage(w, logEntry); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
