package utils

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
)

// SSEWriter emits Server-Sent Events. Headers are sent with the first event,
// so callers can still answer with a plain status code until then.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

// NewSSEWriter fails when the response writer cannot flush.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported")
	}
	return &SSEWriter{w: w, flusher: flusher}, nil
}

// Started reports whether any event has been written.
func (s *SSEWriter) Started() bool {
	return s.started
}

// Send writes payload as a `data:` frame and flushes it.
func (s *SSEWriter) Send(payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal sse payload: %v", err)
		return
	}

	if !s.started {
		SetupSSEHeaders(s.w)
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		log.Printf("failed to write sse payload: %v", err)
		return
	}
	s.flusher.Flush()
}

// SetupSSEHeaders sets the Server-Sent Events response headers.
func SetupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}
