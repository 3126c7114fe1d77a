package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// eventStream pushes a report's progress events to one client over
// Server-Sent Events. Each event is flushed immediately so the client
// sees progress as it happens, not when the run ends.
type eventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newEventStream prepares the response for SSE. Fails when the underlying
// writer cannot flush, as buffered progress is no progress at all.
func newEventStream(w http.ResponseWriter) (*eventStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	return &eventStream{w: w, flusher: flusher}, nil
}

// send writes one named event with a JSON payload and flushes it.
func (s *eventStream) send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
