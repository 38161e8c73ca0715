package webserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/warroomlabs/warroom/internal/events"
)

// handleStream serves the live message feed over SSE, one JSON object per
// event. Keepalive pings arrive through the hub like any other message, so
// no transport-level ticker is needed here.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	id, ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(id)
	s.logger.Debug("webserver: stream subscriber joined", "id", id)

	// Push the response headers out before the first event so clients see
	// the stream open immediately.
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("webserver: stream subscriber left", "id", id)
			return
		case m := <-ch:
			writeSSE(w, flusher, m)
		}
	}
}

func writeSSE(w http.ResponseWriter, f http.Flusher, m events.Message) {
	data, _ := json.Marshal(m)
	fmt.Fprintf(w, "data: %s\n\n", data)
	f.Flush()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS serves the same feed over a websocket for clients that prefer a
// bidirectional transport. Inbound frames are only read to detect close.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	id, ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(id)

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-ch:
			if err := conn.WriteJSON(m); err != nil {
				return
			}
		}
	}
}
