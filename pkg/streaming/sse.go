// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package streaming

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// SSEEvent represents a Server-Sent Event.
type SSEEvent struct {
	ID    string      `json:"id,omitempty"`
	Event string      `json:"event,omitempty"`
	Data  interface{} `json:"data"`
	Retry int         `json:"retry,omitempty"`
}

// Subscription delivers room messages until Unsubscribe is called.
type Subscription struct {
	Messages    <-chan Message
	Unsubscribe func()
}

// SubscribeFunc joins the caller to a room, applying whatever room-specific
// join contract the caller implements (existence check, _init snapshot, ...).
type SubscribeFunc func(r *http.Request, room string) (*Subscription, error)

// SSEServer is a long-polling fallback for clients that can't hold a
// websocket open: it renders the same room messages as Server-Sent Events.
type SSEServer struct {
	subscribe SubscribeFunc
}

// NewSSEServer creates an SSE server backed by the given subscribe function.
func NewSSEServer(subscribe SubscribeFunc) *SSEServer {
	return &SSEServer{subscribe: subscribe}
}

// HandleSSE handles a GET request with a `room` query parameter and streams
// that room's messages until the client disconnects.
func (s *SSEServer) HandleSSE(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	if room == "" {
		http.Error(w, "room query parameter required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub, err := s.subscribe(r, room)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer sub.Unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeSSEEvent(w, flusher, SSEEvent{Event: "connected", Data: map[string]string{"room": room}})

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Messages:
			if !ok {
				writeSSEEvent(w, flusher, SSEEvent{Event: "stream_closed", Data: map[string]string{"room": room}})
				return
			}
			writeSSEEvent(w, flusher, SSEEvent{Event: msg.Event, Data: msg.Data})
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, event SSEEvent) {
	if event.ID != "" {
		fmt.Fprintf(w, "id: %s\n", event.ID)
	}
	if event.Event != "" {
		fmt.Fprintf(w, "event: %s\n", event.Event)
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		fmt.Fprint(w, "data: {\"error\": \"failed to marshal data\"}\n")
	} else {
		fmt.Fprintf(w, "data: %s\n", string(data))
	}

	if event.Retry > 0 {
		fmt.Fprintf(w, "retry: %d\n", event.Retry)
	}

	fmt.Fprint(w, "\n")
	flusher.Flush()
}
