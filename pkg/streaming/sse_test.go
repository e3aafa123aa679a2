// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package streaming

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleSSEMissingRoomReturnsBadRequest(t *testing.T) {
	server := NewSSEServer(func(r *http.Request, room string) (*Subscription, error) {
		t.Fatal("subscribe should not be called without a room")
		return nil, nil
	})

	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	rec := httptest.NewRecorder()
	server.HandleSSE(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSSEStreamsMessagesUntilClosed(t *testing.T) {
	messages := make(chan Message, 4)
	messages <- Message{Event: "job_created", Data: map[string]string{"id": "1"}}
	messages <- Message{Event: "job_started", Data: map[string]string{"id": "1"}}
	close(messages)

	unsubscribed := false
	server := NewSSEServer(func(r *http.Request, room string) (*Subscription, error) {
		assert.Equal(t, "jobs", room)
		return &Subscription{
			Messages:    messages,
			Unsubscribe: func() { unsubscribed = true },
		}, nil
	})

	httpServer := httptest.NewServer(http.HandlerFunc(server.HandleSSE))
	defer httpServer.Close()

	resp, err := http.Get(httpServer.URL + "/stream?room=jobs")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, "event: connected")
	assert.Contains(t, text, "event: job_created")
	assert.Contains(t, text, "event: job_started")
	assert.Contains(t, text, "event: stream_closed")
	assert.True(t, unsubscribed)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
}

func TestHandleSSEPropagatesSubscribeError(t *testing.T) {
	server := NewSSEServer(func(r *http.Request, room string) (*Subscription, error) {
		return nil, assert.AnError
	})

	req := httptest.NewRequest(http.MethodGet, "/stream?room=jobs", nil)
	rec := httptest.NewRecorder()
	server.HandleSSE(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
