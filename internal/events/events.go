// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/easyctf/judge-coordinator/internal/engine"
	"github.com/easyctf/judge-coordinator/pkg/logging"
	"github.com/easyctf/judge-coordinator/pkg/streaming"
)

// Events is the coordinator's live-push surface: a websocket hub for
// direct connections, an SSE fallback for clients that can't hold one
// open, and a Redis-backed emitter so internal/engine's room broadcasts
// reach every replica's connections.
type Events struct {
	Hub        *streaming.Hub
	SSE        *streaming.SSEServer
	Emitter    *RedisEmitter
	dispatcher *Dispatcher
}

// New wires a Hub, a RedisEmitter bound to redisClient, and a Dispatcher
// implementing the existence-check/join/init-snapshot room contract for
// eng. Call Run to start relaying Redis-published events into the hub.
func New(eng *engine.Engine, redisClient *redis.Client, logger logging.Logger) *Events {
	hub := streaming.NewHub()
	emitter := NewRedisEmitter(redisClient, hub, logger)
	dispatcher := NewDispatcher(hub, eng, logger)

	e := &Events{Hub: hub, Emitter: emitter, dispatcher: dispatcher}
	e.SSE = streaming.NewSSEServer(e.subscribeSSE)
	return e
}

// Run relays Redis-published room messages into the local hub until ctx is
// cancelled. Run one per coordinator process.
func (e *Events) Run(ctx context.Context) error {
	return e.Emitter.Run(ctx)
}

// ServeWebSocket upgrades r and runs the connection's command loop against
// e's Dispatcher.
func (e *Events) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	e.Hub.ServeWebSocket(w, r, e.dispatcher.HandleCommand)
}

// subscribeSSE adapts a room name to the same join semantics the websocket
// path uses, for the SSE fallback transport. Per-id rooms (job_<id>,
// submission_<id>) skip the existence-check/init-snapshot dance here: SSE
// clients fetch current state over plain HTTP before subscribing, so there
// is no _init payload to deliver over the stream itself.
func (e *Events) subscribeSSE(r *http.Request, room string) (*streaming.Subscription, error) {
	client := streaming.NewDirectClient(32)
	e.Hub.Join(room, client)
	return &streaming.Subscription{
		Messages:    client.Receive(),
		Unsubscribe: func() { e.Hub.Leave(room, client) },
	}, nil
}
