// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package events wires the room-based event model of internal/engine to a
// live-push transport: a local websocket/SSE hub for this replica's own
// connections, fanned out across every coordinator replica over Redis
// pub/sub so a client connected to replica A sees events emitted by
// replica B.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/easyctf/judge-coordinator/internal/engine"
	"github.com/easyctf/judge-coordinator/pkg/logging"
	"github.com/easyctf/judge-coordinator/pkg/streaming"
)

// redisChannelPrefix namespaces the coordinator's pub/sub channels from
// whatever else shares the Redis instance.
const redisChannelPrefix = "judge-coordinator:room:"

// wireMessage is the payload published to Redis for one room broadcast.
type wireMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// RedisEmitter implements engine.Emitter by publishing to Redis, and
// separately subscribes to every published room to rebroadcast into the
// local streaming.Hub — so engine.Emit calls on any replica reach every
// replica's websocket/SSE clients.
type RedisEmitter struct {
	client *redis.Client
	hub    *streaming.Hub
	logger logging.Logger
}

// NewRedisEmitter builds a RedisEmitter. Call Run in its own goroutine to
// start relaying subscribed messages into hub.
func NewRedisEmitter(client *redis.Client, hub *streaming.Hub, logger logging.Logger) *RedisEmitter {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &RedisEmitter{client: client, hub: hub, logger: logger}
}

var _ engine.Emitter = (*RedisEmitter)(nil)

// Emit publishes payload to room's Redis channel and, unless room is
// already engine.RoomMonitor, to the monitor room's channel as well. Every
// replica's Run subscriber (including this one) picks it up and rebroadcasts
// to its own locally connected clients.
func (e *RedisEmitter) Emit(ctx context.Context, room, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("events: marshal payload for room %q: %w", room, err)
	}
	wire, err := json.Marshal(wireMessage{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("events: marshal wire message for room %q: %w", room, err)
	}
	rooms := []string{room}
	if room != engine.RoomMonitor {
		rooms = append(rooms, engine.RoomMonitor)
	}
	for _, r := range rooms {
		if err := e.client.Publish(ctx, redisChannelPrefix+r, wire).Err(); err != nil {
			return fmt.Errorf("events: publish to room %q: %w", r, err)
		}
	}
	return nil
}

// Run subscribes to every coordinator room channel and rebroadcasts
// incoming messages into the local hub until ctx is cancelled. Every
// coordinator replica runs its own Run loop.
func (e *RedisEmitter) Run(ctx context.Context) error {
	sub := e.client.PSubscribe(ctx, redisChannelPrefix+"*")
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			e.relay(msg)
		}
	}
}

func (e *RedisEmitter) relay(msg *redis.Message) {
	room := msg.Channel[len(redisChannelPrefix):]

	var wire wireMessage
	if err := json.Unmarshal([]byte(msg.Payload), &wire); err != nil {
		e.logger.Warn("dropping malformed room message", "room", room, "error", err.Error())
		return
	}

	var data interface{}
	if err := json.Unmarshal(wire.Data, &data); err != nil {
		e.logger.Warn("dropping room message with unparseable data", "room", room, "error", err.Error())
		return
	}

	e.hub.Broadcast(room, streaming.Message{Event: wire.Event, Data: data})
}
