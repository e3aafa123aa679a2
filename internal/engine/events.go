// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"
)

// Room names for the live-push fan-out (spec §6). Per-id rooms are formed
// with JobRoom/SubmissionRoom.
const (
	RoomMonitor     = "monitor"
	RoomJobs        = "jobs"
	RoomSubmissions = "submissions"
)

// JobRoom returns the per-job room name a claimer or monitor subscribes to.
func JobRoom(jobID int64) string { return fmt.Sprintf("job_%d", jobID) }

// SubmissionRoom returns the per-submission room name.
func SubmissionRoom(submissionID int64) string { return fmt.Sprintf("submission_%d", submissionID) }

// Event names emitted by the engine, per spec §6.
const (
	EventSubmissionNew = "submission_new"
	EventJobNew        = "job_new"
	EventJobClaimed    = "job_claimed"
	EventJobReleased   = "job_released"
	EventJobCancelled  = "job_cancelled"
	EventJobUpdated    = "job_updated"
)

// Emitter publishes a named event with its payload to a room. Per spec §6,
// any emit to a specific room is also mirrored to RoomMonitor; implementations
// (internal/events) are responsible for that mirroring, not callers here.
type Emitter interface {
	Emit(ctx context.Context, room, event string, payload interface{}) error
}

// NoopEmitter discards every event. Useful for engine tests and for running
// without the live-push transport (ENABLE_SOCKETIO=0).
type NoopEmitter struct{}

func (NoopEmitter) Emit(context.Context, string, string, interface{}) error { return nil }

// emit fires an event and swallows any fan-out error: event delivery is
// best-effort and must never fail the HTTP request that triggered it.
func (e *Engine) emit(ctx context.Context, room, event string, payload interface{}) {
	if e.events == nil {
		return
	}
	if err := e.events.Emit(ctx, room, event, payload); err != nil {
		e.logger.Warn("event emit failed", "room", room, "event", event, "error", err.Error())
	}
}
