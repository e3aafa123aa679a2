// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"
	"strconv"

	"github.com/easyctf/judge-coordinator/internal/engine"
	"github.com/easyctf/judge-coordinator/pkg/logging"
	"github.com/easyctf/judge-coordinator/pkg/streaming"
)

// Client-to-server command actions, mirroring the original sockets.py
// event names.
const (
	cmdSubMonitor     = "sub_monitor"
	cmdSubJobs        = "sub_jobs"
	cmdUnsubJobs      = "unsub_jobs"
	cmdSubJob         = "sub_job"
	cmdUnsubJob       = "unsub_job"
	cmdSubSubmissions = "sub_submissions"
	cmdUnsubSub       = "unsub_submissions"
	cmdSubSubmission  = "sub_submission"
	cmdUnsubSubOne    = "unsub_submission"

	eventJobInit        = "job_init"
	eventSubmissionInit = "submission_init"
	eventError          = "error"
)

// Dispatcher adapts streaming.Hub's onCommand callback to the coordinator's
// room contract: the existence-check -> join -> re-fetch -> init-snapshot
// sequence for per-id rooms (job_<id>, submission_<id>), required because
// a broadcast can otherwise race ahead of a client's join and leave it
// missing the update that produced the very state it's about to receive.
type Dispatcher struct {
	hub    *streaming.Hub
	engine *engine.Engine
	logger logging.Logger
}

// NewDispatcher builds a Dispatcher bound to hub and engine.
func NewDispatcher(hub *streaming.Hub, eng *engine.Engine, logger logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Dispatcher{hub: hub, engine: eng, logger: logger}
}

// HandleCommand is passed as streaming.Hub's onCommand callback. For the
// per-id subscribe/unsubscribe actions, cmd.Room carries the raw job or
// submission id (as a decimal string) rather than a room name; streaming.
// Command has no separate id field, so the per-id commands repurpose Room
// for it.

func (d *Dispatcher) HandleCommand(c *streaming.Client, cmd streaming.Command) {
	switch cmd.Action {
	case cmdSubMonitor:
		d.hub.Join(engine.RoomMonitor, c)
	case cmdSubJobs:
		d.hub.Join(engine.RoomJobs, c)
	case cmdUnsubJobs:
		d.hub.Leave(engine.RoomJobs, c)
	case cmdSubSubmissions:
		d.hub.Join(engine.RoomSubmissions, c)
	case cmdUnsubSub:
		d.hub.Leave(engine.RoomSubmissions, c)
	case cmdSubJob:
		d.subJob(c, cmd.Room)
	case cmdUnsubJob:
		d.hub.Leave(engine.JobRoom(parseID(cmd.Room)), c)
	case cmdSubSubmission:
		d.subSubmission(c, cmd.Room)
	case cmdUnsubSubOne:
		d.hub.Leave(engine.SubmissionRoom(parseID(cmd.Room)), c)
	}
}

// subJob implements sub_job's existence-check -> join -> re-fetch sequence:
// the job is checked for existence, the client is joined to its room, and
// only then is the job re-fetched and sent as an _init snapshot — closing
// the race window where an update could be broadcast between the
// existence check and the join.
func (d *Dispatcher) subJob(c *streaming.Client, rawID string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		c.Send(streaming.Message{Event: eventError, Data: "job does not exist"})
		return
	}
	if _, err := d.engine.GetJob(context.Background(), id); err != nil {
		c.Send(streaming.Message{Event: eventError, Data: "job does not exist"})
		return
	}

	room := engine.JobRoom(id)
	d.hub.Join(room, c)

	job, err := d.engine.GetJob(context.Background(), id)
	if err != nil {
		d.logger.Warn("job disappeared after existence check in sub_job", "job_id", id)
		c.Send(streaming.Message{Event: eventError, Data: "job does not exist"})
		return
	}
	c.Send(streaming.Message{Event: eventJobInit, Data: job.Details()})
}

// subSubmission mirrors subJob's contract for submission_<id> rooms.
func (d *Dispatcher) subSubmission(c *streaming.Client, rawID string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		c.Send(streaming.Message{Event: eventError, Data: "submission does not exist"})
		return
	}
	sub, jobs, err := d.engine.GetSubmission(context.Background(), id)
	if err != nil {
		c.Send(streaming.Message{Event: eventError, Data: "submission does not exist"})
		return
	}

	room := engine.SubmissionRoom(id)
	d.hub.Join(room, c)

	sub, jobs, err = d.engine.GetSubmission(context.Background(), id)
	if err != nil {
		d.logger.Warn("submission disappeared after existence check in sub_submission", "submission_id", id)
		c.Send(streaming.Message{Event: eventError, Data: "submission does not exist"})
		return
	}
	c.Send(streaming.Message{Event: eventSubmissionInit, Data: sub.Details(jobs)})
}

func parseID(raw string) int64 {
	id, _ := strconv.ParseInt(raw, 10, 64)
	return id
}
