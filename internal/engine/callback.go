// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/easyctf/judge-coordinator/pkg/logging"
	"github.com/easyctf/judge-coordinator/pkg/pool"
)

// CallbackFirer fires a job's finish callback exactly once, off the request
// thread, per spec §4.1/§9: "a bounded worker pool with a fire-and-forget
// queue and a 2-second per-request timeout."
type CallbackFirer interface {
	// Fire enqueues a POST of payload to url. It never blocks the caller
	// past the queue capacity and never returns an error the caller must
	// handle: delivery is best-effort.
	Fire(jobID int64, url string, payload interface{})

	// Close stops background delivery. It returns without waiting: a POST
	// already in flight finishes or times out on its own, and callbacks
	// still queued (or fired after Close) are not delivered.
	Close()
}

type callbackJob struct {
	jobID   int64
	url     string
	payload interface{}
}

// WorkerPoolCallbackFirer is the default CallbackFirer: a fixed set of
// goroutines draining a buffered queue, each POST bounded by callbackTimeout.
type WorkerPoolCallbackFirer struct {
	queue   chan callbackJob
	client  *http.Client
	timeout time.Duration
	logger  logging.Logger
	done    chan struct{}
}

// NewWorkerPoolCallbackFirer starts workers goroutines draining a queue of
// the given capacity. Jobs submitted once the queue is full are dropped
// (logged), matching the "at-most-once, best-effort" callback contract.
func NewWorkerPoolCallbackFirer(workers, queueCapacity int, timeout time.Duration, logger logging.Logger) *WorkerPoolCallbackFirer {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	clientPool := pool.NewHTTPClientPool(pool.DefaultPoolConfig(), logger)
	f := &WorkerPoolCallbackFirer{
		queue:   make(chan callbackJob, queueCapacity),
		client:  clientPool.GetClient("callbacks"),
		timeout: timeout,
		logger:  logger,
		done:    make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go f.worker()
	}
	return f
}

func (f *WorkerPoolCallbackFirer) worker() {
	for {
		select {
		case job, ok := <-f.queue:
			if !ok {
				return
			}
			f.post(job)
		case <-f.done:
			return
		}
	}
}

func (f *WorkerPoolCallbackFirer) post(job callbackJob) {
	body, err := json.Marshal(job.payload)
	if err != nil {
		f.logger.Warn("callback payload marshal failed", "job_id", job.jobID, "error", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.url, bytes.NewReader(body))
	if err != nil {
		f.logger.Warn("callback request build failed", "job_id", job.jobID, "error", err.Error())
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("callback delivery failed", "job_id", job.jobID, "url", job.url, "error", err.Error())
		return
	}
	defer resp.Body.Close()
	f.logger.Info("callback delivered", "job_id", job.jobID, "status", resp.StatusCode)
}

// Fire enqueues the callback; if the queue is full it is dropped immediately
// rather than blocking the caller, preserving the "never wait" contract.
func (f *WorkerPoolCallbackFirer) Fire(jobID int64, url string, payload interface{}) {
	if url == "" {
		return
	}
	select {
	case f.queue <- callbackJob{jobID: jobID, url: url, payload: payload}:
	default:
		f.logger.Warn("callback queue full, dropping", "job_id", jobID)
	}
}

// Close stops the worker pool.
func (f *WorkerPoolCallbackFirer) Close() {
	close(f.done)
}

// NoopCallbackFirer discards every callback. Useful in tests.
type NoopCallbackFirer struct{}

func (NoopCallbackFirer) Fire(int64, string, interface{}) {}
func (NoopCallbackFirer) Close()                          {}
