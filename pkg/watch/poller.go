// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package watch provides a ticker-driven sampler used to turn a periodic
// measurement into a channel of samples. The autoscaler uses it to sample
// the claimable-job count every tick; an SSE-fallback room subscriber can
// use the same shape to poll for new events where a websocket isn't
// available.
package watch

import (
	"context"
	"time"
)

// DefaultPollInterval is the default sampling interval (spec: the
// autoscaler ticks every 5 seconds).
const DefaultPollInterval = 5 * time.Second

// Sample is one measurement taken at Time.
type Sample struct {
	Time  time.Time
	Value int64
	Err   error
}

// SampleFunc produces the current value of the signal being watched, e.g.
// the claimable-job count or the current tagged-jury count.
type SampleFunc func(ctx context.Context) (int64, error)

// Poller samples a SampleFunc on a fixed interval and publishes each
// measurement to a channel until its context is canceled.
type Poller struct {
	sample       SampleFunc
	pollInterval time.Duration
	bufferSize   int
}

// NewPoller creates a Poller with the default interval and buffer size.
func NewPoller(sample SampleFunc) *Poller {
	return &Poller{
		sample:       sample,
		pollInterval: DefaultPollInterval,
		bufferSize:   8,
	}
}

// WithPollInterval sets a custom poll interval.
func (p *Poller) WithPollInterval(interval time.Duration) *Poller {
	p.pollInterval = interval
	return p
}

// WithBufferSize sets the sample channel's buffer size.
func (p *Poller) WithBufferSize(size int) *Poller {
	p.bufferSize = size
	return p
}

// Watch starts the polling loop and returns a channel of samples. The
// channel is closed when ctx is done. The first sample is taken immediately,
// not after the first tick.
func (p *Poller) Watch(ctx context.Context) <-chan Sample {
	samples := make(chan Sample, p.bufferSize)
	go p.pollLoop(ctx, samples)
	return samples
}

func (p *Poller) pollLoop(ctx context.Context, samples chan<- Sample) {
	defer close(samples)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	p.emit(ctx, samples)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.emit(ctx, samples)
		}
	}
}

func (p *Poller) emit(ctx context.Context, samples chan<- Sample) {
	value, err := p.sample(ctx)
	sample := Sample{Time: time.Now(), Value: value, Err: err}

	select {
	case samples <- sample:
	case <-ctx.Done():
	}
}
