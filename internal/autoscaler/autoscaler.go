// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package autoscaler

import (
	"context"
	"time"

	"github.com/easyctf/judge-coordinator/pkg/logging"
)

// EnqueuedCounter reports how many jobs currently satisfy the claimable
// predicate (the same predicate the Claim Dispatcher uses, spec §4.2),
// without claiming any of them.
type EnqueuedCounter interface {
	CountClaimable(ctx context.Context) (int, error)
}

// Autoscaler runs the windowed control loop of spec §4.3 as a single
// long-lived goroutine, independent of the HTTP request path. It owns its
// LoadIndex exclusively; nothing outside this package ever reads or
// mutates it.
type Autoscaler struct {
	cloud  Cloud
	jobs   EnqueuedCounter
	index  *LoadIndex
	tick   time.Duration
	logger logging.Logger
}

// New builds an Autoscaler. Call Run to start its control loop; Run blocks
// until ctx is cancelled.
func New(cloud Cloud, jobs EnqueuedCounter, tickInterval time.Duration, logger logging.Logger) *Autoscaler {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Autoscaler{
		cloud:  cloud,
		jobs:   jobs,
		index:  NewLoadIndex(1),
		tick:   tickInterval,
		logger: logger,
	}
}

// Run performs the cold-start bootstrap (spec §8 S6: create one jury if the
// provider reports zero at boot) and then ticks every a.tick until ctx is
// cancelled.
func (a *Autoscaler) Run(ctx context.Context) error {
	if err := a.bootstrap(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(a.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.runTick(ctx)
		}
	}
}

// bootstrap creates exactly one jury if the provider currently has none.
func (a *Autoscaler) bootstrap(ctx context.Context) error {
	count, err := a.cloud.CurrentCount(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		a.logger.Info("no juries exist at startup, creating one")
		if err := a.cloud.Create(ctx, 1); err != nil {
			return err
		}
		count = 1
	}
	a.index.SetJuryCount(count)
	return nil
}

// runTick executes one sample-and-adjust cycle, logging and swallowing any
// provisioning error rather than crashing the loop: a single failed tick
// should not take down the control process, since the next tick will
// re-sample and try again.
func (a *Autoscaler) runTick(ctx context.Context) {
	currentCount, err := a.cloud.CurrentCount(ctx)
	if err != nil {
		a.logger.Error("failed to read current jury count", "error", err.Error())
		return
	}
	a.index.SetJuryCount(currentCount)

	enqueued, err := a.jobs.CountClaimable(ctx)
	if err != nil {
		a.logger.Error("failed to count claimable jobs", "error", err.Error())
		return
	}
	a.index.Update(enqueued)

	change := a.index.OptimalChange()
	juryCount := a.index.JuryCount()
	a.logger.Info("autoscaler tick", "enqueued", enqueued, "jury_count", juryCount, "optimal_change", change)

	switch {
	case change > 0:
		if juryCount >= maxJuries {
			a.logger.Info("maximum jury count reached, not scaling up")
			return
		}
		toCreate := change
		if toCreate > maxJuries-juryCount {
			toCreate = maxJuries - juryCount
		}
		a.logger.Info("scaling up", "count", toCreate)
		if err := a.cloud.Create(ctx, toCreate); err != nil {
			a.logger.Error("failed to create juries", "error", err.Error())
			return
		}
		a.index.SetJuryCount(juryCount + toCreate)

	case change < 0:
		if juryCount <= 1 {
			a.logger.Info("not enough juries to destroy")
			return
		}
		toDestroy := -change
		if toDestroy > juryCount-1 {
			toDestroy = juryCount - 1
		}
		a.logger.Info("scaling down", "count", toDestroy)
		destroyed, err := a.cloud.Destroy(ctx, toDestroy)
		if err != nil {
			a.logger.Error("failed to destroy juries", "error", err.Error())
			return
		}
		a.logger.Info("destroyed juries", "count", destroyed)
		a.index.SetJuryCount(juryCount - destroyed)
	}
}
