// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package autoscaler implements the windowed controller that rightsizes the
// jury fleet against queue depth (spec §4.3).
package autoscaler

// windowSize is the number of recent enqueued-job samples the controller
// averages over.
const windowSize = 10

// maxJuries is the hard cap on fleet size.
const maxJuries = 10

// LoadIndex is a ring buffer of the most recent enqueued-job samples plus
// the controller's current belief of fleet size. It is owned exclusively
// by the autoscaler's tick loop; not safe for concurrent use.
type LoadIndex struct {
	lastN     []int
	juryCount int
}

// NewLoadIndex returns a controller seeded with the given starting fleet
// size (spec: re-synced from the cloud provider at boot).
func NewLoadIndex(juryCount int) *LoadIndex {
	if juryCount < 1 {
		juryCount = 1
	}
	return &LoadIndex{juryCount: juryCount}
}

// Update records a new enqueued-job sample, dropping the oldest once the
// window exceeds windowSize.
func (l *LoadIndex) Update(enqueued int) {
	l.lastN = append(l.lastN, enqueued)
	if len(l.lastN) > windowSize {
		l.lastN = l.lastN[1:]
	}
}

// SetJuryCount overwrites the controller's believed fleet size. The
// autoscaler calls this once per tick with the cloud provider's own count,
// rather than mutating a local counter on success/failure (spec §9's
// hardened re-sync guidance).
func (l *LoadIndex) SetJuryCount(n int) {
	if n < 1 {
		n = 1
	}
	l.juryCount = n
}

// JuryCount returns the controller's current believed fleet size.
func (l *LoadIndex) JuryCount() int { return l.juryCount }

// OptimalChange returns the signed delta the controller wants applied to
// the fleet this tick: positive to scale up, negative to scale down, zero
// to hold. avg/juryCount is the "load index"; index ≥ 20 scales up by
// floor(index/20), index < 2 scales down by one, otherwise holds.
func (l *LoadIndex) OptimalChange() int {
	if len(l.lastN) == 0 {
		return 0
	}
	sum := 0
	for _, v := range l.lastN {
		sum += v
	}
	avg := float64(sum) / float64(len(l.lastN))
	index := avg / float64(l.juryCount)

	if index >= 20 {
		return int(index) / 20
	}
	if index < 2 {
		return -1
	}
	return 0
}
