// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package model defines the judge coordinator's persisted entities: problems,
// submissions, jobs, and api keys, plus their JSON detail projections.
package model

import "time"

// JobStatus is the job lifecycle engine's state discriminator.
type JobStatus string

const (
	JobStatusQueued           JobStatus = "queued"
	JobStatusStarted          JobStatus = "started"
	JobStatusAwaitingVerdict  JobStatus = "awaiting_verdict"
	JobStatusFinished         JobStatus = "finished"
	JobStatusCancelled        JobStatus = "cancelled"
)

// Verdict is the closed set of outcomes a jury can report.
type Verdict string

const (
	VerdictAccepted           Verdict = "AC"
	VerdictRan                Verdict = "RAN"
	VerdictInvalidSource      Verdict = "IS"
	VerdictWrongAnswer        Verdict = "WA"
	VerdictTimeLimitExceeded  Verdict = "TLE"
	VerdictMemoryLimitExceeded Verdict = "MLE"
	VerdictRuntimeError       Verdict = "RTE"
	VerdictIllegalSyscall     Verdict = "ISC"
	VerdictCompilationError   Verdict = "CE"
	VerdictJudgeError         Verdict = "JE"
)

// IsValid reports whether v is one of the ten defined verdict codes.
func (v Verdict) IsValid() bool {
	switch v {
	case VerdictAccepted, VerdictRan, VerdictInvalidSource, VerdictWrongAnswer,
		VerdictTimeLimitExceeded, VerdictMemoryLimitExceeded, VerdictRuntimeError,
		VerdictIllegalSyscall, VerdictCompilationError, VerdictJudgeError:
		return true
	default:
		return false
	}
}

// StaleClaimWindow is how long after its ClaimTime a started job becomes
// reclaimable by another worker. Progress reports do not reset ClaimTime.
const StaleClaimWindow = 5 * time.Minute

// Job is the unit of evaluation and the primary state-bearing entity. Field
// nullability tracks the invariants in spec §3: ClaimTime and
// VerificationCode are set together on claim and cleared together on
// release; finishing clears VerificationCode and keeps ClaimTime.
type Job struct {
	ID             int64
	SubmissionID   int64
	CreationTime   time.Time
	Status         JobStatus
	ClaimTime      *time.Time
	CompletionTime *time.Time

	VerificationCode *int64
	LastRanCase      *int
	ExecutionTime    *float64
	ExecutionMemory  *int64

	Verdict *Verdict

	CallbackURL *string
}

// IsClaimable implements the claimable predicate of spec §4.2: queued, or
// started with a claim older than the stale window as of now.
func (j *Job) IsClaimable(now time.Time) bool {
	switch j.Status {
	case JobStatusQueued:
		return true
	case JobStatusStarted:
		return j.ClaimTime != nil && j.ClaimTime.Before(now.Add(-StaleClaimWindow))
	default:
		return false
	}
}

// IsTerminal reports whether j is in an absorbing state.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusFinished || j.Status == JobStatusCancelled
}

// JobDetails is the generic detail projection returned from job list/get
// endpoints, omitting unset fields.
type JobDetails struct {
	ID              int64      `json:"id"`
	SubmissionID    int64      `json:"submission_id"`
	CreationTime    float64    `json:"creation_time"`
	Status          JobStatus  `json:"status"`
	ClaimTime       *float64   `json:"claim_time,omitempty"`
	CompletionTime  *float64   `json:"completion_time,omitempty"`
	LastRanCase     *int       `json:"last_ran_case,omitempty"`
	ExecutionTime   *float64   `json:"execution_time,omitempty"`
	ExecutionMemory *int64     `json:"execution_memory,omitempty"`
	Verdict         *Verdict   `json:"verdict,omitempty"`
}

// Details projects j into the response shape of spec §4.1's "details" payload.
func (j *Job) Details() JobDetails {
	d := JobDetails{
		ID:              j.ID,
		SubmissionID:    j.SubmissionID,
		CreationTime:    toPOSIXSeconds(j.CreationTime),
		Status:          j.Status,
		LastRanCase:     j.LastRanCase,
		ExecutionTime:   j.ExecutionTime,
		ExecutionMemory: j.ExecutionMemory,
		Verdict:         j.Verdict,
	}
	if j.ClaimTime != nil {
		t := toPOSIXSeconds(*j.ClaimTime)
		d.ClaimTime = &t
	}
	if j.CompletionTime != nil {
		t := toPOSIXSeconds(*j.CompletionTime)
		d.CompletionTime = &t
	}
	return d
}

// ClaimDetails is the payload returned only to the worker that claimed the
// job: spec §4.1's "claim_details".
type ClaimDetails struct {
	ID               int64  `json:"id"`
	ProblemID        int64  `json:"problem_id"`
	VerificationCode int64  `json:"verification_code"`
	Code             string `json:"code"`
	Language         string `json:"language"`
}

// VerdictDetails is the payload broadcast on job_updated: spec §4.1's
// "verdict_details".
type VerdictDetails struct {
	Status          JobStatus `json:"status"`
	CompletionTime  *float64  `json:"completion_time,omitempty"`
	LastRanCase     *int      `json:"last_ran_case,omitempty"`
	ExecutionTime   *float64  `json:"execution_time,omitempty"`
	ExecutionMemory *int64    `json:"execution_memory,omitempty"`
	Verdict         *Verdict  `json:"verdict,omitempty"`
}

// VerdictDetails projects j into the response shape of spec §4.1's
// "verdict_details" payload.
func (j *Job) VerdictDetails() VerdictDetails {
	d := VerdictDetails{
		Status:          j.Status,
		LastRanCase:     j.LastRanCase,
		ExecutionTime:   j.ExecutionTime,
		ExecutionMemory: j.ExecutionMemory,
		Verdict:         j.Verdict,
	}
	if j.CompletionTime != nil {
		t := toPOSIXSeconds(*j.CompletionTime)
		d.CompletionTime = &t
	}
	return d
}

func toPOSIXSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
