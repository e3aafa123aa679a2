// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package model

import "time"

// MaxCallbackURLLength is the spec §6 limit on submission/job callback_url.
const MaxCallbackURLLength = 256

// Submission is an immutable record of user-supplied code targeting one
// problem. A submission may own many jobs (reruns); FIFO order among them is
// by creation time.
type Submission struct {
	ID        int64
	UID       *int64
	GID       *int64
	Time      time.Time
	ProblemID int64
	Code      string
	Language  Language
}

// SubmissionDetails is the projection returned from submission endpoints.
type SubmissionDetails struct {
	ID        int64      `json:"id"`
	UID       *int64     `json:"uid,omitempty"`
	GID       *int64     `json:"gid,omitempty"`
	Time      float64    `json:"time"`
	ProblemID int64      `json:"problem_id"`
	Code      string     `json:"code"`
	Language  Language   `json:"language"`
	Jobs      []JobDetails `json:"jobs,omitempty"`
}

// Details projects s, optionally including its jobs' detail projections.
func (s *Submission) Details(jobs []*Job) SubmissionDetails {
	d := SubmissionDetails{
		ID:        s.ID,
		UID:       s.UID,
		GID:       s.GID,
		Time:      toPOSIXSeconds(s.Time),
		ProblemID: s.ProblemID,
		Code:      s.Code,
		Language:  s.Language,
	}
	if jobs != nil {
		d.Jobs = make([]JobDetails, len(jobs))
		for i, j := range jobs {
			d.Jobs[i] = j.Details()
		}
	}
	return d
}
