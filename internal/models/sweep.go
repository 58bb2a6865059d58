package models

import "time"

// SweepResult summarises one execution of the missed-deadline sweep.
type SweepResult struct {
	AffectedCount   int       `json:"affected_count"`
	OverduePairs    int       `json:"overdue_pairs"`
	SkippedStudents int       `json:"skipped_students"`
	FailedStudents  int       `json:"failed_students"`
	Interrupted     bool      `json:"interrupted"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}
