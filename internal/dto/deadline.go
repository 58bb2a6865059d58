package dto

import "time"

// SetDeadlineRequest sets the active deadline for a document type.
// An empty cohort sets the global deadline.
type SetDeadlineRequest struct {
	Cohort  string    `json:"cohort" validate:"max=64"`
	DueDate time.Time `json:"due_date" validate:"required"`
}
