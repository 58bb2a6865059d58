package models

import (
	"fmt"
	"strings"
	"time"
)

// DocumentType is one of the fixed milestone documents.
type DocumentType string

const (
	DocumentProposal       DocumentType = "PROPOSAL"
	DocumentDesignDocument DocumentType = "DESIGN_DOCUMENT"
	DocumentTestDocument   DocumentType = "TEST_DOCUMENT"
	DocumentThesis         DocumentType = "THESIS"
)

// DocumentTypes lists the milestones in submission order.
var DocumentTypes = []DocumentType{
	DocumentProposal,
	DocumentDesignDocument,
	DocumentTestDocument,
	DocumentThesis,
}

// Valid reports whether d is a member of the closed enumeration.
func (d DocumentType) Valid() bool {
	for _, t := range DocumentTypes {
		if d == t {
			return true
		}
	}
	return false
}

// Label is the human readable name used in notifications and exports.
func (d DocumentType) Label() string {
	switch d {
	case DocumentProposal:
		return "Proposal"
	case DocumentDesignDocument:
		return "Design Document"
	case DocumentTestDocument:
		return "Test Document"
	case DocumentThesis:
		return "Thesis"
	}
	return string(d)
}

// ParseDocumentType accepts PROPOSAL, proposal, design-document and similar spellings.
func ParseDocumentType(raw string) (DocumentType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	d := DocumentType(normalized)
	if !d.Valid() {
		return "", fmt.Errorf("unknown document type %q", raw)
	}
	return d, nil
}

// ApprovalStatus is the lifecycle state of a slot.
type ApprovalStatus string

const (
	// StatusNoSubmission is never stored; it describes an empty slot.
	StatusNoSubmission      ApprovalStatus = "NO_SUBMISSION"
	StatusPendingApproval   ApprovalStatus = "PENDING_APPROVAL"
	StatusApproved          ApprovalStatus = "APPROVED"
	StatusRevisionRequested ApprovalStatus = "REVISION_REQUESTED"
)

// AcceptsSubmission reports whether a student may upload into a slot in this state.
func (s ApprovalStatus) AcceptsSubmission() bool {
	return s == StatusNoSubmission || s == StatusRevisionRequested
}

// Submission is one upload attempt for a (student, document type) slot.
type Submission struct {
	ID             string         `db:"id" json:"id"`
	StudentID      int64          `db:"student_id" json:"student_id"`
	DocumentType   DocumentType   `db:"document_type" json:"document_type"`
	FileID         string         `db:"file_id" json:"file_id"`
	SubmittedAt    time.Time      `db:"submitted_at" json:"submitted_at"`
	ApprovalStatus ApprovalStatus `db:"approval_status" json:"approval_status"`
	IsCurrent      bool           `db:"is_current" json:"is_current"`
	ReviewedBy     *int64         `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time     `db:"reviewed_at" json:"reviewed_at,omitempty"`
	Note           *string        `db:"note" json:"note,omitempty"`
}

// Slot summarises the current state of one (student, document type) pair.
type Slot struct {
	StudentID    int64          `json:"student_id"`
	DocumentType DocumentType   `json:"document_type"`
	Status       ApprovalStatus `json:"status"`
	Current      *Submission    `json:"current,omitempty"`
}

// Deadline is the due date for a document type, global when Cohort is nil.
type Deadline struct {
	ID           string       `db:"id" json:"id"`
	DocumentType DocumentType `db:"document_type" json:"document_type"`
	Cohort       *string      `db:"cohort" json:"cohort,omitempty"`
	DueDate      time.Time    `db:"due_date" json:"due_date"`
	Active       bool         `db:"active" json:"active"`
	CreatedBy    int64        `db:"created_by" json:"created_by"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	SupersededAt *time.Time   `db:"superseded_at" json:"superseded_at,omitempty"`
}

// OverdueSlot is a slot whose deadline elapsed without an approved submission.
type OverdueSlot struct {
	StudentID    int64        `db:"student_id" json:"student_id"`
	DocumentType DocumentType `db:"document_type" json:"document_type"`
	DueDate      time.Time    `db:"due_date" json:"due_date"`
}
