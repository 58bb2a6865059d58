package dto

import "github.com/noah-isme/thesis-progress-api/internal/models"

// SubmitRequest uploads a reference to an already stored file into a slot.
type SubmitRequest struct {
	FileID string `json:"file_id" binding:"required"`
}

// ReviewRequest carries an optional reviewer note for approve / request-revision.
type ReviewRequest struct {
	Note string `json:"note" binding:"max=2000"`
}

// SlotListResponse lists all four slots of a student.
type SlotListResponse struct {
	StudentID int64         `json:"student_id"`
	Slots     []models.Slot `json:"slots"`
}
