package models

// Student is the roster projection the engine reads; identity lives elsewhere.
type Student struct {
	ID     int64   `db:"id" json:"id"`
	Cohort *string `db:"cohort" json:"cohort,omitempty"`
}

// StudentProgress is one row of the committee progress board.
type StudentProgress struct {
	StudentID int64   `json:"student_id"`
	Cohort    *string `json:"cohort,omitempty"`
	Slots     []Slot  `json:"slots"`
	Grade     *Grade  `json:"grade,omitempty"`
}
