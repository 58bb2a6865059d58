package models

import "time"

// RubricSize is the fixed number of evaluation dimensions.
const RubricSize = 6

// Rubric holds the six committee scores, each expected in [1,5].
type Rubric [RubricSize]int

// Sum adds all rubric scores.
func (r Rubric) Sum() int {
	total := 0
	for _, score := range r {
		total += score
	}
	return total
}

// Letter is a final letter grade.
type Letter string

const (
	LetterA Letter = "A"
	LetterB Letter = "B"
	LetterC Letter = "C"
	LetterD Letter = "D"
	LetterF Letter = "F"
)

// GradeReason records which path produced a grade.
type GradeReason string

const (
	GradeReasonRubric         GradeReason = "RUBRIC"
	GradeReasonMissedDeadline GradeReason = "MISSED_DEADLINE"
)

// Grade is a student's grade. The latest version is "the" grade; earlier
// versions are kept as audit records with the same shape.
type Grade struct {
	RecordID  string      `json:"record_id"`
	StudentID int64       `json:"student_id"`
	Rubric    *Rubric     `json:"rubric,omitempty"`
	Average   *float64    `json:"average,omitempty"`
	Letter    Letter      `json:"letter"`
	Reason    GradeReason `json:"reason"`
	GradedBy  int64       `json:"graded_by"`
	GradedAt  time.Time   `json:"graded_at"`
	Version   int         `json:"version"`
}

// Failing reports whether the grade is an F.
func (g *Grade) Failing() bool {
	return g != nil && g.Letter == LetterF
}
