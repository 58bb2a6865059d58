package dto

// GradeRequest carries the six rubric scores from a committee member.
type GradeRequest struct {
	Rubric []int `json:"rubric"`
}

// ExportQuery selects the grade sheet rendering.
type ExportQuery struct {
	Format string `form:"format"`
	Cohort string `form:"cohort"`
}
