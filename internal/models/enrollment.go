package models

import "time"

// Enrollment captures a student's registration to a course. Grade stays nil
// until the course teacher records one; the (student, course) pair is unique.
type Enrollment struct {
	ID        int64     `db:"id" json:"id"`
	StudentID int64     `db:"student_id" json:"student_id"`
	CourseID  int64     `db:"course_id" json:"course_id"`
	Grade     *string   `db:"grade" json:"grade"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// EntityID implements hateoas.Identifiable.
func (e Enrollment) EntityID() int64 { return e.ID }

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	CourseTitle string `db:"course_title" json:"course_title"`
}

// EnrollmentUpdate carries a sparse field set for patch operations. Missing
// identifier fields default to the enrollment's current values before
// validation re-runs.
type EnrollmentUpdate struct {
	StudentID *int64  `json:"student_id,omitempty"`
	CourseID  *int64  `json:"course_id,omitempty"`
	Grade     *string `json:"grade,omitempty"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID int64
	CourseID  int64
	Graded    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
