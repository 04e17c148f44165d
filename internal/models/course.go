package models

import "time"

// Course represents a teachable course with a seat limit. Active gates new
// enrollments only; flipping it never touches existing ones.
type Course struct {
	ID          int64     `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	TeacherID   int64     `db:"teacher_id" json:"teacher_id"`
	Capacity    int       `db:"capacity" json:"capacity"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// EntityID implements hateoas.Identifiable.
func (c Course) EntityID() int64 { return c.ID }

// CourseDetail enriches Course with teacher and occupancy info.
type CourseDetail struct {
	Course
	TeacherName   string `db:"teacher_name" json:"teacher_name"`
	EnrolledCount int    `db:"enrolled_count" json:"enrolled_count"`
}

// CourseUpdate carries a sparse field set for patch operations. Nil fields
// are left untouched.
type CourseUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	TeacherID   *int64  `json:"teacher_id,omitempty"`
	Capacity    *int    `json:"capacity,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

// CourseFilter captures filtering options for listing courses.
type CourseFilter struct {
	TeacherID int64
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
