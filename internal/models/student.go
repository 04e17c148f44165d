package models

import "time"

// Student represents a learner registered in the institution. The optional
// UserID links the student to a login account; deleting the student detaches
// the account but never removes it.
type Student struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	UserID    *int64    `db:"user_id" json:"user_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// EntityID implements hateoas.Identifiable.
func (s Student) EntityID() int64 { return s.ID }

// StudentUpdate carries a sparse field set for patch operations.
type StudentUpdate struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty" validate:"omitempty,email"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	CourseID  int64
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
