package models

import "time"

// Teacher represents an instructor record.
type Teacher struct {
	ID             int64     `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email"`
	Specialization string    `db:"specialization" json:"specialization"`
	UserID         *int64    `db:"user_id" json:"user_id,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// EntityID implements hateoas.Identifiable.
func (t Teacher) EntityID() int64 { return t.ID }

// TeacherUpdate carries a sparse field set for patch operations.
type TeacherUpdate struct {
	Name           *string `json:"name,omitempty"`
	Email          *string `json:"email,omitempty" validate:"omitempty,email"`
	Specialization *string `json:"specialization,omitempty"`
}

// TeacherFilter captures filtering options for listing teachers.
type TeacherFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
