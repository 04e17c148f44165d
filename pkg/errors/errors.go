package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid username or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrForbidden          = New("ACCESS_DENIED", http.StatusForbidden, "access denied")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrDatabase           = New("DATABASE_ERROR", http.StatusInternalServerError, "database failure")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Enrollment and course domain errors, carrying the stable machine code and
// status hint consumed by the controller layer.
var (
	ErrStudentNotFound       = New("STUDENT_NOT_FOUND", http.StatusNotFound, "student not found")
	ErrTeacherNotFound       = New("TEACHER_NOT_FOUND", http.StatusNotFound, "teacher not found")
	ErrCourseNotFound        = New("COURSE_NOT_FOUND", http.StatusNotFound, "course not found")
	ErrEnrollmentNotFound    = New("ENROLLMENT_NOT_FOUND", http.StatusNotFound, "enrollment not found")
	ErrUserNotFound          = New("USER_NOT_FOUND", http.StatusNotFound, "user not found")
	ErrAlreadyEnrolled       = New("ALREADY_ENROLLED", http.StatusConflict, "student already enrolled in course")
	ErrCourseNotActive       = New("COURSE_NOT_ACTIVE", http.StatusConflict, "course is not accepting enrollments")
	ErrCourseFull            = New("COURSE_FULL", http.StatusConflict, "course capacity reached")
	ErrInvalidCourseCapacity = New("INVALID_COURSE_CAPACITY", http.StatusBadRequest, "course capacity must be a positive integer")
	ErrInvalidGrade          = New("INVALID_GRADE", http.StatusBadRequest, "grade must be a decimal between 1.0 and 5.0 with one fractional digit")
	ErrRouteResolution       = New("ROUTE_RESOLUTION", http.StatusInternalServerError, "link route could not be resolved")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
