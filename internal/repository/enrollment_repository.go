package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/akademia-dev/college-api/internal/models"
)

// Sentinel errors surfaced by the enrollment write transactions. The service
// layer maps them onto the domain error taxonomy.
var (
	// ErrDuplicateEnrollment reports a unique-constraint trip on
	// (student_id, course_id).
	ErrDuplicateEnrollment = errors.New("enrollment already exists for student and course")
	// ErrCourseSeatsExhausted reports that the locked seat count reached
	// the course capacity.
	ErrCourseSeatsExhausted = errors.New("course capacity reached")
	// ErrCourseClosed reports that the locked course row is inactive.
	ErrCourseClosed = errors.New("course is not active")
)

const uniqueViolation = "23505"

// EnrollmentRepository handles persistence of enrollments. All writes that
// consume a seat run inside a transaction that locks the course row, so the
// capacity and uniqueness invariants hold under concurrent requests.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN students s ON s.id = e.student_id
LEFT JOIN courses c ON c.id = e.course_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != 0 {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != 0 {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Graded != nil {
		if *filter.Graded {
			conditions = append(conditions, "e.grade IS NOT NULL")
		} else {
			conditions = append(conditions, "e.grade IS NULL")
		}
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":   "e.created_at",
		"student_name": "s.name",
		"course_title": "c.title",
		"grade":        "e.grade",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "e.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.course_id, e.grade, e.created_at, e.updated_at,
        s.name AS student_name, c.title AS course_title
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id int64) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, course_id, grade, created_at, updated_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with contextual info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id int64) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.course_id, e.grade, e.created_at, e.updated_at,
        s.name AS student_name, c.title AS course_title
        FROM enrollments e
        LEFT JOIN students s ON s.id = e.student_id
        LEFT JOIN courses c ON c.id = e.course_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByStudentAndCourse returns the enrollment for the pair, if any.
func (r *EnrollmentRepository) FindByStudentAndCourse(ctx context.Context, studentID, courseID int64) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, course_id, grade, created_at, updated_at FROM enrollments WHERE student_id = $1 AND course_id = $2`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, courseID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Exists checks whether an enrollment exists for the pair, optionally
// excluding one enrollment id from the match.
func (r *EnrollmentRepository) Exists(ctx context.Context, studentID, courseID, excludeID int64) (bool, error) {
	query := "SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2"
	args := []interface{}{studentID, courseID}
	if excludeID != 0 {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, excludeID)
	}
	query += " LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment exists: %w", err)
	}
	return true, nil
}

// CountByCourse returns the number of enrollments held by a course.
func (r *EnrollmentRepository) CountByCourse(ctx context.Context, courseID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, courseID); err != nil {
		return 0, fmt.Errorf("count course enrollments: %w", err)
	}
	return count, nil
}

// ListStudentsByCourse projects a course's enrollments onto their students.
func (r *EnrollmentRepository) ListStudentsByCourse(ctx context.Context, courseID int64) ([]models.Student, error) {
	const query = `SELECT s.id, s.name, s.email, s.user_id, s.created_at, s.updated_at
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        WHERE e.course_id = $1
        ORDER BY s.name ASC`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, courseID); err != nil {
		return nil, fmt.Errorf("list course students: %w", err)
	}
	return students, nil
}

type courseSeats struct {
	Capacity int  `db:"capacity"`
	Active   bool `db:"active"`
}

// Create persists a new enrollment. The course row is locked for the duration
// of the transaction and the seat count re-checked under the lock, so two
// concurrent creates near the capacity limit cannot both commit.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment create: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	seats, err := lockCourse(ctx, tx, enrollment.CourseID)
	if err != nil {
		return err
	}
	if !seats.Active {
		return ErrCourseClosed
	}

	var taken int
	if err := tx.GetContext(ctx, &taken, `SELECT COUNT(*) FROM enrollments WHERE course_id = $1`, enrollment.CourseID); err != nil {
		return fmt.Errorf("count seats: %w", err)
	}
	if taken >= seats.Capacity {
		return ErrCourseSeatsExhausted
	}

	now := time.Now().UTC()
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	const insert = `INSERT INTO enrollments (student_id, course_id, grade, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := tx.GetContext(ctx, &enrollment.ID, insert, enrollment.StudentID, enrollment.CourseID, enrollment.Grade, enrollment.CreatedAt, enrollment.UpdatedAt); err != nil {
		return translateEnrollmentError(err, "create enrollment")
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment create: %w", err)
	}
	return nil
}

// Replace rewrites student, course and grade on an existing enrollment under
// the same course lock and seat re-check as Create. The enrollment's own row
// is excluded from the seat count so a no-op edit cannot fail on capacity.
func (r *EnrollmentRepository) Replace(ctx context.Context, enrollment *models.Enrollment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment replace: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	seats, err := lockCourse(ctx, tx, enrollment.CourseID)
	if err != nil {
		return err
	}
	if !seats.Active {
		return ErrCourseClosed
	}

	var taken int
	if err := tx.GetContext(ctx, &taken, `SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND id <> $2`, enrollment.CourseID, enrollment.ID); err != nil {
		return fmt.Errorf("count seats: %w", err)
	}
	if taken >= seats.Capacity {
		return ErrCourseSeatsExhausted
	}

	enrollment.UpdatedAt = time.Now().UTC()
	const update = `UPDATE enrollments SET student_id = $2, course_id = $3, grade = $4, updated_at = $5 WHERE id = $1`
	result, err := tx.ExecContext(ctx, update, enrollment.ID, enrollment.StudentID, enrollment.CourseID, enrollment.Grade, enrollment.UpdatedAt)
	if err != nil {
		return translateEnrollmentError(err, "replace enrollment")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("replace enrollment: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment replace: %w", err)
	}
	return nil
}

// SetGrade updates only the grade field.
func (r *EnrollmentRepository) SetGrade(ctx context.Context, id int64, grade string) error {
	const query = `UPDATE enrollments SET grade = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, grade, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("grade enrollment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("grade enrollment: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an enrollment row.
func (r *EnrollmentRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func lockCourse(ctx context.Context, tx *sqlx.Tx, courseID int64) (*courseSeats, error) {
	var seats courseSeats
	if err := tx.GetContext(ctx, &seats, `SELECT capacity, active FROM courses WHERE id = $1 FOR UPDATE`, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("lock course: %w", err)
	}
	return &seats, nil
}

func translateEnrollmentError(err error, op string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicateEnrollment
	}
	return fmt.Errorf("%s: %w", op, err)
}
