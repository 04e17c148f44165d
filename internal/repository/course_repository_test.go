package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akademia-dev/college-api/internal/models"
)

func newCourseRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCourseRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "title", "description", "teacher_id", "capacity", "active", "created_at", "updated_at"}).
		AddRow(10, "Algorithms", "Intro course", 3, 30, true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, title, description, teacher_id, capacity, active, created_at, updated_at FROM courses WHERE id = $1`)).
		WithArgs(int64(10)).
		WillReturnRows(rows)

	course, err := repo.FindByID(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "Algorithms", course.Title)
	assert.Equal(t, 30, course.Capacity)
	assert.True(t, course.Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(`SELECT id, title`).
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), 404)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryCreateReturnsID(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO courses (title, description, teacher_id, capacity, active, created_at, updated_at)`)).
		WithArgs("Databases", "Relational systems", int64(3), 25, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

	course := &models.Course{Title: "Databases", Description: "Relational systems", TeacherID: 3, Capacity: 25, Active: true}
	require.NoError(t, repo.Create(context.Background(), course))
	assert.Equal(t, int64(11), course.ID)
	assert.False(t, course.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryUpdateCapacity(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE courses SET capacity = $2, updated_at = $3 WHERE id = $1`)).
		WithArgs(int64(10), 45, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateCapacity(context.Background(), 10, 45))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryUpdateActive(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE courses SET active = $2, updated_at = $3 WHERE id = $1`)).
		WithArgs(int64(10), false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateActive(context.Background(), 10, false))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryHasEnrollments(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM enrollments WHERE course_id = $1)`)).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	has, err := repo.HasEnrollments(context.Background(), 10)
	require.NoError(t, err)
	assert.True(t, has)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryListFiltersByActive(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "title", "description", "teacher_id", "capacity", "active", "created_at", "updated_at", "teacher_name", "enrolled_count"}).
		AddRow(10, "Algorithms", "", 3, 30, true, now, now, "Jan Nowak", 12)
	mock.ExpectQuery(`SELECT c\.id, c\.title`).
		WithArgs(true).
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(DISTINCT c\.id\)`).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	active := true
	courses, total, err := repo.List(context.Background(), models.CourseFilter{Active: &active})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, courses, 1)
	assert.Equal(t, "Jan Nowak", courses[0].TeacherName)
	assert.Equal(t, 12, courses[0].EnrolledCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryFindDetailByID(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "title", "description", "teacher_id", "capacity", "active", "created_at", "updated_at", "teacher_name", "enrolled_count"}).
		AddRow(10, "Algorithms", "", 3, 30, true, now, now, "Jan Nowak", 29)
	mock.ExpectQuery(`SELECT c\.id, c\.title`).
		WithArgs(int64(10)).
		WillReturnRows(rows)

	detail, err := repo.FindDetailByID(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 29, detail.EnrolledCount)
	require.NoError(t, mock.ExpectationsWereMet())
}
