package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akademia-dev/college-api/internal/models"
	"github.com/akademia-dev/college-api/internal/repository"
	appErrors "github.com/akademia-dev/college-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments map[int64]models.Enrollment
	nextID      int64
	createErr   error
	replaceErr  error
}

func newMockEnrollmentRepo() *mockEnrollmentRepo {
	return &mockEnrollmentRepo{enrollments: make(map[int64]models.Enrollment), nextID: 1}
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var result []models.EnrollmentDetail
	for _, e := range m.enrollments {
		if filter.StudentID != 0 && filter.StudentID != e.StudentID {
			continue
		}
		if filter.CourseID != 0 && filter.CourseID != e.CourseID {
			continue
		}
		result = append(result, models.EnrollmentDetail{Enrollment: e})
	}
	return result, len(result), nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id int64) (*models.Enrollment, error) {
	e, ok := m.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (m *mockEnrollmentRepo) FindDetailByID(ctx context.Context, id int64) (*models.EnrollmentDetail, error) {
	e, ok := m.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.EnrollmentDetail{Enrollment: e}, nil
}

func (m *mockEnrollmentRepo) FindByStudentAndCourse(ctx context.Context, studentID, courseID int64) (*models.Enrollment, error) {
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID {
			return &e, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) Exists(ctx context.Context, studentID, courseID, excludeID int64) (bool, error) {
	for _, e := range m.enrollments {
		if e.ID == excludeID {
			continue
		}
		if e.StudentID == studentID && e.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockEnrollmentRepo) CountByCourse(ctx context.Context, courseID int64) (int, error) {
	count := 0
	for _, e := range m.enrollments {
		if e.CourseID == courseID {
			count++
		}
	}
	return count, nil
}

func (m *mockEnrollmentRepo) ListStudentsByCourse(ctx context.Context, courseID int64) ([]models.Student, error) {
	var students []models.Student
	for _, e := range m.enrollments {
		if e.CourseID == courseID {
			students = append(students, models.Student{ID: e.StudentID})
		}
	}
	return students, nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.createErr != nil {
		return m.createErr
	}
	enrollment.ID = m.nextID
	m.nextID++
	m.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (m *mockEnrollmentRepo) Replace(ctx context.Context, enrollment *models.Enrollment) error {
	if m.replaceErr != nil {
		return m.replaceErr
	}
	if _, ok := m.enrollments[enrollment.ID]; !ok {
		return sql.ErrNoRows
	}
	m.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (m *mockEnrollmentRepo) SetGrade(ctx context.Context, id int64, grade string) error {
	e, ok := m.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.Grade = &grade
	m.enrollments[id] = e
	return nil
}

func (m *mockEnrollmentRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.enrollments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.enrollments, id)
	return nil
}

type mockStudentReader struct {
	students map[int64]models.Student
}

func (m *mockStudentReader) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	s, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

type mockCourseReader struct {
	courses map[int64]models.Course
}

func (m *mockCourseReader) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	c, ok := m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func newEnrollmentFixture() (*EnrollmentService, *mockEnrollmentRepo, *mockCourseReader) {
	repo := newMockEnrollmentRepo()
	students := &mockStudentReader{students: map[int64]models.Student{
		1: {ID: 1, Name: "Anna Kowalska", Email: "anna@example.com"},
		2: {ID: 2, Name: "Piotr Nowak", Email: "piotr@example.com"},
		3: {ID: 3, Name: "Ewa Mazur", Email: "ewa@example.com"},
	}}
	courses := &mockCourseReader{courses: map[int64]models.Course{
		10: {ID: 10, Title: "Algorithms", Capacity: 2, Active: true},
		11: {ID: 11, Title: "Databases", Capacity: 30, Active: false},
		12: {ID: 12, Title: "Networks", Capacity: 1, Active: true},
	}}
	svc := NewEnrollmentService(repo, students, courses, nil, nil, nil)
	return svc, repo, courses
}

func assertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, code, appErr.Code)
}

func TestEnrollSuccess(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture()
	ctx := context.Background()

	detail, err := svc.Enroll(ctx, EnrollStudentRequest{StudentID: 1, CourseID: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), detail.StudentID)
	assert.Equal(t, int64(10), detail.CourseID)
	assert.Nil(t, detail.Grade)
	assert.Len(t, repo.enrollments, 1)
}

func TestEnrollStudentNotFound(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: 99, CourseID: 10})
	assertErrorCode(t, err, appErrors.ErrStudentNotFound.Code)
}

func TestEnrollCourseNotFound(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: 1, CourseID: 99})
	assertErrorCode(t, err, appErrors.ErrCourseNotFound.Code)
}

func TestEnrollDuplicateRejected(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()
	ctx := context.Background()

	_, err := svc.Enroll(ctx, EnrollStudentRequest{StudentID: 1, CourseID: 10})
	require.NoError(t, err)

	_, err = svc.Enroll(ctx, EnrollStudentRequest{StudentID: 1, CourseID: 10})
	assertErrorCode(t, err, appErrors.ErrAlreadyEnrolled.Code)
}

func TestEnrollInactiveCourseRejected(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: 1, CourseID: 11})
	assertErrorCode(t, err, appErrors.ErrCourseNotActive.Code)
}

func TestEnrollCourseFull(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()
	ctx := context.Background()

	_, err := svc.Enroll(ctx, EnrollStudentRequest{StudentID: 1, CourseID: 10})
	require.NoError(t, err)
	_, err = svc.Enroll(ctx, EnrollStudentRequest{StudentID: 2, CourseID: 10})
	require.NoError(t, err)

	_, err = svc.Enroll(ctx, EnrollStudentRequest{StudentID: 3, CourseID: 10})
	assertErrorCode(t, err, appErrors.ErrCourseFull.Code)
}

func TestEnrollInactiveCheckedBeforeCapacity(t *testing.T) {
	svc, _, courses := newEnrollmentFixture()
	ctx := context.Background()

	// Full and inactive at the same time reports COURSE_NOT_ACTIVE.
	courses.courses[12] = models.Course{ID: 12, Title: "Networks", Capacity: 0, Active: false}

	_, err := svc.Enroll(ctx, EnrollStudentRequest{StudentID: 1, CourseID: 12})
	assertErrorCode(t, err, appErrors.ErrCourseNotActive.Code)
}

func TestEnrollTranslatesRepositorySentinels(t *testing.T) {
	tests := []struct {
		name     string
		repoErr  error
		wantCode string
	}{
		{"duplicate", repository.ErrDuplicateEnrollment, appErrors.ErrAlreadyEnrolled.Code},
		{"full", repository.ErrCourseSeatsExhausted, appErrors.ErrCourseFull.Code},
		{"closed", repository.ErrCourseClosed, appErrors.ErrCourseNotActive.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newEnrollmentFixture()
			repo.createErr = tt.repoErr

			_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: 1, CourseID: 10})
			assertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestEditSameCourseDoesNotTripChecks(t *testing.T) {
	svc, _, courses := newEnrollmentFixture()
	ctx := context.Background()

	detail, err := svc.Enroll(ctx, EnrollStudentRequest{StudentID: 1, CourseID: 12})
	require.NoError(t, err)

	// Course 12 has a single seat, taken by this very enrollment. An edit
	// that keeps the pair must not collide with itself on the duplicate or
	// seat checks, even after the course closes.
	courses.courses[12] = models.Course{ID: 12, Title: "Networks", Capacity: 1, Active: true}

	grade := "4.5"
	updated, err := svc.Edit(ctx, detail.ID, EditEnrollmentRequest{StudentID: 1, CourseID: 12, Grade: &grade})
	require.NoError(t, err)
	require.NotNil(t, updated.Grade)
	assert.Equal(t, "4.5", *updated.Grade)
}

func TestEditMoveToFullCourseRejected(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()
	ctx := context.Background()

	_, err := svc.Enroll(ctx, EnrollStudentRequest{StudentID: 2, CourseID: 12})
	require.NoError(t, err)
	detail, err := svc.Enroll(ctx, EnrollStudentRequest{StudentID: 1, CourseID: 10})
	require.NoError(t, err)

	_, err = svc.Edit(ctx, detail.ID, EditEnrollmentRequest{StudentID: 1, CourseID: 12})
	assertErrorCode(t, err, appErrors.ErrCourseFull.Code)
}

func TestUpdatePartialDefaultsExistingFields(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()
	ctx := context.Background()

	detail, err := svc.Enroll(ctx, EnrollStudentRequest{StudentID: 1, CourseID: 10})
	require.NoError(t, err)

	grade := "3.0"
	updated, err := svc.Update(ctx, detail.ID, models.EnrollmentUpdate{Grade: &grade})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.StudentID)
	assert.Equal(t, int64(10), updated.CourseID)
	require.NotNil(t, updated.Grade)
	assert.Equal(t, "3.0", *updated.Grade)
}

func TestGradeIgnoresCourseState(t *testing.T) {
	svc, _, courses := newEnrollmentFixture()
	ctx := context.Background()

	detail, err := svc.Enroll(ctx, EnrollStudentRequest{StudentID: 1, CourseID: 10})
	require.NoError(t, err)

	// Closing the course must not stop grading.
	courses.courses[10] = models.Course{ID: 10, Title: "Algorithms", Capacity: 2, Active: false}

	graded, err := svc.Grade(ctx, detail.ID, GradeEnrollmentRequest{Grade: "5.0"})
	require.NoError(t, err)
	require.NotNil(t, graded.Grade)
	assert.Equal(t, "5.0", *graded.Grade)
}

func TestGradeRejectsMalformedValues(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()
	ctx := context.Background()

	detail, err := svc.Enroll(ctx, EnrollStudentRequest{StudentID: 1, CourseID: 10})
	require.NoError(t, err)

	for _, grade := range []string{"6.0", "0.9", "4.55", "45", "abc", "4,5"} {
		_, err := svc.Grade(ctx, detail.ID, GradeEnrollmentRequest{Grade: grade})
		assertErrorCode(t, err, appErrors.ErrInvalidGrade.Code)
	}
}

func TestGradeNotFound(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Grade(context.Background(), 42, GradeEnrollmentRequest{Grade: "3.5"})
	assertErrorCode(t, err, appErrors.ErrEnrollmentNotFound.Code)
}

func TestDeleteEnrollment(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture()
	ctx := context.Background()

	detail, err := svc.Enroll(ctx, EnrollStudentRequest{StudentID: 1, CourseID: 10})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, detail.ID))
	assert.Empty(t, repo.enrollments)

	err = svc.Delete(ctx, detail.ID)
	assertErrorCode(t, err, appErrors.ErrEnrollmentNotFound.Code)
}

func TestFindByStudentAndCourse(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()
	ctx := context.Background()

	created, err := svc.Enroll(ctx, EnrollStudentRequest{StudentID: 1, CourseID: 10})
	require.NoError(t, err)

	enrollment, err := svc.FindByStudentAndCourse(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, created.ID, enrollment.ID)

	_, err = svc.FindByStudentAndCourse(ctx, 2, 10)
	assertErrorCode(t, err, appErrors.ErrEnrollmentNotFound.Code)
}

func TestStudentsByCourse(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()
	ctx := context.Background()

	_, err := svc.Enroll(ctx, EnrollStudentRequest{StudentID: 1, CourseID: 10})
	require.NoError(t, err)
	_, err = svc.Enroll(ctx, EnrollStudentRequest{StudentID: 2, CourseID: 10})
	require.NoError(t, err)

	students, err := svc.StudentsByCourse(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, students, 2)

	_, err = svc.StudentsByCourse(ctx, 99)
	assertErrorCode(t, err, appErrors.ErrCourseNotFound.Code)
}
