package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akademia-dev/college-api/internal/models"
)

type mockStudentRepo struct {
	students map[int64]*models.Student
	enrolled map[int64]bool
	nextID   int64
}

func newMockStudentRepo() *mockStudentRepo {
	return &mockStudentRepo{
		students: map[int64]*models.Student{},
		enrolled: map[int64]bool{},
		nextID:   1,
	}
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var out []models.Student
	for _, s := range m.students {
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	s, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (m *mockStudentRepo) ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	for _, s := range m.students {
		if s.Email == email && s.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	student.ID = m.nextID
	m.nextID++
	cp := *student
	m.students[student.ID] = &cp
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	if _, ok := m.students[student.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *student
	m.students[student.ID] = &cp
	return nil
}

func (m *mockStudentRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.students[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.students, id)
	return nil
}

func (m *mockStudentRepo) HasEnrollments(ctx context.Context, id int64) (bool, error) {
	return m.enrolled[id], nil
}

func newStudentFixture() (*StudentService, *mockStudentRepo) {
	repo := newMockStudentRepo()
	repo.students[1] = &models.Student{ID: 1, Name: "Anna Kowalska", Email: "anna@example.edu"}
	repo.students[2] = &models.Student{ID: 2, Name: "Piotr Zielinski", Email: "piotr@example.edu"}
	repo.nextID = 3
	return NewStudentService(repo, nil, nil), repo
}

func TestStudentCreate(t *testing.T) {
	svc, repo := newStudentFixture()

	student, err := svc.Create(context.Background(), CreateStudentRequest{Name: "Maria Nowak", Email: "maria@example.edu"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), student.ID)
	assert.Contains(t, repo.students, int64(3))
}

func TestStudentCreateDuplicateEmail(t *testing.T) {
	svc, _ := newStudentFixture()

	_, err := svc.Create(context.Background(), CreateStudentRequest{Name: "Anna Clone", Email: "anna@example.edu"})
	assertErrorCode(t, err, "CONFLICT")
}

func TestStudentCreateInvalidPayload(t *testing.T) {
	svc, _ := newStudentFixture()

	_, err := svc.Create(context.Background(), CreateStudentRequest{Name: "X", Email: "not-an-email"})
	assertErrorCode(t, err, "VALIDATION_ERROR")
}

func TestStudentUpdateKeepsUntouchedFields(t *testing.T) {
	svc, _ := newStudentFixture()

	name := "Anna Wisniewska"
	student, err := svc.Update(context.Background(), 1, models.StudentUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Anna Wisniewska", student.Name)
	assert.Equal(t, "anna@example.edu", student.Email)
}

func TestStudentUpdateOwnEmailAllowed(t *testing.T) {
	svc, _ := newStudentFixture()

	email := "anna@example.edu"
	_, err := svc.Update(context.Background(), 1, models.StudentUpdate{Email: &email})
	require.NoError(t, err)
}

func TestStudentUpdateEmailTakenByOther(t *testing.T) {
	svc, _ := newStudentFixture()

	email := "piotr@example.edu"
	_, err := svc.Update(context.Background(), 1, models.StudentUpdate{Email: &email})
	assertErrorCode(t, err, "CONFLICT")
}

func TestStudentFindUnknown(t *testing.T) {
	svc, _ := newStudentFixture()

	_, err := svc.Find(context.Background(), 99)
	assertErrorCode(t, err, "STUDENT_NOT_FOUND")
}

func TestStudentDeleteWithEnrollmentsRejected(t *testing.T) {
	svc, repo := newStudentFixture()
	repo.enrolled[1] = true

	err := svc.Delete(context.Background(), 1)
	assertErrorCode(t, err, "CONFLICT")
	assert.Contains(t, repo.students, int64(1))
}

func TestStudentDelete(t *testing.T) {
	svc, repo := newStudentFixture()

	require.NoError(t, svc.Delete(context.Background(), 2))
	assert.NotContains(t, repo.students, int64(2))
}
