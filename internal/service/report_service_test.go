package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akademia-dev/college-api/internal/models"
	"github.com/akademia-dev/college-api/pkg/export"
)

type mockReportEnrollments struct {
	details  []models.EnrollmentDetail
	students map[int64][]models.Student
}

func (m *mockReportEnrollments) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var out []models.EnrollmentDetail
	for _, d := range m.details {
		if filter.StudentID != 0 && d.StudentID != filter.StudentID {
			continue
		}
		out = append(out, d)
	}
	total := len(out)
	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		offset := (page - 1) * filter.PageSize
		if offset > total {
			offset = total
		}
		end := offset + filter.PageSize
		if end > total {
			end = total
		}
		out = out[offset:end]
	}
	return out, total, nil
}

func (m *mockReportEnrollments) ListStudentsByCourse(ctx context.Context, courseID int64) ([]models.Student, error) {
	return m.students[courseID], nil
}

type capturingPDF struct {
	title   string
	dataset export.Dataset
}

func (c *capturingPDF) Render(data export.Dataset, title string) ([]byte, error) {
	c.title = title
	c.dataset = data
	return []byte("%PDF-1.4 stub"), nil
}

func newReportFixture() (*ReportService, *mockReportEnrollments, *capturingPDF) {
	grade := "4.5"
	enrollments := &mockReportEnrollments{
		details: []models.EnrollmentDetail{
			{Enrollment: models.Enrollment{ID: 1, StudentID: 1, CourseID: 10, Grade: &grade}, StudentName: "Anna Kowalska", CourseTitle: "Algorithms"},
			{Enrollment: models.Enrollment{ID: 2, StudentID: 1, CourseID: 11}, StudentName: "Anna Kowalska", CourseTitle: "Databases"},
		},
		students: map[int64][]models.Student{
			10: {
				{ID: 1, Name: "Anna Kowalska", Email: "anna@example.edu"},
				{ID: 2, Name: "Piotr Zielinski", Email: "piotr@example.edu"},
			},
		},
	}
	students := &mockStudentReader{students: map[int64]models.Student{
		1: {ID: 1, Name: "Anna Kowalska", Email: "anna@example.edu"},
	}}
	courses := &mockCourseReader{courses: map[int64]models.Course{
		10: {ID: 10, Title: "Algorithms", Capacity: 30, Active: true},
	}}
	pdf := &capturingPDF{}
	svc := NewReportService(enrollments, students, courses, nil, pdf, nil, nil)
	return svc, enrollments, pdf
}

func TestCourseRosterRendersCSV(t *testing.T) {
	svc, _, _ := newReportFixture()

	report, err := svc.CourseRoster(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "course_10_roster.csv", report.Filename)
	assert.Equal(t, "text/csv", report.ContentType)

	body := string(report.Payload)
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Name")
	assert.Contains(t, body, "anna@example.edu")
	assert.Contains(t, body, "Piotr Zielinski")
}

func TestCourseRosterUnknownCourse(t *testing.T) {
	svc, _, _ := newReportFixture()

	_, err := svc.CourseRoster(context.Background(), 99)
	assertErrorCode(t, err, "COURSE_NOT_FOUND")
}

func TestCourseRosterEmptyCourseStillRenders(t *testing.T) {
	svc, enrollments, _ := newReportFixture()
	enrollments.students[10] = nil

	report, err := svc.CourseRoster(context.Background(), 10)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(report.Payload)), "\n")
	assert.Len(t, lines, 1)
}

func TestStudentTranscriptRendersPDF(t *testing.T) {
	svc, _, pdf := newReportFixture()

	report, err := svc.StudentTranscript(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "student_1_transcript.pdf", report.Filename)
	assert.Equal(t, "application/pdf", report.ContentType)
	assert.Equal(t, "Transcript: Anna Kowalska", pdf.title)

	require.Len(t, pdf.dataset.Rows, 2)
	assert.Equal(t, "4.5", pdf.dataset.Rows[0]["Grade"])
	assert.Equal(t, "-", pdf.dataset.Rows[1]["Grade"])
	assert.Equal(t, "Databases", pdf.dataset.Rows[1]["Course"])
}

func TestStudentTranscriptSpansPages(t *testing.T) {
	svc, enrollments, pdf := newReportFixture()
	enrollments.details = nil
	for i := 0; i < 150; i++ {
		enrollments.details = append(enrollments.details, models.EnrollmentDetail{
			Enrollment:  models.Enrollment{ID: int64(i + 1), StudentID: 1, CourseID: int64(100 + i)},
			StudentName: "Anna Kowalska",
			CourseTitle: fmt.Sprintf("Course %d", i+1),
		})
	}

	_, err := svc.StudentTranscript(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, pdf.dataset.Rows, 150)
	assert.Equal(t, "Course 1", pdf.dataset.Rows[0]["Course"])
	assert.Equal(t, "Course 150", pdf.dataset.Rows[149]["Course"])
}

func TestStudentTranscriptUnknownStudent(t *testing.T) {
	svc, _, _ := newReportFixture()

	_, err := svc.StudentTranscript(context.Background(), 42)
	assertErrorCode(t, err, "STUDENT_NOT_FOUND")
}
