package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/akademia-dev/college-api/internal/models"
	"github.com/akademia-dev/college-api/pkg/export"
	appErrors "github.com/akademia-dev/college-api/pkg/errors"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type reportEnrollmentReader interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	ListStudentsByCourse(ctx context.Context, courseID int64) ([]models.Student, error)
}

// Report holds a rendered document ready for download.
type Report struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ReportService renders course rosters and student transcripts.
type ReportService struct {
	enrollments reportEnrollmentReader
	students    studentReader
	courses     courseReader
	csv         csvRenderer
	pdf         pdfRenderer
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewReportService constructs a ReportService. Nil renderers fall back to
// the default exporters; metrics may be nil.
func NewReportService(enrollments reportEnrollmentReader, students studentReader, courses courseReader, csv csvRenderer, pdf pdfRenderer, metrics *MetricsService, logger *zap.Logger) *ReportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		enrollments: enrollments,
		students:    students,
		courses:     courses,
		csv:         csv,
		pdf:         pdf,
		metrics:     metrics,
		logger:      logger,
	}
}

// CourseRoster renders the enrolled students of a course as CSV.
func (s *ReportService) CourseRoster(ctx context.Context, courseID int64) (*Report, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCourseNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to load course")
	}
	start := time.Now()
	students, err := s.enrollments.ListStudentsByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to list course students")
	}
	s.metrics.ObserveDBQuery("report_course_roster", time.Since(start))

	dataset := export.Dataset{Headers: []string{"ID", "Name", "Email"}}
	for _, student := range students {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"ID":    fmt.Sprintf("%d", student.ID),
			"Name":  student.Name,
			"Email": student.Email,
		})
	}

	payload, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}
	s.logger.Info("course roster rendered", zap.Int64("course_id", courseID), zap.Int("students", len(students)))
	return &Report{
		Filename:    fmt.Sprintf("course_%d_roster.csv", course.ID),
		ContentType: "text/csv",
		Payload:     payload,
	}, nil
}

// StudentTranscript renders a student's enrollments and grades as PDF.
func (s *ReportService) StudentTranscript(ctx context.Context, studentID int64) (*Report, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrStudentNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to load student")
	}
	start := time.Now()
	filter := models.EnrollmentFilter{StudentID: studentID, Page: 1, PageSize: 100}
	var enrollments []models.EnrollmentDetail
	for {
		page, total, err := s.enrollments.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to list enrollments")
		}
		enrollments = append(enrollments, page...)
		if len(page) == 0 || len(enrollments) >= total {
			break
		}
		filter.Page++
	}
	s.metrics.ObserveDBQuery("report_student_transcript", time.Since(start))

	dataset := export.Dataset{Headers: []string{"Course", "Grade"}}
	for _, enrollment := range enrollments {
		grade := "-"
		if enrollment.Grade != nil {
			grade = *enrollment.Grade
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Course": enrollment.CourseTitle,
			"Grade":  grade,
		})
	}

	title := fmt.Sprintf("Transcript: %s", student.Name)
	payload, err := s.pdf.Render(dataset, title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render transcript")
	}
	s.logger.Info("transcript rendered", zap.Int64("student_id", studentID), zap.Int("enrollments", len(enrollments)))
	return &Report{
		Filename:    fmt.Sprintf("student_%d_transcript.pdf", student.ID),
		ContentType: "application/pdf",
		Payload:     payload,
	}, nil
}
