package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/akademia-dev/college-api/internal/models"
	"github.com/akademia-dev/college-api/internal/repository"
	appErrors "github.com/akademia-dev/college-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id int64) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id int64) (*models.EnrollmentDetail, error)
	FindByStudentAndCourse(ctx context.Context, studentID, courseID int64) (*models.Enrollment, error)
	Exists(ctx context.Context, studentID, courseID, excludeID int64) (bool, error)
	CountByCourse(ctx context.Context, courseID int64) (int, error)
	ListStudentsByCourse(ctx context.Context, courseID int64) ([]models.Student, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Replace(ctx context.Context, enrollment *models.Enrollment) error
	SetGrade(ctx context.Context, id int64, grade string) error
	Delete(ctx context.Context, id int64) error
}

type studentReader interface {
	FindByID(ctx context.Context, id int64) (*models.Student, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id int64) (*models.Course, error)
}

// EnrollStudentRequest describes enrollment creation payload.
type EnrollStudentRequest struct {
	StudentID int64 `json:"student_id" validate:"required"`
	CourseID  int64 `json:"course_id" validate:"required"`
}

// EditEnrollmentRequest replaces student, course and optionally grade.
type EditEnrollmentRequest struct {
	StudentID int64   `json:"student_id" validate:"required"`
	CourseID  int64   `json:"course_id" validate:"required"`
	Grade     *string `json:"grade"`
}

// GradeEnrollmentRequest records a grade for an enrollment.
type GradeEnrollmentRequest struct {
	Grade string `json:"grade" validate:"required"`
}

// Grades carry exactly one integer and one fractional digit.
var gradePattern = regexp.MustCompile(`^\d\.\d$`)

// EnrollmentService enforces the invariants around creating, editing,
// grading and removing enrollments.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  studentReader
	courses   courseReader
	cache     cacheStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService. cache may be nil;
// when set, cached course details are dropped whenever a write changes a
// course's occupancy.
func NewEnrollmentService(repo enrollmentRepository, students studentReader, courses courseReader, cache cacheStore, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, students: students, courses: courses, cache: cache, validator: validate, logger: logger}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return enrollments, pagination, nil
}

// Find returns one enrollment with contextual info.
func (s *EnrollmentService) Find(ctx context.Context, id int64) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrEnrollmentNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to load enrollment")
	}
	return detail, nil
}

// FindByStudentAndCourse returns the enrollment for the pair.
func (s *EnrollmentService) FindByStudentAndCourse(ctx context.Context, studentID, courseID int64) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByStudentAndCourse(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrEnrollmentNotFound, "no enrollment for student and course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// StudentsByCourse projects a course's enrollments onto their students.
func (s *EnrollmentService) StudentsByCourse(ctx context.Context, courseID int64) ([]models.Student, error) {
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCourseNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to load course")
	}
	students, err := s.repo.ListStudentsByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to list course students")
	}
	return students, nil
}

// Enroll registers a student to a course. Preconditions run in a fixed
// order: student exists, course exists, pair not yet enrolled, course
// active, seats free. The storage transaction re-checks the last three
// under a course lock, so concurrent calls cannot oversubscribe.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollStudentRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if err := s.checkEnrollable(ctx, req.StudentID, req.CourseID, 0); err != nil {
		return nil, err
	}

	enrollment := &models.Enrollment{StudentID: req.StudentID, CourseID: req.CourseID}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, s.translateWriteError(err)
	}
	s.logger.Info("enrollment created",
		zap.Int64("enrollment_id", enrollment.ID),
		zap.Int64("student_id", req.StudentID),
		zap.Int64("course_id", req.CourseID))
	s.invalidateCourse(ctx, req.CourseID)

	return s.detail(ctx, enrollment.ID)
}

// Edit replaces student, course and grade on an existing enrollment,
// re-running the creation checks. The enrollment's own row is excluded from
// the duplicate and seat checks so editing a currently-valid enrollment in
// place cannot spuriously fail.
func (s *EnrollmentService) Edit(ctx context.Context, id int64, req EditEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	enrollment, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.applyEdit(ctx, enrollment, req.StudentID, req.CourseID, req.Grade)
}

// Update applies a sparse field set, defaulting missing identifiers to the
// enrollment's current values before validation re-runs.
func (s *EnrollmentService) Update(ctx context.Context, id int64, patch models.EnrollmentUpdate) (*models.EnrollmentDetail, error) {
	enrollment, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	studentID := enrollment.StudentID
	if patch.StudentID != nil {
		studentID = *patch.StudentID
	}
	courseID := enrollment.CourseID
	if patch.CourseID != nil {
		courseID = *patch.CourseID
	}
	grade := enrollment.Grade
	if patch.Grade != nil {
		grade = patch.Grade
	}
	return s.applyEdit(ctx, enrollment, studentID, courseID, grade)
}

// Grade sets the grade field only. Capacity and activation state are not
// consulted: grading stays possible after a course closes.
func (s *EnrollmentService) Grade(ctx context.Context, id int64, req GradeEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if err := validateGrade(req.Grade); err != nil {
		return nil, err
	}
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.SetGrade(ctx, id, req.Grade); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrEnrollmentNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to grade enrollment")
	}
	return s.detail(ctx, id)
}

// Delete removes an enrollment.
func (s *EnrollmentService) Delete(ctx context.Context, id int64) error {
	enrollment, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrEnrollmentNotFound, "")
		}
		return appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to delete enrollment")
	}
	s.logger.Info("enrollment deleted", zap.Int64("enrollment_id", id))
	s.invalidateCourse(ctx, enrollment.CourseID)
	return nil
}

func (s *EnrollmentService) applyEdit(ctx context.Context, enrollment *models.Enrollment, studentID, courseID int64, grade *string) (*models.EnrollmentDetail, error) {
	if grade != nil {
		if err := validateGrade(*grade); err != nil {
			return nil, err
		}
	}
	if err := s.checkEnrollable(ctx, studentID, courseID, enrollment.ID); err != nil {
		return nil, err
	}

	previousCourseID := enrollment.CourseID
	enrollment.StudentID = studentID
	enrollment.CourseID = courseID
	enrollment.Grade = grade
	if err := s.repo.Replace(ctx, enrollment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrEnrollmentNotFound, "")
		}
		return nil, s.translateWriteError(err)
	}
	s.invalidateCourse(ctx, courseID)
	if previousCourseID != courseID {
		s.invalidateCourse(ctx, previousCourseID)
	}
	return s.detail(ctx, enrollment.ID)
}

// checkEnrollable runs the ordered precondition chain. excludeID, when
// non-zero, removes that enrollment row from the duplicate and seat counts.
func (s *EnrollmentService) checkEnrollable(ctx context.Context, studentID, courseID, excludeID int64) error {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrStudentNotFound, "")
		}
		return appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to load student")
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrCourseNotFound, "")
		}
		return appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to load course")
	}
	enrolled, err := s.repo.Exists(ctx, studentID, courseID, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to validate enrollment")
	}
	if enrolled {
		return appErrors.Clone(appErrors.ErrAlreadyEnrolled, "")
	}
	if !course.Active {
		return appErrors.Clone(appErrors.ErrCourseNotActive, "")
	}
	taken, err := s.repo.CountByCourse(ctx, courseID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to count enrollments")
	}
	if excludeID != 0 {
		// The row being edited keeps its seat; only a course switch can
		// consume a new one, and the repository re-counts under lock.
		current, err := s.repo.FindByID(ctx, excludeID)
		if err == nil && current.CourseID == courseID {
			return nil
		}
	}
	if taken >= course.Capacity {
		return appErrors.Clone(appErrors.ErrCourseFull, "")
	}
	return nil
}

// translateWriteError maps the repository's transactional sentinels onto the
// domain taxonomy so constraint trips never surface as raw database errors.
func (s *EnrollmentService) translateWriteError(err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateEnrollment):
		return appErrors.Clone(appErrors.ErrAlreadyEnrolled, "")
	case errors.Is(err, repository.ErrCourseSeatsExhausted):
		return appErrors.Clone(appErrors.ErrCourseFull, "")
	case errors.Is(err, repository.ErrCourseClosed):
		return appErrors.Clone(appErrors.ErrCourseNotActive, "")
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrCourseNotFound, "")
	default:
		return appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to persist enrollment")
	}
}

func (s *EnrollmentService) invalidateCourse(ctx context.Context, courseID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, courseCacheKey(courseID)); err != nil {
		s.logger.Warn("course cache invalidation failed", zap.Int64("course_id", courseID), zap.Error(err))
	}
}

func (s *EnrollmentService) find(ctx context.Context, id int64) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrEnrollmentNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

func (s *EnrollmentService) detail(ctx context.Context, id int64) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

func validateGrade(grade string) error {
	if !gradePattern.MatchString(grade) {
		return appErrors.Clone(appErrors.ErrInvalidGrade, "")
	}
	value, err := strconv.ParseFloat(grade, 64)
	if err != nil || value < 1.0 || value > 5.0 {
		return appErrors.Clone(appErrors.ErrInvalidGrade, "")
	}
	return nil
}
