package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/akademia-dev/college-api/internal/models"
	appErrors "github.com/akademia-dev/college-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	FindByID(ctx context.Context, id int64) (*models.Course, error)
	FindDetailByID(ctx context.Context, id int64) (*models.CourseDetail, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	UpdateCapacity(ctx context.Context, id int64, capacity int) error
	UpdateActive(ctx context.Context, id int64, active bool) error
	HasEnrollments(ctx context.Context, id int64) (bool, error)
	Delete(ctx context.Context, id int64) error
}

type teacherReader interface {
	FindByID(ctx context.Context, id int64) (*models.Teacher, error)
}

type cacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CreateCourseRequest describes course creation payload.
type CreateCourseRequest struct {
	Title       string `json:"title" validate:"required,min=2,max=150"`
	Description string `json:"description" validate:"max=2000"`
	TeacherID   int64  `json:"teacher_id" validate:"required"`
	Capacity    int    `json:"capacity" validate:"required"`
	Active      *bool  `json:"active"`
}

// SetCapacityRequest carries the new seat limit for a course.
type SetCapacityRequest struct {
	Capacity int `json:"capacity" validate:"required"`
}

// CourseService manages courses and their enrollment gates.
type CourseService struct {
	repo      courseRepository
	teachers  teacherReader
	cache     cacheStore
	cacheTTL  time.Duration
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService. cache and metrics may be nil
// when caching or instrumentation is disabled.
func NewCourseService(repo courseRepository, teachers teacherReader, cache cacheStore, cacheTTL time.Duration, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &CourseService{repo: repo, teachers: teachers, cache: cache, cacheTTL: cacheTTL, metrics: metrics, validator: validate, logger: logger}
}

// List returns courses with teacher names and occupancy counts.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Find returns one course with occupancy info, via the cache when enabled.
func (s *CourseService) Find(ctx context.Context, id int64) (*models.CourseDetail, error) {
	key := courseCacheKey(id)
	if s.cache != nil {
		var cached models.CourseDetail
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		}
		s.metrics.RecordCacheOperation(false)
	}

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCourseNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to load course")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, detail, s.cacheTTL); err != nil {
			s.logger.Warn("course cache write failed", zap.Int64("course_id", id), zap.Error(err))
		}
	}
	return detail, nil
}

// Create registers a new course. Capacity must be at least one seat.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.CourseDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if req.Capacity < 1 {
		return nil, appErrors.Clone(appErrors.ErrInvalidCourseCapacity, "")
	}
	if _, err := s.teachers.FindByID(ctx, req.TeacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrTeacherNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to load teacher")
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	course := &models.Course{
		Title:       req.Title,
		Description: req.Description,
		TeacherID:   req.TeacherID,
		Capacity:    req.Capacity,
		Active:      active,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to create course")
	}
	s.logger.Info("course created", zap.Int64("course_id", course.ID), zap.String("title", course.Title))
	return s.repo.FindDetailByID(ctx, course.ID)
}

// Update applies a sparse field set onto an existing course. Shrinking
// capacity below the enrolled count is allowed and only blocks future joins.
func (s *CourseService) Update(ctx context.Context, id int64, patch models.CourseUpdate) (*models.CourseDetail, error) {
	course, err := s.findCourse(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		course.Title = *patch.Title
	}
	if patch.Description != nil {
		course.Description = *patch.Description
	}
	if patch.TeacherID != nil {
		if _, err := s.teachers.FindByID(ctx, *patch.TeacherID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrTeacherNotFound, "")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to load teacher")
		}
		course.TeacherID = *patch.TeacherID
	}
	if patch.Capacity != nil {
		if *patch.Capacity < 1 {
			return nil, appErrors.Clone(appErrors.ErrInvalidCourseCapacity, "")
		}
		course.Capacity = *patch.Capacity
	}
	if patch.Active != nil {
		course.Active = *patch.Active
	}

	if err := s.repo.Update(ctx, course); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCourseNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to update course")
	}
	s.invalidate(ctx, id)
	return s.repo.FindDetailByID(ctx, id)
}

// SetCapacity changes only the seat limit.
func (s *CourseService) SetCapacity(ctx context.Context, id int64, req SetCapacityRequest) (*models.CourseDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid capacity payload")
	}
	if req.Capacity < 1 {
		return nil, appErrors.Clone(appErrors.ErrInvalidCourseCapacity, "")
	}
	if _, err := s.findCourse(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateCapacity(ctx, id, req.Capacity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCourseNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to update capacity")
	}
	s.logger.Info("course capacity changed", zap.Int64("course_id", id), zap.Int("capacity", req.Capacity))
	s.invalidate(ctx, id)
	return s.repo.FindDetailByID(ctx, id)
}

// Block closes a course to new enrollments. Existing enrollments stay.
func (s *CourseService) Block(ctx context.Context, id int64) (*models.CourseDetail, error) {
	return s.setActive(ctx, id, false)
}

// Unblock reopens a course for enrollment.
func (s *CourseService) Unblock(ctx context.Context, id int64) (*models.CourseDetail, error) {
	return s.setActive(ctx, id, true)
}

func (s *CourseService) setActive(ctx context.Context, id int64, active bool) (*models.CourseDetail, error) {
	if _, err := s.findCourse(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateActive(ctx, id, active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCourseNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to update course state")
	}
	s.logger.Info("course activation changed", zap.Int64("course_id", id), zap.Bool("active", active))
	s.invalidate(ctx, id)
	return s.repo.FindDetailByID(ctx, id)
}

// Delete removes a course. Courses with live enrollments are rejected so
// enrollment history has to be cleared first.
func (s *CourseService) Delete(ctx context.Context, id int64) error {
	if _, err := s.findCourse(ctx, id); err != nil {
		return err
	}
	occupied, err := s.repo.HasEnrollments(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to check enrollments")
	}
	if occupied {
		return appErrors.Clone(appErrors.ErrConflict, "course has active enrollments")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrCourseNotFound, "")
		}
		return appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to delete course")
	}
	s.logger.Info("course deleted", zap.Int64("course_id", id))
	s.invalidate(ctx, id)
	return nil
}

func (s *CourseService) findCourse(ctx context.Context, id int64) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCourseNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "failed to load course")
	}
	return course, nil
}

func (s *CourseService) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, courseCacheKey(id)); err != nil {
		s.logger.Warn("course cache invalidation failed", zap.Int64("course_id", id), zap.Error(err))
	}
}

func courseCacheKey(id int64) string {
	return fmt.Sprintf("course:%d", id)
}
