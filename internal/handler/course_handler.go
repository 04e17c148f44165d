package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/akademia-dev/college-api/internal/hateoas"
	"github.com/akademia-dev/college-api/internal/models"
	"github.com/akademia-dev/college-api/internal/service"
	appErrors "github.com/akademia-dev/college-api/pkg/errors"
	"github.com/akademia-dev/college-api/pkg/response"
)

// CourseHandler exposes course endpoints.
type CourseHandler struct {
	courses     *service.CourseService
	enrollments *service.EnrollmentService
	resolver    hateoas.Resolver
}

// NewCourseHandler constructs CourseHandler.
func NewCourseHandler(courses *service.CourseService, enrollments *service.EnrollmentService, resolver hateoas.Resolver) *CourseHandler {
	return &CourseHandler{courses: courses, enrollments: enrollments, resolver: resolver}
}

// List godoc
// @Summary List courses
// @Tags Courses
// @Produce json
// @Param teacherId query int false "Filter by teacher"
// @Param active query bool false "Filter by activation state"
// @Param search query string false "Search by title"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	var filter models.CourseFilter
	if teacherID, err := strconv.ParseInt(c.Query("teacherId"), 10, 64); err == nil {
		filter.TeacherID = teacherID
	}
	if active, err := strconv.ParseBool(c.Query("active")); err == nil {
		filter.Active = &active
	}
	filter.Search = c.Query("search")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	courses, pagination, err := h.courses.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, pagination)
}

// Get godoc
// @Summary Get a course with its enrolled students linked
// @Tags Courses
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	course, err := h.courses.Find(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	students, err := h.enrollments.StudentsByCourse(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if students == nil {
		students = []models.Student{}
	}
	h.respond(c, http.StatusOK, course, students)
}

// Create godoc
// @Summary Create a course
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body service.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	var req service.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	course, err := h.courses.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, http.StatusCreated, course, nil)
}

// Update godoc
// @Summary Patch a course
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path int true "Course ID"
// @Param payload body models.CourseUpdate true "Changed fields"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [patch]
func (h *CourseHandler) Update(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var patch models.CourseUpdate
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	course, err := h.courses.Update(c.Request.Context(), id, patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, http.StatusOK, course, nil)
}

// SetCapacity godoc
// @Summary Change the seat limit of a course
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path int true "Course ID"
// @Param payload body service.SetCapacityRequest true "Capacity payload"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/capacity [put]
func (h *CourseHandler) SetCapacity(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.SetCapacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	course, err := h.courses.SetCapacity(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, http.StatusOK, course, nil)
}

// Block godoc
// @Summary Close a course to new enrollments
// @Tags Courses
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/block [put]
func (h *CourseHandler) Block(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	course, err := h.courses.Block(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, http.StatusOK, course, nil)
}

// Unblock godoc
// @Summary Reopen a course for enrollment
// @Tags Courses
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/unblock [put]
func (h *CourseHandler) Unblock(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	course, err := h.courses.Unblock(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, http.StatusOK, course, nil)
}

// Students godoc
// @Summary List the students enrolled in a course
// @Tags Courses
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/students [get]
func (h *CourseHandler) Students(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	students, err := h.enrollments.StudentsByCourse(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if students == nil {
		students = []models.Student{}
	}
	response.JSON(c, http.StatusOK, students, nil)
}

// Delete godoc
// @Summary Delete a course without enrollments
// @Tags Courses
// @Produce json
// @Param id path int true "Course ID"
// @Success 204 "No Content"
// @Router /courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.courses.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *CourseHandler) respond(c *gin.Context, status int, course *models.CourseDetail, students []models.Student) {
	links, err := hateoas.Generate(course, courseLinkConfig(*course, students), h.resolver)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, status, hateoas.Embedded{Entity: course, Links: links}, nil)
}
