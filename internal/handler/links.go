package handler

import (
	"net/http"

	"github.com/akademia-dev/college-api/internal/hateoas"
	"github.com/akademia-dev/college-api/internal/models"
)

// NewLinkResolver builds the route table backing all _links blocks. Route
// templates mirror the registered gin routes.
func NewLinkResolver(baseURL, prefix string) *hateoas.RouteTable {
	return hateoas.NewRouteTable(baseURL, map[string]string{
		"students":           prefix + "/students",
		"student":            prefix + "/students/:id",
		"teachers":           prefix + "/teachers",
		"teacher":            prefix + "/teachers/:id",
		"courses":            prefix + "/courses",
		"course":             prefix + "/courses/:id",
		"course-capacity":    prefix + "/courses/:id/capacity",
		"course-block":       prefix + "/courses/:id/block",
		"course-unblock":     prefix + "/courses/:id/unblock",
		"course-students":    prefix + "/courses/:id/students",
		"course-roster":      prefix + "/reports/courses/:id/roster",
		"enrollments":        prefix + "/enrollments",
		"enrollment":         prefix + "/enrollments/:id",
		"enrollment-grade":   prefix + "/enrollments/:id/grade",
		"student-transcript": prefix + "/reports/students/:id/transcript",
	})
}

func studentLinkConfig(s models.Student) hateoas.Config {
	return hateoas.Config{
		{Name: "self", Spec: hateoas.Leaf{Route: "student", Param: "id", Method: http.MethodGet}},
		{Name: "update", Spec: hateoas.Leaf{Route: "student", Param: "id", Method: http.MethodPatch}},
		{Name: "delete", Spec: hateoas.Leaf{Route: "student", Param: "id", Method: http.MethodDelete}},
		{Name: "transcript", Spec: hateoas.Leaf{Route: "student-transcript", Param: "id", Method: http.MethodGet}},
		{Name: "enroll", Spec: hateoas.Leaf{
			Route:  "enrollments",
			Method: http.MethodPost,
			Body:   map[string]interface{}{"student_id": s.ID, "course_id": 0},
		}},
	}
}

func teacherLinkConfig() hateoas.Config {
	return hateoas.Config{
		{Name: "self", Spec: hateoas.Leaf{Route: "teacher", Param: "id", Method: http.MethodGet}},
		{Name: "update", Spec: hateoas.Leaf{Route: "teacher", Param: "id", Method: http.MethodPatch}},
		{Name: "delete", Spec: hateoas.Leaf{Route: "teacher", Param: "id", Method: http.MethodDelete}},
	}
}

// courseLinkConfig builds the course link block. The activation toggle that
// applies to the course's current state is the one linked. When students are
// provided they are rendered as a nested bucket of per-student links.
func courseLinkConfig(course models.CourseDetail, students []models.Student) hateoas.Config {
	cfg := hateoas.Config{
		{Name: "self", Spec: hateoas.Leaf{Route: "course", Param: "id", Method: http.MethodGet}},
		{Name: "update", Spec: hateoas.Leaf{Route: "course", Param: "id", Method: http.MethodPatch}},
		{Name: "delete", Spec: hateoas.Leaf{Route: "course", Param: "id", Method: http.MethodDelete}},
		{Name: "setCapacity", Spec: hateoas.Leaf{
			Route:  "course-capacity",
			Param:  "id",
			Method: http.MethodPut,
			Body:   map[string]interface{}{"capacity": course.Capacity},
		}},
	}
	if course.Active {
		cfg = append(cfg, hateoas.Entry{Name: "block", Spec: hateoas.Leaf{Route: "course-block", Param: "id", Method: http.MethodPut}})
	} else {
		cfg = append(cfg, hateoas.Entry{Name: "unblock", Spec: hateoas.Leaf{Route: "course-unblock", Param: "id", Method: http.MethodPut}})
	}
	cfg = append(cfg,
		hateoas.Entry{Name: "teacherData", Spec: hateoas.Leaf{Route: "teacher", Param: "id", Method: http.MethodGet, Value: hateoas.ID(course.TeacherID)}},
		hateoas.Entry{Name: "roster", Spec: hateoas.Leaf{Route: "course-roster", Param: "id", Method: http.MethodGet}},
	)
	if students != nil {
		bucket := make(hateoas.Group, 0, len(students))
		for _, student := range students {
			bucket = append(bucket, hateoas.Entry{
				Name: student.Name,
				Spec: hateoas.Leaf{Route: "student", Param: "id", Method: http.MethodGet, Value: hateoas.ID(student.ID)},
			})
		}
		cfg = append(cfg, hateoas.Entry{Name: "allStudents", Spec: bucket})
	}
	return cfg
}

func enrollmentLinkConfig(e models.EnrollmentDetail) hateoas.Config {
	return hateoas.Config{
		{Name: "self", Spec: hateoas.Leaf{Route: "enrollment", Param: "id", Method: http.MethodGet}},
		{Name: "update", Spec: hateoas.Leaf{Route: "enrollment", Param: "id", Method: http.MethodPatch}},
		{Name: "delete", Spec: hateoas.Leaf{Route: "enrollment", Param: "id", Method: http.MethodDelete}},
		{Name: "setGrade", Spec: hateoas.Leaf{
			Route:  "enrollment-grade",
			Param:  "id",
			Method: http.MethodPut,
			Body:   map[string]interface{}{"grade": "1.0"},
		}},
		{Name: "studentData", Spec: hateoas.Leaf{Route: "student", Param: "id", Method: http.MethodGet, Value: hateoas.ID(e.StudentID)}},
		{Name: "courseData", Spec: hateoas.Leaf{Route: "course", Param: "id", Method: http.MethodGet, Value: hateoas.ID(e.CourseID)}},
	}
}
