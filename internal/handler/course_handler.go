package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"course-planner-sync/internal/domain"
	"course-planner-sync/internal/repository"
	"course-planner-sync/internal/service"
	"course-planner-sync/pkg/response"
)

type CourseHandler struct {
	courseService *service.CourseService
	log           *zap.Logger
}

func NewCourseHandler(courseService *service.CourseService, log *zap.Logger) *CourseHandler {
	return &CourseHandler{
		courseService: courseService,
		log:           log,
	}
}

// List accepts optional department, semester and year query filters.
func (h *CourseHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.CourseFilter{Department: q.Get("department")}

	if s := q.Get("semester"); s != "" {
		semester, err := domain.ParseSemester(s)
		if err != nil {
			response.BadRequest(w, err.Error())
			return
		}
		filter.Semester = semester
	}

	if y := q.Get("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			response.BadRequest(w, "Invalid year")
			return
		}
		filter.Year = year
	}

	courses, err := h.courseService.List(r.Context(), filter)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	response.Success(w, courses)
}

func (h *CourseHandler) Get(w http.ResponseWriter, r *http.Request) {
	course, err := h.courseService.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	response.Success(w, course)
}
