package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"course-planner-sync/internal/domain"
	"course-planner-sync/internal/middleware"
	"course-planner-sync/internal/service"
	"course-planner-sync/pkg/response"
)

type ScheduleHandler struct {
	scheduleService *service.ScheduleService
	validator       *validator.Validate
	log             *zap.Logger
}

func NewScheduleHandler(scheduleService *service.ScheduleService, log *zap.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		scheduleService: scheduleService,
		validator:       validator.New(),
		log:             log,
	}
}

func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.scheduleService.Get(r.Context(), middleware.GetUserID(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	response.Success(w, schedule)
}

func (h *ScheduleHandler) Weekly(w http.ResponseWriter, r *http.Request) {
	week, err := h.scheduleService.Weekly(r.Context(), middleware.GetUserID(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	response.Success(w, week)
}

// Update answers 409 with the colliding pairs unless the request forces the save.
func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateScheduleRequest
	if err := decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	updated, err := h.scheduleService.Update(r.Context(), middleware.GetUserID(r), mux.Vars(r)["id"], &req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	response.Success(w, updated)
}

func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduleService.Delete(r.Context(), middleware.GetUserID(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, h.log, err)
		return
	}

	response.NoContent(w)
}

func (h *ScheduleHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req domain.GenerateScheduleRequest
	if err := decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if req.UserID == "" {
		req.UserID = middleware.GetUserID(r)
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	generated, err := h.scheduleService.Generate(r.Context(), middleware.GetUserID(r), &req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	if generated.Created {
		response.Created(w, generated)
		return
	}
	response.Success(w, generated)
}
