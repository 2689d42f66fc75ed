package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"course-planner-sync/internal/domain"
	"course-planner-sync/internal/service"
	"course-planner-sync/pkg/response"
)

// UserHandler serves /users/{id} and its sub-resources. Routes are mounted behind
// middleware.RequireSelf, so {id} is always the caller.
type UserHandler struct {
	userService       *service.UserService
	preferenceService *service.PreferenceService
	scheduleService   *service.ScheduleService
	validator         *validator.Validate
	log               *zap.Logger
}

func NewUserHandler(
	userService *service.UserService,
	preferenceService *service.PreferenceService,
	scheduleService *service.ScheduleService,
	log *zap.Logger,
) *UserHandler {
	return &UserHandler{
		userService:       userService,
		preferenceService: preferenceService,
		scheduleService:   scheduleService,
		validator:         validator.New(),
		log:               log,
	}
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	response.Success(w, user)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateUserRequest
	if err := decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	user, err := h.userService.Update(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	response.Success(w, user)
}

func (h *UserHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	env, err := h.preferenceService.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	response.Success(w, env)
}

func (h *UserHandler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdatePreferencesRequest
	if err := decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	env, err := h.preferenceService.Put(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	response.Success(w, env)
}

func (h *UserHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.scheduleService.ListByOwner(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	response.Success(w, schedules)
}
