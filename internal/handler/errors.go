package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"course-planner-sync/internal/domain"
	"course-planner-sync/internal/service"
	"course-planner-sync/pkg/hash"
	"course-planner-sync/pkg/response"
)

const conflictHint = "Resubmit with force_update=true to save anyway"

// writeError maps service failures onto the response envelope. Anything unrecognised
// is logged and reported as a bare 500.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var conflictErr *domain.ConflictError
	var unknownErr *domain.UnknownCourseError

	switch {
	case errors.As(err, &conflictErr):
		response.Conflict(w, "Schedule conflicts detected", conflictErr.Conflicts, conflictHint)
	case errors.As(err, &unknownErr):
		response.CodedError(w, http.StatusBadRequest, response.CodeUnknownCourse, unknownErr.Error())
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		response.Forbidden(w, "Access denied")
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidToken):
		response.Unauthorized(w, err.Error())
	case errors.Is(err, service.ErrEmailTaken), errors.Is(err, service.ErrUsernameTaken):
		response.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, hash.ErrTooShort):
		response.BadRequest(w, err.Error())
	default:
		log.Error("request failed", zap.Error(err))
		response.InternalError(w, "Internal server error")
	}
}

func decode(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
