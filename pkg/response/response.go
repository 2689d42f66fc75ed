package response

import (
	"encoding/json"
	"net/http"
)

// Error codes let clients tell apart failures that share a status.
const (
	CodeConflict      = "conflict"
	CodeUnknownCourse = "unknown_course"
	CodeNotFound      = "not_found"
)

type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Code      string      `json:"code,omitempty"`
	Message   string      `json:"message,omitempty"`
	Conflicts interface{} `json:"conflicts,omitempty"`
}

func write(w http.ResponseWriter, statusCode int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	write(w, statusCode, Response{
		Success: statusCode < 400,
		Data:    data,
	})
}

func Success(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, data)
}

func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, data)
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func Error(w http.ResponseWriter, statusCode int, err string) {
	write(w, statusCode, Response{
		Success: false,
		Error:   err,
	})
}

func CodedError(w http.ResponseWriter, statusCode int, code, err string) {
	write(w, statusCode, Response{
		Success: false,
		Error:   err,
		Code:    code,
	})
}

// Conflict reports a refused schedule mutation together with the colliding pairs.
func Conflict(w http.ResponseWriter, err string, conflicts interface{}, message string) {
	write(w, http.StatusConflict, Response{
		Success:   false,
		Error:     err,
		Code:      CodeConflict,
		Message:   message,
		Conflicts: conflicts,
	})
}

func BadRequest(w http.ResponseWriter, err string) {
	Error(w, http.StatusBadRequest, err)
}

func Unauthorized(w http.ResponseWriter, err string) {
	Error(w, http.StatusUnauthorized, err)
}

func Forbidden(w http.ResponseWriter, err string) {
	Error(w, http.StatusForbidden, err)
}

func NotFound(w http.ResponseWriter, err string) {
	CodedError(w, http.StatusNotFound, CodeNotFound, err)
}

func InternalError(w http.ResponseWriter, err string) {
	Error(w, http.StatusInternalServerError, err)
}
