package web

// errors.go provides unified error response handling for the API.
//
// Every handler error is logged with full technical detail server-side and
// returned to the client as a JSON envelope with a stable machine-readable
// code, a human-readable message, and an optional action suggestion.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/praxishq/intake/internal/job"
	"github.com/praxishq/intake/internal/question"
	"github.com/praxishq/intake/internal/schema"
	"github.com/praxishq/intake/internal/store"
)

// ErrorResponse is the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// userMessage is the client-facing rendering of an error.
type userMessage struct {
	Code    string
	Message string
	Action  string
}

// mapError translates an internal error into a user-facing message with a
// stable code. Unmatched errors get a generic envelope; the detail stays in
// the server log.
func mapError(err error) userMessage {
	switch {
	case errors.Is(err, ErrJobNotFound):
		return userMessage{Code: "JOB_NOT_FOUND", Message: "No import job with that id.", Action: "Check the job id and try again."}
	case errors.Is(err, ErrJobNotQueued):
		return userMessage{Code: "JOB_NOT_QUEUED", Message: "The job has already been started.", Action: "Create a new job to import again."}
	case errors.Is(err, question.ErrNotFound):
		return userMessage{Code: "QUESTION_NOT_FOUND", Message: "No pending question with that id.", Action: "Fetch the job's questions for the current id."}
	case errors.Is(err, question.ErrAlreadyAnswered):
		return userMessage{Code: "QUESTION_ANSWERED", Message: "That question was already answered."}
	case errors.Is(err, question.ErrAnswerRetries):
		return userMessage{Code: "ANSWER_RETRIES_EXCEEDED", Message: "Too many invalid answers; the question was closed.", Action: "The job will fail; review the import log."}
	case errors.Is(err, question.ErrInvalidAnswer):
		return userMessage{Code: "INVALID_ANSWER", Message: err.Error(), Action: "Submit an answer matching the question type."}
	case errors.Is(err, job.ErrBadTransition):
		return userMessage{Code: "BAD_JOB_STATE", Message: "The job is not in a state that allows this.", Action: "Fetch the job status for its current state."}
	case errors.Is(err, schema.ErrMissingDependency):
		return userMessage{Code: "MISSING_DEPENDENCY", Message: err.Error(), Action: "Include the files the imported types depend on."}
	case errors.Is(err, store.ErrUnknownEntity):
		return userMessage{Code: "UNKNOWN_ENTITY", Message: err.Error(), Action: "Use one of the supported entity types."}
	default:
		return userMessage{Code: "INTERNAL", Message: "The request could not be processed."}
	}
}

// respondError logs the technical error and writes the JSON envelope.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	msg := mapError(err)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", msg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// statusFor picks the HTTP status for a mapped error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrJobNotFound), errors.Is(err, question.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrJobNotQueued), errors.Is(err, question.ErrAlreadyAnswered),
		errors.Is(err, job.ErrBadTransition):
		return http.StatusConflict
	case errors.Is(err, question.ErrInvalidAnswer), errors.Is(err, question.ErrAnswerRetries),
		errors.Is(err, schema.ErrMissingDependency), errors.Is(err, store.ErrUnknownEntity):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v and writes it with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
