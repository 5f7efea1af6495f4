package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampin-backend/internal/pin"
	"github.com/stemsi/exampin-backend/internal/response"
	"github.com/stemsi/exampin-backend/internal/service"
	"github.com/stemsi/exampin-backend/internal/session"
)

// classify maps a domain error to an HTTP status and API code.
func classify(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, pin.ErrInvalidLength), errors.Is(err, pin.ErrInvalidSymbol), errors.Is(err, pin.ErrBatchSize):
		return http.StatusBadRequest, response.ErrValidation
	case errors.Is(err, service.ErrInvalidPin):
		return http.StatusUnauthorized, response.ErrInvalidPin
	case errors.Is(err, service.ErrExamNotFound), errors.Is(err, service.ErrResultNotFound):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, service.ErrExamNotUsable):
		return http.StatusUnprocessableEntity, response.ErrExamNotUsable
	case errors.Is(err, service.ErrPinsExhausted):
		return http.StatusServiceUnavailable, response.ErrPinsExhausted
	case errors.Is(err, service.ErrSessionFailed):
		return http.StatusServiceUnavailable, response.ErrSessionFailed
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, response.ErrSessionNotFound
	case errors.Is(err, session.ErrTimeUp):
		return http.StatusConflict, response.ErrTimeUp
	case errors.Is(err, session.ErrNotActive), errors.Is(err, session.ErrNotConfirming):
		return http.StatusConflict, response.ErrSessionNotActive
	case errors.Is(err, session.ErrNameRequired), errors.Is(err, session.ErrNameTooLong):
		return http.StatusBadRequest, response.ErrNameRequired
	case errors.Is(err, session.ErrNoAnswers):
		return http.StatusBadRequest, response.ErrNoAnswers
	case errors.Is(err, session.ErrUnknownQuestion):
		return http.StatusBadRequest, response.ErrUnknownQuestion
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// fail writes the envelope for err. Unexpected errors are logged.
func fail(c *gin.Context, log zerolog.Logger, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError && code == response.ErrInternal {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	if code == response.ErrValidation {
		response.FailWithFields(c, status, code, map[string]string{validationField(err): err.Error()})
		return
	}
	response.Fail(c, status, code)
}

// validationField names the request field a domain validation error is about.
func validationField(err error) string {
	if errors.Is(err, pin.ErrBatchSize) {
		return "count"
	}
	return "pin"
}
