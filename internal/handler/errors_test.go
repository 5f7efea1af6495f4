package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stemsi/exampin-backend/internal/pin"
	"github.com/stemsi/exampin-backend/internal/response"
	"github.com/stemsi/exampin-backend/internal/service"
	"github.com/stemsi/exampin-backend/internal/session"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   response.ErrCode
	}{
		{pin.ErrInvalidLength, http.StatusBadRequest, response.ErrValidation},
		{fmt.Errorf("%w: %w", service.ErrInvalidPin, service.ErrPinUsed), http.StatusUnauthorized, response.ErrInvalidPin},
		{fmt.Errorf("%w: %w", service.ErrInvalidPin, service.ErrPinNotFound), http.StatusUnauthorized, response.ErrInvalidPin},
		{service.ErrExamNotFound, http.StatusNotFound, response.ErrNotFound},
		{fmt.Errorf("create: %w", service.ErrExamNotUsable), http.StatusUnprocessableEntity, response.ErrExamNotUsable},
		{fmt.Errorf("%w: timeout", service.ErrSessionFailed), http.StatusServiceUnavailable, response.ErrSessionFailed},
		{session.ErrSessionNotFound, http.StatusNotFound, response.ErrSessionNotFound},
		{session.ErrTimeUp, http.StatusConflict, response.ErrTimeUp},
		{session.ErrNameTooLong, http.StatusBadRequest, response.ErrNameRequired},
		{session.ErrNoAnswers, http.StatusBadRequest, response.ErrNoAnswers},
		{errors.New("boom"), http.StatusInternalServerError, response.ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, code := classify(tt.err)
			if status != tt.wantStatus || code != tt.wantCode {
				t.Errorf("classify = (%d, %s), want (%d, %s)", status, code, tt.wantStatus, tt.wantCode)
			}
		})
	}
}

func TestValidationField(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{pin.ErrBatchSize, "count"},
		{fmt.Errorf("generate: %w", pin.ErrBatchSize), "count"},
		{pin.ErrInvalidLength, "pin"},
		{pin.ErrInvalidSymbol, "pin"},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := validationField(tt.err); got != tt.want {
				t.Errorf("validationField = %q, want %q", got, tt.want)
			}
		})
	}
}
