package service

import "errors"

// Domain errors
var (
	ErrExamNotFound   = errors.New("exam not found")
	ErrExamNotUsable  = errors.New("exam is not usable")
	ErrPinNotFound    = errors.New("pin not found")
	ErrPinUsed        = errors.New("pin already used")
	ErrInvalidPin     = errors.New("invalid pin")
	ErrPinsExhausted  = errors.New("could not generate enough unique pins")
	ErrResultNotFound = errors.New("result not found")
	ErrSessionFailed  = errors.New("exam session could not be started")
	ErrTokenInvalid   = errors.New("invalid session token")
)

// normalizePage clamps pagination inputs to sane bounds.
func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}
