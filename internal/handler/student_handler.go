package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampin-backend/internal/middleware"
	"github.com/stemsi/exampin-backend/internal/model"
	"github.com/stemsi/exampin-backend/internal/response"
	"github.com/stemsi/exampin-backend/internal/service"
	"github.com/stemsi/exampin-backend/internal/validator"
)

// StudentHandler handles the student entry points: pin login, the session
// snapshot and the exam paper.
type StudentHandler struct {
	sessionService *service.SessionService
	examService    *service.ExamService
	log            zerolog.Logger
}

// NewStudentHandler creates a new StudentHandler.
func NewStudentHandler(sessionService *service.SessionService, examService *service.ExamService, log zerolog.Logger) *StudentHandler {
	return &StudentHandler{
		sessionService: sessionService,
		examService:    examService,
		log:            log.With().Str("component", "student_handler").Logger(),
	}
}

// Redeem godoc
// POST /api/v1/student/redeem
// Consumes a pin, starts the exam session and returns its token.
func (h *StudentHandler) Redeem(c *gin.Context) {
	var req model.RedeemPinRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.sessionService.Redeem(c.Request.Context(), req.Pin)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, res)
}

// GetSession godoc
// GET /api/v1/student/session
// Returns the current snapshot of the caller's session.
func (h *StudentHandler) GetSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sess, err := h.sessionService.Session(claims)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": sess.Snapshot()})
}

// GetPaper godoc
// GET /api/v1/student/session/paper
// Returns the questions of the caller's exam without the answer key.
func (h *StudentHandler) GetPaper(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	paper, err := h.examService.GetPaper(c.Request.Context(), claims.ExamID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}
