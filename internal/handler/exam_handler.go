package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampin-backend/internal/model"
	"github.com/stemsi/exampin-backend/internal/response"
	"github.com/stemsi/exampin-backend/internal/service"
	"github.com/stemsi/exampin-backend/internal/validator"
)

// ExamHandler handles exam management endpoints.
type ExamHandler struct {
	examService *service.ExamService
	log         zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		examService: examService,
		log:         log.With().Str("component", "exam_handler").Logger(),
	}
}

// ListExams godoc
// GET /api/v1/admin/exams
// Lists exam summaries, newest first.
func (h *ExamHandler) ListExams(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	exams, pagination, err := h.examService.List(c.Request.Context(), page, perPage)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams}, pagination)
}

// CreateExam godoc
// POST /api/v1/admin/exams
// Creates an exam with its questions. Unusable exams are rejected.
func (h *ExamHandler) CreateExam(c *gin.Context) {
	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrExamNotUsable) {
			response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrExamNotUsable,
				map[string]string{"questions": strings.TrimPrefix(err.Error(), service.ErrExamNotUsable.Error()+": ")})
			return
		}
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// GetExam godoc
// GET /api/v1/admin/exams/:id
// Returns the full exam, answer key included.
func (h *ExamHandler) GetExam(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}
