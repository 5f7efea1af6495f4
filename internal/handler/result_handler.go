package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampin-backend/internal/export"
	"github.com/stemsi/exampin-backend/internal/repository"
	"github.com/stemsi/exampin-backend/internal/response"
	"github.com/stemsi/exampin-backend/internal/service"
)

// ResultHandler serves submitted results.
type ResultHandler struct {
	resultService *service.ResultService
	log           zerolog.Logger
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(resultService *service.ResultService, log zerolog.Logger) *ResultHandler {
	return &ResultHandler{
		resultService: resultService,
		log:           log.With().Str("component", "result_handler").Logger(),
	}
}

// GetResult godoc
// GET /api/v1/results/:id
// Used by the results view the student is redirected to after submitting.
func (h *ResultHandler) GetResult(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	res, err := h.resultService.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": res})
}

// ListResults godoc
// GET /api/v1/admin/results?search=&exam_id=&page=&per_page=
func (h *ResultHandler) ListResults(c *gin.Context) {
	filter, ok := resultFilter(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	results, pagination, err := h.resultService.List(c.Request.Context(), filter, page, perPage)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, pagination)
}

// ExportResults godoc
// GET /api/v1/admin/results/export?search=&exam_id=&format=csv|xlsx
func (h *ResultHandler) ExportResults(c *gin.Context) {
	filter, ok := resultFilter(c)
	if !ok {
		return
	}
	format, ok := exportFormat(c)
	if !ok {
		return
	}

	results, err := h.resultService.All(c.Request.Context(), filter)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	sendTable(c, h.log, format, "results", export.ResultsTable(results))
}

func resultFilter(c *gin.Context) (repository.ResultFilter, bool) {
	examID, ok := queryUUID(c, "exam_id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return repository.ResultFilter{}, false
	}
	return repository.ResultFilter{
		Search: strings.TrimSpace(c.Query("search")),
		ExamID: examID,
	}, true
}
