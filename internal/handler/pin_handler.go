package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampin-backend/internal/export"
	"github.com/stemsi/exampin-backend/internal/model"
	"github.com/stemsi/exampin-backend/internal/repository"
	"github.com/stemsi/exampin-backend/internal/response"
	"github.com/stemsi/exampin-backend/internal/service"
	"github.com/stemsi/exampin-backend/internal/validator"
)

// PinHandler handles admin pin endpoints.
type PinHandler struct {
	pinService *service.PinService
	log        zerolog.Logger
}

// NewPinHandler creates a new PinHandler.
func NewPinHandler(pinService *service.PinService, log zerolog.Logger) *PinHandler {
	return &PinHandler{
		pinService: pinService,
		log:        log.With().Str("component", "pin_handler").Logger(),
	}
}

// GeneratePins godoc
// POST /api/v1/admin/exams/:id/pins
// Generates a batch of unused pins for the exam.
func (h *PinHandler) GeneratePins(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.GeneratePinsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	pins, err := h.pinService.Generate(c.Request.Context(), examID, req.Count)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"pins": pins})
}

// ListPins godoc
// GET /api/v1/admin/pins?exam_id=&status=&page=&per_page=
// Lists pins newest first.
func (h *PinHandler) ListPins(c *gin.Context) {
	filter, ok := pinFilter(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	pins, pagination, err := h.pinService.List(c.Request.Context(), filter, page, perPage)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"pins": pins}, pagination)
}

// ExportPins godoc
// GET /api/v1/admin/pins/export?exam_id=&status=&format=csv|xlsx
func (h *PinHandler) ExportPins(c *gin.Context) {
	filter, ok := pinFilter(c)
	if !ok {
		return
	}
	format, ok := exportFormat(c)
	if !ok {
		return
	}

	pins, err := h.pinService.All(c.Request.Context(), filter)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	sendTable(c, h.log, format, "pins", export.PinsTable(pins))
}

func pinFilter(c *gin.Context) (repository.PinFilter, bool) {
	examID, ok := queryUUID(c, "exam_id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return repository.PinFilter{}, false
	}

	status := model.PinStatus(c.Query("status"))
	switch status {
	case "", model.PinStatusUnused, model.PinStatusUsed:
	default:
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"status": "status must be unused or used"})
		return repository.PinFilter{}, false
	}

	return repository.PinFilter{ExamID: examID, Status: status}, true
}
