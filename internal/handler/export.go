package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampin-backend/internal/export"
	"github.com/stemsi/exampin-backend/internal/response"
)

// queryUUID parses an optional uuid query parameter. ok is false when the
// parameter is present but malformed.
func queryUUID(c *gin.Context, key string) (id *uuid.UUID, ok bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return nil, false
	}
	return &parsed, true
}

// exportFormat reads ?format=csv|xlsx, writing a validation error on failure.
func exportFormat(c *gin.Context) (export.Format, bool) {
	f, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"format": "format must be csv or xlsx"})
		return "", false
	}
	return f, true
}

// sendTable streams t as a download. Headers are already sent when encoding
// fails, so the error can only be logged.
func sendTable(c *gin.Context, log zerolog.Logger, f export.Format, prefix string, t export.Table) {
	c.Header("Content-Type", f.ContentType())
	c.Header("Content-Disposition", `attachment; filename="`+f.Filename(prefix, time.Now())+`"`)
	c.Status(http.StatusOK)

	if err := export.Write(c.Writer, f, t); err != nil {
		log.Error().Err(err).Str("format", string(f)).Msg("Export failed")
	}
}
