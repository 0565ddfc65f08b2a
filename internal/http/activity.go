package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/library/internal/auth"
	"github.com/mrlokans/library/internal/entities"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 200
)

// ActivityController lists the signed-in user's own audit trail.
type ActivityController struct {
	auditor Auditor
	log     *slog.Logger
}

func NewActivityController(auditor Auditor, log *slog.Logger) *ActivityController {
	return &ActivityController{auditor: auditor, log: log}
}

// GET /api/activity?type=&limit=&offset=
func (ac *ActivityController) List(c *gin.Context) {
	limit, ok := parseIntQuery(c, "limit", defaultActivityLimit)
	if !ok {
		return
	}
	offset, ok := parseIntQuery(c, "offset", 0)
	if !ok {
		return
	}
	if limit == 0 || limit > maxActivityLimit {
		limit = maxActivityLimit
	}

	eventType := entities.AuditEventType(c.Query("type"))
	events, total, err := ac.auditor.GetEvents(c.Request.Context(), auth.GetUserID(c), eventType, limit, offset)
	if err != nil {
		respondErr(c, ac.log, err, nil)
		return
	}
	if events == nil {
		events = []entities.AuditEvent{}
	}

	c.JSON(http.StatusOK, PaginatedResponse{
		Data:    events,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: int64(offset+len(events)) < total,
	})
}
