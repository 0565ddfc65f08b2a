package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/library/internal/screens"
)

// ProfileController serves the profile screen and the home statistics.
type ProfileController struct {
	deps      screens.Deps
	auditor   Auditor
	heartbeat time.Duration
	log       *slog.Logger
}

func NewProfileController(deps screens.Deps, auditor Auditor, heartbeat time.Duration, log *slog.Logger) *ProfileController {
	return &ProfileController{deps: deps, auditor: auditor, heartbeat: heartbeat, log: log}
}

type displayNameRequest struct {
	DisplayName string `json:"display_name"`
}

// GET /api/profile
func (pc *ProfileController) Get(c *gin.Context) {
	profile := screens.NewProfile(pc.deps, currentSession(c))
	if err := profile.Load(c.Request.Context()); err != nil {
		respondErr(c, pc.log, err, profile.State().Alert)
		return
	}
	c.JSON(http.StatusOK, profile.State())
}

// PUT /api/profile
func (pc *ProfileController) Update(c *gin.Context) {
	var req displayNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	profile := screens.NewProfile(pc.deps, currentSession(c))
	user, err := profile.UpdateDisplayName(ctx, req.DisplayName)
	if err != nil {
		respondErr(c, pc.log, err, profile.State().Alert)
		return
	}
	pc.auditor.LogProfile(actorFrom(c), "display_name_update", user.DisplayName)

	if err := profile.Load(ctx); err != nil {
		respondErr(c, pc.log, err, profile.State().Alert)
		return
	}
	c.JSON(http.StatusOK, profile.State())
}

// GET /api/stats/stream
func (pc *ProfileController) StreamStats(c *gin.Context) {
	streamScreen[screens.StatsData](c, screens.NewStats(pc.deps, currentSession(c)), pc.heartbeat)
}
