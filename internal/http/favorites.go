package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/library/internal/screens"
)

type FavoritesController struct {
	deps      screens.Deps
	heartbeat time.Duration
	log       *slog.Logger
}

func NewFavoritesController(deps screens.Deps, heartbeat time.Duration, log *slog.Logger) *FavoritesController {
	return &FavoritesController{deps: deps, heartbeat: heartbeat, log: log}
}

// GET /api/favorites
func (fc *FavoritesController) List(c *gin.Context) {
	list := screens.NewFavorites(fc.deps, currentSession(c))
	defer list.Unmount()

	if err := list.Load(c.Request.Context(), c.Query("after")); err != nil {
		respondErr(c, fc.log, err, list.State().Alert)
		return
	}
	c.JSON(http.StatusOK, list.State())
}

// GET /api/favorites/stream
func (fc *FavoritesController) Stream(c *gin.Context) {
	streamScreen[screens.ListData](c, screens.NewFavorites(fc.deps, currentSession(c)), fc.heartbeat)
}
