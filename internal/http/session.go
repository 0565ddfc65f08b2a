package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/library/internal/auth"
	"github.com/mrlokans/library/internal/session"
)

// SessionController reports which flow a client should show.
type SessionController struct {
	source    session.Source
	heartbeat time.Duration
}

func NewSessionController(source session.Source, heartbeat time.Duration) *SessionController {
	return &SessionController{source: source, heartbeat: heartbeat}
}

// GET /api/session
func (sc *SessionController) Current(c *gin.Context) {
	c.JSON(http.StatusOK, session.TransitionFor(auth.GetUser(c).Profile()))
}

// GET /api/session/stream
//
// Streams gate transitions. A signed-in client is moved to the auth flow as
// soon as the user signs out anywhere.
func (sc *SessionController) Stream(c *gin.Context) {
	gate := session.NewGate(sc.source, auth.GetUser(c).Profile())
	gate.Mount(c.Request.Context())
	defer gate.Unmount()

	streamEvents(c, "session", gate.Transitions(), sc.heartbeat, nil)
}
