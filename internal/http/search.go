package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/query"
	"github.com/mrlokans/library/internal/screens"
	"github.com/mrlokans/library/internal/validation"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsMaxMessage = 4096
)

// SearchController serves one-shot and interactive search.
type SearchController struct {
	deps     screens.Deps
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewSearchController(deps screens.Deps, log *slog.Logger) *SearchController {
	return &SearchController{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: log,
	}
}

// GET /api/search?q=&genre=&status=&sort=&dir=&after=
func (sc *SearchController) Search(c *gin.Context) {
	sel, err := selectionFromQuery(c)
	if err != nil {
		respondErr(c, sc.log, err, nil)
		return
	}

	search := screens.NewSearch(sc.deps, currentSession(c), sel)
	defer search.Unmount()

	if err := search.Load(c.Request.Context(), c.Query("after")); err != nil {
		respondErr(c, sc.log, err, search.State().Alert)
		return
	}
	c.JSON(http.StatusOK, search.State())
}

// searchCommand is a client message on the interactive search socket.
type searchCommand struct {
	// Action is one of text, genre, status, sort, direction or more.
	Action string `json:"action"`
	Value  string `json:"value,omitempty"`
}

// GET /api/search/ws
//
// Upgrades to a websocket. The server pushes every search state; the client
// sends searchCommand messages. Text changes are debounced, every other
// selection change searches at once.
func (sc *SearchController) Interactive(c *gin.Context) {
	sel, err := selectionFromQuery(c)
	if err != nil {
		respondErr(c, sc.log, err, nil)
		return
	}

	conn, err := sc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		sc.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	search := screens.NewSearch(sc.deps, currentSession(c), sel)
	updates, stop := search.Observe()
	search.Mount(ctx)
	defer func() {
		stop()
		search.Unmount()
	}()

	rejected := make(chan ErrorResponse)
	go sc.readCommands(ctx, cancel, conn, search, rejected)
	sc.writeStates(ctx, conn, updates, rejected)
}

func (sc *SearchController) readCommands(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, search *screens.Search, rejected chan<- ErrorResponse) {
	defer cancel()

	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sc.log.Warn("search socket closed", "error", err)
			}
			return
		}

		var cmd searchCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			err = &validation.Error{Fields: map[string]string{"action": "must be a JSON command"}}
			if !reject(ctx, rejected, err) {
				return
			}
			continue
		}
		if err := sc.apply(ctx, search, cmd); err != nil {
			if !reject(ctx, rejected, err) {
				return
			}
		}
	}
}

func reject(ctx context.Context, rejected chan<- ErrorResponse, err error) bool {
	_, code := statusFor(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}
	if verr, ok := err.(*validation.Error); ok {
		resp.Details = verr.Fields
	}
	select {
	case rejected <- resp:
		return true
	case <-ctx.Done():
		return false
	}
}

func (sc *SearchController) apply(ctx context.Context, search *screens.Search, cmd searchCommand) error {
	switch cmd.Action {
	case "text":
		search.SetText(cmd.Value)
	case "genre":
		search.ToggleGenre(cmd.Value)
	case "status":
		status, err := entities.ParseReadingStatus(cmd.Value)
		if err != nil {
			return fieldError("value", "must be one of: want_to_read, reading, read")
		}
		search.ToggleStatus(status)
	case "sort":
		field := query.Field(cmd.Value)
		if !query.SortableField(field) {
			return fieldError("value", "must be one of: created_at, title")
		}
		search.SortBy(field)
	case "direction":
		search.ToggleDirection()
	case "more":
		if err := search.LoadMore(ctx); err != nil && ctx.Err() == nil {
			sc.log.Warn("search load more failed", "error", err)
		}
	default:
		return fieldError("action", "must be one of: text, genre, status, sort, direction, more")
	}
	return nil
}

func (sc *SearchController) writeStates(ctx context.Context, conn *websocket.Conn, updates <-chan screens.State[screens.SearchData], rejected <-chan ErrorResponse) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(st); err != nil {
				return
			}
		case resp := <-rejected:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// selectionFromQuery reads q, genre, status, sort and dir.
func selectionFromQuery(c *gin.Context) (query.Selection, error) {
	sel := query.Selection{
		Text:      c.Query("q"),
		Genre:     c.Query("genre"),
		SortField: query.FieldCreatedAt,
	}
	fields := map[string]string{}

	if raw := c.Query("status"); raw != "" {
		status, err := entities.ParseReadingStatus(raw)
		if err != nil {
			fields["status"] = "must be one of: want_to_read, reading, read"
		}
		sel.Status = status
	}
	if raw := c.Query("sort"); raw != "" {
		sel.SortField = query.Field(raw)
		if !query.SortableField(sel.SortField) {
			fields["sort"] = "must be one of: created_at, title"
		}
	}
	if raw := c.Query("dir"); raw != "" {
		sel.Direction = query.Direction(raw)
		if !query.ValidDirection(sel.Direction) {
			fields["dir"] = "must be one of: asc, desc"
		}
	}

	if len(fields) > 0 {
		return query.Selection{}, &validation.Error{Fields: fields}
	}
	return sel.Normalized(), nil
}

func fieldError(field, msg string) error {
	return &validation.Error{Fields: map[string]string{field: msg}}
}
