package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/library/internal/audit"
	"github.com/mrlokans/library/internal/auth"
	"github.com/mrlokans/library/internal/database/books"
	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/query"
	"github.com/mrlokans/library/internal/screens"
	"github.com/mrlokans/library/internal/session"
	"github.com/mrlokans/library/internal/validation"
)

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`    // machine-readable error code
	Details any    `json:"details,omitempty"` // additional context (validation errors, etc.)
}

// SuccessResponse is a standard success response with optional data.
type SuccessResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// PaginatedResponse wraps offset-paginated data with metadata.
type PaginatedResponse struct {
	Data    any   `json:"data"`
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"has_more"`
}

// errorMapping is one row of the error to status table.
type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{query.ErrInvalidCursor, http.StatusBadRequest, "invalid_cursor"},
	{auth.ErrPasswordRequired, http.StatusBadRequest, "invalid_password"},
	{auth.ErrPasswordTooShort, http.StatusBadRequest, "invalid_password"},
	{auth.ErrPasswordTooLong, http.StatusBadRequest, "invalid_password"},
	{auth.ErrResetInvalid, http.StatusBadRequest, "reset_invalid"},
	{books.ErrNotFound, http.StatusNotFound, "not_found"},
	{screens.ErrBookNotLoaded, http.StatusNotFound, "not_found"},
	{auth.ErrUserNotFound, http.StatusUnauthorized, "user_not_found"},
	{auth.ErrInvalidPassword, http.StatusUnauthorized, "incorrect_password"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},
	{auth.ErrTokenExpired, http.StatusUnauthorized, "token_expired"},
	{auth.ErrAuthRequired, http.StatusUnauthorized, "auth_required"},
	{screens.ErrNoSession, http.StatusUnauthorized, "auth_required"},
	{auth.ErrUserExists, http.StatusConflict, "email_taken"},
	{auth.ErrAccountLocked, http.StatusTooManyRequests, "account_locked"},
	{auth.ErrResetThrottled, http.StatusTooManyRequests, "reset_throttled"},
}

// statusFor maps err to an HTTP status and error code.
func statusFor(err error) (int, string) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		return http.StatusBadRequest, "validation_failed"
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// respondErr writes err with its mapped status. The alert a screen showed for
// the error, if any, becomes the message.
func respondErr(c *gin.Context, log *slog.Logger, err error, alert *screens.Alert) {
	status, code := statusFor(err)

	resp := ErrorResponse{Error: err.Error(), Code: code}
	var verr *validation.Error
	if errors.As(err, &verr) {
		resp.Details = verr.Fields
	} else if alert != nil {
		resp.Details = alert
	}
	if status == http.StatusInternalServerError {
		log.Error("request failed", "path", c.FullPath(), "error", err)
		resp.Error = "internal server error"
	}
	if alert != nil && status != http.StatusInternalServerError {
		resp.Error = alert.Message
	}
	c.JSON(status, resp)
}

// respondBadRequest sends a 400 Bad Request response.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message, Code: "bad_request"})
}

// respondSuccess sends a 200 OK response with a message.
func respondSuccess(c *gin.Context, message string) {
	c.JSON(http.StatusOK, SuccessResponse{Message: message})
}

// --- Request context ---

// currentSession builds the screen session from the authenticated user.
func currentSession(c *gin.Context) session.Session {
	return session.Session{User: auth.GetUser(c).Profile()}
}

// actorFrom describes the caller for audit events.
func actorFrom(c *gin.Context) audit.Actor {
	return audit.Actor{
		UserID:    auth.GetUserID(c),
		RequestID: GetRequestID(c),
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// parseIntQuery reads a non-negative integer query parameter.
func parseIntQuery(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		respondBadRequest(c, "invalid "+name)
		return 0, false
	}
	return n, true
}

// noopAuditor is used when the router runs without an audit service.
type noopAuditor struct{}

func (noopAuditor) LogAuth(audit.Actor, string, bool) {}
func (noopAuditor) LogBook(audit.Actor, string, string, string, error) {}
func (noopAuditor) LogDelete(audit.Actor, string, string, string) {}
func (noopAuditor) LogProfile(audit.Actor, string, string) {}
func (noopAuditor) GetEvents(context.Context, uint, entities.AuditEventType, int, int) ([]entities.AuditEvent, int64, error) {
	return nil, 0, nil
}
