package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/mrlokans/library/internal/auth"
	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/screens"
)

// AccountController serves the auth flow: sign-up, sign-in, sign-out,
// password reset and API tokens.
type AccountController struct {
	deps     screens.Deps
	service  *auth.Service
	sessions *auth.SessionManager
	limiter  *auth.RateLimiter
	auditor  Auditor
	log      *slog.Logger
}

func NewAccountController(deps screens.Deps, service *auth.Service, sessions *auth.SessionManager, limiter *auth.RateLimiter, auditor Auditor, log *slog.Logger) *AccountController {
	return &AccountController{
		deps:     deps,
		service:  service,
		sessions: sessions,
		limiter:  limiter,
		auditor:  auditor,
		log:      log,
	}
}

type accountResponse struct {
	screens.State[screens.AccountData]
	Token string `json:"token,omitempty"`
}

// POST /api/auth/register
func (ac *AccountController) Register(c *gin.Context) {
	var in screens.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	acct := screens.NewAccount(ac.deps)
	user, err := acct.Register(c.Request.Context(), in)
	if err != nil {
		respondErr(c, ac.log, err, acct.State().Alert)
		return
	}
	ac.signIn(c, acct, user, "register", http.StatusCreated)
}

// POST /api/auth/login
//
// The rate limiter middleware has already read the body, so it is bound from
// gin's cache.
func (ac *AccountController) Login(c *gin.Context) {
	var in screens.LoginInput
	if err := c.ShouldBindBodyWith(&in, binding.JSON); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	acct := screens.NewAccount(ac.deps)
	user, err := acct.Login(c.Request.Context(), in)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) || errors.Is(err, auth.ErrInvalidPassword) {
			ac.auditor.LogAuth(actorFrom(c), "login", false)
			if ac.limiter != nil {
				if locked, retryAfter := ac.limiter.RecordFailure(c.ClientIP(), in.Email); locked {
					c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
				}
			}
		}
		respondErr(c, ac.log, err, acct.State().Alert)
		return
	}

	if ac.limiter != nil {
		ac.limiter.RecordSuccess(c.ClientIP(), in.Email)
	}
	ac.signIn(c, acct, user, "login", http.StatusOK)
}

// signIn starts a cookie session, or hands out a bearer token when the
// server runs without sessions.
func (ac *AccountController) signIn(c *gin.Context, acct *screens.Account, user *entities.User, action string, status int) {
	resp := accountResponse{State: acct.State()}

	if ac.sessions != nil {
		if err := ac.sessions.CreateSession(c.Request, user); err != nil {
			respondErr(c, ac.log, err, nil)
			return
		}
	} else {
		token, err := ac.service.GenerateToken(c.Request.Context(), user.ID)
		if err != nil {
			respondErr(c, ac.log, err, nil)
			return
		}
		resp.Token = token
	}

	actor := actorFrom(c)
	actor.UserID = user.ID
	ac.auditor.LogAuth(actor, action, true)
	c.JSON(status, resp)
}

// POST /api/auth/logout
func (ac *AccountController) Logout(c *gin.Context) {
	profile := screens.NewProfile(ac.deps, currentSession(c))
	if err := profile.SignOut(c.Request.Context()); err != nil {
		respondErr(c, ac.log, err, profile.State().Alert)
		return
	}
	if ac.sessions != nil {
		if err := ac.sessions.DestroySession(c.Request); err != nil {
			ac.log.Warn("failed to destroy session", "error", err)
		}
	}
	ac.auditor.LogAuth(actorFrom(c), "logout", true)
	c.JSON(http.StatusOK, profile.State())
}

// POST /api/auth/password-reset
//
// Answers the same way whether or not the email belongs to an account.
func (ac *AccountController) RequestReset(c *gin.Context) {
	var in screens.ResetRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	acct := screens.NewAccount(ac.deps)
	if err := acct.RequestReset(c.Request.Context(), in); err != nil {
		respondErr(c, ac.log, err, acct.State().Alert)
		return
	}
	c.JSON(http.StatusAccepted, acct.State())
}

// POST /api/auth/password-reset/confirm
func (ac *AccountController) ConfirmReset(c *gin.Context) {
	var in screens.ResetConfirmInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	acct := screens.NewAccount(ac.deps)
	if err := acct.ConfirmReset(c.Request.Context(), in); err != nil {
		respondErr(c, ac.log, err, acct.State().Alert)
		return
	}
	ac.auditor.LogAuth(actorFrom(c), "password_reset", true)
	c.JSON(http.StatusOK, acct.State())
}

// POST /api/auth/token
func (ac *AccountController) GenerateToken(c *gin.Context) {
	token, err := ac.service.GenerateToken(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		respondErr(c, ac.log, err, nil)
		return
	}
	ac.auditor.LogAuth(actorFrom(c), "token_generate", true)
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// DELETE /api/auth/token
func (ac *AccountController) RevokeToken(c *gin.Context) {
	if err := ac.service.RevokeToken(c.Request.Context(), auth.GetUserID(c)); err != nil {
		respondErr(c, ac.log, err, nil)
		return
	}
	ac.auditor.LogAuth(actorFrom(c), "token_revoke", true)
	respondSuccess(c, "token revoked")
}
