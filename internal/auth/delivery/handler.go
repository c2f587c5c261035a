package delivery

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	authdto "mailsync-backend/internal/auth/dto"
	"mailsync-backend/internal/auth/usecase"
	"mailsync-backend/pkg/apperror"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const stateTTL = 10 * time.Minute

type AuthHandler struct {
	authUsecase  usecase.AuthUsecase
	frontendURL  string
	sessionTTL   time.Duration
	cookieSecure bool
	log          *zap.Logger
}

func NewAuthHandler(authUsecase usecase.AuthUsecase, frontendURL string, sessionTTL time.Duration, cookieSecure bool, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{
		authUsecase:  authUsecase,
		frontendURL:  strings.TrimRight(frontendURL, "/"),
		sessionTTL:   sessionTTL,
		cookieSecure: cookieSecure,
		log:          log.Named("auth.http"),
	}
}

func (h *AuthHandler) setCookie(c *gin.Context, name, value string, maxAge time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, int(maxAge.Seconds()), "/", "", h.cookieSecure, true)
}

func (h *AuthHandler) clearCookie(c *gin.Context, name string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, "/", "", h.cookieSecure, true)
}

// GoogleSignIn handles POST /api/auth/google
func (h *AuthHandler) GoogleSignIn(c *gin.Context) {
	var req authdto.GoogleSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.InvalidInput("credential is required"))
		return
	}

	user, err := h.authUsecase.GoogleSignIn(c.Request.Context(), req.Credential)
	if err != nil {
		apperror.Respond(c, err)
		return
	}

	session, err := h.authUsecase.IssueSession(user)
	if err != nil {
		h.log.Error("failed to issue session", zap.Error(err))
		apperror.Respond(c, err)
		return
	}
	h.setCookie(c, SessionCookie, session, h.sessionTTL)

	authURL, state := h.authUsecase.AuthURL()
	h.setCookie(c, StateCookie, state, stateTTL)

	c.JSON(http.StatusOK, authdto.GoogleSignInResponse{User: user, AuthURL: authURL})
}

func (h *AuthHandler) redirect(c *gin.Context, ok bool) {
	q := url.Values{}
	if ok {
		q.Set("success", "true")
	} else {
		q.Set("error", "true")
	}
	c.Redirect(http.StatusFound, h.frontendURL+"/auth/callback?"+q.Encode())
}

// Callback handles GET /api/auth/callback. Every outcome is a redirect back to the frontend.
func (h *AuthHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")

	expected, _ := c.Cookie(StateCookie)
	h.clearCookie(c, StateCookie)

	if code == "" {
		h.log.Info("callback without code", zap.String("oauth_error", c.Query("error")))
		h.redirect(c, false)
		return
	}
	if state == "" || state != expected {
		h.log.Warn("oauth state mismatch")
		h.redirect(c, false)
		return
	}

	token := sessionToken(c)
	if token == "" {
		h.redirect(c, false)
		return
	}
	user, err := h.authUsecase.ValidateSession(c.Request.Context(), token)
	if err != nil {
		h.redirect(c, false)
		return
	}

	if _, err := h.authUsecase.HandleCallback(c.Request.Context(), user.ID, code); err != nil {
		h.log.Error("code exchange failed", zap.String("user_id", user.ID), zap.Error(err))
		h.redirect(c, false)
		return
	}
	h.redirect(c, true)
}

// Status handles GET /api/auth/status
func (h *AuthHandler) Status(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusOK, authdto.StatusResponse{Authenticated: false})
		return
	}
	c.JSON(http.StatusOK, authdto.StatusResponse{
		Authenticated: true,
		MailboxLinked: user.MailboxLinked(),
		User:          user,
	})
}

// Logout handles POST /api/auth/logout. With a valid session attached it also
// revokes every token issued to the user, bearer tokens included.
func (h *AuthHandler) Logout(c *gin.Context) {
	if user := CurrentUser(c); user != nil {
		if err := h.authUsecase.RevokeSessions(c.Request.Context(), user); err != nil {
			h.log.Error("session revocation failed", zap.String("user_id", user.ID), zap.Error(err))
			apperror.Respond(c, err)
			return
		}
	}

	h.clearCookie(c, SessionCookie)
	h.clearCookie(c, StateCookie)
	c.JSON(http.StatusOK, gin.H{"message": "logged out successfully"})
}
