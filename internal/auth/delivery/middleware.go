package delivery

import (
	"strings"

	authdomain "mailsync-backend/internal/auth/domain"
	"mailsync-backend/internal/auth/usecase"
	"mailsync-backend/pkg/apperror"

	"github.com/gin-gonic/gin"
)

const (
	SessionCookie = "mailsync_session"
	StateCookie   = "mailsync_oauth_state"

	userKey = "user"
)

// sessionToken reads the session cookie, then falls back to an Authorization: Bearer header.
func sessionToken(c *gin.Context) string {
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie
	}

	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func AuthMiddleware(authUsecase usecase.AuthUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			apperror.Respond(c, apperror.Unauthorized("authentication required"))
			c.Abort()
			return
		}

		user, err := authUsecase.ValidateSession(c.Request.Context(), token)
		if err != nil {
			apperror.Respond(c, err)
			c.Abort()
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// OptionalAuth attaches the user when a valid session is present and never rejects the request.
func OptionalAuth(authUsecase usecase.AuthUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := sessionToken(c); token != "" {
			if user, err := authUsecase.ValidateSession(c.Request.Context(), token); err == nil {
				c.Set(userKey, user)
			}
		}
		c.Next()
	}
}

// CurrentUser returns the user set by AuthMiddleware or OptionalAuth, or nil.
func CurrentUser(c *gin.Context) *authdomain.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*authdomain.User)
	return user
}

// SetUser is used by tests and by handlers that establish a session mid-request.
func SetUser(c *gin.Context, user *authdomain.User) {
	c.Set(userKey, user)
}
