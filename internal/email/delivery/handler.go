package delivery

import (
	"net/http"
	"strconv"

	authdelivery "mailsync-backend/internal/auth/delivery"
	emaildto "mailsync-backend/internal/email/dto"
	"mailsync-backend/internal/email/usecase"
	"mailsync-backend/pkg/apperror"

	"github.com/gin-gonic/gin"
)

type EmailHandler struct {
	emailUsecase usecase.EmailUsecase
}

func NewEmailHandler(emailUsecase usecase.EmailUsecase) *EmailHandler {
	return &EmailHandler{
		emailUsecase: emailUsecase,
	}
}

func queryInt(c *gin.Context, key string) int {
	if raw := c.Query(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			return parsed
		}
	}
	return 0
}

// ListMessages handles GET /api/gmail/messages?page=&pageSize=
func (h *EmailHandler) ListMessages(c *gin.Context) {
	user := authdelivery.CurrentUser(c)

	result, err := h.emailUsecase.ListMessages(c.Request.Context(), user, queryInt(c, "page"), queryInt(c, "pageSize"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetMessage handles GET /api/gmail/messages/:id
func (h *EmailHandler) GetMessage(c *gin.Context) {
	user := authdelivery.CurrentUser(c)

	email, err := h.emailUsecase.GetMessage(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, email)
}

// SetStar handles POST /api/gmail/messages/:id/star
func (h *EmailHandler) SetStar(c *gin.Context) {
	user := authdelivery.CurrentUser(c)

	var req emaildto.StarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.InvalidInput("body must be {\"star\": true|false}"))
		return
	}

	email, err := h.emailUsecase.SetStarred(c.Request.Context(), user, c.Param("id"), *req.Star)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, email)
}

// ListLabels handles GET /api/gmail/labels
func (h *EmailHandler) ListLabels(c *gin.Context) {
	user := authdelivery.CurrentUser(c)

	labels, err := h.emailUsecase.ListLabels(c.Request.Context(), user)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, emaildto.LabelsResponse{Labels: labels})
}

// SyncStatus handles GET /api/gmail/sync/status
func (h *EmailHandler) SyncStatus(c *gin.Context) {
	user := authdelivery.CurrentUser(c)

	status, err := h.emailUsecase.SyncStatus(c.Request.Context(), user)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Storage handles GET /api/gmail/storage
func (h *EmailHandler) Storage(c *gin.Context) {
	user := authdelivery.CurrentUser(c)

	info, err := h.emailUsecase.Storage(c.Request.Context(), user)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}
