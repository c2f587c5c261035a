package delivery

import (
	"net/http"

	authdelivery "mailsync-backend/internal/auth/delivery"
	insightdto "mailsync-backend/internal/insight/dto"
	"mailsync-backend/internal/insight/usecase"
	"mailsync-backend/pkg/apperror"

	"github.com/gin-gonic/gin"
)

type InsightHandler struct {
	insightUsecase usecase.InsightUsecase
}

func NewInsightHandler(insightUsecase usecase.InsightUsecase) *InsightHandler {
	return &InsightHandler{
		insightUsecase: insightUsecase,
	}
}

// DailyDigest handles GET /api/ai/daily-digest
func (h *InsightHandler) DailyDigest(c *gin.Context) {
	user := authdelivery.CurrentUser(c)

	digest, err := h.insightUsecase.DailyDigest(c.Request.Context(), user)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, digest)
}

// EmailClusters handles GET /api/ai/email-clusters
func (h *InsightHandler) EmailClusters(c *gin.Context) {
	user := authdelivery.CurrentUser(c)

	result, err := h.insightUsecase.EmailClusters(c.Request.Context(), user)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ProjectClusters handles POST /api/ai/project-clusters
func (h *InsightHandler) ProjectClusters(c *gin.Context) {
	var req insightdto.EmailBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.InvalidInput("body must be {\"emails\": [...]}"))
		return
	}

	clusters, err := h.insightUsecase.ProjectClusters(c.Request.Context(), req.Emails)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, clusters)
}

// ExtractTopics handles POST /api/ai/extract-topics
func (h *InsightHandler) ExtractTopics(c *gin.Context) {
	var req insightdto.EmailBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.InvalidInput("body must be {\"emails\": [...]}"))
		return
	}

	result, err := h.insightUsecase.ExtractTopics(c.Request.Context(), req.Emails)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// DraftReply handles POST /api/ai/draft-reply
func (h *InsightHandler) DraftReply(c *gin.Context) {
	var req insightdto.DraftReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.InvalidInput("body must include an email"))
		return
	}

	draft, err := h.insightUsecase.DraftReply(c.Request.Context(), req.Email, req.Tone)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, insightdto.DraftReplyResponse{Draft: draft})
}
