package api

import (
	"net/http"

	"mailsync-backend/internal/auth/delivery"
	authUsecase "mailsync-backend/internal/auth/usecase"
	emailDelivery "mailsync-backend/internal/email/delivery"
	emailUsecase "mailsync-backend/internal/email/usecase"
	insightDelivery "mailsync-backend/internal/insight/delivery"
	insightUsecase "mailsync-backend/internal/insight/usecase"
	"mailsync-backend/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func SetupRoutes(r *gin.Engine, authUsecase authUsecase.AuthUsecase, emailUsecase emailUsecase.EmailUsecase, insightUsecase insightUsecase.InsightUsecase, cfg *config.Config, log *zap.Logger) {
	authHandler := delivery.NewAuthHandler(authUsecase, cfg.FrontendURL, cfg.SessionTTL, cfg.CookieSecure, log)
	emailHandler := emailDelivery.NewEmailHandler(emailUsecase)
	insightHandler := insightDelivery.NewInsightHandler(insightUsecase)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
				"source": emailUsecase.SourceName(),
			})
		})

		auth := api.Group("/auth")
		{
			auth.POST("/google", authHandler.GoogleSignIn)
			auth.GET("/callback", authHandler.Callback)
			auth.GET("/status", delivery.OptionalAuth(authUsecase), authHandler.Status)
			auth.POST("/logout", delivery.OptionalAuth(authUsecase), authHandler.Logout)
		}

		// Mailbox routes (protected)
		gmail := api.Group("/gmail")
		gmail.Use(delivery.AuthMiddleware(authUsecase))
		{
			gmail.GET("/messages", emailHandler.ListMessages)
			gmail.GET("/messages/:id", emailHandler.GetMessage)
			gmail.POST("/messages/:id/star", emailHandler.SetStar)
			gmail.GET("/labels", emailHandler.ListLabels)
			gmail.GET("/sync/status", emailHandler.SyncStatus)
			gmail.GET("/storage", emailHandler.Storage)
		}

		// AI routes (protected)
		aiGroup := api.Group("/ai")
		aiGroup.Use(delivery.AuthMiddleware(authUsecase))
		{
			aiGroup.GET("/daily-digest", insightHandler.DailyDigest)
			aiGroup.GET("/email-clusters", insightHandler.EmailClusters)
			aiGroup.POST("/project-clusters", insightHandler.ProjectClusters)
			aiGroup.POST("/extract-topics", insightHandler.ExtractTopics)
			aiGroup.POST("/draft-reply", insightHandler.DraftReply)
		}

		// Runtime configuration (protected)
		settings := api.Group("/settings")
		settings.Use(delivery.AuthMiddleware(authUsecase))
		{
			settings.GET("/ai", GetAISettings)
			settings.PUT("/ai", UpdateAISettings)
			settings.POST("/ai/ollama/test", TestOllamaConnection)
		}
	}
}
