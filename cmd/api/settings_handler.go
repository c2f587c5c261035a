package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	insightusecase "mailsync-backend/internal/insight/usecase"
	"mailsync-backend/pkg/ai"
	"mailsync-backend/pkg/apperror"
	"mailsync-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

const maxBatchEmails = 100

// RuntimeConfig holds the AI settings that can change without a restart
type RuntimeConfig struct {
	OpenAIModel      string `json:"openaiModel"`
	OllamaBaseURL    string `json:"ollamaBaseUrl"`
	OllamaModel      string `json:"ollamaModel"`
	DigestLookback   string `json:"digestLookback"`
	DigestMaxEmails  int    `json:"digestMaxEmails"`
	ClusterMaxEmails int    `json:"clusterMaxEmails"`
}

var (
	runtimeConfig     RuntimeConfig
	digestLookback    time.Duration
	aiConcurrency     int
	aiCallTimeout     time.Duration
	runtimeConfigLock sync.RWMutex
)

// InitRuntimeConfig seeds the runtime settings from static config
func InitRuntimeConfig(cfg *config.Config) {
	runtimeConfigLock.Lock()
	defer runtimeConfigLock.Unlock()
	runtimeConfig = RuntimeConfig{
		OpenAIModel:      cfg.OpenAIModel,
		OllamaBaseURL:    cfg.OllamaBaseURL,
		OllamaModel:      cfg.OllamaModel,
		DigestLookback:   cfg.DigestLookback.String(),
		DigestMaxEmails:  cfg.DigestMaxEmails,
		ClusterMaxEmails: cfg.ClusterMaxEmails,
	}
	digestLookback = cfg.DigestLookback
	aiConcurrency = cfg.AIConcurrency
	aiCallTimeout = cfg.AICallTimeout
}

func GetRuntimeOpenAIModel() string {
	runtimeConfigLock.RLock()
	defer runtimeConfigLock.RUnlock()
	return runtimeConfig.OpenAIModel
}

func GetRuntimeOllamaBaseURL() string {
	runtimeConfigLock.RLock()
	defer runtimeConfigLock.RUnlock()
	return runtimeConfig.OllamaBaseURL
}

func GetRuntimeOllamaModel() string {
	runtimeConfigLock.RLock()
	defer runtimeConfigLock.RUnlock()
	return runtimeConfig.OllamaModel
}

// GetRuntimeInsightSettings returns the batching knobs for the AI features
func GetRuntimeInsightSettings() insightusecase.Settings {
	runtimeConfigLock.RLock()
	defer runtimeConfigLock.RUnlock()
	return insightusecase.Settings{
		DigestLookback:   digestLookback,
		DigestMaxEmails:  runtimeConfig.DigestMaxEmails,
		ClusterMaxEmails: runtimeConfig.ClusterMaxEmails,
		Concurrency:      aiConcurrency,
		CallTimeout:      aiCallTimeout,
	}
}

func snapshotRuntimeConfig() RuntimeConfig {
	runtimeConfigLock.RLock()
	defer runtimeConfigLock.RUnlock()
	return runtimeConfig
}

// UpdateAISettingsRequest is a partial update; omitted fields keep their value
type UpdateAISettingsRequest struct {
	OpenAIModel      *string `json:"openaiModel"`
	OllamaBaseURL    *string `json:"ollamaBaseUrl"`
	OllamaModel      *string `json:"ollamaModel"`
	DigestLookback   *string `json:"digestLookback"`
	DigestMaxEmails  *int    `json:"digestMaxEmails"`
	ClusterMaxEmails *int    `json:"clusterMaxEmails"`
}

// GetAISettings handles GET /api/settings/ai
func GetAISettings(c *gin.Context) {
	c.JSON(http.StatusOK, snapshotRuntimeConfig())
}

// UpdateAISettings handles PUT /api/settings/ai
func UpdateAISettings(c *gin.Context) {
	var req UpdateAISettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.InvalidInput("invalid settings body"))
		return
	}

	var lookback time.Duration
	if req.DigestLookback != nil {
		parsed, err := time.ParseDuration(*req.DigestLookback)
		if err != nil || parsed <= 0 {
			apperror.Respond(c, apperror.InvalidInput("digestLookback must be a positive duration such as \"24h\""))
			return
		}
		lookback = parsed
	}
	for _, n := range []*int{req.DigestMaxEmails, req.ClusterMaxEmails} {
		if n != nil && (*n < 1 || *n > maxBatchEmails) {
			apperror.Respond(c, apperror.InvalidInput("batch sizes must be between 1 and 100"))
			return
		}
	}

	runtimeConfigLock.Lock()
	if req.OpenAIModel != nil && *req.OpenAIModel != "" {
		runtimeConfig.OpenAIModel = *req.OpenAIModel
	}
	if req.OllamaBaseURL != nil && *req.OllamaBaseURL != "" {
		runtimeConfig.OllamaBaseURL = *req.OllamaBaseURL
	}
	if req.OllamaModel != nil && *req.OllamaModel != "" {
		runtimeConfig.OllamaModel = *req.OllamaModel
	}
	if req.DigestLookback != nil {
		digestLookback = lookback
		runtimeConfig.DigestLookback = lookback.String()
	}
	if req.DigestMaxEmails != nil {
		runtimeConfig.DigestMaxEmails = *req.DigestMaxEmails
	}
	if req.ClusterMaxEmails != nil {
		runtimeConfig.ClusterMaxEmails = *req.ClusterMaxEmails
	}
	updated := runtimeConfig
	runtimeConfigLock.Unlock()

	c.JSON(http.StatusOK, updated)
}

// TestOllamaConnection handles POST /api/settings/ai/ollama/test. It pings the
// configured URL only.
func TestOllamaConnection(c *gin.Context) {
	baseURL := GetRuntimeOllamaBaseURL()

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := ai.NewOllamaService(baseURL, "").Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"connected": false,
			"error":     err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"connected":     true,
		"ollamaBaseUrl": baseURL,
	})
}
