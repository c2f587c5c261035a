package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	authdelivery "mailsync-backend/internal/auth/delivery"
	authdomain "mailsync-backend/internal/auth/domain"
	authrepo "mailsync-backend/internal/auth/repository"
	"mailsync-backend/internal/email/source"
	emailusecase "mailsync-backend/internal/email/usecase"
	"mailsync-backend/internal/insight/usecase"
	"mailsync-backend/pkg/ai"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T, completer ai.Completer) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := authrepo.NewMemoryUserRepository()
	user := &authdomain.User{Email: "alex@example.com", GoogleID: "g-1"}
	require.NoError(t, store.Create(context.Background(), user))

	emails := emailusecase.NewEmailUsecase(store, source.NewSampleSource(time.Now), "", nil)
	insight := usecase.NewInsightUsecase(emails, completer, nil, nil, nil)
	h := NewInsightHandler(insight)

	r := gin.New()
	g := r.Group("/api/ai", func(c *gin.Context) {
		authdelivery.SetUser(c, user)
		c.Next()
	})
	g.GET("/daily-digest", h.DailyDigest)
	g.GET("/email-clusters", h.EmailClusters)
	g.POST("/project-clusters", h.ProjectClusters)
	g.POST("/extract-topics", h.ExtractTopics)
	g.POST("/draft-reply", h.DraftReply)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestDailyDigest(t *testing.T) {
	completer := ai.CompleterFunc(func(ctx context.Context, req ai.CompletionRequest) (string, error) {
		switch {
		case req.Schema != nil:
			return `{"index": 1}`, nil
		case strings.HasPrefix(req.Prompt, "This email was picked"):
			return "It has a deadline. Reply today.", nil
		default:
			return "Worth a quick look.", nil
		}
	})
	r := setupRouter(t, completer)

	w := do(r, http.MethodGet, "/api/ai/daily-digest", "")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		ImportantHighlights []map[string]interface{} `json:"importantHighlights"`
		TopPriorityEmail    map[string]interface{}   `json:"topPriorityEmail"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.ImportantHighlights)
	assert.LessOrEqual(t, len(body.ImportantHighlights), 10)
	require.NotNil(t, body.TopPriorityEmail)
	assert.Equal(t, "msg-001", body.TopPriorityEmail["emailId"])
	assert.Equal(t, "It has a deadline. Reply today.", body.TopPriorityEmail["explanation"])
}

func TestDailyDigest_NullPriority(t *testing.T) {
	completer := ai.CompleterFunc(func(ctx context.Context, req ai.CompletionRequest) (string, error) {
		if req.Schema != nil {
			return "The one about the budget.", nil
		}
		return "Worth a quick look.", nil
	})
	r := setupRouter(t, completer)

	w := do(r, http.MethodGet, "/api/ai/daily-digest", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"topPriorityEmail":null`)
}

func TestEmailClusters_Graph(t *testing.T) {
	completer := ai.CompleterFunc(func(ctx context.Context, req ai.CompletionRequest) (string, error) {
		return `{"clusters":[
			{"name":"Launch","emailIndexes":[0,1],"summary":"s","replyStrategy":"r"},
			{"name":"Billing","emailIndexes":[2,500],"summary":"s","replyStrategy":"r"}
		]}`, nil
	})
	r := setupRouter(t, completer)

	w := do(r, http.MethodGet, "/api/ai/email-clusters", "")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Clusters []struct {
			ID           string `json:"id"`
			EmailIndexes []int  `json:"emailIndexes"`
		} `json:"clusters"`
		GraphData struct {
			Nodes []map[string]interface{} `json:"nodes"`
			Links []struct {
				Source string `json:"source"`
				Target string `json:"target"`
			} `json:"links"`
		} `json:"graphData"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Clusters, 2)
	assert.Equal(t, []int{2}, body.Clusters[1].EmailIndexes)
	assert.Len(t, body.GraphData.Nodes, 3)

	fromMe := 0
	for _, l := range body.GraphData.Links {
		if l.Source == "me" {
			fromMe++
		}
	}
	assert.Equal(t, 2, fromMe)
}

func TestBatchEndpoints_BadRequests(t *testing.T) {
	r := setupRouter(t, ai.CompleterFunc(func(ctx context.Context, req ai.CompletionRequest) (string, error) {
		return "", errors.New("should not be called")
	}))

	tests := []struct {
		path string
		body string
	}{
		{"/api/ai/project-clusters", `{"emails":`},
		{"/api/ai/project-clusters", `{}`},
		{"/api/ai/extract-topics", `not json`},
		{"/api/ai/extract-topics", `{"emails":"x"}`},
		{"/api/ai/draft-reply", `{}`},
		{"/api/ai/draft-reply", `{"email":[]}`},
	}

	for _, tt := range tests {
		w := do(r, http.MethodPost, tt.path, tt.body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "%s %s", tt.path, tt.body)
		assert.Contains(t, w.Body.String(), `"error"`)
	}
}

func TestBatchEndpoints_ProviderFailure(t *testing.T) {
	r := setupRouter(t, ai.CompleterFunc(func(ctx context.Context, req ai.CompletionRequest) (string, error) {
		return "", errors.New("connection refused")
	}))
	batch := `{"emails":[{"id":"a","from":"x@example.com","subject":"Hi","snippet":"hello"}]}`

	w := do(r, http.MethodPost, "/api/ai/project-clusters", batch)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"failed to cluster emails"}`, w.Body.String())

	w = do(r, http.MethodPost, "/api/ai/extract-topics", batch)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = do(r, http.MethodPost, "/api/ai/draft-reply", `{"email":{"id":"a","subject":"Hi"}}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestProjectClustersAndTopics(t *testing.T) {
	r := setupRouter(t, ai.CompleterFunc(func(ctx context.Context, req ai.CompletionRequest) (string, error) {
		if req.Schema.Name == "email_topics" {
			return `{"topics":[{"name":"Greetings","keywords":["hello"],"emailIndexes":[0,1]}]}`, nil
		}
		return `{"clusters":[{"name":"Greetings","emailIndexes":[0,1],"summary":"s","replyStrategy":"r"}]}`, nil
	}))
	batch := `{"emails":[
		{"id":"a","subject":"Hi","snippet":"hello","receivedAt":"2026-03-13T10:00:00Z"},
		{"id":"b","subject":"Hey","snippet":"hello again","receivedAt":"2026-03-14T10:00:00Z"}
	]}`

	w := do(r, http.MethodPost, "/api/ai/project-clusters", batch)
	require.Equal(t, http.StatusOK, w.Code)
	var clusters []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &clusters))
	require.Len(t, clusters, 1)
	assert.Equal(t, []interface{}{"a", "b"}, clusters[0]["emailIds"])

	w = do(r, http.MethodPost, "/api/ai/extract-topics", batch)
	require.Equal(t, http.StatusOK, w.Code)
	var topics struct {
		TopicData      []map[string]interface{} `json:"topicData"`
		TopicEvolution []map[string]interface{} `json:"topicEvolution"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &topics))
	require.Len(t, topics.TopicData, 1)
	assert.Len(t, topics.TopicEvolution, 2)

	w = do(r, http.MethodPost, "/api/ai/project-clusters", `{"emails":[]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestDraftReply(t *testing.T) {
	r := setupRouter(t, ai.CompleterFunc(func(ctx context.Context, req ai.CompletionRequest) (string, error) {
		assert.Contains(t, req.Prompt, "friendly tone")
		return "Sounds good!", nil
	}))

	w := do(r, http.MethodPost, "/api/ai/draft-reply", `{"email":{"id":"a","subject":"Lunch?"},"tone":"friendly"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"draft":"Sounds good!"}`, w.Body.String())
}
