package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerylCAtieno/market-research-agent/internal/config"
	"github.com/BerylCAtieno/market-research-agent/internal/gateway"
)

type scriptedClient struct {
	replies []string
	calls   int
}

func (s *scriptedClient) Invoke(ctx context.Context, req gateway.Request) (*gateway.Response, error) {
	s.calls++
	if s.calls > len(s.replies) {
		return nil, errors.New("backend unavailable")
	}
	return &gateway.Response{Content: s.replies[s.calls-1], Tokens: 10}, nil
}

func (s *scriptedClient) ValidateCredential(ctx context.Context) (bool, string) { return true, "ok" }
func (s *scriptedClient) Close() error                                          { return nil }

const (
	personasReply   = `{"personas": [{"name": "Maya Chen", "age": 31, "occupation": "Designer"}]}`
	transcriptReply = "Moderator: Would you use this?\nMaya Chen: I love it."
	reportReply     = `{"emotional_tone": {"positive": 0.8}, "emotional_summary": "Upbeat.",
		"themes": {"Ease of use": 8, "Price": 5}, "theme_details": {"Ease of use": "Simple.", "Price": "Fair."},
		"objections": [], "praise": ["Simple"], "pricing": {"sensitivity": 0.3, "min_price": 8, "max_price": 20, "notes": ""},
		"participant_alignment": {"Maya Chen": "supportive"}, "summary": "Strong fit.", "recommendations": ["Ship it"]}`
)

func newRouter(client *scriptedClient) *gin.Engine {
	gin.SetMode(gin.TestMode)
	dial := func(ctx context.Context, cred gateway.Credential) (gateway.Client, error) {
		return client, nil
	}
	cfg := config.Default().Research
	cfg.PersonaCount = 1
	h := NewA2AHandler(dial, cfg, nil)

	r := gin.New()
	r.GET("/.well-known/agent.json", h.ServeAgentCard)
	r.POST("/a2a/research", h.HandleResearch)
	return r
}

func rpcBody(method string, parts ...map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      "task-1",
		"method":  method,
		"params": map[string]interface{}{
			"message": map[string]interface{}{"kind": "message", "role": "user", "parts": parts},
		},
	}
}

var researchData = map[string]interface{}{
	"kind": "data",
	"data": map[string]interface{}{
		"product_concept":    "a subscription tool for invoice automation",
		"target_segment":     "urban freelance designers",
		"research_questions": []string{"Would you use this?"},
	},
}

func post(t *testing.T, r *gin.Engine, body interface{}, key string) JSONRPCResponse {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/a2a/research", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(APIKeyHeader, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp JSONRPCResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func taskOf(t *testing.T, resp JSONRPCResponse) TaskResult {
	t.Helper()
	require.Nil(t, resp.Error)
	b, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var task TaskResult
	require.NoError(t, json.Unmarshal(b, &task))
	return task
}

func artifactNames(task TaskResult) []string {
	var names []string
	for _, a := range task.Artifacts {
		names = append(names, a.Name)
	}
	return names
}

func TestHandleResearch(t *testing.T) {
	client := &scriptedClient{replies: []string{personasReply, transcriptReply, reportReply}}
	r := newRouter(client)

	task := taskOf(t, post(t, r, rpcBody("message/send", researchData), "key"))
	assert.Equal(t, "task-1", task.ID)
	assert.Equal(t, StateCompleted, task.Status.State)
	assert.Equal(t, []string{"Personas", "Focus Group Transcript", "Analysis Report", "Token Count"}, artifactNames(task))

	require.NotNil(t, task.Status.Message)
	text := task.Status.Message.Parts[0].Text
	assert.Contains(t, text, "Maya Chen, 31, Designer")
	assert.Contains(t, text, "- Ease of use (8/10)\n- Price (5/10)")
	assert.Contains(t, text, "8.00 to 20.00")
	assert.Equal(t, 3, client.calls)
}

func TestHandleResearchTextJSON(t *testing.T) {
	client := &scriptedClient{replies: []string{personasReply, transcriptReply, reportReply}}
	r := newRouter(client)
	b, _ := json.Marshal(researchData["data"])

	task := taskOf(t, post(t, r, rpcBody("agent/task", map[string]interface{}{"kind": "text", "text": string(b)}), "key"))
	assert.Equal(t, StateCompleted, task.Status.State)
}

func TestHandleResearchPartialFailure(t *testing.T) {
	client := &scriptedClient{replies: []string{personasReply}}
	r := newRouter(client)

	task := taskOf(t, post(t, r, rpcBody("message/send", researchData), "key"))
	assert.Equal(t, StateFailed, task.Status.State)
	assert.Contains(t, task.Status.Message.Parts[0].Text, "focus group")
	assert.Equal(t, []string{"Personas", "Token Count"}, artifactNames(task))
}

func TestHandleResearchRejectsBadInput(t *testing.T) {
	client := &scriptedClient{}
	r := newRouter(client)

	task := taskOf(t, post(t, r, rpcBody("message/send", map[string]interface{}{"kind": "text", "text": "hello"}), "key"))
	assert.Equal(t, StateFailed, task.Status.State)

	task = taskOf(t, post(t, r, rpcBody("message/send", researchData), ""))
	assert.Equal(t, StateFailed, task.Status.State)
	assert.Contains(t, task.Status.Message.Parts[0].Text, APIKeyHeader)
	assert.Zero(t, client.calls)
}

func TestHandleResearchRPCErrors(t *testing.T) {
	r := newRouter(&scriptedClient{})

	resp := post(t, r, rpcBody("tasks/cancel", researchData), "key")
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)

	body := rpcBody("message/send", researchData)
	body["jsonrpc"] = "1.0"
	resp = post(t, r, body, "key")
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidRequest, resp.Error.Code)

	resp = post(t, r, map[string]interface{}{"foo": "bar"}, "key")
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeParseError, resp.Error.Code)
}

func TestServeAgentCard(t *testing.T) {
	r := newRouter(&scriptedClient{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/.well-known/agent.json", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var card map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &card))
	for _, field := range []string{"name", "description", "version", "capabilities", "endpoints"} {
		assert.Contains(t, card, field)
	}
}
