package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuvora/concierge/internal/config"
	"github.com/nuvora/concierge/internal/enrich"
	"github.com/nuvora/concierge/internal/kvstore"
	"github.com/nuvora/concierge/internal/orchestrator"
	"github.com/nuvora/concierge/internal/session"
)

type echoLLM struct{}

func (echoLLM) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "reply"},
		}},
	}, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testClient struct {
	t       *testing.T
	r       *gin.Engine
	cookies []*http.Cookie
}

func newTestClient(t *testing.T) *testClient {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{JWTSecret: "test-secret"}
	sessions := session.NewStore(kvstore.NewMemory(), session.Limits{})
	orch := orchestrator.New(sessions, enrich.NewPipeline(nil, nil, nil, nil), echoLLM{}, nil, orchestrator.Options{Model: "m"})
	return &testClient{t: t, r: NewRouter(cfg, sessions, orch)}
}

func (tc *testClient) do(method, path, contentType string, body []byte) (*httptest.ResponseRecorder, envelope) {
	tc.t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, ck := range tc.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	tc.r.ServeHTTP(w, req)

	if set := w.Result().Cookies(); len(set) > 0 {
		tc.cookies = set
	}
	var env envelope
	require.NoError(tc.t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func (tc *testClient) doJSON(method, path string, payload any) (*httptest.ResponseRecorder, envelope) {
	tc.t.Helper()
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		require.NoError(tc.t, err)
	}
	return tc.do(method, path, "application/json", body)
}

type sessionData struct {
	SessionID string `json:"session_id"`
	Threads   []struct {
		ID           string `json:"id"`
		Kind         string `json:"kind"`
		Title        string `json:"title"`
		Active       bool   `json:"active"`
		MessageCount int    `json:"message_count"`
	} `json:"threads"`
}

func TestPing(t *testing.T) {
	tc := newTestClient(t)
	w, env := tc.do(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.Code)
}

func TestStatsReportsStorageSize(t *testing.T) {
	tc := newTestClient(t)
	_, _ = tc.doJSON(http.MethodPost, "/session", nil)

	w, env := tc.do(http.MethodGet, "/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		StorageBytes int64 `json:"storage_bytes"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Positive(t, data.StorageBytes)
}

func TestUnknownRoute(t *testing.T) {
	tc := newTestClient(t)
	w, env := tc.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40400, env.Code)
}

func TestStartSessionIsStableAcrossRequests(t *testing.T) {
	tc := newTestClient(t)

	w, env := tc.doJSON(http.MethodPost, "/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var first sessionData
	require.NoError(t, json.Unmarshal(env.Data, &first))
	require.NotEmpty(t, first.SessionID)
	require.Len(t, first.Threads, 1)
	assert.Equal(t, "general", first.Threads[0].Kind)
	assert.True(t, first.Threads[0].Active)
	// seeded welcome message
	assert.Equal(t, 1, first.Threads[0].MessageCount)

	// the visitor cookie pins the same session on the next request
	_, env = tc.doJSON(http.MethodPost, "/session", nil)
	var second sessionData
	require.NoError(t, json.Unmarshal(env.Data, &second))
	assert.Equal(t, first.SessionID, second.SessionID)
}

func TestCreateAndActivateThread(t *testing.T) {
	tc := newTestClient(t)
	_, env := tc.doJSON(http.MethodPost, "/session", nil)
	var sd sessionData
	require.NoError(t, json.Unmarshal(env.Data, &sd))
	defaultID := sd.Threads[0].ID

	w, env := tc.doJSON(http.MethodPost, "/threads", map[string]string{"kind": "startup"})
	require.Equal(t, http.StatusOK, w.Code)
	var created struct {
		Thread session.Thread `json:"thread"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, session.KindStartup, created.Thread.Kind)
	assert.True(t, created.Thread.Active)

	// switching back deactivates the new thread
	w, env = tc.doJSON(http.MethodPost, "/threads/"+defaultID+"/activate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed sessionData
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	require.Len(t, listed.Threads, 2)
	for _, th := range listed.Threads {
		assert.Equal(t, th.ID == defaultID, th.Active)
	}
}

func TestSendMessageJSON(t *testing.T) {
	tc := newTestClient(t)
	_, env := tc.doJSON(http.MethodPost, "/session", nil)
	var sd sessionData
	require.NoError(t, json.Unmarshal(env.Data, &sd))

	w, env := tc.doJSON(http.MethodPost, "/messages", map[string]string{
		"thread_id": sd.Threads[0].ID,
		"message":   "hello",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var turn struct {
		UserMessage session.Message   `json:"user_message"`
		Messages    []session.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &turn))
	assert.Equal(t, "hello", turn.UserMessage.Content)
	require.Len(t, turn.Messages, 1)
	assert.Equal(t, "reply", turn.Messages[0].Content)
}

func TestSendMessageMultipart(t *testing.T) {
	tc := newTestClient(t)
	_, env := tc.doJSON(http.MethodPost, "/session", nil)
	var sd sessionData
	require.NoError(t, json.Unmarshal(env.Data, &sd))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("thread_id", sd.Threads[0].ID))
	require.NoError(t, mw.WriteField("message", "see attached"))
	part, err := mw.CreateFormFile("document", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("some notes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w, env := tc.do(http.MethodPost, "/messages", mw.FormDataContentType(), buf.Bytes())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.Code)
}

func TestSendMessageValidation(t *testing.T) {
	tc := newTestClient(t)
	_, env := tc.doJSON(http.MethodPost, "/session", nil)
	var sd sessionData
	require.NoError(t, json.Unmarshal(env.Data, &sd))

	// missing thread id
	w, e := tc.do(http.MethodPost, "/messages", "application/json", []byte(`{"message":"x"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 10001, e.Code)

	// empty turn
	w, e = tc.doJSON(http.MethodPost, "/messages", map[string]string{
		"thread_id": sd.Threads[0].ID,
		"message":   "   ",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 10003, e.Code)

	// unknown thread
	w, e = tc.doJSON(http.MethodPost, "/messages", map[string]string{
		"thread_id": "no-such-thread",
		"message":   "hi",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40401, e.Code)
}

func TestDeleteLastThreadRecreatesDefault(t *testing.T) {
	tc := newTestClient(t)
	_, env := tc.doJSON(http.MethodPost, "/session", nil)
	var sd sessionData
	require.NoError(t, json.Unmarshal(env.Data, &sd))

	w, env := tc.doJSON(http.MethodDelete, "/threads/"+sd.Threads[0].ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var listed sessionData
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	require.Len(t, listed.Threads, 1)
	assert.Equal(t, "general", listed.Threads[0].Kind)
	assert.NotEqual(t, sd.Threads[0].ID, listed.Threads[0].ID)
}

func TestClearSession(t *testing.T) {
	tc := newTestClient(t)
	_, env := tc.doJSON(http.MethodPost, "/session", nil)
	var sd sessionData
	require.NoError(t, json.Unmarshal(env.Data, &sd))

	_, _ = tc.doJSON(http.MethodPost, "/threads", map[string]string{"kind": "technical"})

	w, env := tc.doJSON(http.MethodPost, "/clear", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cleared sessionData
	require.NoError(t, json.Unmarshal(env.Data, &cleared))
	assert.Equal(t, sd.SessionID, cleared.SessionID)
	require.Len(t, cleared.Threads, 1)
	assert.Equal(t, "general", cleared.Threads[0].Kind)
}

func TestCloseThreadFarewell(t *testing.T) {
	tc := newTestClient(t)
	_, env := tc.doJSON(http.MethodPost, "/session", nil)
	var sd sessionData
	require.NoError(t, json.Unmarshal(env.Data, &sd))
	tid := sd.Threads[0].ID

	// one user message: closing stays silent
	_, _ = tc.doJSON(http.MethodPost, "/messages", map[string]string{"thread_id": tid, "message": "first"})
	_, env = tc.doJSON(http.MethodPost, "/threads/"+tid+"/close", nil)
	assert.Equal(t, "null", strings.TrimSpace(string(mustField(t, env.Data, "farewell"))))

	_, _ = tc.doJSON(http.MethodPost, "/messages", map[string]string{"thread_id": tid, "message": "second"})
	_, env = tc.doJSON(http.MethodPost, "/threads/"+tid+"/close", nil)
	var closed struct {
		Farewell *session.Message `json:"farewell"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &closed))
	require.NotNil(t, closed.Farewell)
	assert.Equal(t, session.RoleAssistant, closed.Farewell.Role)
}

func mustField(t *testing.T, data json.RawMessage, key string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &m))
	raw, ok := m[key]
	require.True(t, ok, "missing field %q", key)
	return raw
}
