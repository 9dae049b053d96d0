package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/inbox/internal/adapters/sqlite"
	"github.com/example/inbox/internal/app"
	"github.com/example/inbox/internal/db"
	"github.com/example/inbox/internal/metrics"
	"github.com/example/inbox/internal/ports/primary"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	server   *Server
	registry *prometheus.Registry
	metrics  *metrics.HTTPMetrics
}

func setupTestServer(t *testing.T, rps float64, burst int) *testServer {
	t.Helper()

	conn, err := db.Open(filepath.Join(t.TempDir(), "inbox.db"))
	require.NoError(t, err)
	require.NoError(t, db.InitSchema(conn))
	t.Cleanup(func() { conn.Close() })

	reg := prometheus.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(reg)
	svc := app.NewConversationService(
		sqlite.NewConversationRepository(conn),
		metrics.NewConversationMetrics(reg),
		nil,
		app.RetryPolicy{Attempts: 3, Backoff: time.Millisecond},
	)

	server := NewServer(Config{
		Service:     svc,
		Gatherer:    reg,
		Metrics:     httpMetrics,
		UnreadRPS:   rps,
		UnreadBurst: burst,
	})
	t.Cleanup(server.Close)

	return &testServer{server: server, registry: reg, metrics: httpMetrics}
}

func (s *testServer) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(IdentityHeader, user)
	}

	w := httptest.NewRecorder()
	s.server.Engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

func TestHandlers_Health(t *testing.T) {
	s := setupTestServer(t, 0, 0)

	w := s.do(t, http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHandlers_RequestIDPropagates(t *testing.T) {
	s := setupTestServer(t, 0, 0)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	s.server.Engine.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}

func TestHandlers_MissingIdentity(t *testing.T) {
	s := setupTestServer(t, 0, 0)

	for _, user := range []string{"", "   "} {
		w := s.do(t, http.MethodGet, "/v1/unread", user, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "MISSING_IDENTITY", decode[ErrorResponse](t, w).Code)
	}
}

func TestHandlers_ConversationFlow(t *testing.T) {
	s := setupTestServer(t, 100, 100)

	// alice contacts bob
	w := s.do(t, http.MethodPost, "/v1/conversations", "alice", StartConversationRequest{Recipient: "bob", Content: "hello"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode[primary.StartAndSendResponse](t, w)
	assert.True(t, first.Created)
	assert.Equal(t, "hello", first.Message.Content)
	convID := first.ConversationID

	w = s.do(t, http.MethodPost, "/v1/conversations/"+convID+"/messages", "alice", SendMessageRequest{Content: "how are you"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 2, decode[primary.Message](t, w).Seq)

	// find-or-create returns the same conversation
	w = s.do(t, http.MethodPost, "/v1/conversations", "bob", StartConversationRequest{Recipient: "alice"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	found := decode[primary.StartConversationResponse](t, w)
	assert.False(t, found.Created)
	assert.Equal(t, convID, found.Conversation.ID)
	assert.Len(t, found.Conversation.Messages, 2)
	require.NotNil(t, found.Conversation.LastMessage)
	assert.Equal(t, "how are you", found.Conversation.LastMessage.Content)
	assert.Equal(t, 2, found.Conversation.UnreadCount["bob"])
	assert.Equal(t, 0, found.Conversation.UnreadCount["alice"])

	w = s.do(t, http.MethodGet, "/v1/unread", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, UnreadResponse{User: "bob", Total: 2}, decode[UnreadResponse](t, w))

	// bob opens it
	w = s.do(t, http.MethodGet, "/v1/conversations/"+convID, "bob", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	opened := decode[primary.Conversation](t, w)
	assert.Equal(t, 0, opened.UnreadCount["bob"])
	for _, m := range opened.Messages {
		assert.True(t, m.Read, "message %s", m.ID)
	}

	w = s.do(t, http.MethodGet, "/v1/unread", "bob", nil)
	assert.Equal(t, 0, decode[UnreadResponse](t, w).Total)

	// listing
	w = s.do(t, http.MethodGet, "/v1/conversations", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[ListConversationsResponse](t, w)
	require.Len(t, list.Conversations, 1)
	assert.Equal(t, convID, list.Conversations[0].ID)

	// delete, then a fresh conversation
	w = s.do(t, http.MethodDelete, "/v1/conversations/"+convID, "alice", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodPost, "/v1/conversations", "alice", StartConversationRequest{Recipient: "bob"})
	require.Equal(t, http.StatusCreated, w.Code)
	fresh := decode[primary.StartConversationResponse](t, w)
	assert.NotEqual(t, convID, fresh.Conversation.ID)
	assert.Empty(t, fresh.Conversation.Messages)
}

func TestHandlers_ErrorMapping(t *testing.T) {
	s := setupTestServer(t, 100, 100)

	w := s.do(t, http.MethodPost, "/v1/conversations", "alice", StartConversationRequest{Recipient: "bob"})
	require.Equal(t, http.StatusCreated, w.Code)
	convID := decode[primary.StartConversationResponse](t, w).Conversation.ID

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   any
		status int
		code   string
	}{
		{
			name:   "self messaging",
			method: http.MethodPost, path: "/v1/conversations", user: "alice",
			body:   StartConversationRequest{Recipient: "alice"},
			status: http.StatusBadRequest, code: "INVALID_INPUT",
		},
		{
			name:   "recipient with inner space",
			method: http.MethodPost, path: "/v1/conversations", user: "carol",
			body:   StartConversationRequest{Recipient: "alice bob"},
			status: http.StatusBadRequest, code: "INVALID_INPUT",
		},
		{
			name:   "recipient with inner space and first message",
			method: http.MethodPost, path: "/v1/conversations", user: "carol",
			body:   StartConversationRequest{Recipient: "alice bob", Content: "hi"},
			status: http.StatusBadRequest, code: "INVALID_INPUT",
		},
		{
			name:   "self with trailing space",
			method: http.MethodPost, path: "/v1/conversations", user: "alice",
			body:   StartConversationRequest{Recipient: "alice "},
			status: http.StatusBadRequest, code: "INVALID_INPUT",
		},
		{
			name:   "whitespace content",
			method: http.MethodPost, path: "/v1/conversations/" + convID + "/messages", user: "alice",
			body:   SendMessageRequest{Content: "   "},
			status: http.StatusBadRequest, code: "INVALID_INPUT",
		},
		{
			name:   "non-participant send",
			method: http.MethodPost, path: "/v1/conversations/" + convID + "/messages", user: "carol",
			body:   SendMessageRequest{Content: "hi"},
			status: http.StatusForbidden, code: "NOT_A_PARTICIPANT",
		},
		{
			name:   "non-participant open",
			method: http.MethodGet, path: "/v1/conversations/" + convID, user: "carol",
			status: http.StatusNotFound, code: "NOT_FOUND",
		},
		{
			name:   "non-participant delete",
			method: http.MethodDelete, path: "/v1/conversations/" + convID, user: "carol",
			status: http.StatusNotFound, code: "NOT_FOUND",
		},
		{
			name:   "missing conversation",
			method: http.MethodGet, path: "/v1/conversations/CONV-999", user: "alice",
			status: http.StatusNotFound, code: "NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decode[ErrorResponse](t, w).Code)
		})
	}
}

func TestHandlers_ValidationErrors(t *testing.T) {
	s := setupTestServer(t, 100, 100)

	w := s.do(t, http.MethodPost, "/v1/conversations", "alice", map[string]string{"topic": "listing-1"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode[ErrorResponse](t, w)
	assert.Equal(t, "INVALID_REQUEST", resp.Code)
	assert.Equal(t, "required", resp.Fields["recipient"])

	w = s.do(t, http.MethodPost, "/v1/conversations", "alice", StartConversationRequest{
		Recipient: "bob",
		Content:   strings.Repeat("x", 4001),
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "max=4000", decode[ErrorResponse](t, w).Fields["content"])

	w = s.do(t, http.MethodGet, "/v1/conversations?limit=0", "alice", nil)
	assert.Equal(t, http.StatusOK, w.Code, "zero limit means default")

	w = s.do(t, http.MethodGet, "/v1/conversations?limit=1000", "alice", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "max=200", decode[ErrorResponse](t, w).Fields["limit"])
}

func TestHandlers_UnreadRateLimited(t *testing.T) {
	s := setupTestServer(t, 0.001, 2)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/v1/unread", "bob", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/v1/unread", "bob", nil).Code)

	w := s.do(t, http.MethodGet, "/v1/unread", "bob", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", decode[ErrorResponse](t, w).Code)

	// other identities have their own bucket
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/v1/unread", "alice", nil).Code)

	// other routes are not limited
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/v1/conversations", "bob", nil).Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.RateLimited.WithLabelValues("/v1/unread")))
}

func TestHandlers_MetricsEndpoint(t *testing.T) {
	s := setupTestServer(t, 100, 100)

	w := s.do(t, http.MethodPost, "/v1/conversations", "alice", StartConversationRequest{Recipient: "bob", Content: "hi"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "inbox_conversations_created_total 1")
	assert.Contains(t, body, "inbox_messages_sent_total 1")
	assert.Contains(t, body, `inbox_http_request_duration_seconds_count{method="POST",route="/v1/conversations",status="201"} 1`)
}
