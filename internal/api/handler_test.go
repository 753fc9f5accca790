package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quiltchat/message-service/internal/api"
	"github.com/quiltchat/message-service/internal/auth"
	"github.com/quiltchat/message-service/internal/domain"
	"github.com/quiltchat/message-service/internal/guard"
	"github.com/quiltchat/message-service/internal/ratelimit"
	"github.com/quiltchat/message-service/internal/service"
	"github.com/quiltchat/message-service/internal/store/memstore"
)

const testSecret = "test-secret"

func newApp(t *testing.T) (*fiber.App, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	log := zap.NewNop()
	g := guard.New(st, log)
	lim := ratelimit.New(st, log)
	svc := service.New(st, g, lim, service.DefaultLimits(), log)

	st.PutConversation(&domain.Conversation{
		ID:      "dm1",
		Scope:   domain.ScopeDM,
		Members: []string{"alice", "bob"},
	})

	jv, err := auth.NewHS256Validator(testSecret)
	require.NoError(t, err)
	return api.NewServer(svc, jv, log, api.Options{}), st
}

func token(t *testing.T, uid string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  uid,
		"name": "Test User",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func doJSON(t *testing.T, app *fiber.App, method, path, uid string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, uid))
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var out map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp, out
}

func sendBody(msgID, text string) map[string]interface{} {
	return map[string]interface{}{
		"scope":      "dm",
		"kind":       "text",
		"text":       text,
		"client_id":  "cli-1",
		"message_id": msgID,
	}
}

func TestSendEndpoint(t *testing.T) {
	app, _ := newApp(t)

	resp, body := doJSON(t, app, "POST", "/v1/conversations/dm1/messages", "alice", sendBody("m1", "hi"))
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, false, body["is_existing"])

	// retry returns 200 with the stored message
	resp, body = doJSON(t, app, "POST", "/v1/conversations/dm1/messages", "alice", sendBody("m1", "hi"))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["is_existing"])
}

func TestSendEndpointRequiresAuth(t *testing.T) {
	app, _ := newApp(t)

	resp, _ := doJSON(t, app, "POST", "/v1/conversations/dm1/messages", "", sendBody("m1", "hi"))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestSendEndpointErrorMapping(t *testing.T) {
	app, st := newApp(t)

	// non-member
	resp, body := doJSON(t, app, "POST", "/v1/conversations/dm1/messages", "eve", sendBody("m1", "hi"))
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "not-a-member", body["error"])

	// blocked
	st.Block("alice", "bob")
	resp, body = doJSON(t, app, "POST", "/v1/conversations/dm1/messages", "bob", sendBody("m1", "hi"))
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "blocked", body["error"])

	// invalid shape
	resp, body = doJSON(t, app, "POST", "/v1/conversations/dm1/messages", "alice", map[string]interface{}{
		"scope": "dm", "kind": "text", "text": "", "client_id": "cli-1", "message_id": "m2",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid-shape", body["error"])
}

func TestEditAndDeleteEndpoints(t *testing.T) {
	app, _ := newApp(t)

	resp, _ := doJSON(t, app, "POST", "/v1/conversations/dm1/messages", "alice", sendBody("m1", "hi"))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, app, "PATCH", "/v1/conversations/dm1/messages/m1", "alice",
		map[string]interface{}{"scope": "dm", "text": "edited"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["edited_at"])

	// bob cannot edit alice's message
	resp, body = doJSON(t, app, "PATCH", "/v1/conversations/dm1/messages/m1", "bob",
		map[string]interface{}{"scope": "dm", "text": "hijack"})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "not-sender", body["error"])

	resp, body = doJSON(t, app, "DELETE", "/v1/conversations/dm1/messages/m1?scope=dm&for=all", "alice", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["deleted_at"])

	// editing after delete maps to 412
	resp, body = doJSON(t, app, "PATCH", "/v1/conversations/dm1/messages/m1", "alice",
		map[string]interface{}{"scope": "dm", "text": "again"})
	assert.Equal(t, fiber.StatusPreconditionFailed, resp.StatusCode)
	assert.Equal(t, "already-deleted", body["error"])
}

func TestReactionEndpoint(t *testing.T) {
	app, _ := newApp(t)

	resp, _ := doJSON(t, app, "POST", "/v1/conversations/dm1/messages", "alice", sendBody("m1", "hi"))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, app, "POST", "/v1/conversations/dm1/messages/m1/reactions", "bob",
		map[string]interface{}{"scope": "dm", "emoji": "🔥"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "added", body["action"])

	resp, body = doJSON(t, app, "POST", "/v1/conversations/dm1/messages/m1/reactions", "bob",
		map[string]interface{}{"scope": "dm", "emoji": "🔥"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "removed", body["action"])

	resp, body = doJSON(t, app, "POST", "/v1/conversations/dm1/messages/m1/reactions", "bob",
		map[string]interface{}{"scope": "dm", "emoji": "not-an-emoji"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "disallowed-emoji", body["error"])
}

func TestListAndLastMessageEndpoints(t *testing.T) {
	app, _ := newApp(t)

	resp, _ := doJSON(t, app, "POST", "/v1/conversations/dm1/messages", "alice", sendBody("m1", "one"))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp, _ = doJSON(t, app, "POST", "/v1/conversations/dm1/messages", "alice", sendBody("m2", "two"))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, app, "GET", "/v1/conversations/dm1/messages?scope=dm", "bob", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	msgs, ok := body["messages"].([]interface{})
	require.True(t, ok)
	assert.Len(t, msgs, 2)

	resp, body = doJSON(t, app, "GET", "/v1/conversations/dm1/last-message?scope=dm", "bob", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	last, ok := body["last_message"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "m2", last["message_id"])
}

func TestHealthz(t *testing.T) {
	app, _ := newApp(t)
	req := httptest.NewRequest("GET", "/healthz", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
