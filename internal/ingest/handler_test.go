package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachpo/beacon-spear-edge/internal/dispatch"
	"github.com/coachpo/beacon-spear-edge/internal/logger"
	"github.com/coachpo/beacon-spear-edge/internal/provider"
	"github.com/coachpo/beacon-spear-edge/internal/relay"
	"github.com/coachpo/beacon-spear-edge/internal/routing"
)

type fakeSender struct {
	mu    sync.Mutex
	calls []*provider.Request
	fn    func(req *provider.Request) (int, error)
}

func (s *fakeSender) Send(_ context.Context, req *provider.Request) (int, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	if s.fn != nil {
		return s.fn(req)
	}
	return 200, nil
}

type failingStore struct{ err error }

func (s failingStore) Load(context.Context) (*routing.Config, error) { return nil, s.err }

func liteConfig() *routing.Config {
	return &routing.Config{
		IngestEndpoints: []routing.Endpoint{
			{ID: "11111111-2222-3333-4444-555555555555", Name: "prod", TokenHash: "secret-key"},
		},
		Channels: []routing.Channel{
			{
				ID: "ch-bark", Type: routing.ChannelTypeBark,
				Config: map[string]interface{}{"server_base_url": "https://bark.example.com", "device_key": "dk"},
			},
			{
				ID: "ch-ntfy", Type: routing.ChannelTypeNtfy,
				Config: map[string]interface{}{"server_base_url": "https://ntfy.sh", "topic": "alerts"},
			},
		},
		Rules: []routing.Rule{
			{ID: "r-bark", ChannelID: "ch-bark", PayloadTemplate: map[string]interface{}{"body": "{{message.body}}"}},
			{
				ID: "r-ntfy", ChannelID: "ch-ntfy",
				Filter:          &routing.Filter{Priority: &routing.PriorityFilter{Min: float64(4)}},
				PayloadTemplate: map[string]interface{}{"body": "{{message.body}}"},
			},
		},
		Version: "v1",
	}
}

func liteRouter(store routing.Store, sender dispatch.Sender) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.NopLogger()
	h := NewHandler(store, dispatch.New(sender, log), log)

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.POST("/api/ingest/:endpoint_id", h.Handle)
	r.POST("/api/i/:endpoint_id", h.Handle)
	return r
}

func postJSON(router *gin.Engine, path, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(relay.HeaderIngestKey, key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const endpointPath = "/api/ingest/11111111-2222-3333-4444-555555555555"

func TestHandleIngestsAndDispatches(t *testing.T) {
	sender := &fakeSender{}
	router := liteRouter(routing.NewStaticStore(liteConfig()), sender)

	w := postJSON(router, endpointPath, "secret-key", `{"body":"hello","priority":4}`)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.MessageID)
	assert.Equal(t, 2, resp.MatchedRules)
	assert.Equal(t, 2, resp.Dispatched)
	require.Len(t, resp.Results, 2)
	for _, r := range resp.Results {
		assert.True(t, r.OK)
		assert.Equal(t, 200, r.Status)
	}
	assert.Len(t, sender.calls, 2)
}

func TestHandleAliasRoute(t *testing.T) {
	sender := &fakeSender{}
	router := liteRouter(routing.NewStaticStore(liteConfig()), sender)

	w := postJSON(router, "/api/i/11111111-2222-3333-4444-555555555555", "secret-key", `{"body":"hi"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestHandleDashInsensitiveEndpointID(t *testing.T) {
	sender := &fakeSender{}
	router := liteRouter(routing.NewStaticStore(liteConfig()), sender)

	w := postJSON(router, "/api/ingest/111111112222333344445555"+"55555555", "secret-key", `{"body":"hi"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestHandleRejectsWrongContentType(t *testing.T) {
	router := liteRouter(routing.NewStaticStore(liteConfig()), &fakeSender{})

	req := httptest.NewRequest(http.MethodPost, endpointPath, strings.NewReader(`{"body":"x"}`))
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set(relay.HeaderIngestKey, "secret-key")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Contains(t, w.Body.String(), "unsupported_media_type")
}

func TestHandleAcceptsContentTypeWithCharset(t *testing.T) {
	router := liteRouter(routing.NewStaticStore(liteConfig()), &fakeSender{})

	req := httptest.NewRequest(http.MethodPost, endpointPath, strings.NewReader(`{"body":"x"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set(relay.HeaderIngestKey, "secret-key")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestHandleConfigUnavailable(t *testing.T) {
	router := liteRouter(failingStore{err: errors.New("redis down")}, &fakeSender{})

	w := postJSON(router, endpointPath, "secret-key", `{"body":"x"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "misconfigured")
}

func TestHandleUnknownEndpoint(t *testing.T) {
	router := liteRouter(routing.NewStaticStore(liteConfig()), &fakeSender{})

	w := postJSON(router, "/api/ingest/no-such-endpoint", "secret-key", `{"body":"x"}`)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "not_authenticated")
}

func TestHandleWrongKey(t *testing.T) {
	sender := &fakeSender{}
	router := liteRouter(routing.NewStaticStore(liteConfig()), sender)

	w := postJSON(router, endpointPath, "wrong-key", `{"body":"x"}`)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, sender.calls)

	w = postJSON(router, endpointPath, "", `{"body":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleBadJSON(t *testing.T) {
	router := liteRouter(routing.NewStaticStore(liteConfig()), &fakeSender{})

	w := postJSON(router, endpointPath, "secret-key", `{"body":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "bad_request")
}

func TestHandleNonObjectJSON(t *testing.T) {
	router := liteRouter(routing.NewStaticStore(liteConfig()), &fakeSender{})

	w := postJSON(router, endpointPath, "secret-key", `["not","an","object"]`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_json_object")
}

func TestHandleValidationErrors(t *testing.T) {
	router := liteRouter(routing.NewStaticStore(liteConfig()), &fakeSender{})

	w := postJSON(router, endpointPath, "secret-key", `{"title":"no body"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "missing_body")

	w = postJSON(router, endpointPath, "secret-key", `{"body":"x","bogus":1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "unknown_field:bogus")
}

func TestHandleOversizeBody(t *testing.T) {
	router := liteRouter(routing.NewStaticStore(liteConfig()), &fakeSender{})

	big := `{"body":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	w := postJSON(router, endpointPath, "secret-key", big)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "payload_too_large")
}

func TestHandleDispatchFailureStillCreated(t *testing.T) {
	sender := &fakeSender{fn: func(*provider.Request) (int, error) { return 0, errors.New("network down") }}
	router := liteRouter(routing.NewStaticStore(liteConfig()), sender)

	w := postJSON(router, endpointPath, "secret-key", `{"body":"hello"}`)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.False(t, resp.Results[0].OK)
	assert.Contains(t, resp.Results[0].Error, "network down")
}

func TestHandleBuildFailureReportedInResults(t *testing.T) {
	cfg := liteConfig()
	cfg.Channels[1].Config = map[string]interface{}{"server_base_url": "https://ntfy.sh"} // topic missing
	sender := &fakeSender{}
	router := liteRouter(routing.NewStaticStore(cfg), sender)

	w := postJSON(router, endpointPath, "secret-key", `{"body":"hello","priority":5}`)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.MatchedRules)

	var failed *dispatch.Result
	for i := range resp.Results {
		if !resp.Results[i].OK {
			failed = &resp.Results[i]
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, "r-ntfy", failed.Rule)
	assert.Contains(t, failed.Error, "missing_topic")
	assert.Len(t, sender.calls, 1)
}

func TestHandleNoMatchingRules(t *testing.T) {
	cfg := liteConfig()
	cfg.Rules = []routing.Rule{
		{
			ID: "r-grouped", ChannelID: "ch-bark",
			Filter: &routing.Filter{Group: strPtr("only-this-group")},
		},
	}
	sender := &fakeSender{}
	router := liteRouter(routing.NewStaticStore(cfg), sender)

	w := postJSON(router, endpointPath, "secret-key", `{"body":"hello"}`)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.MatchedRules)
	assert.Equal(t, 0, resp.Dispatched)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
	assert.Empty(t, sender.calls)
}

func strPtr(s string) *string { return &s }
