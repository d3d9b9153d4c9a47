package admin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/coder/websocket"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msgsight/cfgd/pkg/cfgerr"
	"github.com/msgsight/cfgd/pkg/lifecycle"
	"github.com/msgsight/cfgd/pkg/manager"
	"github.com/msgsight/cfgd/pkg/metrics"
	"github.com/msgsight/cfgd/pkg/notify"
	"github.com/msgsight/cfgd/pkg/schema"
	"github.com/msgsight/cfgd/pkg/store"
)

// ============================================================================
// Test Helpers
// ============================================================================

type testEnv struct {
	api     *API
	manager *manager.Manager
	service *lifecycle.Service
	hub     *notify.Hub
	metrics *metrics.Metrics
	backend *store.MemoryBackend
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		hub:     notify.NewHub(),
		metrics: metrics.New(),
		backend: store.NewMemoryBackend(),
	}
	env.manager = manager.New(schema.MustNew(), env.backend,
		manager.WithPublisher(env.hub),
		manager.WithMetrics(env.metrics),
	)
	env.service = lifecycle.New(env.manager, lifecycle.WithMetrics(env.metrics))
	require.NoError(t, env.service.Start(context.Background()))

	api, err := NewAPI(env.manager,
		WithService(env.service),
		WithHub(env.hub),
		WithMetrics(env.metrics),
	)
	require.NoError(t, err)
	env.api = api

	t.Cleanup(func() {
		_ = env.manager.Close()
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	e.api.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) map[string]any {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, float64(status), body["status"])
	assert.Equal(t, code, body["Code"])
	return body
}

// ============================================================================
// Reads
// ============================================================================

func TestGetDocument(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/configuration/", "/configuration"} {
		rec := env.do(t, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		doc := decode(t, rec)
		assert.Equal(t, "v1", doc["Version"])
		assert.Contains(t, doc, "AdminEndpoint")
		assert.Contains(t, doc, "ConfigurationPolicy")
	}
}

func TestGetTypeAndObject(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/configuration", `{"MessageHub":{"hub":{"Description":"main"}}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/configuration/MessageHub/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	hubs := decode(t, rec)["MessageHub"].(map[string]any)
	assert.Contains(t, hubs, "hub")

	rec = env.do(t, http.MethodGet, "/configuration/MessageHub/hub", "")
	require.Equal(t, http.StatusOK, rec.Code)
	hub := decode(t, rec)["MessageHub"].(map[string]any)["hub"].(map[string]any)
	assert.Equal(t, "main", hub["Description"])

	rec = env.do(t, http.MethodGet, "/configuration/Nope/", "")
	requireError(t, rec, http.StatusBadRequest, cfgerr.CodeInvalidCall)
}

// ============================================================================
// Scenarios
// ============================================================================

func TestScenario_ScalarSingletonResetsToDefault(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/configuration", `{"TraceBackupCount":50}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, cfgerr.CodeSuccess, decode(t, rec)["Code"])

	rec = env.do(t, http.MethodGet, "/configuration/TraceBackupCount/", "")
	assert.Equal(t, float64(50), decode(t, rec)["TraceBackupCount"])

	rec = env.do(t, http.MethodPost, "/configuration", `{"TraceBackupCount":null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/configuration/TraceBackupCount/", "")
	assert.Equal(t, float64(3), decode(t, rec)["TraceBackupCount"])
}

func TestScenario_MissingGroupStoresNothing(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/configuration",
		`{"MessagingPolicy":{"X":{"ActionList":"Publish,Subscribe","Destination":"*","DestinationType":"Topic"}}}`)
	requireError(t, rec, http.StatusBadRequest, cfgerr.CodeMissingGroup)

	rec = env.do(t, http.MethodGet, "/configuration/MessagingPolicy/X", "")
	body := requireError(t, rec, http.StatusNotFound, cfgerr.CodeNotFound)
	assert.Equal(t, "The item or object cannot be found. Type: MessagingPolicy Name: X", body["Message"])
}

func TestScenario_ImmutableDestinationType(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/configuration",
		`{"QueuePolicy":{"Q1":{"DestinationType":"Queue","Destination":"*","ActionList":"Send,Receive,Browse"}}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/configuration",
		`{"QueuePolicy":{"Q1":{"DestinationType":"Topic","Destination":"*","ActionList":"Publish,Subscribe"}}}`)
	requireError(t, rec, http.StatusBadRequest, cfgerr.CodeArgNotValid)

	rec = env.do(t, http.MethodGet, "/configuration/QueuePolicy/Q1", "")
	q := decode(t, rec)["QueuePolicy"].(map[string]any)["Q1"].(map[string]any)
	assert.Equal(t, "Queue", q["DestinationType"])
}

func TestScenario_DefaultConfigPolicyCannotBeDeleted(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodDelete, "/configuration/ConfigurationPolicy/"+schema.AdminDefaultConfigPolicy, "")
	requireError(t, rec, http.StatusBadRequest, cfgerr.CodeInUse)

	rec = env.do(t, http.MethodGet, "/configuration/ConfigurationPolicy/"+schema.AdminDefaultConfigPolicy, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/configuration/AdminEndpoint/AdminEndpoint", "")
	requireError(t, rec, http.StatusForbidden, cfgerr.CodeDeleteNotAllowed)
}

// ============================================================================
// Writes
// ============================================================================

func TestApply_RejectsMalformedBodies(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"empty body", "", cfgerr.CodeInvalidCall},
		{"not an object", `[1,2]`, cfgerr.CodeInvalidCall},
		{"empty object", `{}`, cfgerr.CodeInvalidCall},
		{"unknown type", `{"Nope":{}}`, cfgerr.CodeInvalidCall},
		{"null instance", `{"MessageHub":{"h":null}}`, cfgerr.CodeNullObject},
		{"unknown property", `{"MessageHub":{"h":{"Color":"red"}}}`, cfgerr.CodeBadPropertyName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/configuration", tt.body)
			requireError(t, rec, http.StatusBadRequest, tt.code)
		})
	}
}

func TestApply_ReturnsEffectiveObjects(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/configuration/", `{"Queue":{"q":{"Description":"orders"}}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "v1", body["Version"])
	assert.Equal(t, cfgerr.CodeSuccess, body["Code"])
	q := body["Queue"].(map[string]any)["q"].(map[string]any)
	assert.Equal(t, "orders", q["Description"])
	assert.Equal(t, float64(5000), q["MaxMessages"], "defaults are materialized")
}

func TestDelete(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/configuration", `{"MessageHub":{"h":{}}}`)

	rec := env.do(t, http.MethodDelete, "/configuration/MessageHub/h", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, cfgerr.CodeSuccess, decode(t, rec)["Code"])

	rec = env.do(t, http.MethodDelete, "/configuration/MessageHub/h", "")
	requireError(t, rec, http.StatusNotFound, cfgerr.CodeNotFound)
}

func TestApply_CommitFailureIsSanitized(t *testing.T) {
	env := newTestEnv(t)
	env.backend.FailNextCommit(io.ErrShortWrite)

	rec := env.do(t, http.MethodPost, "/configuration", `{"MessageHub":{"h":{}}}`)
	body := requireError(t, rec, http.StatusInternalServerError, cfgerr.CodeInternal)
	assert.NotContains(t, body["Message"], "short write")

	rec = env.do(t, http.MethodGet, "/configuration/MessageHub/h", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ============================================================================
// Service
// ============================================================================

func TestRestart_PreservesConfiguration(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/configuration", `{"MessageHub":{"h":{"Description":"kept"}},"TraceBackupCount":9}`)
	before := env.do(t, http.MethodGet, "/configuration/", "").Body.String()

	rec := env.do(t, http.MethodPost, "/service/restart", `{"Service":"Server"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, cfgerr.CodeSuccess, decode(t, rec)["Code"])

	after := env.do(t, http.MethodGet, "/configuration/", "").Body.String()
	assert.JSONEq(t, before, after)

	rec = env.do(t, http.MethodGet, "/service/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode(t, rec)
	assert.Equal(t, lifecycle.StateRunning, status["State"])
	assert.Equal(t, float64(1), status["Restarts"])
	assert.Equal(t, "memory", status["Backend"])
}

func TestRestart_RejectsOtherServices(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{``, `{"Service":"Engine"}`, `nope`} {
		rec := env.do(t, http.MethodPost, "/service/restart", body)
		requireError(t, rec, http.StatusBadRequest, cfgerr.CodeInvalidCall)
	}
}

func TestRestart_WhenStopped(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.service.Stop(context.Background()))

	rec := env.do(t, http.MethodPost, "/service/restart", `{"Service":"server"}`)
	requireError(t, rec, http.StatusConflict, cfgerr.CodeInvalidCall)

	rec = env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

// ============================================================================
// Descriptions, metrics, middleware
// ============================================================================

func TestOpenAPI(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/openapi.json", "")
	require.Equal(t, http.StatusOK, rec.Code)

	doc, err := openapi3.NewLoader().LoadFromData(rec.Body.Bytes())
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))
	assert.NotNil(t, doc.Paths.Find("/configuration/{ObjectType}/{name}"))
	assert.Contains(t, doc.Components.Schemas, "MessagingPolicy")
	assert.Equal(t, "v1", doc.Info.Version)
}

func TestDocumentSchema(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/schema.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Contains(t, body, "$schema")
	assert.Contains(t, body["properties"], "Endpoint")
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/configuration", `{"MessageHub":{"h":{}}}`)
	env.do(t, http.MethodGet, "/configuration/MessageHub/h", "")

	rec := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	text := rec.Body.String()
	assert.Contains(t, text, `cfgd_admin_requests_total{method="GET",route="GET /configuration/{type}/{name}",status="200"} 1`)
	assert.Contains(t, text, `cfgd_mutations_total{operation="create",result="ok",type="MessageHub"} 1`)
	assert.Contains(t, text, `cfgd_objects{type="MessageHub"} 1`)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/configuration/MessageHub/h", "{}")
	body := requireError(t, rec, http.StatusBadRequest, cfgerr.CodeInvalidCall)
	assert.Equal(t, "The REST API call: PUT /configuration/MessageHub/h is not valid.", body["Message"])
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "")
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	env.api.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

// ============================================================================
// Live server
// ============================================================================

func TestEvents_StreamMutations(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.api.Handler())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events?type=Queue"
	conn, _, err := ws.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.CloseNow() }()
	require.Eventually(t, func() bool { return env.hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Post(srv.URL+"/configuration", "application/json",
		strings.NewReader(`{"MessageHub":{"h":{}},"Queue":{"orders":{}}}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var ev notify.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, "Queue", ev.Type)
	assert.Equal(t, "orders", ev.Name)
	assert.Equal(t, notify.OpCreate, ev.Operation)
}

func TestStartStop(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.api.Start("127.0.0.1:0"))
	assert.Error(t, env.api.Start("127.0.0.1:0"))

	resp, err := http.Get("http://" + env.api.Addr() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, env.api.Stop(ctx))

	_, open := <-env.api.Done()
	assert.False(t, open)
}
