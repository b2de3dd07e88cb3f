package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/scorm-interceptor/config"
	"github.com/alem-hub/scorm-interceptor/internal/infrastructure/host"
	"github.com/alem-hub/scorm-interceptor/internal/interface/http/handlers"
	"github.com/alem-hub/scorm-interceptor/pkg/interceptor"
	"github.com/alem-hub/scorm-interceptor/pkg/logger"
	"github.com/alem-hub/scorm-interceptor/pkg/timeutil"
)

type fixture struct {
	srv      *Server
	ic       *interceptor.Interceptor
	registry *host.Registry
	runtime  *host.MemoryRuntime
	clock    *timeutil.ManualClock
}

func newFixture(t *testing.T, cfg Config, health *handlers.HealthChecker) *fixture {
	t.Helper()

	clock := timeutil.NewManualClock(time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC))
	reg := host.NewRegistry()
	rt := host.NewMemoryRuntime(host.StaticLearner{ID: "ada@example.com", Name: "Ada"})
	rt.Install(reg, config.DefaultSetValueFunction, config.DefaultAPI)

	ic := interceptor.New(reg, interceptor.WithClock(clock), interceptor.WithLogger(logger.Discard()))
	t.Cleanup(ic.Close)

	srv := NewServer(cfg, Dependencies{
		Interceptor: ic,
		Registry:    reg,
		Health:      health,
		Metrics:     ic.Metrics().Handler(),
		Logger:      logger.Discard(),
	})

	return &fixture{srv: srv, ic: ic, registry: reg, runtime: rt, clock: clock}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) JSONResponse {
	t.Helper()
	var resp JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestServer_CallFunction(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	require.NoError(t, f.ic.Init(nil))
	f.clock.Advance(500 * time.Millisecond)

	rec := f.do(t, http.MethodPost, "/api/v1/scorm/SCORM_CallLMSSetValue", CallRequest{
		Element: "cmi.core.lesson_status",
		Value:   "completed",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, map[string]any{"result": "true"}, resp.Data)
	assert.Equal(t, "completed", f.runtime.GetValue("cmi.core.lesson_status"))
}

func TestServer_CallErrors(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)

	rec := f.do(t, http.MethodPost, "/api/v1/scorm/LMSSetValue", CallRequest{Element: "cmi.exit"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "function_not_found", decode(t, rec).Error.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/scorm/SCORM_CallLMSSetValue", CallRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_PanickingFunction(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	f.registry.Define("Broken", func(string, string) string { panic("host failure") })

	rec := f.do(t, http.MethodPost, "/api/v1/scorm/Broken", CallRequest{Element: "cmi.exit"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_SetAPI(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)

	rec := f.do(t, http.MethodPut, "/api/v1/scorm/api/LMS_API", map[string]string{
		"learnerId":   "lin@example.com",
		"learnerName": "Lin",
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	api, ok := f.registry.API("LMS_API")
	require.True(t, ok)
	assert.Equal(t, "lin@example.com", api.LearnerID())
	assert.Equal(t, "Lin", api.LearnerName())
}

func TestServer_InitAndStatus(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)

	rec := f.do(t, http.MethodPost, "/api/v1/init", map[string]any{
		"xapi": map[string]any{"verbs": map[string]any{"defaultVerb": "zapped"}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/init", map[string]any{
		"interception": map[string]any{"pollInterval": "100ms"},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	f.clock.Advance(100 * time.Millisecond)
	rec = f.do(t, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec).Data.(map[string]any)
	assert.Equal(t, "intercepted", data["state"])
	assert.Equal(t, false, data["lrsEnabled"])
}

func TestServer_JournalAndVerbs(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)

	rec := f.do(t, http.MethodGet, "/api/v1/journal?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode(t, rec).Success)

	rec = f.do(t, http.MethodGet, "/api/v1/verbs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec).Data, "interacted")

	rec = f.do(t, http.MethodGet, "/api/v1/scorm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"SCORM_CallLMSSetValue"}, decode(t, rec).Data)
}

func TestServer_Health(t *testing.T) {
	health := handlers.NewHealthChecker("test")
	f := newFixture(t, DefaultConfig(), health)

	rec := f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	health.AddCheck("journal", func(context.Context) error { return errors.New("down") })
	rec = f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"interceptor":{"initialized":false`)
}

func TestServer_HealthLRS(t *testing.T) {
	var status atomic.Int32
	lrs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/xapi/about" {
			http.NotFound(w, r)
			return
		}
		if code := int(status.Load()); code != 0 {
			http.Error(w, "lrs unavailable", code)
			return
		}
		_, _ = w.Write([]byte(`{"version":["1.0.3"]}`))
	}))
	defer lrs.Close()

	health := handlers.NewHealthChecker("test")
	f := newFixture(t, DefaultConfig(), health)
	check := f.ic.LRSCheck()
	require.NotNil(t, check)
	health.AddCheck("lrs", check)

	status.Store(http.StatusServiceUnavailable)
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code, "no lrs enabled yet")

	require.NoError(t, f.ic.Init(map[string]any{"lrs": map[string]any{"endpoint": lrs.URL + "/xapi"}}))
	rec = f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "lrs")

	status.Store(0)
	rec = f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	require.NoError(t, f.ic.Init(nil))
	f.clock.Advance(500 * time.Millisecond)

	rec := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `scorm_interceptor_discovery_total{outcome="intercepted"} 1`)
}

func TestServer_APIKey(t *testing.T) {
	hash, err := handlers.HashAPIKey("s3cret")
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.APIKeyHash = hash
	f := newFixture(t, cfg, nil)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/v1/status", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/status", nil, "X-API-Key", "s3cret").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", nil).Code, "health is public")
}
