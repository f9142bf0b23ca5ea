package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xshield/pkg/config/xconf"
	"github.com/omeyang/xshield/pkg/context/xtenant"
	"github.com/omeyang/xshield/pkg/observability/xlog"
	"github.com/omeyang/xshield/pkg/resilience/xadmin"
	"github.com/omeyang/xshield/pkg/resilience/xguard"
	"github.com/omeyang/xshield/pkg/resilience/xlimit"
	"github.com/omeyang/xshield/pkg/resilience/xquota"
)

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Routes = []xguard.RouteEntry{{
		Method:      http.MethodGet,
		Path:        "/v1/ping",
		RouteConfig: xguard.RouteConfig{Requests: 2, Window: time.Minute},
	}}
	cfg.Quota.Defaults = xquota.Limits{PerDay: 1000}
	return cfg
}

func newTestApp(t *testing.T, cfg Config) *app {
	t.Helper()
	a, err := newApp(t.Context(), cfg, xlog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func ping(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, url+"/v1/ping", nil)
	require.NoError(t, err)
	req.Header.Set(xtenant.HeaderTenantID, "acme")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestApp_LocalBackend(t *testing.T) {
	a := newTestApp(t, testConfig())
	api := httptest.NewServer(a.apiHandler())
	defer api.Close()
	admin := httptest.NewServer(a.adminHandler())
	defer admin.Close()

	for range 2 {
		resp := ping(t, api.URL)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get(xtenant.HeaderRequestID))
	}
	resp := ping(t, api.URL)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(xlimit.HeaderRetryAfter))

	client, err := xadmin.NewClient(admin.URL)
	require.NoError(t, err)
	require.NoError(t, client.ResetRateLimit(t.Context(), "acme:anonymous:127.0.0.1:GET:/v1/ping"))
	assert.Equal(t, http.StatusOK, ping(t, api.URL).StatusCode)

	usage, err := client.QuotaUsage(t.Context(), "acme")
	require.NoError(t, err)
	assert.Equal(t, int64(3), usage.Used[xquota.Minute])

	metrics, err := http.Get(admin.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	body, err := io.ReadAll(metrics.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "xshield_operation_total")
	assert.Contains(t, string(body), "go_goroutines")

	health, err := http.Get(admin.URL + "/healthz")
	require.NoError(t, err)
	_ = health.Body.Close()
	assert.Equal(t, http.StatusNoContent, health.StatusCode)
}

func TestApp_UnguardedRoute(t *testing.T) {
	cfg := testConfig()
	cfg.Routes = nil
	a := newTestApp(t, cfg)
	api := httptest.NewServer(a.apiHandler())
	defer api.Close()

	for range 5 {
		assert.Equal(t, http.StatusOK, ping(t, api.URL).StatusCode)
	}
}

func TestApp_RedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Store.Backend = backendRedis
	cfg.Store.WarmupScripts = true
	cfg.Redis.Addrs = []string{mr.Addr()}
	cfg.Breakers.SharedState = true
	require.NoError(t, cfg.Validate())

	a := newTestApp(t, cfg)
	assert.Equal(t, xlimit.TypeRedis, a.limiter.Store().Type())
	assert.Equal(t, xquota.TypeRedis, a.quota.Store().Type())

	api := httptest.NewServer(a.apiHandler())
	defer api.Close()
	for range 2 {
		assert.Equal(t, http.StatusOK, ping(t, api.URL).StatusCode)
	}
	assert.Equal(t, http.StatusTooManyRequests, ping(t, api.URL).StatusCode)
}

func TestApp_LongWindowRoute(t *testing.T) {
	cfg := testConfig()
	cfg.Routes[0].RouteConfig = xguard.RouteConfig{Requests: 1, Window: 2 * time.Hour}
	require.NoError(t, cfg.Validate())

	a := newTestApp(t, cfg)
	assert.GreaterOrEqual(t, a.guard.Table().MaxWindow(), 2*time.Hour)

	api := httptest.NewServer(a.apiHandler())
	defer api.Close()
	assert.Equal(t, http.StatusOK, ping(t, api.URL).StatusCode)
	for range 3 {
		assert.Equal(t, http.StatusTooManyRequests, ping(t, api.URL).StatusCode)
	}

	// 热更新时超出存储上限的路由被拒绝，旧路由保留
	err := a.guard.Table().Replace([]xguard.RouteEntry{{
		Path:        "/v1/ping",
		RouteConfig: xguard.RouteConfig{Requests: 1, Window: 48 * time.Hour},
	}})
	assert.ErrorIs(t, err, xguard.ErrInvalidRoute)
	assert.Equal(t, 1, a.guard.Table().Len())
}

func TestApp_RedisFallbackLocal(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Store.Backend = backendRedis
	cfg.Redis.Addrs = []string{mr.Addr()}
	cfg.Redis.DialTimeout = 100 * time.Millisecond
	cfg.Limit.Fallback = xlimit.FallbackLocal
	require.NoError(t, cfg.Validate())

	a := newTestApp(t, cfg)
	assert.Equal(t, xlimit.TypeRedis, a.limiter.Store().Type())
	api := httptest.NewServer(a.apiHandler())
	defer api.Close()
	admin := httptest.NewServer(a.adminHandler())
	defer admin.Close()

	mr.Close()
	for range 2 {
		assert.Equal(t, http.StatusOK, ping(t, api.URL).StatusCode)
	}
	assert.Equal(t, http.StatusTooManyRequests, ping(t, api.URL).StatusCode)

	metrics, err := http.Get(admin.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	body, err := io.ReadAll(metrics.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `xshield_limit_fallback_total{strategy="local"} 3`)
}

func TestNewApp_RedisUnreachable(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Backend = backendRedis
	cfg.Redis.Addrs = []string{"127.0.0.1:1"}
	cfg.Redis.DialTimeout = 100 * time.Millisecond

	_, err := newApp(t.Context(), cfg, xlog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
}

func TestServe_StopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Server.APIAddr = "127.0.0.1:0"
	cfg.Server.AdminAddr = "127.0.0.1:0"
	cfg.Report.Enabled = true
	raw, err := xconf.NewFromBytes([]byte("report:\n  enabled: true\n"), xconf.FormatYAML)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, raw) }()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			assert.ErrorIs(t, err, context.Canceled)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestRun_ServeCheck(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run(t.Context(), []string{"xshieldctl", "serve", "--check", "-c", "xshield.example.yaml"}, &out, &errOut)
	assert.Equal(t, 0, code, errOut.String())
	assert.Equal(t, "config ok", strings.TrimSpace(out.String()))

	out.Reset()
	errOut.Reset()
	code = run(t.Context(), []string{"xshieldctl", "serve", "-c", "missing.yaml"}, &out, &errOut)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut.String(), "参数错误")
}
