package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/omeyang/xshield/pkg/observability/xlog"
	"github.com/omeyang/xshield/pkg/resilience/xbreaker"
	"github.com/omeyang/xshield/pkg/resilience/xretry"
)

// checker 经熔断与重试检查下游依赖。
type checker struct {
	deps     map[string]DependencyConfig
	policies map[string]*xretry.Policy
	breakers *xbreaker.Registry
	client   *http.Client
	logger   xlog.Logger
}

func newChecker(deps map[string]DependencyConfig, retry xretry.Config, breakers *xbreaker.Registry, logger xlog.Logger) *checker {
	p := &checker{
		deps:     deps,
		policies: make(map[string]*xretry.Policy, len(deps)),
		breakers: breakers,
		client:   &http.Client{},
		logger:   logger,
	}
	for name := range deps {
		p.policies[name] = xretry.NewPolicy(name, append(retry.Options(), xretry.WithLogger(logger))...)
	}
	return p
}

// checkResult 检查结果。
type checkResult struct {
	Dependency    string     `json:"dependency"`
	Healthy       bool       `json:"healthy"`
	StatusCode    int        `json:"status_code,omitempty"`
	Error         string     `json:"error,omitempty"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
}

// check 对依赖发起一次 GET，5xx 视为失败。
func (p *checker) check(ctx context.Context, name string) (int, error) {
	dep := p.deps[name]
	return xbreaker.Protect(ctx, p.breakers, dep.circuitName(name), p.policies[name], func(ctx context.Context) (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, dep.URL, nil)
		if err != nil {
			return 0, xretry.NewPermanentError(err)
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return 0, err
		}
		defer func() { _ = resp.Body.Close() }()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		if resp.StatusCode >= 500 {
			return resp.StatusCode, fmt.Errorf("%s returned %d", name, resp.StatusCode)
		}
		return resp.StatusCode, nil
	})
}

// ServeHTTP 处理 GET /v1/dependencies/{name}/health。
func (p *checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, ok := p.deps[name]; !ok {
		writeJSON(w, http.StatusNotFound, checkResult{Dependency: name, Error: "unknown dependency"})
		return
	}

	code, err := p.check(r.Context(), name)
	res := checkResult{Dependency: name, StatusCode: code, Healthy: err == nil}
	status := http.StatusOK
	if err != nil {
		res.Error = err.Error()
		status = checkStatus(err)
		var open *xbreaker.OpenError
		if errors.As(err, &open) && !open.NextAttemptAt.IsZero() {
			at := open.NextAttemptAt.UTC()
			res.NextAttemptAt = &at
		}
		p.logger.Warn(r.Context(), "dependency check failed", xlog.Component(name), xlog.Err(err))
	}
	writeJSON(w, status, res)
}

func checkStatus(err error) int {
	switch {
	case errors.Is(err, xbreaker.ErrCircuitOpen), errors.Is(err, xretry.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, xbreaker.ErrOperationTimeout):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
