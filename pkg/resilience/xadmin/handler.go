package xadmin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/omeyang/xshield/pkg/observability/xlog"
	"github.com/omeyang/xshield/pkg/resilience/xbreaker"
	"github.com/omeyang/xshield/pkg/resilience/xlimit"
	"github.com/omeyang/xshield/pkg/resilience/xquota"
)

// ErrorBody 错误响应体。
type ErrorBody struct {
	Error string `json:"error"`
}

// Handler 返回管理 API 的 http.Handler。
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /admin/ratelimits/{identifier}", func(w http.ResponseWriter, r *http.Request) {
		if err := s.ResetRateLimit(r.Context(), r.PathValue("identifier")); err != nil {
			s.writeError(r.Context(), w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("DELETE /admin/quotas/{tenant}", func(w http.ResponseWriter, r *http.Request) {
		if err := s.ResetQuota(r.Context(), r.PathValue("tenant")); err != nil {
			s.writeError(r.Context(), w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /admin/quotas/{tenant}", func(w http.ResponseWriter, r *http.Request) {
		u, err := s.QuotaUsage(r.Context(), r.PathValue("tenant"))
		if err != nil {
			s.writeError(r.Context(), w, err)
			return
		}
		s.writeJSON(r.Context(), w, http.StatusOK, u)
	})
	mux.HandleFunc("GET /admin/circuits", func(w http.ResponseWriter, r *http.Request) {
		cs, err := s.Circuits()
		if err != nil {
			s.writeError(r.Context(), w, err)
			return
		}
		s.writeJSON(r.Context(), w, http.StatusOK, cs)
	})
	mux.HandleFunc("GET /admin/circuits/{name}", func(w http.ResponseWriter, r *http.Request) {
		cs, err := s.CircuitState(r.PathValue("name"))
		if err != nil {
			s.writeError(r.Context(), w, err)
			return
		}
		s.writeJSON(r.Context(), w, http.StatusOK, cs)
	})
	return mux
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrNotConfigured):
		return http.StatusNotImplemented
	case errors.Is(err, xbreaker.ErrUnknownCircuit):
		return http.StatusNotFound
	case errors.Is(err, xlimit.ErrEmptyIdentifier), errors.Is(err, xquota.ErrEmptyTenant):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Service) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.logger().Error(ctx, "admin request failed", xlog.Err(err))
	}
	s.writeJSON(ctx, w, status, ErrorBody{Error: err.Error()})
}

func (s *Service) writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger().Debug(ctx, "write response failed", xlog.Err(err))
	}
}
