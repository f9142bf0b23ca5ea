package xadmin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/omeyang/xshield/pkg/resilience/xquota"
	"github.com/omeyang/xshield/pkg/resilience/xretry"
)

// APIError 管理 API 返回的非 2xx 响应。
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("xadmin: server returned %d: %s", e.StatusCode, e.Message)
}

// Retryable 仅 5xx（501 除外）可重试。
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500 && e.StatusCode != http.StatusNotImplemented
}

// Client 管理 API 客户端。
type Client struct {
	base   string
	http   *http.Client
	policy *xretry.Policy
}

// ClientOption 配置 Client。
type ClientOption func(*Client)

// WithHTTPClient 设置底层 http.Client，默认超时 10s。
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithRetry 设置重试策略，默认不重试。
func WithRetry(p *xretry.Policy) ClientOption {
	return func(cl *Client) {
		cl.policy = p
	}
}

// NewClient 创建指向 baseURL（如 http://127.0.0.1:9091）的客户端。
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("xadmin: invalid base url %q", baseURL)
	}
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// ResetRateLimit 见 Service.ResetRateLimit。
func (c *Client) ResetRateLimit(ctx context.Context, identifier string) error {
	return c.do(ctx, http.MethodDelete, "/admin/ratelimits/"+url.PathEscape(identifier), nil)
}

// ResetQuota 见 Service.ResetQuota。
func (c *Client) ResetQuota(ctx context.Context, tenant string) error {
	return c.do(ctx, http.MethodDelete, "/admin/quotas/"+url.PathEscape(tenant), nil)
}

// QuotaUsage 见 Service.QuotaUsage。
func (c *Client) QuotaUsage(ctx context.Context, tenant string) (xquota.Usage, error) {
	var u xquota.Usage
	err := c.do(ctx, http.MethodGet, "/admin/quotas/"+url.PathEscape(tenant), &u)
	return u, err
}

// Circuits 见 Service.Circuits。
func (c *Client) Circuits(ctx context.Context) ([]CircuitStatus, error) {
	var cs []CircuitStatus
	err := c.do(ctx, http.MethodGet, "/admin/circuits", &cs)
	return cs, err
}

// CircuitState 见 Service.CircuitState。
func (c *Client) CircuitState(ctx context.Context, name string) (CircuitStatus, error) {
	var cs CircuitStatus
	err := c.do(ctx, http.MethodGet, "/admin/circuits/"+url.PathEscape(name), &cs)
	return cs, err
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	call := func(ctx context.Context) error {
		return c.roundTrip(ctx, method, path, out)
	}
	if c.policy == nil {
		return call(ctx)
	}
	return c.policy.Do(ctx, call)
}

func (c *Client) roundTrip(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("xadmin: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		var body ErrorBody
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &body) != nil || body.Error == "" {
			body.Error = strings.TrimSpace(string(data))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: body.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("xadmin: decode response: %w", err)
	}
	return nil
}
