package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"

	"github.com/omeyang/xshield/pkg/config/xconf"
	"github.com/omeyang/xshield/pkg/context/xtenant"
	"github.com/omeyang/xshield/pkg/lifecycle/xrun"
	"github.com/omeyang/xshield/pkg/observability/xlog"
	"github.com/omeyang/xshield/pkg/observability/xmetrics"
	"github.com/omeyang/xshield/pkg/resilience/xadmin"
	"github.com/omeyang/xshield/pkg/resilience/xbreaker"
	"github.com/omeyang/xshield/pkg/resilience/xguard"
	"github.com/omeyang/xshield/pkg/resilience/xlimit"
	"github.com/omeyang/xshield/pkg/resilience/xquota"
	"github.com/omeyang/xshield/pkg/util/xnet"
)

func createServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "启动准入控制服务",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "配置文件路径（yaml 或 json）",
				Required: true,
				Sources:  cli.EnvVars("XSHIELD_CONFIG"),
			},
			&cli.BoolFlag{
				Name:  "check",
				Usage: "仅校验配置后退出",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, raw, err := loadConfig(cmd.String("config"))
			if err != nil {
				return &usageError{msg: err.Error()}
			}
			if cmd.Bool("check") {
				_, err := fmt.Fprintln(cmd.Root().Writer, "config ok")
				return err
			}
			return serve(ctx, cfg, raw)
		},
	}
}

// app 由配置装配的全部组件。
type app struct {
	logger   xlog.Logger
	redis    redis.UniversalClient
	limiter  *xlimit.Limiter
	quota    *xquota.Manager
	breakers *xbreaker.Registry
	guard    *xguard.Guard
	checker  *checker
	metrics  *prometheus.Registry
	closers  []io.Closer
}

// Close 释放存储与 Redis 连接。
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

func (a *app) addCloser(v any) {
	if c, ok := v.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
}

// newApp 装配组件。返回错误时已释放部分创建的资源。
func newApp(ctx context.Context, cfg Config, logger xlog.Logger) (_ *app, err error) {
	a := &app{logger: logger, metrics: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promObs, err := xmetrics.NewPrometheusObserver(a.metrics, "")
	if err != nil {
		return nil, err
	}
	otelObs, err := xmetrics.NewOTelObserver()
	if err != nil {
		return nil, err
	}
	observer := xmetrics.Multi(otelObs, promObs)

	if a.redis = newRedisClient(cfg); a.redis != nil {
		a.addCloser(a.redis)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		if cfg.Store.WarmupScripts {
			errs := []error{xlimit.WarmupScripts(ctx, a.redis), xquota.WarmupScripts(ctx, a.redis)}
			if cfg.Breakers.SharedState {
				errs = append(errs, xbreaker.WarmupScripts(ctx, a.redis))
			}
			if err := errors.Join(errs...); err != nil {
				return nil, err
			}
		}
	}

	// 本地存储（含降级用的本地存储）的窗口上限不小于最长的路由窗口
	limitCfg := cfg.Limit
	limitCfg.LocalMaxWindow = max(limitCfg.LocalMaxWindow, xguard.MaxWindow(cfg.Routes))
	fallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "xshield_limit_fallback_total",
		Help: "Rate limit checks served by the fallback strategy while Redis was unavailable.",
	}, []string{"strategy"})
	a.metrics.MustRegister(fallbacks)
	limitStore, err := xlimit.NewStore(limitCfg, a.redis,
		xlimit.WithFallbackLogger(logger),
		xlimit.WithOnFallback(func(_ string, s xlimit.FallbackStrategy, _ error) {
			fallbacks.WithLabelValues(string(s)).Inc()
		}),
	)
	if err != nil {
		return nil, err
	}
	a.addCloser(limitStore)
	a.limiter, err = xlimit.New(limitStore, append(cfg.Limit.Options(),
		xlimit.WithLogger(logger), xlimit.WithObserver(observer))...)
	if err != nil {
		return nil, err
	}

	quotaStore, err := xquota.NewStore(cfg.Quota, a.redis)
	if err != nil {
		return nil, err
	}
	a.addCloser(quotaStore)
	quotaOpts, err := cfg.Quota.Options()
	if err != nil {
		return nil, err
	}
	a.quota, err = xquota.New(quotaStore, append(quotaOpts,
		xquota.WithLogger(logger), xquota.WithObserver(observer))...)
	if err != nil {
		return nil, err
	}

	breakerOpts := append(cfg.Breakers.Options(), xbreaker.WithLogger(logger), xbreaker.WithObserver(observer))
	if cfg.Breakers.SharedState {
		shared, err := xbreaker.NewRedisStore(a.redis)
		if err != nil {
			return nil, err
		}
		breakerOpts = append(breakerOpts, xbreaker.WithSharedStore(shared))
	}
	a.breakers = xbreaker.NewRegistry(breakerOpts...)
	if err := cfg.Breakers.Apply(a.breakers); err != nil {
		return nil, err
	}
	a.metrics.MustRegister(newCircuitCollector(a.breakers, logger))

	proxies, err := xnet.NewTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, err
	}
	guardOpts := []xguard.Option{
		xguard.WithQuota(a.quota, cfg.Quota.Resolver()),
		xguard.WithTrustedProxies(proxies),
		xguard.WithLogger(logger),
		xguard.WithObserver(observer),
	}
	if cfg.Store.FailClosed {
		guardOpts = append(guardOpts, xguard.WithFailClosed())
	}
	a.guard, err = xguard.New(a.limiter, guardOpts...)
	if err != nil {
		return nil, err
	}
	if err := a.guard.Table().Replace(cfg.Routes); err != nil {
		return nil, err
	}

	a.checker = newChecker(cfg.Dependencies, cfg.Retry, a.breakers, logger)
	return a, nil
}

// apiHandler 业务入口：身份注入，然后按路由表准入。
func (a *app) apiHandler() http.Handler {
	mux := http.NewServeMux()
	guarded := a.guard.HTTPMiddleware()
	mux.Handle("GET /v1/dependencies/{name}/health", guarded(a.checker))
	mux.Handle("GET /v1/ping", guarded(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})))
	return xtenant.HTTPMiddleware(xtenant.WithEnsureRequestID())(mux)
}

// adminHandler 管理入口：管理 API、Prometheus 指标与存活检查。
func (a *app) adminHandler() http.Handler {
	svc := &xadmin.Service{Limiter: a.limiter, Quota: a.quota, Breakers: a.breakers, Logger: a.logger}
	mux := http.NewServeMux()
	mux.Handle("/admin/", svc.Handler())
	mux.Handle("GET /metrics", promhttp.HandlerFor(a.metrics, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func serve(ctx context.Context, cfg Config, raw xconf.Config) error {
	logger, cleanup, err := buildLogger(cfg.Log)
	if err != nil {
		return &usageError{msg: err.Error()}
	}
	defer func() { _ = cleanup() }()
	xlog.SetDefault(logger)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn(context.Background(), "close resources failed", xlog.Err(err))
		}
	}()

	apiSrv := &http.Server{Addr: cfg.Server.APIAddr, Handler: a.apiHandler(), ReadHeaderTimeout: cfg.Server.ShutdownTimeout}
	adminSrv := &http.Server{Addr: cfg.Server.AdminAddr, Handler: a.adminHandler(), ReadHeaderTimeout: cfg.Server.ShutdownTimeout}
	services := []xrun.Service{
		xrun.HTTPServer("api", apiSrv, cfg.Server.ShutdownTimeout),
		xrun.HTTPServer("admin", adminSrv, cfg.Server.ShutdownTimeout),
	}

	if raw.Path() != "" {
		w, err := xguard.WatchRoutes(raw, "routes", a.guard.Table(), logger)
		if err != nil {
			logger.Warn(ctx, "route hot reload disabled", xlog.Err(err))
		} else {
			services = append(services, xrun.Func("routes-watcher", w.Run))
		}
	}
	if cfg.Report.Enabled {
		r := &reporter{
			breakers:  a.breakers,
			limitType: a.limiter.Store().Type(),
			quotaType: a.quota.Store().Type(),
			logger:    logger,
			mutex:     newReportMutex(a.redis),
		}
		services = append(services, xrun.Func("reporter", r.run(cfg.Report.Schedule)))
	}

	logger.Info(ctx, "xshield starting",
		slog.String("api_addr", cfg.Server.APIAddr),
		slog.String("admin_addr", cfg.Server.AdminAddr),
		slog.String("store", cfg.Store.Backend),
		slog.Int("routes", a.guard.Table().Len()),
		slog.Int("circuits", len(a.breakers.Names())),
	)
	return xrun.Run(ctx, []xrun.Option{xrun.WithLogger(logger), xrun.WithName("xshield")}, services...)
}
