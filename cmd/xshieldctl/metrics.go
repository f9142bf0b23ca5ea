package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/omeyang/xshield/pkg/observability/xlog"
	"github.com/omeyang/xshield/pkg/resilience/xbreaker"
)

// circuitCollector 在每次抓取时读取熔断器快照。
type circuitCollector struct {
	breakers *xbreaker.Registry
	logger   xlog.Logger

	state    *prometheus.Desc
	requests *prometheus.Desc
	failures *prometheus.Desc
	consec   *prometheus.Desc
}

func newCircuitCollector(breakers *xbreaker.Registry, logger xlog.Logger) *circuitCollector {
	return &circuitCollector{
		breakers: breakers,
		logger:   logger,
		state: prometheus.NewDesc("xshield_circuit_state",
			"Circuit state: 0 closed, 1 half-open, 2 open.", []string{"circuit"}, nil),
		requests: prometheus.NewDesc("xshield_circuit_requests",
			"Requests in the current generation.", []string{"circuit"}, nil),
		failures: prometheus.NewDesc("xshield_circuit_failures",
			"Failures in the current generation.", []string{"circuit"}, nil),
		consec: prometheus.NewDesc("xshield_circuit_consecutive_failures",
			"Consecutive failures in the current generation.", []string{"circuit"}, nil),
	}
}

func (c *circuitCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.state
	ch <- c.requests
	ch <- c.failures
	ch <- c.consec
}

func (c *circuitCollector) Collect(ch chan<- prometheus.Metric) {
	snaps, err := c.breakers.Snapshots()
	if err != nil {
		c.logger.Warn(context.Background(), "collect circuit snapshots failed", xlog.Err(err))
		return
	}
	for _, s := range snaps {
		ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, stateValue(s.State), s.Name)
		ch <- prometheus.MustNewConstMetric(c.requests, prometheus.GaugeValue, float64(s.Counts.Requests), s.Name)
		ch <- prometheus.MustNewConstMetric(c.failures, prometheus.GaugeValue, float64(s.Counts.TotalFailures), s.Name)
		ch <- prometheus.MustNewConstMetric(c.consec, prometheus.GaugeValue, float64(s.Counts.ConsecutiveFailures), s.Name)
	}
}

func stateValue(s xbreaker.State) float64 {
	switch s {
	case xbreaker.StateHalfOpen:
		return 1
	case xbreaker.StateOpen:
		return 2
	}
	return 0
}
