package xmetrics_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/omeyang/xshield/pkg/context/xctx"
	"github.com/omeyang/xshield/pkg/observability/xmetrics"
)

func newObserver(t *testing.T) (xmetrics.Observer, *sdkmetric.ManualReader, *tracetest.SpanRecorder) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	recorder := tracetest.NewSpanRecorder()
	obs, err := xmetrics.NewOTelObserver(
		xmetrics.WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))),
		xmetrics.WithTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))),
	)
	require.NoError(t, err)
	return obs, reader, recorder
}

func TestOTelObserver(t *testing.T) {
	obs, reader, recorder := newObserver(t)

	ctx, span := xmetrics.Start(context.Background(), obs, xmetrics.SpanOptions{
		Component: "xlimit",
		Operation: "check",
		Attrs:     []xmetrics.Attr{xmetrics.Int("limit", 10)},
	})
	assert.NotEmpty(t, xctx.TraceID(ctx))
	span.End(xmetrics.Result{Err: errors.New("store down")})
	span.End(xmetrics.Result{})

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "xlimit.check", ended[0].Name())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.NotEmpty(t, rm.ScopeMetrics)

	var total int64
	for _, m := range rm.ScopeMetrics[0].Metrics {
		if m.Name != xmetrics.MetricOperationTotal {
			continue
		}
		sum, ok := m.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		for _, dp := range sum.DataPoints {
			total += dp.Value
			status, _ := dp.Attributes.Value("status")
			assert.Equal(t, "error", status.AsString())
		}
	}
	assert.EqualValues(t, 1, total)
}

func TestStartNilObserver(t *testing.T) {
	ctx, span := xmetrics.Start(context.Background(), nil, xmetrics.SpanOptions{})
	assert.NotNil(t, ctx)
	assert.NotPanics(t, func() { span.End(xmetrics.Result{}) })
}
