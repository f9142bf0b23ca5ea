package xlog_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xshield/pkg/context/xctx"
	"github.com/omeyang/xshield/pkg/observability/xlog"
)

func TestBuilder(t *testing.T) {
	t.Run("JSONWithEnrich", func(t *testing.T) {
		var buf bytes.Buffer
		logger, cleanup, err := xlog.New().SetOutput(&buf).SetFormat("json").Build()
		require.NoError(t, err)
		defer func() { _ = cleanup() }()

		ctx, _ := xctx.WithTenantID(context.Background(), "t1")
		logger.Info(ctx, "hello", slog.Int("n", 1))

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, "hello", rec["msg"])
		assert.Equal(t, "t1", rec[xctx.KeyTenantID])
		assert.EqualValues(t, 1, rec["n"])
	})

	t.Run("DynamicLevel", func(t *testing.T) {
		var buf bytes.Buffer
		logger, _, err := xlog.New().SetOutput(&buf).SetLevelString("warn").Build()
		require.NoError(t, err)

		logger.Info(context.Background(), "dropped")
		assert.Zero(t, buf.Len())

		logger.SetLevel(xlog.LevelDebug)
		logger.Debug(context.Background(), "kept")
		assert.Contains(t, buf.String(), "kept")
		assert.Equal(t, xlog.LevelDebug, logger.GetLevel())
	})

	t.Run("InvalidOptions", func(t *testing.T) {
		_, _, err := xlog.New().SetFormat("xml").Build()
		assert.Error(t, err)
		_, _, err = xlog.New().SetLevelString("loud").Build()
		assert.Error(t, err)
		_, _, err = xlog.New().SetRotation(" ").Build()
		assert.Error(t, err)
	})

	t.Run("Rotation", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "app.log")
		logger, cleanup, err := xlog.New().SetRotation(file).Build()
		require.NoError(t, err)
		logger.Warn(context.Background(), "to file")
		require.NoError(t, cleanup())
		require.NoError(t, cleanup())
		assert.FileExists(t, file)
	})
}

func TestWithAndStack(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := xlog.New().SetOutput(&buf).Build()
	require.NoError(t, err)

	logger.With(xlog.Component("xbreaker")).Stack(context.Background(), "boom", xlog.Err(assert.AnError))

	out := buf.String()
	assert.Contains(t, out, "component=xbreaker")
	assert.Contains(t, out, "stack=")
	assert.Contains(t, out, assert.AnError.Error())
}

func TestDefault(t *testing.T) {
	assert.NotNil(t, xlog.Default())
	assert.NotNil(t, xlog.Nop())

	var buf bytes.Buffer
	logger, _, err := xlog.New().SetOutput(&buf).Build()
	require.NoError(t, err)
	prev := xlog.Default()
	xlog.SetDefault(logger)
	t.Cleanup(func() { xlog.SetDefault(prev) })

	xlog.Default().Info(context.Background(), "global")
	assert.Contains(t, buf.String(), "global")
}

func TestAttrs(t *testing.T) {
	assert.Equal(t, "acme", xlog.Tenant("acme").Value.String())
	assert.Equal(t, xlog.KeyCircuit, xlog.Circuit("billing").Key)
	assert.Equal(t, xlog.KeyIdentifier, xlog.Identifier("k").Key)
	assert.True(t, xlog.Err(nil).Equal(slog.Attr{}))
	assert.Equal(t, "1.5s", xlog.Duration(1500*time.Millisecond).Value.String())
}
