package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	appCtx "github.com/baechuer/real-time-ressys/booking-service/internal/pkg/context"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithWriter_DefaultsToInfoConsole(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")

	var buf bytes.Buffer
	InitWithWriter(&buf)

	assert.Equal(t, "info", Logger.GetLevel().String())
	assert.Equal(t, Logger.GetLevel(), zlog.Logger.GetLevel())

	Logger.Debug().Msg("hidden")
	Logger.Info().Msg("hello")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "hello")
	assert.False(t, strings.HasPrefix(strings.TrimSpace(out), "{"))
}

func TestInitWithWriter_InvalidLevelFallsBack(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")
	t.Setenv("LOG_FORMAT", "console")

	var buf bytes.Buffer
	InitWithWriter(&buf)
	assert.Equal(t, "info", Logger.GetLevel().String())
}

func TestWithCtx_AddsRequestID(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	var buf bytes.Buffer
	InitWithWriter(&buf)

	ctx := appCtx.WithRequestID(context.Background(), "rid-42")
	WithCtx(ctx).Info().Msg("hello")

	out := strings.TrimSpace(buf.String())
	require.True(t, strings.HasPrefix(out, "{"))
	assert.Contains(t, out, `"request_id":"rid-42"`)
	assert.Contains(t, out, `"message":"hello"`)
}
