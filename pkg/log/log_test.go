package log

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initBuffer(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	Init(Config{Level: level, JSONOutput: true, Output: &buf})
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	})
	return &buf
}

func entry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var e map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &e))
	return e
}

func TestWithComponent(t *testing.T) {
	buf := initBuffer(t, InfoLevel)

	logger := WithComponent("dispatcher")
	logger.Info().Msg("worker starting")

	e := entry(t, buf)
	assert.Equal(t, "dispatcher", e["component"])
	assert.Equal(t, "worker starting", e["message"])
	assert.Equal(t, "info", e["level"])
}

func TestWithTaskInstance(t *testing.T) {
	buf := initBuffer(t, InfoLevel)

	logger := WithTaskInstance(7, 42)
	logger.Info().Msg("task enqueued")

	e := entry(t, buf)
	assert.Equal(t, float64(7), e["process_instance_id"])
	assert.Equal(t, float64(42), e["task_instance_id"])
}

func TestWithTaskLogName(t *testing.T) {
	buf := initBuffer(t, InfoLevel)

	logger := WithTaskLogName("1686787200_998877_3_7_42")
	logger.Info().Msg("task started")

	e := entry(t, buf)
	assert.Equal(t, "1686787200_998877_3_7_42", e["task_log_name"])
}

func TestInitLevelFilters(t *testing.T) {
	buf := initBuffer(t, ErrorLevel)

	Logger.Info().Msg("below threshold")
	assert.Zero(t, buf.Len(), "info must be filtered at error level")

	Logger.Error().Msg("surfaced")
	assert.NotZero(t, buf.Len())
}

func TestInitUnknownLevelDefaultsToInfo(t *testing.T) {
	buf := initBuffer(t, Level("verbose"))

	Logger.Debug().Msg("filtered")
	assert.Zero(t, buf.Len())

	Logger.Info().Msg("kept")
	assert.NotZero(t, buf.Len())
}
