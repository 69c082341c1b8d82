package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "json", "info")

	logger.Info("report added", "report_id", "r-1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "report added", entry["msg"])
	assert.Equal(t, "r-1", entry["report_id"])
}

func TestNewLogger_TextRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "text", "warn")

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "msg=shown")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, parseLevel(tt.in), tt.in)
	}
}

func TestNewMetricsForTesting_Unregistered(t *testing.T) {
	m1 := NewMetricsForTesting()
	m2 := NewMetricsForTesting()
	m1.ReportsAdded.Inc()
	m2.ValidationErrors.WithLabelValues("level").Inc()

	assert.InDelta(t, 1.0, testutil.ToFloat64(m1.ReportsAdded), 0)
	assert.InDelta(t, 0.0, testutil.ToFloat64(m2.ReportsAdded), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m2.ValidationErrors.WithLabelValues("level")), 0)
}
