package logger_adapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"search-service/internal/core/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPoster struct {
	tags    []string
	records []map[string]interface{}
}

func (r *recordingPoster) Post(tag string, message interface{}) error {
	r.tags = append(r.tags, tag)
	r.records = append(r.records, message.(map[string]interface{}))
	return nil
}

func (r *recordingPoster) Close() error { return nil }

func TestSlogAdapter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogAdapter(SlogConfig{Writer: &buf, IsJSON: true, Level: slog.LevelDebug})

	logger.WithFields(port.Fields{"component": "sync"}).Error("apply failed", errors.New("boom"), port.Fields{"id": "42"})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "apply failed", line["msg"])
	assert.Equal(t, "sync", line["component"])
	assert.Equal(t, "42", line["id"])
	assert.Equal(t, "boom", line["err"])
}

func TestSlogAdapter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogAdapter(SlogConfig{Writer: &buf, Level: slog.LevelWarn})

	logger.Info("hidden", nil)
	assert.Zero(t, buf.Len())
	logger.Warn("shown", nil)
	assert.Contains(t, buf.String(), "shown")
}

func TestFluentAdapter(t *testing.T) {
	poster := &recordingPoster{}
	logger, err := NewFluentLoggerAdapter(poster, slog.LevelInfo)
	require.NoError(t, err)

	logger.Debug("dropped", nil)
	logger.WithFields(port.Fields{"trace_id": "t-1"}).Error("failed", errors.New("boom"), port.Fields{"id": "7"})

	require.Len(t, poster.records, 1)
	assert.Equal(t, "error", poster.tags[0])
	rec := poster.records[0]
	assert.Equal(t, "failed", rec["message"])
	assert.Equal(t, "t-1", rec["trace_id"])
	assert.Equal(t, "7", rec["id"])
	assert.Equal(t, "boom", rec["error"])

	_, err = NewFluentLoggerAdapter(nil, nil)
	assert.Error(t, err)
}

func TestMultiLogger(t *testing.T) {
	a, b := &recordingPoster{}, &recordingPoster{}
	la, _ := NewFluentLoggerAdapter(a, slog.LevelDebug)
	lb, _ := NewFluentLoggerAdapter(b, slog.LevelDebug)

	multi, err := NewMultiLoggerAdapter(la, nil, lb)
	require.NoError(t, err)
	multi.WithFields(port.Fields{"k": "v"}).Info("hello", nil)

	require.Len(t, a.records, 1)
	require.Len(t, b.records, 1)
	assert.Equal(t, "v", b.records[0]["k"])

	_, err = NewMultiLoggerAdapter()
	assert.Error(t, err)

	single, err := NewMultiLoggerAdapter(la)
	require.NoError(t, err)
	assert.Same(t, la, single)
}
