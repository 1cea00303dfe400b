package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONLoggerCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := New("debug", "json", &buf)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	ctx := WithRequestID(context.Background(), "req-1")
	FromContext(ctx, logger).Info("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "req-1", line["request_id"])
}

func TestNewFallsBackToInfo(t *testing.T) {
	logger := New("loud", "text", &bytes.Buffer{})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}

func TestRequestIDMissing(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))
	assert.NotEqual(t, NewRequestID(), NewRequestID())
}
