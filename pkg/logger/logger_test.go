package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfoCFWritesStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo)
	l.InfoCF("engine", "assigned task", Fields{"task_id": "t1"})

	var rec record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, LevelInfo, rec.Level)
	assert.Equal(t, "engine", rec.Category)
	assert.Equal(t, "assigned task", rec.Message)
	assert.Equal(t, "t1", rec.Fields["task_id"])
}

func TestDebugCFIsFilteredBelowMinLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo)
	l.DebugCF("engine", "noisy", nil)
	assert.Empty(t, buf.Bytes())
}

func TestErrorCFPassesAboveMinLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn)
	l.ErrorCF("engine", "failed", nil)
	assert.NotEmpty(t, buf.Bytes())
}

func TestNewDefaultsToInfoOnUnrecognizedLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Level("not-a-level"))
	l.DebugCF("x", "y", nil)
	assert.Empty(t, buf.Bytes(), "an unrecognized min level must fall back to info, not debug")
	l.InfoCF("x", "y", nil)
	assert.NotEmpty(t, buf.Bytes())
}

func TestNewWritesToStdoutWhenWriterIsNil(t *testing.T) {
	l := New(nil, LevelInfo)
	assert.NotNil(t, l.out)
}

func TestSetDefaultChangesPackageLevelLogging(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(New(&buf, LevelInfo))
	InfoCF("pkg", "hello", nil)
	assert.NotEmpty(t, buf.Bytes())
}
