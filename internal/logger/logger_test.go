package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeJSON(t *testing.T) {
	var buf bytes.Buffer
	Initialize("debug", "json", WithOutput(&buf))
	defer Initialize("info", "text")

	ExitMethodWithError("OrderService.Cancel", errors.New("boom"), "order_id", 7)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ERROR", line["level"])
	assert.Equal(t, "OrderService.Cancel", line["method"])
	assert.Equal(t, "boom", line["error"])
	assert.EqualValues(t, 7, line["order_id"])
}

func TestInitializeLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	Initialize("warn", "text", WithOutput(&buf))
	defer Initialize("info", "text")

	Info("hidden")
	EnterMethod("hidden")
	Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestWithFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "app.log")
	Initialize("info", "text", WithOutput(&buf), WithFile(path, 1, 1, 1))
	defer Initialize("info", "text")

	Info("to both sinks")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both sinks")
	assert.Contains(t, buf.String(), "to both sinks")
}
