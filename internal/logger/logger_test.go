package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, "info")
	l.Info("stock credited", "blood_group", "O+", "units", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "stock credited", entry["msg"])
	assert.Equal(t, "O+", entry["blood_group"])
	assert.Equal(t, float64(3), entry["units"])
}

func TestSetupHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, "warn")
	l.Info("hidden")
	assert.Zero(t, buf.Len())
	l.Warn("shown")
	assert.NotZero(t, buf.Len())
}
