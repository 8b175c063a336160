package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"tracecap/internal/capture"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracecap.yaml")
	assert.NilError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NilError(t, cfg.Validate())
	assert.Equal(t, cfg.Capture.SnapLen, 5000)
	assert.Equal(t, cfg.Capture.Count, 0)
	assert.Equal(t, cfg.Dissect.MaxDepth, 8)
	assert.Equal(t, cfg.Output.Indent, 4)

	opts, err := cfg.CaptureOptions()
	assert.NilError(t, err)
	assert.DeepEqual(t, opts, capture.DefaultOptions())
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
capture:
  device: eth1
  read_timeout: 250ms
  count: 12
output:
  hex_dump: true
nats:
  url: nats://127.0.0.1:4222
`)
	cfg, err := LoadConfig(path)
	assert.NilError(t, err)
	assert.Equal(t, cfg.Capture.Device, "eth1")
	assert.Equal(t, cfg.Capture.Count, 12)
	assert.Equal(t, cfg.Capture.SnapLen, 5000)
	assert.Assert(t, cfg.Output.HexDump)
	assert.Equal(t, cfg.Output.Indent, 4)
	assert.Equal(t, cfg.NATS.Subject, "tracecap.frames")

	d, err := cfg.ReadTimeout()
	assert.NilError(t, err)
	assert.Equal(t, d, 250*time.Millisecond)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `
capture:
  snap_len: 0
  read_timeout: soon
  count: 300
dissect:
  max_depth: -1
`)
	_, err := LoadConfig(path)
	assert.Assert(t, err != nil)
	for _, want := range []string{"snap_len", "read_timeout", "count must be between 0 and 255", "max_depth"} {
		assert.Check(t, is.Contains(err.Error(), want))
	}
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = LoadConfig(writeConfig(t, "capture: [not, a, map]"))
	assert.ErrorContains(t, err, "failed to unmarshal config YAML")
}

func TestValidateNATSSubject(t *testing.T) {
	cfg := Default()
	cfg.NATS.URL = "nats://localhost:4222"
	cfg.NATS.Subject = ""
	assert.ErrorContains(t, cfg.Validate(), "nats.subject is required")
}
