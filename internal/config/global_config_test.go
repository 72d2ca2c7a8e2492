package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 9600, cfg.Connection.BaudRate)
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	yml := `
Bridge:
  DataDir: /var/lib/mixer
  SerialDriver: TARM
  RateLimitMs: 80
  Discovery:
    SettleDelayMs: 10
    ResponseWindowMs: -3
  MQTT:
    Enabled: true
    Broker: tcp://broker:1883
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/mixer", cfg.DataDir)
	assert.Equal(t, DriverTarm, cfg.SerialDriver)
	assert.Equal(t, 80*time.Millisecond, cfg.RateLimit())
	assert.Equal(t, 10, cfg.Discovery.SettleDelayMs)
	assert.Equal(t, 1, cfg.Discovery.ResponseWindowMs)
	assert.Equal(t, 300, cfg.Discovery.ProbeTimeoutMs)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, "mixer", cfg.MQTT.TopicPrefix)
}

func TestLoadConfig_UnknownDriverFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Bridge:\n  SerialDriver: rs485\n"), 0o644))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DriverBugst, cfg.SerialDriver)
}

func TestLoadConfig_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Bridge: [\n"), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConnectionPort(t *testing.T) {
	cfg := Default()
	p := cfg.ConnectionPort("/dev/ttyUSB0")
	assert.Equal(t, "/dev/ttyUSB0", p.Device)
	assert.Equal(t, 9600, p.Baudrate)
	assert.Equal(t, 500*time.Millisecond, p.Timeout())
	assert.True(t, p.DTR)
	assert.True(t, p.RTS)
}
