package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

// Default 返回内置默认配置
func Default() *BridgeConfig {
	return &BridgeConfig{
		DataDir:       defaultDataDir(),
		LogLevel:      "INFO",
		SerialDriver:  DriverBugst,
		RateLimitMs:   60,
		WatchSettings: true,
		Discovery: DiscoveryConfig{
			ProbeTimeoutMs:   300,
			SettleDelayMs:    1500,
			ResponseWindowMs: 1500,
		},
		Connection: ConnectionConfig{
			BaudRate:  9600,
			TimeoutMs: 500,
		},
		MQTT: MQTTConfig{
			Broker:            "tcp://localhost:1883",
			ClientID:          "mixer-bridge",
			TopicPrefix:       "mixer",
			KeepAliveSec:      30,
			ConnectTimeoutSec: 10,
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "mixer-bridge")
	}
	return ".mixer-bridge"
}

// LoadConfig 从 YAML 文件加载配置；path 为空或文件不存在时使用默认值
func LoadConfig(path string) (*BridgeConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	// 1. 读取文件
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// 2. 反序列化，未出现的键保留默认值
	wrapper := struct {
		Bridge BridgeConfig `yaml:"Bridge"`
	}{Bridge: *cfg}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg = &wrapper.Bridge

	// 3. 修正非法值
	cfg.normalize()
	return cfg, nil
}

func (c *BridgeConfig) normalize() {
	def := Default()
	c.DataDir = expandHome(strings.TrimSpace(c.DataDir))
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	c.SerialDriver = strings.ToLower(strings.TrimSpace(c.SerialDriver))
	if c.SerialDriver != DriverTarm {
		c.SerialDriver = DriverBugst
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	c.RateLimitMs = atLeast(c.RateLimitMs, 0)
	c.Discovery.ProbeTimeoutMs = atLeast(c.Discovery.ProbeTimeoutMs, 1)
	c.Discovery.SettleDelayMs = atLeast(c.Discovery.SettleDelayMs, 0)
	c.Discovery.ResponseWindowMs = atLeast(c.Discovery.ResponseWindowMs, 1)
	if c.Connection.BaudRate <= 0 {
		c.Connection.BaudRate = def.Connection.BaudRate
	}
	c.Connection.TimeoutMs = atLeast(c.Connection.TimeoutMs, 1)
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = def.MQTT.TopicPrefix
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	c.MQTT.KeepAliveSec = atLeast(c.MQTT.KeepAliveSec, 1)
	c.MQTT.ConnectTimeoutSec = atLeast(c.MQTT.ConnectTimeoutSec, 1)
}

func atLeast(v, lo int) int {
	if v < lo {
		return lo
	}
	return v
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
