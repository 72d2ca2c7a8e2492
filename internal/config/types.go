package config

import "time"

// 串口驱动类型
const (
	DriverBugst = "bugst" // go.bug.st/serial，支持枚举和 DTR/RTS
	DriverTarm  = "tarm"  // github.com/tarm/serial
)

// Port 描述一次串口打开所需的参数
type Port struct {
	Name      string `yaml:"name"`      // 逻辑名称
	Device    string `yaml:"device"`    // 串口设备节点，如 /dev/ttyACM0、COM3
	Type      string `yaml:"type"`      // bugst/tarm
	Baudrate  int    `yaml:"baudrate"`  // 波特率
	TimeoutMs int    `yaml:"timeoutMs"` // 读写超时（毫秒）
	DTR       bool   `yaml:"dtr"`       // 打开后拉高 DTR
	RTS       bool   `yaml:"rts"`       // 打开后拉高 RTS
}

func (p Port) Timeout() time.Duration {
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

// DiscoveryConfig 自动搜索控制器时的时序参数
type DiscoveryConfig struct {
	ProbeTimeoutMs   int `yaml:"ProbeTimeoutMs"`
	SettleDelayMs    int `yaml:"SettleDelayMs"`
	ResponseWindowMs int `yaml:"ResponseWindowMs"`
}

// ConnectionConfig 握手成功后的常驻连接参数
type ConnectionConfig struct {
	BaudRate  int `yaml:"BaudRate"`
	TimeoutMs int `yaml:"TimeoutMs"`
}

// MQTTConfig 电平/状态镜像的 MQTT 参数
type MQTTConfig struct {
	Enabled           bool   `yaml:"Enabled"`
	Broker            string `yaml:"Broker"`
	ClientID          string `yaml:"ClientID"`
	Username          string `yaml:"Username"`
	Password          string `yaml:"Password"`
	TopicPrefix       string `yaml:"TopicPrefix"`
	KeepAliveSec      int    `yaml:"KeepAliveSec"`
	ConnectTimeoutSec int    `yaml:"ConnectTimeoutSec"`
}

// BridgeConfig 汇总了进程级配置
type BridgeConfig struct {
	DataDir       string           `yaml:"DataDir"`
	LogLevel      string           `yaml:"LogLevel"`
	SerialDriver  string           `yaml:"SerialDriver"`
	RateLimitMs   int              `yaml:"RateLimitMs"`
	WatchSettings bool             `yaml:"WatchSettings"`
	Discovery     DiscoveryConfig  `yaml:"Discovery"`
	Connection    ConnectionConfig `yaml:"Connection"`
	MQTT          MQTTConfig       `yaml:"MQTT"`
}

// ConnectionPort 返回常驻连接使用的串口参数
func (c *BridgeConfig) ConnectionPort(device string) Port {
	return Port{
		Name:      device,
		Device:    device,
		Type:      c.SerialDriver,
		Baudrate:  c.Connection.BaudRate,
		TimeoutMs: c.Connection.TimeoutMs,
		DTR:       true,
		RTS:       true,
	}
}

func (c *BridgeConfig) RateLimit() time.Duration {
	return time.Duration(c.RateLimitMs) * time.Millisecond
}
