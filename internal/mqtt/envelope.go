package mqtt

import (
	"encoding/json"

	"github.com/google/uuid"
)

// StateOffline 是遗嘱消息和正常下线时发布的状态
const StateOffline = "offline"

// Envelope 是所有发布消息的外层格式
type Envelope struct {
	ApiVersion    string      `json:"apiVersion"`
	CorrelationID string      `json:"correlationID"`
	RequestID     string      `json:"requestID"`
	Payload       interface{} `json:"payload,omitempty"`
	ContentType   string      `json:"contentType"`
}

// LevelPayload 通道电平，Channel 从 1 开始
type LevelPayload struct {
	Channel   int     `json:"channel"`
	Value     int     `json:"value"`
	Volume    float64 `json:"volume"`
	Muted     bool    `json:"muted"`
	Timestamp int64   `json:"timestamp"` // Unix 纳秒
}

// StatusPayload 串口连接状态
type StatusPayload struct {
	State     string `json:"state"`
	Detail    string `json:"detail,omitempty"`
	Port      string `json:"port,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// MuteCommand 远程静音命令
type MuteCommand struct {
	Muted bool `json:"muted"`
}

func newEnvelope(payload interface{}) Envelope {
	return Envelope{
		ApiVersion:    "v1",
		CorrelationID: uuid.NewString(),
		RequestID:     uuid.NewString(),
		Payload:       payload,
		ContentType:   "application/json",
	}
}

func offlineWill() string {
	b, _ := json.Marshal(newEnvelope(StatusPayload{State: StateOffline}))
	return string(b)
}
