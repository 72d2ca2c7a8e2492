package settings

import (
	"encoding/json"
	"fmt"
)

const (
	CurrentVersion = 1 // 当前实现认识的配置版本
	MaxChannels    = 8 // 硬件最多 8 个推子
	MaxDeadzone    = 200
)

// ChannelBinding 描述一个通道绑定的音频设备，DeviceID 为空表示未绑定
type ChannelBinding struct {
	DeviceID *string `json:"DeviceId"`
}

// MixerSettings 是持久化的混音器配置
type MixerSettings struct {
	Version           int              `json:"Version"`
	ChannelCount      int              `json:"ChannelCount"`
	Deadzone          int              `json:"Deadzone"`
	Channels          []ChannelBinding `json:"Channels"`
	ManualPortEnabled bool             `json:"ManualPortEnabled"`
	ManualPortName    *string          `json:"ManualPortName"`

	// 以下为界面字段，核心逻辑只做透传
	BackgroundColorArgb    int `json:"BackgroundColorArgb"`
	SurfaceColorArgb       int `json:"SurfaceColorArgb"`
	SurfaceAccentColorArgb int `json:"SurfaceAccentColorArgb"`
	AccentColorArgb        int `json:"AccentColorArgb"`
	MutedTextColorArgb     int `json:"MutedTextColorArgb"`
	ChannelLabelWidth      int `json:"ChannelLabelWidth"`
	ChannelRowHeight       int `json:"ChannelRowHeight"`
}

// LoadResult 是 LoadBestEffort 的结果：配置 + 按处理顺序排列的警告
type LoadResult struct {
	Settings MixerSettings
	Warnings []string
}

func (r LoadResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// argb 按 .NET Color.ToArgb 的方式打包，alpha 固定 255
func argb(r, g, b int) int {
	return int(int32(uint32(0xFF)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b)))
}

// CreateDefault 返回内置默认配置
func CreateDefault() MixerSettings {
	s := MixerSettings{
		Version:                CurrentVersion,
		ChannelCount:           5,
		Deadzone:               6,
		BackgroundColorArgb:    argb(24, 24, 28),
		SurfaceColorArgb:       argb(36, 36, 42),
		SurfaceAccentColorArgb: argb(44, 44, 52),
		AccentColorArgb:        argb(88, 142, 206),
		MutedTextColorArgb:     argb(180, 182, 190),
		ChannelLabelWidth:      120,
		ChannelRowHeight:       52,
	}
	s.Channels = make([]ChannelBinding, s.ChannelCount)
	return s
}

// Resize 把通道数限制在 [1, maxChannels] 并同步增删 Channels
func (s *MixerSettings) Resize(n, maxChannels int) {
	s.ChannelCount = clamp(n, 1, max(maxChannels, 1))
	if len(s.Channels) > s.ChannelCount {
		s.Channels = s.Channels[:s.ChannelCount]
	}
	for len(s.Channels) < s.ChannelCount {
		s.Channels = append(s.Channels, ChannelBinding{})
	}
}

// DeviceIDAt 返回通道绑定的设备 ID，越界或未绑定时返回 ""
func (s *MixerSettings) DeviceIDAt(ch int) string {
	if ch < 0 || ch >= len(s.Channels) || s.Channels[ch].DeviceID == nil {
		return ""
	}
	return *s.Channels[ch].DeviceID
}

// Bind 设置通道绑定；id 为空串表示解除绑定
func (s *MixerSettings) Bind(ch int, id string) {
	for len(s.Channels) <= ch {
		s.Channels = append(s.Channels, ChannelBinding{})
	}
	if id == "" {
		s.Channels[ch].DeviceID = nil
		return
	}
	s.Channels[ch].DeviceID = &id
}

// Clone 深拷贝，避免多个持有者共享指针字段
func (s MixerSettings) Clone() MixerSettings {
	out := s
	out.Channels = make([]ChannelBinding, len(s.Channels))
	for i, c := range s.Channels {
		if c.DeviceID != nil {
			id := *c.DeviceID
			out.Channels[i].DeviceID = &id
		}
	}
	if s.ManualPortName != nil {
		name := *s.ManualPortName
		out.ManualPortName = &name
	}
	return out
}

// Marshal 序列化为缩进 JSON，与 LoadBestEffort 可往返
func Marshal(s MixerSettings) (string, error) {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal mixer settings: %w", err)
	}
	return string(b), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
