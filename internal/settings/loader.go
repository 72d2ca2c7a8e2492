package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	msgUnreadable    = "The configuration file could not be read: %v."
	msgNotObject     = "The configuration file does not contain a valid JSON object."
	msgMissing       = "Field %q is missing; default value used."
	msgInvalid       = "Field %q has an invalid format; default value used."
	msgNewerVersion  = "Configuration version %d is newer than expected (%d)."
	msgChannelsBad   = "Field \"Channels\" is missing or invalid; default values used."
	msgChannelsGrown = "Channel count expanded to match the configuration."
	msgChannelsCut   = "Channel count reduced to match the configuration."
)

// fieldReader 逐字段解码，把每个字段的问题累积成警告
type fieldReader struct {
	warnings []string
}

func (r *fieldReader) warn(format string, args ...any) {
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

// LoadBestEffort 尽力解析配置 JSON：
//   - 永不返回错误，解析失败时返回默认配置 + 警告
//   - 缺失/格式错误的字段回退到默认值并记录警告
//   - ChannelCount 限制在 [1, maxChannels]，Deadzone 限制在 [0, 200]
//   - Channels 长度始终等于 ChannelCount
func LoadBestEffort(jsonText string, maxChannels int) LoadResult {
	defaults := CreateDefault()
	r := &fieldReader{}

	root, err := decodeRoot(jsonText)
	if err != nil {
		if errors.Is(err, errNotObject) {
			r.warn(msgNotObject)
		} else {
			r.warn(msgUnreadable, err)
		}
		return LoadResult{Settings: defaults, Warnings: r.warnings}
	}

	s := CreateDefault()
	s.Version = r.readInt(root, "Version", CurrentVersion)
	if s.Version > CurrentVersion {
		r.warn(msgNewerVersion, s.Version, CurrentVersion)
	}

	s.ChannelCount = clamp(r.readInt(root, "ChannelCount", defaults.ChannelCount), 1, max(maxChannels, 1))
	s.Deadzone = clamp(r.readInt(root, "Deadzone", defaults.Deadzone), 0, MaxDeadzone)
	s.ManualPortEnabled = r.readBool(root, "ManualPortEnabled", defaults.ManualPortEnabled)
	s.ManualPortName = r.readString(root, "ManualPortName", "ManualPortName", defaults.ManualPortName)
	s.BackgroundColorArgb = r.readInt(root, "BackgroundColorArgb", defaults.BackgroundColorArgb)
	s.SurfaceColorArgb = r.readInt(root, "SurfaceColorArgb", defaults.SurfaceColorArgb)
	s.SurfaceAccentColorArgb = r.readInt(root, "SurfaceAccentColorArgb", defaults.SurfaceAccentColorArgb)
	s.AccentColorArgb = r.readInt(root, "AccentColorArgb", defaults.AccentColorArgb)
	s.MutedTextColorArgb = r.readInt(root, "MutedTextColorArgb", defaults.MutedTextColorArgb)
	s.ChannelLabelWidth = r.readInt(root, "ChannelLabelWidth", defaults.ChannelLabelWidth)
	s.ChannelRowHeight = r.readInt(root, "ChannelRowHeight", defaults.ChannelRowHeight)

	s.Channels = r.readChannels(root, s.ChannelCount)
	return LoadResult{Settings: s, Warnings: r.warnings}
}

var errNotObject = errors.New("root is not an object")

// decodeRoot 解析整个文档，要求根节点为对象且没有多余内容
func decodeRoot(text string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after the top-level value")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return obj, nil
}

func (r *fieldReader) readInt(obj map[string]any, name string, fallback int) int {
	raw, ok := obj[name]
	if !ok {
		r.warn(msgMissing, name)
		return fallback
	}
	if n, ok := parseInt32(raw); ok {
		return n
	}
	r.warn(msgInvalid, name)
	return fallback
}

// parseInt32 接受 JSON 整数和数字字符串，范围限定为 int32
func parseInt32(raw any) (int, bool) {
	var text string
	switch v := raw.(type) {
	case json.Number:
		text = v.String()
	case string:
		text = strings.TrimSpace(v)
	default:
		return 0, false
	}
	n, err := strconv.ParseInt(text, 10, 32)
	if err != nil {
		return 0, false
	}
	return int(n), true
}

func (r *fieldReader) readBool(obj map[string]any, name string, fallback bool) bool {
	raw, ok := obj[name]
	if !ok {
		r.warn(msgMissing, name)
		return fallback
	}
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		switch t := strings.TrimSpace(v); {
		case strings.EqualFold(t, "true"):
			return true
		case strings.EqualFold(t, "false"):
			return false
		}
	}
	r.warn(msgInvalid, name)
	return fallback
}

// readString 读取可空字符串；JSON null 是合法值，表示未设置
func (r *fieldReader) readString(obj map[string]any, key, label string, fallback *string) *string {
	raw, ok := obj[key]
	if !ok {
		r.warn(msgMissing, label)
		return fallback
	}
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		return &v
	}
	r.warn(msgInvalid, label)
	return fallback
}

func (r *fieldReader) readChannels(obj map[string]any, channelCount int) []ChannelBinding {
	items, ok := obj["Channels"].([]any)
	if !ok {
		r.warn(msgChannelsBad)
		return make([]ChannelBinding, channelCount)
	}

	channels := make([]ChannelBinding, 0, len(items))
	for i, item := range items {
		elem, ok := item.(map[string]any)
		if !ok {
			channels = append(channels, ChannelBinding{})
			continue
		}
		label := fmt.Sprintf("Channels[%d].DeviceId", i)
		channels = append(channels, ChannelBinding{DeviceID: r.readString(elem, "DeviceId", label, nil)})
	}

	switch {
	case len(channels) < channelCount:
		r.warn(msgChannelsGrown)
		for len(channels) < channelCount {
			channels = append(channels, ChannelBinding{})
		}
	case len(channels) > channelCount:
		r.warn(msgChannelsCut)
		channels = channels[:channelCount]
	}
	return channels
}
