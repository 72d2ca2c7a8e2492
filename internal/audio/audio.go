// Package audio 定义输出设备枚举和音量设置的外部接口
package audio

import "context"

// Device 是某一时刻可枚举输出设备的快照
type Device struct {
	ID   string
	Name string
}

// Manager 是平台音频 API 的最小接口。
// SetVolume 是幂等的纯副作用调用，实现不得跨调用缓存设备句柄。
type Manager interface {
	ListOutputDevices(ctx context.Context) ([]Device, error)
	SetVolume(ctx context.Context, deviceID string, scalar float64) error
}

// Clamp 把音量限制在 [0, 1]
func Clamp(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// FindDevice 按 ID 精确查找设备
func FindDevice(devices []Device, id string) (Device, bool) {
	for _, d := range devices {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}
