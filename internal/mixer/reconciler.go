// Package mixer 把控制器上报的推子数据换算成显示电平和音量写入命令
package mixer

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	// MaxRaw 是推子 ADC 的满量程
	MaxRaw = 1023
	// DefaultRateInterval 同一通道两次音量写入的最小间隔
	DefaultRateInterval = 60 * time.Millisecond
)

// ParseFrame 按 '|' 切分一行遥测，去掉空白和空字段
func ParseFrame(line string) []string {
	parts := strings.Split(line, "|")
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FrameConfig 是处理一帧时需要的配置快照
type FrameConfig struct {
	ChannelCount int
	Deadzone     int
	DeviceIDs    []string // 按通道索引，空串表示未绑定
	RateInterval time.Duration
}

// LevelUpdate 更新某通道的显示电平（0..1023）
type LevelUpdate struct {
	Channel int
	Value   int
}

// VolumeWrite 是一次设备音量写入
type VolumeWrite struct {
	Channel  int
	DeviceID string
	Volume   float64
}

// Commands 是一帧处理后的输出
type Commands struct {
	Levels []LevelUpdate
	Writes []VolumeWrite
}

func (c Commands) Empty() bool {
	return len(c.Levels) == 0 && len(c.Writes) == 0
}

// Reconciler 保存每个通道的上次取值、上次写入时间和静音状态。
// 非并发安全，只能在拥有状态的协程里调用。
type Reconciler struct {
	last      []int // -1 表示还没有值
	lastWrite []time.Time
	muted     []bool
}

func NewReconciler(channels int) *Reconciler {
	r := &Reconciler{}
	r.Reset(channels)
	return r
}

// Reset 重建通道集合：清空死区和限速状态，保留仍存在通道的静音状态
func (r *Reconciler) Reset(channels int) {
	if channels < 0 {
		channels = 0
	}
	muted := make([]bool, channels)
	copy(muted, r.muted)

	r.last = make([]int, channels)
	for i := range r.last {
		r.last[i] = -1
	}
	r.lastWrite = make([]time.Time, channels)
	r.muted = muted
}

func (r *Reconciler) Channels() int { return len(r.last) }

// Last 返回通道上次被接受的取值
func (r *Reconciler) Last(ch int) (int, bool) {
	if ch < 0 || ch >= len(r.last) || r.last[ch] < 0 {
		return 0, false
	}
	return r.last[ch], true
}

func (r *Reconciler) Muted(ch int) bool {
	return ch >= 0 && ch < len(r.muted) && r.muted[ch]
}

// SetMuted 修改静音状态，返回是否发生变化。
// 变化后该通道的限速窗口被清除，下一次写入立即生效。
func (r *Reconciler) SetMuted(ch int, muted bool) bool {
	if ch < 0 || ch >= len(r.muted) || r.muted[ch] == muted {
		return false
	}
	r.muted[ch] = muted
	r.lastWrite[ch] = time.Time{}
	return true
}

// MuteCommand 返回切换静音后应立即执行的写入：
// 静音写 0，取消静音恢复到上次取值。未绑定或尚无取值时返回 false。
func (r *Reconciler) MuteCommand(ch int, deviceID string, now time.Time) (VolumeWrite, bool) {
	if ch < 0 || ch >= len(r.last) || strings.TrimSpace(deviceID) == "" {
		return VolumeWrite{}, false
	}
	w := VolumeWrite{Channel: ch, DeviceID: deviceID}
	switch {
	case r.muted[ch]:
		w.Volume = 0
	case r.last[ch] >= 0:
		w.Volume = float64(r.last[ch]) / MaxRaw
	default:
		return VolumeWrite{}, false
	}
	r.lastWrite[ch] = now
	return w, true
}

// Apply 处理一行遥测：解析、钳位、死区过滤、限速、静音，返回需要执行的命令。
// 任何单个字段的错误只影响该通道。
func (r *Reconciler) Apply(line string, cfg FrameConfig, now time.Time) Commands {
	var cmds Commands
	tokens := ParseFrame(line)
	if len(tokens) == 0 {
		return cmds
	}
	if cfg.ChannelCount != len(r.last) {
		r.Reset(cfg.ChannelCount)
	}

	for i, tok := range tokens {
		if i >= len(r.last) {
			break
		}
		value, ok := parseRaw(tok)
		if !ok {
			continue
		}

		if prev := r.last[i]; prev >= 0 && abs(prev-value) < cfg.Deadzone {
			continue
		}
		r.last[i] = value
		cmds.Levels = append(cmds.Levels, LevelUpdate{Channel: i, Value: value})

		deviceID := ""
		if i < len(cfg.DeviceIDs) {
			deviceID = strings.TrimSpace(cfg.DeviceIDs[i])
		}
		if deviceID == "" {
			continue
		}
		if !r.lastWrite[i].IsZero() && now.Sub(r.lastWrite[i]) < cfg.RateInterval {
			continue
		}
		r.lastWrite[i] = now

		volume := float64(value) / MaxRaw
		if r.muted[i] {
			volume = 0
		}
		cmds.Writes = append(cmds.Writes, VolumeWrite{Channel: i, DeviceID: deviceID, Volume: volume})
	}
	return cmds
}

// parseRaw 解析一个整数字段并钳位到 [0, MaxRaw]；超出 int 范围的数字按符号钳位
func parseRaw(tok string) (int, bool) {
	v, err := strconv.Atoi(tok)
	if err != nil {
		if !errors.Is(err, strconv.ErrRange) {
			return 0, false
		}
		if strings.HasPrefix(tok, "-") {
			return 0, true
		}
		return MaxRaw, true
	}
	return clampRaw(v), true
}

func clampRaw(v int) int {
	if v < 0 {
		return 0
	}
	if v > MaxRaw {
		return MaxRaw
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
