// Package binding 负责把配置中的设备 ID 与当前设备列表对账
package binding

import (
	"fmt"
	"strings"

	"github.com/linjuya-lu/mixer_bridge_go/internal/audio"
	"github.com/linjuya-lu/mixer_bridge_go/internal/settings"
)

// Kind 是一次对账的结果类型
type Kind int

const (
	Unbound   Kind = iota // 未绑定且没有可用设备
	Bound                 // 绑定的设备在线
	Missing               // 绑定的设备当前不在列表中，保留原 ID
	Defaulted             // 未绑定，已默认绑定到第一个设备（配置被修改）
)

func (k Kind) String() string {
	switch k {
	case Bound:
		return "bound"
	case Missing:
		return "missing"
	case Defaulted:
		return "defaulted"
	default:
		return "unbound"
	}
}

// Resolution 是单个通道的对账结果
type Resolution struct {
	Kind     Kind
	DeviceID string
	Device   *audio.Device // Missing/Unbound 时为 nil
}

// Label 返回用于显示的设备名；缺失设备显示占位符
func (r Resolution) Label() string {
	switch r.Kind {
	case Bound, Defaulted:
		return r.Device.Name
	case Missing:
		return "<missing> " + r.DeviceID
	default:
		return "<none>"
	}
}

// Reconcile 按 ID 精确匹配；空白 ID 视为未绑定
func Reconcile(boundID *string, live []audio.Device) Resolution {
	if !isBlank(boundID) {
		if d, ok := audio.FindDevice(live, *boundID); ok {
			return Resolution{Kind: Bound, DeviceID: d.ID, Device: &d}
		}
		return Resolution{Kind: Missing, DeviceID: *boundID}
	}
	if len(live) > 0 {
		d := live[0]
		return Resolution{Kind: Defaulted, DeviceID: d.ID, Device: &d}
	}
	return Resolution{Kind: Unbound}
}

// Report 是整组通道的对账结果
type Report struct {
	Resolutions   []Resolution
	Mutated       bool   // 有通道被默认绑定，配置需要保存
	MissingNotice string // 所有缺失设备的汇总提示，没有缺失时为空
}

// ReconcileAll 对每个通道执行 Reconcile，把默认绑定写回 channels
func ReconcileAll(channels []settings.ChannelBinding, live []audio.Device) Report {
	return ReconcileAllExcept(channels, live, nil)
}

// ReconcileAllExcept 与 ReconcileAll 相同，但 cleared[i] 为 true 且未绑定的通道保持 Unbound，
// 不做默认绑定
func ReconcileAllExcept(channels []settings.ChannelBinding, live []audio.Device, cleared []bool) Report {
	rep := Report{Resolutions: make([]Resolution, len(channels))}
	var missing []string
	for i := range channels {
		var res Resolution
		if i < len(cleared) && cleared[i] && isBlank(channels[i].DeviceID) {
			res = Resolution{Kind: Unbound}
		} else {
			res = Reconcile(channels[i].DeviceID, live)
		}
		rep.Resolutions[i] = res
		switch res.Kind {
		case Defaulted:
			id := res.DeviceID
			channels[i].DeviceID = &id
			rep.Mutated = true
		case Missing:
			missing = append(missing, fmt.Sprintf("channel %d (%s)", i+1, res.DeviceID))
		}
	}
	if len(missing) > 0 {
		rep.MissingNotice = "Missing devices: " + strings.Join(missing, ", ") + "."
	}
	return rep
}

func isBlank(id *string) bool {
	return id == nil || strings.TrimSpace(*id) == ""
}
