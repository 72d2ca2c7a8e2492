package driver

import (
	"github.com/linjuya-lu/mixer_bridge_go/internal/audio"
	"github.com/linjuya-lu/mixer_bridge_go/internal/binding"
	"github.com/linjuya-lu/mixer_bridge_go/internal/settings"
)

// ChannelView 是一个通道在界面上显示所需的全部信息
type ChannelView struct {
	Index    int
	Label    string
	Binding  binding.Kind
	DeviceID string
	Level    int
	HasLevel bool
	Muted    bool
}

// Snapshot 是事件循环状态的只读副本
type Snapshot struct {
	Status        Status
	Detail        string
	Source        string
	Dirty         bool
	Settings      settings.MixerSettings
	Channels      []ChannelView
	Devices       []audio.Device
	Notices       []string
	DiagnosticLog string
}

// Snapshot 在事件循环里复制一份当前状态
func (d *Driver) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := d.do(func() error {
		snap = d.snapshot()
		return nil
	})
	return snap, err
}

func (d *Driver) snapshot() Snapshot {
	snap := Snapshot{
		Status:        d.status,
		Detail:        d.detail,
		Dirty:         d.dirty,
		Settings:      d.settings.Clone(),
		Devices:       append([]audio.Device(nil), d.devices...),
		Notices:       append([]string(nil), d.notices...),
		DiagnosticLog: d.diag.Path(),
	}
	if d.source != nil {
		snap.Source = d.source.String()
	}
	if d.missingNotice != "" {
		snap.Notices = append(snap.Notices, d.missingNotice)
	}
	if n := d.executor.Notice(); n != "" {
		snap.Notices = append(snap.Notices, n)
	}

	snap.Channels = make([]ChannelView, d.settings.ChannelCount)
	for i := range snap.Channels {
		cv := ChannelView{
			Index:    i,
			DeviceID: d.settings.DeviceIDAt(i),
			Muted:    d.reconciler.Muted(i),
		}
		if i < len(d.resolutions) && d.devicesKnown {
			cv.Binding = d.resolutions[i].Kind
			cv.Label = d.resolutions[i].Label()
		} else if cv.DeviceID != "" {
			cv.Binding = binding.Bound
			cv.Label = cv.DeviceID
		} else {
			cv.Label = "<none>"
		}
		if lv, err := d.levels.Get(i); err == nil {
			cv.Level = lv.Value
			cv.HasLevel = true
		}
		snap.Channels[i] = cv
	}
	return snap
}
