package driver

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"
	"github.com/linjuya-lu/mixer_bridge_go/internal/audio"
	"github.com/linjuya-lu/mixer_bridge_go/internal/binding"
	"github.com/linjuya-lu/mixer_bridge_go/internal/settings"
)

const deviceListTimeout = 5 * time.Second

// DefaultSettingsFile 是未指定文件时保存配置的文件名（位于数据目录）
const DefaultSettingsFile = "mixer-settings.json"

// LoadIdentifier 按 profile:<name> 或文件路径切换配置，并记为上次使用的配置
func (d *Driver) LoadIdentifier(raw string) error {
	return d.do(func() error {
		return d.switchTo(func() error { return d.loadIdentifier(raw) })
	})
}

// LoadFile 加载配置文件；文件不存在等错误直接返回给调用方
func (d *Driver) LoadFile(path string) error {
	return d.do(func() error {
		return d.switchTo(func() error { return d.loadFile(path) })
	})
}

// ApplyPreset 切换到内置预设
func (d *Driver) ApplyPreset(name string) error {
	return d.LoadIdentifier("profile:" + name)
}

// switchTo 执行一次配置切换，成功后记录标识，手动串口设置变化时重新连接
func (d *Driver) switchTo(load func() error) error {
	prevManual, prevName := d.manualPort()
	if err := load(); err != nil {
		return err
	}
	d.rememberSource()
	if manual, name := d.manualPort(); manual != prevManual || name != prevName {
		d.connectFromSettings()
	}
	return nil
}

// rememberSource 记录当前配置标识，下次启动时恢复
func (d *Driver) rememberSource() {
	if d.source == nil {
		return
	}
	if err := d.appState.SetLastIdentifier(*d.source); err != nil {
		d.lc.Warnf("could not persist last configuration: %v", err)
	}
}

func (d *Driver) manualPort() (bool, string) {
	name := ""
	if d.settings.ManualPortName != nil {
		name = strings.TrimSpace(*d.settings.ManualPortName)
	}
	return d.settings.ManualPortEnabled, name
}

func (d *Driver) loadIdentifier(raw string) error {
	id, err := settings.ParseIdentifier(raw)
	if err != nil {
		return err
	}
	if id.Kind == settings.IdentifierFile {
		return d.loadFile(id.Value)
	}
	p, err := settings.PresetByIdentifier(id.String())
	if err != nil {
		return err
	}
	d.applySettings(p.Build(), &id)
	d.lc.Infof("preset %s applied", p.Name)
	return nil
}

func (d *Driver) loadFile(path string) error {
	text, err := d.store.ReadText(path)
	if err != nil {
		return err
	}
	res := settings.LoadBestEffort(text, settings.MaxChannels)
	id := settings.Identifier{Kind: settings.IdentifierFile, Value: path}
	d.applySettings(res.Settings, &id)
	d.lastSaved = text
	if res.HasWarnings() {
		d.reportWarnings(path, res.Warnings)
	}
	d.lc.Infof("configuration loaded from %s", path)
	return nil
}

func (d *Driver) reportWarnings(source string, warnings []string) {
	for _, w := range warnings {
		d.lc.Warnf("%s: %s", source, w)
	}
	if err := d.diag.Append(source, warnings, d.now()); err != nil {
		d.lc.Errorf("write diagnostic log: %v", err)
	}
	d.addNotice(fmt.Sprintf("%d configuration warning(s) while loading %s. Details: %s",
		len(warnings), source, d.diag.Path()))
	for _, w := range warnings {
		d.addNotice(w)
	}
}

// applySettings 替换当前配置：重建通道集合，并与已知设备对账
func (d *Driver) applySettings(s settings.MixerSettings, id *settings.Identifier) {
	d.settings = s
	d.source = id
	d.dirty = false
	d.lastSaved = ""
	d.cleared = nil
	d.reconciler.Reset(s.ChannelCount)
	d.levels.Reset()
	if d.devicesKnown {
		d.reconcileBindings()
	}
	if d.watcher != nil {
		path := ""
		if id != nil && id.Kind == settings.IdentifierFile {
			path = id.Value
		}
		if err := d.watcher.Watch(path); err != nil {
			d.lc.Warnf("cannot watch %s: %v", path, err)
		}
	}
}

// reconcileBindings 把配置中的绑定与当前设备列表对账；默认绑定会把配置标记为已修改
func (d *Driver) reconcileBindings() {
	rep := binding.ReconcileAllExcept(d.settings.Channels, d.devices, d.cleared)
	d.resolutions = rep.Resolutions
	if rep.Mutated {
		d.dirty = true
	}
	d.missingNotice = rep.MissingNotice
	if rep.MissingNotice != "" {
		d.lc.Warn(rep.MissingNotice)
	}
}

// RefreshDevices 重新枚举输出设备并重新对账
func (d *Driver) RefreshDevices() error {
	return d.do(d.refreshDevices)
}

func (d *Driver) refreshDevices() error {
	ctx, cancel := context.WithTimeout(d.ctx, deviceListTimeout)
	defer cancel()
	devs, err := d.audio.ListOutputDevices(ctx)
	if err != nil {
		d.lc.Errorf("list output devices: %v", err)
		d.addNotice(fmt.Sprintf("Output devices could not be listed: %v", err))
		return err
	}
	d.devices = devs
	d.devicesKnown = true
	d.reconcileBindings()
	return nil
}

// Save 保存当前配置；path 为空时写回当前文件，当前配置不是文件时写到数据目录下的 DefaultSettingsFile
func (d *Driver) Save(path string) error {
	return d.do(func() error {
		path = strings.TrimSpace(path)
		if path == "" {
			path = d.defaultSavePath()
		}
		text, err := settings.Marshal(d.settings)
		if err != nil {
			return err
		}
		if err := d.store.WriteText(path, text); err != nil {
			return err
		}
		id := settings.Identifier{Kind: settings.IdentifierFile, Value: path}
		d.source = &id
		d.dirty = false
		d.lastSaved = text
		if err := d.appState.SetLastIdentifier(id); err != nil {
			d.lc.Warnf("could not persist last configuration: %v", err)
		}
		if d.watcher != nil {
			if err := d.watcher.Watch(path); err != nil {
				d.lc.Warnf("cannot watch %s: %v", path, err)
			}
		}
		d.lc.Infof("configuration saved to %s", path)
		return nil
	})
}

func (d *Driver) defaultSavePath() string {
	if d.source != nil && d.source.Kind == settings.IdentifierFile {
		return d.source.Value
	}
	return filepath.Join(d.cfg.DataDir, DefaultSettingsFile)
}

// SetChannelCount 修改通道数，超出范围时钳位
func (d *Driver) SetChannelCount(n int) error {
	return d.do(func() error {
		d.settings.Resize(n, settings.MaxChannels)
		if len(d.cleared) > d.settings.ChannelCount {
			d.cleared = d.cleared[:d.settings.ChannelCount]
		}
		d.reconciler.Reset(d.settings.ChannelCount)
		d.levels.Truncate(d.settings.ChannelCount)
		if d.devicesKnown {
			d.reconcileBindings()
		}
		d.dirty = true
		return nil
	})
}

// SetDeadzone 修改死区，限制在 [0, MaxDeadzone]
func (d *Driver) SetDeadzone(n int) error {
	return d.do(func() error {
		if n < 0 {
			n = 0
		}
		if n > settings.MaxDeadzone {
			n = settings.MaxDeadzone
		}
		d.settings.Deadzone = n
		d.dirty = true
		return nil
	})
}

// SetManualPort 开启/关闭手动串口并立即按新设置连接
func (d *Driver) SetManualPort(enabled bool, name string) error {
	return d.do(func() error {
		name = strings.TrimSpace(name)
		d.settings.ManualPortEnabled = enabled
		if name != "" {
			d.settings.ManualPortName = &name
		} else {
			d.settings.ManualPortName = nil
		}
		d.dirty = true
		d.connectFromSettings()
		return nil
	})
}

// BindChannel 把通道绑定到设备；deviceID 为空表示解除绑定
func (d *Driver) BindChannel(ch int, deviceID string) error {
	return d.do(func() error {
		if err := d.checkChannel(ch); err != nil {
			return err
		}
		deviceID = strings.TrimSpace(deviceID)
		if deviceID != "" && d.devicesKnown {
			if _, ok := audio.FindDevice(d.devices, deviceID); !ok {
				return errors.NewCommonEdgeX(errors.KindEntityDoesNotExist,
					fmt.Sprintf("output device %s not found", deviceID), nil)
			}
		}
		d.settings.Bind(ch, deviceID)
		d.setCleared(ch, deviceID == "")
		d.dirty = true
		if d.devicesKnown {
			d.reconcileBindings()
		}
		return nil
	})
}

// setCleared 记录通道是否被显式解除绑定；切换配置时清空
func (d *Driver) setCleared(ch int, cleared bool) {
	for len(d.cleared) <= ch {
		d.cleared = append(d.cleared, false)
	}
	d.cleared[ch] = cleared
}

// onSettingsFileChanged 由文件监视器在后台协程调用
func (d *Driver) onSettingsFileChanged(path string) {
	d.post(func() { d.reloadFromDisk(path) })
}

func (d *Driver) reloadFromDisk(path string) {
	if d.source == nil || d.source.Kind != settings.IdentifierFile {
		return
	}
	if !samePath(d.source.Value, path) {
		return
	}
	text, err := d.store.ReadText(path)
	if err != nil || text == d.lastSaved {
		return
	}
	d.lc.Infof("%s changed on disk, reloading", path)
	if err := d.switchTo(func() error { return d.loadFile(d.source.Value) }); err != nil {
		d.addNotice(fmt.Sprintf("Configuration could not be reloaded: %v", err))
	}
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
