package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"
	"github.com/linjuya-lu/mixer_bridge_go/internal/discovery"
	"github.com/linjuya-lu/mixer_bridge_go/internal/mixer"
	"github.com/linjuya-lu/mixer_bridge_go/internal/serial"
)

// connection 是当前唯一的串口连接
type connection struct {
	name   string
	port   serial.Port
	cancel context.CancelFunc
	done   <-chan struct{}
}

// Rescan 取消正在进行的搜索，关闭当前连接并重新自动搜索
func (d *Driver) Rescan() error {
	return d.do(func() error {
		d.startScan()
		return nil
	})
}

// Connect 直接连接指定串口，跳过搜索
func (d *Driver) Connect(port string) error {
	port = strings.TrimSpace(port)
	if port == "" {
		return errors.NewCommonEdgeX(errors.KindContractInvalid, "port name is empty", nil)
	}
	return d.do(func() error {
		d.connectManual(port)
		return nil
	})
}

func (d *Driver) connectFromSettings() {
	if d.settings.ManualPortEnabled && d.settings.ManualPortName != nil {
		if name := strings.TrimSpace(*d.settings.ManualPortName); name != "" {
			d.connectManual(name)
			return
		}
	}
	d.startScan()
}

func (d *Driver) startScan() {
	d.closeConnection()
	d.setStatus(StatusSearching, "")
	ctx := d.ctx
	d.scanSeq = d.scanner.Start(ctx, func(r discovery.Result) {
		d.postFrom(ctx, func() { d.onScanResult(r) })
	})
}

func (d *Driver) onScanResult(r discovery.Result) {
	if d.scanSeq == 0 || r.Seq != d.scanSeq || r.Cancelled {
		return
	}
	d.scanSeq = 0
	if !r.Found {
		d.setStatus(StatusIdle, "No mixer found")
		return
	}
	d.connect(r.Port)
}

func (d *Driver) connectManual(port string) {
	// 手动连接前必须等待正在进行的搜索释放串口
	d.scanner.Cancel()
	d.scanSeq = 0
	d.connect(port)
}

// connect 先彻底关闭旧连接，再打开新串口并启动读循环
func (d *Driver) connect(port string) {
	d.closeConnection()

	p, err := d.open(d.cfg.ConnectionPort(port))
	if err != nil {
		d.lc.Errorf("open %s: %v", port, err)
		d.setStatus(StatusError, fmt.Sprintf("Could not connect to %s: %v", port, err))
		return
	}

	ctx, cancel := context.WithCancel(d.ctx)
	c := &connection{name: port, port: p, cancel: cancel}
	c.done = serial.StartReadLoop(ctx, p, serial.ParseLine,
		func(frame []byte) {
			line := string(frame)
			d.postFrom(ctx, func() { d.handleLine(c, line) })
		},
		func(err error) {
			d.postFrom(ctx, func() { d.onConnectionLost(c, err) })
		})
	d.conn = c
	d.reconciler.Reset(d.settings.ChannelCount)
	d.setStatus(StatusConnected, port)
}

func (d *Driver) closeConnection() {
	c := d.conn
	if c == nil {
		return
	}
	d.conn = nil
	c.cancel()
	if err := c.port.Close(); err != nil {
		d.lc.Debugf("close %s: %v", c.name, err)
	}
	<-c.done
	d.lc.Debugf("connection to %s closed", c.name)
}

func (d *Driver) onConnectionLost(c *connection, err error) {
	if c != d.conn {
		return
	}
	d.lc.Errorf("connection to %s lost: %v", c.name, err)
	d.closeConnection()
	d.setStatus(StatusError, fmt.Sprintf("Connection to %s lost: %v", c.name, err))
}

// handleLine 处理一行遥测；旧连接残留的数据直接丢弃
func (d *Driver) handleLine(c *connection, line string) {
	if c != d.conn {
		return
	}
	now := d.now()
	cmds := d.reconciler.Apply(line, d.frameConfig(), now)
	for _, lv := range cmds.Levels {
		d.levels.Put(lv.Channel, lv.Value, now)
		d.publishLevel(lv.Channel, lv.Value)
	}
	d.enqueueWrites(cmds.Writes)
}

func (d *Driver) frameConfig() mixer.FrameConfig {
	ids := make([]string, d.settings.ChannelCount)
	for i := range ids {
		ids[i] = d.settings.DeviceIDAt(i)
	}
	return mixer.FrameConfig{
		ChannelCount: d.settings.ChannelCount,
		Deadzone:     d.settings.Deadzone,
		DeviceIDs:    ids,
		RateInterval: d.cfg.RateLimit(),
	}
}

func (d *Driver) publishLevel(ch, value int) {
	if d.pub == nil {
		return
	}
	muted := d.reconciler.Muted(ch)
	volume := float64(value) / mixer.MaxRaw
	if muted {
		volume = 0
	}
	if err := d.pub.PublishLevel(ch, value, volume, muted); err != nil {
		d.lc.Debugf("publish level: %v", err)
	}
}

// SetMuted 修改通道静音状态，立即写入对应音量
func (d *Driver) SetMuted(ch int, muted bool) error {
	return d.do(func() error {
		if err := d.checkChannel(ch); err != nil {
			return err
		}
		d.applyMute(ch, muted)
		return nil
	})
}

// ToggleMute 切换通道静音状态
func (d *Driver) ToggleMute(ch int) error {
	return d.do(func() error {
		if err := d.checkChannel(ch); err != nil {
			return err
		}
		d.applyMute(ch, !d.reconciler.Muted(ch))
		return nil
	})
}

func (d *Driver) applyMute(ch int, muted bool) {
	if d.reconciler.Channels() != d.settings.ChannelCount {
		d.reconciler.Reset(d.settings.ChannelCount)
	}
	if !d.reconciler.SetMuted(ch, muted) {
		return
	}
	if w, ok := d.reconciler.MuteCommand(ch, d.settings.DeviceIDAt(ch), d.now()); ok {
		d.enqueueWrites([]mixer.VolumeWrite{w})
	}
	if lv, err := d.levels.Get(ch); err == nil {
		d.publishLevel(ch, lv.Value)
	}
}

func (d *Driver) checkChannel(ch int) error {
	if ch < 0 || ch >= d.settings.ChannelCount {
		return errors.NewCommonEdgeX(errors.KindContractInvalid,
			fmt.Sprintf("channel %d out of range (1..%d)", ch+1, d.settings.ChannelCount), nil)
	}
	return nil
}
