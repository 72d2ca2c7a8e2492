package serial

import (
	"fmt"

	"github.com/linjuya-lu/mixer_bridge_go/internal/config"
	bugst "go.bug.st/serial"
)

// BugstPort 基于 go.bug.st/serial，支持 DTR/RTS 控制和缓冲区清空
type BugstPort struct {
	cfg    config.Port
	handle bugst.Port
}

func NewBugstPort(cfg config.Port) Port {
	return &BugstPort{cfg: cfg}
}

// Open 打开串口，设置读超时并按配置拉高 DTR/RTS
func (b *BugstPort) Open() error {
	mode := &bugst.Mode{
		BaudRate:          b.cfg.Baudrate,
		InitialStatusBits: &bugst.ModemOutputBits{DTR: b.cfg.DTR, RTS: b.cfg.RTS},
	}
	p, err := bugst.Open(b.cfg.Device, mode)
	if err != nil {
		return fmt.Errorf("open serial %s failed: %w", b.cfg.Device, err)
	}
	if err := p.SetReadTimeout(b.cfg.Timeout()); err != nil {
		p.Close()
		return fmt.Errorf("set read timeout on %s: %w", b.cfg.Device, err)
	}
	// unix 平台无法在打开前设置控制线，这里再显式设置一次
	if err := p.SetDTR(b.cfg.DTR); err != nil {
		p.Close()
		return fmt.Errorf("set DTR on %s: %w", b.cfg.Device, err)
	}
	if err := p.SetRTS(b.cfg.RTS); err != nil {
		p.Close()
		return fmt.Errorf("set RTS on %s: %w", b.cfg.Device, err)
	}
	b.handle = p
	return nil
}

func (b *BugstPort) Close() error {
	if b.handle == nil {
		return nil
	}
	err := b.handle.Close()
	b.handle = nil
	return err
}

// Read 超时返回 (0, nil)
func (b *BugstPort) Read(p []byte) (int, error) {
	if b.handle == nil {
		return 0, fmt.Errorf("serial %s is not open", b.cfg.Device)
	}
	return b.handle.Read(p)
}

func (b *BugstPort) Write(p []byte) (int, error) {
	if b.handle == nil {
		return 0, fmt.Errorf("serial %s is not open", b.cfg.Device)
	}
	n, err := b.handle.Write(p)
	if err != nil {
		return n, fmt.Errorf("serial write failed: %w", err)
	}
	return n, nil
}

func (b *BugstPort) Name() string {
	return b.cfg.Name
}

func (b *BugstPort) Discard() error {
	if b.handle == nil {
		return nil
	}
	if err := b.handle.ResetInputBuffer(); err != nil {
		return fmt.Errorf("reset input buffer: %w", err)
	}
	if err := b.handle.ResetOutputBuffer(); err != nil {
		return fmt.Errorf("reset output buffer: %w", err)
	}
	return nil
}
