package serial

import (
	"fmt"

	"github.com/linjuya-lu/mixer_bridge_go/internal/config"
	"github.com/tarm/serial"
)

// TarmPort 基于 github.com/tarm/serial。
// tarm 不能单独控制 DTR/RTS，依赖系统打开串口时的默认电平（Linux/Windows 默认拉高）。
type TarmPort struct {
	cfg    config.Port
	handle *serial.Port
}

func NewTarmPort(cfg config.Port) Port {
	return &TarmPort{cfg: cfg}
}

func (t *TarmPort) Open() error {
	sc := &serial.Config{
		Name:        t.cfg.Device,
		Baud:        t.cfg.Baudrate,
		ReadTimeout: t.cfg.Timeout(),
	}
	p, err := serial.OpenPort(sc)
	if err != nil {
		return fmt.Errorf("open serial %s failed: %w", t.cfg.Device, err)
	}
	t.handle = p
	return nil
}

func (t *TarmPort) Close() error {
	if t.handle == nil {
		return nil
	}
	err := t.handle.Close()
	t.handle = nil
	return err
}

// Read 超时返回 (0, io.EOF)
func (t *TarmPort) Read(p []byte) (int, error) {
	if t.handle == nil {
		return 0, fmt.Errorf("serial %s is not open", t.cfg.Device)
	}
	return t.handle.Read(p)
}

func (t *TarmPort) Write(p []byte) (int, error) {
	if t.handle == nil {
		return 0, fmt.Errorf("serial %s is not open", t.cfg.Device)
	}
	n, err := t.handle.Write(p)
	if err != nil {
		return n, fmt.Errorf("serial write failed: %w", err)
	}
	return n, nil
}

func (t *TarmPort) Name() string {
	return t.cfg.Name
}

func (t *TarmPort) Discard() error {
	if t.handle == nil {
		return nil
	}
	if err := t.handle.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", t.cfg.Device, err)
	}
	return nil
}
