package audio

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"strings"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"
)

// Runner 执行外部命令并返回标准输出，测试中可替换
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, msg)
		}
		return nil, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}

// PulseManager 通过 pactl 操作 PulseAudio/PipeWire 的输出设备（sink）
type PulseManager struct {
	lc  logger.LoggingClient
	run Runner
}

func NewPulseManager(lc logger.LoggingClient) *PulseManager {
	return &PulseManager{lc: lc, run: execRunner}
}

// ListOutputDevices 每次都重新枚举，不缓存
func (m *PulseManager) ListOutputDevices(ctx context.Context) ([]Device, error) {
	out, err := m.run(ctx, "pactl", "list", "sinks")
	if err != nil {
		return nil, errors.NewCommonEdgeX(errors.KindCommunicationError, "list output devices failed", err)
	}
	devices := parseSinks(out)
	m.lc.Debugf("enumerated %d output devices", len(devices))
	return devices, nil
}

// SetVolume 设置设备主音量，scalar 会被限制在 [0, 1]
func (m *PulseManager) SetVolume(ctx context.Context, deviceID string, scalar float64) error {
	if strings.TrimSpace(deviceID) == "" {
		return errors.NewCommonEdgeX(errors.KindContractInvalid, "device id is empty", nil)
	}
	pct := int(math.Round(Clamp(scalar) * 100))
	if _, err := m.run(ctx, "pactl", "set-sink-volume", deviceID, fmt.Sprintf("%d%%", pct)); err != nil {
		if isNoSuchEntity(err) {
			return errors.NewCommonEdgeX(errors.KindEntityDoesNotExist,
				fmt.Sprintf("output device %s not found", deviceID), err)
		}
		return errors.NewCommonEdgeX(errors.KindCommunicationError,
			fmt.Sprintf("set volume on %s failed", deviceID), err)
	}
	return nil
}

func isNoSuchEntity(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such entity") || strings.Contains(msg, "failed to get sink")
}

// parseSinks 解析 `pactl list sinks` 输出中的 Name/Description 字段，保持枚举顺序
func parseSinks(out []byte) []Device {
	var devices []Device
	var cur *Device
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "Sink #"):
			devices = append(devices, Device{})
			cur = &devices[len(devices)-1]
		case cur == nil:
			continue
		case strings.HasPrefix(line, "Name:"):
			cur.ID = strings.TrimSpace(strings.TrimPrefix(line, "Name:"))
		case strings.HasPrefix(line, "Description:"):
			cur.Name = strings.TrimSpace(strings.TrimPrefix(line, "Description:"))
		}
	}

	valid := devices[:0]
	for _, d := range devices {
		if d.ID == "" {
			continue
		}
		if d.Name == "" {
			d.Name = d.ID
		}
		valid = append(valid, d)
	}
	return valid
}
