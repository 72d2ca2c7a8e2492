// internal/serial/serial.go

package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/linjuya-lu/mixer_bridge_go/internal/config"
	bugst "go.bug.st/serial"
)

// Port 是整个 serial 包对外暴露的通用串口接口
type Port interface {
	Open() error
	Close() error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Name() string
	// Discard 丢弃收发缓冲区中残留的数据（例如开发板复位时的启动日志）
	Discard() error
}

// Opener 按配置创建并打开串口，测试中可替换
type Opener func(cfg config.Port) (Port, error)

// Lister 列出当前可用的串口名
type Lister func() ([]string, error)

// NewPort 根据配置创建对应的串口实现（bugst / tarm）
func NewPort(cfg config.Port) (Port, error) {
	switch cfg.Type {
	case config.DriverBugst, "":
		return NewBugstPort(cfg), nil
	case config.DriverTarm:
		return NewTarmPort(cfg), nil
	default:
		return nil, fmt.Errorf("unknown port type %s", cfg.Type)
	}
}

// Open 创建并打开串口，打开失败时不会留下句柄
func Open(cfg config.Port) (Port, error) {
	p, err := NewPort(cfg)
	if err != nil {
		return nil, err
	}
	if err := p.Open(); err != nil {
		return nil, err
	}
	return p, nil
}

// ListPorts 枚举串口并按字典序排序，保证探测顺序确定
func ListPorts() ([]string, error) {
	ports, err := bugst.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}
	sort.Strings(ports)
	return ports, nil
}

// StartReadLoop 在后台协程里不断读取串口，按 parse 切出完整帧后回调 onFrame。
// 读超时不算错误；其他读错误回调 onError 后退出。ctx 取消时退出。
// 返回的 channel 在协程退出后关闭。
func StartReadLoop(ctx context.Context, p Port, parse FrameParser, onFrame func(frame []byte), onError func(error)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		var buf []byte
		tmp := make([]byte, 256)
		for {
			if ctx.Err() != nil {
				return
			}
			n, err := p.Read(tmp)
			if n > 0 {
				buf = append(buf, tmp[:n]...)
				for {
					frame, rest, perr := parse(buf)
					if perr != nil {
						// 出错直接丢弃整个缓存，重开
						buf = nil
						break
					}
					if frame == nil {
						// 未组成完整帧，留着下次继续
						buf = rest
						break
					}
					onFrame(frame)
					buf = rest
				}
			}
			if err != nil && !errors.Is(err, io.EOF) {
				if ctx.Err() == nil && onError != nil {
					onError(err)
				}
				return
			}
		}
	}()
	return done
}

// LineReader 从串口按行读取，用于握手阶段
type LineReader struct {
	port Port
	buf  []byte
	tmp  []byte
}

func NewLineReader(p Port) *LineReader {
	return &LineReader{port: p, tmp: make([]byte, 128)}
}

// ReadLine 读取下一行（已去掉行尾），直到 deadline 或 ctx 取消。
// 串口本身的读超时决定了检查 deadline 的粒度。
func (r *LineReader) ReadLine(ctx context.Context, deadline time.Time) (string, error) {
	for {
		frame, rest, err := ParseLine(r.buf)
		if err != nil {
			r.buf = nil
		} else if frame != nil {
			r.buf = rest
			return string(frame), nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if !time.Now().Before(deadline) {
			return "", context.DeadlineExceeded
		}
		n, err := r.port.Read(r.tmp)
		if n > 0 {
			r.buf = append(r.buf, r.tmp[:n]...)
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
	}
}
