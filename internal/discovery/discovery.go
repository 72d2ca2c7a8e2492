// Package discovery 在未知串口上自动搜索混音控制器
package discovery

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/linjuya-lu/mixer_bridge_go/internal/config"
	"github.com/linjuya-lu/mixer_bridge_go/internal/serial"
)

// 握手报文
const (
	Handshake = "HELLO_MIXER"
	Ready     = "MIXER_READY"
)

var (
	// BaudRates 候选波特率，按尝试顺序排列
	BaudRates = []int{9600, 115200, 57600, 38400}
	// LineEndings 候选行尾
	LineEndings = []string{"\n", "\r\n"}
)

// Attempt 是探测矩阵中的一个组合
type Attempt struct {
	Port       string
	BaudRate   int
	LineEnding string
}

// Candidates 生成探测顺序：串口（字典序）→ 波特率 → 行尾
func Candidates(ports []string) []Attempt {
	sorted := append([]string(nil), ports...)
	sort.Strings(sorted)

	out := make([]Attempt, 0, len(sorted)*len(BaudRates)*len(LineEndings))
	for _, p := range sorted {
		for _, baud := range BaudRates {
			for _, nl := range LineEndings {
				out = append(out, Attempt{Port: p, BaudRate: baud, LineEnding: nl})
			}
		}
	}
	return out
}

// Timings 探测时序
type Timings struct {
	ProbeTimeout   time.Duration // 探测期间的串口读写超时
	SettleDelay    time.Duration // 打开后等待开发板复位完成
	ResponseWindow time.Duration // 发送握手后等待应答的时间
}

func DefaultTimings() Timings {
	return Timings{
		ProbeTimeout:   300 * time.Millisecond,
		SettleDelay:    1500 * time.Millisecond,
		ResponseWindow: 1500 * time.Millisecond,
	}
}

func TimingsFromConfig(c config.DiscoveryConfig) Timings {
	return Timings{
		ProbeTimeout:   time.Duration(c.ProbeTimeoutMs) * time.Millisecond,
		SettleDelay:    time.Duration(c.SettleDelayMs) * time.Millisecond,
		ResponseWindow: time.Duration(c.ResponseWindowMs) * time.Millisecond,
	}
}

// Engine 逐个组合打开串口并握手
type Engine struct {
	lc      logger.LoggingClient
	list    serial.Lister
	open    serial.Opener
	driver  string
	timings Timings
}

func NewEngine(lc logger.LoggingClient, list serial.Lister, open serial.Opener, driver string, t Timings) *Engine {
	return &Engine{lc: lc, list: list, open: open, driver: driver, timings: t}
}

// FindControllerPort 返回第一个应答 MIXER_READY 的串口。
// 每个组合之前检查 ctx；所有探测错误都视为不匹配，不会向外传播。
func (e *Engine) FindControllerPort(ctx context.Context) (string, bool) {
	ports, err := e.list()
	if err != nil {
		e.lc.Warnf("serial port enumeration failed: %v", err)
		return "", false
	}
	attempts := Candidates(ports)
	e.lc.Debugf("probing %d ports (%d combinations)", len(ports), len(attempts))

	for _, a := range attempts {
		if ctx.Err() != nil {
			return "", false
		}
		if e.probe(ctx, a) {
			e.lc.Infof("controller found on %s (%d baud, %q)", a.Port, a.BaudRate, a.LineEnding)
			return a.Port, true
		}
	}
	return "", false
}

func (e *Engine) probe(ctx context.Context, a Attempt) bool {
	p, err := e.open(config.Port{
		Name:      a.Port,
		Device:    a.Port,
		Type:      e.driver,
		Baudrate:  a.BaudRate,
		TimeoutMs: int(e.timings.ProbeTimeout / time.Millisecond),
		DTR:       true,
		RTS:       true,
	})
	if err != nil {
		e.lc.Debugf("probe %s@%d: %v", a.Port, a.BaudRate, err)
		return false
	}
	defer p.Close()

	// 很多开发板在打开串口时复位，先等它启动完
	if !sleep(ctx, e.timings.SettleDelay) {
		return false
	}
	// 丢弃启动/调试输出
	if err := p.Discard(); err != nil {
		e.lc.Debugf("probe %s@%d: %v", a.Port, a.BaudRate, err)
	}
	if _, err := p.Write([]byte(Handshake + a.LineEnding)); err != nil {
		e.lc.Debugf("probe %s@%d: %v", a.Port, a.BaudRate, err)
		return false
	}

	r := serial.NewLineReader(p)
	deadline := time.Now().Add(e.timings.ResponseWindow)
	for {
		line, err := r.ReadLine(ctx, deadline)
		if err != nil {
			return false
		}
		if strings.TrimSpace(line) == Ready {
			return true
		}
	}
}

// sleep 可被 ctx 打断的等待，被打断时返回 false
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
