package mixer

import (
	"context"
	"fmt"
	"sync"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/linjuya-lu/mixer_bridge_go/internal/audio"
)

// Executor 执行音量写入。失败按通道隔离，只在第一次失败时产生提示，
// 直到 ClearNotice 之前不会重复提示。
type Executor struct {
	lc  logger.LoggingClient
	mgr audio.Manager

	mu     sync.Mutex
	notice string
}

func NewExecutor(lc logger.LoggingClient, mgr audio.Manager) *Executor {
	return &Executor{lc: lc, mgr: mgr}
}

// Execute 依次写入，返回失败的数量
func (e *Executor) Execute(ctx context.Context, writes []VolumeWrite) int {
	failed := 0
	for _, w := range writes {
		if err := e.mgr.SetVolume(ctx, w.DeviceID, w.Volume); err != nil {
			failed++
			e.fail(w, err)
		}
	}
	return failed
}

func (e *Executor) fail(w VolumeWrite, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.notice != "" {
		e.lc.Debugf("volume write on channel %d failed: %v", w.Channel+1, err)
		return
	}
	e.notice = fmt.Sprintf("Volume could not be set for channel %d (%s): %v", w.Channel+1, w.DeviceID, err)
	e.lc.Warn(e.notice)
}

// Notice 返回当前的错误提示，没有时为空
func (e *Executor) Notice() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.notice
}

func (e *Executor) ClearNotice() {
	e.mu.Lock()
	e.notice = ""
	e.mu.Unlock()
}
