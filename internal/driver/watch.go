package driver

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/fsnotify/fsnotify"
)

// SettingsWatcher 监视当前配置文件，外部修改时回调 onChange。
// 监视的是文件所在目录，这样编辑器“写临时文件再改名”的保存方式也能收到。
type SettingsWatcher struct {
	lc       logger.LoggingClient
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func(path string)

	mu   sync.Mutex
	path string
	dir  string
}

func NewSettingsWatcher(lc logger.LoggingClient, onChange func(path string)) (*SettingsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &SettingsWatcher{
		lc:       lc,
		watcher:  w,
		debounce: 300 * time.Millisecond,
		onChange: onChange,
	}, nil
}

// Watch 切换到新的文件；空路径表示停止监视
func (sw *SettingsWatcher) Watch(path string) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		path = abs
	}
	if path == sw.path {
		return nil
	}
	dir := ""
	if path != "" {
		dir = filepath.Dir(path)
	}
	if dir != sw.dir {
		if sw.dir != "" {
			_ = sw.watcher.Remove(sw.dir)
		}
		if dir != "" {
			if err := sw.watcher.Add(dir); err != nil {
				sw.path, sw.dir = "", ""
				return err
			}
		}
	}
	sw.path, sw.dir = path, dir
	sw.lc.Debugf("watching settings file %q", path)
	return nil
}

func (sw *SettingsWatcher) current() string {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.path
}

// Run 处理文件系统事件直到 ctx 取消，退出时关闭底层 watcher
func (sw *SettingsWatcher) Run(ctx context.Context) error {
	defer sw.watcher.Close()

	var pending string
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-sw.watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			cur := sw.current()
			if cur == "" || filepath.Clean(ev.Name) != cur {
				continue
			}
			// 连续保存会产生多个事件，合并成一次
			pending = cur
			timer.Reset(sw.debounce)

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return nil
			}
			sw.lc.Errorf("settings watcher: %v", err)

		case <-timer.C:
			if pending != "" && pending == sw.current() {
				sw.onChange(pending)
			}
			pending = ""
		}
	}
}
