// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2019-2023 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// Package driver 持有混音桥的全部可变状态，所有修改都在一个事件循环协程里串行执行。
// 后台任务（搜索、串口读取、文件监视）只能通过 post 把结果送回事件循环。
package driver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"
	"github.com/linjuya-lu/mixer_bridge_go/internal/audio"
	"github.com/linjuya-lu/mixer_bridge_go/internal/binding"
	"github.com/linjuya-lu/mixer_bridge_go/internal/config"
	"github.com/linjuya-lu/mixer_bridge_go/internal/discovery"
	"github.com/linjuya-lu/mixer_bridge_go/internal/mixer"
	"github.com/linjuya-lu/mixer_bridge_go/internal/serial"
	"github.com/linjuya-lu/mixer_bridge_go/internal/settings"
)

// Status 是串口连接状态
type Status int

const (
	StatusIdle Status = iota
	StatusSearching
	StatusConnected
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSearching:
		return "searching"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// Publisher 是电平/状态镜像（MQTT），可以为空
type Publisher interface {
	PublishLevel(channel, value int, volume float64, muted bool) error
	PublishStatus(state, detail, port string) error
}

// Options 是 Driver 的依赖
type Options struct {
	Config    *config.BridgeConfig
	Logger    logger.LoggingClient
	Audio     audio.Manager
	Finder    discovery.Finder
	Opener    serial.Opener
	Store     settings.TextStore
	Publisher Publisher
	Now       func() time.Time

	// Settings 启动时加载的配置标识（文件路径或 profile:<name>），为空时恢复上次使用的配置
	Settings string
	// Port 启动时直接连接的串口，为空时按配置手动连接或自动搜索
	Port string
}

type Driver struct {
	cfg   *config.BridgeConfig
	lc    logger.LoggingClient
	audio audio.Manager
	open  serial.Opener
	store settings.TextStore
	pub   Publisher
	now   func() time.Time

	initialSettings string
	initialPort     string

	scanner  *discovery.Scanner
	executor *mixer.Executor
	appState *settings.AppStateStore
	diag     *settings.DiagnosticLog
	levels   *LevelStore
	watcher  *SettingsWatcher

	events  chan func()
	volumes *volumeQueue
	quit    chan struct{}
	ctx     context.Context

	// 以下字段只在事件循环里访问
	settings      settings.MixerSettings
	source        *settings.Identifier
	dirty         bool
	lastSaved     string
	devices       []audio.Device
	devicesKnown  bool
	resolutions   []binding.Resolution
	cleared       []bool // 用户显式解除绑定的通道，不再自动默认绑定
	reconciler    *mixer.Reconciler
	status        Status
	detail        string
	conn          *connection
	scanSeq       uint64
	notices       []string
	missingNotice string
}

var errStopped = errors.NewCommonEdgeX(errors.KindServiceUnavailable, "driver is not running", nil)

func New(opts Options) *Driver {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	open := opts.Opener
	if open == nil {
		open = serial.Open
	}
	store := opts.Store
	if store == nil {
		store = settings.FileStore{}
	}

	d := &Driver{
		cfg:   cfg,
		lc:    opts.Logger,
		audio: opts.Audio,
		open:  open,
		store: store,
		pub:   opts.Publisher,
		now:   now,

		initialSettings: strings.TrimSpace(opts.Settings),
		initialPort:     strings.TrimSpace(opts.Port),

		scanner:  discovery.NewScanner(opts.Finder),
		executor: mixer.NewExecutor(opts.Logger, opts.Audio),
		appState: settings.NewAppStateStore(store, cfg.DataDir),
		diag:     settings.NewDiagnosticLog(cfg.DataDir),
		levels:   NewLevelStore(),
		events:   make(chan func(), 256),
		volumes:  newVolumeQueue(),
		quit:     make(chan struct{}),
		ctx:      context.Background(),
		settings: settings.CreateDefault(),
	}
	d.reconciler = mixer.NewReconciler(d.settings.ChannelCount)

	if cfg.WatchSettings {
		w, err := NewSettingsWatcher(d.lc, d.onSettingsFileChanged)
		if err != nil {
			d.lc.Warnf("settings watcher disabled: %v", err)
		} else {
			d.watcher = w
		}
	}
	return d
}

// Watcher 返回配置文件监视器，未启用时为 nil；调用方负责运行它
func (d *Driver) Watcher() *SettingsWatcher { return d.watcher }

// Levels 返回电平存储，可在任意协程读取
func (d *Driver) Levels() *LevelStore { return d.levels }

// Run 执行启动流程并处理事件，直到 ctx 取消
func (d *Driver) Run(ctx context.Context) error {
	d.ctx = ctx
	defer close(d.quit)

	writerDone := make(chan struct{})
	go d.runWriter(ctx, writerDone)

	d.startup()
	for {
		select {
		case <-ctx.Done():
			d.shutdown()
			<-writerDone
			return nil
		case fn := <-d.events:
			fn()
		}
	}
}

func (d *Driver) shutdown() {
	d.scanner.Cancel()
	d.closeConnection()
	d.lc.Info("mixer bridge stopped")
}

// runWriter 在独立协程里执行音量写入，避免外部命令阻塞事件循环
func (d *Driver) runWriter(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.volumes.ready:
			d.executor.Execute(ctx, d.volumes.take())
		}
	}
}

func (d *Driver) enqueueWrites(ws []mixer.VolumeWrite) {
	d.volumes.push(ws)
}

// post 把 fn 送到事件循环执行；Run 已退出时返回 false
func (d *Driver) post(fn func()) bool {
	select {
	case d.events <- fn:
		return true
	case <-d.quit:
		return false
	}
}

// postFrom 供后台协程使用，ctx 取消后放弃投递
func (d *Driver) postFrom(ctx context.Context, fn func()) {
	select {
	case d.events <- fn:
	case <-ctx.Done():
	case <-d.quit:
	}
}

// do 在事件循环里执行 fn 并等待结果
func (d *Driver) do(fn func() error) error {
	errCh := make(chan error, 1)
	if !d.post(func() { errCh <- fn() }) {
		return errStopped
	}
	select {
	case err := <-errCh:
		return err
	case <-d.quit:
		select {
		case err := <-errCh:
			return err
		default:
			return errStopped
		}
	}
}

func (d *Driver) startup() {
	restored := false
	if d.initialSettings != "" {
		if err := d.loadIdentifier(d.initialSettings); err != nil {
			d.lc.Errorf("could not load configuration %q: %v", d.initialSettings, err)
			d.addNotice(fmt.Sprintf("Configuration %s could not be loaded; defaults are used.", d.initialSettings))
		} else {
			d.rememberSource()
			restored = true
		}
	} else if st := d.appState.Load(); st.LastConfigIdentifier != nil {
		if err := d.loadIdentifier(*st.LastConfigIdentifier); err != nil {
			d.lc.Warnf("could not restore configuration %q: %v", *st.LastConfigIdentifier, err)
			d.addNotice("The last configuration could not be restored; defaults are used.")
		} else {
			restored = true
		}
	}
	if !restored {
		d.applySettings(settings.CreateDefault(), nil)
	}
	_ = d.refreshDevices()
	if d.initialPort != "" {
		d.connectManual(d.initialPort)
		return
	}
	d.connectFromSettings()
}

func (d *Driver) setStatus(s Status, detail string) {
	d.status, d.detail = s, detail
	if detail != "" {
		d.lc.Infof("status: %s (%s)", s, detail)
	} else {
		d.lc.Infof("status: %s", s)
	}
	if d.pub != nil {
		port := ""
		if d.conn != nil {
			port = d.conn.name
		}
		if err := d.pub.PublishStatus(s.String(), detail, port); err != nil {
			d.lc.Debugf("publish status: %v", err)
		}
	}
}

func (d *Driver) addNotice(msg string) {
	for _, n := range d.notices {
		if n == msg {
			return
		}
	}
	d.notices = append(d.notices, msg)
}

// DismissNotices 清除所有提示，包括音量写入的错误提示
func (d *Driver) DismissNotices() error {
	return d.do(func() error {
		d.notices = nil
		d.missingNotice = ""
		d.executor.ClearNotice()
		return nil
	})
}
