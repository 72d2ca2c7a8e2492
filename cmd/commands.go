package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/linjuya-lu/mixer_bridge_go/internal/audio"
	"github.com/linjuya-lu/mixer_bridge_go/internal/config"
	"github.com/linjuya-lu/mixer_bridge_go/internal/discovery"
	"github.com/linjuya-lu/mixer_bridge_go/internal/driver"
	"github.com/linjuya-lu/mixer_bridge_go/internal/mqtt"
	"github.com/linjuya-lu/mixer_bridge_go/internal/serial"
	"github.com/linjuya-lu/mixer_bridge_go/internal/settings"
	"github.com/linjuya-lu/mixer_bridge_go/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func loadConfig(level string) (*config.BridgeConfig, logger.LoggingClient, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if level == "" {
		level = cfg.LogLevel
	}
	return cfg, logger.NewClient(serviceName, level), nil
}

func newEngine(cfg *config.BridgeConfig, lc logger.LoggingClient) *discovery.Engine {
	return discovery.NewEngine(lc, serial.ListPorts, serial.Open, cfg.SerialDriver,
		discovery.TimingsFromConfig(cfg.Discovery))
}

type runOptions struct {
	headless bool
	settings string
	preset   string
	port     string
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the mixer and drive output volumes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBridge(opts)
		},
	}
	cmd.Flags().BoolVar(&opts.headless, "headless", false, "run without the terminal UI")
	cmd.Flags().StringVar(&opts.settings, "settings", "", "mixer settings to load (file path or profile:<name>) instead of the last used one")
	cmd.Flags().StringVar(&opts.preset, "preset", "", "start from a built-in preset (see the presets command)")
	cmd.Flags().StringVar(&opts.port, "port", "", "connect to this serial port instead of searching")
	return cmd
}

// startupIdentifier 校验 --settings/--preset，返回启动时要加载的配置标识
func startupIdentifier(store settings.TextStore, file, preset string) (string, error) {
	file, preset = strings.TrimSpace(file), strings.TrimSpace(preset)
	switch {
	case file != "" && preset != "":
		return "", fmt.Errorf("--settings and --preset are mutually exclusive")
	case preset != "":
		p, err := settings.PresetByIdentifier("profile:" + preset)
		if err != nil {
			return "", err
		}
		return p.Identifier, nil
	case file == "":
		return "", nil
	}
	id, err := settings.ParseIdentifier(file)
	if err != nil {
		return "", err
	}
	if id.Kind == settings.IdentifierProfile {
		if _, err := settings.PresetByIdentifier(id.String()); err != nil {
			return "", err
		}
		return id.String(), nil
	}
	if _, err := store.ReadText(id.Value); err != nil {
		return "", fmt.Errorf("settings file %s: %w", id.Value, err)
	}
	return id.Value, nil
}

func runBridge(opts runOptions) error {
	initial, err := startupIdentifier(settings.FileStore{}, opts.settings, opts.preset)
	if err != nil {
		return err
	}
	headless := opts.headless
	level := ""
	if !headless {
		// 界面模式下日志会打乱画面，只保留错误
		level = "ERROR"
	}
	cfg, lc, err := loadConfig(level)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pub driver.Publisher
	var mq *mqtt.Client
	if cfg.MQTT.Enabled {
		mq, err = mqtt.NewClient(mqtt.OptionsFromConfig(cfg.MQTT))
		if err != nil {
			lc.Errorf("mqtt mirror disabled: %v", err)
		} else {
			pub = mq
			defer mq.Disconnect(250)
		}
	}

	d := driver.New(driver.Options{
		Config:    cfg,
		Logger:    lc,
		Audio:     audio.NewPulseManager(lc),
		Finder:    newEngine(cfg, lc),
		Opener:    serial.Open,
		Store:     settings.FileStore{},
		Publisher: pub,
		Settings:  initial,
		Port:      opts.port,
	})

	if mq != nil {
		if err := mq.SubscribeMute(func(ch int, muted bool) {
			if err := d.SetMuted(ch, muted); err != nil {
				lc.Warnf("remote mute for channel %d: %v", ch+1, err)
			}
		}); err != nil {
			lc.Errorf("subscribe mute commands: %v", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.Run(gctx) })
	if w := d.Watcher(); w != nil {
		g.Go(func() error { return w.Run(gctx) })
	}
	if !headless {
		g.Go(func() error {
			p := tea.NewProgram(ui.NewModel(d), tea.WithContext(gctx), tea.WithAltScreen())
			_, err := p.Run()
			// 退出界面即退出程序
			stop()
			if gctx.Err() != nil {
				return nil
			}
			return err
		})
	}
	lc.Infof("%s started", serviceName)
	return g.Wait()
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Probe serial ports for the mixer handshake",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, lc, err := loadConfig("")
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			port, ok := newEngine(cfg, lc).FindControllerPort(ctx)
			if !ok {
				return fmt.Errorf("no mixer found")
			}
			fmt.Fprintln(cmd.OutOrStdout(), port)
			return nil
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Validate a mixer settings file and print its warnings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := settings.FileStore{}.ReadText(args[0])
			if err != nil {
				return err
			}
			res := settings.LoadBestEffort(text, settings.MaxChannels)
			out := cmd.OutOrStdout()
			if !res.HasWarnings() {
				fmt.Fprintf(out, "OK: %s\n", args[0])
				return nil
			}
			fmt.Fprintf(out, "%s:\n", args[0])
			for _, w := range res.Warnings {
				fmt.Fprintf(out, "  - %s\n", w)
			}
			return fmt.Errorf("%d warning(s)", len(res.Warnings))
		},
	}
}

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List output devices that channels can be bound to",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, lc, err := loadConfig("")
			if err != nil {
				return err
			}
			devices, err := audio.NewPulseManager(lc).ListOutputDevices(cmd.Context())
			if err != nil {
				return err
			}
			for _, dev := range devices {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", dev.ID, dev.Name)
			}
			return nil
		},
	}
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List built-in configuration presets",
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range settings.Presets() {
				s := p.Build()
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d channels, deadzone %d\n", p.Identifier, s.ChannelCount, s.Deadzone)
			}
		},
	}
}
