package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/linjuya-lu/mixer_bridge_go/internal/audio"
	"github.com/linjuya-lu/mixer_bridge_go/internal/settings"
)

const commandHelp = "load <file|profile:name> · preset <name> · save [file] · port <name>|auto · " +
	"connect <port> · bind <ch> <device> · unbind <ch> · channels <n> · deadzone <n> · rescan"

// RunCommand 执行提示符里输入的一条命令，返回成功时显示的提示
func RunCommand(ctl Controller, line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))

	switch name {
	case "load":
		if rest == "" {
			return "", usage("load <file|profile:name>")
		}
		return "Loaded " + rest, ctl.LoadIdentifier(rest)
	case "preset":
		if rest == "" {
			return "", usage("preset <name>")
		}
		return "Preset " + rest + " applied", ctl.ApplyPreset(rest)
	case "save":
		if rest == "" {
			return "Saved", ctl.Save("")
		}
		return "Saved to " + rest, ctl.Save(rest)
	case "port":
		switch {
		case rest == "":
			return "", usage("port <name>|auto")
		case strings.EqualFold(rest, "auto"):
			return "Automatic port search", ctl.SetManualPort(false, "")
		default:
			return "Manual port " + rest, ctl.SetManualPort(true, rest)
		}
	case "connect":
		if rest == "" {
			return "", usage("connect <port>")
		}
		return "Connecting to " + rest, ctl.Connect(rest)
	case "bind":
		if len(args) < 2 {
			return "", usage("bind <ch> <device>")
		}
		ch, err := channelArg(args[0])
		if err != nil {
			return "", err
		}
		id := strings.TrimSpace(strings.TrimPrefix(rest, args[0]))
		return fmt.Sprintf("Channel %d bound to %s", ch+1, id), ctl.BindChannel(ch, id)
	case "unbind":
		if len(args) != 1 {
			return "", usage("unbind <ch>")
		}
		ch, err := channelArg(args[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Channel %d unbound", ch+1), ctl.BindChannel(ch, "")
	case "channels":
		n, err := intArg(args, "channels <n>")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d channels", n), ctl.SetChannelCount(n)
	case "deadzone":
		n, err := intArg(args, "deadzone <n>")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Deadzone %d", n), ctl.SetDeadzone(n)
	case "rescan":
		return "Rescanning", ctl.Rescan()
	case "help", "?":
		return commandHelp, nil
	}
	return "", fmt.Errorf("unknown command %q (try help)", name)
}

func usage(s string) error {
	return fmt.Errorf("usage: %s", s)
}

// channelArg 把 1 起始的通道号转换为下标
func channelArg(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid channel %q", s)
	}
	return n - 1, nil
}

func intArg(args []string, form string) (int, error) {
	if len(args) != 1 {
		return 0, usage(form)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", args[0])
	}
	return n, nil
}

// nextDevice 返回循环切换绑定时的下一个设备；越过最后一个设备后返回空（解除绑定）
func nextDevice(devices []audio.Device, current string) string {
	if len(devices) == 0 {
		return ""
	}
	if current == "" {
		return devices[0].ID
	}
	for i, d := range devices {
		if d.ID == current {
			if i+1 < len(devices) {
				return devices[i+1].ID
			}
			return ""
		}
	}
	return devices[0].ID
}

// nextPreset 返回当前配置之后的下一个内置预设名
func nextPreset(source string) string {
	ps := settings.Presets()
	if len(ps) == 0 {
		return ""
	}
	for i, p := range ps {
		if strings.EqualFold(p.Identifier, source) {
			return ps[(i+1)%len(ps)].Name
		}
	}
	return ps[0].Name
}
