// Package ui 是终端界面：只负责把 driver 的快照画出来并把按键转给 driver
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/linjuya-lu/mixer_bridge_go/internal/binding"
	"github.com/linjuya-lu/mixer_bridge_go/internal/driver"
	"github.com/linjuya-lu/mixer_bridge_go/internal/mixer"
	"github.com/linjuya-lu/mixer_bridge_go/internal/settings"
)

const barWidth = 32

// Theme 由配置中的 ARGB 颜色生成
type Theme struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Missing lipgloss.Style
	Notice  lipgloss.Style
	Status  map[driver.Status]lipgloss.Style
	Accent  string
}

func colorHex(argb int) string {
	return fmt.Sprintf("#%02x%02x%02x", (argb>>16)&0xff, (argb>>8)&0xff, argb&0xff)
}

func NewTheme(s settings.MixerSettings) Theme {
	accent := colorHex(s.AccentColorArgb)
	muted := lipgloss.Color(colorHex(s.MutedTextColorArgb))
	// 列宽沿用配置里的像素宽度，按 8 像素一个字符换算
	labelWidth := s.ChannelLabelWidth / 8
	if labelWidth < 10 {
		labelWidth = 10
	}
	return Theme{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(accent)),
		Label:   lipgloss.NewStyle().Width(labelWidth),
		Muted:   lipgloss.NewStyle().Foreground(muted),
		Missing: lipgloss.NewStyle().Foreground(lipgloss.Color("#ffe7a0")),
		Notice:  lipgloss.NewStyle().Foreground(lipgloss.Color("#ffe7a0")),
		Status: map[driver.Status]lipgloss.Style{
			driver.StatusIdle:      lipgloss.NewStyle().Foreground(muted),
			driver.StatusSearching: lipgloss.NewStyle().Foreground(lipgloss.Color(accent)),
			driver.StatusConnected: lipgloss.NewStyle().Foreground(lipgloss.Color("#5fd787")).Bold(true),
			driver.StatusError:     lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f")).Bold(true),
		},
		Accent: accent,
	}
}

// Render 把快照渲染成文本，不访问 driver
func Render(snap driver.Snapshot) string {
	return render(snap, -1)
}

// render 同 Render，sel 为当前选中的通道（-1 表示无）
func render(snap driver.Snapshot, sel int) string {
	th := NewTheme(snap.Settings)
	var b strings.Builder

	b.WriteString(th.Title.Render("Mixer Bridge"))
	b.WriteString("  ")
	b.WriteString(th.Status[snap.Status].Render(statusText(snap)))
	b.WriteString("\n")

	source := snap.Source
	if source == "" {
		source = "defaults"
	}
	if snap.Dirty {
		source += " (modified)"
	}
	fmt.Fprintf(&b, "%s  deadzone %d\n\n", th.Muted.Render("config: "+source), snap.Settings.Deadzone)

	bar := progress.New(
		progress.WithSolidFill(th.Accent),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)
	for _, ch := range snap.Channels {
		label := ch.Label
		style := th.Label
		if ch.Binding == binding.Missing {
			style = style.Inherit(th.Missing)
		}
		marker := "  "
		if ch.Index == sel {
			marker = th.Title.Render("> ")
		}
		fmt.Fprintf(&b, "%s%d %s ", marker, ch.Index+1, style.Render(truncate(label, th.Label.GetWidth()-1)))

		pct := 0.0
		value := "   -"
		if ch.HasLevel {
			pct = float64(ch.Level) / mixer.MaxRaw
			value = fmt.Sprintf("%4d", ch.Level)
		}
		b.WriteString(bar.ViewAs(pct))
		b.WriteString(" " + value)
		if ch.Muted {
			b.WriteString(" " + th.Muted.Render("MUTED"))
		}
		b.WriteString("\n")
	}

	if len(snap.Notices) > 0 {
		b.WriteString("\n")
		for _, n := range snap.Notices {
			b.WriteString(th.Notice.Render("! "+n) + "\n")
		}
	}
	return b.String()
}

func statusText(snap driver.Snapshot) string {
	var s string
	switch snap.Status {
	case driver.StatusSearching:
		s = "Searching for mixer..."
	case driver.StatusConnected:
		s = "Connected"
	case driver.StatusError:
		s = "Error"
	default:
		s = "Not connected"
	}
	if snap.Detail != "" {
		s += " (" + snap.Detail + ")"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
