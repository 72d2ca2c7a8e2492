package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/linjuya-lu/mixer_bridge_go/internal/driver"
)

const refreshInterval = 100 * time.Millisecond

// Controller 是界面需要的 driver 操作
type Controller interface {
	Snapshot() (driver.Snapshot, error)
	Rescan() error
	Connect(port string) error
	RefreshDevices() error
	ToggleMute(ch int) error
	LoadIdentifier(id string) error
	ApplyPreset(name string) error
	Save(path string) error
	SetChannelCount(n int) error
	SetDeadzone(n int) error
	SetManualPort(enabled bool, name string) error
	BindChannel(ch int, deviceID string) error
	DismissNotices() error
}

type tickMsg time.Time

type resultMsg struct {
	info string
	err  error
}

// Model 定期拉取快照并把按键映射到 driver 操作
type Model struct {
	ctl  Controller
	snap driver.Snapshot
	sel  int
	info string
	err  error

	prompt    textinput.Model
	prompting bool
}

func NewModel(ctl Controller) Model {
	in := textinput.New()
	in.Prompt = ": "
	in.Placeholder = "help"
	in.CharLimit = 256
	in.Width = 60
	return Model{ctl: ctl, prompt: in}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

// run 在后台执行可能阻塞的操作（例如等待搜索取消）
func run(info string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return resultMsg{info: info, err: fn()}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if snap, err := m.ctl.Snapshot(); err == nil {
			m.snap = snap
			m.clampSelection()
		}
		return m, tick()

	case resultMsg:
		m.info, m.err = msg.info, msg.err
		return m, nil

	case tea.KeyMsg:
		if m.prompting {
			return m.updatePrompt(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.prompting = false
		m.prompt.Blur()
		m.prompt.Reset()
		return m, nil
	case "enter":
		line := m.prompt.Value()
		m.prompting = false
		m.prompt.Blur()
		m.prompt.Reset()
		ctl := m.ctl
		return m, func() tea.Msg {
			info, err := RunCommand(ctl, line)
			return resultMsg{info: info, err: err}
		}
	}
	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case ":":
		m.prompting = true
		return m, m.prompt.Focus()
	case "up", "k":
		if m.sel > 0 {
			m.sel--
		}
		return m, nil
	case "down", "j":
		if m.sel < len(m.snap.Channels)-1 {
			m.sel++
		}
		return m, nil
	case "r":
		return m, run("Rescanning", m.ctl.Rescan)
	case "d":
		return m, run("Devices refreshed", m.ctl.RefreshDevices)
	case "s":
		return m, run("Saved", func() error { return m.ctl.Save("") })
	case "c":
		return m, run("", m.ctl.DismissNotices)
	case "m", " ":
		if ch, ok := m.selected(); ok {
			return m, run("", func() error { return m.ctl.ToggleMute(ch) })
		}
		return m, nil
	case "b":
		ch, ok := m.selected()
		if !ok {
			return m, nil
		}
		id := nextDevice(m.snap.Devices, m.snap.Channels[ch].DeviceID)
		return m, run("", func() error { return m.ctl.BindChannel(ch, id) })
	case "u":
		if ch, ok := m.selected(); ok {
			return m, run("", func() error { return m.ctl.BindChannel(ch, "") })
		}
		return m, nil
	case "+", "=":
		n := m.snap.Settings.ChannelCount + 1
		return m, run("", func() error { return m.ctl.SetChannelCount(n) })
	case "-":
		n := m.snap.Settings.ChannelCount - 1
		return m, run("", func() error { return m.ctl.SetChannelCount(n) })
	case "]":
		n := m.snap.Settings.Deadzone + 1
		return m, run("", func() error { return m.ctl.SetDeadzone(n) })
	case "[":
		n := m.snap.Settings.Deadzone - 1
		return m, run("", func() error { return m.ctl.SetDeadzone(n) })
	case "p":
		name := nextPreset(m.snap.Source)
		if name == "" {
			return m, nil
		}
		return m, run("Preset "+name+" applied", func() error { return m.ctl.ApplyPreset(name) })
	}
	if len(key) == 1 && key[0] >= '1' && key[0] <= '8' {
		ch := int(key[0] - '1')
		return m, run("", func() error { return m.ctl.ToggleMute(ch) })
	}
	return m, nil
}

func (m Model) selected() (int, bool) {
	if m.sel < 0 || m.sel >= len(m.snap.Channels) {
		return 0, false
	}
	return m.sel, true
}

func (m *Model) clampSelection() {
	if m.sel >= len(m.snap.Channels) {
		m.sel = len(m.snap.Channels) - 1
	}
	if m.sel < 0 {
		m.sel = 0
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(render(m.snap, m.sel))
	b.WriteString("\n")
	th := NewTheme(m.snap.Settings)
	switch {
	case m.err != nil:
		b.WriteString(th.Status[driver.StatusError].Render(m.err.Error()) + "\n")
	case m.info != "":
		b.WriteString(th.Muted.Render(m.info) + "\n")
	}
	if m.prompting {
		b.WriteString(m.prompt.View() + "\n")
		return b.String()
	}
	b.WriteString(th.Muted.Render("↑/↓ select · m mute · b bind · u unbind · +/- channels · [/] deadzone · p preset"))
	b.WriteString("\n")
	b.WriteString(th.Muted.Render("r rescan · d devices · s save · c clear notices · : command · q quit"))
	b.WriteString("\n")
	return b.String()
}
