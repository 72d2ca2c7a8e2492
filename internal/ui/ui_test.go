package ui

import (
	"errors"
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/linjuya-lu/mixer_bridge_go/internal/audio"
	"github.com/linjuya-lu/mixer_bridge_go/internal/binding"
	"github.com/linjuya-lu/mixer_bridge_go/internal/driver"
	"github.com/linjuya-lu/mixer_bridge_go/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() driver.Snapshot {
	return driver.Snapshot{
		Status:   driver.StatusConnected,
		Detail:   "/dev/ttyACM0",
		Source:   "profile:gaming",
		Dirty:    true,
		Settings: settings.CreateDefault(),
		Channels: []driver.ChannelView{
			{Index: 0, Label: "Speakers", Binding: binding.Bound, DeviceID: "spk", Level: 512, HasLevel: true},
			{Index: 1, Label: "<none>", Binding: binding.Unbound, Muted: true},
			{Index: 2, Label: "<missing> X", Binding: binding.Missing, DeviceID: "X"},
		},
		Devices: []audio.Device{{ID: "spk", Name: "Speakers"}},
		Notices: []string{"Missing devices: channel 3 (X)."},
	}
}

func TestRender(t *testing.T) {
	out := Render(sampleSnapshot())

	assert.Contains(t, out, "Connected (/dev/ttyACM0)")
	assert.Contains(t, out, "profile:gaming (modified)")
	assert.Contains(t, out, "Speakers")
	assert.Contains(t, out, " 512")
	assert.Contains(t, out, "<missing> X")
	assert.Contains(t, out, "MUTED")
	assert.Contains(t, out, "! Missing devices: channel 3 (X).")
}

func TestRenderEmpty(t *testing.T) {
	out := Render(driver.Snapshot{Settings: settings.CreateDefault()})
	assert.Contains(t, out, "Not connected")
	assert.Contains(t, out, "config: defaults")
}

func TestColorHex(t *testing.T) {
	s := settings.CreateDefault()
	assert.Equal(t, "#588ece", colorHex(s.AccentColorArgb))
	assert.Equal(t, "#18181c", colorHex(s.BackgroundColorArgb))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
}

type fakeController struct {
	calls []string
	muted []int
	err   error
}

func (f *fakeController) record(call string) error {
	f.calls = append(f.calls, call)
	return nil
}

func (f *fakeController) Snapshot() (driver.Snapshot, error) {
	f.calls = append(f.calls, "snapshot")
	return sampleSnapshot(), nil
}
func (f *fakeController) Rescan() error             { return f.record("rescan") }
func (f *fakeController) RefreshDevices() error     { return f.record("devices") }
func (f *fakeController) DismissNotices() error     { return f.record("dismiss") }
func (f *fakeController) Connect(port string) error { return f.record("connect:" + port) }
func (f *fakeController) LoadIdentifier(id string) error {
	return f.record("load:" + id)
}
func (f *fakeController) ApplyPreset(name string) error { return f.record("preset:" + name) }
func (f *fakeController) SetChannelCount(n int) error   { return f.record(fmt.Sprintf("channels:%d", n)) }
func (f *fakeController) SetDeadzone(n int) error       { return f.record(fmt.Sprintf("deadzone:%d", n)) }
func (f *fakeController) SetManualPort(enabled bool, name string) error {
	return f.record(fmt.Sprintf("port:%t:%s", enabled, name))
}
func (f *fakeController) BindChannel(ch int, id string) error {
	return f.record(fmt.Sprintf("bind:%d:%s", ch, id))
}
func (f *fakeController) Save(path string) error {
	f.calls = append(f.calls, "save:"+path)
	return f.err
}
func (f *fakeController) ToggleMute(ch int) error {
	f.muted = append(f.muted, ch)
	return nil
}

func press(t *testing.T, m tea.Model, key string) (tea.Model, tea.Cmd) {
	t.Helper()
	return m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
}

func TestModelKeys(t *testing.T) {
	ctl := &fakeController{err: errors.New("disk full")}
	var m tea.Model = NewModel(ctl)

	m, cmd := m.Update(tickMsg{})
	require.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Speakers")

	for _, k := range []string{"r", "d", "3"} {
		var c tea.Cmd
		m, c = press(t, m, k)
		require.NotNil(t, c, k)
		m, _ = m.Update(c())
	}
	assert.Equal(t, []string{"snapshot", "rescan", "devices"}, ctl.calls)
	assert.Equal(t, []int{2}, ctl.muted)

	m, cmd = press(t, m, "s")
	m, _ = m.Update(cmd())
	assert.Contains(t, m.View(), "disk full")

	_, cmd = press(t, m, "9")
	assert.Nil(t, cmd)

	_, cmd = press(t, m, "q")
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestModelChannelEditingKeys(t *testing.T) {
	ctl := &fakeController{}
	var m tea.Model = NewModel(ctl)
	m, _ = m.Update(tickMsg{})
	ctl.calls = nil

	keys := []tea.KeyMsg{
		{Type: tea.KeyDown},
		{Type: tea.KeyRunes, Runes: []rune("b")},
		{Type: tea.KeyRunes, Runes: []rune("u")},
		{Type: tea.KeyRunes, Runes: []rune("m")},
		{Type: tea.KeyRunes, Runes: []rune("+")},
		{Type: tea.KeyRunes, Runes: []rune("[")},
		{Type: tea.KeyRunes, Runes: []rune("p")},
	}
	for _, k := range keys {
		var c tea.Cmd
		m, c = m.Update(k)
		if c != nil {
			m, _ = m.Update(c())
		}
	}
	def := settings.CreateDefault()
	assert.Equal(t, []string{
		// 第 2 通道当前未绑定，循环到第一个设备
		"bind:1:spk",
		"bind:1:",
		fmt.Sprintf("channels:%d", def.ChannelCount+1),
		fmt.Sprintf("deadzone:%d", def.Deadzone-1),
		// profile:gaming 之后是 Office
		"preset:Office",
	}, ctl.calls)
	assert.Equal(t, []int{1}, ctl.muted)
}

func TestModelCommandPrompt(t *testing.T) {
	ctl := &fakeController{}
	var m tea.Model = NewModel(ctl)

	m, _ = press(t, m, ":")
	for _, r := range "load /cfg/a.json" {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	assert.Contains(t, m.View(), "load /cfg/a.json")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m, _ = m.Update(cmd())
	assert.Equal(t, []string{"load:/cfg/a.json"}, ctl.calls)
	assert.Contains(t, m.View(), "Loaded /cfg/a.json")

	// 提示符关闭后按键恢复原义
	_, cmd = press(t, m, "r")
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, "rescan", ctl.calls[len(ctl.calls)-1])
}

func TestRunCommand(t *testing.T) {
	cases := []struct {
		line string
		call string
	}{
		{"load profile:office", "load:profile:office"},
		{"preset Streaming", "preset:Streaming"},
		{"save", "save:"},
		{"save /tmp/m.json", "save:/tmp/m.json"},
		{"port COM3", "port:true:COM3"},
		{"port auto", "port:false:"},
		{"connect /dev/ttyUSB0", "connect:/dev/ttyUSB0"},
		{"bind 2 alsa_output.usb", "bind:1:alsa_output.usb"},
		{"unbind 1", "bind:0:"},
		{"channels 6", "channels:6"},
		{"deadzone 10", "deadzone:10"},
		{"rescan", "rescan"},
	}
	for _, tc := range cases {
		ctl := &fakeController{}
		_, err := RunCommand(ctl, tc.line)
		require.NoError(t, err, tc.line)
		assert.Equal(t, []string{tc.call}, ctl.calls, tc.line)
	}

	for _, bad := range []string{"bind 0 spk", "bind x", "channels", "deadzone many", "load", "frobnicate"} {
		ctl := &fakeController{}
		_, err := RunCommand(ctl, bad)
		assert.Error(t, err, bad)
		assert.Empty(t, ctl.calls, bad)
	}

	info, err := RunCommand(&fakeController{}, "help")
	require.NoError(t, err)
	assert.Contains(t, info, "bind <ch> <device>")
}

func TestNextDeviceAndPreset(t *testing.T) {
	devs := []audio.Device{{ID: "a"}, {ID: "b"}}
	assert.Equal(t, "a", nextDevice(devs, ""))
	assert.Equal(t, "b", nextDevice(devs, "a"))
	assert.Equal(t, "", nextDevice(devs, "b"))
	assert.Equal(t, "a", nextDevice(devs, "gone"))
	assert.Equal(t, "", nextDevice(nil, "a"))

	assert.Equal(t, "Gaming", nextPreset(""))
	assert.Equal(t, "Streaming", nextPreset("profile:office"))
	assert.Equal(t, "Gaming", nextPreset("profile:streaming"))
}
