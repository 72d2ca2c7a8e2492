package mixer

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/linjuya-lu/mixer_bridge_go/internal/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func cfg(n, deadzone int, ids ...string) FrameConfig {
	return FrameConfig{ChannelCount: n, Deadzone: deadzone, DeviceIDs: ids, RateInterval: DefaultRateInterval}
}

func TestParseFrame(t *testing.T) {
	assert.Equal(t, []string{"1", "2", "3"}, ParseFrame(" 1 | 2|3\r"))
	assert.Equal(t, []string{"5", "x"}, ParseFrame("|5||x|"))
	assert.Empty(t, ParseFrame(""))
	assert.Empty(t, ParseFrame(" | |\r"))
}

func TestApply_BasicAndClamp(t *testing.T) {
	r := NewReconciler(3)
	cmds := r.Apply("2000|-7|512", cfg(3, 0, "a", "", "c"), t0)

	assert.Equal(t, []LevelUpdate{{0, 1023}, {1, 0}, {2, 512}}, cmds.Levels)
	require.Len(t, cmds.Writes, 2)
	assert.Equal(t, VolumeWrite{Channel: 0, DeviceID: "a", Volume: 1}, cmds.Writes[0])
	assert.Equal(t, 2, cmds.Writes[1].Channel)
	assert.InDelta(t, 512.0/1023.0, cmds.Writes[1].Volume, 1e-9)
}

func TestApply_ClampsOutOfRangeIntegers(t *testing.T) {
	r := NewReconciler(3)
	cmds := r.Apply("99999999999999999999999|-99999999999999999999|1e3", cfg(3, 0, "a", "b", "c"), t0)

	assert.Equal(t, []LevelUpdate{{0, 1023}, {1, 0}}, cmds.Levels)
	require.Len(t, cmds.Writes, 2)
	assert.Equal(t, 1.0, cmds.Writes[0].Volume)
	assert.Equal(t, 0.0, cmds.Writes[1].Volume)
}

func TestApply_IgnoresExtraTokensAndBadValues(t *testing.T) {
	r := NewReconciler(2)
	r.Apply("100|200", cfg(2, 0), t0)

	cmds := r.Apply("abc|300|400|500", cfg(2, 0), t0)
	assert.Equal(t, []LevelUpdate{{1, 300}}, cmds.Levels)
	v, ok := r.Last(0)
	require.True(t, ok)
	assert.Equal(t, 100, v, "non-numeric token keeps the prior value")

	assert.True(t, r.Apply("||", cfg(2, 0), t0).Empty())
}

func TestApply_Deadzone(t *testing.T) {
	r := NewReconciler(1)
	r.Apply("500", cfg(1, 10), t0)

	assert.True(t, r.Apply("509", cfg(1, 10), t0).Empty())
	assert.True(t, r.Apply("491", cfg(1, 10), t0).Empty())
	cmds := r.Apply("510", cfg(1, 10), t0)
	assert.Equal(t, []LevelUpdate{{0, 510}}, cmds.Levels)
}

func TestApply_DeadzoneIdempotence(t *testing.T) {
	const d = 8
	r := NewReconciler(1)
	r.Apply("100", cfg(1, d, "dev"), t0)

	// 每步增加 3：累计漂移达到 d 之前输出保持不变
	now := t0
	changedAt := 0
	for value := 103; value <= 130; value += 3 {
		now = now.Add(time.Second)
		cmds := r.Apply(strconv.Itoa(value), cfg(1, d, "dev"), now)
		if value-100 < d {
			assert.True(t, cmds.Empty(), "value %d", value)
			continue
		}
		require.Len(t, cmds.Levels, 1)
		changedAt = value
		break
	}
	assert.Equal(t, 109, changedAt)
	last, _ := r.Last(0)
	assert.Equal(t, 109, last)
}

func TestApply_DeadzoneZeroAcceptsRepeats(t *testing.T) {
	r := NewReconciler(1)
	r.Apply("42", cfg(1, 0), t0)
	assert.Len(t, r.Apply("42", cfg(1, 0), t0).Levels, 1)
}

func TestApply_RateLimitKeepsLevel(t *testing.T) {
	r := NewReconciler(1)
	require.Len(t, r.Apply("100", cfg(1, 0, "dev"), t0).Writes, 1)

	cmds := r.Apply("200", cfg(1, 0, "dev"), t0.Add(30*time.Millisecond))
	assert.Equal(t, []LevelUpdate{{0, 200}}, cmds.Levels)
	assert.Empty(t, cmds.Writes)

	cmds = r.Apply("300", cfg(1, 0, "dev"), t0.Add(60*time.Millisecond))
	require.Len(t, cmds.Writes, 1)
	assert.InDelta(t, 300.0/1023.0, cmds.Writes[0].Volume, 1e-9)
}

func TestApply_Mute(t *testing.T) {
	r := NewReconciler(2)
	assert.True(t, r.SetMuted(1, true))
	assert.False(t, r.SetMuted(1, true))

	cmds := r.Apply("800|800", cfg(2, 0, "a", "b"), t0)
	require.Len(t, cmds.Writes, 2)
	assert.InDelta(t, 800.0/1023.0, cmds.Writes[0].Volume, 1e-9)
	assert.Equal(t, 0.0, cmds.Writes[1].Volume)
	assert.Equal(t, 800, cmds.Levels[1].Value, "muted channel still shows its level")
}

func TestMuteCommand(t *testing.T) {
	r := NewReconciler(1)
	_, ok := r.MuteCommand(0, "dev", t0)
	assert.False(t, ok, "no value yet")

	r.Apply("1023", cfg(1, 0, "dev"), t0)
	r.SetMuted(0, true)
	w, ok := r.MuteCommand(0, "dev", t0)
	require.True(t, ok)
	assert.Equal(t, 0.0, w.Volume)

	r.SetMuted(0, false)
	w, ok = r.MuteCommand(0, "dev", t0)
	require.True(t, ok)
	assert.Equal(t, 1.0, w.Volume)

	_, ok = r.MuteCommand(0, " ", t0)
	assert.False(t, ok)
}

func TestReset_OnChannelCountChange(t *testing.T) {
	r := NewReconciler(2)
	r.SetMuted(0, true)
	r.Apply("10|20", cfg(2, 50), t0)

	cmds := r.Apply("11|21|31", cfg(3, 50), t0)
	assert.Len(t, cmds.Levels, 3, "deadzone state is cleared when the row set changes")
	assert.Equal(t, 3, r.Channels())
	assert.True(t, r.Muted(0))
}

type recordingManager struct {
	mu     sync.Mutex
	calls  []VolumeWrite
	failOn map[string]error
}

func (m *recordingManager) ListOutputDevices(context.Context) ([]audio.Device, error) {
	return nil, nil
}

func (m *recordingManager) SetVolume(_ context.Context, id string, v float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, VolumeWrite{DeviceID: id, Volume: v})
	return m.failOn[id]
}

func TestExecutor_StickyNotice(t *testing.T) {
	mgr := &recordingManager{failOn: map[string]error{"gone": errors.New("device removed")}}
	e := NewExecutor(logger.NewMockClient(), mgr)

	writes := []VolumeWrite{{Channel: 0, DeviceID: "gone", Volume: 0.5}, {Channel: 1, DeviceID: "ok", Volume: 0.25}}
	assert.Equal(t, 1, e.Execute(context.Background(), writes))
	assert.Len(t, mgr.calls, 2, "failure on one channel does not stop the others")

	first := e.Notice()
	assert.Contains(t, first, "channel 1")
	assert.Contains(t, first, "device removed")

	mgr.failOn["ok"] = errors.New("other failure")
	e.Execute(context.Background(), writes)
	assert.Equal(t, first, e.Notice(), "notice is not replaced while shown")

	e.ClearNotice()
	assert.Empty(t, e.Notice())
	e.Execute(context.Background(), writes[1:])
	assert.Contains(t, e.Notice(), "other failure")
}
