package driver

import (
	"testing"

	"github.com/linjuya-lu/mixer_bridge_go/internal/mixer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolumeQueueKeepsLatestPerChannel(t *testing.T) {
	q := newVolumeQueue()
	assert.Nil(t, q.take())

	// 写入方卡住时持续推送，不能丢掉最后的静音写入
	for i := 0; i < 100; i++ {
		q.push([]mixer.VolumeWrite{
			{Channel: 1, DeviceID: "hdmi", Volume: float64(i) / 100},
			{Channel: 0, DeviceID: "spk", Volume: 0.5},
		})
	}
	q.push([]mixer.VolumeWrite{{Channel: 1, DeviceID: "hdmi", Volume: 0}})

	select {
	case <-q.ready:
	default:
		t.Fatal("queue was not signalled")
	}
	ws := q.take()
	require.Len(t, ws, 2)
	assert.Equal(t, mixer.VolumeWrite{Channel: 0, DeviceID: "spk", Volume: 0.5}, ws[0])
	assert.Equal(t, mixer.VolumeWrite{Channel: 1, DeviceID: "hdmi", Volume: 0}, ws[1])
	assert.Nil(t, q.take())

	q.push(nil)
	select {
	case <-q.ready:
		t.Fatal("empty push must not signal")
	default:
	}
}
