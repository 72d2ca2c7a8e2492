package driver

import (
	"sort"
	"sync"

	"github.com/linjuya-lu/mixer_bridge_go/internal/mixer"
)

// volumeQueue 缓存待执行的音量写入，每个通道只保留最新的一次。
// push 不阻塞也不丢弃：写入方来不及执行时，旧值被新值覆盖。
type volumeQueue struct {
	mu      sync.Mutex
	pending map[int]mixer.VolumeWrite
	ready   chan struct{}
}

func newVolumeQueue() *volumeQueue {
	return &volumeQueue{
		pending: make(map[int]mixer.VolumeWrite),
		ready:   make(chan struct{}, 1),
	}
}

func (q *volumeQueue) push(ws []mixer.VolumeWrite) {
	if len(ws) == 0 {
		return
	}
	q.mu.Lock()
	for _, w := range ws {
		q.pending[w.Channel] = w
	}
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// take 取出全部待写入项，按通道排序
func (q *volumeQueue) take() []mixer.VolumeWrite {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	ws := make([]mixer.VolumeWrite, 0, len(q.pending))
	for _, w := range q.pending {
		ws = append(ws, w)
	}
	q.pending = make(map[int]mixer.VolumeWrite)
	sort.Slice(ws, func(i, j int) bool { return ws[i].Channel < ws[j].Channel })
	return ws
}
