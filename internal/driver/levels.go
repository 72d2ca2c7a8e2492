package driver

import (
	"fmt"
	"sync"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"
)

// Level 是某通道最近一次显示的电平
type Level struct {
	Channel   int
	Value     int // 0..1023
	UpdatedAt time.Time
}

// LevelStore 是一个简单的内存存储：通道 → 最新电平。
// 事件循环写入，UI 和 MQTT 镜像可以并发读取。
type LevelStore struct {
	mu    sync.RWMutex
	store map[int]Level
}

func NewLevelStore() *LevelStore {
	return &LevelStore{store: make(map[int]Level)}
}

// Reset 清空所有数据（通道集合重建时调用）
func (s *LevelStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = make(map[int]Level)
}

// Put 添加或更新一个通道的电平
func (s *LevelStore) Put(channel, value int, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[channel] = Level{Channel: channel, Value: value, UpdatedAt: at}
}

// Get 获取通道的当前电平
func (s *LevelStore) Get(channel int) (Level, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lv, ok := s.store[channel]
	if !ok {
		return Level{}, errors.NewCommonEdgeX(
			errors.KindEntityDoesNotExist,
			fmt.Sprintf("no level for channel %d", channel+1),
			nil,
		)
	}
	return lv, nil
}

// Truncate 删除 >= channels 的通道
func (s *LevelStore) Truncate(channels int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.store {
		if ch >= channels {
			delete(s.store, ch)
		}
	}
}
