package discovery

import (
	"context"
	"sync"
)

// Finder 是 Engine 的抽象，便于测试替换
type Finder interface {
	FindControllerPort(ctx context.Context) (string, bool)
}

// Result 是一次搜索的结果。
// Cancelled 为 true 时调用方不应显示“未找到”之类的终态。
type Result struct {
	Seq       uint64
	Port      string
	Found     bool
	Cancelled bool
}

// Scanner 保证同一时间只有一个搜索在运行：
// 新的 Start 会先取消并等待上一次搜索释放串口后再开始。
type Scanner struct {
	finder Finder

	startMu sync.Mutex
	mu      sync.Mutex
	seq     uint64
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewScanner(f Finder) *Scanner {
	return &Scanner{finder: f}
}

// Start 启动新的搜索并返回其序号；onResult 在后台协程中调用，
// 调用前搜索已经结束且串口已关闭。
func (s *Scanner) Start(parent context.Context, onResult func(Result)) uint64 {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.Cancel()

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go func() {
		port, found := s.finder.FindControllerPort(ctx)
		res := Result{Seq: seq, Port: port, Found: found, Cancelled: !found && ctx.Err() != nil}
		cancel()
		close(done)
		if onResult != nil {
			onResult(res)
		}
	}()
	return seq
}

// Cancel 取消正在进行的搜索并等待其结束；没有搜索时立即返回
func (s *Scanner) Cancel() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Current 返回最近一次 Start 的序号
func (s *Scanner) Current() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}
