package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"
)

// TextStore 是文本文件读写的外部协作方
type TextStore interface {
	ReadText(path string) (string, error)
	WriteText(path, text string) error
}

// FileStore 基于本地文件系统实现 TextStore
type FileStore struct{}

func (FileStore) ReadText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewCommonEdgeX(errors.KindEntityDoesNotExist,
				fmt.Sprintf("file %s does not exist", path), err)
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}

func (FileStore) WriteText(path, text string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// AppState 是应用级持久状态，只记录上次使用的配置标识
type AppState struct {
	LastConfigIdentifier *string `json:"LastConfigIdentifier"`
}

// AppStateStore 读写 app_settings.json
type AppStateStore struct {
	store TextStore
	path  string
}

func NewAppStateStore(store TextStore, dataDir string) *AppStateStore {
	return &AppStateStore{store: store, path: filepath.Join(dataDir, "app_settings.json")}
}

// Load 尽力读取；文件不存在或损坏时返回空状态
func (s *AppStateStore) Load() AppState {
	text, err := s.store.ReadText(s.path)
	if err != nil {
		return AppState{}
	}
	var st AppState
	if err := json.Unmarshal([]byte(text), &st); err != nil {
		return AppState{}
	}
	return st
}

func (s *AppStateStore) Save(st AppState) error {
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal app state: %w", err)
	}
	return s.store.WriteText(s.path, string(b))
}

// SetLastIdentifier 只更新上次使用的配置标识
func (s *AppStateStore) SetLastIdentifier(id Identifier) error {
	v := id.String()
	return s.Save(AppState{LastConfigIdentifier: &v})
}

// DiagnosticLog 是只追加的配置加载日志
type DiagnosticLog struct {
	mu   sync.Mutex
	path string
}

func NewDiagnosticLog(dataDir string) *DiagnosticLog {
	return &DiagnosticLog{path: filepath.Join(dataDir, "config_load.log")}
}

func (l *DiagnosticLog) Path() string { return l.path }

// Append 写入一个加载事件块：时间戳 + 来源标签，随后是缩进的警告行
func (l *DiagnosticLog) Append(source string, warnings []string, at time.Time) error {
	if len(warnings) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", l.path, err)
	}
	defer f.Close()

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", at.Format("2006-01-02 15:04:05"), source)
	for _, w := range warnings {
		fmt.Fprintf(&b, "  - %s\n", w)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("append %s: %w", l.path, err)
	}
	return nil
}
