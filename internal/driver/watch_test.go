package driver

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mixer.json")
	other := filepath.Join(dir, "other.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	changed := make(chan string, 4)
	w, err := NewSettingsWatcher(logger.NewMockClient(), func(p string) { changed <- p })
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond
	require.NoError(t, w.Watch(path))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	require.NoError(t, os.WriteFile(other, []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte(`{"Deadzone": 3}`), 0o644))

	select {
	case p := <-changed:
		assert.Equal(t, path, p)
	case <-time.After(3 * time.Second):
		t.Fatal("no change notification")
	}

	require.NoError(t, w.Watch(""))
	require.NoError(t, os.WriteFile(path, []byte(`{"Deadzone": 4}`), 0o644))
	select {
	case p := <-changed:
		t.Fatalf("unexpected notification for %s", p)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLevelStore(t *testing.T) {
	s := NewLevelStore()
	now := time.Now()
	s.Put(0, 10, now)
	s.Put(3, 30, now)

	lv, err := s.Get(3)
	require.NoError(t, err)
	assert.Equal(t, 30, lv.Value)

	s.Truncate(2)
	_, err = s.Get(3)
	assert.Equal(t, errors.KindEntityDoesNotExist, errors.Kind(err))
	_, err = s.Get(0)
	assert.NoError(t, err)

	s.Reset()
	_, err = s.Get(0)
	assert.Error(t, err)
}
