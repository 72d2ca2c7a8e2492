package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"
	"github.com/linjuya-lu/mixer_bridge_go/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestStartupIdentifier(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mixer.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))
	store := settings.FileStore{}

	id, err := startupIdentifier(store, "", "")
	require.NoError(t, err)
	assert.Empty(t, id)

	id, err = startupIdentifier(store, path, "")
	require.NoError(t, err)
	assert.Equal(t, path, id)

	id, err = startupIdentifier(store, "", "Streaming")
	require.NoError(t, err)
	assert.Equal(t, "profile:streaming", id)

	id, err = startupIdentifier(store, "profile:Office", "")
	require.NoError(t, err)
	assert.Equal(t, "profile:office", id)

	_, err = startupIdentifier(store, "", "karaoke")
	assert.Equal(t, errors.KindEntityDoesNotExist, errors.Kind(err))

	_, err = startupIdentifier(store, filepath.Join(dir, "missing.json"), "")
	assert.Error(t, err)

	_, err = startupIdentifier(store, path, "Gaming")
	assert.Error(t, err)
}

func TestCheckCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	text, err := settings.Marshal(settings.CreateDefault())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(good, []byte(text), 0o644))

	out, err := execute(t, "check", good)
	require.NoError(t, err)
	assert.Contains(t, out, "OK: "+good)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"ChannelCount": "lots"}`), 0o644))
	out, err = execute(t, "check", bad)
	require.Error(t, err)
	assert.Contains(t, out, `  - Field "ChannelCount" has an invalid format; default value used.`)
}

func TestPresetsCommand(t *testing.T) {
	out, err := execute(t, "presets")
	require.NoError(t, err)
	assert.Contains(t, out, "profile:gaming\t4 channels, deadzone 4")
	assert.Contains(t, out, "profile:office")
	assert.Contains(t, out, "profile:streaming")
}

func TestRunRejectsConflictingFlags(t *testing.T) {
	_, err := execute(t, "run", "--headless", "--settings", "/nope.json", "--preset", "Gaming")
	assert.Error(t, err)
}
