package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/pingnode/internal/logging"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startWatcher starts a logging config watcher with a short debounce.
func startWatcher(t *testing.T, path string, opts ...WatcherOption[logging.Config]) *Watcher[logging.Config] {
	t.Helper()
	opts = append([]WatcherOption[logging.Config]{WithDebounce[logging.Config](50 * time.Millisecond)}, opts...)
	w := NewConfigWatcher(path, ReadLoggingConfig, newTestLogger(), opts...)
	require.NoError(t, w.Start())
	t.Cleanup(func() {
		assert.NoError(t, w.Stop())
	})
	// Let the watcher settle before writing
	time.Sleep(50 * time.Millisecond)
	return w
}

func waitConfig(t *testing.T, ch <-chan logging.Config) logging.Config {
	t.Helper()
	select {
	case cfg := <-ch:
		return cfg
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for config reload")
		return logging.Config{}
	}
}

func TestConfigWatcher_Reload(t *testing.T) {
	path := writeConfig(t, "[logging]\nlevel = \"info\"\n")
	w := startWatcher(t, path)

	received := make(chan logging.Config, 4)
	w.OnReload(func(cfg logging.Config) { received <- cfg })

	require.NoError(t, os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\nipping = \"warn\"\n"), 0o644))

	cfg := waitConfig(t, received)
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "warn", cfg.Modules["ipping"])
}

func TestConfigWatcher_RenameOverFile(t *testing.T) {
	path := writeConfig(t, "[logging]\nlevel = \"info\"\n")
	w := startWatcher(t, path)

	received := make(chan logging.Config, 4)
	w.OnReload(func(cfg logging.Config) { received <- cfg })

	tmp := filepath.Join(filepath.Dir(path), ".config.toml.swp")
	require.NoError(t, os.WriteFile(tmp, []byte("[logging]\nlevel = \"error\"\n"), 0o644))
	require.NoError(t, os.Rename(tmp, path))

	cfg := waitConfig(t, received)
	assert.Equal(t, "error", cfg.Level)
}

func TestConfigWatcher_IgnoresOtherFiles(t *testing.T) {
	path := writeConfig(t, "[logging]\nlevel = \"info\"\n")
	w := startWatcher(t, path)

	var calls atomic.Int32
	w.OnReload(func(logging.Config) { calls.Add(1) })

	other := filepath.Join(filepath.Dir(path), "other.toml")
	require.NoError(t, os.WriteFile(other, []byte("x = 1\n"), 0o644))

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestConfigWatcher_ErrorHandler(t *testing.T) {
	path := writeConfig(t, "[logging]\nlevel = \"info\"\n")
	errs := make(chan error, 1)
	w := startWatcher(t, path, WithErrorHandler[logging.Config](func(err error) { errs <- err }))

	received := make(chan logging.Config, 1)
	w.OnReload(func(cfg logging.Config) { received <- cfg })

	require.NoError(t, os.WriteFile(path, []byte("invalid toml [[["), 0o644))

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-received:
		t.Fatal("config handler should not be called on error")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
}

func TestConfigWatcher_Debounce(t *testing.T) {
	path := writeConfig(t, "[logging]\nlevel = \"info\"\n")
	w := startWatcher(t, path, WithDebounce[logging.Config](200*time.Millisecond))

	var calls atomic.Int32
	last := make(chan logging.Config, 8)
	w.OnReload(func(cfg logging.Config) {
		calls.Add(1)
		last <- cfg
	})

	for _, level := range []string{"debug", "warn", "error"} {
		require.NoError(t, os.WriteFile(path, []byte("[logging]\nlevel = \""+level+"\"\n"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	cfg := waitConfig(t, last)
	assert.Equal(t, "error", cfg.Level)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestConfigWatcher_UnsubscribeAndReload(t *testing.T) {
	path := writeConfig(t, "[logging]\nlevel = \"warn\"\n")
	w := NewConfigWatcher(path, ReadLoggingConfig, newTestLogger())

	var first, second atomic.Int32
	unsub := w.OnReload(func(logging.Config) { first.Add(1) })
	w.OnReload(func(logging.Config) { second.Add(1) })

	w.Reload()
	unsub()
	w.Reload()

	assert.Equal(t, int32(1), first.Load())
	assert.Equal(t, int32(2), second.Load())
}

func TestConfigWatcher_ReloadsPingTimeouts(t *testing.T) {
	path := writeConfig(t, "[ping]\nkill_timeout = \"2s\"\n")
	w := NewConfigWatcher(path, ReadReloadable, newTestLogger(), WithDebounce[Reloadable](50*time.Millisecond))
	require.NoError(t, w.Start())
	t.Cleanup(func() { assert.NoError(t, w.Stop()) })
	time.Sleep(50 * time.Millisecond)

	received := make(chan Reloadable, 4)
	w.OnReload(func(r Reloadable) { received <- r })

	require.NoError(t, os.WriteFile(path, []byte("[ping]\ngraceful_timeout = \"250ms\"\nkill_timeout = \"1s\"\n"), 0o644))

	select {
	case r := <-received:
		assert.Equal(t, 250*time.Millisecond, r.Ping.Graceful)
		assert.Equal(t, time.Second, r.Ping.Kill)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for config reload")
	}
}

func TestConfigWatcher_StopDropsPendingReload(t *testing.T) {
	path := writeConfig(t, "[logging]\nlevel = \"info\"\n")
	w := NewConfigWatcher(path, ReadLoggingConfig, newTestLogger(), WithDebounce[logging.Config](300*time.Millisecond))
	require.NoError(t, w.Start())
	time.Sleep(50 * time.Millisecond)

	var calls atomic.Int32
	w.OnReload(func(logging.Config) { calls.Add(1) })

	require.NoError(t, os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\n"), 0o644))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())

	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestConfigWatcher_StopWithoutStart(t *testing.T) {
	w := NewConfigWatcher(writeConfig(t, ""), ReadLoggingConfig, newTestLogger())
	assert.NoError(t, w.Stop())
}
