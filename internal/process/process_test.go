package process

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestHost creates a Host with short timeouts for testing.
func newTestHost(t *testing.T, binary string) *Host {
	t.Helper()
	h, err := NewHost(binary, testLogger())
	require.NoError(t, err)
	h.SetTimeouts(100*time.Millisecond, 100*time.Millisecond)
	return h
}

// waitDone waits for the child to be reaped, fails test on timeout.
func waitDone(t *testing.T, p *Process, timeout time.Duration) int {
	t.Helper()
	select {
	case <-p.done:
		return p.exitCode
	case <-time.After(timeout):
		t.Fatal("timeout waiting for process to exit")
		return -1
	}
}

func TestStderrIsMergedIntoOutput(t *testing.T) {
	h := newTestHost(t, "sh")

	p, err := h.Start([]string{"-c", "echo out; echo err 1>&2"})
	require.NoError(t, err)

	out, err := io.ReadAll(p)
	require.NoError(t, err)
	assert.Equal(t, "out\nerr\n", string(out))

	require.NoError(t, p.Close())
	assert.Equal(t, 0, waitDone(t, p, time.Second))
}

func TestSpawnReturnsReadCloser(t *testing.T) {
	h := newTestHost(t, "echo")

	rc, err := h.Spawn([]string{"-n", "hello"})
	require.NoError(t, err)
	defer rc.Close()

	out, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
}

func TestExitCodeIsReported(t *testing.T) {
	h := newTestHost(t, "sh")

	p, err := h.Start([]string{"-c", "exit 42"})
	require.NoError(t, err)
	_, _ = io.ReadAll(p)
	require.NoError(t, p.Close())

	assert.Equal(t, 42, waitDone(t, p, time.Second))
}

func TestCloseInterruptsRunningProcess(t *testing.T) {
	h := newTestHost(t, "sh")
	h.SetTimeouts(50*time.Millisecond, time.Second)

	p, err := h.Start([]string{"-c", "trap 'exit 0' INT; while :; do sleep 0.05; done"})
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, p.Close())
	assert.Equal(t, 0, waitDone(t, p, 2*time.Second))
	assert.Less(t, time.Since(start), time.Second)
}

func TestForceKillOnTimeout(t *testing.T) {
	h := newTestHost(t, "sh")
	h.SetTimeouts(50*time.Millisecond, 50*time.Millisecond)

	// Process that ignores SIGINT
	p, err := h.Start([]string{"-c", "trap '' INT; sleep 10"})
	require.NoError(t, err)
	require.NoError(t, p.Close())

	// Process was killed, expect 137 (128 + 9 for SIGKILL)
	assert.Equal(t, 137, waitDone(t, p, time.Second))
}

func TestCloseIsIdempotent(t *testing.T) {
	h := newTestHost(t, "true")

	p, err := h.Start(nil)
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 0, waitDone(t, p, time.Second))
}

func TestStartNonExistentCommand(t *testing.T) {
	h := newTestHost(t, "/nonexistent/command/that/does/not/exist")

	_, err := h.Start([]string{"-c", "1"})
	require.Error(t, err)
}

func TestNewHostRejectsBadBinary(t *testing.T) {
	_, err := NewHost("", testLogger())
	require.Error(t, err)

	_, err = NewHost(`ping "unclosed`, testLogger())
	require.Error(t, err)
}

func TestCommandPrependsPrefix(t *testing.T) {
	h := newTestHost(t, `sudo -n "/usr/bin/ping"`)
	assert.Equal(t, []string{"sudo", "-n", "/usr/bin/ping", "-q", "host"}, h.Command([]string{"-q", "host"}))
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input   string
		want    []string
		wantErr bool
	}{
		{"ping", []string{"ping"}, false},
		{`  busybox   ping `, []string{"busybox", "ping"}, false},
		{`echo hello\ world`, []string{"echo", "hello world"}, false},
		{`sh -c "a 'b' c"`, []string{"sh", "-c", "a 'b' c"}, false},
		{`echo "unclosed`, nil, true},
		{"", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCommand(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAbortKillsWithoutGracePeriod(t *testing.T) {
	h := newTestHost(t, "sh")
	h.SetTimeouts(10*time.Second, 10*time.Second)

	p, err := h.Start([]string{"-c", "exec sleep 30"})
	require.NoError(t, err)

	require.NoError(t, p.Abort())
	assert.Equal(t, 137, waitDone(t, p, time.Second))

	// Close after Abort is a no-op.
	require.NoError(t, p.Close())
}

func TestSetTimeoutsAppliesToNewProcesses(t *testing.T) {
	h := newTestHost(t, "sh")
	h.SetTimeouts(time.Second, 2*time.Second)

	first, err := h.Start([]string{"-c", "exit 0"})
	require.NoError(t, err)
	waitDone(t, first, time.Second)
	require.NoError(t, first.Close())

	h.SetTimeouts(3*time.Second, 4*time.Second)
	graceful, kill := h.Timeouts()
	assert.Equal(t, 3*time.Second, graceful)
	assert.Equal(t, 4*time.Second, kill)

	second, err := h.Start([]string{"-c", "exit 0"})
	require.NoError(t, err)
	waitDone(t, second, time.Second)
	require.NoError(t, second.Close())

	assert.Equal(t, time.Second, first.gracefulTimeout)
	assert.Equal(t, 4*time.Second, second.killTimeout)
}
