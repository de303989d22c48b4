package iosched

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startScheduler runs the loop in the background and stops it on cleanup.
func startScheduler(t *testing.T, opts ...Option) *Scheduler {
	t.Helper()
	s := New(testLogger(), opts...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		s.Wait()
	})
	return s
}

// recorder collects callback invocations.
type recorder struct {
	mu    sync.Mutex
	lines []string
	eof   chan struct{}
}

func newRecorder() *recorder {
	return &recorder{eof: make(chan struct{})}
}

func (r *recorder) callback(line string, ok bool) {
	if !ok {
		close(r.eof)
		return
	}
	r.mu.Lock()
	r.lines = append(r.lines, line)
	r.mu.Unlock()
}

func (r *recorder) waitEOF(t *testing.T) []string {
	t.Helper()
	select {
	case <-r.eof:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for end of stream")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func TestDeliversLinesInOrderThenEOF(t *testing.T) {
	s := startScheduler(t)
	rec := newRecorder()

	_, err := s.Register(strings.NewReader("one\ntwo\n\nthree"), rec.callback)
	require.NoError(t, err)

	assert.Equal(t, []string{"one", "two", "", "three"}, rec.waitEOF(t))
}

func TestPartialLinesAreBuffered(t *testing.T) {
	s := startScheduler(t)
	rec := newRecorder()
	pr, pw := io.Pipe()

	_, err := s.Register(pr, rec.callback)
	require.NoError(t, err)

	_, _ = pw.Write([]byte("4 packets trans"))
	time.Sleep(20 * time.Millisecond)
	rec.mu.Lock()
	assert.Empty(t, rec.lines, "partial line must not be dispatched")
	rec.mu.Unlock()

	_, _ = pw.Write([]byte("mitted, 4 received\n"))
	require.NoError(t, pw.Close())

	assert.Equal(t, []string{"4 packets transmitted, 4 received"}, rec.waitEOF(t))
}

func TestCallbacksRunOnLoopGoroutineSerially(t *testing.T) {
	s := startScheduler(t)

	var active, maxActive int
	var mu sync.Mutex
	var wg sync.WaitGroup

	cb := func(_ string, ok bool) {
		if !ok {
			wg.Done()
			return
		}
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
	}

	for range 4 {
		wg.Add(1)
		_, err := s.Register(strings.NewReader("a\nb\nc\n"), cb)
		require.NoError(t, err)
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive)
}

func TestUnregisterFromCallbackStopsDelivery(t *testing.T) {
	s := startScheduler(t)
	pr, pw := io.Pipe()

	var got []string
	var entry *Entry
	stopped := make(chan struct{})
	cb := func(line string, ok bool) {
		if !ok {
			t.Error("no end-of-stream callback expected after unregister")
			return
		}
		got = append(got, line)
		s.Unregister(entry)
		s.Unregister(entry)
		close(stopped)
	}

	var err error
	entry, err = s.Register(pr, cb)
	require.NoError(t, err)

	go func() {
		_, _ = pw.Write([]byte("first\n"))
	}()
	<-stopped
	assert.Equal(t, 0, s.Len())

	// The owner closes the stream, which releases the reader goroutine.
	require.NoError(t, pr.Close())
	s.Wait()
	assert.Equal(t, []string{"first"}, got)
}

func TestRegisterAfterClose(t *testing.T) {
	s := New(testLogger())
	s.Close()

	_, err := s.Register(strings.NewReader(""), func(string, bool) {})
	require.ErrorIs(t, err, ErrClosed)
	assert.False(t, s.Post(func() {}))
}

func TestRegisterLimit(t *testing.T) {
	s := startScheduler(t, WithMaxEntries(1))
	pr, pw := io.Pipe()
	defer pw.Close()

	first, err := s.Register(pr, func(string, bool) {})
	require.NoError(t, err)

	_, err = s.Register(strings.NewReader(""), func(string, bool) {})
	require.ErrorIs(t, err, ErrTooManyEntries)

	s.Unregister(first)
	require.NoError(t, pr.Close())
}

func TestPostRunsOnLoop(t *testing.T) {
	s := startScheduler(t)
	ran := make(chan struct{})

	require.True(t, s.Post(func() { close(ran) }))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("posted task did not run")
	}
}

func TestLongLinesAreSplit(t *testing.T) {
	s := startScheduler(t)
	rec := newRecorder()
	long := strings.Repeat("x", maxLineLength+10)

	_, err := s.Register(strings.NewReader(long+"\n"), rec.callback)
	require.NoError(t, err)

	lines := rec.waitEOF(t)
	require.Len(t, lines, 2)
	assert.Len(t, lines[0], maxLineLength)
	assert.Len(t, lines[1], 10)
}
