package iosched

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
)

// DefaultMaxEntries bounds concurrent registrations.
const DefaultMaxEntries = 64

// maxLineLength caps a single line; longer input is split.
const maxLineLength = 4096

var (
	// ErrClosed is returned when registering on a closed scheduler.
	ErrClosed = errors.New("iosched: scheduler closed")
	// ErrTooManyEntries is returned when the registration limit is reached.
	ErrTooManyEntries = errors.New("iosched: too many entries")
)

// Callback receives one complete line per invocation (without the trailing
// newline). ok is false exactly once, when the stream ended or failed.
type Callback func(line string, ok bool)

// Entry is a registration handle.
type Entry struct {
	id       uint64
	cb       Callback
	removed  atomic.Bool
	done     chan struct{}
	doneOnce sync.Once
}

// ID returns the registration id, unique per scheduler.
func (e *Entry) ID() uint64 {
	return e.id
}

func (e *Entry) remove() {
	e.doneOnce.Do(func() {
		e.removed.Store(true)
		close(e.done)
	})
}

// Scheduler dispatches readiness callbacks on a single goroutine.
type Scheduler struct {
	tasks      chan func()
	quit       chan struct{}
	closeOnce  sync.Once
	mu         sync.Mutex
	entries    map[uint64]*Entry
	nextID     uint64
	maxEntries int
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMaxEntries overrides DefaultMaxEntries.
func WithMaxEntries(n int) Option {
	return func(s *Scheduler) {
		s.maxEntries = n
	}
}

// New creates a scheduler. Call Run to start dispatching.
func New(logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		tasks:      make(chan func()),
		quit:       make(chan struct{}),
		entries:    make(map[uint64]*Entry),
		maxEntries: DefaultMaxEntries,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run dispatches callbacks until ctx is cancelled or Close is called.
// The scheduler is closed when Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.Close()
	s.logger.Debug("Scheduler loop started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Scheduler loop stopped", "reason", ctx.Err())
			return ctx.Err()
		case <-s.quit:
			s.logger.Debug("Scheduler loop stopped", "reason", "closed")
			return nil
		case task := <-s.tasks:
			task()
		}
	}
}

// Post queues fn to run on the loop goroutine. It blocks until the loop
// accepts the task and returns false if the scheduler was closed first.
func (s *Scheduler) Post(fn func()) bool {
	select {
	case s.tasks <- fn:
		return true
	case <-s.quit:
		return false
	}
}

// Register starts watching r and returns a handle for Unregister.
func (s *Scheduler) Register(r io.Reader, cb Callback) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.quit:
		return nil, ErrClosed
	default:
	}
	if len(s.entries) >= s.maxEntries {
		return nil, ErrTooManyEntries
	}

	s.nextID++
	e := &Entry{
		id:   s.nextID,
		cb:   cb,
		done: make(chan struct{}),
	}
	s.entries[e.id] = e

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.watch(e, r)
	}()

	s.logger.Debug("Entry registered", "entry_id", e.id)
	return e, nil
}

// Unregister removes the entry. Pending and future lines are dropped.
// Safe to call more than once and from inside a callback.
func (s *Scheduler) Unregister(e *Entry) {
	if e == nil {
		return
	}
	s.mu.Lock()
	delete(s.entries, e.id)
	s.mu.Unlock()
	e.remove()
	s.logger.Debug("Entry unregistered", "entry_id", e.id)
}

// Len returns the number of live registrations.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the loop and rejects new registrations. Reader goroutines
// exit once their streams are closed by their owners.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
	})
}

// Wait blocks until all reader goroutines have exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// watch reads complete lines from r and dispatches them one at a time.
func (s *Scheduler) watch(e *Entry, r io.Reader) {
	reader := bufio.NewReaderSize(r, maxLineLength)
	for {
		line, err := readLine(reader)
		if line != "" || err == nil {
			if !s.dispatch(e, line, true) {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !e.removed.Load() {
				s.logger.Debug("Stream read failed", "entry_id", e.id, "error", err)
			}
			s.dispatch(e, "", false)
			return
		}
	}
}

// dispatch runs the callback on the loop goroutine and waits for it.
// Returns false if the entry was removed or the scheduler closed.
func (s *Scheduler) dispatch(e *Entry, line string, ok bool) bool {
	handled := make(chan struct{})
	task := func() {
		defer close(handled)
		if e.removed.Load() {
			return
		}
		e.cb(line, ok)
	}

	select {
	case s.tasks <- task:
	case <-e.done:
		return false
	case <-s.quit:
		return false
	}

	<-handled
	return !e.removed.Load()
}

// readLine returns the next line without its terminator. A final line without
// a newline is returned together with io.EOF.
func readLine(r *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		chunk, isPrefix, err := r.ReadLine()
		sb.Write(chunk)
		if err != nil {
			return sb.String(), err
		}
		if !isPrefix || sb.Len() >= maxLineLength {
			return sb.String(), nil
		}
	}
}
