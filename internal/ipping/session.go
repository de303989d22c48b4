package ipping

import (
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/pingnode/internal/iosched"
)

// ProcessHost spawns the probe command and returns its merged output.
// Closing the stream must not block on the child. Streams that also
// implement Abort are stopped with it when a start is abandoned.
type ProcessHost interface {
	Spawn(args []string) (io.ReadCloser, error)
}

type aborter interface {
	Abort() error
}

// abortStream stops the producer of a stream nobody will read.
func abortStream(stream io.ReadCloser) error {
	if a, ok := stream.(aborter); ok {
		return a.Abort()
	}
	return stream.Close()
}

// Scheduler delivers stream lines to callbacks on a single goroutine.
type Scheduler interface {
	Register(r io.Reader, cb iosched.Callback) (*iosched.Entry, error)
	Unregister(e *iosched.Entry)
}

// ProbeResult describes a finished probe session.
type ProbeResult struct {
	SessionID string        `json:"session_id"`
	Hostname  string        `json:"hostname"`
	Stats     Statistics    `json:"statistics"`
	Duration  time.Duration `json:"duration"`
}

// session is one running probe.
type session struct {
	id       uuid.UUID
	hostname string
	started  time.Time
	stream   io.ReadCloser
	entry    *iosched.Entry
	parser   *Parser
}

// start launches a probe for the current configuration and returns the
// state the object should take. Must be called with o.mu held.
func (o *Object) start() State {
	cfg := o.cfg
	if !cfg.Runnable() {
		o.logger.Warn("Probe configuration incomplete", "config", cfg)
		return StateErrorOther
	}

	s := &session{
		id:       uuid.New(),
		hostname: cfg.Hostname,
		started:  o.now(),
		parser:   NewParser(),
	}
	logger := o.logger.With("session_id", s.id.String())

	stream, err := o.host.Spawn(cfg.Args())
	if err != nil {
		logger.Error("Failed to spawn probe", "error", err)
		return StateErrorInternal
	}
	s.stream = stream

	entry, err := o.sched.Register(stream, func(line string, ok bool) {
		o.handleLine(s, line, ok)
	})
	if err != nil {
		logger.Error("Failed to register probe output", "error", err)
		_ = abortStream(stream)
		return StateErrorInternal
	}
	s.entry = entry
	o.session = s

	logger.Info("Probe started", "hostname", cfg.Hostname, "repetitions", cfg.Repetitions,
		"timeout_ms", cfg.TimeoutMs, "block_size", cfg.BlockSize, "dscp", cfg.DSCP)
	return StateInProgress
}

// handleLine runs on the scheduler goroutine for every output line of s.
func (o *Object) handleLine(s *session, line string, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session != s {
		return
	}
	if !ok {
		o.logger.Debug("Probe output closed", "session_id", s.id.String())
		o.teardown()
		return
	}

	res := s.parser.Feed(line)
	switch res.Kind {
	case ResultContinue:
	case ResultStatsUpdate:
		o.stats.setCounts(*res.Counts)
	case ResultTerminal:
		if res.State != StateNone {
			o.stats.State = res.State
		} else {
			o.logger.Warn("Unexpected probe output", "session_id", s.id.String(), "line", line)
		}
		if res.Counts != nil {
			o.stats.setCounts(*res.Counts)
		}
		if res.RTT != nil {
			o.stats.setRTT(*res.RTT)
		}
		o.teardown()
	}
}

// teardown ends the live session, if any. An unfinished probe is marked
// ErrorInternal. The state resource is always announced.
// Must be called with o.mu held.
func (o *Object) teardown() {
	s := o.session
	o.session = nil

	if s != nil {
		o.sched.Unregister(s.entry)
		if err := s.stream.Close(); err != nil {
			o.logger.Debug("Failed to close probe output", "session_id", s.id.String(), "error", err)
		}
	}

	if o.stats.State == StateInProgress {
		o.stats.State = StateErrorInternal
	}
	o.stats.notify(ResState)

	if s == nil {
		return
	}
	result := ProbeResult{
		SessionID: s.id.String(),
		Hostname:  s.hostname,
		Stats:     o.stats.Statistics,
		Duration:  o.now().Sub(s.started),
	}
	o.logger.Info("Probe finished", "session_id", result.SessionID, "state", result.Stats.State,
		"success", result.Stats.Success, "errors", result.Stats.Error, "duration", result.Duration)
	if o.onFinish != nil {
		o.onFinish(result)
	}
}
