package nats

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/smazurov/pingnode/internal/dm"
	"github.com/smazurov/pingnode/internal/events"
	"github.com/smazurov/pingnode/internal/version"
)

// ResourceAccess is the part of the object registry the bridge needs.
type ResourceAccess interface {
	Read(p dm.Path) (dm.Value, error)
	Write(p dm.Path, v dm.Value) error
	Execute(p dm.Path) error
}

// Bridge forwards event bus notifications to NATS and NATS control
// requests to the object registry.
type Bridge struct {
	url      string
	eventBus *events.Bus
	access   ResourceAccess
	conn     *nats.Conn
	subs     []*nats.Subscription
	unsubs   []func()
	logger   *slog.Logger
	mu       sync.Mutex
}

// NewBridge creates a new bridge between the event bus and NATS.
func NewBridge(url string, eventBus *events.Bus, access ResourceAccess, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}

	return &Bridge{
		url:      url,
		eventBus: eventBus,
		access:   access,
		logger:   logger.With("component", "nats-bridge"),
	}
}

// Start connects to NATS, subscribes to control subjects and starts
// forwarding bus events.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != nil {
		return errors.New("bridge already started")
	}

	conn, err := nats.Connect(b.url,
		nats.Name(version.Component("bridge")),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				b.logger.Warn("NATS bridge disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			b.logger.Info("NATS bridge reconnected")
		}),
	)
	if err != nil {
		return err
	}

	b.conn = conn
	b.logger.Info("NATS bridge connected", "url", b.url)

	// <prefix>.<oid>.<iid>.<rid>.<action>
	controlSub, err := conn.Subscribe(SubjectControlPrefix+".*.*.*.*", b.handleControl)
	if err != nil {
		b.cleanup()
		return err
	}
	b.subs = append(b.subs, controlSub)

	// Make sure the subscription is registered before callers start publishing.
	if err := conn.Flush(); err != nil {
		b.cleanup()
		return err
	}

	b.unsubs = append(b.unsubs,
		b.eventBus.Subscribe(b.handleResourceChanged),
		b.eventBus.Subscribe(b.handleProbeFinished),
	)

	b.logger.Info("NATS bridge subscribed to control subjects")
	return nil
}

// publish sends data if the bridge is connected. Failures are logged only.
func (b *Bridge) publish(subject string, data []byte) {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()

	if conn == nil {
		return
	}
	if err := conn.Publish(subject, data); err != nil {
		b.logger.Warn("Failed to publish", "subject", subject, "error", err)
	}
}

// handleResourceChanged reads the new value and publishes it.
// Runs on a bus goroutine, never under the object lock.
func (b *Bridge) handleResourceChanged(e events.ResourceChangedEvent) {
	p := dm.Path{
		OID: dm.ObjectID(e.ObjectID),
		IID: dm.InstanceID(e.InstanceID),
		RID: dm.ResourceID(e.ResourceID),
	}
	v, err := b.access.Read(p)
	if err != nil {
		b.logger.Debug("Skipping unreadable resource", "path", e.Path, "error", err)
		return
	}

	data, err := ResourceMessage{
		Path:      e.Path,
		Value:     v.Any(),
		Timestamp: e.Timestamp,
	}.Marshal()
	if err != nil {
		b.logger.Warn("Failed to marshal resource", "error", err)
		return
	}
	b.publish(SubjectResource(p), data)
}

// handleProbeFinished publishes the probe summary.
func (b *Bridge) handleProbeFinished(e events.ProbeFinishedEvent) {
	data, err := ProbeMessage{
		SessionID:    e.SessionID,
		Hostname:     e.Hostname,
		State:        e.State,
		SuccessCount: e.SuccessCount,
		ErrorCount:   e.ErrorCount,
		AvgRttMs:     e.AvgRttMs,
		MinRttMs:     e.MinRttMs,
		MaxRttMs:     e.MaxRttMs,
		RttStdevUs:   e.RttStdevUs,
		DurationMs:   e.DurationMs,
		Timestamp:    e.Timestamp,
	}.Marshal()
	if err != nil {
		b.logger.Warn("Failed to marshal probe result", "error", err)
		return
	}
	b.publish(SubjectProbeFinished, data)
	b.logger.Debug("Published probe result", "session_id", e.SessionID, "state", e.State)
}

// handleControl executes or writes a resource and replies when asked to.
func (b *Bridge) handleControl(msg *nats.Msg) {
	err := b.control(msg)
	if err != nil {
		b.logger.Warn("Control request failed", "subject", msg.Subject, "error", err)
	}

	if msg.Reply == "" {
		return
	}
	reply := ControlReply{OK: err == nil}
	if err != nil {
		reply.Code = dm.CodeOf(err).String()
		reply.Error = err.Error()
		var dmErr *dm.Error
		if errors.As(err, &dmErr) {
			reply.Error = dmErr.Message
		}
	}
	data, marshalErr := reply.Marshal()
	if marshalErr != nil {
		b.logger.Warn("Failed to marshal control reply", "error", marshalErr)
		return
	}
	if respErr := msg.Respond(data); respErr != nil {
		b.logger.Warn("Failed to send control reply", "error", respErr)
	}
}

func (b *Bridge) control(msg *nats.Msg) error {
	p, action, err := ParseControlSubject(msg.Subject)
	if err != nil {
		return dm.NewErrorWithCause(dm.CodeBadRequest, "invalid control subject", err)
	}
	ctrl, err := UnmarshalControl(msg.Data)
	if err != nil {
		return dm.NewErrorWithCause(dm.CodeBadRequest, "invalid control payload", err)
	}

	b.logger.Info("Received control command", "path", p.String(), "action", action, "reason", ctrl.Reason)

	switch action {
	case ActionExecute:
		return b.access.Execute(p)
	case ActionWrite:
		v, err := dm.FromJSON(ctrl.Value)
		if err != nil {
			return err
		}
		return b.access.Write(p, v)
	default:
		return dm.NewError(dm.CodeMethodNotAllowed, "unknown action "+action)
	}
}

// cleanup unsubscribes and closes connection. Must hold b.mu.
func (b *Bridge) cleanup() {
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.subs = nil

	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
}

// Stop closes the bridge connection.
func (b *Bridge) Stop() {
	// Bus handlers take b.mu, so detach them without holding it.
	b.mu.Lock()
	unsubs := b.unsubs
	b.unsubs = nil
	b.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.cleanup()
	b.logger.Info("NATS bridge stopped")
}

// IsConnected returns true if the bridge is connected to NATS.
func (b *Bridge) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil && b.conn.IsConnected()
}
