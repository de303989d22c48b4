package nats

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/smazurov/pingnode/internal/dm"
	"github.com/smazurov/pingnode/internal/version"
)

// ErrNotConnected is returned by Client requests made while offline.
var ErrNotConnected = errors.New("not connected to NATS")

// Client talks to a running pingnode over NATS. It sends control
// requests and watches published resources and probe results.
// Gracefully degrades when NATS is unavailable.
type Client struct {
	url       string
	name      string
	conn      *nats.Conn
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool
}

// NewClient creates a new NATS client. name identifies the caller in the
// connection name, e.g. "remote".
func NewClient(url, name string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if name == "" {
		name = "client"
	}

	return &Client{
		url:    url,
		name:   name,
		logger: logger.With("component", "nats-client"),
	}
}

// Connect establishes a connection to the NATS server.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	opts := []nats.Option{
		nats.Name(version.Component(c.name)),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1), // Infinite reconnects
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.mu.Lock()
			c.connected = false
			c.mu.Unlock()
			if err != nil {
				c.logger.Warn("NATS disconnected", "error", err)
			} else {
				c.logger.Debug("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			c.mu.Lock()
			c.connected = true
			c.mu.Unlock()
			c.logger.Info("NATS reconnected")
		}),
	}

	conn, err := nats.Connect(c.url, opts...)
	if err != nil {
		c.logger.Warn("Failed to connect to NATS, running in offline mode", "error", err)
		return err
	}

	c.conn = conn
	c.connected = true
	c.logger.Info("Connected to NATS", "url", c.url)
	return nil
}

func (c *Client) activeConn() (*nats.Conn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil || !c.connected {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

// Execute asks the server to execute the resource at p and waits for the reply.
func (c *Client) Execute(ctx context.Context, p dm.Path, reason string) error {
	return c.request(ctx, SubjectControl(p, ActionExecute), ControlMessage{Reason: reason})
}

// Write asks the server to write value to the resource at p.
func (c *Client) Write(ctx context.Context, p dm.Path, value any, reason string) error {
	return c.request(ctx, SubjectControl(p, ActionWrite), ControlMessage{Value: value, Reason: reason})
}

func (c *Client) request(ctx context.Context, subject string, msg ControlMessage) error {
	conn, err := c.activeConn()
	if err != nil {
		return err
	}

	data, err := msg.Marshal()
	if err != nil {
		return err
	}
	resp, err := conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return err
	}
	reply, err := UnmarshalReply(resp.Data)
	if err != nil {
		return err
	}
	return reply.Err()
}

// WatchProbes calls fn for every finished probe until the returned
// function is called.
func (c *Client) WatchProbes(fn func(ProbeMessage)) (func(), error) {
	conn, err := c.activeConn()
	if err != nil {
		return nil, err
	}

	sub, err := conn.Subscribe(SubjectProbeFinished, func(msg *nats.Msg) {
		m, err := UnmarshalProbe(msg.Data)
		if err != nil {
			c.logger.Warn("Failed to unmarshal probe result", "error", err)
			return
		}
		fn(m)
	})
	if err != nil {
		return nil, err
	}
	if err := conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, err
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

// WatchResources calls fn for every resource change published for oid.
func (c *Client) WatchResources(oid dm.ObjectID, fn func(ResourceMessage)) (func(), error) {
	conn, err := c.activeConn()
	if err != nil {
		return nil, err
	}

	sub, err := conn.Subscribe(SubjectObject(oid), func(msg *nats.Msg) {
		m, err := UnmarshalResource(msg.Data)
		if err != nil {
			c.logger.Warn("Failed to unmarshal resource", "error", err, "subject", msg.Subject)
			return
		}
		fn(m)
	})
	if err != nil {
		return nil, err
	}
	if err := conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, err
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

// IsConnected returns true if connected to NATS.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.conn != nil
}

// Close closes the NATS connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	c.connected = false
	c.logger.Debug("NATS client closed")
}
