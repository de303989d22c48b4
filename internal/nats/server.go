package nats

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// RandomPort asks the embedded server to pick a free port.
const RandomPort = server.RANDOM_PORT

const (
	defaultServerHost = "127.0.0.1"
	defaultServerPort = 4222
	serverReadyWait   = 5 * time.Second
	// Control requests and probe summaries are small JSON documents.
	maxServerPayload = 64 * 1024
)

// ServerOptions configures the embedded NATS server.
type ServerOptions struct {
	Host   string
	Port   int
	Name   string
	Logger *slog.Logger
	// Debug forwards the server's debug messages to Logger.
	Debug bool
}

// ServerOptionsFromURL returns options for an embedded server listening on
// the address of a nats:// URL, so the bridge and the server share nats.url.
func ServerOptionsFromURL(rawURL string) (ServerOptions, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ServerOptions{}, fmt.Errorf("parse NATS url: %w", err)
	}
	if u.Scheme != "nats" {
		return ServerOptions{}, fmt.Errorf("embedded NATS server needs a nats:// url, got %q", rawURL)
	}

	opts := ServerOptions{Host: u.Hostname(), Port: defaultServerPort}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return ServerOptions{}, fmt.Errorf("invalid NATS port %q: %w", p, err)
		}
		opts.Port = port
	}
	return opts, nil
}

// Server is an embedded NATS server for single-host deployments.
type Server struct {
	ns     *server.Server
	opts   ServerOptions
	logger *slog.Logger
}

// NewServer creates an embedded NATS server. Zero options fall back to
// 127.0.0.1:4222 and the name "pingnode".
func NewServer(opts ServerOptions) *Server {
	if opts.Host == "" {
		opts.Host = defaultServerHost
	}
	if opts.Port == 0 {
		opts.Port = defaultServerPort
	}
	if opts.Name == "" {
		opts.Name = "pingnode"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		opts:   opts,
		logger: logger.With("component", "nats-server"),
	}
}

// Start starts the server and waits until it accepts connections.
func (s *Server) Start() error {
	ns, err := server.NewServer(&server.Options{
		Host:       s.opts.Host,
		Port:       s.opts.Port,
		ServerName: s.opts.Name,
		NoSigs:     true,
		MaxPayload: maxServerPayload,
	})
	if err != nil {
		return fmt.Errorf("failed to create NATS server: %w", err)
	}
	ns.SetLogger(serverLog{logger: s.logger}, s.opts.Debug, false)

	go ns.Start()
	if !ns.ReadyForConnections(serverReadyWait) {
		ns.Shutdown()
		return fmt.Errorf("NATS server not ready on %s within %s", net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port)), serverReadyWait)
	}

	s.ns = ns
	s.logger.Info("NATS server started", "url", s.ClientURL())
	return nil
}

// Stop shuts the server down and waits for it to finish.
func (s *Server) Stop() {
	if s.ns == nil {
		return
	}
	s.logger.Info("Stopping NATS server")
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
	s.ns = nil
}

// ClientURL returns the URL clients should use to connect.
func (s *Server) ClientURL() string {
	if s.ns == nil {
		return "nats://" + net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	}
	return s.ns.ClientURL()
}

// IsRunning reports whether the server accepts connections.
func (s *Server) IsRunning() bool {
	return s.ns != nil && s.ns.Running()
}

// serverLog routes nats-server messages into slog.
type serverLog struct {
	logger *slog.Logger
}

func (l serverLog) Noticef(format string, v ...any) { l.logger.Info(fmt.Sprintf(format, v...)) }
func (l serverLog) Warnf(format string, v ...any)   { l.logger.Warn(fmt.Sprintf(format, v...)) }
func (l serverLog) Errorf(format string, v ...any)  { l.logger.Error(fmt.Sprintf(format, v...)) }
func (l serverLog) Debugf(format string, v ...any)  { l.logger.Debug(fmt.Sprintf(format, v...)) }
func (l serverLog) Tracef(format string, v ...any)  { l.logger.Debug(fmt.Sprintf(format, v...)) }

func (l serverLog) Fatalf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...), "fatal", true)
}

var _ server.Logger = serverLog{}
