package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/pingnode/cmd"
	"github.com/smazurov/pingnode/internal/api"
	"github.com/smazurov/pingnode/internal/config"
	"github.com/smazurov/pingnode/internal/dm"
	"github.com/smazurov/pingnode/internal/events"
	"github.com/smazurov/pingnode/internal/iosched"
	"github.com/smazurov/pingnode/internal/ipping"
	"github.com/smazurov/pingnode/internal/logging"
	"github.com/smazurov/pingnode/internal/metrics/collectors"
	"github.com/smazurov/pingnode/internal/metrics/exporters"
	"github.com/smazurov/pingnode/internal/nats"
	"github.com/smazurov/pingnode/internal/process"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port        string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	CorsOrigins string `help:"Comma separated list of allowed CORS origins" default:"*" toml:"server.cors_origins" env:"SERVER_CORS_ORIGINS"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Ping settings. Zero values leave the resource unset.
	PingBinary          string `help:"Ping command, may include extra arguments" default:"ping" toml:"ping.binary" env:"PING_BINARY"`
	PingHostname        string `help:"Initial probe hostname" default:"" toml:"ping.hostname" env:"PING_HOSTNAME"`
	PingRepetitions     int    `help:"Initial number of echo requests" default:"0" toml:"ping.repetitions" env:"PING_REPETITIONS"`
	PingTimeoutMs       int    `help:"Initial reply timeout in milliseconds" default:"0" toml:"ping.timeout_ms" env:"PING_TIMEOUT_MS"`
	PingBlockSize       int    `help:"Initial payload size in bytes" default:"0" toml:"ping.block_size" env:"PING_BLOCK_SIZE"`
	PingDscp            int    `help:"Initial DSCP code point" default:"0" toml:"ping.dscp" env:"PING_DSCP"`
	PingGracefulTimeout string `help:"Time a cancelled probe gets to exit before SIGINT" default:"1s" toml:"ping.graceful_timeout" env:"PING_GRACEFUL_TIMEOUT"`
	PingKillTimeout     string `help:"Time after SIGINT before SIGKILL" default:"2s" toml:"ping.kill_timeout" env:"PING_KILL_TIMEOUT"`

	// Observability settings
	ObsPrometheusEnabled bool `help:"Enable Prometheus" default:"true" toml:"obs.prometheus_enabled" env:"OBS_PROMETHEUS_ENABLED"`

	// NATS settings
	NatsEnabled  bool   `help:"Enable the NATS bridge" default:"false" toml:"nats.enabled" env:"NATS_ENABLED"`
	NatsURL      string `help:"NATS server URL" default:"nats://127.0.0.1:4222" toml:"nats.url" env:"NATS_URL"`
	NatsEmbedded bool   `help:"Run an embedded NATS server listening on the NATS URL" default:"false" toml:"nats.embedded" env:"NATS_EMBEDDED"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingIpping  string `help:"IP Ping object logging level" default:"info" toml:"logging.ipping" env:"LOGGING_IPPING"`
	LoggingIosched string `help:"I/O scheduler logging level" default:"info" toml:"logging.iosched" env:"LOGGING_IOSCHED"`
	LoggingProcess string `help:"Process logging level" default:"info" toml:"logging.process" env:"LOGGING_PROCESS"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingNats    string `help:"NATS logging level" default:"info" toml:"logging.nats" env:"LOGGING_NATS"`
	LoggingMetrics string `help:"Metrics logging level" default:"info" toml:"logging.metrics" env:"LOGGING_METRICS"`
}

func main() {
	var cli humacli.CLI

	// Create Huma CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		logging.Initialize(loggingConfig(opts))
		logger := logging.GetLogger("main")

		// Create event bus for in-process event handling
		eventBus := events.New()
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Seq:        entry.Seq,
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		host, err := process.NewHost(opts.PingBinary, logging.GetLogger("process"))
		if err != nil {
			logger.Error("Invalid ping binary", "binary", opts.PingBinary, "error", err)
			os.Exit(1)
		}
		host.SetTimeouts(
			parseDuration(opts.PingGracefulTimeout, time.Second, logger),
			parseDuration(opts.PingKillTimeout, 2*time.Second, logger),
		)

		scheduler := iosched.New(logging.GetLogger("iosched"))

		registry := dm.NewRegistry(logging.GetLogger("main"))
		pingObject := ipping.New(host, scheduler, eventBus,
			ipping.WithFinishHandler(func(r ipping.ProbeResult) {
				eventBus.Publish(probeFinishedEvent(r))
			}),
		)
		if regErr := registry.Register(pingObject); regErr != nil {
			logger.Error("Failed to register object", "error", regErr)
			os.Exit(1)
		}
		if applyErr := applyInitialConfig(registry, opts); applyErr != nil {
			logger.Warn("Initial ping configuration rejected", "error", applyErr)
		}

		apiOpts := &api.Options{
			AuthUsername: opts.AuthUsername,
			AuthPassword: opts.AuthPassword,
			Registry:     registry,
			EventBus:     eventBus,
		}
		if origins := splitList(opts.CorsOrigins); len(origins) > 0 {
			cors := api.DefaultCORSConfig()
			cors.AllowOrigins = origins
			apiOpts.CORS = &cors
		}

		var probeCollector *collectors.ProbeCollector
		if opts.ObsPrometheusEnabled {
			probeCollector = collectors.NewProbeCollector(eventBus, registry)
			apiOpts.PrometheusHandler = exporters.HTTPHandler(nil, logging.GetLogger("metrics"))
		}

		server := api.NewServer(apiOpts)

		// Log levels and ping teardown timeouts apply without a restart
		watcher := config.NewConfigWatcher(opts.Config, config.ReadReloadable, logging.GetLogger("config"))
		watcher.OnReload(func(cfg config.Reloadable) {
			logging.UpdateLevels(cfg.Logging)
			logger.Info("Logging levels reloaded", "level", cfg.Logging.Level)
		})
		watcher.OnReload(func(cfg config.Reloadable) {
			applyPingTimeouts(host, cfg.Ping, logger)
		})

		var natsServer *nats.Server
		var natsBridge *nats.Bridge
		natsLogger := logging.GetLogger("nats")

		ctx, cancel := context.WithCancel(context.Background())
		schedulerDone := make(chan struct{})

		hooks.OnStart(func() {
			go func() {
				defer close(schedulerDone)
				if runErr := scheduler.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
					logger.Error("Scheduler stopped", "error", runErr)
				}
			}()

			if probeCollector != nil {
				probeCollector.Start()
			}

			if startErr := watcher.Start(); startErr != nil {
				logger.Warn("Failed to start config watcher, hot-reload disabled", "error", startErr)
			}

			if opts.NatsEnabled {
				natsURL := opts.NatsURL
				if opts.NatsEmbedded {
					serverOpts, optsErr := nats.ServerOptionsFromURL(opts.NatsURL)
					if optsErr != nil {
						logger.Warn("Cannot run embedded NATS server", "url", opts.NatsURL, "error", optsErr)
					} else {
						serverOpts.Logger = natsLogger
						serverOpts.Debug = opts.LoggingNats == "debug"
						natsServer = nats.NewServer(serverOpts)
						if startErr := natsServer.Start(); startErr != nil {
							logger.Warn("Failed to start embedded NATS server", "error", startErr)
							natsServer = nil
						} else {
							natsURL = natsServer.ClientURL()
						}
					}
				}

				natsBridge = nats.NewBridge(natsURL, eventBus, registry, natsLogger)
				if startErr := natsBridge.Start(); startErr != nil {
					logger.Warn("NATS unavailable, continuing without bridge", "url", natsURL, "error", startErr)
					natsBridge = nil
				}
			}

			if _, notifyErr := daemon.SdNotify(false, daemon.SdNotifyReady); notifyErr != nil {
				logger.Debug("Failed to notify systemd", "error", notifyErr)
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			// Stop accepting remote control before releasing the probe
			if natsBridge != nil {
				natsBridge.Stop()
			}

			pingObject.Release()
			cancel()
			<-schedulerDone
			scheduler.Wait()

			if natsServer != nil {
				natsServer.Stop()
			}
			if probeCollector != nil {
				probeCollector.Stop()
			}
			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Debug("Error stopping config watcher", "error", stopErr)
			}
		})
	})

	cli.Root().Use = "pingnode"
	cli.Root().Short = "IP Ping diagnostic node"

	// Add probe command
	cli.Root().AddCommand(cmd.CreateProbeCmd())

	// Add resources command
	cli.Root().AddCommand(cmd.CreateResourcesCmd())

	// Add remote command
	cli.Root().AddCommand(cmd.CreateRemoteCmd())

	// Run the CLI
	cli.Run()
}

func loggingConfig(opts *Options) logging.Config {
	return logging.Config{
		Level:  opts.LoggingLevel,
		Format: opts.LoggingFormat,
		Modules: map[string]string{
			"ipping":  opts.LoggingIpping,
			"iosched": opts.LoggingIosched,
			"process": opts.LoggingProcess,
			"api":     opts.LoggingAPI,
			"http":    opts.LoggingAPI,
			"nats":    opts.LoggingNats,
			"metrics": opts.LoggingMetrics,
		},
	}
}

// applyInitialConfig writes the configured ping parameters in one
// transaction. Unset values are skipped.
func applyInitialConfig(registry *dm.Registry, opts *Options) error {
	values := make(map[dm.ResourceID]dm.Value)
	if opts.PingHostname != "" {
		values[ipping.ResHostname] = dm.String(opts.PingHostname)
	}
	if opts.PingRepetitions != 0 {
		values[ipping.ResRepetitions] = dm.Int(int64(opts.PingRepetitions))
	}
	if opts.PingTimeoutMs != 0 {
		values[ipping.ResTimeoutMs] = dm.Int(int64(opts.PingTimeoutMs))
	}
	if opts.PingBlockSize != 0 {
		values[ipping.ResBlockSize] = dm.Int(int64(opts.PingBlockSize))
	}
	if opts.PingDscp != 0 {
		values[ipping.ResDSCP] = dm.Int(int64(opts.PingDscp))
	}
	if len(values) == 0 {
		return nil
	}
	return registry.WriteInstance(ipping.ObjectID, ipping.InstanceID, values)
}

func probeFinishedEvent(r ipping.ProbeResult) events.ProbeFinishedEvent {
	return events.ProbeFinishedEvent{
		SessionID:    r.SessionID,
		Hostname:     r.Hostname,
		State:        r.Stats.State.String(),
		SuccessCount: r.Stats.Success,
		ErrorCount:   r.Stats.Error,
		AvgRttMs:     r.Stats.AvgMs,
		MinRttMs:     r.Stats.MinMs,
		MaxRttMs:     r.Stats.MaxMs,
		RttStdevUs:   r.Stats.StdevUs,
		DurationMs:   r.Duration.Milliseconds(),
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
}

// applyPingTimeouts updates the host with the timeouts the file sets.
// Unset values keep their current setting.
func applyPingTimeouts(host *process.Host, t config.PingTimeouts, logger *slog.Logger) {
	graceful, kill := host.Timeouts()
	if t.Graceful == 0 && t.Kill == 0 {
		return
	}
	if t.Graceful > 0 {
		graceful = t.Graceful
	}
	if t.Kill > 0 {
		kill = t.Kill
	}
	host.SetTimeouts(graceful, kill)
	logger.Info("Ping timeouts reloaded", "graceful", graceful, "kill", kill)
}

func parseDuration(s string, def time.Duration, logger *slog.Logger) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		logger.Warn("Invalid duration, using default", "value", s, "default", def)
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
