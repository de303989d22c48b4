// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Logs to both when both are available
//   - Keeps the last 1000 entries in a ring buffer for /api/logs
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"ipping": "debug",  // Per-module overrides
//			"api":    "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("mymodule")
//	logger.Info("Starting up", "port", 8080)
//	logger.Debug("Details", "config", cfg)
//	logger.Warn("Something unusual", "error", err)
//	logger.Error("Failed", "error", err)
//
// Add contextual attributes:
//
//	logger := logging.GetLogger("ipping").With("session_id", id)
//	logger.Info("Probe started")  // Includes session_id in all logs
//
// Levels can be changed at runtime, e.g. from a config file watcher:
//
//	logging.UpdateLevels(newConfig.Logging)
//
// # Log Levels
//
//	debug - Verbose debugging information
//	info  - General operational messages
//	warn  - Warning conditions
//	error - Error conditions
//
// # Output Destinations
//
// Every record goes to the ring buffer. Stdout is added when it is a
// terminal, pipe or file, and the systemd journal when
// [github.com/coreos/go-systemd/v22/journal.Enabled] reports it. A failing
// destination does not stop delivery to the others.
//
// # Viewing Logs
//
// When running as a systemd service or on a system with journald:
//
//	journalctl -t pingnode              # All pingnode logs
//	journalctl -t pingnode -f           # Follow live
//	journalctl -t pingnode --since "5m" # Last 5 minutes
//	journalctl -t pingnode -p err       # Errors only
//
// Filter by structured fields:
//
//	journalctl -t pingnode MODULE=ipping
//	journalctl -t pingnode SESSION_ID=0b5c7f9e-4a51-4bb5-9a37-3f3f1c1a2b8d
//	journalctl -t pingnode OBJECT_ID=12359 RESOURCE_ID=6
//
// Attribute names become upper case fields. Names that clash with fields
// set by journald (MESSAGE, PRIORITY, ...) are stored as PINGNODE_<NAME>.
//
// # Configuration
//
// Log levels can be set globally or per-module. Module-specific levels
// override the global level for that module only.
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	ipping = "debug"
//	api = "warn"
//	nats = "error"
package logging
