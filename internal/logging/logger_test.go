package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// resetState clears all package state between tests.
func resetState() {
	mutex.Lock()
	defer mutex.Unlock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	globalConfig = Config{}
	logBuffer = NewRingBuffer(defaultBufferSize)
	logCallback = nil
}

func enabled(l *slog.Logger, level slog.Level) bool {
	return l.Handler().Enabled(context.Background(), level)
}

func TestModuleLevelOverride(t *testing.T) {
	resetState()

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"ipping": "debug",
			"api":    "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"ipping", true, true, true},
		{"api", false, false, true},
		{"other", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			logger := GetLogger(tt.module)

			if got := enabled(logger, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("module %q: Debug enabled = %v, want %v", tt.module, got, tt.wantDebug)
			}
			if got := enabled(logger, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("module %q: Info enabled = %v, want %v", tt.module, got, tt.wantInfo)
			}
			if got := enabled(logger, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("module %q: Warn enabled = %v, want %v", tt.module, got, tt.wantWarn)
			}
		})
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetState()

	loggerBefore := GetLogger("iosched")
	if enabled(loggerBefore, slog.LevelDebug) {
		t.Error("Logger created before Initialize should NOT have debug enabled")
	}

	Initialize(Config{
		Level:   "info",
		Format:  "text",
		Modules: map[string]string{"iosched": "debug"},
	})

	loggerAfter := GetLogger("iosched")
	if loggerBefore != loggerAfter {
		t.Error("Logger should be cached - same pointer before and after Initialize")
	}
	if !enabled(loggerBefore, slog.LevelDebug) {
		t.Error("Cached logger should have debug enabled after Initialize updates LevelVar")
	}
}

func TestUpdateLevels(t *testing.T) {
	resetState()
	Initialize(Config{Level: "info", Format: "text"})

	logger := GetLogger("nats")
	if enabled(logger, slog.LevelDebug) {
		t.Fatal("nats should start at info")
	}

	UpdateLevels(Config{Level: "warn", Modules: map[string]string{"nats": "debug"}})
	if !enabled(logger, slog.LevelDebug) {
		t.Error("nats should be at debug after UpdateLevels")
	}
	if lvl, ok := Level("nats"); !ok || lvl != slog.LevelDebug {
		t.Errorf("Level(nats) = %v, %v", lvl, ok)
	}

	other := GetLogger("metrics")
	if enabled(other, slog.LevelInfo) {
		t.Error("metrics should follow the new global warn level")
	}

	UpdateLevels(Config{Level: "error"})
	if enabled(logger, slog.LevelWarn) {
		t.Error("nats override should be gone after UpdateLevels without modules")
	}
}

func TestBufferCapturesEntries(t *testing.T) {
	resetState()
	Initialize(Config{Level: "debug", Format: "text"})

	var got []LogEntry
	SetLogCallback(func(e LogEntry) { got = append(got, e) })
	defer SetLogCallback(nil)

	logger := GetLogger("ipping")
	logger.Info("Probe started", "hostname", "example.org", "timeout", 2*time.Second)
	logger.Debug("Probe output closed")

	entries := GetBuffer().ReadAll()
	if len(entries) != 2 {
		t.Fatalf("expected 2 buffered entries, got %d", len(entries))
	}
	first := entries[0]
	if first.Module != "ipping" || first.Level != "info" || first.Message != "Probe started" {
		t.Errorf("unexpected entry: %+v", first)
	}
	if first.Attributes["hostname"] != "example.org" || first.Attributes["timeout"] != "2s" {
		t.Errorf("unexpected attributes: %+v", first.Attributes)
	}
	if entries[1].Seq != first.Seq+1 {
		t.Errorf("sequence numbers not consecutive: %d, %d", first.Seq, entries[1].Seq)
	}
	if len(got) != 2 || got[1].Seq != entries[1].Seq {
		t.Errorf("callback saw %d entries", len(got))
	}
}

func TestRingBufferWrapsAndSince(t *testing.T) {
	rb := NewRingBuffer(3)
	for i := 0; i < 5; i++ {
		rb.Write(LogEntry{Message: string(rune('a' + i))})
	}

	all := rb.ReadAll()
	if len(all) != 3 || rb.Count() != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	if all[0].Message != "c" || all[2].Message != "e" {
		t.Errorf("wrong order: %+v", all)
	}

	since := rb.Since(4)
	if len(since) != 1 || since[0].Message != "e" {
		t.Errorf("Since(4) = %+v", since)
	}
	if got := rb.Since(5); got != nil {
		t.Errorf("Since(5) = %+v, want nil", got)
	}
	if got := rb.Since(0); len(got) != 3 {
		t.Errorf("Since(0) returned %d entries", len(got))
	}
}

func TestFormatLogLine(t *testing.T) {
	ts := time.Date(2025, 1, 9, 10, 30, 0, 0, time.UTC)
	line := FormatLogLine(LogEntry{
		Timestamp:  ts,
		Level:      "warn",
		Module:     "process",
		Message:    "Sending SIGINT to process",
		Attributes: map[string]any{"pid": 42, "b": "x"},
	})
	want := "2025-01-09T10:30:00Z [WARN] [process] Sending SIGINT to process b=x pid=42"
	if line != want {
		t.Errorf("FormatLogLine() = %q, want %q", line, want)
	}
}

func TestFanoutDebugOutput(t *testing.T) {
	var buf bytes.Buffer

	debugHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	infoHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(fanout{debugHandler, infoHandler}).With("module", "test")

	// Should appear once (from debugHandler)
	logger.Debug("debug only message")

	output := buf.String()
	if count := strings.Count(output, "debug only message"); count != 1 {
		t.Errorf("Expected 1 debug message, got %d. Output: %s", count, output)
	}
	if !strings.Contains(output, "module=test") {
		t.Errorf("Expected attrs to reach every handler. Output: %s", output)
	}
}

// brokenHandler accepts every record and fails to write it.
type brokenHandler struct{ slog.Handler }

func (brokenHandler) Handle(context.Context, slog.Record) error {
	return errors.New("sink unavailable")
}

func TestFanoutKeepsWritingAfterFailure(t *testing.T) {
	var buf bytes.Buffer
	text := slog.NewTextHandler(&buf, nil)
	broken := brokenHandler{Handler: slog.NewTextHandler(&bytes.Buffer{}, nil)}

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "probe started", 0)
	err := fanout{broken, text}.Handle(context.Background(), r)
	if err == nil || !strings.Contains(err.Error(), "sink unavailable") {
		t.Errorf("Expected joined handler error, got %v", err)
	}
	if !strings.Contains(buf.String(), "probe started") {
		t.Errorf("Expected record in working handler. Output: %s", buf.String())
	}
}

func TestParseLevelValues(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		isNil bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input)
			if tt.isNil {
				if got != nil {
					t.Errorf("parseLevel(%q) = %v, want nil", tt.input, *got)
				}
				return
			}
			if got == nil {
				t.Errorf("parseLevel(%q) = nil, want %v", tt.input, tt.want)
			} else if *got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, *got, tt.want)
			}
		})
	}
}
