package api

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/pingnode/internal/events"
	"github.com/smazurov/pingnode/internal/logging"
)

// readSSE collects "event:" and "data:" lines from an SSE response.
func readSSE(resp *http.Response) <-chan string {
	lines := make(chan string, 32)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "data:") || strings.HasPrefix(line, "event:") {
				lines <- line
			}
		}
	}()
	return lines
}

func waitForLine(t *testing.T, lines <-chan string, contains string) string {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatalf("Stream closed before %q arrived", contains)
			}
			if strings.Contains(line, contains) {
				return line
			}
		case <-timeout:
			t.Fatalf("Timeout waiting for %q", contains)
		}
	}
}

func TestSSEConnectionAndResourceChanges(t *testing.T) {
	env := newTestEnv(t, &Options{AuthUsername: "test", AuthPassword: "test"})

	credentials := base64.StdEncoding.EncodeToString([]byte("test:test"))
	resp, err := http.Get(fmt.Sprintf("%s/api/events?auth=%s", env.ts.URL, credentials))
	if err != nil {
		t.Fatalf("Failed to connect to SSE: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("Expected SSE content type, got %s", resp.Header.Get("Content-Type"))
	}

	lines := readSSE(resp)
	waitForLine(t, lines, "event: connected")
	waitForLine(t, lines, "SSE connection established")

	// The subscription is in place once the connected message went out.
	// Running without a configuration fails immediately and changes the state.
	req, _ := http.NewRequest(http.MethodPost, env.ts.URL+"/api/objects/12359/0/5/execute", nil)
	req.SetBasicAuth("test", "test")
	execResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	execResp.Body.Close()
	if execResp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", execResp.StatusCode)
	}

	waitForLine(t, lines, "event: resource-changed")
	data := waitForLine(t, lines, `"path":"/12359/0/6"`)
	if !strings.Contains(data, `"resource_id":6`) {
		t.Errorf("Unexpected resource change payload: %s", data)
	}

	env.bus.Publish(events.ProbeFinishedEvent{
		SessionID: "session-1",
		Hostname:  "example.org",
		State:     "complete",
	})
	waitForLine(t, lines, "event: probe-finished")
	waitForLine(t, lines, `"session_id":"session-1"`)
}

func TestSSERequiresAuth(t *testing.T) {
	env := newTestEnv(t, &Options{AuthUsername: "test", AuthPassword: "test"})

	resp, err := http.Get(env.ts.URL + "/api/events")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", resp.StatusCode)
	}
}

func TestLogHistoryAndStream(t *testing.T) {
	env := newTestEnv(t, nil)

	logger := logging.GetLogger("api")
	logger.Info("history marker for log test")

	resp, body := env.do(t, http.MethodGet, "/api/logs", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "history marker for log test") {
		t.Fatalf("Expected marker in log history, got %s", body)
	}

	latest := logging.GetBuffer().ReadAll()
	lastSeq := latest[len(latest)-1].Seq
	resp, body = env.do(t, http.MethodGet, fmt.Sprintf("/api/logs?since=%d", lastSeq), "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if strings.Contains(string(body), "history marker for log test") {
		t.Errorf("Expected since filter to drop old entries, got %s", body)
	}

	logging.SetLogCallback(func(entry logging.LogEntry) {
		env.bus.Publish(events.LogEntryEvent{
			Seq:       entry.Seq,
			Timestamp: entry.Timestamp.Format(time.RFC3339Nano),
			Level:     entry.Level,
			Module:    entry.Module,
			Message:   entry.Message,
		})
	})
	t.Cleanup(func() { logging.SetLogCallback(nil) })

	stream, err := http.Get(env.ts.URL + "/api/logs/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Body.Close()

	lines := readSSE(stream)
	waitForLine(t, lines, "history marker for log test")

	// History replay ends with the newest entry, so anything logged now is live.
	go func() {
		for i := 0; i < 20; i++ {
			logger.Info("live marker for log test")
			time.Sleep(20 * time.Millisecond)
		}
	}()
	waitForLine(t, lines, "live marker for log test")
}
