package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/smazurov/pingnode/internal/dm"
	"github.com/smazurov/pingnode/internal/ipping"
	"github.com/smazurov/pingnode/internal/process"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// cannedHost replies to every spawn with fixed output.
type cannedHost struct {
	output string
	args   []string
}

func (h *cannedHost) Spawn(args []string) (io.ReadCloser, error) {
	h.args = args
	return io.NopCloser(strings.NewReader(h.output)), nil
}

// stalledHost returns a stream that never produces output.
type stalledHost struct {
	reader *io.PipeReader
	writer *io.PipeWriter
}

func newStalledHost() *stalledHost {
	r, w := io.Pipe()
	return &stalledHost{reader: r, writer: w}
}

func (h *stalledHost) Spawn(_ []string) (io.ReadCloser, error) {
	return h.reader, nil
}

func probeValues(host string) map[dm.ResourceID]dm.Value {
	return map[dm.ResourceID]dm.Value{
		ipping.ResHostname:    dm.String(host),
		ipping.ResRepetitions: dm.Int(4),
		ipping.ResTimeoutMs:   dm.Int(1000),
		ipping.ResBlockSize:   dm.Int(56),
		ipping.ResDSCP:        dm.Int(46),
	}
}

const completeOutput = "PING example.org (192.0.2.1) 56(84) bytes of data.\n" +
	"\n" +
	"--- example.org ping statistics ---\n" +
	"4 packets transmitted, 4 received, 0% packet loss, time 3004ms\n" +
	"rtt min/avg/max/mdev = 10.1/12.3/15.9/2.0 ms\n"

func TestRunProbeComplete(t *testing.T) {
	host := &cannedHost{output: completeOutput}

	out, err := RunProbe(context.Background(), host, probeValues("example.org"))
	require.NoError(t, err)

	assert.Equal(t, []string{"-q", "-c", "4", "-Q", "0xb8", "-W", "1", "-s", "56", "example.org"}, host.args)
	assert.NotEmpty(t, out.SessionID)
	assert.Equal(t, "example.org", out.Configuration.Hostname)
	assert.Equal(t, ipping.StateComplete, out.Statistics.State)
	assert.Equal(t, ipping.Counts{Success: 4, Error: 0}, out.Statistics.Counts)
	assert.Equal(t, ipping.RTT{MinMs: 10, AvgMs: 12, MaxMs: 15, StdevUs: 2000}, out.Statistics.RTT)
}

func TestRunProbeUnknownHost(t *testing.T) {
	host := &cannedHost{output: "ping: nowhere.invalid: Name or service not known\n"}

	out, err := RunProbe(context.Background(), host, probeValues("nowhere.invalid"))
	require.NoError(t, err)
	assert.Equal(t, ipping.StateErrorHostName, out.Statistics.State)
}

func TestRunProbeInvalidConfiguration(t *testing.T) {
	values := probeValues("example.org")
	values[ipping.ResDSCP] = dm.Int(64)

	_, err := RunProbe(context.Background(), &cannedHost{}, values)
	require.Error(t, err)
	assert.ErrorIs(t, err, dm.ErrBadRequest)
}

func TestRunProbeIncompleteConfiguration(t *testing.T) {
	values := map[dm.ResourceID]dm.Value{ipping.ResHostname: dm.String("example.org")}
	host := &cannedHost{}

	out, err := RunProbe(context.Background(), host, values)
	require.NoError(t, err)
	assert.Equal(t, ipping.StateErrorOther, out.Statistics.State)
	assert.Empty(t, out.SessionID)
	assert.Nil(t, host.args, "nothing should be spawned")
}

func TestRunProbeCancelled(t *testing.T) {
	host := newStalledHost()
	defer host.writer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	out, err := RunProbe(ctx, host, probeValues("example.org"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ipping.StateErrorInternal, out.Statistics.State)
	assert.NotEmpty(t, out.SessionID)
}

func TestRunProbeWithProcess(t *testing.T) {
	host, err := process.NewHost("sh testdata/fakeping.sh", nil)
	require.NoError(t, err)

	out, err := RunProbe(context.Background(), host, probeValues("example.org"))
	require.NoError(t, err)
	assert.Equal(t, ipping.StateComplete, out.Statistics.State)
	assert.Equal(t, ipping.Counts{Success: 3, Error: 1}, out.Statistics.Counts)

	out, err = RunProbe(context.Background(), host, probeValues("nowhere.invalid"))
	require.NoError(t, err)
	assert.Equal(t, ipping.StateErrorHostName, out.Statistics.State)
}

func TestWriteProbeOutput(t *testing.T) {
	out := ProbeOutput{
		SessionID: "session-1",
		Configuration: ipping.Configuration{
			Hostname: "example.org", Repetitions: 4, TimeoutMs: 1000, BlockSize: 56,
		},
		Statistics: ipping.Statistics{
			State:  ipping.StateComplete,
			Counts: ipping.Counts{Success: 4},
			RTT:    ipping.RTT{AvgMs: 12, MinMs: 10, MaxMs: 15, StdevUs: 2000},
		},
		DurationMs: 3004,
	}

	var text bytes.Buffer
	require.NoError(t, WriteProbeOutput(&text, out, false))
	assert.Contains(t, text.String(), "state          complete (2)")
	assert.Contains(t, text.String(), "rtt_stdev_us   2000")
	assert.Contains(t, text.String(), "duration       3.004s")

	var js bytes.Buffer
	require.NoError(t, WriteProbeOutput(&js, out, true))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	stats := decoded["statistics"].(map[string]any)
	assert.Equal(t, "complete", stats["state"])
	assert.Equal(t, float64(4), stats["success_count"])
	assert.Equal(t, float64(12), stats["avg_rtt_ms"])
}

func TestWriteResources(t *testing.T) {
	var text bytes.Buffer
	require.NoError(t, WriteResources(&text, ipping.Resources(), false))
	assert.Contains(t, text.String(), "Object 12359")
	assert.Contains(t, text.String(), "run")

	var js bytes.Buffer
	require.NoError(t, WriteResources(&js, ipping.Resources(), true))
	var decoded struct {
		ObjectID  int `json:"object_id"`
		Resources []struct {
			ID         int    `json:"id"`
			Name       string `json:"name"`
			Operations string `json:"operations"`
		} `json:"resources"`
	}
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, 12359, decoded.ObjectID)
	require.Len(t, decoded.Resources, 13)
	assert.Equal(t, "run", decoded.Resources[5].Name)
	assert.Equal(t, "E", decoded.Resources[5].Operations)
	assert.Equal(t, "RW", decoded.Resources[0].Operations)
}

func TestProbeCmdFlags(t *testing.T) {
	cmd := CreateProbeCmd()
	for _, name := range []string{"count", "timeout-ms", "size", "dscp", "binary", "json"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag %s", name)
	}
	assert.Error(t, cmd.Args(cmd, nil))
	assert.NoError(t, cmd.Args(cmd, []string{"example.org"}))
}
