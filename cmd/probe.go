package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/smazurov/pingnode/internal/dm"
	"github.com/smazurov/pingnode/internal/iosched"
	"github.com/smazurov/pingnode/internal/ipping"
	"github.com/smazurov/pingnode/internal/logging"
	"github.com/smazurov/pingnode/internal/process"
)

// Exit codes of the probe command.
const (
	exitComplete = 0
	exitFailed   = 1
	exitUsage    = 2
)

// ProbeOutput is the JSON form of a probe result.
type ProbeOutput struct {
	SessionID     string               `json:"session_id,omitempty"`
	Configuration ipping.Configuration `json:"configuration"`
	Statistics    ipping.Statistics    `json:"statistics"`
	DurationMs    int64                `json:"duration_ms"`
}

// CreateProbeCmd creates the probe command.
func CreateProbeCmd() *cobra.Command {
	var (
		count     int
		timeoutMs int
		size      int
		dscp      int
		binary    string
		jsonOut   bool
		logLevel  string
	)

	cmd := &cobra.Command{
		Use:   "probe <host>",
		Short: "Run a single ping probe",
		Long: `Runs one probe against host using the same object the server exposes, ` +
			`prints the resulting resources and exits 0 only when the probe completed.`,
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			logging.Initialize(logging.Config{Level: logLevel, Format: "text"})
			logger := logging.GetLogger("main")

			host, err := process.NewHost(binary, logging.GetLogger("process"))
			if err != nil {
				logger.Error("Invalid ping binary", "binary", binary, "error", err)
				os.Exit(exitUsage)
			}

			values := map[dm.ResourceID]dm.Value{
				ipping.ResHostname:    dm.String(args[0]),
				ipping.ResRepetitions: dm.Int(int64(count)),
				ipping.ResTimeoutMs:   dm.Int(int64(timeoutMs)),
				ipping.ResBlockSize:   dm.Int(int64(size)),
				ipping.ResDSCP:        dm.Int(int64(dscp)),
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out, err := RunProbe(ctx, host, values)
			if errors.Is(err, dm.ErrBadRequest) {
				fmt.Fprintln(os.Stderr, "pingnode:", err)
				os.Exit(exitUsage)
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Probe failed", "error", err)
				os.Exit(exitFailed)
			}

			if writeErr := WriteProbeOutput(os.Stdout, out, jsonOut); writeErr != nil {
				logger.Error("Failed to write result", "error", writeErr)
				os.Exit(exitFailed)
			}
			if out.Statistics.State != ipping.StateComplete {
				os.Exit(exitFailed)
			}
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 4, "Number of echo requests")
	cmd.Flags().IntVarP(&timeoutMs, "timeout-ms", "W", 1000, "Reply timeout in milliseconds")
	cmd.Flags().IntVarP(&size, "size", "s", 56, "Payload size in bytes")
	cmd.Flags().IntVar(&dscp, "dscp", 0, "DSCP code point (0-63)")
	cmd.Flags().StringVar(&binary, "binary", "ping", "Ping command, may include extra arguments")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the result as JSON")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "Logging level (debug, info, warn, error)")

	return cmd
}

// RunProbe configures a private IP Ping object with values, runs one probe
// and waits for it to finish. Cancelling ctx stops the probe; the partial
// result is still returned together with the context error.
func RunProbe(ctx context.Context, host ipping.ProcessHost, values map[dm.ResourceID]dm.Value) (ProbeOutput, error) {
	sched := iosched.New(logging.GetLogger("iosched"))
	done := make(chan ipping.ProbeResult, 1)
	obj := ipping.New(host, sched, nil, ipping.WithFinishHandler(func(r ipping.ProbeResult) {
		done <- r
	}))

	registry := dm.NewRegistry(logging.GetLogger("main"))
	if err := registry.Register(obj); err != nil {
		return ProbeOutput{}, err
	}
	if err := registry.WriteInstance(ipping.ObjectID, ipping.InstanceID, values); err != nil {
		return ProbeOutput{}, fmt.Errorf("invalid probe configuration: %w", err)
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		if err := sched.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	out := ProbeOutput{Configuration: obj.Configuration()}
	g.Go(func() error {
		defer stop()
		started := time.Now()

		run := dm.Path{OID: ipping.ObjectID, IID: ipping.InstanceID, RID: ipping.ResRun}
		if err := registry.Execute(run); err != nil {
			return err
		}

		// A probe that never started or already finished has settled its state.
		// onFinish runs under the object lock, so a finished session has
		// delivered its result by the time the state is visible.
		if st := obj.Statistics(); st.State != ipping.StateInProgress {
			select {
			case r := <-done:
				out.apply(r)
			default:
				out.Statistics = st
				out.DurationMs = time.Since(started).Milliseconds()
			}
			return nil
		}

		select {
		case r := <-done:
			out.apply(r)
			return nil
		case <-gctx.Done():
			obj.Release()
			select {
			case r := <-done:
				out.apply(r)
			default:
				out.Statistics = obj.Statistics()
			}
			return ctx.Err()
		}
	})

	err := g.Wait()
	sched.Wait()
	return out, err
}

func (o *ProbeOutput) apply(r ipping.ProbeResult) {
	o.SessionID = r.SessionID
	o.Statistics = r.Stats
	o.DurationMs = r.Duration.Milliseconds()
}

// WriteProbeOutput prints the probe result as a resource table or JSON.
func WriteProbeOutput(w io.Writer, out ProbeOutput, jsonOut bool) error {
	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "hostname\t%s\n", out.Configuration.Hostname)
	fmt.Fprintf(tw, "repetitions\t%d\n", out.Configuration.Repetitions)
	fmt.Fprintf(tw, "timeout_ms\t%d\n", out.Configuration.TimeoutMs)
	fmt.Fprintf(tw, "block_size\t%d\n", out.Configuration.BlockSize)
	fmt.Fprintf(tw, "dscp\t%d\n", out.Configuration.DSCP)
	fmt.Fprintf(tw, "state\t%s (%d)\n", out.Statistics.State, out.Statistics.State)
	fmt.Fprintf(tw, "success_count\t%d\n", out.Statistics.Success)
	fmt.Fprintf(tw, "error_count\t%d\n", out.Statistics.Error)
	fmt.Fprintf(tw, "avg_rtt_ms\t%d\n", out.Statistics.AvgMs)
	fmt.Fprintf(tw, "min_rtt_ms\t%d\n", out.Statistics.MinMs)
	fmt.Fprintf(tw, "max_rtt_ms\t%d\n", out.Statistics.MaxMs)
	fmt.Fprintf(tw, "rtt_stdev_us\t%d\n", out.Statistics.StdevUs)
	fmt.Fprintf(tw, "duration\t%s\n", time.Duration(out.DurationMs)*time.Millisecond)
	return tw.Flush()
}
