package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/pingnode/internal/dm"
	"github.com/smazurov/pingnode/internal/ipping"
	"github.com/smazurov/pingnode/internal/logging"
	"github.com/smazurov/pingnode/internal/nats"
)

// CreateRemoteCmd creates the remote command, which drives a running
// pingnode over NATS.
func CreateRemoteCmd() *cobra.Command {
	var natsURL string
	var logLevel string

	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Control a running pingnode over NATS",
	}
	cmd.PersistentFlags().StringVar(&natsURL, "nats-url", "nats://127.0.0.1:4222", "NATS server URL")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Logging level (debug, info, warn, error)")

	connect := func() (*nats.Client, error) {
		logging.Initialize(logging.Config{Level: logLevel, Format: "text"})
		client := nats.NewClient(natsURL, "remote", logging.GetLogger("nats"))
		if err := client.Connect(); err != nil {
			return nil, fmt.Errorf("connect to %s: %w", natsURL, err)
		}
		return client, nil
	}

	cmd.AddCommand(createRemoteRunCmd(connect), createRemoteSetCmd(connect), createRemoteWatchCmd(connect))
	return cmd
}

func createRemoteRunCmd(connect func() (*nats.Client, error)) *cobra.Command {
	var (
		count     int
		timeoutMs int
		size      int
		dscp      int
		wait      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run [host]",
		Short: "Start a probe on a running pingnode and wait for the result",
		Long: `Writes the given parameters, executes the run resource and prints the ` +
			`finished probe. Parameters left at zero keep the server's current value.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, wait)
			defer cancel()

			writes := []struct {
				rid   dm.ResourceID
				value any
				set   bool
			}{
				{ipping.ResHostname, firstArg(args), len(args) > 0},
				{ipping.ResRepetitions, count, count != 0},
				{ipping.ResTimeoutMs, timeoutMs, timeoutMs != 0},
				{ipping.ResBlockSize, size, size != 0},
				{ipping.ResDSCP, dscp, dscp >= 0},
			}
			for _, w := range writes {
				if !w.set {
					continue
				}
				p := dm.Path{OID: ipping.ObjectID, IID: ipping.InstanceID, RID: w.rid}
				if err := client.Write(ctx, p, w.value, "remote_cli"); err != nil {
					return fmt.Errorf("write %s: %w", p, err)
				}
			}

			results := make(chan nats.ProbeMessage, 1)
			unwatch, err := client.WatchProbes(func(m nats.ProbeMessage) {
				select {
				case results <- m:
				default:
				}
			})
			if err != nil {
				return err
			}
			defer unwatch()

			run := dm.Path{OID: ipping.ObjectID, IID: ipping.InstanceID, RID: ipping.ResRun}
			if err := client.Execute(ctx, run, "remote_cli"); err != nil {
				return fmt.Errorf("execute %s: %w", run, err)
			}

			select {
			case m := <-results:
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(m); err != nil {
					return err
				}
				if m.State != ipping.StateComplete.String() {
					return fmt.Errorf("probe finished with state %s", m.State)
				}
				return nil
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return fmt.Errorf("no probe result within %s (a probe that fails to start reports only a state change)", wait)
				}
				return ctx.Err()
			}
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 0, "Number of echo requests")
	cmd.Flags().IntVarP(&timeoutMs, "timeout-ms", "W", 0, "Reply timeout in milliseconds")
	cmd.Flags().IntVarP(&size, "size", "s", 0, "Payload size in bytes")
	cmd.Flags().IntVar(&dscp, "dscp", -1, "DSCP code point (0-63), negative keeps the current value")
	cmd.Flags().DurationVar(&wait, "wait", time.Minute, "How long to wait for the result")
	return cmd
}

func createRemoteSetCmd(connect func() (*nats.Client, error)) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "set <resource> <value>",
		Short: "Write one IP Ping resource on a running pingnode",
		Long:  `The resource is given by name (see "pingnode resources") or by numeric id.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, value, err := ResolveWrite(args[0], args[1])
			if err != nil {
				return err
			}

			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), wait)
			defer cancel()

			p := dm.Path{OID: ipping.ObjectID, IID: ipping.InstanceID, RID: def.ID}
			if err := client.Write(ctx, p, value, "remote_cli"); err != nil {
				return fmt.Errorf("write %s: %w", p, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %v\n", p, def.Name, value)
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 5*time.Second, "How long to wait for the reply")
	return cmd
}

// ResolveWrite maps a resource name or id and its textual value to a
// writable IP Ping resource and the typed value to send.
func ResolveWrite(resource, value string) (dm.ResourceDef, any, error) {
	def, ok := ipping.ResourceByName(resource)
	if !ok {
		id, err := strconv.ParseUint(resource, 10, 16)
		if err != nil {
			return dm.ResourceDef{}, nil, fmt.Errorf("unknown resource %q", resource)
		}
		if def, ok = ipping.ResourceByID(dm.ResourceID(id)); !ok {
			return dm.ResourceDef{}, nil, fmt.Errorf("unknown resource %q", resource)
		}
	}
	if !def.Ops.Has(dm.OpWrite) {
		return dm.ResourceDef{}, nil, fmt.Errorf("resource %s is not writable", def.Name)
	}

	switch def.Kind {
	case dm.KindInt:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return dm.ResourceDef{}, nil, fmt.Errorf("resource %s needs an integer: %w", def.Name, err)
		}
		return def, n, nil
	default:
		return def, value, nil
	}
}

func createRemoteWatchCmd(connect func() (*nats.Client, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print resource changes and probe results as they are published",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			unwatchResources, err := client.WatchResources(ipping.ObjectID, func(m nats.ResourceMessage) {
				fmt.Fprintf(out, "%s %s = %v\n", m.Timestamp, m.Path, m.Value)
			})
			if err != nil {
				return err
			}
			defer unwatchResources()

			unwatchProbes, err := client.WatchProbes(func(m nats.ProbeMessage) {
				fmt.Fprintf(out, "%s probe %s %s state=%s success=%d errors=%d avg=%dms\n",
					m.Timestamp, m.SessionID, m.Hostname, m.State, m.SuccessCount, m.ErrorCount, m.AvgRttMs)
			})
			if err != nil {
				return err
			}
			defer unwatchProbes()

			<-ctx.Done()
			return nil
		},
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
