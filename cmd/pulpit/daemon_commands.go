package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pulpit/internal/api"
	"pulpit/internal/daemonctl"
	"pulpit/internal/daemonrun"
	"pulpit/internal/store"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run or inspect the pulpit daemon",
	}
	daemonCmd.AddCommand(newDaemonRunCommand(ctx))
	daemonCmd.AddCommand(newDaemonStartCommand(ctx))
	daemonCmd.AddCommand(newDaemonStopCommand(ctx))
	daemonCmd.AddCommand(newDaemonStatusCommand(ctx))
	return daemonCmd
}

func newDaemonStartCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}
			executable, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			result, err := daemonctl.EnsureStarted(cmd.Context(), ctx.apiClient(), executable, daemonctl.LaunchOptions{
				ConfigPath: ctx.configPath,
				LogLevel:   logLevel,
			}, wait)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if result.AlreadyRunning {
				fmt.Fprintf(out, "Daemon already running (pid %d)\n", result.Status.PID)
				return nil
			}
			fmt.Fprintf(out, "Daemon started (pid %d) at %s\n", result.Status.PID, ctx.apiAddress())
			return nil
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	cmd.Flags().DurationVar(&wait, "wait", 15*time.Second, "How long to wait for the API to answer")
	return cmd
}

func newDaemonStopCommand(ctx *commandContext) *cobra.Command {
	var grace time.Duration
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a background daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			result, err := daemonctl.Stop(cmd.Context(), daemonctl.PIDPath(cfg), grace)
			out := cmd.OutOrStdout()
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(out, "Daemon (pid %d) did not exit within %s and was killed\n", result.PID, grace)
				return nil
			}
			fmt.Fprintf(out, "Daemon (pid %d) stopped\n", result.PID)
			return nil
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 20*time.Second, "How long to wait for a clean shutdown before killing")
	return cmd
}

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&development, "development", false, "Include source locations in log records")
	return cmd
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency and queue status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, status := ctx.reachableClient(cmd.Context())
			if client == nil {
				offline, err := offlineStatus(cmd, ctx)
				if err != nil {
					return err
				}
				status = &offline
			}
			if asJSON {
				return writeJSON(cmd, status)
			}
			renderDaemonStatus(cmd.OutOrStdout(), *status, ctx.apiAddress(), shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

// offlineStatus reports queue counts straight from the catalog when no
// daemon answers.
func offlineStatus(cmd *cobra.Command, ctx *commandContext) (api.DaemonStatus, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return api.DaemonStatus{}, err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return api.DaemonStatus{}, fmt.Errorf("open catalog: %w", err)
	}
	defer st.Close()
	counts, err := st.CountByStatus(cmd.Context())
	if err != nil {
		return api.DaemonStatus{}, err
	}
	return api.DaemonStatus{
		Running:      false,
		DatabasePath: st.Path(),
		QueueCounts:  api.QueueCounts(counts),
		CacheBackend: cfg.Cache.Backend,
	}, nil
}

func renderDaemonStatus(out io.Writer, status api.DaemonStatus, address string, colorize bool) {
	printSection(out, "Daemon", colorize)
	if status.Running {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", status.PID), colorize))
		fmt.Fprintln(out, renderStatusLine("API", statusInfo, status.APIBind, colorize))
		fmt.Fprintln(out, renderStatusLine("WebSocket clients", statusInfo, strconv.Itoa(status.Clients), colorize))
		wf := status.Workflow
		fmt.Fprintln(out, renderStatusLine("Workers", statusInfo,
			fmt.Sprintf("%d/%d active, %d processed, %d failed", wf.Active, wf.Workers, wf.Processed, wf.Failed), colorize))
		if strings.TrimSpace(wf.LastError) != "" {
			fmt.Fprintln(out, renderStatusLine("Last error", statusWarn, wf.LastError, colorize))
		}
	} else {
		detail := "not running"
		if address != "" {
			detail = fmt.Sprintf("not running (no answer at %s)", address)
		}
		fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, detail, colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
	fmt.Fprintln(out, renderStatusLine("Cache backend", statusInfo, status.CacheBackend, colorize))
	fmt.Fprintln(out)

	if len(status.Dependencies) > 0 {
		printSection(out, "Dependencies", colorize)
		for _, line := range dependencyLines(status.Dependencies, colorize) {
			fmt.Fprintln(out, line)
		}
		fmt.Fprintln(out)
	}

	printSection(out, "Queue", colorize)
	rows := buildQueueStatusRows(status.QueueCounts)
	if len(rows) == 0 {
		fmt.Fprintln(out, "Catalog is empty")
		return
	}
	writeTable(out, []string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
}

func dependencyLines(deps []api.DependencyStatus, colorize bool) []string {
	lines := make([]string, 0, len(deps))
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
	}
	return lines
}

// buildQueueStatusRows lists non-zero counts in catalog status order.
func buildQueueStatusRows(counts map[string]int) [][]string {
	rows := make([][]string, 0, len(counts))
	for _, status := range store.Statuses {
		n := counts[string(status)]
		if n == 0 {
			continue
		}
		rows = append(rows, []string{statusLabel(string(status)), strconv.Itoa(n)})
	}
	return rows
}

func statusLabel(status string) string {
	label := strings.ReplaceAll(status, "_", " ")
	if label == "" {
		return label
	}
	return strings.ToUpper(label[:1]) + label[1:]
}
