package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"pulpit/internal/api"
	"pulpit/internal/config"
)

// PIDFileName is written under paths.log_dir while a daemon runs.
const PIDFileName = "pulpitd.pid"

const pollInterval = 200 * time.Millisecond

// ErrDaemonNotRunning indicates no daemon answers and no live pid is recorded.
var ErrDaemonNotRunning = errors.New("daemon not running")

// Prober reports daemon status; satisfied by *api.Client.
type Prober interface {
	Status(ctx context.Context) (api.DaemonStatus, error)
}

// PIDPath returns the pid file location for cfg.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, PIDFileName)
}

// WritePIDFile records the current process id at path.
func WritePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

// ReadPID returns the pid stored at path, or 0 when the file is absent.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read daemon pid file %q: %w", path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid daemon pid file %q", path)
	}
	return pid, nil
}

// LaunchOptions controls how the detached daemon is started.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

// Launch starts `<executable> daemon run` in its own session and returns
// without waiting for it.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}
	args := []string{"daemon", "run"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForReady polls the prober until it answers or timeout elapses.
func WaitForReady(ctx context.Context, prober Prober, timeout time.Duration) (api.DaemonStatus, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		probeCtx, cancel := context.WithTimeout(ctx, time.Second)
		status, err := prober.Status(probeCtx)
		cancel()
		if err == nil {
			return status, nil
		}
		lastErr = err
		if time.Now().After(deadline) {
			return api.DaemonStatus{}, fmt.Errorf("daemon failed to start: %w", lastErr)
		}
		select {
		case <-ctx.Done():
			return api.DaemonStatus{}, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// StartResult captures daemon start orchestration state.
type StartResult struct {
	AlreadyRunning bool
	Status         api.DaemonStatus
}

// EnsureStarted launches the daemon unless the prober already answers, then
// waits for it to become ready.
func EnsureStarted(ctx context.Context, prober Prober, executablePath string, opts LaunchOptions, timeout time.Duration) (StartResult, error) {
	probeCtx, cancel := context.WithTimeout(ctx, time.Second)
	status, err := prober.Status(probeCtx)
	cancel()
	if err == nil {
		return StartResult{AlreadyRunning: true, Status: status}, nil
	}
	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	status, err = WaitForReady(ctx, prober, timeout)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{Status: status}, nil
}

// StopResult captures daemon stop outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// Stop sends SIGTERM to the daemon recorded in pidPath and waits up to
// gracePeriod for it to exit, then sends SIGKILL and removes the pid file.
func Stop(ctx context.Context, pidPath string, gracePeriod time.Duration) (StopResult, error) {
	pid, err := ReadPID(pidPath)
	if err != nil {
		return StopResult{}, err
	}
	if pid == 0 || !processAlive(pid) {
		_ = os.Remove(pidPath)
		return StopResult{}, ErrDaemonNotRunning
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}

	result := StopResult{PID: pid}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return result, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	if waitForExit(ctx, pid, gracePeriod) {
		return result, nil
	}

	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	result.ForcedKill = true
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	return result, nil
}

func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

func waitForExit(ctx context.Context, pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(pollInterval):
		}
	}
	return !processAlive(pid)
}
