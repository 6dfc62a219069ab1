package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"pulpit/internal/cache"
	"pulpit/internal/config"
	"pulpit/internal/deps"
	"pulpit/internal/services/llm"
	"pulpit/internal/store"
	"pulpit/internal/themes"
)

// MinWorkDirFreeBytes is the free space speech-to-text needs for one
// downloaded audio track and its WAV conversion.
const MinWorkDirFreeBytes = 2 << 30

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, backend config.LLMBackend) Result {
	if !backend.Configured() {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		Name:    backend.Name,
		APIKey:  backend.APIKey,
		BaseURL: backend.BaseURL,
		Model:   backend.Model,
		Referer: backend.Referer,
		Title:   backend.Title,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least
// minBytes available to unprivileged users.
func CheckFreeSpace(name, path string, minBytes uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%s (%s free)", path, formatBytes(free))
	if free < minBytes {
		return Result{Name: name, Detail: detail + fmt.Sprintf(", need %s", formatBytes(minBytes))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckDatabase opens the catalog and pings it.
func CheckDatabase(ctx context.Context, cfg *config.Config) Result {
	const name = "Catalog database"
	st, err := store.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer st.Close()
	if err := st.Ping(ctx); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	counts, err := st.CountByStatus(ctx)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d videos)", st.Path(), total)}
}

// CheckCacheBackend verifies the configured response cache backend.
// Only the postgres backend involves a remote connection.
func CheckCacheBackend(ctx context.Context, cfg *config.Config) Result {
	name := "Response cache (" + cfg.Cache.Backend + ")"
	if cfg.Cache.Backend != "postgres" {
		return Result{Name: name, Passed: true, Detail: "local"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pg, err := cache.OpenPostgres(checkCtx, cfg.Cache.PostgresDSN, 1)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer pg.Close()
	stats, err := pg.Stats(checkCtx, time.Now())
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("reachable (%d entries)", stats.Entries)}
}

// CheckThemeDictionary loads and validates the theme dictionary.
func CheckThemeDictionary(cfg *config.Config) Result {
	const name = "Theme dictionary"
	dict, err := themes.LoadDictionary(cfg.Themes.DictionaryPath)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	source := cfg.Themes.DictionaryPath
	if source == "" {
		source = "embedded"
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d themes)", source, len(dict.Names()))}
}

// CheckSystemDeps evaluates the binaries the configured sources need.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	return err.Error()
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
