package preflight

import (
	"context"
	"fmt"
	"strings"

	"pulpit/internal/config"
	"pulpit/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results,
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	)
	if usesSpeechToText(cfg) {
		results = append(results, CheckFreeSpace("Work directory space", cfg.Paths.WorkDir, MinWorkDirFreeBytes))
	}

	results = append(results, CheckDatabase(ctx, cfg))
	results = append(results, CheckCacheBackend(ctx, cfg))
	results = append(results, CheckThemeDictionary(cfg))

	for _, status := range CheckSystemDeps(cfg) {
		results = append(results, binaryResult(status))
	}

	// Assistant LLM backends
	if cfg.LLM.Primary.Configured() {
		results = append(results, CheckLLM(ctx, "Primary LLM", cfg.LLM.Primary))
	} else {
		results = append(results, Result{Name: "Primary LLM", Detail: "API key missing (assistant disabled)"})
	}
	if cfg.LLM.Secondary.Configured() && secondaryIsDistinct(cfg) {
		results = append(results, CheckLLM(ctx, "Secondary LLM", cfg.LLM.Secondary))
	}

	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}

func binaryResult(status deps.Status) Result {
	name := status.Name
	if status.Optional {
		name += " (optional)"
	}
	if status.Available {
		return Result{Name: name, Passed: true, Detail: status.Command}
	}
	detail := status.Detail
	if detail == "" {
		detail = fmt.Sprintf("%s not found", status.Command)
	}
	// Missing optional binaries are reported without failing the run.
	return Result{Name: name, Passed: status.Optional, Detail: detail}
}

// secondaryIsDistinct returns true when the secondary backend resolves to a
// different API key or base URL than the primary.
func secondaryIsDistinct(cfg *config.Config) bool {
	primary := cfg.LLM.Primary
	secondary := cfg.LLM.Secondary
	return primary.APIKey != secondary.APIKey || primary.BaseURL != secondary.BaseURL
}

func usesSpeechToText(cfg *config.Config) bool {
	for _, source := range cfg.Acquisition.Sources {
		if strings.EqualFold(strings.TrimSpace(source), "speech_to_text") {
			return true
		}
	}
	return false
}
