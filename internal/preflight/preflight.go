package preflight

import (
	"context"

	"scheinicam/internal/config"
	"scheinicam/internal/gateway"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name" yaml:"name"`
	Passed bool   `json:"passed" yaml:"passed"`
	Detail string `json:"detail" yaml:"detail"`
}

// StatusProber is the backend call used to check connectivity.
type StatusProber interface {
	Status(ctx context.Context) (gateway.RecordingStatus, error)
}

// RunAll executes every check for cfg. A nil probe skips the backend check.
func RunAll(ctx context.Context, cfg *config.Config, probe StatusProber) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Runtime directory", cfg.Paths.RuntimeDir),
	}
	if probe != nil {
		results = append(results, CheckBackend(ctx, cfg.Server.BaseURL, probe))
	}
	results = append(results, CheckWatcherLock(cfg.WatchLockPath()))
	results = append(results, CheckNotifications(ctx, cfg))
	return results
}

// Failed counts the results that did not pass.
func Failed(results []Result) int {
	failed := 0
	for _, result := range results {
		if !result.Passed {
			failed++
		}
	}
	return failed
}
