package preflight

import (
	"context"

	"audiovault/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	// Fatal marks checks the daemon cannot run without.
	Fatal  bool
	Detail string
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		fatal(CheckDirectoryAccess("Audio directory", cfg.AudioDir())),
		fatal(CheckDirectoryAccess("Cover directory", cfg.CoverDir())),
		CheckFreeSpace("Storage free space", cfg.Paths.StorageRoot, uint64(max(cfg.Upload.MaxBytes, 0))),
	}
	results = append(results, CheckIdentityFromConfig(ctx, cfg))
	return results
}

// FirstFatal returns the first failed check marked fatal.
func FirstFatal(results []Result) (Result, bool) {
	for _, r := range results {
		if r.Fatal && !r.Passed {
			return r, true
		}
	}
	return Result{}, false
}

func fatal(r Result) Result {
	r.Fatal = true
	return r
}
