package preflight

import (
	"context"

	"golang.org/x/sync/errgroup"

	"swinglab/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all preflight checks for the given config. Checks run
// concurrently; the analysis service probe can take several seconds offline
// and must not delay the directory checks.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	checks := []func() Result{
		func() Result { return CheckDirectoryAccess("Spool directory", cfg.Paths.SpoolDir) },
		func() Result { return CheckDirectoryAccess("Log directory", cfg.Paths.LogDir) },
		func() Result { return CheckAnalysisService(ctx, cfg) },
	}

	results := make([]Result, len(checks))
	var group errgroup.Group
	for i, check := range checks {
		i, check := i, check
		group.Go(func() error {
			results[i] = check()
			return nil
		})
	}
	_ = group.Wait()
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
