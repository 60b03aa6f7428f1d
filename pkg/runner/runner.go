// Package runner drives the external build runner (make) over the
// generated build file. The core never executes anything itself; this is
// the thin shell around it for the build and watch commands.
package runner

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/vsajip/teleport/pkg/content"
	"github.com/vsajip/teleport/pkg/log"
)

// Runner invokes make against one generated build file.
type Runner struct {
	Makefile string
	Dir      string
	Logger   log.Logger

	// Perform runs one build of a target. Defaults to invoking make;
	// overridable for tests.
	Perform func(ctx context.Context, target string) error
}

// Build runs a single build of target. An empty target builds make's
// default (the first, deepest target in the file).
func (r *Runner) Build(ctx context.Context, target string) error {
	perform := r.Perform
	if perform == nil {
		perform = r.execMake
	}
	start := time.Now()
	r.Logger.V(1).Printf("building target=%q makefile=%s", target, r.Makefile)
	if err := perform(ctx, target); err != nil {
		return err
	}
	r.Logger.Printf("build finished in %v", time.Since(start))
	return nil
}

// Watch polls the digest of the watched paths and reruns step on every
// change. The initial step runs immediately. Step failures are logged and
// watching continues; only ctx cancellation ends the loop.
func (r *Runner) Watch(ctx context.Context, interval time.Duration, paths func() []string, step func(ctx context.Context) error) error {
	// Snapshot before the initial build so a change landing mid-build
	// still triggers a rebuild on the next tick.
	last, err := content.DigestPaths(paths())
	if err != nil {
		return err
	}

	if err := step(ctx); err != nil {
		r.Logger.Printf("build failed: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.Logger.Printf("watching for changes")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		digest, err := content.DigestPaths(paths())
		if err != nil {
			r.Logger.Printf("watch digest failed: %v", err)
			continue
		}
		if digest == last {
			continue
		}
		last = digest

		r.Logger.Printf("change detected, rebuilding")
		if err := step(ctx); err != nil {
			r.Logger.Printf("build failed: %v", err)
		}
	}
}

func (r *Runner) execMake(ctx context.Context, target string) error {
	args := []string{"-f", r.Makefile}
	if target != "" {
		args = append(args, target)
	}
	cmd := exec.CommandContext(ctx, "make", args...)
	cmd.Dir = r.Dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
