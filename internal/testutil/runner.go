// Package testutil holds fakes shared by the package tests.
package testutil

import (
	"context"
	"sync"

	"fireslurm/internal/executor"
)

// Runner is a scripted executor.Runner. Calls are recorded in order; the
// optional Handle hook decides the outcome of each call.
type Runner struct {
	Handle func(cmd executor.Command) (executor.Result, error)

	mu    sync.Mutex
	calls []executor.Command
}

// Run records cmd and returns whatever Handle returns (success by default).
func (r *Runner) Run(ctx context.Context, cmd executor.Command) (executor.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	r.mu.Unlock()

	if r.Handle == nil {
		return executor.Result{}, nil
	}
	return r.Handle(cmd)
}

// Attach records cmd like Run and reports Handle's error.
func (r *Runner) Attach(ctx context.Context, cmd executor.Command) error {
	_, err := r.Run(ctx, cmd)
	return err
}

// Calls returns the commands seen so far.
func (r *Runner) Calls() []executor.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]executor.Command, len(r.calls))
	copy(out, r.calls)
	return out
}

// Names returns the argv strings of the recorded calls.
func (r *Runner) Names() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}
