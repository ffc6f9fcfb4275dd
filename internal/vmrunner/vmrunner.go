// Package vmrunner contracts the hypervisor collaborator named in spec
// section 1 as out of scope: start(cmd, timeout) -> success/fail, plus a
// writable shared directory visible inside the VM. The Dispatcher uses
// this to launch worker VMs; it never inspects what happens inside one.
package vmrunner

import (
	"context"
	"os/exec"
	"time"
)

// Options configures one VM worker launch (spec section 4.1; the
// Snapshot field covers the supplemented --snapshot behavior described
// in SPEC_FULL.md section 4).
type Options struct {
	Image    string
	MemoryMB int
	Timeout  time.Duration
	Snapshot bool
	Command  []string
}

// Runner is the hypervisor contract: Start blocks until the VM worker
// process exits or the timeout fires, returning whether it succeeded.
type Runner interface {
	Start(ctx context.Context, opts Options) error
}

// ProcessRunner launches the VM command as a plain subprocess -- the
// concrete detail of which hypervisor CLI assembles Options.Command is
// left to the caller building Options (qemu, firecracker, etc.); this
// type only owns the timeout/success contract (spec section 1).
type ProcessRunner struct{}

func (ProcessRunner) Start(ctx context.Context, opts Options) error {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	if len(opts.Command) == 0 {
		return nil
	}

	cmd := exec.CommandContext(ctx, opts.Command[0], opts.Command[1:]...)
	return cmd.Run()
}
