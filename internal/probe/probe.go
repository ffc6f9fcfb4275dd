// Package probe wraps the standard OS utilities spec section 6 names as
// "external probes invoked": /usr/bin/file, /bin/netstat (via sudo),
// /bin/ps aux, /usr/sbin/service, and strace-wrapped service control.
package probe

import (
	"bufio"
	"context"
	"os/exec"
	"strings"
	"time"
)

var (
	FileBin     = "/usr/bin/file"
	NetstatBin  = "/bin/netstat"
	PsBin       = "/bin/ps"
	ServiceBin  = "/usr/sbin/service"
	StraceBin   = "strace"
	SudoBin     = "/usr/bin/sudo"
)

// ClassifyFile runs file(1) against path and returns its raw textual
// output; the caller maps it to a file type (internal/broker's
// classifyOutput applies ELF > shell script > text > OTHER, spec section
// 4.5).
func ClassifyFile(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, FileBin, path)
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// NetstatListeners runs netstat -anp via sudo and returns its raw
// output for internal/analyzer's networklistener parser (spec section
// 4.5, section 6).
func NetstatListeners(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, SudoBin, NetstatBin, "-anp")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// PsAux runs ps aux for process-to-path resolution feeding the network
// listener analyzer (spec section 4.5).
func PsAux(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, PsBin, "aux")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ServiceStatusAll returns the set of services service --status-all
// knows about (spec section 4.4's "set of services present").
func ServiceStatusAll(ctx context.Context) (map[string]bool, error) {
	cmd := exec.CommandContext(ctx, ServiceBin, "--status-all")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, err
	}

	services := make(map[string]bool)
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.LastIndex(line, "]")
		if idx < 0 || idx+1 >= len(line) {
			continue
		}
		name := strings.TrimSpace(line[idx+1:])
		if name != "" {
			services[name] = true
		}
	}

	return services, nil
}

// ServiceControl runs `service <name> {start|stop}` wrapped in strace,
// under timeout, persisting the trace output and returning its path
// (spec section 4.4).
func ServiceControl(ctx context.Context, name, action string) (tracePath string, err error) {
	return serviceControlWithTimeout(ctx, name, action, 120*time.Second, "")
}

func serviceControlWithTimeout(ctx context.Context, name, action string, timeout time.Duration, traceDir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if traceDir == "" {
		traceDir = "/tmp"
	}
	tracePath := traceDir + "/" + action + "-" + name + ".trace"

	cmd := exec.CommandContext(ctx, StraceBin, "-o", tracePath, "-f", ServiceBin, name, action)
	if err := cmd.Run(); err != nil {
		return tracePath, err
	}

	return tracePath, nil
}

// RunBinary launches bin under /usr/bin/sudo with stdout/stderr
// discarded, bounded by timeout (spec section 4.4, section 6).
func RunBinary(ctx context.Context, bin string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, SudoBin, bin)
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run()
}
