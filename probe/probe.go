/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package probe measures system clock skew through platform time-sync
// tools (chronyd, ntpd, W32Time) and issues their corrective commands.
// All external tools are driven through the Runner capability with a
// bounded timeout, and every failure maps to one of the typed errors
// below so callers can degrade instead of terminating.
package probe

import (
	"bytes"
	"context"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/driftwatch/driftwatch/drift"
)

// Probe failure taxonomy. All of these are recoverable: a cycle that hits
// one skips the affected step and the loop carries on.
var (
	// ErrUnavailable means no supported time-sync tool is present on the host
	ErrUnavailable = errors.New("no supported time-sync tool found")
	// ErrParse means the tool ran but its output didn't match the expected shape
	ErrParse = errors.New("unexpected tool output")
	// ErrTimeout means the tool didn't finish within the bounded timeout
	ErrTimeout = errors.New("command timed out")
	// ErrExec means the tool ran and failed (non-zero exit or couldn't start)
	ErrExec = errors.New("command failed")
)

// Output is captured stdout/stderr of one external command
type Output struct {
	Stdout string
	Stderr string
}

// Runner runs one external command line with a bounded timeout.
// It returns captured output even on failure so callers can log it.
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Output, error)
}

// ExecRunner is the real Runner backed by os/exec
type ExecRunner struct{}

// Run implements Runner
func (ExecRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Output, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	cmdline := CmdLine(name, args...)
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	out := Output{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}
	if out.Stderr != "" {
		log.WithField("tag", "CMD-ERR").Warnf("%s => %s", cmdline, out.Stderr)
	}
	if ctx.Err() == context.DeadlineExceeded {
		return out, errors.Wrapf(ErrTimeout, "%s after %s", cmdline, timeout)
	}
	if err != nil {
		return out, errors.Wrapf(ErrExec, "%s: %v", cmdline, err)
	}
	return out, nil
}

// CmdLine renders a command and its args the way it would be typed
func CmdLine(name string, args ...string) string {
	return strings.Join(append([]string{name}, args...), " ")
}

// Adapter is one platform's skew probe plus action executor.
// MeasureSkew returns (local clock - reference clock) in nanoseconds.
// Apply issues the corrective command for the band and returns the exact
// command line it ran; NoAction is an idempotent no-op.
type Adapter interface {
	Name() string
	MeasureSkew(ctx context.Context) (int64, error)
	Apply(ctx context.Context, band drift.Band) (string, error)
}

// for tests
var lookPath = exec.LookPath

// NewAdapter selects the platform adapter once at startup. On Unix-likes
// it prefers chrony and falls back to ntpd tooling; with neither present
// probing is ErrUnavailable and the host needs a time-sync tool installed.
func NewAdapter(r Runner, referenceServer string) (Adapter, error) {
	if runtime.GOOS == "windows" {
		return NewWindowsAdapter(r, referenceServer), nil
	}
	if _, err := lookPath("chronyc"); err == nil {
		return NewChronyAdapter(r), nil
	}
	if _, err := lookPath("ntpq"); err == nil {
		return NewNtpdAdapter(r), nil
	}
	return nil, errors.Wrap(ErrUnavailable, "need chronyc or ntpq on PATH")
}

// UnavailableAdapter is used when no supported tool exists on the host.
// Every measurement fails with ErrUnavailable, so a continuous dispatcher
// degrades to no-action cycles instead of exiting; the tool may get
// installed while it runs.
type UnavailableAdapter struct{}

// Name implements Adapter
func (UnavailableAdapter) Name() string {
	return "none"
}

// MeasureSkew implements Adapter
func (UnavailableAdapter) MeasureSkew(_ context.Context) (int64, error) {
	return 0, errors.Wrap(ErrUnavailable, "no adapter selected")
}

// Apply implements Adapter
func (UnavailableAdapter) Apply(_ context.Context, _ drift.Band) (string, error) {
	return "", nil
}

// secondsToNS converts a skew expressed in seconds to nanoseconds,
// truncating toward zero
func secondsToNS(seconds float64) int64 {
	return int64(seconds * 1e9)
}
