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

package probe

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/driftwatch/driftwatch/drift"
)

type fakeRunner struct {
	outputs map[string]Output
	errs    map[string]error
	calls   []string
}

func (r *fakeRunner) Run(_ context.Context, _ time.Duration, name string, args ...string) (Output, error) {
	cmdline := CmdLine(name, args...)
	r.calls = append(r.calls, cmdline)
	return r.outputs[cmdline], r.errs[cmdline]
}

func TestExecRunnerTimeout(t *testing.T) {
	r := ExecRunner{}
	_, err := r.Run(context.Background(), 50*time.Millisecond, "sleep", "10")
	require.ErrorIs(t, err, ErrTimeout)
}

func TestExecRunnerExecFailure(t *testing.T) {
	r := ExecRunner{}
	_, err := r.Run(context.Background(), time.Second, "false")
	require.ErrorIs(t, err, ErrExec)
}

func TestExecRunnerCapturesStdout(t *testing.T) {
	r := ExecRunner{}
	out, err := r.Run(context.Background(), time.Second, "echo", "hello")
	require.NoError(t, err)
	require.Equal(t, "hello", out.Stdout)
}

func TestParseChronyTracking(t *testing.T) {
	out := `Reference ID    : 0A0B0C0D (ntp.example.com)
Stratum         : 3
Ref time (UTC)  : Thu Apr 24 14:24:17 2020
System time     : 0.000020390 seconds fast of NTP time
Last offset     : +0.000056 seconds
RMS offset      : 0.000091 seconds
Frequency       : 5.626 ppm slow
Skew            : 0.078 ppm
`
	ns, err := parseChronyTracking(out)
	require.NoError(t, err)
	require.Equal(t, int64(56000), ns)
}

func TestParseChronyTrackingNegative(t *testing.T) {
	ns, err := parseChronyTracking("Last offset     : -0.000001234 seconds\n")
	require.NoError(t, err)
	require.Equal(t, int64(-1234), ns)
}

func TestParseChronyTrackingLastLineWins(t *testing.T) {
	out := "Last offset : 0.5 seconds\nLast offset : 0.25 seconds\n"
	ns, err := parseChronyTracking(out)
	require.NoError(t, err)
	require.Equal(t, int64(250_000_000), ns)
}

func TestParseChronyTrackingNoMatch(t *testing.T) {
	_, err := parseChronyTracking("chronyd is not running\n")
	require.ErrorIs(t, err, ErrParse)
}

func TestChronyMeasure(t *testing.T) {
	r := &fakeRunner{outputs: map[string]Output{
		"chronyc tracking": {Stdout: "Last offset     : 0.000500 seconds"},
	}}
	a := NewChronyAdapter(r)
	ns, err := a.MeasureSkew(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(500_000), ns)
	require.Equal(t, []string{"chronyc tracking"}, r.calls)
}

func TestChronyMeasurePropagatesRunnerError(t *testing.T) {
	r := &fakeRunner{errs: map[string]error{
		"chronyc tracking": errors.Wrap(ErrTimeout, "chronyc tracking"),
	}}
	a := NewChronyAdapter(r)
	_, err := a.MeasureSkew(context.Background())
	require.ErrorIs(t, err, ErrTimeout)
}

func TestChronyApply(t *testing.T) {
	r := &fakeRunner{}
	a := NewChronyAdapter(r)

	cmdline, err := a.Apply(context.Background(), drift.SmallAdjust)
	require.NoError(t, err)
	require.Equal(t, "chronyc makestep 0.001 3", cmdline)

	cmdline, err = a.Apply(context.Background(), drift.ForceStep)
	require.NoError(t, err)
	require.Equal(t, "chronyc makestep", cmdline)

	require.Equal(t, []string{"chronyc makestep 0.001 3", "chronyc makestep"}, r.calls)
}

func TestChronyApplyNoActionIsNoop(t *testing.T) {
	r := &fakeRunner{}
	a := NewChronyAdapter(r)
	cmdline, err := a.Apply(context.Background(), drift.NoAction)
	require.NoError(t, err)
	require.Empty(t, cmdline)
	require.Empty(t, r.calls)
}

func TestParseNtpqRV(t *testing.T) {
	out := `associd=0 status=0615 leap_none, sync_ntp, 1 event, clock_sync,
version="ntpd 4.2.8p15", processor="x86_64", system="Linux/5.4.0",
leap=00, stratum=2, precision=-24, rootdelay=1.234, rootdisp=2.345,
offset=0.000123, frequency=-17.045, sys_jitter=0.110980
`
	ns, err := parseNtpqRV(out)
	require.NoError(t, err)
	require.Equal(t, int64(123_000), ns)
}

func TestParseNtpqRVNoOffset(t *testing.T) {
	_, err := parseNtpqRV("associd=0 status=0615 leap_none\n")
	require.ErrorIs(t, err, ErrParse)
}

func TestNtpdApply(t *testing.T) {
	r := &fakeRunner{}
	a := NewNtpdAdapter(r)
	cmdline, err := a.Apply(context.Background(), drift.ForceStep)
	require.NoError(t, err)
	require.Equal(t, "ntpdate -u pool.ntp.org", cmdline)
}

func TestParseStripchart(t *testing.T) {
	out := `Tracking time.windows.com [40.119.6.228:123].
Collecting 1 samples.
The current time is 24/04/2020 14:24:17.
14:24:17, -0.0090668s
`
	ns, err := parseStripchart(out)
	require.NoError(t, err)
	require.Equal(t, int64(-9066800), ns)
}

func TestParseStripchartLastLineWins(t *testing.T) {
	out := "14:24:17, -0.5s\n14:24:19, +0.25s\n"
	ns, err := parseStripchart(out)
	require.NoError(t, err)
	require.Equal(t, int64(250_000_000), ns)
}

func TestParseStripchartNoData(t *testing.T) {
	_, err := parseStripchart("Collecting 1 samples.\n")
	require.ErrorIs(t, err, ErrParse)
}

func TestParseW32tmStatus(t *testing.T) {
	out := `Leap Indicator: 0(no warning)
Stratum: 4 (secondary reference - syncd by (S)NTP)
Precision: -23 (119.209ns per tick)
Offset: -0.0098767s
Source: time.windows.com
`
	ns, err := parseW32tmStatus(out)
	require.NoError(t, err)
	require.Equal(t, int64(-9876700), ns)
}

func TestParseW32tmStatusNoOffset(t *testing.T) {
	_, err := parseW32tmStatus("The service has not been started.\n")
	require.ErrorIs(t, err, ErrParse)
}

func TestWindowsMeasureFallsBackToStatus(t *testing.T) {
	r := &fakeRunner{
		outputs: map[string]Output{
			"w32tm /stripchart /computer:time.windows.com /dataonly /samples:1": {Stdout: "Collecting 1 samples."},
			"w32tm /query /status": {Stdout: "Offset: 0.0000005s"},
		},
	}
	a := NewWindowsAdapter(r, "")
	ns, err := a.MeasureSkew(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(500), ns)
	require.Len(t, r.calls, 2)
}

func TestWindowsApply(t *testing.T) {
	r := &fakeRunner{}
	a := NewWindowsAdapter(r, "")
	cmdline, err := a.Apply(context.Background(), drift.SmallAdjust)
	require.NoError(t, err)
	require.Equal(t, "w32tm /resync /nowait", cmdline)

	cmdline, err = a.Apply(context.Background(), drift.ForceStep)
	require.NoError(t, err)
	require.Equal(t, "w32tm /resync /force", cmdline)
}

func TestNewAdapterUnavailable(t *testing.T) {
	old := lookPath
	defer func() { lookPath = old }()
	lookPath = func(string) (string, error) { return "", errors.New("not found") }

	_, err := NewAdapter(ExecRunner{}, "")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestNewAdapterPrefersChrony(t *testing.T) {
	old := lookPath
	defer func() { lookPath = old }()
	lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }

	a, err := NewAdapter(ExecRunner{}, "")
	require.NoError(t, err)
	require.Equal(t, "chrony", a.Name())
}

func TestSecondsToNSTruncatesTowardZero(t *testing.T) {
	require.Equal(t, int64(1), secondsToNS(0.0000000019))
	require.Equal(t, int64(-1), secondsToNS(-0.0000000019))
}
