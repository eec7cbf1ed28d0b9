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

package setup

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/driftwatch/driftwatch/probe"
)

type fakeRunner struct {
	outputs map[string]probe.Output
	errs    map[string]error
	calls   []string
}

func (r *fakeRunner) Run(_ context.Context, _ time.Duration, name string, args ...string) (probe.Output, error) {
	cmdline := probe.CmdLine(name, args...)
	r.calls = append(r.calls, cmdline)
	return r.outputs[cmdline], r.errs[cmdline]
}

func withFakePlatform(t *testing.T, os string, chronycPresent bool) {
	t.Helper()
	oldGoos, oldLook := goos, lookPath
	t.Cleanup(func() { goos, lookPath = oldGoos, oldLook })
	goos = os
	lookPath = func(name string) (string, error) {
		if chronycPresent {
			return "/usr/bin/" + name, nil
		}
		return "", errors.New("not found")
	}
}

func TestUnixNoChrony(t *testing.T) {
	withFakePlatform(t, "linux", false)
	c := New(&fakeRunner{}, []string{"pool.ntp.org"})
	err := c.Run(context.Background())
	require.ErrorIs(t, err, probe.ErrUnavailable)
}

func TestUnixFirstPoolWins(t *testing.T) {
	withFakePlatform(t, "linux", true)
	r := &fakeRunner{}
	c := New(r, []string{"pool.one", "pool.two"})
	require.NoError(t, c.Run(context.Background()))

	require.Contains(t, r.calls, "chronyc add server pool.one iburst")
	require.NotContains(t, r.calls, "chronyc add server pool.two iburst")
}

func TestUnixPoolFallback(t *testing.T) {
	withFakePlatform(t, "linux", true)
	r := &fakeRunner{errs: map[string]error{
		"chronyc add server pool.one iburst": errors.Wrap(probe.ErrExec, "chronyc"),
	}}
	c := New(r, []string{"pool.one", "pool.two"})
	require.NoError(t, c.Run(context.Background()))

	require.Contains(t, r.calls, "chronyc add server pool.one iburst")
	require.Contains(t, r.calls, "chronyc add server pool.two iburst")
}

func TestWindowsConfig(t *testing.T) {
	withFakePlatform(t, "windows", false)
	r := &fakeRunner{
		outputs: map[string]probe.Output{
			"sc query w32time": {Stdout: "STATE : 1 STOPPED"},
			`w32tm /config /manualpeerlist:0.pool.one,0x8 1.pool.one,0x8 2.pool.one,0x8 3.pool.one,0x8 /syncfromflags:manual /update`: {Stdout: "The command completed successfully."},
		},
	}
	c := New(r, []string{"pool.one"})
	require.NoError(t, c.Run(context.Background()))

	joined := strings.Join(r.calls, "\n")
	// stopped service gets enabled and started
	require.Contains(t, joined, "sc config w32time start= auto")
	require.Contains(t, joined, "sc start w32time")
	// registry poll bounds applied, service restarted, pool configured
	require.Contains(t, joined, "MinPollInterval")
	require.Contains(t, joined, "net start w32time")
	require.Contains(t, joined, "w32tm /resync /force")
}

func TestWindowsServiceRunningNotReenabled(t *testing.T) {
	withFakePlatform(t, "windows", false)
	r := &fakeRunner{
		outputs: map[string]probe.Output{
			"sc query w32time": {Stdout: "STATE : 4 RUNNING"},
		},
	}
	c := New(r, nil)
	require.NoError(t, c.Run(context.Background()))
	require.NotContains(t, strings.Join(r.calls, "\n"), "sc config w32time")
}
