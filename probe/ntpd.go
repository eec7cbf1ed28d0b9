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
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/driftwatch/driftwatch/drift"
)

const ntpdTimeout = 6 * time.Second

// DefaultNtpdFallbackPool is what ntpdate is pointed at when correcting
const DefaultNtpdFallbackPool = "pool.ntp.org"

// NtpdAdapter measures skew via 'ntpq -c rv' and corrects it by driving
// ntpdate against a public pool. It's the fallback for Unix hosts
// without chrony.
type NtpdAdapter struct {
	runner Runner
	pool   string
}

// NewNtpdAdapter returns Adapter talking to ntpd via ntpq
func NewNtpdAdapter(r Runner) *NtpdAdapter {
	return &NtpdAdapter{runner: r, pool: DefaultNtpdFallbackPool}
}

// Name implements Adapter
func (a *NtpdAdapter) Name() string {
	return "ntpd"
}

// MeasureSkew implements Adapter
func (a *NtpdAdapter) MeasureSkew(ctx context.Context) (int64, error) {
	out, err := a.runner.Run(ctx, ntpdTimeout, "ntpq", "-c", "rv")
	if err != nil {
		return 0, err
	}
	return parseNtpqRV(out.Stdout)
}

func parseNtpqRV(out string) (int64, error) {
	// rv output is comma-separated key=value pairs, possibly across
	// multiple lines; last offset= token wins
	value := ""
	for _, token := range strings.Fields(strings.ReplaceAll(out, ",", " ")) {
		if strings.HasPrefix(token, "offset=") {
			value = strings.TrimPrefix(token, "offset=")
		}
	}
	if value == "" {
		return 0, errors.Wrapf(ErrParse, "no offset= token in %q", snippet(out))
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrParse, "bad offset value: %v", err)
	}
	return secondsToNS(seconds), nil
}

// Apply implements Adapter. ntpd has no makestep equivalent we can drive
// per band, so both bands resync via ntpdate against the fallback pool.
func (a *NtpdAdapter) Apply(ctx context.Context, band drift.Band) (string, error) {
	switch band {
	case drift.SmallAdjust, drift.ForceStep:
	default:
		return "", nil
	}
	args := []string{"-u", a.pool}
	_, err := a.runner.Run(ctx, ntpdTimeout, "ntpdate", args...)
	return CmdLine("ntpdate", args...), err
}
