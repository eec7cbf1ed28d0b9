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
	"regexp"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/driftwatch/driftwatch/drift"
)

const chronyTimeout = 6 * time.Second

// matches 'Last offset     : +0.000056 seconds' with whitespace and sign
// variations; the unit suffix is optional on older chrony versions
var chronyOffsetRe = regexp.MustCompile(`Last offset\s*:\s*([-+]?\d+(?:\.\d+)?)(?:\s*seconds)?`)

// ChronyAdapter measures skew via 'chronyc tracking' and corrects it
// with 'chronyc makestep'
type ChronyAdapter struct {
	runner Runner
}

// NewChronyAdapter returns Adapter talking to chronyd via chronyc
func NewChronyAdapter(r Runner) *ChronyAdapter {
	return &ChronyAdapter{runner: r}
}

// Name implements Adapter
func (a *ChronyAdapter) Name() string {
	return "chrony"
}

// MeasureSkew implements Adapter
func (a *ChronyAdapter) MeasureSkew(ctx context.Context) (int64, error) {
	out, err := a.runner.Run(ctx, chronyTimeout, "chronyc", "tracking")
	if err != nil {
		return 0, err
	}
	return parseChronyTracking(out.Stdout)
}

func parseChronyTracking(out string) (int64, error) {
	// when several lines match, the last one is the most recent sample
	matches := chronyOffsetRe.FindAllStringSubmatch(out, -1)
	if len(matches) == 0 {
		return 0, errors.Wrapf(ErrParse, "no 'Last offset' line in %q", snippet(out))
	}
	seconds, err := strconv.ParseFloat(matches[len(matches)-1][1], 64)
	if err != nil {
		return 0, errors.Wrapf(ErrParse, "bad offset value: %v", err)
	}
	return secondsToNS(seconds), nil
}

// Apply implements Adapter
func (a *ChronyAdapter) Apply(ctx context.Context, band drift.Band) (string, error) {
	var args []string
	switch band {
	case drift.SmallAdjust:
		args = []string{"makestep", "0.001", "3"}
	case drift.ForceStep:
		args = []string{"makestep"}
	default:
		return "", nil
	}
	_, err := a.runner.Run(ctx, chronyTimeout, "chronyc", args...)
	return CmdLine("chronyc", args...), err
}

// snippet bounds raw tool output for error messages
func snippet(s string) string {
	const max = 120
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
