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
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/driftwatch/driftwatch/drift"
)

const (
	stripchartTimeout = 10 * time.Second
	statusTimeout     = 6 * time.Second
)

// DefaultWindowsReference is the reference server for w32tm stripchart
const DefaultWindowsReference = "time.windows.com"

// seconds value with optional unit suffix, as printed by
// 'w32tm /query /status' Offset lines in various locales
var w32tmOffsetRe = regexp.MustCompile(`([-+]?\d+\.\d+)\s*s`)

// WindowsAdapter measures skew via w32tm and corrects it with
// 'w32tm /resync'. Stripchart against the reference server is the primary
// probe; /query /status parsing is the fallback when stripchart returns
// no data.
type WindowsAdapter struct {
	runner    Runner
	reference string
}

// NewWindowsAdapter returns Adapter driving the W32Time service
func NewWindowsAdapter(r Runner, reference string) *WindowsAdapter {
	if reference == "" {
		reference = DefaultWindowsReference
	}
	return &WindowsAdapter{runner: r, reference: reference}
}

// Name implements Adapter
func (a *WindowsAdapter) Name() string {
	return "windows"
}

// MeasureSkew implements Adapter
func (a *WindowsAdapter) MeasureSkew(ctx context.Context) (int64, error) {
	ns, err := a.measureStripchart(ctx)
	if err == nil {
		return ns, nil
	}
	log.Debugf("stripchart probe failed, falling back to status: %v", err)
	return a.measureStatus(ctx)
}

func (a *WindowsAdapter) measureStripchart(ctx context.Context) (int64, error) {
	out, err := a.runner.Run(ctx, stripchartTimeout, "w32tm",
		"/stripchart", "/computer:"+a.reference, "/dataonly", "/samples:1")
	if err != nil {
		return 0, err
	}
	return parseStripchart(out.Stdout)
}

func parseStripchart(out string) (int64, error) {
	// data lines look like '15:10:00, -0.0090668s'; the last one is the
	// most recent sample
	last := ""
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, ",") {
			last = strings.TrimSpace(line)
		}
	}
	if last == "" {
		return 0, errors.Wrapf(ErrParse, "no sample line in %q", snippet(out))
	}
	fields := strings.SplitN(last, ",", 2)
	value := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(fields[1]), "s"))
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrParse, "bad stripchart sample %q: %v", last, err)
	}
	return secondsToNS(seconds), nil
}

func (a *WindowsAdapter) measureStatus(ctx context.Context) (int64, error) {
	out, err := a.runner.Run(ctx, statusTimeout, "w32tm", "/query", "/status")
	if err != nil {
		return 0, err
	}
	return parseW32tmStatus(out.Stdout)
}

func parseW32tmStatus(out string) (int64, error) {
	// Offset label text varies by locale, so accept any line mentioning
	// either marker and pull the seconds value out of it
	found := false
	value := ""
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "Offset") && !strings.Contains(line, "Local Clock") {
			continue
		}
		if m := w32tmOffsetRe.FindStringSubmatch(line); m != nil {
			value = m[1]
			found = true
		}
	}
	if !found {
		return 0, errors.Wrapf(ErrParse, "no offset line in %q", snippet(out))
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrParse, "bad offset value: %v", err)
	}
	return secondsToNS(seconds), nil
}

// Apply implements Adapter
func (a *WindowsAdapter) Apply(ctx context.Context, band drift.Band) (string, error) {
	var args []string
	switch band {
	case drift.SmallAdjust:
		args = []string{"/resync", "/nowait"}
	case drift.ForceStep:
		args = []string{"/resync", "/force"}
	default:
		return "", nil
	}
	_, err := a.runner.Run(ctx, statusTimeout, "w32tm", args...)
	return CmdLine("w32tm", args...), err
}
