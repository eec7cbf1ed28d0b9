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

// Package dispatch sequences the drift monitoring cycle:
// probe, classify, correct, persist, record, render, sleep.
// One dispatcher instance runs a single logical thread of control; the
// probe and corrective commands never run concurrently with each other
// so a correction can't race a fresh measurement of the same clock.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/host"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/driftwatch/driftwatch/drift"
	"github.com/driftwatch/driftwatch/graph"
	"github.com/driftwatch/driftwatch/memo"
	"github.com/driftwatch/driftwatch/probe"
	"github.com/driftwatch/driftwatch/stats"
)

// historySeed is how many zero samples the buffer starts with, so the
// first frame isn't a degenerate single-bar render
const historySeed = 4

// CycleResult is the outcome of one successful dispatch cycle
type CycleResult struct {
	SkewNS     int64
	PrevSkewNS int64
	Band       drift.Band
	// Action is the exact corrective command issued, empty for NoAction
	Action string
}

// Dispatcher owns all mutable state of the monitoring loop: the history
// window, the memoized last skew and the render sink. No globals.
type Dispatcher struct {
	cfg      *Config
	adapter  probe.Adapter
	store    *memo.Store
	history  *drift.History
	exporter *stats.Exporter

	lastSkewNS int64

	// render sink and terminal hooks, swappable in tests
	out      io.Writer
	width    func() int
	clearTTY bool
}

// New creates a Dispatcher: memo loaded, history seeded
func New(cfg *Config, adapter probe.Adapter, store *memo.Store, exporter *stats.Exporter) *Dispatcher {
	h := drift.NewHistory(cfg.HistorySize)
	for i := 0; i < historySeed; i++ {
		h.Push(0)
	}
	return &Dispatcher{
		cfg:        cfg,
		adapter:    adapter,
		store:      store,
		history:    h,
		exporter:   exporter,
		lastSkewNS: store.Load().LastSkewNS,
		out:        os.Stdout,
		width:      graph.TerminalWidth,
		clearTTY:   term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// History exposes the buffer for rendering and summaries
func (d *Dispatcher) History() *drift.History {
	return d.history
}

// Cycle runs one probe-classify-correct-persist pass. A failed probe
// aborts the cycle before any decision, correction or memo write; every
// failure is recoverable and reported through the returned error.
func (d *Dispatcher) Cycle(ctx context.Context) (*CycleResult, error) {
	d.exporter.CountCycle()
	skewNS, err := d.adapter.MeasureSkew(ctx)
	if err != nil {
		d.exporter.CountProbeError()
		return nil, err
	}

	res := &CycleResult{
		SkewNS:     skewNS,
		PrevSkewNS: d.lastSkewNS,
		Band:       drift.Classify(skewNS, d.cfg.PrecisionThresholdNS),
	}
	log.Infof("%s skew = %d ns (previous %d ns)", d.adapter.Name(), skewNS, res.PrevSkewNS)

	switch res.Band {
	case drift.NoAction:
		log.Infof("no adjustment required, skew within negligible range")
	default:
		cmdline, err := d.adapter.Apply(ctx, res.Band)
		if err != nil {
			// transient: the tool may recover by the next interval
			log.Warnf("corrective command failed: %v", err)
		} else {
			log.WithField("tag", "ACTION").Infof("%s issued (%s)", cmdline, res.Band)
		}
		res.Action = cmdline
		d.exporter.CountAction(res.Band)
	}

	d.lastSkewNS = skewNS
	if err := d.store.Save(memo.Memo{LastSkewNS: skewNS}); err != nil {
		// best effort, the loop must survive broken persistence
		log.Warnf("could not save memo: %v", err)
		d.exporter.CountPersistenceError()
	}
	d.history.Push(skewNS)
	d.exporter.ObserveSkew(skewNS)
	return res, nil
}

// RunOnce performs a single measure-correct-persist pass. A failed
// measurement is logged, not returned: one-shot mode completes cleanly
// either way, and the result is nil when nothing was measured.
func (d *Dispatcher) RunOnce(ctx context.Context) *CycleResult {
	log.Infof("dispatcher start on %s | mode=%s", hostPlatform(), d.cfg.Mode)
	res, err := d.Cycle(ctx)
	if err != nil {
		log.Warnf("could not measure skew: %v", err)
	}
	log.Infof("dispatcher complete")
	return res
}

// Run executes the dispatcher until done: a single cycle when the mode
// doesn't loop, otherwise a render loop at the configured interval until
// ctx is cancelled. Measurement failures never produce a non-zero exit.
func (d *Dispatcher) Run(ctx context.Context) error {
	if !d.cfg.LoopForever {
		d.RunOnce(ctx)
		return nil
	}
	log.Infof("dispatcher start on %s | mode=%s", hostPlatform(), d.cfg.Mode)

	g, ctx := errgroup.WithContext(ctx)
	if d.cfg.MonitoringPort != 0 {
		g.Go(func() error {
			return d.exporter.Serve(ctx, d.cfg.MonitoringPort)
		})
	}
	g.Go(func() error {
		return d.loop(ctx)
	})
	return g.Wait()
}

func (d *Dispatcher) loop(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := d.Cycle(ctx); err != nil {
			log.Warnf("could not measure skew: %v", err)
		}
		d.render()
		// the sleep is the only long suspension point, and it must be
		// interruptible
		select {
		case <-ctx.Done():
			log.Infof("dispatcher stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// render draws one TUI frame: header, chart, legend, stats footer
func (d *Dispatcher) render() {
	samples := d.history.Samples()
	summary := drift.Summarize(samples)
	last, _ := d.history.Latest()

	if d.clearTTY {
		fmt.Fprint(d.out, "\033[2J\033[H")
	}
	fmt.Fprintln(d.out, "╔════════════════════════════════════════════╗")
	fmt.Fprintln(d.out, "║   Time Drift Monitor (nanosecond view)     ║")
	fmt.Fprintln(d.out, "╚════════════════════════════════════════════╝")
	fmt.Fprintln(d.out)
	fmt.Fprint(d.out, graph.Render(samples, d.width()))
	fmt.Fprintln(d.out)
	fmt.Fprintln(d.out, graph.Legend())
	fmt.Fprintf(d.out, "Mode: %s | Samples: %d | Last skew: %d ns | Mean: %.0f ns | Stddev: %.0f ns\n",
		d.cfg.Mode, summary.Count, last, summary.MeanNS, summary.StddevNS)
	fmt.Fprintf(d.out, "Log: %s | Memo: %s\n", d.cfg.LogFile, d.store.Path())
}

// hostPlatform identifies the host for the start banner
func hostPlatform() string {
	info, err := host.Info()
	if err != nil {
		return runtime.GOOS
	}
	return fmt.Sprintf("%s %s", info.Platform, info.PlatformVersion)
}
