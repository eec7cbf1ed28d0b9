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

package stats

import (
	"os"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/process"
	log "github.com/sirupsen/logrus"
)

// registerProcessStats adds per-process gauges evaluated at scrape time
func registerProcessStats(registry *prometheus.Registry) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Errorf("process stats unavailable: %v", err)
		return
	}
	registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "driftwatch_process_rss_bytes",
			Help: "resident set size",
		}, func() float64 {
			if mi, err := proc.MemoryInfo(); err == nil {
				return float64(mi.RSS)
			}
			return 0
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "driftwatch_process_cpu_percent",
			Help: "process cpu usage percent",
		}, func() float64 {
			if pct, err := proc.Percent(0); err == nil {
				return pct
			}
			return 0
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "driftwatch_process_threads",
			Help: "process thread count",
		}, func() float64 {
			if n, err := proc.NumThreads(); err == nil {
				return float64(n)
			}
			return 0
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "driftwatch_goroutines",
			Help: "goroutine count",
		}, func() float64 {
			return float64(runtime.NumGoroutine())
		}),
	)
}
