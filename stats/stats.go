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

// Package stats exposes dispatcher telemetry as prometheus metrics on an
// optional monitoring port.
package stats

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/driftwatch/driftwatch/drift"
)

// Exporter holds the prometheus collectors the dispatcher updates
type Exporter struct {
	registry *prometheus.Registry

	skewNS        prometheus.Gauge
	cycles        prometheus.Counter
	actions       *prometheus.CounterVec
	probeErrors   prometheus.Counter
	persistErrors prometheus.Counter
}

// NewExporter creates a registry with all dispatcher metrics plus process
// stats registered
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		skewNS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "driftwatch_skew_ns",
			Help: "last measured clock skew in nanoseconds",
		}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "driftwatch_cycles_total",
			Help: "dispatch cycles attempted",
		}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "driftwatch_actions_total",
			Help: "corrective actions taken, by band",
		}, []string{"band"}),
		probeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "driftwatch_probe_errors_total",
			Help: "cycles where skew could not be measured",
		}),
		persistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "driftwatch_persistence_errors_total",
			Help: "memo save failures",
		}),
	}
	e.registry.MustRegister(e.skewNS, e.cycles, e.actions, e.probeErrors, e.persistErrors)
	registerProcessStats(e.registry)
	return e
}

// ObserveSkew records the latest measurement
func (e *Exporter) ObserveSkew(ns int64) {
	e.skewNS.Set(float64(ns))
}

// CountCycle increments the cycle counter
func (e *Exporter) CountCycle() {
	e.cycles.Inc()
}

// CountAction increments the per-band action counter
func (e *Exporter) CountAction(band drift.Band) {
	e.actions.WithLabelValues(band.String()).Inc()
}

// CountProbeError increments the failed-measurement counter
func (e *Exporter) CountProbeError() {
	e.probeErrors.Inc()
}

// CountPersistenceError increments the memo-save failure counter
func (e *Exporter) CountPersistenceError() {
	e.persistErrors.Inc()
}

// Serve exposes /metrics on the given port until ctx is cancelled
func (e *Exporter) Serve(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		e.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	))
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		if err := srv.Close(); err != nil {
			log.Errorf("closing monitoring server: %v", err)
		}
	}()
	log.Infof("monitoring on :%d/metrics", port)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
