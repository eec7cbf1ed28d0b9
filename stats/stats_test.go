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
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/driftwatch/driftwatch/drift"
)

func TestExporterCounters(t *testing.T) {
	e := NewExporter()
	e.ObserveSkew(-500)
	e.CountCycle()
	e.CountCycle()
	e.CountAction(drift.SmallAdjust)
	e.CountAction(drift.SmallAdjust)
	e.CountAction(drift.ForceStep)
	e.CountProbeError()
	e.CountPersistenceError()

	require.Equal(t, -500.0, testutil.ToFloat64(e.skewNS))
	require.Equal(t, 2.0, testutil.ToFloat64(e.cycles))
	require.Equal(t, 2.0, testutil.ToFloat64(e.actions.WithLabelValues("small_adjust")))
	require.Equal(t, 1.0, testutil.ToFloat64(e.actions.WithLabelValues("force_step")))
	require.Equal(t, 1.0, testutil.ToFloat64(e.probeErrors))
	require.Equal(t, 1.0, testutil.ToFloat64(e.persistErrors))
}
