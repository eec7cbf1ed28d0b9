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

package drift

import (
	"container/ring"
	"sync"
)

// DefaultHistorySize is how many skew samples we keep for the graph
const DefaultHistorySize = 80

// History is a fixed-capacity FIFO of skew samples, guarded by mutex.
// Once full, pushing a new sample evicts the oldest one. Failed probe
// cycles are never recorded here: a zero would render as a fake perfect
// sample, so absent measurements are simply skipped by the caller.
type History struct {
	sync.Mutex

	samples  *ring.Ring
	capacity int
}

// NewHistory returns History that holds up to capacity samples
func NewHistory(capacity int) *History {
	h := &History{
		samples:  ring.New(capacity),
		capacity: capacity,
	}
	// init ring buffer with nils
	for i := 0; i < capacity; i++ {
		h.samples.Value = nil
		h.samples = h.samples.Next()
	}
	return h
}

// Push records one skew sample, evicting the oldest when at capacity
func (h *History) Push(skewNS int64) {
	h.Lock()
	defer h.Unlock()
	h.samples.Value = skewNS
	h.samples = h.samples.Next()
}

// Samples returns recorded samples in chronological order, oldest first
func (h *History) Samples() []int64 {
	h.Lock()
	defer h.Unlock()
	result := []int64{}
	// h.samples points at the next write slot, which is also the oldest
	// entry once the ring wrapped, so walking forward is chronological
	h.samples.Do(func(v any) {
		if v == nil {
			return
		}
		result = append(result, v.(int64))
	})
	return result
}

// Latest returns the most recent sample, if any
func (h *History) Latest() (int64, bool) {
	h.Lock()
	defer h.Unlock()
	v := h.samples.Prev().Value
	if v == nil {
		return 0, false
	}
	return v.(int64), true
}

// Len reports how many samples are currently recorded
func (h *History) Len() int {
	n := 0
	h.Lock()
	defer h.Unlock()
	h.samples.Do(func(v any) {
		if v != nil {
			n++
		}
	})
	return n
}

// Capacity reports the fixed buffer capacity
func (h *History) Capacity() int {
	return h.capacity
}
