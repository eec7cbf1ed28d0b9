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
	"github.com/eclesh/welford"
)

// Summary holds aggregate stats over a window of skew samples
type Summary struct {
	Count    int
	MeanNS   float64
	StddevNS float64
	MaxAbsNS int64
}

// Summarize computes running mean/stddev and max magnitude over samples
func Summarize(samples []int64) Summary {
	s := welford.New()
	var maxAbs int64
	for _, v := range samples {
		s.Add(float64(v))
		if a := Abs(v); a > maxAbs {
			maxAbs = a
		}
	}
	return Summary{
		Count:    len(samples),
		MeanNS:   s.Mean(),
		StddevNS: s.Stddev(),
		MaxAbsNS: maxAbs,
	}
}
