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
	"golang.org/x/exp/constraints"
)

// Band is a corrective action class assigned to a skew measurement.
type Band int

// Possible bands, mutually exclusive.
const (
	// NoAction means skew is either negligible or outside the ranges we correct
	NoAction Band = iota
	// SmallAdjust means skew warrants a gradual resync
	SmallAdjust
	// ForceStep means skew warrants a forced clock step
	ForceStep
)

var bandToString = map[Band]string{
	NoAction:    "no_action",
	SmallAdjust: "small_adjust",
	ForceStep:   "force_step",
}

func (b Band) String() string {
	if s, ok := bandToString[b]; ok {
		return s
	}
	return "unknown"
}

// Band boundaries, in nanoseconds. All comparisons are strict:
// a value sitting exactly on a boundary falls into neither band.
const (
	// SmallSkewCeilingNS is the upper bound of the SmallAdjust band (1ms)
	SmallSkewCeilingNS = 1_000_000
	// LargeSkewFloorNS is the lower bound of the ForceStep band (100ms)
	LargeSkewFloorNS = 100_000_000
	// LargeSkewCeilingNS is the upper bound of the ForceStep band (1s)
	LargeSkewCeilingNS = 1_000_000_000
)

// Abs returns absolute value for any signed type
func Abs[T constraints.Signed](v T) T {
	if v < 0 {
		return -v
	}
	return v
}

// Classify maps a skew measurement to a corrective Band given the active
// precision threshold. It's a pure function of its arguments.
//
// Skew between SmallSkewCeilingNS and LargeSkewFloorNS (1ms-100ms) is left
// to the reference tool's own steady-state correction loop, and skew at or
// above LargeSkewCeilingNS (>=1s) is never auto-stepped and needs operator
// attention. Both gaps are intentional, don't "fix" them here.
func Classify(skewNS int64, thresholdNS uint64) Band {
	a := Abs(skewNS)
	switch {
	case int64(thresholdNS) < a && a < SmallSkewCeilingNS:
		return SmallAdjust
	case LargeSkewFloorNS < a && a < LargeSkewCeilingNS:
		return ForceStep
	}
	return NoAction
}
