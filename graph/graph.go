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

// Package graph renders a window of skew samples as a zero-centered
// horizontal bar chart sized to the terminal. The chart is purely
// diagnostic, nothing reads it back.
package graph

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/driftwatch/driftwatch/drift"
)

const (
	// DefaultWidth is used when stdout is not a terminal
	DefaultWidth = 120
	// labelMargin is reserved outside the plot area
	labelMargin = 20
	// minPlotWidth is the floor for very narrow terminals
	minPlotWidth = 20

	axisRune     = '│'
	positiveRune = '▄'
	negativeRune = '▀'
)

// TerminalWidth returns the current stdout terminal width, or
// DefaultWidth when stdout is not a terminal or its size is unknown
func TerminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return DefaultWidth
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return DefaultWidth
	}
	return w
}

// Render draws samples as one bar row each, oldest first, into a plot
// scaled so the largest magnitude in the window fills half the plot.
// Output is deterministic for fixed (samples, width). An empty window
// renders a single flat centered axis row.
func Render(samples []int64, width int) string {
	plotW := width - labelMargin
	if plotW < minPlotWidth {
		plotW = minPlotWidth
	}
	center := plotW / 2

	var maxAbs int64
	for _, v := range samples {
		if a := drift.Abs(v); a > maxAbs {
			maxAbs = a
		}
	}

	scale := 1.0
	if maxAbs > 0 {
		scale = float64(maxAbs) / float64(center-1)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Scale: ±%d ns (center=0)\n", maxAbs)
	if len(samples) == 0 {
		sb.WriteString(renderRow(0, plotW, center, scale))
		sb.WriteString("\n")
		return sb.String()
	}
	for _, v := range samples {
		sb.WriteString(renderRow(v, plotW, center, scale))
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderRow(val int64, plotW, center int, scale float64) string {
	offs := 0
	if scale > 0 {
		offs = int(math.Round(float64(val) / scale))
	}
	// clamp to the plot
	if offs > plotW-1-center {
		offs = plotW - 1 - center
	}
	if offs < -center {
		offs = -center
	}

	row := make([]rune, plotW)
	for c := range row {
		switch {
		case c == center:
			row[c] = axisRune
		case offs > 0 && c > center && c <= center+offs:
			row[c] = positiveRune
		case offs < 0 && c >= center+offs && c < center:
			row[c] = negativeRune
		default:
			row[c] = ' '
		}
	}
	return string(row)
}

// Legend returns the one-line legend shown under the chart, colored when
// stdout is a terminal
func Legend() string {
	return fmt.Sprintf("Legend: center%c=0 ns, right=positive (%s), left=negative (%s)",
		axisRune,
		color.GreenString("%c", positiveRune),
		color.RedString("%c", negativeRune),
	)
}
