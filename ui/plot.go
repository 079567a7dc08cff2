package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/dgnsrekt/soundvis/internal/engine"
	runewidth "github.com/mattn/go-runewidth"
)

const (
	minPlotHeight = 3
	minPlotWidth  = 8

	plotMark  = '█'
	plotAxis  = '─'
	plotBlank = ' '
)

// renderPlot draws series as a min/max envelope on a fixed [-1, 1]
// amplitude axis, one column per slice of points, followed by a time axis
// row. An empty series draws only the zero line.
func renderPlot(series engine.Series, width, height int) string {
	width = max(width, minPlotWidth)
	height = max(height, minPlotHeight)

	grid := make([][]rune, height)
	for r := range grid {
		grid[r] = make([]rune, width)
		for c := range grid[r] {
			grid[r][c] = plotBlank
		}
	}
	zero := amplitudeRow(0, height)
	for c := range width {
		grid[zero][c] = plotAxis
	}

	n := series.Len()
	for c := 0; c < width && n > 0; c++ {
		lo := c * n / width
		hi := max(lo+1, (c+1)*n/width)
		if lo >= n {
			break
		}
		hi = min(hi, n)

		minA, maxA := math.Inf(1), math.Inf(-1)
		for i := lo; i < hi; i++ {
			a := series.At(i).Amplitude
			minA = math.Min(minA, a)
			maxA = math.Max(maxA, a)
		}
		for r := amplitudeRow(maxA, height); r <= amplitudeRow(minA, height); r++ {
			grid[r][c] = plotMark
		}
	}

	var b strings.Builder
	for _, row := range grid {
		writeRuns(&b, row)
		b.WriteByte('\n')
	}
	b.WriteString(timeAxis(series, width))
	return b.String()
}

// amplitudeRow maps a in [-1, 1] to a row, 0 at the top.
func amplitudeRow(a float64, height int) int {
	a = math.Max(-1, math.Min(1, a))
	r := int(math.Round((1 - a) / 2 * float64(height-1)))
	return max(0, min(height-1, r))
}

// writeRuns styles consecutive cells of the same kind together.
func writeRuns(b *strings.Builder, row []rune) {
	start := 0
	for i := 1; i <= len(row); i++ {
		if i < len(row) && row[i] == row[start] {
			continue
		}
		run := string(row[start:i])
		switch row[start] {
		case plotMark:
			b.WriteString(plotStyle.Render(run))
		case plotAxis:
			b.WriteString(axisStyle.Render(run))
		default:
			b.WriteString(run)
		}
		start = i
	}
}

// timeAxis labels both ends of the chunk in milliseconds.
func timeAxis(series engine.Series, width int) string {
	left := "0 ms"
	right := left
	if n := series.Len(); n > 0 {
		right = fmt.Sprintf("%.1f ms", series.At(n-1).TimeMS)
	}
	gap := width - runewidth.StringWidth(left) - runewidth.StringWidth(right)
	if gap < 1 {
		return dimStyle.Render(right)
	}
	return dimStyle.Render(left + strings.Repeat(" ", gap) + right)
}

// framedPlot wraps the plot in a border sized to the available width.
func framedPlot(series engine.Series, width, height int) string {
	inner := max(width-plotFrame.GetHorizontalFrameSize(), minPlotWidth)
	return plotFrame.Render(renderPlot(series, inner, height))
}
