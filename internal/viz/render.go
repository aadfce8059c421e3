// Package viz renders fit results for the terminal: a styled summary panel
// and ascii convergence plots.
package viz

import (
	"fmt"
	"math"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/vtxfit/internal/fitter"
)

// RenderResult formats the fitted vertex, fit quality and per-daughter
// momenta as a bordered panel.
func RenderResult(res *fitter.Result) string {
	var b strings.Builder

	b.WriteString(Title.Render("vertex fit") + "\n\n")
	b.WriteString(fmt.Sprintf("%s  (%.5f, %.5f, %.5f) cm\n",
		Label.Render("vertex"), res.Vertex[0], res.Vertex[1], res.Vertex[2]))

	chi2 := fmt.Sprintf("%.4f / %d", res.Chi2, res.NDF)
	quality := Good
	if res.NDF > 0 && res.Chi2/float64(res.NDF) > 5 {
		quality = Warn
	}
	b.WriteString(fmt.Sprintf("%s  %s\n", Label.Render("chi2/ndf"), quality.Render(chi2)))
	b.WriteString(fmt.Sprintf("%s  %d", Label.Render("passes"), res.Iterations()))
	if n := len(res.Deltas); n > 0 {
		b.WriteString(fmt.Sprintf("  (last shift %.2e cm)", res.Deltas[n-1]))
	}
	b.WriteString("\n\n")

	for i, d := range res.Daughters {
		sigma := [3]float64{}
		for k := 0; k < 3; k++ {
			v := d.Covariance.At(k+3, k+3)
			if v > 0 {
				sigma[k] = math.Sqrt(v)
			}
		}
		b.WriteString(fmt.Sprintf("%s  p = (%.4f, %.4f, %.4f) ± (%.4f, %.4f, %.4f) GeV/c\n",
			Label.Render(fmt.Sprintf("track %d", i)),
			d.Momentum[0], d.Momentum[1], d.Momentum[2],
			sigma[0], sigma[1], sigma[2]))
	}

	return Panel.Render(strings.TrimRight(b.String(), "\n"))
}

// ConvergencePlot draws the per-iteration vertex shift.
func ConvergencePlot(deltas []float64) string {
	if len(deltas) == 0 {
		return ""
	}
	return asciigraph.Plot(deltas,
		asciigraph.Height(10),
		asciigraph.Width(60),
		asciigraph.Caption("vertex shift per iteration [cm]"),
	)
}

// Chi2Plot draws the per-iteration total chi-square.
func Chi2Plot(history []float64) string {
	if len(history) == 0 {
		return ""
	}
	return asciigraph.Plot(history,
		asciigraph.Height(10),
		asciigraph.Width(60),
		asciigraph.Caption("chi2 per iteration"),
	)
}
