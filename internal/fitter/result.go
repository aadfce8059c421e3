package fitter

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/vtxfit/internal/geom"
)

// FittedDaughter is one daughter after the fit.
type FittedDaughter struct {
	// Momentum is the refined momentum at the vertex, GeV/c.
	Momentum geom.Vec3

	// Covariance is the fitted 6x6 covariance over (x, y, z, px, py, pz),
	// where the position rows refer to the common vertex.
	Covariance *mat.SymDense
}

// Result holds the outcome of a completed fit.
type Result struct {
	Vertex           geom.Vec3
	VertexCovariance *mat.SymDense // 3x3
	Chi2             float64
	NDF              int
	Daughters        []FittedDaughter

	// Deltas and Chi2History record the vertex shift and total chi-square
	// of each iteration, in order.
	Deltas      []float64
	Chi2History []float64
}

// Iterations returns the number of passes that contributed to the result.
func (r *Result) Iterations() int {
	return len(r.Deltas)
}

func newResult(p *pass, n int, deltas, chi2s []float64) *Result {
	ndf := 2*n - 3
	if ndf < 0 {
		ndf = 0
	}
	res := &Result{
		Vertex:           p.vertex,
		VertexCovariance: p.vertexCov,
		Chi2:             p.chi2,
		NDF:              ndf,
		Daughters:        make([]FittedDaughter, n),
		Deltas:           deltas,
		Chi2History:      chi2s,
	}
	for i := 0; i < n; i++ {
		res.Daughters[i] = FittedDaughter{Momentum: p.momenta[i], Covariance: p.covs[i]}
	}
	return res
}
