package fitter

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/vtxfit/internal/geom"
	"github.com/san-kum/vtxfit/internal/track"
)

// linearization is one daughter's helix constraint expanded to first order
// around the current vertex and momentum estimate:
//
//	measured ~ predicted + jacV*(dv) + jacQ*(dq)
type linearization struct {
	residual *mat.VecDense // measured - predicted, 6-dim
	jacV     *mat.Dense    // 6x3, d(state)/d(vertex)
	jacQ     *mat.Dense    // 6x3, d(state)/d(momentum)
	weight   *mat.SymDense // 6x6, inverse measurement covariance
	wq       *mat.SymDense // 3x3, (jacQ^T W jacQ)^-1
	wReduced *mat.SymDense // 6x6, W with the momentum directions projected out
}

// linearize expands the daughter's constraint around (vertex, momentum) for
// the given field.
func linearize(tr track.Track, vertex, momentum geom.Vec3, bz float64) (*linearization, error) {
	weight, err := invertSPD(tr.Covariance)
	if err != nil {
		return nil, fmt.Errorf("measurement covariance: %w", err)
	}

	prop := track.Propagate(tr.Charge, momentum, vertex, tr.Position, bz)

	r := mat.NewVecDense(track.StateDim, nil)
	for i := 0; i < 3; i++ {
		r.SetVec(i, tr.Position[i]-prop.Position[i])
		r.SetVec(i+3, tr.Momentum[i]-prop.Momentum[i])
	}

	// wq = (B^T W B)^-1 feeds both the momentum smoothing and the reduced
	// weight W_B = W - W B wq B^T W used for the vertex fold.
	var wb mat.Dense
	wb.Mul(weight, prop.JMomentum) // 6x3
	var btwb mat.Dense
	btwb.Mul(prop.JMomentum.T(), &wb) // 3x3
	wq, err := invertSPD(asSym(&btwb))
	if err != nil {
		return nil, fmt.Errorf("momentum information: %w", err)
	}

	var tmp, red mat.Dense
	tmp.Mul(&wb, wq)        // 6x3
	red.Mul(&tmp, wb.T())   // 6x6
	red.Sub(weight, &red)   // W - W B wq B^T W
	wReduced := asSym(&red) // symmetric by construction, clean up rounding

	return &linearization{
		residual: r,
		jacV:     prop.JVertex,
		jacQ:     prop.JMomentum,
		weight:   weight,
		wq:       wq,
		wReduced: wReduced,
	}, nil
}

// chi2Raw evaluates the daughter's chi-square contribution at the expansion
// point itself, without any vertex or momentum correction.
func (l *linearization) chi2Raw() float64 {
	return mat.Inner(l.residual, l.weight, l.residual)
}

// invertSPD inverts a symmetric positive-definite matrix via Cholesky. A
// single jitter retry absorbs harmless rounding on the diagonal; anything
// beyond that is reported as ErrNumericalFailure.
func invertSPD(s *mat.SymDense) (*mat.SymDense, error) {
	n := s.SymmetricDim()
	var ch mat.Cholesky
	if ch.Factorize(s) {
		inv := mat.NewSymDense(n, nil)
		if err := ch.InverseTo(inv); err == nil {
			return inv, nil
		}
	}

	maxDiag := 0.0
	for i := 0; i < n; i++ {
		if d := math.Abs(s.At(i, i)); d > maxDiag {
			maxDiag = d
		}
	}
	if maxDiag == 0 {
		return nil, fmt.Errorf("%w: matrix is zero", ErrNumericalFailure)
	}
	jittered := mat.NewSymDense(n, nil)
	jittered.CopySym(s)
	for i := 0; i < n; i++ {
		jittered.SetSym(i, i, jittered.At(i, i)+1e-12*maxDiag)
	}
	if ch.Factorize(jittered) {
		inv := mat.NewSymDense(n, nil)
		if err := ch.InverseTo(inv); err == nil {
			return inv, nil
		}
	}
	return nil, fmt.Errorf("%w: matrix is not positive definite", ErrNumericalFailure)
}

// asSym copies a square matrix into a SymDense, averaging away floating-point
// asymmetry.
func asSym(d *mat.Dense) *mat.SymDense {
	n, _ := d.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, (d.At(i, j)+d.At(j, i))/2)
		}
	}
	return s
}
