package fitter

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/vtxfit/internal/geom"
	"github.com/san-kum/vtxfit/internal/track"
)

// priorInformation is the loose vertex prior restored at the start of every
// iteration (information form; corresponds to a 100 cm standard deviation).
const priorInformation = 1e-4

// seedVertex estimates a starting vertex as the covariance-weighted mean of
// the daughters' measured positions.
func seedVertex(daughters []track.Track) (geom.Vec3, error) {
	info := mat.NewSymDense(3, nil)
	rhs := mat.NewVecDense(3, nil)

	for i, d := range daughters {
		w, err := invertSPD(d.PositionCovariance())
		if err != nil {
			return geom.Vec3{}, &FitError{Daughter: i, Iteration: 0, Op: "seed", Wrapped: err}
		}
		info.AddSym(info, w)
		var wx mat.VecDense
		wx.MulVec(w, mat.NewVecDense(3, d.Position.Slice()))
		rhs.AddVec(rhs, &wx)
	}

	cov, err := invertSPD(info)
	if err != nil {
		return geom.Vec3{}, &FitError{Daughter: -1, Iteration: 0, Op: "seed", Wrapped: err}
	}
	var v mat.VecDense
	v.MulVec(cov, rhs)
	return geom.Vec3{v.AtVec(0), v.AtVec(1), v.AtVec(2)}, nil
}

// pass is the outcome of one full relinearize-and-fold iteration.
type pass struct {
	vertex    geom.Vec3
	vertexCov *mat.SymDense // 3x3
	momenta   []geom.Vec3
	covs      []*mat.SymDense // 6x6 fitted daughter covariances
	chi2      float64
	delta     float64 // |vertex shift| this iteration
}

// runPass folds every daughter's linearized constraint into the vertex
// estimate and smooths the daughter momenta against the updated vertex.
//
// The fold is information-form: each daughter adds A^T W_B A to the vertex
// information and A^T W_B r to the right-hand side, where W_B is its weight
// with the momentum directions projected out. The accumulation is exact, so
// the result does not depend on daughter order beyond rounding.
func runPass(daughters []track.Track, vertex geom.Vec3, momenta []geom.Vec3, bz float64, iter int) (*pass, error) {
	n := len(daughters)

	info := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		info.SetSym(i, i, priorInformation)
	}
	rhs := mat.NewVecDense(3, nil)

	lins := make([]*linearization, n)
	for i, d := range daughters {
		lin, err := linearize(d, vertex, momenta[i], bz)
		if err != nil {
			return nil, &FitError{Daughter: i, Iteration: iter, Op: "linearize", Wrapped: err}
		}
		lins[i] = lin

		var atw mat.Dense
		atw.Mul(lin.jacV.T(), lin.wReduced) // 3x6
		var atwa mat.Dense
		atwa.Mul(&atw, lin.jacV) // 3x3
		info.AddSym(info, asSym(&atwa))
		var atwr mat.VecDense
		atwr.MulVec(&atw, lin.residual)
		rhs.AddVec(rhs, &atwr)
	}

	vertexCov, err := invertSPD(info)
	if err != nil {
		return nil, &FitError{Daughter: -1, Iteration: iter, Op: "vertex update", Wrapped: err}
	}
	var dv mat.VecDense
	dv.MulVec(vertexCov, rhs)
	shift := geom.Vec3{dv.AtVec(0), dv.AtVec(1), dv.AtVec(2)}

	p := &pass{
		vertex:    vertex.Add(shift),
		vertexCov: vertexCov,
		momenta:   make([]geom.Vec3, n),
		covs:      make([]*mat.SymDense, n),
		delta:     shift.Norm(),
	}

	for i, lin := range lins {
		var adv mat.VecDense
		adv.MulVec(lin.jacV, &dv) // 6
		var rv mat.VecDense
		rv.SubVec(lin.residual, &adv) // r - A dv

		// gain K = wq B^T W maps the remaining residual onto the
		// daughter's own momentum correction.
		var btw mat.Dense
		btw.Mul(lin.jacQ.T(), lin.weight) // 3x6
		var gain mat.Dense
		gain.Mul(lin.wq, &btw) // 3x6
		var dq mat.VecDense
		dq.MulVec(&gain, &rv)

		p.momenta[i] = momenta[i].Add(geom.Vec3{dq.AtVec(0), dq.AtVec(1), dq.AtVec(2)})

		var bdq mat.VecDense
		bdq.MulVec(lin.jacQ, &dq)
		var res mat.VecDense
		res.SubVec(&rv, &bdq) // r - A dv - B dq
		p.chi2 += mat.Inner(&res, lin.weight, &res)

		p.covs[i] = fittedCovariance(lin, &gain, vertexCov)
	}

	return p, nil
}

// fittedCovariance assembles the daughter's fitted 6x6 covariance over
// (vertex position, momentum):
//
//	cov(x)    = C                    (vertex covariance)
//	cov(q)    = wq + (K A) C (K A)^T
//	cov(q, x) = -(K A) C
//
// with K the momentum gain. The layout matches the measured covariance:
// rows/cols 0-2 position, 3-5 momentum.
func fittedCovariance(lin *linearization, gain *mat.Dense, vertexCov *mat.SymDense) *mat.SymDense {
	var ka mat.Dense
	ka.Mul(gain, lin.jacV) // 3x3

	var kac mat.Dense
	kac.Mul(&ka, vertexCov) // 3x3, = -cov(q, x)

	var momCov mat.Dense
	momCov.Mul(&kac, ka.T()) // (K A) C (K A)^T
	momCov.Add(&momCov, lin.wq)

	cov := mat.NewSymDense(track.StateDim, nil)
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			cov.SetSym(i, j, vertexCov.At(i, j))
			cov.SetSym(i+3, j+3, (momCov.At(i, j)+momCov.At(j, i))/2)
		}
		for j := 0; j < 3; j++ {
			cov.SetSym(j, i+3, -kac.At(i, j))
		}
	}
	return cov
}
