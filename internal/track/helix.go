package track

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/vtxfit/internal/geom"
)

// Kappa converts curvature to momentum: 1/R[cm] = Kappa * B[T] / pT[GeV/c].
const Kappa = 0.00299792458

// Propagation is the state of a helix, launched from a candidate vertex with
// a given momentum, evaluated at its closest approach to a reference point,
// together with the Jacobians needed to linearize around the expansion point.
type Propagation struct {
	// Position and Momentum are the predicted state at closest approach.
	Position geom.Vec3
	Momentum geom.Vec3

	// ArcLength is the signed path length from the vertex to the
	// closest-approach point.
	ArcLength float64

	// JVertex is the 6x3 Jacobian of (position, momentum) with respect to
	// the vertex location.
	JVertex *mat.Dense

	// JMomentum is the 6x3 Jacobian of (position, momentum) with respect to
	// the momentum at the vertex.
	JMomentum *mat.Dense
}

// Propagate launches a helix from vertex with the given charge and momentum in
// a uniform field bz (Tesla, along +z) and evaluates it at the closest
// approach to point.
//
// The trajectory is expanded to second order in the arc length s:
//
//	x(s) = vertex + s*u + s^2/2 * a
//	p(s) = p + s*w
//
// with u the unit momentum, a = (Kappa*q/|p|^2)(p x B) the curvature vector
// and w = |p|*a. The closest-approach arc length is s = u . (point - vertex).
// For zero charge or zero field the curvature terms vanish and the expansion
// is the exact straight line; no branch is needed.
func Propagate(charge int, momentum geom.Vec3, vertex, point geom.Vec3, bz float64) Propagation {
	p := momentum.Norm()
	u := momentum.Scale(1.0 / p)

	// p x B for B = (0, 0, bz)
	pxB := geom.Vec3{momentum[1] * bz, -momentum[0] * bz, 0}
	q := float64(charge)
	a := pxB.Scale(Kappa * q / (p * p))
	w := pxB.Scale(Kappa * q / p)

	d := point.Sub(vertex)
	s := u.Dot(d)

	pos := vertex.Add(u.Scale(s)).Add(a.Scale(s * s / 2))
	mom := momentum.Add(w.Scale(s))

	return Propagation{
		Position:  pos,
		Momentum:  mom,
		ArcLength: s,
		JVertex:   jacobianVertex(u, a, w, s),
		JMomentum: jacobianMomentum(momentum, p, u, a, w, d, s, q, bz),
	}
}

// jacobianVertex builds d(pos,mom)/d(vertex). Only the arc length depends on
// the vertex beyond the identity term: ds/dv = -u.
func jacobianVertex(u, a, w geom.Vec3, s float64) *mat.Dense {
	j := mat.NewDense(6, 3, nil)
	t := u.Add(a.Scale(s)) // tangent at closest approach
	for i := 0; i < 3; i++ {
		for k := 0; k < 3; k++ {
			v := -t[i] * u[k]
			if i == k {
				v++
			}
			j.Set(i, k, v)
			j.Set(i+3, k, -w[i]*u[k])
		}
	}
	return j
}

// jacobianMomentum builds d(pos,mom)/d(momentum at the vertex), taking into
// account that direction, curvature and arc length all depend on the momentum.
func jacobianMomentum(momentum geom.Vec3, p float64, u, a, w, d geom.Vec3, s, q, bz float64) *mat.Dense {
	// dU[i][k] = d(u_i)/d(p_k) = (delta_ik - u_i u_k)/|p|
	var dU [3][3]float64
	for i := 0; i < 3; i++ {
		for k := 0; k < 3; k++ {
			dU[i][k] = -u[i] * u[k] / p
			if i == k {
				dU[i][k] += 1 / p
			}
		}
	}

	// ds/dp_k = sum_i dU[i][k] * d_i (dU is symmetric)
	var ds geom.Vec3
	for k := 0; k < 3; k++ {
		for i := 0; i < 3; i++ {
			ds[k] += dU[i][k] * d[i]
		}
	}

	// d(p x B)/dp for B = (0, 0, bz)
	dpxB := [3][3]float64{
		{0, bz, 0},
		{-bz, 0, 0},
		{0, 0, 0},
	}

	// da/dp = (Kappa q/|p|^2) d(pxB)/dp - (2/|p|) a u^T
	// dw/dp = (Kappa q/|p|)   d(pxB)/dp - (1/|p|) w u^T
	var dA, dW [3][3]float64
	ca := Kappa * q / (p * p)
	cw := Kappa * q / p
	for i := 0; i < 3; i++ {
		for k := 0; k < 3; k++ {
			dA[i][k] = ca*dpxB[i][k] - 2*a[i]*u[k]/p
			dW[i][k] = cw*dpxB[i][k] - w[i]*u[k]/p
		}
	}

	t := u.Add(a.Scale(s))
	j := mat.NewDense(6, 3, nil)
	for i := 0; i < 3; i++ {
		for k := 0; k < 3; k++ {
			// position rows: t ds^T + s dU + s^2/2 dA
			j.Set(i, k, t[i]*ds[k]+s*dU[i][k]+s*s/2*dA[i][k])
			// momentum rows: I + w ds^T + s dW
			v := w[i]*ds[k] + s*dW[i][k]
			if i == k {
				v++
			}
			j.Set(i+3, k, v)
		}
	}
	return j
}
