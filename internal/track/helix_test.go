package track

import (
	"math"
	"testing"

	"github.com/san-kum/vtxfit/internal/geom"
)

func TestPropagateNeutralIsStraightLine(t *testing.T) {
	vertex := geom.Vec3{0, 0, 0}
	mom := geom.Vec3{1, 1, 0}
	point := geom.Vec3{2, 0, 0}

	prop := Propagate(0, mom, vertex, point, 1.5)

	// A neutral track ignores the field: closest approach of the line
	// x(s) = s*(1,1,0)/sqrt(2) to (2,0,0) is at (1,1,0).
	want := geom.Vec3{1, 1, 0}
	if prop.Position.Sub(want).Norm() > 1e-12 {
		t.Errorf("expected straight-line point %v, got %v", want, prop.Position)
	}
	if prop.Momentum.Sub(mom).Norm() > 1e-12 {
		t.Errorf("neutral momentum should be unchanged, got %v", prop.Momentum)
	}
}

func TestPropagateZeroFieldIsStraightLine(t *testing.T) {
	vertex := geom.Vec3{0.5, -0.5, 1}
	mom := geom.Vec3{0, 0, 2}
	point := geom.Vec3{0.5, -0.5, 4}

	prop := Propagate(1, mom, vertex, point, 0)

	if prop.Position.Sub(point).Norm() > 1e-12 {
		t.Errorf("expected on-line point %v, got %v", point, prop.Position)
	}
	if math.Abs(prop.ArcLength-3) > 1e-12 {
		t.Errorf("expected arc length 3, got %f", prop.ArcLength)
	}
	if prop.Momentum.Sub(mom).Norm() > 1e-12 {
		t.Errorf("zero-field momentum should be unchanged, got %v", prop.Momentum)
	}
}

func TestPropagateCurvatureDirection(t *testing.T) {
	// Positive charge moving along +x in a +z field bends toward -y
	// (dp/ds ~ q * p x B), negative charge toward +y.
	vertex := geom.Vec3{0, 0, 0}
	mom := geom.Vec3{1, 0, 0}
	point := geom.Vec3{10, 0, 0}

	plus := Propagate(1, mom, vertex, point, 1.5)
	minus := Propagate(-1, mom, vertex, point, 1.5)

	if plus.Momentum[1] >= 0 {
		t.Errorf("positive charge should bend toward -y, got py=%e", plus.Momentum[1])
	}
	if minus.Momentum[1] <= 0 {
		t.Errorf("negative charge should bend toward +y, got py=%e", minus.Momentum[1])
	}
	if math.Abs(plus.Momentum[1]+minus.Momentum[1]) > 1e-12 {
		t.Error("opposite charges should bend symmetrically")
	}
}

func TestPropagateCurvatureMagnitude(t *testing.T) {
	// After transverse arc length s the momentum has rotated by roughly
	// s/R with 1/R = Kappa*B/pT.
	pt := 1.0
	bz := 1.5
	vertex := geom.Vec3{0, 0, 0}
	mom := geom.Vec3{pt, 0, 0}
	point := geom.Vec3{5, 0, 0}

	prop := Propagate(1, mom, vertex, point, bz)

	wantDphi := prop.ArcLength * Kappa * bz / pt
	gotDphi := math.Abs(prop.Momentum[1]) / pt
	if math.Abs(gotDphi-wantDphi) > 1e-9 {
		t.Errorf("deflection angle: got %e, want %e", gotDphi, wantDphi)
	}
}

// stateOf flattens a propagation into the 6-dim (pos, mom) state.
func stateOf(p Propagation) [6]float64 {
	return [6]float64{
		p.Position[0], p.Position[1], p.Position[2],
		p.Momentum[0], p.Momentum[1], p.Momentum[2],
	}
}

func checkJacobian(t *testing.T, charge int, mom, vertex, point geom.Vec3, bz float64) {
	t.Helper()
	const h = 1e-6
	const tol = 1e-5

	prop := Propagate(charge, mom, vertex, point, bz)

	for k := 0; k < 3; k++ {
		vp, vm := vertex, vertex
		vp[k] += h
		vm[k] -= h
		up := stateOf(Propagate(charge, mom, vp, point, bz))
		um := stateOf(Propagate(charge, mom, vm, point, bz))
		for i := 0; i < 6; i++ {
			fd := (up[i] - um[i]) / (2 * h)
			if math.Abs(fd-prop.JVertex.At(i, k)) > tol {
				t.Errorf("JVertex[%d][%d]: analytic %e, numeric %e", i, k, prop.JVertex.At(i, k), fd)
			}
		}

		qp, qm := mom, mom
		qp[k] += h
		qm[k] -= h
		up = stateOf(Propagate(charge, qp, vertex, point, bz))
		um = stateOf(Propagate(charge, qm, vertex, point, bz))
		for i := 0; i < 6; i++ {
			fd := (up[i] - um[i]) / (2 * h)
			if math.Abs(fd-prop.JMomentum.At(i, k)) > tol {
				t.Errorf("JMomentum[%d][%d]: analytic %e, numeric %e", i, k, prop.JMomentum.At(i, k), fd)
			}
		}
	}
}

func TestJacobiansMatchFiniteDifferences(t *testing.T) {
	t.Run("curved", func(t *testing.T) {
		checkJacobian(t, 1,
			geom.Vec3{0.5, 0.3, 0.2},
			geom.Vec3{0.1, -0.2, 0.05},
			geom.Vec3{1.0, 0.8, -0.3},
			1.5)
	})
	t.Run("negative charge", func(t *testing.T) {
		checkJacobian(t, -1,
			geom.Vec3{-0.4, 0.9, -0.1},
			geom.Vec3{0, 0, 0},
			geom.Vec3{0.5, 0.5, 0.5},
			1.5)
	})
	t.Run("straight", func(t *testing.T) {
		checkJacobian(t, 0,
			geom.Vec3{1, 0.2, 0.1},
			geom.Vec3{0.2, 0.1, 0},
			geom.Vec3{2, 1, 1},
			1.5)
	})
	t.Run("zero field", func(t *testing.T) {
		checkJacobian(t, 1,
			geom.Vec3{1, 0.2, 0.1},
			geom.Vec3{0.2, 0.1, 0},
			geom.Vec3{2, 1, 1},
			0)
	})
}
