// Package track holds the measured state of a single charged-particle
// trajectory and its helical propagation in a uniform magnetic field.
//
// Units follow common detector conventions: momentum in GeV/c, position in
// centimeters, magnetic field in Tesla.
package track

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/vtxfit/internal/geom"
)

// Domain errors for track construction.
var (
	// ErrBadCharge indicates a charge outside {-1, 0, +1}.
	ErrBadCharge = errors.New("track: charge must be -1, 0 or +1")

	// ErrZeroMomentum indicates a momentum with vanishing magnitude.
	ErrZeroMomentum = errors.New("track: momentum must be nonzero")

	// ErrNotFinite indicates a NaN or Inf in the measured state.
	ErrNotFinite = errors.New("track: state contains NaN or Inf")

	// ErrBadCovariance indicates a covariance of the wrong shape or with
	// non-finite entries.
	ErrBadCovariance = errors.New("track: covariance must be a finite 6x6 matrix")
)

// StateDim is the dimension of the measured state (x, y, z, px, py, pz).
const StateDim = 6

// Track is one measured daughter: charge, momentum (GeV/c), position (cm) and
// the 6x6 measurement covariance over (x, y, z, px, py, pz).
type Track struct {
	Charge     int
	Momentum   geom.Vec3
	Position   geom.Vec3
	Covariance *mat.SymDense
}

// New validates the measured state and returns a Track holding a private copy
// of the covariance.
func New(charge int, momentum, position geom.Vec3, cov *mat.SymDense) (Track, error) {
	if charge < -1 || charge > 1 {
		return Track{}, fmt.Errorf("%w: got %d", ErrBadCharge, charge)
	}
	if !momentum.IsFinite() || !position.IsFinite() {
		return Track{}, ErrNotFinite
	}
	if momentum.Norm() == 0 {
		return Track{}, ErrZeroMomentum
	}
	if cov == nil || cov.SymmetricDim() != StateDim {
		return Track{}, ErrBadCovariance
	}
	c := mat.NewSymDense(StateDim, nil)
	for i := 0; i < StateDim; i++ {
		for j := i; j < StateDim; j++ {
			v := cov.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return Track{}, ErrBadCovariance
			}
			c.SetSym(i, j, v)
		}
	}
	return Track{Charge: charge, Momentum: momentum, Position: position, Covariance: c}, nil
}

// PositionCovariance returns the 3x3 position block of the measurement
// covariance.
func (t Track) PositionCovariance() *mat.SymDense {
	c := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			c.SetSym(i, j, t.Covariance.At(i, j))
		}
	}
	return c
}
