package track

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/vtxfit/internal/geom"
)

func diagCov(v float64) *mat.SymDense {
	c := mat.NewSymDense(StateDim, nil)
	for i := 0; i < StateDim; i++ {
		c.SetSym(i, i, v)
	}
	return c
}

func TestNewTrack(t *testing.T) {
	tr, err := New(1, geom.Vec3{1, 0, 0}, geom.Vec3{0, 0, 0}, diagCov(0.01))
	require.NoError(t, err)
	assert.Equal(t, 1, tr.Charge)
	assert.Equal(t, geom.Vec3{1, 0, 0}, tr.Momentum)
}

func TestNewTrackCopiesCovariance(t *testing.T) {
	cov := diagCov(0.01)
	tr, err := New(-1, geom.Vec3{0, 1, 0}, geom.Vec3{1, 1, 1}, cov)
	require.NoError(t, err)

	cov.SetSym(0, 0, 99)
	assert.Equal(t, 0.01, tr.Covariance.At(0, 0), "track must own its covariance")
}

func TestNewTrackValidation(t *testing.T) {
	good := diagCov(0.01)

	_, err := New(2, geom.Vec3{1, 0, 0}, geom.Vec3{}, good)
	assert.ErrorIs(t, err, ErrBadCharge)

	_, err = New(0, geom.Vec3{0, 0, 0}, geom.Vec3{}, good)
	assert.ErrorIs(t, err, ErrZeroMomentum)

	_, err = New(0, geom.Vec3{math.NaN(), 0, 0}, geom.Vec3{}, good)
	assert.ErrorIs(t, err, ErrNotFinite)

	_, err = New(0, geom.Vec3{1, 0, 0}, geom.Vec3{}, nil)
	assert.ErrorIs(t, err, ErrBadCovariance)

	_, err = New(0, geom.Vec3{1, 0, 0}, geom.Vec3{}, mat.NewSymDense(3, nil))
	assert.ErrorIs(t, err, ErrBadCovariance)

	bad := diagCov(0.01)
	bad.SetSym(2, 4, math.Inf(1))
	_, err = New(0, geom.Vec3{1, 0, 0}, geom.Vec3{}, bad)
	assert.ErrorIs(t, err, ErrBadCovariance)
}

func TestPositionCovariance(t *testing.T) {
	cov := diagCov(1)
	cov.SetSym(0, 1, 0.5)
	cov.SetSym(0, 3, 0.7) // position-momentum correlation, must not leak

	tr, err := New(0, geom.Vec3{1, 0, 0}, geom.Vec3{}, cov)
	require.NoError(t, err)

	pc := tr.PositionCovariance()
	require.Equal(t, 3, pc.SymmetricDim())
	assert.Equal(t, 0.5, pc.At(0, 1))
	assert.Equal(t, 1.0, pc.At(2, 2))
}
