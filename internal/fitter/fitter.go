// Package fitter estimates a common decay vertex and refined momenta for a
// set of measured daughter trajectories, using an iterated, linearized
// least-squares fit on helical tracks in a uniform magnetic field.
//
// Each fitter instance owns its daughters, vertex estimate and result.
// Separate instances are independent and may be driven from separate
// goroutines; a single instance is not safe for concurrent use.
package fitter

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/vtxfit/internal/geom"
	"github.com/san-kum/vtxfit/internal/track"
)

// Config controls a single Fit call.
type Config struct {
	// Iterations is the fixed number of relinearization passes. There is
	// no adaptive convergence check; the per-iteration vertex shifts are
	// reported on the Result so a caller can layer its own stopping rule
	// through FitWithObserver.
	Iterations int

	// MagneticField is the uniform solenoid field in Tesla, along +z.
	MagneticField float64
}

// DefaultConfig matches the conventional setup: three passes at 1.5 T.
func DefaultConfig() Config {
	return Config{Iterations: 3, MagneticField: 1.5}
}

// Progress is delivered to fit observers after every completed iteration.
type Progress struct {
	Iteration int
	Vertex    geom.Vec3
	Delta     float64 // |vertex shift| of this iteration, cm
	Chi2      float64
}

// Fitter fits a common vertex to a fixed number of daughters. The daughter
// count is set at construction; daughters may be overwritten between fits.
type Fitter struct {
	daughters []track.Track
	assigned  []bool
	result    *Result
}

// New creates a fitter for n daughters. A vertex needs at least one track;
// with a single track the fit degenerates to the track's own closest
// approach and zero degrees of freedom.
func New(n int) (*Fitter, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: daughter count must be at least 1, got %d", ErrInvalidArgument, n)
	}
	return &Fitter{
		daughters: make([]track.Track, n),
		assigned:  make([]bool, n),
	}, nil
}

// NumDaughters returns the fixed daughter count.
func (f *Fitter) NumDaughters() int {
	return len(f.daughters)
}

// SetDaughter stores the measured state of daughter i. The covariance is a
// 6x6 matrix over (x, y, z, px, py, pz) and is copied. Overwriting a daughter
// invalidates any previous fit result.
func (f *Fitter) SetDaughter(i int, charge int, momentum, position geom.Vec3, cov *mat.SymDense) error {
	if i < 0 || i >= len(f.daughters) {
		return fmt.Errorf("%w: daughter index %d out of range [0,%d)", ErrInvalidArgument, i, len(f.daughters))
	}
	tr, err := track.New(charge, momentum, position, cov)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	f.daughters[i] = tr
	f.assigned[i] = true
	f.result = nil
	return nil
}

// Fit runs the configured number of relinearization passes and stores the
// result. On a fresh fitter the vertex is seeded from the weighted mean of
// the daughter positions; fitting again continues from the previous result,
// which converges toward a fixed point as iterations accumulate. A failed
// fit leaves the fitter unfitted.
func (f *Fitter) Fit(cfg Config) (*Result, error) {
	return f.FitWithObserver(cfg, nil)
}

// FitWithObserver is Fit with a per-iteration callback. Returning false from
// the observer stops further iterations; the passes completed so far form
// the result.
func (f *Fitter) FitWithObserver(cfg Config, observe func(Progress) bool) (*Result, error) {
	if err := f.validate(cfg); err != nil {
		return nil, err
	}

	vertex, momenta, err := f.start()
	if err != nil {
		return nil, err
	}
	f.result = nil

	var last *pass
	deltas := make([]float64, 0, cfg.Iterations)
	chi2s := make([]float64, 0, cfg.Iterations)

	for it := 0; it < cfg.Iterations; it++ {
		p, err := runPass(f.daughters, vertex, momenta, cfg.MagneticField, it)
		if err != nil {
			return nil, err
		}
		vertex = p.vertex
		momenta = p.momenta
		last = p
		deltas = append(deltas, p.delta)
		chi2s = append(chi2s, p.chi2)

		if observe != nil && !observe(Progress{Iteration: it, Vertex: p.vertex, Delta: p.delta, Chi2: p.chi2}) {
			break
		}
	}

	f.result = newResult(last, len(f.daughters), deltas, chi2s)
	return f.result, nil
}

// Reset discards the fit result so the next Fit reseeds from the measured
// daughter positions. The daughters themselves are kept.
func (f *Fitter) Reset() {
	f.result = nil
}

func (f *Fitter) validate(cfg Config) error {
	if cfg.Iterations < 1 {
		return fmt.Errorf("%w: iterations must be at least 1, got %d", ErrInvalidArgument, cfg.Iterations)
	}
	if math.IsNaN(cfg.MagneticField) || math.IsInf(cfg.MagneticField, 0) {
		return fmt.Errorf("%w: magnetic field must be finite", ErrInvalidArgument)
	}
	for i, ok := range f.assigned {
		if !ok {
			return fmt.Errorf("%w: daughter %d has not been set", ErrInvalidArgument, i)
		}
	}
	return nil
}

// start picks the expansion point: the previous result when one exists,
// otherwise the weighted-mean seed and the measured momenta.
func (f *Fitter) start() (geom.Vec3, []geom.Vec3, error) {
	if f.result != nil {
		momenta := make([]geom.Vec3, len(f.daughters))
		for i, d := range f.result.Daughters {
			momenta[i] = d.Momentum
		}
		return f.result.Vertex, momenta, nil
	}

	vertex, err := seedVertex(f.daughters)
	if err != nil {
		return geom.Vec3{}, nil, err
	}
	momenta := make([]geom.Vec3, len(f.daughters))
	for i, d := range f.daughters {
		momenta[i] = d.Momentum
	}
	return vertex, momenta, nil
}

// Vertex returns the fitted vertex position.
func (f *Fitter) Vertex() (geom.Vec3, error) {
	if f.result == nil {
		return geom.Vec3{}, ErrNotFitted
	}
	return f.result.Vertex, nil
}

// Chi2 returns the total chi-square of the last pass.
func (f *Fitter) Chi2() (float64, error) {
	if f.result == nil {
		return 0, ErrNotFitted
	}
	return f.result.Chi2, nil
}

// NDF returns the degrees of freedom: two constraints per daughter minus the
// three vertex parameters, clamped at zero.
func (f *Fitter) NDF() (int, error) {
	if f.result == nil {
		return 0, ErrNotFitted
	}
	return f.result.NDF, nil
}

// DaughterMomentum returns the fitted momentum of daughter i.
func (f *Fitter) DaughterMomentum(i int) (geom.Vec3, error) {
	if f.result == nil {
		return geom.Vec3{}, ErrNotFitted
	}
	if i < 0 || i >= len(f.result.Daughters) {
		return geom.Vec3{}, fmt.Errorf("%w: daughter index %d out of range [0,%d)", ErrInvalidArgument, i, len(f.result.Daughters))
	}
	return f.result.Daughters[i].Momentum, nil
}

// DaughterCovariance returns the fitted 6x6 covariance of daughter i over
// (vertex position, momentum).
func (f *Fitter) DaughterCovariance(i int) (*mat.SymDense, error) {
	if f.result == nil {
		return nil, ErrNotFitted
	}
	if i < 0 || i >= len(f.result.Daughters) {
		return nil, fmt.Errorf("%w: daughter index %d out of range [0,%d)", ErrInvalidArgument, i, len(f.result.Daughters))
	}
	return f.result.Daughters[i].Covariance, nil
}
