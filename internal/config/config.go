// Package config reads and writes yaml descriptions of a vertex fit: the
// measured daughters plus the fit settings.
package config

import (
	"errors"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/vtxfit/internal/fitter"
	"github.com/san-kum/vtxfit/internal/geom"
)

const (
	DefaultIterations    = 3
	DefaultMagneticField = 1.5

	// Default measurement spreads when a daughter omits its covariance:
	// 500 um on position, 10 MeV on momentum.
	DefaultPositionVar = 0.0025
	DefaultMomentumVar = 1e-4
)

// ErrBadCovariance indicates a covariance list of unsupported length.
var ErrBadCovariance = errors.New("config: covariance must have 6 (diagonal) or 36 (row-major) entries")

// Daughter is one measured track. Covariance is optional and may be given
// either as the 6 diagonal variances or as the full 6x6 matrix in row-major
// order, over (x, y, z, px, py, pz).
type Daughter struct {
	Charge     int        `yaml:"charge"`
	Momentum   [3]float64 `yaml:"momentum"`
	Position   [3]float64 `yaml:"position"`
	Covariance []float64  `yaml:"covariance,omitempty"`
}

// Config describes a complete fit setup.
type Config struct {
	Daughters     []Daughter `yaml:"daughters"`
	Iterations    int        `yaml:"iterations"`
	MagneticField float64    `yaml:"magnetic_field"`
}

func DefaultConfig() *Config {
	return &Config{
		Iterations:    DefaultIterations,
		MagneticField: DefaultMagneticField,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Iterations < 1 {
		cfg.Iterations = DefaultIterations
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// CovarianceMatrix expands the daughter's covariance entry into a 6x6
// symmetric matrix, falling back to the package defaults when omitted.
func (d Daughter) CovarianceMatrix() (*mat.SymDense, error) {
	c := mat.NewSymDense(6, nil)
	switch len(d.Covariance) {
	case 0:
		for i := 0; i < 3; i++ {
			c.SetSym(i, i, DefaultPositionVar)
			c.SetSym(i+3, i+3, DefaultMomentumVar)
		}
	case 6:
		for i, v := range d.Covariance {
			c.SetSym(i, i, v)
		}
	case 36:
		for i := 0; i < 6; i++ {
			for j := i; j < 6; j++ {
				c.SetSym(i, j, (d.Covariance[i*6+j]+d.Covariance[j*6+i])/2)
			}
		}
	default:
		return nil, fmt.Errorf("%w: got %d", ErrBadCovariance, len(d.Covariance))
	}
	return c, nil
}

// FitConfig extracts the fitter settings.
func (c *Config) FitConfig() fitter.Config {
	return fitter.Config{Iterations: c.Iterations, MagneticField: c.MagneticField}
}

// Build constructs a fitter loaded with the configured daughters.
func (c *Config) Build() (*fitter.Fitter, error) {
	f, err := fitter.New(len(c.Daughters))
	if err != nil {
		return nil, err
	}
	for i, d := range c.Daughters {
		cov, err := d.CovarianceMatrix()
		if err != nil {
			return nil, fmt.Errorf("daughter %d: %w", i, err)
		}
		if err := f.SetDaughter(i, d.Charge, geom.Vec3(d.Momentum), geom.Vec3(d.Position), cov); err != nil {
			return nil, fmt.Errorf("daughter %d: %w", i, err)
		}
	}
	return f, nil
}
