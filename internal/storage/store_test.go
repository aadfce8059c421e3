package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/vtxfit/internal/fitter"
	"github.com/san-kum/vtxfit/internal/geom"
)

func fitResult(t *testing.T) (fitter.Config, *fitter.Result) {
	t.Helper()
	f, err := fitter.New(2)
	require.NoError(t, err)

	cov := mat.NewSymDense(6, nil)
	for i := 0; i < 3; i++ {
		cov.SetSym(i, i, 0.0025)
		cov.SetSym(i+3, i+3, 1e-4)
	}
	require.NoError(t, f.SetDaughter(0, 1, geom.Vec3{1, 1, 0}, geom.Vec3{1, 1, 0}, cov))
	require.NoError(t, f.SetDaughter(1, -1, geom.Vec3{1, -1, 0}, geom.Vec3{1, -1, 0}, cov))

	cfg := fitter.Config{Iterations: 3, MagneticField: 0}
	res, err := f.Fit(cfg)
	require.NoError(t, err)
	return cfg, res
}

func TestSaveLoadRoundtrip(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())

	cfg, res := fitResult(t)
	id, err := st.Save(cfg, res)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	meta, err := st.Load(id)
	require.NoError(t, err)
	assert.Equal(t, id, meta.ID)
	assert.Equal(t, 3, meta.Iterations)
	assert.Equal(t, 2, meta.NumDaughters)
	assert.Equal(t, res.Chi2, meta.Chi2)
	assert.Equal(t, res.NDF, meta.NDF)
	assert.Len(t, meta.Deltas, 3)
}

func TestSaveWritesDaughterCSV(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)
	require.NoError(t, st.Init())

	cfg, res := fitResult(t)
	id, err := st.Save(cfg, res)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, id, "daughters.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "daughter,px,py,pz")
}

func TestList(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())

	runs, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, runs)

	cfg, res := fitResult(t)
	_, err = st.Save(cfg, res)
	require.NoError(t, err)
	_, err = st.Save(cfg, res)
	require.NoError(t, err)

	runs, err = st.List()
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	assert.True(t, !runs[1].Timestamp.Before(runs[0].Timestamp))
}

func TestListMissingDir(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "never-created"))
	runs, err := st.List()
	require.NoError(t, err)
	assert.Nil(t, runs)
}

func TestLoadUnknownRun(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())
	_, err := st.Load("fit_unknown")
	assert.Error(t, err)
}
