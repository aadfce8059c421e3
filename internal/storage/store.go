// Package storage persists fit results under a data directory, one
// subdirectory per run: metadata as JSON plus the fitted daughters as CSV.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/vtxfit/internal/fitter"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunMetadata summarizes one stored fit.
type RunMetadata struct {
	ID            string     `json:"id"`
	Timestamp     time.Time  `json:"timestamp"`
	Iterations    int        `json:"iterations"`
	MagneticField float64    `json:"magnetic_field"`
	NumDaughters  int        `json:"num_daughters"`
	Vertex        [3]float64 `json:"vertex"`
	Chi2          float64    `json:"chi2"`
	NDF           int        `json:"ndf"`
	Deltas        []float64  `json:"deltas"`
	Chi2History   []float64  `json:"chi2_history"`
}

// Save writes the result and returns the generated run id.
func (s *Store) Save(cfg fitter.Config, result *fitter.Result) (string, error) {
	runID := fmt.Sprintf("fit_%d", time.Now().UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:            runID,
		Timestamp:     time.Now(),
		Iterations:    cfg.Iterations,
		MagneticField: cfg.MagneticField,
		NumDaughters:  len(result.Daughters),
		Vertex:        [3]float64(result.Vertex),
		Chi2:          result.Chi2,
		NDF:           result.NDF,
		Deltas:        result.Deltas,
		Chi2History:   result.Chi2History,
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()
	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	if err := s.writeDaughters(runDir, result); err != nil {
		return "", err
	}
	return runID, nil
}

func (s *Store) writeDaughters(runDir string, result *fitter.Result) error {
	f, err := os.Create(filepath.Join(runDir, "daughters.csv"))
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"daughter", "px", "py", "pz", "var_px", "var_py", "var_pz"}
	if err := w.Write(header); err != nil {
		return err
	}
	for i, d := range result.Daughters {
		row := []string{
			strconv.Itoa(i),
			formatFloat(d.Momentum[0]),
			formatFloat(d.Momentum[1]),
			formatFloat(d.Momentum[2]),
			formatFloat(d.Covariance.At(3, 3)),
			formatFloat(d.Covariance.At(4, 4)),
			formatFloat(d.Covariance.At(5, 5)),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// Load reads one run's metadata.
func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// List returns all stored runs, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var runs []RunMetadata
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := s.Load(e.Name())
		if err != nil {
			continue // skip partial or foreign directories
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
