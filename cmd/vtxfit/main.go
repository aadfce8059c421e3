package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/san-kum/vtxfit/internal/config"
	"github.com/san-kum/vtxfit/internal/fitter"
	"github.com/san-kum/vtxfit/internal/storage"
	"github.com/san-kum/vtxfit/internal/tui"
	"github.com/san-kum/vtxfit/internal/viz"
)

var (
	dataDir    string
	iterations int
	bfield     float64
	preset     string
	showPlot   bool
	live       bool
	saveRun    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vtxfit",
		Short: "common vertex fitting for charged particle tracks",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".vtxfit", "data directory")

	fitCmd := &cobra.Command{
		Use:   "fit [config.yaml]",
		Short: "fit a common vertex to the configured daughters",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runFit,
	}
	fitCmd.Flags().IntVar(&iterations, "iterations", config.DefaultIterations, "relinearization passes")
	fitCmd.Flags().Float64Var(&bfield, "bfield", config.DefaultMagneticField, "magnetic field [T]")
	fitCmd.Flags().StringVar(&preset, "preset", "", "use a built-in topology instead of a file")
	fitCmd.Flags().BoolVar(&showPlot, "plot", false, "plot convergence after the fit")
	fitCmd.Flags().BoolVar(&live, "live", false, "watch the iterations converge")
	fitCmd.Flags().BoolVar(&saveRun, "save", false, "store the result under the data directory")

	initCmd := &cobra.Command{
		Use:   "init [file]",
		Short: "write a sample fit configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GetPreset("two-prong")
			if err := config.Save(args[0], cfg); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", args[0])
			return nil
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in topologies",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Printf("%-12s %d daughters, %d iterations, %.1f T\n",
					name, len(p.Daughters), p.Iterations, p.MagneticField)
			}
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored fits",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show a stored fit",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	rootCmd.AddCommand(fitCmd, initCmd, presetsCmd, listCmd, showCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runFit(cmd *cobra.Command, args []string) error {
	var cfg *config.Config
	switch {
	case preset != "":
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	case len(args) == 1:
		var err error
		cfg, err = config.Load(args[0])
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	default:
		return fmt.Errorf("either a config file or --preset is required")
	}

	// CLI flags override the file.
	if cmd.Flags().Changed("iterations") {
		cfg.Iterations = iterations
	}
	if cmd.Flags().Changed("bfield") {
		cfg.MagneticField = bfield
	}

	f, err := cfg.Build()
	if err != nil {
		return err
	}
	fitCfg := cfg.FitConfig()

	var res *fitter.Result
	if live {
		res, err = tui.Run(f, fitCfg)
	} else {
		res, err = f.Fit(fitCfg)
	}
	if err != nil {
		return err
	}

	fmt.Println(viz.RenderResult(res))

	if showPlot {
		fmt.Println()
		fmt.Println(viz.ConvergencePlot(res.Deltas))
		fmt.Println()
		fmt.Println(viz.Chi2Plot(res.Chi2History))
	}

	if saveRun {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		id, err := st.Save(fitCfg, res)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", id)
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no stored fits")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("%s  %s  %d daughters  chi2/ndf %.4f/%d\n",
			r.ID, r.Timestamp.Format("2006-01-02 15:04:05"), r.NumDaughters, r.Chi2, r.NDF)
	}
	return nil
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run:       %s\n", meta.ID)
	fmt.Printf("time:      %s\n", meta.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Printf("daughters: %d\n", meta.NumDaughters)
	fmt.Printf("field:     %.2f T, %d iterations\n", meta.MagneticField, meta.Iterations)
	fmt.Printf("vertex:    (%.5f, %.5f, %.5f) cm\n", meta.Vertex[0], meta.Vertex[1], meta.Vertex[2])
	fmt.Printf("chi2/ndf:  %.4f / %d\n", meta.Chi2, meta.NDF)

	if len(meta.Deltas) > 1 {
		fmt.Println()
		fmt.Println(viz.ConvergencePlot(meta.Deltas))
	}
	return nil
}
