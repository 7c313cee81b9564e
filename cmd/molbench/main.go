// Command molbench runs the molgeo core on synthetic geometry and reports
// timings.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hupe1980/molgeo"
	"github.com/hupe1980/molgeo/element"
	"github.com/hupe1980/molgeo/internal/simd"
	"github.com/hupe1980/molgeo/testutil"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "molbench",
		Short: "Benchmark the molgeo spatial indexing core",
		Long: `molbench generates atoms in memory and runs the molgeo core on them.

Shapes:
  • lattice    simple cubic lattice with the given spacing
  • random     uniform cloud with the density of the lattice
  • clustered  Gaussian clusters inside the same volume`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "YAML config file")
	rootCmd.PersistentFlags().Int("workers", 0, "Worker pool size (0 = config value or GOMAXPROCS)")
	rootCmd.PersistentFlags().String("policy", "", "Reorder policy: auto, octree, grid (empty = config value)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("json", false, "Log as JSON")
	rootCmd.PersistentFlags().Int("atoms", 100_000, "Number of atoms")
	rootCmd.PersistentFlags().String("shape", "lattice", "Geometry: lattice, random, clustered")
	rootCmd.PersistentFlags().Float32("spacing", 0.154, "Lattice spacing in nm")
	rootCmd.PersistentFlags().Int64("seed", 1, "Random seed")
	rootCmd.PersistentFlags().Int("repeat", 3, "Number of timed runs")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Print the selected SIMD kernels",
		Run: func(cmd *cobra.Command, args []string) {
			info := simd.RuntimeInfo()
			fmt.Printf("isa=%s kernels=%s overridden=%v vek_accelerated=%v vek_features=%s\n",
				info.ISA, info.Kernels, info.Overridden, info.VekAccelerated, strings.Join(info.VekFeatures, ","))
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "reorder",
		Short: "Time spatial reordering",
		RunE:  runReorder,
	})

	matchCmd := &cobra.Command{
		Use:   "match",
		Short: "Time a self-match",
		RunE:  runMatch,
	}
	matchCmd.Flags().Float32("radius", 0, "Absolute cutoff in nm (0 = use --scale)")
	matchCmd.Flags().Float32("scale", 1.5, "Covalent bond length scale")
	matchCmd.Flags().Int("max-neighbors", 16, "Neighbor list cap (< 254)")
	rootCmd.AddCommand(matchCmd)

	connectCmd := &cobra.Command{
		Use:   "connect",
		Short: "Infer bonds with a self-match and time the connectivity map",
		RunE:  runConnect,
	}
	connectCmd.Flags().Float32("scale", 1.2, "Covalent bond length scale for bond inference")
	rootCmd.AddCommand(connectCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newEngine(cmd *cobra.Command) (*molgeo.Engine, *molgeo.Logger, error) {
	flags := cmd.Flags()
	configPath, _ := flags.GetString("config")
	workers, _ := flags.GetInt("workers")
	policy, _ := flags.GetString("policy")
	levelName, _ := flags.GetString("log-level")
	asJSON, _ := flags.GetBool("json")

	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", levelName, err)
	}
	logger := molgeo.NewTextLogger(level)
	if asJSON {
		logger = molgeo.NewJSONLogger(level)
	}

	cfg := molgeo.DefaultConfig()
	if configPath != "" {
		loaded, err := molgeo.LoadConfig(configPath)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	}

	opts := []molgeo.Option{molgeo.WithConfig(cfg), molgeo.WithLogger(logger)}
	if workers > 0 {
		opts = append(opts, molgeo.WithWorkers(workers))
	}
	if policy != "" {
		var p molgeo.ReorderPolicy
		if err := p.UnmarshalText([]byte(policy)); err != nil {
			return nil, nil, err
		}
		opts = append(opts, molgeo.WithReorderPolicy(p))
	}

	eng, err := molgeo.New(opts...)
	if err != nil {
		return nil, nil, err
	}
	return eng, logger, nil
}

// generate builds the carbon atoms selected by the shape flags.
func generate(cmd *cobra.Command) ([]molgeo.Atom, error) {
	flags := cmd.Flags()
	n, _ := flags.GetInt("atoms")
	shape, _ := flags.GetString("shape")
	spacing, _ := flags.GetFloat32("spacing")
	seed, _ := flags.GetInt64("seed")

	if n <= 0 {
		return nil, fmt.Errorf("--atoms must be positive, got %d", n)
	}

	side := 1
	for side*side*side < n {
		side++
	}
	extent := float32(side) * spacing
	rng := testutil.NewRNG(seed)

	var xs, ys, zs []float32
	switch shape {
	case "lattice":
		xs, ys, zs = testutil.Lattice(side, side, side, spacing)
		xs, ys, zs = xs[:n], ys[:n], zs[:n]
		rng.Shuffle(xs, ys, zs)
	case "random":
		xs, ys, zs = rng.UniformPoints(n, extent)
	case "clustered":
		xs, ys, zs = rng.ClusteredPoints(n, max(1, n/5000), extent/20, extent)
	default:
		return nil, fmt.Errorf("unknown shape %q", shape)
	}

	atoms := make([]molgeo.Atom, n)
	for i := range atoms {
		atoms[i] = molgeo.Atom{Position: molgeo.Position{xs[i], ys[i], zs[i]}, Element: element.Carbon}
	}
	return atoms, nil
}

// timed runs fn repeat times and returns the fastest run.
func timed(repeat int, fn func() error) (time.Duration, error) {
	best := time.Duration(0)
	for i := 0; i < max(1, repeat); i++ {
		start := time.Now()
		if err := fn(); err != nil {
			return 0, err
		}
		if d := time.Since(start); best == 0 || d < best {
			best = d
		}
	}
	return best, nil
}

func runReorder(cmd *cobra.Command, args []string) error {
	eng, logger, err := newEngine(cmd)
	if err != nil {
		return err
	}
	defer eng.Close()

	atoms, err := generate(cmd)
	if err != nil {
		return err
	}
	repeat, _ := cmd.Flags().GetInt("repeat")

	var perm molgeo.Permutation
	best, err := timed(repeat, func() error {
		perm, err = eng.ReorderAtoms(atoms)
		return err
	})
	if err != nil {
		return err
	}

	logger.Info("reorder",
		"atoms", len(atoms),
		"valid", perm.Valid(len(atoms)),
		"best", best,
		"atoms_per_sec", perSecond(len(atoms), best),
	)
	return nil
}

func runMatch(cmd *cobra.Command, args []string) error {
	eng, logger, err := newEngine(cmd)
	if err != nil {
		return err
	}
	defer eng.Close()

	atoms, err := generate(cmd)
	if err != nil {
		return err
	}
	repeat, _ := cmd.Flags().GetInt("repeat")
	radius, _ := cmd.Flags().GetFloat32("radius")
	scale, _ := cmd.Flags().GetFloat32("scale")
	maxNeighbors, _ := cmd.Flags().GetInt("max-neighbors")

	if maxNeighbors >= molgeo.MaxNeighborsLimit {
		return fmt.Errorf("--max-neighbors must be below %d", molgeo.MaxNeighborsLimit)
	}
	cutoff := molgeo.CovalentBondLength(scale)
	if radius > 0 {
		cutoff = molgeo.AbsoluteRadius(radius)
	}

	var res *molgeo.MatchResult
	best, err := timed(repeat, func() error {
		res, err = eng.Match(atoms, nil, cutoff, maxNeighbors)
		return err
	})
	if err != nil {
		return err
	}

	logger.Info("match",
		"atoms", len(atoms),
		"cutoff", cutoff.String(),
		"pairs", res.Pairs(),
		"truncated", res.Truncated.GetCardinality(),
		"best", best,
		"atoms_per_sec", perSecond(len(atoms), best),
		"peak_scratch_bytes", eng.PeakScratchMemory(),
	)
	return nil
}

func runConnect(cmd *cobra.Command, args []string) error {
	eng, logger, err := newEngine(cmd)
	if err != nil {
		return err
	}
	defer eng.Close()

	atoms, err := generate(cmd)
	if err != nil {
		return err
	}
	repeat, _ := cmd.Flags().GetInt("repeat")
	scale, _ := cmd.Flags().GetFloat32("scale")

	res, err := eng.Match(atoms, nil, molgeo.CovalentBondLength(scale), molgeo.MaxBondedNeighbors)
	if err != nil {
		return err
	}
	var bonds []molgeo.Bond
	for i := range res.Len() {
		for _, j := range res.Neighbors(i) {
			if uint32(i) < j {
				bonds = append(bonds, molgeo.Bond{uint32(i), j})
			}
		}
	}

	var cm *molgeo.ConnectivityMap
	best, err := timed(repeat, func() error {
		cm, err = eng.BuildConnectivityMap(len(atoms), bonds)
		return err
	})
	if err != nil {
		return err
	}

	logger.Info("connect",
		"atoms", len(atoms),
		"bonds", len(bonds),
		"overflowed", cm.Overflowed().GetCardinality(),
		"best", best,
		"bonds_per_sec", perSecond(len(bonds), best),
	)
	return nil
}

func perSecond(n int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}
