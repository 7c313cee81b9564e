package molgeo

import (
	"fmt"
	"os"
	"time"

	"github.com/hupe1980/molgeo/internal/connectivity"
	"github.com/hupe1980/molgeo/internal/reorder"
	"gopkg.in/yaml.v3"
)

// ReorderPolicy selects the granularity of the spatial sort.
type ReorderPolicy = reorder.Policy

// Reorder policies.
const (
	// PolicyAuto sorts with a single octree below Config.OctreeThreshold
	// atoms and with the parallel grid+octree hybrid above it.
	PolicyAuto = reorder.PolicyAuto
	// PolicyOctree always runs one single-threaded octree descent.
	PolicyOctree = reorder.PolicyOctree
	// PolicyGrid always runs the grid+octree hybrid.
	PolicyGrid = reorder.PolicyGrid
)

// Config holds the tuning knobs of an Engine.
//
// Example YAML:
//
//	workers: 8
//	reorder_policy: auto
//	octree_threshold: 10000
//	grid_cell_atoms: 512
//	target_task_latency: 20us
//	min_split_latency: 2.5us
//	latency_per_atom_level: 2.5
//	bond_chunk_size: 4096
//	scratch_memory_limit: 1073741824
type Config struct {
	// Workers is the size of the worker pool. 0 selects GOMAXPROCS.
	Workers int `yaml:"workers"`

	// ReorderPolicy selects octree, grid or automatic granularity.
	ReorderPolicy ReorderPolicy `yaml:"reorder_policy"`

	// OctreeThreshold is the atom count from which PolicyAuto uses the grid.
	OctreeThreshold int `yaml:"octree_threshold"`

	// GridCellAtoms is the average number of atoms per occupied grid cell.
	GridCellAtoms int `yaml:"grid_cell_atoms"`

	// TargetTaskLatency is the desired latency of one parallel octree task.
	TargetTaskLatency time.Duration `yaml:"target_task_latency"`

	// MinSplitLatency is the node latency below which the work splitter is
	// not consulted.
	MinSplitLatency time.Duration `yaml:"min_split_latency"`

	// LatencyPerAtomLevel is the estimated cost in nanoseconds of moving one
	// atom down one octree level.
	LatencyPerAtomLevel float64 `yaml:"latency_per_atom_level"`

	// BondChunkSize is the number of bonds one connectivity task handles.
	BondChunkSize int `yaml:"bond_chunk_size"`

	// ScratchMemoryLimit bounds the scratch memory, in bytes, of all
	// in-flight calls. 0 disables the limit.
	ScratchMemoryLimit int64 `yaml:"scratch_memory_limit"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	rc := reorder.DefaultConfig()
	return Config{
		Workers:             0,
		ReorderPolicy:       rc.Policy,
		OctreeThreshold:     rc.OctreeThreshold,
		GridCellAtoms:       rc.GridCellAtoms,
		TargetTaskLatency:   rc.TargetTaskLatency,
		MinSplitLatency:     rc.MinSplitLatency,
		LatencyPerAtomLevel: rc.LatencyPerAtomLevel,
		BondChunkSize:       connectivity.DefaultChunkSize,
	}
}

// LoadConfig reads a YAML configuration file. Keys missing from the file
// keep their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses a YAML configuration. Keys missing from data keep
// their defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: failed to parse config: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate returns an error wrapping ErrInvalidConfig when a knob is out
// of range.
func (c *Config) Validate() error {
	switch {
	case c.Workers < 0:
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidConfig, c.Workers)
	case c.ReorderPolicy > PolicyGrid:
		return fmt.Errorf("%w: unknown reorder policy %d", ErrInvalidConfig, c.ReorderPolicy)
	case c.OctreeThreshold <= 0:
		return fmt.Errorf("%w: octree_threshold must be positive, got %d", ErrInvalidConfig, c.OctreeThreshold)
	case c.GridCellAtoms <= 0:
		return fmt.Errorf("%w: grid_cell_atoms must be positive, got %d", ErrInvalidConfig, c.GridCellAtoms)
	case c.TargetTaskLatency <= 0:
		return fmt.Errorf("%w: target_task_latency must be positive, got %s", ErrInvalidConfig, c.TargetTaskLatency)
	case c.MinSplitLatency < 0:
		return fmt.Errorf("%w: min_split_latency must not be negative, got %s", ErrInvalidConfig, c.MinSplitLatency)
	case !(c.LatencyPerAtomLevel > 0):
		return fmt.Errorf("%w: latency_per_atom_level must be positive, got %v", ErrInvalidConfig, c.LatencyPerAtomLevel)
	case c.BondChunkSize <= 0:
		return fmt.Errorf("%w: bond_chunk_size must be positive, got %d", ErrInvalidConfig, c.BondChunkSize)
	case c.ScratchMemoryLimit < 0:
		return fmt.Errorf("%w: scratch_memory_limit must not be negative, got %d", ErrInvalidConfig, c.ScratchMemoryLimit)
	}
	return nil
}

func (c *Config) reorderConfig() reorder.Config {
	return reorder.Config{
		Policy:              c.ReorderPolicy,
		OctreeThreshold:     c.OctreeThreshold,
		GridCellAtoms:       c.GridCellAtoms,
		TargetTaskLatency:   c.TargetTaskLatency,
		MinSplitLatency:     c.MinSplitLatency,
		LatencyPerAtomLevel: c.LatencyPerAtomLevel,
	}
}
