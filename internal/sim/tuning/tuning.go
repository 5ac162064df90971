package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz  int `yaml:"tick_rate_hz"`
	WorldHeight int `yaml:"world_height"`
	BoundaryR   int `yaml:"boundary_r"`

	ScanBlocksPerTick    int `yaml:"scan_blocks_per_tick"`
	AggressionEveryTicks int `yaml:"aggression_every_ticks"`

	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`
	IndexEveryTicks    int `yaml:"index_every_ticks"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:           5,
		WorldHeight:          16,
		BoundaryR:            512,
		ScanBlocksPerTick:    4,
		AggressionEveryTicks: 10,
		SnapshotEveryTicks:   3000,
		IndexEveryTicks:      50,
	}
}

// Load reads tuning.yaml on top of Defaults, so omitted keys keep their
// default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be > 0")
	}
	if t.WorldHeight <= 0 || t.WorldHeight > 256 {
		return fmt.Errorf("world_height must be in [1, 256]")
	}
	if t.BoundaryR < 0 {
		return fmt.Errorf("boundary_r must be >= 0")
	}
	if t.ScanBlocksPerTick <= 0 {
		return fmt.Errorf("scan_blocks_per_tick must be > 0")
	}
	if t.AggressionEveryTicks < 0 {
		return fmt.Errorf("aggression_every_ticks must be >= 0")
	}
	if t.SnapshotEveryTicks < 0 || t.IndexEveryTicks < 0 {
		return fmt.Errorf("snapshot_every_ticks/index_every_ticks must be >= 0")
	}
	return nil
}
