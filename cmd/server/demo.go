package main

import (
	"fmt"

	"voxelfort.ai/internal/sim/catalogs"
	"voxelfort.ai/internal/sim/integrity"
	"voxelfort.ai/internal/sim/world"
)

// buildDemoStructure raises a 5x3x5 hut at the origin (plank floor, stone
// walls with a door and a window) and registers it.
func buildDemoStructure(w *world.World, cats *catalogs.Catalogs, hostile bool) (string, error) {
	b := func(id string) (uint16, error) {
		v, ok := cats.Blocks.Index[id]
		if !ok {
			return 0, fmt.Errorf("missing block id in palette: %s", id)
		}
		return v, nil
	}
	var ids [4]uint16
	for i, name := range []string{"PLANK", "STONE", "DOOR", "GLASS"} {
		v, err := b(name)
		if err != nil {
			return "", err
		}
		ids[i] = v
	}
	plank, stone, door, glass := ids[0], ids[1], ids[2], ids[3]

	min := integrity.Pos{X: 0, Y: 1, Z: 0}
	max := integrity.Pos{X: 4, Y: 3, Z: 4}
	for y := min.Y; y <= max.Y; y++ {
		for z := min.Z; z <= max.Z; z++ {
			for x := min.X; x <= max.X; x++ {
				edge := x == min.X || x == max.X || z == min.Z || z == max.Z
				var blk uint16
				switch {
				case y == min.Y:
					blk = plank
				case !edge:
					continue
				case x == 2 && z == min.Z:
					blk = door
				case x == 2 && z == max.Z && y == 2:
					blk = glass
				default:
					blk = stone
				}
				w.SetBlock("DEMO", integrity.Pos{X: x, Y: y, Z: z}, blk, "BUILD")
			}
		}
	}

	id, err := w.RegisterStructure("DEMO", min, max, w.CurrentTick())
	if err != nil {
		return "", err
	}
	if hostile {
		if err := w.SetHostile(id, true); err != nil {
			return "", err
		}
	}
	return id, nil
}
