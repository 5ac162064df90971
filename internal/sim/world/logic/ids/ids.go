package ids

import (
	"fmt"
	"strconv"
	"strings"
)

const structurePrefix = "STRUCT_"

type StructureKey struct {
	BuilderID string
	Tick      uint64
	Min       [3]int
}

// StructureID is STRUCT_<builder>_<tick>_<minx>_<miny>_<minz>. Builder ids
// may themselves contain underscores.
func StructureID(builderID string, tick uint64, min [3]int) string {
	return fmt.Sprintf("%s%s_%d_%d_%d_%d", structurePrefix, builderID, tick, min[0], min[1], min[2])
}

func ParseStructureID(id string) (StructureKey, bool) {
	if !strings.HasPrefix(id, structurePrefix) {
		return StructureKey{}, false
	}
	parts := strings.Split(id[len(structurePrefix):], "_")
	n := len(parts)
	if n < 5 {
		return StructureKey{}, false
	}
	tick, err := strconv.ParseUint(parts[n-4], 10, 64)
	if err != nil {
		return StructureKey{}, false
	}
	var min [3]int
	for i := 0; i < 3; i++ {
		v, err := strconv.Atoi(parts[n-3+i])
		if err != nil {
			return StructureKey{}, false
		}
		min[i] = v
	}
	builder := strings.Join(parts[:n-4], "_")
	if builder == "" {
		return StructureKey{}, false
	}
	return StructureKey{BuilderID: builder, Tick: tick, Min: min}, true
}

const snapshotSuffix = ".snap.zst"

func SnapshotFileName(tick uint64) string {
	return strconv.FormatUint(tick, 10) + snapshotSuffix
}

// ParseSnapshotFileName accepts only plain <tick>.snap.zst names, so
// rollback outputs like <tick>.rollback.snap.zst are never picked up as
// resume points.
func ParseSnapshotFileName(name string) (uint64, bool) {
	if !strings.HasSuffix(name, snapshotSuffix) {
		return 0, false
	}
	n, err := strconv.ParseUint(strings.TrimSuffix(name, snapshotSuffix), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
