package world

import (
	"errors"
	"fmt"
	"sort"

	"voxelfort.ai/internal/sim/integrity"
	"voxelfort.ai/internal/sim/world/logic/ids"
	"voxelfort.ai/internal/sim/world/logic/mathx"
)

// maxStructureVolume bounds the AABB a single registration may capture.
const maxStructureVolume = 32 * 32 * 32

var (
	ErrStructureExists   = errors.New("structure already registered")
	ErrUnknownStructure  = errors.New("unknown structure")
	ErrStructureTooLarge = errors.New("structure too large")
	ErrOutOfBounds       = errors.New("structure out of world bounds")
)

type Structure struct {
	StructureID string
	BuilderID   string
	Min         integrity.Pos
	Max         integrity.Pos

	CompletedTick uint64

	// Set while hostiles are adjacent; only hostile structures take aggression hits.
	Hostile bool

	tracker *integrity.Tracker
}

func (s *Structure) Contains(p integrity.Pos) bool {
	return p.X >= s.Min.X && p.X <= s.Max.X &&
		p.Y >= s.Min.Y && p.Y <= s.Max.Y &&
		p.Z >= s.Min.Z && p.Z <= s.Max.Z
}

func (s *Structure) Tracker() *integrity.Tracker { return s.tracker }

func (s *Structure) health() StructureHealth {
	return StructureHealth{
		StructureID: s.StructureID,
		Health:      s.tracker.Health(),
		Blocks:      s.tracker.Blueprint().Len(),
		Destroyed:   s.tracker.DestroyedCount(),
		Hostile:     s.Hostile,
	}
}

func structureID(builderID string, tick uint64, min integrity.Pos) string {
	return ids.StructureID(builderID, tick, min.ToArray())
}

func normalizeBox(a, b integrity.Pos) (integrity.Pos, integrity.Pos) {
	lo := integrity.Pos{X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)}
	hi := integrity.Pos{X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z)}
	return lo, hi
}

// RegisterStructure captures every non-air block inside the box as the
// structure's reference blueprint. Cells are enumerated x fastest, then z,
// then y, which fixes the scan and aggression order.
func (w *World) RegisterStructure(builderID string, a, b integrity.Pos, nowTick uint64) (string, error) {
	lo, hi := normalizeBox(a, b)
	if !w.chunks.InBounds(lo.X, lo.Y, lo.Z) || !w.chunks.InBounds(hi.X, hi.Y, hi.Z) {
		return "", fmt.Errorf("%w: %v..%v", ErrOutOfBounds, lo, hi)
	}
	vol := (hi.X - lo.X + 1) * (hi.Y - lo.Y + 1) * (hi.Z - lo.Z + 1)
	if vol > maxStructureVolume {
		return "", fmt.Errorf("%w: %d cells", ErrStructureTooLarge, vol)
	}
	id := structureID(builderID, nowTick, lo)
	if _, ok := w.structures[id]; ok {
		return "", fmt.Errorf("%w: %s", ErrStructureExists, id)
	}

	cells := make([]integrity.Entry, 0, vol)
	for y := lo.Y; y <= hi.Y; y++ {
		for z := lo.Z; z <= hi.Z; z++ {
			for x := lo.X; x <= hi.X; x++ {
				p := integrity.Pos{X: x, Y: y, Z: z}
				cells = append(cells, integrity.Entry{Pos: p, Expected: w.ReadMaterial(p)})
			}
		}
	}

	w.structures[id] = &Structure{
		StructureID:   id,
		BuilderID:     builderID,
		Min:           lo,
		Max:           hi,
		CompletedTick: nowTick,
		tracker:       integrity.New(w.cfg.ID, integrity.NewBlueprint(cells)),
	}
	w.auditEvent(nowTick, builderID, AuditStructureRegistered, id, lo, map[string]any{
		"max":    hi.ToArray(),
		"blocks": w.structures[id].tracker.Blueprint().Len(),
	})
	return id, nil
}

// RemoveStructure ends the structure's tracking. Blocks are left in place.
func (w *World) RemoveStructure(id string) error {
	s, ok := w.structures[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStructure, id)
	}
	delete(w.structures, id)
	w.auditEvent(w.tick.Load(), "WORLD", AuditStructureRemoved, id, s.Min, map[string]any{
		"health": s.tracker.Health(),
	})
	return nil
}

func (w *World) SetHostile(id string, hostile bool) error {
	s, ok := w.structures[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStructure, id)
	}
	s.Hostile = hostile
	return nil
}

func (w *World) Structure(id string) (*Structure, bool) {
	s, ok := w.structures[id]
	return s, ok
}

// StructureAt returns the structure whose box contains p. Overlaps resolve
// to the lowest structure id.
func (w *World) StructureAt(p integrity.Pos) (*Structure, bool) {
	for _, id := range w.sortedStructureIDs() {
		if s := w.structures[id]; s.Contains(p) {
			return s, true
		}
	}
	return nil, false
}

func (w *World) Health(id string) (int, bool) {
	s, ok := w.structures[id]
	if !ok {
		return 0, false
	}
	return s.tracker.Health(), true
}

// Structures lists health for every tracked structure, sorted by id.
func (w *World) Structures() []StructureHealth {
	ids := w.sortedStructureIDs()
	out := make([]StructureHealth, 0, len(ids))
	for _, id := range ids {
		out = append(out, w.structures[id].health())
	}
	return out
}

func (w *World) sortedStructureIDs() []string {
	ids := make([]string, 0, len(w.structures))
	for id := range w.structures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (w *World) systemIntegrity(nowTick uint64) {
	aggression := nowTick != 0 && w.cfg.AggressionEveryTicks > 0 &&
		nowTick%uint64(w.cfg.AggressionEveryTicks) == 0

	for _, id := range w.sortedStructureIDs() {
		s := w.structures[id]
		before := s.tracker.Health()
		changed, err := s.tracker.Scan(w, w.cfg.ScanBlocksPerTick)
		if err != nil {
			w.integrityFault(nowTick, s, "scan", err)
			continue
		}
		if changed {
			w.auditEvent(nowTick, "WORLD", AuditScanChanged, id, s.Min, map[string]any{
				"health_before": before,
				"health":        s.tracker.Health(),
			})
		}

		if !aggression || !s.Hostile {
			continue
		}
		draw := mathx.Unit(mathx.HashTick(w.cfg.Seed, nowTick, id))
		pos, hit, err := s.tracker.ApplyAggression(w, draw)
		if err != nil {
			w.integrityFault(nowTick, s, "aggression", err)
			continue
		}
		if !hit {
			continue
		}
		w.auditEvent(nowTick, "HOSTILE", AuditAggressionDestroy, id, pos, map[string]any{
			"health": s.tracker.Health(),
		})
	}
}

// integrityFault records a tracker call the world could not complete. The
// structure keeps its last state; the fault is counted and audited.
func (w *World) integrityFault(nowTick uint64, s *Structure, op string, err error) {
	w.faults++
	w.auditEvent(nowTick, "WORLD", AuditIntegrityFault, s.StructureID, s.Min, map[string]any{
		"op":    op,
		"error": err.Error(),
	})
}
