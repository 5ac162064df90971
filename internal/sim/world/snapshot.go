package world

import (
	"fmt"

	"voxelfort.ai/internal/persistence/snapshot"
	"voxelfort.ai/internal/sim/integrity"
)

// ExportSnapshot captures the world at nowTick. It fails rather than write a
// structure whose integrity record cannot be built.
func (w *World) ExportSnapshot(nowTick uint64) (snapshot.SnapshotV1, error) {
	structs := make([]snapshot.StructureV1, 0, len(w.structures))
	for _, id := range w.sortedStructureIDs() {
		s := w.structures[id]
		sv := snapshot.StructureV1{
			StructureID:   s.StructureID,
			BuilderID:     s.BuilderID,
			Min:           s.Min.ToArray(),
			Max:           s.Max.ToArray(),
			CompletedTick: s.CompletedTick,
			Hostile:       s.Hostile,
		}
		rec, err := s.tracker.Record(&w.catalogs.Blocks)
		if err != nil {
			return snapshot.SnapshotV1{}, fmt.Errorf("structure %s: %w", id, err)
		}
		sv.Integrity = &rec
		structs = append(structs, sv)
	}

	return snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    nowTick,
		},
		Seed:                 w.cfg.Seed,
		TickRate:             w.cfg.TickRateHz,
		Height:               w.cfg.Height,
		BoundaryR:            w.cfg.BoundaryR,
		ScanBlocksPerTick:    w.cfg.ScanBlocksPerTick,
		AggressionEveryTicks: w.cfg.AggressionEveryTicks,
		Chunks:               w.chunks.exportChunks(),
		Structures:           structs,
	}, nil
}

// ImportSnapshot replaces the world state. Structures saved without an
// integrity section come back with an empty blueprint.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version: %d", s.Header.Version)
	}
	if s.Header.WorldID != "" && s.Header.WorldID != w.cfg.ID {
		return fmt.Errorf("snapshot world id mismatch: world=%s snap=%s", w.cfg.ID, s.Header.WorldID)
	}
	if s.Height != w.cfg.Height {
		return fmt.Errorf("snapshot height mismatch: world=%d snap=%d", w.cfg.Height, s.Height)
	}

	chunks, err := importChunks(w.chunks.gen, s.Chunks)
	if err != nil {
		return err
	}

	structs := make(map[string]*Structure, len(s.Structures))
	for _, sv := range s.Structures {
		if sv.StructureID == "" {
			return fmt.Errorf("snapshot structure without id")
		}
		if _, dup := structs[sv.StructureID]; dup {
			return fmt.Errorf("duplicate snapshot structure %s", sv.StructureID)
		}
		rec := integrity.RecordV1{}
		if sv.Integrity != nil {
			rec = *sv.Integrity
		}
		tr, err := integrity.FromRecord(w.cfg.ID, rec, &w.catalogs.Blocks)
		if err != nil {
			return fmt.Errorf("structure %s: %w", sv.StructureID, err)
		}
		lo, hi := normalizeBox(integrity.PosFromArray(sv.Min), integrity.PosFromArray(sv.Max))
		structs[sv.StructureID] = &Structure{
			StructureID:   sv.StructureID,
			BuilderID:     sv.BuilderID,
			Min:           lo,
			Max:           hi,
			CompletedTick: sv.CompletedTick,
			Hostile:       sv.Hostile,
			tracker:       tr,
		}
	}

	w.chunks = chunks
	w.structures = structs
	w.tick.Store(s.Header.Tick + 1)
	return nil
}
