package world

import "voxelfort.ai/internal/sim/integrity"

// World satisfies integrity.World so trackers can sample and clear blocks
// directly against the chunk store.

func (w *World) WorldID() string { return w.cfg.ID }

func (w *World) ReadMaterial(p integrity.Pos) integrity.Material {
	return integrity.Material(w.chunks.GetBlock(p.X, p.Y, p.Z))
}

// WriteEmpty is only reached through hostile aggression.
func (w *World) WriteEmpty(p integrity.Pos) {
	from := w.chunks.GetBlock(p.X, p.Y, p.Z)
	if from == w.air {
		return
	}
	if !w.chunks.SetBlock(p.X, p.Y, p.Z, w.air) {
		return
	}
	w.auditSetBlock(w.tick.Load(), "HOSTILE", p, from, w.air, "AGGRESSION")
}

func (w *World) GetBlock(p integrity.Pos) uint16 {
	return w.chunks.GetBlock(p.X, p.Y, p.Z)
}

// SetBlock places a block on behalf of an actor (builders, repairs, admin
// tools) and audits the change.
func (w *World) SetBlock(actor string, p integrity.Pos, b uint16, reason string) bool {
	from := w.chunks.GetBlock(p.X, p.Y, p.Z)
	if !w.chunks.SetBlock(p.X, p.Y, p.Z, b) {
		return false
	}
	if from != b {
		w.auditSetBlock(w.tick.Load(), actor, p, from, b, reason)
	}
	return true
}

func (w *World) auditSetBlock(tick uint64, actor string, pos integrity.Pos, from, to uint16, reason string) {
	if w.auditLogger == nil {
		return
	}
	_ = w.auditLogger.WriteAudit(AuditEntry{
		Tick:   tick,
		Actor:  actor,
		Action: AuditSetBlock,
		Pos:    pos.ToArray(),
		From:   from,
		To:     to,
		Reason: reason,
	})
}

func (w *World) auditEvent(tick uint64, actor, action, structureID string, pos integrity.Pos, details map[string]any) {
	if w.auditLogger == nil {
		return
	}
	_ = w.auditLogger.WriteAudit(AuditEntry{
		Tick:        tick,
		Actor:       actor,
		Action:      action,
		StructureID: structureID,
		Pos:         pos.ToArray(),
		Details:     details,
	})
}
