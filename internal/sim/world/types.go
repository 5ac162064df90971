package world

type WorldConfig struct {
	ID         string
	TickRateHz int
	Height     int
	Seed       int64
	BoundaryR  int

	ScanBlocksPerTick    int
	AggressionEveryTicks int
	SnapshotEveryTicks   int
	IndexEveryTicks      int
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick   uint64 `json:"tick"`
	Digest string `json:"digest"`

	// Inputs applied at the start of the tick; replay feeds them back.
	Hostile []HostileChange `json:"hostile,omitempty"`

	// Only filled every IndexEveryTicks.
	Structures []StructureHealth `json:"structures,omitempty"`
}

type HostileChange struct {
	StructureID string `json:"structure_id"`
	Hostile     bool   `json:"hostile"`
}

type StructureHealth struct {
	StructureID string `json:"structure_id"`
	Health      int    `json:"health"`
	Blocks      int    `json:"blocks"`
	Destroyed   int    `json:"destroyed"`
	Hostile     bool   `json:"hostile,omitempty"`
}

const (
	AuditSetBlock            = "SET_BLOCK"
	AuditScanChanged         = "SCAN_CHANGED"
	AuditAggressionDestroy   = "AGGRESSION_DESTROY"
	AuditStructureRegistered = "STRUCTURE_REGISTERED"
	AuditStructureRemoved    = "STRUCTURE_REMOVED"
	AuditIntegrityFault      = "INTEGRITY_FAULT"
)

type AuditEntry struct {
	Tick        uint64         `json:"tick"`
	Actor       string         `json:"actor"`
	Action      string         `json:"action"`
	StructureID string         `json:"structure_id,omitempty"`
	Pos         [3]int         `json:"pos"`
	From        uint16         `json:"from"`
	To          uint16         `json:"to"`
	Reason      string         `json:"reason,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

type WorldMetrics struct {
	Tick         uint64            `json:"tick"`
	LoadedChunks int               `json:"loaded_chunks"`
	StepMS       float64           `json:"step_ms"`

	// Tracker calls rejected since start (wrong world, bad budget).
	IntegrityFaults  uint64 `json:"integrity_faults"`
	// Periodic snapshots skipped because a structure could not be recorded.
	SnapshotFailures uint64 `json:"snapshot_failures"`
	Structures   []StructureHealth `json:"structures"`
}
