package world

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"voxelfort.ai/internal/persistence/snapshot"
	"voxelfort.ai/internal/sim/catalogs"
)

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs

	tick atomic.Uint64

	chunks *ChunkStore
	air    uint16

	structures map[string]*Structure
	faults     uint64

	snapshotFailures uint64

	admin   chan adminSnapshotReq
	hostile chan hostileReq
	stop    chan struct{}

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger

	// Optional snapshot sink (may be nil). Snapshot writing should be off-thread.
	snapshotSink chan<- snapshot.SnapshotV1

	metrics atomic.Value // WorldMetrics
}

func New(cfg WorldConfig, cats *catalogs.Catalogs) (*World, error) {
	if cats == nil {
		return nil, fmt.Errorf("nil catalogs")
	}
	if cfg.TickRateHz <= 0 {
		return nil, fmt.Errorf("tick rate must be > 0")
	}
	if cfg.Height <= 0 || cfg.Height > 256 {
		return nil, fmt.Errorf("height must be in [1, 256]: %d", cfg.Height)
	}
	if cfg.ScanBlocksPerTick <= 0 {
		return nil, fmt.Errorf("scan blocks per tick must be > 0: %d", cfg.ScanBlocksPerTick)
	}

	b := func(id string) (uint16, error) {
		v, ok := cats.Blocks.Index[id]
		if !ok {
			return 0, fmt.Errorf("missing block id in palette: %s", id)
		}
		return v, nil
	}
	air, err := b("AIR")
	if err != nil {
		return nil, err
	}
	dirt, err := b("DIRT")
	if err != nil {
		return nil, err
	}

	w := &World{
		cfg:      cfg,
		catalogs: cats,
		chunks: NewChunkStore(WorldGen{
			Seed:      cfg.Seed,
			Height:    cfg.Height,
			BoundaryR: cfg.BoundaryR,
			Air:       air,
			Ground:    dirt,
		}),
		air:        air,
		structures: map[string]*Structure{},
		admin:      make(chan adminSnapshotReq, 16),
		hostile:    make(chan hostileReq, 64),
		stop:       make(chan struct{}),
	}
	w.metrics.Store(WorldMetrics{})
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger)                  { w.auditLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) Config() WorldConfig { return w.cfg }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

// Metrics returns the view published at the end of the last tick. Safe to
// call from any goroutine.
func (w *World) Metrics() WorldMetrics {
	m, _ := w.metrics.Load().(WorldMetrics)
	return m
}

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingAdmin []adminSnapshotReq
	var pendingHostile []hostileReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.admin:
			pendingAdmin = append(pendingAdmin, req)
		case req := <-w.hostile:
			pendingHostile = append(pendingHostile, req)
		case <-ticker.C:
			w.stepWithRequests(pendingHostile)
			w.handleAdminSnapshotRequests(pendingAdmin)
			pendingAdmin = pendingAdmin[:0]
			pendingHostile = pendingHostile[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce advances the world by a single tick using the same ordering
// semantics as Run. It is intended for deterministic replays and tests.
func (w *World) StepOnce(hostile []HostileChange) (tick uint64, digest string) {
	tick = w.tick.Load()
	w.step(hostile)
	return tick, w.stateDigest(tick)
}

func (w *World) step(hostile []HostileChange) {
	stepStart := time.Now()
	nowTick := w.tick.Load()

	applied := make([]HostileChange, 0, len(hostile))
	for _, c := range hostile {
		if err := w.SetHostile(c.StructureID, c.Hostile); err == nil {
			applied = append(applied, c)
		}
	}

	w.systemIntegrity(nowTick)

	digest := w.stateDigest(nowTick)
	if w.tickLogger != nil {
		entry := TickLogEntry{Tick: nowTick, Digest: digest}
		if len(applied) > 0 {
			entry.Hostile = applied
		}
		if w.cfg.IndexEveryTicks > 0 && nowTick%uint64(w.cfg.IndexEveryTicks) == 0 {
			entry.Structures = w.Structures()
		}
		_ = w.tickLogger.WriteTick(entry)
	}

	// Snapshot every N ticks, starting after tick 0.
	if w.snapshotSink != nil && nowTick != 0 && w.cfg.SnapshotEveryTicks > 0 {
		if nowTick%uint64(w.cfg.SnapshotEveryTicks) == 0 {
			snap, err := w.ExportSnapshot(nowTick)
			if err != nil {
				w.snapshotFailures++
			} else {
				select {
				case w.snapshotSink <- snap:
				default:
					// Drop snapshot if sink is backed up.
				}
			}
		}
	}

	w.tick.Add(1)
	w.metrics.Store(WorldMetrics{
		Tick:         nowTick,
		LoadedChunks: len(w.chunks.chunks),
		StepMS:       float64(time.Since(stepStart).Microseconds()) / 1000.0,
		Structures:   w.Structures(),

		IntegrityFaults:  w.faults,
		SnapshotFailures: w.snapshotFailures,
	})
}
