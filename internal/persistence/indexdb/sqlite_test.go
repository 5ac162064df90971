package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"voxelfort.ai/internal/persistence/snapshot"
	"voxelfort.ai/internal/sim/catalogs"
	"voxelfort.ai/internal/sim/tuning"
	"voxelfort.ai/internal/sim/world"
)

func TestSQLiteIndex_HealthAndSnapshots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "world.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}

	_ = idx.WriteTick(world.TickLogEntry{Tick: 0, Digest: "d0", Structures: []world.StructureHealth{
		{StructureID: "STRUCT_B", Health: 100, Blocks: 4},
		{StructureID: "STRUCT_A", Health: 100, Blocks: 10},
	}})
	_ = idx.WriteTick(world.TickLogEntry{Tick: 1, Digest: "d1"})
	_ = idx.WriteTick(world.TickLogEntry{Tick: 50, Digest: "d50", Structures: []world.StructureHealth{
		{StructureID: "STRUCT_A", Health: 40, Blocks: 10, Destroyed: 3, Hostile: true},
	}})
	_ = idx.WriteAudit(world.AuditEntry{Tick: 50, Actor: "HOSTILE", Action: world.AuditAggressionDestroy, StructureID: "STRUCT_A", Pos: [3]int{1, 2, 3}})
	idx.RecordSnapshot("/data/worlds/w/snapshots/50.snap.zst", snapshot.SnapshotV1{
		Header:     snapshot.Header{Version: snapshot.Version, WorldID: "w", Tick: 50},
		Seed:       7,
		Height:     16,
		Structures: make([]snapshot.StructureV1, 2),
	})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()
	ctx := context.Background()

	latest, err := r.LatestHealth(ctx)
	if err != nil {
		t.Fatalf("LatestHealth: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("latest rows: got %d want 2", len(latest))
	}
	a, b := latest[0], latest[1]
	if a.StructureID != "STRUCT_A" || a.Tick != 50 || a.Health != 40 || a.Destroyed != 3 || !a.Hostile {
		t.Fatalf("STRUCT_A row: %+v", a)
	}
	if b.StructureID != "STRUCT_B" || b.Tick != 0 || b.Health != 100 {
		t.Fatalf("STRUCT_B row: %+v", b)
	}

	hist, err := r.HealthHistory(ctx, "STRUCT_A", 10)
	if err != nil {
		t.Fatalf("HealthHistory: %v", err)
	}
	if len(hist) != 2 || hist[0].Tick != 50 || hist[1].Tick != 0 {
		t.Fatalf("history: %+v", hist)
	}

	snaps, err := r.Snapshots(ctx, 5)
	if err != nil {
		t.Fatalf("Snapshots: %v", err)
	}
	if len(snaps) != 1 || snaps[0].Tick != 50 || snaps[0].Structures != 2 || snaps[0].Seed != 7 {
		t.Fatalf("snapshots: %+v", snaps)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	var action, sid string
	if err := db.QueryRow(`SELECT action,structure_id FROM audits WHERE tick=50`).Scan(&action, &sid); err != nil {
		t.Fatalf("audit row: %v", err)
	}
	if action != world.AuditAggressionDestroy || sid != "STRUCT_A" {
		t.Fatalf("audit row: action=%s structure=%s", action, sid)
	}
}

func TestSQLiteIndex_UpsertCatalogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	if err := idx.UpsertCatalogs("../../../configs", cats, tuning.Defaults()); err != nil {
		t.Fatalf("UpsertCatalogs: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM catalogs`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("catalog rows: got %d want 3", n)
	}
	var digest string
	if err := db.QueryRow(`SELECT digest FROM catalogs WHERE name='blocks_palette'`).Scan(&digest); err != nil {
		t.Fatalf("palette row: %v", err)
	}
	if digest != cats.Blocks.PaletteDigest {
		t.Fatalf("palette digest: got %s want %s", digest, cats.Blocks.PaletteDigest)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick, tick: world.TickLogEntry{Tick: 1}}

	_ = s.WriteTick(world.TickLogEntry{Tick: 2})
	_ = s.WriteAudit(world.AuditEntry{Tick: 2})
	s.RecordSnapshot("/tmp/2.snap.zst", snapshot.SnapshotV1{})

	st := s.Stats()
	if st.DropTickTotal != 1 || st.DropAuditTotal != 1 || st.DropSnapshotTotal != 1 {
		t.Fatalf("drop stats: %+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}
