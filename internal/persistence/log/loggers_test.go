package log

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"voxelfort.ai/internal/sim/world"
)

func TestAuditLogger_WriteAndReadBack(t *testing.T) {
	worldDir := t.TempDir()
	l := NewAuditLogger(worldDir)
	in := []world.AuditEntry{
		{Tick: 1, Actor: "HOSTILE", Action: world.AuditSetBlock, Pos: [3]int{0, 1, 0}, From: 9, To: 0, Reason: "AGGRESSION"},
		{Tick: 1, Actor: "HOSTILE", Action: world.AuditAggressionDestroy, StructureID: "STRUCT_A1_0_0_1_0", Pos: [3]int{0, 1, 0}},
	}
	for _, e := range in {
		if err := l.WriteAudit(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := ListFiles(filepath.Join(worldDir, "audit"), "audit")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("files: got %d want 1", len(files))
	}
	var out []world.AuditEntry
	if err := ReadAuditFile(files[0], func(e world.AuditEntry) error {
		out = append(out, e)
		return nil
	}); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("entries: got %d want %d", len(out), len(in))
	}
	if out[0].Reason != "AGGRESSION" || out[1].StructureID != "STRUCT_A1_0_0_1_0" {
		t.Fatalf("entries mismatch: %+v", out)
	}
}

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "events")
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }

	if err := w.Write(map[string]int{"tick": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	if err := w.Write(map[string]int{"tick": 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := ListFiles(dir, "events")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{
		filepath.Join(dir, "events-2026-03-01-10.jsonl.zst"),
		filepath.Join(dir, "events-2026-03-01-11.jsonl.zst"),
	}
	if len(files) != 2 || files[0] != want[0] || files[1] != want[1] {
		t.Fatalf("files: got %v want %v", files, want)
	}
}

func TestJSONLZstdWriter_RestartAfterCrashKeepsBothRuns(t *testing.T) {
	dir := t.TempDir()
	clock := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)

	// First writer dies without Close, leaving an unterminated frame.
	crashed := NewJSONLZstdWriter(dir, "events")
	crashed.now = func() time.Time { return clock }
	for tick := uint64(0); tick < 3; tick++ {
		if err := crashed.Write(world.TickLogEntry{Tick: tick, Digest: "a"}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	t.Cleanup(func() { _ = crashed.f.Close() })

	restarted := NewJSONLZstdWriter(dir, "events")
	restarted.now = func() time.Time { return clock.Add(10 * time.Minute) }
	for tick := uint64(3); tick < 6; tick++ {
		if err := restarted.Write(world.TickLogEntry{Tick: tick, Digest: "b"}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := restarted.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := ListFiles(dir, "events")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{
		filepath.Join(dir, "events-2026-03-01-10.jsonl.zst"),
		filepath.Join(dir, "events-2026-03-01-10.1.jsonl.zst"),
	}
	if len(files) != 2 || files[0] != want[0] || files[1] != want[1] {
		t.Fatalf("files: got %v want %v", files, want)
	}

	var ticks []uint64
	for _, f := range files {
		if err := ReadTickFile(f, func(e world.TickLogEntry) error {
			ticks = append(ticks, e.Tick)
			return nil
		}); err != nil {
			t.Fatalf("read %s: %v", filepath.Base(f), err)
		}
	}
	if len(ticks) != 6 {
		t.Fatalf("ticks: got %v want 0..5", ticks)
	}
	for i, tick := range ticks {
		if tick != uint64(i) {
			t.Fatalf("ticks: got %v want 0..5", ticks)
		}
	}
}

func TestListFiles_OrdersPartsWithinHour(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"events-2026-03-01-11.jsonl.zst",
		"events-2026-03-01-10.10.jsonl.zst",
		"events-2026-03-01-10.2.jsonl.zst",
		"events-2026-03-01-10.jsonl.zst",
		"events-2026-03-01-10.x.jsonl.zst",
		"audit-2026-03-01-10.jsonl.zst",
	}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	files, err := ListFiles(dir, "events")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{
		"events-2026-03-01-10.jsonl.zst",
		"events-2026-03-01-10.2.jsonl.zst",
		"events-2026-03-01-10.10.jsonl.zst",
		"events-2026-03-01-11.jsonl.zst",
	}
	if len(files) != len(want) {
		t.Fatalf("files: got %v", files)
	}
	for i := range want {
		if filepath.Base(files[i]) != want[i] {
			t.Fatalf("files: got %v want %v", files, want)
		}
	}
}
