package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	persistlog "voxelfort.ai/internal/persistence/log"
	"voxelfort.ai/internal/persistence/snapshot"
	"voxelfort.ai/internal/sim/world"
	"voxelfort.ai/internal/sim/world/logic/mathx"
)

// rollbackCmd reverts audited block changes inside a box and writes a new
// snapshot. Integrity trackers are left as saved; the next scan after resume
// marks restored cells Preserved again.
func rollbackCmd(args []string) {
	fs := flag.NewFlagSet("rollback", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	snapPath := fs.String("snapshot", "", "snapshot path to rollback from (optional; defaults to latest)")
	structureID := fs.String("structure", "", "use this structure's box as the filter")
	aabb := fs.String("aabb", "", "box filter: x1,y1,z1:x2,y2,z2 (when -structure is empty)")
	actor := fs.String("actor", "", "only revert changes by this actor, e.g. HOSTILE (optional)")
	sinceTick := fs.Uint64("since_tick", 0, "rollback changes since tick (inclusive)")
	toTick := fs.Uint64("to_tick", 0, "rollback changes up to tick (inclusive, optional; defaults to snapshot tick)")
	outPath := fs.String("out", "", "output snapshot path (optional)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	if strings.TrimSpace(*structureID) == "" && strings.TrimSpace(*aabb) == "" {
		fmt.Fprintln(os.Stderr, "missing -structure or -aabb")
		os.Exit(2)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" {
		snapshotToLoad = latestSnapshot(worldDir)
	}
	if snapshotToLoad == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found; provide -snapshot or run server until it writes one")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(snapshotToLoad)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	var min, max [3]int
	if id := strings.TrimSpace(*structureID); id != "" {
		var ok bool
		min, max, ok = structureBox(snap, id)
		if !ok {
			fmt.Fprintln(os.Stderr, "structure not in snapshot:", id)
			os.Exit(2)
		}
	} else {
		min, max, err = parseAABB(*aabb)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -aabb:", err)
			os.Exit(2)
		}
	}

	endTick := *toTick
	if endTick == 0 || endTick > snap.Header.Tick {
		endTick = snap.Header.Tick
	}

	recs, err := readAudit(worldDir, auditFilter{
		SinceTick: *sinceTick,
		ToTick:    endTick,
		Min:       min,
		Max:       max,
		Actor:     strings.TrimSpace(*actor),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	if len(recs) == 0 {
		fmt.Println("no matching audit entries; nothing to rollback")
		return
	}

	applied, skipped := applyRollback(&snap, recs)

	if strings.TrimSpace(*outPath) == "" {
		*outPath = filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d.rollback.snap.zst", snap.Header.Tick))
	}
	if err := snapshot.WriteSnapshot(*outPath, snap); err != nil {
		fmt.Fprintln(os.Stderr, "write snapshot:", err)
		os.Exit(1)
	}

	fmt.Printf("rollback ok: snapshot=%s tick=%d box=%v..%v since=%d to=%d entries=%d applied=%d skipped=%d out=%s\n",
		filepath.Base(snapshotToLoad), snap.Header.Tick, min, max, *sinceTick, endTick, len(recs), applied, skipped, *outPath)
}

func structureBox(snap snapshot.SnapshotV1, id string) (min, max [3]int, ok bool) {
	for _, s := range snap.Structures {
		if s.StructureID == id {
			return s.Min, s.Max, true
		}
	}
	return min, max, false
}

type auditFilter struct {
	SinceTick uint64
	ToTick    uint64
	Min, Max  [3]int
	Actor     string
}

type auditRec struct {
	Seq   uint64
	Entry world.AuditEntry
}

// readAudit returns matching SET_BLOCK entries newest first, the order in
// which they must be undone.
func readAudit(worldDir string, f auditFilter) ([]auditRec, error) {
	files, err := persistlog.ListFiles(filepath.Join(worldDir, "audit"), "audit")
	if err != nil {
		return nil, err
	}

	out := make([]auditRec, 0, 1024)
	var seq uint64
	for _, path := range files {
		err := persistlog.ReadAuditFile(path, func(e world.AuditEntry) error {
			seq++
			if e.Action != world.AuditSetBlock {
				return nil
			}
			if e.Tick < f.SinceTick || e.Tick > f.ToTick {
				return nil
			}
			if f.Actor != "" && e.Actor != f.Actor {
				return nil
			}
			if !withinAABB(e.Pos, f.Min, f.Max) {
				return nil
			}
			out = append(out, auditRec{Seq: seq, Entry: e})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Entry.Tick != out[j].Entry.Tick {
			return out[i].Entry.Tick > out[j].Entry.Tick
		}
		return out[i].Seq > out[j].Seq
	})
	return out, nil
}

func applyRollback(snap *snapshot.SnapshotV1, recs []auditRec) (applied, skipped int) {
	if snap == nil || len(recs) == 0 {
		return 0, 0
	}
	chunks := map[[2]int]*snapshot.ChunkV1{}
	for i := range snap.Chunks {
		ch := &snap.Chunks[i]
		chunks[[2]int{ch.CX, ch.CZ}] = ch
	}

	for _, r := range recs {
		p := r.Entry.Pos
		ch := chunks[[2]int{mathx.FloorDiv(p[0], 16), mathx.FloorDiv(p[2], 16)}]
		y := p[1]
		if ch == nil || y < 0 || y >= ch.Height {
			skipped++
			continue
		}
		i := mathx.Mod(p[0], 16) + mathx.Mod(p[2], 16)*16 + y*16*16
		if i < 0 || i >= len(ch.Blocks) {
			skipped++
			continue
		}
		ch.Blocks[i] = r.Entry.From
		applied++
	}
	return applied, skipped
}

func withinAABB(pos [3]int, min, max [3]int) bool {
	return pos[0] >= min[0] && pos[0] <= max[0] &&
		pos[1] >= min[1] && pos[1] <= max[1] &&
		pos[2] >= min[2] && pos[2] <= max[2]
}

func parseAABB(s string) (min, max [3]int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return min, max, fmt.Errorf("expected x1,y1,z1:x2,y2,z2")
	}
	a, err := parseVec3(parts[0])
	if err != nil {
		return min, max, err
	}
	b, err := parseVec3(parts[1])
	if err != nil {
		return min, max, err
	}
	for i := 0; i < 3; i++ {
		if a[i] <= b[i] {
			min[i], max[i] = a[i], b[i]
		} else {
			min[i], max[i] = b[i], a[i]
		}
	}
	return min, max, nil
}

func parseVec3(s string) ([3]int, error) {
	var v [3]int
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return v, fmt.Errorf("expected x,y,z")
	}
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return v, err
		}
		v[i] = n
	}
	return v, nil
}
