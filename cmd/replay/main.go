package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	persistlog "voxelfort.ai/internal/persistence/log"
	"voxelfort.ai/internal/persistence/snapshot"
	"voxelfort.ai/internal/sim/catalogs"
	"voxelfort.ai/internal/sim/world"
)

func main() {
	var (
		snapPath  = flag.String("snapshot", "", "path to .snap.zst")
		eventsDir = flag.String("events", "", "events dir containing events-*.jsonl.zst (optional); ticks logged again after a crash restart replace the earlier run from that tick on")
		configDir = flag.String("configs", "./configs", "config directory")
		fromTick  = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick    = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	fmt.Printf("snapshot v%d world=%s tick=%d seed=%d height=%d chunks=%d structures=%d\n",
		snap.Header.Version, snap.Header.WorldID, snap.Header.Tick, snap.Seed, snap.Height,
		len(snap.Chunks), len(snap.Structures))

	if *eventsDir == "" {
		return
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	w, err := worldFromSnapshot(snap, cats)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	files, err := persistlog.ListFiles(*eventsDir, "events")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no events files found in", *eventsDir)
		os.Exit(1)
	}

	checked, err := replay(w, files, *fromTick, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%d ticks (from snapshot tick=%d)\n", checked, snap.Header.Tick)
	for _, s := range w.Structures() {
		fmt.Printf("  %s health=%d destroyed=%d/%d hostile=%v\n", s.StructureID, s.Health, s.Destroyed, s.Blocks, s.Hostile)
	}
}

func worldFromSnapshot(snap snapshot.SnapshotV1, cats *catalogs.Catalogs) (*world.World, error) {
	w, err := world.New(world.WorldConfig{
		ID:                   snap.Header.WorldID,
		TickRateHz:           snap.TickRate,
		Height:               snap.Height,
		Seed:                 snap.Seed,
		BoundaryR:            snap.BoundaryR,
		ScanBlocksPerTick:    snap.ScanBlocksPerTick,
		AggressionEveryTicks: snap.AggressionEveryTicks,
	}, cats)
	if err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	if err := w.ImportSnapshot(snap); err != nil {
		return nil, fmt.Errorf("import snapshot: %w", err)
	}
	return w, nil
}

// replay steps w through the logged ticks that follow its snapshot, feeding
// back the recorded hostile inputs and comparing each digest.
func replay(w *world.World, files []string, fromTick, toTick uint64) (checked uint64, err error) {
	entries, err := readEntries(files)
	if err != nil {
		return 0, err
	}

	startTick := w.CurrentTick()
	verifyFrom := fromTick
	if verifyFrom < startTick {
		verifyFrom = startTick
	}
	for _, entry := range entries {
		if entry.Tick < startTick {
			continue
		}
		if toTick != 0 && entry.Tick > toTick {
			break
		}
		if entry.Tick != w.CurrentTick() {
			return checked, fmt.Errorf("tick mismatch: want=%d got=%d", w.CurrentTick(), entry.Tick)
		}

		tick, gotDigest := w.StepOnce(entry.Hostile)
		if tick != entry.Tick {
			return checked, fmt.Errorf("internal tick mismatch: stepped=%d entry=%d", tick, entry.Tick)
		}
		if tick >= verifyFrom {
			checked++
			if gotDigest != entry.Digest {
				return checked, fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, gotDigest, entry.Digest)
			}
		}
	}
	return checked, nil
}

// readEntries loads the tick log in file order. A server that crashed
// resumes from its last snapshot and logs those ticks again; an entry whose
// tick does not follow the previous one therefore starts a new run, which
// supersedes every earlier entry at or after its tick.
func readEntries(files []string) ([]world.TickLogEntry, error) {
	var out []world.TickLogEntry
	for _, path := range files {
		err := persistlog.ReadTickFile(path, func(entry world.TickLogEntry) error {
			if n := len(out); n > 0 && entry.Tick <= out[n-1].Tick {
				keep := sort.Search(n, func(i int) bool { return out[i].Tick >= entry.Tick })
				out = out[:keep]
			}
			out = append(out, entry)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
