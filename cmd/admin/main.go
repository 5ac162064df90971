package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	persistlog "voxelfort.ai/internal/persistence/log"
	"voxelfort.ai/internal/persistence/snapshot"
	"voxelfort.ai/internal/sim/catalogs"
	"voxelfort.ai/internal/sim/integrity"
	"voxelfort.ai/internal/sim/world"
	"voxelfort.ai/internal/sim/world/logic/ids"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "structures":
			structuresCmd(os.Args[2:])
			return
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "rollback":
			rollbackCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		case "hostile":
			hostileCmd(os.Args[2:])
			return
		case "list":
			listCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

type structureReport struct {
	StructureID string `json:"structure_id"`
	BuilderID   string `json:"builder_id"`
	Min         [3]int `json:"min"`
	Max         [3]int `json:"max"`
	Hostile     bool   `json:"hostile,omitempty"`
	Health      int    `json:"health"`
	Blocks      int    `json:"blocks"`
	Destroyed   int    `json:"destroyed"`
	Cursor      int    `json:"cursor"`
}

func structuresCmd(args []string) {
	fs := flag.NewFlagSet("structures", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (used to find the latest snapshot)")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	configDir := fs.String("configs", "./configs", "config directory (block catalog)")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -snapshot or -world")
			os.Exit(2)
		}
		path = latestSnapshot(filepath.Join(*dataDir, "worlds", *worldID))
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found")
		os.Exit(2)
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	reps, err := reportStructures(snap, &cats.Blocks)
	if err != nil {
		fmt.Fprintln(os.Stderr, "structures:", err)
		os.Exit(1)
	}
	for _, r := range reps {
		printJSON(r)
	}
}

func reportStructures(snap snapshot.SnapshotV1, res integrity.Resolver) ([]structureReport, error) {
	out := make([]structureReport, 0, len(snap.Structures))
	for _, s := range snap.Structures {
		rec := integrity.RecordV1{}
		if s.Integrity != nil {
			rec = *s.Integrity
		}
		tr, err := integrity.FromRecord(snap.Header.WorldID, rec, res)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.StructureID, err)
		}
		out = append(out, structureReport{
			StructureID: s.StructureID,
			BuilderID:   s.BuilderID,
			Min:         s.Min,
			Max:         s.Max,
			Hostile:     s.Hostile,
			Health:      tr.Health(),
			Blocks:      tr.Blueprint().Len(),
			Destroyed:   tr.DestroyedCount(),
			Cursor:      tr.Cursor(),
		})
	}
	return out, nil
}

func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required)")
	structureID := fs.String("structure", "", "structure id filter (optional)")
	action := fs.String("action", "", "action filter, e.g. AGGRESSION_DESTROY (optional)")
	sinceTick := fs.Uint64("since_tick", 0, "first tick (inclusive)")
	toTick := fs.Uint64("to_tick", 0, "last tick (inclusive, 0 = no limit)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	dir := filepath.Join(*dataDir, "worlds", *worldID, "audit")
	files, err := persistlog.ListFiles(dir, "audit")
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	for _, f := range files {
		err := persistlog.ReadAuditFile(f, func(e world.AuditEntry) error {
			if e.Tick < *sinceTick || (*toTick != 0 && e.Tick > *toTick) {
				return nil
			}
			if *structureID != "" && e.StructureID != *structureID {
				return nil
			}
			if *action != "" && e.Action != *action {
				return nil
			}
			printJSON(e)
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "read audit:", err)
			os.Exit(1)
		}
	}
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		tick, ok := ids.ParseSnapshotFileName(name)
		if !ok {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}
