package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	persistlog "voxelfort.ai/internal/persistence/log"
	"voxelfort.ai/internal/persistence/snapshot"
	"voxelfort.ai/internal/protocol"
	"voxelfort.ai/internal/sim/catalogs"
	"voxelfort.ai/internal/sim/tuning"
	"voxelfort.ai/internal/sim/world"
	"voxelfort.ai/internal/sim/world/logic/ids"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		seed       = flag.Int64("seed", 1337, "world seed (used only when starting a fresh world)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (health history + audits + snapshot metadata)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")

		demo        = flag.Bool("demo", true, "build and register a demo structure when starting a fresh world")
		demoHostile = flag.Bool("demo_hostile", false, "mark the demo structure as under attack")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(worldDir)
	}

	// Tuning is required for a fresh world; a resume can fall back to the
	// values captured in the snapshot.
	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil {
		if snapshotToLoad == "" || !os.IsNotExist(tuneErr) {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	cfg := world.WorldConfig{
		ID:                   *worldID,
		TickRateHz:           tune.TickRateHz,
		Height:               tune.WorldHeight,
		Seed:                 *seed,
		BoundaryR:            tune.BoundaryR,
		ScanBlocksPerTick:    tune.ScanBlocksPerTick,
		AggressionEveryTicks: tune.AggressionEveryTicks,
		SnapshotEveryTicks:   tune.SnapshotEveryTicks,
		IndexEveryTicks:      tune.IndexEveryTicks,
	}

	var w *world.World
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != *worldID {
			logger.Fatalf("snapshot world id mismatch: flag=%s snap=%s", *worldID, snap.Header.WorldID)
		}
		// World shape and scan cadence come from the snapshot.
		cfg.TickRateHz = snap.TickRate
		cfg.Height = snap.Height
		cfg.Seed = snap.Seed
		cfg.BoundaryR = snap.BoundaryR
		if snap.ScanBlocksPerTick > 0 {
			cfg.ScanBlocksPerTick = snap.ScanBlocksPerTick
		}
		if snap.AggressionEveryTicks > 0 {
			cfg.AggressionEveryTicks = snap.AggressionEveryTicks
		}
		w, err = world.New(cfg, cats)
		if err != nil {
			logger.Fatalf("world: %v", err)
		}
		if err := w.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d structures=%d", filepath.Base(snapshotToLoad), w.CurrentTick(), len(snap.Structures))
	} else {
		w, err = world.New(cfg, cats)
		if err != nil {
			logger.Fatalf("world: %v", err)
		}
		if *demo {
			id, err := buildDemoStructure(w, cats, *demoHostile)
			if err != nil {
				logger.Fatalf("demo structure: %v", err)
			}
			logger.Printf("registered demo structure %s hostile=%v", id, *demoHostile)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	tickLog := persistlog.NewTickLogger(worldDir)
	auditLog := persistlog.NewAuditLogger(worldDir)
	defer tickLog.Close()
	defer auditLog.Close()
	w.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
	w.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})

	writeSnapshot := func(snap snapshot.SnapshotV1) {
		path := filepath.Join(worldDir, "snapshots", ids.SnapshotFileName(snap.Header.Tick))
		if err := snapshot.WriteSnapshot(path, snap); err != nil {
			logger.Printf("snapshot write: %v", err)
			return
		}
		if idx != nil {
			idx.RecordSnapshot(path, snap)
		}
	}

	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				writeSnapshot(snap)
			}
		}
	}()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newMux(w, idx, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// The loop has stopped, so the world can be read from this goroutine.
	<-runDone
	if cur := w.CurrentTick(); cur > 0 {
		snap, err := w.ExportSnapshot(cur - 1)
		if err != nil {
			logger.Fatalf("final snapshot: %v", err)
		}
		writeSnapshot(snap)
		logger.Printf("final snapshot tick=%d", cur-1)
	}
}

func newMux(w *world.World, idx runtimeIndex, logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		m := w.Metrics()
		id := w.ID()

		fmt.Fprintf(rw, "# HELP voxelfort_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE voxelfort_world_tick gauge\n")
		fmt.Fprintf(rw, "voxelfort_world_tick{world=%q} %d\n", id, w.CurrentTick())

		fmt.Fprintf(rw, "# HELP voxelfort_world_loaded_chunks Loaded chunk count.\n")
		fmt.Fprintf(rw, "# TYPE voxelfort_world_loaded_chunks gauge\n")
		fmt.Fprintf(rw, "voxelfort_world_loaded_chunks{world=%q} %d\n", id, m.LoadedChunks)

		fmt.Fprintf(rw, "# HELP voxelfort_world_step_ms Last tick step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE voxelfort_world_step_ms gauge\n")
		fmt.Fprintf(rw, "voxelfort_world_step_ms{world=%q} %.3f\n", id, m.StepMS)

		fmt.Fprintf(rw, "# HELP voxelfort_integrity_faults_total Tracker calls rejected by the integrity core.\n")
		fmt.Fprintf(rw, "# TYPE voxelfort_integrity_faults_total counter\n")
		fmt.Fprintf(rw, "voxelfort_integrity_faults_total{world=%q} %d\n", id, m.IntegrityFaults)

		fmt.Fprintf(rw, "# HELP voxelfort_snapshot_failures_total Periodic snapshots skipped on export errors.\n")
		fmt.Fprintf(rw, "# TYPE voxelfort_snapshot_failures_total counter\n")
		fmt.Fprintf(rw, "voxelfort_snapshot_failures_total{world=%q} %d\n", id, m.SnapshotFailures)

		fmt.Fprintf(rw, "# HELP voxelfort_structure_health Structure health (0..100).\n")
		fmt.Fprintf(rw, "# TYPE voxelfort_structure_health gauge\n")
		for _, s := range m.Structures {
			fmt.Fprintf(rw, "voxelfort_structure_health{world=%q,structure=%q} %d\n", id, s.StructureID, s.Health)
		}

		if idx != nil {
			st := idx.Stats()
			fmt.Fprintf(rw, "# HELP voxelfort_index_queue_depth Index writer queue depth.\n")
			fmt.Fprintf(rw, "# TYPE voxelfort_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "voxelfort_index_queue_depth %d\n", st.QueueDepth)
			fmt.Fprintf(rw, "# HELP voxelfort_index_dropped_total Index requests dropped on a full queue.\n")
			fmt.Fprintf(rw, "# TYPE voxelfort_index_dropped_total counter\n")
			fmt.Fprintf(rw, "voxelfort_index_dropped_total{kind=%q} %d\n", "tick", st.DropTickTotal)
			fmt.Fprintf(rw, "voxelfort_index_dropped_total{kind=%q} %d\n", "audit", st.DropAuditTotal)
			fmt.Fprintf(rw, "voxelfort_index_dropped_total{kind=%q} %d\n", "snapshot", st.DropSnapshotTotal)
		}
	})

	if !envBool("VF_ENABLE_ADMIN_HTTP", true) {
		logger.Printf("admin endpoints disabled (VF_ENABLE_ADMIN_HTTP=false)")
		return mux
	}

	// Local-only admin endpoints.
	mux.HandleFunc("/admin/v1/structures", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			writeAdmin(rw, protocol.Fail(protocol.ErrForbidden, nil))
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(w.Metrics())
	})
	mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeAdmin(rw, protocol.Fail(protocol.ErrMethodNotAllowed, nil))
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			writeAdmin(rw, protocol.Fail(protocol.ErrForbidden, nil))
			return
		}
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		tick, err := w.RequestSnapshot(ctx2)
		if err != nil {
			resp := protocol.Fail(adminErrCode(err, protocol.ErrWorldBusy), err)
			resp.Tick = tick
			writeAdmin(rw, resp)
			return
		}
		logger.Printf("admin snapshot requested tick=%d", tick)
		writeAdmin(rw, protocol.AdminResponse{OK: true, Tick: tick})
	})
	mux.HandleFunc("/admin/v1/hostile", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeAdmin(rw, protocol.Fail(protocol.ErrMethodNotAllowed, nil))
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			writeAdmin(rw, protocol.Fail(protocol.ErrForbidden, nil))
			return
		}
		id := strings.TrimSpace(r.URL.Query().Get("structure"))
		hostile, err := strconv.ParseBool(r.URL.Query().Get("hostile"))
		if err != nil {
			writeAdmin(rw, protocol.Fail(protocol.ErrBadRequest, fmt.Errorf("need ?structure=<id>&hostile=<bool>")))
			return
		}
		if _, ok := ids.ParseStructureID(id); !ok {
			writeAdmin(rw, protocol.Fail(protocol.ErrBadRequest, fmt.Errorf("malformed structure id %q", id)))
			return
		}
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		if err := w.RequestHostile(ctx2, id, hostile); err != nil {
			writeAdmin(rw, protocol.Fail(adminErrCode(err, protocol.ErrInternal), err))
			return
		}
		logger.Printf("admin hostile structure=%s hostile=%v", id, hostile)
		writeAdmin(rw, protocol.AdminResponse{OK: true, StructureID: id, Hostile: &hostile})
	})
	return mux
}

func adminErrCode(err error, def string) string {
	switch {
	case errors.Is(err, world.ErrUnknownStructure):
		return protocol.ErrStructureNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return protocol.ErrTimeout
	}
	return def
}

func writeAdmin(rw http.ResponseWriter, resp protocol.AdminResponse) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(protocol.HTTPStatus(resp.Code))
	_ = json.NewEncoder(rw).Encode(resp)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
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

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
