package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voxelfort.ai/internal/protocol"
	"voxelfort.ai/internal/sim/catalogs"
	"voxelfort.ai/internal/sim/world"
)

func TestLatestSnapshot_PicksHighestTick(t *testing.T) {
	worldDir := t.TempDir()
	dir := filepath.Join(worldDir, "snapshots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{"900.snap.zst", "3000.snap.zst", "3000.rollback.snap.zst", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if got, want := latestSnapshot(worldDir), filepath.Join(dir, "3000.snap.zst"); got != want {
		t.Fatalf("latest: got %s want %s", got, want)
	}
	if got := latestSnapshot(t.TempDir()); got != "" {
		t.Fatalf("empty dir: got %s", got)
	}
}

func TestBuildDemoStructure(t *testing.T) {
	cats, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	w, err := world.New(world.WorldConfig{ID: "demo", TickRateHz: 5, Height: 16, Seed: 1, BoundaryR: 64, ScanBlocksPerTick: 4}, cats)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	id, err := buildDemoStructure(w, cats, true)
	if err != nil {
		t.Fatalf("demo: %v", err)
	}
	s, ok := w.Structure(id)
	if !ok {
		t.Fatalf("demo structure not registered")
	}
	// 25 floor cells plus 16 wall cells on each of two upper layers.
	if got := s.Tracker().Blueprint().Len(); got != 57 {
		t.Fatalf("blueprint len: got %d want 57", got)
	}
	if !s.Hostile {
		t.Fatalf("demo structure should be hostile")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	cats, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	w, err := world.New(world.WorldConfig{ID: "demo", TickRateHz: 5, Height: 16, Seed: 1, BoundaryR: 64, ScanBlocksPerTick: 4}, cats)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	if _, err := buildDemoStructure(w, cats, false); err != nil {
		t.Fatalf("demo: %v", err)
	}
	w.StepOnce(nil)

	srv := httptest.NewServer(newMux(w, nil, log.New(io.Discard, "", 0)))
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(body), `voxelfort_structure_health{world="demo",structure="STRUCT_DEMO_0_0_1_0"} 100`) {
		t.Fatalf("metrics missing structure health:\n%s", body)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5000": true,
		"[::1]:5000":     true,
		"10.0.0.2:5000":  false,
		"garbage":        false,
	}
	for in, want := range cases {
		if got := isLoopbackRemote(in); got != want {
			t.Fatalf("%s: got %v want %v", in, got, want)
		}
	}
}

func TestAdminHostileEndpoint(t *testing.T) {
	t.Setenv("VF_ENABLE_ADMIN_HTTP", "true")
	cats, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	w, err := world.New(world.WorldConfig{ID: "demo", TickRateHz: 20, Height: 16, Seed: 1, BoundaryR: 64, ScanBlocksPerTick: 4}, cats)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	id, err := buildDemoStructure(w, cats, false)
	if err != nil {
		t.Fatalf("demo: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	srv := httptest.NewServer(newMux(w, nil, log.New(io.Discard, "", 0)))
	defer srv.Close()

	post := func(query string) (int, protocol.AdminResponse) {
		t.Helper()
		resp, err := http.Post(srv.URL+"/admin/v1/hostile?"+query, "", nil)
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		r, err := protocol.DecodeResponse(b)
		if err != nil {
			t.Fatalf("decode %q: %v", b, err)
		}
		return resp.StatusCode, r
	}

	if code, r := post("structure=" + id + "&hostile=true"); code != http.StatusOK || !r.OK || r.Hostile == nil || !*r.Hostile {
		t.Fatalf("hostile: status=%d resp=%+v", code, r)
	}
	if code, r := post("structure=STRUCT_GHOST_0_0_0_0&hostile=true"); code != http.StatusNotFound || r.Code != protocol.ErrStructureNotFound {
		t.Fatalf("unknown: status=%d resp=%+v", code, r)
	}
	if code, r := post("structure=nope&hostile=true"); code != http.StatusBadRequest || r.Code != protocol.ErrBadRequest {
		t.Fatalf("malformed: status=%d resp=%+v", code, r)
	}

	resp, err := http.Get(srv.URL + "/admin/v1/hostile")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("get status: %d", resp.StatusCode)
	}

	cancel()
	<-done
	s, _ := w.Structure(id)
	if !s.Hostile {
		t.Fatalf("hostile flag not applied")
	}
}
