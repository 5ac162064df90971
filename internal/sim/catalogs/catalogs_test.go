package catalogs

import (
	"os"
	"path/filepath"
	"testing"

	"voxelfort.ai/internal/sim/integrity"
)

func TestLoad_ConfigBlocks(t *testing.T) {
	c, err := Load("../../../configs")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Blocks.Palette[0] != "AIR" || c.Blocks.Index["AIR"] != 0 {
		t.Fatalf("AIR must be palette id 0, palette=%v", c.Blocks.Palette)
	}
	for _, id := range []string{"STONE", "PLANK", "DIRT"} {
		if _, ok := c.Blocks.Index[id]; !ok {
			t.Fatalf("missing %s", id)
		}
	}
}

func TestBlockCatalog_ResolvesMaterials(t *testing.T) {
	c, err := FromDefs([]BlockDef{{ID: "STONE"}, {ID: "AIR"}, {ID: "BRICK"}})
	if err != nil {
		t.Fatalf("from defs: %v", err)
	}
	var res integrity.Resolver = &c.Blocks

	if name, ok := res.MaterialName(integrity.Empty); !ok || name != "AIR" {
		t.Fatalf("empty: got %q %v", name, ok)
	}
	m, ok := res.MaterialByName("STONE")
	if !ok {
		t.Fatalf("STONE not resolved")
	}
	if name, _ := res.MaterialName(m); name != "STONE" {
		t.Fatalf("round trip: got %q", name)
	}
	if _, ok := res.MaterialName(99); ok {
		t.Fatalf("out-of-palette id should not resolve")
	}
	if _, ok := res.MaterialByName("UNOBTAINIUM"); ok {
		t.Fatalf("unknown name should not resolve")
	}
}

func TestLoad_RejectsMissingAir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "blocks.json"), []byte(`[{"id":"STONE"}]`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected error without AIR")
	}
}
