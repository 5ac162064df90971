package ids

import "testing"

func TestStructureIDRoundTrip(t *testing.T) {
	id := StructureID("BUILDER_7", 120, [3]int{-4, 1, 9})
	if id != "STRUCT_BUILDER_7_120_-4_1_9" {
		t.Fatalf("format: %s", id)
	}
	k, ok := ParseStructureID(id)
	if !ok {
		t.Fatalf("ParseStructureID failed for %q", id)
	}
	if k.BuilderID != "BUILDER_7" || k.Tick != 120 || k.Min != [3]int{-4, 1, 9} {
		t.Fatalf("unexpected parse result: %+v", k)
	}
}

func TestParseStructureIDRejectsInvalid(t *testing.T) {
	tests := []string{
		"",
		"STRUCT_",
		"STRUCT_A1_0_1_2",
		"STRUCT__0_0_1_0",
		"STRUCT_A1_x_0_1_0",
		"WALL_A1_0_0_1_0",
	}
	for _, tc := range tests {
		if _, ok := ParseStructureID(tc); ok {
			t.Fatalf("expected parse failure for %q", tc)
		}
	}
}

func TestParseSnapshotFileName(t *testing.T) {
	if n, ok := ParseSnapshotFileName(SnapshotFileName(3000)); !ok || n != 3000 {
		t.Fatalf("round trip: %d %v", n, ok)
	}
	for _, name := range []string{"3000.rollback.snap.zst", "x.snap.zst", "3000.snap"} {
		if _, ok := ParseSnapshotFileName(name); ok {
			t.Fatalf("expected parse failure for %q", name)
		}
	}
}
