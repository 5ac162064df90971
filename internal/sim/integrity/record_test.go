package integrity

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
)

type fakeResolver map[Material]string

func (r fakeResolver) MaterialName(m Material) (string, bool) {
	n, ok := r[m]
	return n, ok
}

func (r fakeResolver) MaterialByName(name string) (Material, bool) {
	for m, n := range r {
		if n == name {
			return m, true
		}
	}
	return 0, false
}

var testPalette = fakeResolver{
	Empty:    "AIR",
	matStone: "STONE",
	matPlank: "PLANK",
	matGlass: "GLASS",
}

func cloneWorld(w *fakeWorld) *fakeWorld {
	out := newFakeWorld(w.id)
	for p, m := range w.cells {
		out.cells[p] = m
	}
	return out
}

func TestSerialize_RoundTripPreservesStateAndBehaviour(t *testing.T) {
	w := newFakeWorld("OVERWORLD")
	tr := New("OVERWORLD", NewBlueprint(buildLine(w, 9)))
	w.cells[Pos{X: 3, Y: 1}] = matGlass
	if _, err := tr.Scan(w, 5); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if _, _, err := tr.ApplyAggression(w, 0.7); err != nil {
		t.Fatalf("aggression: %v", err)
	}
	if _, err := tr.Scan(w, 2); err != nil {
		t.Fatalf("scan: %v", err)
	}

	var buf bytes.Buffer
	if err := tr.SerializeTo(&buf, testPalette); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, err := DeserializeFrom(bytes.NewReader(buf.Bytes()), "OVERWORLD", testPalette)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	if !reflect.DeepEqual(got.blueprint, tr.blueprint) {
		t.Fatalf("blueprint mismatch")
	}
	if !reflect.DeepEqual(got.observed, tr.observed) {
		t.Fatalf("observed mismatch:\n got %v\nwant %v", got.observed, tr.observed)
	}
	if got.Cursor() != tr.Cursor() || got.WorldID() != tr.WorldID() {
		t.Fatalf("cursor/world mismatch: got %d/%s want %d/%s", got.Cursor(), got.WorldID(), tr.Cursor(), tr.WorldID())
	}

	// Both copies must evolve identically from here.
	wa, wb := cloneWorld(w), cloneWorld(w)
	wa.cells[Pos{X: 8, Y: 1}] = Empty
	wb.cells[Pos{X: 8, Y: 1}] = Empty
	for i := 0; i < 6; i++ {
		ca, erra := tr.Scan(wa, 2)
		cb, errb := got.Scan(wb, 2)
		if erra != nil || errb != nil {
			t.Fatalf("scan %d: %v / %v", i, erra, errb)
		}
		if ca != cb || tr.Health() != got.Health() || tr.Cursor() != got.Cursor() {
			t.Fatalf("scan %d diverged: changed %v/%v health %d/%d cursor %d/%d",
				i, ca, cb, tr.Health(), got.Health(), tr.Cursor(), got.Cursor())
		}
	}
}

func TestRecord_UsesNamesNotPaletteIDs(t *testing.T) {
	w := newFakeWorld("W")
	tr := New("W", NewBlueprint(buildLine(w, 2)))
	w.cells[Pos{X: 1, Y: 1}] = Empty
	if _, err := tr.Scan(w, 2); err != nil {
		t.Fatalf("scan: %v", err)
	}
	rec, err := tr.Record(testPalette)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	want := RecordV1{
		Cursor: 0,
		Reference: []ReferenceV1{
			{Pos: [3]int{0, 1, 0}, Material: "STONE"},
			{Pos: [3]int{1, 1, 0}, Material: "PLANK"},
		},
		Observed: []ObservedV1{
			{Pos: [3]int{0, 1, 0}, Status: "PRESERVED"},
			{Pos: [3]int{1, 1, 0}, Status: "DESTROYED"},
		},
	}
	if !reflect.DeepEqual(rec, want) {
		t.Fatalf("record:\n got %+v\nwant %+v", rec, want)
	}

	// A different palette numbering resolves the same names.
	renumbered := fakeResolver{Empty: "AIR", 7: "PLANK", 9: "STONE"}
	back, err := FromRecord("W", rec, renumbered)
	if err != nil {
		t.Fatalf("from record: %v", err)
	}
	if back.Blueprint().At(0).Expected != 9 || back.Blueprint().At(1).Expected != 7 {
		t.Fatalf("renumbered materials: %+v", back.Blueprint().Entries())
	}
}

func TestRecord_UnnamedMaterialFails(t *testing.T) {
	tr := New("W", NewBlueprint([]Entry{{Pos: Pos{}, Expected: 42}}))
	if _, err := tr.Record(testPalette); err == nil {
		t.Fatalf("expected error for unnamed material")
	}
}

func TestDeserialize_MissingSectionsAreEmpty(t *testing.T) {
	for _, doc := range []string{
		`{}`,
		`{"cursor":3}`,
		`{"reference":null,"observed":null}`,
	} {
		tr, err := DeserializeFrom(strings.NewReader(doc), "W", testPalette)
		if err != nil {
			t.Fatalf("%s: %v", doc, err)
		}
		if tr.Blueprint().Len() != 0 || len(tr.observed) != 0 || tr.Health() != 100 {
			t.Fatalf("%s: expected empty tracker", doc)
		}
	}

	doc := `{"cursor":1,"reference":[{"pos":[0,0,0],"material":"STONE"},{"pos":[1,0,0],"material":"PLANK"}]}`
	tr, err := DeserializeFrom(strings.NewReader(doc), "W", testPalette)
	if err != nil {
		t.Fatalf("reference only: %v", err)
	}
	if tr.Blueprint().Len() != 2 || len(tr.observed) != 0 {
		t.Fatalf("reference only: len=%d observed=%d", tr.Blueprint().Len(), len(tr.observed))
	}
	if tr.Health() != 100 {
		t.Fatalf("unobserved cells should count as preserved, health=%d", tr.Health())
	}
	w := newFakeWorld("W")
	if _, hit, _ := tr.ApplyAggression(w, 0.9); !hit {
		t.Fatalf("unobserved cells should be eligible for aggression")
	}
}

func TestDeserialize_CorruptSectionsFailLoudly(t *testing.T) {
	cases := map[string]string{
		"unknown status":   `{"reference":[{"pos":[0,0,0],"material":"STONE"}],"observed":[{"pos":[0,0,0],"status":"CRACKED"}]}`,
		"short pos":        `{"reference":[{"pos":[0,0],"material":"STONE"}]}`,
		"string pos":       `{"reference":[{"pos":"0,0,0","material":"STONE"}]}`,
		"fractional pos":   `{"reference":[{"pos":[0,0.5,0],"material":"STONE"}]}`,
		"unknown material": `{"reference":[{"pos":[0,0,0],"material":"UNOBTAINIUM"}]}`,
		"air in reference": `{"reference":[{"pos":[0,0,0],"material":"AIR"}]}`,
		"missing material": `{"reference":[{"pos":[0,0,0]}]}`,
		"duplicate pos":    `{"reference":[{"pos":[0,0,0],"material":"STONE"},{"pos":[0,0,0],"material":"PLANK"}]}`,
		"observed outside": `{"reference":[{"pos":[0,0,0],"material":"STONE"}],"observed":[{"pos":[5,5,5],"status":"DESTROYED"}]}`,
		"cursor not int":   `{"cursor":"two"}`,
		"reference object": `{"reference":{"pos":[0,0,0]}}`,
		"truncated":        `{"reference":[{"pos":[0,0,0],"mate`,
		"not an object":    `[]`,
		"empty input":      ``,
	}
	for name, doc := range cases {
		_, err := DeserializeFrom(strings.NewReader(doc), "W", testPalette)
		if !errors.Is(err, ErrCorrupt) {
			t.Fatalf("%s: expected ErrCorrupt, got %v", name, err)
		}
	}
}

func TestFromRecord_CursorIsWrappedOnFirstScan(t *testing.T) {
	w := newFakeWorld("W")
	cells := buildLine(w, 10)
	rec, err := New("W", NewBlueprint(cells)).Record(testPalette)
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	for _, tc := range []struct{ cursor, wantX int }{{25, 5}, {-1, 9}, {10, 0}} {
		rec.Cursor = tc.cursor
		tr, err := FromRecord("W", rec, testPalette)
		if err != nil {
			t.Fatalf("cursor %d: %v", tc.cursor, err)
		}
		if tr.Cursor() != tc.cursor {
			t.Fatalf("cursor %d: loaded as %d", tc.cursor, tr.Cursor())
		}
		w.reads = nil
		if _, err := tr.Scan(w, 1); err != nil {
			t.Fatalf("cursor %d: scan: %v", tc.cursor, err)
		}
		if len(w.reads) != 1 || w.reads[0].X != tc.wantX {
			t.Fatalf("cursor %d: examined %v, want X=%d", tc.cursor, w.reads, tc.wantX)
		}
		if want := (tc.wantX + 1) % 10; tr.Cursor() != want {
			t.Fatalf("cursor %d: after scan %d want %d", tc.cursor, tr.Cursor(), want)
		}
	}
}
