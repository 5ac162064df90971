package integrity

// Entry is one reference cell and the material expected there.
type Entry struct {
	Pos      Pos
	Expected Material
}

// Blueprint is the ordered reference snapshot of a completed structure.
// Order only affects scan scheduling.
type Blueprint struct {
	entries []Entry
}

// NewBlueprint builds a blueprint from cells in the order the caller
// enumerated them. Empty cells are dropped; a repeated position keeps its
// first material.
func NewBlueprint(cells []Entry) Blueprint {
	out := make([]Entry, 0, len(cells))
	seen := make(map[Pos]struct{}, len(cells))
	for _, c := range cells {
		if c.Expected == Empty {
			continue
		}
		if _, ok := seen[c.Pos]; ok {
			continue
		}
		seen[c.Pos] = struct{}{}
		out = append(out, c)
	}
	return Blueprint{entries: out}
}

func (b Blueprint) Len() int { return len(b.entries) }

func (b Blueprint) At(i int) Entry { return b.entries[i] }

// Entries returns a copy of the reference entries.
func (b Blueprint) Entries() []Entry {
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}
