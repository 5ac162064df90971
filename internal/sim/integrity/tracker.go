package integrity

import (
	"fmt"
	"math"
)

// MissChance is the probability that an aggression event leaves the
// structure untouched.
const MissChance = 0.4

// Tracker is owned by one structure and driven by a single goroutine.
// Persistence calls need the same exclusive access as Scan.
type Tracker struct {
	worldID   string
	blueprint Blueprint
	observed  map[Pos]Status
	cursor    int
}

// New starts tracking a freshly completed structure. Every reference cell
// begins Preserved.
func New(worldID string, bp Blueprint) *Tracker {
	t := &Tracker{
		worldID:   worldID,
		blueprint: bp,
		observed:  make(map[Pos]Status, bp.Len()),
	}
	for _, e := range bp.entries {
		t.observed[e.Pos] = Preserved
	}
	return t
}

func (t *Tracker) WorldID() string      { return t.worldID }
func (t *Tracker) Blueprint() Blueprint { return t.blueprint }
func (t *Tracker) Cursor() int          { return t.cursor }

// Status reports the last observed status of pos. Positions never observed
// count as Preserved.
func (t *Tracker) Status(pos Pos) Status {
	if s, ok := t.observed[pos]; ok {
		return s
	}
	return Preserved
}

func (t *Tracker) checkWorld(w World) error {
	if w == nil {
		return fmt.Errorf("%w: nil world", ErrWrongWorld)
	}
	if id := w.WorldID(); id != t.worldID {
		return fmt.Errorf("%w: want %q got %q", ErrWrongWorld, t.worldID, id)
	}
	return nil
}

// Scan re-samples the next budget reference cells, wrapping around the
// blueprint as often as needed, and reports whether any status flipped.
func (t *Tracker) Scan(w World, budget int) (bool, error) {
	if err := t.checkWorld(w); err != nil {
		return false, err
	}
	if budget <= 0 {
		return false, fmt.Errorf("%w: %d", ErrBadBudget, budget)
	}
	n := t.blueprint.Len()
	if n == 0 {
		return false, nil
	}

	changed := false
	for i := 0; i < budget; i++ {
		t.cursor = wrap(t.cursor, n)
		e := t.blueprint.entries[t.cursor]

		next := Destroyed
		if w.ReadMaterial(e.Pos) == e.Expected {
			next = Preserved
		}
		if t.Status(e.Pos) != next {
			changed = true
		}
		t.observed[e.Pos] = next
		t.cursor++
	}
	t.cursor = wrap(t.cursor, n)
	return changed, nil
}

// Health maps the preserved ratio from [0.5,1] onto [0,100]. Anything at or
// below half intact is 0. An empty blueprint is always 100.
func (t *Tracker) Health() int {
	total := t.blueprint.Len()
	if total == 0 {
		return 100
	}
	preserved := t.PreservedCount()
	if 2*preserved <= total {
		return 0
	}
	if preserved >= total {
		return 100
	}
	// ((p/t - 0.5) / 0.5) * 100 == (2p - t) * 100 / t, kept in integers until the divide.
	return int(math.Round(float64((2*preserved-total)*100) / float64(total)))
}

func (t *Tracker) PreservedCount() int {
	n := 0
	for _, e := range t.blueprint.entries {
		if t.Status(e.Pos) == Preserved {
			n++
		}
	}
	return n
}

func (t *Tracker) DestroyedCount() int {
	return t.blueprint.Len() - t.PreservedCount()
}

// ApplyAggression resolves one hostile hit. A draw below MissChance misses.
// Otherwise the first reference cell (blueprint order) not yet marked
// Destroyed is cleared in the world and marked Destroyed. It returns the
// cleared position, if any.
func (t *Tracker) ApplyAggression(w World, draw float64) (Pos, bool, error) {
	if err := t.checkWorld(w); err != nil {
		return Pos{}, false, err
	}
	if draw < MissChance {
		return Pos{}, false, nil
	}
	for _, e := range t.blueprint.entries {
		if t.Status(e.Pos) == Destroyed {
			continue
		}
		w.WriteEmpty(e.Pos)
		t.observed[e.Pos] = Destroyed
		return e.Pos, true, nil
	}
	return Pos{}, false, nil
}

func wrap(c, n int) int {
	c %= n
	if c < 0 {
		c += n
	}
	return c
}
