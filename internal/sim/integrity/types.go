// Package integrity tracks how much of a completed structure is still standing.
//
// A Tracker holds an immutable reference blueprint captured when the structure
// was completed, re-samples the live world a few cells per tick, and reduces
// the observed state to a single 0..100 health value.
package integrity

import "errors"

// Pos is an exact world cell coordinate, usable as a map key.
type Pos struct {
	X int
	Y int
	Z int
}

func (p Pos) ToArray() [3]int { return [3]int{p.X, p.Y, p.Z} }

func PosFromArray(a [3]int) Pos { return Pos{X: a[0], Y: a[1], Z: a[2]} }

// Material is a block palette id. Its numeric value is only meaningful inside
// one running process; persisted data refers to materials by name.
type Material uint16

// Empty is the AIR palette slot. It is never part of a blueprint.
const Empty Material = 0

// Status is the last observed state of one reference cell. It is persisted
// by name.
type Status uint8

const (
	Preserved Status = iota
	Destroyed
)

func (s Status) String() string {
	switch s {
	case Preserved:
		return "PRESERVED"
	case Destroyed:
		return "DESTROYED"
	default:
		return "UNKNOWN"
	}
}

// ParseStatus is the inverse of String for the known statuses.
func ParseStatus(name string) (Status, bool) {
	switch name {
	case "PRESERVED":
		return Preserved, true
	case "DESTROYED":
		return Destroyed, true
	default:
		return 0, false
	}
}

// World is the slice of the host world a tracker needs. Calls are synchronous
// and their effects are visible immediately.
type World interface {
	WorldID() string
	ReadMaterial(pos Pos) Material
	WriteEmpty(pos Pos)
}

// Resolver maps palette ids to stable names and back.
type Resolver interface {
	MaterialName(m Material) (string, bool)
	MaterialByName(name string) (Material, bool)
}

var (
	ErrWrongWorld = errors.New("integrity: structure does not belong to this world")
	ErrBadBudget  = errors.New("integrity: scan budget must be positive")
	ErrCorrupt    = errors.New("integrity: corrupt record")
)
