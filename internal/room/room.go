package room

import (
	"fmt"
	"iter"
	"time"
)

// Room is one room definition with its spawn grid.
type Room struct {
	Name       string
	Info       Info
	Difficulty int
	Weight     float32
	// GridSpawns is indexed by Info.GridIndex over the padded grid.
	GridSpawns [][]Entity
	// LastTestTime is only carried by the XML format.
	LastTestTime *time.Time
	// LastTestLayout is the time layout LastTestTime was read with. Empty
	// means RFC 3339.
	LastTestLayout string
	// Props holds XML room attributes this tool does not interpret.
	Props Props
	// SpawnProps holds uninterpreted XML attributes of spawn cells, keyed by
	// cell position. Cells without extra attributes have no entry.
	SpawnProps map[Point]Props
}

// New constructs a room with an empty spawn grid sized for info's shape.
//
// Precondition: info.Shape must be Valid.
// Postcondition: len(GridSpawns) == info.GridLen().
func New(name string, info Info, difficulty int, weight float32) *Room {
	return &Room{
		Name:       name,
		Info:       info,
		Difficulty: difficulty,
		Weight:     weight,
		GridSpawns: make([][]Entity, info.GridLen()),
	}
}

// Stack returns the entities at (x, y), or nil when either coordinate is
// outside the grid.
func (r *Room) Stack(x, y int) []Entity {
	idx, ok := r.cell(x, y)
	if !ok {
		return nil
	}
	return r.GridSpawns[idx]
}

func (r *Room) cell(x, y int) (int, bool) {
	idx, ok := r.Info.CellIndex(x, y)
	if !ok || idx >= len(r.GridSpawns) {
		return -1, false
	}
	return idx, true
}

// AddEntity appends e to the stack at (e.X, e.Y).
//
// Postcondition: returns an error, leaving the room unchanged, when the
// position maps outside the grid.
func (r *Room) AddEntity(e Entity) error {
	idx, ok := r.cell(e.X, e.Y)
	if !ok {
		d := r.Info.Dims()
		return fmt.Errorf("entity %s at (%d,%d): outside %dx%d grid",
			e.ID(), e.X, e.Y, d.Width, d.Height)
	}
	r.GridSpawns[idx] = append(r.GridSpawns[idx], e)
	return nil
}

// RemoveEntity removes the i-th entity of the stack at (x, y).
//
// Postcondition: returns the removed entity and true, or false when there is
// no such entity.
func (r *Room) RemoveEntity(x, y, i int) (Entity, bool) {
	idx, ok := r.cell(x, y)
	if !ok {
		return Entity{}, false
	}
	stack := r.GridSpawns[idx]
	if i < 0 || i >= len(stack) {
		return Entity{}, false
	}
	e := stack[i]
	stack = append(stack[:i], stack[i+1:]...)
	if len(stack) == 0 {
		stack = nil
	}
	r.GridSpawns[idx] = stack
	return e, true
}

// Spawns yields every non-empty cell in row-major index order.
func (r *Room) Spawns() iter.Seq[Stack] {
	width := r.Info.Dims().Width
	return func(yield func(Stack) bool) {
		for idx, ents := range r.GridSpawns {
			if len(ents) == 0 {
				continue
			}
			x, y := Coords(idx, width)
			st := Stack{Index: idx, X: x, Y: y, Entities: ents, Props: r.SpawnProps[Point{X: x, Y: y}]}
			if !yield(st) {
				return
			}
		}
	}
}

// StackCount returns the number of non-empty cells.
func (r *Room) StackCount() int {
	n := 0
	for _, ents := range r.GridSpawns {
		if len(ents) > 0 {
			n++
		}
	}
	return n
}

// EntityCount returns the total number of entities across all cells.
func (r *Room) EntityCount() int {
	n := 0
	for _, ents := range r.GridSpawns {
		n += len(ents)
	}
	return n
}

// Reshape changes the room's shape and re-buckets its spawns into a grid sized
// for the new shape. Entities whose position falls outside the new grid are
// dropped. When doors is nil the new shape's template doors are used.
//
// Precondition: shape must be Valid.
// Postcondition: returns warnings for dropped entities and door mismatches.
func (r *Room) Reshape(shape Shape, doors []Door) []string {
	var warnings []string

	oldWidth := r.Info.Dims().Width
	old := r.GridSpawns

	r.Info.Shape = shape
	if doors == nil {
		r.Info.Doors = TemplateDoors(shape)
	} else {
		r.Info.Doors = doors
		warnings = append(warnings, r.Info.DoorMismatches()...)
	}

	r.GridSpawns = make([][]Entity, r.Info.GridLen())
	dropped := 0
	for idx, ents := range old {
		if len(ents) == 0 {
			continue
		}
		x, y := Coords(idx, oldWidth)
		nidx, ok := r.cell(x, y)
		if !ok {
			dropped += len(ents)
			continue
		}
		r.GridSpawns[nidx] = append(r.GridSpawns[nidx], ents...)
	}
	for p := range r.SpawnProps {
		if !r.Info.InGrid(p.X, p.Y) {
			delete(r.SpawnProps, p)
		}
	}
	if dropped > 0 {
		warnings = append(warnings, fmt.Sprintf("room %q: reshape to %s dropped %d entities outside the grid",
			r.Name, shape, dropped))
	}
	return warnings
}

// CheckConsistency reports structural mismatches between the room's data and
// its shape: door list vs template and spawn grid length. Nothing is corrected.
func (r *Room) CheckConsistency() []string {
	var out []string
	for _, m := range r.Info.DoorMismatches() {
		out = append(out, fmt.Sprintf("room %q: %s", r.Name, m))
	}
	if want := r.Info.GridLen(); len(r.GridSpawns) != want {
		out = append(out, fmt.Sprintf("room %q: spawn grid has %d cells, shape %s needs %d",
			r.Name, len(r.GridSpawns), r.Info.Shape, want))
	}
	return out
}

// FitGrid pads or truncates GridSpawns to the shape's grid length, returning
// the number of entities lost to truncation.
func (r *Room) FitGrid() int {
	want := r.Info.GridLen()
	if len(r.GridSpawns) == want {
		return 0
	}
	if len(r.GridSpawns) < want {
		grid := make([][]Entity, want)
		copy(grid, r.GridSpawns)
		r.GridSpawns = grid
		return 0
	}
	lost := 0
	for _, ents := range r.GridSpawns[want:] {
		lost += len(ents)
	}
	r.GridSpawns = r.GridSpawns[:want]
	return lost
}

// File is a loaded document: an ordered list of rooms plus passthrough
// attributes of the XML root element.
type File struct {
	Rooms []*Room
	Props Props
}

// EntityCount returns the total number of entities in every room.
func (f *File) EntityCount() int {
	n := 0
	for _, r := range f.Rooms {
		n += r.EntityCount()
	}
	return n
}

// RoomCount returns the number of rooms in the file.
func (f *File) RoomCount() int {
	return len(f.Rooms)
}
