package room

import "fmt"

// Door is one door slot of a placed room, in shifted grid coordinates.
type Door struct {
	X, Y   int
	Exists bool
	// Props holds XML door attributes this tool does not interpret.
	Props Props
}

// Point returns the door's position.
func (d Door) Point() Point {
	return Point{X: d.X, Y: d.Y}
}

// TemplateDoors returns a fresh copy of the shape's canonical doors, all
// marked as existing.
//
// Precondition: s must be Valid.
func TemplateDoors(s Shape) []Door {
	data := ShapeOf(s)
	doors := make([]Door, len(data.Doors))
	for i, p := range data.Doors {
		doors[i] = Door{X: p.X, Y: p.Y, Exists: true}
	}
	return doors
}

// Info carries a room's game-logic identity and its shape-derived geometry.
type Info struct {
	Type    int
	Variant int
	Subtype int
	Shape   Shape
	Doors   []Door
}

// NewInfo builds an Info whose doors are the shape's template.
//
// Precondition: shape must be Valid.
func NewInfo(typ, variant, subtype int, shape Shape) Info {
	return Info{
		Type:    typ,
		Variant: variant,
		Subtype: subtype,
		Shape:   shape,
		Doors:   TemplateDoors(shape),
	}
}

// Data returns the static geometry for the info's shape.
func (i Info) Data() *ShapeData {
	return ShapeOf(i.Shape)
}

// Dims returns the spawn grid size. Closets report their base shape's size.
func (i Info) Dims() Dims {
	return i.Data().GridDims
}

// Width returns the shape's own padded width, used for rendering extents.
func (i Info) Width() int {
	return i.Data().Dims.Width
}

// Height returns the shape's own padded height, used for rendering extents.
func (i Info) Height() int {
	return i.Data().Dims.Height
}

// GridLen returns the number of cells in the spawn grid.
func (i Info) GridLen() int {
	return i.Dims().Len()
}

// GridIndex returns the flat index of (x, y) in this room's spawn grid.
func (i Info) GridIndex(x, y int) int {
	return GridIndex(x, y, i.Dims().Width)
}

// Coords is the inverse of GridIndex for this room's spawn grid.
func (i Info) Coords(index int) (int, int) {
	return Coords(index, i.Dims().Width)
}

// IsInBounds reports whether (x, y) is inside the playable area.
func (i Info) IsInBounds(x, y int) bool {
	return i.Data().IsInBounds(x, y)
}

// SnapToBounds clamps (x, y) dist cells inside every violated wall.
func (i Info) SnapToBounds(x, y, dist int) (int, int) {
	return i.Data().SnapToBounds(x, y, dist)
}

// InFrontOfDoor returns the template door directly adjacent to (x, y).
func (i Info) InFrontOfDoor(x, y int) (Point, bool) {
	return i.Data().InFrontOfDoor(x, y)
}

// DoorMismatches describes how Doors differ from the shape template. An empty
// result means the door list matches in count and position.
func (i Info) DoorMismatches() []string {
	data := i.Data()
	var out []string
	if len(i.Doors) != len(data.Doors) {
		out = append(out, fmt.Sprintf("shape %s expects %d doors, room has %d",
			data.Name, len(data.Doors), len(i.Doors)))
	}
	for _, d := range i.Doors {
		if !data.IsTemplateDoor(d.Point()) {
			out = append(out, fmt.Sprintf("door (%d,%d) is not a %s door slot", d.X, d.Y, data.Name))
		}
	}
	return out
}

// InGrid reports whether (x, y) names a cell of the spawn grid. Each axis is
// checked separately so an x past the row end never wraps to the next row.
func (i Info) InGrid(x, y int) bool {
	d := i.Dims()
	return x >= 0 && x < d.Width && y >= 0 && y < d.Height
}

// CellIndex returns the flat index of (x, y) and whether it is in the grid.
func (i Info) CellIndex(x, y int) (int, bool) {
	if !i.InGrid(x, y) {
		return -1, false
	}
	return i.GridIndex(x, y), true
}
