// Package room provides the room data model and the shape-aware geometry
// tables used by the stage bundle and XML codecs.
package room

import (
	"errors"
	"fmt"
)

// Shape identifies one of the twelve room footprints.
type Shape int

// Room shapes as numbered in the game's data files.
const (
	Shape1x1     Shape = 1
	ShapeIH      Shape = 2 // horizontal closet over a 1x1
	ShapeIV      Shape = 3 // vertical closet over a 1x1
	Shape1x2     Shape = 4
	ShapeIIV     Shape = 5 // tall closet over a 1x2
	Shape2x1     Shape = 6
	ShapeIIH     Shape = 7 // wide closet over a 2x1
	Shape2x2     Shape = 8
	ShapeLTL     Shape = 9  // 2x2 missing the top-left quadrant
	ShapeLTR     Shape = 10 // 2x2 missing the top-right quadrant
	ShapeLBL     Shape = 11 // 2x2 missing the bottom-left quadrant
	ShapeLBR     Shape = 12 // 2x2 missing the bottom-right quadrant
	MinShape           = Shape1x1
	MaxShape           = ShapeLBR
	DefaultShape       = Shape1x1
)

// ErrInvalidShape is returned when a shape id falls outside 1..12.
var ErrInvalidShape = errors.New("invalid room shape")

// Valid reports whether s is one of the twelve known shapes.
func (s Shape) Valid() bool {
	return s >= MinShape && s <= MaxShape
}

// String returns the shape's short name, e.g. "1x1" or "LTR".
func (s Shape) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Shape(%d)", int(s))
	}
	return shapeTable[s].Name
}

// Axis names the coordinate a wall spans.
type Axis int

// Wall axes. An AxisX wall runs horizontally and bounds Y; an AxisY wall runs
// vertically and bounds X.
const (
	AxisX Axis = iota
	AxisY
)

func (a Axis) String() string {
	if a == AxisX {
		return "X"
	}
	return "Y"
}

// Point is a cell position in shifted grid coordinates.
type Point struct {
	X, Y int
}

// Dims is a grid size in cells, border included.
type Dims struct {
	Width, Height int
}

// Len returns the number of cells in the grid.
func (d Dims) Len() int {
	return d.Width * d.Height
}

// Wall is one straight wall segment. Min and Max bound the span along the
// wall's axis, Coord is the fixed cross-axis position and Normal is +1 or -1,
// pointing into the room.
type Wall struct {
	Min, Max int
	Coord    int
	Normal   int
}

// allows reports whether a point with the given along-axis and cross-axis
// coordinates sits on the inner side of w. Points outside the span are not
// constrained by w.
func (w Wall) allows(along, cross int) bool {
	if along < w.Min || along > w.Max {
		return true
	}
	if w.Normal < 0 {
		return cross < w.Coord
	}
	return cross > w.Coord
}

// DoorWall associates a template door with the wall segment it sits on.
type DoorWall struct {
	Door Point
	Wall Wall
	Axis Axis
}

// ShapeData is the static geometry for one shape. All coordinates are shifted
// by +1 so that border cells index from zero.
type ShapeData struct {
	Shape Shape
	Name  string
	// Doors lists the canonical door slots in game slot order.
	Doors  []Point
	WallsX []Wall
	WallsY []Wall
	// Dims is the shape's own padded footprint, used for rendering extents.
	Dims Dims
	// GridDims is the padded size of the spawn grid. For closets it is the
	// base shape's Dims.
	GridDims Dims
	// Offset is the top-left interior cell of the footprint inside the grid.
	Offset    Point
	BaseShape Shape
	MirrorX   Shape
	MirrorY   Shape
	DoorWalls []DoorWall
}

// shapeTemplate holds the hand-written table entries in unshifted, 0-based
// interior coordinates. Walls are {min, max, coord, normal}.
type shapeTemplate struct {
	name      string
	doors     [][2]int
	wallsX    [][4]int
	wallsY    [][4]int
	size      [2]int
	offset    [2]int
	baseShape Shape
	mirrorX   Shape
	mirrorY   Shape
}

var shapeTemplates = map[Shape]shapeTemplate{
	Shape1x1: {
		name:   "1x1",
		doors:  [][2]int{{-1, 3}, {6, -1}, {13, 3}, {6, 7}},
		wallsX: [][4]int{{0, 12, -1, 1}, {0, 12, 7, -1}},
		wallsY: [][4]int{{0, 6, -1, 1}, {0, 6, 13, -1}},
		size:   [2]int{13, 7},
	},
	ShapeIH: {
		name:      "IH",
		doors:     [][2]int{{-1, 3}, {13, 3}},
		wallsX:    [][4]int{{0, 12, 1, 1}, {0, 12, 5, -1}},
		wallsY:    [][4]int{{2, 4, -1, 1}, {2, 4, 13, -1}},
		size:      [2]int{13, 3},
		offset:    [2]int{0, 2},
		baseShape: Shape1x1,
	},
	ShapeIV: {
		name:      "IV",
		doors:     [][2]int{{6, -1}, {6, 7}},
		wallsX:    [][4]int{{4, 8, -1, 1}, {4, 8, 7, -1}},
		wallsY:    [][4]int{{0, 6, 3, 1}, {0, 6, 9, -1}},
		size:      [2]int{5, 7},
		offset:    [2]int{4, 0},
		baseShape: Shape1x1,
	},
	Shape1x2: {
		name:   "1x2",
		doors:  [][2]int{{-1, 3}, {6, -1}, {13, 3}, {6, 14}, {-1, 10}, {13, 10}},
		wallsX: [][4]int{{0, 12, -1, 1}, {0, 12, 14, -1}},
		wallsY: [][4]int{{0, 13, -1, 1}, {0, 13, 13, -1}},
		size:   [2]int{13, 14},
	},
	ShapeIIV: {
		name:      "IIV",
		doors:     [][2]int{{6, -1}, {6, 14}},
		wallsX:    [][4]int{{4, 8, -1, 1}, {4, 8, 14, -1}},
		wallsY:    [][4]int{{0, 13, 3, 1}, {0, 13, 9, -1}},
		size:      [2]int{5, 14},
		offset:    [2]int{4, 0},
		baseShape: Shape1x2,
	},
	Shape2x1: {
		name:   "2x1",
		doors:  [][2]int{{-1, 3}, {6, -1}, {26, 3}, {6, 7}, {19, -1}, {19, 7}},
		wallsX: [][4]int{{0, 25, -1, 1}, {0, 25, 7, -1}},
		wallsY: [][4]int{{0, 6, -1, 1}, {0, 6, 26, -1}},
		size:   [2]int{26, 7},
	},
	ShapeIIH: {
		name:      "IIH",
		doors:     [][2]int{{-1, 3}, {26, 3}},
		wallsX:    [][4]int{{0, 25, 1, 1}, {0, 25, 5, -1}},
		wallsY:    [][4]int{{2, 4, -1, 1}, {2, 4, 26, -1}},
		size:      [2]int{26, 3},
		offset:    [2]int{0, 2},
		baseShape: Shape2x1,
	},
	Shape2x2: {
		name:   "2x2",
		doors:  [][2]int{{-1, 3}, {6, -1}, {26, 3}, {6, 14}, {-1, 10}, {19, -1}, {26, 10}, {19, 14}},
		wallsX: [][4]int{{0, 25, -1, 1}, {0, 25, 14, -1}},
		wallsY: [][4]int{{0, 13, -1, 1}, {0, 13, 26, -1}},
		size:   [2]int{26, 14},
	},
	ShapeLTL: {
		name:      "LTL",
		doors:     [][2]int{{12, 3}, {6, 6}, {26, 3}, {6, 14}, {-1, 10}, {19, -1}, {26, 10}, {19, 14}},
		wallsX:    [][4]int{{0, 12, 6, 1}, {13, 25, -1, 1}, {0, 25, 14, -1}},
		wallsY:    [][4]int{{7, 13, -1, 1}, {0, 6, 12, 1}, {0, 13, 26, -1}},
		size:      [2]int{26, 14},
		baseShape: Shape2x2,
		mirrorX:   ShapeLTR,
		mirrorY:   ShapeLBL,
	},
	ShapeLTR: {
		name:      "LTR",
		doors:     [][2]int{{-1, 3}, {6, -1}, {13, 3}, {6, 14}, {-1, 10}, {19, 6}, {26, 10}, {19, 14}},
		wallsX:    [][4]int{{0, 12, -1, 1}, {13, 25, 6, 1}, {0, 25, 14, -1}},
		wallsY:    [][4]int{{0, 13, -1, 1}, {0, 6, 13, -1}, {7, 13, 26, -1}},
		size:      [2]int{26, 14},
		baseShape: Shape2x2,
		mirrorX:   ShapeLTL,
		mirrorY:   ShapeLBR,
	},
	ShapeLBL: {
		name:      "LBL",
		doors:     [][2]int{{-1, 3}, {6, -1}, {26, 3}, {6, 7}, {12, 10}, {19, -1}, {26, 10}, {19, 14}},
		wallsX:    [][4]int{{0, 25, -1, 1}, {0, 12, 7, -1}, {13, 25, 14, -1}},
		wallsY:    [][4]int{{0, 6, -1, 1}, {7, 13, 12, 1}, {0, 13, 26, -1}},
		size:      [2]int{26, 14},
		baseShape: Shape2x2,
		mirrorX:   ShapeLBR,
		mirrorY:   ShapeLTL,
	},
	ShapeLBR: {
		name:      "LBR",
		doors:     [][2]int{{-1, 3}, {6, -1}, {26, 3}, {6, 14}, {-1, 10}, {19, -1}, {13, 10}, {19, 7}},
		wallsX:    [][4]int{{0, 25, -1, 1}, {0, 12, 14, -1}, {13, 25, 7, -1}},
		wallsY:    [][4]int{{0, 13, -1, 1}, {0, 6, 26, -1}, {7, 13, 13, -1}},
		size:      [2]int{26, 14},
		baseShape: Shape2x2,
		mirrorX:   ShapeLBL,
		mirrorY:   ShapeLTR,
	},
}

// shapeTable is indexed by Shape; entry 0 is unused.
var shapeTable = buildShapeTable()

func buildShapeTable() [MaxShape + 1]ShapeData {
	var table [MaxShape + 1]ShapeData
	for s := MinShape; s <= MaxShape; s++ {
		table[s] = buildShape(s, shapeTemplates[s])
	}
	for s := MinShape; s <= MaxShape; s++ {
		data := &table[s]
		data.GridDims = data.Dims
		if data.BaseShape != 0 {
			data.GridDims = table[data.BaseShape].Dims
		}
	}
	return table
}

func buildShape(s Shape, t shapeTemplate) ShapeData {
	data := ShapeData{
		Shape:     s,
		Name:      t.name,
		Dims:      Dims{Width: t.size[0] + 2, Height: t.size[1] + 2},
		Offset:    Point{X: t.offset[0] + 1, Y: t.offset[1] + 1},
		BaseShape: t.baseShape,
		MirrorX:   t.mirrorX,
		MirrorY:   t.mirrorY,
	}
	for _, d := range t.doors {
		data.Doors = append(data.Doors, Point{X: d[0] + 1, Y: d[1] + 1})
	}
	shiftWall := func(w [4]int) Wall {
		return Wall{Min: w[0] + 1, Max: w[1] + 1, Coord: w[2] + 1, Normal: w[3]}
	}
	for _, w := range t.wallsX {
		data.WallsX = append(data.WallsX, shiftWall(w))
	}
	for _, w := range t.wallsY {
		data.WallsY = append(data.WallsY, shiftWall(w))
	}

	for _, door := range data.Doors {
		if dw, ok := wallForDoor(door, data.WallsX, data.WallsY); ok {
			data.DoorWalls = append(data.DoorWalls, dw)
		}
	}
	return data
}

func wallForDoor(door Point, wallsX, wallsY []Wall) (DoorWall, bool) {
	for _, w := range wallsX {
		if door.X >= w.Min && door.X <= w.Max && door.Y == w.Coord {
			return DoorWall{Door: door, Wall: w, Axis: AxisX}, true
		}
	}
	for _, w := range wallsY {
		if door.Y >= w.Min && door.Y <= w.Max && door.X == w.Coord {
			return DoorWall{Door: door, Wall: w, Axis: AxisY}, true
		}
	}
	return DoorWall{}, false
}

// LookupShape returns the static geometry for s.
//
// Postcondition: returns the shape's data, or ErrInvalidShape when s is not in 1..12.
func LookupShape(s Shape) (*ShapeData, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidShape, int(s))
	}
	return &shapeTable[s], nil
}

// ShapeOf returns the static geometry for s.
//
// Precondition: s must be Valid; an invalid shape panics.
func ShapeOf(s Shape) *ShapeData {
	data, err := LookupShape(s)
	if err != nil {
		panic(err)
	}
	return data
}

// AllShapes returns every shape in ascending order.
func AllShapes() []Shape {
	out := make([]Shape, 0, MaxShape)
	for s := MinShape; s <= MaxShape; s++ {
		out = append(out, s)
	}
	return out
}

// IsInBounds reports whether (x, y) lies inside the playable area of the shape.
func (d *ShapeData) IsInBounds(x, y int) bool {
	for _, w := range d.WallsX {
		if !w.allows(x, y) {
			return false
		}
	}
	for _, w := range d.WallsY {
		if !w.allows(y, x) {
			return false
		}
	}
	return true
}

// SnapToBounds moves (x, y) to dist cells inside each wall it violates. A
// negative dist places the point outside the wall instead.
func (d *ShapeData) SnapToBounds(x, y, dist int) (int, int) {
	for _, w := range d.WallsX {
		if !w.allows(x, y) {
			y = w.Coord + w.Normal*dist
		}
	}
	for _, w := range d.WallsY {
		if !w.allows(y, x) {
			x = w.Coord + w.Normal*dist
		}
	}
	return x, y
}

// InFrontOfDoor returns the template door whose wall the point sits directly
// inside of, one cell along the wall normal.
func (d *ShapeData) InFrontOfDoor(x, y int) (Point, bool) {
	for _, dw := range d.DoorWalls {
		switch dw.Axis {
		case AxisX:
			if dw.Door.X == x && y-dw.Door.Y == dw.Wall.Normal {
				return dw.Door, true
			}
		case AxisY:
			if dw.Door.Y == y && x-dw.Door.X == dw.Wall.Normal {
				return dw.Door, true
			}
		}
	}
	return Point{}, false
}

// IsTemplateDoor reports whether p is one of the shape's canonical door slots.
func (d *ShapeData) IsTemplateDoor(p Point) bool {
	for _, door := range d.Doors {
		if door == p {
			return true
		}
	}
	return false
}

// InferShape returns the first shape whose own padded Dims match
// (width+2, height+2), considering only candidates. It falls back to
// DefaultShape.
func InferShape(width, height int, candidates []Shape) (Shape, bool) {
	want := Dims{Width: width + 2, Height: height + 2}
	for _, s := range candidates {
		if shapeTable[s].Dims == want {
			return s, true
		}
	}
	return DefaultShape, false
}

// BaseShapes are the four full-size rectangular shapes.
var BaseShapes = []Shape{Shape1x1, Shape1x2, Shape2x1, Shape2x2}

// GridIndex converts a grid position to a flat row-major index.
func GridIndex(x, y, width int) int {
	return y*width + x
}

// Coords converts a flat row-major index back to a grid position.
func Coords(index, width int) (int, int) {
	return index % width, index / width
}
