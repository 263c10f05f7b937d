// Package roomxml converts rooms to and from the XML interchange format.
//
// Widths and heights are stored without the one-cell border and door and
// spawn coordinates are 0-based, one less than their in-memory value.
// Attributes this package does not recognize are kept in the model's Props
// and written back unchanged.
package roomxml

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/stbtool/internal/room"
)

// Recognized attribute names.
const (
	attrType         = "type"
	attrVariant      = "variant"
	attrSubtype      = "subtype"
	attrName         = "name"
	attrShape        = "shape"
	attrWidth        = "width"
	attrHeight       = "height"
	attrDifficulty   = "difficulty"
	attrWeight       = "weight"
	attrLastTestTime = "lastTestTime"
	attrX            = "x"
	attrY            = "y"
	attrExists       = "exists"
)

var (
	roomAttrs = map[string]bool{
		attrType: true, attrVariant: true, attrSubtype: true, attrName: true,
		attrShape: true, attrWidth: true, attrHeight: true, attrDifficulty: true,
		attrWeight: true, attrLastTestTime: true,
	}
	entityAttrs = map[string]bool{
		attrType: true, attrVariant: true, attrSubtype: true, attrWeight: true,
	}
	doorAttrs  = map[string]bool{attrExists: true, attrX: true, attrY: true}
	spawnAttrs = map[string]bool{attrX: true, attrY: true}
)

// xmlDocument accepts either a <rooms> document or a bare <room> root.
type xmlDocument struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Rooms   []xmlRoom  `xml:"room"`
	Doors   []xmlDoor  `xml:"door"`
	Spawns  []xmlSpawn `xml:"spawn"`
}

type xmlRoom struct {
	Attrs  []xml.Attr `xml:",any,attr"`
	Doors  []xmlDoor  `xml:"door"`
	Spawns []xmlSpawn `xml:"spawn"`
}

type xmlDoor struct {
	Attrs []xml.Attr `xml:",any,attr"`
}

type xmlSpawn struct {
	Attrs    []xml.Attr  `xml:",any,attr"`
	Entities []xmlEntity `xml:"entity"`
}

type xmlEntity struct {
	Attrs []xml.Attr `xml:",any,attr"`
}

// attrSet indexes an element's attributes while keeping document order.
type attrSet struct {
	elem  string
	attrs []xml.Attr
	index map[string]string
}

func newAttrSet(elem string, attrs []xml.Attr) attrSet {
	s := attrSet{elem: elem, attrs: attrs, index: make(map[string]string, len(attrs))}
	for _, a := range attrs {
		s.index[attrKey(a.Name)] = a.Value
	}
	return s
}

func attrKey(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func (s attrSet) has(key string) bool {
	_, ok := s.index[key]
	return ok
}

func (s attrSet) str(key, def string) string {
	if v, ok := s.index[key]; ok {
		return v
	}
	return def
}

func (s attrSet) integer(key string) (int, error) {
	v, ok := s.index[key]
	if !ok {
		return 0, fmt.Errorf("%s: missing %q attribute", s.elem, key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: attribute %q: %w", s.elem, key, err)
	}
	return n, nil
}

func (s attrSet) integerOr(key string, def int) (int, error) {
	if !s.has(key) {
		return def, nil
	}
	return s.integer(key)
}

func (s attrSet) floatOr(key string, def float32) (float32, error) {
	v, ok := s.index[key]
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: attribute %q: %w", s.elem, key, err)
	}
	return float32(f), nil
}

func (s attrSet) boolOr(key string, def bool) (bool, error) {
	v, ok := s.index[key]
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: attribute %q: %w", s.elem, key, err)
	}
	return b, nil
}

// extra returns the attributes not in reserved, in document order.
func (s attrSet) extra(reserved map[string]bool) room.Props {
	var props room.Props
	for _, a := range s.attrs {
		if k := attrKey(a.Name); !reserved[k] {
			props = append(props, room.Prop{Key: k, Value: a.Value})
		}
	}
	return props
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// parseTime returns the parsed time and the layout that matched.
func parseTime(s string) (time.Time, string, error) {
	var firstErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, layout, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, "", firstErr
}

// Decode parses a <rooms> document, or a single <room> document such as a
// preview file.
//
// Postcondition: returns the whole document, or a non-nil error and no
// partial result.
func Decode(data []byte, logger *zap.Logger) (*room.File, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var doc xmlDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing room xml: %w", err)
	}

	file := &room.File{}
	var rooms []xmlRoom
	switch doc.XMLName.Local {
	case "rooms":
		file.Props = newAttrSet("rooms", doc.Attrs).extra(nil)
		rooms = doc.Rooms
	case "room":
		rooms = []xmlRoom{{Attrs: doc.Attrs, Doors: doc.Doors, Spawns: doc.Spawns}}
	default:
		return nil, fmt.Errorf("parsing room xml: unexpected root element <%s>", doc.XMLName.Local)
	}

	for i, xr := range rooms {
		rm, err := decodeRoom(xr, logger.With(zap.Int("room", i)))
		if err != nil {
			return nil, fmt.Errorf("room %d: %w", i, err)
		}
		file.Rooms = append(file.Rooms, rm)
	}
	return file, nil
}

func decodeRoom(xr xmlRoom, logger *zap.Logger) (*room.Room, error) {
	attrs := newAttrSet("room", xr.Attrs)
	name := attrs.str(attrName, "")
	logger = logger.With(zap.String("name", name))

	typ, err := attrs.integer(attrType)
	if err != nil {
		return nil, err
	}
	variant, err := attrs.integer(attrVariant)
	if err != nil {
		return nil, err
	}
	subtype, err := attrs.integerOr(attrSubtype, 0)
	if err != nil {
		return nil, err
	}
	difficulty, err := attrs.integerOr(attrDifficulty, 0)
	if err != nil {
		return nil, err
	}
	weight, err := attrs.floatOr(attrWeight, 1)
	if err != nil {
		return nil, err
	}
	width, err := attrs.integerOr(attrWidth, -1)
	if err != nil {
		return nil, err
	}
	height, err := attrs.integerOr(attrHeight, -1)
	if err != nil {
		return nil, err
	}

	var shape room.Shape
	if attrs.has(attrShape) {
		n, err := attrs.integer(attrShape)
		if err != nil {
			return nil, err
		}
		shape = room.Shape(n)
		if !shape.Valid() {
			return nil, fmt.Errorf("room %q: %w: %d", name, room.ErrInvalidShape, n)
		}
	} else {
		var matched bool
		shape, matched = room.InferShape(width, height, room.AllShapes())
		if !matched {
			logger.Debug("no shape matches room size, using default",
				zap.Int("width", width),
				zap.Int("height", height),
			)
		}
	}

	info := room.Info{Type: typ, Variant: variant, Subtype: subtype, Shape: shape}
	if dims := info.Dims(); width >= 0 && height >= 0 && (width+2 != dims.Width || height+2 != dims.Height) {
		logger.Warn("room size does not match shape",
			zap.Stringer("shape", shape),
			zap.Int("width", width),
			zap.Int("height", height),
		)
	}

	for i, xd := range xr.Doors {
		door, err := decodeDoor(xd)
		if err != nil {
			return nil, fmt.Errorf("room %q door %d: %w", name, i, err)
		}
		info.Doors = append(info.Doors, door)
	}

	rm := room.New(name, info, difficulty, weight)
	rm.Props = attrs.extra(roomAttrs)

	if attrs.has(attrLastTestTime) {
		raw := attrs.str(attrLastTestTime, "")
		t, layout, err := parseTime(raw)
		if err != nil {
			logger.Warn("ignoring malformed lastTestTime", zap.String("value", raw), zap.Error(err))
		} else {
			rm.LastTestTime = &t
			if layout != time.RFC3339Nano {
				rm.LastTestLayout = layout
			}
		}
	}

	for i, xs := range xr.Spawns {
		if err := decodeSpawn(rm, xs, logger); err != nil {
			return nil, fmt.Errorf("room %q spawn %d: %w", name, i, err)
		}
	}

	for _, w := range rm.CheckConsistency() {
		logger.Warn("room inconsistency", zap.String("detail", w))
	}
	return rm, nil
}

func decodeDoor(xd xmlDoor) (room.Door, error) {
	attrs := newAttrSet("door", xd.Attrs)
	x, err := attrs.integer(attrX)
	if err != nil {
		return room.Door{}, err
	}
	y, err := attrs.integer(attrY)
	if err != nil {
		return room.Door{}, err
	}
	exists, err := attrs.boolOr(attrExists, false)
	if err != nil {
		return room.Door{}, err
	}
	return room.Door{X: x + 1, Y: y + 1, Exists: exists, Props: attrs.extra(doorAttrs)}, nil
}

func decodeSpawn(rm *room.Room, xs xmlSpawn, logger *zap.Logger) error {
	attrs := newAttrSet("spawn", xs.Attrs)
	x, err := attrs.integer(attrX)
	if err != nil {
		return err
	}
	y, err := attrs.integer(attrY)
	if err != nil {
		return err
	}
	x, y = x+1, y+1

	idx, ok := rm.Info.CellIndex(x, y)
	if !ok {
		logger.Warn("dropping entity stack outside room grid",
			zap.Int("x", x-1),
			zap.Int("y", y-1),
			zap.Int("entities", len(xs.Entities)),
		)
		return nil
	}

	for i, xe := range xs.Entities {
		ea := newAttrSet("entity", xe.Attrs)
		typ, err := ea.integer(attrType)
		if err != nil {
			return fmt.Errorf("entity %d: %w", i, err)
		}
		variant, err := ea.integerOr(attrVariant, 0)
		if err != nil {
			return fmt.Errorf("entity %d: %w", i, err)
		}
		subtype, err := ea.integerOr(attrSubtype, 0)
		if err != nil {
			return fmt.Errorf("entity %d: %w", i, err)
		}
		weight, err := ea.floatOr(attrWeight, 1)
		if err != nil {
			return fmt.Errorf("entity %d: %w", i, err)
		}
		rm.GridSpawns[idx] = append(rm.GridSpawns[idx], room.Entity{
			X:       x,
			Y:       y,
			Type:    typ,
			Variant: variant,
			Subtype: subtype,
			Weight:  weight,
			Props:   ea.extra(entityAttrs),
		})
	}

	// Repeated <spawn> elements for one cell share its props.
	for _, kv := range attrs.extra(spawnAttrs) {
		if rm.SpawnProps == nil {
			rm.SpawnProps = make(map[room.Point]room.Props)
		}
		p := room.Point{X: x, Y: y}
		props := rm.SpawnProps[p]
		props.Set(kv.Key, kv.Value)
		rm.SpawnProps[p] = props
	}
	return nil
}
