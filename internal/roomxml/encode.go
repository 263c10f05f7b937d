package roomxml

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/cory-johannsen/stbtool/internal/room"
)

const header = `<?xml version="1.0" encoding="utf-8"?>` + "\n"

// previewDoorFixups rewrites inner-corner doors of L-shaped rooms for preview
// files. The game's XML loader reads those doors as if they sat on the outer
// wall of a full 2x2 room, so preview files must place them there. Keys and
// values are in-memory coordinates.
var previewDoorFixups = map[room.Shape]map[room.Point]room.Point{
	room.ShapeLTL: {
		{X: 7, Y: 7}:  {X: 7, Y: 0},
		{X: 13, Y: 4}: {X: 0, Y: 4},
	},
	room.ShapeLTR: {
		{X: 20, Y: 7}: {X: 20, Y: 0},
		{X: 14, Y: 4}: {X: 27, Y: 4},
	},
	room.ShapeLBL: {
		{X: 7, Y: 8}:   {X: 7, Y: 15},
		{X: 13, Y: 11}: {X: 0, Y: 11},
	},
}

// PreviewDoor returns where a door is written in preview mode for the given
// shape.
func PreviewDoor(shape room.Shape, p room.Point) room.Point {
	if fixed, ok := previewDoorFixups[shape][p]; ok {
		return fixed
	}
	return p
}

type attr struct {
	key, value string
}

type encoder struct {
	buf     bytes.Buffer
	preview bool
}

func (e *encoder) tag(depth int, name string, attrs []attr, selfClose bool) {
	for i := 0; i < depth; i++ {
		e.buf.WriteByte('\t')
	}
	e.buf.WriteByte('<')
	e.buf.WriteString(name)
	for _, a := range attrs {
		e.buf.WriteByte(' ')
		e.buf.WriteString(a.key)
		e.buf.WriteString(`="`)
		e.buf.WriteString(Escape(a.value))
		e.buf.WriteByte('"')
	}
	if selfClose {
		e.buf.WriteString(" />\n")
	} else {
		e.buf.WriteString(">\n")
	}
}

func (e *encoder) close(depth int, name string) {
	for i := 0; i < depth; i++ {
		e.buf.WriteByte('\t')
	}
	fmt.Fprintf(&e.buf, "</%s>\n", name)
}

func withProps(attrs []attr, props room.Props, reserved map[string]bool) []attr {
	for _, p := range props.Without(reserved) {
		attrs = append(attrs, attr{p.Key, p.Value})
	}
	return attrs
}

func (e *encoder) file(f *room.File) {
	e.buf.WriteString(header)
	e.tag(0, "rooms", withProps(nil, f.Props, nil), false)
	for _, rm := range f.Rooms {
		e.room(rm)
	}
	e.close(0, "rooms")
}

func (e *encoder) room(rm *room.Room) {
	dims := rm.Info.Dims()
	attrs := []attr{
		{attrVariant, strconv.Itoa(rm.Info.Variant)},
		{attrName, rm.Name},
		{attrType, strconv.Itoa(rm.Info.Type)},
		{attrSubtype, strconv.Itoa(rm.Info.Subtype)},
		{attrShape, strconv.Itoa(int(rm.Info.Shape))},
		{attrWidth, strconv.Itoa(dims.Width - 2)},
		{attrHeight, strconv.Itoa(dims.Height - 2)},
		{attrDifficulty, strconv.Itoa(rm.Difficulty)},
		{attrWeight, formatFloat(rm.Weight)},
	}
	if rm.LastTestTime != nil {
		layout := rm.LastTestLayout
		if layout == "" {
			layout = time.RFC3339Nano
		}
		attrs = append(attrs, attr{attrLastTestTime, rm.LastTestTime.Format(layout)})
	}
	e.tag(1, "room", withProps(attrs, rm.Props, roomAttrs), false)

	for _, d := range rm.Info.Doors {
		p := d.Point()
		if e.preview {
			p = PreviewDoor(rm.Info.Shape, p)
		}
		e.tag(2, "door", withProps([]attr{
			{attrExists, formatBool(d.Exists)},
			{attrX, strconv.Itoa(p.X - 1)},
			{attrY, strconv.Itoa(p.Y - 1)},
		}, d.Props, doorAttrs), true)
	}

	for st := range rm.Spawns() {
		e.tag(2, "spawn", withProps([]attr{
			{attrX, strconv.Itoa(st.X - 1)},
			{attrY, strconv.Itoa(st.Y - 1)},
		}, st.Props, spawnAttrs), false)
		for _, ent := range st.Entities {
			e.tag(3, "entity", withProps([]attr{
				{attrType, strconv.Itoa(ent.Type)},
				{attrVariant, strconv.Itoa(ent.Variant)},
				{attrSubtype, strconv.Itoa(ent.Subtype)},
				{attrWeight, formatFloat(ent.Weight)},
			}, ent.Props, entityAttrs), true)
		}
		e.close(2, "spawn")
	}
	e.close(1, "room")
}

// Marshal renders f as a canonical <rooms> document.
func Marshal(f *room.File) ([]byte, error) {
	for i, rm := range f.Rooms {
		if _, err := room.LookupShape(rm.Info.Shape); err != nil {
			return nil, fmt.Errorf("room %d %q: %w", i, rm.Name, err)
		}
	}
	e := &encoder{}
	e.file(f)
	return e.buf.Bytes(), nil
}

// MarshalPreview renders a single room for a test launch. Inner-corner doors
// of L-shaped rooms are rewritten for the game's loader; the result is not
// meant to be read back as the room's source.
func MarshalPreview(rm *room.Room) ([]byte, error) {
	if _, err := room.LookupShape(rm.Info.Shape); err != nil {
		return nil, fmt.Errorf("room %q: %w", rm.Name, err)
	}
	e := &encoder{preview: true}
	e.file(&room.File{Rooms: []*room.Room{rm}})
	return e.buf.Bytes(), nil
}

// Encode writes f to w as a canonical <rooms> document in a single write.
func Encode(w io.Writer, f *room.File) error {
	data, err := Marshal(f)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing room xml: %w", err)
	}
	return nil
}

// EncodePreview writes a preview document for rm to w.
func EncodePreview(w io.Writer, rm *room.Room) error {
	data, err := MarshalPreview(rm)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing preview xml: %w", err)
	}
	return nil
}
