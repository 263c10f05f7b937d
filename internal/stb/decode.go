package stb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/stbtool/internal/room"
)

// ErrTruncated is returned when the buffer ends inside a declared record.
var ErrTruncated = errors.New("stb: truncated data")

// reader walks a byte buffer, decoding fixed-size records at an advancing
// offset.
type reader struct {
	buf []byte
	off int
}

func (r *reader) need(n int) error {
	if n < 0 || r.off+n > len(r.buf) {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, r.off, len(r.buf)-r.off)
	}
	return nil
}

func (r *reader) read(v any) error {
	n := binary.Size(v)
	if err := r.need(n); err != nil {
		return err
	}
	if _, err := binary.Decode(r.buf[r.off:r.off+n], byteOrder, v); err != nil {
		return fmt.Errorf("decoding %T at offset %d: %w", v, r.off, err)
	}
	r.off += n
	return nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// Decode parses a stage bundle, detecting its dialect from the first four
// bytes.
//
// Postcondition: returns the whole document, or a non-nil error and no
// partial result.
func Decode(data []byte, logger *zap.Logger) (*room.File, error) {
	return DecodeAs(data, Detect(data), logger)
}

// DecodeAs parses data as the given dialect.
//
// Postcondition: returns the whole document, or a non-nil error and no
// partial result. Spawn records outside a room's grid and shape mismatches
// are logged at warn level and do not fail the parse.
func DecodeAs(data []byte, dialect Dialect, logger *zap.Logger) (*room.File, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.Stringer("dialect", dialect))

	r := &reader{buf: data}
	if dialect != DialectRebirth {
		if _, err := r.bytes(sizeMagic); err != nil {
			return nil, fmt.Errorf("reading magic: %w", err)
		}
	} else if len(data) >= sizeMagic {
		logger.Debug("no stb magic, reading as rebirth")
	}

	var count uint32
	if err := r.read(&count); err != nil {
		return nil, fmt.Errorf("reading room count: %w", err)
	}

	d := &decoder{r: r, dialect: dialect, logger: logger}
	file := &room.File{Rooms: make([]*room.Room, 0, min(int(count), len(data)/sizeRoomBeginRebirth+1))}
	for i := 0; i < int(count); i++ {
		rm, err := d.room(i)
		if err != nil {
			return nil, fmt.Errorf("room %d: %w", i, err)
		}
		file.Rooms = append(file.Rooms, rm)
	}

	if r.off < len(data) {
		logger.Warn("trailing bytes after last room",
			zap.Int("offset", r.off),
			zap.Int("trailing", len(data)-r.off),
		)
	}
	return file, nil
}

type decoder struct {
	r       *reader
	dialect Dialect
	logger  *zap.Logger
}

func (d *decoder) room(index int) (*room.Room, error) {
	var begin binRoomBegin
	if d.dialect == DialectRebirth {
		var rb binRoomBeginRebirth
		if err := d.r.read(&rb); err != nil {
			return nil, fmt.Errorf("reading room header: %w", err)
		}
		begin = binRoomBegin{Type: rb.Type, Variant: rb.Variant, Difficulty: rb.Difficulty, NameLen: rb.NameLen}
	} else if err := d.r.read(&begin); err != nil {
		return nil, fmt.Errorf("reading room header: %w", err)
	}

	nameBytes, err := d.r.bytes(int(begin.NameLen))
	if err != nil {
		return nil, fmt.Errorf("reading room name: %w", err)
	}
	name := string(nameBytes)
	logger := d.logger.With(zap.Int("room", index), zap.String("name", name))

	var end binRoomEnd
	if d.dialect == DialectRebirth {
		var re binRoomEndRebirth
		if err := d.r.read(&re); err != nil {
			return nil, fmt.Errorf("reading room %q footer: %w", name, err)
		}
		end = binRoomEnd{Weight: re.Weight, Width: re.Width, Height: re.Height, NumDoors: re.NumDoors, NumEnts: re.NumEnts}
	} else if err := d.r.read(&end); err != nil {
		return nil, fmt.Errorf("reading room %q footer: %w", name, err)
	}

	if d.dialect == DialectAntibirth {
		reserved, err := d.r.bytes(antibirthReserved)
		if err != nil {
			return nil, fmt.Errorf("reading room %q reserved bytes: %w", name, err)
		}
		if !bytes.Equal(reserved, make([]byte, antibirthReserved)) {
			logger.Warn("antibirth reserved bytes are not zero", zap.Binary("reserved", bytes.Clone(reserved)))
		}
	}

	shape := room.Shape(end.Shape)
	if d.dialect == DialectRebirth {
		var matched bool
		shape, matched = room.InferShape(int(end.Width), int(end.Height), room.BaseShapes)
		if !matched {
			logger.Debug("no base shape matches room size, using default",
				zap.Uint8("width", end.Width),
				zap.Uint8("height", end.Height),
			)
		}
	} else if !shape.Valid() {
		return nil, fmt.Errorf("room %q: %w: %d", name, room.ErrInvalidShape, end.Shape)
	}

	info := room.Info{
		Type:    int(begin.Type),
		Variant: int(begin.Variant),
		Subtype: int(begin.Subtype),
		Shape:   shape,
	}
	if dims := info.Dims(); int(end.Width)+2 != dims.Width || int(end.Height)+2 != dims.Height {
		logger.Warn("room size does not match shape",
			zap.Stringer("shape", shape),
			zap.Uint8("width", end.Width),
			zap.Uint8("height", end.Height),
		)
	}

	for i := 0; i < int(end.NumDoors); i++ {
		var door binDoor
		if err := d.r.read(&door); err != nil {
			return nil, fmt.Errorf("room %q door %d: %w", name, i, err)
		}
		info.Doors = append(info.Doors, room.Door{X: int(door.X) + 1, Y: int(door.Y) + 1, Exists: door.Exists})
	}

	rm := room.New(name, info, int(begin.Difficulty), end.Weight)
	for i := 0; i < int(end.NumEnts); i++ {
		if err := d.spawn(rm, logger); err != nil {
			return nil, fmt.Errorf("room %q spawn %d: %w", name, i, err)
		}
	}

	for _, w := range rm.CheckConsistency() {
		logger.Warn("room inconsistency", zap.String("detail", w))
	}
	return rm, nil
}

// spawn reads one position record and its stacked entities into rm. A record
// whose x or y falls outside the grid is skipped, its entities consumed but
// discarded.
func (d *decoder) spawn(rm *room.Room, logger *zap.Logger) error {
	var sp binSpawn
	if err := d.r.read(&sp); err != nil {
		return err
	}
	x, y := int(sp.X)+1, int(sp.Y)+1
	idx, ok := rm.Info.CellIndex(x, y)
	if !ok {
		if _, err := d.r.bytes(int(sp.StackCount) * sizeEntity); err != nil {
			return err
		}
		logger.Warn("dropping entity stack outside room grid",
			zap.Int("x", x-1),
			zap.Int("y", y-1),
			zap.Int("entities", int(sp.StackCount)),
		)
		return nil
	}

	for j := 0; j < int(sp.StackCount); j++ {
		var e binEntity
		if err := d.r.read(&e); err != nil {
			return fmt.Errorf("entity %d at (%d,%d): %w", j, x-1, y-1, err)
		}
		rm.GridSpawns[idx] = append(rm.GridSpawns[idx], room.Entity{
			X:       x,
			Y:       y,
			Type:    int(e.Type),
			Variant: int(e.Variant),
			Subtype: int(e.Subtype),
			Weight:  e.Weight,
		})
	}
	return nil
}
