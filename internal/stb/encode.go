package stb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/cory-johannsen/stbtool/internal/room"
)

// ErrUnsupportedDialect is returned when asked to write a read-only dialect.
var ErrUnsupportedDialect = errors.New("stb: dialect cannot be written")

// writer packs fixed-size records into a preallocated buffer.
type writer struct {
	buf []byte
	off int
}

func (w *writer) put(v any) {
	n, err := binary.Encode(w.buf[w.off:], byteOrder, v)
	if err != nil {
		// The buffer is sized up front from the same records.
		panic(fmt.Sprintf("stb: packing %T at offset %d: %v", v, w.off, err))
	}
	w.off += n
}

func (w *writer) putBytes(b []byte) {
	w.off += copy(w.buf[w.off:], b)
}

// Encode serializes f as the given dialect. Only Rebirth and Afterbirth+ can
// be written. Spawn cells are written in row-major grid order so identical
// models always produce identical bytes.
//
// Postcondition: returns the encoded document, or a non-nil error when a
// value does not fit its on-disk field.
func Encode(f *room.File, dialect Dialect, logger *zap.Logger) ([]byte, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dialect == DialectAntibirth || dialectNames[dialect] == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDialect, dialect)
	}
	if uint64(len(f.Rooms)) > math.MaxUint32 {
		return nil, fmt.Errorf("too many rooms: %d", len(f.Rooms))
	}

	size := sizeRoomCount
	if dialect == DialectAfterbirthPlus {
		size += sizeMagic
	}
	for i, rm := range f.Rooms {
		n, err := roomSize(rm, dialect)
		if err != nil {
			return nil, fmt.Errorf("room %d %q: %w", i, rm.Name, err)
		}
		size += n
	}

	w := &writer{buf: make([]byte, size)}
	if dialect == DialectAfterbirthPlus {
		w.putBytes(magicAfterbirthPlus[:])
	}
	w.put(uint32(len(f.Rooms)))
	for i, rm := range f.Rooms {
		writeRoom(w, rm, dialect, logger.With(zap.Int("room", i), zap.String("name", rm.Name)))
	}
	return w.buf[:w.off], nil
}

// roomSize validates rm against the dialect's field widths and returns its
// encoded length.
func roomSize(rm *room.Room, dialect Dialect) (int, error) {
	if _, err := room.LookupShape(rm.Info.Shape); err != nil {
		return 0, err
	}
	checks := []struct {
		what     string
		v        int
		min, max int64
	}{
		{"type", rm.Info.Type, 0, math.MaxUint32},
		{"variant", rm.Info.Variant, 0, math.MaxUint32},
		{"subtype", rm.Info.Subtype, 0, math.MaxUint32},
		{"difficulty", rm.Difficulty, 0, math.MaxUint8},
		{"name length", len(rm.Name), 0, math.MaxUint16},
		{"door count", len(rm.Info.Doors), 0, math.MaxUint8},
		{"spawn count", rm.StackCount(), 0, math.MaxUint16},
	}
	for _, c := range checks {
		if err := checkRange(c.what, c.v, c.min, c.max); err != nil {
			return 0, err
		}
	}

	size := sizeRoomBegin + sizeRoomEnd
	if dialect == DialectRebirth {
		size = sizeRoomBeginRebirth + sizeRoomEndRebirth
	}
	size += len(rm.Name)

	for _, d := range rm.Info.Doors {
		if err := checkCoord(d.X, d.Y); err != nil {
			return 0, fmt.Errorf("door: %w", err)
		}
		size += sizeDoor
	}
	for st := range rm.Spawns() {
		if err := checkCoord(st.X, st.Y); err != nil {
			return 0, fmt.Errorf("spawn: %w", err)
		}
		if err := checkRange("stack size", len(st.Entities), 0, math.MaxUint8); err != nil {
			return 0, fmt.Errorf("spawn (%d,%d): %w", st.X-1, st.Y-1, err)
		}
		for _, e := range st.Entities {
			for _, c := range []struct {
				what string
				v    int
			}{{"entity type", e.Type}, {"entity variant", e.Variant}, {"entity subtype", e.Subtype}} {
				if err := checkRange(c.what, c.v, 0, math.MaxUint16); err != nil {
					return 0, fmt.Errorf("spawn (%d,%d): %w", st.X-1, st.Y-1, err)
				}
			}
		}
		size += sizeSpawn + len(st.Entities)*sizeEntity
	}
	return size, nil
}

func checkRange(what string, v int, lo, hi int64) error {
	if int64(v) < lo || int64(v) > hi {
		return fmt.Errorf("%s %d out of range [%d,%d]", what, v, lo, hi)
	}
	return nil
}

func checkCoord(x, y int) error {
	if err := checkRange("x", x-1, math.MinInt16, math.MaxInt16); err != nil {
		return err
	}
	return checkRange("y", y-1, math.MinInt16, math.MaxInt16)
}

func writeRoom(w *writer, rm *room.Room, dialect Dialect, logger *zap.Logger) {
	dims := rm.Info.Dims()
	if dialect == DialectRebirth {
		if rm.Info.Subtype != 0 {
			logger.Warn("rebirth format has no subtype, dropping it", zap.Int("subtype", rm.Info.Subtype))
		}
		if rm.Info.Data().BaseShape != 0 {
			logger.Warn("rebirth format has no shape field, room will read back as its base shape",
				zap.Stringer("shape", rm.Info.Shape))
		}
		w.put(binRoomBeginRebirth{
			Type:       uint32(rm.Info.Type),
			Variant:    uint32(rm.Info.Variant),
			Difficulty: uint8(rm.Difficulty),
			NameLen:    uint16(len(rm.Name)),
		})
		w.putBytes([]byte(rm.Name))
		w.put(binRoomEndRebirth{
			Weight:   rm.Weight,
			Width:    uint8(dims.Width - 2),
			Height:   uint8(dims.Height - 2),
			NumDoors: uint8(len(rm.Info.Doors)),
			NumEnts:  uint16(rm.StackCount()),
		})
	} else {
		w.put(binRoomBegin{
			Type:       uint32(rm.Info.Type),
			Variant:    uint32(rm.Info.Variant),
			Subtype:    uint32(rm.Info.Subtype),
			Difficulty: uint8(rm.Difficulty),
			NameLen:    uint16(len(rm.Name)),
		})
		w.putBytes([]byte(rm.Name))
		w.put(binRoomEnd{
			Weight:   rm.Weight,
			Width:    uint8(dims.Width - 2),
			Height:   uint8(dims.Height - 2),
			Shape:    uint8(rm.Info.Shape),
			NumDoors: uint8(len(rm.Info.Doors)),
			NumEnts:  uint16(rm.StackCount()),
		})
	}

	for _, d := range rm.Info.Doors {
		w.put(binDoor{X: int16(d.X - 1), Y: int16(d.Y - 1), Exists: d.Exists})
	}
	for st := range rm.Spawns() {
		w.put(binSpawn{X: int16(st.X - 1), Y: int16(st.Y - 1), StackCount: uint8(len(st.Entities))})
		for _, e := range st.Entities {
			w.put(binEntity{
				Type:    uint16(e.Type),
				Variant: uint16(e.Variant),
				Subtype: uint16(e.Subtype),
				Weight:  e.Weight,
			})
		}
	}
}
