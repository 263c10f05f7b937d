package stb_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/stbtool/internal/room"
	"github.com/cory-johannsen/stbtool/internal/stb"
)

// fixture assembles little-endian records by hand, independent of the
// package's own layout structs.
type fixture struct {
	bytes.Buffer
}

func (f *fixture) put(vs ...any) *fixture {
	for _, v := range vs {
		if s, ok := v.(string); ok {
			f.WriteString(s)
			continue
		}
		if err := binary.Write(&f.Buffer, binary.LittleEndian, v); err != nil {
			panic(err)
		}
	}
	return f
}

type spawnRec struct {
	x, y     int16
	entities []uint16
}

// abPlusRoom appends one Afterbirth+ room with zero doors.
func (f *fixture) abPlusRoom(name string, typ uint32, shape, width, height uint8, spawns ...spawnRec) *fixture {
	f.put(typ, uint32(0), uint32(0), uint8(1), uint16(len(name)), name)
	f.put(float32(1), width, height, shape, uint8(0), uint16(len(spawns)))
	for _, sp := range spawns {
		f.put(sp.x, sp.y, uint8(len(sp.entities)))
		for _, et := range sp.entities {
			f.put(et, uint16(0), uint16(0), float32(1))
		}
	}
	return f
}

func singleRoomFixture() []byte {
	f := &fixture{}
	f.put("STB1", uint32(1))
	f.abPlusRoom("Test", 1, 1, 13, 7, spawnRec{x: 3, y: 3, entities: []uint16{10}})
	return f.Bytes()
}

func TestDecode_SingleRoomScenario(t *testing.T) {
	data := singleRoomFixture()

	file, err := stb.Decode(data, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, file.Rooms, 1)

	rm := file.Rooms[0]
	assert.Equal(t, "Test", rm.Name)
	assert.Equal(t, 1, rm.Info.Type)
	assert.Equal(t, 0, rm.Info.Variant)
	assert.Equal(t, 0, rm.Info.Subtype)
	assert.Equal(t, 1, rm.Difficulty)
	assert.Equal(t, float32(1), rm.Weight)
	assert.Equal(t, room.Shape1x1, rm.Info.Shape)
	assert.Equal(t, room.Dims{Width: 15, Height: 9}, rm.Info.Dims())
	assert.Empty(t, rm.Info.Doors)

	stack := rm.GridSpawns[room.GridIndex(4, 4, 15)]
	require.Len(t, stack, 1)
	assert.Equal(t, 10, stack[0].Type)
	assert.Equal(t, 4, stack[0].X)
	assert.Equal(t, 4, stack[0].Y)
	assert.Equal(t, 1, rm.EntityCount())

	out, err := stb.Encode(file, stb.DialectAfterbirthPlus, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestDetect(t *testing.T) {
	assert.Equal(t, stb.DialectAfterbirthPlus, stb.Detect([]byte("STB1\x00\x00\x00\x00")))
	assert.Equal(t, stb.DialectAntibirth, stb.Detect([]byte("STB2\x00\x00\x00\x00")))
	assert.Equal(t, stb.DialectRebirth, stb.Detect([]byte{2, 0, 0, 0}))
	assert.Equal(t, stb.DialectRebirth, stb.Detect([]byte{0xff, 0xfe, 0x80, 0x81}))
	assert.Equal(t, stb.DialectRebirth, stb.Detect([]byte("ST")))
}

func TestDecode_Rebirth(t *testing.T) {
	f := &fixture{}
	f.put(uint32(1))
	f.put(uint32(2), uint32(7), uint8(3), uint16(3), "Old")
	f.put(float32(0.5), uint8(26), uint8(7), uint8(1), uint16(1))
	f.put(int16(-1), int16(3), true)
	f.put(int16(0), int16(0), uint8(1), uint16(5), uint16(1), uint16(2), float32(2))

	file, err := stb.Decode(f.Bytes(), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, file.Rooms, 1)

	rm := file.Rooms[0]
	assert.Equal(t, "Old", rm.Name)
	assert.Equal(t, 2, rm.Info.Type)
	assert.Equal(t, 7, rm.Info.Variant)
	assert.Equal(t, 0, rm.Info.Subtype)
	assert.Equal(t, 3, rm.Difficulty)
	assert.Equal(t, room.Shape2x1, rm.Info.Shape)
	assert.Equal(t, []room.Door{{X: 0, Y: 4, Exists: true}}, rm.Info.Doors)

	stack := rm.Stack(1, 1)
	require.Len(t, stack, 1)
	assert.Equal(t, room.Entity{X: 1, Y: 1, Type: 5, Variant: 1, Subtype: 2, Weight: 2}, stack[0])

	out, err := stb.Encode(file, stb.DialectRebirth, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, f.Bytes(), out)
}

func TestDecode_RebirthUnknownSizeDefaultsTo1x1(t *testing.T) {
	f := &fixture{}
	f.put(uint32(1))
	f.put(uint32(1), uint32(1), uint8(0), uint16(0))
	f.put(float32(1), uint8(13), uint8(3), uint8(0), uint16(0))

	file, err := stb.Decode(f.Bytes(), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, room.Shape1x1, file.Rooms[0].Info.Shape)
}

func TestDecode_Antibirth(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	f := &fixture{}
	f.put("STB2", uint32(1))
	f.put(uint32(1), uint32(4), uint32(9), uint8(2), uint16(2), "AB")
	f.put(float32(1), uint8(26), uint8(13), uint8(room.ShapeLTR), uint8(0), uint16(0))
	f.put([9]byte{0, 0, 7})

	file, err := stb.Decode(f.Bytes(), zap.New(core))
	require.NoError(t, err)
	require.Len(t, file.Rooms, 1)
	assert.Equal(t, room.ShapeLTR, file.Rooms[0].Info.Shape)
	assert.Equal(t, 9, file.Rooms[0].Info.Subtype)
	assert.Equal(t, 1, logs.FilterMessage("antibirth reserved bytes are not zero").Len())

	_, err = stb.Encode(file, stb.DialectAntibirth, nil)
	assert.ErrorIs(t, err, stb.ErrUnsupportedDialect)
}

func TestDecode_DropsStackOutsideGrid(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	f := &fixture{}
	f.put("STB1", uint32(2))
	f.abPlusRoom("First", 1, 1, 13, 7,
		spawnRec{x: 2, y: 2, entities: []uint16{10, 11}},
		spawnRec{x: 100, y: 100, entities: []uint16{12, 13}},
		spawnRec{x: 5, y: 1, entities: []uint16{14}},
	)
	f.abPlusRoom("Second", 2, 1, 13, 7, spawnRec{x: 0, y: 0, entities: []uint16{20}})

	file, err := stb.Decode(f.Bytes(), zap.New(core))
	require.NoError(t, err)
	require.Len(t, file.Rooms, 2)

	first := file.Rooms[0]
	assert.Equal(t, 3, first.EntityCount())
	assert.Equal(t, 2, first.StackCount())
	assert.Len(t, first.Stack(3, 3), 2)
	assert.Len(t, first.Stack(6, 2), 1)

	second := file.Rooms[1]
	assert.Equal(t, "Second", second.Name)
	assert.Equal(t, 1, second.EntityCount())
	assert.Equal(t, 20, second.Stack(1, 1)[0].Type)

	assert.Equal(t, 1, logs.FilterMessage("dropping entity stack outside room grid").Len())
}

func TestDecode_DropsStackPastRowEnd(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	// (20,0) flattens into range of the 15-wide grid but is not a cell of it.
	f := &fixture{}
	f.put("STB1", uint32(1))
	f.abPlusRoom("Wide", 1, 1, 13, 7,
		spawnRec{x: 20, y: 0, entities: []uint16{30, 31}},
		spawnRec{x: 4, y: 2, entities: []uint16{32}},
	)

	file, err := stb.Decode(f.Bytes(), zap.New(core))
	require.NoError(t, err)
	rm := file.Rooms[0]
	assert.Equal(t, 1, rm.EntityCount())
	assert.Nil(t, rm.Stack(6, 2))
	require.Len(t, rm.Stack(5, 3), 1)
	assert.Equal(t, 32, rm.Stack(5, 3)[0].Type)
	assert.Equal(t, 1, logs.FilterMessage("dropping entity stack outside room grid").Len())

	for st := range rm.Spawns() {
		for _, e := range st.Entities {
			assert.Equal(t, st.X, e.X)
			assert.Equal(t, st.Y, e.Y)
		}
	}
}

func TestDecode_InvalidShapeIsFatal(t *testing.T) {
	f := &fixture{}
	f.put("STB1", uint32(1))
	f.abPlusRoom("Bad", 1, 13, 13, 7)

	file, err := stb.Decode(f.Bytes(), nil)
	assert.ErrorIs(t, err, room.ErrInvalidShape)
	assert.Nil(t, file)
}

// TestDecode_TruncatedPrefixes verifies that every proper prefix of a valid
// document fails as truncated and never yields a partial file.
func TestDecode_TruncatedPrefixes(t *testing.T) {
	data := singleRoomFixture()
	for n := 0; n < len(data); n++ {
		file, err := stb.Decode(data[:n], nil)
		require.ErrorIs(t, err, stb.ErrTruncated, "prefix length %d", n)
		assert.Nil(t, file)
	}
}

func TestEncode_OffsetsAndDims(t *testing.T) {
	rm := room.New("R", room.NewInfo(1, 2, 3, room.Shape1x2), 4, 1)
	require.NoError(t, rm.AddEntity(room.Entity{X: 7, Y: 9, Type: 33, Weight: 1}))
	file := &room.File{Rooms: []*room.Room{rm}}

	data, err := stb.Encode(file, stb.DialectAfterbirthPlus, nil)
	require.NoError(t, err)

	le := binary.LittleEndian
	off := 4 + 4 + 15 + len("R")
	footer := data[off:]
	assert.Equal(t, byte(13), footer[4], "width excludes the border")
	assert.Equal(t, byte(14), footer[5], "height excludes the border")
	assert.Equal(t, byte(room.Shape1x2), footer[6])
	assert.Equal(t, byte(len(rm.Info.Doors)), footer[7])
	assert.Equal(t, uint16(1), le.Uint16(footer[8:]))

	doors := footer[10:]
	for i, d := range rm.Info.Doors {
		rec := doors[i*5:]
		assert.Equal(t, int16(d.X-1), int16(le.Uint16(rec[0:])))
		assert.Equal(t, int16(d.Y-1), int16(le.Uint16(rec[2:])))
	}

	spawn := doors[len(rm.Info.Doors)*5:]
	assert.Equal(t, int16(6), int16(le.Uint16(spawn[0:])))
	assert.Equal(t, int16(8), int16(le.Uint16(spawn[2:])))
	assert.Equal(t, byte(1), spawn[4])
	assert.Equal(t, uint16(33), le.Uint16(spawn[5:]))
}

func TestEncode_RejectsOutOfRange(t *testing.T) {
	rm := room.New("R", room.NewInfo(1, 0, 0, room.Shape1x1), 1, 1)
	require.NoError(t, rm.AddEntity(room.Entity{X: 2, Y: 2, Type: 70000}))
	_, err := stb.Encode(&room.File{Rooms: []*room.Room{rm}}, stb.DialectAfterbirthPlus, nil)
	assert.Error(t, err)

	rm = room.New("R", room.NewInfo(1, 0, 0, room.Shape1x1), 300, 1)
	_, err = stb.Encode(&room.File{Rooms: []*room.Room{rm}}, stb.DialectAfterbirthPlus, nil)
	assert.Error(t, err)
}

func TestParseDialect(t *testing.T) {
	for _, d := range []stb.Dialect{stb.DialectRebirth, stb.DialectAfterbirthPlus, stb.DialectAntibirth} {
		got, err := stb.ParseDialect(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}
	_, err := stb.ParseDialect("repentance")
	assert.Error(t, err)
}

// genFile draws a canonical document: template doors, entities inside the
// grid, and values that fit every on-disk field.
func genFile(t *rapid.T) *room.File {
	n := rapid.IntRange(1, 3).Draw(t, "rooms")
	file := &room.File{}
	for i := 0; i < n; i++ {
		shape := rapid.SampledFrom(room.AllShapes()).Draw(t, "shape")
		info := room.NewInfo(
			rapid.IntRange(0, 1<<20).Draw(t, "type"),
			rapid.IntRange(0, 1<<20).Draw(t, "variant"),
			rapid.IntRange(0, 40).Draw(t, "subtype"),
			shape,
		)
		for j := range info.Doors {
			info.Doors[j].Exists = rapid.Bool().Draw(t, "exists")
		}
		rm := room.New(
			rapid.StringMatching(`[A-Za-z0-9 '&<>"]{0,24}`).Draw(t, "name"),
			info,
			rapid.IntRange(0, 255).Draw(t, "difficulty"),
			rapid.Float32Range(0, 100).Draw(t, "weight"),
		)
		ents := rapid.IntRange(0, 12).Draw(t, "entities")
		for k := 0; k < ents; k++ {
			idx := rapid.IntRange(0, info.GridLen()-1).Draw(t, "index")
			x, y := info.Coords(idx)
			e := room.Entity{
				X:       x,
				Y:       y,
				Type:    rapid.IntRange(0, 1000).Draw(t, "etype"),
				Variant: rapid.IntRange(0, 65535).Draw(t, "evariant"),
				Subtype: rapid.IntRange(0, 255).Draw(t, "esubtype"),
				Weight:  rapid.Float32Range(0, 10).Draw(t, "eweight"),
			}
			if err := rm.AddEntity(e); err != nil {
				t.Fatal(err)
			}
		}
		file.Rooms = append(file.Rooms, rm)
	}
	return file
}

// TestRoundTrip_AfterbirthPlus is a property-based test verifying that
// decode(encode(m)) == m and that re-encoding is byte-identical.
func TestRoundTrip_AfterbirthPlus(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		file := genFile(rt)

		data, err := stb.Encode(file, stb.DialectAfterbirthPlus, nil)
		require.NoError(rt, err)
		assert.Equal(rt, stb.DialectAfterbirthPlus, stb.Detect(data))

		got, err := stb.Decode(data, nil)
		require.NoError(rt, err)
		assert.Equal(rt, file, got)

		again, err := stb.Encode(got, stb.DialectAfterbirthPlus, nil)
		require.NoError(rt, err)
		assert.Equal(rt, data, again)
	})
}
