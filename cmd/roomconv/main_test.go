package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/stbtool/internal/room"
	"github.com/cory-johannsen/stbtool/internal/roomxml"
	"github.com/cory-johannsen/stbtool/internal/stb"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeSample(t *testing.T, dir string) string {
	t.Helper()
	rm := room.New("Basement", room.NewInfo(1, 2, 0, room.ShapeLTL), 3, 1)
	require.NoError(t, rm.AddEntity(room.Entity{X: 14, Y: 2, Type: 10, Weight: 1}))
	data, err := roomxml.Marshal(&room.File{Rooms: []*room.Room{rm}})
	require.NoError(t, err)
	path := filepath.Join(dir, "rooms.xml")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestConvertCommand_DefaultDestination(t *testing.T) {
	dir := t.TempDir()
	src := writeSample(t, dir)

	out, err := run(t, "convert", "--to", "stb", src)
	require.NoError(t, err)
	assert.Contains(t, out, "rooms.stb")

	data, err := os.ReadFile(filepath.Join(dir, "rooms.stb"))
	require.NoError(t, err)
	assert.Equal(t, stb.DialectAfterbirthPlus, stb.Detect(data))
}

func TestInfoCommand_WithEntityNames(t *testing.T) {
	dir := t.TempDir()
	src := writeSample(t, dir)
	table := filepath.Join(dir, "entities.yaml")
	require.NoError(t, os.WriteFile(table, []byte("entities:\n  - type: 10\n    name: Gaper\n"), 0644))

	out, err := run(t, "info", "--entities", table, src)
	require.NoError(t, err)
	assert.Contains(t, out, "1 rooms, 1 entities")
	assert.Contains(t, out, `"Basement"`)
	assert.Contains(t, out, "LTL")
	assert.Contains(t, out, "(13,1) Gaper")
}

func TestPreviewCommand(t *testing.T) {
	dir := t.TempDir()
	src := writeSample(t, dir)
	dst := filepath.Join(dir, "preview.xml")

	_, err := run(t, "preview", src, "0", dst)
	require.NoError(t, err)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<door exists="True" x="-1" y="3" />`)

	_, err = run(t, "preview", src, "4", dst)
	assert.Error(t, err)
}

func TestBatchCommand_ReportsFailures(t *testing.T) {
	src := t.TempDir()
	writeSample(t, src)
	require.NoError(t, os.WriteFile(filepath.Join(src, "bad.stb"), []byte("STB1\x09"), 0644))

	out, err := run(t, "batch", "--to", "xml", "--workers", "2", src, t.TempDir())
	assert.Error(t, err)
	assert.Contains(t, out, "failed  ")
	assert.Contains(t, out, "1 converted, 1 failed")
}

func TestRootCommand_InvalidLogLevel(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--log-level", "loud", "info", "x.xml"})
	cmd.SetOut(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}
